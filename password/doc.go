// Package password hashes and verifies account passwords with Argon2id.
//
// Hashes are stored in PHC string form:
//
//	$argon2id$v=19$m=65536,t=3,p=2$<salt>$<key>
//
// Parameters are read back from the hash on Verify, so existing hashes keep
// working after the configuration is raised; NeedsUpgrade reports when a
// stored hash should be recomputed.
//
// # What this package must NOT do
//
//   - Enforce password policy beyond a minimum length; composition rules
//     live in the validation package.
//   - Normalize Unicode input.
package password
