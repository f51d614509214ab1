// Package rate throttles sign-in attempts with Redis fixed-window counters.
//
// # Window semantics
//
// INCR plus EXPIRE on the first hit of a window. Keys:
//   - mp:si:<identifier>  failed sign-ins per account identifier
//   - mp:sip:<ip>         failed sign-ins per client address
//
// # What this package must NOT do
//
//   - Decide what counts as a failure; the provider calls Fail.
//   - Be imported outside this module.
package rate
