// Package fault defines the error taxonomy shared by every messpass package.
//
// Errors are classified into a small set of kinds (network, timeout, offline,
// unauthorized, session expired, validation, conflict, not found, store
// initialization, store update, unknown). A classified error can be
// normalized into an [Info] record carrying a human-readable message, an
// optional technical detail and zero or more labeled recovery actions.
//
// # Architecture boundaries
//
// fault owns classification and presentation of errors. It does not log,
// retry or decide control flow; callers in stores, lifecycle and the root
// package do that.
//
// # What this package must NOT do
//
//   - Import any other messpass package.
//   - Perform I/O.
package fault
