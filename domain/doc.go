// Package domain defines the canonical business entities of the mess:
// memberships and renewal requests, meals, meal passes, closures, ratings and
// planned absences, plus the validated inputs used to create them.
//
// There is exactly one schema per entity. Backends translate their own row
// shapes into these types at the boundary.
//
// # What this package must NOT do
//
//   - Perform I/O or hold mutable shared state.
//   - Import stores, backend or the root messpass package.
package domain
