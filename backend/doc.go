// Package backend defines the remote data API the domain stores read from
// and write to, with two implementations:
//
//   - [Memory], an in-process mock seeded with demo data. It supports
//     latency and failure injection for tests and the simulator.
//   - [Breaker], a circuit-breaking wrapper around any [API]. While the
//     breaker is open, calls fail fast with fault.ErrOffline.
//
// Errors returned by implementations are classified with the fault package:
// missing rows are fault.ErrNotFound, rule violations fault.ErrConflict,
// transport problems fault.ErrNetwork or fault.ErrOffline.
//
// # What this package must NOT do
//
//   - Hold client-side state such as loading flags; that belongs to stores.
package backend
