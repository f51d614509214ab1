// Package lifecycle tracks the initialization lifecycle of named domain
// stores.
//
// A [Manager] is a registry mapping a store name to its [State]: one of
// Initializing, Ready or Error. It is independent of any loading flag the
// store keeps for its own actions.
//
// # Loads
//
// [Manager.Initialize] starts the registered loader unless one is already in
// flight, in which case the caller joins it. A store in Error is retried: the
// error is cleared and the state returns to Initializing before the loader
// runs again. A Ready store is left alone. Loader failures never surface as
// returned errors; they become the Error state with a normalized
// fault.Info carrying a "Retry" action.
//
// Dependencies declared at registration are initialized before the
// dependent's own loader runs. A dependency that ends in Error puts the
// dependent into Error too.
//
// # Generations
//
// [Manager.Reset] returns a store to Initializing under a new generation.
// Completions of loads started under an older generation are dropped.
//
// # Architecture boundaries
//
// The Manager owns lifecycle state only. Domain payloads stay in the stores.
//
// # What this package must NOT do
//
//   - Panic on unknown names: State fails closed to Initializing.
//   - Hold its lock while calling loaders or watchers.
package lifecycle
