// Package state defines persistence-facing contracts for loading and saving
// configuration domain snapshots: the engine runtime document, typed
// application settings, and the profile catalog index.
//
// Responsibilities:
//   - Store[T] loads/saves/deletes a single snapshot for a single Ref.
//   - FileStore[T] persists snapshots as YAML files with atomic writes and
//     content-hash ETags for optimistic concurrency.
//   - MemoryStore[T] backs tests and examples.
//   - Mutate orchestrates the load, modify, save cycle under an ETag guard.
//
// Deterministic keys:
//
//	Ref.Identifier() provides the canonical storage key, "domain" or
//	"domain/name". FileStore maps it onto "<root>/<identifier>.yaml".
package state
