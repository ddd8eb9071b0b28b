// Package profile manages the catalog of configuration profiles: base
// documents (local or remote), merge fragments, and sandboxed scripts.
//
// The Registry keeps the ordered catalog, the active profile, and the
// global enhancement chain. A Snapshot is an isolated copy of the catalog
// that can assemble the layered build chain consumed by the pipeline.
// Store persists one YAML file per item under profiles/ plus a registry
// index, both through the state file store.
package profile
