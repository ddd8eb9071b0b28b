// Package manager wires the profile catalog, the enhancement pipeline,
// and the draft/commit cells into one serialized control loop driving the
// proxy engine's configuration. Every catalog or settings change funnels
// into a rebuild request; rebuilds are coalesced so only the latest
// requested configuration reaches the engine.
package manager
