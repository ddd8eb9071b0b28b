// Package store provides the draft/commit cell guarding each configuration
// domain. A cell holds the committed value and hands out cheap copies; all
// edits fork a draft, and at most one draft is open per cell at a time.
// Commit validates the draft, persists it, then pushes it to the running
// engine; a rejected push restores the previous value so the engine never
// keeps a configuration that failed its own acceptance check.
package store
