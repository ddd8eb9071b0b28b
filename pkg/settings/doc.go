// Package settings models the application settings domain: the typed
// settings document persisted to settings.yaml, built-in defaults, and the
// layering rules that compose defaults, file contents, and runtime
// overrides into the effective settings.
package settings
