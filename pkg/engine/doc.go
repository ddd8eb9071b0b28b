// Package engine talks to the locally running proxy engine: pushing
// rendered configurations through its control API, patching live settings,
// validating candidate files with the engine binary's check mode, and
// streaming its traffic feed.
package engine
