// Command enhanced manages layered configuration for a locally running
// proxy engine: it stores profiles, derives the engine-facing document
// through the enhancement pipeline, and keeps the running engine on the
// last configuration that passed validation.
package main

import "os"

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
