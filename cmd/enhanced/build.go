package main

import (
	"fmt"

	"github.com/spf13/cobra"

	enhance "github.com/goliatone/go-enhance"
	"github.com/goliatone/go-enhance/pkg/store"
)

var buildJSON bool

var buildCmd = &cobra.Command{
	Use:   "build",
	Short: "Run one pipeline build and commit the result",
	Long: `Derives the engine-facing document from the active profile and
its enhancement chain, validates it, writes it to the runtime path, and
pushes it to the engine when one is configured. Per-layer diagnostics are
printed afterwards; a failed layer does not abort the build.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		log := newLogger()
		m, err := newManager(log)
		if err != nil {
			return err
		}

		result, buildErr := m.Rebuild(cmd.Context())

		if buildJSON {
			payload, err := result.ToJSON()
			if err != nil {
				return err
			}
			fmt.Println(string(payload))
		} else {
			printReports(result)
		}

		if buildErr != nil {
			if store.IsRejected(buildErr) {
				fmt.Printf("engine rejected the configuration, previous one restored: %v\n", buildErr)
			}
			return buildErr
		}
		fmt.Printf("rendered document written to %s\n", m.RuntimePath())
		return nil
	},
}

func printReports(result enhance.Result) {
	for _, report := range result.Reports {
		line := fmt.Sprintf("%-14s %-8s %s (%s)", report.Outcome, report.Kind, report.Name, report.LayerID)
		if report.Error != "" {
			line += ": " + report.Error
		}
		fmt.Println(line)
		for _, log := range report.Logs {
			fmt.Printf("    %s\n", log)
		}
	}
}

func init() {
	buildCmd.Flags().BoolVar(&buildJSON, "json", false, "print diagnostics as JSON")
	rootCmd.AddCommand(buildCmd)
}
