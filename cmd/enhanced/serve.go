package main

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the configuration manager",
	Long: `Runs the manager loop: watches the profile catalog, refreshes
remote profiles on their timers, and pushes every committed configuration
to the engine. Stops cleanly on SIGINT or SIGTERM.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		log := newLogger()
		m, err := newManager(log)
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()
		return m.Run(ctx)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
