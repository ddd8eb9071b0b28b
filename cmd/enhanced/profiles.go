package main

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/goliatone/go-enhance/pkg/profile"
)

var profilesCmd = &cobra.Command{
	Use:   "profiles",
	Short: "List the profile catalog",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		catalog, err := profile.NewStore(dataDir())
		if err != nil {
			return err
		}
		reg, err := catalog.LoadAll(cmd.Context())
		if err != nil {
			return err
		}

		items := reg.Items()
		if len(items) == 0 {
			fmt.Println("catalog is empty")
			return nil
		}

		active := reg.ActiveID()
		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tKIND\tNAME\tUPDATED\tCHAIN")
		for _, item := range items {
			marker := ""
			if item.ID == active {
				marker = " (active)"
			}
			updated := ""
			if !item.UpdatedAt.IsZero() {
				updated = item.UpdatedAt.Format("2006-01-02 15:04")
			}
			fmt.Fprintf(w, "%s\t%s\t%s%s\t%s\t%s\n",
				item.ID, item.Kind, item.Name, marker, updated, strings.Join(item.Chain, ","))
		}
		return w.Flush()
	},
}

func init() {
	rootCmd.AddCommand(profilesCmd)
}
