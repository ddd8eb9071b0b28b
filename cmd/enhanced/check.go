package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	enhance "github.com/goliatone/go-enhance"
)

var checkEngine string

var checkCmd = &cobra.Command{
	Use:   "check <file>",
	Short: "Validate a profile document or script file",
	Long: `Checks a file before it is added to the catalog. YAML documents
are parsed and type-checked against the well-known engine keys; script
files must load cleanly and define a main function. The script engine is
inferred from the file extension unless --engine is given.`,
	Args: cobra.ExactArgs(1),
	RunE: func(_ *cobra.Command, args []string) error {
		path := args[0]
		engine := checkEngine
		if engine == "" {
			switch strings.ToLower(filepath.Ext(path)) {
			case ".js":
				engine = "js"
			case ".lua":
				engine = "lua"
			}
		}

		if engine != "" {
			program, err := os.ReadFile(path)
			if err != nil {
				return err
			}
			if err := enhance.DefaultRunnerRegistry().CheckScript(engine, string(program)); err != nil {
				return err
			}
			fmt.Printf("%s: valid %s script\n", path, engine)
			return nil
		}

		doc, err := enhance.ParseDocumentFile(path)
		if err != nil {
			return err
		}
		if err := enhance.DefaultSchema().Validate(doc); err != nil {
			return err
		}
		fmt.Printf("%s: valid document, %d top-level keys\n", path, len(doc))
		return nil
	},
}

func init() {
	checkCmd.Flags().StringVar(&checkEngine, "engine", "", "script engine: js or lua")
	rootCmd.AddCommand(checkCmd)
}
