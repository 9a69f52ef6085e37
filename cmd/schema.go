package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sells-group/geonames-cli/internal/geonames"
)

var schemaJSON bool

var schemaCmd = &cobra.Command{
	Use:   "schema",
	Short: "Print the record field names in column order",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		if schemaJSON {
			enc := json.NewEncoder(out)
			enc.SetIndent("", "    ")
			return enc.Encode(geonames.FieldNames)
		}
		for i, name := range geonames.FieldNames {
			fmt.Fprintf(out, "%2d  %s\n", i+1, name)
		}
		return nil
	},
}

func init() {
	schemaCmd.Flags().BoolVar(&schemaJSON, "json", false, "print the names as a JSON array")
	rootCmd.AddCommand(schemaCmd)
}
