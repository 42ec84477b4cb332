// Command schemagen writes the JSON schema for the secopsctl server
// configuration file.
package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/dandye/mcp-security/pkg/config"
)

func main() {
	var outFile string

	cmd := &cobra.Command{
		Use:           "schemagen",
		Short:         "Generate the server configuration JSON schema",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(_ *cobra.Command, _ []string) error {
			data, err := json.MarshalIndent(config.Schema(), "", "  ")
			if err != nil {
				return fmt.Errorf("generate JSON schema: %w", err)
			}

			err = os.WriteFile(outFile, append(data, '\n'), 0o600)
			if err != nil {
				return fmt.Errorf("write schema file: %w", err)
			}

			return nil
		},
	}
	cmd.Flags().StringVarP(&outFile, "out-file", "o", config.SchemaFileName, "output file for the generated schema")

	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
