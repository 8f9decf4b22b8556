package main

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/robert-at-pretension-io/svdoc/internal/config"
)

func newInitCmd() *cobra.Command {
	var yamlFormat, force bool
	cmd := &cobra.Command{
		Use:   "init [dir]",
		Short: "Create a default svdoc configuration file",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := "svdoc.json"
			if yamlFormat {
				name = "svdoc.yaml"
			}
			configPath := filepath.Join(rootArg(args), name)
			out := cmd.OutOrStdout()

			if _, err := os.Stat(configPath); err == nil && !force {
				fmt.Fprintf(out, "Config file %s already exists. Overwrite? [y/N]: ", configPath)
				response, _ := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
				response = strings.TrimSpace(response)
				if response != "y" && response != "Y" {
					fmt.Fprintln(out, "Aborted.")
					return nil
				}
			}

			if err := config.DefaultConfig().Save(configPath); err != nil {
				return fmt.Errorf("creating config: %w", err)
			}

			fmt.Fprintf(out, "Created %s\n", configPath)
			fmt.Fprintln(out, "\nEdit this file to configure:")
			fmt.Fprintln(out, "  - Library file patterns")
			fmt.Fprintln(out, "  - Third-party library detection")
			fmt.Fprintln(out, "  - Output directory and format")
			fmt.Fprintln(out, "  - Diagnostic rule severities")
			return nil
		},
	}
	cmd.Flags().BoolVar(&yamlFormat, "yaml", false, "write svdoc.yaml instead of svdoc.json")
	cmd.Flags().BoolVarP(&force, "force", "f", false, "overwrite an existing file without asking")
	return cmd
}
