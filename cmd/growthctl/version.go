package main

import (
	"encoding/json"
	"fmt"
	"runtime"

	"github.com/spf13/cobra"
)

func newVersionCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:         "version",
		Short:       "Print version information",
		Args:        cobra.NoArgs,
		Annotations: map[string]string{noSetup: "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			short, _ := cmd.Flags().GetBool("short")
			jsonOutput, _ := cmd.Flags().GetBool("json")
			w := cmd.OutOrStdout()

			if short {
				fmt.Fprintln(w, version)
				return nil
			}
			if jsonOutput {
				enc := json.NewEncoder(w)
				enc.SetIndent("", "  ")
				return enc.Encode(map[string]string{
					"version":   version,
					"commit":    commit,
					"built":     buildTime,
					"goVersion": runtime.Version(),
					"platform":  runtime.GOOS + "/" + runtime.GOARCH,
				})
			}
			fmt.Fprintf(w, "growthctl version %s\n", version)
			fmt.Fprintf(w, "  commit:     %s\n", commit)
			fmt.Fprintf(w, "  built:      %s\n", buildTime)
			fmt.Fprintf(w, "  go version: %s\n", runtime.Version())
			fmt.Fprintf(w, "  platform:   %s/%s\n", runtime.GOOS, runtime.GOARCH)
			return nil
		},
	}
	cmd.Flags().Bool("short", false, "print version string only")
	return cmd
}
