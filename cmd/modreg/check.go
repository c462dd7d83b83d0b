package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

func newCheckCmd() *cobra.Command {
	var manifestPath string

	cmd := &cobra.Command{
		Use:   "check",
		Short: "Apply a manifest and print every registered module",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			reg, catalog, err := applyManifest(ctx, manifestPath)
			if err != nil {
				return err
			}
			defer closeRegistry(ctx, reg)

			graph := reg.Graph()
			out := cmd.OutOrStdout()
			for _, node := range graph.Nodes {
				caps := make([]string, 0, len(node.Capabilities))
				for _, c := range node.Capabilities {
					if c != node.Module && c != "interface {}" {
						caps = append(caps, c)
					}
				}
				line := node.Module
				if len(caps) > 0 {
					line += " as " + strings.Join(caps, ", ")
				}
				fmt.Fprintln(out, line)
			}
			fmt.Fprintf(out, "%d modules registered from %d catalog names\n", len(graph.Nodes), len(catalog.Names()))
			return nil
		},
	}
	cmd.Flags().StringVarP(&manifestPath, "manifest", "m", "", "Manifest file (.yaml, .yml or .toml)")
	return cmd
}
