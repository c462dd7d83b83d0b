package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

func newGraphCmd() *cobra.Command {
	var (
		manifestPath string
		format       string
	)

	cmd := &cobra.Command{
		Use:   "graph",
		Short: "Apply a manifest and print the module dependency graph",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			switch format {
			case "dot", "mermaid", "yaml", "json":
			default:
				return fmt.Errorf("unsupported graph format %q (dot, mermaid, yaml, json)", format)
			}

			ctx := cmd.Context()
			reg, _, err := applyManifest(ctx, manifestPath)
			if err != nil {
				return err
			}
			defer closeRegistry(ctx, reg)

			graph := reg.Graph()
			out := cmd.OutOrStdout()
			switch format {
			case "dot":
				_, err = fmt.Fprint(out, graph.DOT())
			case "mermaid":
				_, err = fmt.Fprint(out, graph.Mermaid())
			case "yaml":
				enc := yaml.NewEncoder(out)
				enc.SetIndent(2)
				if err = enc.Encode(graph); err == nil {
					err = enc.Close()
				}
			case "json":
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				err = enc.Encode(graph)
			}
			return err
		},
	}
	cmd.Flags().StringVarP(&manifestPath, "manifest", "m", "", "Manifest file (.yaml, .yml or .toml)")
	cmd.Flags().StringVarP(&format, "format", "f", "dot", "Output format: dot, mermaid, yaml or json")
	return cmd
}
