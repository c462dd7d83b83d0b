package main

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/chenyanchen/modreg"
	"github.com/chenyanchen/modreg/internal/demo"
	"github.com/chenyanchen/modreg/internal/logging"
	"github.com/chenyanchen/modreg/manifest"
)

// NewRootCmd builds the modreg command tree.
func NewRootCmd() *cobra.Command {
	var verbosity int

	rootCmd := &cobra.Command{
		Use:   "modreg",
		Short: "Inspect module registrations",
		Long: `modreg applies registration manifests to a module registry built from the
demo catalog, and prints the resulting modules or their dependency graph.`,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			logging.SetupLogger(verbosity)
			log.Debug().Str("command", cmd.Name()).Msg("Command started")
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().CountVarP(&verbosity, "verbose", "v", "Increase verbosity (-v INFO, -vv DEBUG, -vvv TRACE)")

	rootCmd.AddCommand(newListCmd())
	rootCmd.AddCommand(newCheckCmd())
	rootCmd.AddCommand(newGraphCmd())
	return rootCmd
}

func newListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List the module names a manifest can use",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			catalog := demo.Catalog()
			for _, name := range catalog.Names() {
				t, _ := catalog.Lookup(name)
				fmt.Fprintf(cmd.OutOrStdout(), "%-14s %s\n", name, t)
			}
			return nil
		},
	}
}

// applyManifest loads path and applies it to a fresh registry. The caller
// closes the registry.
func applyManifest(ctx context.Context, path string) (*modreg.Registry, *manifest.Catalog, error) {
	if path == "" {
		return nil, nil, fmt.Errorf("no manifest given, use --manifest")
	}
	m, err := manifest.Load(path)
	if err != nil {
		return nil, nil, err
	}

	catalog := demo.Catalog()
	reg := modreg.New(
		modreg.WithLogger(logging.GetLogger("registry")),
		modreg.WithFactory(demo.Factory()),
	)
	if err := m.Apply(ctx, reg, catalog); err != nil {
		if cerr := reg.Close(ctx); cerr != nil {
			log.Warn().Err(cerr).Msg("Failed to close registry")
		}
		return nil, nil, err
	}
	return reg, catalog, nil
}

func closeRegistry(ctx context.Context, reg *modreg.Registry) {
	if err := reg.Close(ctx); err != nil {
		log.Warn().Err(err).Msg("Failed to close registry")
	}
}
