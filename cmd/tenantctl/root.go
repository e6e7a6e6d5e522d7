package main

import (
	"context"
	"fmt"
	"slices"

	"github.com/spf13/cobra"

	"github.com/leeforge/tenantkit/config"
	"github.com/leeforge/tenantkit/host"
	"github.com/leeforge/tenantkit/logging"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	ConfigPath string
	Format     string // "json" | "text"
	Verbose    bool
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the tenantctl command tree.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:           "tenantctl",
		Short:         "Inspect tenantkit tenants",
		Long:          "Load, locate and resolve the tenants a tenantkit host serves.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !slices.Contains(ValidFormats, opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			return nil
		},
	}

	defaults := config.DefaultConfigOptions()
	cmd.PersistentFlags().StringVarP(&opts.ConfigPath, "config", "c", defaults.BasePath, "host configuration directory")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "log host activity")

	cmd.AddCommand(NewCheckCommand(opts))
	cmd.AddCommand(NewLocateCommand(opts))
	cmd.AddCommand(NewResolveCommand(opts))
	cmd.AddCommand(NewRoutesCommand(opts))
	cmd.AddCommand(NewSchemaCommand(opts))

	return cmd
}

// openHost loads the host configuration from opts.ConfigPath and builds
// the host. The caller closes it.
func openHost(ctx context.Context, opts *RootOptions) (*host.Host, error) {
	cfgOpts := config.DefaultConfigOptions()
	cfgOpts.BasePath = opts.ConfigPath
	_, cfg, err := config.LoadHost(cfgOpts)
	if err != nil {
		return nil, err
	}

	logger := logging.NewNop()
	if opts.Verbose {
		logger = logging.NewLogger(cfg.Logging)
	}
	return host.New(ctx, *cfg, host.WithLogger(logger))
}
