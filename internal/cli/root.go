// Package cli implements the provedores command line
package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/alvarorichard/provedores/internal/config"
	"github.com/alvarorichard/provedores/internal/util"
	"github.com/alvarorichard/provedores/internal/version"
	"github.com/alvarorichard/provedores/pkg/provedores"
)

type options struct {
	debug      bool
	configPath string
	json       bool

	client *provedores.Client
}

// NewRootCommand builds the command tree
func NewRootCommand() *cobra.Command {
	opts := &options{}
	root := &cobra.Command{
		Use:           "provedores",
		Short:         "Busca e resolve streams de sites brasileiros de filmes, animes, séries e TV ao vivo",
		Version:       version.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return opts.setup(cmd)
		},
	}
	root.SetVersionTemplate(version.Info() + "\n")

	flags := root.PersistentFlags()
	flags.BoolVar(&opts.debug, "debug", false, "enable debug logging")
	flags.StringVar(&opts.configPath, "config", "", "path to provedores.toml")
	flags.BoolVar(&opts.json, "json", false, "print JSON instead of text")

	root.AddCommand(
		newListCommand(opts),
		newHomeCommand(opts),
		newSearchCommand(opts),
		newLoadCommand(opts),
		newLinksCommand(opts),
	)
	return root
}

func (o *options) setup(cmd *cobra.Command) error {
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return err
	}
	if o.debug {
		cfg.Debug = true
	}
	util.SetDebugMode(cfg.Debug)
	util.InitLoggerTo(cmd.ErrOrStderr())
	util.Debug("config loaded", "path", o.configPath, "providers", len(cfg.Providers))

	o.client = provedores.NewClientWithConfig(cfg)
	return nil
}

// Execute runs the command line and returns the process exit code
func Execute(ctx context.Context) int {
	if err := NewRootCommand().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, util.ErrorHandler(err))
		return 1
	}
	return 0
}
