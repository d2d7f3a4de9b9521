package main

import (
	"github.com/rahul/workdesk/internal/observability"
	"github.com/rahul/workdesk/pkg/config"
	"github.com/spf13/cobra"
)

// rootOptions carries what PersistentPreRunE resolves to the subcommands.
type rootOptions struct {
	configPath string
	cfg        *config.Config
	logger     *observability.Logger
}

func (o *rootOptions) load() error {
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	o.cfg = cfg
	o.logger = observability.NewLogger(cfg.Logger)
	return nil
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:           "workdesk",
		Short:         "Workdesk plans, searches your documents and acts on them.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return opts.load()
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if opts.logger != nil {
				_ = opts.logger.Sync()
			}
		},
	}
	cmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "config file (default is ./workdesk.yaml)")

	cmd.AddCommand(
		newAskCmd(opts),
		newREPLCmd(opts),
		newIngestCmd(opts),
		newDocumentsCmd(opts),
		newSearchCmd(opts),
		newServeCmd(opts),
		newConfigCmd(opts),
	)
	return cmd
}
