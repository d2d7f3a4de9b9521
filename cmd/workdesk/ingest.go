package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/rahul/workdesk/internal/retrieval"
	"github.com/spf13/cobra"
	"go.uber.org/multierr"
)

func newIngestCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "ingest [file|dir|url]...",
		Short: "Add documents to the index (defaults to the workspace directory)",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(opts.cfg, opts.logger, false)
			if err != nil {
				return err
			}
			defer a.Close()

			targets := args
			if len(targets) == 0 {
				targets = []string{opts.cfg.App.Workspace}
			}

			ctx := cmd.Context()
			out := cmd.OutOrStdout()
			var errs error
			for _, target := range targets {
				if strings.HasPrefix(target, "http://") || strings.HasPrefix(target, "https://") {
					doc, err := a.ingester.AddURL(ctx, target)
					errs = multierr.Append(errs, report(out, target, []retrieval.DocumentInfo{doc}, err))
					continue
				}
				info, err := os.Stat(target)
				if err != nil {
					errs = multierr.Append(errs, report(out, target, nil, err))
					continue
				}
				if info.IsDir() {
					docs, err := a.ingester.AddDirectory(ctx, target)
					errs = multierr.Append(errs, report(out, target, docs, err))
					continue
				}
				doc, err := a.ingester.AddFile(ctx, target)
				errs = multierr.Append(errs, report(out, target, []retrieval.DocumentInfo{doc}, err))
			}
			return errs
		},
	}
}

func report(out io.Writer, target string, docs []retrieval.DocumentInfo, err error) error {
	for _, d := range docs {
		if d.Filename != "" {
			fmt.Fprintf(out, "✅ Added %s (%d chunks)\n", d.Filename, d.ChunkCount)
		}
	}
	if err != nil {
		fmt.Fprintf(out, "❌ %s: %v\n", target, err)
		return fmt.Errorf("ingest %s: %w", target, err)
	}
	return nil
}
