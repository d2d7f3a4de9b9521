package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/rahul/workdesk/internal/agent"
	"github.com/spf13/cobra"
)

var errQueryFailed = errors.New("query failed")

func newAskCmd(opts *rootOptions) *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "ask <query>",
		Short: "Plan and run a single query",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if output != "text" && output != "json" {
				return fmt.Errorf("unsupported output format %q", output)
			}
			a, err := newApp(opts.cfg, opts.logger, true)
			if err != nil {
				return err
			}
			defer a.Close()

			res := a.orchestrator.ProcessQuery(cmd.Context(), strings.Join(args, " "))
			if output == "json" {
				if err := encode(cmd.OutOrStdout(), "json", res); err != nil {
					return err
				}
			} else {
				fmt.Fprint(cmd.OutOrStdout(), agent.Describe(res))
			}
			if !res.Success {
				return errQueryFailed
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "text", "output format: text or json")
	return cmd
}
