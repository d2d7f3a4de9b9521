package main

import (
	"context"
	"errors"
	"time"

	"github.com/rahul/workdesk/internal/gateway"
	"github.com/rahul/workdesk/internal/observability"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const heartbeatInterval = 30 * time.Second

func newServeCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the chat gateways and the metrics endpoint",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := opts.cfg
			a, err := newApp(cfg, opts.logger, true)
			if err != nil {
				return err
			}
			defer a.Close()

			var messengers []gateway.Messenger
			if tg, ok := cfg.GetTelegramConfig(); ok {
				gw, err := gateway.NewTelegramGateway(tg.Token, a.orchestrator, opts.logger)
				if err != nil {
					return err
				}
				messengers = append(messengers, gw)
			}
			if len(messengers) == 0 && !cfg.Metrics.Enabled {
				return errors.New("nothing to serve: enable the telegram gateway or the metrics endpoint")
			}

			g, ctx := errgroup.WithContext(cmd.Context())
			for _, m := range messengers {
				g.Go(func() error { return m.Start(ctx) })
			}
			if cfg.Metrics.Enabled {
				opts.logger.Zap().Info("metrics listening", zap.String("address", cfg.Metrics.Address))
				g.Go(func() error {
					return observability.ServeMetrics(ctx, cfg.Metrics.Address, a.registry)
				})
			}
			g.Go(func() error {
				heartbeat(ctx, heartbeatInterval)
				return nil
			})

			opts.logger.Zap().Info("workdesk serving", zap.Int("gateways", len(messengers)))
			err = g.Wait()
			opts.logger.Zap().Info("workdesk stopped")
			return err
		},
	}
}

func heartbeat(ctx context.Context, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			observability.Heartbeat()
		}
	}
}
