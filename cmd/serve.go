package cmd

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	configx "github.com/tanpawarit/odoo-assistant/pkg/config"
	"github.com/tanpawarit/odoo-assistant/server"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP and WebSocket API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			srvCfg, err := configx.New[server.Config]("")
			if err != nil {
				return fmt.Errorf("load server config: %w", err)
			}

			a, err := wireApp(ctx, true)
			if err != nil {
				return err
			}
			defer a.Close()

			if a.index != nil {
				if a.indexCreated || indexEmpty(ctx, a) {
					if _, err := ingestDocs(ctx, a); err != nil {
						log.Warn().Err(err).Msg("initial ingestion failed; serving without documents")
					}
				}
				if a.cfg.IngestSchedule != "" {
					c, err := scheduleIngest(ctx, a)
					if err != nil {
						return err
					}
					c.Start()
					defer func() { <-c.Stop().Done() }()
				}
			}

			srv, err := server.New(*srvCfg, a.serverDeps())
			if err != nil {
				return err
			}
			return srv.ListenAndServe(ctx)
		},
	}
}

func indexEmpty(ctx context.Context, a *app) bool {
	n, err := a.index.Count(ctx)
	return err == nil && n == 0
}

// scheduleIngest re-reads DOCS_PATH on INGEST_SCHEDULE. Runs never overlap.
func scheduleIngest(ctx context.Context, a *app) (*cron.Cron, error) {
	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))
	_, err := c.AddFunc(a.cfg.IngestSchedule, func() {
		if _, err := ingestDocs(ctx, a); err != nil {
			log.Error().Err(err).Msg("scheduled ingestion failed")
		}
	})
	if err != nil {
		return nil, fmt.Errorf("invalid INGEST_SCHEDULE %q: %w", a.cfg.IngestSchedule, err)
	}
	log.Info().Str("schedule", a.cfg.IngestSchedule).Msg("document re-ingestion scheduled")
	return c, nil
}
