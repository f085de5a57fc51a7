package cmd

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/tanpawarit/odoo-assistant/pkg/vectorindex"
)

func newIngestCmd() *cobra.Command {
	var docsPath string

	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Rebuild the document index from DOCS_PATH",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := wireIndex()
			if err != nil {
				return err
			}
			defer a.Close()

			if docsPath != "" {
				a.cfg.DocsPath = docsPath
			}
			report, err := ingestDocs(cmd.Context(), a)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "indexed %d passages from %d files in %s\n",
				report.Passages, report.Files, report.Duration.Round(1e6))
			return err
		},
	}
	cmd.Flags().StringVar(&docsPath, "docs", "", "documents directory (overrides DOCS_PATH)")

	return cmd
}

func ingestDocs(ctx context.Context, a *app) (vectorindex.IngestReport, error) {
	report, err := vectorindex.Ingest(ctx, a.index, a.cfg.DocsPath, a.cfg.splitter())
	if err != nil {
		return vectorindex.IngestReport{}, fmt.Errorf("ingest %s: %w", a.cfg.DocsPath, err)
	}
	log.Info().
		Str("docs", a.cfg.DocsPath).
		Int("files", report.Files).
		Int("passages", report.Passages).
		Dur("duration", report.Duration).
		Msg("documents ingested")
	return report, nil
}
