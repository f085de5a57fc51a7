package cmd

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	contractx "github.com/tanpawarit/odoo-assistant/agent/contract"
	auditx "github.com/tanpawarit/odoo-assistant/pkg/audit"
	configx "github.com/tanpawarit/odoo-assistant/pkg/config"
)

func newAuditCmd() *cobra.Command {
	var (
		domain string
		limit  int
	)

	cmd := &cobra.Command{
		Use:   "audit",
		Short: "List the latest recorded actions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			d, err := auditDomain(domain)
			if err != nil {
				return err
			}
			cfg, err := configx.New[auditx.Config]("AUDIT")
			if err != nil {
				return fmt.Errorf("load audit config: %w", err)
			}
			if !cfg.Enabled() {
				return fmt.Errorf("%w: AUDIT_DSN is not set", contractx.ErrValidation)
			}

			store, err := auditx.Open(cmd.Context(), *cfg)
			if err != nil {
				return err
			}
			defer store.Close()

			records, err := store.Recent(cmd.Context(), d, limit)
			if err != nil {
				return err
			}
			return writeAuditTable(cmd.OutOrStdout(), records)
		},
	}
	cmd.Flags().StringVar(&domain, "domain", "", "only show actions of this domain (crm or accounting)")
	cmd.Flags().IntVar(&limit, "limit", 20, "maximum number of records")

	return cmd
}

func auditDomain(raw string) (contractx.Domain, error) {
	d := contractx.ParseDomain(raw)
	switch d {
	case "", contractx.DomainCRM, contractx.DomainAccounting:
		return d, nil
	}
	return "", fmt.Errorf("%w: unknown domain %q", contractx.ErrValidation, raw)
}

func writeAuditTable(w io.Writer, records []auditx.ActionRecord) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "TIME\tDOMAIN\tACTION\tSTATUS\tERROR")
	for _, r := range records {
		status := "ok"
		if r.Failed {
			status = "failed"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
			r.CreatedAt.UTC().Format(time.RFC3339), r.Domain, r.Action, status, r.Error)
	}
	return tw.Flush()
}
