package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	configx "github.com/tanpawarit/odoo-assistant/pkg/config"
	logx "github.com/tanpawarit/odoo-assistant/pkg/logger"
)

func Execute() error {
	return newRootCmd().Execute()
}

func newRootCmd() *cobra.Command {
	var envFile string

	rootCmd := &cobra.Command{
		Use:           "odoo-assistant",
		Short:         "Route Odoo questions to CRM and accounting agents",
		Long:          "odoo-assistant classifies each message into a business domain and lets that domain's agent answer it, searching and editing Odoo records on the way.",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
			if envFile == "" {
				return nil
			}
			configx.SetEnvFile(envFile)
			return reloadLogger()
		},
	}
	rootCmd.PersistentFlags().StringVar(&envFile, "env", "", "path to the .env file (default .env, or $ENV_FILE)")

	rootCmd.AddCommand(
		newServeCmd(),
		newIngestCmd(),
		newAskCmd(),
		newAuditCmd(),
	)

	return rootCmd
}

// reloadLogger re-reads LOG_* once --env has pointed configuration at a
// file; the autoload import ran before flags were parsed.
func reloadLogger() error {
	conf, err := configx.New[logx.Config]("LOG")
	if err != nil {
		return fmt.Errorf("load log config: %w", err)
	}
	logx.Init(*conf)
	return nil
}
