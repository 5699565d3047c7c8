package main

import (
	"github.com/spf13/cobra"

	"github.com/lborres/warden/services"
)

// NewPurgeSessionsCmd creates the purge-sessions subcommand.
func NewPurgeSessionsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "purge-sessions",
		Short: "Delete expired sessions once and exit",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := loadConfig(cmd)
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			st, err := openStores(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer st.Close()

			manager := services.NewSessionManager(cfg.SessionSettings(), st.sessions, nil,
				services.WithSessionLogger(logger))
			n, err := manager.PurgeExpired(ctx)
			if err != nil {
				return err
			}

			cmd.Printf("purged %d expired sessions\n", n)
			return nil
		},
	}
}
