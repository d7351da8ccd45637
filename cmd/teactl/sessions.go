package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

func newSessionsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sessions",
		Short: "Inspect and clear pooled connections",
	}
	cmd.AddCommand(newSessionsListCmd())
	cmd.AddCommand(newSessionsClearCmd())
	cmd.AddCommand(newSessionsStatsCmd())
	return cmd
}

func newSessionsListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List pooled connections",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			store, cleanup, err := openStore(cfg)
			if err != nil {
				return err
			}
			defer cleanup()

			records := store.List(cmd.Context())
			if len(records) == 0 {
				fmt.Println("No pooled connections.")
				return nil
			}
			for _, rec := range records {
				state := "active"
				if !rec.IsActive {
					state = "inactive"
				}
				fmt.Printf("%s  session=%s  agent=%s  user=%s  %s  last used %s\n",
					rec.ConnectionID, rec.SessionID, rec.Agent, rec.UserID, state,
					rec.LastUsed.Format(time.RFC3339))
			}
			return nil
		},
	}
}

func newSessionsClearCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Remove pooled connections for the configured user",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			store, cleanup, err := openStore(cfg)
			if err != nil {
				return err
			}
			defer cleanup()

			if all, _ := cmd.Flags().GetBool("all"); all {
				store.ClearAll(cmd.Context())
				fmt.Println("Cleared the entire pool.")
				return nil
			}
			store.ClearForUser(cmd.Context(), cfg.UserID)
			fmt.Printf("Cleared pooled connections for %s.\n", cfg.UserID)
			return nil
		},
	}
	cmd.Flags().Bool("all", false, "clear the whole pool, not just this user")
	return cmd
}

func newSessionsStatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show pool statistics for the configured user",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			store, cleanup, err := openStore(cfg)
			if err != nil {
				return err
			}
			defer cleanup()

			stats := store.Stats(cmd.Context(), cfg.UserID)
			fmt.Printf("total=%d active=%d agents=%v sessions=%v\n",
				stats.Total, stats.Active, stats.Agents, stats.Sessions)
			return nil
		},
	}
}
