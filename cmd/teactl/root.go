package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/tea-analyzer/client/internal/backend"
	"github.com/tea-analyzer/client/internal/config"
	"github.com/tea-analyzer/client/internal/conn"
	"github.com/tea-analyzer/client/internal/db"
	"github.com/tea-analyzer/client/internal/pool"
	"github.com/tea-analyzer/client/internal/transport"
)

func execute() {
	rootCmd := &cobra.Command{
		Use:   "teactl",
		Short: "Client for the tea-tool analysis backend",
	}

	rootCmd.PersistentFlags().StringP("config", "c", "", "path to config file")
	rootCmd.PersistentFlags().String("backend", "", "backend base URL")
	rootCmd.PersistentFlags().String("agent", "", "agent key (analyze|summary)")
	rootCmd.PersistentFlags().String("user", "", "user id")
	rootCmd.PersistentFlags().String("session", "", "session id to reuse")
	rootCmd.PersistentFlags().String("transport", "ws", "transport channel (ws|sse)")

	rootCmd.AddCommand(newConnectCmd())
	rootCmd.AddCommand(newStreamCmd())
	rootCmd.AddCommand(newSessionsCmd())
	rootCmd.AddCommand(newSummarizeCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

// loadConfig loads the config file, folding flag overrides on top.
func loadConfig(cmd *cobra.Command) (config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	if path == "" {
		path = config.DefaultPath()
	}

	cfg, err := config.LoadOrCreate(path)
	if err != nil {
		return cfg, err
	}

	if v, _ := cmd.Flags().GetString("backend"); v != "" {
		cfg.BackendBase = v
	}
	if v, _ := cmd.Flags().GetString("agent"); v != "" {
		cfg.Agent = v
	}
	if v, _ := cmd.Flags().GetString("user"); v != "" {
		cfg.UserID = v
	}
	if cfg.UserID == "" {
		return cfg, fmt.Errorf("no user id configured; pass --user or set user_id in %s", path)
	}
	return cfg, nil
}

// openStore initializes the pool database under the data directory.
func openStore(cfg config.Config) (*pool.Store, func(), error) {
	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return nil, nil, fmt.Errorf("failed to create data dir: %w", err)
	}

	database, err := db.InitDB(cfg.DBPath())
	if err != nil {
		return nil, nil, err
	}

	store := pool.NewStore(database, pool.Options{
		MaxSize:     cfg.Pool.MaxSize,
		IdleTimeout: minutes(cfg.Pool.IdleTimeoutMinutes),
	})
	return store, func() { db.CloseDB() }, nil
}

// newManager wires the store, backend client, and connection manager.
func newManager(cfg config.Config) (*conn.Manager, *backend.Client, func(), error) {
	store, cleanup, err := openStore(cfg)
	if err != nil {
		return nil, nil, nil, err
	}
	api := backend.New(cfg.BackendBase)
	return conn.NewManager(store, api, conn.Config{}), api, cleanup, nil
}

// newChannel builds the requested transport channel for a connection.
func newChannel(cmd *cobra.Command, cfg config.Config, api *backend.Client, connectionID string) (transport.Channel, error) {
	kind, _ := cmd.Flags().GetString("transport")
	switch kind {
	case "ws":
		return transport.NewWebSocket(api.WebSocketURL(cfg.Agent, connectionID), cfg.Language), nil
	case "sse":
		return transport.NewSSE(api, cfg.Agent, connectionID, cfg.Language), nil
	}
	return nil, fmt.Errorf("unknown transport %q (want ws or sse)", kind)
}

func minutes(m int) time.Duration {
	return time.Duration(m) * time.Minute
}
