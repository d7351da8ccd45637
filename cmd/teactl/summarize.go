package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tea-analyzer/client/internal/backend"
)

func newSummarizeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "summarize <session-id>",
		Short: "Generate metadata or a summary for a session",
		Args:  cobra.ExactArgs(1),
		RunE:  runSummarizeCmd,
	}
	cmd.Flags().String("hint", "", "prompt to pass to the summarizer")
	return cmd
}

func runSummarizeCmd(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	hint, _ := cmd.Flags().GetString("hint")
	api := backend.New(cfg.BackendBase)

	resp, err := api.GenerateMetadata(cmd.Context(), args[0], hint)
	if err != nil {
		return err
	}
	for key, value := range resp.Metadata {
		fmt.Printf("%s: %v\n", key, value)
	}
	return nil
}
