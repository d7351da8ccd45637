package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/tea-analyzer/client/internal/chat"
	"github.com/tea-analyzer/client/internal/model"
	"github.com/tea-analyzer/client/internal/transport"
)

func newConnectCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "connect",
		Short: "Open a live channel and chat with the analyzer",
		Args:  cobra.NoArgs,
		RunE:  runConnectCmd,
	}
	cmd.Flags().Bool("new", false, "force a new backend session instead of reusing the pool")
	cmd.Flags().Bool("summarize", false, "summarize the transcript on exit")
	return cmd
}

func runConnectCmd(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	mgr, api, cleanup, err := newManager(cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	ctx := cmd.Context()
	forceNew, _ := cmd.Flags().GetBool("new")
	sessionID, _ := cmd.Flags().GetString("session")

	if forceNew {
		mgr.ForceDisconnectAll(ctx)
	}

	result, err := mgr.Acquire(ctx, cfg.Agent, cfg.UserID, sessionID, forceNew)
	if err != nil {
		return err
	}
	if result.Reused {
		fmt.Printf("Reusing connection %s (session %s)\n", result.Connection.ConnectionID, result.Connection.SessionID)
	} else {
		fmt.Printf("Connection created: %s (session %s)\n", result.Connection.ConnectionID, result.Connection.SessionID)
	}

	channel, err := newChannel(cmd, cfg, api, result.Connection.ConnectionID)
	if err != nil {
		return err
	}
	if err := channel.Connect(ctx); err != nil {
		return fmt.Errorf("failed to open channel: %w", err)
	}
	mgr.Attach(channel)
	defer mgr.ForceDisconnectAll(context.Background())

	transcript := chat.NewTranscript(0)

	// Print inbound analysis messages as they arrive.
	go func() {
		for msg := range channel.Messages() {
			if msg.Event != "message" {
				continue
			}
			transcript.Append(model.RoleAssistant, msg.Data)
			fmt.Printf("<- %s\n", msg.Data)
		}
		fmt.Println("(channel closed)")
	}()

	fmt.Println("Type a message, '/mode <name>' to switch modes, or Ctrl-D to quit.")
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		if mode, ok := strings.CutPrefix(line, "/mode "); ok {
			if err := channel.SendMode(ctx, mode); err != nil {
				fmt.Printf("mode error: %v\n", err)
			}
			continue
		}

		transcript.Append(model.RoleUser, line)
		if err := channel.SendText(ctx, line); err != nil {
			fmt.Printf("send error: %v\n", err)
			if channel.State() == transport.StateClosed {
				break
			}
		}
	}

	if summarize, _ := cmd.Flags().GetBool("summarize"); summarize && transcript.Len() > 0 {
		resp, err := transcript.Summarize(ctx, api, result.Connection.SessionID)
		if err != nil {
			return fmt.Errorf("summarize failed: %w", err)
		}
		fmt.Printf("Summary: %v\n", resp.Metadata["summary"])
	}
	return nil
}
