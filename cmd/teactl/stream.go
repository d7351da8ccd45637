package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/tea-analyzer/client/internal/frame"
)

func newStreamCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stream",
		Short: "Stream camera frames to the analyzer",
		Args:  cobra.NoArgs,
		RunE:  runStreamCmd,
	}
	cmd.Flags().String("source", "", "directory of image files to stream (default: synthetic pattern)")
	cmd.Flags().Int("fps", 0, "frames per second (1-15)")
	cmd.Flags().Float64("quality", 0, "JPEG quality (0.1-0.95)")
	cmd.Flags().Bool("new", false, "force a new backend session instead of reusing the pool")
	return cmd
}

func runStreamCmd(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	fps, _ := cmd.Flags().GetInt("fps")
	if fps == 0 {
		fps = cfg.Stream.FPS
	}
	quality, _ := cmd.Flags().GetFloat64("quality")
	if quality == 0 {
		quality = cfg.Stream.Quality
	}

	var source frame.Source
	if dir, _ := cmd.Flags().GetString("source"); dir != "" {
		source, err = frame.NewDirSource(dir)
		if err != nil {
			return err
		}
	} else {
		source = frame.NewPatternSource(640, 480)
	}

	mgr, api, cleanup, err := newManager(cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	ctx := cmd.Context()
	forceNew, _ := cmd.Flags().GetBool("new")
	sessionID, _ := cmd.Flags().GetString("session")

	result, err := mgr.Acquire(ctx, cfg.Agent, cfg.UserID, sessionID, forceNew)
	if err != nil {
		return err
	}
	fmt.Printf("Streaming on connection %s (session %s)\n", result.Connection.ConnectionID, result.Connection.SessionID)

	channel, err := newChannel(cmd, cfg, api, result.Connection.ConnectionID)
	if err != nil {
		return err
	}
	if err := channel.Connect(ctx); err != nil {
		return fmt.Errorf("failed to open channel: %w", err)
	}
	mgr.Attach(channel)
	defer mgr.ForceDisconnectAll(context.Background())

	go func() {
		for msg := range channel.Messages() {
			if msg.Event == "message" {
				fmt.Printf("<- %s\n", msg.Data)
			}
		}
	}()

	streamer := frame.NewStreamer(source, channel, fps, quality)
	if err := streamer.Start(ctx); err != nil {
		return err
	}
	defer streamer.Stop()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	fmt.Println("Stopping stream...")
	return nil
}
