package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/midorin-Linux/discord-parrot/pkg/channels"
	"github.com/midorin-Linux/discord-parrot/pkg/config"
	"github.com/midorin-Linux/discord-parrot/pkg/dictionary"
	"github.com/midorin-Linux/discord-parrot/pkg/logger"
	"github.com/midorin-Linux/discord-parrot/pkg/playback"
	"github.com/midorin-Linux/discord-parrot/pkg/registry"
	"github.com/midorin-Linux/discord-parrot/pkg/voicevox"
)

var (
	version   = "dev"
	gitCommit string
)

func formatVersion() string {
	v := version
	if gitCommit != "" {
		v += fmt.Sprintf(" (git: %s)", gitCommit)
	}
	return v
}

func main() {
	var configPath string
	var debug bool

	rootCmd := &cobra.Command{
		Use:     "parrot",
		Short:   "Discord chat-to-speech relay bot backed by VOICEVOX",
		Version: formatVersion(),
		Args:    cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			return run(configPath, debug)
		},
	}

	rootCmd.Flags().StringVarP(&configPath, "config", "c", "config.json", "Path to the config file")
	rootCmd.Flags().BoolVarP(&debug, "debug", "d", false, "Enable debug logging")

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(configPath string, debug bool) error {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	if debug {
		logger.SetLevel(logger.DEBUG)
	} else {
		logger.SetLevel(logger.ParseLevel(cfg.LogLevel))
	}
	if cfg.LogFile != "" {
		if err := logger.EnableFileLogging(cfg.LogFile); err != nil {
			return fmt.Errorf("failed to enable file logging: %w", err)
		}
		defer logger.DisableFileLogging()
	}

	logger.InfoCF("main", "Starting parrot", map[string]any{
		"version": formatVersion(),
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store, err := registry.Open(cfg.Storage.DatabasePath)
	if err != nil {
		return fmt.Errorf("failed to open session registry: %w", err)
	}
	defer store.Close()

	// Voice connections never survive a restart, so stale bindings
	// from the previous run are dropped before the gateway opens.
	if err := store.PurgeAll(ctx); err != nil {
		return fmt.Errorf("failed to purge stale bindings: %w", err)
	}

	client, err := voicevox.NewClient(cfg.Voicevox.URL, time.Duration(cfg.Voicevox.RequestTimeoutSecs)*time.Second)
	if err != nil {
		return fmt.Errorf("failed to create voicevox client: %w", err)
	}

	orchestrator, err := playback.NewOrchestrator(client, cfg.Storage.ScratchDir, cfg.Voicevox.DefaultSpeakerID, cfg.Voicevox.DefaultSpeedScale)
	if err != nil {
		return fmt.Errorf("failed to create playback orchestrator: %w", err)
	}
	if err := orchestrator.SweepScratch(); err != nil {
		logger.WarnCF("main", "Failed to sweep scratch directory", map[string]any{
			"error": err.Error(),
		})
	}

	dict := dictionary.NewSynchronizer(client, cfg.Storage.SnapshotPath)
	if err := dict.Restore(ctx); err != nil {
		// A missing snapshot is the normal first-run state, and an
		// unreachable engine at boot should not keep the bot down.
		if errors.Is(err, os.ErrNotExist) {
			logger.InfoC("main", "No dictionary snapshot to restore")
		} else {
			logger.WarnCF("main", "Failed to restore dictionary snapshot", map[string]any{
				"error": err.Error(),
			})
		}
	} else {
		logger.InfoCF("main", "Dictionary snapshot restored", map[string]any{
			"snapshot": cfg.Storage.SnapshotPath,
		})
	}

	channel, err := channels.NewDiscordChannel(cfg.Discord, orchestrator, dict, store)
	if err != nil {
		return fmt.Errorf("failed to create discord channel: %w", err)
	}

	if err := channel.Start(ctx); err != nil {
		return fmt.Errorf("failed to start discord channel: %w", err)
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.InfoC("main", "Shutting down")
	cancel()

	if err := channel.Stop(context.Background()); err != nil {
		logger.ErrorCF("main", "Failed to stop discord channel", map[string]any{
			"error": err.Error(),
		})
	}

	return nil
}
