package main

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/example/go-kokoro-tts/internal/config"
	"github.com/example/go-kokoro-tts/internal/server"
	"github.com/example/go-kokoro-tts/internal/tts"
)

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the Kokoro TTS HTTP server",
		RunE: func(_ *cobra.Command, _ []string) error {
			cfg, err := requireConfig()
			if err != nil {
				return err
			}

			if err := cfg.Validate(); err != nil {
				return err
			}

			voices, err := loadVoiceManager(cfg)
			if err != nil {
				return err
			}

			svc, err := tts.NewServiceFromConfig(cfg)
			if err != nil {
				return err
			}
			defer svc.Close()

			srv := server.New(cfg, svc, voices).
				WithShutdownTimeout(time.Duration(cfg.Server.ShutdownTimeout) * time.Second)

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			return srv.Start(ctx)
		},
	}

	return cmd
}

// loadVoiceManager opens the voice manifest. A missing manifest is not an
// error: the server then only serves the configured default voice.
func loadVoiceManager(cfg config.Config) (*tts.VoiceManager, error) {
	if cfg.Paths.VoicesManifest == "" {
		return nil, nil
	}

	vm, err := tts.NewVoiceManager(cfg.Paths.VoicesManifest)
	if errors.Is(err, fs.ErrNotExist) {
		slog.Warn("voice manifest not found, serving default voice only", "path", cfg.Paths.VoicesManifest)
		return nil, nil
	}

	return vm, err
}
