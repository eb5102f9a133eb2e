package main

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/example/go-kokoro-tts/internal/config"
	"github.com/example/go-kokoro-tts/internal/doctor"
	"github.com/example/go-kokoro-tts/internal/onnx"
	"github.com/example/go-kokoro-tts/internal/phoneme"
	"github.com/example/go-kokoro-tts/internal/tts"
)

func newDoctorCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Run local runtime, model and voice checks",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := requireConfig()
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			result := doctor.Run(doctorConfig(cmd.Context(), cfg), out)

			if err := cfg.Validate(); err != nil {
				result.AddFailure(fmt.Sprintf("config: %v", err))
				_, _ = fmt.Fprintf(out, "%s config: %v\n", doctor.FailMark, err)
			}

			if result.Failed() {
				for _, f := range result.Failures() {
					_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "FAIL: %s\n", f)
				}

				return errors.New("doctor checks failed")
			}

			_, _ = fmt.Fprintln(out, "doctor checks passed")

			return nil
		},
	}

	return cmd
}

func doctorConfig(ctx context.Context, cfg config.Config) doctor.Config {
	return doctor.Config{
		EspeakVersion: func() (string, error) {
			espeak, err := phoneme.NewEspeak(cfg.TTS.PhonemizerCmd)
			if err != nil {
				return "", err
			}

			ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()

			return espeak.Version(ctx)
		},
		RuntimeLibrary: func() (string, error) {
			info, err := onnx.DetectRuntime(cfg.Runtime)
			if err != nil {
				return "", err
			}

			return fmt.Sprintf("%s (%s)", info.LibraryPath, info.Version), nil
		},
		ModelPath:  cfg.Paths.ModelPath,
		VoiceFiles: collectVoiceFiles(cfg),
	}
}

// collectVoiceFiles returns the configured default voicepack followed by
// every manifest voice, resolved relative to the manifest directory.
func collectVoiceFiles(cfg config.Config) []string {
	var paths []string
	if cfg.Paths.VoicePath != "" {
		paths = append(paths, cfg.Paths.VoicePath)
	}

	vm, err := tts.NewVoiceManager(cfg.Paths.VoicesManifest)
	if err != nil {
		return paths
	}

	for _, v := range vm.ListVoices() {
		resolved, err := vm.ResolvePath(v.ID)
		if err != nil {
			// Keep the raw path so the check reports the missing file.
			paths = append(paths, v.Path)
			continue
		}

		if abs, err := filepath.Abs(resolved); err == nil {
			resolved = abs
		}

		paths = append(paths, resolved)
	}

	return paths
}
