package main

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/example/go-kokoro-tts/internal/model"
)

func newModelCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "model",
		Short: "Model acquisition commands",
	}

	cmd.AddCommand(newModelDownloadCmd())

	return cmd
}

func newModelDownloadCmd() *cobra.Command {
	var (
		manifest string
		outDir   string
		sha      string
		baseURL  string
	)

	cmd := &cobra.Command{
		Use:   "download",
		Short: "Download the Kokoro ONNX model",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if outDir == "" {
				cfg, err := requireConfig()
				if err != nil {
					return err
				}

				outDir = filepath.Dir(cfg.Paths.ModelPath)
			}

			err := model.Download(cmd.Context(), model.DownloadOptions{
				Manifest: manifest,
				OutDir:   outDir,
				SHA256:   sha,
				BaseURL:  baseURL,
				Stdout:   cmd.OutOrStdout(),
			})
			if err != nil {
				return fmt.Errorf("model download failed: %w", err)
			}

			return nil
		},
	}

	cmd.Flags().StringVar(&manifest, "manifest", "kokoro-v0_19", "Pinned release to download")
	cmd.Flags().StringVar(&outDir, "out-dir", "", "Directory where model files are stored (default: directory of paths.model_path)")
	cmd.Flags().StringVar(&sha, "sha256", "", "Expected SHA-256 of the model file")
	cmd.Flags().StringVar(&baseURL, "base-url", "", "Mirror URL replacing the release download prefix")

	return cmd
}
