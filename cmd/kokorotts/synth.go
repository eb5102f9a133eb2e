package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/example/go-kokoro-tts/internal/audio"
	"github.com/example/go-kokoro-tts/internal/config"
	"github.com/example/go-kokoro-tts/internal/tts"
)

type synthService interface {
	Generate(ctx context.Context, input, lang string, speed float32) (*tts.Result, error)
	Close()
}

var newSynthService = func(cfg config.Config) (synthService, error) {
	svc, err := tts.NewServiceFromConfig(cfg)
	if err != nil {
		return nil, err
	}

	return svc, nil
}

var stdoutIsTerminal = func() bool {
	fd := os.Stdout.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

type synthOptions struct {
	output string
	pipe   bool
	lang   string
	speed  float64
	model  string
	voice  string
}

func newSynthCmd() *cobra.Command {
	var opts synthOptions

	cmd := &cobra.Command{
		Use:   "synth <text>",
		Short: "Synthesize text to a WAV file or stdout",
		Long: "Synthesize text to a 24 kHz mono 16-bit WAV file.\n" +
			"Pass - as the text to read it from stdin.",
		Example: `  kokorotts synth "Hello world"
  kokorotts synth "Hello world" -o hello.wav
  kokorotts synth "Hello world" --pipe | aplay -`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := requireConfig()
			if err != nil {
				return err
			}

			input, err := readSynthText(args[0], cmd.InOrStdin())
			if err != nil {
				return err
			}

			if !cmd.Flags().Changed("speed") {
				opts.speed = 0
			}

			cfg, lang, err := applySynthOverrides(cfg, opts)
			if err != nil {
				return err
			}

			svc, err := newSynthService(cfg)
			if err != nil {
				return err
			}
			defer svc.Close()

			res, err := svc.Generate(cmd.Context(), input, lang, float32(cfg.TTS.Speed))
			if err != nil {
				return err
			}

			if opts.pipe {
				return writePCMStream(cmd.OutOrStdout(), res)
			}

			wav, err := audio.EncodePCM16WAV(res.PCM, res.SampleRate)
			if err != nil {
				return err
			}

			if err := os.WriteFile(opts.output, wav, 0o644); err != nil {
				return fmt.Errorf("write output: %w", err)
			}

			if stdoutIsTerminal() {
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), "Saved to:", opts.output)
			}

			return nil
		},
	}

	f := cmd.Flags()
	f.StringVarP(&opts.output, "output", "o", "output.wav", "Output WAV file")
	f.BoolVarP(&opts.pipe, "pipe", "p", false, "Write the WAV stream to stdout for piping")
	f.StringVarP(&opts.lang, "lang", "l", "", "Phonemizer locale (default from config, e.g. en-us)")
	f.Float64VarP(&opts.speed, "speed", "s", 1.0, "Speech speed multiplier")
	f.StringVarP(&opts.model, "model", "m", "", "Path to the ONNX model (overrides config)")
	f.StringVarP(&opts.voice, "voice", "v", "", "Voicepack path or voice ID from the manifest (overrides config)")

	return cmd
}

// readSynthText returns arg, or all of stdin when arg is "-".
func readSynthText(arg string, stdin io.Reader) (string, error) {
	if arg != "-" {
		return arg, nil
	}

	b, err := io.ReadAll(stdin)
	if err != nil {
		return "", fmt.Errorf("read stdin: %w", err)
	}

	return strings.TrimSpace(string(b)), nil
}

// applySynthOverrides folds command-line overrides into cfg and returns the
// locale to synthesize with. A voice that is not an existing file is looked
// up as an ID in the voice manifest.
func applySynthOverrides(cfg config.Config, opts synthOptions) (config.Config, string, error) {
	if opts.model != "" {
		cfg.Paths.ModelPath = opts.model
	}

	if opts.speed != 0 {
		cfg.TTS.Speed = opts.speed
	}

	lang := opts.lang

	if opts.voice != "" {
		path, voiceLang, err := resolveVoice(cfg.Paths.VoicesManifest, opts.voice)
		if err != nil {
			return cfg, "", err
		}

		cfg.Paths.VoicePath = path
		if lang == "" {
			lang = voiceLang
		}
	}

	if lang == "" {
		lang = cfg.TTS.Lang
	}

	if err := cfg.Validate(); err != nil {
		return cfg, "", err
	}

	return cfg, lang, nil
}

func resolveVoice(manifestPath, voice string) (path, lang string, err error) {
	if info, statErr := os.Stat(voice); statErr == nil && !info.IsDir() {
		return voice, "", nil
	}

	vm, err := tts.NewVoiceManager(manifestPath)
	if err != nil {
		return "", "", fmt.Errorf("voice %q is not a file and no manifest is available: %w", voice, err)
	}

	path, err = vm.ResolvePath(voice)
	if err != nil {
		return "", "", err
	}

	v, _ := vm.Lookup(voice)

	return path, v.Lang, nil
}

// writePCMStream writes res as a WAV stream: header first, then samples.
func writePCMStream(w io.Writer, res *tts.Result) error {
	bw := bufio.NewWriter(w)

	if _, err := audio.WriteWAVHeader(bw, res.SampleRate, len(res.PCM)); err != nil {
		return err
	}

	if _, err := audio.WritePCM16(bw, res.PCM); err != nil {
		return err
	}

	return bw.Flush()
}
