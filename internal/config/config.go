package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

type Config struct {
	Paths    PathsConfig   `mapstructure:"paths"`
	Runtime  RuntimeConfig `mapstructure:"runtime"`
	Server   ServerConfig  `mapstructure:"server"`
	TTS      TTSConfig     `mapstructure:"tts"`
	LogLevel string        `mapstructure:"log_level"`
}

type PathsConfig struct {
	ModelPath      string `mapstructure:"model_path"`
	VoicePath      string `mapstructure:"voice_path"`
	VoicesManifest string `mapstructure:"voices_manifest"`
}

type RuntimeConfig struct {
	ORTLibraryPath string `mapstructure:"ort_library_path"`
	ORTVersion     string `mapstructure:"ort_version"`
}

type ServerConfig struct {
	ListenAddr      string `mapstructure:"listen_addr"`
	MaxTextBytes    int    `mapstructure:"max_text_bytes"`
	RequestTimeout  int    `mapstructure:"request_timeout"`
	ShutdownTimeout int    `mapstructure:"shutdown_timeout"`
}

type TTSConfig struct {
	Lang           string  `mapstructure:"lang"`
	Speed          float64 `mapstructure:"speed"`
	MaxChunkTokens int     `mapstructure:"max_chunk_tokens"`
	TrimSamples    int     `mapstructure:"trim_samples"`
	PhonemizerCmd  string  `mapstructure:"phonemizer_cmd"`
}

type LoadOptions struct {
	Cmd        flagBinder
	ConfigFile string
	Defaults   Config
}

type flagBinder interface {
	Flags() *pflag.FlagSet
}

// flagKeys maps CLI flag names to their dotted config keys.
var flagKeys = map[string]string{
	"paths-model-path":         "paths.model_path",
	"paths-voice-path":         "paths.voice_path",
	"paths-voices-manifest":    "paths.voices_manifest",
	"runtime-ort-library-path": "runtime.ort_library_path",
	"ort-lib":                  "runtime.ort_library_path",
	"runtime-ort-version":      "runtime.ort_version",
	"server-listen-addr":       "server.listen_addr",
	"server-max-text-bytes":    "server.max_text_bytes",
	"server-request-timeout":   "server.request_timeout",
	"server-shutdown-timeout":  "server.shutdown_timeout",
	"tts-lang":                 "tts.lang",
	"tts-speed":                "tts.speed",
	"max-chunk-tokens":         "tts.max_chunk_tokens",
	"trim-samples":             "tts.trim_samples",
	"phonemizer-cmd":           "tts.phonemizer_cmd",
	"log-level":                "log_level",
}

func DefaultConfig() Config {
	return Config{
		Paths: PathsConfig{
			ModelPath:      "models/kokoro-v0_19.onnx",
			VoicePath:      "voices/af.npy",
			VoicesManifest: "voices/manifest.json",
		},
		Runtime: RuntimeConfig{
			ORTLibraryPath: "",
			ORTVersion:     "",
		},
		Server: ServerConfig{
			ListenAddr:      ":8080",
			MaxTextBytes:    4096,
			RequestTimeout:  60,
			ShutdownTimeout: 30,
		},
		TTS: TTSConfig{
			Lang:           "en-us",
			Speed:          1.0,
			MaxChunkTokens: 150,
			TrimSamples:    240,
			PhonemizerCmd:  "espeak-ng",
		},
		LogLevel: "info",
	}
}

func RegisterFlags(fs *pflag.FlagSet, defaults Config) {
	fs.String("paths-model-path", defaults.Paths.ModelPath, "Path to the Kokoro ONNX model")
	fs.String("paths-voice-path", defaults.Paths.VoicePath, "Path to the voicepack (.npy or raw float32 .bin)")
	fs.String("paths-voices-manifest", defaults.Paths.VoicesManifest, "Path to the voice manifest JSON")
	fs.String("runtime-ort-library-path", defaults.Runtime.ORTLibraryPath, "Path to ONNX Runtime shared library")
	fs.String("ort-lib", defaults.Runtime.ORTLibraryPath, "Path to ONNX Runtime shared library (alias for --runtime-ort-library-path)")
	fs.String("runtime-ort-version", defaults.Runtime.ORTVersion, "Expected ONNX Runtime version")
	fs.String("server-listen-addr", defaults.Server.ListenAddr, "HTTP listen address")
	fs.Int("server-max-text-bytes", defaults.Server.MaxTextBytes, "Maximum text size accepted by POST /tts")
	fs.Int("server-request-timeout", defaults.Server.RequestTimeout, "Per-request synthesis timeout in seconds")
	fs.Int("server-shutdown-timeout", defaults.Server.ShutdownTimeout, "Graceful shutdown drain period in seconds")
	fs.String("tts-lang", defaults.TTS.Lang, "Default phonemizer locale")
	fs.Float64("tts-speed", defaults.TTS.Speed, "Default speech speed multiplier")
	fs.Int("max-chunk-tokens", defaults.TTS.MaxChunkTokens, "Maximum tokens per inference call")
	fs.Int("trim-samples", defaults.TTS.TrimSamples, "Trailing samples trimmed from every chunk except the last")
	fs.String("phonemizer-cmd", defaults.TTS.PhonemizerCmd, "espeak-ng command line used for phonemization")
	fs.String("log-level", defaults.LogLevel, "Log level (debug|info|warn|error)")
}

func Load(opts LoadOptions) (Config, error) {
	v := viper.New()

	setDefaults(v, opts.Defaults)
	if opts.Cmd != nil {
		if err := bindFlags(v, opts.Cmd.Flags()); err != nil {
			return Config{}, err
		}
	}

	v.SetEnvPrefix("KOKOROTTS")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	if err := v.BindEnv("runtime.ort_library_path", "KOKOROTTS_ORT_LIB", "ORT_LIBRARY_PATH"); err != nil {
		return Config{}, fmt.Errorf("bind ort env vars: %w", err)
	}
	v.AutomaticEnv()

	if opts.ConfigFile != "" {
		v.SetConfigFile(opts.ConfigFile)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
	} else {
		v.SetConfigName("kokorotts")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return Config{}, fmt.Errorf("read config file: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}

	return cfg, nil
}

// Validate rejects values the synthesis pipeline cannot run with.
func (c Config) Validate() error {
	if strings.TrimSpace(c.Paths.ModelPath) == "" {
		return errors.New("paths.model_path is required")
	}
	if strings.TrimSpace(c.Paths.VoicePath) == "" {
		return errors.New("paths.voice_path is required")
	}
	if c.TTS.MaxChunkTokens < 1 {
		return fmt.Errorf("tts.max_chunk_tokens must be >= 1, got %d", c.TTS.MaxChunkTokens)
	}
	if c.TTS.TrimSamples < 0 {
		return fmt.Errorf("tts.trim_samples must be >= 0, got %d", c.TTS.TrimSamples)
	}
	if c.TTS.Speed <= 0 {
		return fmt.Errorf("tts.speed must be > 0, got %v", c.TTS.Speed)
	}
	return nil
}

func setDefaults(v *viper.Viper, c Config) {
	v.SetDefault("paths.model_path", c.Paths.ModelPath)
	v.SetDefault("paths.voice_path", c.Paths.VoicePath)
	v.SetDefault("paths.voices_manifest", c.Paths.VoicesManifest)
	v.SetDefault("runtime.ort_library_path", c.Runtime.ORTLibraryPath)
	v.SetDefault("runtime.ort_version", c.Runtime.ORTVersion)
	v.SetDefault("server.listen_addr", c.Server.ListenAddr)
	v.SetDefault("server.max_text_bytes", c.Server.MaxTextBytes)
	v.SetDefault("server.request_timeout", c.Server.RequestTimeout)
	v.SetDefault("server.shutdown_timeout", c.Server.ShutdownTimeout)
	v.SetDefault("tts.lang", c.TTS.Lang)
	v.SetDefault("tts.speed", c.TTS.Speed)
	v.SetDefault("tts.max_chunk_tokens", c.TTS.MaxChunkTokens)
	v.SetDefault("tts.trim_samples", c.TTS.TrimSamples)
	v.SetDefault("tts.phonemizer_cmd", c.TTS.PhonemizerCmd)
	v.SetDefault("log_level", c.LogLevel)
}

// bindFlags binds every known flag present in fs to its dotted key. Flags
// that were not set on the command line keep lower-precedence sources
// (env, config file) in effect.
func bindFlags(v *viper.Viper, fs *pflag.FlagSet) error {
	var bindErr error
	fs.VisitAll(func(f *pflag.Flag) {
		key, ok := flagKeys[f.Name]
		if !ok || bindErr != nil || f.Name == "ort-lib" {
			return
		}
		if err := v.BindPFlag(key, f); err != nil {
			bindErr = fmt.Errorf("bind flag %q: %w", f.Name, err)
		}
	})
	if bindErr != nil {
		return bindErr
	}

	// --ort-lib only wins when the long form was not given explicitly.
	alias := fs.Lookup("ort-lib")
	if alias == nil || !alias.Changed {
		return nil
	}
	if long := fs.Lookup("runtime-ort-library-path"); long != nil && long.Changed {
		return nil
	}
	if err := v.BindPFlag(flagKeys["ort-lib"], alias); err != nil {
		return fmt.Errorf("bind flag %q: %w", alias.Name, err)
	}
	return nil
}
