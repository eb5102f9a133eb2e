package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"runtime/debug"
	"strings"
	"time"

	"github.com/example/go-kokoro-tts/internal/config"
	"github.com/example/go-kokoro-tts/internal/tts"
)

// ParseLogLevel converts a case-insensitive level string to slog.Level.
// An empty string returns slog.LevelInfo. Unknown strings return an error.
func ParseLogLevel(s string) (slog.Level, error) {
	switch strings.ToLower(s) {
	case "", "info":
		return slog.LevelInfo, nil
	case "debug":
		return slog.LevelDebug, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("unknown log level %q (want debug|info|warn|error)", s)
	}
}

// Request is the JSON body of POST /tts. Empty Voice, Lang and zero Speed
// select the server defaults.
type Request struct {
	Text  string  `json:"text"`
	Voice string  `json:"voice,omitempty"`
	Lang  string  `json:"lang,omitempty"`
	Speed float32 `json:"speed,omitempty"`
}

// Synthesizer produces WAV bytes for a request.
type Synthesizer interface {
	Synthesize(ctx context.Context, req Request) ([]byte, error)
}

// VoiceLister returns the list of available voices.
type VoiceLister interface {
	ListVoices() []tts.Voice
}

// ---------------------------------------------------------------------------
// Functional options
// ---------------------------------------------------------------------------

type options struct {
	maxTextBytes   int
	workers        int
	requestTimeout time.Duration
	logger         *slog.Logger
}

func defaultOptions() options {
	return options{
		maxTextBytes:   4096,
		workers:        1,
		requestTimeout: 60 * time.Second,
		logger:         slog.Default(),
	}
}

// Option configures the HTTP handler.
type Option func(*options)

// WithMaxTextBytes sets the maximum allowed text length in bytes for POST /tts.
func WithMaxTextBytes(n int) Option {
	return func(o *options) { o.maxTextBytes = n }
}

// WithWorkers sets the maximum number of concurrent synthesis calls. The
// loaded model and voicepack are shared, so the server runs with 1.
func WithWorkers(n int) Option {
	return func(o *options) { o.workers = n }
}

// WithRequestTimeout sets the per-request synthesis deadline.
func WithRequestTimeout(d time.Duration) Option {
	return func(o *options) { o.requestTimeout = d }
}

// WithLogger sets the slog.Logger used for request logging.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// ---------------------------------------------------------------------------
// handler
// ---------------------------------------------------------------------------

type handler struct {
	synth   Synthesizer
	voices  VoiceLister
	opts    options
	sem     chan struct{}
	log     *slog.Logger
	metrics *metrics
}

// NewHandler returns an http.Handler that serves /health, /voices, /metrics
// and POST /tts.
func NewHandler(synth Synthesizer, voices VoiceLister, optFns ...Option) http.Handler {
	opts := defaultOptions()
	for _, fn := range optFns {
		fn(&opts)
	}

	h := &handler{
		synth:   synth,
		voices:  voices,
		opts:    opts,
		log:     opts.logger,
		metrics: newMetrics(),
	}
	if opts.workers > 0 {
		h.sem = make(chan struct{}, opts.workers)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/health", h.handleHealth)
	mux.HandleFunc("/voices", h.handleVoices)
	mux.HandleFunc("/tts", h.handleTTS)
	mux.Handle("/metrics", h.metrics.handler())

	return mux
}

func buildVersion() string {
	if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" {
		return info.Main.Version
	}

	return "dev"
}

func (h *handler) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"version": buildVersion(),
	})
}

func (h *handler) handleVoices(w http.ResponseWriter, _ *http.Request) {
	var voices []tts.Voice
	if h.voices != nil {
		voices = h.voices.ListVoices()
	}

	if voices == nil {
		voices = []tts.Voice{}
	}

	writeJSON(w, http.StatusOK, voices)
}

func (h *handler) handleTTS(w http.ResponseWriter, r *http.Request) {
	status := h.serveTTS(w, r)
	h.metrics.requestsTotal.WithLabelValues(fmt.Sprint(status)).Inc()
}

func (h *handler) serveTTS(w http.ResponseWriter, r *http.Request) int {
	if r.Method != http.MethodPost {
		return writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}

	var req Request
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, int64(h.opts.maxTextBytes)*4+1024)).Decode(&req); err != nil {
		return writeError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
	}

	if strings.TrimSpace(req.Text) == "" {
		return writeError(w, http.StatusBadRequest, "text field is required")
	}

	if len(req.Text) > h.opts.maxTextBytes {
		return writeError(w, http.StatusRequestEntityTooLarge,
			fmt.Sprintf("text exceeds maximum size of %d bytes", h.opts.maxTextBytes))
	}

	if req.Speed < 0 {
		return writeError(w, http.StatusBadRequest, "speed must be > 0")
	}

	// Acquire a worker slot, honouring cancellation while waiting.
	if h.sem != nil {
		select {
		case h.sem <- struct{}{}:
		case <-r.Context().Done():
			return writeError(w, http.StatusServiceUnavailable, "request cancelled while waiting for worker")
		}
		defer func() { <-h.sem }()
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.opts.requestTimeout)
	defer cancel()

	start := time.Now()
	wav, err := h.synth.Synthesize(ctx, req)
	elapsed := time.Since(start)

	attrs := []any{
		slog.String("voice", req.Voice),
		slog.String("lang", req.Lang),
		slog.Int("text_len", len(req.Text)),
		slog.Int64("duration_ms", elapsed.Milliseconds()),
	}

	if err != nil {
		status, msg := classify(err)
		attrs = append(attrs, slog.String("error", err.Error()))

		if status == http.StatusGatewayTimeout {
			h.log.WarnContext(r.Context(), "synthesis timed out", attrs...)
		} else {
			h.log.ErrorContext(r.Context(), "synthesis failed", attrs...)
		}

		return writeError(w, status, msg)
	}

	h.metrics.synthDuration.Observe(elapsed.Seconds())
	h.metrics.audioSeconds.Add(wavSeconds(wav))

	h.log.InfoContext(r.Context(), "synthesis complete", append(attrs, slog.Int("wav_bytes", len(wav)))...)

	w.Header().Set("Content-Type", "audio/wav")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(wav)

	return http.StatusOK
}

// classify maps pipeline errors to an HTTP status and client message.
func classify(err error) (int, string) {
	switch {
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return http.StatusGatewayTimeout, "synthesis timed out"
	case errors.Is(err, tts.ErrUnknownVoice):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, tts.ErrIndexRange):
		return http.StatusUnprocessableEntity, "text is too long for the selected voice"
	case errors.Is(err, tts.ErrPhonemize):
		return http.StatusUnprocessableEntity, err.Error()
	case errors.Is(err, tts.ErrNotLoaded):
		return http.StatusServiceUnavailable, err.Error()
	default:
		return http.StatusInternalServerError, err.Error()
	}
}

// wavSeconds derives duration from a canonical 44-byte header WAV.
func wavSeconds(wav []byte) float64 {
	if len(wav) <= 44 {
		return 0
	}

	return float64(len(wav)-44) / 2 / tts.SampleRate
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) int {
	writeJSON(w, status, map[string]string{"error": msg})
	return status
}

// ---------------------------------------------------------------------------
// Server wires the handler into net/http.Server with graceful shutdown
// ---------------------------------------------------------------------------

// Server wires the HTTP handler into a net/http.Server with graceful shutdown.
type Server struct {
	cfg             config.Config
	synth           Synthesizer
	voices          VoiceLister
	shutdownTimeout time.Duration
}

// New serves svc. voices may be nil when no manifest is configured; requests
// naming a voice then fail with 400.
func New(cfg config.Config, svc *tts.Service, voices *tts.VoiceManager) *Server {
	s := &Server{
		cfg:             cfg,
		shutdownTimeout: time.Duration(cfg.Server.ShutdownTimeout) * time.Second,
		synth: &serviceSynthesizer{
			svc:          svc,
			voices:       voices,
			defaultLang:  cfg.TTS.Lang,
			defaultSpeed: float32(cfg.TTS.Speed),
		},
	}

	if voices != nil {
		s.voices = voices
	}

	return s
}

// WithShutdownTimeout overrides the graceful-shutdown drain period.
func (s *Server) WithShutdownTimeout(d time.Duration) *Server {
	s.shutdownTimeout = d
	return s
}

// WithSynthesizer replaces the tts-backed synthesizer.
func (s *Server) WithSynthesizer(synth Synthesizer) *Server {
	s.synth = synth
	return s
}

func (s *Server) Start(ctx context.Context) error {
	h := NewHandler(s.synth, s.voices,
		WithWorkers(1),
		WithMaxTextBytes(s.cfg.Server.MaxTextBytes),
		WithRequestTimeout(time.Duration(s.cfg.Server.RequestTimeout)*time.Second),
	)

	httpServer := &http.Server{
		Addr:              s.cfg.Server.ListenAddr,
		Handler:           h,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- httpServer.ListenAndServe()
	}()

	slog.Info("listening", "addr", s.cfg.Server.ListenAddr)

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
		defer cancel()

		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("http shutdown: %w", err)
		}

		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}

		return fmt.Errorf("http listen: %w", err)
	}
}

// ProbeHTTP checks GET /health on addr.
func ProbeHTTP(ctx context.Context, addr string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, "http://"+addr+"/health", nil)
	if err != nil {
		return err
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected health status: %s", resp.Status)
	}

	return nil
}

type serviceSynthesizer struct {
	svc          *tts.Service
	voices       *tts.VoiceManager
	defaultLang  string
	defaultSpeed float32
}

func (s *serviceSynthesizer) Synthesize(ctx context.Context, req Request) ([]byte, error) {
	if s.svc == nil {
		return nil, tts.ErrNotLoaded
	}

	svc := s.svc
	lang := req.Lang

	if req.Voice != "" {
		if s.voices == nil {
			return nil, fmt.Errorf("%w %q: no voice manifest loaded", tts.ErrUnknownVoice, req.Voice)
		}

		vp, err := s.voices.Load(req.Voice)
		if err != nil {
			return nil, err
		}

		svc = svc.WithVoice(vp)

		if lang == "" {
			lang = s.voices.Lang(req.Voice)
		}
	}

	if lang == "" {
		lang = s.defaultLang
	}

	speed := req.Speed
	if speed == 0 {
		speed = s.defaultSpeed
	}

	return svc.GenerateWAV(ctx, req.Text, lang, speed)
}
