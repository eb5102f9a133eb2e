package server_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/example/go-kokoro-tts/internal/config"
	"github.com/example/go-kokoro-tts/internal/server"
	"github.com/example/go-kokoro-tts/internal/tts"
)

type stubSynthesizer struct {
	mu    sync.Mutex
	wav   []byte
	err   error
	delay time.Duration
	reqs  []server.Request
}

func (s *stubSynthesizer) Synthesize(ctx context.Context, req server.Request) ([]byte, error) {
	s.mu.Lock()
	s.reqs = append(s.reqs, req)
	s.mu.Unlock()

	if s.delay > 0 {
		select {
		case <-time.After(s.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	if s.err != nil {
		return nil, s.err
	}

	return s.wav, nil
}

type stubVoiceLister []tts.Voice

func (v stubVoiceLister) ListVoices() []tts.Voice { return v }

// capturingHandler records log records for assertions.
type capturingHandler struct {
	mu      sync.Mutex
	records []slog.Record
}

func (h *capturingHandler) Enabled(context.Context, slog.Level) bool { return true }

func (h *capturingHandler) Handle(_ context.Context, r slog.Record) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.records = append(h.records, r)

	return nil
}

func (h *capturingHandler) WithAttrs([]slog.Attr) slog.Handler { return h }
func (h *capturingHandler) WithGroup(string) slog.Handler      { return h }

func (h *capturingHandler) messages() []string {
	h.mu.Lock()
	defer h.mu.Unlock()

	out := make([]string, 0, len(h.records))
	for _, r := range h.records {
		out = append(out, r.Message)
	}

	return out
}

// fakeWAV is a 44-byte header followed by n silent samples.
func fakeWAV(n int) []byte {
	return append(make([]byte, 44), make([]byte, 2*n)...)
}

func postTTS(t *testing.T, h http.Handler, body string) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(http.MethodPost, "/tts", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	return rec
}

func errorBody(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()

	var body map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode error body %q: %v", rec.Body.String(), err)
	}

	return body["error"]
}

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    slog.Level
		wantErr bool
	}{
		{in: "", want: slog.LevelInfo},
		{in: "info", want: slog.LevelInfo},
		{in: "DEBUG", want: slog.LevelDebug},
		{in: "warn", want: slog.LevelWarn},
		{in: "warning", want: slog.LevelWarn},
		{in: "error", want: slog.LevelError},
		{in: "verbose", wantErr: true},
	}

	for _, tc := range tests {
		t.Run(tc.in, func(t *testing.T) {
			got, err := server.ParseLogLevel(tc.in)
			if tc.wantErr {
				if err == nil {
					t.Fatalf("ParseLogLevel(%q) error = nil, want error", tc.in)
				}

				return
			}

			if err != nil {
				t.Fatalf("ParseLogLevel(%q): %v", tc.in, err)
			}

			if got != tc.want {
				t.Errorf("ParseLogLevel(%q) = %v, want %v", tc.in, got, tc.want)
			}
		})
	}
}

func TestHealth(t *testing.T) {
	h := server.NewHandler(&stubSynthesizer{}, nil)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var body map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}

	if body["status"] != "ok" {
		t.Errorf("status field = %q, want ok", body["status"])
	}

	if body["version"] == "" {
		t.Error("version field is empty")
	}
}

func TestVoices(t *testing.T) {
	t.Run("nil lister returns empty array", func(t *testing.T) {
		h := server.NewHandler(&stubSynthesizer{}, nil)

		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/voices", nil))

		if got := strings.TrimSpace(rec.Body.String()); got != "[]" {
			t.Errorf("body = %q, want []", got)
		}
	})

	t.Run("lists voices", func(t *testing.T) {
		voices := stubVoiceLister{
			{ID: "af", Path: "af.npy", Lang: "en-us", License: "apache-2.0"},
			{ID: "bf_emma", Path: "bf_emma.npy", Lang: "en-gb"},
		}
		h := server.NewHandler(&stubSynthesizer{}, voices)

		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/voices", nil))

		var got []tts.Voice
		if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
			t.Fatalf("decode: %v", err)
		}

		if len(got) != 2 || got[0].ID != "af" || got[1].Lang != "en-gb" {
			t.Errorf("voices = %+v", got)
		}
	})
}

func TestTTSSuccess(t *testing.T) {
	wav := fakeWAV(2400)
	synth := &stubSynthesizer{wav: wav}
	logs := &capturingHandler{}
	h := server.NewHandler(synth, nil, server.WithLogger(slog.New(logs)))

	rec := postTTS(t, h, `{"text":"Hello world","voice":"af","lang":"en-gb","speed":1.25}`)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
	}

	if ct := rec.Header().Get("Content-Type"); ct != "audio/wav" {
		t.Errorf("Content-Type = %q, want audio/wav", ct)
	}

	if !bytes.Equal(rec.Body.Bytes(), wav) {
		t.Error("body does not match synthesizer output")
	}

	if len(synth.reqs) != 1 {
		t.Fatalf("synth calls = %d, want 1", len(synth.reqs))
	}

	want := server.Request{Text: "Hello world", Voice: "af", Lang: "en-gb", Speed: 1.25}
	if synth.reqs[0] != want {
		t.Errorf("request = %+v, want %+v", synth.reqs[0], want)
	}

	if msgs := logs.messages(); len(msgs) != 1 || msgs[0] != "synthesis complete" {
		t.Errorf("log messages = %v", msgs)
	}
}

func TestTTSRejectsBadRequests(t *testing.T) {
	tests := []struct {
		name   string
		method string
		body   string
		status int
		errSub string
	}{
		{name: "wrong method", method: http.MethodGet, status: http.StatusMethodNotAllowed, errSub: "method"},
		{name: "invalid json", body: `{"text":`, status: http.StatusBadRequest, errSub: "invalid JSON"},
		{name: "missing text", body: `{"voice":"af"}`, status: http.StatusBadRequest, errSub: "text field"},
		{name: "blank text", body: `{"text":"   "}`, status: http.StatusBadRequest, errSub: "text field"},
		{name: "too long", body: `{"text":"` + strings.Repeat("a", 65) + `"}`, status: http.StatusRequestEntityTooLarge, errSub: "64 bytes"},
		{name: "negative speed", body: `{"text":"hi","speed":-1}`, status: http.StatusBadRequest, errSub: "speed"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			synth := &stubSynthesizer{wav: fakeWAV(1)}
			h := server.NewHandler(synth, nil, server.WithMaxTextBytes(64))

			method := tc.method
			if method == "" {
				method = http.MethodPost
			}

			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, httptest.NewRequest(method, "/tts", strings.NewReader(tc.body)))

			if rec.Code != tc.status {
				t.Fatalf("status = %d, want %d: %s", rec.Code, tc.status, rec.Body.String())
			}

			if msg := errorBody(t, rec); !strings.Contains(msg, tc.errSub) {
				t.Errorf("error = %q, want substring %q", msg, tc.errSub)
			}

			if len(synth.reqs) != 0 {
				t.Errorf("synthesizer called %d times for a rejected request", len(synth.reqs))
			}
		})
	}
}

func TestTTSErrorMapping(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
	}{
		{name: "unknown voice", err: fmt.Errorf("%w %q", tts.ErrUnknownVoice, "zz"), status: http.StatusBadRequest},
		{name: "style index", err: fmt.Errorf("plan: %w", tts.ErrIndexRange), status: http.StatusUnprocessableEntity},
		{name: "phonemize", err: fmt.Errorf("%w: exit 1", tts.ErrPhonemize), status: http.StatusUnprocessableEntity},
		{name: "not loaded", err: tts.ErrNotLoaded, status: http.StatusServiceUnavailable},
		{name: "deadline", err: context.DeadlineExceeded, status: http.StatusGatewayTimeout},
		{name: "inference", err: fmt.Errorf("%w: chunk 1/1: boom", tts.ErrInference), status: http.StatusInternalServerError},
		{name: "other", err: errors.New("boom"), status: http.StatusInternalServerError},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			logs := &capturingHandler{}
			h := server.NewHandler(&stubSynthesizer{err: tc.err}, nil, server.WithLogger(slog.New(logs)))

			rec := postTTS(t, h, `{"text":"hello"}`)
			if rec.Code != tc.status {
				t.Fatalf("status = %d, want %d: %s", rec.Code, tc.status, rec.Body.String())
			}

			if errorBody(t, rec) == "" {
				t.Error("error body is empty")
			}

			if len(logs.messages()) != 1 {
				t.Errorf("log messages = %v, want one", logs.messages())
			}
		})
	}
}

func TestTTSRequestTimeout(t *testing.T) {
	synth := &stubSynthesizer{wav: fakeWAV(1), delay: time.Second}
	h := server.NewHandler(synth, nil, server.WithRequestTimeout(20*time.Millisecond))

	rec := postTTS(t, h, `{"text":"slow"}`)
	if rec.Code != http.StatusGatewayTimeout {
		t.Fatalf("status = %d, want 504", rec.Code)
	}
}

func TestTTSSerializesSynthesis(t *testing.T) {
	var (
		mu      sync.Mutex
		active  int
		maxSeen int
	)

	synth := synthFunc(func(context.Context, server.Request) ([]byte, error) {
		mu.Lock()
		active++
		maxSeen = max(maxSeen, active)
		mu.Unlock()

		time.Sleep(10 * time.Millisecond)

		mu.Lock()
		active--
		mu.Unlock()

		return fakeWAV(1), nil
	})

	h := server.NewHandler(synth, nil, server.WithWorkers(1))

	var wg sync.WaitGroup
	for range 4 {
		wg.Add(1)

		go func() {
			defer wg.Done()

			req := httptest.NewRequest(http.MethodPost, "/tts", strings.NewReader(`{"text":"x"}`))
			h.ServeHTTP(httptest.NewRecorder(), req)
		}()
	}

	wg.Wait()

	if maxSeen != 1 {
		t.Errorf("max concurrent synthesis = %d, want 1", maxSeen)
	}
}

type synthFunc func(context.Context, server.Request) ([]byte, error)

func (f synthFunc) Synthesize(ctx context.Context, req server.Request) ([]byte, error) {
	return f(ctx, req)
}

func TestMetrics(t *testing.T) {
	synth := &stubSynthesizer{wav: fakeWAV(24000)}
	h := server.NewHandler(synth, nil)

	postTTS(t, h, `{"text":"one"}`)
	postTTS(t, h, `{"text":""}`)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	body := rec.Body.String()
	for _, want := range []string{
		`kokorotts_tts_requests_total{code="200"} 1`,
		`kokorotts_tts_requests_total{code="400"} 1`,
		`kokorotts_audio_seconds_total 1`,
		`kokorotts_synthesis_duration_seconds_count 1`,
	} {
		if !strings.Contains(body, want) {
			t.Errorf("metrics output missing %q", want)
		}
	}
}

func freeAddr(t *testing.T) string {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}

	addr := ln.Addr().String()
	_ = ln.Close()

	return addr
}

func TestServerStartAndShutdown(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Server.ListenAddr = freeAddr(t)

	srv := server.New(cfg, nil, nil).
		WithShutdownTimeout(time.Second).
		WithSynthesizer(&stubSynthesizer{wav: fakeWAV(10)})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)

	go func() { done <- srv.Start(ctx) }()

	deadline := time.Now().Add(2 * time.Second)
	for {
		probeCtx, probeCancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
		err := server.ProbeHTTP(probeCtx, cfg.Server.ListenAddr)
		probeCancel()

		if err == nil {
			break
		}

		if time.Now().After(deadline) {
			cancel()
			t.Fatalf("server never became healthy: %v", err)
		}

		time.Sleep(20 * time.Millisecond)
	}

	resp, err := http.Post("http://"+cfg.Server.ListenAddr+"/tts", "application/json", strings.NewReader(`{"text":"hi"}`))
	if err != nil {
		cancel()
		t.Fatalf("POST /tts: %v", err)
	}

	body, _ := io.ReadAll(resp.Body)
	_ = resp.Body.Close()

	if resp.StatusCode != http.StatusOK || len(body) != 64 {
		t.Errorf("POST /tts = %d with %d bytes, want 200 with 64", resp.StatusCode, len(body))
	}

	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Start returned %v after cancel", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("server did not shut down")
	}
}

func TestServerWithoutServiceReportsNotLoaded(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Server.ListenAddr = freeAddr(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- server.New(cfg, nil, nil).Start(ctx) }()

	var (
		resp *http.Response
		err  error
	)

	for range 100 {
		resp, err = http.Post("http://"+cfg.Server.ListenAddr+"/tts", "application/json", strings.NewReader(`{"text":"hi"}`))
		if err == nil {
			break
		}

		time.Sleep(20 * time.Millisecond)
	}

	if err != nil {
		t.Fatalf("POST /tts: %v", err)
	}
	_ = resp.Body.Close()

	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", resp.StatusCode)
	}

	cancel()
	<-done
}

func TestProbeHTTPFailure(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer ts.Close()

	addr := strings.TrimPrefix(ts.URL, "http://")
	if err := server.ProbeHTTP(context.Background(), addr); err == nil {
		t.Fatal("ProbeHTTP error = nil for 500 response")
	}
}
