package main

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/example/go-kokoro-tts/internal/config"
	"github.com/example/go-kokoro-tts/internal/doctor"
	"github.com/example/go-kokoro-tts/internal/model"
	"github.com/example/go-kokoro-tts/internal/tts"
)

func TestProbeAddr(t *testing.T) {
	tests := map[string]string{
		":8080":          "127.0.0.1:8080",
		"0.0.0.0:9000":   "127.0.0.1:9000",
		"localhost:8080": "localhost:8080",
		"10.0.0.2:80":    "10.0.0.2:80",
	}

	for in, want := range tests {
		if got := probeAddr(in); got != want {
			t.Errorf("probeAddr(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestHealthCommand(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/health" {
			http.NotFound(w, r)
			return
		}

		_, _ = w.Write([]byte(`{"status":"ok"}`))
	}))
	defer ts.Close()

	stdout, _, err := runCLI(t, "", "health", "--addr", strings.TrimPrefix(ts.URL, "http://"))
	if err != nil {
		t.Fatalf("health: %v", err)
	}

	if strings.TrimSpace(stdout) != "ok" {
		t.Errorf("stdout = %q, want ok", stdout)
	}
}

func TestHealthCommand_Unreachable(t *testing.T) {
	ts := httptest.NewServer(http.NotFoundHandler())
	addr := strings.TrimPrefix(ts.URL, "http://")
	ts.Close()

	if _, _, err := runCLI(t, "", "health", "--addr", addr, "--timeout", "500ms"); err == nil {
		t.Fatal("expected error probing a closed server")
	}
}

func TestModelDownloadCommand(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/"+model.DefaultModelFile {
			http.NotFound(w, r)
			return
		}

		_, _ = w.Write([]byte("fake-onnx"))
	}))
	defer ts.Close()

	dir := t.TempDir()

	stdout, _, err := runCLI(t, "", "model", "download", "--out-dir", dir, "--base-url", ts.URL)
	if err != nil {
		t.Fatalf("model download: %v", err)
	}

	got, err := os.ReadFile(filepath.Join(dir, model.DefaultModelFile))
	if err != nil || string(got) != "fake-onnx" {
		t.Fatalf("model file = %q, %v", got, err)
	}

	if !strings.Contains(stdout, "verified") {
		t.Errorf("stdout missing verification line:\n%s", stdout)
	}
}

func TestModelDownloadCommand_DefaultsToModelDir(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("m"))
	}))
	defer ts.Close()

	dir := t.TempDir()
	modelPath := filepath.Join(dir, "sub", model.DefaultModelFile)

	_, _, err := runCLI(t, "", "model", "download", "--base-url", ts.URL, "--paths-model-path", modelPath)
	if err != nil {
		t.Fatalf("model download: %v", err)
	}

	if _, err := os.Stat(modelPath); err != nil {
		t.Fatalf("model not written next to paths.model_path: %v", err)
	}
}

func writeVoiceManifest(t *testing.T) string {
	t.Helper()

	dir := t.TempDir()
	body := `{"voices":[
		{"id":"af","path":"af.npy","license":"apache-2.0"},
		{"id":"bf_emma","path":"bf_emma.npy","lang":"en-gb","license":"apache-2.0"}
	]}`

	path := filepath.Join(dir, "manifest.json")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}

	return path
}

func TestVoicesCommand(t *testing.T) {
	manifest := writeVoiceManifest(t)

	stdout, _, err := runCLI(t, "", "voices", "--paths-voices-manifest", manifest)
	if err != nil {
		t.Fatalf("voices: %v", err)
	}

	lines := strings.Split(strings.TrimSpace(stdout), "\n")
	if len(lines) != 3 {
		t.Fatalf("got %d lines, want header + 2:\n%s", len(lines), stdout)
	}

	if !strings.HasPrefix(lines[0], "ID") {
		t.Errorf("header = %q", lines[0])
	}

	if !strings.Contains(lines[1], "en-us") || !strings.Contains(lines[2], "en-gb") {
		t.Errorf("lang column wrong:\n%s", stdout)
	}
}

func TestVoicesCommand_JSON(t *testing.T) {
	manifest := writeVoiceManifest(t)

	stdout, _, err := runCLI(t, "", "voices", "--json", "--paths-voices-manifest", manifest)
	if err != nil {
		t.Fatalf("voices: %v", err)
	}

	var voices []tts.Voice
	if err := json.Unmarshal([]byte(stdout), &voices); err != nil {
		t.Fatalf("decode: %v", err)
	}

	if len(voices) != 2 || voices[1].ID != "bf_emma" {
		t.Errorf("voices = %+v", voices)
	}
}

func TestVoicesCommand_MissingManifest(t *testing.T) {
	if _, _, err := runCLI(t, "", "voices", "--paths-voices-manifest", "/nonexistent/manifest.json"); err == nil {
		t.Fatal("expected error for missing manifest")
	}
}

func TestDoctorCommand_ReportsMissingFiles(t *testing.T) {
	dir := t.TempDir()

	stdout, stderr, err := runCLI(t, "", "doctor",
		"--paths-model-path", filepath.Join(dir, "missing.onnx"),
		"--paths-voice-path", filepath.Join(dir, "missing.npy"),
		"--paths-voices-manifest", filepath.Join(dir, "manifest.json"),
		"--phonemizer-cmd", filepath.Join(dir, "no-espeak"),
		"--ort-lib", filepath.Join(dir, "libonnxruntime.so"),
	)
	if err == nil {
		t.Fatal("expected doctor to fail")
	}

	if !strings.Contains(stdout, doctor.FailMark) {
		t.Errorf("stdout missing fail marker:\n%s", stdout)
	}

	for _, want := range []string{"missing.onnx", "missing.npy", "onnx runtime"} {
		if !strings.Contains(stderr, want) {
			t.Errorf("stderr missing %q:\n%s", want, stderr)
		}
	}
}

func TestCollectVoiceFiles(t *testing.T) {
	manifest := writeVoiceManifest(t)

	cfg := config.DefaultConfig()
	cfg.Paths.VoicePath = "voices/default.npy"
	cfg.Paths.VoicesManifest = manifest

	got := collectVoiceFiles(cfg)
	if len(got) != 3 {
		t.Fatalf("collectVoiceFiles = %v, want default + 2 manifest voices", got)
	}

	if got[0] != "voices/default.npy" {
		t.Errorf("first path = %q, want configured voice", got[0])
	}

	// Manifest voice files do not exist, so the raw paths are reported.
	if got[1] != "af.npy" || got[2] != "bf_emma.npy" {
		t.Errorf("manifest paths = %v", got[1:])
	}
}
