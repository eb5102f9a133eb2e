// Package testutil provides shared skip helpers for integration tests.
//
// Each helper calls t.Skipf with a readable reason when the named
// prerequisite is absent, so integration tests stay runnable on machines
// without espeak-ng, ONNX Runtime or the Kokoro model files.
//
// Typical usage:
//
//	func TestSynthesizeIntegration(t *testing.T) {
//	    lib := testutil.RequireONNXRuntime(t)
//	    model := testutil.RequireModel(t)
//	    voice := testutil.RequireVoicepack(t)
//	    testutil.RequireEspeak(t)
//	    ...
//	}
package testutil

import (
	"os"
	"os/exec"
	"strings"
	"testing"
)

// Environment variables consulted by the helpers.
const (
	EnvORTLib     = "KOKOROTTS_ORT_LIB"
	EnvModelPath  = "KOKOROTTS_MODEL_PATH"
	EnvVoicePath  = "KOKOROTTS_VOICE_PATH"
	EnvEspeakPath = "KOKOROTTS_ESPEAK_CMD"
)

// RequireEspeak skips the test if the espeak-ng executable is not found in
// PATH. KOKOROTTS_ESPEAK_CMD overrides the command; only its first word is
// looked up. It returns the command line to use.
func RequireEspeak(tb testing.TB) string {
	tb.Helper()

	cmd := os.Getenv(EnvEspeakPath)
	if cmd == "" {
		cmd = "espeak-ng"
	}

	fields := strings.Fields(cmd)
	if len(fields) == 0 {
		tb.Skipf("%s is blank", EnvEspeakPath)
		return ""
	}

	if _, err := exec.LookPath(fields[0]); err != nil {
		tb.Skipf("espeak-ng not available (%q not in PATH); set %s to override", fields[0], EnvEspeakPath)
		return ""
	}

	return cmd
}

// RequireONNXRuntime skips the test if no ONNX Runtime shared library can be
// located. It checks KOKOROTTS_ORT_LIB, then ORT_LIBRARY_PATH, then common
// system library paths, and returns the path it found.
func RequireONNXRuntime(tb testing.TB) string {
	tb.Helper()

	for _, env := range []string{EnvORTLib, "ORT_LIBRARY_PATH"} {
		p := os.Getenv(env)
		if p == "" {
			continue
		}

		// #nosec G703 -- integration tests accept explicit env-provided library paths.
		if _, err := os.Stat(p); err != nil {
			tb.Skipf("ONNX Runtime library not found at %s=%q", env, p)
			return ""
		}

		return p
	}

	candidates := []string{
		"/usr/lib/libonnxruntime.so",
		"/usr/local/lib/libonnxruntime.so",
		"/usr/lib/x86_64-linux-gnu/libonnxruntime.so",
		"/opt/homebrew/lib/libonnxruntime.dylib",
	}
	for _, p := range candidates {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}

	tb.Skipf("ONNX Runtime shared library not found; set %s or ORT_LIBRARY_PATH", EnvORTLib)

	return ""
}

// RequireModel skips the test unless KOKOROTTS_MODEL_PATH names an existing
// Kokoro ONNX model, and returns that path.
func RequireModel(tb testing.TB) string {
	tb.Helper()

	return requireFile(tb, EnvModelPath, "Kokoro model")
}

// RequireVoicepack skips the test unless KOKOROTTS_VOICE_PATH names an
// existing voicepack file, and returns that path.
func RequireVoicepack(tb testing.TB) string {
	tb.Helper()

	return requireFile(tb, EnvVoicePath, "voicepack")
}

func requireFile(tb testing.TB, env, what string) string {
	tb.Helper()

	p := os.Getenv(env)
	if p == "" {
		tb.Skipf("%s not configured; set %s", what, env)
		return ""
	}

	if _, err := os.Stat(p); err != nil {
		tb.Skipf("%s not found at %s=%q: %v", what, env, p, err)
		return ""
	}

	return p
}
