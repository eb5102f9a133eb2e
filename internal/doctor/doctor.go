// Package doctor provides environment preflight checks for kokorotts.
package doctor

import (
	"fmt"
	"io"
	"os"
	"regexp"
	"strconv"

	"github.com/dustin/go-humanize"

	"github.com/example/go-kokoro-tts/internal/voicepack"
)

// PassMark and FailMark are the prefix symbols printed for each check result.
const (
	PassMark = "✓"
	FailMark = "✗"
)

// Oldest espeak-ng release whose IPA output the post-processor expects.
const (
	minEspeakMajor = 1
	minEspeakMinor = 48
)

var versionPattern = regexp.MustCompile(`(\d+)\.(\d+)(?:\.\d+)?`)

// VersionFunc returns a version string or an error if the component is unavailable.
type VersionFunc func() (string, error)

// Config holds injectable dependencies for each doctor check.
type Config struct {
	// EspeakVersion returns the first line of `espeak-ng --version`.
	EspeakVersion VersionFunc
	// RuntimeLibrary returns a description of the detected ONNX Runtime library.
	RuntimeLibrary VersionFunc
	// ModelPath is the ONNX model file to verify on disk. Empty skips the check.
	ModelPath string
	// VoiceFiles are voicepacks that must load and contain style rows.
	VoiceFiles []string
}

// Result collects the outcome of all checks.
type Result struct {
	failures []string
}

// Failed returns true if any check failed.
func (r *Result) Failed() bool { return len(r.failures) > 0 }

// Failures returns the list of failure messages.
func (r *Result) Failures() []string { return append([]string(nil), r.failures...) }

// AddFailure appends an external failure message to the result.
func (r *Result) AddFailure(msg string) { r.failures = append(r.failures, msg) }

func (r *Result) fail(msg string) { r.failures = append(r.failures, msg) }

// Run executes all configured checks and writes human-readable output to w.
// Each check line is prefixed with PassMark or FailMark.
func Run(cfg Config, w io.Writer) Result {
	var res Result

	// ---- espeak-ng --------------------------------------------------------
	if cfg.EspeakVersion != nil {
		ver, err := cfg.EspeakVersion()
		if err != nil {
			res.fail(fmt.Sprintf("espeak-ng: %v", err))
			fmt.Fprintf(w, "%s espeak-ng: not found (%v)\n", FailMark, err)
		} else if verErr := checkEspeakVersion(ver); verErr != nil {
			res.fail(fmt.Sprintf("espeak-ng: %v", verErr))
			fmt.Fprintf(w, "%s espeak-ng %s: %v\n", FailMark, ver, verErr)
		} else {
			fmt.Fprintf(w, "%s espeak-ng: %s\n", PassMark, ver)
		}
	}

	// ---- ONNX Runtime -----------------------------------------------------
	if cfg.RuntimeLibrary != nil {
		desc, err := cfg.RuntimeLibrary()
		if err != nil {
			res.fail(fmt.Sprintf("onnx runtime: %v", err))
			fmt.Fprintf(w, "%s onnx runtime: %v\n", FailMark, err)
		} else {
			fmt.Fprintf(w, "%s onnx runtime: %s\n", PassMark, desc)
		}
	}

	// ---- model ------------------------------------------------------------
	if cfg.ModelPath != "" {
		info, err := os.Stat(cfg.ModelPath)
		switch {
		case err != nil:
			res.fail(fmt.Sprintf("model %q: %v", cfg.ModelPath, err))
			fmt.Fprintf(w, "%s model %s: not found\n", FailMark, cfg.ModelPath)
		case info.IsDir() || info.Size() == 0:
			res.fail(fmt.Sprintf("model %q: not a regular non-empty file", cfg.ModelPath))
			fmt.Fprintf(w, "%s model %s: empty or not a file\n", FailMark, cfg.ModelPath)
		default:
			fmt.Fprintf(w, "%s model: %s (%s)\n", PassMark, cfg.ModelPath, humanize.Bytes(uint64(info.Size())))
		}
	}

	// ---- voicepacks -------------------------------------------------------
	for _, path := range cfg.VoiceFiles {
		vp, err := voicepack.Load(path)
		if err != nil {
			res.fail(fmt.Sprintf("voice file %q: %v", path, err))
			fmt.Fprintf(w, "%s voice file %s: %v\n", FailMark, path, err)

			continue
		}

		fmt.Fprintf(w, "%s voice file: %s (%d style rows)\n", PassMark, path, vp.Rows())
	}

	return res
}

// checkEspeakVersion returns an error if the version in ver predates 1.48.
// ver is the banner line, e.g. "eSpeak NG text-to-speech: 1.51  Data at: ...".
func checkEspeakVersion(ver string) error {
	major, minor, err := parseMajorMinor(ver)
	if err != nil {
		return fmt.Errorf("cannot parse %q: %w", ver, err)
	}

	if major < minEspeakMajor || (major == minEspeakMajor && minor < minEspeakMinor) {
		return fmt.Errorf("requires espeak-ng >=%d.%d, got %d.%d", minEspeakMajor, minEspeakMinor, major, minor)
	}

	return nil
}

func parseMajorMinor(ver string) (major, minor int, err error) {
	m := versionPattern.FindStringSubmatch(ver)
	if m == nil {
		return 0, 0, fmt.Errorf("no version number in %q", ver)
	}

	major, err = strconv.Atoi(m[1])
	if err != nil {
		return 0, 0, fmt.Errorf("bad major in %q: %w", ver, err)
	}

	minor, err = strconv.Atoi(m[2])
	if err != nil {
		return 0, 0, fmt.Errorf("bad minor in %q: %w", ver, err)
	}

	return major, minor, nil
}
