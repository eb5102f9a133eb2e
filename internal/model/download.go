package model

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
)

type DownloadOptions struct {
	// Manifest names the release; empty selects the default Kokoro model.
	Manifest string
	OutDir   string
	// SHA256 pins the checksum of a single-file manifest, overriding the
	// lock file.
	SHA256 string
	// BaseURL replaces the host prefix of every file URL.
	BaseURL string
	Client  *http.Client
	Stdout  io.Writer
}

// ErrChecksumMismatch reports a downloaded or existing file whose SHA-256
// differs from the pinned value.
var ErrChecksumMismatch = errors.New("checksum mismatch")

type lockManifest struct {
	Name      string                `json:"name"`
	Generated string                `json:"generated"`
	Files     map[string]lockRecord `json:"files"`
}

type lockRecord struct {
	URL    string `json:"url"`
	SHA256 string `json:"sha256"`
}

const lockFileName = "download-manifest.lock.json"

var shaHexPattern = regexp.MustCompile(`(?i)^[a-f0-9]{64}$`)

// Download fetches every file of the manifest into OutDir. Files already on
// disk are kept when they match the known checksum, or when no checksum is
// known yet. Each file lands through a temp file and rename.
func Download(ctx context.Context, opts DownloadOptions) error {
	if opts.OutDir == "" {
		return errors.New("out dir is required")
	}

	if opts.Stdout == nil {
		opts.Stdout = io.Discard
	}

	if opts.Client == nil {
		opts.Client = &http.Client{Timeout: 0}
	}

	if opts.SHA256 != "" && !isSHA256Hex(opts.SHA256) {
		return fmt.Errorf("invalid sha256 %q", opts.SHA256)
	}

	manifest, err := PinnedManifest(opts.Manifest)
	if err != nil {
		return err
	}

	if opts.SHA256 != "" && len(manifest.Files) != 1 {
		return fmt.Errorf("--sha256 needs a single-file manifest, %q has %d files", manifest.Name, len(manifest.Files))
	}

	if err := os.MkdirAll(opts.OutDir, 0o755); err != nil {
		return fmt.Errorf("create out dir: %w", err)
	}

	lockPath := filepath.Join(opts.OutDir, lockFileName)
	lock := readLockManifest(lockPath)
	lock.Name = manifest.Name
	lock.Generated = time.Now().UTC().Format(time.RFC3339)

	for _, f := range manifest.Files {
		url := f.URL
		if opts.BaseURL != "" {
			url = strings.TrimRight(opts.BaseURL, "/") + "/" + f.Filename
		}

		expected := strings.ToLower(f.SHA256)
		if opts.SHA256 != "" {
			expected = strings.ToLower(opts.SHA256)
		}

		if expected == "" {
			if lr, ok := lock.Files[f.Filename]; ok && isSHA256Hex(lr.SHA256) {
				expected = strings.ToLower(lr.SHA256)
			}
		}

		localPath := filepath.Join(opts.OutDir, filepath.FromSlash(f.Filename))

		present, actual, err := existingChecksum(localPath)
		if err != nil {
			return err
		}

		if present && (expected == "" || actual == expected) {
			fmt.Fprintf(opts.Stdout, "skip %s (already present)\n", f.Filename)
			lock.Files[f.Filename] = lockRecord{URL: url, SHA256: actual}

			continue
		}

		if present {
			slog.Warn("existing file does not match checksum, downloading again",
				"file", localPath, "expected", expected, "actual", actual)
		}

		fmt.Fprintf(opts.Stdout, "download %s -> %s\n", url, localPath)

		actual, err = downloadWithProgress(ctx, opts.Client, url, localPath, opts.Stdout)
		if err != nil {
			return err
		}

		if expected != "" && actual != expected {
			_ = os.Remove(localPath)
			return fmt.Errorf("%w for %s: expected %s got %s", ErrChecksumMismatch, f.Filename, expected, actual)
		}

		fmt.Fprintf(opts.Stdout, "verified %s (sha256=%s)\n", f.Filename, actual)
		lock.Files[f.Filename] = lockRecord{URL: url, SHA256: actual}
	}

	if err := writeLockManifest(lockPath, lock); err != nil {
		return err
	}

	fmt.Fprintf(opts.Stdout, "wrote lock manifest: %s\n", lockPath)

	return nil
}

// existingChecksum reports whether path exists and, if so, its SHA-256.
func existingChecksum(path string) (bool, string, error) {
	fi, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, "", nil
		}

		return false, "", fmt.Errorf("stat existing file: %w", err)
	}

	if fi.IsDir() {
		return false, "", fmt.Errorf("expected file at %s, found directory", path)
	}

	sum, err := FileSHA256(path)
	if err != nil {
		return false, "", err
	}

	return true, sum, nil
}

func downloadWithProgress(ctx context.Context, client *http.Client, url, outPath string, stdout io.Writer) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}

	resp, err := client.Do(req)
	if err != nil {
		return "", fmt.Errorf("download request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("download failed for %s: %s", url, resp.Status)
	}

	tmp := outPath + ".tmp"

	fh, err := os.Create(tmp)
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}

	h := sha256.New()
	mw := io.MultiWriter(fh, h)

	var written int64

	buf := make([]byte, 64*1024)
	total := resp.ContentLength
	lastPrint := time.Now()

	for {
		n, readErr := resp.Body.Read(buf)
		if n > 0 {
			wn, writeErr := mw.Write(buf[:n])
			if writeErr != nil {
				_ = fh.Close()
				_ = os.Remove(tmp)

				return "", fmt.Errorf("write temp file: %w", writeErr)
			}

			written += int64(wn)
			if time.Since(lastPrint) > 700*time.Millisecond {
				if total > 0 {
					pct := float64(written) * 100 / float64(total)
					fmt.Fprintf(stdout, "  progress: %.1f%% (%s/%s)\n", pct,
						humanize.Bytes(uint64(written)), humanize.Bytes(uint64(total)))
				} else {
					fmt.Fprintf(stdout, "  progress: %s\n", humanize.Bytes(uint64(written)))
				}

				lastPrint = time.Now()
			}
		}

		if readErr == io.EOF {
			break
		}

		if readErr != nil {
			_ = fh.Close()
			_ = os.Remove(tmp)

			return "", fmt.Errorf("download read failed: %w", readErr)
		}
	}

	if err := fh.Close(); err != nil {
		_ = os.Remove(tmp)
		return "", fmt.Errorf("close temp file: %w", err)
	}

	if err := os.Rename(tmp, outPath); err != nil {
		_ = os.Remove(tmp)
		return "", fmt.Errorf("move temp file into place: %w", err)
	}

	fmt.Fprintf(stdout, "  downloaded %s\n", humanize.Bytes(uint64(written)))

	return hex.EncodeToString(h.Sum(nil)), nil
}

func isSHA256Hex(v string) bool {
	return shaHexPattern.MatchString(v)
}

// FileSHA256 returns the lowercase hex SHA-256 of the file at path.
func FileSHA256(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open file for checksum: %w", err)
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("read file for checksum: %w", err)
	}

	return hex.EncodeToString(h.Sum(nil)), nil
}

func readLockManifest(path string) lockManifest {
	out := lockManifest{Files: map[string]lockRecord{}}

	b, err := os.ReadFile(path)
	if err != nil {
		return out
	}

	if err := json.Unmarshal(b, &out); err != nil {
		return lockManifest{Files: map[string]lockRecord{}}
	}

	if out.Files == nil {
		out.Files = map[string]lockRecord{}
	}

	return out
}

func writeLockManifest(path string, lock lockManifest) error {
	b, err := json.MarshalIndent(lock, "", "  ")
	if err != nil {
		return fmt.Errorf("encode lock manifest: %w", err)
	}

	if err := os.WriteFile(path, b, 0o644); err != nil {
		return fmt.Errorf("write lock manifest: %w", err)
	}

	return nil
}
