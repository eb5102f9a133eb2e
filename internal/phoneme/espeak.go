package phoneme

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"regexp"
	"strings"

	"github.com/mattn/go-shellwords"
	"golang.org/x/text/unicode/norm"
)

// DefaultCommand is the phonemizer binary looked up on PATH.
const DefaultCommand = "espeak-ng"

// ErrUnsupportedSeparator is returned for syllable or phone separators,
// which espeak-ng cannot emit in IPA mode.
var ErrUnsupportedSeparator = errors.New("espeak: syllable and phone separators are not supported")

var (
	punctuationRun = regexp.MustCompile(`[;:,.!?¡¿—…"«»“”]+`)
	stressMarks    = strings.NewReplacer("ˈ", "", "ˌ", "")
)

type runFunc func(ctx context.Context, argv []string, stdin string) ([]byte, error)

// Espeak phonemizes text by invoking espeak-ng once per punctuation-free
// span and stitching the punctuation back in between the results.
type Espeak struct {
	argv []string
	run  runFunc
}

// NewEspeak parses command with shell quoting rules. An empty command means
// DefaultCommand.
func NewEspeak(command string) (*Espeak, error) {
	if strings.TrimSpace(command) == "" {
		command = DefaultCommand
	}

	args, err := shellwords.NewParser().Parse(command)
	if err != nil {
		return nil, fmt.Errorf("parse phonemizer command: %w", err)
	}

	if len(args) == 0 {
		return nil, errors.New("phonemizer command empty")
	}

	return &Espeak{argv: args, run: runCommand}, nil
}

// Command returns the parsed command line.
func (e *Espeak) Command() []string {
	return append([]string(nil), e.argv...)
}

// Phonemize returns one phoneme segment per non-empty input line.
func (e *Espeak) Phonemize(ctx context.Context, text, lang string, opts Options) ([]string, error) {
	if opts.Separator.Syllable != "" || opts.Separator.Phone != "" {
		return nil, ErrUnsupportedSeparator
	}

	if lang == "" {
		lang = "en-us"
	}

	text = norm.NFC.String(text)

	var segments []string
	for line := range strings.SplitSeq(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		seg, err := e.phonemizeLine(ctx, line, lang, opts)
		if err != nil {
			return nil, err
		}

		segments = append(segments, seg)
	}

	return segments, nil
}

// Version returns the first line of the phonemizer's --version output.
func (e *Espeak) Version(ctx context.Context) (string, error) {
	argv := append(e.Command(), "--version")

	out, err := e.run(ctx, argv, "")
	if err != nil {
		return "", fmt.Errorf("%s --version: %w", e.argv[0], err)
	}

	first, _, _ := strings.Cut(strings.TrimSpace(string(out)), "\n")

	return strings.TrimSpace(first), nil
}

func (e *Espeak) phonemizeLine(ctx context.Context, line, lang string, opts Options) (string, error) {
	var b strings.Builder

	if !opts.PreservePunctuation {
		line = punctuationRun.ReplaceAllString(line, " ")
		if err := e.appendSpan(ctx, &b, line, lang, opts); err != nil {
			return "", err
		}
	} else {
		last := 0
		for _, loc := range punctuationRun.FindAllStringIndex(line, -1) {
			if err := e.appendSpan(ctx, &b, line[last:loc[0]], lang, opts); err != nil {
				return "", err
			}

			b.WriteString(line[loc[0]:loc[1]])
			last = loc[1]
		}

		if err := e.appendSpan(ctx, &b, line[last:], lang, opts); err != nil {
			return "", err
		}
	}

	if !opts.Strip && b.Len() > 0 {
		b.WriteString(opts.Separator.Word)
	}

	return b.String(), nil
}

func (e *Espeak) appendSpan(ctx context.Context, b *strings.Builder, span, lang string, opts Options) error {
	span = strings.Join(strings.Fields(span), " ")
	if span == "" {
		return nil
	}

	ipa, err := e.speak(ctx, span, lang, opts)
	if err != nil {
		return err
	}

	if ipa == "" {
		return nil
	}

	if b.Len() > 0 {
		b.WriteString(opts.Separator.Word)
	}

	b.WriteString(ipa)

	return nil
}

func (e *Espeak) speak(ctx context.Context, span, lang string, opts Options) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	argv := append(e.Command(), "-q", "--ipa", "-v", lang)

	out, err := e.run(ctx, argv, span)
	if err != nil {
		return "", fmt.Errorf("%s -v %s: %w", e.argv[0], lang, err)
	}

	ipa := strings.Join(strings.Fields(string(out)), opts.Separator.Word)
	if !opts.WithStress {
		ipa = stressMarks.Replace(ipa)
	}

	return ipa, nil
}

func runCommand(ctx context.Context, argv []string, stdin string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	cmd.Stdin = strings.NewReader(stdin)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return nil, fmt.Errorf("%w: %s", err, msg)
		}

		return nil, err
	}

	return stdout.Bytes(), nil
}
