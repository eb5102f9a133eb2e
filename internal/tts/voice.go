package tts

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/example/go-kokoro-tts/internal/voicepack"
)

// Voice is one voicepack entry of voices/manifest.json. Lang is the
// phonemizer locale the voice was trained on ("en-us" for af_*, "en-gb" for
// bf_*); empty means DefaultLang.
type Voice struct {
	ID      string `json:"id"`
	Path    string `json:"path"`
	Lang    string `json:"lang,omitempty"`
	License string `json:"license"`
}

type voiceManifest struct {
	Voices []Voice `json:"voices"`
}

type VoiceManager struct {
	manifestPath string
	baseDir      string
	voices       []Voice
	byID         map[string]Voice

	mu     sync.Mutex
	loaded map[string]*voicepack.VoicePack
}

func NewVoiceManager(manifestPath string) (*VoiceManager, error) {
	if manifestPath == "" {
		return nil, errors.New("manifest path is required")
	}

	data, err := os.ReadFile(manifestPath)
	if err != nil {
		return nil, fmt.Errorf("read voice manifest: %w", err)
	}

	var manifest voiceManifest

	err = json.Unmarshal(data, &manifest)
	if err != nil {
		return nil, fmt.Errorf("decode voice manifest: %w", err)
	}

	mgr := &VoiceManager{
		manifestPath: manifestPath,
		baseDir:      filepath.Dir(manifestPath),
		voices:       append([]Voice(nil), manifest.Voices...),
		byID:         make(map[string]Voice, len(manifest.Voices)),
		loaded:       make(map[string]*voicepack.VoicePack),
	}

	for _, v := range manifest.Voices {
		if v.ID == "" {
			return nil, errors.New("voice manifest contains empty id")
		}

		if v.Path == "" {
			return nil, fmt.Errorf("voice %q has empty path", v.ID)
		}

		if _, exists := mgr.byID[v.ID]; exists {
			return nil, fmt.Errorf("duplicate voice id %q", v.ID)
		}

		mgr.byID[v.ID] = v
	}

	return mgr, nil
}

func (m *VoiceManager) ListVoices() []Voice {
	return append([]Voice(nil), m.voices...)
}

func (m *VoiceManager) ResolvePath(id string) (string, error) {
	v, ok := m.byID[id]
	if !ok {
		return "", fmt.Errorf("%w %q", ErrUnknownVoice, id)
	}

	resolved := v.Path
	if !filepath.IsAbs(resolved) {
		resolved = filepath.Join(m.baseDir, resolved)
	}

	resolved = filepath.Clean(resolved)

	_, err := os.Stat(resolved)
	if err != nil {
		return "", fmt.Errorf("voice file for %q: %w", id, err)
	}

	return resolved, nil
}

// Lookup returns the manifest entry for id.
func (m *VoiceManager) Lookup(id string) (Voice, bool) {
	v, ok := m.byID[id]
	return v, ok
}

// Lang returns the locale for id, falling back to DefaultLang.
func (m *VoiceManager) Lang(id string) string {
	if v, ok := m.byID[id]; ok && v.Lang != "" {
		return v.Lang
	}

	return DefaultLang
}

// Load resolves id and decodes its voicepack. Decoded packs are cached and
// shared; callers must not mutate them.
func (m *VoiceManager) Load(id string) (*voicepack.VoicePack, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if vp, ok := m.loaded[id]; ok {
		return vp, nil
	}

	path, err := m.ResolvePath(id)
	if err != nil {
		return nil, err
	}

	vp, err := voicepack.Load(path)
	if err != nil {
		return nil, fmt.Errorf("load voice %q: %w", id, err)
	}

	m.loaded[id] = vp

	return vp, nil
}
