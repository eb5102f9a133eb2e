package model

import "fmt"

// DefaultBaseURL hosts the released Kokoro ONNX export.
const DefaultBaseURL = "https://github.com/tetratorus/kokoro-tts/releases/download/v1"

// DefaultModelFile is the model file name under DefaultBaseURL.
const DefaultModelFile = "kokoro-v0_19.onnx"

type Manifest struct {
	Name  string      `json:"name"`
	Files []ModelFile `json:"files"`
}

// ModelFile is one downloadable artifact. An empty SHA256 means the checksum
// is recorded on first download and enforced afterwards.
type ModelFile struct {
	Filename string `json:"filename"`
	URL      string `json:"url"`
	SHA256   string `json:"sha256"`
}

// PinnedManifest returns the artifacts of a named release.
func PinnedManifest(name string) (Manifest, error) {
	switch name {
	case "", "kokoro-v0_19":
		return Manifest{
			Name: "kokoro-v0_19",
			Files: []ModelFile{
				{
					Filename: DefaultModelFile,
					URL:      DefaultBaseURL + "/" + DefaultModelFile,
				},
			},
		}, nil
	default:
		return Manifest{}, fmt.Errorf("no pinned manifest for %q", name)
	}
}
