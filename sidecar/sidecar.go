// Package sidecar reads and writes per-image edit state files. Edits for
// /photos/IMG_001.RAF live at /photos/.edits/IMG_001.RAF.json, keeping
// the original files untouched and the edits easy to version or sync.
package sidecar

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/divanvisagie/Photograph"
)

const editsDir = ".edits"

// Path returns the sidecar location for an image path.
func Path(imagePath string) string {
	dir := filepath.Dir(imagePath)
	return filepath.Join(dir, editsDir, filepath.Base(imagePath)+".json")
}

// Load reads the edit state for an image. A missing sidecar is not an
// error: it returns a neutral state so unedited images render as-is.
// A corrupt sidecar is reported so edits are not silently lost.
func Load(imagePath string) (photograph.EditState, error) {
	raw, err := os.ReadFile(Path(imagePath))
	if errors.Is(err, fs.ErrNotExist) {
		return photograph.Neutral(), nil
	}
	if err != nil {
		return photograph.Neutral(), fmt.Errorf("sidecar: read %s: %w", Path(imagePath), err)
	}
	var state photograph.EditState
	if err := json.Unmarshal(raw, &state); err != nil {
		return photograph.Neutral(), fmt.Errorf("sidecar: parse %s: %w", Path(imagePath), err)
	}
	if err := state.Validate(); err != nil {
		return photograph.Neutral(), fmt.Errorf("sidecar: %s: %w", Path(imagePath), err)
	}
	return state, nil
}

// Save writes the edit state for an image, creating the .edits directory
// as needed.
func Save(imagePath string, state *photograph.EditState) error {
	p := Path(imagePath)
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return fmt.Errorf("sidecar: create %s: %w", filepath.Dir(p), err)
	}
	raw, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("sidecar: encode: %w", err)
	}
	if err := os.WriteFile(p, raw, 0o644); err != nil {
		return fmt.Errorf("sidecar: write %s: %w", p, err)
	}
	return nil
}
