package sidecar

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/divanvisagie/Photograph"
)

func TestPathUsesEditsFolder(t *testing.T) {
	got := Path(filepath.Join("/photos", "IMG_001.RAF"))
	want := filepath.Join("/photos", ".edits", "IMG_001.RAF.json")
	if got != want {
		t.Errorf("Path = %q, want %q", got, want)
	}
}

func TestRoundTrip(t *testing.T) {
	dir := t.TempDir()
	imagePath := filepath.Join(dir, "shot.jpg")

	state := photograph.Neutral()
	state.Rotate = 270
	state.Exposure = 0.8
	state.Crop = &photograph.Rect{X: 0.1, Y: 0.1, Width: 0.5, Height: 0.5}

	if err := Save(imagePath, &state); err != nil {
		t.Fatalf("Save: %v", err)
	}
	loaded, err := Load(imagePath)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if loaded.Rotate != 270 || loaded.Exposure != 0.8 || loaded.Crop == nil {
		t.Errorf("loaded state lost fields: %+v", loaded)
	}
}

func TestLoadMissingReturnsNeutral(t *testing.T) {
	state, err := Load(filepath.Join(t.TempDir(), "nothing.jpg"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !state.IsNeutral() {
		t.Error("missing sidecar not neutral")
	}
}

func TestLoadCorruptReportsError(t *testing.T) {
	dir := t.TempDir()
	imagePath := filepath.Join(dir, "shot.jpg")
	p := Path(imagePath)
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(p, []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(imagePath); err == nil {
		t.Error("corrupt sidecar loaded without error")
	}
}

func TestLoadRejectsInvalidState(t *testing.T) {
	dir := t.TempDir()
	imagePath := filepath.Join(dir, "shot.jpg")

	bad := photograph.Neutral()
	bad.Rotate = 45
	if err := Save(imagePath, &bad); err != nil {
		t.Fatalf("Save: %v", err)
	}
	_, err := Load(imagePath)
	if !errors.Is(err, photograph.ErrInvalidState) {
		t.Errorf("Load = %v, want ErrInvalidState", err)
	}
}
