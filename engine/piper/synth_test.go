package piper

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func scanDir(t *testing.T, files ...string) *Synthesizer {
	t.Helper()
	dir := t.TempDir()
	for _, f := range files {
		if err := os.WriteFile(filepath.Join(dir, f), []byte("x"), 0o644); err != nil {
			t.Fatalf("writing fixture: %v", err)
		}
	}
	s := &Synthesizer{binary: "piper", modelDir: dir, timeout: synthesisTimeout}
	s.Rescan()
	return s
}

func TestRescanDiscoversModels(t *testing.T) {
	s := scanDir(t,
		"en_US-amy-medium.onnx",
		"en_US-amy-medium.onnx.json",
		"de_DE-thorsten-low.onnx",
		"notes.txt",
	)

	voices := s.Voices()
	if len(voices) != 2 {
		t.Fatalf("Voices() = %v, want 2 models", voices)
	}
	// Sorted by name.
	if voices[0].Name != "de_DE-thorsten-low" || voices[0].Locale != "de-DE" {
		t.Errorf("voice 0 = %+v", voices[0])
	}
	if voices[1].Name != "en_US-amy-medium" || voices[1].Locale != "en-US" {
		t.Errorf("voice 1 = %+v", voices[1])
	}

	m, err := s.pick("en_US-amy-medium")
	if err != nil {
		t.Fatalf("pick() failed: %v", err)
	}
	if m.config == "" {
		t.Error("model with a sibling .onnx.json should carry its config path")
	}
}

func TestPickFallsBackToFirstModel(t *testing.T) {
	s := scanDir(t, "en_GB-alan-low.onnx")

	m, err := s.pick("nonexistent-voice")
	if err != nil {
		t.Fatalf("pick() failed: %v", err)
	}
	if m.name != "en_GB-alan-low" {
		t.Errorf("pick() = %q, want the only model", m.name)
	}

	m, err = s.pick("")
	if err != nil || m.name != "en_GB-alan-low" {
		t.Errorf("pick(\"\") = %q, %v", m.name, err)
	}
}

func TestPickNoModels(t *testing.T) {
	s := scanDir(t)
	if _, err := s.pick(""); !errors.Is(err, ErrNoModel) {
		t.Errorf("pick() error = %v, want ErrNoModel", err)
	}
}

func TestRescanPicksUpNewModels(t *testing.T) {
	s := scanDir(t)
	if len(s.Voices()) != 0 {
		t.Fatal("expected empty catalog")
	}
	if err := os.WriteFile(filepath.Join(s.modelDir, "en_US-late-high.onnx"), []byte("x"), 0o644); err != nil {
		t.Fatalf("writing model: %v", err)
	}
	if n := s.Rescan(); n != 1 {
		t.Errorf("Rescan() = %d, want 1", n)
	}
}
