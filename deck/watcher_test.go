package deck

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestWatcherReloadsOnWrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "talk.json")
	write := func(content string) {
		t.Helper()
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			t.Fatalf("writing deck: %v", err)
		}
	}
	write(`{"slides": [{"title": "a", "body": "one"}]}`)

	reloads := make(chan *Deck, 4)
	w, err := Watch(path, func(d *Deck, err error) {
		if err == nil {
			reloads <- d
		}
	})
	if err != nil {
		t.Fatalf("Watch() failed: %v", err)
	}
	defer w.Close()

	write(`{"slides": [{"title": "a", "body": "one"}, {"title": "b", "body": "two"}]}`)

	select {
	case d := <-reloads:
		if d.Len() != 2 {
			t.Errorf("reloaded deck has %d slides, want 2", d.Len())
		}
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for reload")
	}
}

func TestWatcherIgnoresSiblingFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "talk.json")
	if err := os.WriteFile(path, []byte(`{"slides": [{"title": "a", "body": "x"}]}`), 0o644); err != nil {
		t.Fatalf("writing deck: %v", err)
	}

	reloads := make(chan struct{}, 4)
	w, err := Watch(path, func(*Deck, error) { reloads <- struct{}{} })
	if err != nil {
		t.Fatalf("Watch() failed: %v", err)
	}
	defer w.Close()

	if err := os.WriteFile(filepath.Join(dir, "other.txt"), []byte("noise"), 0o644); err != nil {
		t.Fatalf("writing sibling: %v", err)
	}

	select {
	case <-reloads:
		t.Error("sibling file writes must not trigger a reload")
	case <-time.After(500 * time.Millisecond):
	}
}
