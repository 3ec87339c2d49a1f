package script

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/klauspost/compress/zstd"
)

// Cache persists generated narration scripts on disk, keyed by a hash of the
// slide content, so re-presenting an unchanged deck never regenerates the
// same script twice. Entries are zstd-compressed.
type Cache struct {
	dir     string
	mu      sync.Mutex
	encoder *zstd.Encoder
	decoder *zstd.Decoder
}

// OpenCache opens (creating if needed) a script cache rooted at dir.
func OpenCache(dir string) (*Cache, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating script cache dir: %w", err)
	}
	enc, err := zstd.NewWriter(nil)
	if err != nil {
		return nil, fmt.Errorf("creating zstd encoder: %w", err)
	}
	dec, err := zstd.NewReader(nil)
	if err != nil {
		enc.Close()
		return nil, fmt.Errorf("creating zstd decoder: %w", err)
	}
	return &Cache{dir: dir, encoder: enc, decoder: dec}, nil
}

// Key derives the cache key for a slide's content.
func Key(slideText string) string {
	sum := sha256.Sum256([]byte(slideText))
	return hex.EncodeToString(sum[:16])
}

// Get returns the cached script for a key, if present and readable.
func (c *Cache) Get(key string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	data, err := os.ReadFile(c.path(key))
	if err != nil {
		return "", false
	}
	plain, err := c.decoder.DecodeAll(data, nil)
	if err != nil {
		// Corrupt entry: drop it so the next Put rewrites cleanly.
		os.Remove(c.path(key))
		return "", false
	}
	return string(plain), true
}

// Put stores a script under key. The write is atomic: temp file then rename.
func (c *Cache) Put(key, script string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	data := c.encoder.EncodeAll([]byte(script), nil)
	path := c.path(key)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("writing script cache entry: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("committing script cache entry: %w", err)
	}
	return nil
}

// Clear removes every cached script.
func (c *Cache) Clear() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	entries, err := os.ReadDir(c.dir)
	if err != nil {
		return err
	}
	for _, e := range entries {
		if filepath.Ext(e.Name()) == ".zst" {
			os.Remove(filepath.Join(c.dir, e.Name()))
		}
	}
	return nil
}

// Close releases the compressor resources.
func (c *Cache) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.encoder.Close()
	c.decoder.Close()
	return nil
}

func (c *Cache) path(key string) string {
	return filepath.Join(c.dir, key+".zst")
}
