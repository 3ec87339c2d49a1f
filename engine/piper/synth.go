// Package piper implements the narration device on top of the piper TTS
// binary: each utterance is synthesized to raw PCM through a subprocess and
// played back with oto. Voice models are ONNX files discovered in a model
// directory.
package piper

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/presentpro/deckvoice/engine"
)

const (
	// sampleRate is piper's PCM output rate.
	sampleRate = 22050

	synthesisTimeout = 30 * time.Second
)

var (
	// ErrBinaryNotFound indicates no piper executable could be located.
	ErrBinaryNotFound = errors.New("piper binary not found in PATH")

	// ErrNoModel indicates synthesis was requested with no voice model
	// available.
	ErrNoModel = errors.New("no piper voice model available")
)

// model is one discovered ONNX voice.
type model struct {
	name   string
	locale string
	path   string
	config string
}

// Synthesizer runs the piper binary to turn text into PCM audio.
type Synthesizer struct {
	binary   string
	modelDir string
	timeout  time.Duration

	mu     sync.Mutex
	models []model
}

// NewSynthesizer locates the piper binary and scans modelDir for voices.
// Finding no models is not an error; the voice list stays empty until a
// rescan finds some.
func NewSynthesizer(modelDir string) (*Synthesizer, error) {
	binary, err := exec.LookPath("piper")
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBinaryNotFound, err)
	}
	s := &Synthesizer{
		binary:   binary,
		modelDir: modelDir,
		timeout:  synthesisTimeout,
	}
	s.Rescan()
	return s, nil
}

// Rescan re-reads the model directory and returns the current voice count.
func (s *Synthesizer) Rescan() int {
	var found []model
	filepath.Walk(s.modelDir, func(path string, info os.FileInfo, err error) error {
		if err != nil || info.IsDir() || !strings.HasSuffix(path, ".onnx") {
			return nil
		}
		m := model{
			name: strings.TrimSuffix(filepath.Base(path), ".onnx"),
			path: path,
		}
		// Model names follow the en_US-amy-medium pattern; the leading
		// segment is the locale.
		if i := strings.IndexByte(m.name, '-'); i > 0 {
			m.locale = strings.ReplaceAll(m.name[:i], "_", "-")
		}
		if cfg := path + ".json"; fileExists(cfg) {
			m.config = cfg
		}
		found = append(found, m)
		return nil
	})
	sort.Slice(found, func(i, j int) bool { return found[i].name < found[j].name })

	s.mu.Lock()
	s.models = found
	s.mu.Unlock()
	log.Debug("piper models scanned", "dir", s.modelDir, "models", len(found))
	return len(found)
}

// Voices lists the discovered voice models.
func (s *Synthesizer) Voices() []engine.Voice {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]engine.Voice, len(s.models))
	for i, m := range s.models {
		out[i] = engine.Voice{Name: m.name, Locale: m.locale}
	}
	return out
}

// Synthesize runs piper over text and returns 16-bit mono PCM. An empty
// voice name uses the first available model. rate maps to piper's length
// scale (inverse: faster speech means a shorter length scale). Pitch is not
// supported by the piper backend and is ignored.
func (s *Synthesizer) Synthesize(ctx context.Context, text, voiceName string, rate float64) ([]byte, error) {
	m, err := s.pick(voiceName)
	if err != nil {
		return nil, err
	}

	args := []string{"--model", m.path, "--output-raw"}
	if m.config != "" {
		args = append(args, "--config", m.config)
	}
	if rate > 0 && rate != 1.0 {
		args = append(args, "--length-scale", fmt.Sprintf("%.2f", 1.0/rate))
	}

	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, s.binary, args...)
	// stdin must be wired before Start or piper can miss the input.
	cmd.Stdin = strings.NewReader(text)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("creating stdout pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("starting piper: %w", err)
	}

	var pcm bytes.Buffer
	if _, err := io.Copy(&pcm, stdout); err != nil {
		cmd.Wait()
		return nil, fmt.Errorf("reading piper output: %w", err)
	}
	if err := cmd.Wait(); err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return nil, fmt.Errorf("piper synthesis timed out after %v", s.timeout)
		}
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return nil, fmt.Errorf("piper failed: %s: %w", msg, err)
		}
		return nil, fmt.Errorf("piper failed: %w", err)
	}

	out := pcm.Bytes()
	if len(out) == 0 {
		return nil, errors.New("piper produced no audio")
	}
	if len(out)%2 != 0 {
		out = append(out, 0)
	}
	return out, nil
}

func (s *Synthesizer) pick(voiceName string) (model, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.models) == 0 {
		return model{}, ErrNoModel
	}
	if voiceName != "" {
		for _, m := range s.models {
			if m.name == voiceName {
				return m, nil
			}
		}
	}
	return s.models[0], nil
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
