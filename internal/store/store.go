// Package store persists synthesized audio as filesystem artifacts: the main
// output directory for generated clips and a separate permanent preview
// cache keyed by voice id.
package store

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/suraj5sky/sky-tts/internal/tts"
)

// FS writes audio artifacts under a pair of directories.
type FS struct {
	audioDir   string
	previewDir string
}

// NewFS creates both directories if needed.
func NewFS(audioDir, previewDir string) (*FS, error) {
	for _, dir := range []string{audioDir, previewDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create %s: %w", dir, err)
		}
	}
	return &FS{audioDir: audioDir, previewDir: previewDir}, nil
}

// SaveAudio writes one generated clip under a unique name derived from the
// service, voice and a nanosecond timestamp, and returns the serving URL.
func (s *FS) SaveAudio(service tts.Service, voiceID, ext string, audio []byte) (string, error) {
	name := fmt.Sprintf("tts_%s_%s_%d.%s", service, safeName(voiceID), time.Now().UnixNano(), ext)
	if err := os.WriteFile(filepath.Join(s.audioDir, name), audio, 0o644); err != nil {
		return "", fmt.Errorf("save %s: %v: %w", name, err, tts.ErrStorageWrite)
	}
	return "/static/audio/" + name, nil
}

// AudioPath resolves a generated-clip filename for serving. Names carrying
// path separators or dot-dot segments are rejected.
func (s *FS) AudioPath(filename string) (string, error) {
	if filename == "" || filename != filepath.Base(filename) || strings.HasPrefix(filename, ".") {
		return "", fmt.Errorf("invalid audio filename %q", filename)
	}
	path := filepath.Join(s.audioDir, filename)
	if _, err := os.Stat(path); err != nil {
		return "", fmt.Errorf("audio file %s: %w", filename, err)
	}
	return path, nil
}

// previewFormats are the container formats providers emit, in lookup order.
var previewFormats = []string{"mp3", "wav"}

// Preview returns the cached preview clip for a voice and its format, if
// present. The cache is permanent: presence alone decides, no freshness
// check.
func (s *FS) Preview(voiceID string) ([]byte, string, bool) {
	for _, format := range previewFormats {
		audio, err := os.ReadFile(s.previewPath(voiceID, format))
		if err == nil {
			return audio, format, true
		}
	}
	return nil, "", false
}

// SavePreview stores a preview clip under its container format so later
// cache hits serve the right media type. Concurrent first-requests for the
// same voice may both write; the content is identical so last-write-wins is
// fine.
func (s *FS) SavePreview(voiceID, format string, audio []byte) error {
	if err := os.WriteFile(s.previewPath(voiceID, format), audio, 0o644); err != nil {
		return fmt.Errorf("save preview %s: %v: %w", voiceID, err, tts.ErrStorageWrite)
	}
	return nil
}

func (s *FS) previewPath(voiceID, format string) string {
	return filepath.Join(s.previewDir, safeName(voiceID)+"_preview."+format)
}

// safeName flattens a voice id into a filename fragment. Some ids carry
// slashes (the generative model's speaker presets).
func safeName(id string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_', r == '.':
			return r
		default:
			return '_'
		}
	}, id)
}
