// Package bark synthesizes speech through a locally hosted Bark generative
// model server. The model set is large and lives on disk; the adapter checks
// it lazily on first use and exposes the outcome through Available so the
// dispatch layer can jump straight to the fallback chain instead of paying
// the model-server round trip on every request after a failed load.
//
// Bark is CPU-bound by default and materially slower than the cloud
// services; the timeout here is accordingly generous.
package bark

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/suraj5sky/sky-tts/internal/tts"
)

const (
	defaultBaseURL = "http://127.0.0.1:8351"
	defaultTimeout = 120 * time.Second
)

// modelFiles are the weights Bark preloads; all must exist in the cache
// directory for the model server to run.
var modelFiles = []string{"text_2.pt", "coarse_2.pt", "fine_2.pt", "encodec_model.pt"}

// DefaultModelDir returns the conventional Bark weight cache location.
func DefaultModelDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".cache/suno/bark_v0"
	}
	return filepath.Join(home, ".cache", "suno", "bark_v0")
}

// Option configures the Client.
type Option func(*Client)

// WithBaseURL points the adapter at a different model server address.
func WithBaseURL(u string) Option {
	return func(c *Client) {
		if u != "" {
			c.baseURL = u
		}
	}
}

// WithModelDir overrides the weight cache directory checked during init.
func WithModelDir(dir string) Option {
	return func(c *Client) {
		if dir != "" {
			c.modelDir = dir
		}
	}
}

// WithTimeout caps one synthesis call.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// Client implements tts.Synthesizer against the local model server.
type Client struct {
	baseURL    string
	modelDir   string
	timeout    time.Duration
	httpClient *http.Client

	initOnce sync.Once
	initErr  error
}

var _ tts.Synthesizer = (*Client)(nil)

// New creates a Bark client. No I/O happens until the first use.
func New(opts ...Option) *Client {
	c := &Client{
		baseURL:    defaultBaseURL,
		modelDir:   DefaultModelDir(),
		timeout:    defaultTimeout,
		httpClient: &http.Client{},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Service returns the tag this adapter handles.
func (c *Client) Service() tts.Service {
	return tts.ServiceBark
}

// Available runs the lazy model-set check and reports whether synthesis can
// be attempted. The check runs once per process; a failed load stays failed.
func (c *Client) Available() bool {
	return c.init() == nil
}

func (c *Client) init() error {
	c.initOnce.Do(func() {
		for _, f := range modelFiles {
			if _, err := os.Stat(filepath.Join(c.modelDir, f)); err != nil {
				c.initErr = fmt.Errorf("bark: model file %s: %v: %w", f, err, tts.ErrServiceUnavailable)
				return
			}
		}
	})
	return c.initErr
}

type synthesizeRequest struct {
	Text  string `json:"text"`
	Voice string `json:"voice,omitempty"`
}

// Synthesize posts the text to the model server and returns the WAV it
// renders. Prosody params are ignored; the model has no such controls.
func (c *Client) Synthesize(ctx context.Context, req tts.Request) (*tts.Result, error) {
	if err := c.init(); err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	body, err := json.Marshal(synthesizeRequest{Text: req.Text, Voice: req.VoiceID})
	if err != nil {
		return nil, fmt.Errorf("bark: encode request: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/synthesize", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("bark: build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("bark: %w", tts.ErrTimeout)
		}
		return nil, fmt.Errorf("bark: model server: %v: %w", err, tts.ErrServiceUnavailable)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("bark: model server status %d: %w", resp.StatusCode, tts.ErrSynthesisFailed)
	}
	audio, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("bark: read audio: %v: %w", err, tts.ErrSynthesisFailed)
	}
	if len(audio) == 0 {
		return nil, fmt.Errorf("bark: empty audio: %w", tts.ErrSynthesisFailed)
	}
	return &tts.Result{Audio: audio, Format: "wav", ContentType: "audio/wav"}, nil
}
