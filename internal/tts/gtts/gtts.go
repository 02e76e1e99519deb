// Package gtts synthesizes speech through the Google Translate TTS endpoint.
// It is the universal fallback: no credentials, no per-voice configuration,
// and no prosody control. The voice id on a request is a translate language
// code ("hi", "en", "zh-CN"), not a voice name.
package gtts

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/suraj5sky/sky-tts/internal/tts"
)

const (
	defaultBaseURL = "https://translate.google.com/translate_tts"
	defaultTimeout = 30 * time.Second

	// The endpoint rejects long q values; text is split on whitespace into
	// chunks below this and the MP3 segments are concatenated.
	maxChunkLen = 200
)

// Option configures the Client.
type Option func(*Client)

// WithBaseURL overrides the endpoint.
func WithBaseURL(u string) Option {
	return func(c *Client) {
		if u != "" {
			c.baseURL = u
		}
	}
}

// WithTimeout caps one synthesis call across all chunks.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// Client implements tts.Synthesizer over plain HTTP GET requests.
type Client struct {
	baseURL    string
	timeout    time.Duration
	httpClient *http.Client
}

var _ tts.Synthesizer = (*Client)(nil)

// New creates a translate-TTS client.
func New(opts ...Option) *Client {
	c := &Client{
		baseURL:    defaultBaseURL,
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
	return tts.ServiceGTTS
}

// Synthesize fetches MP3 audio for each text chunk and concatenates the
// segments. Prosody params are ignored; the service has none.
func (c *Client) Synthesize(ctx context.Context, req tts.Request) (*tts.Result, error) {
	lang := req.VoiceID
	if lang == "" {
		return nil, fmt.Errorf("gtts: empty language code: %w", tts.ErrSynthesisFailed)
	}
	text := strings.TrimSpace(req.Text)
	if text == "" {
		return nil, fmt.Errorf("gtts: empty text: %w", tts.ErrSynthesisFailed)
	}
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var audio []byte
	for _, chunk := range splitChunks(text, maxChunkLen) {
		seg, err := c.fetch(ctx, lang, chunk)
		if err != nil {
			return nil, err
		}
		audio = append(audio, seg...)
	}
	return &tts.Result{Audio: audio, Format: "mp3", ContentType: "audio/mpeg"}, nil
}

func (c *Client) fetch(ctx context.Context, lang, text string) ([]byte, error) {
	q := url.Values{}
	q.Set("ie", "UTF-8")
	q.Set("client", "tw-ob")
	q.Set("tl", lang)
	q.Set("q", text)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("gtts: build request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("gtts: %w", tts.ErrTimeout)
		}
		return nil, fmt.Errorf("gtts: fetch: %v: %w", err, tts.ErrSynthesisFailed)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("gtts: status %d for lang %q: %w", resp.StatusCode, lang, tts.ErrSynthesisFailed)
	}
	seg, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("gtts: read body: %v: %w", err, tts.ErrSynthesisFailed)
	}
	if len(seg) == 0 {
		return nil, fmt.Errorf("gtts: empty audio for lang %q: %w", lang, tts.ErrSynthesisFailed)
	}
	return seg, nil
}

// splitChunks breaks text on whitespace into runs no longer than limit.
// A single word longer than the limit becomes its own chunk.
func splitChunks(text string, limit int) []string {
	words := strings.Fields(text)
	var chunks []string
	var cur strings.Builder
	for _, w := range words {
		if cur.Len() > 0 && cur.Len()+1+len(w) > limit {
			chunks = append(chunks, cur.String())
			cur.Reset()
		}
		if cur.Len() > 0 {
			cur.WriteByte(' ')
		}
		cur.WriteString(w)
	}
	if cur.Len() > 0 {
		chunks = append(chunks, cur.String())
	}
	return chunks
}
