// Package edge synthesizes speech through the Microsoft Edge read-aloud
// service. The service streams audio over a WebSocket; each Synthesize call
// owns a single-use connection, drives the exchange to completion, and
// materializes the stream through a temporary file before returning, so the
// adapter presents a plain synchronous contract with no shared session state.
package edge

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"

	"github.com/suraj5sky/sky-tts/internal/tts"
)

const (
	wsEndpoint         = "wss://speech.platform.bing.com/consumer/speech/synthesize/readaloud/edge/v1"
	trustedClientToken = "6A5AA1D4EAFF4E9FB37E23D68491D6F4"
	outputFormat       = "audio-24khz-48kbitrate-mono-mp3"

	defaultTimeout = 30 * time.Second
)

// Option configures the Client.
type Option func(*Client)

// WithTimeout caps the duration of one synthesis exchange.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithEndpoint overrides the service WebSocket endpoint.
func WithEndpoint(url string) Option {
	return func(c *Client) {
		if url != "" {
			c.endpoint = url
		}
	}
}

// Client implements tts.Synthesizer over the Edge read-aloud WebSocket.
type Client struct {
	endpoint string
	timeout  time.Duration
}

var _ tts.Synthesizer = (*Client)(nil)

// New creates an Edge client. The service needs no credentials.
func New(opts ...Option) *Client {
	c := &Client{endpoint: wsEndpoint, timeout: defaultTimeout}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Service returns the tag this adapter handles.
func (c *Client) Service() tts.Service {
	return tts.ServiceEdge
}

// Synthesize runs one streaming exchange: dial, send the audio-format config
// and the SSML turn, then collect binary audio frames until the service
// signals turn end. The result is MP3.
func (c *Client) Synthesize(ctx context.Context, req tts.Request) (*tts.Result, error) {
	if req.VoiceID == "" {
		return nil, fmt.Errorf("edge: empty voice id: %w", tts.ErrSynthesisFailed)
	}
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	connID := strings.ReplaceAll(uuid.NewString(), "-", "")
	url := fmt.Sprintf("%s?TrustedClientToken=%s&ConnectionId=%s", c.endpoint, trustedClientToken, connID)

	conn, _, err := websocket.Dial(ctx, url, nil)
	if err != nil {
		return nil, wrapErr("dial", err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "done")
	// Audio frames for one utterance can exceed the library default.
	conn.SetReadLimit(1 << 22)

	ts := timestamp()
	config := "X-Timestamp:" + ts + "\r\n" +
		"Content-Type:application/json; charset=utf-8\r\n" +
		"Path:speech.config\r\n\r\n" +
		`{"context":{"synthesis":{"audio":{"metadataoptions":{"sentenceBoundaryEnabled":"false","wordBoundaryEnabled":"false"},"outputFormat":"` + outputFormat + `"}}}}`
	if err := conn.Write(ctx, websocket.MessageText, []byte(config)); err != nil {
		return nil, wrapErr("send config", err)
	}

	ssml := c.buildSSML(req)
	turn := "X-RequestId:" + connID + "\r\n" +
		"Content-Type:application/ssml+xml\r\n" +
		"X-Timestamp:" + ts + "\r\n" +
		"Path:ssml\r\n\r\n" + ssml
	if err := conn.Write(ctx, websocket.MessageText, []byte(turn)); err != nil {
		return nil, wrapErr("send ssml", err)
	}

	// Spool the stream to a temp file and read it back once the turn ends.
	tmp, err := os.CreateTemp("", "edge-tts-*.mp3")
	if err != nil {
		return nil, fmt.Errorf("edge: temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if err := c.collect(ctx, conn, tmp); err != nil {
		tmp.Close()
		return nil, err
	}
	if err := tmp.Close(); err != nil {
		return nil, fmt.Errorf("edge: close temp file: %w", err)
	}

	audio, err := os.ReadFile(tmpName)
	if err != nil {
		return nil, fmt.Errorf("edge: read temp file: %w", err)
	}
	if len(audio) == 0 {
		return nil, fmt.Errorf("edge: no audio for voice %s: %w", req.VoiceID, tts.ErrSynthesisFailed)
	}
	return &tts.Result{Audio: audio, Format: "mp3", ContentType: "audio/mpeg"}, nil
}

// collect reads frames until turn.end. Binary frames carry a 2-byte
// big-endian header length, the header text, then raw audio; only frames
// whose header names the audio path carry payload.
func (c *Client) collect(ctx context.Context, conn *websocket.Conn, tmp *os.File) error {
	for {
		typ, msg, err := conn.Read(ctx)
		if err != nil {
			return wrapErr("read", err)
		}
		switch typ {
		case websocket.MessageText:
			if strings.Contains(string(msg), "Path:turn.end") {
				return nil
			}
		case websocket.MessageBinary:
			if len(msg) < 2 {
				continue
			}
			headerLen := int(binary.BigEndian.Uint16(msg[:2]))
			if len(msg) < 2+headerLen {
				continue
			}
			header := msg[2 : 2+headerLen]
			if !bytes.Contains(header, []byte("Path:audio")) {
				continue
			}
			if _, err := tmp.Write(msg[2+headerLen:]); err != nil {
				return fmt.Errorf("edge: spool audio: %w", err)
			}
		}
	}
}

func (c *Client) buildSSML(req tts.Request) string {
	if req.SSML {
		return req.Text
	}
	rate := req.Params.Rate
	if rate == "" {
		rate = "+0%"
	}
	return fmt.Sprintf(
		`<speak version='1.0' xmlns='http://www.w3.org/2001/10/synthesis' xml:lang='en-US'>`+
			`<voice name='%s'><prosody rate='%s' pitch='+0Hz' volume='+0%%'>%s</prosody></voice></speak>`,
		req.VoiceID, rate, escapeText(req.Text))
}

func wrapErr(op string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("edge: %s: %w", op, tts.ErrTimeout)
	}
	return fmt.Errorf("edge: %s: %v: %w", op, err, tts.ErrSynthesisFailed)
}

var textEscaper = strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;")

func escapeText(s string) string {
	return textEscaper.Replace(s)
}

func timestamp() string {
	return time.Now().UTC().Format("Mon Jan 02 2006 15:04:05") + " GMT+0000 (Coordinated Universal Time)"
}
