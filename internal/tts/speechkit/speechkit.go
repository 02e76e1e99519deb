// Package speechkit synthesizes speech through the Yandex SpeechKit v3 gRPC
// API. The service accepts a bare speed multiplier as a hint; pitch has no
// equivalent on this API and is dropped during normalization.
package speechkit

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"time"

	ttsv3 "github.com/yandex-cloud/go-genproto/yandex/cloud/ai/tts/v3"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/metadata"

	"github.com/suraj5sky/sky-tts/internal/tts"
)

const (
	defaultEndpoint = "tts.api.cloud.yandex.net:443"
	defaultModel    = "general"
	defaultTimeout  = 30 * time.Second
)

// Option configures the Client.
type Option func(*Client)

// WithModel selects the synthesis model.
func WithModel(model string) Option {
	return func(c *Client) {
		if model != "" {
			c.model = model
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

// Client implements tts.Synthesizer over the SpeechKit UtteranceSynthesis
// streaming RPC. One call drains the full stream before returning.
type Client struct {
	api      ttsv3.SynthesizerClient
	conn     *grpc.ClientConn
	apiKey   string
	folderID string
	model    string
	timeout  time.Duration
}

var _ tts.Synthesizer = (*Client)(nil)

// New dials the SpeechKit endpoint over TLS. The connection is shared across
// calls; each call is its own server stream.
func New(apiKey, folderID string, opts ...Option) (*Client, error) {
	if apiKey == "" || folderID == "" {
		return nil, fmt.Errorf("speechkit: missing api key or folder id: %w", tts.ErrServiceUnavailable)
	}
	conn, err := grpc.NewClient(defaultEndpoint, grpc.WithTransportCredentials(credentials.NewTLS(&tls.Config{})))
	if err != nil {
		return nil, fmt.Errorf("speechkit: connect: %v: %w", err, tts.ErrServiceUnavailable)
	}
	c := &Client{
		api:      ttsv3.NewSynthesizerClient(conn),
		conn:     conn,
		apiKey:   apiKey,
		folderID: folderID,
		model:    defaultModel,
		timeout:  defaultTimeout,
	}
	for _, o := range opts {
		o(c)
	}
	return c, nil
}

// NewWithAPI builds a client around an existing RPC client; used by tests.
func NewWithAPI(api ttsv3.SynthesizerClient, opts ...Option) *Client {
	c := &Client{api: api, model: defaultModel, timeout: defaultTimeout}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Service returns the tag this adapter handles.
func (c *Client) Service() tts.Service {
	return tts.ServiceSpeechKit
}

// Synthesize starts an utterance synthesis stream and concatenates the audio
// chunks. The result is WAV.
func (c *Client) Synthesize(ctx context.Context, req tts.Request) (*tts.Result, error) {
	if c.api == nil {
		return nil, fmt.Errorf("speechkit: client not configured: %w", tts.ErrServiceUnavailable)
	}
	if req.VoiceID == "" {
		return nil, fmt.Errorf("speechkit: empty voice id: %w", tts.ErrSynthesisFailed)
	}
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	ctx = metadata.AppendToOutgoingContext(ctx,
		"authorization", "Api-Key "+c.apiKey,
		"x-folder-id", c.folderID,
	)

	stream, err := c.api.UtteranceSynthesis(ctx, c.buildRequest(req))
	if err != nil {
		return nil, wrapErr("start synthesis", err)
	}

	var audio []byte
	for {
		resp, err := stream.Recv()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, wrapErr("receive audio", err)
		}
		if chunk := resp.GetAudioChunk(); chunk != nil {
			audio = append(audio, chunk.GetData()...)
		}
	}
	if len(audio) == 0 {
		return nil, fmt.Errorf("speechkit: empty audio for voice %s: %w", req.VoiceID, tts.ErrSynthesisFailed)
	}
	return &tts.Result{Audio: audio, Format: "wav", ContentType: "audio/wav"}, nil
}

func (c *Client) buildRequest(req tts.Request) *ttsv3.UtteranceSynthesisRequest {
	out := &ttsv3.UtteranceSynthesisRequest{}
	out.SetModel(c.model)
	out.SetText(req.Text)

	voiceHint := &ttsv3.Hints{}
	voiceHint.SetVoice(req.VoiceID)
	hints := []*ttsv3.Hints{voiceHint}
	if req.Params.Speed != 0 {
		speedHint := &ttsv3.Hints{}
		speedHint.SetSpeed(req.Params.Speed)
		hints = append(hints, speedHint)
	}
	out.SetHints(hints)

	container := &ttsv3.ContainerAudio{}
	container.SetContainerAudioType(ttsv3.ContainerAudio_WAV)
	audioSpec := &ttsv3.AudioFormatOptions{}
	audioSpec.SetContainerAudio(container)
	out.SetOutputAudioSpec(audioSpec)
	out.SetLoudnessNormalizationType(ttsv3.UtteranceSynthesisRequest_LUFS)
	return out
}

// Close releases the shared gRPC connection.
func (c *Client) Close() error {
	if c.conn == nil {
		return nil
	}
	return c.conn.Close()
}

func wrapErr(op string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("speechkit: %s: %w", op, tts.ErrTimeout)
	}
	return fmt.Errorf("speechkit: %s: %v: %w", op, err, tts.ErrSynthesisFailed)
}
