// Package polly synthesizes speech through Amazon Polly. Speed and pitch are
// carried independently as SSML prosody attributes, unlike the streaming
// provider which folds them into one rate token.
package polly

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	awspolly "github.com/aws/aws-sdk-go-v2/service/polly"
	"github.com/aws/aws-sdk-go-v2/service/polly/types"

	"github.com/suraj5sky/sky-tts/internal/tts"
)

const defaultTimeout = 30 * time.Second

// SynthesizeSpeechAPI is the slice of the Polly client this adapter uses;
// tests substitute a fake.
type SynthesizeSpeechAPI interface {
	SynthesizeSpeech(ctx context.Context, params *awspolly.SynthesizeSpeechInput, optFns ...func(*awspolly.Options)) (*awspolly.SynthesizeSpeechOutput, error)
}

// Option configures the Client.
type Option func(*Client)

// WithEngine selects the Polly engine ("standard" or "neural"). The standard
// engine is the default: it honors prosody pitch, which neural rejects.
func WithEngine(engine string) Option {
	return func(c *Client) {
		if engine != "" {
			c.engine = types.Engine(engine)
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

// Client implements tts.Synthesizer over the Polly SynthesizeSpeech API.
type Client struct {
	api     SynthesizeSpeechAPI
	engine  types.Engine
	timeout time.Duration
}

var _ tts.Synthesizer = (*Client)(nil)

// New loads the default AWS credential chain for the region and builds a
// Polly client from it.
func New(ctx context.Context, region string, opts ...Option) (*Client, error) {
	if region == "" {
		return nil, fmt.Errorf("polly: empty region: %w", tts.ErrServiceUnavailable)
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("polly: load AWS config: %v: %w", err, tts.ErrServiceUnavailable)
	}
	return NewWithAPI(awspolly.NewFromConfig(cfg), opts...), nil
}

// NewWithAPI builds a client around an existing API implementation.
func NewWithAPI(api SynthesizeSpeechAPI, opts ...Option) *Client {
	c := &Client{api: api, engine: types.EngineStandard, timeout: defaultTimeout}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Service returns the tag this adapter handles.
func (c *Client) Service() tts.Service {
	return tts.ServicePolly
}

// Synthesize issues one SynthesizeSpeech call and drains the audio stream.
// The result is MP3.
func (c *Client) Synthesize(ctx context.Context, req tts.Request) (*tts.Result, error) {
	if c.api == nil {
		return nil, fmt.Errorf("polly: client not configured: %w", tts.ErrServiceUnavailable)
	}
	if req.VoiceID == "" {
		return nil, fmt.Errorf("polly: empty voice id: %w", tts.ErrSynthesisFailed)
	}
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	text, textType := buildInput(req)
	out, err := c.api.SynthesizeSpeech(ctx, &awspolly.SynthesizeSpeechInput{
		Text:         aws.String(text),
		TextType:     textType,
		VoiceId:      types.VoiceId(req.VoiceID),
		OutputFormat: types.OutputFormatMp3,
		Engine:       c.engine,
	})
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("polly: %w", tts.ErrTimeout)
		}
		return nil, fmt.Errorf("polly: synthesize voice %s: %v: %w", req.VoiceID, err, tts.ErrSynthesisFailed)
	}
	defer out.AudioStream.Close()

	audio, err := io.ReadAll(out.AudioStream)
	if err != nil {
		return nil, fmt.Errorf("polly: read audio stream: %v: %w", err, tts.ErrSynthesisFailed)
	}
	if len(audio) == 0 {
		return nil, fmt.Errorf("polly: empty audio for voice %s: %w", req.VoiceID, tts.ErrSynthesisFailed)
	}
	return &tts.Result{Audio: audio, Format: "mp3", ContentType: "audio/mpeg"}, nil
}

// buildInput wraps plain text in prosody markup when parameters are present.
// Caller-authored SSML passes through verbatim.
func buildInput(req tts.Request) (string, types.TextType) {
	if req.SSML {
		return req.Text, types.TextTypeSsml
	}
	if req.Params.ProsodyRate == "" && req.Params.ProsodyPitch == "" {
		return req.Text, types.TextTypeText
	}
	var b strings.Builder
	b.WriteString("<speak><prosody")
	if req.Params.ProsodyRate != "" {
		fmt.Fprintf(&b, " rate='%s'", req.Params.ProsodyRate)
	}
	if req.Params.ProsodyPitch != "" {
		fmt.Fprintf(&b, " pitch='%s'", req.Params.ProsodyPitch)
	}
	b.WriteString(">")
	b.WriteString(escapeText(req.Text))
	b.WriteString("</prosody></speak>")
	return b.String(), types.TextTypeSsml
}

var textEscaper = strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;")

func escapeText(s string) string {
	return textEscaper.Replace(s)
}
