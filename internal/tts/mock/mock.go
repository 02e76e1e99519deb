// Package mock provides a scriptable tts.Synthesizer for tests.
package mock

import (
	"context"
	"sync"

	"github.com/suraj5sky/sky-tts/internal/tts"
)

// Synthesizer records calls and returns a scripted result or error.
type Synthesizer struct {
	Tag tts.Service

	// Result and Err control the outcome. SynthesizeFunc, when set,
	// overrides both.
	Result         *tts.Result
	Err            error
	SynthesizeFunc func(ctx context.Context, req tts.Request) (*tts.Result, error)

	mu    sync.Mutex
	calls []tts.Request
}

var _ tts.Synthesizer = (*Synthesizer)(nil)

// New creates a mock for the given service tag that returns audio.
func New(tag tts.Service) *Synthesizer {
	return &Synthesizer{
		Tag:    tag,
		Result: &tts.Result{Audio: []byte("mock-audio-" + string(tag)), Format: "mp3", ContentType: "audio/mpeg"},
	}
}

// Failing creates a mock that always fails with err.
func Failing(tag tts.Service, err error) *Synthesizer {
	return &Synthesizer{Tag: tag, Err: err}
}

func (m *Synthesizer) Service() tts.Service {
	return m.Tag
}

func (m *Synthesizer) Synthesize(ctx context.Context, req tts.Request) (*tts.Result, error) {
	m.mu.Lock()
	m.calls = append(m.calls, req)
	m.mu.Unlock()
	if m.SynthesizeFunc != nil {
		return m.SynthesizeFunc(ctx, req)
	}
	if m.Err != nil {
		return nil, m.Err
	}
	return m.Result, nil
}

// Calls returns a copy of every request seen so far.
func (m *Synthesizer) Calls() []tts.Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]tts.Request, len(m.calls))
	copy(out, m.calls)
	return out
}

// CallCount returns how many times Synthesize ran.
func (m *Synthesizer) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}
