// Package dispatch implements the core voice-resolution engine.
//
// The resolver receives one generation request, looks the voice up in the
// catalog, normalizes the prosody parameters into the owning provider's
// encoding, and invokes that provider's adapter. On any primary failure it
// makes exactly one fallback hop to the phonetic service with the raw text
// and a best-effort language code — no retries, no circuit breaker. The
// caller always learns when a substitution happened: the fallback result
// carries a marked voice name.
package dispatch

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/suraj5sky/sky-tts/internal/catalog"
	"github.com/suraj5sky/sky-tts/internal/observe"
	"github.com/suraj5sky/sky-tts/internal/tts"
	"github.com/suraj5sky/sky-tts/internal/tts/params"
)

// fallbackMark is appended to the voice name when the phonetic fallback
// produced the audio instead of the requested provider.
const fallbackMark = " (gTTS Fallback)"

// Request is one resolution call.
type Request struct {
	Text     string
	Language string
	VoiceID  string
	Speed    float64
	Pitch    float64
	SSML     bool
}

// Result is the unified envelope for a successful resolution.
type Result struct {
	AudioURL  string
	Audio     []byte
	Format    string
	VoiceUsed string
	Service   tts.Service
	Fallback  bool
	Voice     catalog.Voice
}

// AudioStore persists generated clips and preview artifacts.
type AudioStore interface {
	SaveAudio(service tts.Service, voiceID, ext string, audio []byte) (string, error)
	Preview(voiceID string) ([]byte, string, bool)
	SavePreview(voiceID, format string, audio []byte) error
}

// availabler is implemented by adapters that can fail to initialize their
// backing model; the resolver skips them without paying a call.
type availabler interface {
	Available() bool
}

// Resolver routes requests to provider adapters.
type Resolver struct {
	catalog  *catalog.Catalog
	adapters map[tts.Service]tts.Synthesizer
	fallback tts.Synthesizer
	store    AudioStore
	metrics  *observe.Metrics
}

// New creates a Resolver. fallback is the phonetic adapter used for the
// single fallback hop; it may also appear in adapters as a primary. metrics
// may be nil.
func New(cat *catalog.Catalog, adapters []tts.Synthesizer, fallback tts.Synthesizer, store AudioStore, metrics *observe.Metrics) *Resolver {
	am := make(map[tts.Service]tts.Synthesizer, len(adapters))
	for _, a := range adapters {
		am[a.Service()] = a
	}
	return &Resolver{
		catalog:  cat,
		adapters: am,
		fallback: fallback,
		store:    store,
		metrics:  metrics,
	}
}

// Resolve runs the full lookup → normalize → synthesize → persist pipeline
// and returns an envelope with a retrievable URL.
func (r *Resolver) Resolve(ctx context.Context, req Request) (*Result, error) {
	res, err := r.synthesize(ctx, req)
	if err != nil {
		return nil, err
	}

	url, err := r.store.SaveAudio(res.Service, req.VoiceID, res.Format, res.Audio)
	if err != nil {
		return nil, err
	}
	res.AudioURL = url
	return res, nil
}

// Preview returns the canned sample clip for a voice, serving the permanent
// cache when possible and synthesizing through the normal primary-then-
// fallback path on a miss. Two concurrent first requests may both
// synthesize; the output is identical so the duplicated work is accepted.
func (r *Resolver) Preview(ctx context.Context, voiceID string) ([]byte, string, error) {
	voice, lang, ok := r.catalog.FindByID(voiceID)
	if !ok {
		return nil, "", fmt.Errorf("voice %q: %w", voiceID, tts.ErrVoiceNotFound)
	}
	if audio, format, ok := r.store.Preview(voiceID); ok {
		r.metrics.RecordPreviewCacheHit(ctx, voiceID)
		return audio, contentType(format), nil
	}

	sample := voice.SampleText
	if sample == "" {
		sample = "Hello, this is a sample"
	}
	res, err := r.synthesize(ctx, Request{
		Text:     sample,
		Language: lang,
		VoiceID:  voiceID,
		Speed:    1.0,
		Pitch:    1.0,
	})
	if err != nil {
		return nil, "", err
	}
	if err := r.store.SavePreview(voiceID, res.Format, res.Audio); err != nil {
		return nil, "", err
	}
	return res.Audio, contentType(res.Format), nil
}

// contentType maps a container format tag to its media type. First-serve and
// cache-hit previews for the same voice must agree.
func contentType(format string) string {
	if format == "wav" {
		return "audio/wav"
	}
	return "audio/mpeg"
}

// synthesize is the shared primary-then-fallback core. Storage happens in
// the callers.
func (r *Resolver) synthesize(ctx context.Context, req Request) (*Result, error) {
	logger := slog.With("language", req.Language, "voice_id", req.VoiceID)

	// Step 1: catalog lookup and dispatchability.
	voice, err := r.catalog.Find(req.Language, req.VoiceID)
	if err != nil {
		return nil, err
	}
	if !voice.Dispatchable() {
		return nil, fmt.Errorf("voice %q needs model training: %w", req.VoiceID, tts.ErrVoiceNotAvailable)
	}

	// Step 2: normalize prosody for the owning service.
	p, err := params.Normalize(voice.Service, req.Speed, req.Pitch)
	if err != nil {
		return nil, err
	}

	// Step 3: primary attempt.
	primaryErr := r.primaryUnavailable(voice.Service)
	var res *tts.Result
	if primaryErr == nil {
		adapter := r.adapters[voice.Service]
		start := time.Now()
		res, primaryErr = adapter.Synthesize(ctx, tts.Request{
			Text:    req.Text,
			VoiceID: req.VoiceID,
			Params:  p,
			SSML:    req.SSML,
		})
		r.metrics.RecordSynthesis(ctx, string(voice.Service), false, time.Since(start), primaryErr)
	}
	if primaryErr == nil {
		logger.Info("synthesis complete", "service", voice.Service, "bytes", len(res.Audio))
		return &Result{
			Audio:     res.Audio,
			Format:    res.Format,
			VoiceUsed: voice.Name,
			Service:   voice.Service,
			Voice:     voice,
		}, nil
	}

	// Step 4: one fallback hop. Raw text, best-effort language code, no
	// prosody — the phonetic service has none, so none is claimed.
	logger.Warn("primary synthesis failed, falling back", "service", voice.Service, "error", primaryErr)
	code, ok := r.catalog.FallbackCode(req.Language)
	if !ok {
		code = "en"
	}
	start := time.Now()
	res, fbErr := r.fallback.Synthesize(ctx, tts.Request{Text: req.Text, VoiceID: code})
	r.metrics.RecordSynthesis(ctx, string(tts.ServiceGTTS), true, time.Since(start), fbErr)
	if fbErr != nil {
		logger.Error("fallback synthesis failed", "error", fbErr)
		return nil, fmt.Errorf("primary %s: %v; fallback: %v: %w", voice.Service, primaryErr, fbErr, tts.ErrAllProvidersExhausted)
	}

	logger.Info("fallback synthesis complete", "bytes", len(res.Audio))
	return &Result{
		Audio:     res.Audio,
		Format:    res.Format,
		VoiceUsed: voice.Name + fallbackMark,
		Service:   tts.ServiceGTTS,
		Fallback:  true,
		Voice:     voice,
	}, nil
}

// primaryUnavailable reports why the primary adapter cannot be called: not
// registered, or its lazy model load failed.
func (r *Resolver) primaryUnavailable(svc tts.Service) error {
	adapter, ok := r.adapters[svc]
	if !ok {
		return fmt.Errorf("no adapter for service %q: %w", svc, tts.ErrServiceUnavailable)
	}
	if a, ok := adapter.(availabler); ok && !a.Available() {
		return fmt.Errorf("service %q model set not loaded: %w", svc, tts.ErrServiceUnavailable)
	}
	return nil
}
