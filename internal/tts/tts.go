// Package tts defines the contract between the dispatch resolver and the
// speech-synthesis provider adapters.
//
// Every adapter converts (text, voice id, normalized parameters) into raw
// encoded audio. Adapters receive parameters already normalized into their
// native encoding (see internal/tts/params) and do not re-validate ranges.
package tts

import (
	"context"
	"errors"
)

// Service identifies which provider adapter handles a voice.
type Service string

const (
	// ServiceEdge is the Microsoft Edge neural-voice streaming service.
	ServiceEdge Service = "edge"

	// ServiceGTTS is the Google Translate phonetic service. It requires no
	// per-voice configuration and serves as the universal fallback.
	ServiceGTTS Service = "gtts"

	// ServicePolly is the Amazon Polly managed speech API.
	ServicePolly Service = "polly"

	// ServiceBark is the locally hosted Bark generative model.
	ServiceBark Service = "bark"

	// ServiceSpeechKit is the Yandex SpeechKit regional cloud SDK.
	ServiceSpeechKit Service = "speechkit"
)

// Params carries normalized prosody parameters in whichever encoding the
// target service understands. Fields not used by a service are left zero.
type Params struct {
	// Rate is a signed percentage token (e.g. "+20%") for services that take
	// a percentage rate string. For the Edge service a small pitch adjustment
	// is folded into the same token, so it nudges rate rather than pitch.
	Rate string

	// ProsodyRate and ProsodyPitch are SSML prosody attributes for services
	// with explicit markup: a percentage rate ("+20%") and a semitone pitch
	// ("+2st"), carried independently.
	ProsodyRate  string
	ProsodyPitch string

	// Speed is a bare rate multiplier for services that take a numeric hint.
	Speed float64
}

// Empty reports whether no prosody control survives normalization. Callers
// must not claim speed or pitch took effect when Empty returns true.
func (p Params) Empty() bool {
	return p.Rate == "" && p.ProsodyRate == "" && p.ProsodyPitch == "" && p.Speed == 0
}

// Request is one synthesis call to a provider adapter.
type Request struct {
	// Text is the content to speak.
	Text string

	// VoiceID is the provider-specific voice identifier.
	VoiceID string

	// Params holds the normalized prosody parameters for this service.
	Params Params

	// SSML marks Text as markup the caller authored. Adapters that speak
	// SSML forward it as-is instead of wrapping plain text; the rest read
	// it as plain text.
	SSML bool
}

// Result is the audio produced by a provider adapter.
type Result struct {
	// Audio is the raw encoded audio.
	Audio []byte

	// Format is the container/codec tag ("mp3" or "wav").
	Format string

	// ContentType is the MIME type matching Format.
	ContentType string
}

// Synthesizer is implemented by every provider adapter.
type Synthesizer interface {
	// Service returns the tag this adapter handles.
	Service() Service

	// Synthesize produces audio for the request or fails with one of the
	// package sentinel errors wrapped with call context.
	Synthesize(ctx context.Context, req Request) (*Result, error)
}

// Sentinel errors. Adapters and the resolver wrap these with fmt.Errorf so
// callers can classify failures with errors.Is.
var (
	// ErrVoiceNotFound means the (language, voice id) pair is not in the catalog.
	ErrVoiceNotFound = errors.New("voice not found")

	// ErrVoiceNotAvailable means the catalog entry exists but is not
	// dispatchable (no trained model yet).
	ErrVoiceNotAvailable = errors.New("voice not available")

	// ErrInvalidParameter means a speed or pitch value is not a finite number.
	ErrInvalidParameter = errors.New("invalid parameter")

	// ErrServiceUnavailable means the adapter's client or credentials are not
	// configured, or its local model set failed to load.
	ErrServiceUnavailable = errors.New("service unavailable")

	// ErrSynthesisFailed means the provider rejected the request.
	ErrSynthesisFailed = errors.New("synthesis failed")

	// ErrTimeout means the provider call exceeded its deadline.
	ErrTimeout = errors.New("synthesis timed out")

	// ErrAllProvidersExhausted means primary and fallback both failed.
	ErrAllProvidersExhausted = errors.New("all providers exhausted")

	// ErrStorageWrite means the synthesized audio could not be persisted.
	ErrStorageWrite = errors.New("storage write failed")
)
