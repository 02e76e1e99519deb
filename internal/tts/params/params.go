// Package params converts abstract speed/pitch values into each provider's
// native control encoding. Normalize is the only entry point and is pure.
package params

import (
	"fmt"
	"math"

	"github.com/suraj5sky/sky-tts/internal/tts"
)

// Speed multiplier bounds shared by all services.
const (
	MinSpeed = 0.5
	MaxSpeed = 2.0
)

// Pitch multiplier bounds for services that fold pitch into a percentage
// rate token.
const (
	minFoldedPitch = 0.9
	maxFoldedPitch = 1.1
)

// Normalize maps (speed, pitch) into the encoding the given service
// understands. Speed is clamped to [MinSpeed, MaxSpeed] rather than rejected;
// only non-finite input fails, with ErrInvalidParameter.
//
// Edge conflates rate and pitch into a single percentage token on this code
// path, so the pitch multiplier is clamped to [0.9, 1.1], scaled to at most
// ±5%, and added to the rate percentage. This nudges speaking rate, not true
// pitch; callers relaying "pitch applied" to users should know that.
//
// Polly carries rate and pitch independently as SSML prosody attributes
// (percentage rate, semitone pitch). SpeechKit takes a bare speed multiplier
// and ignores pitch. The phonetic fallback and the local generative model
// expose no prosody control at all and get empty params.
func Normalize(service tts.Service, speed, pitch float64) (tts.Params, error) {
	if !finite(speed) || !finite(pitch) {
		return tts.Params{}, fmt.Errorf("speed=%v pitch=%v: %w", speed, pitch, tts.ErrInvalidParameter)
	}
	speed = clamp(speed, MinSpeed, MaxSpeed)

	switch service {
	case tts.ServiceEdge:
		ratePct := int(math.Round((speed - 1.0) * 100))
		folded := clamp(pitch, minFoldedPitch, maxFoldedPitch)
		ratePct += int(math.Round((folded - 1.0) * 50))
		return tts.Params{Rate: fmt.Sprintf("%+d%%", ratePct)}, nil

	case tts.ServicePolly:
		ratePct := int(math.Round((speed - 1.0) * 100))
		semitones := int(math.Round((pitch - 1.0) * 12))
		return tts.Params{
			ProsodyRate:  fmt.Sprintf("%+d%%", ratePct),
			ProsodyPitch: fmt.Sprintf("%+dst", semitones),
		}, nil

	case tts.ServiceSpeechKit:
		return tts.Params{Speed: speed}, nil

	case tts.ServiceGTTS, tts.ServiceBark:
		return tts.Params{}, nil

	default:
		return tts.Params{}, fmt.Errorf("unknown service %q: %w", service, tts.ErrInvalidParameter)
	}
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
