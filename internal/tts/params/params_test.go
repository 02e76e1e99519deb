package params

import (
	"errors"
	"math"
	"testing"

	"github.com/suraj5sky/sky-tts/internal/tts"
)

func TestNormalizeEdge(t *testing.T) {
	tests := []struct {
		name     string
		speed    float64
		pitch    float64
		wantRate string
	}{
		{name: "defaults", speed: 1.0, pitch: 1.0, wantRate: "+0%"},
		{name: "faster", speed: 1.2, pitch: 1.0, wantRate: "+20%"},
		{name: "slower", speed: 0.75, pitch: 1.0, wantRate: "-25%"},
		{name: "pitch folds into rate", speed: 1.0, pitch: 1.1, wantRate: "+5%"},
		{name: "pitch down folds into rate", speed: 1.0, pitch: 0.9, wantRate: "-5%"},
		{name: "speed and pitch combine", speed: 1.5, pitch: 1.1, wantRate: "+55%"},
		{name: "speed clamped high", speed: 5.0, pitch: 1.0, wantRate: "+100%"},
		{name: "speed clamped low", speed: 0.1, pitch: 1.0, wantRate: "-50%"},
		{name: "pitch clamped", speed: 1.0, pitch: 3.0, wantRate: "+5%"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := Normalize(tts.ServiceEdge, tt.speed, tt.pitch)
			if err != nil {
				t.Fatalf("Normalize: %v", err)
			}
			if p.Rate != tt.wantRate {
				t.Errorf("Rate = %q, want %q", p.Rate, tt.wantRate)
			}
			if p.ProsodyRate != "" || p.ProsodyPitch != "" || p.Speed != 0 {
				t.Errorf("unexpected non-rate fields set: %+v", p)
			}
		})
	}
}

func TestNormalizeClampMatchesBoundary(t *testing.T) {
	// Out-of-range speed clamps, so 5.0 and the 2.0 boundary must produce
	// identical tokens for every service that encodes speed.
	for _, svc := range []tts.Service{tts.ServiceEdge, tts.ServicePolly, tts.ServiceSpeechKit} {
		over, err := Normalize(svc, 5.0, 1.0)
		if err != nil {
			t.Fatalf("%s: %v", svc, err)
		}
		edge, err := Normalize(svc, 2.0, 1.0)
		if err != nil {
			t.Fatalf("%s: %v", svc, err)
		}
		if over != edge {
			t.Errorf("%s: Normalize(5.0) = %+v, Normalize(2.0) = %+v", svc, over, edge)
		}
	}
}

func TestNormalizePolly(t *testing.T) {
	p, err := Normalize(tts.ServicePolly, 1.25, 1.5)
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	if p.ProsodyRate != "+25%" {
		t.Errorf("ProsodyRate = %q, want +25%%", p.ProsodyRate)
	}
	if p.ProsodyPitch != "+6st" {
		t.Errorf("ProsodyPitch = %q, want +6st", p.ProsodyPitch)
	}
	if p.Rate != "" {
		t.Errorf("Rate should be empty for prosody markup, got %q", p.Rate)
	}
}

func TestNormalizeSpeechKit(t *testing.T) {
	p, err := Normalize(tts.ServiceSpeechKit, 1.4, 1.2)
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	if p.Speed != 1.4 {
		t.Errorf("Speed = %v, want 1.4", p.Speed)
	}
}

func TestNormalizeNoControlServices(t *testing.T) {
	for _, svc := range []tts.Service{tts.ServiceGTTS, tts.ServiceBark} {
		p, err := Normalize(svc, 1.8, 0.95)
		if err != nil {
			t.Fatalf("%s: %v", svc, err)
		}
		if !p.Empty() {
			t.Errorf("%s: params should be empty, got %+v", svc, p)
		}
	}
}

func TestNormalizeNonFinite(t *testing.T) {
	tests := []struct {
		name  string
		speed float64
		pitch float64
	}{
		{name: "NaN speed", speed: math.NaN(), pitch: 1.0},
		{name: "NaN pitch", speed: 1.0, pitch: math.NaN()},
		{name: "Inf speed", speed: math.Inf(1), pitch: 1.0},
		{name: "negative Inf pitch", speed: 1.0, pitch: math.Inf(-1)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Normalize(tts.ServiceEdge, tt.speed, tt.pitch); !errors.Is(err, tts.ErrInvalidParameter) {
				t.Errorf("err = %v, want ErrInvalidParameter", err)
			}
		})
	}
}

func TestNormalizeUnknownService(t *testing.T) {
	if _, err := Normalize(tts.Service("smoke-signals"), 1.0, 1.0); !errors.Is(err, tts.ErrInvalidParameter) {
		t.Errorf("err = %v, want ErrInvalidParameter", err)
	}
}
