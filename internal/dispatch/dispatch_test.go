package dispatch

import (
	"context"
	"errors"
	"math"
	"strings"
	"testing"

	"github.com/suraj5sky/sky-tts/internal/catalog"
	"github.com/suraj5sky/sky-tts/internal/tts"
	"github.com/suraj5sky/sky-tts/internal/tts/mock"
)

// memStore is an in-memory AudioStore.
type memStore struct {
	saved    map[string][]byte
	previews map[string]preview
	saveErr  error
}

type preview struct {
	audio  []byte
	format string
}

func newMemStore() *memStore {
	return &memStore{saved: map[string][]byte{}, previews: map[string]preview{}}
}

func (m *memStore) SaveAudio(service tts.Service, voiceID, ext string, audio []byte) (string, error) {
	if m.saveErr != nil {
		return "", m.saveErr
	}
	url := "/static/audio/" + string(service) + "_" + voiceID + "." + ext
	m.saved[url] = audio
	return url, nil
}

func (m *memStore) Preview(voiceID string) ([]byte, string, bool) {
	p, ok := m.previews[voiceID]
	return p.audio, p.format, ok
}

func (m *memStore) SavePreview(voiceID, format string, audio []byte) error {
	m.previews[voiceID] = preview{audio: audio, format: format}
	return nil
}

// gatedSynth wraps a mock with an Available switch, like a local-model adapter.
type gatedSynth struct {
	*mock.Synthesizer
	available bool
}

func (g *gatedSynth) Available() bool { return g.available }

func loadCatalog(t *testing.T) *catalog.Catalog {
	t.Helper()
	cat, err := catalog.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	return cat
}

func TestResolvePrimarySuccess(t *testing.T) {
	cat := loadCatalog(t)
	edge := mock.New(tts.ServiceEdge)
	fallback := mock.New(tts.ServiceGTTS)
	st := newMemStore()
	r := New(cat, []tts.Synthesizer{edge}, fallback, st, nil)

	res, err := r.Resolve(context.Background(), Request{
		Text:     "Good morning",
		Language: "english",
		VoiceID:  "en-US-JennyNeural",
		Speed:    1.2,
		Pitch:    1.0,
	})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if res.Service != tts.ServiceEdge {
		t.Errorf("service = %q, want edge", res.Service)
	}
	if res.Fallback {
		t.Error("unexpected fallback flag")
	}
	if strings.Contains(res.VoiceUsed, "Fallback") {
		t.Errorf("voice_used %q should not be marked", res.VoiceUsed)
	}
	if res.AudioURL == "" {
		t.Error("missing audio URL")
	}
	if _, ok := st.saved[res.AudioURL]; !ok {
		t.Errorf("audio not persisted at %q", res.AudioURL)
	}

	calls := edge.Calls()
	if len(calls) != 1 {
		t.Fatalf("edge calls = %d, want 1", len(calls))
	}
	if calls[0].Params.Rate != "+20%" {
		t.Errorf("rate = %q, want +20%%", calls[0].Params.Rate)
	}
	if fallback.CallCount() != 0 {
		t.Errorf("fallback called %d times", fallback.CallCount())
	}
}

func TestResolveFallbackOnPrimaryFailure(t *testing.T) {
	cat := loadCatalog(t)
	edge := mock.Failing(tts.ServiceEdge, errors.New("websocket closed"))
	fallback := mock.New(tts.ServiceGTTS)
	st := newMemStore()
	r := New(cat, []tts.Synthesizer{edge}, fallback, st, nil)

	res, err := r.Resolve(context.Background(), Request{
		Text:     "नमस्ते दुनिया",
		Language: "hindi",
		VoiceID:  "hi-IN-SwaraNeural",
		Speed:    1.5,
		Pitch:    1.1,
	})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if !res.Fallback {
		t.Error("fallback flag not set")
	}
	if res.Service != tts.ServiceGTTS {
		t.Errorf("service = %q, want gtts", res.Service)
	}
	if !strings.HasSuffix(res.VoiceUsed, " (gTTS Fallback)") {
		t.Errorf("voice_used = %q, want marked name", res.VoiceUsed)
	}

	calls := fallback.Calls()
	if len(calls) != 1 {
		t.Fatalf("fallback calls = %d, want 1", len(calls))
	}
	// Raw text, language code as voice, no prosody.
	if calls[0].Text != "नमस्ते दुनिया" {
		t.Errorf("fallback text = %q", calls[0].Text)
	}
	if calls[0].VoiceID != "hi" {
		t.Errorf("fallback voice = %q, want hi", calls[0].VoiceID)
	}
	if !calls[0].Params.Empty() {
		t.Errorf("fallback params = %+v, want empty", calls[0].Params)
	}
}

func TestResolveAllProvidersExhausted(t *testing.T) {
	cat := loadCatalog(t)
	edge := mock.Failing(tts.ServiceEdge, errors.New("handshake failed"))
	fallback := mock.Failing(tts.ServiceGTTS, errors.New("rate limited"))
	st := newMemStore()
	r := New(cat, []tts.Synthesizer{edge}, fallback, st, nil)

	_, err := r.Resolve(context.Background(), Request{
		Text:     "hello",
		Language: "english",
		VoiceID:  "en-US-JennyNeural",
		Speed:    1.0,
		Pitch:    1.0,
	})
	if !errors.Is(err, tts.ErrAllProvidersExhausted) {
		t.Fatalf("err = %v, want ErrAllProvidersExhausted", err)
	}
	if len(st.saved) != 0 {
		t.Errorf("store has %d writes, want none", len(st.saved))
	}
}

func TestResolveVoiceNotFound(t *testing.T) {
	cat := loadCatalog(t)
	edge := mock.New(tts.ServiceEdge)
	r := New(cat, []tts.Synthesizer{edge}, mock.New(tts.ServiceGTTS), newMemStore(), nil)

	for _, req := range []Request{
		{Text: "x", Language: "english", VoiceID: "no-such-voice", Speed: 1, Pitch: 1},
		{Text: "x", Language: "klingon", VoiceID: "en-US-JennyNeural", Speed: 1, Pitch: 1},
		{Text: "x", Language: "hindi", VoiceID: "en-US-JennyNeural", Speed: 1, Pitch: 1},
	} {
		if _, err := r.Resolve(context.Background(), req); !errors.Is(err, tts.ErrVoiceNotFound) {
			t.Errorf("Resolve(%q/%q) err = %v, want ErrVoiceNotFound", req.Language, req.VoiceID, err)
		}
	}
	if edge.CallCount() != 0 {
		t.Errorf("provider called %d times for unknown voices", edge.CallCount())
	}
}

func TestResolveTrainingRequiredVoice(t *testing.T) {
	cat := loadCatalog(t)
	bark := mock.New(tts.ServiceBark)
	fallback := mock.New(tts.ServiceGTTS)
	r := New(cat, []tts.Synthesizer{bark}, fallback, newMemStore(), nil)

	_, err := r.Resolve(context.Background(), Request{
		Text:     "ਸਤ ਸ੍ਰੀ ਅਕਾਲ",
		Language: "punjabi",
		VoiceID:  "Shruti (Female)",
		Speed:    1.0,
		Pitch:    1.0,
	})
	if !errors.Is(err, tts.ErrVoiceNotAvailable) {
		t.Fatalf("err = %v, want ErrVoiceNotAvailable", err)
	}
	if bark.CallCount() != 0 || fallback.CallCount() != 0 {
		t.Error("providers must not be called for untrained voices")
	}
}

func TestResolveUnavailableAdapterFallsBack(t *testing.T) {
	cat := loadCatalog(t)
	bark := &gatedSynth{Synthesizer: mock.New(tts.ServiceBark), available: false}
	fallback := mock.New(tts.ServiceGTTS)
	r := New(cat, []tts.Synthesizer{bark}, fallback, newMemStore(), nil)

	res, err := r.Resolve(context.Background(), Request{
		Text:     "hello there",
		Language: "english",
		VoiceID:  "v2/en_speaker_6",
		Speed:    1.0,
		Pitch:    1.0,
	})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if bark.CallCount() != 0 {
		t.Error("unavailable adapter must be skipped, not called")
	}
	if !res.Fallback {
		t.Error("fallback flag not set")
	}
}

func TestResolveNoAdapterRegistered(t *testing.T) {
	cat := loadCatalog(t)
	fallback := mock.New(tts.ServiceGTTS)
	r := New(cat, nil, fallback, newMemStore(), nil)

	res, err := r.Resolve(context.Background(), Request{
		Text:     "bonjour",
		Language: "french",
		VoiceID:  "fr-FR-DeniseNeural",
		Speed:    1.0,
		Pitch:    1.0,
	})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if !res.Fallback {
		t.Error("fallback flag not set")
	}
	if calls := fallback.Calls(); len(calls) != 1 || calls[0].VoiceID != "fr" {
		t.Errorf("fallback calls = %+v", calls)
	}
}

func TestResolveInvalidParameter(t *testing.T) {
	cat := loadCatalog(t)
	edge := mock.New(tts.ServiceEdge)
	r := New(cat, []tts.Synthesizer{edge}, mock.New(tts.ServiceGTTS), newMemStore(), nil)

	_, err := r.Resolve(context.Background(), Request{
		Text:     "x",
		Language: "english",
		VoiceID:  "en-US-JennyNeural",
		Speed:    math.NaN(),
		Pitch:    1.0,
	})
	if !errors.Is(err, tts.ErrInvalidParameter) {
		t.Fatalf("err = %v, want ErrInvalidParameter", err)
	}
	if edge.CallCount() != 0 {
		t.Error("provider called with invalid parameters")
	}
}

func TestPreviewSynthesizesAndCaches(t *testing.T) {
	cat := loadCatalog(t)
	edge := mock.New(tts.ServiceEdge)
	fallback := mock.New(tts.ServiceGTTS)
	st := newMemStore()
	r := New(cat, []tts.Synthesizer{edge}, fallback, st, nil)

	audio, ct, err := r.Preview(context.Background(), "en-US-JennyNeural")
	if err != nil {
		t.Fatalf("Preview: %v", err)
	}
	if ct != "audio/mpeg" {
		t.Errorf("content type = %q", ct)
	}
	if len(audio) == 0 {
		t.Fatal("empty preview audio")
	}
	if edge.CallCount() != 1 {
		t.Fatalf("edge calls = %d, want 1", edge.CallCount())
	}
	if len(st.saved) != 0 {
		t.Error("preview must not write to the main audio store")
	}

	// Second request serves the cache without another synthesis.
	again, _, err := r.Preview(context.Background(), "en-US-JennyNeural")
	if err != nil {
		t.Fatalf("Preview (cached): %v", err)
	}
	if string(again) != string(audio) {
		t.Error("cached preview differs from original")
	}
	if edge.CallCount() != 1 {
		t.Errorf("edge calls = %d after cached preview, want 1", edge.CallCount())
	}
}

func TestPreviewWAVContentTypeStable(t *testing.T) {
	cat := loadCatalog(t)
	bark := mock.New(tts.ServiceBark)
	bark.Result = &tts.Result{Audio: []byte("RIFF-mock-wav"), Format: "wav", ContentType: "audio/wav"}
	st := newMemStore()
	r := New(cat, []tts.Synthesizer{bark}, mock.New(tts.ServiceGTTS), st, nil)

	audio, ct, err := r.Preview(context.Background(), "v2/en_speaker_6")
	if err != nil {
		t.Fatalf("Preview: %v", err)
	}
	if ct != "audio/wav" {
		t.Errorf("content type = %q, want audio/wav", ct)
	}

	// Cache hit must serve the same bytes under the same media type.
	again, ctAgain, err := r.Preview(context.Background(), "v2/en_speaker_6")
	if err != nil {
		t.Fatalf("Preview (cached): %v", err)
	}
	if ctAgain != ct {
		t.Errorf("cached content type = %q, first serve was %q", ctAgain, ct)
	}
	if string(again) != string(audio) {
		t.Error("cached preview differs from original")
	}
	if bark.CallCount() != 1 {
		t.Errorf("bark calls = %d, want 1", bark.CallCount())
	}
}

func TestPreviewUnknownVoice(t *testing.T) {
	cat := loadCatalog(t)
	r := New(cat, nil, mock.New(tts.ServiceGTTS), newMemStore(), nil)

	if _, _, err := r.Preview(context.Background(), "ghost-voice"); !errors.Is(err, tts.ErrVoiceNotFound) {
		t.Fatalf("err = %v, want ErrVoiceNotFound", err)
	}
}
