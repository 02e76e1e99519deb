package polly

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	awspolly "github.com/aws/aws-sdk-go-v2/service/polly"
	"github.com/aws/aws-sdk-go-v2/service/polly/types"

	"github.com/suraj5sky/sky-tts/internal/tts"
)

type fakeAPI struct {
	lastInput *awspolly.SynthesizeSpeechInput
	audio     []byte
	err       error
}

func (f *fakeAPI) SynthesizeSpeech(_ context.Context, params *awspolly.SynthesizeSpeechInput, _ ...func(*awspolly.Options)) (*awspolly.SynthesizeSpeechOutput, error) {
	f.lastInput = params
	if f.err != nil {
		return nil, f.err
	}
	return &awspolly.SynthesizeSpeechOutput{
		AudioStream: io.NopCloser(strings.NewReader(string(f.audio))),
	}, nil
}

func TestSynthesizePlainText(t *testing.T) {
	api := &fakeAPI{audio: []byte("mp3")}
	c := NewWithAPI(api)

	res, err := c.Synthesize(context.Background(), tts.Request{Text: "hello", VoiceID: "Joanna"})
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}
	if string(res.Audio) != "mp3" || res.Format != "mp3" {
		t.Errorf("result = %q / %q", res.Audio, res.Format)
	}
	in := api.lastInput
	if *in.Text != "hello" {
		t.Errorf("Text = %q", *in.Text)
	}
	if in.TextType != types.TextTypeText {
		t.Errorf("TextType = %q, want text", in.TextType)
	}
	if in.VoiceId != "Joanna" {
		t.Errorf("VoiceId = %q", in.VoiceId)
	}
	if in.OutputFormat != types.OutputFormatMp3 {
		t.Errorf("OutputFormat = %q", in.OutputFormat)
	}
}

func TestSynthesizeProsodyMarkup(t *testing.T) {
	api := &fakeAPI{audio: []byte("x")}
	c := NewWithAPI(api)

	_, err := c.Synthesize(context.Background(), tts.Request{
		Text:    "a & b",
		VoiceID: "Matthew",
		Params:  tts.Params{ProsodyRate: "+25%", ProsodyPitch: "-2st"},
	})
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}
	got := *api.lastInput.Text
	want := "<speak><prosody rate='+25%' pitch='-2st'>a &amp; b</prosody></speak>"
	if got != want {
		t.Errorf("Text = %q, want %q", got, want)
	}
	if api.lastInput.TextType != types.TextTypeSsml {
		t.Errorf("TextType = %q, want ssml", api.lastInput.TextType)
	}
}

func TestSynthesizeSSMLPassthrough(t *testing.T) {
	api := &fakeAPI{audio: []byte("x")}
	c := NewWithAPI(api)

	markup := "<speak>hi</speak>"
	_, err := c.Synthesize(context.Background(), tts.Request{Text: markup, VoiceID: "Joanna", SSML: true})
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}
	if *api.lastInput.Text != markup {
		t.Errorf("Text = %q, want verbatim markup", *api.lastInput.Text)
	}
	if api.lastInput.TextType != types.TextTypeSsml {
		t.Errorf("TextType = %q, want ssml", api.lastInput.TextType)
	}
}

func TestSynthesizeProviderError(t *testing.T) {
	api := &fakeAPI{err: errors.New("ValidationException: no such voice")}
	c := NewWithAPI(api)

	_, err := c.Synthesize(context.Background(), tts.Request{Text: "hi", VoiceID: "Ghost"})
	if !errors.Is(err, tts.ErrSynthesisFailed) {
		t.Errorf("err = %v, want ErrSynthesisFailed", err)
	}
}

func TestSynthesizeUnconfigured(t *testing.T) {
	c := NewWithAPI(nil)
	_, err := c.Synthesize(context.Background(), tts.Request{Text: "hi", VoiceID: "Joanna"})
	if !errors.Is(err, tts.ErrServiceUnavailable) {
		t.Errorf("err = %v, want ErrServiceUnavailable", err)
	}
}

func TestWithEngine(t *testing.T) {
	api := &fakeAPI{audio: []byte("x")}
	c := NewWithAPI(api, WithEngine("neural"))
	if _, err := c.Synthesize(context.Background(), tts.Request{Text: "hi", VoiceID: "Kajal"}); err != nil {
		t.Fatalf("Synthesize: %v", err)
	}
	if api.lastInput.Engine != types.EngineNeural {
		t.Errorf("Engine = %q, want neural", api.lastInput.Engine)
	}
}
