// Package catalog holds the static voice catalog: an immutable table of
// synthesizable voices keyed by (language, voice id), loaded once at startup
// from an embedded data file and read concurrently by all requests.
package catalog

import (
	_ "embed"
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/suraj5sky/sky-tts/internal/tts"
)

//go:embed voices.yaml
var voicesYAML []byte

// Voice is one catalog entry. Descriptive fields are display-only.
type Voice struct {
	ID          string      `yaml:"id" json:"id,omitempty"`
	Name        string      `yaml:"name" json:"name"`
	Gender      string      `yaml:"gender" json:"gender"`
	Service     tts.Service `yaml:"service" json:"service"`
	Style       string      `yaml:"style" json:"style,omitempty"`
	Mood        string      `yaml:"mood" json:"mood,omitempty"`
	Description string      `yaml:"description" json:"description,omitempty"`
	SampleText  string      `yaml:"sample_text" json:"sample_text,omitempty"`
	UseCases    []string    `yaml:"use_cases" json:"use_cases,omitempty"`
	AgeRange    string      `yaml:"age_range" json:"age_range,omitempty"`

	// FallbackHint names a local substitute model where one is documented.
	FallbackHint string `yaml:"fallback_hint" json:"fallback_hint,omitempty"`

	// TrainingRequired marks a custom voice whose model does not exist yet.
	// Such entries have no id and must never be dispatched.
	TrainingRequired bool `yaml:"training_required" json:"training_required,omitempty"`
}

// Dispatchable reports whether this voice can actually be synthesized.
func (v Voice) Dispatchable() bool {
	return v.ID != "" && !v.TrainingRequired
}

type language struct {
	Name         string  `yaml:"name"`
	FallbackCode string  `yaml:"fallback_code"`
	Voices       []Voice `yaml:"voices"`
}

type catalogFile struct {
	Languages []language `yaml:"languages"`
}

// Catalog is the loaded voice table. Safe for concurrent reads.
type Catalog struct {
	order  []string
	byLang map[string][]Voice
	codes  map[string]string
}

// Load parses the embedded catalog data. It fails on malformed data or on an
// entry that has neither an id nor the training flag, so a broken catalog is
// caught at startup rather than at dispatch time.
func Load() (*Catalog, error) {
	var f catalogFile
	if err := yaml.Unmarshal(voicesYAML, &f); err != nil {
		return nil, fmt.Errorf("parse voice catalog: %w", err)
	}
	c := &Catalog{
		byLang: make(map[string][]Voice, len(f.Languages)),
		codes:  make(map[string]string, len(f.Languages)),
	}
	for _, lang := range f.Languages {
		if lang.Name == "" || lang.FallbackCode == "" {
			return nil, fmt.Errorf("catalog language %q: missing name or fallback code", lang.Name)
		}
		if _, dup := c.byLang[lang.Name]; dup {
			return nil, fmt.Errorf("catalog language %q: duplicate entry", lang.Name)
		}
		for _, v := range lang.Voices {
			if v.ID == "" && !v.TrainingRequired {
				return nil, fmt.Errorf("catalog voice %q (%s): no id and not marked training_required", v.Name, lang.Name)
			}
			if v.Service == "" {
				return nil, fmt.Errorf("catalog voice %q (%s): missing service", v.Name, lang.Name)
			}
		}
		c.order = append(c.order, lang.Name)
		c.byLang[lang.Name] = lang.Voices
		c.codes[lang.Name] = lang.FallbackCode
	}
	return c, nil
}

// Languages returns the supported language names in catalog order.
func (c *Catalog) Languages() []string {
	out := make([]string, len(c.order))
	copy(out, c.order)
	return out
}

// Voices returns the voice list for a language, or false if the language is
// not in the catalog. The returned slice must not be mutated.
func (c *Catalog) Voices(lang string) ([]Voice, bool) {
	vs, ok := c.byLang[lang]
	return vs, ok
}

// Find looks up a voice by (language, id). An unknown language or an id not
// present in that language's list fails with ErrVoiceNotFound. Voices that
// have no id yet (custom voices awaiting training) are addressed by name, so
// a request for one resolves and can be reported as not yet synthesizable
// instead of unknown.
func (c *Catalog) Find(lang, voiceID string) (Voice, error) {
	vs, ok := c.byLang[lang]
	if !ok {
		return Voice{}, fmt.Errorf("language %q: %w", lang, tts.ErrVoiceNotFound)
	}
	for _, v := range vs {
		if v.ID == voiceID && v.ID != "" {
			return v, nil
		}
		if v.ID == "" && v.Name == voiceID {
			return v, nil
		}
	}
	return Voice{}, fmt.Errorf("voice %q in %s: %w", voiceID, lang, tts.ErrVoiceNotFound)
}

// FindByID scans every language for a voice id; used by the preview endpoint
// where no language is supplied. Returns the owning language name.
func (c *Catalog) FindByID(voiceID string) (Voice, string, bool) {
	for _, lang := range c.order {
		for _, v := range c.byLang[lang] {
			if v.ID == voiceID && v.ID != "" {
				return v, lang, true
			}
		}
	}
	return Voice{}, "", false
}

// FallbackCode returns the phonetic-fallback language code for a language.
func (c *Catalog) FallbackCode(lang string) (string, bool) {
	code, ok := c.codes[lang]
	return code, ok
}
