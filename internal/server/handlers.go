package server

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"unicode/utf8"

	"github.com/suraj5sky/sky-tts/internal/audio"
	"github.com/suraj5sky/sky-tts/internal/catalog"
	"github.com/suraj5sky/sky-tts/internal/dispatch"
	"github.com/suraj5sky/sky-tts/internal/extract"
)

// maxUploadBytes caps /api/process-file request bodies.
const maxUploadBytes = 10 << 20

type capabilities struct {
	SpeedControl bool `json:"speed_control"`
	PitchControl bool `json:"pitch_control"`
	SSML         bool `json:"ssml"`
	FileUpload   bool `json:"file_upload"`
}

type voiceEntry struct {
	catalog.Voice
	PreviewURL string `json:"preview_url,omitempty"`
}

type voicesResponse struct {
	Status       string                  `json:"status"`
	Languages    []string                `json:"languages"`
	Voices       map[string][]voiceEntry `json:"voices"`
	MaxCharLimit int                     `json:"max_char_limit"`
	Supports     capabilities            `json:"supports"`
}

// handleLanguages lists the supported languages.
//
// @Summary  List supported languages
// @Tags     voices
// @Produce  json
// @Success  200  {object}  map[string]any
// @Router   /api/languages [get]
func (s *Server) handleLanguages(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "success",
		"languages": s.catalog.Languages(),
	})
}

// handleVoices returns the voice catalog, optionally filtered by language.
//
// @Summary  List available voices
// @Tags     voices
// @Produce  json
// @Param    language  query     string  false  "Restrict to one language"
// @Success  200  {object}  voicesResponse
// @Failure  404  {object}  errorEnvelope
// @Router   /api/voices [get]
func (s *Server) handleVoices(w http.ResponseWriter, r *http.Request) {
	langs := s.catalog.Languages()
	if only := r.URL.Query().Get("language"); only != "" {
		if _, ok := s.catalog.Voices(only); !ok {
			writeError(w, http.StatusNotFound, fmt.Sprintf("Language %q is not supported", only))
			return
		}
		langs = []string{only}
	}

	out := make(map[string][]voiceEntry, len(langs))
	for _, lang := range langs {
		voices, _ := s.catalog.Voices(lang)
		entries := make([]voiceEntry, 0, len(voices))
		for _, v := range voices {
			e := voiceEntry{Voice: v}
			if v.Dispatchable() {
				e.PreviewURL = "/api/voice-preview/" + escapeVoicePath(v.ID)
			}
			entries = append(entries, e)
		}
		out[lang] = entries
	}

	writeJSON(w, http.StatusOK, voicesResponse{
		Status:       "success",
		Languages:    langs,
		Voices:       out,
		MaxCharLimit: s.charLimit(s.currentUser(r)),
		Supports: capabilities{
			SpeedControl: true,
			PitchControl: true,
			SSML:         true,
			FileUpload:   true,
		},
	})
}

type generateRequest struct {
	Text     string  `json:"text"`
	Language string  `json:"language"`
	VoiceID  string  `json:"voice_id"`
	Speed    float64 `json:"speed"`
	Pitch    float64 `json:"pitch"`
	UseSSML  bool    `json:"use_ssml"`
}

type generateResponse struct {
	Status          string        `json:"status"`
	AudioURL        string        `json:"audio_url"`
	VoiceUsed       string        `json:"voice_used"`
	Language        string        `json:"language"`
	Service         string        `json:"service"`
	DurationSeconds float64       `json:"duration_seconds,omitempty"`
	Parameters      genParameters `json:"parameters"`
	VoiceMetadata   voiceMetadata `json:"voice_metadata"`
}

type genParameters struct {
	Speed float64 `json:"speed"`
	Pitch float64 `json:"pitch"`
	SSML  bool    `json:"ssml"`
}

type voiceMetadata struct {
	Style       string   `json:"style,omitempty"`
	Mood        string   `json:"mood,omitempty"`
	UseCases    []string `json:"use_cases,omitempty"`
	Description string   `json:"description,omitempty"`
	SampleText  string   `json:"sample_text,omitempty"`
	AgeRange    string   `json:"age_range,omitempty"`
}

// handleGenerate synthesizes speech and returns the audio URL envelope.
//
// @Summary     Generate speech from text
// @Description Synthesizes the text with the requested voice, falling back to
// @Description the phonetic service when the primary provider fails. The
// @Description voice_used field is marked when a fallback produced the audio.
// @Tags        synthesis
// @Accept      json
// @Produce     json
// @Param       request  body      generateRequest  true  "Synthesis request"
// @Success     200  {object}  generateResponse
// @Failure     400  {object}  errorEnvelope
// @Failure     404  {object}  errorEnvelope
// @Failure     502  {object}  errorEnvelope
// @Router      /api/generate_tts [post]
func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	var req generateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}
	if req.Text == "" {
		writeError(w, http.StatusBadRequest, "Text is required")
		return
	}
	user := s.currentUser(r)
	limit := s.charLimit(user)
	if n := utf8.RuneCountInString(req.Text); n > limit {
		writeError(w, http.StatusBadRequest,
			fmt.Sprintf("Text is %d characters; the limit is %d", n, limit))
		return
	}
	if req.Speed == 0 {
		req.Speed = 1.0
	}
	if req.Pitch == 0 {
		req.Pitch = 1.0
	}

	res, err := s.resolver.Resolve(r.Context(), dispatch.Request{
		Text:     req.Text,
		Language: req.Language,
		VoiceID:  req.VoiceID,
		Speed:    req.Speed,
		Pitch:    req.Pitch,
		SSML:     req.UseSSML,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}

	if user != nil {
		if err := s.accounts.RecordUsage(r.Context(), user.ID, utf8.RuneCountInString(req.Text)); err != nil {
			// metered best-effort; the clip was already produced
			writeDomainError(w, err)
			return
		}
	}

	resp := generateResponse{
		Status:    "success",
		AudioURL:  res.AudioURL,
		VoiceUsed: res.VoiceUsed,
		Language:  req.Language,
		Service:   string(res.Service),
		Parameters: genParameters{
			Speed: req.Speed,
			Pitch: req.Pitch,
			SSML:  req.UseSSML,
		},
		VoiceMetadata: voiceMetadata{
			Style:       res.Voice.Style,
			Mood:        res.Voice.Mood,
			UseCases:    res.Voice.UseCases,
			Description: res.Voice.Description,
			SampleText:  res.Voice.SampleText,
			AgeRange:    res.Voice.AgeRange,
		},
	}
	if info, err := audio.Probe(res.Audio, res.Format); err == nil {
		resp.DurationSeconds = info.Duration.Seconds()
	}
	writeJSON(w, http.StatusOK, resp)
}

// handlePreview serves a voice's canned sample clip.
//
// @Summary  Play a voice preview
// @Tags     voices
// @Produce  audio/mpeg
// @Param    voice  path  string  true  "Voice id"
// @Success  200  {file}    binary
// @Failure  404  {object}  errorEnvelope
// @Router   /api/voice-preview/{voice} [get]
func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request) {
	voiceID, err := url.PathUnescape(r.PathValue("voice"))
	if err != nil || voiceID == "" {
		writeError(w, http.StatusBadRequest, "Invalid voice id")
		return
	}
	clip, contentType, err := s.resolver.Preview(r.Context(), voiceID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Cache-Control", "public, max-age=86400")
	_, _ = w.Write(clip)
}

type processFileResponse struct {
	Status     string `json:"status"`
	Text       string `json:"text"`
	Characters int    `json:"characters"`
	Truncated  bool   `json:"truncated"`
}

// handleProcessFile extracts synthesizable text from an uploaded document.
//
// @Summary     Extract text from a document
// @Description Accepts a multipart upload under the "file" field. Text is
// @Description truncated to the caller's character ceiling.
// @Tags        synthesis
// @Accept      multipart/form-data
// @Produce     json
// @Param       file  formData  file  true  "A .txt or .docx document"
// @Success     200  {object}  processFileResponse
// @Failure     400  {object}  errorEnvelope
// @Router      /api/process-file [post]
func (s *Server) handleProcessFile(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "Missing file upload")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Could not read upload")
		return
	}

	user := s.currentUser(r)
	text, truncated, err := extract.Text(header.Filename, data, s.charLimit(user))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if user != nil {
		if err := s.accounts.RecordUsage(r.Context(), user.ID, utf8.RuneCountInString(text)); err != nil {
			writeDomainError(w, err)
			return
		}
	}
	writeJSON(w, http.StatusOK, processFileResponse{
		Status:     "success",
		Text:       text,
		Characters: utf8.RuneCountInString(text),
		Truncated:  truncated,
	})
}

// handleAudioFile serves a generated clip from disk.
func (s *Server) handleAudioFile(w http.ResponseWriter, r *http.Request) {
	path, err := s.files.AudioPath(r.PathValue("filename"))
	if err != nil {
		writeError(w, http.StatusNotFound, "Audio file not found")
		return
	}
	http.ServeFile(w, r, path)
}

// escapeVoicePath escapes a voice id for use as a URL path tail, keeping
// the slashes bark speaker ids carry.
func escapeVoicePath(id string) string {
	return (&url.URL{Path: id}).EscapedPath()
}
