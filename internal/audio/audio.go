// Package audio probes generated clips for playback metadata. The providers
// return either MP3 or PCM WAV; both probes read only headers and frame
// tables, never decoding audio to memory beyond what the mp3 frame walk
// requires.
package audio

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"time"

	"github.com/hajimehoshi/go-mp3"
)

var errNotWAV = errors.New("audio: not a RIFF/WAVE container")

// Info describes a probed clip.
type Info struct {
	Duration   time.Duration
	SampleRate int
	Channels   int
}

// Probe inspects clip data in the given container format ("mp3" or "wav").
// Unknown formats return an error rather than a zero Info so callers can
// distinguish "no metadata" from "silent clip".
func Probe(data []byte, format string) (Info, error) {
	switch format {
	case "mp3":
		return probeMP3(data)
	case "wav":
		return probeWAV(data)
	default:
		return Info{}, fmt.Errorf("audio: unsupported format %q", format)
	}
}

func probeMP3(data []byte) (Info, error) {
	dec, err := mp3.NewDecoder(bytes.NewReader(data))
	if err != nil {
		return Info{}, fmt.Errorf("audio: decode mp3: %w", err)
	}
	// The decoder always outputs 16-bit stereo, 4 bytes per sample frame.
	samples := dec.Length() / 4
	rate := dec.SampleRate()
	if rate <= 0 {
		return Info{}, errors.New("audio: mp3 reports no sample rate")
	}
	return Info{
		Duration:   time.Duration(samples) * time.Second / time.Duration(rate),
		SampleRate: rate,
		Channels:   2,
	}, nil
}

// probeWAV walks the RIFF chunk list rather than assuming a 44-byte header,
// since the fmt chunk size varies between encoders.
func probeWAV(data []byte) (Info, error) {
	if len(data) < 12 || string(data[0:4]) != "RIFF" || string(data[8:12]) != "WAVE" {
		return Info{}, errNotWAV
	}

	var (
		info          Info
		bytesPerFrame int
		foundFmt      bool
	)
	offset := 12
	for offset+8 <= len(data) {
		chunkID := string(data[offset : offset+4])
		chunkSize := int(binary.LittleEndian.Uint32(data[offset+4 : offset+8]))

		switch chunkID {
		case "fmt ":
			if chunkSize < 16 || offset+8+16 > len(data) {
				return Info{}, errors.New("audio: truncated wav fmt chunk")
			}
			f := data[offset+8:]
			info.Channels = int(binary.LittleEndian.Uint16(f[2:4]))
			info.SampleRate = int(binary.LittleEndian.Uint32(f[4:8]))
			bits := int(binary.LittleEndian.Uint16(f[14:16]))
			bytesPerFrame = info.Channels * bits / 8
			foundFmt = true
		case "data":
			if !foundFmt || bytesPerFrame == 0 || info.SampleRate == 0 {
				return Info{}, errors.New("audio: wav data chunk before usable fmt chunk")
			}
			n := chunkSize
			if avail := len(data) - (offset + 8); n > avail {
				n = avail
			}
			frames := n / bytesPerFrame
			info.Duration = time.Duration(frames) * time.Second / time.Duration(info.SampleRate)
			return info, nil
		}

		// Chunks are word-aligned.
		offset += 8 + chunkSize
		if chunkSize%2 != 0 {
			offset++
		}
	}
	return Info{}, errors.New("audio: wav missing data chunk")
}
