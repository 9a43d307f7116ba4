// Package subtitle decodes and encodes SRT and WebVTT subtitle documents.
package subtitle

import (
	"errors"
	"fmt"
	"strings"
)

// ErrFormatUndetected is returned by Decode when content is neither SRT nor WebVTT.
var ErrFormatUndetected = errors.New("subtitle format undetected")

// Format identifies a subtitle text format.
type Format string

const (
	FormatSRT Format = "srt"
	FormatVTT Format = "vtt"
)

// Formats lists the supported formats in canonical order.
var Formats = []Format{FormatSRT, FormatVTT}

// ParseFormat accepts a format name or file extension (with or without the dot).
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimPrefix(strings.TrimSpace(s), ".")) {
	case "srt":
		return FormatSRT, nil
	case "vtt", "webvtt":
		return FormatVTT, nil
	}
	return "", fmt.Errorf("unsupported subtitle format %q", s)
}

// Ext returns the file extension including the leading dot.
func (f Format) Ext() string { return "." + string(f) }

// ContentType returns the MIME type served for the format.
func (f Format) ContentType() string {
	if f == FormatVTT {
		return "text/vtt; charset=utf-8"
	}
	return "text/plain; charset=utf-8"
}

// Cue is one timed block of subtitle text. Times are seconds from the start of
// the audio the cue was transcribed from.
type Cue struct {
	Index int     `json:"index"`
	Start float64 `json:"startTime"`
	End   float64 `json:"endTime"`
	Text  string  `json:"text"`
}

// Document is an ordered list of cues and the format they were decoded from.
type Document struct {
	Format Format
	Cues   []Cue
}

// Convert re-encodes subtitle content into the target format.
func Convert(content string, to Format) (string, error) {
	doc, err := Decode(content)
	if err != nil {
		return "", err
	}
	return Encode(doc.Cues, to), nil
}
