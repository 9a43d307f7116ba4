// Package media enumerates the audio sources of a library item. The library
// data model is owned elsewhere; these backends only read it.
package media

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
)

// ErrItemNotFound is returned when the library has no record of an item.
var ErrItemNotFound = errors.New("library item not found")

// AudioSource is one audio file of an item, in playback order.
type AudioSource struct {
	Path        string `json:"path"`
	DisplayName string `json:"displayName"`
}

// Library resolves an item id to its ordered audio sources.
type Library interface {
	AudioSources(ctx context.Context, itemID string) ([]AudioSource, error)
}

var audioExts = map[string]bool{
	".mp3": true, ".m4a": true, ".m4b": true, ".aac": true, ".flac": true,
	".ogg": true, ".opus": true, ".wav": true, ".wma": true, ".mka": true,
	".webm": true, ".aiff": true,
}

// IsAudioFile reports whether name has a known audio extension.
func IsAudioFile(name string) bool {
	return audioExts[strings.ToLower(filepath.Ext(name))]
}

// DisplayName derives a human-readable name from a source path.
func DisplayName(path string) string {
	if path == "" {
		return "unknown"
	}
	return filepath.Base(path)
}
