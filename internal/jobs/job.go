// Package jobs runs per-item transcription jobs: it enumerates an item's
// audio sources, drives the engine over each in order and persists the
// resulting SRT and WebVTT artifacts.
package jobs

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Status is the lifecycle state of a job.
type Status string

const (
	StatusNotStarted Status = "not_started"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusError      Status = "error"
)

var (
	ErrAlreadyProcessing = errors.New("item is already being transcribed")
	ErrNoAudioSources    = errors.New("item has no audio sources")
	ErrEngineUnavailable = errors.New("transcription engine unavailable")
	ErrQueueFull         = errors.New("job queue full")
	ErrInvalidArgument   = errors.New("invalid argument")
	ErrNotFound          = errors.New("not found")
	ErrIOFailure         = errors.New("artifact i/o failure")
)

// ArtifactPaths locates the artifacts of a completed job.
type ArtifactPaths struct {
	SRT string `json:"srt"`
	VTT string `json:"vtt"`
}

// Job is the record of one transcription run for an item. At most one record
// exists per item; a new submission replaces the previous one.
type Job struct {
	ID            string         `json:"id,omitempty"`
	ItemID        string         `json:"itemId"`
	Status        Status         `json:"status"`
	StartTime     *time.Time     `json:"startTime,omitempty"`
	EndTime       *time.Time     `json:"endTime,omitempty"`
	Progress      int            `json:"progress"`
	Language      string         `json:"language,omitempty"`
	Model         string         `json:"model,omitempty"`
	Error         string         `json:"error,omitempty"`
	ArtifactPaths *ArtifactPaths `json:"artifactPaths,omitempty"`
	CueCount      *int           `json:"cueCount,omitempty"`
}

// Options are the per-submission parameters. Empty fields take the manager
// defaults.
type Options struct {
	Language string `json:"language"`
	Model    string `json:"model"`
	// Force clears a cached model preparation failure so it is retried.
	Force bool `json:"force"`
}

// Artifact reports which formats exist for one language of an item.
type Artifact struct {
	Language string          `json:"language"`
	Formats  map[string]bool `json:"formats"`
}

// ValidateIdentifier rejects item ids and languages that are empty or could
// escape the artifact directory.
func ValidateIdentifier(kind, s string) error {
	if strings.TrimSpace(s) == "" {
		return invalidf("%s is empty", kind)
	}
	if s == "." || s == ".." || strings.ContainsAny(s, `/\`) || strings.ContainsRune(s, 0) {
		return invalidf("%s %q is not a valid identifier", kind, s)
	}
	return nil
}

func invalidf(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{ErrInvalidArgument}, args...)...)
}
