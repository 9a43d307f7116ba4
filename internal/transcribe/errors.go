package transcribe

import (
	"errors"
	"fmt"
)

var (
	ErrSubprocessTimeout      = errors.New("engine subprocess timed out")
	ErrSubprocessFailed       = errors.New("engine subprocess failed")
	ErrResultMissing          = errors.New("engine result missing")
	ErrResultMalformed        = errors.New("engine result malformed")
	ErrModelPreparationFailed = errors.New("model preparation failed")
)

// SubprocessError is returned when the engine exits non-zero. Stderr holds the
// captured diagnostic stream (possibly truncated).
type SubprocessError struct {
	ExitCode int
	Stderr   string
	Err      error
}

func (e *SubprocessError) Error() string {
	msg := fmt.Sprintf("engine exited with code %d", e.ExitCode)
	if tail := lastLine(e.Stderr); tail != "" {
		msg += ": " + tail
	}
	return msg
}

func (e *SubprocessError) Is(target error) bool { return target == ErrSubprocessFailed }

func (e *SubprocessError) Unwrap() error { return e.Err }

// ResultMissingError means the engine exited cleanly but wrote no result file.
type ResultMissingError struct {
	Path string
}

func (e *ResultMissingError) Error() string {
	return fmt.Sprintf("engine result not found at %s", e.Path)
}

func (e *ResultMissingError) Is(target error) bool { return target == ErrResultMissing }

// ResultMalformedError wraps a decode failure of the engine result file.
type ResultMalformedError struct {
	Err error
}

func (e *ResultMalformedError) Error() string {
	return fmt.Sprintf("engine result malformed: %v", e.Err)
}

func (e *ResultMalformedError) Is(target error) bool { return target == ErrResultMalformed }

func (e *ResultMalformedError) Unwrap() error { return e.Err }

// ModelPreparationError is returned by ModelCache.EnsureReady when the engine
// could not fetch or verify a model.
type ModelPreparationError struct {
	Model string
	Err   error
}

func (e *ModelPreparationError) Error() string {
	return fmt.Sprintf("prepare model %s: %v", e.Model, e.Err)
}

func (e *ModelPreparationError) Is(target error) bool { return target == ErrModelPreparationFailed }

func (e *ModelPreparationError) Unwrap() error { return e.Err }
