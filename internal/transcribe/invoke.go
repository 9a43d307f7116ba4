package transcribe

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"

	"github.com/snarg/scribe-engine/internal/metrics"
)

// DefaultEngineTimeout bounds one engine invocation.
const DefaultEngineTimeout = 30 * time.Minute

// InvokerOptions configures an Invoker.
type InvokerOptions struct {
	Interpreter string
	Env         []string // environment for the engine process; nil inherits
	Timeout     time.Duration
	MaxOutput   int
	Log         zerolog.Logger
}

// Invoker runs one engine invocation per request and collects the result the
// engine writes to the request's side-channel file.
type Invoker struct {
	opts   InvokerOptions
	runner commandRunner
	log    zerolog.Logger

	writeFile func(name string, data []byte, perm os.FileMode) error
	readFile  func(name string) ([]byte, error)
	remove    func(name string) error
}

// NewInvoker creates an invoker that runs real subprocesses.
func NewInvoker(opts InvokerOptions) *Invoker {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultEngineTimeout
	}
	if opts.MaxOutput <= 0 {
		opts.MaxOutput = DefaultMaxOutput
	}
	return &Invoker{
		opts:      opts,
		runner:    execRunner{},
		log:       opts.Log.With().Str("component", "invoker").Logger(),
		writeFile: os.WriteFile,
		readFile:  os.ReadFile,
		remove:    os.Remove,
	}
}

// Invoke renders the driver script, runs it and parses the result file. The
// script and result file are always removed afterwards.
func (iv *Invoker) Invoke(ctx context.Context, req Request) ([]Segment, error) {
	log := iv.log.With().Str("model", req.Model).Str("audio", filepath.Base(req.AudioPath)).Logger()

	script, err := RenderScript(req)
	if err != nil {
		return nil, fmt.Errorf("render driver script: %w", err)
	}
	if err := iv.writeFile(req.ScriptPath, []byte(script), 0o600); err != nil {
		return nil, fmt.Errorf("write driver script: %w", err)
	}
	defer iv.cleanup(log, req.ScriptPath, req.ResultPath)

	start := time.Now()
	res, err := iv.runner.Run(ctx, command{
		Name:      iv.opts.Interpreter,
		Args:      []string{req.ScriptPath},
		Dir:       filepath.Dir(req.AudioPath),
		Env:       iv.opts.Env,
		Timeout:   iv.opts.Timeout,
		MaxOutput: iv.opts.MaxOutput,
	})
	elapsed := time.Since(start)
	metrics.EngineInvocationDuration.Observe(elapsed.Seconds())

	if res.Truncated {
		log.Warn().Int("limit_bytes", iv.opts.MaxOutput).Msg("engine output exceeded buffer, excess dropped")
	}

	switch {
	case errors.Is(err, ErrSubprocessTimeout):
		metrics.EngineInvocationsTotal.WithLabelValues("timeout").Inc()
		log.Error().Dur("timeout", iv.opts.Timeout).Str("stderr", res.Stderr).Msg("engine timed out")
		return nil, fmt.Errorf("%w after %s", ErrSubprocessTimeout, iv.opts.Timeout)
	case err != nil:
		metrics.EngineInvocationsTotal.WithLabelValues("failed").Inc()
		log.Error().Err(err).
			Int("exit_code", res.ExitCode).
			Str("stderr", res.Stderr).
			Str("stdout", res.Stdout).
			Msg("engine failed")
		return nil, &SubprocessError{ExitCode: res.ExitCode, Stderr: res.Stderr, Err: err}
	}

	log.Debug().Str("stderr", res.Stderr).Dur("elapsed", elapsed).Msg("engine finished")

	data, err := iv.readFile(req.ResultPath)
	if err != nil {
		metrics.EngineInvocationsTotal.WithLabelValues("missing").Inc()
		if errors.Is(err, os.ErrNotExist) {
			return nil, &ResultMissingError{Path: req.ResultPath}
		}
		return nil, fmt.Errorf("read engine result: %w", err)
	}

	segments, err := ParseResult(data)
	if err != nil {
		metrics.EngineInvocationsTotal.WithLabelValues("malformed").Inc()
		return nil, &ResultMalformedError{Err: err}
	}

	metrics.EngineInvocationsTotal.WithLabelValues("ok").Inc()
	log.Info().Int("segments", len(segments)).Int64("duration_ms", elapsed.Milliseconds()).Msg("engine invocation complete")
	return segments, nil
}

func (iv *Invoker) cleanup(log zerolog.Logger, paths ...string) {
	for _, p := range paths {
		if err := iv.remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
			log.Warn().Err(err).Str("path", p).Msg("failed to remove scratch file")
		}
	}
}
