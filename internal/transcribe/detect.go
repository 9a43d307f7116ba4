package transcribe

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Capabilities is the result of probing the host for the engine, a converter
// binary and hardware acceleration. It is computed once and never mutated.
type Capabilities struct {
	// Invocation is the command prefix that runs the engine CLI, e.g.
	// ["whisper"] or ["python3", "-m", "whisper"]. Empty when the engine was
	// not found.
	Invocation []string `json:"invocation"`
	// Interpreter runs generated driver scripts.
	Interpreter   string `json:"interpreter"`
	Accelerated   bool   `json:"accelerated"`
	ConverterPath string `json:"converterPath,omitempty"`
}

// Available reports whether an engine invocation form was resolved.
func (c Capabilities) Available() bool { return len(c.Invocation) > 0 }

// Device returns the compute device the engine should load models onto.
func (c Capabilities) Device() Device {
	if c.Accelerated {
		return DeviceCUDA
	}
	return DeviceCPU
}

// DetectorOptions configures capability probing. Zero values fall back to
// the defaults noted on each field.
type DetectorOptions struct {
	Command      string        // bare engine command (default "whisper")
	Interpreter  string        // primary interpreter (default "python")
	Fallback     string        // secondary interpreter (default "python3")
	ProbeTimeout time.Duration // per probe (default 5s)

	ConverterOverride string // explicit converter binary, tried first
	AppRoot           string
	MetadataDir       string

	Log zerolog.Logger
}

// Detector probes the host. Probes never return errors: every failure is
// logged and degrades to the safe default.
type Detector struct {
	opts   DetectorOptions
	runner commandRunner
	log    zerolog.Logger

	stat   func(name string) (os.FileInfo, error)
	getwd  func() (string, error)
	getenv func(key string) string
	setenv func(key, value string) error
	goos   string
}

// NewDetector creates a detector that runs real subprocesses.
func NewDetector(opts DetectorOptions) *Detector {
	if opts.Command == "" {
		opts.Command = "whisper"
	}
	if opts.Interpreter == "" {
		opts.Interpreter = "python"
	}
	if opts.Fallback == "" {
		opts.Fallback = "python3"
	}
	if opts.ProbeTimeout <= 0 {
		opts.ProbeTimeout = 5 * time.Second
	}
	return &Detector{
		opts:   opts,
		runner: execRunner{},
		log:    opts.Log.With().Str("component", "detector").Logger(),
		stat:   os.Stat,
		getwd:  os.Getwd,
		getenv: os.Getenv,
		setenv: os.Setenv,
		goos:   runtime.GOOS,
	}
}

// Detect runs every probe and returns the combined capabilities.
func (d *Detector) Detect(ctx context.Context) Capabilities {
	caps := Capabilities{ConverterPath: d.ResolveConverter()}
	caps.Invocation, caps.Interpreter = d.DetectInvocation(ctx)
	if caps.Available() {
		caps.Accelerated = d.DetectAcceleration(ctx, caps.Interpreter)
	}

	d.log.Info().
		Strs("invocation", caps.Invocation).
		Str("interpreter", caps.Interpreter).
		Bool("accelerated", caps.Accelerated).
		Str("converter", caps.ConverterPath).
		Msg("capability detection complete")
	return caps
}

// DetectInvocation tries the bare engine command, then the engine as a module
// of the primary interpreter, then of the fallback interpreter. It returns the
// first form whose output looks like the engine's own usage text, along with
// the interpreter that should run driver scripts. A nil invocation means the
// engine is unavailable.
func (d *Detector) DetectInvocation(ctx context.Context) ([]string, string) {
	attempts := []struct {
		invocation  []string
		probeArgs   []string
		interpreter string
	}{
		// Running the bare CLI without arguments prints its usage and the
		// "arguments are required" complaint.
		{[]string{d.opts.Command}, nil, d.opts.Interpreter},
		{[]string{d.opts.Interpreter, "-m", "whisper"}, []string{"--help"}, d.opts.Interpreter},
		{[]string{d.opts.Fallback, "-m", "whisper"}, []string{"--help"}, d.opts.Fallback},
	}

	for _, a := range attempts {
		args := append(append([]string{}, a.invocation[1:]...), a.probeArgs...)
		res, err := d.runner.Run(ctx, command{
			Name:    a.invocation[0],
			Args:    args,
			Timeout: d.opts.ProbeTimeout,
		})
		if engineSignature(res.Stdout + res.Stderr) {
			d.log.Info().Strs("invocation", a.invocation).Msg("engine found")
			return a.invocation, a.interpreter
		}
		d.log.Debug().Err(err).Strs("invocation", a.invocation).Msg("engine probe failed")
	}

	d.log.Warn().Msg("engine not found; install it with: pip install openai-whisper")
	return nil, ""
}

// engineSignature reports whether probe output came from the engine CLI
// rather than a shell or an interpreter that lacks the module.
func engineSignature(output string) bool {
	out := strings.ToLower(output)
	if strings.Contains(out, "no module named") {
		return false
	}
	return strings.Contains(out, "usage:") || strings.Contains(out, "arguments are required")
}

// DetectAcceleration requires both a GPU listed by nvidia-smi and CUDA support
// reported by the interpreter's torch install.
func (d *Detector) DetectAcceleration(ctx context.Context, interpreter string) bool {
	res, err := d.runner.Run(ctx, command{
		Name:    "nvidia-smi",
		Args:    []string{"--query-gpu=name,memory.total", "--format=csv,noheader"},
		Timeout: d.opts.ProbeTimeout,
	})
	if err != nil || strings.TrimSpace(res.Stdout) == "" {
		d.log.Info().Msg("no GPU detected, engine will run on CPU")
		return false
	}
	gpu := strings.SplitN(lastLine(res.Stdout), ",", 2)
	log := d.log.With().Str("gpu", strings.TrimSpace(gpu[0])).Logger()

	if interpreter == "" {
		interpreter = d.opts.Interpreter
	}
	res, err = d.runner.Run(ctx, command{
		Name:    interpreter,
		Args:    []string{"-c", "import torch; print(torch.cuda.is_available())"},
		Timeout: d.opts.ProbeTimeout,
	})
	if err != nil {
		log.Warn().Err(err).Msg("could not verify torch CUDA support")
		return false
	}
	if strings.TrimSpace(res.Stdout) != "True" {
		log.Warn().Msg("GPU present but torch has no CUDA support")
		return false
	}

	log.Info().Msg("GPU acceleration enabled")
	return true
}

// converterEnvKeys are read in order when resolving the converter and are all
// set to the resolved path afterwards.
var converterEnvKeys = []string{"FFMPEG_PATH", "FFMPEG_BINARY", "WHISPER_FFMPEG_BINARY"}

// ResolveConverter finds the ffmpeg binary: the explicit override, then
// environment overrides, then well-known directories. The winner is exported
// into the process environment so the engine's own converter bridge finds the
// same binary. An empty result means ffmpeg is resolved through PATH.
func (d *Detector) ResolveConverter() string {
	candidates := []string{d.opts.ConverterOverride}
	for _, key := range converterEnvKeys {
		candidates = append(candidates, d.getenv(key))
	}

	var dirs []string
	if d.opts.AppRoot != "" {
		dirs = append(dirs, d.opts.AppRoot)
	}
	if wd, err := d.getwd(); err == nil {
		dirs = append(dirs, wd, filepath.Join(wd, "bin"))
	}
	if d.opts.MetadataDir != "" {
		dirs = append(dirs, filepath.Join(d.opts.MetadataDir, "binaries"))
	}

	names := []string{"ffmpeg"}
	if d.goos == "windows" {
		names = []string{"ffmpeg.exe", "ffmpeg"}
	}
	for _, dir := range dirs {
		for _, name := range names {
			candidates = append(candidates, filepath.Join(dir, name))
		}
	}

	for _, c := range candidates {
		if c == "" {
			continue
		}
		info, err := d.stat(c)
		if err != nil || info.IsDir() {
			continue
		}
		for _, key := range converterEnvKeys {
			if err := d.setenv(key, c); err != nil {
				d.log.Warn().Err(err).Str("key", key).Msg("failed to export converter path")
			}
		}
		d.log.Info().Str("path", c).Msg("using converter binary")
		return c
	}

	d.log.Info().Msg("no converter binary found in known locations, relying on PATH")
	return ""
}
