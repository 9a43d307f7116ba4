package transcribe

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func newTestInvoker(r commandRunner) *Invoker {
	iv := NewInvoker(InvokerOptions{Interpreter: "python3", Log: zerolog.Nop()})
	iv.runner = r
	return iv
}

func testRequest(t *testing.T) Request {
	t.Helper()
	dir := t.TempDir()
	audio := filepath.Join(dir, "audio_1.wav")
	if err := os.WriteFile(audio, []byte("RIFF"), 0o644); err != nil {
		t.Fatal(err)
	}
	return NewRequest(Capabilities{Invocation: []string{"whisper"}, Interpreter: "python3"}, audio, "base", "es", "", dir)
}

func assertRemoved(t *testing.T, paths ...string) {
	t.Helper()
	for _, p := range paths {
		if _, err := os.Stat(p); !errors.Is(err, os.ErrNotExist) {
			t.Errorf("%s was not cleaned up", filepath.Base(p))
		}
	}
}

func TestInvokeSuccess(t *testing.T) {
	req := testRequest(t)
	r := &fakeRunner{run: func(_ context.Context, c command) (commandResult, error) {
		if _, err := os.Stat(c.Args[0]); err != nil {
			t.Errorf("driver script not written before run: %v", err)
		}
		result := `{"text":"hola","segments":[{"start":0.0,"end":1.5,"text":" hola "},{"start":1.5,"end":2.0,"text":"adios"}]}`
		return commandResult{Stderr: "device: cpu"}, os.WriteFile(req.ResultPath, []byte(result), 0o644)
	}}
	iv := newTestInvoker(r)

	segs, err := iv.Invoke(context.Background(), req)
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	want := []Segment{{0, 1.5, "hola"}, {1.5, 2.0, "adios"}}
	if len(segs) != len(want) {
		t.Fatalf("segments = %+v", segs)
	}
	for i := range want {
		if segs[i] != want[i] {
			t.Errorf("segment %d = %+v, want %+v", i, segs[i], want[i])
		}
	}

	c := r.calls[0]
	if c.Name != "python3" || len(c.Args) != 1 || c.Args[0] != req.ScriptPath {
		t.Errorf("command = %s", c)
	}
	if c.Timeout != DefaultEngineTimeout || c.MaxOutput != DefaultMaxOutput {
		t.Errorf("timeout = %v max = %d", c.Timeout, c.MaxOutput)
	}
	if c.Dir != filepath.Dir(req.AudioPath) {
		t.Errorf("dir = %q", c.Dir)
	}
	assertRemoved(t, req.ScriptPath, req.ResultPath)
}

func TestInvokeFailures(t *testing.T) {
	tests := []struct {
		name    string
		run     func(req Request) (commandResult, error)
		wantErr error
		check   func(t *testing.T, err error)
	}{
		{
			name: "timeout",
			run: func(Request) (commandResult, error) {
				return commandResult{Stderr: "loading", ExitCode: -1}, ErrSubprocessTimeout
			},
			wantErr: ErrSubprocessTimeout,
		},
		{
			name: "non-zero exit",
			run: func(Request) (commandResult, error) {
				return commandResult{Stderr: "Traceback\nRuntimeError: CUDA out of memory", ExitCode: 1}, errors.New("exit status 1")
			},
			wantErr: ErrSubprocessFailed,
			check: func(t *testing.T, err error) {
				var se *SubprocessError
				if !errors.As(err, &se) {
					t.Fatalf("err = %T", err)
				}
				if se.ExitCode != 1 || !strings.Contains(se.Stderr, "CUDA out of memory") {
					t.Errorf("SubprocessError = %+v", se)
				}
				if !strings.Contains(err.Error(), "RuntimeError: CUDA out of memory") {
					t.Errorf("message = %q", err.Error())
				}
			},
		},
		{
			name: "result missing",
			run: func(Request) (commandResult, error) {
				return commandResult{}, nil
			},
			wantErr: ErrResultMissing,
			check: func(t *testing.T, err error) {
				var rm *ResultMissingError
				if !errors.As(err, &rm) || !strings.HasSuffix(rm.Path, "audio_1.json") {
					t.Errorf("err = %#v", err)
				}
			},
		},
		{
			name: "result malformed",
			run: func(req Request) (commandResult, error) {
				return commandResult{}, os.WriteFile(req.ResultPath, []byte("{not json"), 0o644)
			},
			wantErr: ErrResultMalformed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := testRequest(t)
			iv := newTestInvoker(&fakeRunner{run: func(context.Context, command) (commandResult, error) {
				return tt.run(req)
			}})

			segs, err := iv.Invoke(context.Background(), req)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("err = %v, want %v", err, tt.wantErr)
			}
			if segs != nil {
				t.Errorf("segments = %v, want nil", segs)
			}
			if tt.check != nil {
				tt.check(t, err)
			}
			assertRemoved(t, req.ScriptPath, req.ResultPath)
		})
	}
}

func TestInvokeCleanupErrorsSwallowed(t *testing.T) {
	req := testRequest(t)
	r := &fakeRunner{run: func(context.Context, command) (commandResult, error) {
		return commandResult{}, os.WriteFile(req.ResultPath, []byte(`[]`), 0o644)
	}}
	iv := newTestInvoker(r)
	iv.remove = func(string) error { return errors.New("permission denied") }

	segs, err := iv.Invoke(context.Background(), req)
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	if len(segs) != 0 {
		t.Errorf("segments = %v", segs)
	}
}

func TestNewRequest(t *testing.T) {
	caps := Capabilities{Invocation: []string{"whisper"}, Interpreter: "python", Accelerated: true, ConverterPath: "/opt/ffmpeg"}
	req := NewRequest(caps, "/scratch/audio_x.wav", "large-v3", "", "/models/large-v3.pt", "/scratch")

	if req.Task != TaskTranscribe {
		t.Errorf("Task = %q", req.Task)
	}
	if req.Device != DeviceCUDA || !req.HalfPrecision {
		t.Errorf("Device = %q half = %v", req.Device, req.HalfPrecision)
	}
	if !req.WordTimestamps {
		t.Error("word timestamps disabled")
	}
	if req.ResultPath != filepath.Join("/scratch", "audio_x.json") {
		t.Errorf("ResultPath = %q", req.ResultPath)
	}
	if !strings.HasPrefix(filepath.Base(req.ScriptPath), "whisper_wrapper_") || filepath.Ext(req.ScriptPath) != ".py" {
		t.Errorf("ScriptPath = %q", req.ScriptPath)
	}

	cpu := NewRequest(Capabilities{Interpreter: "python"}, "/a.wav", "base", "en", "", "/s")
	if cpu.Device != DeviceCPU || cpu.HalfPrecision {
		t.Errorf("cpu request = %+v", cpu)
	}
}

func TestRenderScript(t *testing.T) {
	req := Request{
		AudioPath:      `C:\scratch\audio "1".wav`,
		Model:          "base",
		Task:           TaskTranscribe,
		Device:         DeviceCPU,
		WordTimestamps: true,
		ResultPath:     "/tmp/out.json",
	}
	script, err := RenderScript(req)
	if err != nil {
		t.Fatalf("RenderScript: %v", err)
	}
	for _, want := range []string{
		`"C:\\scratch\\audio \"1\".wav"`,
		`language=None,`,
		`task="transcribe",`,
		`word_timestamps=True,`,
		`fp16=False,`,
		`device = "cpu"`,
		`converter = ""`,
		`open("/tmp/out.json", "w", encoding="utf-8")`,
	} {
		if !strings.Contains(script, want) {
			t.Errorf("script missing %s", want)
		}
	}

	req.Language = "es"
	req.HalfPrecision = true
	script, _ = RenderScript(req)
	if !strings.Contains(script, `language="es",`) || !strings.Contains(script, `fp16=True,`) {
		t.Errorf("language/fp16 not rendered:\n%s", script)
	}
}
