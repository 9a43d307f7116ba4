package transcribe

import (
	"context"
	"errors"
	"os/exec"
	"strings"
	"sync"
	"time"
)

// DefaultMaxOutput bounds each captured stream of an engine subprocess.
const DefaultMaxOutput = 50 << 20

// command describes one subprocess run.
type command struct {
	Name      string
	Args      []string
	Dir       string
	Env       []string // nil inherits the parent environment
	Timeout   time.Duration
	MaxOutput int
}

func (c command) String() string {
	return strings.Join(append([]string{c.Name}, c.Args...), " ")
}

// commandResult is the captured outcome of a subprocess.
type commandResult struct {
	Stdout    string
	Stderr    string
	ExitCode  int
	Truncated bool
}

// commandRunner abstracts process execution for testability.
type commandRunner interface {
	Run(ctx context.Context, cmd command) (commandResult, error)
}

// execRunner executes commands via os/exec. A run that outlives cmd.Timeout
// is killed and reported as ErrSubprocessTimeout.
type execRunner struct{}

func (execRunner) Run(ctx context.Context, c command) (commandResult, error) {
	if c.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.Timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, c.Name, c.Args...)
	cmd.Dir = c.Dir
	cmd.Env = c.Env
	// Children that inherit the pipes must not keep Wait blocked after a kill.
	cmd.WaitDelay = 5 * time.Second

	stdout := &boundedBuffer{limit: c.MaxOutput}
	stderr := &boundedBuffer{limit: c.MaxOutput}
	cmd.Stdout = stdout
	cmd.Stderr = stderr

	err := cmd.Run()
	result := commandResult{
		Stdout:    stdout.String(),
		Stderr:    stderr.String(),
		Truncated: stdout.Truncated() || stderr.Truncated(),
	}
	if err == nil {
		return result, nil
	}

	result.ExitCode = -1
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return result, ErrSubprocessTimeout
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		result.ExitCode = exitErr.ExitCode()
	}
	return result, err
}

// boundedBuffer keeps the first limit bytes written to it and discards the
// rest while still reporting full writes, so the child never blocks on a pipe.
type boundedBuffer struct {
	mu        sync.Mutex
	buf       []byte
	limit     int
	truncated bool
}

func (b *boundedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.limit <= 0 {
		b.buf = append(b.buf, p...)
		return len(p), nil
	}
	room := b.limit - len(b.buf)
	if room <= 0 {
		b.truncated = true
		return len(p), nil
	}
	if len(p) > room {
		b.buf = append(b.buf, p[:room]...)
		b.truncated = true
		return len(p), nil
	}
	b.buf = append(b.buf, p...)
	return len(p), nil
}

func (b *boundedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return string(b.buf)
}

func (b *boundedBuffer) Truncated() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.truncated
}

// lastLine returns the last non-empty line of s, which for a Python process is
// usually the exception message.
func lastLine(s string) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		if l := strings.TrimSpace(lines[i]); l != "" {
			return l
		}
	}
	return ""
}
