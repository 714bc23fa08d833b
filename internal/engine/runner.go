package engine

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"time"

	"github.com/orsg/prisme/internal/pkg/logger"
)

// Command is one child process invocation.
type Command struct {
	Binary  string
	Args    []string
	Dir     string
	Timeout time.Duration // zero waits for the process indefinitely
	Tag     string        // "run" field on relayed log lines
}

// Output is what a finished process left behind.
type Output struct {
	Stdout   []string
	Stderr   []string
	ExitCode int
	Duration time.Duration
	Killed   bool
}

// Run starts the command and waits for it. Both streams are split into
// lines and relayed to the log as they arrive. A non-zero exit status is not
// an error; only failure to start or a timeout kill is.
func Run(ctx context.Context, c Command) (Output, error) {
	var cancel context.CancelFunc = func() {}
	if c.Timeout > 0 {
		ctx, cancel = context.WithTimeout(ctx, c.Timeout)
	}
	defer cancel()

	log := logger.With("run", c.Tag)
	stdout := &lineWriter{log: log}
	stderr := &lineWriter{log: log, isErr: true}

	cmd := exec.CommandContext(ctx, c.Binary, c.Args...)
	cmd.Dir = c.Dir
	cmd.Stdout = stdout
	cmd.Stderr = stderr
	// Orphaned grandchildren holding the pipes must not hang Wait after a kill.
	cmd.WaitDelay = 2 * time.Second

	started := time.Now()
	if err := cmd.Start(); err != nil {
		return Output{ExitCode: -1}, fmt.Errorf("start %s: %w", c.Binary, err)
	}
	waitErr := cmd.Wait()

	stdout.flush()
	stderr.flush()
	out := Output{
		Stdout:   stdout.lines,
		Stderr:   stderr.lines,
		ExitCode: cmd.ProcessState.ExitCode(),
		Duration: time.Since(started),
	}

	if waitErr != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			out.Killed = true
			return out, fmt.Errorf("%s killed after %s", c.Binary, c.Timeout)
		}
		var exitErr *exec.ExitError
		if !errors.As(waitErr, &exitErr) {
			return out, fmt.Errorf("wait %s: %w", c.Binary, waitErr)
		}
	}
	return out, nil
}

// lineWriter collects complete lines and logs each one. exec.Cmd feeds it
// from a single goroutine per stream.
type lineWriter struct {
	log   *logger.Logger
	isErr bool
	buf   bytes.Buffer
	lines []string
}

func (w *lineWriter) Write(p []byte) (int, error) {
	w.buf.Write(p)
	for {
		i := bytes.IndexByte(w.buf.Bytes(), '\n')
		if i < 0 {
			break
		}
		line := string(bytes.TrimRight(w.buf.Next(i+1), "\r\n"))
		w.emit(line)
	}
	return len(p), nil
}

func (w *lineWriter) flush() {
	if w.buf.Len() > 0 {
		w.emit(w.buf.String())
		w.buf.Reset()
	}
	if w.lines == nil {
		w.lines = []string{}
	}
}

func (w *lineWriter) emit(line string) {
	w.lines = append(w.lines, line)
	if w.isErr {
		w.log.Warn("engine stderr", "line", line)
	} else {
		w.log.Info("engine stdout", "line", line)
	}
}
