package execx

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// maxLineSize bounds a single logged output line. git porcelain output is
// line-oriented and short; anything longer is truncated by the scanner.
const maxLineSize = 256 * 1024

// Status is the exit status of a completed command.
type Status struct {
	Code int
}

// Success reports whether the command exited zero.
func (s Status) Success() bool {
	return s.Code == 0
}

// Runner executes external commands with their output routed to a logger.
type Runner struct {
	logger *zap.Logger
}

// NewRunner creates a runner. A nil logger falls back to a no-op logger.
func NewRunner(logger *zap.Logger) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{logger: logger}
}

// Run executes program with args in dir and returns its exit status.
//
// Nonzero exit is not an error here: callers decide what a failing command
// means. The only error is *LaunchError when the process cannot be spawned.
func (r *Runner) Run(ctx context.Context, program string, args []string, dir string) (Status, error) {
	cmd := exec.CommandContext(ctx, program, args...)
	cmd.Dir = dir

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return Status{}, &LaunchError{Program: program, Err: err}
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return Status{}, &LaunchError{Program: program, Err: err}
	}

	if err := cmd.Start(); err != nil {
		return Status{}, &LaunchError{Program: program, Err: err}
	}

	// Both pipes must be fully drained before Wait closes them, and the
	// drains run concurrently with each other so neither side can back up.
	var g errgroup.Group
	g.Go(func() error {
		r.drain(stdout, func(line string) {
			r.logger.Debug(program, zap.String("line", line))
		})
		return nil
	})
	g.Go(func() error {
		r.drain(stderr, func(line string) {
			r.logger.Error(program, zap.String("line", line))
		})
		return nil
	})
	_ = g.Wait()

	return r.wait(cmd, program)
}

// Output executes program with args in dir, capturing stdout. stderr is still
// streamed to the logger at error level. Unlike Run, a nonzero exit is
// returned as *ExitError, since stdout of a failed plumbing command is junk.
func (r *Runner) Output(ctx context.Context, program string, args []string, dir string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, program, args...)
	cmd.Dir = dir

	var buf bytes.Buffer
	cmd.Stdout = &buf

	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, &LaunchError{Program: program, Err: err}
	}

	if err := cmd.Start(); err != nil {
		return nil, &LaunchError{Program: program, Err: err}
	}

	r.drain(stderr, func(line string) {
		r.logger.Error(program, zap.String("line", line))
	})

	status, err := r.wait(cmd, program)
	if err != nil {
		return nil, err
	}
	if !status.Success() {
		return nil, &ExitError{Program: program, Code: status.Code}
	}
	return buf.Bytes(), nil
}

func (r *Runner) drain(pipe io.Reader, emit func(string)) {
	sc := bufio.NewScanner(pipe)
	sc.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	for sc.Scan() {
		emit(sc.Text())
	}
}

func (r *Runner) wait(cmd *exec.Cmd, program string) (Status, error) {
	err := cmd.Wait()
	if err == nil {
		return Status{Code: 0}, nil
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return Status{Code: exitErr.ExitCode()}, nil
	}

	// Wait failed for a reason other than nonzero exit (I/O on the pipes,
	// process killed before start completed). Treat like a spawn failure.
	return Status{}, &LaunchError{Program: program, Err: fmt.Errorf("waiting: %w", err)}
}
