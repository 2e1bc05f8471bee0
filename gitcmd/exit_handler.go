package gitcmd

import (
	"context"
	"fmt"
	"log/slog"
)

// ExitError is returned by LogExitHandler
type ExitError struct {
	Exit
	Cancelled bool
}

func (e *ExitError) Error() string {
	if e.Cancelled {
		return fmt.Sprintf("command cancelled cmd:%q err:%v", e.Command, e.Err)
	}
	return fmt.Sprintf("command failed cmd:%q exit-code:%d stderr:%q err:%v",
		e.Command, e.ExitCode, e.Stderr, e.Err)
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

// LogExitHandler logs unsuccessful commands and reports them as *ExitError
type LogExitHandler struct {
	Log *slog.Logger
}

func (h LogExitHandler) logger() *slog.Logger {
	if h.Log == nil {
		return slog.Default()
	}
	return h.Log
}

// OnExit implements ExitHandler
func (h LogExitHandler) OnExit(ctx context.Context, exit Exit) error {
	h.logger().ErrorContext(ctx, "git command failed",
		"cmd", exit.Command, "exit-code", exit.ExitCode, "stderr", exit.Stderr)
	return &ExitError{Exit: exit}
}

// OnCancel implements ExitHandler
func (h LogExitHandler) OnCancel(ctx context.Context, exit Exit) error {
	h.logger().ErrorContext(ctx, "git command cancelled", "cmd", exit.Command, "err", exit.Err)
	return &ExitError{Exit: exit, Cancelled: true}
}
