// Package gitcmd describes and runs git invocations.
//
// A command is described by an immutable [Spec] value and executed by a
// [Runner]. Every text derived from the command (command line, output and
// errors) passes through the spec's Sanitize function before it is logged or
// returned, and failed or cancelled commands are reported to the spec's
// [ExitHandler].
package gitcmd

import (
	"context"
	"io"
	"strings"
	"time"
)

// Spec describes a single git invocation. It is a value and is never modified by a Runner.
type Spec struct {
	// Dir is the working directory, usually the repository directory
	Dir string

	// Args are the git arguments starting with the sub-command
	Args []string

	// Timeout bounds the run time of the command, zero means no limit
	// other than the caller's context
	Timeout time.Duration

	// ErrorHandler receives command's stderr as it is produced
	ErrorHandler io.Writer

	// ExitHandler is notified when command exits with an error
	// or is cancelled. optional
	ExitHandler ExitHandler

	// Sanitize is applied to command line, output and error text
	// before they leave the runner. optional
	Sanitize func(string) string
}

// String returns sanitised git command line
func (s Spec) String() string {
	return s.sanitize("git " + strings.Join(s.Args, " "))
}

func (s Spec) sanitize(text string) string {
	if s.Sanitize == nil || text == "" {
		return text
	}
	return s.Sanitize(text)
}

// Exit describes the outcome of a command which did not succeed
type Exit struct {
	// Command is the command line
	Command string
	// ExitCode of the process, -1 if the process was killed or never started
	ExitCode int
	// Stderr is the captured stderr of the process
	Stderr string
	// Err is the cause
	Err error
}

// ExitHandler is notified about unsuccessful commands. The returned error is
// returned by the runner in place of the command's error.
type ExitHandler interface {
	// OnExit is called when command exited with an error
	OnExit(ctx context.Context, exit Exit) error
	// OnCancel is called when command was cancelled or timed out
	OnCancel(ctx context.Context, exit Exit) error
}

// Runner runs git commands described by Spec. Run blocks until the command
// completes, fails or its timeout elapses and returns the command's stdout.
type Runner interface {
	Run(ctx context.Context, spec Spec) (string, error)
}
