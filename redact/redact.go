// Package redact removes mirror passwords from text before it is logged or
// returned to callers.
//
// A password embedded in a remote url appears as ":<password>@" and is
// replaced with the Marker. Wrap decorates a gitcmd.ExitHandler so that
// everything the handler sees about a failed command is redacted.
package redact

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"sync"

	"github.com/utilitywarehouse/git-push-mirror/gitcmd"
)

// Marker replaces credentials in redacted text
const Marker = ":*****@"

// String returns text with every occurrence of ":<password>@" replaced with
// Marker. Empty text is returned unchanged.
func String(text, password string) string {
	if text == "" {
		return text
	}
	return strings.ReplaceAll(text, ":"+password+"@", Marker)
}

type redactedError struct {
	msg   string
	cause error
}

func (e *redactedError) Error() string { return e.msg }
func (e *redactedError) Unwrap() error { return e.cause }

// Error returns error with redacted message which unwraps to the given error.
// nil is returned for nil error.
func Error(err error, password string) error {
	if err == nil {
		return nil
	}
	return &redactedError{msg: String(err.Error(), password), cause: err}
}

// Handler captures command output and redacts it along with every other
// detail of a failed command before it is passed on to the delegate.
// A Handler must be created per command invocation.
type Handler struct {
	delegate gitcmd.ExitHandler
	password string
	log      *slog.Logger

	mu  sync.Mutex
	out bytes.Buffer
}

// Wrap returns handler which redacts given password from everything
// it forwards to delegate.
func Wrap(delegate gitcmd.ExitHandler, password string, log *slog.Logger) *Handler {
	if log == nil {
		log = slog.Default()
	}
	return &Handler{
		delegate: delegate,
		password: password,
		log:      log,
	}
}

// Write implements io.Writer and captures command output
func (h *Handler) Write(p []byte) (int, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.out.Write(p)
}

// Output returns redacted captured output
func (h *Handler) Output() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.Redact(strings.TrimSpace(h.out.String()))
}

// Redact redacts handler's password from given text
func (h *Handler) Redact(text string) string {
	return String(text, h.password)
}

// OnExit implements gitcmd.ExitHandler
func (h *Handler) OnExit(ctx context.Context, exit gitcmd.Exit) error {
	exit = h.redactExit(exit)
	h.log.ErrorContext(ctx, "git command failed", "cmd", exit.Command, "exit-code", exit.ExitCode, "output", h.Output())
	if h.delegate == nil {
		return exit.Err
	}
	return h.delegate.OnExit(ctx, exit)
}

// OnCancel implements gitcmd.ExitHandler
func (h *Handler) OnCancel(ctx context.Context, exit gitcmd.Exit) error {
	exit = h.redactExit(exit)
	h.log.ErrorContext(ctx, "git command cancelled", "cmd", exit.Command, "output", h.Output())
	if h.delegate == nil {
		return exit.Err
	}
	return h.delegate.OnCancel(ctx, exit)
}

func (h *Handler) redactExit(exit gitcmd.Exit) gitcmd.Exit {
	return gitcmd.Exit{
		Command:  h.Redact(exit.Command),
		ExitCode: exit.ExitCode,
		Stderr:   h.Redact(exit.Stderr),
		Err:      Error(exit.Err, h.password),
	}
}
