package utils

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"path/filepath"
	"strings"
	"time"
)

// AbsPath will return absolute path for the given path
// if its not already abs. given root must be an absolute path
func AbsPath(root, path string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(root, path)
}

// Result holds the captured outcome of a finished command
type Result struct {
	Stdout   string
	Stderr   string
	ExitCode int
	Duration time.Duration
}

// Command describes a single external command invocation.
type Command struct {
	Name string
	Args []string
	Dir  string
	Envs []string

	// Stderr receives a copy of the command's stderr as it is produced
	Stderr io.Writer

	// Sanitize is applied to every text derived from the command (command line,
	// stdout, stderr) before it is logged or added to returned errors.
	Sanitize func(string) string
}

// String returns sanitised command line
func (c Command) String() string {
	return c.sanitize(c.Name + " " + strings.Join(c.Args, " "))
}

func (c Command) sanitize(s string) string {
	if c.Sanitize == nil || s == "" {
		return s
	}
	return c.Sanitize(s)
}

// Run runs the command and waits for it to finish. exit code will be -1 if
// process didn't exit on its own (killed or failed to start).
func (c Command) Run(ctx context.Context, log *slog.Logger) (Result, error) {
	cmdStr := c.String()
	log.Log(ctx, -8, "running command", "cwd", c.Dir, "cmd", cmdStr)

	cmd := exec.CommandContext(ctx, c.Name, c.Args...)
	// force kill git & child process 5 seconds after sending it sigterm (when ctx is cancelled/timed out)
	cmd.WaitDelay = 5 * time.Second
	if c.Dir != "" {
		cmd.Dir = c.Dir
	}
	outbuf := bytes.NewBuffer(nil)
	errbuf := bytes.NewBuffer(nil)
	cmd.Stdout = outbuf
	cmd.Stderr = errbuf
	if c.Stderr != nil {
		cmd.Stderr = io.MultiWriter(errbuf, c.Stderr)
	}

	// If Env is nil, the new process uses the current process's environment.
	cmd.Env = []string{}

	if len(c.Envs) > 0 {
		cmd.Env = append(cmd.Env, c.Envs...)
	}

	start := time.Now()
	err := cmd.Run()

	res := Result{
		Stdout:   strings.TrimSpace(outbuf.String()),
		Stderr:   strings.TrimSpace(errbuf.String()),
		ExitCode: -1,
		Duration: time.Since(start),
	}
	if cmd.ProcessState != nil {
		res.ExitCode = cmd.ProcessState.ExitCode()
	}

	err = contextErr(ctx, err)
	if err != nil {
		return res, fmt.Errorf("Run(%s): err:%w { stdout: %q, stderr: %q }",
			cmdStr, err, c.sanitize(res.Stdout), c.sanitize(res.Stderr))
	}
	log.Log(ctx, -8, "command result", "stdout", c.sanitize(res.Stdout), "stderr", c.sanitize(res.Stderr), "time", res.Duration)

	return res, nil
}

// contextErr replaces err of a failed command with the context error if the
// command was killed because context was cancelled or timed out.
func contextErr(ctx context.Context, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(ctx.Err(), context.DeadlineExceeded) || errors.Is(ctx.Err(), context.Canceled) {
		return ctx.Err()
	}
	return err
}

// RunCommand runs given command with given arguments on given CWD
func RunCommand(ctx context.Context, log *slog.Logger, envs []string, cwd string, command string, args ...string) (string, error) {
	res, err := Command{Name: command, Args: args, Dir: cwd, Envs: envs}.Run(ctx, log)
	return res.Stdout, err
}
