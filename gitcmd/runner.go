package gitcmd

import (
	"context"
	"errors"
	"log/slog"

	"github.com/utilitywarehouse/git-push-mirror/internal/utils"
)

// ExecRunner runs git commands using git executable.
// An ExecRunner is safe for concurrent use by multiple goroutines.
type ExecRunner struct {
	gitExec string
	envs    []string
	log     *slog.Logger
}

// NewExecRunner returns runner for the given git executable. envs are the
// only environment variables passed on to git.
func NewExecRunner(gitExec string, envs []string, log *slog.Logger) *ExecRunner {
	if gitExec == "" {
		gitExec = "git"
	}
	if log == nil {
		log = slog.Default()
	}
	return &ExecRunner{
		gitExec: gitExec,
		envs:    envs,
		log:     log,
	}
}

// Run runs the git command described by the spec. If command fails and spec
// has an ExitHandler, handler's result is returned, otherwise the sanitised
// error is returned.
func (r *ExecRunner) Run(ctx context.Context, spec Spec) (string, error) {
	cmdCtx := ctx
	if spec.Timeout > 0 {
		var cancel context.CancelFunc
		cmdCtx, cancel = context.WithTimeout(ctx, spec.Timeout)
		defer cancel()
	}

	cmd := utils.Command{
		Name:     r.gitExec,
		Args:     spec.Args,
		Dir:      spec.Dir,
		Envs:     r.envs,
		Stderr:   spec.ErrorHandler,
		Sanitize: spec.Sanitize,
	}

	res, err := cmd.Run(cmdCtx, r.log)
	if err == nil {
		return res.Stdout, nil
	}

	if spec.ExitHandler == nil {
		return res.Stdout, err
	}

	exit := Exit{
		Command:  spec.String(),
		ExitCode: res.ExitCode,
		Stderr:   spec.sanitize(res.Stderr),
		Err:      err,
	}

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return res.Stdout, spec.ExitHandler.OnCancel(ctx, exit)
	}
	return res.Stdout, spec.ExitHandler.OnExit(ctx, exit)
}
