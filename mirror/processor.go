package mirror

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/utilitywarehouse/git-push-mirror/gitcmd"
	"github.com/utilitywarehouse/git-push-mirror/giturl"
	"github.com/utilitywarehouse/git-push-mirror/internal/lock"
	"github.com/utilitywarehouse/git-push-mirror/redact"
	"github.com/utilitywarehouse/git-push-mirror/repository"
)

// RepositoryService resolves repositories of mirror requests
type RepositoryService interface {
	// GetByID returns repository.ErrNotExist if repository is unknown
	// or missing on disk
	GetByID(ctx context.Context, id int64) (*repository.Repository, error)
	IsEmpty(ctx context.Context, repo *repository.Repository) (bool, error)
}

// Decrypter decrypts stored mirror passwords
type Decrypter interface {
	Decrypt(ciphertext string) (string, error)
}

// Processor pushes repositories to their mirrors.
// A Processor is safe for concurrent use by multiple goroutines, batches
// are processed one at a time.
type Processor struct {
	lock        lock.Mutex
	repos       RepositoryService
	decrypter   Decrypter
	runner      gitcmd.Runner
	props       PropertySource
	exitHandler gitcmd.ExitHandler
	log         *slog.Logger
}

// NewProcessor returns a new Processor. exitHandler is notified about
// failed pushes after credentials are redacted, if nil failures are logged
// and returned as *gitcmd.ExitError.
func NewProcessor(
	repos RepositoryService,
	decrypter Decrypter,
	runner gitcmd.Runner,
	props PropertySource,
	exitHandler gitcmd.ExitHandler,
	log *slog.Logger,
) *Processor {
	if log == nil {
		log = slog.Default()
	}
	if props == nil {
		props = Properties{}
	}
	if exitHandler == nil {
		exitHandler = gitcmd.LogExitHandler{Log: log}
	}
	return &Processor{
		repos:       repos,
		decrypter:   decrypter,
		runner:      runner,
		props:       props,
		exitHandler: exitHandler,
		log:         log,
	}
}

// Process pushes every request's repository to its mirror, in order.
// Requests whose repository is missing or empty or which have no refspecs
// are skipped. Failure of one request or push pass doesn't stop the batch,
// all errors are returned joined once whole batch is processed.
func (p *Processor) Process(ctx context.Context, requests []Request) error {
	p.lock.Lock()
	defer p.lock.Unlock()

	var errs []error
	for _, req := range requests {
		if err := ctx.Err(); err != nil {
			errs = append(errs, fmt.Errorf("batch aborted err:%w", err))
			break
		}
		if err := p.process(ctx, req); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (p *Processor) process(ctx context.Context, req Request) error {
	settings := req.Settings
	mirror := giturl.Redacted(settings.MirrorRepoURL)
	log := p.log.With("repo-id", req.RepositoryID, "mirror", mirror)

	res, err := resolve(ctx, p.repos, req.RepositoryID)
	if err != nil {
		return fmt.Errorf("unable to resolve repository id:%d err:%w", req.RepositoryID, err)
	}
	if res.kind != ready {
		log.Debug("skipping push", "repository", res.kind)
		return nil
	}

	passes := pushPasses(settings)
	if len(passes) == 0 {
		log.Debug("skipping push, no refspecs configured")
		return nil
	}

	password, err := p.decrypter.Decrypt(settings.Password)
	if err != nil {
		return fmt.Errorf("unable to decrypt password repo-id:%d mirror:%s err:%w", req.RepositoryID, mirror, err)
	}

	remote := giturl.AuthenticatedURL(settings.MirrorRepoURL, settings.Username, password)
	timeout := p.props.Duration(PropPushTimeout, DefaultPushTimeout)
	repo := res.repo
	log = log.With("repo", repo.Name())

	var errs []error
	for _, pass := range passes {
		handler := redact.Wrap(p.exitHandler, password, log)
		spec := gitcmd.Spec{
			Dir:          repo.Directory(),
			Args:         pushArgs(remote, pass, settings),
			Timeout:      timeout,
			ErrorHandler: handler,
			ExitHandler:  handler,
			Sanitize:     handler.Redact,
		}

		start := time.Now()
		_, err := p.runner.Run(ctx, spec)
		recordPush(repo.Name(), mirror, pass.force, err == nil)
		updatePushLatency(repo.Name(), mirror, start)

		if err != nil {
			errs = append(errs, redact.Error(
				fmt.Errorf("push failed repo:%s mirror:%s force:%t err:%w", repo.Name(), mirror, pass.force, err),
				password))
			continue
		}
		log.Info("pushed to mirror", "force", pass.force, "time", time.Since(start))
	}

	return errors.Join(errs...)
}

type pushPass struct {
	force    bool
	refspecs []string
}

// pushPasses returns forced pass followed by the non-forced pass, passes
// without refspecs are omitted
func pushPasses(s Settings) []pushPass {
	var passes []pushPass
	if len(s.Refspec) > 0 {
		passes = append(passes, pushPass{force: true, refspecs: s.Refspec})
	}
	if len(s.RefspecNoForce) > 0 {
		passes = append(passes, pushPass{force: false, refspecs: s.RefspecNoForce})
	}
	return passes
}

// pushArgs returns git arguments of a push pass
// push --prune [--force] <url> [--atomic] <refspecs>... [tags] [notes]
func pushArgs(remote string, pass pushPass, s Settings) []string {
	args := []string{"push", "--prune"}
	if pass.force {
		args = append(args, "--force")
	}
	args = append(args, remote)
	if s.Atomic {
		args = append(args, "--atomic")
	}
	args = append(args, pass.refspecs...)
	if s.Tags {
		args = append(args, TagsRefspec)
	}
	if s.Notes {
		args = append(args, NotesRefspec)
	}
	return args
}
