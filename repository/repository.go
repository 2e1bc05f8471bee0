package repository

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"

	"github.com/utilitywarehouse/git-push-mirror/internal/utils"
)

var ErrNotExist = errors.New("repository does not exist")

// Repository represents a local bare source repository whose refs are
// pushed to the mirrors
type Repository struct {
	id     int64
	name   string
	dir    string
	remote string
	cmd    string
	envs   []string
	log    *slog.Logger
}

// New returns repository for the given config. repository dir is not
// touched, use Exists to check its presence.
func New(conf Config, gitExec string, envs []string, log *slog.Logger) (*Repository, error) {
	if err := conf.Validate(); err != nil {
		return nil, err
	}
	if gitExec == "" {
		gitExec = "git"
	}
	if log == nil {
		log = slog.Default()
	}

	return &Repository{
		id:     conf.ID,
		name:   conf.Name,
		dir:    conf.Path,
		remote: conf.Remote,
		cmd:    gitExec,
		envs:   envs,
		log:    log.With("repo", conf.Name),
	}, nil
}

// ID returns id of the repository
func (r *Repository) ID() int64 {
	return r.id
}

// Name returns name of the repository
func (r *Repository) Name() string {
	return r.name
}

// Directory returns the absolute path to the repository dir
func (r *Repository) Directory() string {
	return r.dir
}

// Remote returns upstream remote URL of the repository if configured
func (r *Repository) Remote() string {
	return r.remote
}

// Exists returns whether repository dir is present on disk
func (r *Repository) Exists() (bool, error) {
	fi, err := os.Stat(r.dir)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return false, nil
	case err != nil:
		return false, fmt.Errorf("unable to stat repository dir err:%w", err)
	default:
		return fi.IsDir(), nil
	}
}

// IsEmpty returns true if repository doesn't have any refs
func (r *Repository) IsEmpty(ctx context.Context) (bool, error) {
	// git for-each-ref --count=1
	out, err := r.git(ctx, "for-each-ref", "--count=1")
	if err != nil {
		return false, err
	}
	return out == "", nil
}

func (r *Repository) git(ctx context.Context, args ...string) (string, error) {
	return utils.RunCommand(ctx, r.log, r.envs, r.dir, r.cmd, args...)
}
