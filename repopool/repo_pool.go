package repopool

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"time"

	"github.com/utilitywarehouse/git-push-mirror/giturl"
	"github.com/utilitywarehouse/git-push-mirror/internal/lock"
	"github.com/utilitywarehouse/git-push-mirror/mirror"
	"github.com/utilitywarehouse/git-push-mirror/repository"
)

var (
	ErrExist    = errors.New("repo already exist")
	ErrNotExist = repository.ErrNotExist
)

type poolRepo struct {
	repo    *repository.Repository
	conf    repository.Config
	mirrors []mirror.Settings
}

// RepoPool represents the collection of source repositories and their
// mirrors. It resolves repositories and provides properties to the mirror
// processor. A RepoPool is safe for concurrent use by multiple goroutines.
type RepoPool struct {
	lock       lock.RWMutex
	log        *slog.Logger
	repos      []*poolRepo
	props      mirror.Properties
	cmd        string
	commonENVs []string
}

// New will create repository pool based on given config.
func New(conf Config, log *slog.Logger, gitExec string, commonENVs []string) (*RepoPool, error) {
	if err := conf.ValidateAndApplyDefaults(); err != nil {
		return nil, err
	}

	if log == nil {
		log = slog.Default()
	}

	rp := &RepoPool{
		log:        log,
		cmd:        gitExec,
		commonENVs: commonENVs,
		props:      conf.Properties,
	}

	for _, repoConf := range conf.Repositories {
		if err := rp.AddRepository(repoConf); err != nil {
			return nil, err
		}
	}

	return rp, nil
}

// AddRepository will add given repository to repoPool.
// repository config must be validated and defaults applied.
func (rp *RepoPool) AddRepository(repoConf RepositoryConfig) error {
	repo, err := repository.New(repoConf.Config, rp.cmd, rp.commonENVs, rp.log)
	if err != nil {
		return err
	}

	rp.lock.Lock()
	defer rp.lock.Unlock()

	for _, r := range rp.repos {
		if r.conf.ID == repoConf.ID || r.conf.Path == repoConf.Path {
			return ErrExist
		}
	}

	rp.repos = append(rp.repos, &poolRepo{
		repo:    repo,
		conf:    repoConf.Config,
		mirrors: slices.Clone(repoConf.Mirrors),
	})

	rp.log.Info("repository added", "id", repoConf.ID, "name", repoConf.Name, "mirrors", len(repoConf.Mirrors))
	return nil
}

// RemoveRepository will remove given repository from the repoPool.
// repository dir is not touched.
func (rp *RepoPool) RemoveRepository(id int64) error {
	rp.lock.Lock()
	defer rp.lock.Unlock()

	for i, r := range rp.repos {
		if r.conf.ID == id {
			rp.log.Info("removing repository", "id", id, "name", r.conf.Name)
			rp.repos = slices.Delete(rp.repos, i, i+1)
			return nil
		}
	}

	return ErrNotExist
}

// SetMirrors replaces mirror settings of the given repository
func (rp *RepoPool) SetMirrors(id int64, mirrors []mirror.Settings) error {
	rp.lock.Lock()
	defer rp.lock.Unlock()

	r := rp.find(id)
	if r == nil {
		return ErrNotExist
	}
	r.mirrors = slices.Clone(mirrors)
	return nil
}

// SetProperties replaces properties of the pool
func (rp *RepoPool) SetProperties(props mirror.Properties) {
	rp.lock.Lock()
	defer rp.lock.Unlock()

	rp.props = props
}

// Duration implements mirror.PropertySource
func (rp *RepoPool) Duration(key string, def time.Duration) time.Duration {
	rp.lock.RLock()
	defer rp.lock.RUnlock()

	return rp.props.Duration(key, def)
}

func (rp *RepoPool) find(id int64) *poolRepo {
	for _, r := range rp.repos {
		if r.conf.ID == id {
			return r
		}
	}
	return nil
}

// Repository returns configured repository of the given id
func (rp *RepoPool) Repository(id int64) (*repository.Repository, error) {
	rp.lock.RLock()
	defer rp.lock.RUnlock()

	r := rp.find(id)
	if r == nil {
		return nil, ErrNotExist
	}
	return r.repo, nil
}

// Config returns config of the repository of the given id
func (rp *RepoPool) Config(id int64) (RepositoryConfig, error) {
	rp.lock.RLock()
	defer rp.lock.RUnlock()

	r := rp.find(id)
	if r == nil {
		return RepositoryConfig{}, ErrNotExist
	}
	return RepositoryConfig{Config: r.conf, Mirrors: slices.Clone(r.mirrors)}, nil
}

// GetByID returns repository of the given id. repository.ErrNotExist is
// returned if repository is not configured or its dir doesn't exist.
func (rp *RepoPool) GetByID(_ context.Context, id int64) (*repository.Repository, error) {
	repo, err := rp.Repository(id)
	if err != nil {
		return nil, err
	}

	exists, err := repo.Exists()
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, ErrNotExist
	}
	return repo, nil
}

// IsEmpty is wrapper around repositories IsEmpty method
func (rp *RepoPool) IsEmpty(ctx context.Context, repo *repository.Repository) (bool, error) {
	return repo.IsEmpty(ctx)
}

// RepositoryByRemote will return Repository object based on given upstream remote URL
func (rp *RepoPool) RepositoryByRemote(remote string) (*repository.Repository, error) {
	gitURL, err := giturl.Parse(remote)
	if err != nil {
		return nil, err
	}

	rp.lock.RLock()
	defer rp.lock.RUnlock()

	for _, r := range rp.repos {
		if r.conf.Remote == "" {
			continue
		}
		// err can be ignored as remote of the repository is validated
		repoURL, _ := giturl.Parse(r.conf.Remote)

		if repoURL.Equals(gitURL) {
			return r.repo, nil
		}
	}
	return nil, ErrNotExist
}

// MirrorRequests returns push requests for all the mirrors of the given
// repository in config order
func (rp *RepoPool) MirrorRequests(id int64) []mirror.Request {
	rp.lock.RLock()
	defer rp.lock.RUnlock()

	r := rp.find(id)
	if r == nil {
		return nil
	}

	var reqs []mirror.Request
	for _, m := range r.mirrors {
		reqs = append(reqs, mirror.Request{RepositoryID: id, Settings: m})
	}
	return reqs
}

// RepositoryIDs returns ids of all the repositories
func (rp *RepoPool) RepositoryIDs() []int64 {
	rp.lock.RLock()
	defer rp.lock.RUnlock()

	var ids []int64
	for _, r := range rp.repos {
		ids = append(ids, r.conf.ID)
	}
	return ids
}
