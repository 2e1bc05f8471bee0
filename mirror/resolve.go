package mirror

import (
	"context"
	"errors"

	"github.com/utilitywarehouse/git-push-mirror/repository"
)

type resolutionKind int

const (
	absent resolutionKind = iota
	empty
	ready
)

func (k resolutionKind) String() string {
	switch k {
	case absent:
		return "absent"
	case empty:
		return "empty"
	default:
		return "ready"
	}
}

// resolution is the state of the repository of a request, repo is only set
// when repository is ready to be pushed
type resolution struct {
	kind resolutionKind
	repo *repository.Repository
}

func resolve(ctx context.Context, repos RepositoryService, id int64) (resolution, error) {
	repo, err := repos.GetByID(ctx, id)
	if errors.Is(err, repository.ErrNotExist) {
		return resolution{kind: absent}, nil
	}
	if err != nil {
		return resolution{}, err
	}
	if repo == nil {
		return resolution{kind: absent}, nil
	}

	isEmpty, err := repos.IsEmpty(ctx, repo)
	if err != nil {
		return resolution{}, err
	}
	if isEmpty {
		return resolution{kind: empty}, nil
	}

	return resolution{kind: ready, repo: repo}, nil
}
