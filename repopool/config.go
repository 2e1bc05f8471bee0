package repopool

import (
	"errors"
	"fmt"
	"path/filepath"

	"github.com/utilitywarehouse/git-push-mirror/internal/utils"
	"github.com/utilitywarehouse/git-push-mirror/mirror"
	"github.com/utilitywarehouse/git-push-mirror/repository"
)

// Config is the configuration to create repoPool
type Config struct {
	// default config for all the repositories if not set
	Defaults DefaultConfig `yaml:"defaults"`

	// Properties are the tunables of the mirror processor
	// ie 'mirror.push.timeout'
	Properties mirror.Properties `yaml:"properties"`

	// List of source repositories and their mirrors.
	Repositories []RepositoryConfig `yaml:"repositories"`
}

// DefaultConfig is the default config for repositories if not set at repo level
type DefaultConfig struct {
	// Root is the absolute path to the dir where source repositories are
	// located. relative repository paths are resolved against it.
	Root string `yaml:"root"`
}

// RepositoryConfig is the config of a source repository and its mirrors
type RepositoryConfig struct {
	repository.Config `yaml:",inline"`

	// Mirrors contains list of mirrors the repository is pushed to
	Mirrors []mirror.Settings `yaml:"mirrors"`
}

// validateDefaults will verify default config
func (rpc *Config) validateDefaults() error {
	if rpc.Defaults.Root != "" && !filepath.IsAbs(rpc.Defaults.Root) {
		return fmt.Errorf("repository root '%s' must be absolute", rpc.Defaults.Root)
	}
	return nil
}

// applyDefaults will add given default config to repository config if where needed
func (rpc *Config) applyDefaults() {
	for i := range rpc.Repositories {
		repo := &rpc.Repositories[i]
		if repo.Path == "" && repo.Name != "" && rpc.Defaults.Root != "" {
			repo.Path = repository.DefaultPath(rpc.Defaults.Root, repo.Name)
			continue
		}
		if rpc.Defaults.Root != "" {
			repo.Path = utils.AbsPath(rpc.Defaults.Root, repo.Path)
		}
	}
}

// validateRepositories makes sure all repositories are valid and their
// ids and paths are unique
func (rpc *Config) validateRepositories() error {
	var errs []error

	ids := make(map[int64]bool)
	paths := make(map[string]bool)

	for _, repo := range rpc.Repositories {
		if err := repo.Validate(); err != nil {
			errs = append(errs, err)
			continue
		}
		if ids[repo.ID] {
			errs = append(errs, fmt.Errorf("repositories with duplicate id found id:%d", repo.ID))
		}
		ids[repo.ID] = true

		if paths[repo.Path] {
			errs = append(errs, fmt.Errorf("repositories with overlapping path found id:%d path:%s", repo.ID, repo.Path))
		}
		paths[repo.Path] = true

		for i, m := range repo.Mirrors {
			if err := m.Validate(); err != nil {
				errs = append(errs, fmt.Errorf("invalid mirror config repo:%s mirror:%d err:%w", repo.Name, i, err))
			}
		}
	}

	return errors.Join(errs...)
}

// ValidateAndApplyDefaults will validate defaults, apply them and then
// validate repositories and properties
func (conf *Config) ValidateAndApplyDefaults() error {
	if err := conf.validateDefaults(); err != nil {
		return err
	}

	conf.applyDefaults()

	if err := conf.validateRepositories(); err != nil {
		return err
	}

	if err := conf.Properties.Validate(); err != nil {
		return fmt.Errorf("invalid properties err:%w", err)
	}

	return nil
}
