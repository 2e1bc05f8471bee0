package repository

import (
	"fmt"
	"path/filepath"

	"github.com/utilitywarehouse/git-push-mirror/giturl"
)

// Config represents the config of a local source repository
type Config struct {
	// ID is the unique id of the repository, used by push events
	ID int64 `yaml:"id"`

	// Name of the repository used in logs and metrics
	Name string `yaml:"name"`

	// Path to the bare repository dir. relative path is resolved against
	// the root dir, if not set it defaults to '<root>/<name>.git'
	Path string `yaml:"path"`

	// Remote is the optional git URL of the upstream repository, it is
	// used to match push webhook events to repository
	Remote string `yaml:"remote"`
}

// Validate verifies repository config, Path must be absolute
func (c Config) Validate() error {
	if c.ID <= 0 {
		return fmt.Errorf("repository id must be a positive number, got %d", c.ID)
	}
	if c.Name == "" {
		return fmt.Errorf("repository name is required id:%d", c.ID)
	}
	if !filepath.IsAbs(c.Path) {
		return fmt.Errorf("repository path '%s' must be absolute id:%d", c.Path, c.ID)
	}
	if c.Remote != "" {
		if _, err := giturl.Parse(c.Remote); err != nil {
			return fmt.Errorf("invalid remote url of repository id:%d err:%w", c.ID, err)
		}
	}
	return nil
}

// DefaultPath returns path of the repository dir under given root
func DefaultPath(root, name string) string {
	return filepath.Join(root, name+".git")
}
