package mirror

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	// TagsRefspec is added to every push when tags are mirrored
	TagsRefspec = "+refs/tags/*:refs/tags/*"
	// NotesRefspec is added to every push when notes are mirrored
	NotesRefspec = "+refs/notes/*:refs/notes/*"
)

// Settings is the configuration of a single mirror of a repository
type Settings struct {
	// MirrorRepoURL is the git URL of the mirror repository
	MirrorRepoURL string `yaml:"mirror_repo_url"`

	// Username is embedded in http(s) mirror URL along with password
	Username string `yaml:"username"`

	// Password is the encrypted password (or token) of the user
	Password string `yaml:"password"`

	// Suffix is reserved and not used while pushing
	Suffix string `yaml:"suffix"`

	// Refspec is the list of refspecs pushed with --force
	Refspec Refspecs `yaml:"refspec"`

	// RefspecNoForce is the list of refspecs pushed without --force
	RefspecNoForce Refspecs `yaml:"refspec_no_force"`

	// Tags mirrors all tags on every push
	Tags bool `yaml:"tags"`

	// Notes mirrors all notes on every push
	Notes bool `yaml:"notes"`

	// Atomic requests atomic ref updates from the mirror
	Atomic bool `yaml:"atomic"`
}

// Validate verifies mirror settings
func (s Settings) Validate() error {
	if strings.TrimSpace(s.MirrorRepoURL) == "" {
		return fmt.Errorf("mirror_repo_url is required")
	}
	if s.Password != "" && s.Username == "" {
		return fmt.Errorf("username is required when password is set mirror:%s", s.MirrorRepoURL)
	}
	return nil
}

// Refspecs is an ordered list of git refspecs. In yaml it can be either a
// list or a single whitespace separated string.
type Refspecs []string

// UnmarshalYAML implements yaml.Unmarshaler
func (r *Refspecs) UnmarshalYAML(value *yaml.Node) error {
	switch value.Kind {
	case yaml.ScalarNode:
		var s string
		if err := value.Decode(&s); err != nil {
			return err
		}
		*r = strings.Fields(s)
	case yaml.SequenceNode:
		var l []string
		if err := value.Decode(&l); err != nil {
			return err
		}
		*r = l
	default:
		return fmt.Errorf("line %d: refspecs must be a string or a list of strings", value.Line)
	}
	return nil
}

// Request is a request to push the repository to a mirror
type Request struct {
	RepositoryID int64
	Settings     Settings
}
