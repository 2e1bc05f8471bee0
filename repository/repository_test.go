package repository

import (
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
)

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		conf    Config
		wantErr bool
	}{
		{"valid", Config{ID: 1, Name: "repo", Path: "/srv/git/repo.git"}, false},
		{"valid-with-remote", Config{ID: 1, Name: "repo", Path: "/srv/git/repo.git", Remote: "git@github.com:org/repo.git"}, false},
		{"zero-id", Config{ID: 0, Name: "repo", Path: "/srv/git/repo.git"}, true},
		{"negative-id", Config{ID: -4, Name: "repo", Path: "/srv/git/repo.git"}, true},
		{"no-name", Config{ID: 1, Path: "/srv/git/repo.git"}, true},
		{"relative-path", Config{ID: 1, Name: "repo", Path: "repo.git"}, true},
		{"empty-path", Config{ID: 1, Name: "repo"}, true},
		{"invalid-remote", Config{ID: 1, Name: "repo", Path: "/srv/git/repo.git", Remote: "github.com/org/repo"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.conf.Validate(); (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestDefaultPath(t *testing.T) {
	if got, want := DefaultPath("/srv/git", "repo"), "/srv/git/repo.git"; got != want {
		t.Errorf("DefaultPath() = %v, want %v", got, want)
	}
}

func TestRepository_Exists(t *testing.T) {
	tmp := t.TempDir()

	file := filepath.Join(tmp, "file")
	if err := os.WriteFile(file, []byte("data"), 0o644); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name string
		path string
		want bool
	}{
		{"dir", tmp, true},
		{"missing", filepath.Join(tmp, "missing.git"), false},
		{"file", file, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, err := New(Config{ID: 1, Name: "repo", Path: tt.path}, "", nil, nil)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			got, err := r.Exists()
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("Exists() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestRepository_IsEmpty(t *testing.T) {
	gitExec, err := exec.LookPath("git")
	if err != nil {
		t.Skip("git not found in PATH")
	}

	tmp := t.TempDir()
	envs := []string{
		"PATH=" + os.Getenv("PATH"),
		fmt.Sprintf("GIT_CONFIG_GLOBAL=%s/gitconfig", tmp),
		"GIT_CONFIG_SYSTEM=/dev/null",
		"GIT_AUTHOR_NAME=git-push-mirror",
		"GIT_AUTHOR_EMAIL=git-push-mirror@example.com",
		"GIT_COMMITTER_NAME=git-push-mirror",
		"GIT_COMMITTER_EMAIL=git-push-mirror@example.com",
	}
	run := func(dir string, args ...string) {
		t.Helper()
		cmd := exec.Command(gitExec, args...)
		cmd.Dir = dir
		cmd.Env = envs
		if out, err := cmd.CombinedOutput(); err != nil {
			t.Fatalf("git %s: %v %s", strings.Join(args, " "), err, out)
		}
	}

	bare := filepath.Join(tmp, "repo.git")
	run(tmp, "init", "-q", "--bare", bare)

	r, err := New(Config{ID: 1, Name: "repo", Path: bare}, gitExec, envs, slog.Default())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	empty, err := r.IsEmpty(t.Context())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !empty {
		t.Errorf("expected newly initialised repository to be empty")
	}

	work := filepath.Join(tmp, "work")
	run(tmp, "init", "-q", "-b", "main", work)
	if err := os.WriteFile(filepath.Join(work, "file"), []byte(t.Name()), 0o644); err != nil {
		t.Fatal(err)
	}
	run(work, "add", "file")
	run(work, "commit", "-q", "-m", "init")
	run(work, "push", "-q", bare, "main")

	empty, err = r.IsEmpty(t.Context())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if empty {
		t.Errorf("expected repository with a branch to not be empty")
	}

	t.Run("not-a-repo", func(t *testing.T) {
		r, _ := New(Config{ID: 2, Name: "other", Path: t.TempDir()}, gitExec, envs, slog.Default())
		if _, err := r.IsEmpty(t.Context()); err == nil {
			t.Errorf("expected error for dir which is not a git repository")
		}
	})
}
