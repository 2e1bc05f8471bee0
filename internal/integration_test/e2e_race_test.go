//go:build deadlock_test

package e2e_test

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/utilitywarehouse/git-push-mirror/gitcmd"
	"github.com/utilitywarehouse/git-push-mirror/mirror"
	"github.com/utilitywarehouse/git-push-mirror/repopool"
	"github.com/utilitywarehouse/git-push-mirror/repository"
	"github.com/utilitywarehouse/git-push-mirror/secret"
)

var testENVs = []string{
	"PATH=" + os.Getenv("PATH"),
	"GIT_CONFIG_GLOBAL=/dev/null",
	"GIT_CONFIG_SYSTEM=/dev/null",
	"GIT_AUTHOR_NAME=git-push-mirror",
	"GIT_AUTHOR_EMAIL=git-push-mirror@example.com",
	"GIT_COMMITTER_NAME=git-push-mirror",
	"GIT_COMMITTER_EMAIL=git-push-mirror@example.com",
}

// countingRunner counts push commands without running them
type countingRunner struct {
	pushes atomic.Int64
}

func (r *countingRunner) Run(_ context.Context, spec gitcmd.Spec) (string, error) {
	r.pushes.Add(1)
	return "", nil
}

func mustInitRepo(t *testing.T, dir string) {
	t.Helper()

	for _, args := range [][]string{
		{"init", "-q", dir},
		{"-C", dir, "commit", "-q", "--allow-empty", "-m", "init"},
	} {
		cmd := exec.Command("git", args...)
		cmd.Env = testENVs
		if out, err := cmd.CombinedOutput(); err != nil {
			t.Fatalf("git %v failed err:%v out:%s", args, err, out)
		}
	}
}

func Test_mirror_detect_race_repo_pool(t *testing.T) {
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not found")
	}

	root := t.TempDir()
	ctx, cancel := context.WithCancel(t.Context())
	defer cancel()

	mirrors := []mirror.Settings{{
		MirrorRepoURL:  "ssh://git@mirror.example.com/org/repo.git",
		Refspec:        mirror.Refspecs{"refs/heads/main"},
		RefspecNoForce: mirror.Refspecs{"refs/heads/develop"},
	}}

	conf := repopool.Config{Defaults: repopool.DefaultConfig{Root: root}}
	for i := int64(1); i <= 5; i++ {
		name := fmt.Sprintf("repo%d", i)
		mustInitRepo(t, filepath.Join(root, name+".git"))
		conf.Repositories = append(conf.Repositories, repopool.RepositoryConfig{
			Config:  repository.Config{ID: i, Name: name},
			Mirrors: mirrors,
		})
	}

	// paths are resolved once so that removed repositories can be added back
	if err := conf.ValidateAndApplyDefaults(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	rp, err := repopool.New(conf, nil, "git", testENVs)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	runner := &countingRunner{}
	processor := mirror.NewProcessor(rp, secret.Plaintext{}, runner, rp, nil, nil)

	var wg sync.WaitGroup

	// push batches
	for range 3 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range 20 {
				id := int64(i%5 + 1)
				if err := processor.Process(ctx, rp.MirrorRequests(id)); err != nil {
					t.Errorf("unexpected error: %v", err)
				}
			}
		}()
	}

	// config reloads
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := range 20 {
			repo := conf.Repositories[i%5]
			if err := rp.SetMirrors(repo.ID, mirrors); err != nil {
				t.Errorf("unexpected error: %v", err)
			}
			rp.SetProperties(mirror.Properties{mirror.PropPushTimeout: fmt.Sprint(30 + i)})
			if i%5 == 4 {
				if err := rp.RemoveRepository(repo.ID); err != nil {
					t.Errorf("unexpected error: %v", err)
				}
				if err := rp.AddRepository(repo); err != nil {
					t.Errorf("unexpected error: %v", err)
				}
			}
		}
	}()

	wg.Wait()

	if runner.pushes.Load() == 0 {
		t.Errorf("expected pushes to be run")
	}
}
