package mirror

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"github.com/utilitywarehouse/git-push-mirror/gitcmd"
	"github.com/utilitywarehouse/git-push-mirror/repository"
)

const (
	testMainBranch = "master"
	testGitUser    = "git-push-mirror-e2e"
)

var (
	testLog  = slog.Default()
	testENVs []string
	gitExec  string
)

func TestMain(m *testing.M) {
	var err error
	gitExec, err = exec.LookPath("git")
	if err != nil {
		fmt.Println("git not found in PATH, skipping e2e tests")
		os.Exit(m.Run())
	}

	testTmpDir, err := os.MkdirTemp("", "git-push-mirror-e2e-*")
	if err != nil {
		fmt.Printf("unable to make dir: %v\n", err)
		os.Exit(1)
	}

	testENVs = []string{
		"PATH=" + os.Getenv("PATH"),
		fmt.Sprintf("GIT_CONFIG_GLOBAL=%s/gitconfig", testTmpDir),
		"GIT_CONFIG_SYSTEM=/dev/null",
		"GIT_AUTHOR_NAME=" + testGitUser,
		"GIT_AUTHOR_EMAIL=" + testGitUser + "@example.com",
		"GIT_COMMITTER_NAME=" + testGitUser,
		"GIT_COMMITTER_EMAIL=" + testGitUser + "@example.com",
	}

	code := m.Run()

	// clean up
	os.RemoveAll(testTmpDir)

	os.Exit(code)
}

// localRepos resolves repositories straight from the disk
type localRepos map[int64]*repository.Repository

func (l localRepos) GetByID(_ context.Context, id int64) (*repository.Repository, error) {
	repo, ok := l[id]
	if !ok {
		return nil, repository.ErrNotExist
	}
	if exists, err := repo.Exists(); err != nil {
		return nil, err
	} else if !exists {
		return nil, repository.ErrNotExist
	}
	return repo, nil
}

func (l localRepos) IsEmpty(ctx context.Context, repo *repository.Repository) (bool, error) {
	return repo.IsEmpty(ctx)
}

func Test_push_to_local_mirror(t *testing.T) {
	if gitExec == "" {
		t.Skip("git not found in PATH")
	}

	tmp := t.TempDir()
	src := filepath.Join(tmp, "src.git")
	dst := filepath.Join(tmp, "dst.git")
	work := filepath.Join(tmp, "work")

	mustExec(t, tmp, "init", "-q", "--bare", src)
	mustExec(t, tmp, "init", "-q", "--bare", dst)
	mustExec(t, tmp, "init", "-q", "-b", testMainBranch, work)

	repo, err := repository.New(repository.Config{ID: 1, Name: "src", Path: src}, gitExec, testENVs, testLog)
	if err != nil {
		t.Fatalf("unable to create repository err:%v", err)
	}
	p := NewProcessor(localRepos{1: repo}, fakePlain{}, gitcmd.NewExecRunner(gitExec, testENVs, testLog), nil, nil, testLog)

	req := Request{RepositoryID: 1, Settings: Settings{
		MirrorRepoURL:  dst,
		Refspec:        Refspecs{"+refs/heads/master:refs/heads/master"},
		RefspecNoForce: Refspecs{"refs/heads/dev:refs/heads/dev"},
		Tags:           true,
		Notes:          true,
		Atomic:         true,
	}}

	t.Log("TEST-1: empty source repository is skipped")
	if err := p.Process(t.Context(), []Request{req}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := mustExec(t, dst, "for-each-ref"); got != "" {
		t.Fatalf("expected mirror to be untouched got refs %q", got)
	}

	t.Log("TEST-2: branches, tags and notes are mirrored")
	masterHash := mustCommit(t, work, "file", "master-1")
	mustExec(t, work, "checkout", "-q", "-b", "dev")
	devHash := mustCommit(t, work, "file", "dev-1")
	mustExec(t, work, "checkout", "-q", testMainBranch)
	mustExec(t, work, "tag", "v1", masterHash)
	mustExec(t, work, "notes", "add", "-m", "reviewed", masterHash)
	mustExec(t, work, "push", "-q", src, "master", "dev", "refs/tags/*:refs/tags/*", "refs/notes/*:refs/notes/*")

	if err := p.Process(t.Context(), []Request{req}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	assertRef(t, dst, "refs/heads/master", masterHash)
	assertRef(t, dst, "refs/heads/dev", devHash)
	assertRef(t, dst, "refs/tags/v1", masterHash)
	assertRefExists(t, dst, "refs/notes/commits")

	t.Log("TEST-3: deleted tags are pruned on mirror")
	mustExec(t, src, "tag", "-d", "v1")
	if err := p.Process(t.Context(), []Request{req}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	assertMissingRef(t, dst, "refs/tags/v1")

	t.Log("TEST-4: rewritten history is forced only for forced refspecs")
	mustExec(t, work, "checkout", "-q", "--orphan", "rewrite")
	rewriteHash := mustCommit(t, work, "file", "rewrite-1")
	mustExec(t, work, "push", "-q", "-f", src, "rewrite:master", "rewrite:dev")

	err = p.Process(t.Context(), []Request{req})
	if err == nil {
		t.Fatalf("expected non fast-forward push of dev to fail")
	}
	var exitErr *gitcmd.ExitError
	if !errors.As(err, &exitErr) {
		t.Fatalf("expected *gitcmd.ExitError got %v", err)
	}
	assertRef(t, dst, "refs/heads/master", rewriteHash)
	assertRef(t, dst, "refs/heads/dev", devHash)

	t.Log("TEST-5: missing source repository is skipped")
	if err := os.RemoveAll(src); err != nil {
		t.Fatal(err)
	}
	if err := p.Process(t.Context(), []Request{req}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func Test_push_with_credentials_failure_is_redacted(t *testing.T) {
	if gitExec == "" {
		t.Skip("git not found in PATH")
	}

	tmp := t.TempDir()
	src := filepath.Join(tmp, "src.git")
	work := filepath.Join(tmp, "work")
	mustExec(t, tmp, "init", "-q", "--bare", src)
	mustExec(t, tmp, "init", "-q", "-b", testMainBranch, work)
	mustCommit(t, work, "file", t.Name())
	mustExec(t, work, "push", "-q", src, testMainBranch)

	repo, err := repository.New(repository.Config{ID: 1, Name: "src", Path: src}, gitExec, testENVs, testLog)
	if err != nil {
		t.Fatalf("unable to create repository err:%v", err)
	}

	var logs strings.Builder
	log := slog.New(slog.NewTextHandler(&logs, &slog.HandlerOptions{Level: slog.Level(-8)}))
	p := NewProcessor(localRepos{1: repo}, fakePlain{}, gitcmd.NewExecRunner(gitExec, testENVs, log), nil, nil, log)

	// nothing listens on port 1 so push fails right away
	err = p.Process(t.Context(), []Request{{RepositoryID: 1, Settings: Settings{
		MirrorRepoURL: "http://127.0.0.1:1/org/repo.git",
		Username:      "user",
		Password:      "e2e-secret-password",
		Refspec:       Refspecs{"+refs/heads/master:refs/heads/master"},
	}}})
	if err == nil {
		t.Fatalf("expected push to fail")
	}
	if strings.Contains(err.Error(), "e2e-secret-password") {
		t.Errorf("password leaked in error: %v", err)
	}
	if strings.Contains(logs.String(), "e2e-secret-password") {
		t.Errorf("password leaked in logs: %s", logs.String())
	}
	if !strings.Contains(logs.String(), "user:*****@127.0.0.1:1") {
		t.Errorf("expected redacted url in logs: %s", logs.String())
	}
}

type fakePlain struct{}

func (fakePlain) Decrypt(ciphertext string) (string, error) { return ciphertext, nil }

func mustCommit(t *testing.T, repo, file, content string) string {
	t.Helper()

	if err := os.WriteFile(filepath.Join(repo, file), []byte(content), 0o644); err != nil {
		t.Fatalf("unable to write to file err: %v", err)
	}
	mustExec(t, repo, "add", file)
	mustExec(t, repo, "commit", "-q", "-m", content)
	return mustExec(t, repo, "rev-list", "-n1", "HEAD")
}

func assertRef(t *testing.T, repo, ref, want string) {
	t.Helper()
	if got := mustExec(t, repo, "rev-parse", ref); got != want {
		t.Errorf("ref %s mismatch got:%s want:%s", ref, got, want)
	}
}

func assertRefExists(t *testing.T, repo, ref string) {
	t.Helper()
	if got := mustExec(t, repo, "for-each-ref", ref); got == "" {
		t.Errorf("ref %s is missing", ref)
	}
}

func assertMissingRef(t *testing.T, repo, ref string) {
	t.Helper()
	if got := mustExec(t, repo, "for-each-ref", ref); got != "" {
		t.Errorf("ref %s should not exist but found %s", ref, got)
	}
}

func mustExec(t *testing.T, cwd string, arg ...string) string {
	t.Helper()

	cmd := exec.Command(gitExec, arg...)
	if cwd != "" {
		cmd.Dir = cwd
	}
	cmd.Env = testENVs

	stdoutStderr, err := cmd.CombinedOutput()
	if err != nil {
		t.Fatalf("err:%v run(%s): { stdoutStderr %q }", err, cmd.String(), stdoutStderr)
	}
	return strings.TrimSpace(string(stdoutStderr))
}
