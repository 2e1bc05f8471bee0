package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/urfave/cli/v3"
	"github.com/utilitywarehouse/git-push-mirror/gitcmd"
	"github.com/utilitywarehouse/git-push-mirror/mirror"
	"github.com/utilitywarehouse/git-push-mirror/repopool"
	"github.com/utilitywarehouse/git-push-mirror/secret"
)

var (
	loggerLevel = new(slog.LevelVar)
	logger      *slog.Logger

	levelStrings = map[string]slog.Level{
		"trace": slog.Level(-8),
		"debug": slog.LevelDebug,
		"info":  slog.LevelInfo,
		"warn":  slog.LevelWarn,
		"error": slog.LevelError,
	}

	// env passed through to git so that ssh mirrors can use
	// the keys and agent of the user running the daemon
	passThroughENVs = []string{"PATH", "HOME", "SSH_AUTH_SOCK", "GIT_SSH_COMMAND"}

	flags = []cli.Flag{
		&cli.StringFlag{
			Name:    "config",
			Sources: cli.EnvVars("GIT_PUSH_MIRROR_CONFIG"),
			Value:   "/etc/git-push-mirror/config.yaml",
			Usage:   "Absolute path to the config file.",
		},
		&cli.StringFlag{
			Name:    "log-level",
			Sources: cli.EnvVars("LOG_LEVEL"),
			Value:   "info",
			Usage:   "Log level",
		},
		&cli.StringFlag{
			Name:    "git-exec",
			Sources: cli.EnvVars("GIT_PUSH_MIRROR_GIT_EXEC"),
			Value:   "git",
			Usage:   "git executable to use for all git operations",
		},
		&cli.StringFlag{
			Name:    "secret-key",
			Sources: cli.EnvVars("GIT_PUSH_MIRROR_SECRET_KEY"),
			Usage:   "key used to decrypt mirror passwords, if not set passwords are used as plain text",
		},
	}

	serveFlags = []cli.Flag{
		&cli.StringFlag{
			Name:    "http-bind-address",
			Sources: cli.EnvVars("HTTP_BIND_ADDRESS"),
			Value:   ":9001",
			Usage:   "address the webhook, metrics and health endpoints are served on",
		},
		&cli.StringFlag{
			Name:    "github-webhook-secret",
			Sources: cli.EnvVars("GITHUB_WEBHOOK_SECRET"),
			Usage:   "secret used to validate signature of the GitHub webhook deliveries",
		},
		&cli.StringFlag{
			Name:    "github-webhook-path",
			Sources: cli.EnvVars("GITHUB_WEBHOOK_PATH"),
			Value:   "/github-webhook",
			Usage:   "path on which GitHub webhook events are expected",
		},
		&cli.BoolFlag{
			Name:    "watch-config",
			Sources: cli.EnvVars("WATCH_CONFIG"),
			Value:   true,
			Usage:   "watch config file for changes and reload repositories",
		},
		&cli.DurationFlag{
			Name:    "watch-config-interval",
			Sources: cli.EnvVars("WATCH_CONFIG_INTERVAL"),
			Value:   time.Minute,
			Usage:   "interval at which config file is checked for changes",
		},
		&cli.BoolFlag{
			Name:    "push-on-start",
			Sources: cli.EnvVars("PUSH_ON_START"),
			Usage:   "queue push of all configured repositories on start",
		},
	}
)

func init() {
	loggerLevel.Set(slog.LevelInfo)
	logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: loggerLevel,
	}))
}

func main() {
	cmd := &cli.Command{
		Name:  "git-push-mirror",
		Usage: "git-push-mirror pushes refs of local source repositories to remote mirrors.",
		Flags: flags,
		Before: func(ctx context.Context, c *cli.Command) (context.Context, error) {
			// set log level according to argument
			if v, ok := levelStrings[strings.ToLower(c.String("log-level"))]; ok {
				loggerLevel.Set(v)
			}
			return ctx, nil
		},
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "serve GitHub webhook and push mirrors of the repositories on every push event",
				Flags:  serveFlags,
				Action: serve,
			},
			{
				Name:  "push",
				Usage: "push mirrors of a single repository and exit, ie from a post-receive hook",
				Flags: []cli.Flag{
					&cli.Int64Flag{
						Name:     "repo-id",
						Usage:    "id of the repository to push",
						Required: true,
					},
				},
				Action: pushOnce,
			},
			{
				Name:   "encrypt",
				Usage:  "encrypt password read from stdin with the secret key, output can be used as mirror password",
				Action: encrypt,
			},
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		logger.Error("failed to run app", "err", err)
		os.Exit(1)
	}
}

func gitENVs() []string {
	var envs []string
	for _, key := range passThroughENVs {
		if v, ok := os.LookupEnv(key); ok {
			envs = append(envs, fmt.Sprintf("%s=%s", key, v))
		}
	}
	// never wait for credentials on terminal
	return append(envs, "GIT_TERMINAL_PROMPT=0")
}

func newDecrypter(c *cli.Command) (mirror.Decrypter, error) {
	key := c.String("secret-key")
	if key == "" {
		logger.Warn("secret key is not set, mirror passwords are used as plain text")
		return secret.Plaintext{}, nil
	}
	return secret.NewJWE(key)
}

// newMirror loads config and returns repository pool and processor
func newMirror(c *cli.Command) (*repopool.RepoPool, *mirror.Processor, error) {
	conf, err := parseConfigFile(c.String("config"))
	if err != nil {
		return nil, nil, fmt.Errorf("unable to parse config file err:%w", err)
	}

	decrypter, err := newDecrypter(c)
	if err != nil {
		return nil, nil, err
	}

	gitExec := c.String("git-exec")
	envs := gitENVs()

	repos, err := repopool.New(*conf, logger.With("logger", "repo-pool"), gitExec, envs)
	if err != nil {
		return nil, nil, fmt.Errorf("could not create repository pool err:%w", err)
	}

	processorLog := logger.With("logger", "git-push-mirror")
	runner := gitcmd.NewExecRunner(gitExec, envs, processorLog)
	processor := mirror.NewProcessor(repos, decrypter, runner, repos, nil, processorLog)

	return repos, processor, nil
}

func serve(ctx context.Context, c *cli.Command) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	mirror.EnableMetrics("", prometheus.DefaultRegisterer)
	prometheus.MustRegister(configSuccess, configSuccessTime)

	repos, processor, err := newMirror(c)
	if err != nil {
		return err
	}

	queue := newPushQueue(repos, processor, logger.With("logger", "push-queue"))
	go queue.Run(ctx)

	// initial config is already loaded, watcher will only apply changes
	go WatchConfig(ctx, c.String("config"), c.Bool("watch-config"), c.Duration("watch-config-interval"),
		func(rpc *repopool.Config) bool {
			return ensureConfig(repos, rpc)
		},
	)

	if c.Bool("push-on-start") {
		for _, id := range repos.RepositoryIDs() {
			queue.Enqueue(id)
		}
	}

	if c.String("github-webhook-secret") == "" {
		logger.Warn("github webhook secret is not set, all webhook deliveries will be rejected")
	}

	mux := http.NewServeMux()
	mux.Handle(c.String("github-webhook-path"), &GithubWebhookHandler{
		repoPool: repos,
		queue:    queue,
		secret:   c.String("github-webhook-secret"),
		log:      logger.With("logger", "github-webhook"),
	})
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte("ok"))
	})

	server := &http.Server{
		Addr:              c.String("http-bind-address"),
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting web server", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("web server failed err:%w", err)
	case <-ctx.Done():
	}

	logger.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("failed to shutdown web server", "err", err)
	}

	return nil
}

func pushOnce(ctx context.Context, c *cli.Command) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	repos, processor, err := newMirror(c)
	if err != nil {
		return err
	}

	id := c.Int64("repo-id")
	if _, err := repos.Repository(id); err != nil {
		return fmt.Errorf("repository not configured id:%d err:%w", id, err)
	}

	reqs := repos.MirrorRequests(id)
	if len(reqs) == 0 {
		logger.Info("no mirrors configured", "repo-id", id)
		return nil
	}

	return processor.Process(ctx, reqs)
}

func encrypt(_ context.Context, c *cli.Command) error {
	key := c.String("secret-key")
	if key == "" {
		return fmt.Errorf("secret-key is required to encrypt password")
	}

	jwe, err := secret.NewJWE(key)
	if err != nil {
		return err
	}

	in, err := io.ReadAll(os.Stdin)
	if err != nil {
		return fmt.Errorf("unable to read password from stdin err:%w", err)
	}
	password := strings.TrimRight(string(in), "\r\n")
	if password == "" {
		return fmt.Errorf("password is empty")
	}

	ciphertext, err := jwe.Encrypt(password)
	if err != nil {
		return err
	}

	_, err = fmt.Fprintln(os.Stdout, ciphertext)
	return err
}
