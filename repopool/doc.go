// Package repopool holds the configured source repositories and the mirrors
// each of them is pushed to.
//
// RepoPool implements the repository resolution and property source used by
// the mirror processor. Repositories can be added, removed and their mirrors
// replaced at any time, which allows config to be reloaded without restart.
//
// # Usages
//
// please see examples below
//
// # Logging:
//
// package takes slog reference for logging and prints logs up to 'trace' level
//
// Example:
//
//	loggerLevel  = new(slog.LevelVar)
//	levelStrings = map[string]slog.Level{
//		"trace": slog.Level(-8),
//		"debug": slog.LevelDebug,
//		"info":  slog.LevelInfo,
//		"warn":  slog.LevelWarn,
//		"error": slog.LevelError,
//	}
//
//	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
//		Level: loggerLevel,
//	}))
//	loggerLevel.Set(levelStrings["trace"])
//
//	repos, err := repopool.New(conf, logger.With("logger", "git-push-mirror"), "git", nil)
//	if err != nil {
//		panic(err)
//	}
package repopool
