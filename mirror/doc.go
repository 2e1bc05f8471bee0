// Package mirror pushes the refs of local source repositories to their
// configured mirror repositories.
//
// For every Request the Processor resolves the source repository, skips
// repositories which are missing or empty, decrypts the mirror password and
// runs up to two push passes. The forced pass pushes Settings.Refspec with
// `--force`, the non-forced pass pushes Settings.RefspecNoForce. Both passes
// prune, optionally push all tags and notes and can request an atomic
// update. Credentials of http(s) mirrors are embedded in the remote URL and
// are redacted from every log line and error.
//
// # Usages
//
//	repos, _ := repopool.New(conf, logger, "git", envs)
//	decrypter, _ := secret.NewJWE(secretKey)
//	runner := gitcmd.NewExecRunner("git", envs, logger)
//
//	p := mirror.NewProcessor(repos, decrypter, runner, conf.Properties, nil, logger)
//	if err := p.Process(ctx, repos.MirrorRequests(repoID)); err != nil {
//		logger.Error("mirror push failed", "err", err)
//	}
//
// # Metrics:
//
// call EnableMetrics to collect push metrics
package mirror
