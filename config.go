package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"reflect"
	"slices"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/utilitywarehouse/git-push-mirror/mirror"
	"github.com/utilitywarehouse/git-push-mirror/repopool"
	"gopkg.in/yaml.v3"
)

var (
	configSuccess = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "git_push_mirror_config_last_reload_successful",
		Help: "Whether the last configuration reload attempt was successful.",
	})
	configSuccessTime = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "git_push_mirror_config_last_reload_success_timestamp_seconds",
		Help: "Timestamp of the last successful configuration reload.",
	})
)

// WatchConfig polls the config file every interval and reloads if modified
func WatchConfig(ctx context.Context, path string, watchConfig bool, interval time.Duration, onChange func(*repopool.Config) bool) {
	var lastModTime time.Time
	var success bool

	for {
		lastModTime, success = loadConfig(path, lastModTime, onChange)
		if success {
			configSuccess.Set(1)
			configSuccessTime.SetToCurrentTime()
		} else {
			configSuccess.Set(0)
		}

		if !watchConfig {
			return
		}

		t := time.NewTimer(interval)
		select {
		case <-t.C:
		case <-ctx.Done():
			t.Stop()
			return
		}
	}
}

func loadConfig(path string, lastModTime time.Time, onChange func(*repopool.Config) bool) (time.Time, bool) {
	fileInfo, err := os.Stat(path)
	if err != nil {
		logger.Error("Error checking config file", "err", err)
		return lastModTime, false
	}

	modTime := fileInfo.ModTime()
	if modTime.Equal(lastModTime) {
		return lastModTime, true
	}

	logger.Info("reloading config file...")

	newConfig, err := parseConfigFile(path)
	if err != nil {
		logger.Error("failed to reload config", "err", err)
		return lastModTime, false
	}
	return modTime, onChange(newConfig)
}

// ensureConfig will do the diff between current repoPool state and new config
// and based on that diff it will add/remove/replace repositories and update
// mirrors and properties
func ensureConfig(repoPool *repopool.RepoPool, newConfig *repopool.Config) bool {
	success := true

	// validate and apply defaults to new config before compare
	if err := newConfig.ValidateAndApplyDefaults(); err != nil {
		logger.Error("failed to validate new config", "err", err)
		return false
	}

	newRepos, removedRepos, changedRepos := diffRepositories(repoPool, newConfig)

	// 1st remove then add in case new one has same path as removed one
	for _, id := range removedRepos {
		if err := repoPool.RemoveRepository(id); err != nil {
			logger.Error("failed to remove repository", "id", id, "err", err)
			success = false
		}
	}
	for _, repo := range changedRepos {
		if err := repoPool.RemoveRepository(repo.ID); err != nil {
			logger.Error("failed to remove changed repository", "id", repo.ID, "err", err)
			success = false
		}
	}
	for _, repo := range slices.Concat(changedRepos, newRepos) {
		if err := repoPool.AddRepository(repo); err != nil {
			logger.Error("failed to add repository", "id", repo.ID, "name", repo.Name, "err", err)
			success = false
		}
	}

	for _, repo := range newConfig.Repositories {
		if err := repoPool.SetMirrors(repo.ID, repo.Mirrors); err != nil {
			logger.Error("failed to update mirrors", "id", repo.ID, "name", repo.Name, "err", err)
			success = false
		}
	}

	repoPool.SetProperties(newConfig.Properties)

	return success
}

func parseConfigFile(path string) (*repopool.Config, error) {
	yamlFile, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	err = validateConfig(yamlFile)
	if err != nil {
		return nil, err
	}

	conf := &repopool.Config{}
	err = yaml.Unmarshal(yamlFile, conf)
	if err != nil {
		return nil, err
	}

	return conf, nil
}

func validateConfig(yamlData []byte) error {
	var raw map[string]any
	if err := yaml.Unmarshal(yamlData, &raw); err != nil {
		return err
	}

	// repositories section is mandatory
	if _, ok := raw["repositories"]; !ok {
		return fmt.Errorf("repositories config section is missing")
	}

	// check config sections for unexpected keys
	allowedRepoPoolConfig := getAllowedKeys(repopool.Config{})
	if key := findUnexpectedKey(raw, allowedRepoPoolConfig); key != "" {
		return fmt.Errorf("unexpected key: .%v", key)
	}

	// check "defaults" section
	if defaults, ok := raw["defaults"]; ok && defaults != nil {
		defaultsMap, ok := defaults.(map[string]any)
		if !ok {
			return fmt.Errorf("defaults config section is not valid")
		}
		if key := findUnexpectedKey(defaultsMap, getAllowedKeys(repopool.DefaultConfig{})); key != "" {
			return fmt.Errorf("unexpected key: .defaults.%v", key)
		}
	}

	// properties are free form but must be a map
	if props, ok := raw["properties"]; ok && props != nil {
		if _, ok := props.(map[string]any); !ok {
			return fmt.Errorf("properties config section is not valid")
		}
	}

	repos, ok := raw["repositories"].([]any)
	if !ok {
		if raw["repositories"] == nil {
			return nil
		}
		return fmt.Errorf("repositories config section is not valid")
	}

	// check each repository in "repositories" section
	allowedRepoKeys := getAllowedKeys(repopool.RepositoryConfig{})
	allowedMirrorKeys := getAllowedKeys(mirror.Settings{})
	for _, repoInterface := range repos {
		repoMap, ok := repoInterface.(map[string]any)
		if !ok {
			return fmt.Errorf("repositories config section is not valid")
		}

		if key := findUnexpectedKey(repoMap, allowedRepoKeys); key != "" {
			return fmt.Errorf("unexpected key: .repositories[%v].%v", repoMap["id"], key)
		}

		if repoMap["mirrors"] == nil {
			continue
		}
		mirrors, ok := repoMap["mirrors"].([]any)
		if !ok {
			return fmt.Errorf("mirrors config section is not valid in .repositories[%v]", repoMap["id"])
		}

		// check each "mirrors" section in each repository
		for i, mirrorInterface := range mirrors {
			mirrorMap, ok := mirrorInterface.(map[string]any)
			if !ok {
				return fmt.Errorf("mirrors config section is not valid in .repositories[%v]", repoMap["id"])
			}

			if key := findUnexpectedKey(mirrorMap, allowedMirrorKeys); key != "" {
				return fmt.Errorf("unexpected key: .repositories[%v].mirrors[%d].%v", repoMap["id"], i, key)
			}
		}
	}

	return nil
}

// getAllowedKeys retrieves a list of allowed keys from the specified struct
// keys of inline embedded structs are included
func getAllowedKeys(config any) []string {
	var allowedKeys []string
	val := reflect.ValueOf(config)
	typ := reflect.TypeOf(config)

	for i := 0; i < val.NumField(); i++ {
		field := typ.Field(i)
		name, opts, _ := strings.Cut(field.Tag.Get("yaml"), ",")
		if opts == "inline" {
			allowedKeys = append(allowedKeys, getAllowedKeys(val.Field(i).Interface())...)
			continue
		}
		if name != "" && name != "-" {
			allowedKeys = append(allowedKeys, name)
		}
	}
	return allowedKeys
}

func findUnexpectedKey(raw map[string]any, allowedKeys []string) string {
	for key := range raw {
		if !slices.Contains(allowedKeys, key) {
			return key
		}
	}

	return ""
}

// diffRepositories will do the diff between current state and new config and
// return config of the new repositories, ids of the repositories which are not
// found in config and config of the repositories whose id is known but
// repository config (name, path or remote) changed
func diffRepositories(repoPool *repopool.RepoPool, newConfig *repopool.Config) (
	newRepos []repopool.RepositoryConfig,
	removedRepos []int64,
	changedRepos []repopool.RepositoryConfig,
) {
	for _, newRepo := range newConfig.Repositories {
		current, err := repoPool.Config(newRepo.ID)
		if errors.Is(err, repopool.ErrNotExist) {
			newRepos = append(newRepos, newRepo)
			continue
		}
		if current.Config != newRepo.Config {
			changedRepos = append(changedRepos, newRepo)
		}
	}

	for _, id := range repoPool.RepositoryIDs() {
		found := slices.ContainsFunc(newConfig.Repositories, func(r repopool.RepositoryConfig) bool {
			return r.ID == id
		})
		if !found {
			removedRepos = append(removedRepos, id)
		}
	}

	return
}
