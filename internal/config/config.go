// Package config loads config.toml and prepares the _build/ directory
// layout.
package config

import (
	"os"

	"github.com/pelletier/go-toml/v2"
	"github.com/pop-os/popci/internal/errs"
)

// Series describes one entry of the [series] table.
type Series struct {
	Release  string `toml:"release"`
	Wildcard bool   `toml:"wildcard"`
}

// Organization describes one entry of [[github.organizations]].
type Organization struct {
	Name         string `toml:"name"`
	StartsFilter string `toml:"starts_filter"`
}

type github struct {
	Organizations []Organization `toml:"organizations"`
	Repos         []string       `toml:"repos"`
}

// raw mirrors the on-disk TOML shape exactly; Config adds the derived,
// process-wide fields (dirs, dev, retry) that never come from the file.
type raw struct {
	Archs            map[string]bool   `toml:"archs"`
	Series           map[string]Series `toml:"series"`
	GitHub           github            `toml:"github"`
	Email            string            `toml:"email"`
	Fullname         string            `toml:"fullname"`
	Context          string            `toml:"context"`
	Description      string            `toml:"description"`
	BuildURL         string            `toml:"build_url"`
	ConcurrentBuilds int               `toml:"concurrent_builds"`
}

// Config is the fully resolved configuration for a run.
type Config struct {
	Archs            map[string]bool
	Series           map[string]Series
	Organizations    []Organization
	Email            string
	Fullname         string
	Context          string
	Description      string
	BuildURL         string
	ConcurrentBuilds int
	Dirs             Dirs
	Dev              bool
	Retry            bool
}

// New reads the TOML configuration at path (config.toml in the current
// working directory when path is empty), decodes it, and prepares _build/
// under the current working directory.
func New(path string) (*Config, error) {
	if path == "" {
		path = "config.toml"
	}
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return nil, &errs.Config{Op: "locate", Cause: err}
		}
		return nil, &errs.Config{Op: "stat", Cause: err}
	}

	b, err := os.ReadFile(path)
	if err != nil {
		return nil, &errs.Config{Op: "read", Cause: err}
	}

	var r raw
	r.ConcurrentBuilds = 1 // default, matching RawConfig's #[default = 1]
	if err := toml.Unmarshal(b, &r); err != nil {
		return nil, &errs.Config{Op: "parse", Cause: err}
	}

	base, err := os.Getwd()
	if err != nil {
		return nil, &errs.Config{Op: "getwd", Cause: err}
	}

	dirs := newDirs(base)
	if err := dirs.setup(); err != nil {
		return nil, &errs.Config{Op: "setup-dirs", Cause: err}
	}

	return &Config{
		Archs:            r.Archs,
		Series:           r.Series,
		Organizations:    r.GitHub.Organizations,
		Email:            r.Email,
		Fullname:         r.Fullname,
		Context:          r.Context,
		Description:      r.Description,
		BuildURL:         r.BuildURL,
		ConcurrentBuilds: r.ConcurrentBuilds,
		Dirs:             dirs,
		Dev:              checkEnv("PACKAGING_DEV"),
		Retry:            checkEnv("PACKAGING_RETRY"),
	}, nil
}

func checkEnv(key string) bool {
	return os.Getenv(key) == "1"
}
