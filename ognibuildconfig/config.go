// Package ognibuildconfig loads ognibuild's own configuration: an
// optional repo-local ognibuild.yaml, overlaid by environment variables,
// overlaid by whatever a CLI flag sets explicitly. A Config is read-only
// once constructed and passed by reference from there on -- there is no
// global/package-level config state anywhere else in this module.
package ognibuildconfig

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config is ognibuild's resolved configuration, after the YAML file,
// environment, and CLI-flag layers have all been applied in that order.
type Config struct {
	// Repositories is the ordered list of apt-style repository URLs
	// beyond whatever is already configured on the system. It is loaded
	// and overridden here; no resolver in this module reads it.
	Repositories []string `yaml:"repositories"`

	// DebEmail and DebFullname hold the identity debcommit reads from
	// DEBEMAIL/DEBFULLNAME. Nothing outside this package reads them.
	DebEmail    string `yaml:"deb_email"`
	DebFullname string `yaml:"deb_fullname"`

	// UserLocal, when true, tells resolvers to install into the
	// invoking user's home directory rather than system-wide.
	UserLocal bool `yaml:"user_local"`
}

// Load reads ognibuild.yaml from dir (if present; its absence is not an
// error), then overlays REPOSITORIES/DEBEMAIL/DEBFULLNAME from the
// environment. dir may be "" to mean the current directory.
func Load(dir string) (*Config, error) {
	var cfg Config

	path := filepath.Join(dir, "ognibuild.yaml")
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("ognibuildconfig: parsing %s: %w", path, err)
		}
	case os.IsNotExist(err):
		// No repo-local config is the normal case; env/flags alone are
		// a valid configuration.
	default:
		return nil, fmt.Errorf("ognibuildconfig: reading %s: %w", path, err)
	}

	cfg.applyEnv()
	return &cfg, nil
}

func (c *Config) applyEnv() {
	if repos := os.Getenv("REPOSITORIES"); repos != "" {
		// Matches os.environ["REPOSITORIES"].split(":") in
		// debian/apt.py/fix_build.py: colon-separated, not
		// comma-or-space-separated.
		var list []string
		for _, r := range strings.Split(repos, ":") {
			if r != "" {
				list = append(list, r)
			}
		}
		c.Repositories = list
	}
	if email := os.Getenv("DEBEMAIL"); email != "" {
		c.DebEmail = email
	}
	if name := os.Getenv("DEBFULLNAME"); name != "" {
		c.DebFullname = name
	}
}

// WithRepositories returns a copy of c with Repositories overridden (or
// c itself when repos is empty), mirroring the CLI-flag layer: a flag.Var-populated value takes
// precedence over both the YAML file and the environment, but the
// caller constructs the final Config explicitly rather than Config
// reaching back out to flag.CommandLine itself.
func (c *Config) WithRepositories(repos []string) *Config {
	if len(repos) == 0 {
		return c
	}
	next := *c
	next.Repositories = repos
	return &next
}

// WithUserLocal returns a copy of c with UserLocal overridden.
func (c *Config) WithUserLocal(userLocal bool) *Config {
	next := *c
	next.UserLocal = userLocal
	return &next
}
