// Package siteconfig loads the process-wide defaults a site
// administrator would once have set in the original tool's hooks.py:
// the preferred tag order and the per-flavor fallback chains. It is
// optional — callers that don't provide a file get the built-in
// defaults matching the original tool's hard-coded hooks.
package siteconfig

import (
	"os"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// DefaultPreferredTags is the order the original tool searched tags in
// absent any site customization.
var DefaultPreferredTags = []string{"stable", "current", "newest"}

// Config is the parsed form of an optional site YAML file, e.g.:
//
//	preferredTags: [stable, current, newest]
//	flavors:
//	  Linux64: [Linux, Generic]
//	  DarwinX86: [Darwin, Generic]
//	lockTimeoutSeconds: 30
//
// LockTimeoutSeconds is parsed and kept here, but nothing reads it: the
// cache's lock always uses fsutil.DefaultLockTimeout.
type Config struct {
	PreferredTags      []string            `yaml:"preferredTags"`
	Flavors            map[string][]string `yaml:"flavors"`
	LockTimeoutSeconds int                 `yaml:"lockTimeoutSeconds"`
}

// Default returns the built-in configuration used when no site file is
// present.
func Default() *Config {
	return &Config{
		PreferredTags: append([]string(nil), DefaultPreferredTags...),
		Flavors: map[string][]string{
			"Linux64":   {"Linux", "Generic"},
			"Linux":     {"Generic"},
			"Darwin":    {"Generic"},
			"DarwinX86": {"Darwin", "Generic"},
		},
		LockTimeoutSeconds: 30,
	}
}

// Load reads and parses a site config file. A missing file is not an
// error: it returns Default().
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Default(), nil
		}
		return nil, errors.Wrapf(err, "reading site config %s", path)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, errors.Wrapf(err, "parsing site config %s", path)
	}
	if len(cfg.PreferredTags) == 0 {
		cfg.PreferredTags = append([]string(nil), DefaultPreferredTags...)
	}
	return cfg, nil
}
