// Package config loads TOML run configurations for batch reconstruction.
//
// A config describes one topology, one tip file, and any number of matrix
// variants to label it against:
//
//	topology = "data/pH1N1_rooted.phy"
//	tips     = "data/tipdata.txt"
//
//	[cache]
//	backend = "file"
//	dir     = ".phylotrace-cache"
//
//	[[variant]]
//	name   = "airport_geographic"
//	matrix = "data/geographic.distance.matrix.csv"
//
//	[[variant]]
//	name      = "country_geographic"
//	matrix    = "data/geographic.distance.matrix.country.csv"
//	translate = "data/airport_country.txt"
package config

import (
	"fmt"

	"github.com/BurntSushi/toml"

	"github.com/phylotrace/phylotrace/pkg/errors"
)

// Cache backend names accepted in [cache].
const (
	BackendNone  = "none"
	BackendFile  = "file"
	BackendRedis = "redis"
	BackendMongo = "mongo"
)

// Config is a full batch run description.
type Config struct {
	Topology  string    `toml:"topology"`
	Tips      string    `toml:"tips"`
	Delimiter string    `toml:"delimiter"` // matrix delimiter, default ","
	OutputDir string    `toml:"output_dir"`
	Workers   int       `toml:"workers"`
	Cache     CacheConf `toml:"cache"`
	Variants  []Variant `toml:"variant"`
}

// Variant is one (matrix, optional translation) combination.
type Variant struct {
	Name         string `toml:"name"`
	Matrix       string `toml:"matrix"`
	Translate    string `toml:"translate"`     // optional label translation table
	ExpandStates bool   `toml:"expand_states"` // state space from the matrix alphabet
}

// CacheConf selects and configures the cache backend.
type CacheConf struct {
	Backend  string `toml:"backend"` // none|file|redis|mongo, default none
	Dir      string `toml:"dir"`     // file backend
	Addr     string `toml:"addr"`    // redis backend
	Password string `toml:"password"`
	DB       int    `toml:"db"`
	URI      string `toml:"uri"`        // mongo backend
	Database string `toml:"database"`   // mongo backend
	Coll     string `toml:"collection"` // mongo backend
	TTLHours int    `toml:"ttl_hours"`  // 0 = never expire
}

// Load reads and validates a config file.
func Load(path string) (*Config, error) {
	var cfg Config
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidConfig, err, "decode %s", path)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks required fields and fills defaults.
func (c *Config) Validate() error {
	if c.Topology == "" {
		return errors.New(errors.ErrCodeInvalidConfig, "topology is required")
	}
	if c.Tips == "" {
		return errors.New(errors.ErrCodeInvalidConfig, "tips is required")
	}
	if len(c.Variants) == 0 {
		return errors.New(errors.ErrCodeInvalidConfig, "at least one [[variant]] is required")
	}
	if c.Delimiter == "" {
		c.Delimiter = ","
	}
	if len([]rune(c.Delimiter)) != 1 {
		return errors.New(errors.ErrCodeInvalidConfig, "delimiter must be a single character, got %q", c.Delimiter)
	}

	seen := map[string]bool{}
	for i := range c.Variants {
		v := &c.Variants[i]
		if v.Name == "" {
			return errors.New(errors.ErrCodeInvalidConfig, "variant %d: name is required", i)
		}
		if v.Matrix == "" {
			return errors.New(errors.ErrCodeInvalidConfig, "variant %q: matrix is required", v.Name)
		}
		if seen[v.Name] {
			return errors.New(errors.ErrCodeInvalidConfig, "duplicate variant name %q", v.Name)
		}
		seen[v.Name] = true
	}

	switch c.Cache.Backend {
	case "", BackendNone, BackendFile, BackendRedis, BackendMongo:
	default:
		return errors.New(errors.ErrCodeInvalidConfig,
			"unknown cache backend %q (want %s)", c.Cache.Backend,
			fmt.Sprintf("%s|%s|%s|%s", BackendNone, BackendFile, BackendRedis, BackendMongo))
	}
	if c.Cache.Backend == "" {
		c.Cache.Backend = BackendNone
	}
	return nil
}

// DelimiterRune returns the matrix delimiter as a rune.
func (c *Config) DelimiterRune() rune {
	return []rune(c.Delimiter)[0]
}
