package waveprint

import "github.com/waveprintlabs/waveprint/pkg/waveprint/fingerprint"

type Config struct {
	DBPath          string
	Fingerprint     fingerprint.Config
	AllowDuplicates bool
	Logger          Logger
	Store           PostingStore
}

type Option func(*Config)

func WithDBPath(path string) Option {
	return func(c *Config) {
		c.DBPath = path
	}
}

// WithFingerprintConfig overrides the pipeline parameters. Postings
// written under a different configuration become unmatchable.
func WithFingerprintConfig(fp fingerprint.Config) Option {
	return func(c *Config) {
		c.Fingerprint = fp
	}
}

// WithAllowDuplicates disables the content-hash duplicate check at
// ingest. Duplicate postings inflate match scores.
func WithAllowDuplicates(allow bool) Option {
	return func(c *Config) {
		c.AllowDuplicates = allow
	}
}

func WithLogger(log Logger) Option {
	return func(c *Config) {
		c.Logger = log
	}
}

func WithStore(store PostingStore) Option {
	return func(c *Config) {
		c.Store = store
	}
}

func defaultConfig() *Config {
	return &Config{
		DBPath:      "waveprint.sqlite3",
		Fingerprint: fingerprint.DefaultConfig(),
	}
}
