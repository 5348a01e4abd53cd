package sqlite

import (
	"fmt"
	"slices"
	"time"
)

const (
	defaultBusyTimeout = 5 * time.Second
	defaultDBFile      = "gatekeep.db"
	defaultJournal     = "wal"
)

// journalModes are the SQLite journal modes that keep the database on disk.
var journalModes = []string{"wal", "delete", "truncate", "persist"}

// Config is the store.sqlite section of gatekeep.yaml.
type Config struct {
	// Path defaults to gatekeep.db in the data directory. Relative paths
	// are resolved against the data directory.
	Path string `yaml:"path"`

	// Journal is the SQLite journal mode, "wal" unless set.
	Journal string `yaml:"journal"`

	// BusyTimeout bounds how long a write waits for the database lock.
	BusyTimeout time.Duration `yaml:"busy_timeout"`
}

func (c *Config) defaults() {
	if c.Journal == "" {
		c.Journal = defaultJournal
	}
	if c.BusyTimeout == 0 {
		c.BusyTimeout = defaultBusyTimeout
	}
}

func (c *Config) validate() error {
	if !slices.Contains(journalModes, c.Journal) {
		return fmt.Errorf("sqlite: journal must be one of %v, got %q", journalModes, c.Journal)
	}
	if c.BusyTimeout < 0 {
		return fmt.Errorf("sqlite: busy_timeout must not be negative, got %s", c.BusyTimeout)
	}
	return nil
}
