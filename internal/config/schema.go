// Package config handles YAML configuration loading, environment variable
// expansion, and structural validation for gatekeep.
package config

import (
	"time"

	"gopkg.in/yaml.v3"

	"github.com/flemzord/gatekeep/internal/role"
	"github.com/flemzord/gatekeep/internal/security"
	"github.com/flemzord/gatekeep/internal/tracing"
)

// Defaults applied by BotConfig.WithDefaults.
const (
	DefaultVerifyTimeout    = 2 * time.Minute
	DefaultSoftMuteDuration = 24 * time.Hour
	DefaultWorkers          = 10
	DefaultInboxSize        = 256
	DefaultSpamWatchURL     = "https://api.spamwat.ch"
)

// Config is the top-level configuration structure.
type Config struct {
	// Version is the config format version. Currently only "1" is supported.
	Version string `yaml:"version"`

	// Bot holds the group-management behaviour shared by every module.
	Bot BotConfig `yaml:"bot"`

	// Modules maps module IDs to their raw YAML configuration.
	// Keys must match registered module IDs (e.g. "channel.telegram").
	Modules map[string]yaml.Node `yaml:"modules"`
}

// BotConfig configures roles, the admin cache and the join pipeline.
type BotConfig struct {
	role.RosterConfig `yaml:",inline"`

	AdminCacheTTL    time.Duration `yaml:"admin_cache_ttl"`
	AdminCacheSize   int           `yaml:"admin_cache_size"`
	VerifyTimeout    time.Duration `yaml:"verify_timeout"`
	SoftMuteDuration time.Duration `yaml:"soft_mute_duration"`

	// AuditChatID receives "#NEW_GROUP" events. Zero disables auditing.
	AuditChatID int64 `yaml:"audit_chat_id"`

	// DeleteCommands deletes an argument-less admin command sent by a
	// non-admin instead of replying to it.
	DeleteCommands bool `yaml:"delete_commands"`

	Workers   int `yaml:"workers"`
	InboxSize int `yaml:"inbox_size"`

	// AuditLog is the JSONL audit file. Relative paths are resolved
	// against the data directory; empty disables the file.
	AuditLog string `yaml:"audit_log"`

	RateLimits security.RateLimitConfig `yaml:"rate_limits"`
	SpamWatch  SpamWatchConfig          `yaml:"spamwatch"`
	Tracing    tracing.Config           `yaml:"tracing"`
}

// SpamWatchConfig points at a SpamWatch-compatible ban list API.
// An empty token disables the lookup.
type SpamWatchConfig struct {
	APIURL string `yaml:"api_url"`
	Token  string `yaml:"token"`
}

// WithDefaults returns a copy of c with zero values replaced by defaults.
func (c BotConfig) WithDefaults() BotConfig {
	if c.AdminCacheTTL <= 0 {
		c.AdminCacheTTL = role.DefaultAdminTTL
	}
	if c.AdminCacheSize <= 0 {
		c.AdminCacheSize = role.DefaultAdminCacheSize
	}
	if c.VerifyTimeout <= 0 {
		c.VerifyTimeout = DefaultVerifyTimeout
	}
	if c.SoftMuteDuration <= 0 {
		c.SoftMuteDuration = DefaultSoftMuteDuration
	}
	if c.Workers <= 0 {
		c.Workers = DefaultWorkers
	}
	if c.InboxSize <= 0 {
		c.InboxSize = DefaultInboxSize
	}
	if c.SpamWatch.APIURL == "" {
		c.SpamWatch.APIURL = DefaultSpamWatchURL
	}
	return c
}
