package config

import (
	"errors"
	"fmt"

	"github.com/flemzord/gatekeep/internal/core"
)

// Validate checks the structural validity of a Config.
// It verifies the version field, ensures modules are present,
// checks that all referenced module IDs exist in the registry, and
// checks the bot section.
func Validate(cfg *Config) error {
	var errs []error

	if cfg.Version == "" {
		errs = append(errs, errors.New("config: version field is required"))
	} else if cfg.Version != "1" {
		errs = append(errs, fmt.Errorf("config: unsupported version %q (supported: \"1\")", cfg.Version))
	}

	if len(cfg.Modules) == 0 {
		errs = append(errs, errors.New("config: at least one module must be configured"))
	}

	for id := range cfg.Modules {
		if _, ok := core.GetModule(id); !ok {
			errs = append(errs, fmt.Errorf("config: unknown module %q", id))
		}
	}

	errs = append(errs, validateBot(cfg.Bot)...)

	return errors.Join(errs...)
}

func validateBot(bot BotConfig) []error {
	var errs []error

	if bot.OwnerID < 0 {
		errs = append(errs, fmt.Errorf("config: bot.owner_id must be a user id, got %d", bot.OwnerID))
	}
	if bot.AdminCacheTTL < 0 {
		errs = append(errs, errors.New("config: bot.admin_cache_ttl must not be negative"))
	}
	if bot.VerifyTimeout < 0 {
		errs = append(errs, errors.New("config: bot.verify_timeout must not be negative"))
	}
	if bot.SoftMuteDuration < 0 {
		errs = append(errs, errors.New("config: bot.soft_mute_duration must not be negative"))
	}
	if bot.Workers < 0 || bot.InboxSize < 0 {
		errs = append(errs, errors.New("config: bot.workers and bot.inbox_size must not be negative"))
	}

	if r := bot.Tracing.SampleRatio; r < 0 || r > 1 {
		errs = append(errs, fmt.Errorf("config: bot.tracing.sample_ratio must be between 0 and 1, got %v", r))
	}

	seen := make(map[int64]string)
	tiers := []struct {
		name string
		ids  []int64
	}{
		{"developers", bot.Developers},
		{"sudo", bot.Sudo},
		{"support", bot.Support},
		{"tigers", bot.Tigers},
		{"wolves", bot.Wolves},
	}
	for _, tier := range tiers {
		for _, id := range tier.ids {
			if prev, dup := seen[id]; dup && prev != tier.name {
				errs = append(errs, fmt.Errorf("config: bot: user %d listed in both %s and %s", id, prev, tier.name))
				continue
			}
			seen[id] = tier.name
		}
	}

	return errs
}

