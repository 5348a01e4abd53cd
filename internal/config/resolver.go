package config

import (
	"cmp"
	"slices"
	"strings"
)

// namespaceRank orders modules so that service providers load first and
// update sources last. Unknown namespaces sort between the two.
var namespaceRank = map[string]int{
	"store":   0,
	"gateway": 1,
	"channel": 3,
}

const defaultRank = 2

// Resolve returns the module IDs from the configuration in load order:
// by namespace rank, then alphabetically. Stop runs in reverse, so
// channels stop feeding updates before anything they depend on.
func Resolve(cfg *Config) []string {
	ids := make([]string, 0, len(cfg.Modules))
	for id := range cfg.Modules {
		ids = append(ids, id)
	}
	slices.SortFunc(ids, func(a, b string) int {
		if c := cmp.Compare(rank(a), rank(b)); c != 0 {
			return c
		}
		return strings.Compare(a, b)
	})
	return ids
}

func rank(id string) int {
	ns, _, _ := strings.Cut(id, ".")
	if r, ok := namespaceRank[ns]; ok {
		return r
	}
	return defaultRank
}
