package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"regexp"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"
)

// envRef matches $${VAR} (an escaped reference), ${VAR} and ${VAR:-default}.
var envRef = regexp.MustCompile(`\$?\$\{([A-Za-z_][A-Za-z0-9_]*)(?::-((?:[^}\\]|\\.)*))?\}`)

// Load reads gatekeep.yaml, substitutes environment references and decodes
// it. Unknown keys outside the modules section are errors. Module sections
// are left raw for the modules to decode.
func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: reading %s: %w", path, err)
	}

	expanded, err := expandEnv(raw)
	if err != nil {
		return nil, fmt.Errorf("config: %s: %w", path, err)
	}

	var cfg Config
	dec := yaml.NewDecoder(bytes.NewReader(expanded))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("config: parsing %s: %w", path, err)
	}
	return &cfg, nil
}

// expandEnv substitutes environment references in raw. A reference without
// a default whose variable is unset is an error; all such variables are
// reported at once.
func expandEnv(raw []byte) ([]byte, error) {
	var missing []string

	out := envRef.ReplaceAllFunc(raw, func(ref []byte) []byte {
		if bytes.HasPrefix(ref, []byte("$$")) {
			return ref[1:]
		}
		m := envRef.FindSubmatch(ref)
		if v, ok := os.LookupEnv(string(m[1])); ok {
			return []byte(v)
		}
		if m[2] != nil {
			return m[2]
		}
		missing = append(missing, string(m[1]))
		return ref
	})

	if len(missing) > 0 {
		slices.Sort(missing)
		return nil, fmt.Errorf("unset environment variables: %s", strings.Join(slices.Compact(missing), ", "))
	}
	return out, nil
}

// ToMap renders cfg as a generic map for the admin API. Callers redact
// secrets before encoding it.
func ToMap(cfg *Config) (map[string]any, error) {
	raw, err := yaml.Marshal(cfg)
	if err != nil {
		return nil, fmt.Errorf("config: marshal: %w", err)
	}
	out := make(map[string]any)
	if err := yaml.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}
	return out, nil
}
