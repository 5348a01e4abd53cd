package config

import (
	"slices"
	"testing"

	"gopkg.in/yaml.v3"
)

func TestResolve_Order(t *testing.T) {
	t.Parallel()

	cfg := &Config{Modules: map[string]yaml.Node{
		"channel.telegram": {},
		"gateway.http":     {},
		"store.sqlite":     {},
		"extra.thing":      {},
		"channel.beta":     {},
	}}

	got := Resolve(cfg)
	want := []string{"store.sqlite", "gateway.http", "extra.thing", "channel.beta", "channel.telegram"}
	if !slices.Equal(got, want) {
		t.Errorf("Resolve() = %v, want %v", got, want)
	}
}

func TestResolve_Empty(t *testing.T) {
	t.Parallel()

	if got := Resolve(&Config{}); len(got) != 0 {
		t.Errorf("Resolve() = %v, want empty", got)
	}
}
