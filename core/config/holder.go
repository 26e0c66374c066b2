package config

import (
	"fmt"
	"sync/atomic"
)

// Holder owns the process configuration. It is built once at startup and
// passed by reference; Reload swaps the whole value atomically so a turn
// always sees one consistent Config.
type Holder struct {
	current atomic.Pointer[Config]
	load    func() (Config, error)
}

// NewHolder wraps an already loaded config. load is used by Reload; nil means Load.
func NewHolder(cfg Config, load func() (Config, error)) *Holder {
	if load == nil {
		load = Load
	}
	h := &Holder{load: load}
	h.current.Store(&cfg)
	return h
}

func (h *Holder) Current() Config {
	return *h.current.Load()
}

// Reload re-reads the configuration. On failure the previous value stays active.
func (h *Holder) Reload() (Config, error) {
	cfg, err := h.load()
	if err != nil {
		return h.Current(), fmt.Errorf("reloading config: %w", err)
	}
	h.current.Store(&cfg)
	return cfg, nil
}
