package config

import "sync"

// Holder provides concurrency-safe access to a Config that can be
// reloaded while the process runs (e.g. on SIGHUP). Reload re-runs the
// full defaults < YAML < ENV hierarchy against the original path; if the
// result fails validation the previous config is kept.
type Holder struct {
	mu   sync.RWMutex
	cfg  *Config
	path string
}

// NewHolder wraps an already-loaded Config and remembers the YAML path
// it was loaded from.
func NewHolder(cfg *Config, path string) *Holder {
	return &Holder{cfg: cfg, path: path}
}

// Get returns the current Config. The returned pointer must be treated
// as read-only.
func (h *Holder) Get() *Config {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.cfg
}

// Reload re-reads the config from disk and environment. On error the
// previously held config stays active.
func (h *Holder) Reload() error {
	cfg, err := LoadFrom(h.path)
	if err != nil {
		return err
	}

	h.mu.Lock()
	h.cfg = cfg
	h.mu.Unlock()
	return nil
}
