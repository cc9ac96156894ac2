package config

import "sync"

var (
	globalOnce sync.Once
	global     *Config
)

// Global returns the process-wide configuration, created unresolved with defaults on first use.
// Only the command layer should call it; everything else takes a *Config.
func Global() *Config {
	globalOnce.Do(func() {
		global = DefaultConfig()
	})
	return global
}
