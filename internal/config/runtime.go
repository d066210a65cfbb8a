package config

import (
	"sync"
)

// RuntimeConfig stores configuration set at runtime via CLI flags.
// These values are not persisted to config files.
type RuntimeConfig struct {
	mu       sync.RWMutex
	location string
}

var globalRuntime = &RuntimeConfig{}

// SetLocation sets the address the running editor is served from. It is
// recorded as the original location of a notebook on its first edit.
func SetLocation(loc string) {
	globalRuntime.mu.Lock()
	defer globalRuntime.mu.Unlock()
	globalRuntime.location = loc
}

// Location returns the current editor location.
// Returns empty string if not set.
func Location() string {
	globalRuntime.mu.RLock()
	defer globalRuntime.mu.RUnlock()
	return globalRuntime.location
}
