// Copyright (c) 2025 Seedfast
// Licensed under the MIT License. See LICENSE file in the project root for details.

package bundle

import "sync"

var (
	// Process-wide bundle, loaded on first use and never reloaded.
	globalBundle *Bundle
	globalPath   string
	globalLock   sync.Mutex
)

// Get returns the process-wide bundle, loading it from path on first use. Later
// calls return the same bundle regardless of path.
func Get(path string) (*Bundle, error) {
	globalLock.Lock()
	defer globalLock.Unlock()
	if globalBundle != nil {
		return globalBundle, nil
	}
	b, err := Load(path)
	if err != nil {
		return nil, err
	}
	globalBundle, globalPath = b, path
	return b, nil
}

// LoadedFrom returns the path of the process-wide bundle, or "" if none is loaded.
func LoadedFrom() string {
	globalLock.Lock()
	defer globalLock.Unlock()
	return globalPath
}

// reset drops the process-wide bundle. Tests only.
func reset() {
	globalLock.Lock()
	defer globalLock.Unlock()
	globalBundle, globalPath = nil, ""
}
