// Copyright (c) 2026 Mitchell Cooper
// released under the MIT license

package caps

import (
	"sort"
	"strings"
	"sync"
)

// Set holds a set of enabled capabilities.
type Set struct {
	sync.RWMutex
	capabilities map[Capability]bool
}

// NewSet returns a new Set, with the given capabilities enabled.
func NewSet(capabs ...Capability) *Set {
	newSet := Set{
		capabilities: make(map[Capability]bool),
	}
	newSet.Enable(capabs...)

	return &newSet
}

// Enable enables the given capabilities.
func (s *Set) Enable(capabs ...Capability) {
	s.Lock()
	defer s.Unlock()

	for _, capab := range capabs {
		s.capabilities[capab] = true
	}
}

// Disable disables the given capabilities.
func (s *Set) Disable(capabs ...Capability) {
	s.Lock()
	defer s.Unlock()

	for _, capab := range capabs {
		delete(s.capabilities, capab)
	}
}

// Has returns true if this set has all of the given capabilities.
func (s *Set) Has(caps ...Capability) bool {
	s.RLock()
	defer s.RUnlock()

	for _, capab := range caps {
		if !s.capabilities[capab] {
			return false
		}
	}
	return true
}

// String returns the enabled capabilities, sorted, space-delimited.
func (s *Set) String() string {
	s.RLock()
	defer s.RUnlock()

	strs := make([]string, 0, len(s.capabilities))
	for capability := range s.capabilities {
		strs = append(strs, capability.Name())
	}
	sort.Strings(strs)

	return strings.Join(strs, " ")
}
