// Package testutils provides deterministic generators and fixtures for luashell testing.
// The generators are also used by the runtime in test mode so transcripts stay stable.
package testutils

import (
	"fmt"
	"sync"

	"github.com/google/uuid"
)

var (
	// Thread-safe counter for deterministic ID generation
	idCounter uint64
	idMutex   sync.Mutex
)

// GenerateUUID generates a UUID that is deterministic in test mode but random in production.
// In test mode, returns UUIDs in format: 00000001-0000-4000-8000-000000000001, 00000002-0000-4000-8000-000000000002, etc.
func GenerateUUID(testMode bool) string {
	if testMode {
		return getDeterministicUUID()
	}
	return uuid.New().String()
}

// getDeterministicUUID generates a deterministic UUID maintaining UUID v4 format.
func getDeterministicUUID() string {
	idMutex.Lock()
	defer idMutex.Unlock()

	idCounter++

	// Format: xxxxxxxx-xxxx-4xxx-yxxx-xxxxxxxxxxxx
	return fmt.Sprintf("%08x-0000-4000-8000-%012x", idCounter, idCounter)
}

// ResetTestCounters resets the deterministic counters.
// This should only be called from test code to ensure consistent test runs.
func ResetTestCounters() {
	idMutex.Lock()
	defer idMutex.Unlock()

	idCounter = 0
}
