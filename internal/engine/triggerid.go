package engine

import (
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// TriggerIDGenerator produces the correlation id attached to a trigger's
// event metadata and notification data.
// Implemented by UUIDv7Generator (production) and SequenceGenerator (tests).
type TriggerIDGenerator interface {
	Generate() string
}

// UUIDv7Generator generates time-sortable UUIDv7 trigger ids.
//
// UUIDv7 embeds a timestamp in the most significant bits, so ids sort by
// creation time in the event log and downstream alert caches.
//
// Thread-safety: UUIDv7Generator is stateless and safe for concurrent use.
type UUIDv7Generator struct{}

// Generate creates a new UUIDv7 and returns it as a hyphenated string.
//
// Panics if UUID generation fails (should never happen in practice).
func (g UUIDv7Generator) Generate() string {
	return uuid.Must(uuid.NewV7()).String()
}

// SequenceGenerator returns "<prefix>-1", "<prefix>-2", ... for
// deterministic traces.
type SequenceGenerator struct {
	mu     sync.Mutex
	prefix string
	n      int
}

func NewSequenceGenerator(prefix string) *SequenceGenerator {
	return &SequenceGenerator{prefix: prefix}
}

func (g *SequenceGenerator) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.n++
	return fmt.Sprintf("%s-%d", g.prefix, g.n)
}
