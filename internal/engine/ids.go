package engine

import (
	"sync"

	"github.com/google/uuid"
)

// OpIDGenerator generates unique operation IDs for journal correlation.
// Implemented by UUIDv7Generator (production) and FixedGenerator (tests).
type OpIDGenerator interface {
	Generate() string
}

// UUIDv7Generator generates time-sortable UUIDv7 operation IDs.
//
// UUIDv7 embeds a timestamp in the most significant bits, so journal op
// IDs sort roughly by admission time, which helps when eyeballing the
// journal next to the seq column.
//
// Thread-safety: stateless and safe for concurrent use.
type UUIDv7Generator struct{}

// Generate creates a new UUIDv7 as a hyphenated string.
// Panics if UUID generation fails (should never happen in practice).
func (g UUIDv7Generator) Generate() string {
	return uuid.Must(uuid.NewV7()).String()
}

// FixedGenerator returns predetermined operation IDs for testing.
// Deterministic IDs make journal rows and golden traces reproducible.
//
// Thread-safety: safe for concurrent use via internal mutex.
type FixedGenerator struct {
	mu  sync.Mutex
	ids []string
	idx int
}

// NewFixedGenerator creates a generator that returns IDs in order.
// Panics when the supply is exhausted - a fail-fast guard against a test
// admitting more operations than it planned for.
func NewFixedGenerator(ids ...string) *FixedGenerator {
	return &FixedGenerator{ids: ids}
}

// Generate returns the next predetermined ID.
func (g *FixedGenerator) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.idx >= len(g.ids) {
		panic("FixedGenerator: all operation IDs exhausted")
	}
	id := g.ids[g.idx]
	g.idx++
	return id
}

// SequenceGenerator produces "op-000001", "op-000002", ... without a
// fixed supply. Convenient for harness scenarios of unknown length.
type SequenceGenerator struct {
	mu sync.Mutex
	n  int
}

// NewSequenceGenerator creates a generator starting at op-000001.
func NewSequenceGenerator() *SequenceGenerator {
	return &SequenceGenerator{}
}

// Generate returns the next sequential ID.
func (g *SequenceGenerator) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.n++
	return sequenceID(g.n)
}

func sequenceID(n int) string {
	const digits = "0123456789"
	buf := []byte("op-000000")
	for i := len(buf) - 1; n > 0 && i >= 3; i-- {
		buf[i] = digits[n%10]
		n /= 10
	}
	return string(buf)
}
