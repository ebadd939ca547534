package rpc

import (
	"crypto/rand"
	"encoding/binary"
	"sync/atomic"
)

// XIDGenerator produces unique transaction identifiers for RPC calls. Per
// spec, XIDs are drawn from a per-client counter so late UDP replies can be
// told apart from the call currently awaiting a response; seeding the
// counter randomly avoids collisions with a previous run of the same
// client against a server that still has stale XIDs in flight.
type XIDGenerator struct {
	counter uint64
}

// NewXIDGenerator returns a generator seeded from a cryptographically
// random value.
func NewXIDGenerator() *XIDGenerator {
	var seed [8]byte
	_, _ = rand.Read(seed[:])
	return &XIDGenerator{counter: binary.BigEndian.Uint64(seed[:])}
}

// Next returns the next XID in the sequence. Safe for concurrent use.
func (g *XIDGenerator) Next() uint32 {
	return uint32(atomic.AddUint64(&g.counter, 1))
}
