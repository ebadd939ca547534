package v4

import (
	"context"
	"fmt"
	"sync"
)

// slot is one entry in the session's slot table: its own monotonic
// sequence id, incremented on every reserve (RFC 8881 Section 2.10.6.1).
type slot struct {
	id         uint32
	sequenceID uint32
}

// slotTable implements the v4.1 session's fixed-width slot table. A call
// reserves a free slot (blocking if every slot is busy), increments that
// slot's sequence id, and releases it back to the pool when the COMPOUND
// completes, successfully or not. A NFS4ERR_BADSLOT/NFS4ERR_BAD_SEQID
// reply additionally invalidates the whole session per spec (the caller
// must re-run Connect to rebuild it).
type slotTable struct {
	mu    sync.Mutex
	cond  *sync.Cond
	slots []*slot
	free  []bool
}

func newSlotTable(width uint32) *slotTable {
	t := &slotTable{
		slots: make([]*slot, width),
		free:  make([]bool, width),
	}
	for i := range t.slots {
		t.slots[i] = &slot{id: uint32(i)}
		t.free[i] = true
	}
	t.cond = sync.NewCond(&t.mu)
	return t
}

// highestSlot reports the table's highest valid slot id, as required by
// sa_highest_slotid on every SEQUENCE.
func (t *slotTable) highestSlot() uint32 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return uint32(len(t.slots)) - 1
}

// reserve blocks until a free slot is available (or ctx is done), marks it
// busy, increments its sequence id, and returns the reservation. acquire is
// atomic with respect to other reserve/release calls per spec.
func (t *slotTable) reserve(ctx context.Context) (*slot, error) {
	done := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			t.mu.Lock()
			t.cond.Broadcast()
			t.mu.Unlock()
		case <-done:
		}
	}()
	defer close(done)

	t.mu.Lock()
	defer t.mu.Unlock()
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		for i, free := range t.free {
			if free {
				t.free[i] = false
				t.slots[i].sequenceID++
				return t.slots[i], nil
			}
		}
		t.cond.Wait()
	}
}

func (t *slotTable) release(s *slot) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.free[s.id] = true
	t.cond.Broadcast()
}

// Session holds the negotiated v4.1 session state: the session id, the
// client id, and the fore-channel slot table. One Session backs one
// connected Client; a NFS4ERR_BADSLOT/BAD_SEQID reply invalidates it.
type Session struct {
	ClientID  uint64
	ID        SessionID
	slots     *slotTable
}

func (s *Session) String() string {
	return fmt.Sprintf("Session{clientid=%d, sessionid=%x}", s.ClientID, s.ID)
}
