package mqueue

import (
	"sync"

	"slabq/pkg/metrics"
)

// freeBlockPool is the process-wide recycling list of empty blocks. It has
// its own mutex, acquired only while moving a block into or out of the
// pool, and is never held across a queue lock — the queue lock is always
// taken first when both are needed.
type freeBlockPool struct {
	mu    sync.Mutex
	head  *block
	count int
	cap   int
}

func newFreeBlockPool(cap int) *freeBlockPool {
	if cap <= 0 {
		cap = 8
	}
	return &freeBlockPool{cap: cap}
}

// get removes and returns a recycled block, or nil if the pool is empty.
// The returned block has nelt == 0 and curr == 0, per the pool's invariant.
func (fp *freeBlockPool) get() *block {
	fp.mu.Lock()
	defer fp.mu.Unlock()

	b := fp.head
	if b == nil {
		return nil
	}
	fp.head = b.next
	if fp.head != nil {
		fp.head.prev = nil
	}
	fp.count--
	b.prev = nil
	b.next = nil
	return b
}

// put offers a drained block (nelt == 0, curr == 0) to the pool. If the
// pool is already at its configured cap, the block is discarded — its
// buffer becomes garbage for the collector rather than being linked in.
func (fp *freeBlockPool) put(b *block) {
	fp.mu.Lock()
	defer fp.mu.Unlock()

	if fp.count >= fp.cap {
		metrics.BlockFreesTotal.Inc()
		return
	}
	b.prev = nil
	b.next = fp.head
	if fp.head != nil {
		fp.head.prev = b
	}
	fp.head = b
	fp.count++
}

// len reports the current occupancy, for metrics and tests.
func (fp *freeBlockPool) len() int {
	fp.mu.Lock()
	defer fp.mu.Unlock()
	return fp.count
}
