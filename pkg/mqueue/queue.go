// Package mqueue implements the named-queue storage engine: a slab
// allocator of large blocks carved into per-item payload records, backed
// by a shared free-block recycling pool, under concurrent push/pop.
package mqueue

import (
	"errors"
	"sync"

	"slabq/pkg/metrics"
	"slabq/pkg/registry"
)

// ErrOutOfMemory surfaces a pool or system allocator failure. It is never
// returned after a partial mutation: every push path that can fail checks
// block availability before touching the queue's item list.
var ErrOutOfMemory = errors.New("mqueue: out of memory")

// Config holds the sizing knobs for the storage engine.
type Config struct {
	// BlockSize is the fixed size of each slab block. Default 8 MiB.
	BlockSize int
	// QueuePoolSize is not read by the engine: item records come from a
	// per-queue sync.Pool (see Queue.itemPool), and queues own no
	// pool.Pool. Default 1 MiB.
	QueuePoolSize int
	// FreeBlockPoolCap bounds the shared free-block pool. Default 8.
	FreeBlockPoolCap int
	// InitialBlockCount is the number of blocks a newly created queue
	// pre-allocates into the shared free-block pool before it ever
	// receives a push, so the first few pushes after creation don't pay
	// the allocation cost. Default 0 (purely lazy allocation).
	InitialBlockCount int
}

func (c Config) withDefaults() Config {
	if c.BlockSize <= 0 {
		c.BlockSize = 8 * 1024 * 1024
	}
	if c.QueuePoolSize <= 0 {
		c.QueuePoolSize = 1024 * 1024
	}
	if c.FreeBlockPoolCap <= 0 {
		c.FreeBlockPoolCap = 8
	}
	return c
}

// Queue is a named FIFO of opaque byte payloads with dual-end push/pop.
// Every mutation holds qlock. When both locks are held, qlock is taken
// first and the free-block pool's lock second, never the reverse.
type Queue struct {
	name string
	cfg  Config
	fp   *freeBlockPool

	qlock sync.Mutex
	head  *item
	tail  *item
	count int

	blockHead *block // head of this queue's owned block list
	blockTail *block // current tail block, receives new pushes
	numBlocks int

	itemPool sync.Pool
}

func newQueue(name string, cfg Config, fp *freeBlockPool) *Queue {
	q := &Queue{name: name, cfg: cfg, fp: fp}
	q.itemPool.New = func() any { return &item{} }

	for i := 0; i < cfg.InitialBlockCount; i++ {
		b := newBlock(cfg.BlockSize)
		metrics.BlockAllocsTotal.Inc()
		fp.put(b)
	}
	return q
}

func (q *Queue) getItem() *item {
	it := q.itemPool.Get().(*item)
	it.reset()
	return it
}

func (q *Queue) putItem(it *item) {
	it.reset()
	q.itemPool.Put(it)
}

// ensureTailBlock returns the current tail block, obtaining one from the
// free-block pool or allocating fresh if none exists or the existing tail
// lacks room for need bytes.
func (q *Queue) ensureTailBlock(need int) (*block, error) {
	if q.blockTail != nil && q.blockTail.remaining() >= need {
		return q.blockTail, nil
	}
	if need > q.cfg.BlockSize {
		// A payload larger than one block can never fit; nothing smaller
		// than a dedicated block would hold it, so fail rather than loop.
		return nil, ErrOutOfMemory
	}

	b := q.fp.get()
	if b == nil {
		b = newBlock(q.cfg.BlockSize)
		metrics.BlockAllocsTotal.Inc()
	} else {
		metrics.BlockRecyclesTotal.Inc()
	}

	b.prev = q.blockTail
	if q.blockTail != nil {
		q.blockTail.next = b
	}
	if q.blockHead == nil {
		q.blockHead = b
	}
	q.blockTail = b
	q.numBlocks++
	return b, nil
}

// push appends (right=true → rpush) or prepends (right=false → lpush) one
// payload. The payload is copied; callers may reuse their buffer
// afterwards.
func (q *Queue) push(payload []byte, right bool) error {
	q.qlock.Lock()
	defer q.qlock.Unlock()

	b, err := q.ensureTailBlock(len(payload))
	if err != nil {
		return err
	}

	off := b.put(payload)
	it := q.getItem()
	it.offset = off
	it.size = len(payload)
	it.owner = b

	if q.head == nil {
		q.head = it
		q.tail = it
	} else if right {
		it.prev = q.tail
		q.tail.next = it
		q.tail = it
	} else {
		it.next = q.head
		q.head.prev = it
		q.head = it
	}
	q.count++
	metrics.QueueDepth.WithLabelValues(q.name).Set(float64(q.count))
	return nil
}

// pop removes and returns the left-most (right=false) or right-most
// (right=true) item's payload. ok is false on an empty queue.
func (q *Queue) pop(right bool) (payload []byte, ok bool) {
	q.qlock.Lock()
	defer q.qlock.Unlock()

	if q.head == nil {
		return nil, false
	}

	var it *item
	if right {
		it = q.tail
		q.tail = it.prev
		if q.tail != nil {
			q.tail.next = nil
		} else {
			q.head = nil
		}
	} else {
		it = q.head
		q.head = it.next
		if q.head != nil {
			q.head.prev = nil
		} else {
			q.tail = nil
		}
	}
	q.count--
	metrics.QueueDepth.WithLabelValues(q.name).Set(float64(q.count))

	out := make([]byte, it.size)
	copy(out, it.payload())

	q.releaseBlockRef(it.owner)
	q.putItem(it)
	return out, true
}

// releaseBlockRef decrements the owning block's live count and, once it
// reaches zero, either recycles the block in place (if it is still the
// queue's tail block) or unlinks it and hands it to the shared free-block
// pool.
func (q *Queue) releaseBlockRef(b *block) {
	b.nelt--
	if b.nelt > 0 {
		return
	}

	if b == q.blockTail {
		b.reset()
		metrics.BlockRecyclesTotal.Inc()
		return
	}

	if b.prev != nil {
		b.prev.next = b.next
	} else {
		q.blockHead = b.next
	}
	if b.next != nil {
		b.next.prev = b.prev
	}
	q.numBlocks--

	b.reset()
	b.prev = nil
	b.next = nil
	q.fp.put(b)
}

// Count returns the current element count.
func (q *Queue) Count() int {
	q.qlock.Lock()
	defer q.qlock.Unlock()
	return q.count
}

// Engine exposes the storage engine's five public operations,
// auto-creating queues on push and treating pops/counts against unknown
// names as EMPTY/0. It owns the one shared free-block pool and the
// name→queue registry.
type Engine struct {
	cfg Config
	fp  *freeBlockPool
	reg *registry.Registry[*Queue]
}

// NewEngine constructs the storage engine with the given sizing
// configuration.
func NewEngine(cfg Config) *Engine {
	cfg = cfg.withDefaults()
	fp := newFreeBlockPool(cfg.FreeBlockPoolCap)
	e := &Engine{cfg: cfg, fp: fp}
	e.reg = registry.New(func(name string) *Queue {
		return newQueue(name, cfg, fp)
	})
	return e
}

// RPush appends payload to the tail of the named queue, creating it if
// absent.
func (e *Engine) RPush(name string, payload []byte) error {
	q := e.reg.GetOrCreate(name)
	err := q.push(payload, true)
	e.sampleGauges()
	return err
}

// LPush prepends payload to the head of the named queue, creating it if
// absent.
func (e *Engine) LPush(name string, payload []byte) error {
	q := e.reg.GetOrCreate(name)
	err := q.push(payload, false)
	e.sampleGauges()
	return err
}

// RPop removes and returns the tail element of the named queue. ok is
// false if the queue is empty or absent.
func (e *Engine) RPop(name string) ([]byte, bool) {
	q, ok := e.reg.Lookup(name)
	if !ok {
		return nil, false
	}
	v, ok := q.pop(true)
	e.sampleGauges()
	return v, ok
}

// LPop removes and returns the head element of the named queue. ok is
// false if the queue is empty or absent.
func (e *Engine) LPop(name string) ([]byte, bool) {
	q, ok := e.reg.Lookup(name)
	if !ok {
		return nil, false
	}
	v, ok := q.pop(false)
	e.sampleGauges()
	return v, ok
}

// sampleGauges refreshes the process-wide occupancy gauges after a
// mutation. Both reads are cheap lock/unlock cycles, so sampling on every
// push/pop keeps the exported values current without a background ticker.
func (e *Engine) sampleGauges() {
	metrics.FreePoolSize.Set(float64(e.fp.len()))
	metrics.QueueCount.Set(float64(e.reg.Len()))
}

// Count returns the current length of the named queue, 0 if absent.
func (e *Engine) Count(name string) int {
	q, ok := e.reg.Lookup(name)
	if !ok {
		return 0
	}
	return q.Count()
}

// FreePoolLen reports the shared free-block pool's current occupancy, for
// metrics and tests.
func (e *Engine) FreePoolLen() int { return e.fp.len() }

// QueueCount reports how many distinct queues have been created, for
// metrics.
func (e *Engine) QueueCount() int { return e.reg.Len() }
