package mqueue

// block is a contiguous byte buffer carved into item payloads. A block
// belongs to exactly one queue's block list, or to the shared free-block
// pool, never both at once.
type block struct {
	buf  []byte
	curr int // offset of the next free byte
	nelt int // live items whose payload resides in this block

	prev *block
	next *block
}

func newBlock(size int) *block {
	return &block{buf: make([]byte, size)}
}

// remaining reports the number of free bytes left in the block's buffer.
func (b *block) remaining() int { return len(b.buf) - b.curr }

// put copies payload into the block's free space and returns the offset it
// was written at. Caller must have already checked remaining() >= len(payload).
func (b *block) put(payload []byte) (offset int) {
	offset = b.curr
	copy(b.buf[offset:], payload)
	b.curr += len(payload)
	b.nelt++
	return offset
}

// reset rewinds the block's cursor for in-place reuse once it holds no
// live items.
func (b *block) reset() {
	b.curr = 0
	b.nelt = 0
}
