package reactor

import (
	"github.com/valyala/bytebufferpool"

	"slabq/pkg/pool"
	"slabq/pkg/protocol"
)

// connState implements the per-connection state machine:
//
//	NEW → ADOPTED → (READING ⇄ PARSING ⇄ STREAMING_BIG) → CLOSED
type connState int

const (
	stateNew connState = iota
	stateAdopted
	stateReading
	stateStreamingBig
	stateClosed
)

// Conn is the per-connection workspace: an arena pool plus socket
// descriptor, growable receive buffer, parse cursor, pending response
// buffer, and big-data-mode bookkeeping. Its Feed method is the pure
// protocol/state-machine core; Worker supplies the raw socket I/O around
// it.
type Conn struct {
	FD   int
	pool *pool.Pool

	rbuf    []byte // unconsumed bytes only; Feed compacts after each drain
	rbufMax int

	bigData      bool
	bigVerb      protocol.Verb
	bigName      string
	bigBuf       []byte
	bigWritten   int
	bigRemaining int

	out   bytebufferpool.ByteBuffer
	state connState
}

// NewConn allocates a connection workspace backed by its own arena pool
// of workspacePoolSize-byte regions (the acceptor passes the queue
// pool_size setting).
func NewConn(fd int, workspacePoolSize, rbufInit, rbufMax int) *Conn {
	p := pool.New(workspacePoolSize)
	rbuf, _ := p.Alloc(rbufInit)
	return &Conn{
		FD:      fd,
		pool:    p,
		rbuf:    rbuf[:0],
		rbufMax: rbufMax,
		state:   stateAdopted,
	}
}

// growBuffer ensures the unconsumed buffer has room for at least extra
// more bytes, growing the backing array from the connection's pool up to
// rbufMax. It returns false if growth would exceed that cap.
func (c *Conn) growBuffer(extra int) bool {
	need := len(c.rbuf) + extra
	if need <= cap(c.rbuf) {
		return true
	}
	if need > c.rbufMax {
		return false
	}
	newCap := cap(c.rbuf) * 2
	if newCap < need {
		newCap = need
	}
	if newCap > c.rbufMax {
		newCap = c.rbufMax
	}
	fresh, err := c.pool.Alloc(newCap)
	if err != nil {
		return false
	}
	n := copy(fresh, c.rbuf)
	c.rbuf = fresh[:n]
	return true
}

// Feed appends newly read bytes to the connection's buffer and drains as
// many complete commands as possible, dispatching each through disp and
// accumulating response bytes in c.out. It returns false when the
// connection must be closed: a ProtocolViolation (buffer full without a
// parseable command) or an explicit Invalid parse.
func (c *Conn) Feed(data []byte, disp *Dispatcher) bool {
	if !c.growBuffer(len(data)) {
		c.state = stateClosed
		return false
	}
	c.rbuf = append(c.rbuf, data...)
	c.state = stateReading

	pos := 0
	for {
		if c.bigData {
			avail := len(c.rbuf) - pos
			take := c.bigRemaining
			if avail < take {
				take = avail
			}
			copy(c.bigBuf[c.bigWritten:], c.rbuf[pos:pos+take])
			c.bigWritten += take
			pos += take
			c.bigRemaining -= take

			if c.bigRemaining > 0 {
				c.state = stateStreamingBig
				break
			}

			cmd := protocol.Command{Verb: c.bigVerb, Name: c.bigName, PayLen: len(c.bigBuf)}
			resp := disp.Execute(cmd, c.bigBuf)
			c.out.Write(resp)
			c.bigData = false
			c.bigBuf = nil
			c.bigWritten = 0
			continue
		}

		outcome, cmd, n := protocol.Parse(c.rbuf[pos:])
		switch outcome {
		case protocol.NeedMore:
			if len(c.rbuf)-pos >= c.rbufMax {
				c.state = stateClosed
				return false
			}
			goto drained

		case protocol.Invalid:
			c.state = stateClosed
			return false

		case protocol.Ready:
			pos += n
			if cmd.Verb == protocol.RPush || cmd.Verb == protocol.LPush {
				c.bigData = true
				c.bigVerb = cmd.Verb
				c.bigName = cmd.Name
				c.bigRemaining = cmd.PayLen
				c.bigWritten = 0
				buf, err := c.pool.Alloc(cmd.PayLen)
				if err != nil {
					c.state = stateClosed
					return false
				}
				c.bigBuf = buf
				continue
			}
			resp := disp.Execute(cmd, nil)
			c.out.Write(resp)
			continue
		}
	}
drained:

	// Compact: drop everything already consumed.
	remaining := len(c.rbuf) - pos
	copy(c.rbuf[:remaining], c.rbuf[pos:])
	c.rbuf = c.rbuf[:remaining]
	return true
}

// PendingResponse returns the accumulated, not-yet-flushed response bytes.
func (c *Conn) PendingResponse() []byte { return c.out.B }

// ResetResponse clears the response buffer after the worker has flushed
// it to the socket.
func (c *Conn) ResetResponse() { c.out.Reset() }

// Close releases the connection's arena; every allocation it made
// (receive buffer growths, big-data buffers) becomes invalid.
func (c *Conn) Close() {
	c.state = stateClosed
	c.pool.Destroy()
}
