package reactor

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"slabq/pkg/mqueue"
)

func newTestDispatcher() *Dispatcher {
	return NewDispatcher(mqueue.NewEngine(mqueue.Config{BlockSize: 4096}))
}

func newTestConn() *Conn {
	return NewConn(1, 4096, 64, 1<<20)
}

// S1 driven entirely through the wire protocol.
func TestConnFeedFIFOScenario(t *testing.T) {
	c := newTestConn()
	d := newTestDispatcher()

	ok := c.Feed([]byte("QUEUE_RPUSH q 1\na"), d)
	require.True(t, ok)
	ok = c.Feed([]byte("QUEUE_RPUSH q 1\nb"), d)
	require.True(t, ok)
	ok = c.Feed([]byte("QUEUE_LPOP q\nQUEUE_LPOP q\nQUEUE_LPOP q\n"), d)
	require.True(t, ok)

	resp := string(c.PendingResponse())
	assert.Equal(t, "OK\nOK\n1\na\n1\nb\nEMPTY\n", resp)
}

func TestConnFeedCommandSplitAcrossReads(t *testing.T) {
	c := newTestConn()
	d := newTestDispatcher()

	require.True(t, c.Feed([]byte("QUEUE_COU"), d))
	assert.Empty(t, c.PendingResponse())
	require.True(t, c.Feed([]byte("NT q\n"), d))
	assert.Equal(t, "0\n", string(c.PendingResponse()))
}

func TestConnFeedBigDataAcrossMultipleReads(t *testing.T) {
	c := newTestConn()
	d := newTestDispatcher()

	require.True(t, c.Feed([]byte("QUEUE_RPUSH q 11\nhel"), d))
	assert.Empty(t, c.PendingResponse())
	require.True(t, c.Feed([]byte("lo wo"), d))
	assert.Empty(t, c.PendingResponse())
	require.True(t, c.Feed([]byte("rld"), d))
	assert.Equal(t, "OK\n", string(c.PendingResponse()))

	c.ResetResponse()
	require.True(t, c.Feed([]byte("QUEUE_RPOP q\n"), d))
	assert.Equal(t, "11\nhello world\n", string(c.PendingResponse()))
}

func TestConnFeedInvalidCommandCloses(t *testing.T) {
	c := newTestConn()
	d := newTestDispatcher()
	ok := c.Feed([]byte("NONSENSE\n"), d)
	assert.False(t, ok)
}

func TestConnFeedOversizeClosesConnection(t *testing.T) {
	c := NewConn(1, 4096, 8, 16)
	d := newTestDispatcher()
	ok := c.Feed([]byte("this line never ends and keeps going past the cap"), d)
	assert.False(t, ok)
}

func TestConnFeedPipelinedCommandsInOneRead(t *testing.T) {
	c := newTestConn()
	d := newTestDispatcher()
	ok := c.Feed([]byte("QUEUE_RPUSH q 1\nxQUEUE_COUNT q\nQUEUE_RPOP q\n"), d)
	require.True(t, ok)
	assert.Equal(t, "OK\n1\n1\nx\n", string(c.PendingResponse()))
}
