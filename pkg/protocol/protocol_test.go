package protocol

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseNeedMore(t *testing.T) {
	o, _, n := Parse([]byte("QUEUE_COUNT q"))
	assert.Equal(t, NeedMore, o)
	assert.Equal(t, 0, n)
}

func TestParseCount(t *testing.T) {
	o, cmd, n := Parse([]byte("QUEUE_COUNT q\n"))
	require.Equal(t, Ready, o)
	assert.Equal(t, Count, cmd.Verb)
	assert.Equal(t, "q", cmd.Name)
	assert.Equal(t, 14, n)
}

func TestParseRPushBigData(t *testing.T) {
	o, cmd, n := Parse([]byte("QUEUE_RPUSH q 5\nhello"))
	require.Equal(t, Ready, o)
	assert.Equal(t, RPush, cmd.Verb)
	assert.Equal(t, "q", cmd.Name)
	assert.Equal(t, 5, cmd.PayLen)
	assert.Equal(t, len("QUEUE_RPUSH q 5\n"), n)
}

func TestParseInvalidVerb(t *testing.T) {
	o, _, _ := Parse([]byte("BOGUS q\n"))
	assert.Equal(t, Invalid, o)
}

func TestParseInvalidMissingArgs(t *testing.T) {
	o, _, _ := Parse([]byte("QUEUE_RPOP\n"))
	assert.Equal(t, Invalid, o)
}

func TestParseInvalidPushMissingLen(t *testing.T) {
	o, _, _ := Parse([]byte("QUEUE_RPUSH q\n"))
	assert.Equal(t, Invalid, o)
}

func TestEncodePayload(t *testing.T) {
	got := EncodePayload([]byte("hi"))
	assert.Equal(t, "2\nhi\n", string(got))
}

func TestEncodeCount(t *testing.T) {
	assert.Equal(t, "42\n", string(EncodeCount(42)))
}
