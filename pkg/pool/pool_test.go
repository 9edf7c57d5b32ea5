package pool

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAllocWithinRegion(t *testing.T) {
	p := New(64)
	a, err := p.Alloc(16)
	require.NoError(t, err)
	require.Len(t, a, 16)
	assert.Equal(t, 1, p.Size())

	b, err := p.Alloc(16)
	require.NoError(t, err)
	require.Len(t, b, 16)
	assert.Equal(t, 1, p.Size(), "second allocation should reuse the same region")
}

func TestAllocGrowsChain(t *testing.T) {
	p := New(32)
	_, err := p.Alloc(24)
	require.NoError(t, err)
	assert.Equal(t, 1, p.Size())

	_, err = p.Alloc(24)
	require.NoError(t, err)
	assert.Equal(t, 2, p.Size(), "allocation that doesn't fit the current region chains a new one")
}

func TestCallocZeroes(t *testing.T) {
	p := New(64)
	a, err := p.Alloc(32)
	require.NoError(t, err)
	for i := range a {
		a[i] = 0xFF
	}

	b, err := p.Calloc(32)
	require.NoError(t, err)
	for _, v := range b {
		assert.Equal(t, byte(0), v)
	}
}

func TestDestroyRejectsFurtherAlloc(t *testing.T) {
	p := New(64)
	p.Destroy()
	_, err := p.Alloc(8)
	assert.ErrorIs(t, err, ErrOutOfPool)
}

func TestAllocOversizeGrowsBeyondMaxSize(t *testing.T) {
	p := New(8)
	big, err := p.Alloc(1024)
	require.NoError(t, err)
	assert.Len(t, big, 1024)
}

func TestConcurrentAlloc(t *testing.T) {
	p := New(4096)
	done := make(chan struct{})
	for i := 0; i < 16; i++ {
		go func() {
			defer func() { done <- struct{}{} }()
			for j := 0; j < 100; j++ {
				_, err := p.Alloc(32)
				assert.NoError(t, err)
			}
		}()
	}
	for i := 0; i < 16; i++ {
		<-done
	}
}
