package registry

import (
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetOrCreateCreatesOnce(t *testing.T) {
	var created int64
	reg := New(func(name string) *int {
		atomic.AddInt64(&created, 1)
		v := 0
		return &v
	})

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			reg.GetOrCreate("q")
		}()
	}
	wg.Wait()

	assert.EqualValues(t, 1, created)
	assert.Equal(t, 1, reg.Len())
}

func TestLookupAbsent(t *testing.T) {
	reg := New(func(name string) int { return 0 })
	_, ok := reg.Lookup("missing")
	assert.False(t, ok)
}

func TestGetOrCreateDistinctNames(t *testing.T) {
	reg := New(func(name string) string { return name })
	a := reg.GetOrCreate("a")
	b := reg.GetOrCreate("b")
	require.Equal(t, "a", a)
	require.Equal(t, "b", b)
	assert.Equal(t, 2, reg.Len())
}
