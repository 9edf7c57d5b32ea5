package reactor

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func distinctWorkers(n int) []*Worker {
	ws := make([]*Worker, n)
	for i := range ws {
		ws[i] = &Worker{ID: i}
	}
	return ws
}

// S6 / property 10: strict round robin across successive accepts.
func TestNextWorkerRoundRobin(t *testing.T) {
	a := &Acceptor{workers: distinctWorkers(2), last: -1}
	got := make([]int, 5)
	for i := range got {
		got[i] = indexOf(a, a.nextWorker())
	}
	assert.Equal(t, []int{0, 1, 0, 1, 0}, got)
}

func TestNextWorkerEvenSplitOverManyAccepts(t *testing.T) {
	n := 3
	a := &Acceptor{workers: distinctWorkers(n), last: -1}
	counts := make([]int, n)
	const K = 100
	for i := 0; i < K; i++ {
		counts[indexOf(a, a.nextWorker())]++
	}
	lo, hi := K/n, (K+n-1)/n
	for _, c := range counts {
		assert.GreaterOrEqual(t, c, lo)
		assert.LessOrEqual(t, c, hi)
	}
}

func indexOf(a *Acceptor, w *Worker) int {
	for i, ww := range a.workers {
		if ww == w {
			return i
		}
	}
	return -1
}
