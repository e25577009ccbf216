package utils

import (
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWorkerPool_RunsAllTasks(t *testing.T) {
	pool := NewWorkerPool(4)

	var counter int64
	for i := 0; i < 100; i++ {
		pool.Submit(func() {
			atomic.AddInt64(&counter, 1)
		})
	}
	pool.Shutdown()

	assert.Equal(t, int64(100), counter)
}

func TestWorkerPool_ClampsWorkerCount(t *testing.T) {
	pool := NewWorkerPool(0)

	done := false
	pool.Submit(func() { done = true })
	pool.Shutdown()

	assert.True(t, done)
}
