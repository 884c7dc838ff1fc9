package workerpool_test

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/cuemby/fabric/pkg/workerpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSubmitRunsJobs(t *testing.T) {
	pool := workerpool.New(4, 16)
	defer pool.Stop()

	var counter int64
	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		pool.Submit(func() {
			defer wg.Done()
			atomic.AddInt64(&counter, 1)
		})
	}
	wg.Wait()

	assert.Equal(t, int64(100), atomic.LoadInt64(&counter))
}

func TestTrySubmitFailsWhenQueueFull(t *testing.T) {
	pool := workerpool.New(1, 1)
	defer pool.Stop()

	block := make(chan struct{})
	started := make(chan struct{})
	require.True(t, pool.TrySubmit(func() {
		close(started)
		<-block
	}))
	<-started // the single worker is now busy draining the first job

	require.True(t, pool.TrySubmit(func() {})) // fills the depth-1 buffer
	assert.False(t, pool.TrySubmit(func() {})) // buffer full, worker busy
	close(block)
}

func TestStopWaitsForInFlightJobs(t *testing.T) {
	pool := workerpool.New(2, 4)
	var ran int32
	pool.Submit(func() {
		time.Sleep(20 * time.Millisecond)
		atomic.AddInt32(&ran, 1)
	})
	pool.Stop()
	assert.Equal(t, int32(1), atomic.LoadInt32(&ran))
}

func TestSubmitRecoversFromPanickingJob(t *testing.T) {
	pool := workerpool.New(1, 1)
	defer pool.Stop()

	done := make(chan struct{})
	pool.Submit(func() { panic("boom") })
	pool.Submit(func() { close(done) })

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("pool stopped processing jobs after a panic")
	}
}
