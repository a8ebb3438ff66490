package geofence

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCompletionLatch_FiresOnCountExhaustion(t *testing.T) {
	var fires int32
	var timedOut atomic.Bool

	latch := newCompletionLatch(3, time.Second, func(to bool) {
		atomic.AddInt32(&fires, 1)
		timedOut.Store(to)
	})

	latch.Arrive()
	latch.Arrive()
	assert.Equal(t, int32(0), atomic.LoadInt32(&fires))

	latch.Arrive()
	assert.Equal(t, int32(1), atomic.LoadInt32(&fires))
	assert.False(t, timedOut.Load())
}

func TestCompletionLatch_FiresOnTimeout(t *testing.T) {
	var fires int32
	done := make(chan bool, 1)

	latch := newCompletionLatch(2, 20*time.Millisecond, func(to bool) {
		atomic.AddInt32(&fires, 1)
		done <- to
	})

	latch.Arrive() // one response, the other never arrives

	select {
	case timedOut := <-done:
		assert.True(t, timedOut)
	case <-time.After(time.Second):
		t.Fatal("latch did not fire on timeout")
	}
	assert.Equal(t, int32(1), atomic.LoadInt32(&fires))
}

func TestCompletionLatch_LateArrivalsIgnored(t *testing.T) {
	var fires int32

	latch := newCompletionLatch(1, 20*time.Millisecond, func(bool) {
		atomic.AddInt32(&fires, 1)
	})

	latch.Arrive()
	latch.Arrive() // spurious duplicate
	time.Sleep(50 * time.Millisecond)

	assert.Equal(t, int32(1), atomic.LoadInt32(&fires))
}

func TestCompletionLatch_TimeoutThenArrivalsIgnored(t *testing.T) {
	var fires int32

	latch := newCompletionLatch(2, 10*time.Millisecond, func(bool) {
		atomic.AddInt32(&fires, 1)
	})

	time.Sleep(30 * time.Millisecond)
	latch.Arrive()
	latch.Arrive()

	assert.Equal(t, int32(1), atomic.LoadInt32(&fires))
}

func TestCompletionLatch_ZeroCountFiresImmediately(t *testing.T) {
	var fires int32
	newCompletionLatch(0, time.Second, func(timedOut bool) {
		atomic.AddInt32(&fires, 1)
		assert.False(t, timedOut)
	})
	assert.Equal(t, int32(1), atomic.LoadInt32(&fires))
}

func TestCompletionLatch_CancelSuppressesFire(t *testing.T) {
	var fires int32

	latch := newCompletionLatch(1, 10*time.Millisecond, func(bool) {
		atomic.AddInt32(&fires, 1)
	})
	latch.Cancel()

	time.Sleep(30 * time.Millisecond)
	latch.Arrive()

	assert.Equal(t, int32(0), atomic.LoadInt32(&fires))
}

func TestCompletionLatch_ConcurrentArrivalsFireOnce(t *testing.T) {
	var fires int32

	latch := newCompletionLatch(50, time.Second, func(bool) {
		atomic.AddInt32(&fires, 1)
	})

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			latch.Arrive()
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), atomic.LoadInt32(&fires))
}
