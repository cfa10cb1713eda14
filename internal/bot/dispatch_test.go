package bot

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestDispatcherPreservesPerUserOrder(t *testing.T) {
	d := newDispatcher(zap.NewNop())

	var mu sync.Mutex
	var got []int
	done := make(chan struct{})

	// The first job stalls like a slow photo download; later jobs for
	// the same user must still run after it.
	d.enqueue(1, func() {
		time.Sleep(50 * time.Millisecond)
		mu.Lock()
		got = append(got, 1)
		mu.Unlock()
	})
	for i := 2; i <= 5; i++ {
		i := i
		last := i == 5
		d.enqueue(1, func() {
			mu.Lock()
			got = append(got, i)
			mu.Unlock()
			if last {
				close(done)
			}
		})
	}

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for jobs")
	}

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []int{1, 2, 3, 4, 5}, got)
}

func TestDispatcherUsersDoNotBlockEachOther(t *testing.T) {
	d := newDispatcher(zap.NewNop())

	release := make(chan struct{})
	other := make(chan struct{})

	d.enqueue(1, func() { <-release })
	d.enqueue(2, func() { close(other) })

	select {
	case <-other:
	case <-time.After(2 * time.Second):
		t.Fatal("second user's job stuck behind first user's")
	}
	close(release)
}

func TestDispatcherRecoversPanic(t *testing.T) {
	d := newDispatcher(zap.NewNop())

	done := make(chan struct{})
	d.enqueue(1, func() { panic("boom") })
	d.enqueue(1, func() { close(done) })

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("worker died with the panicking job")
	}
}

func TestDispatcherWorkerExitsWhenIdle(t *testing.T) {
	d := newDispatcher(zap.NewNop())

	d.enqueue(1, func() {})

	require.Eventually(t, func() bool { return d.active() == 0 },
		2*time.Second, 10*time.Millisecond)
}
