package shutdown

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestBeginWakesEveryHandle(t *testing.T) {
	fabric := New()
	const tasks = 8

	stopped := make(chan struct{}, tasks)
	for i := 0; i < tasks; i++ {
		handle := fabric.NewHandle()
		go func() {
			defer handle.Done()
			<-handle.Context().Done()
			stopped <- struct{}{}
		}()
	}

	fabric.Begin()
	for i := 0; i < tasks; i++ {
		select {
		case <-stopped:
		case <-time.After(time.Second):
			t.Fatal("task did not observe shutdown")
		}
	}
	fabric.Wait()
}

func TestWaitBlocksUntilEveryHandleIsDone(t *testing.T) {
	fabric := New()
	handle := fabric.NewHandle()

	done := make(chan struct{})
	go func() {
		fabric.Wait()
		close(done)
	}()

	select {
	case <-done:
		t.Fatal("Wait returned before the task drained")
	case <-time.After(50 * time.Millisecond):
	}

	handle.Done()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Wait did not return after the task drained")
	}
}

func TestDoneIsIdempotent(t *testing.T) {
	fabric := New()
	handle := fabric.NewHandle()

	handle.Done()
	handle.Done()
	handle.Done()

	fabric.Wait() // would panic or hang if Done double-counted
}

func TestShouldStopLatches(t *testing.T) {
	fabric := New()
	handle := fabric.NewHandle()
	defer handle.Done()

	require.False(t, handle.ShouldStop())
	fabric.Begin()
	require.True(t, handle.ShouldStop())
	require.True(t, handle.ShouldStop())
}

func TestBeginIsIdempotent(t *testing.T) {
	fabric := New()
	fabric.Begin()
	fabric.Begin()
	fabric.Wait()
}
