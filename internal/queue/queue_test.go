package queue

import (
	"sync"
	"testing"
	"time"

	"github.com/agora-project/agorad/internal/message"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnqueueDequeueFIFO(t *testing.T) {
	q := New(4)
	require.NoError(t, q.Enqueue(message.Message{Topic: "a"}))
	require.NoError(t, q.Enqueue(message.Message{Topic: "b"}))
	m1, err := q.Dequeue()
	require.NoError(t, err)
	assert.Equal(t, "a", m1.Topic)
	m2, err := q.Dequeue()
	require.NoError(t, err)
	assert.Equal(t, "b", m2.Topic)
}

func TestDequeueBlocksUntilEnqueue(t *testing.T) {
	q := New(1)
	done := make(chan message.Message, 1)
	go func() {
		m, err := q.Dequeue()
		require.NoError(t, err)
		done <- m
	}()
	time.Sleep(20 * time.Millisecond)
	require.NoError(t, q.Enqueue(message.Message{Topic: "late"}))
	select {
	case m := <-done:
		assert.Equal(t, "late", m.Topic)
	case <-time.After(time.Second):
		t.Fatal("dequeue did not unblock")
	}
}

func TestTerminateWakesBlockedCallers(t *testing.T) {
	q := New(1)
	var wg sync.WaitGroup
	wg.Add(2)
	errs := make(chan error, 2)
	go func() { defer wg.Done(); _, err := q.Dequeue(); errs <- err }()
	go func() { defer wg.Done(); _, err := q.Dequeue(); errs <- err }()
	time.Sleep(20 * time.Millisecond)
	q.Terminate()
	q.Terminate() // idempotent
	wg.Wait()
	close(errs)
	for err := range errs {
		assert.ErrorIs(t, err, ErrTerminated)
	}
}

func TestTerminateDrainsExistingItemsFirst(t *testing.T) {
	q := New(4)
	require.NoError(t, q.Enqueue(message.Message{Topic: "keep"}))
	q.Terminate()
	m, err := q.Dequeue()
	require.NoError(t, err)
	assert.Equal(t, "keep", m.Topic)
	_, err = q.Dequeue()
	assert.ErrorIs(t, err, ErrTerminated)
}
