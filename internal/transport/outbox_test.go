package transport

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOutbox_EnqueueAndRun(t *testing.T) {
	o := newOutbox(4)
	var mu sync.Mutex
	var written [][]byte
	done := make(chan struct{})

	go func() {
		o.run(func(b []byte) error {
			mu.Lock()
			written = append(written, b)
			n := len(written)
			mu.Unlock()
			if n == 2 {
				close(done)
			}
			return nil
		}, func(error) {}, nil)
	}()

	assert.True(t, o.enqueue("c", []byte("one")))
	assert.True(t, o.enqueue("c", []byte("two")))

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("writer did not drain the queue")
	}
	o.close()

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, [][]byte{[]byte("one"), []byte("two")}, written)
}

func TestOutbox_FullQueueDrops(t *testing.T) {
	o := newOutbox(1)
	assert.True(t, o.enqueue("c", []byte("one")))
	assert.False(t, o.enqueue("c", []byte("two")))
	assert.True(t, o.isOpen())
}

func TestOutbox_ClosedRejects(t *testing.T) {
	o := newOutbox(1)
	assert.True(t, o.close())
	assert.False(t, o.close())
	assert.False(t, o.isOpen())
	assert.False(t, o.enqueue("c", []byte("one")))
}

func TestOutbox_WriteErrorStops(t *testing.T) {
	o := newOutbox(2)
	errCh := make(chan error, 1)
	wantErr := errors.New("boom")

	closed := make(chan struct{}, 1)
	go o.run(func([]byte) error { return wantErr }, func(err error) { errCh <- err }, func() { closed <- struct{}{} })
	require.True(t, o.enqueue("c", []byte("x")))

	select {
	case err := <-errCh:
		assert.Equal(t, wantErr, err)
	case <-time.After(time.Second):
		t.Fatal("onError not called")
	}
	assert.False(t, o.isOpen())
	assert.Empty(t, closed)
}

func TestOutbox_CloseDoesNotWaitForStuckWrite(t *testing.T) {
	o := newOutbox(2)
	release := make(chan struct{})
	writing := make(chan struct{})
	closed := make(chan struct{})

	go o.run(func([]byte) error {
		close(writing)
		<-release
		return nil
	}, func(error) {}, func() { close(closed) })
	require.True(t, o.enqueue("c", []byte("x")))
	<-writing

	start := time.Now()
	assert.True(t, o.close())
	assert.Less(t, time.Since(start), 100*time.Millisecond)

	select {
	case <-closed:
		t.Fatal("onClose ran while a write was in flight")
	case <-time.After(20 * time.Millisecond):
	}

	close(release)
	select {
	case <-closed:
	case <-time.After(time.Second):
		t.Fatal("onClose not called after the write finished")
	}
}

func TestOptions_WithDefaults(t *testing.T) {
	o := Options{}.WithDefaults()
	assert.Equal(t, DefaultWriteTimeout, o.WriteTimeout)
	assert.Equal(t, DefaultSendQueue, o.SendQueue)
	assert.Equal(t, int64(DefaultMaxMessageBytes), o.MaxMessageBytes)

	custom := Options{WriteTimeout: time.Second * 5, SendQueue: 3, MaxMessageBytes: 10}.WithDefaults()
	assert.Equal(t, 3, custom.SendQueue)
	assert.Equal(t, int64(10), custom.MaxMessageBytes)
}
