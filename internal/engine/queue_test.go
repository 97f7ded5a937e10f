package engine

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestOpQueue_FIFO(t *testing.T) {
	q := newOpQueue()

	for _, kind := range []OpKind{OpRegister, OpSendMessage, OpGetMessage} {
		ok := q.Enqueue(submission{op: Op{Kind: kind}})
		assert.True(t, ok)
	}
	assert.Equal(t, 3, q.Len())

	first, ok := q.TryDequeue()
	assert.True(t, ok)
	assert.Equal(t, OpRegister, first.op.Kind)

	second, ok := q.TryDequeue()
	assert.True(t, ok)
	assert.Equal(t, OpSendMessage, second.op.Kind)

	third, ok := q.TryDequeue()
	assert.True(t, ok)
	assert.Equal(t, OpGetMessage, third.op.Kind)

	_, ok = q.TryDequeue()
	assert.False(t, ok)
}

func TestOpQueue_EnqueueAfterClose(t *testing.T) {
	q := newOpQueue()
	q.Close()

	ok := q.Enqueue(submission{op: Op{Kind: OpRegister}})
	assert.False(t, ok)
	assert.True(t, q.Closed())
}

func TestOpQueue_CloseIsIdempotent(t *testing.T) {
	q := newOpQueue()
	q.Close()
	q.Close() // must not panic on double close
}

func TestOpQueue_SignalCoalesces(t *testing.T) {
	q := newOpQueue()

	q.Enqueue(submission{op: Op{Kind: OpRegister}})
	q.Enqueue(submission{op: Op{Kind: OpSendMessage}})

	// One signal may cover both enqueues; draining must still find both.
	<-q.Wait()
	var drained int
	for {
		if _, ok := q.TryDequeue(); !ok {
			break
		}
		drained++
	}
	assert.Equal(t, 2, drained)
}

func TestOpQueue_ConcurrentEnqueue(t *testing.T) {
	q := newOpQueue()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			q.Enqueue(submission{op: Op{Kind: OpMessageCount}})
		}()
	}
	wg.Wait()

	assert.Equal(t, 50, q.Len())
}

func TestOpQueue_DequeueableAfterClose(t *testing.T) {
	q := newOpQueue()
	q.Enqueue(submission{op: Op{Kind: OpRegister}})
	q.Close()

	// Pending work remains drainable so shutdown can reject it cleanly.
	_, ok := q.TryDequeue()
	assert.True(t, ok)
}
