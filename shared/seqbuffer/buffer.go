package seqbuffer

import (
	"fmt"
	"sync"
)

// SeqData is one integer of the global result together with its sequence index
type SeqData struct {
	Seq   int
	Value int64
}

// FromRun splits a contiguous run of values starting at seq into SeqData items
func FromRun(seq int, values []int64) []SeqData {
	items := make([]SeqData, len(values))
	for i, v := range values {
		items[i] = SeqData{Seq: seq + i, Value: v}
	}
	return items
}

// Buffer is a fixed-capacity FIFO of SeqData written by many producers and drained
// by a single consumer. Batches are admitted whole or not at all.
type Buffer struct {
	mutex    sync.Mutex
	items    []SeqData
	capacity int
	ready    chan struct{}
}

// NewBuffer creates a buffer holding at most capacity items
func NewBuffer(capacity int) (*Buffer, error) {
	if capacity <= 0 {
		return nil, fmt.Errorf("buffer capacity must be positive, got %d", capacity)
	}
	return &Buffer{
		items:    make([]SeqData, 0, capacity),
		capacity: capacity,
		ready:    make(chan struct{}, 1),
	}, nil
}

// TryEnqueueBatch admits the whole batch if it fits, otherwise leaves the buffer
// untouched and returns false. The caller owns telling the sender about a discard.
func (b *Buffer) TryEnqueueBatch(items []SeqData) bool {
	b.mutex.Lock()
	if len(b.items)+len(items) > b.capacity {
		b.mutex.Unlock()
		return false
	}
	b.items = append(b.items, items...)
	b.mutex.Unlock()

	// Wake the consumer; a pending signal already covers this batch
	select {
	case b.ready <- struct{}{}:
	default:
	}
	return true
}

// DequeueAll drains every item currently present in FIFO order. Never blocks.
func (b *Buffer) DequeueAll() []SeqData {
	b.mutex.Lock()
	defer b.mutex.Unlock()

	if len(b.items) == 0 {
		return nil
	}
	drained := b.items
	b.items = make([]SeqData, 0, b.capacity)
	return drained
}

// Ready is signalled after a batch is admitted
func (b *Buffer) Ready() <-chan struct{} {
	return b.ready
}

// Len returns the number of buffered items
func (b *Buffer) Len() int {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	return len(b.items)
}

// Capacity returns the maximum number of buffered items
func (b *Buffer) Capacity() int {
	return b.capacity
}

// Fits reports whether n more items would currently be admitted
func (b *Buffer) Fits(n int) bool {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	return len(b.items)+n <= b.capacity
}
