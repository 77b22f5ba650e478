package relay

import (
	"sync"

	"ipfix-enricher/internal/metrics"
)

// Buffer is the bounded FIFO between the receive loop and the sender. When
// full it rejects the packet and counts the drop instead of blocking the
// producer. Enqueues pulse a one-slot notify channel so the sender can wait
// on data instead of polling.
type Buffer struct {
	mu      sync.Mutex
	queue   [][]byte
	limit   int
	dropped int64

	notify chan struct{}
}

func NewBuffer(capacity int) *Buffer {
	return &Buffer{
		queue:  make([][]byte, 0, capacity),
		limit:  capacity,
		notify: make(chan struct{}, 1),
	}
}

// Put appends a packet at the tail. A full buffer drops the packet, counts
// it and returns false.
func (b *Buffer) Put(pkt []byte) bool {
	b.mu.Lock()
	if len(b.queue) >= b.limit {
		b.dropped++
		b.mu.Unlock()
		metrics.BufferDropped.Inc()
		return false
	}
	b.queue = append(b.queue, pkt)
	b.mu.Unlock()

	select {
	case b.notify <- struct{}{}:
	default:
	}
	return true
}

// GetBatch removes and returns up to max packets from the head. It never
// blocks; an empty buffer returns nil.
func (b *Buffer) GetBatch(max int) [][]byte {
	b.mu.Lock()
	defer b.mu.Unlock()

	n := len(b.queue)
	if n == 0 {
		return nil
	}
	if n > max {
		n = max
	}

	batch := make([][]byte, n)
	copy(batch, b.queue[:n])

	remaining := copy(b.queue, b.queue[n:])
	for i := remaining; i < len(b.queue); i++ {
		b.queue[i] = nil
	}
	b.queue = b.queue[:remaining]
	return batch
}

// Len reports current occupancy. Advisory only: the value can be stale the
// moment it returns.
func (b *Buffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.queue)
}

// Dropped returns the total number of packets rejected on a full buffer.
func (b *Buffer) Dropped() int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.dropped
}

// Notify returns the channel pulsed after every successful Put.
func (b *Buffer) Notify() <-chan struct{} {
	return b.notify
}
