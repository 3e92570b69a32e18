package audit

import "sync"

// RingBuffer is a fixed-size circular buffer for audit events
type RingBuffer struct {
	mu       sync.RWMutex
	events   []Event
	head     int // next write position
	count    int // current number of events
	capacity int // max events
}

// NewRingBuffer creates a new ring buffer with the given capacity
func NewRingBuffer(capacity int) *RingBuffer {
	if capacity <= 0 {
		capacity = 1000
	}
	return &RingBuffer{
		events:   make([]Event, capacity),
		capacity: capacity,
	}
}

// Write adds a new event to the buffer
func (b *RingBuffer) Write(ev Event) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.events[b.head] = ev
	b.head = (b.head + 1) % b.capacity

	if b.count < b.capacity {
		b.count++
	}
}

// Read returns all events in chronological order
func (b *RingBuffer) Read() []Event {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.count == 0 {
		return nil
	}

	result := make([]Event, b.count)

	start := 0
	if b.count == b.capacity {
		start = b.head // oldest event is at head when full
	}

	for i := 0; i < b.count; i++ {
		result[i] = b.events[(start+i)%b.capacity]
	}
	return result
}

// ReadLast returns the last n events in chronological order
func (b *RingBuffer) ReadLast(n int) []Event {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.count == 0 || n <= 0 {
		return nil
	}
	if n > b.count {
		n = b.count
	}

	result := make([]Event, n)

	var start int
	if b.count == b.capacity {
		start = (b.head - n + b.capacity) % b.capacity
	} else {
		start = b.count - n
	}

	for i := 0; i < n; i++ {
		result[i] = b.events[(start+i)%b.capacity]
	}
	return result
}

// Count returns the number of stored events
func (b *RingBuffer) Count() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.count
}

// Capacity returns the buffer capacity
func (b *RingBuffer) Capacity() int {
	return b.capacity
}
