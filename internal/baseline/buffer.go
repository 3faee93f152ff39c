// Package baseline maintains rolling metric history per server and derives
// statistical baselines, trends, and anomaly flags from it.
package baseline

import (
	"sync"
	"time"
)

// DefaultBufferCapacity holds 24 hours of samples at a 5-minute interval.
const DefaultBufferCapacity = 288

// Sample is one observed metric value.
type Sample struct {
	Timestamp time.Time `json:"timestamp"`
	Value     float64   `json:"value"`
}

// Buffer is a fixed-capacity ring of samples. Once full, each append
// overwrites the oldest sample.
type Buffer struct {
	mu       sync.RWMutex
	samples  []Sample
	capacity int
	head     int
	size     int
}

// NewBuffer creates a buffer holding at most capacity samples.
func NewBuffer(capacity int) *Buffer {
	if capacity <= 0 {
		capacity = DefaultBufferCapacity
	}
	return &Buffer{
		samples:  make([]Sample, capacity),
		capacity: capacity,
	}
}

// Add appends a sample, evicting the oldest when full.
func (b *Buffer) Add(s Sample) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.samples[b.head] = s
	b.head = (b.head + 1) % b.capacity
	if b.size < b.capacity {
		b.size++
	}
}

// Len returns the number of stored samples.
func (b *Buffer) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.size
}

// Samples returns stored samples in insertion order, oldest first.
func (b *Buffer) Samples() []Sample {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.samplesLocked()
}

func (b *Buffer) samplesLocked() []Sample {
	out := make([]Sample, 0, b.size)
	start := b.head - b.size
	if start < 0 {
		start += b.capacity
	}
	for i := 0; i < b.size; i++ {
		out = append(out, b.samples[(start+i)%b.capacity])
	}
	return out
}

// Values returns just the sample values, oldest first.
func (b *Buffer) Values() []float64 {
	b.mu.RLock()
	defer b.mu.RUnlock()

	out := make([]float64, 0, b.size)
	for _, s := range b.samplesLocked() {
		out = append(out, s.Value)
	}
	return out
}

// Window returns the samples observed within the trailing duration d.
func (b *Buffer) Window(d time.Duration) []Sample {
	cutoff := time.Now().Add(-d)

	b.mu.RLock()
	defer b.mu.RUnlock()

	var out []Sample
	for _, s := range b.samplesLocked() {
		if s.Timestamp.After(cutoff) {
			out = append(out, s)
		}
	}
	return out
}

// Restore replaces the buffer contents with the given samples, keeping only
// the newest ones when they exceed capacity.
func (b *Buffer) Restore(samples []Sample) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if len(samples) > b.capacity {
		samples = samples[len(samples)-b.capacity:]
	}
	b.head = 0
	b.size = 0
	for _, s := range samples {
		b.samples[b.head] = s
		b.head = (b.head + 1) % b.capacity
		b.size++
	}
}
