package baseline

import (
	"testing"
	"time"
)

func TestBufferEvictsOldest(t *testing.T) {
	buf := NewBuffer(3)
	for i := 1; i <= 5; i++ {
		buf.Add(Sample{Timestamp: time.Now(), Value: float64(i)})
	}

	if buf.Len() != 3 {
		t.Fatalf("Len() = %d, want 3", buf.Len())
	}
	want := []float64{3, 4, 5}
	got := buf.Values()
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Values()[%d] = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestBufferOrderPreserved(t *testing.T) {
	buf := NewBuffer(10)
	base := time.Now()
	for i := 0; i < 4; i++ {
		buf.Add(Sample{Timestamp: base.Add(time.Duration(i) * time.Minute), Value: float64(i * 10)})
	}

	samples := buf.Samples()
	for i := 1; i < len(samples); i++ {
		if samples[i].Timestamp.Before(samples[i-1].Timestamp) {
			t.Fatalf("samples out of order at %d: %v before %v", i, samples[i].Timestamp, samples[i-1].Timestamp)
		}
	}
}

func TestBufferWindow(t *testing.T) {
	buf := NewBuffer(10)
	now := time.Now()
	buf.Add(Sample{Timestamp: now.Add(-2 * time.Hour), Value: 1})
	buf.Add(Sample{Timestamp: now.Add(-30 * time.Minute), Value: 2})
	buf.Add(Sample{Timestamp: now.Add(-1 * time.Minute), Value: 3})

	got := buf.Window(time.Hour)
	if len(got) != 2 {
		t.Fatalf("Window(1h) count = %d, want 2", len(got))
	}
	if got[0].Value != 2 || got[1].Value != 3 {
		t.Errorf("Window(1h) values = [%v %v], want [2 3]", got[0].Value, got[1].Value)
	}
}

func TestBufferRestoreTrimsToCapacity(t *testing.T) {
	samples := make([]Sample, 5)
	for i := range samples {
		samples[i] = Sample{Timestamp: time.Now(), Value: float64(i)}
	}

	buf := NewBuffer(3)
	buf.Restore(samples)

	if buf.Len() != 3 {
		t.Fatalf("Len() after Restore = %d, want 3", buf.Len())
	}
	got := buf.Values()
	want := []float64{2, 3, 4}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Values()[%d] = %v, want %v", i, got[i], want[i])
		}
	}

	// An append after restore must keep evicting oldest first.
	buf.Add(Sample{Timestamp: time.Now(), Value: 99})
	got = buf.Values()
	want = []float64{3, 4, 99}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("after Add, Values()[%d] = %v, want %v", i, got[i], want[i])
		}
	}
}
