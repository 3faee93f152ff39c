package baseline

import (
	"encoding/json"
	"testing"
	"time"
)

func TestComputeBaseline(t *testing.T) {
	values := []float64{10, 12, 11, 13, 9, 11, 12, 10, 11, 11}
	b, ok := Compute("web-01", "cpu.total", values, 7*24*time.Hour)
	if !ok {
		t.Fatal("Compute() ok = false, want true")
	}

	if b.ServerAlias != "web-01" || b.MetricPath != "cpu.total" {
		t.Errorf("identity = %s/%s, want web-01/cpu.total", b.ServerAlias, b.MetricPath)
	}
	if b.SampleCount != 10 {
		t.Errorf("SampleCount = %d, want 10", b.SampleCount)
	}
	if b.Mean != 11 {
		t.Errorf("Mean = %v, want 11", b.Mean)
	}
	if b.CI95.Lower >= b.Mean || b.CI95.Upper <= b.Mean {
		t.Errorf("CI95 = %+v does not bracket the mean %v", b.CI95, b.Mean)
	}
	if b.CI99.Lower >= b.CI95.Lower || b.CI99.Upper <= b.CI95.Upper {
		t.Errorf("CI99 = %+v is not wider than CI95 = %+v", b.CI99, b.CI95)
	}
	if !b.ValidUntil.After(b.CreatedAt) {
		t.Error("ValidUntil is not after CreatedAt")
	}
}

func TestComputeBaselineSingleSample(t *testing.T) {
	b, ok := Compute("web-01", "cpu.total", []float64{42}, 0)
	if !ok {
		t.Fatal("Compute() ok = false, want true")
	}
	if b.CI95.Lower != 42 || b.CI95.Upper != 42 {
		t.Errorf("CI95 = %+v, want collapsed to [42, 42]", b.CI95)
	}
	if b.CI99.Lower != 42 || b.CI99.Upper != 42 {
		t.Errorf("CI99 = %+v, want collapsed to [42, 42]", b.CI99)
	}
}

func TestComputeBaselineEmpty(t *testing.T) {
	if _, ok := Compute("web-01", "cpu.total", nil, 0); ok {
		t.Error("Compute(nil) ok = true, want false")
	}
}

func TestCompare(t *testing.T) {
	b := Baseline{
		Mean:   50,
		StdDev: 10,
		CI95:   Interval{Lower: 45, Upper: 55},
	}

	tests := []struct {
		name       string
		current    float64
		wantStatus string
	}{
		{"at mean", 50, DeviationNormal},
		{"within one deviation", 58, DeviationNormal},
		{"within threshold", 65, DeviationWarning},
		{"beyond threshold", 85, DeviationCritical},
		{"far below", 10, DeviationCritical},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := b.Compare(tt.current, 2.0)
			if c.Status != tt.wantStatus {
				t.Errorf("Compare(%v).Status = %q, want %q (z=%v)", tt.current, c.Status, tt.wantStatus, c.ZScore)
			}
		})
	}
}

func TestCompareZeroDeviation(t *testing.T) {
	b := Baseline{Mean: 50, CI95: Interval{Lower: 50, Upper: 50}}

	c := b.Compare(50, 2.0)
	if c.Status != DeviationNormal {
		t.Errorf("Compare(mean).Status = %q, want %q", c.Status, DeviationNormal)
	}

	// A flat history has no deviation to measure against, so any value
	// reads as a zero z-score rather than an infinite one.
	c = b.Compare(60, 2.0)
	if c.Status != DeviationNormal {
		t.Errorf("Compare(off-mean).Status = %q, want %q", c.Status, DeviationNormal)
	}
	if c.ZScore != 0 {
		t.Errorf("ZScore = %v, want 0", c.ZScore)
	}
	if _, err := json.Marshal(c); err != nil {
		t.Errorf("Marshal(Comparison) error = %v, want serializable result", err)
	}
}

func TestComparePercentChange(t *testing.T) {
	b := Baseline{Mean: 50, StdDev: 10, CI95: Interval{Lower: 45, Upper: 55}}
	c := b.Compare(60, 2.0)
	if c.PercentChange != 20 {
		t.Errorf("PercentChange = %v, want 20", c.PercentChange)
	}
	if c.WithinCI95 {
		t.Error("WithinCI95 = true for a value outside the interval")
	}
}
