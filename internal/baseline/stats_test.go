package baseline

import (
	"math"
	"testing"
	"time"
)

func almostEqual(a, b, eps float64) bool {
	return math.Abs(a-b) <= eps
}

func TestSummarize(t *testing.T) {
	values := []float64{2, 4, 4, 4, 5, 5, 7, 9}
	s := Summarize(values)

	if s.Count != 8 {
		t.Errorf("Count = %d, want 8", s.Count)
	}
	if s.Mean != 5 {
		t.Errorf("Mean = %v, want 5", s.Mean)
	}
	// Sample (Bessel) standard deviation of this series.
	if !almostEqual(s.StdDev, 2.138, 0.001) {
		t.Errorf("StdDev = %v, want ~2.138", s.StdDev)
	}
	if s.Min != 2 || s.Max != 9 {
		t.Errorf("Min/Max = %v/%v, want 2/9", s.Min, s.Max)
	}
}

func TestStdDevShortSeries(t *testing.T) {
	if got := StdDev([]float64{5}); got != 0 {
		t.Errorf("StdDev(single) = %v, want 0", got)
	}
	if got := StdDev(nil); got != 0 {
		t.Errorf("StdDev(nil) = %v, want 0", got)
	}
}

func makeSamples(values []float64, spacing time.Duration) []Sample {
	now := time.Now()
	out := make([]Sample, len(values))
	for i, v := range values {
		out[i] = Sample{
			Timestamp: now.Add(-time.Duration(len(values)-1-i) * spacing),
			Value:     v,
		}
	}
	return out
}

func TestComputeTrend(t *testing.T) {
	tests := []struct {
		name          string
		values        []float64
		wantDirection string
	}{
		{"increasing", []float64{10, 20, 30, 40, 50}, TrendIncreasing},
		{"decreasing", []float64{50, 40, 30, 20, 10}, TrendDecreasing},
		{"flat", []float64{25, 25, 25, 25}, TrendStable},
		{"single sample", []float64{42}, TrendInsufficient},
		{"empty", nil, TrendInsufficient},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			trend := ComputeTrend(makeSamples(tt.values, time.Minute), time.Hour)
			if trend.Direction != tt.wantDirection {
				t.Errorf("Direction = %q, want %q", trend.Direction, tt.wantDirection)
			}
		})
	}
}

func TestComputeTrendLinearSeries(t *testing.T) {
	trend := ComputeTrend(makeSamples([]float64{10, 20, 30, 40, 50}, time.Minute), time.Hour)

	// 10 units per minute-spaced sample is 10/60 units per second.
	if !almostEqual(trend.Slope, 10.0/60, 1e-9) {
		t.Errorf("Slope = %v, want %v", trend.Slope, 10.0/60)
	}
	if !almostEqual(trend.Confidence, 1.0, 1e-9) {
		t.Errorf("Confidence = %v, want 1.0 for a perfect line", trend.Confidence)
	}
	if !almostEqual(trend.ChangePercent, 400, 1e-9) {
		t.Errorf("ChangePercent = %v, want 400", trend.ChangePercent)
	}
}

func TestComputeTrendZeroFirstValue(t *testing.T) {
	trend := ComputeTrend(makeSamples([]float64{0, 5, 10}, time.Minute), time.Hour)
	if trend.ChangePercent != 0 {
		t.Errorf("ChangePercent with zero first value = %v, want 0", trend.ChangePercent)
	}
}

func TestComputeTrendFallsBackToLastTwo(t *testing.T) {
	// All samples fall outside the window, so the trend must come from the
	// last two samples of the full series.
	samples := makeSamples([]float64{10, 10, 10, 50}, 24*time.Hour)
	trend := ComputeTrend(samples, time.Minute)

	if !almostEqual(trend.Slope, 40.0/(24*3600), 1e-12) {
		t.Errorf("Slope = %v, want %v", trend.Slope, 40.0/(24*3600))
	}
	if !almostEqual(trend.ChangePercent, 400, 1e-9) {
		t.Errorf("ChangePercent = %v, want 400", trend.ChangePercent)
	}
}

func TestComputeTrendSlowDriftIsStable(t *testing.T) {
	// Half a unit per five-minute sample is well under the per-second
	// stability epsilon, however steadily the series climbs.
	values := make([]float64, 12)
	for i := range values {
		values[i] = 40 + 0.5*float64(i)
	}
	trend := ComputeTrend(makeSamples(values, 5*time.Minute), 2*time.Hour)

	if trend.Direction != TrendStable {
		t.Errorf("Direction = %q, want %q (slope=%v)", trend.Direction, TrendStable, trend.Slope)
	}
	if !almostEqual(trend.Slope, 0.5/300, 1e-9) {
		t.Errorf("Slope = %v, want %v", trend.Slope, 0.5/300)
	}
}

func TestDetectAnomalies(t *testing.T) {
	values := []float64{10, 11, 9, 10, 11, 10, 9, 50}
	anomalies := DetectAnomalies(makeSamples(values, time.Minute), 2.0)

	if len(anomalies) != 1 {
		t.Fatalf("anomaly count = %d, want 1", len(anomalies))
	}
	if anomalies[0].Value != 50 {
		t.Errorf("anomaly value = %v, want 50", anomalies[0].Value)
	}
	if anomalies[0].Kind != AnomalyHigh {
		t.Errorf("anomaly kind = %q, want %q", anomalies[0].Kind, AnomalyHigh)
	}
	if anomalies[0].ZScore <= 2.0 {
		t.Errorf("ZScore = %v, want > 2.0", anomalies[0].ZScore)
	}
}

func TestDetectAnomaliesLow(t *testing.T) {
	values := []float64{50, 51, 49, 50, 51, 50, 49, 5}
	anomalies := DetectAnomalies(makeSamples(values, time.Minute), 2.0)

	if len(anomalies) != 1 {
		t.Fatalf("anomaly count = %d, want 1", len(anomalies))
	}
	if anomalies[0].Kind != AnomalyLow {
		t.Errorf("anomaly kind = %q, want %q", anomalies[0].Kind, AnomalyLow)
	}
}

func TestDetectAnomaliesEdgeCases(t *testing.T) {
	if got := DetectAnomalies(makeSamples([]float64{1, 100}, time.Minute), 2.0); got != nil {
		t.Errorf("anomalies with two samples = %v, want nil", got)
	}
	if got := DetectAnomalies(makeSamples([]float64{5, 5, 5, 5}, time.Minute), 2.0); got != nil {
		t.Errorf("anomalies with zero deviation = %v, want nil", got)
	}
}
