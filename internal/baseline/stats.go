package baseline

import (
	"math"
	"time"
)

// Trend directions.
const (
	TrendIncreasing   = "increasing"
	TrendDecreasing   = "decreasing"
	TrendStable       = "stable"
	TrendInsufficient = "insufficient_data"
)

// slopeStableEpsilon is the slope magnitude below which a trend counts as stable.
const slopeStableEpsilon = 0.01

// Summary holds descriptive statistics for a value series.
type Summary struct {
	Mean   float64 `json:"mean"`
	StdDev float64 `json:"std_dev"`
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
	Count  int     `json:"count"`
}

// Trend describes the direction and strength of change over a window.
type Trend struct {
	Direction     string  `json:"direction"`
	Slope         float64 `json:"slope"`
	ChangePercent float64 `json:"change_percent"`
	Confidence    float64 `json:"confidence"`
}

// Anomaly flags a sample whose z-score exceeds the detection threshold.
type Anomaly struct {
	Timestamp time.Time `json:"timestamp"`
	Value     float64   `json:"value"`
	ZScore    float64   `json:"z_score"`
	Kind      string    `json:"kind"`
}

// Anomaly kinds.
const (
	AnomalyHigh = "high"
	AnomalyLow  = "low"
)

// Mean returns the arithmetic mean, or 0 for an empty series.
func Mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// StdDev returns the sample standard deviation (Bessel corrected).
// Series shorter than two values have zero deviation.
func StdDev(values []float64) float64 {
	n := len(values)
	if n < 2 {
		return 0
	}
	mean := Mean(values)
	var sq float64
	for _, v := range values {
		d := v - mean
		sq += d * d
	}
	return math.Sqrt(sq / float64(n-1))
}

// Summarize computes descriptive statistics for the series.
func Summarize(values []float64) Summary {
	s := Summary{Count: len(values)}
	if s.Count == 0 {
		return s
	}
	s.Min, s.Max = values[0], values[0]
	for _, v := range values {
		if v < s.Min {
			s.Min = v
		}
		if v > s.Max {
			s.Max = v
		}
	}
	s.Mean = Mean(values)
	s.StdDev = StdDev(values)
	return s
}

// ComputeTrend fits an ordinary least-squares line over the samples within
// the trailing window and classifies the slope. When fewer than two samples
// fall inside the window it falls back to the last two samples of the full
// series; with fewer than two samples overall the trend is insufficient_data.
func ComputeTrend(samples []Sample, window time.Duration) Trend {
	cutoff := time.Now().Add(-window)
	var windowed []Sample
	for _, s := range samples {
		if s.Timestamp.After(cutoff) {
			windowed = append(windowed, s)
		}
	}
	if len(windowed) < 2 {
		if len(samples) < 2 {
			return Trend{Direction: TrendInsufficient}
		}
		windowed = samples[len(samples)-2:]
	}

	// Slope is in value units per second, so the stability epsilon means
	// the same thing regardless of sampling cadence.
	start := windowed[0].Timestamp
	xs := make([]float64, len(windowed))
	values := make([]float64, len(windowed))
	for i, s := range windowed {
		xs[i] = s.Timestamp.Sub(start).Seconds()
		values[i] = s.Value
	}

	slope, r := leastSquares(xs, values)

	direction := TrendStable
	switch {
	case slope > slopeStableEpsilon:
		direction = TrendIncreasing
	case slope < -slopeStableEpsilon:
		direction = TrendDecreasing
	}

	first, last := values[0], values[len(values)-1]
	var changePercent float64
	if first != 0 {
		changePercent = (last - first) / first * 100
	}

	return Trend{
		Direction:     direction,
		Slope:         slope,
		ChangePercent: changePercent,
		Confidence:    math.Abs(r),
	}
}

// leastSquares fits y = a + b*x and returns the slope b and the Pearson
// correlation coefficient r. A flat series yields r = 0; coincident x
// values yield a zero slope.
func leastSquares(xs, values []float64) (slope, r float64) {
	meanX := Mean(xs)
	meanY := Mean(values)

	var covXY, varX, varY float64
	for i, y := range values {
		dx := xs[i] - meanX
		dy := y - meanY
		covXY += dx * dy
		varX += dx * dx
		varY += dy * dy
	}
	if varX == 0 {
		return 0, 0
	}
	slope = covXY / varX
	if varY == 0 {
		return slope, 0
	}
	r = covXY / math.Sqrt(varX*varY)
	return slope, r
}

// DetectAnomalies flags samples whose z-score magnitude exceeds threshold.
// Detection needs at least three samples and a non-zero deviation.
func DetectAnomalies(samples []Sample, threshold float64) []Anomaly {
	if len(samples) < 3 {
		return nil
	}
	values := make([]float64, len(samples))
	for i, s := range samples {
		values[i] = s.Value
	}
	mean := Mean(values)
	std := StdDev(values)
	if std == 0 {
		return nil
	}

	var out []Anomaly
	for _, s := range samples {
		z := (s.Value - mean) / std
		if math.Abs(z) <= threshold {
			continue
		}
		kind := AnomalyHigh
		if z < 0 {
			kind = AnomalyLow
		}
		out = append(out, Anomaly{
			Timestamp: s.Timestamp,
			Value:     s.Value,
			ZScore:    z,
			Kind:      kind,
		})
	}
	return out
}
