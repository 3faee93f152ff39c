package baseline

import (
	"math"
	"time"
)

// Confidence interval z-scores.
const (
	z95 = 1.96
	z99 = 2.58
)

// DefaultValidity is how long a computed baseline stays usable.
const DefaultValidity = 7 * 24 * time.Hour

// Interval is a closed confidence interval around the baseline mean.
type Interval struct {
	Lower float64 `json:"lower"`
	Upper float64 `json:"upper"`
}

// Contains reports whether v lies inside the interval.
func (i Interval) Contains(v float64) bool {
	return v >= i.Lower && v <= i.Upper
}

// Baseline is the expected behaviour of one metric on one server, derived
// from its rolling sample history.
type Baseline struct {
	ServerAlias string    `json:"server_alias"`
	MetricPath  string    `json:"metric_path"`
	Mean        float64   `json:"mean"`
	StdDev      float64   `json:"std_dev"`
	SampleCount int       `json:"sample_count"`
	CI95        Interval  `json:"ci_95"`
	CI99        Interval  `json:"ci_99"`
	CreatedAt   time.Time `json:"created_at"`
	ValidUntil  time.Time `json:"valid_until"`
}

// Expired reports whether the baseline has aged out.
func (b Baseline) Expired() bool {
	return time.Now().After(b.ValidUntil)
}

// Compute derives a baseline from the sample values. Confidence intervals
// use the standard error of the mean; a single-sample series collapses both
// intervals to the mean itself.
func Compute(serverAlias, metricPath string, values []float64, validity time.Duration) (Baseline, bool) {
	n := len(values)
	if n == 0 {
		return Baseline{}, false
	}
	if validity <= 0 {
		validity = DefaultValidity
	}

	mean := Mean(values)
	std := StdDev(values)
	now := time.Now()

	b := Baseline{
		ServerAlias: serverAlias,
		MetricPath:  metricPath,
		Mean:        mean,
		StdDev:      std,
		SampleCount: n,
		CreatedAt:   now,
		ValidUntil:  now.Add(validity),
	}

	if n == 1 {
		b.CI95 = Interval{Lower: mean, Upper: mean}
		b.CI99 = Interval{Lower: mean, Upper: mean}
		return b, true
	}

	stderr := std / math.Sqrt(float64(n))
	b.CI95 = Interval{Lower: mean - z95*stderr, Upper: mean + z95*stderr}
	b.CI99 = Interval{Lower: mean - z99*stderr, Upper: mean + z99*stderr}
	return b, true
}

// Deviation statuses for baseline comparisons.
const (
	DeviationNormal   = "normal"
	DeviationWarning  = "warning"
	DeviationCritical = "critical"
)

// Comparison relates a current metric value to its baseline.
type Comparison struct {
	Current       float64 `json:"current"`
	BaselineMean  float64 `json:"baseline_mean"`
	ZScore        float64 `json:"z_score"`
	PercentChange float64 `json:"percent_change"`
	WithinCI95    bool    `json:"within_ci_95"`
	Status        string  `json:"status"`
}

// Compare classifies current against the baseline. A z-score within one
// deviation is normal, within threshold is warning, beyond is critical.
// A zero-deviation baseline yields a zero z-score, so the result is normal.
func (b Baseline) Compare(current, threshold float64) Comparison {
	c := Comparison{
		Current:      current,
		BaselineMean: b.Mean,
		WithinCI95:   b.CI95.Contains(current),
	}
	if b.Mean != 0 {
		c.PercentChange = (current - b.Mean) / b.Mean * 100
	}

	if b.StdDev == 0 {
		c.Status = DeviationNormal
		return c
	}

	c.ZScore = (current - b.Mean) / b.StdDev
	switch abs := math.Abs(c.ZScore); {
	case abs <= 1.0:
		c.Status = DeviationNormal
	case abs <= threshold:
		c.Status = DeviationWarning
	default:
		c.Status = DeviationCritical
	}
	return c
}
