package running

import "math"

// Stats accumulates mean and population variance of a stream via Welford's
// online algorithm. The zero value is ready to use.
type Stats struct {
	count uint64
	mean  float64
	m2    float64 // sum of squared deviations from the running mean
}

// Update folds one sample into the accumulators.
func (s *Stats) Update(x float64) {
	s.count++
	delta := x - s.mean
	s.mean += delta / float64(s.count)
	s.m2 += delta * (x - s.mean)
}

// Count returns the number of samples seen since the last Reset.
func (s *Stats) Count() uint64 {
	return s.count
}

// Mean returns the running mean, 0 before the first sample.
func (s *Stats) Mean() float64 {
	return s.mean
}

// Variance returns the population variance M2/count, 0 for count < 1.
func (s *Stats) Variance() float64 {
	if s.count < 1 {
		return 0
	}

	return s.m2 / float64(s.count)
}

// Std returns the population standard deviation.
func (s *Stats) Std() float64 {
	return math.Sqrt(s.Variance())
}

// Ready reports whether enough samples have been seen for a z-score to be
// meaningful (count >= 2).
func (s *Stats) Ready() bool {
	return s.count >= 2
}

// ZScore returns (x - mean) / std. Defined only for count >= 2 and a
// non-zero standard deviation; returns 0 otherwise.
func (s *Stats) ZScore(x float64) float64 {
	if s.count < 2 {
		return 0
	}

	std := s.Std()
	if std == 0 {
		return 0
	}

	return (x - s.mean) / std
}

// Reset clears all accumulators.
func (s *Stats) Reset() {
	s.count = 0
	s.mean = 0
	s.m2 = 0
}
