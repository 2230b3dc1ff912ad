package running

import (
	"math"
	"math/rand"
	"testing"
)

const eps = 1e-12

func TestZeroValue(t *testing.T) {
	var s Stats

	if s.Count() != 0 {
		t.Fatalf("fresh count = %d, want 0", s.Count())
	}

	if s.Ready() {
		t.Fatal("fresh stats must not be ready")
	}

	if z := s.ZScore(1.0); z != 0 {
		t.Fatalf("z-score before any sample = %v, want 0", z)
	}
}

func TestSingleSample(t *testing.T) {
	var s Stats
	s.Update(3.5)

	if s.Count() != 1 {
		t.Fatalf("count = %d, want 1", s.Count())
	}

	if s.Mean() != 3.5 {
		t.Fatalf("mean = %v, want 3.5", s.Mean())
	}

	if s.Ready() {
		t.Fatal("one sample must not be ready")
	}

	if z := s.ZScore(10); z != 0 {
		t.Fatalf("z-score with one sample = %v, want 0", z)
	}
}

func TestKnownSequence(t *testing.T) {
	// Samples {2, 4, 4, 4, 5, 5, 7, 9}: mean 5, population variance 4.
	var s Stats
	for _, x := range []float64{2, 4, 4, 4, 5, 5, 7, 9} {
		s.Update(x)
	}

	if math.Abs(s.Mean()-5) > eps {
		t.Errorf("mean = %v, want 5", s.Mean())
	}

	if math.Abs(s.Variance()-4) > eps {
		t.Errorf("variance = %v, want 4", s.Variance())
	}

	if math.Abs(s.Std()-2) > eps {
		t.Errorf("std = %v, want 2", s.Std())
	}

	if z := s.ZScore(9); math.Abs(z-2) > eps {
		t.Errorf("z-score(9) = %v, want 2", z)
	}
}

func TestConstantStreamZScoreZero(t *testing.T) {
	var s Stats
	for i := 0; i < 100; i++ {
		s.Update(1.25)
	}

	if s.Std() > eps {
		t.Fatalf("std of constant stream = %v, want 0", s.Std())
	}

	// Zero std: z-score must stay defined (0), not NaN.
	if z := s.ZScore(2); z != 0 {
		t.Fatalf("z-score with zero std = %v, want 0", z)
	}
}

func TestConvergesOnWhiteNoise(t *testing.T) {
	rng := rand.New(rand.NewSource(42))

	var s Stats

	n := 200000
	for i := 0; i < n; i++ {
		s.Update(rng.NormFloat64())
	}

	bound := 4.0 / math.Sqrt(float64(n))
	if math.Abs(s.Mean()) > bound {
		t.Errorf("mean = %v, want |mean| <= %v", s.Mean(), bound)
	}

	if math.Abs(s.Std()-1) > 2*bound {
		t.Errorf("std = %v, want within %v of 1", s.Std(), 2*bound)
	}
}

func TestMatchesTwoPassReference(t *testing.T) {
	rng := rand.New(rand.NewSource(7))

	data := make([]float64, 1000)
	for i := range data {
		data[i] = rng.Float64()*200 - 100
	}

	var s Stats
	for _, x := range data {
		s.Update(x)
	}

	var sum float64
	for _, x := range data {
		sum += x
	}

	mean := sum / float64(len(data))

	var m2 float64
	for _, x := range data {
		m2 += (x - mean) * (x - mean)
	}

	wantVar := m2 / float64(len(data))

	if math.Abs(s.Mean()-mean) > 1e-9 {
		t.Errorf("mean = %v, want %v", s.Mean(), mean)
	}

	if math.Abs(s.Variance()-wantVar) > 1e-6 {
		t.Errorf("variance = %v, want %v", s.Variance(), wantVar)
	}
}

func TestReset(t *testing.T) {
	var s Stats
	s.Update(1)
	s.Update(2)
	s.Reset()

	if s.Count() != 0 || s.Mean() != 0 || s.Variance() != 0 {
		t.Fatalf("reset left state behind: count=%d mean=%v var=%v",
			s.Count(), s.Mean(), s.Variance())
	}
}
