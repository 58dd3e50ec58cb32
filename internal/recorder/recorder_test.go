package recorder

import (
	"errors"
	"math"
	"testing"

	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/mat"

	"github.com/argos-data/trackrecon/internal/geom"
)

// Chi-square critical values at p=0.99 (scipy.stats.chi2.ppf reference).
const (
	chi2Crit99DF1 = 6.634896601021213
	chi2Crit99DF3 = 11.344866730144373
)

func snapAt(x float64) Snapshot {
	return Snapshot{Position: r3.Vector{X: x}, Attitude: geom.RotationAboutZ(x)}
}

func TestRecordLastWriteWins(t *testing.T) {
	r := New()
	r.Record(5, snapAt(1))
	r.Record(5, snapAt(2))

	if r.Len() != 1 {
		t.Fatalf("Len = %d, want 1", r.Len())
	}
	pos := r.Positions()
	if len(pos) != 1 || pos[0].X != 2 {
		t.Fatalf("positions = %v, want one entry at x=2", pos)
	}
}

func TestProjectionsAscendByTimestamp(t *testing.T) {
	r := New()
	r.Record(3, snapAt(3))
	r.Record(1, snapAt(1))
	r.Record(2, snapAt(2))

	wantTimes := []float64{1, 2, 3}
	gotTimes := r.Timestamps()
	for i := range wantTimes {
		if gotTimes[i] != wantTimes[i] {
			t.Fatalf("timestamps = %v, want %v", gotTimes, wantTimes)
		}
	}
	for i, p := range r.Positions() {
		if p.X != wantTimes[i] {
			t.Fatalf("position %d = %v, want x=%v", i, p, wantTimes[i])
		}
	}
	for i, a := range r.Attitudes() {
		if !a.ApproxEqual(geom.RotationAboutZ(wantTimes[i]), 1e-12) {
			t.Fatalf("attitude %d out of order", i)
		}
	}

	// Repeated projection reads are identical until the next Record.
	again := r.Positions()
	for i, p := range r.Positions() {
		if p != again[i] {
			t.Fatal("projection is not repeatable")
		}
	}
}

func TestRecordDeepCopies(t *testing.T) {
	innov := []float64{1, 2, 3}
	cov := mat.NewSymDense(3, nil)
	for i := 0; i < 3; i++ {
		cov.SetSym(i, i, 1)
	}
	live := Snapshot{
		Position:      r3.Vector{X: 1},
		Attitude:      geom.Identity(),
		Innovation:    innov,
		InnovationCov: cov,
	}

	r := New()
	r.Record(0, live)

	// Mutate the live estimator state after recording.
	innov[0] = 999
	cov.SetSym(0, 0, 999)

	stored, ok := r.At(0)
	if !ok {
		t.Fatal("snapshot missing")
	}
	if stored.Innovation[0] != 1 {
		t.Fatalf("stored innovation aliases live slice: %v", stored.Innovation)
	}
	if stored.InnovationCov.At(0, 0) != 1 {
		t.Fatalf("stored covariance aliases live matrix: %v", stored.InnovationCov.At(0, 0))
	}
}

func TestPerAxisNIS(t *testing.T) {
	cov := mat.NewSymDense(3, nil)
	cov.SetSym(0, 0, 1)
	cov.SetSym(1, 1, 4)
	cov.SetSym(2, 2, 9)
	s := Snapshot{Innovation: []float64{1, 2, 3}, InnovationCov: cov}

	got, err := PerAxisNIS(s, 0.99)
	if err != nil {
		t.Fatal(err)
	}
	// Each axis: z²/S[i][i] = 1, normalised by the df=1 critical value.
	for i, v := range got {
		want := 1 / chi2Crit99DF1
		if math.Abs(v-want) > 1e-9 {
			t.Fatalf("axis %d: got %v, want %v", i, v, want)
		}
	}
}

func TestJointNIS(t *testing.T) {
	cov := mat.NewSymDense(3, nil)
	for i := 0; i < 3; i++ {
		cov.SetSym(i, i, 2)
	}
	s := Snapshot{Innovation: []float64{1, 2, 3}, InnovationCov: cov}

	got, err := NormalizedInnovationSquared(s, 0.99)
	if err != nil {
		t.Fatal(err)
	}
	// ZᵀS⁻¹Z = (1+4+9)/2 = 7, over the df=3 critical value.
	want := 7 / chi2Crit99DF3
	if math.Abs(got-want) > 1e-9 {
		t.Fatalf("got %v, want %v", got, want)
	}
}

func TestNISErrors(t *testing.T) {
	if _, err := NormalizedInnovationSquared(Snapshot{}, 0.99); !errors.Is(err, ErrNoInnovation) {
		t.Fatalf("empty innovation: want ErrNoInnovation, got %v", err)
	}

	cov := mat.NewSymDense(1, []float64{1})
	s := Snapshot{Innovation: []float64{1}, InnovationCov: cov}
	for _, p := range []float64{0, 1, -0.5, 1.5} {
		if _, err := NormalizedInnovationSquared(s, p); !errors.Is(err, ErrBadConfidence) {
			t.Errorf("confidence %v: want ErrBadConfidence, got %v", p, err)
		}
	}

	mismatched := Snapshot{Innovation: []float64{1, 2}, InnovationCov: cov}
	if _, err := NormalizedInnovationSquared(mismatched, 0.99); err == nil {
		t.Fatal("dimension mismatch accepted")
	}
}

func TestInnovationSeriesSkipsSeed(t *testing.T) {
	r := New()
	r.Record(0, snapAt(0)) // seed snapshot, no innovation yet

	cov := mat.NewSymDense(2, nil)
	cov.SetSym(0, 0, 1)
	cov.SetSym(1, 1, 1)
	r.Record(1, Snapshot{Innovation: []float64{1, 0}, InnovationCov: cov})
	r.Record(2, Snapshot{Innovation: []float64{0, 2}, InnovationCov: cov})

	times, nis, err := r.InnovationSeries(0.99)
	if err != nil {
		t.Fatal(err)
	}
	if len(times) != 2 || times[0] != 1 || times[1] != 2 {
		t.Fatalf("times = %v, want [1 2]", times)
	}
	if nis[0] >= nis[1] {
		t.Fatalf("NIS = %v, want increasing for growing residuals", nis)
	}
}
