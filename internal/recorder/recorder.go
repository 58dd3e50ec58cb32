// Package recorder stores timestamped snapshots of the fused estimator's
// state and projects them into time series for offline diagnostics. It is
// deliberately decoupled from the geometry pipeline: the estimator pushes
// snapshots as it runs, and the diagnostic surfaces (plots, NIS checks) pull
// ordered series out afterwards.
package recorder

import (
	"errors"
	"fmt"
	"sort"

	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/argos-data/trackrecon/internal/geom"
)

// ErrNoInnovation reports a snapshot without innovation terms passed to a
// consistency statistic.
var ErrNoInnovation = errors.New("recorder: snapshot has no innovation")

// ErrBadConfidence reports a confidence level outside (0, 1).
var ErrBadConfidence = errors.New("recorder: confidence must be in (0, 1)")

// Snapshot is an independent copy of the fused estimator's state at one
// timestamp. Once recorded it never aliases the live estimator: slices and
// matrices are cloned on record.
type Snapshot struct {
	Position r3.Vector
	Attitude geom.Rotation

	// Innovation is the most recent measurement residual, and
	// InnovationCov its predicted covariance. Empty on the seed snapshot,
	// before the first measurement update.
	Innovation    []float64
	InnovationCov *mat.SymDense
}

// Clone returns a deep copy of s. Position and Attitude have value
// semantics already; the innovation slice and covariance are copied
// explicitly.
func (s Snapshot) Clone() Snapshot {
	out := s
	if s.Innovation != nil {
		out.Innovation = append([]float64(nil), s.Innovation...)
	}
	if s.InnovationCov != nil {
		out.InnovationCov = mat.NewSymDense(s.InnovationCov.SymmetricDim(), nil)
		out.InnovationCov.CopySym(s.InnovationCov)
	}
	return out
}

// Recorder is a timestamp-keyed store of estimator snapshots. Recording the
// same timestamp twice keeps only the later write; projections are always in
// ascending timestamp order regardless of recording order. A Recorder is
// exclusively owned by one caller and is not safe for concurrent use.
type Recorder struct {
	snaps map[float64]Snapshot
}

// New returns an empty Recorder.
func New() *Recorder {
	return &Recorder{snaps: make(map[float64]Snapshot)}
}

// Record stores a deep copy of state at ts, replacing any prior entry for
// the same timestamp.
func (r *Recorder) Record(ts float64, state Snapshot) {
	r.snaps[ts] = state.Clone()
}

// Len returns the number of distinct recorded timestamps.
func (r *Recorder) Len() int { return len(r.snaps) }

// Timestamps returns the recorded timestamps in ascending order.
func (r *Recorder) Timestamps() []float64 {
	ts := make([]float64, 0, len(r.snaps))
	for t := range r.snaps {
		ts = append(ts, t)
	}
	sort.Float64s(ts)
	return ts
}

// At returns a copy of the snapshot recorded at ts. The copy keeps the
// store immutable from outside: mutating the returned snapshot never
// touches history.
func (r *Recorder) At(ts float64) (Snapshot, bool) {
	s, ok := r.snaps[ts]
	if !ok {
		return Snapshot{}, false
	}
	return s.Clone(), true
}

// Positions projects the stored snapshots into a position sequence in
// ascending timestamp order.
func (r *Recorder) Positions() []r3.Vector {
	ts := r.Timestamps()
	out := make([]r3.Vector, len(ts))
	for i, t := range ts {
		out[i] = r.snaps[t].Position
	}
	return out
}

// Attitudes projects the stored snapshots into an attitude sequence in
// ascending timestamp order.
func (r *Recorder) Attitudes() []geom.Rotation {
	ts := r.Timestamps()
	out := make([]geom.Rotation, len(ts))
	for i, t := range ts {
		out[i] = r.snaps[t].Attitude
	}
	return out
}

// NormalizedInnovationSquared returns the joint filter-consistency
// statistic for one snapshot: ZᵀS⁻¹Z divided by the chi-square critical
// value at the given confidence and len(Z) degrees of freedom. Values
// persistently above 1 mean the filter's predicted uncertainty does not
// match its observed residuals.
func NormalizedInnovationSquared(s Snapshot, confidence float64) (float64, error) {
	if err := checkInnovation(s, confidence); err != nil {
		return 0, err
	}
	n := len(s.Innovation)
	z := mat.NewVecDense(n, append([]float64(nil), s.Innovation...))

	var chol mat.Cholesky
	if ok := chol.Factorize(s.InnovationCov); !ok {
		return 0, fmt.Errorf("recorder: innovation covariance not positive definite")
	}
	var solved mat.VecDense
	if err := chol.SolveVecTo(&solved, z); err != nil {
		return 0, fmt.Errorf("recorder: solving S⁻¹Z: %w", err)
	}
	nis := mat.Dot(z, &solved)

	crit := distuv.ChiSquared{K: float64(n)}.Quantile(confidence)
	return nis / crit, nil
}

// PerAxisNIS returns the per-axis consistency statistic Z[i]²/S[i][i],
// each normalised by the chi-square critical value at one degree of
// freedom.
func PerAxisNIS(s Snapshot, confidence float64) ([]float64, error) {
	if err := checkInnovation(s, confidence); err != nil {
		return nil, err
	}
	crit := distuv.ChiSquared{K: 1}.Quantile(confidence)
	out := make([]float64, len(s.Innovation))
	for i, z := range s.Innovation {
		out[i] = z * z / s.InnovationCov.At(i, i) / crit
	}
	return out, nil
}

// InnovationSeries projects the joint NIS over all snapshots that carry an
// innovation, in ascending timestamp order. Returns parallel timestamp and
// statistic slices.
func (r *Recorder) InnovationSeries(confidence float64) ([]float64, []float64, error) {
	var times, stats []float64
	for _, t := range r.Timestamps() {
		s := r.snaps[t]
		if len(s.Innovation) == 0 {
			continue
		}
		v, err := NormalizedInnovationSquared(s, confidence)
		if err != nil {
			return nil, nil, fmt.Errorf("at t=%v: %w", t, err)
		}
		times = append(times, t)
		stats = append(stats, v)
	}
	return times, stats, nil
}

func checkInnovation(s Snapshot, confidence float64) error {
	if confidence <= 0 || confidence >= 1 {
		return fmt.Errorf("%w: got %v", ErrBadConfidence, confidence)
	}
	if len(s.Innovation) == 0 || s.InnovationCov == nil {
		return ErrNoInnovation
	}
	if s.InnovationCov.SymmetricDim() != len(s.Innovation) {
		return fmt.Errorf("recorder: innovation dim %d vs covariance dim %d",
			len(s.Innovation), s.InnovationCov.SymmetricDim())
	}
	return nil
}
