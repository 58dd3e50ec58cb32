package track

import (
	"errors"
	"fmt"

	"github.com/golang/geo/r3"

	"github.com/argos-data/trackrecon/internal/geom"
)

// ErrOrdering reports a timestamp sequence that is not strictly increasing.
var ErrOrdering = errors.New("track: timestamps not strictly increasing")

// Frame is one opaque sensor frame. AlignTo returns the rigid transform
// carrying the earlier frame's pose into this frame's pose: the translation
// in the earlier body frame, the rotation as the incremental attitude
// change. Implemented by the external visual/radar alignment routine.
type Frame interface {
	AlignTo(earlier Frame) (geom.RigidTransform, error)
}

// FrameSource hands out sensor frames by timestamp.
type FrameSource interface {
	FrameAt(ts float64) (Frame, error)
}

// Trajectory is the output of dead-reckoning integration: parallel
// timestamp, position and attitude sequences, index 0 being the seed pose
// exactly.
type Trajectory struct {
	Times     []float64
	Positions []r3.Vector
	Attitudes []geom.Rotation
}

// Integrator accumulates relative rigid transforms into an absolute
// trajectory, one step at a time. It is the streaming counterpart of
// Integrate; feeding it the same steps in the same order produces the same
// trajectory.
//
// This is dead reckoning: each step's alignment error is carried into every
// subsequent pose and there is no correction mechanism, so drift grows
// without bound over the sequence. That is an accepted property of the
// odometry-only track, which exists to be compared against the absolute and
// fused tracks.
type Integrator struct {
	times []float64
	pos   []r3.Vector
	att   []geom.Rotation
}

// NewIntegrator starts a trajectory at the given seed pose. The seed is an
// absolute pose from an independent source (typically the first GPS fix).
func NewIntegrator(seed geom.Pose) *Integrator {
	return &Integrator{
		times: []float64{seed.Time},
		pos:   []r3.Vector{seed.Position},
		att:   []geom.Rotation{seed.Attitude},
	}
}

// Step appends one frame-to-frame transform observed at time ts. The
// translation is expressed in the previous pose's body frame, so it is
// carried into the absolute frame through the previous attitude before
// accumulating; the incremental rotation composes onto the right of the
// previous attitude. ts must be strictly greater than the last step's time.
func (it *Integrator) Step(ts float64, delta geom.RigidTransform) error {
	last := it.times[len(it.times)-1]
	if ts <= last {
		return fmt.Errorf("%w: %v after %v", ErrOrdering, ts, last)
	}
	prevAtt := it.att[len(it.att)-1]
	prevPos := it.pos[len(it.pos)-1]

	it.times = append(it.times, ts)
	it.pos = append(it.pos, prevPos.Add(prevAtt.ApplyInverse(delta.Translation)))
	it.att = append(it.att, prevAtt.Compose(delta.Rotation))
	return nil
}

// Len returns the number of poses accumulated so far, including the seed.
func (it *Integrator) Len() int { return len(it.times) }

// Trajectory returns a copy of the accumulated trajectory.
func (it *Integrator) Trajectory() Trajectory {
	return Trajectory{
		Times:     append([]float64(nil), it.times...),
		Positions: append([]r3.Vector(nil), it.pos...),
		Attitudes: append([]geom.Rotation(nil), it.att...),
	}
}

// Integrate runs a full forward pass: for each consecutive timestamp pair it
// asks the source for both frames, aligns the later to the earlier, and
// accumulates the resulting transform. times must be strictly increasing and
// times[0] must equal the seed's time; a sequence of length one (or zero
// beyond the seed) returns just the seed pose.
func Integrate(src FrameSource, times []float64, seed geom.Pose) (Trajectory, error) {
	it := NewIntegrator(seed)
	for i := 1; i < len(times); i++ {
		if times[i] <= times[i-1] {
			return Trajectory{}, fmt.Errorf("%w: index %d: %v after %v", ErrOrdering, i, times[i], times[i-1])
		}
		cur, err := src.FrameAt(times[i])
		if err != nil {
			return Trajectory{}, fmt.Errorf("track: frame at %v: %w", times[i], err)
		}
		prev, err := src.FrameAt(times[i-1])
		if err != nil {
			return Trajectory{}, fmt.Errorf("track: frame at %v: %w", times[i-1], err)
		}
		delta, err := cur.AlignTo(prev)
		if err != nil {
			return Trajectory{}, fmt.Errorf("track: align %v to %v: %w", times[i], times[i-1], err)
		}
		if err := it.Step(times[i], delta); err != nil {
			return Trajectory{}, err
		}
	}
	return it.Trajectory(), nil
}
