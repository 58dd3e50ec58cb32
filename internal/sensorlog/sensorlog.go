// Package sensorlog defines the collaborator surface the trajectory core
// consumes — time-ordered absolute GPS poses, per-timestamp sensor frames
// that can be aligned to one another, optional groundtruth, and the fixed
// boresight offset of the recording sensor — plus an in-memory
// implementation and a sqlite-backed one for recorded logs.
//
// The frame-to-frame alignment itself (visual/radar odometry) is external:
// a recorded log carries the transforms that aligner produced, and FrameAt
// hands back frames that replay them.
package sensorlog

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/golang/geo/r3"

	"github.com/argos-data/trackrecon/internal/geom"
	"github.com/argos-data/trackrecon/internal/recorder"
	"github.com/argos-data/trackrecon/internal/track"
)

// ErrNoFrame reports a FrameAt lookup for a timestamp the log does not
// contain.
var ErrNoFrame = errors.New("sensorlog: no frame at timestamp")

// ErrNotAdjacent reports an alignment request between frames that are not
// consecutive in the log. A recorded log only carries consecutive-frame
// transforms.
var ErrNotAdjacent = errors.New("sensorlog: frames not adjacent in log")

// Groundtruth is the optional high-accuracy reference track a log may
// carry, with its own boresight offset.
type Groundtruth struct {
	Times     []float64
	Positions []r3.Vector
	Attitudes []geom.Rotation
	Boresight r3.Vector
}

// TimedSnapshot is one logged fused-estimator state.
type TimedSnapshot struct {
	Time  float64
	State recorder.Snapshot
}

// Reader is the sensor-log surface the core consumes.
type Reader interface {
	// GPSPositions and GPSAttitudes return the time-ordered absolute
	// poses, parallel to Timestamps(0, +Inf).
	GPSPositions() []r3.Vector
	GPSAttitudes() []geom.Rotation

	// Timestamps returns the log timestamps in [start, end). Pass
	// math.Inf(1) for an open-ended range.
	Timestamps(start, end float64) []float64

	// FrameAt returns the sensor frame recorded at ts.
	FrameAt(ts float64) (track.Frame, error)

	// Boresight is the lever arm from the vehicle reference point to the
	// tracked sensor's mounting point, in the sensor body frame.
	Boresight() r3.Vector

	// Groundtruth returns the reference track if the log carries one.
	// Absence is a normal condition, not an error.
	Groundtruth() (*Groundtruth, bool)
}

// Entry is one log record: the absolute GPS pose at Time, and the rigid
// transform the external aligner produced between the previous frame and
// this one. Delta is ignored on the first entry.
type Entry struct {
	Time     float64
	Position r3.Vector
	Attitude geom.Rotation
	Delta    geom.RigidTransform
}

// Log is an in-memory sensor log. It backs tests and synthetic runs, and is
// the loaded form of a sqlite log.
type Log struct {
	entries     []Entry
	boresight   r3.Vector
	groundtruth *Groundtruth
	snapshots   []TimedSnapshot
}

// NewLog builds an in-memory log from time-ordered entries. Entries must be
// strictly increasing in time.
func NewLog(boresight r3.Vector, entries []Entry) (*Log, error) {
	for i := 1; i < len(entries); i++ {
		if entries[i].Time <= entries[i-1].Time {
			return nil, fmt.Errorf("%w: entry %d at %v after %v",
				track.ErrOrdering, i, entries[i].Time, entries[i-1].Time)
		}
	}
	return &Log{entries: entries, boresight: boresight}, nil
}

// SetGroundtruth attaches an optional reference track to the log.
func (l *Log) SetGroundtruth(gt *Groundtruth) { l.groundtruth = gt }

// SetSnapshots attaches logged fused-estimator snapshots. They are sorted
// by time on attach.
func (l *Log) SetSnapshots(snaps []TimedSnapshot) {
	l.snapshots = append([]TimedSnapshot(nil), snaps...)
	sort.Slice(l.snapshots, func(i, j int) bool { return l.snapshots[i].Time < l.snapshots[j].Time })
}

// GPSPositions returns the absolute sensor positions in log order.
func (l *Log) GPSPositions() []r3.Vector {
	out := make([]r3.Vector, len(l.entries))
	for i, e := range l.entries {
		out[i] = e.Position
	}
	return out
}

// GPSAttitudes returns the absolute sensor attitudes in log order.
func (l *Log) GPSAttitudes() []geom.Rotation {
	out := make([]geom.Rotation, len(l.entries))
	for i, e := range l.entries {
		out[i] = e.Attitude
	}
	return out
}

// Timestamps returns the log timestamps in [start, end).
func (l *Log) Timestamps(start, end float64) []float64 {
	var out []float64
	for _, e := range l.entries {
		if e.Time >= start && e.Time < end {
			out = append(out, e.Time)
		}
	}
	return out
}

// SeedPose returns the first logged pose, the natural seed for
// dead-reckoning integration.
func (l *Log) SeedPose() (geom.Pose, error) {
	if len(l.entries) == 0 {
		return geom.Pose{}, fmt.Errorf("sensorlog: empty log")
	}
	e := l.entries[0]
	return geom.Pose{Time: e.Time, Position: e.Position, Attitude: e.Attitude}, nil
}

// FrameAt returns the frame recorded at ts.
func (l *Log) FrameAt(ts float64) (track.Frame, error) {
	i := sort.Search(len(l.entries), func(i int) bool { return l.entries[i].Time >= ts })
	if i >= len(l.entries) || l.entries[i].Time != ts {
		return nil, fmt.Errorf("%w: %v", ErrNoFrame, ts)
	}
	return &logFrame{log: l, idx: i}, nil
}

// Boresight returns the tracked sensor's lever arm.
func (l *Log) Boresight() r3.Vector { return l.boresight }

// Groundtruth returns the attached reference track, if any.
func (l *Log) Groundtruth() (*Groundtruth, bool) {
	return l.groundtruth, l.groundtruth != nil
}

// Snapshots returns the logged fused-estimator snapshots, if any, in
// ascending time order.
func (l *Log) Snapshots() ([]TimedSnapshot, bool) {
	return l.snapshots, len(l.snapshots) > 0
}

// Len returns the number of log entries.
func (l *Log) Len() int { return len(l.entries) }

// logFrame replays the recorded alignment transforms. A log only stores the
// transform between consecutive frames, so AlignTo supports the
// consecutive case (and the trivial self case) and refuses anything else.
type logFrame struct {
	log *Log
	idx int
}

func (f *logFrame) AlignTo(earlier track.Frame) (geom.RigidTransform, error) {
	e, ok := earlier.(*logFrame)
	if !ok || e.log != f.log {
		return geom.RigidTransform{}, fmt.Errorf("%w: frames from different logs", ErrNotAdjacent)
	}
	switch f.idx - e.idx {
	case 0:
		return geom.IdentityTransform(), nil
	case 1:
		return f.log.entries[f.idx].Delta, nil
	default:
		return geom.RigidTransform{}, fmt.Errorf("%w: indices %d and %d", ErrNotAdjacent, e.idx, f.idx)
	}
}

// OpenEnd is a convenience for open-ended Timestamps ranges.
func OpenEnd() float64 { return math.Inf(1) }
