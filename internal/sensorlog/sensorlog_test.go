package sensorlog

import (
	"errors"
	"math"
	"testing"

	"github.com/golang/geo/r3"

	"github.com/argos-data/trackrecon/internal/geom"
	"github.com/argos-data/trackrecon/internal/track"
)

func testEntries(n int) []Entry {
	entries := make([]Entry, n)
	for i := range entries {
		entries[i] = Entry{
			Time:     float64(i) * 0.5,
			Position: r3.Vector{X: 6378137 + float64(i)},
			Attitude: geom.RotationAboutZ(0.01 * float64(i)),
		}
		if i > 0 {
			entries[i].Delta = geom.RigidTransform{
				Translation: r3.Vector{X: 1},
				Rotation:    geom.RotationAboutZ(0.01),
			}
		}
	}
	return entries
}

func TestNewLogRejectsUnorderedEntries(t *testing.T) {
	entries := testEntries(3)
	entries[2].Time = entries[1].Time
	if _, err := NewLog(r3.Vector{}, entries); !errors.Is(err, track.ErrOrdering) {
		t.Fatalf("want ErrOrdering, got %v", err)
	}
}

func TestTimestampsHalfOpenRange(t *testing.T) {
	l, err := NewLog(r3.Vector{}, testEntries(5))
	if err != nil {
		t.Fatal(err)
	}

	all := l.Timestamps(math.Inf(-1), OpenEnd())
	if len(all) != 5 {
		t.Fatalf("open range returned %d timestamps, want 5", len(all))
	}

	mid := l.Timestamps(0.5, 1.5)
	if len(mid) != 2 || mid[0] != 0.5 || mid[1] != 1.0 {
		t.Fatalf("half-open [0.5, 1.5) = %v, want [0.5 1]", mid)
	}
}

func TestFrameAlignment(t *testing.T) {
	l, err := NewLog(r3.Vector{}, testEntries(4))
	if err != nil {
		t.Fatal(err)
	}

	cur, err := l.FrameAt(1.0)
	if err != nil {
		t.Fatal(err)
	}
	prev, err := l.FrameAt(0.5)
	if err != nil {
		t.Fatal(err)
	}

	delta, err := cur.AlignTo(prev)
	if err != nil {
		t.Fatal(err)
	}
	if delta.Translation != (r3.Vector{X: 1}) {
		t.Fatalf("delta translation = %v", delta.Translation)
	}

	// Self-alignment is the identity transform.
	self, err := cur.AlignTo(cur)
	if err != nil {
		t.Fatal(err)
	}
	if self.Translation != (r3.Vector{}) || !self.Rotation.ApproxEqual(geom.Identity(), 1e-15) {
		t.Fatal("self-alignment is not identity")
	}

	// Skipping a frame is refused: the log only carries consecutive
	// transforms.
	far, err := l.FrameAt(1.5)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := far.AlignTo(prev); !errors.Is(err, ErrNotAdjacent) {
		t.Fatalf("want ErrNotAdjacent, got %v", err)
	}
}

func TestFrameAtMissingTimestamp(t *testing.T) {
	l, err := NewLog(r3.Vector{}, testEntries(3))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := l.FrameAt(0.25); !errors.Is(err, ErrNoFrame) {
		t.Fatalf("want ErrNoFrame, got %v", err)
	}
}

func TestGroundtruthFeatureDetection(t *testing.T) {
	l, err := NewLog(r3.Vector{}, testEntries(2))
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := l.Groundtruth(); ok {
		t.Fatal("log without groundtruth reports one")
	}

	l.SetGroundtruth(&Groundtruth{Times: []float64{0}})
	if gt, ok := l.Groundtruth(); !ok || len(gt.Times) != 1 {
		t.Fatal("attached groundtruth not reported")
	}
}

func TestLogIntegratesWithTrack(t *testing.T) {
	l, err := NewLog(r3.Vector{}, testEntries(4))
	if err != nil {
		t.Fatal(err)
	}
	seed, err := l.SeedPose()
	if err != nil {
		t.Fatal(err)
	}
	traj, err := track.Integrate(l, l.Timestamps(math.Inf(-1), OpenEnd()), seed)
	if err != nil {
		t.Fatal(err)
	}
	if len(traj.Positions) != 4 {
		t.Fatalf("got %d poses, want 4", len(traj.Positions))
	}
	if traj.Positions[0] != seed.Position {
		t.Fatal("seed position not passed through")
	}
}
