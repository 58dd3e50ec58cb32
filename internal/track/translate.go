// Package track reconstructs absolute vehicle trajectories: it removes the
// fixed sensor mounting offset (boresight lever arm) from reported
// positions, and chains frame-to-frame relative transforms from an external
// aligner into an absolute dead-reckoned trajectory seeded by one known
// pose.
package track

import (
	"errors"
	"fmt"

	"github.com/golang/geo/r3"

	"github.com/argos-data/trackrecon/internal/geom"
)

// ErrInvalidInput reports mismatched batch lengths passed to a translation
// routine.
var ErrInvalidInput = errors.New("track: invalid input")

// TranslateToReference converts a sensor-reported position into the vehicle
// reference-point position by removing the boresight lever arm. The position
// is rotated into the body frame, the offset subtracted there, and the
// result rotated back:
//
//	att⁻¹ · (att · pos − boresight)
//
// The three-step order is deliberate and pinned by tests; do not fold it
// into a single rotated subtraction.
func TranslateToReference(pos r3.Vector, att geom.Rotation, boresight r3.Vector) r3.Vector {
	return att.ApplyInverse(att.Apply(pos).Sub(boresight))
}

// TranslateAllToReference applies TranslateToReference across parallel
// position and attitude sequences. The sequences must have equal length.
func TranslateAllToReference(pos []r3.Vector, att []geom.Rotation, boresight r3.Vector) ([]r3.Vector, error) {
	if len(pos) != len(att) {
		return nil, fmt.Errorf("%w: %d positions vs %d attitudes", ErrInvalidInput, len(pos), len(att))
	}
	out := make([]r3.Vector, len(pos))
	for i := range pos {
		out[i] = TranslateToReference(pos[i], att[i], boresight)
	}
	return out, nil
}
