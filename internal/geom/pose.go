package geom

import "github.com/golang/geo/r3"

// RigidTransform is the relative motion observed between two consecutive
// sensor frames: the translation is expressed in the earlier pose's body
// frame, the rotation carries the earlier attitude into the later one.
type RigidTransform struct {
	Translation r3.Vector
	Rotation    Rotation
}

// IdentityTransform returns the zero-motion transform.
func IdentityTransform() RigidTransform {
	return RigidTransform{Rotation: Identity()}
}

// Pose is an absolute position and attitude at one timestamp. Position is
// ECEF metres; Attitude maps ECEF vectors into the vehicle body frame.
type Pose struct {
	Time     float64
	Position r3.Vector
	Attitude Rotation
}
