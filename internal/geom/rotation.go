// Package geom provides the rigid-body geometry primitives shared by the
// trajectory pipeline: an opaque Rotation value type, relative rigid
// transforms, and timestamped poses.
//
// Rotation is backed by a unit quaternion. Composition and inversion are
// exact group operations (modulo float rounding), which keeps long
// dead-reckoning chains norm-preserving without periodic re-orthogonalisation
// of a matrix representation. Matrices are produced on demand where a frame
// construction genuinely needs one.
package geom

import (
	"errors"
	"fmt"
	"math"

	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/num/quat"
)

// ErrInvalidInput reports a malformed vector or matrix shape at the boundary
// where untyped data (log rows, raw slices) enters the typed geometry API.
var ErrInvalidInput = errors.New("geom: invalid input shape")

// Rotation is a proper orthogonal transform of 3-space. The zero value is
// not valid; use Identity or one of the constructors. Rotation has value
// semantics: Compose, Invert and the apply methods never mutate their
// receiver.
type Rotation struct {
	q quat.Number
}

// Identity returns the no-op rotation.
func Identity() Rotation {
	return Rotation{q: quat.Number{Real: 1}}
}

// NewRotationFromQuaternion builds a Rotation from quaternion components
// (scalar first). The input need not be normalised; a zero quaternion is
// rejected.
func NewRotationFromQuaternion(w, x, y, z float64) (Rotation, error) {
	n := math.Sqrt(w*w + x*x + y*y + z*z)
	if n == 0 || math.IsNaN(n) || math.IsInf(n, 0) {
		return Rotation{}, fmt.Errorf("%w: quaternion norm %v", ErrInvalidInput, n)
	}
	return Rotation{q: quat.Number{Real: w / n, Imag: x / n, Jmag: y / n, Kmag: z / n}}, nil
}

// RotationAboutZ returns the rotation by angle radians about the z axis.
func RotationAboutZ(angle float64) Rotation {
	return Rotation{q: quat.Number{Real: math.Cos(angle / 2), Kmag: math.Sin(angle / 2)}}
}

// RotationAboutX returns the rotation by angle radians about the x axis.
func RotationAboutX(angle float64) Rotation {
	return Rotation{q: quat.Number{Real: math.Cos(angle / 2), Imag: math.Sin(angle / 2)}}
}

// RotationAboutY returns the rotation by angle radians about the y axis.
func RotationAboutY(angle float64) Rotation {
	return Rotation{q: quat.Number{Real: math.Cos(angle / 2), Jmag: math.Sin(angle / 2)}}
}

// NewRotationFromMatrix converts a 3x3 direction-cosine matrix into a
// Rotation. The matrix must be 3x3; orthogonality is the caller's contract
// (frame constructions compose orthogonal factors, so the product is
// orthogonal by construction). Uses Shepperd's method: picks the largest of
// the four quaternion components from the trace pattern to avoid
// cancellation.
func NewRotationFromMatrix(m mat.Matrix) (Rotation, error) {
	r, c := m.Dims()
	if r != 3 || c != 3 {
		return Rotation{}, fmt.Errorf("%w: rotation matrix must be 3x3, got %dx%d", ErrInvalidInput, r, c)
	}
	m00, m01, m02 := m.At(0, 0), m.At(0, 1), m.At(0, 2)
	m10, m11, m12 := m.At(1, 0), m.At(1, 1), m.At(1, 2)
	m20, m21, m22 := m.At(2, 0), m.At(2, 1), m.At(2, 2)

	var w, x, y, z float64
	tr := m00 + m11 + m22
	switch {
	case tr > 0:
		s := math.Sqrt(tr+1) * 2
		w = s / 4
		x = (m21 - m12) / s
		y = (m02 - m20) / s
		z = (m10 - m01) / s
	case m00 > m11 && m00 > m22:
		s := math.Sqrt(1+m00-m11-m22) * 2
		w = (m21 - m12) / s
		x = s / 4
		y = (m01 + m10) / s
		z = (m02 + m20) / s
	case m11 > m22:
		s := math.Sqrt(1+m11-m00-m22) * 2
		w = (m02 - m20) / s
		x = (m01 + m10) / s
		y = s / 4
		z = (m12 + m21) / s
	default:
		s := math.Sqrt(1+m22-m00-m11) * 2
		w = (m10 - m01) / s
		x = (m02 + m20) / s
		y = (m12 + m21) / s
		z = s / 4
	}
	return NewRotationFromQuaternion(w, x, y, z)
}

// Quaternion returns the backing unit quaternion (scalar first).
func (r Rotation) Quaternion() (w, x, y, z float64) {
	return r.q.Real, r.q.Imag, r.q.Jmag, r.q.Kmag
}

// Matrix returns the direction-cosine matrix equivalent of r.
func (r Rotation) Matrix() *mat.Dense {
	w, x, y, z := r.q.Real, r.q.Imag, r.q.Jmag, r.q.Kmag
	return mat.NewDense(3, 3, []float64{
		1 - 2*(y*y+z*z), 2 * (x*y - w*z), 2 * (x*z + w*y),
		2 * (x*y + w*z), 1 - 2*(x*x+z*z), 2 * (y*z - w*x),
		2 * (x*z - w*y), 2 * (y*z + w*x), 1 - 2*(x*x+y*y),
	})
}

// Apply rotates v by r.
func (r Rotation) Apply(v r3.Vector) r3.Vector {
	p := quat.Number{Imag: v.X, Jmag: v.Y, Kmag: v.Z}
	out := quat.Mul(quat.Mul(r.q, p), quat.Conj(r.q))
	return r3.Vector{X: out.Imag, Y: out.Jmag, Z: out.Kmag}
}

// ApplyInverse rotates v by the inverse of r.
func (r Rotation) ApplyInverse(v r3.Vector) r3.Vector {
	p := quat.Number{Imag: v.X, Jmag: v.Y, Kmag: v.Z}
	out := quat.Mul(quat.Mul(quat.Conj(r.q), p), r.q)
	return r3.Vector{X: out.Imag, Y: out.Jmag, Z: out.Kmag}
}

// Compose returns the rotation that applies o first and then r, matching
// matrix composition R_r · R_o. This is the operation used to push an
// incremental frame-to-frame rotation onto an accumulated attitude.
func (r Rotation) Compose(o Rotation) Rotation {
	q := quat.Mul(r.q, o.q)
	// Renormalise so long composition chains cannot drift off the unit
	// sphere.
	n := math.Sqrt(q.Real*q.Real + q.Imag*q.Imag + q.Jmag*q.Jmag + q.Kmag*q.Kmag)
	return Rotation{q: quat.Scale(1/n, q)}
}

// Invert returns the inverse rotation.
func (r Rotation) Invert() Rotation {
	return Rotation{q: quat.Conj(r.q)}
}

// EulerZXY decomposes r into extrinsic z-x-y Euler angles (radians):
// rotations about the fixed z, x and y axes in that order, composing to
// R = Ry·Rx·Rz. The first angle is the rotation about z, which for a
// vehicle attitude in a z-up frame is the yaw used by the diagnostic time
// series.
func (r Rotation) EulerZXY() (z, x, y float64) {
	m := r.Matrix()
	// R = Ry(y)·Rx(x)·Rz(z), so m12 = -sin(x), m10 = cos(x)sin(z),
	// m11 = cos(x)cos(z), m02 = sin(y)cos(x), m22 = cos(y)cos(x).
	sx := -m.At(1, 2)
	if sx > 1 {
		sx = 1
	} else if sx < -1 {
		sx = -1
	}
	x = math.Asin(sx)
	z = math.Atan2(m.At(1, 0), m.At(1, 1))
	y = math.Atan2(m.At(0, 2), m.At(2, 2))
	return z, x, y
}

// Yaw returns the rotation about z from the z-x-y decomposition.
func (r Rotation) Yaw() float64 {
	z, _, _ := r.EulerZXY()
	return z
}

// ApproxEqual reports whether r and o represent the same rotation within
// tol, accounting for the q/-q double cover.
func (r Rotation) ApproxEqual(o Rotation, tol float64) bool {
	d := quat.Mul(quat.Conj(r.q), o.q)
	return math.Abs(math.Abs(d.Real)-1) < tol
}

// VectorFromSlice converts a raw 3-element slice into an r3.Vector. Any
// other length is ErrInvalidInput; the value is never truncated or padded.
func VectorFromSlice(v []float64) (r3.Vector, error) {
	if len(v) != 3 {
		return r3.Vector{}, fmt.Errorf("%w: want 3 components, got %d", ErrInvalidInput, len(v))
	}
	return r3.Vector{X: v[0], Y: v[1], Z: v[2]}, nil
}

// VectorsFromSlices converts an N×3 batch, failing on the first malformed
// row.
func VectorsFromSlices(vs [][]float64) ([]r3.Vector, error) {
	out := make([]r3.Vector, len(vs))
	for i, v := range vs {
		p, err := VectorFromSlice(v)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i, err)
		}
		out[i] = p
	}
	return out, nil
}
