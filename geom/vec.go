/*package geom contains the constructive solid geometry model used by the
transport engine: implicit surfaces, cells defined by boolean regions over
surface half-spaces, universes, rectangular lattices, and the per-particle
coordinate stack that locates a point inside the nested model.
*/
package geom

import (
	"math"
)

// Vec is a three dimensional vector.
type Vec [3]float64

// Dot returns the inner product of v and u.
func (v *Vec) Dot(u *Vec) float64 {
	return v[0]*u[0] + v[1]*u[1] + v[2]*u[2]
}

// Norm returns the Euclidean length of v.
func (v *Vec) Norm() float64 {
	return math.Sqrt(v.Dot(v))
}

// AddSelf adds u to v in place.
func (v *Vec) AddSelf(u *Vec) {
	for i := 0; i < 3; i++ {
		v[i] += u[i]
	}
}

// SubSelf subtracts u from v in place.
func (v *Vec) SubSelf(u *Vec) {
	for i := 0; i < 3; i++ {
		v[i] -= u[i]
	}
}

// ScaleSelf multiplies v by s in place.
func (v *Vec) ScaleSelf(s float64) {
	for i := 0; i < 3; i++ {
		v[i] *= s
	}
}

// Translated returns v + u.
func (v Vec) Translated(u *Vec) Vec {
	return Vec{v[0] + u[0], v[1] + u[1], v[2] + u[2]}
}

// ShiftSelf advances v by a distance d along the unit direction u.
func (v *Vec) ShiftSelf(u *Vec, d float64) {
	for i := 0; i < 3; i++ {
		v[i] += u[i] * d
	}
}

// NormalizeSelf rescales v to unit length. Zero vectors are left alone.
func (v *Vec) NormalizeSelf() {
	n := v.Norm()
	if n == 0 {
		return
	}
	v.ScaleSelf(1 / n)
}
