package geom

import (
	"fmt"
	"math"
)

const (
	// coincTol is the distance below which an intersection is treated as
	// coincident with the ray origin and skipped, so that a particle
	// sitting on a surface never reports a zero crossing distance.
	coincTol = 1e-12

	// senseNudge is the offset applied along the direction of flight when
	// classifying a point that lies exactly on a surface. Tie-breaking by
	// direction keeps localization deterministic.
	senseNudge = 1e-9
)

// SurfaceKind tags the algebraic form of a surface.
type SurfaceKind int

const (
	XPlane SurfaceKind = iota
	YPlane
	ZPlane
	Plane
	XCylinder
	YCylinder
	ZCylinder
	SphereSurf
	XCone
	YCone
	ZCone
	Quadric
	BoxSurf
)

// String returns the name used for the kind in model files.
func (k SurfaceKind) String() string {
	switch k {
	case XPlane:
		return "x-plane"
	case YPlane:
		return "y-plane"
	case ZPlane:
		return "z-plane"
	case Plane:
		return "plane"
	case XCylinder:
		return "x-cylinder"
	case YCylinder:
		return "y-cylinder"
	case ZCylinder:
		return "z-cylinder"
	case SphereSurf:
		return "sphere"
	case XCone:
		return "x-cone"
	case YCone:
		return "y-cone"
	case ZCone:
		return "z-cone"
	case Quadric:
		return "quadric"
	case BoxSurf:
		return "box"
	}
	return fmt.Sprintf("SurfaceKind(%d)", int(k))
}

// coeffCounts gives the required coefficient count for each surface kind.
var coeffCounts = map[SurfaceKind]int{
	XPlane: 1, YPlane: 1, ZPlane: 1, Plane: 4,
	XCylinder: 3, YCylinder: 3, ZCylinder: 3,
	SphereSurf: 4, XCone: 4, YCone: 4, ZCone: 4,
	Quadric: 10, BoxSurf: 6,
}

// BoundaryKind is the condition applied when a particle crosses a surface
// that bounds the model.
type BoundaryKind int

const (
	BCTransmit BoundaryKind = iota
	BCVacuum
	BCReflective
	BCPeriodic
)

// Surface is an implicit algebraic boundary f(x, y, z) = 0. Surfaces are
// built once at model construction time and read-only afterwards.
type Surface struct {
	ID     int
	Kind   SurfaceKind
	Coeffs []float64
	BC     BoundaryKind
	// Periodic is the handle of the paired surface for BCPeriodic, -1
	// otherwise. Filled in by Model.Finalize.
	Periodic int

	// Neighbor lists cache the cells known to touch each side of the
	// surface. They only prune candidates during localization and never
	// change resolved answers.
	neighborPos, neighborNeg []int
}

// Evaluate returns the signed value of the surface equation at p. The
// positive half-space is f > 0.
func (s *Surface) Evaluate(p *Vec) float64 {
	c := s.Coeffs
	switch s.Kind {
	case XPlane:
		return p[0] - c[0]
	case YPlane:
		return p[1] - c[0]
	case ZPlane:
		return p[2] - c[0]
	case Plane:
		return c[0]*p[0] + c[1]*p[1] + c[2]*p[2] - c[3]
	case XCylinder:
		dy, dz := p[1]-c[0], p[2]-c[1]
		return dy*dy + dz*dz - c[2]*c[2]
	case YCylinder:
		dx, dz := p[0]-c[0], p[2]-c[1]
		return dx*dx + dz*dz - c[2]*c[2]
	case ZCylinder:
		dx, dy := p[0]-c[0], p[1]-c[1]
		return dx*dx + dy*dy - c[2]*c[2]
	case SphereSurf:
		dx, dy, dz := p[0]-c[0], p[1]-c[1], p[2]-c[2]
		return dx*dx + dy*dy + dz*dz - c[3]*c[3]
	case XCone:
		dx, dy, dz := p[0]-c[0], p[1]-c[1], p[2]-c[2]
		return dy*dy + dz*dz - c[3]*dx*dx
	case YCone:
		dx, dy, dz := p[0]-c[0], p[1]-c[1], p[2]-c[2]
		return dx*dx + dz*dz - c[3]*dy*dy
	case ZCone:
		dx, dy, dz := p[0]-c[0], p[1]-c[1], p[2]-c[2]
		return dx*dx + dy*dy - c[3]*dz*dz
	case Quadric:
		x, y, z := p[0], p[1], p[2]
		return c[0]*x*x + c[1]*y*y + c[2]*z*z +
			c[3]*x*y + c[4]*y*z + c[5]*x*z +
			c[6]*x + c[7]*y + c[8]*z + c[9]
	case BoxSurf:
		// Negative inside the box. The value is the largest slab excess.
		f := math.Inf(-1)
		for i := 0; i < 3; i++ {
			if v := math.Abs(p[i]-c[i]) - c[3+i]; v > f {
				f = v
			}
		}
		return f
	}
	panic("unknown surface kind")
}

// Sense reports which side of the surface p is on, using the direction of
// flight u to break ties when p lies on the surface itself. Returns true
// for the positive half-space.
func (s *Surface) Sense(p, u *Vec) bool {
	f := s.Evaluate(p)
	if math.Abs(f) < coincTol {
		nudged := *p
		nudged.ShiftSelf(u, senseNudge)
		f = s.Evaluate(&nudged)
	}
	return f > 0
}

// quadCoeffs returns the coefficients of f(p + t u) = a t^2 + b t + c for
// the quadratic surface kinds.
func (s *Surface) quadCoeffs(p, u *Vec) (a, b, c float64) {
	k := s.Coeffs
	switch s.Kind {
	case XCylinder:
		dy, dz := p[1]-k[0], p[2]-k[1]
		a = u[1]*u[1] + u[2]*u[2]
		b = 2 * (dy*u[1] + dz*u[2])
		c = dy*dy + dz*dz - k[2]*k[2]
	case YCylinder:
		dx, dz := p[0]-k[0], p[2]-k[1]
		a = u[0]*u[0] + u[2]*u[2]
		b = 2 * (dx*u[0] + dz*u[2])
		c = dx*dx + dz*dz - k[2]*k[2]
	case ZCylinder:
		dx, dy := p[0]-k[0], p[1]-k[1]
		a = u[0]*u[0] + u[1]*u[1]
		b = 2 * (dx*u[0] + dy*u[1])
		c = dx*dx + dy*dy - k[2]*k[2]
	case SphereSurf:
		dx, dy, dz := p[0]-k[0], p[1]-k[1], p[2]-k[2]
		a = 1
		b = 2 * (dx*u[0] + dy*u[1] + dz*u[2])
		c = dx*dx + dy*dy + dz*dz - k[3]*k[3]
	case XCone:
		dx, dy, dz := p[0]-k[0], p[1]-k[1], p[2]-k[2]
		a = u[1]*u[1] + u[2]*u[2] - k[3]*u[0]*u[0]
		b = 2 * (dy*u[1] + dz*u[2] - k[3]*dx*u[0])
		c = dy*dy + dz*dz - k[3]*dx*dx
	case YCone:
		dx, dy, dz := p[0]-k[0], p[1]-k[1], p[2]-k[2]
		a = u[0]*u[0] + u[2]*u[2] - k[3]*u[1]*u[1]
		b = 2 * (dx*u[0] + dz*u[2] - k[3]*dy*u[1])
		c = dx*dx + dz*dz - k[3]*dy*dy
	case ZCone:
		dx, dy, dz := p[0]-k[0], p[1]-k[1], p[2]-k[2]
		a = u[0]*u[0] + u[1]*u[1] - k[3]*u[2]*u[2]
		b = 2 * (dx*u[0] + dy*u[1] - k[3]*dz*u[2])
		c = dx*dx + dy*dy - k[3]*dz*dz
	case Quadric:
		A, B, C := k[0], k[1], k[2]
		D, E, F := k[3], k[4], k[5]
		G, H, J := k[6], k[7], k[8]
		x, y, z := p[0], p[1], p[2]
		a = A*u[0]*u[0] + B*u[1]*u[1] + C*u[2]*u[2] +
			D*u[0]*u[1] + E*u[1]*u[2] + F*u[0]*u[2]
		b = 2*(A*x*u[0]+B*y*u[1]+C*z*u[2]) +
			D*(x*u[1]+y*u[0]) + E*(y*u[2]+z*u[1]) + F*(x*u[2]+z*u[0]) +
			G*u[0] + H*u[1] + J*u[2]
		c = s.Evaluate(p)
	}
	return a, b, c
}

// Distance returns the smallest distance greater than coincTol at which the
// ray p + t u intersects the surface, or +Inf if the ray misses it.
func (s *Surface) Distance(p, u *Vec) float64 {
	switch s.Kind {
	case XPlane:
		return planeDistance(p[0]-s.Coeffs[0], u[0])
	case YPlane:
		return planeDistance(p[1]-s.Coeffs[0], u[1])
	case ZPlane:
		return planeDistance(p[2]-s.Coeffs[0], u[2])
	case Plane:
		c := s.Coeffs
		f := c[0]*p[0] + c[1]*p[1] + c[2]*p[2] - c[3]
		du := c[0]*u[0] + c[1]*u[1] + c[2]*u[2]
		return planeDistance(f, du)
	case BoxSurf:
		return s.boxDistance(p, u)
	default:
		a, b, c := s.quadCoeffs(p, u)
		return quadDistance(a, b, c)
	}
}

func planeDistance(f, du float64) float64 {
	if du == 0 {
		return math.Inf(1)
	}
	d := -f / du
	if d <= coincTol {
		return math.Inf(1)
	}
	return d
}

// quadDistance returns the smallest positive root of a t^2 + b t + c = 0,
// skipping roots within coincTol of zero.
func quadDistance(a, b, c float64) float64 {
	if a == 0 {
		return planeDistance(c, b)
	}
	disc := b*b - 4*a*c
	if disc < 0 {
		return math.Inf(1)
	}
	q := math.Sqrt(disc)
	// Stable form: compute the root of larger magnitude first.
	var t1, t2 float64
	if b >= 0 {
		t1 = (-b - q) / (2 * a)
	} else {
		t1 = (-b + q) / (2 * a)
	}
	if t1 != 0 {
		t2 = c / (a * t1)
	} else {
		t2 = -b / a
	}
	if t1 > t2 {
		t1, t2 = t2, t1
	}
	if t1 > coincTol {
		return t1
	}
	if t2 > coincTol {
		return t2
	}
	return math.Inf(1)
}

// boxDistance is the slab-method ray/box intersection. Both the entry and
// exit crossings count; the nearest one past coincTol wins.
func (s *Surface) boxDistance(p, u *Vec) float64 {
	c := s.Coeffs
	tLow, tHigh := math.Inf(-1), math.Inf(1)
	for i := 0; i < 3; i++ {
		lo, hi := c[i]-c[3+i], c[i]+c[3+i]
		if u[i] == 0 {
			if p[i] < lo || p[i] > hi {
				return math.Inf(1)
			}
			continue
		}
		t0 := (lo - p[i]) / u[i]
		t1 := (hi - p[i]) / u[i]
		if t0 > t1 {
			t0, t1 = t1, t0
		}
		if t0 > tLow {
			tLow = t0
		}
		if t1 < tHigh {
			tHigh = t1
		}
	}
	if tLow > tHigh {
		return math.Inf(1)
	}
	if tLow > coincTol {
		return tLow
	}
	if tHigh > coincTol {
		return tHigh
	}
	return math.Inf(1)
}

// Normal returns the unit outward (gradient direction) normal at p.
func (s *Surface) Normal(p *Vec) Vec {
	c := s.Coeffs
	var n Vec
	switch s.Kind {
	case XPlane:
		n = Vec{1, 0, 0}
	case YPlane:
		n = Vec{0, 1, 0}
	case ZPlane:
		n = Vec{0, 0, 1}
	case Plane:
		n = Vec{c[0], c[1], c[2]}
	case XCylinder:
		n = Vec{0, p[1] - c[0], p[2] - c[1]}
	case YCylinder:
		n = Vec{p[0] - c[0], 0, p[2] - c[1]}
	case ZCylinder:
		n = Vec{p[0] - c[0], p[1] - c[1], 0}
	case SphereSurf:
		n = Vec{p[0] - c[0], p[1] - c[1], p[2] - c[2]}
	case XCone:
		dx, dy, dz := p[0]-c[0], p[1]-c[1], p[2]-c[2]
		n = Vec{-c[3] * dx, dy, dz}
	case YCone:
		dx, dy, dz := p[0]-c[0], p[1]-c[1], p[2]-c[2]
		n = Vec{dx, -c[3] * dy, dz}
	case ZCone:
		dx, dy, dz := p[0]-c[0], p[1]-c[1], p[2]-c[2]
		n = Vec{dx, dy, -c[3] * dz}
	case Quadric:
		x, y, z := p[0], p[1], p[2]
		n = Vec{
			2*c[0]*x + c[3]*y + c[5]*z + c[6],
			2*c[1]*y + c[3]*x + c[4]*z + c[7],
			2*c[2]*z + c[4]*y + c[5]*x + c[8],
		}
	case BoxSurf:
		// Normal of the face with the largest slab excess.
		best, bi := math.Inf(-1), 0
		for i := 0; i < 3; i++ {
			if v := math.Abs(p[i]-c[i]) - c[3+i]; v > best {
				best, bi = v, i
			}
		}
		n[bi] = math.Copysign(1, p[bi]-c[bi])
	}
	n.NormalizeSelf()
	return n
}

// Reflect mirrors the direction u about the surface normal at p. The
// magnitude of u is preserved.
func (s *Surface) Reflect(p, u *Vec) Vec {
	n := s.Normal(p)
	d := 2 * u.Dot(&n)
	return Vec{u[0] - d*n[0], u[1] - d*n[1], u[2] - d*n[2]}
}
