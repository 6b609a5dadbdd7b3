/*package physics supplies the reaction-sampling service consumed by the
transport engine: flight distances, collision outcomes and secondary
fission sites. The engine only sees the Sampler interface; the multigroup
implementation in this package is what runs and tests use.
*/
package physics

import (
	"gomc/geom"
	"gomc/rng"
)

// Site is one fission (or external source) site: a particle birth record.
// It owns no geometry objects and is cheap to copy.
type Site struct {
	Pos    geom.Vec
	Dir    geom.Vec
	Energy float64
	Weight float64
}

// Reaction classifies the outcome of a collision.
type Reaction int

const (
	Scatter Reaction = iota
	Absorption
	Fission
)

func (r Reaction) String() string {
	switch r {
	case Scatter:
		return "scatter"
	case Absorption:
		return "absorption"
	case Fission:
		return "fission"
	}
	return "unknown"
}

// Outcome is the result of sampling one collision. Weight is the
// post-collision weight; zero means the particle did not survive. Dir and
// Energy are only meaningful for surviving particles.
type Outcome struct {
	Reaction Reaction
	Weight   float64
	Energy   float64
	Dir      geom.Vec
}

// Sampler is the reaction-sampling collaborator. Implementations must be
// safe for concurrent use by multiple workers: all mutable state lives in
// the per-history stream.
type Sampler interface {
	// DistanceToCollision samples the flight distance to the next
	// collision in the given material at the given energy. +Inf means the
	// material cannot collide (void).
	DistanceToCollision(material int, energy float64, s *rng.Stream) (float64, error)

	// Collide samples one collision. Secondary fission sites are appended
	// to sites and returned; they are banked by the caller, never
	// transported within the same history.
	Collide(material int, pos, dir geom.Vec, energy, weight float64,
		s *rng.Stream, sites []Site) (Outcome, []Site, error)
}

// IsotropicDir samples a direction uniformly over the unit sphere.
func IsotropicDir(s *rng.Stream) geom.Vec {
	return isotropicDir(s)
}
