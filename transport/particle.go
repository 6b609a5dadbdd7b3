/*package transport advances single particles through the geometry: the
random walk from birth to absorption, escape, cutoff or death, including
surface crossings, boundary conditions, survival biasing and the
lost-particle recovery loop.
*/
package transport

import (
	"gomc/geom"
	"gomc/physics"
	"gomc/rng"
)

// ParticleType tags the species being transported.
type ParticleType int

const (
	Neutron ParticleType = iota
	Photon
)

// State is the transport state machine. Birth, InFlight, AtBoundary and
// Colliding are live states; the rest are terminal.
type State int

const (
	Birth State = iota
	InFlight
	AtBoundary
	Colliding

	Absorbed
	Escaped
	Cutoff
	Killed
)

// Terminal reports whether the state ends a history.
func (s State) Terminal() bool { return s >= Absorbed }

func (s State) String() string {
	switch s {
	case Birth:
		return "birth"
	case InFlight:
		return "in-flight"
	case AtBoundary:
		return "at-boundary"
	case Colliding:
		return "colliding"
	case Absorbed:
		return "absorbed"
	case Escaped:
		return "escaped"
	case Cutoff:
		return "cutoff"
	case Killed:
		return "killed"
	}
	return "unknown"
}

// Snapshot is a copy of the scoring-relevant particle state, taken before
// and after each step so estimators can form pre/post differences.
type Snapshot struct {
	Pos, Dir       geom.Vec
	Weight, Energy float64
	Cell, Material int
}

// Score selects a tally estimator.
type Score int

const (
	// ScoreTrack is scored over each flight segment; the contribution is
	// weight times the path length between the two snapshots.
	ScoreTrack Score = iota
	// ScoreCollision is scored at each collision point.
	ScoreCollision
)

// Scorer accepts tally contributions. Calls within one cycle may arrive
// in any order; implementations must be order-independent.
type Scorer interface {
	Score(pre, post *Snapshot, kind Score)
}

// Particle is one history's full mutable state. It is owned exclusively by
// the transport call advancing it; the coordinate stack and site buffer
// are reused across histories.
type Particle struct {
	ID   int64
	Type ParticleType

	Coords geom.CoordStack

	Weight, Energy float64
	State          State

	// Last is the snapshot taken at the most recent collision (or birth),
	// updated before live state mutates.
	Last Snapshot

	// Surface is the handle of the last crossed surface, -1 if none.
	Surface   int
	Material  int
	BirthCell int

	Collisions int

	Stream *rng.Stream

	// Sites collects the fission sites banked during this history, in
	// creation order. The slice is reset, not reallocated, per history.
	Sites []physics.Site
}

// InitFromSite readies the particle to transport one history starting at
// the given source site. The stream must already be positioned at the
// history's seed.
func (p *Particle) InitFromSite(id int64, site *physics.Site,
	rootUniverse int, stream *rng.Stream) {

	p.ID = id
	p.Type = Neutron
	p.Coords.Reset(site.Pos, site.Dir, rootUniverse)
	p.Weight = site.Weight
	p.Energy = site.Energy
	p.State = Birth
	p.Surface = -1
	p.Material = -1
	p.BirthCell = -1
	p.Collisions = 0
	p.Stream = stream
	p.Sites = p.Sites[:0]
	p.Last = Snapshot{Cell: -1, Material: -1}
}

// snapshot captures the current state of the deepest frame.
func (p *Particle) snapshot() Snapshot {
	fr := p.Coords.Deepest()
	return Snapshot{
		Pos:      p.Coords.Root().Pos,
		Dir:      fr.Dir,
		Weight:   p.Weight,
		Energy:   p.Energy,
		Cell:     fr.Cell,
		Material: p.Material,
	}
}
