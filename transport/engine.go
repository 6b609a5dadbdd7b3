package transport

import (
	"fmt"
	"math"

	"gomc/geom"
	"gomc/physics"
)

// Config carries the run settings the engine needs. Defaults follow
// DefaultConfig.
type Config struct {
	// WeightCutoff and WeightSurvive drive the Russian roulette game: a
	// particle under the cutoff either dies or has its weight restored to
	// WeightSurvive.
	WeightCutoff, WeightSurvive float64
	// EnergyCutoff kills particles that slow below it.
	EnergyCutoff float64
	// MaxLostRetries bounds the micro-step nudge loop before a stuck
	// particle is given up on.
	MaxLostRetries int
}

// DefaultConfig returns the standard settings: weight cutoff 0.25,
// survival weight 1.0, no energy cutoff, 5 retries.
func DefaultConfig() Config {
	return Config{
		WeightCutoff:   0.25,
		WeightSurvive:  1.0,
		EnergyCutoff:   0.0,
		MaxLostRetries: 5,
	}
}

// lostNudge is the micro-step applied when a particle fails to resolve
// after a crossing.
const lostNudge = 1e-9

// Engine transports particles through one model with one sampler. Each
// worker owns its own Engine; the model and sampler are shared read-only,
// while the lost-particle counter is private to the worker.
type Engine struct {
	Model   *geom.Model
	Sampler physics.Sampler
	// Scorer may be nil during inactive cycles.
	Scorer Scorer
	Cfg    Config

	// Lost counts particles killed by the stuck-particle recovery loop.
	Lost int64
}

// NewEngine returns an engine with the given collaborators.
func NewEngine(m *geom.Model, s physics.Sampler, cfg Config) *Engine {
	return &Engine{Model: m, Sampler: s, Cfg: cfg}
}

// TransportOne advances the particle to a terminal state and returns it.
// Geometry errors at birth and sampler errors are fatal and abort the
// history with a non-nil error; a stuck particle is killed locally and
// counted instead.
func (e *Engine) TransportOne(p *Particle) (State, error) {
	if p.State == Birth {
		if err := e.Model.Locate(&p.Coords, p.ID); err != nil {
			return p.State, err
		}
		p.BirthCell = p.Coords.Deepest().Cell
		e.resolveMaterial(p)
		p.Last = p.snapshot()
		p.State = InFlight
	}

	for !p.State.Terminal() {
		dColl := math.Inf(1)
		if p.Material >= 0 {
			var err error
			dColl, err = e.Sampler.DistanceToCollision(
				p.Material, p.Energy, p.Stream)
			if err != nil {
				return p.State, fmt.Errorf(
					"transport: particle %d: %v", p.ID, err)
			}
		}

		b := e.Model.DistanceToBoundary(&p.Coords)
		if math.IsInf(b.Distance, 1) && math.IsInf(dColl, 1) {
			// A void cell with no exit means the model is defective.
			fr := p.Coords.Root()
			return p.State, &geom.GeometryError{
				ParticleID: p.ID,
				Universe:   e.Model.Universes[fr.Universe].ID,
				Pos:        fr.Pos,
			}
		}

		if b.Distance < dColl {
			p.State = AtBoundary
			if err := e.crossBoundary(p, &b); err != nil {
				return p.State, err
			}
		} else {
			p.State = Colliding
			if err := e.collide(p, dColl); err != nil {
				return p.State, err
			}
		}
	}
	return p.State, nil
}

// resolveMaterial refreshes the particle's material handle from the
// deepest resolved cell.
func (e *Engine) resolveMaterial(p *Particle) {
	p.Material = e.Model.Cells[p.Coords.Deepest().Cell].Material
}

// crossBoundary moves the particle to the boundary and applies the
// boundary condition or re-resolves the far side.
func (e *Engine) crossBoundary(p *Particle, b *geom.Boundary) error {
	pre := p.snapshot()
	p.Coords.Advance(b.Distance)
	if e.Scorer != nil {
		post := p.snapshot()
		e.Scorer.Score(&pre, &post, ScoreTrack)
	}

	if b.Surface < 0 {
		// Lattice element wall: step the index and re-resolve below.
		err := e.Model.CrossLattice(
			&p.Coords, b.Level, b.LatticeAxis, b.LatticeDir, p.ID)
		if err != nil {
			return e.recoverLost(p, err)
		}
		e.resolveMaterial(p)
		p.State = InFlight
		return nil
	}

	s := &e.Model.Surfaces[b.Surface]
	fr := p.Coords.Frame(b.Level)
	p.Surface = b.Surface

	switch s.BC {
	case geom.BCVacuum:
		p.State = Escaped
		return nil

	case geom.BCReflective:
		newDir := s.Reflect(&fr.Pos, &fr.Dir)
		p.Coords.SetDir(&newDir)
		p.State = InFlight
		return nil

	case geom.BCPeriodic:
		t, err := e.Model.PeriodicTranslation(s)
		if err != nil {
			return err
		}
		root := p.Coords.Root()
		root.Pos.AddSelf(&t)
		p.Coords.Truncate(0)
		if err := e.Model.Locate(&p.Coords, p.ID); err != nil {
			return e.recoverLost(p, err)
		}
		e.resolveMaterial(p)
		p.State = InFlight
		return nil

	default:
		// Transmission: resolve the far side at the crossing level. The
		// stack is pruned back to the common level and rebuilt from
		// there, never from the root. Neighbor cells of the surface on
		// the new side are tried first.
		sense := s.Sense(&fr.Pos, &fr.Dir)
		hint := s.Neighbors(sense)
		err := e.Model.LocateFrom(&p.Coords, b.Level, p.ID, hint)
		if err != nil {
			return e.recoverLost(p, err)
		}
		e.resolveMaterial(p)
		p.State = InFlight
		return nil
	}
}

// recoverLost is the bounded micro-step retry loop for a particle that
// failed to resolve after a crossing: nudge forward, re-resolve from the
// root, give up after MaxLostRetries and kill just this particle.
func (e *Engine) recoverLost(p *Particle, cause error) error {
	if _, ok := cause.(*geom.GeometryError); !ok {
		return cause
	}
	for try := 0; try < e.Cfg.MaxLostRetries; try++ {
		p.Coords.Truncate(0)
		p.Coords.NudgeRoot(lostNudge)
		if err := e.Model.Locate(&p.Coords, p.ID); err == nil {
			e.resolveMaterial(p)
			p.State = InFlight
			return nil
		}
	}
	e.Lost++
	p.State = Killed
	return nil
}

// collide moves the particle to the collision site, samples the reaction
// and applies its outcome, including the roulette game.
func (e *Engine) collide(p *Particle, d float64) error {
	pre := p.snapshot()
	p.Coords.Advance(d)

	// The pre-collision snapshot is updated before any live state
	// mutates, so estimators can difference across the collision.
	p.Last = p.snapshot()
	if e.Scorer != nil {
		e.Scorer.Score(&pre, &p.Last, ScoreTrack)
	}

	fr := p.Coords.Deepest()
	out, sites, err := e.Sampler.Collide(
		p.Material, p.Coords.Root().Pos, fr.Dir, p.Energy, p.Weight,
		p.Stream, p.Sites)
	if err != nil {
		return fmt.Errorf("transport: particle %d: %v", p.ID, err)
	}
	p.Sites = sites
	p.Collisions++

	if out.Weight <= 0 {
		p.State = Absorbed
		return nil
	}

	p.Weight = out.Weight
	p.Energy = out.Energy
	p.Coords.SetDir(&out.Dir)

	if e.Scorer != nil {
		post := p.snapshot()
		e.Scorer.Score(&p.Last, &post, ScoreCollision)
	}

	if p.Energy < e.Cfg.EnergyCutoff {
		p.State = Cutoff
		return nil
	}

	// Russian roulette below the weight cutoff.
	if p.Weight < e.Cfg.WeightCutoff {
		if p.Stream.Float64() < p.Weight/e.Cfg.WeightSurvive {
			p.Weight = e.Cfg.WeightSurvive
		} else {
			p.State = Killed
			return nil
		}
	}

	p.State = InFlight
	return nil
}
