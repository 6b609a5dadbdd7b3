package geom

import (
	"fmt"
)

// GeometryError reports a point that could not be resolved to any cell.
// It is fatal: an unresolvable point means the model itself is defective.
type GeometryError struct {
	ParticleID int64
	Universe   int
	Pos        Vec
}

func (e *GeometryError) Error() string {
	return fmt.Sprintf(
		"geometry: particle %d at (%g, %g, %g) is not inside any cell of universe %d",
		e.ParticleID, e.Pos[0], e.Pos[1], e.Pos[2], e.Universe,
	)
}

// Model is the immutable geometry graph: flat arrays of surfaces, cells,
// universes and lattices, cross-referenced by integer handles. Build it
// with the Add* methods, then call Finalize once. After Finalize the model
// is read-only and safe to share between workers without locking.
type Model struct {
	Surfaces  []Surface
	Cells     []Cell
	Universes []Universe
	Lattices  []Lattice

	// Root is the handle of the base universe.
	Root int

	surfByID map[int]int
	univByID map[int]int
	done     bool
}

// NewModel returns an empty model under construction.
func NewModel() *Model {
	return &Model{
		Root:     -1,
		surfByID: make(map[int]int),
		univByID: make(map[int]int),
	}
}

// AddSurface registers a surface and returns its handle.
func (m *Model) AddSurface(id int, kind SurfaceKind, coeffs []float64,
	bc BoundaryKind) (int, error) {

	if m.done {
		return -1, fmt.Errorf("geometry: model already finalized")
	}
	if _, dup := m.surfByID[id]; dup {
		return -1, fmt.Errorf("geometry: duplicate surface id %d", id)
	}
	if want := coeffCounts[kind]; len(coeffs) != want {
		return -1, fmt.Errorf(
			"geometry: surface %d: %s needs %d coefficients, got %d",
			id, kind, want, len(coeffs))
	}
	h := len(m.Surfaces)
	m.Surfaces = append(m.Surfaces, Surface{
		ID: id, Kind: kind, Coeffs: coeffs, BC: bc, Periodic: -1,
	})
	m.surfByID[id] = h
	return h, nil
}

// PairPeriodic links two periodic surfaces by user ID.
func (m *Model) PairPeriodic(idA, idB int) error {
	ha, ok := m.surfByID[idA]
	if !ok {
		return fmt.Errorf("geometry: unknown surface id %d", idA)
	}
	hb, ok := m.surfByID[idB]
	if !ok {
		return fmt.Errorf("geometry: unknown surface id %d", idB)
	}
	sa, sb := &m.Surfaces[ha], &m.Surfaces[hb]
	if sa.BC != BCPeriodic || sb.BC != BCPeriodic {
		return fmt.Errorf(
			"geometry: surfaces %d and %d must both be periodic", idA, idB)
	}
	sa.Periodic, sb.Periodic = hb, ha
	return nil
}

// AddUniverse registers an empty universe and returns its handle.
func (m *Model) AddUniverse(id int) (int, error) {
	if m.done {
		return -1, fmt.Errorf("geometry: model already finalized")
	}
	if _, dup := m.univByID[id]; dup {
		return -1, fmt.Errorf("geometry: duplicate universe id %d", id)
	}
	h := len(m.Universes)
	m.Universes = append(m.Universes, Universe{ID: id, Level: -1})
	m.univByID[id] = h
	return h, nil
}

// UniverseHandle resolves a universe user ID to its handle.
func (m *Model) UniverseHandle(id int) (int, bool) {
	h, ok := m.univByID[id]
	return h, ok
}

// SurfaceHandle resolves a surface user ID to its handle.
func (m *Model) SurfaceHandle(id int) (int, bool) {
	h, ok := m.surfByID[id]
	return h, ok
}

// CellSpec describes one cell for AddCell. Exactly one of the fill fields
// applies, chosen by Fill.
type CellSpec struct {
	ID       int
	Universe int // universe handle returned by AddUniverse
	Region   string

	Fill        FillKind
	Material    int // material handle, -1 for void
	FillUniv    int // universe handle
	FillLat     int // lattice handle
	Translation Vec
}

// AddCell parses the region expression, registers the cell in its universe
// and returns the cell handle. Surface IDs in the region are resolved to
// handles immediately.
func (m *Model) AddCell(spec CellSpec) (int, error) {
	if m.done {
		return -1, fmt.Errorf("geometry: model already finalized")
	}
	if spec.Universe < 0 || spec.Universe >= len(m.Universes) {
		return -1, fmt.Errorf(
			"geometry: cell %d: bad universe handle %d", spec.ID, spec.Universe)
	}
	toks, err := ParseRegion(spec.Region)
	if err != nil {
		return -1, fmt.Errorf("geometry: cell %d: %v", spec.ID, err)
	}
	if err := validateRegion(toks); err != nil {
		return -1, fmt.Errorf("geometry: cell %d: %v", spec.ID, err)
	}

	c := Cell{
		ID:          spec.ID,
		Universe:    spec.Universe,
		Fill:        spec.Fill,
		Material:    -1,
		FillUniv:    -1,
		FillLat:     -1,
		ParentCell:  -1,
		Translation: spec.Translation,
		Tokens:      toks,
	}
	switch spec.Fill {
	case FillMaterial:
		c.Material = spec.Material
	case FillUniverse:
		c.FillUniv = spec.FillUniv
	case FillLattice:
		c.FillLat = spec.FillLat
	}

	seen := make(map[int]bool)
	for i := range c.Tokens {
		t := &c.Tokens[i]
		if t.Kind != TokSurface {
			continue
		}
		h, ok := m.surfByID[t.Surface]
		if !ok {
			return -1, fmt.Errorf(
				"geometry: cell %d references unknown surface %d",
				spec.ID, t.Surface)
		}
		t.Surface = h
		if !seen[h] {
			seen[h] = true
			c.surfaces = append(c.surfaces, h)
		}
	}

	ch := len(m.Cells)
	m.Cells = append(m.Cells, c)
	m.Universes[spec.Universe].Cells = append(
		m.Universes[spec.Universe].Cells, ch)
	return ch, nil
}

// AddLattice registers a lattice and returns its handle. Universes holds
// universe handles in x-fastest order and Outer must be a universe handle
// or -1. For 2D lattices set Shape[2] = 1, Pitch[2] = 0 and Lower[2] = 0
// so that z passes through unchanged.
func (m *Model) AddLattice(l Lattice) (int, error) {
	if m.done {
		return -1, fmt.Errorf("geometry: model already finalized")
	}
	n := l.Shape[0] * l.Shape[1] * l.Shape[2]
	if n <= 0 || len(l.Universes) != n {
		return -1, fmt.Errorf(
			"geometry: lattice %d: shape %v needs %d universes, got %d",
			l.ID, l.Shape, n, len(l.Universes))
	}
	h := len(m.Lattices)
	m.Lattices = append(m.Lattices, l)
	return h, nil
}

// SetRoot marks the base universe by handle.
func (m *Model) SetRoot(univ int) {
	m.Root = univ
}

// Finalize validates cross-references, assigns universe nesting levels,
// links lattice-embedded parent cells and builds the per-surface neighbor
// lists. The model is read-only afterwards.
func (m *Model) Finalize() error {
	if m.done {
		return fmt.Errorf("geometry: model already finalized")
	}
	if m.Root < 0 || m.Root >= len(m.Universes) {
		return fmt.Errorf("geometry: no root universe set")
	}
	for ci := range m.Cells {
		c := &m.Cells[ci]
		switch c.Fill {
		case FillUniverse:
			if c.FillUniv < 0 || c.FillUniv >= len(m.Universes) {
				return fmt.Errorf(
					"geometry: cell %d fills unknown universe handle %d",
					c.ID, c.FillUniv)
			}
		case FillLattice:
			if c.FillLat < 0 || c.FillLat >= len(m.Lattices) {
				return fmt.Errorf(
					"geometry: cell %d fills unknown lattice handle %d",
					c.ID, c.FillLat)
			}
			lat := &m.Lattices[c.FillLat]
			for _, uh := range lat.Universes {
				if uh < 0 || uh >= len(m.Universes) {
					return fmt.Errorf(
						"geometry: lattice %d maps to unknown universe handle %d",
						lat.ID, uh)
				}
				for _, nested := range m.Universes[uh].Cells {
					m.Cells[nested].ParentCell = ci
				}
			}
		}
	}

	if err := m.assignLevels(); err != nil {
		return err
	}
	m.buildNeighborLists()
	m.done = true
	return nil
}

// assignLevels walks the universe graph from the root, setting nesting
// levels and rejecting cycles (a universe reachable from itself).
func (m *Model) assignLevels() error {
	const (
		unvisited = -1
		onPath    = -2
	)
	for ui := range m.Universes {
		m.Universes[ui].Level = unvisited
	}

	var walk func(uh, level int) error
	walk = func(uh, level int) error {
		u := &m.Universes[uh]
		if u.Level == onPath {
			return fmt.Errorf(
				"geometry: universe %d is nested inside itself", u.ID)
		}
		if u.Level >= 0 {
			if level < u.Level {
				u.Level = level
			}
			return nil
		}
		u.Level = onPath
		for _, ci := range u.Cells {
			c := &m.Cells[ci]
			switch c.Fill {
			case FillUniverse:
				if err := walk(c.FillUniv, level+1); err != nil {
					return err
				}
			case FillLattice:
				for _, nested := range m.Lattices[c.FillLat].Universes {
					if err := walk(nested, level+1); err != nil {
						return err
					}
				}
			}
		}
		u.Level = level
		return nil
	}
	return walk(m.Root, 0)
}

// buildNeighborLists records, for every surface, the cells whose region
// expression references it on each side. During localization after a
// crossing these lists prune the candidate cells; a miss falls back to the
// full universe scan, so the cache can never change a resolved answer.
func (m *Model) buildNeighborLists() {
	for ci := range m.Cells {
		c := &m.Cells[ci]
		seenPos := make(map[int]bool)
		seenNeg := make(map[int]bool)
		for _, t := range c.Tokens {
			if t.Kind != TokSurface {
				continue
			}
			s := &m.Surfaces[t.Surface]
			if t.Positive && !seenPos[t.Surface] {
				seenPos[t.Surface] = true
				s.neighborPos = append(s.neighborPos, ci)
			} else if !t.Positive && !seenNeg[t.Surface] {
				seenNeg[t.Surface] = true
				s.neighborNeg = append(s.neighborNeg, ci)
			}
		}
	}
}

// Neighbors returns the cached cell handles on one side of a surface.
func (s *Surface) Neighbors(positive bool) []int {
	if positive {
		return s.neighborPos
	}
	return s.neighborNeg
}

// PeriodicTranslation returns the position shift applied when crossing
// from surface s to its periodic pair. Only axis-aligned planes support
// periodic conditions.
func (m *Model) PeriodicTranslation(s *Surface) (Vec, error) {
	pair := &m.Surfaces[s.Periodic]
	var t Vec
	var axis int
	switch s.Kind {
	case XPlane:
		axis = 0
	case YPlane:
		axis = 1
	case ZPlane:
		axis = 2
	default:
		return t, fmt.Errorf(
			"geometry: surface %d: periodic conditions require axis planes",
			s.ID)
	}
	if pair.Kind != s.Kind {
		return t, fmt.Errorf(
			"geometry: periodic pair %d/%d mixes surface kinds", s.ID, pair.ID)
	}
	t[axis] = pair.Coeffs[0] - s.Coeffs[0]
	return t, nil
}
