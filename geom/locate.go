package geom

import (
	"fmt"
	"math"
)

// findCell returns the handle of the first cell in the universe whose
// region contains p, trying the hint cells first. Hint cells outside the
// universe are skipped, so a stale hint can slow the search but never
// change its answer. Returns -1 when no cell matches.
func (m *Model) findCell(univ int, p, u *Vec, hint []int) int {
	for _, ci := range hint {
		c := &m.Cells[ci]
		if c.Universe == univ && c.Contains(m, p, u) {
			return ci
		}
	}
	for _, ci := range m.Universes[univ].Cells {
		c := &m.Cells[ci]
		if c.Contains(m, p, u) {
			return ci
		}
	}
	return -1
}

// Locate resolves the full coordinate stack from the root frame down to a
// material-filled cell. The root frame's position, direction and universe
// must be set.
func (m *Model) Locate(stk *CoordStack, particleID int64) error {
	return m.LocateFrom(stk, 0, particleID, nil)
}

// LocateFrom resolves the stack from the given level down, keeping the
// shallower frames untouched. The hint cells, if any, are tried first at
// the starting level only; deeper levels always scan their universe.
func (m *Model) LocateFrom(stk *CoordStack, level int, particleID int64,
	hint []int) error {

	stk.Truncate(level)
	for {
		fr := stk.Frame(level)
		ci := m.findCell(fr.Universe, &fr.Pos, &fr.Dir, hint)
		hint = nil
		if ci < 0 {
			return &GeometryError{
				ParticleID: particleID,
				Universe:   m.Universes[fr.Universe].ID,
				Pos:        fr.Pos,
			}
		}
		fr.Cell = ci
		c := &m.Cells[ci]

		switch c.Fill {
		case FillMaterial:
			return nil

		case FillUniverse:
			next := stk.Push()
			next.Pos = fr.Pos
			next.Pos.SubSelf(&c.Translation)
			next.Dir = fr.Dir
			next.Universe = c.FillUniv
			level++

		case FillLattice:
			lat := &m.Lattices[c.FillLat]
			local := fr.Pos
			local.SubSelf(&c.Translation)
			ix := lat.Index(&local)
			uh := lat.UniverseAt(ix)
			if uh < 0 {
				return &GeometryError{
					ParticleID: particleID,
					Universe:   m.Universes[fr.Universe].ID,
					Pos:        fr.Pos,
				}
			}
			center := lat.Center(ix)
			next := stk.Push()
			next.Pos = local
			next.Pos.SubSelf(&center)
			next.Dir = fr.Dir
			next.Universe = uh
			next.Lattice = c.FillLat
			next.LatIdx = ix
			level++
		}
	}
}

// Boundary describes the nearest exit from the current cell across all
// stack levels: either a bounding surface of some level's cell, or the
// wall of the lattice element the particle is in.
type Boundary struct {
	Distance float64
	// Level is the stack level at which the crossing happens.
	Level int
	// Surface is the surface handle hit, or -1 for a lattice wall.
	Surface int
	// LatticeAxis and LatticeDir give the crossed element wall for
	// lattice crossings: the index steps by LatticeDir along LatticeAxis.
	LatticeAxis, LatticeDir int
}

// DistanceToBoundary returns the minimum strictly-positive distance at
// which the particle leaves the cell resolved at any level of the stack.
func (m *Model) DistanceToBoundary(stk *CoordStack) Boundary {
	b := Boundary{
		Distance: math.Inf(1), Level: -1,
		Surface: -1, LatticeAxis: -1,
	}
	for level := 0; level < stk.Depth(); level++ {
		fr := stk.Frame(level)
		if fr.Cell >= 0 {
			c := &m.Cells[fr.Cell]
			for _, sh := range c.surfaces {
				d := m.Surfaces[sh].Distance(&fr.Pos, &fr.Dir)
				if d < b.Distance {
					b = Boundary{
						Distance: d, Level: level,
						Surface: sh, LatticeAxis: -1,
					}
				}
			}
		}
		if fr.Lattice >= 0 {
			lat := &m.Lattices[fr.Lattice]
			for axis := 0; axis < 3; axis++ {
				if lat.Pitch[axis] == 0 {
					continue
				}
				half := 0.5 * lat.Pitch[axis]
				u := fr.Dir[axis]
				if u == 0 {
					continue
				}
				var d float64
				var dir int
				if u > 0 {
					d = (half - fr.Pos[axis]) / u
					dir = 1
				} else {
					d = (-half - fr.Pos[axis]) / u
					dir = -1
				}
				if d <= coincTol {
					d = coincTol
				}
				if d < b.Distance {
					b = Boundary{
						Distance: d, Level: level,
						Surface: -1, LatticeAxis: axis, LatticeDir: dir,
					}
				}
			}
		}
	}
	return b
}

// CrossLattice steps the lattice index at the given level by one element
// and re-resolves the stack below that level. The stack must already be
// advanced to the element wall.
func (m *Model) CrossLattice(stk *CoordStack, level, axis, dir int,
	particleID int64) error {

	fr := stk.Frame(level)
	if fr.Lattice < 0 {
		return fmt.Errorf("geometry: level %d is not a lattice frame", level)
	}
	lat := &m.Lattices[fr.Lattice]

	fr.LatIdx[axis] += dir
	fr.Pos[axis] -= float64(dir) * lat.Pitch[axis]

	uh := lat.UniverseAt(fr.LatIdx)
	if uh < 0 {
		return &GeometryError{
			ParticleID: particleID,
			Universe:   lat.ID,
			Pos:        fr.Pos,
		}
	}
	fr.Universe = uh
	fr.Cell = -1
	return m.LocateFrom(stk, level, particleID, nil)
}
