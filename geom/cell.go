package geom

// FillKind says what occupies the region of a cell.
type FillKind int

const (
	// FillMaterial terminates localization: the cell holds a material
	// (or void, when the material handle is -1).
	FillMaterial FillKind = iota
	// FillUniverse nests another universe inside the cell.
	FillUniverse
	// FillLattice tiles the cell with a lattice of universes.
	FillLattice
)

// Cell is a region defined by a boolean expression over surface
// half-spaces, belonging to exactly one universe.
type Cell struct {
	ID       int
	Universe int // handle of the owning universe

	Fill     FillKind
	Material int // material handle for FillMaterial, -1 for void
	FillUniv int // universe handle for FillUniverse
	FillLat  int // lattice handle for FillLattice

	// Translation maps a point in this cell's frame into the nested
	// universe's frame: local = p - Translation.
	Translation Vec

	// ParentCell is the handle of the cell one level up for cells that
	// live inside a lattice element, -1 otherwise.
	ParentCell int

	// Tokens is the region expression with surface handles resolved.
	Tokens []Token

	// surfaces lists the distinct surface handles referenced by Tokens,
	// in first-appearance order. Used by the boundary distance loop.
	surfaces []int
}

// Contains reports whether the local point p lies inside the cell, using
// the direction u to resolve on-surface ties.
func (c *Cell) Contains(m *Model, p, u *Vec) bool {
	return m.evalRegion(c.Tokens, p, u)
}

// Universe is a named, unordered collection of cells. The root universe
// has level 0; level increases with nesting depth.
type Universe struct {
	ID    int
	Level int
	Cells []int
}

// Lattice is a rectangular repeating arrangement of universes. For a 2D
// lattice Shape[2] is 1 and the z pitch is ignored during indexing.
type Lattice struct {
	ID    int
	Shape [3]int
	// Lower is the corner of element (0, 0, 0) in the frame of the cell
	// the lattice fills.
	Lower Vec
	Pitch Vec
	// Universes maps the flattened index x + Shape[0]*(y + Shape[1]*z) to
	// a universe handle.
	Universes []int
	// Outer is the universe used outside the declared extents, or -1 to
	// treat an out-of-range index as a geometry error.
	Outer int
}

// flatIndex converts a 3D element index into Universes, or -1 when the
// index is outside the lattice.
func (l *Lattice) flatIndex(ix [3]int) int {
	for i := 0; i < 3; i++ {
		if ix[i] < 0 || ix[i] >= l.Shape[i] {
			return -1
		}
	}
	return ix[0] + l.Shape[0]*(ix[1]+l.Shape[1]*ix[2])
}

// Index returns the element index nearest the local point p.
func (l *Lattice) Index(p *Vec) [3]int {
	var ix [3]int
	for i := 0; i < 3; i++ {
		if l.Shape[i] == 1 {
			continue
		}
		ix[i] = int(floorDiv(p[i]-l.Lower[i], l.Pitch[i]))
	}
	return ix
}

func floorDiv(x, pitch float64) float64 {
	d := x / pitch
	f := float64(int(d))
	if d < 0 && d != f {
		f--
	}
	return f
}

// UniverseAt returns the handle of the universe filling the element at ix,
// or -1 when ix falls outside the lattice and no outer universe is set.
func (l *Lattice) UniverseAt(ix [3]int) int {
	fi := l.flatIndex(ix)
	if fi < 0 {
		return l.Outer
	}
	return l.Universes[fi]
}

// Center returns the center of element ix in the enclosing cell's frame.
func (l *Lattice) Center(ix [3]int) Vec {
	var c Vec
	for i := 0; i < 3; i++ {
		c[i] = l.Lower[i] + (float64(ix[i])+0.5)*l.Pitch[i]
	}
	return c
}
