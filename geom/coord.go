package geom

// LocalCoord is one frame of a particle's coordinate stack: the position
// and direction expressed in one nesting level's frame, plus the resolved
// cell and, for lattice levels, the element index.
type LocalCoord struct {
	Pos, Dir Vec
	Universe int
	Cell     int
	// Lattice is the lattice handle when this frame sits inside a lattice
	// element, -1 otherwise.
	Lattice int
	LatIdx  [3]int
}

// CoordStack is an index-addressed stack of coordinate frames, level 0
// being the base universe. It is owned exclusively by one particle and the
// backing array is reused across histories to avoid allocation churn.
type CoordStack struct {
	frames []LocalCoord
	n      int
}

// Reset re-initializes the stack to a single root frame.
func (s *CoordStack) Reset(pos, dir Vec, rootUniverse int) {
	s.n = 0
	fr := s.Push()
	fr.Pos, fr.Dir = pos, dir
	fr.Universe = rootUniverse
}

// Depth returns the number of live frames.
func (s *CoordStack) Depth() int { return s.n }

// Frame returns the frame at the given level.
func (s *CoordStack) Frame(level int) *LocalCoord { return &s.frames[level] }

// Root returns the level-0 frame.
func (s *CoordStack) Root() *LocalCoord { return &s.frames[0] }

// Deepest returns the innermost live frame.
func (s *CoordStack) Deepest() *LocalCoord { return &s.frames[s.n-1] }

// Push appends a frame and returns it for initialization.
func (s *CoordStack) Push() *LocalCoord {
	if s.n == len(s.frames) {
		s.frames = append(s.frames, LocalCoord{})
	}
	fr := &s.frames[s.n]
	*fr = LocalCoord{Universe: -1, Cell: -1, Lattice: -1}
	s.n++
	return fr
}

// Truncate drops all frames deeper than level, keeping levels [0, level].
func (s *CoordStack) Truncate(level int) {
	if level+1 < s.n {
		s.n = level + 1
	}
}

// Advance moves every live frame forward by the distance d along its own
// direction, keeping all levels consistent.
func (s *CoordStack) Advance(d float64) {
	for i := 0; i < s.n; i++ {
		fr := &s.frames[i]
		fr.Pos.ShiftSelf(&fr.Dir, d)
	}
}

// SetDir replaces the direction at every live frame. Frames differ only by
// translations, so a single direction is valid at all levels.
func (s *CoordStack) SetDir(u *Vec) {
	for i := 0; i < s.n; i++ {
		s.frames[i].Dir = *u
	}
}

// NudgeRoot moves the root position forward by d along the direction of
// flight. Deeper frames are assumed pruned by the caller.
func (s *CoordStack) NudgeRoot(d float64) {
	fr := &s.frames[0]
	fr.Pos.ShiftSelf(&fr.Dir, d)
}
