/*package tally accumulates statistical estimates over cycles: per-cell
flux-like scores fed by the transport engine's pre/post snapshots, folded
into running sums and sums of squares at cycle boundaries.
*/
package tally

import (
	"math"
	"sort"

	"gomc/transport"
)

// Accumulator keeps the running statistics of one scored quantity over
// active cycles.
type Accumulator struct {
	N          int64
	Sum, SumSq float64
}

// Add folds one cycle's realization into the accumulator.
func (a *Accumulator) Add(x float64) {
	a.N++
	a.Sum += x
	a.SumSq += x * x
}

// Mean returns the sample mean over cycles.
func (a *Accumulator) Mean() float64 {
	if a.N == 0 {
		return 0
	}
	return a.Sum / float64(a.N)
}

// Std returns the standard deviation of the mean.
func (a *Accumulator) Std() float64 {
	if a.N < 2 {
		return 0
	}
	n := float64(a.N)
	mean := a.Sum / n
	variance := (a.SumSq/n - mean*mean) / (n - 1)
	if variance < 0 {
		return 0
	}
	return math.Sqrt(variance)
}

// Tally scores one estimator kind into per-cell bins. Within a cycle the
// scores go to a plain map private to one worker; FoldFrom and EndCycle
// combine workers and close the cycle. Score order within a cycle does not
// matter, which is what makes the per-worker split sound.
type Tally struct {
	Name string
	Kind transport.Score

	// cycles counts the active cycles closed so far; every accumulator
	// holds exactly this many realizations.
	cycles int64

	current map[int]float64
	cells   map[int]*Accumulator
}

// New returns an empty tally for the given estimator kind.
func New(name string, kind transport.Score) *Tally {
	return &Tally{
		Name:    name,
		Kind:    kind,
		current: make(map[int]float64),
		cells:   make(map[int]*Accumulator),
	}
}

// Score implements transport.Scorer. Track scores add weight times path
// length; collision scores add the pre-collision weight.
func (t *Tally) Score(pre, post *transport.Snapshot, kind transport.Score) {
	if kind != t.Kind {
		return
	}
	switch kind {
	case transport.ScoreTrack:
		var d2 float64
		for i := 0; i < 3; i++ {
			dx := post.Pos[i] - pre.Pos[i]
			d2 += dx * dx
		}
		t.current[pre.Cell] += pre.Weight * math.Sqrt(d2)
	case transport.ScoreCollision:
		t.current[pre.Cell] += pre.Weight
	}
}

// FoldFrom drains another worker's in-cycle sums into this tally.
func (t *Tally) FoldFrom(other *Tally) {
	for cell, v := range other.current {
		t.current[cell] += v
	}
	other.Reset()
}

// Reset discards the in-cycle sums, used when a cycle is inactive.
func (t *Tally) Reset() {
	for cell := range t.current {
		delete(t.current, cell)
	}
}

// EndCycle closes one active cycle, normalizing the cycle sums by the
// number of source particles. Every known cell receives a realization
// each cycle: a cell that went unscored folds in a zero, so means and
// variances are over active cycles, not over cycles-with-scores.
func (t *Tally) EndCycle(particles int) {
	norm := 1.0 / float64(particles)
	for cell, v := range t.current {
		acc := t.cells[cell]
		if acc == nil {
			// A cell first seen mid-run scored zero in the cycles
			// already closed.
			acc = &Accumulator{N: t.cycles}
			t.cells[cell] = acc
		}
		acc.Add(v * norm)
	}
	for cell, acc := range t.cells {
		if _, scored := t.current[cell]; !scored {
			acc.Add(0)
		}
	}
	t.cycles++
	t.Reset()
}

// Result is one row of a tally report.
type Result struct {
	Tally string  `csv:"tally"`
	Cell  int     `csv:"cell"`
	Mean  float64 `csv:"mean"`
	Std   float64 `csv:"std"`
}

// Results returns the accumulated rows sorted by cell handle.
func (t *Tally) Results() []Result {
	cells := make([]int, 0, len(t.cells))
	for cell := range t.cells {
		cells = append(cells, cell)
	}
	sort.Ints(cells)

	rows := make([]Result, 0, len(cells))
	for _, cell := range cells {
		acc := t.cells[cell]
		rows = append(rows, Result{
			Tally: t.Name,
			Cell:  cell,
			Mean:  acc.Mean(),
			Std:   acc.Std(),
		})
	}
	return rows
}
