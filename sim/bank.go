package sim

import (
	"fmt"
	"math"
	"sort"

	"gomc/geom"
	"gomc/physics"
	"gomc/rng"
)

// BankedSite is a fission site tagged with its global rank key: the
// history that produced it and the site's sequence number within that
// history. The key depends only on the history index, never on which
// worker ran it, which is what makes the redistribution reproducible
// across parallel decompositions.
type BankedSite struct {
	physics.Site
	History int64
	Seq     int
}

// sortBank orders sites by (history, sequence). After sorting, the bank
// contents are identical for any worker count.
func sortBank(bank []BankedSite) {
	sort.Slice(bank, func(i, j int) bool {
		if bank[i].History != bank[j].History {
			return bank[i].History < bank[j].History
		}
		return bank[i].Seq < bank[j].Seq
	})
}

// Synchronize converts the fission sites of one generation into the next
// cycle's source bank of exactly n sites, selecting sites in proportion to
// their weight with a single systematic (comb) pass. The stream must be
// the cycle's dedicated stream. Returns the new bank and the total banked
// weight, from which the cycle eigenvalue follows.
//
// An empty bank is fatal: the chain reaction died out and continuing would
// silently bias every later cycle.
func Synchronize(bank []BankedSite, n int, s *rng.Stream) ([]physics.Site, float64, error) {
	if len(bank) == 0 {
		return nil, 0, fmt.Errorf("sim: no fission sites banked; source died out")
	}
	sortBank(bank)

	var total float64
	for i := range bank {
		if bank[i].Weight <= 0 || math.IsNaN(bank[i].Weight) {
			return nil, 0, fmt.Errorf(
				"sim: banked site from history %d has weight %g",
				bank[i].History, bank[i].Weight)
		}
		total += bank[i].Weight
	}

	step := total / float64(n)
	offset := s.Float64() * step

	out := make([]physics.Site, 0, n)
	cum := bank[0].Weight
	idx := 0
	for k := 0; k < n; k++ {
		target := offset + float64(k)*step
		for cum <= target && idx < len(bank)-1 {
			idx++
			cum += bank[idx].Weight
		}
		site := bank[idx].Site
		site.Weight = 1.0
		out = append(out, site)
	}
	return out, total, nil
}

// EntropyMesh is the regular grid over which the Shannon entropy of the
// fission source is computed, a standard source-convergence diagnostic.
type EntropyMesh struct {
	Lower, Upper geom.Vec
	Dims         [3]int
}

// Entropy returns the Shannon entropy, in bits, of the banked source
// distribution over the mesh. Sites outside the mesh are ignored.
func (em *EntropyMesh) Entropy(bank []BankedSite) float64 {
	nb := em.Dims[0] * em.Dims[1] * em.Dims[2]
	if nb <= 0 {
		return 0
	}
	counts := make([]float64, nb)
	var total float64

	for i := range bank {
		ix, ok := em.index(&bank[i].Pos)
		if !ok {
			continue
		}
		counts[ix] += bank[i].Weight
		total += bank[i].Weight
	}
	if total == 0 {
		return 0
	}

	var h float64
	for _, c := range counts {
		if c > 0 {
			p := c / total
			h -= p * math.Log2(p)
		}
	}
	return h
}

func (em *EntropyMesh) index(p *geom.Vec) (int, bool) {
	var ix [3]int
	for i := 0; i < 3; i++ {
		w := em.Upper[i] - em.Lower[i]
		if w <= 0 {
			return 0, false
		}
		f := (p[i] - em.Lower[i]) / w
		if f < 0 || f >= 1 {
			return 0, false
		}
		ix[i] = int(f * float64(em.Dims[i]))
	}
	return ix[0] + em.Dims[0]*(ix[1]+em.Dims[1]*ix[2]), true
}
