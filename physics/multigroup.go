package physics

import (
	"fmt"
	"math"

	"gomc/geom"
	"gomc/rng"
)

// Material holds multigroup cross sections for one material. Group edges
// are in MeV, descending, with len(Edges) == Groups+1. Scatter[g] is the
// unnormalized outgoing-group distribution for scatters out of group g.
type Material struct {
	ID     int
	Name   string
	Groups int
	Edges  []float64

	SigmaT, SigmaA, SigmaF []float64
	Nu                     []float64
	Scatter                [][]float64

	// Watt fission spectrum parameters (a in MeV, b in 1/MeV).
	WattA, WattB float64
}

// Validate checks array shapes and cross-section consistency.
func (m *Material) Validate() error {
	g := m.Groups
	if g <= 0 {
		return fmt.Errorf("physics: material %d: no energy groups", m.ID)
	}
	if len(m.Edges) != g+1 {
		return fmt.Errorf(
			"physics: material %d: %d groups need %d edges, got %d",
			m.ID, g, g+1, len(m.Edges))
	}
	for i := 0; i < g; i++ {
		if m.Edges[i] <= m.Edges[i+1] {
			return fmt.Errorf(
				"physics: material %d: edges must descend", m.ID)
		}
	}
	if len(m.SigmaT) != g || len(m.SigmaA) != g || len(m.SigmaF) != g ||
		len(m.Nu) != g {
		return fmt.Errorf(
			"physics: material %d: cross section arrays must have %d groups",
			m.ID, g)
	}
	if len(m.Scatter) != 0 && len(m.Scatter) != g {
		return fmt.Errorf(
			"physics: material %d: scatter matrix must have %d rows", m.ID, g)
	}
	for gi := 0; gi < g; gi++ {
		if m.SigmaA[gi] > m.SigmaT[gi] {
			return fmt.Errorf(
				"physics: material %d group %d: absorption exceeds total",
				m.ID, gi)
		}
		if m.SigmaF[gi] > m.SigmaA[gi] {
			return fmt.Errorf(
				"physics: material %d group %d: fission exceeds absorption",
				m.ID, gi)
		}
	}
	return nil
}

// Group returns the energy group containing the given energy, clamping
// energies outside the table to the boundary groups.
func (m *Material) Group(energy float64) int {
	if energy >= m.Edges[1] {
		return 0
	}
	for g := 1; g < m.Groups; g++ {
		if energy >= m.Edges[g+1] {
			return g
		}
	}
	return m.Groups - 1
}

// groupEnergy is the representative outgoing energy for a group: the
// geometric mean of its edges, falling back to the arithmetic mean when an
// edge is zero.
func (m *Material) groupEnergy(g int) float64 {
	hi, lo := m.Edges[g], m.Edges[g+1]
	if lo > 0 {
		return math.Sqrt(hi * lo)
	}
	return 0.5 * (hi + lo)
}

// MultigroupSampler implements Sampler over a set of multigroup materials.
// With SurvivalBiasing set, collisions reduce weight by the non-absorption
// probability instead of sampling absorption outright; the transport
// engine is responsible for the roulette game at low weight.
type MultigroupSampler struct {
	Materials       []Material
	SurvivalBiasing bool
}

// NewMultigroupSampler validates the materials and returns a sampler.
func NewMultigroupSampler(mats []Material, survival bool) (*MultigroupSampler, error) {
	for i := range mats {
		if err := mats[i].Validate(); err != nil {
			return nil, err
		}
	}
	return &MultigroupSampler{Materials: mats, SurvivalBiasing: survival}, nil
}

func (ms *MultigroupSampler) material(handle int) (*Material, error) {
	if handle < 0 || handle >= len(ms.Materials) {
		return nil, fmt.Errorf("physics: unknown material handle %d", handle)
	}
	return &ms.Materials[handle], nil
}

// DistanceToCollision samples d = -ln(xi)/SigmaT.
func (ms *MultigroupSampler) DistanceToCollision(material int, energy float64,
	s *rng.Stream) (float64, error) {

	mat, err := ms.material(material)
	if err != nil {
		return 0, err
	}
	sigT := mat.SigmaT[mat.Group(energy)]
	if sigT <= 0 {
		return math.Inf(1), nil
	}
	xi := s.Float64()
	for xi == 0 {
		xi = s.Float64()
	}
	return -math.Log(xi) / sigT, nil
}

// Collide banks the expected number of fission sites, then samples the
// collision outcome, analog or with survival biasing.
func (ms *MultigroupSampler) Collide(material int, pos, dir geom.Vec,
	energy, weight float64, s *rng.Stream, sites []Site) (Outcome, []Site, error) {

	mat, err := ms.material(material)
	if err != nil {
		return Outcome{}, sites, err
	}
	g := mat.Group(energy)
	sigT, sigA, sigF := mat.SigmaT[g], mat.SigmaA[g], mat.SigmaF[g]
	if sigT <= 0 {
		return Outcome{}, sites, fmt.Errorf(
			"physics: material %d: collision sampled in non-colliding material",
			mat.ID)
	}

	// Bank fission sites with expected yield weight*nu*SigmaF/SigmaT.
	if sigF > 0 {
		yield := weight * mat.Nu[g] * sigF / sigT
		n := int(yield + s.Float64())
		for i := 0; i < n; i++ {
			sites = append(sites, Site{
				Pos:    pos,
				Dir:    isotropicDir(s),
				Energy: mat.SampleWatt(s),
				Weight: 1.0,
			})
		}
	}

	if ms.SurvivalBiasing {
		out := Outcome{
			Reaction: Scatter,
			Weight:   weight * (1 - sigA/sigT),
			Dir:      isotropicDir(s),
		}
		out.Energy = mat.groupEnergy(mat.sampleOutGroup(g, s))
		return out, sites, nil
	}

	if s.Float64()*sigT < sigA {
		kind := Absorption
		if sigF > 0 && s.Float64()*sigA < sigF {
			kind = Fission
		}
		return Outcome{Reaction: kind, Weight: 0}, sites, nil
	}
	out := Outcome{
		Reaction: Scatter,
		Weight:   weight,
		Dir:      isotropicDir(s),
	}
	out.Energy = mat.groupEnergy(mat.sampleOutGroup(g, s))
	return out, sites, nil
}

// sampleOutGroup draws the outgoing group for a scatter out of group g.
// Without a scatter matrix the scatter is in-group.
func (m *Material) sampleOutGroup(g int, s *rng.Stream) int {
	if len(m.Scatter) == 0 {
		return g
	}
	row := m.Scatter[g]
	var total float64
	for _, v := range row {
		total += v
	}
	if total <= 0 {
		return g
	}
	target := s.Float64() * total
	for out, v := range row {
		target -= v
		if target < 0 {
			return out
		}
	}
	return len(row) - 1
}

// isotropicDir samples a unit vector uniformly on the sphere.
func isotropicDir(s *rng.Stream) geom.Vec {
	mu := 2*s.Float64() - 1
	phi := 2 * math.Pi * s.Float64()
	sq := math.Sqrt(1 - mu*mu)
	return geom.Vec{sq * math.Cos(phi), sq * math.Sin(phi), mu}
}
