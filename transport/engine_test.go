package transport

import (
	"math"
	"testing"

	"gomc/geom"
	"gomc/physics"
	"gomc/rng"
)

func almostEq(x, y, eps float64) bool {
	return math.Abs(x-y) <= eps
}

// voidSphere is a single void cell bounded by a sphere with the given
// boundary condition.
func voidSphere(t *testing.T, radius float64, bc geom.BoundaryKind) *geom.Model {
	t.Helper()
	m := geom.NewModel()
	if _, err := m.AddSurface(1, geom.SphereSurf,
		[]float64{0, 0, 0, radius}, bc); err != nil {
		t.Fatal(err)
	}
	root, _ := m.AddUniverse(0)
	if _, err := m.AddCell(geom.CellSpec{
		ID: 1, Universe: root, Region: "-1",
		Fill: geom.FillMaterial, Material: -1,
	}); err != nil {
		t.Fatal(err)
	}
	m.SetRoot(root)
	if err := m.Finalize(); err != nil {
		t.Fatal(err)
	}
	return m
}

// matSphere is a single material cell bounded by a vacuum sphere.
func matSphere(t *testing.T, radius float64) *geom.Model {
	t.Helper()
	m := geom.NewModel()
	if _, err := m.AddSurface(1, geom.SphereSurf,
		[]float64{0, 0, 0, radius}, geom.BCVacuum); err != nil {
		t.Fatal(err)
	}
	root, _ := m.AddUniverse(0)
	if _, err := m.AddCell(geom.CellSpec{
		ID: 1, Universe: root, Region: "-1",
		Fill: geom.FillMaterial, Material: 0,
	}); err != nil {
		t.Fatal(err)
	}
	m.SetRoot(root)
	if err := m.Finalize(); err != nil {
		t.Fatal(err)
	}
	return m
}

func oneGroup(sigT, sigA, sigF, nu float64) physics.Material {
	return physics.Material{
		ID: 0, Name: "m", Groups: 1,
		Edges:  []float64{20, 0},
		SigmaT: []float64{sigT},
		SigmaA: []float64{sigA},
		SigmaF: []float64{sigF},
		Nu:     []float64{nu},
		WattA:  physics.DefaultWattA,
		WattB:  physics.DefaultWattB,
	}
}

func sampler(t *testing.T, mat physics.Material, survival bool) physics.Sampler {
	t.Helper()
	ms, err := physics.NewMultigroupSampler([]physics.Material{mat}, survival)
	if err != nil {
		t.Fatal(err)
	}
	return ms
}

func run(t *testing.T, e *Engine, site *physics.Site, history int64) *Particle {
	t.Helper()
	p := new(Particle)
	p.InitFromSite(history, site, e.Model.Root, rng.NewHistory(1, history))
	if _, err := e.TransportOne(p); err != nil {
		t.Fatal(err)
	}
	return p
}

func TestVacuumEscape(t *testing.T) {
	m := voidSphere(t, 1, geom.BCVacuum)
	e := NewEngine(m, nil, DefaultConfig())

	p := run(t, e, &physics.Site{
		Pos: geom.Vec{0, 0, 0}, Dir: geom.Vec{1, 0, 0},
		Energy: 1, Weight: 1,
	}, 1)

	if p.State != Escaped {
		t.Fatalf("state = %v, want escaped", p.State)
	}
	pos := p.Coords.Root().Pos
	if !almostEq(pos[0], 1, 1e-12) || !almostEq(pos[1], 0, 1e-12) {
		t.Errorf("escape position = %v, want (1, 0, 0)", pos)
	}
	if m.Surfaces[p.Surface].ID != 1 {
		t.Errorf("escape surface %d, want 1", m.Surfaces[p.Surface].ID)
	}
	if p.Collisions != 0 {
		t.Errorf("collisions = %d, want 0", p.Collisions)
	}
}

func TestReflectiveSlab(t *testing.T) {
	m := geom.NewModel()
	if _, err := m.AddSurface(1, geom.XPlane,
		[]float64{1}, geom.BCReflective); err != nil {
		t.Fatal(err)
	}
	if _, err := m.AddSurface(2, geom.XPlane,
		[]float64{-1}, geom.BCVacuum); err != nil {
		t.Fatal(err)
	}
	root, _ := m.AddUniverse(0)
	if _, err := m.AddCell(geom.CellSpec{
		ID: 1, Universe: root, Region: "2 -1",
		Fill: geom.FillMaterial, Material: -1,
	}); err != nil {
		t.Fatal(err)
	}
	m.SetRoot(root)
	if err := m.Finalize(); err != nil {
		t.Fatal(err)
	}

	e := NewEngine(m, nil, DefaultConfig())
	p := run(t, e, &physics.Site{
		Pos: geom.Vec{0, 0.3, 0}, Dir: geom.Vec{1, 0, 0},
		Energy: 1, Weight: 1,
	}, 1)

	if p.State != Escaped {
		t.Fatalf("state = %v, want escaped", p.State)
	}
	pos := p.Coords.Root().Pos
	if !almostEq(pos[0], -1, 1e-12) || !almostEq(pos[1], 0.3, 1e-12) {
		t.Errorf("escape position = %v, want (-1, 0.3, 0)", pos)
	}
	dir := p.Coords.Root().Dir
	if !almostEq(dir[0], -1, 1e-12) {
		t.Errorf("final direction = %v, want (-1, 0, 0)", dir)
	}
}

func TestPeriodicWrap(t *testing.T) {
	m := geom.NewModel()
	if _, err := m.AddSurface(1, geom.XPlane,
		[]float64{0}, geom.BCVacuum); err != nil {
		t.Fatal(err)
	}
	if _, err := m.AddSurface(2, geom.XPlane,
		[]float64{1}, geom.BCVacuum); err != nil {
		t.Fatal(err)
	}
	if _, err := m.AddSurface(3, geom.YPlane,
		[]float64{0}, geom.BCPeriodic); err != nil {
		t.Fatal(err)
	}
	if _, err := m.AddSurface(4, geom.YPlane,
		[]float64{1}, geom.BCPeriodic); err != nil {
		t.Fatal(err)
	}
	if err := m.PairPeriodic(3, 4); err != nil {
		t.Fatal(err)
	}
	root, _ := m.AddUniverse(0)
	if _, err := m.AddCell(geom.CellSpec{
		ID: 1, Universe: root, Region: "1 -2 3 -4",
		Fill: geom.FillMaterial, Material: -1,
	}); err != nil {
		t.Fatal(err)
	}
	m.SetRoot(root)
	if err := m.Finalize(); err != nil {
		t.Fatal(err)
	}

	e := NewEngine(m, nil, DefaultConfig())
	dir := geom.Vec{1, 1, 0}
	dir.NormalizeSelf()
	p := run(t, e, &physics.Site{
		Pos: geom.Vec{0.25, 0.3, 0}, Dir: dir,
		Energy: 1, Weight: 1,
	}, 1)

	// The walk wraps once through y = 1 back to y = 0 and then leaves
	// through the vacuum plane at x = 1.
	if p.State != Escaped {
		t.Fatalf("state = %v, want escaped", p.State)
	}
	pos := p.Coords.Root().Pos
	if !almostEq(pos[0], 1, 1e-9) || !almostEq(pos[1], 0.05, 1e-9) {
		t.Errorf("escape position = %v, want (1, 0.05, 0)", pos)
	}
}

func TestAbsorberTerminates(t *testing.T) {
	m := matSphere(t, 10)
	e := NewEngine(m, sampler(t, oneGroup(1000, 1000, 0, 0), false),
		DefaultConfig())

	p := run(t, e, &physics.Site{
		Pos: geom.Vec{0, 0, 0}, Dir: geom.Vec{0, 0, 1},
		Energy: 1, Weight: 1,
	}, 1)

	if p.State != Absorbed {
		t.Fatalf("state = %v, want absorbed", p.State)
	}
	if p.Collisions != 1 {
		t.Errorf("collisions = %d, want 1", p.Collisions)
	}
	if len(p.Sites) != 0 {
		t.Errorf("banked %d sites in a non-fissile material", len(p.Sites))
	}
}

func TestFissionBanksSites(t *testing.T) {
	m := matSphere(t, 10)
	e := NewEngine(m, sampler(t, oneGroup(1000, 1000, 1000, 2.5), false),
		DefaultConfig())

	p := run(t, e, &physics.Site{
		Pos: geom.Vec{0, 0, 0}, Dir: geom.Vec{0, 0, 1},
		Energy: 1, Weight: 1,
	}, 1)

	if p.State != Absorbed {
		t.Fatalf("state = %v, want absorbed", p.State)
	}
	// Expected yield nu*SigmaF/SigmaT = 2.5, banked as 2 or 3 sites.
	if n := len(p.Sites); n < 2 || n > 3 {
		t.Fatalf("banked %d sites, want 2 or 3", n)
	}
	for _, s := range p.Sites {
		if s.Weight != 1 {
			t.Errorf("site weight = %g, want 1", s.Weight)
		}
		if s.Energy <= 0 {
			t.Errorf("site energy = %g, want positive", s.Energy)
		}
	}
}

func TestSurvivalBiasingRoulette(t *testing.T) {
	m := matSphere(t, 1000)
	e := NewEngine(m, sampler(t, oneGroup(1, 0.4, 0, 0), true),
		DefaultConfig())

	for hist := int64(1); hist <= 20; hist++ {
		p := run(t, e, &physics.Site{
			Pos: geom.Vec{0, 0, 0}, Dir: geom.Vec{0, 0, 1},
			Energy: 1, Weight: 1,
		}, hist)
		if p.State != Killed && p.State != Escaped {
			t.Fatalf("history %d: state = %v, want killed or escaped",
				hist, p.State)
		}
		if p.State == Killed && p.Collisions < 2 {
			t.Errorf("history %d: killed after %d collisions; roulette "+
				"should not fire above the cutoff", hist, p.Collisions)
		}
	}
	if e.Lost != 0 {
		t.Errorf("lost counter = %d, want 0", e.Lost)
	}
}

func TestEnergyCutoff(t *testing.T) {
	m := matSphere(t, 1000)
	cfg := DefaultConfig()
	cfg.EnergyCutoff = 25
	e := NewEngine(m, sampler(t, oneGroup(1, 0, 0, 0), false), cfg)

	// Group energy sqrt(20*0) falls back to 10 MeV, under the cutoff, so
	// the first scatter ends the history.
	p := run(t, e, &physics.Site{
		Pos: geom.Vec{0, 0, 0}, Dir: geom.Vec{0, 0, 1},
		Energy: 30, Weight: 1,
	}, 1)
	if p.State != Cutoff {
		t.Fatalf("state = %v, want cutoff", p.State)
	}
	if p.Collisions != 1 {
		t.Errorf("collisions = %d, want 1", p.Collisions)
	}
}

func TestStuckParticleIsKilledLocally(t *testing.T) {
	// The sphere transmits but nothing lies beyond it, so the crossing
	// cannot resolve. The particle must die locally, not abort the run.
	m := voidSphere(t, 1, geom.BCTransmit)
	e := NewEngine(m, nil, DefaultConfig())

	p := run(t, e, &physics.Site{
		Pos: geom.Vec{0, 0, 0}, Dir: geom.Vec{1, 0, 0},
		Energy: 1, Weight: 1,
	}, 1)

	if p.State != Killed {
		t.Fatalf("state = %v, want killed", p.State)
	}
	if e.Lost != 1 {
		t.Errorf("lost counter = %d, want 1", e.Lost)
	}
}

func TestBirthOutsideGeometryFails(t *testing.T) {
	m := voidSphere(t, 1, geom.BCVacuum)
	e := NewEngine(m, nil, DefaultConfig())

	p := new(Particle)
	p.InitFromSite(3, &physics.Site{
		Pos: geom.Vec{5, 0, 0}, Dir: geom.Vec{1, 0, 0},
		Energy: 1, Weight: 1,
	}, m.Root, rng.NewHistory(1, 3))

	if _, err := e.TransportOne(p); err == nil {
		t.Fatal("birth outside the geometry should fail the history")
	}
}
