package sim

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gomc/geom"
	"gomc/physics"
	"gomc/tally"
	"gomc/transport"
)

// bareSphere is a homogeneous fissile sphere with a vacuum boundary, the
// standard bare-reactor benchmark.
func bareSphere(t *testing.T, radius float64) (*geom.Model, physics.Sampler) {
	t.Helper()
	m := geom.NewModel()
	_, err := m.AddSurface(1, geom.SphereSurf,
		[]float64{0, 0, 0, radius}, geom.BCVacuum)
	require.NoError(t, err)
	root, err := m.AddUniverse(0)
	require.NoError(t, err)
	_, err = m.AddCell(geom.CellSpec{
		ID: 1, Universe: root, Region: "-1",
		Fill: geom.FillMaterial, Material: 0,
	})
	require.NoError(t, err)
	m.SetRoot(root)
	require.NoError(t, m.Finalize())

	mat := physics.Material{
		ID: 0, Name: "fuel", Groups: 1,
		Edges:  []float64{20, 0},
		SigmaT: []float64{1.0},
		SigmaA: []float64{0.5},
		SigmaF: []float64{0.3},
		Nu:     []float64{2.5},
		WattA:  physics.DefaultWattA,
		WattB:  physics.DefaultWattB,
	}
	sampler, err := physics.NewMultigroupSampler([]physics.Material{mat}, false)
	require.NoError(t, err)
	return m, sampler
}

func settings(threads int) Settings {
	return Settings{
		Particles:        200,
		InactiveCycles:   2,
		ActiveCycles:     5,
		Seed:             1,
		Threads:          threads,
		Transport:        transport.DefaultConfig(),
		MaxLostParticles: 10,
	}
}

func TestRunBareSphere(t *testing.T) {
	model, sampler := bareSphere(t, 10)
	r := &Runner{Model: model, Sampler: sampler, Set: settings(1)}
	r.Set.Entropy = &EntropyMesh{
		Lower: geom.Vec{-10, -10, -10},
		Upper: geom.Vec{10, 10, 10},
		Dims:  [3]int{4, 4, 4},
	}

	res, err := r.Run()
	require.NoError(t, err)

	assert.Len(t, res.CycleKEff, 7)
	assert.Len(t, res.Entropy, 7)
	assert.EqualValues(t, 0, res.Lost)
	assert.EqualValues(t, 7*200, res.Histories)
	// The infinite-medium eigenvalue is nu*SigmaF/SigmaA = 1.5; leakage
	// from a 10 mean-free-path sphere only takes a modest bite.
	assert.Greater(t, res.KEff, 0.8)
	assert.Less(t, res.KEff, 1.6)
	assert.Greater(t, res.KEffStd, 0.0)
	for _, h := range res.Entropy {
		assert.Greater(t, h, 0.0)
	}
}

func TestRunIsThreadCountInvariant(t *testing.T) {
	model, sampler := bareSphere(t, 10)

	serial := &Runner{Model: model, Sampler: sampler, Set: settings(1)}
	res1, err := serial.Run()
	require.NoError(t, err)

	parallel := &Runner{Model: model, Sampler: sampler, Set: settings(4)}
	res4, err := parallel.Run()
	require.NoError(t, err)

	require.Equal(t, len(res1.CycleKEff), len(res4.CycleKEff))
	for i := range res1.CycleKEff {
		assert.Equal(t, res1.CycleKEff[i], res4.CycleKEff[i],
			"cycle %d eigenvalue depends on the worker count", i)
	}
	assert.Equal(t, res1.KEff, res4.KEff)
}

func TestSingleActiveCycleReportsZeroStd(t *testing.T) {
	model, sampler := bareSphere(t, 10)
	set := settings(1)
	set.ActiveCycles = 1
	r := &Runner{Model: model, Sampler: sampler, Set: set}

	res, err := r.Run()
	require.NoError(t, err)
	assert.False(t, math.IsNaN(res.KEff))
	assert.Equal(t, 0.0, res.KEffStd,
		"one active cycle has no spread estimate")
}

func TestRunAccumulatesTallies(t *testing.T) {
	model, sampler := bareSphere(t, 10)
	flux := tally.New("flux", transport.ScoreTrack)
	coll := tally.New("collision", transport.ScoreCollision)
	r := &Runner{
		Model: model, Sampler: sampler, Set: settings(2),
		Tallies: []*tally.Tally{flux, coll},
	}

	_, err := r.Run()
	require.NoError(t, err)

	fluxRows := flux.Results()
	require.Len(t, fluxRows, 1)
	assert.Greater(t, fluxRows[0].Mean, 0.0)
	// Only active cycles contribute; N counts cycles, not histories.
	collRows := coll.Results()
	require.Len(t, collRows, 1)
	assert.Greater(t, collRows[0].Mean, 0.0)
}

func TestRunDiesOutWithoutFission(t *testing.T) {
	model, _ := bareSphere(t, 10)

	// A pure absorber banks no sites, so the first cycle must fail loudly
	// instead of limping on with an empty bank.
	mat := physics.Material{
		ID: 0, Name: "absorber", Groups: 1,
		Edges:  []float64{20, 0},
		SigmaT: []float64{1.0},
		SigmaA: []float64{1.0},
		SigmaF: []float64{0},
		Nu:     []float64{0},
	}
	sampler, err := physics.NewMultigroupSampler([]physics.Material{mat}, false)
	require.NoError(t, err)

	r := &Runner{Model: model, Sampler: sampler, Set: settings(1)}
	_, err = r.Run()
	assert.Error(t, err)
}

func TestRunValidatesSettings(t *testing.T) {
	model, sampler := bareSphere(t, 10)

	set := settings(1)
	set.Particles = 0
	_, err := (&Runner{Model: model, Sampler: sampler, Set: set}).Run()
	assert.Error(t, err)

	set = settings(1)
	set.ActiveCycles = 0
	_, err = (&Runner{Model: model, Sampler: sampler, Set: set}).Run()
	assert.Error(t, err)

	set = settings(1)
	r := &Runner{Model: model, Sampler: sampler, Set: set}
	r.Source = make([]physics.Site, 5) // wrong size for Particles = 200
	_, err = r.Run()
	assert.Error(t, err)
}

func TestTransportOneSingleHistory(t *testing.T) {
	model, sampler := bareSphere(t, 10)
	r := &Runner{Model: model, Sampler: sampler, Set: settings(1)}

	state, err := r.TransportOne(&physics.Site{
		Pos: geom.Vec{0, 0, 0}, Dir: geom.Vec{0, 0, 1},
		Energy: 1, Weight: 1,
	}, 1)
	require.NoError(t, err)
	assert.True(t, state.Terminal())

	state2, err := r.TransportOne(&physics.Site{
		Pos: geom.Vec{0, 0, 0}, Dir: geom.Vec{0, 0, 1},
		Energy: 1, Weight: 1,
	}, 1)
	require.NoError(t, err)
	assert.Equal(t, state, state2, "same history index must replay identically")
}
