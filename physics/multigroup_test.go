package physics

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gomc/geom"
	"gomc/rng"
)

func oneGroup(sigT, sigA, sigF, nu float64) Material {
	return Material{
		ID: 0, Name: "test", Groups: 1,
		Edges:  []float64{20, 0},
		SigmaT: []float64{sigT},
		SigmaA: []float64{sigA},
		SigmaF: []float64{sigF},
		Nu:     []float64{nu},
	}
}

func TestValidateRejectsBadShapes(t *testing.T) {
	m := oneGroup(1, 0.5, 0.3, 2.5)
	require.NoError(t, m.Validate())

	bad := m
	bad.SigmaA = []float64{1.5}
	assert.Error(t, bad.Validate(), "absorption above total")

	bad = m
	bad.Edges = []float64{0, 20}
	assert.Error(t, bad.Validate(), "ascending edges")

	bad = m
	bad.SigmaT = nil
	assert.Error(t, bad.Validate(), "missing total")
}

func TestGroupLookup(t *testing.T) {
	m := Material{
		Groups: 3,
		Edges:  []float64{20, 1, 1e-3, 0},
	}
	assert.Equal(t, 0, m.Group(5))
	assert.Equal(t, 1, m.Group(0.5))
	assert.Equal(t, 2, m.Group(1e-4))
	// Out-of-table energies clamp to the boundary groups.
	assert.Equal(t, 0, m.Group(100))
	assert.Equal(t, 2, m.Group(0))
}

func TestMeanFreePath(t *testing.T) {
	const sigT = 2.0
	ms, err := NewMultigroupSampler([]Material{oneGroup(sigT, 0.5, 0, 0)}, false)
	require.NoError(t, err)

	s := rng.New(12345)
	const n = 200000
	var sum float64
	for i := 0; i < n; i++ {
		d, err := ms.DistanceToCollision(0, 1.0, s)
		require.NoError(t, err)
		sum += d
	}
	assert.InDelta(t, 1/sigT, sum/n, 0.01, "mean free path should be 1/SigmaT")
}

func TestVoidNeverCollides(t *testing.T) {
	ms, err := NewMultigroupSampler([]Material{oneGroup(0, 0, 0, 0)}, false)
	require.NoError(t, err)
	d, err := ms.DistanceToCollision(0, 1.0, rng.New(1))
	require.NoError(t, err)
	assert.True(t, math.IsInf(d, 1))
}

func TestCollideBanksExpectedFissionYield(t *testing.T) {
	// nu*SigmaF/SigmaT = 2.5*0.3/1.0: expect 0.75 sites per unit-weight
	// collision on average.
	mat := oneGroup(1.0, 0.5, 0.3, 2.5)
	mat.WattA, mat.WattB = DefaultWattA, DefaultWattB
	ms, err := NewMultigroupSampler([]Material{mat}, false)
	require.NoError(t, err)

	s := rng.New(777)
	pos, dir := geom.Vec{1, 2, 3}, geom.Vec{0, 0, 1}
	var banked int
	const n = 100000
	sites := make([]Site, 0, 2)
	for i := 0; i < n; i++ {
		_, out, err := ms.Collide(0, pos, dir, 1.0, 1.0, s, sites[:0])
		require.NoError(t, err)
		banked += len(out)
		for _, site := range out {
			assert.Equal(t, pos, site.Pos)
			assert.Equal(t, 1.0, site.Weight)
			assert.Greater(t, site.Energy, 0.0)
		}
	}
	assert.InDelta(t, 0.75, float64(banked)/n, 0.01)
}

func TestCollideAnalogReactionSplit(t *testing.T) {
	ms, err := NewMultigroupSampler([]Material{oneGroup(1.0, 0.4, 0, 0)}, false)
	require.NoError(t, err)

	s := rng.New(31415)
	var absorbed, scattered int
	const n = 100000
	for i := 0; i < n; i++ {
		out, _, err := ms.Collide(0, geom.Vec{}, geom.Vec{0, 0, 1}, 1.0, 1.0, s, nil)
		require.NoError(t, err)
		switch out.Reaction {
		case Absorption:
			absorbed++
			assert.Equal(t, 0.0, out.Weight)
		case Scatter:
			scattered++
			assert.Equal(t, 1.0, out.Weight)
			assert.InDelta(t, 1.0, out.Dir.Norm(), 1e-12)
		default:
			t.Fatalf("unexpected reaction %v", out.Reaction)
		}
	}
	assert.InDelta(t, 0.4, float64(absorbed)/n, 0.01)
}

func TestCollideSurvivalBiasing(t *testing.T) {
	ms, err := NewMultigroupSampler([]Material{oneGroup(1.0, 0.4, 0, 0)}, true)
	require.NoError(t, err)

	s := rng.New(2718)
	for i := 0; i < 100; i++ {
		out, _, err := ms.Collide(0, geom.Vec{}, geom.Vec{0, 0, 1}, 1.0, 1.0, s, nil)
		require.NoError(t, err)
		assert.Equal(t, Scatter, out.Reaction)
		assert.InDelta(t, 0.6, out.Weight, 1e-12,
			"weight should drop by the non-absorption probability")
	}
}

func TestScatterMatrixOutGroup(t *testing.T) {
	m := Material{
		ID: 0, Name: "down", Groups: 2,
		Edges:  []float64{20, 1, 0},
		SigmaT: []float64{1, 1},
		SigmaA: []float64{0, 0},
		SigmaF: []float64{0, 0},
		Nu:     []float64{0, 0},
		// Group 0 always scatters down, group 1 stays put.
		Scatter: [][]float64{{0, 1}, {0, 1}},
	}
	require.NoError(t, m.Validate())

	s := rng.New(9)
	for i := 0; i < 50; i++ {
		assert.Equal(t, 1, m.sampleOutGroup(0, s))
		assert.Equal(t, 1, m.sampleOutGroup(1, s))
	}
}

func TestWattSpectrumMean(t *testing.T) {
	// The Watt mean is a*(3/2 + a*b/4); the defaults give about 2.03 MeV.
	s := rng.New(555)
	const n = 200000
	var sum float64
	for i := 0; i < n; i++ {
		e := SampleWatt(DefaultWattA, DefaultWattB, s)
		require.Greater(t, e, 0.0)
		sum += e
	}
	want := DefaultWattA * (1.5 + DefaultWattA*DefaultWattB/4)
	assert.InDelta(t, want, sum/n, 0.02)
}

func TestIsotropicDirIsUnit(t *testing.T) {
	s := rng.New(4)
	var mean geom.Vec
	const n = 50000
	for i := 0; i < n; i++ {
		d := IsotropicDir(s)
		require.InDelta(t, 1.0, d.Norm(), 1e-12)
		mean.AddSelf(&d)
	}
	mean.ScaleSelf(1.0 / n)
	assert.InDelta(t, 0, mean.Norm(), 0.02, "directions should average out")
}
