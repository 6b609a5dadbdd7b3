package sim

import (
	"math"
	"testing"

	"gomc/geom"
	"gomc/physics"
	"gomc/rng"
)

func site(x, weight float64, history int64, seq int) BankedSite {
	return BankedSite{
		Site: physics.Site{
			Pos: geom.Vec{x, 0, 0}, Dir: geom.Vec{0, 0, 1},
			Energy: 1, Weight: weight,
		},
		History: history, Seq: seq,
	}
}

func TestSynchronizeExactCount(t *testing.T) {
	for _, n := range []int{1, 3, 10, 100} {
		bank := []BankedSite{
			site(0, 1, 1, 0), site(1, 1, 2, 0), site(2, 1, 2, 1),
		}
		out, total, err := Synchronize(bank, n, rng.NewCycle(1, 0))
		if err != nil {
			t.Fatal(err)
		}
		if len(out) != n {
			t.Errorf("n = %d: got %d sites", n, len(out))
		}
		if total != 3 {
			t.Errorf("total weight = %g, want 3", total)
		}
		for _, s := range out {
			if s.Weight != 1 {
				t.Errorf("resampled weight = %g, want 1", s.Weight)
			}
		}
	}
}

func TestSynchronizeEmptyBankFails(t *testing.T) {
	if _, _, err := Synchronize(nil, 10, rng.NewCycle(1, 0)); err == nil {
		t.Fatal("empty bank should be fatal")
	}
}

func TestSynchronizeRejectsBadWeights(t *testing.T) {
	for _, w := range []float64{0, -1, math.NaN()} {
		bank := []BankedSite{site(0, w, 1, 0)}
		if _, _, err := Synchronize(bank, 5, rng.NewCycle(1, 0)); err == nil {
			t.Errorf("weight %g accepted", w)
		}
	}
}

func TestSynchronizeOrderInvariant(t *testing.T) {
	fwd := []BankedSite{
		site(0, 1, 1, 0), site(1, 2, 1, 1), site(2, 1, 3, 0), site(3, 0.5, 7, 0),
	}
	rev := []BankedSite{fwd[3], fwd[1], fwd[0], fwd[2]}

	a, _, err := Synchronize(fwd, 8, rng.NewCycle(9, 4))
	if err != nil {
		t.Fatal(err)
	}
	b, _, err := Synchronize(rev, 8, rng.NewCycle(9, 4))
	if err != nil {
		t.Fatal(err)
	}
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("site %d differs across input orders: %+v vs %+v",
				i, a[i], b[i])
		}
	}
}

func TestSynchronizeProportionalToWeight(t *testing.T) {
	// One site carries 9x the weight of the other, so it should receive
	// about 90% of the resampled slots.
	bank := []BankedSite{site(0, 9, 1, 0), site(1, 1, 2, 0)}
	out, _, err := Synchronize(bank, 1000, rng.NewCycle(1, 0))
	if err != nil {
		t.Fatal(err)
	}
	var heavy int
	for _, s := range out {
		if s.Pos[0] == 0 {
			heavy++
		}
	}
	if heavy < 890 || heavy > 910 {
		t.Errorf("heavy site drew %d of 1000 slots, want ~900", heavy)
	}
}

func TestEntropyUniformAndPoint(t *testing.T) {
	em := &EntropyMesh{
		Lower: geom.Vec{0, 0, 0},
		Upper: geom.Vec{2, 1, 1},
		Dims:  [3]int{2, 1, 1},
	}

	point := []BankedSite{site(0.5, 1, 1, 0), site(0.5, 1, 2, 0)}
	if h := em.Entropy(point); h != 0 {
		t.Errorf("point source entropy = %g, want 0", h)
	}

	uniform := []BankedSite{site(0.5, 1, 1, 0), site(1.5, 1, 2, 0)}
	if h := em.Entropy(uniform); !(math.Abs(h-1) <= 1e-12) {
		t.Errorf("two-bin uniform entropy = %g, want 1 bit", h)
	}

	outside := []BankedSite{site(-5, 1, 1, 0)}
	if h := em.Entropy(outside); h != 0 {
		t.Errorf("out-of-mesh source entropy = %g, want 0", h)
	}
}
