package io

import (
	"fmt"
	"os"
	"path"
	"sort"

	"gopkg.in/yaml.v3"

	"gomc/geom"
	"gomc/physics"
)

// surfaceKinds maps the kind names used in model files.
var surfaceKinds = map[string]geom.SurfaceKind{
	"x-plane":    geom.XPlane,
	"y-plane":    geom.YPlane,
	"z-plane":    geom.ZPlane,
	"plane":      geom.Plane,
	"x-cylinder": geom.XCylinder,
	"y-cylinder": geom.YCylinder,
	"z-cylinder": geom.ZCylinder,
	"sphere":     geom.SphereSurf,
	"x-cone":     geom.XCone,
	"y-cone":     geom.YCone,
	"z-cone":     geom.ZCone,
	"quadric":    geom.Quadric,
	"box":        geom.BoxSurf,
}

var boundaryKinds = map[string]geom.BoundaryKind{
	"":           geom.BCTransmit,
	"transmit":   geom.BCTransmit,
	"vacuum":     geom.BCVacuum,
	"reflective": geom.BCReflective,
	"periodic":   geom.BCPeriodic,
}

type surfaceSpec struct {
	ID       int       `yaml:"id"`
	Kind     string    `yaml:"kind"`
	Coeffs   []float64 `yaml:"coeffs"`
	Boundary string    `yaml:"boundary"`
}

type cellSpec struct {
	ID          int       `yaml:"id"`
	Universe    int       `yaml:"universe"`
	Region      string    `yaml:"region"`
	Material    string    `yaml:"material"`
	Fill        *int      `yaml:"fill"`
	Lattice     *int      `yaml:"lattice"`
	Translation []float64 `yaml:"translation"`
}

type latticeSpec struct {
	ID        int       `yaml:"id"`
	Shape     []int     `yaml:"shape"`
	Lower     []float64 `yaml:"lower"`
	Pitch     []float64 `yaml:"pitch"`
	Universes []int     `yaml:"universes"`
	Outer     *int      `yaml:"outer"`
}

type materialSpec struct {
	Name string `yaml:"name"`
	File string `yaml:"file"`

	// Inline cross sections, used when File is empty.
	Edges   []float64   `yaml:"edges"`
	SigmaT  []float64   `yaml:"sigma_t"`
	SigmaA  []float64   `yaml:"sigma_a"`
	SigmaF  []float64   `yaml:"sigma_f"`
	Nu      []float64   `yaml:"nu"`
	Scatter [][]float64 `yaml:"scatter"`
	WattA   float64     `yaml:"watt_a"`
	WattB   float64     `yaml:"watt_b"`
}

type modelFile struct {
	Root      int            `yaml:"root"`
	Surfaces  []surfaceSpec  `yaml:"surfaces"`
	Cells     []cellSpec     `yaml:"cells"`
	Lattices  []latticeSpec  `yaml:"lattices"`
	Periodic  [][]int        `yaml:"periodic"`
	Materials []materialSpec `yaml:"materials"`
}

// LoadModel reads a yaml model description and builds the finalized
// geometry together with its materials. Cross-section files named by
// materials are resolved relative to the model file.
func LoadModel(fname string) (*geom.Model, []physics.Material, error) {
	data, err := os.ReadFile(fname)
	if err != nil {
		return nil, nil, fmt.Errorf("io: %v", err)
	}
	var mf modelFile
	if err := yaml.Unmarshal(data, &mf); err != nil {
		return nil, nil, fmt.Errorf("io: parsing %s: %v", fname, err)
	}
	return buildModel(&mf, path.Dir(fname))
}

func buildModel(mf *modelFile, dir string) (*geom.Model, []physics.Material, error) {
	mats, matByName, err := buildMaterials(mf.Materials, dir)
	if err != nil {
		return nil, nil, err
	}

	m := geom.NewModel()
	for _, ss := range mf.Surfaces {
		kind, ok := surfaceKinds[ss.Kind]
		if !ok {
			return nil, nil, fmt.Errorf(
				"io: surface %d: unknown kind %q", ss.ID, ss.Kind)
		}
		bc, ok := boundaryKinds[ss.Boundary]
		if !ok {
			return nil, nil, fmt.Errorf(
				"io: surface %d: unknown boundary %q", ss.ID, ss.Boundary)
		}
		if _, err := m.AddSurface(ss.ID, kind, ss.Coeffs, bc); err != nil {
			return nil, nil, err
		}
	}

	// Universes are implicit: every id referenced anywhere gets created,
	// in sorted order so handles are stable.
	univIDs := map[int]bool{mf.Root: true}
	for _, cs := range mf.Cells {
		univIDs[cs.Universe] = true
		if cs.Fill != nil {
			univIDs[*cs.Fill] = true
		}
	}
	for _, ls := range mf.Lattices {
		for _, id := range ls.Universes {
			univIDs[id] = true
		}
		if ls.Outer != nil {
			univIDs[*ls.Outer] = true
		}
	}
	ids := make([]int, 0, len(univIDs))
	for id := range univIDs {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	for _, id := range ids {
		if _, err := m.AddUniverse(id); err != nil {
			return nil, nil, err
		}
	}
	univ := func(id int) int {
		h, _ := m.UniverseHandle(id)
		return h
	}

	latByID := make(map[int]int)
	for _, ls := range mf.Lattices {
		if len(ls.Shape) != 3 || len(ls.Lower) != 3 || len(ls.Pitch) != 3 {
			return nil, nil, fmt.Errorf(
				"io: lattice %d: shape, lower and pitch need 3 entries", ls.ID)
		}
		lat := geom.Lattice{
			ID:    ls.ID,
			Shape: [3]int{ls.Shape[0], ls.Shape[1], ls.Shape[2]},
			Lower: geom.Vec{ls.Lower[0], ls.Lower[1], ls.Lower[2]},
			Pitch: geom.Vec{ls.Pitch[0], ls.Pitch[1], ls.Pitch[2]},
			Outer: -1,
		}
		if ls.Outer != nil {
			lat.Outer = univ(*ls.Outer)
		}
		lat.Universes = make([]int, len(ls.Universes))
		for i, id := range ls.Universes {
			lat.Universes[i] = univ(id)
		}
		h, err := m.AddLattice(lat)
		if err != nil {
			return nil, nil, err
		}
		latByID[ls.ID] = h
	}

	for _, cs := range mf.Cells {
		spec := geom.CellSpec{
			ID:       cs.ID,
			Universe: univ(cs.Universe),
			Region:   cs.Region,
			Material: -1,
		}
		if len(cs.Translation) == 3 {
			spec.Translation = geom.Vec{
				cs.Translation[0], cs.Translation[1], cs.Translation[2],
			}
		}
		switch {
		case cs.Lattice != nil:
			h, ok := latByID[*cs.Lattice]
			if !ok {
				return nil, nil, fmt.Errorf(
					"io: cell %d: unknown lattice %d", cs.ID, *cs.Lattice)
			}
			spec.Fill = geom.FillLattice
			spec.FillLat = h
		case cs.Fill != nil:
			spec.Fill = geom.FillUniverse
			spec.FillUniv = univ(*cs.Fill)
		case cs.Material == "" || cs.Material == "void":
			spec.Fill = geom.FillMaterial
		default:
			h, ok := matByName[cs.Material]
			if !ok {
				return nil, nil, fmt.Errorf(
					"io: cell %d: unknown material %q", cs.ID, cs.Material)
			}
			spec.Fill = geom.FillMaterial
			spec.Material = h
		}
		if _, err := m.AddCell(spec); err != nil {
			return nil, nil, err
		}
	}

	for _, pair := range mf.Periodic {
		if len(pair) != 2 {
			return nil, nil, fmt.Errorf(
				"io: periodic pairs need exactly 2 surface ids, got %v", pair)
		}
		if err := m.PairPeriodic(pair[0], pair[1]); err != nil {
			return nil, nil, err
		}
	}

	m.SetRoot(univ(mf.Root))
	if err := m.Finalize(); err != nil {
		return nil, nil, err
	}
	return m, mats, nil
}

func buildMaterials(specs []materialSpec, dir string) ([]physics.Material,
	map[string]int, error) {

	mats := make([]physics.Material, 0, len(specs))
	byName := make(map[string]int)
	for i, ms := range specs {
		if ms.Name == "" {
			return nil, nil, fmt.Errorf("io: material %d has no name", i)
		}
		if _, dup := byName[ms.Name]; dup {
			return nil, nil, fmt.Errorf("io: duplicate material %q", ms.Name)
		}

		var mat physics.Material
		if ms.File != "" {
			file := ms.File
			if !path.IsAbs(file) {
				file = path.Join(dir, file)
			}
			var err error
			mat, err = physics.ReadCrossSections(file, i, ms.Name)
			if err != nil {
				return nil, nil, err
			}
		} else {
			mat = physics.Material{
				ID:     i,
				Name:   ms.Name,
				Groups: len(ms.SigmaT),
				Edges:  ms.Edges,
				SigmaT: ms.SigmaT,
				SigmaA: ms.SigmaA,
				SigmaF: ms.SigmaF,
				Nu:     ms.Nu,
			}
			// Non-fissile materials may leave fission data out.
			if mat.SigmaF == nil {
				mat.SigmaF = make([]float64, mat.Groups)
			}
			if mat.Nu == nil {
				mat.Nu = make([]float64, mat.Groups)
			}
			if err := mat.Validate(); err != nil {
				return nil, nil, err
			}
		}
		mat.Scatter = ms.Scatter
		mat.WattA, mat.WattB = ms.WattA, ms.WattB

		byName[ms.Name] = len(mats)
		mats = append(mats, mat)
	}
	return mats, byName, nil
}
