package physics

import (
	"fmt"

	"github.com/phil-mansfield/table"
)

// ReadCrossSections reads a multigroup cross-section table from a
// whitespace-delimited text file. Each row is one energy group, highest
// energy first, with columns
//
//	E_hi  E_lo  sigma_t  sigma_a  sigma_f  nu
//
// in MeV and 1/cm. Comment lines starting with '#' are skipped by the
// table reader. The scatter matrix, if any, is set separately.
func ReadCrossSections(file string, id int, name string) (_ Material, err error) {
	// The table package reports failures by panicking; translate those
	// into the error return expected by callers.
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("physics: %s: %v", file, r)
		}
	}()
	colIdxs := []int{0, 1, 2, 3, 4, 5}
	cols := table.TextFile(file).ReadFloat64s(colIdxs)

	eHi, eLo := cols[0], cols[1]
	groups := len(eHi)
	if groups == 0 {
		return Material{}, fmt.Errorf("physics: %s: empty table", file)
	}

	m := Material{
		ID:     id,
		Name:   name,
		Groups: groups,
		Edges:  make([]float64, groups+1),
		SigmaT: cols[2],
		SigmaA: cols[3],
		SigmaF: cols[4],
		Nu:     cols[5],
	}
	for g := 0; g < groups; g++ {
		m.Edges[g] = eHi[g]
		if g > 0 && eLo[g-1] != eHi[g] {
			return Material{}, fmt.Errorf(
				"physics: %s: group %d does not abut group %d", file, g-1, g)
		}
	}
	m.Edges[groups] = eLo[groups-1]

	if err := m.Validate(); err != nil {
		return Material{}, err
	}
	return m, nil
}
