package experiment

import "github.com/san-kum/demcontact/internal/config"

// Lattice returns the centres of a simple cubic lattice. In two dimensions
// only the first layer along z is generated.
func Lattice(l config.LatticeConfig, dimension int) []config.Vec {
	nz := l.Counts[2]
	if dimension == 2 {
		nz = min(nz, 1)
	}
	out := make([]config.Vec, 0, max(0, l.Counts[0]*l.Counts[1]*nz))
	for k := 0; k < nz; k++ {
		for j := 0; j < l.Counts[1]; j++ {
			for i := 0; i < l.Counts[0]; i++ {
				out = append(out, config.Vec{
					l.Origin[0] + float64(i)*l.Spacing,
					l.Origin[1] + float64(j)*l.Spacing,
					l.Origin[2] + float64(k)*l.Spacing,
				})
			}
		}
	}
	return out
}
