package contact

import (
	"log/slog"
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/san-kum/demcontact/internal/dynamo"
	"github.com/san-kum/demcontact/internal/geom"
	"github.com/san-kum/demcontact/internal/particle"
)

// addStress adds the dyadic product of a contact force and its branch
// vector: stress(i,j) += arm[j]*force[i].
func addStress(stress *mat.Dense, arm, force r3.Vec) {
	a, f := geom.Components(arm), geom.Components(force)
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			stress.Set(i, j, stress.At(i, j)+a[j]*f[i])
		}
	}
}

func symmetrizeAverage(m *mat.Dense) {
	for i := 0; i < 3; i++ {
		for j := i + 1; j < 3; j++ {
			v := 0.5 * (m.At(i, j) + m.At(j, i))
			m.Set(i, j, v)
			m.Set(j, i, v)
		}
	}
}

// symmetrizeLargest keeps, for every off-diagonal pair, the entry of
// larger magnitude.
func symmetrizeLargest(dst, src *mat.Dense) {
	for i := 0; i < 3; i++ {
		dst.Set(i, i, src.At(i, i))
		for j := i + 1; j < 3; j++ {
			v := src.At(i, j)
			if w := src.At(j, i); math.Abs(w) > math.Abs(v) {
				v = w
			}
			dst.Set(i, j, v)
			dst.Set(j, i, v)
		}
	}
}

// differentialStrain is the best-fit displacement gradient of the particle
// and its neighbours over the step (Bagi). With fewer neighbours than the
// dimension, or a degenerate arrangement, the increment is zero.
func (e *Engine) differentialStrain(p *particle.Particle, ctx *dynamo.StepContext) {
	d := p.DifferentialStrainTensor
	d.Zero()

	type sample struct{ pos, delta r3.Vec }
	samples := []sample{{p.Node.Position, p.Node.DeltaDisplacement}}
	for _, id := range p.Neighbours {
		if id == particle.NoNeighbour {
			continue
		}
		other, ok := e.model.Particle(id)
		if !ok {
			continue
		}
		pos := e.image(ctx, p.Node.Position, other.Node.Position)
		samples = append(samples, sample{pos, other.Node.DeltaDisplacement})
	}
	dim := ctx.Dimension
	if len(samples)-1 < dim {
		return
	}

	var centroid, mean r3.Vec
	for _, s := range samples {
		centroid = r3.Add(centroid, s.pos)
		mean = r3.Add(mean, s.delta)
	}
	inv := 1 / float64(len(samples))
	centroid = r3.Scale(inv, centroid)
	mean = r3.Scale(inv, mean)

	c := mat.NewDense(3, 3, nil)
	rhs := mat.NewDense(3, 3, nil)
	for _, s := range samples {
		r := geom.Components(r3.Sub(s.pos, centroid))
		u := geom.Components(r3.Sub(s.delta, mean))
		for i := 0; i < dim; i++ {
			for j := 0; j < dim; j++ {
				c.Set(j, i, c.At(j, i)+r[j]*r[i])
				rhs.Set(j, i, rhs.At(j, i)+u[i]*r[j])
			}
		}
	}
	if dim == 2 {
		c.Set(2, 2, 1)
		rhs.Set(2, 2, 1)
	}

	var cInv mat.Dense
	if err := cInv.Inverse(c); err != nil {
		e.log.Debug("degenerate neighbourhood for strain", slog.Int("particle", p.ID), slog.Any("err", err))
		return
	}
	d.Mul(&cInv, rhs)

	if dim == 2 {
		for k := 0; k < 3; k++ {
			d.Set(2, k, 0)
			d.Set(k, 2, 0)
		}
	}
}
