package gallery

import (
	"fmt"
	"math"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

func squaresCatalogue(xs, ys []float64) *Catalogue {
	var gs []Gallery
	for i := range xs {
		gs = append(gs, Gallery{ID: fmt.Sprintf("G%d", i), Geometry: square(xs[i], ys[i], 2)})
	}
	return NewCatalogue("", gs)
}

func TestNeighborsProperties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 50
	properties := gopter.NewProperties(parameters)

	coords := gen.SliceOfN(8, gen.Float64Range(0, 12))

	properties.Property("neighbour relation is symmetric and irreflexive", prop.ForAll(
		func(xs, ys []float64) bool {
			n := FindNeighbors(squaresCatalogue(xs, ys), 0.5)
			for id, list := range n {
				for _, other := range list {
					if other == id || !n.Related(other, id) {
						return false
					}
				}
			}
			return true
		},
		coords, coords,
	))

	properties.Property("distance is symmetric and non-negative", prop.ForAll(
		func(xs, ys []float64) bool {
			a := square(xs[0], ys[0], 2)
			b := square(xs[1], ys[1], 3)
			d1, d2 := Distance(a, b), Distance(b, a)
			return d1 >= 0 && math.Abs(d1-d2) < 1e-9
		},
		coords, coords,
	))

	properties.Property("distance never exceeds the bound gap plus diagonals", prop.ForAll(
		func(xs, ys []float64) bool {
			a := square(xs[2], ys[2], 1)
			b := square(xs[3], ys[3], 1)
			return Distance(a, b)+1e-9 >= boundDistance(a.Bound(), b.Bound())
		},
		coords, coords,
	))

	properties.TestingRun(t)
}
