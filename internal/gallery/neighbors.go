package gallery

import "slices"

// Neighbors maps each gallery id to the ids of the other galleries closer
// than the search distance, in catalogue order.
type Neighbors map[string][]string

// FindNeighbors compares every pair of galleries. A pair is related when its
// distance is strictly below distanceMax.
func FindNeighbors(c *Catalogue, distanceMax float64) Neighbors {
	items := c.Galleries()
	related := make([][]bool, len(items))
	for i := range related {
		related[i] = make([]bool, len(items))
	}
	for i := 0; i < len(items); i++ {
		if items[i].Geometry == nil {
			continue
		}
		bi := items[i].Geometry.Bound()
		for j := i + 1; j < len(items); j++ {
			if items[j].Geometry == nil {
				continue
			}
			if boundDistance(bi, items[j].Geometry.Bound()) >= distanceMax {
				continue
			}
			if Distance(items[i].Geometry, items[j].Geometry) < distanceMax {
				related[i][j], related[j][i] = true, true
			}
		}
	}

	out := make(Neighbors, len(items))
	for i, g := range items {
		list := []string{}
		for j, other := range items {
			if related[i][j] {
				list = append(list, other.ID)
			}
		}
		out[g.ID] = list
	}
	return out
}

// Of returns the neighbours of id.
func (n Neighbors) Of(id string) []string { return n[id] }

// Related reports whether b is listed as a neighbour of a.
func (n Neighbors) Related(a, b string) bool { return slices.Contains(n[a], b) }
