package gallery

import (
	"sort"

	"github.com/paulmach/orb"
)

// CheckUnique returns raw unchanged when every id is unique. Otherwise it
// groups records by id in sorted order, drops ids longer than maxIDLength,
// merges the geometries of repeated ids and keeps the first geometry of the
// others.
func CheckUnique(raw []Gallery, maxIDLength int) []Gallery {
	counts := make(map[string]int, len(raw))
	for _, g := range raw {
		counts[g.ID]++
	}
	if len(counts) == len(raw) {
		return raw
	}
	return merge(raw, counts, maxIDLength)
}

func merge(raw []Gallery, counts map[string]int, maxIDLength int) []Gallery {
	groups := make(map[string][]orb.Geometry, len(counts))
	for _, g := range raw {
		groups[g.ID] = append(groups[g.ID], g.Geometry)
	}
	ids := make([]string, 0, len(groups))
	for id := range groups {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	out := make([]Gallery, 0, len(ids))
	for _, id := range ids {
		if maxIDLength > 0 && len([]rune(id)) > maxIDLength {
			continue
		}
		geoms := groups[id]
		if counts[id] > 1 {
			out = append(out, Gallery{ID: id, Geometry: union(geoms)})
			continue
		}
		out = append(out, Gallery{ID: id, Geometry: geoms[0]})
	}
	return out
}

// union collects every member polygon into one MultiPolygon.
func union(geoms []orb.Geometry) orb.MultiPolygon {
	var mp orb.MultiPolygon
	for _, g := range geoms {
		mp = append(mp, polygons(g)...)
	}
	return mp
}
