package gallery

import (
	"github.com/paulmach/orb/geojson"
)

// FeatureCollection exports the catalogue. When neighbors is non-nil each
// feature carries its neighbour list.
func (c *Catalogue) FeatureCollection(column string, neighbors Neighbors) *geojson.FeatureCollection {
	if column == "" {
		column = DefaultColumn
	}
	fc := geojson.NewFeatureCollection()
	for _, g := range c.items {
		f := geojson.NewFeature(g.Geometry)
		f.ID = g.ID
		f.Properties[column] = g.ID
		if c.CRS != "" {
			f.Properties["crs_wkt"] = c.CRS
		}
		if neighbors != nil {
			f.Properties["neighbors"] = neighbors.Of(g.ID)
		}
		fc.Append(f)
	}
	return fc
}

// GeoJSON marshals FeatureCollection.
func (c *Catalogue) GeoJSON(column string, neighbors Neighbors) ([]byte, error) {
	return c.FeatureCollection(column, neighbors).MarshalJSON()
}
