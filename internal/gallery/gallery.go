// Package gallery loads the gallery plan from a shapefile and answers the
// geometric questions asked of it: identifiers, neighbours, nearest points
// and cropped extensions.
package gallery

import (
	"errors"
	"sort"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
)

// Defaults for Options and the neighbour search.
const (
	DefaultColumn      = "GALERIE"
	DefaultMaxIDLength = 3
	DefaultDistance    = 0.1
	DefaultBufferSize  = 10.0
)

// ErrUnknownID is returned when an id is not in the catalogue.
var ErrUnknownID = errors.New("unknown gallery id")

// Gallery is one identified geometry. Geometry is an orb.Polygon or, after
// merging, an orb.MultiPolygon.
type Gallery struct {
	ID       string
	Geometry orb.Geometry
}

// Catalogue is an ordered set of galleries with unique ids.
type Catalogue struct {
	CRS   string
	items []Gallery
	index map[string]int
}

// NewCatalogue indexes galleries. Later duplicates of an id are ignored.
func NewCatalogue(crs string, galleries []Gallery) *Catalogue {
	c := &Catalogue{CRS: crs, index: make(map[string]int, len(galleries))}
	for _, g := range galleries {
		if _, dup := c.index[g.ID]; dup {
			continue
		}
		c.index[g.ID] = len(c.items)
		c.items = append(c.items, g)
	}
	return c
}

// Len returns the number of galleries.
func (c *Catalogue) Len() int { return len(c.items) }

// Galleries returns the galleries in catalogue order.
func (c *Catalogue) Galleries() []Gallery { return c.items }

// IDs returns the ids in catalogue order.
func (c *Catalogue) IDs() []string {
	ids := make([]string, len(c.items))
	for i, g := range c.items {
		ids[i] = g.ID
	}
	return ids
}

// Names returns the id set used to validate OCR text.
func (c *Catalogue) Names() map[string]struct{} {
	names := make(map[string]struct{}, len(c.items))
	for _, g := range c.items {
		names[g.ID] = struct{}{}
	}
	return names
}

// SortedIDs returns the ids in lexical order.
func (c *Catalogue) SortedIDs() []string {
	ids := c.IDs()
	sort.Strings(ids)
	return ids
}

// Get looks up a gallery by id.
func (c *Catalogue) Get(id string) (Gallery, bool) {
	i, ok := c.index[id]
	if !ok {
		return Gallery{}, false
	}
	return c.items[i], true
}

// Bound is the extent of the whole plan.
func (c *Catalogue) Bound() orb.Bound {
	if len(c.items) == 0 {
		return orb.Bound{}
	}
	b := c.items[0].Geometry.Bound()
	for _, g := range c.items[1:] {
		b = b.Union(g.Geometry.Bound())
	}
	return b
}

// Centroid returns the area centroid of the gallery.
func (c *Catalogue) Centroid(id string) (orb.Point, error) {
	g, ok := c.Get(id)
	if !ok {
		return orb.Point{}, ErrUnknownID
	}
	p, _ := planar.CentroidArea(g.Geometry)
	return p, nil
}

// polygons flattens a geometry into its polygons.
func polygons(g orb.Geometry) []orb.Polygon {
	switch v := g.(type) {
	case orb.Polygon:
		return []orb.Polygon{v}
	case orb.MultiPolygon:
		return v
	case orb.Ring:
		return []orb.Polygon{{v}}
	case orb.Collection:
		var out []orb.Polygon
		for _, sub := range v {
			out = append(out, polygons(sub)...)
		}
		return out
	default:
		return nil
	}
}

// Polygons exposes the polygons of a gallery geometry for drawing.
func Polygons(g orb.Geometry) []orb.Polygon { return polygons(g) }
