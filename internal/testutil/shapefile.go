package testutil

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/jonas-p/go-shp"
	"github.com/stretchr/testify/require"
)

// GalleryRecord is one polygon row of a fixture shapefile. Each ring is a
// closed list of x,y pairs.
type GalleryRecord struct {
	ID    string
	Rings [][][2]float64
}

// Square returns a closed axis-aligned ring.
func Square(x, y, side float64) [][2]float64 {
	return [][2]float64{{x, y}, {x, y + side}, {x + side, y + side}, {x + side, y}, {x, y}}
}

// LambertWKT is a short projected CRS used for .prj fixtures.
const LambertWKT = `PROJCS["RGF93_Lambert_93",GEOGCS["GCS_RGF_1993",DATUM["D_RGF_1993",SPHEROID["GRS_1980",6378137.0,298.257222101]],PRIMEM["Greenwich",0.0],UNIT["Degree",0.0174532925199433]],PROJECTION["Lambert_Conformal_Conic"],UNIT["Meter",1.0]]`

// SampleGalleries is a small gallery plan:
//   - A1 and B2 share an edge,
//   - C3 is isolated,
//   - D4 appears twice, its halves 0.05 apart,
//   - E5 sits 0.05 from B2,
//   - LONG is an id longer than the merge limit.
func SampleGalleries() []GalleryRecord {
	return []GalleryRecord{
		{ID: "A1", Rings: [][][2]float64{Square(0, 0, 10)}},
		{ID: "B2", Rings: [][][2]float64{Square(10, 0, 10)}},
		{ID: "C3", Rings: [][][2]float64{Square(100, 100, 10)}},
		{ID: "D4", Rings: [][][2]float64{Square(0, 40, 10)}},
		{ID: "D4", Rings: [][][2]float64{Square(10.05, 40, 10)}},
		{ID: "E5", Rings: [][][2]float64{Square(20.05, 0, 5)}},
		{ID: "LONG", Rings: [][][2]float64{Square(200, 200, 5)}},
	}
}

// UniqueGalleries is SampleGalleries without duplicates or long ids.
func UniqueGalleries() []GalleryRecord {
	return []GalleryRecord{
		{ID: "A1", Rings: [][][2]float64{Square(0, 0, 10)}},
		{ID: "B2", Rings: [][][2]float64{Square(10, 0, 10)}},
		{ID: "C3", Rings: [][][2]float64{Square(100, 100, 10)}},
	}
}

// ShapefileOptions controls the sidecar files written with the fixture.
type ShapefileOptions struct {
	Column   string // defaults to GALERIE
	PRJ      string
	Codepage string
}

// WriteShapefile writes recs as a polygon shapefile under dir and returns the .shp path.
func WriteShapefile(t *testing.T, dir, name string, recs []GalleryRecord, opts ShapefileOptions) string {
	t.Helper()
	require.NoError(t, EnsureDir(dir))
	if opts.Column == "" {
		opts.Column = "GALERIE"
	}
	path := filepath.Join(dir, name+".shp")

	w, err := shp.Create(path, shp.POLYGON)
	require.NoError(t, err)
	require.NoError(t, w.SetFields([]shp.Field{shp.StringField(opts.Column, 16)}))

	for _, rec := range recs {
		parts := make([][]shp.Point, 0, len(rec.Rings))
		for _, ring := range rec.Rings {
			pts := make([]shp.Point, 0, len(ring))
			for _, p := range ring {
				pts = append(pts, shp.Point{X: p[0], Y: p[1]})
			}
			parts = append(parts, pts)
		}
		poly := shp.Polygon(*shp.NewPolyLine(parts))
		row := w.Write(&poly)
		require.NoError(t, w.WriteAttribute(int(row), 0, rec.ID))
	}
	w.Close()

	base := strings.TrimSuffix(path, ".shp")
	if opts.PRJ != "" {
		require.NoError(t, os.WriteFile(base+".prj", []byte(opts.PRJ), 0o600))
	}
	if opts.Codepage != "" {
		require.NoError(t, os.WriteFile(base+".cpg", []byte(opts.Codepage), 0o600))
	}
	return path
}
