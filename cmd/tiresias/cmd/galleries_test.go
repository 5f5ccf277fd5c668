package cmd

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MeKo-Tech/tiresias/internal/imgutil"
	"github.com/MeKo-Tech/tiresias/internal/testutil"
)

func TestGalleriesList(t *testing.T) {
	shp := workspace(t)
	out, err := run(t, "galleries", "list", "--shapefile", shp)
	require.NoError(t, err)
	assert.Equal(t, []string{"A1", "B2", "C3"}, strings.Fields(out))
}

func TestGalleriesNeighbors(t *testing.T) {
	shp := workspace(t)

	out, err := run(t, "galleries", "neighbors", "--shapefile", shp)
	require.NoError(t, err)
	assert.Equal(t, "A1: B2\nB2: A1\nC3: \n", out)

	out, err = run(t, "galleries", "neighbors", "C3", "--shapefile", shp, "--distance", "200")
	require.NoError(t, err)
	assert.Equal(t, "C3: A1, B2\n", out)

	_, err = run(t, "galleries", "neighbors", "Z9", "--shapefile", shp)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown gallery id")

	_, err = run(t, "galleries", "neighbors", "--shapefile", shp, "--distance", "-1")
	require.Error(t, err)
}

func TestGalleriesExport(t *testing.T) {
	shp := workspace(t)

	out, err := run(t, "galleries", "export", "--shapefile", shp)
	require.NoError(t, err)
	assert.Contains(t, out, `"FeatureCollection"`)

	_, err = run(t, "galleries", "export", "--shapefile", shp, "-o", "plan.geojson")
	require.NoError(t, err)
	data, err := os.ReadFile("plan.geojson")
	require.NoError(t, err)

	var fc struct {
		Features []struct {
			Properties map[string]any `json:"properties"`
		} `json:"features"`
	}
	require.NoError(t, json.Unmarshal(data, &fc))
	require.Len(t, fc.Features, 3)
	assert.Equal(t, "A1", fc.Features[0].Properties["GALERIE"])
	assert.Equal(t, []any{"B2"}, fc.Features[0].Properties["neighbors"])
}

func TestGalleriesMap(t *testing.T) {
	shp := workspace(t)

	_, err := run(t, "galleries", "map", "A1", "--shapefile", shp)
	require.NoError(t, err)
	img, _, err := imgutil.LoadImage("A1_map.png")
	require.NoError(t, err)
	assert.Positive(t, img.Bounds().Dx())

	out := filepath.Join("maps", "b2.png")
	_, err = run(t, "galleries", "map", "B2", "--shapefile", shp, "-o", out)
	require.NoError(t, err)
	assert.True(t, testutil.FileExists(out))

	_, err = run(t, "galleries", "map", "Z9", "--shapefile", shp)
	require.Error(t, err)
}

func TestGalleriesColumnOverride(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	shp := testutil.WriteShapefile(t, dir, "plan", testutil.UniqueGalleries(), testutil.ShapefileOptions{Column: "NOM"})

	_, err := run(t, "galleries", "list", "--shapefile", shp)
	require.Error(t, err)

	out, err := run(t, "galleries", "list", "--shapefile", shp, "--column", "NOM")
	require.NoError(t, err)
	assert.Equal(t, []string{"A1", "B2", "C3"}, strings.Fields(out))
}
