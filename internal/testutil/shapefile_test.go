package testutil

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/jonas-p/go-shp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteShapefile(t *testing.T) {
	dir := t.TempDir()
	path := WriteShapefile(t, dir, "galeries", UniqueGalleries(), ShapefileOptions{PRJ: LambertWKT})
	assert.True(t, FileExists(filepath.Join(dir, "galeries.dbf")))
	assert.True(t, FileExists(filepath.Join(dir, "galeries.prj")))

	r, err := shp.Open(path)
	require.NoError(t, err)
	defer r.Close()

	var ids []string
	for r.Next() {
		n, shape := r.Shape()
		_, ok := shape.(*shp.Polygon)
		assert.True(t, ok)
		ids = append(ids, strings.Trim(r.ReadAttribute(n, 0), " \x00"))
	}
	assert.Equal(t, []string{"A1", "B2", "C3"}, ids)
}
