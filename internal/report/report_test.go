package report

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"image/color"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/MeKo-Tech/tiresias/internal/imgutil"
	"github.com/MeKo-Tech/tiresias/internal/locate"
	"github.com/MeKo-Tech/tiresias/internal/match"
	"github.com/MeKo-Tech/tiresias/internal/ocr"
	"github.com/MeKo-Tech/tiresias/internal/testutil"
)

func sampleResults(t *testing.T) []*locate.Result {
	t.Helper()
	fig, err := imgutil.EncodePNG(testutil.Solid(40, 30, color.White))
	require.NoError(t, err)
	row := ocr.Row{Text: "GAN", Polygon: []float64{1, 2, 3, 4, 5, 6}, DetScore: 0.9, RecScore: 0.75}
	return []*locate.Result{
		{Path: "/photos/a.JPG", Outcome: match.Located, Gallery: "GAN", Neighbors: []string{"G12"}, Rows: []ocr.Row{row}, Matched: []ocr.Row{row}, Figure: fig},
		{Path: "/photos/b.jpg", Outcome: match.NoText},
		{Path: "/photos/c.jpeg", Outcome: match.Ambiguous, Candidates: []string{"G12", "GAN"}, Figure: fig},
		{Path: "/photos/d.jpg", Outcome: match.Failed, Error: "decode failed"},
	}
}

func TestWriteText(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, sampleResults(t), FormatText))
	out := buf.String()
	assert.Contains(t, out, "/photos/a.JPG: galerie GAN (extension possible: G12)")
	assert.Contains(t, out, `"GAN" det=0.900 rec=0.750`)
	assert.Contains(t, out, "/photos/b.jpg: no_text")
	assert.Contains(t, out, "/photos/c.jpeg: ambiguous [G12, GAN]")
	assert.Contains(t, out, "/photos/d.jpg: error: decode failed")
}

func TestWriteJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, sampleResults(t), FormatJSON))
	var doc struct {
		Results []map[string]any `json:"results"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &doc))
	require.Len(t, doc.Results, 4)
	assert.Equal(t, "located", doc.Results[0]["outcome"])
	assert.Equal(t, "GAN", doc.Results[0]["gallery"])
	assert.Equal(t, "error", doc.Results[3]["outcome"])
	assert.NotContains(t, doc.Results[0], "Figure")
	rows := doc.Results[0]["rows"].([]any)
	assert.Equal(t, "GAN", rows[0].(map[string]any)["rec_text"])
}

func TestWriteCSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, sampleResults(t), FormatCSV))
	recs, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, recs, 5)
	assert.Equal(t, "file", recs[0][0])
	assert.Equal(t, []string{"/photos/a.JPG", "located", "GAN", "", "G12", "GAN", "0.900", "0.750", "1 2 3 4 5 6", ""}, recs[1])
	assert.Equal(t, "error", recs[4][1])
	assert.Equal(t, "decode failed", recs[4][9])
}

func TestWriteYAML(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, sampleResults(t), FormatYAML))
	var doc map[string][]map[string]any
	require.NoError(t, yaml.Unmarshal(buf.Bytes(), &doc))
	require.Len(t, doc["results"], 4)
	assert.Equal(t, "GAN", doc["results"][0]["gallery"])
	assert.Equal(t, "ambiguous", doc["results"][2]["outcome"])
	assert.Equal(t, "error", doc["results"][3]["outcome"])
}

func TestWriteUnknownFormat(t *testing.T) {
	err := Write(&bytes.Buffer{}, nil, "xml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "xml")
}

func TestSaveFiguresAndPDF(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "out")
	paths, err := SaveFigures(dir, sampleResults(t))
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join(dir, "a_tiresias.png"),
		filepath.Join(dir, "c_tiresias.png"),
	}, paths)
	for _, p := range paths {
		_, err := os.Stat(p)
		require.NoError(t, err)
	}

	pdfPath := filepath.Join(dir, "report.pdf")
	require.NoError(t, PDF(pdfPath, paths))
	n, err := PageCount(pdfPath)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	require.Error(t, PDF(pdfPath, nil))
}

func TestSaveFiguresSameStem(t *testing.T) {
	dir := t.TempDir()
	results := []*locate.Result{
		{Path: "photos/NED (13).jpg", Figure: []byte("first")},
		{Path: "photos/NED (13).JPG", Figure: []byte("second")},
		{Path: "other/NED (13).jpeg", Figure: []byte("third")},
	}
	paths, err := SaveFigures(dir, results)
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join(dir, "NED (13)_tiresias.png"),
		filepath.Join(dir, "NED (13)_2_tiresias.png"),
		filepath.Join(dir, "NED (13)_3_tiresias.png"),
	}, paths)
	for i, want := range []string{"first", "second", "third"} {
		data, err := os.ReadFile(paths[i])
		require.NoError(t, err)
		assert.Equal(t, want, string(data))
	}
}

func TestFigureName(t *testing.T) {
	assert.Equal(t, "NED_06-10-2016 (13)_tiresias.png", FigureName("/data/NED_06-10-2016 (13).JPG"))
}
