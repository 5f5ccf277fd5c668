package cmd

import (
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MeKo-Tech/tiresias/internal/locate"
	"github.com/MeKo-Tech/tiresias/internal/match"
	"github.com/MeKo-Tech/tiresias/internal/report"
	"github.com/MeKo-Tech/tiresias/internal/testutil"
)

func TestLocateJSON(t *testing.T) {
	shp := workspace(t)
	photos(t, "photos")
	useFakeEngine(t)

	out, err := run(t, "locate", "photos", "--shapefile", shp, "--format", "json", "--workers", "2")
	require.NoError(t, err)

	var doc struct {
		Results []locate.Result `json:"results"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &doc))
	require.Len(t, doc.Results, 3)

	assert.Equal(t, filepath.Join("photos", "p1.jpg"), doc.Results[0].Path)
	assert.Equal(t, match.Located, doc.Results[0].Outcome)
	assert.Equal(t, "A1", doc.Results[0].Gallery)
	assert.Equal(t, []string{"B2"}, doc.Results[0].Neighbors)
	assert.Equal(t, match.NoText, doc.Results[1].Outcome)
	assert.Equal(t, match.NoGallery, doc.Results[2].Outcome)
	assert.Equal(t, "fake", doc.Results[0].Engine)
}

func TestLocateText(t *testing.T) {
	shp := workspace(t)
	photos(t, "photos")
	useFakeEngine(t)

	out, err := run(t, "locate", filepath.Join("photos", "p1.jpg"), "--shapefile", shp)
	require.NoError(t, err)
	assert.Contains(t, out, "galerie A1")
	assert.Contains(t, out, "B2")
}

func TestLocateFiguresAndPDF(t *testing.T) {
	shp := workspace(t)
	photos(t, "photos")
	useFakeEngine(t)

	pdf := filepath.Join("out", "report.pdf")
	_, err := run(t, "locate", "photos", "--shapefile", shp, "--out-dir", "figures", "--pdf", pdf, "--no-neighbors")
	require.NoError(t, err)

	assert.True(t, testutil.FileExists(filepath.Join("figures", "p1"+report.FigureSuffix)))
	assert.False(t, testutil.FileExists(filepath.Join("figures", "p2"+report.FigureSuffix)), "no figure without text")
	assert.True(t, testutil.FileExists(filepath.Join("figures", "p3"+report.FigureSuffix)))

	pages, err := report.PageCount(pdf)
	require.NoError(t, err)
	assert.Equal(t, 2, pages)
}

func TestLocatePDFWithoutOutDir(t *testing.T) {
	shp := workspace(t)
	photos(t, "photos")
	useFakeEngine(t)

	_, err := run(t, "locate", "photos", "--shapefile", shp, "--pdf", "report.pdf")
	require.NoError(t, err)
	assert.True(t, testutil.FileExists("report.pdf"))
	assert.False(t, testutil.DirExists("figures"))
}

func TestLocateErrors(t *testing.T) {
	tests := []struct {
		name string
		args func(shp string) []string
		want string
	}{
		{"no shapefile", func(string) []string { return []string{"locate", "photos"} }, "no gallery shapefile"},
		{"missing input", func(shp string) []string { return []string{"locate", "nowhere", "--shapefile", shp} }, "path not found"},
		{"bad format", func(shp string) []string {
			return []string{"locate", "photos", "--shapefile", shp, "--format", "xml"}
		}, "invalid output format"},
		{"bad workers", func(shp string) []string {
			return []string{"locate", "photos", "--shapefile", shp, "--workers", "0"}
		}, "--workers"},
		{"store without dsn", func(shp string) []string {
			return []string{"locate", "photos", "--shapefile", shp, "--store"}
		}, "dsn"},
		{"unknown engine", func(shp string) []string {
			return []string{"locate", "photos", "--shapefile", shp, "--engine", "easyocr"}
		}, "invalid ocr engine"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			shp := workspace(t)
			photos(t, "photos")
			useFakeEngine(t)

			_, err := run(t, tt.args(shp)...)
			require.Error(t, err)
			assert.Contains(t, strings.ToLower(err.Error()), strings.ToLower(tt.want))
		})
	}
}
