package cmd

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MeKo-Tech/tiresias/internal/config"
	"github.com/MeKo-Tech/tiresias/internal/imgutil"
	"github.com/MeKo-Tech/tiresias/internal/objdet"
)

func TestSelectModels(t *testing.T) {
	t.Setenv(config.ModelsDirEnv, "")
	cfg := config.DefaultConfig()
	_, err := selectModels(&cfg, "", false)
	require.ErrorIs(t, err, errNoModels)

	cfg.ModelsDir = "/models"
	cfg.Detection.Models = []objdet.ModelSpec{
		{Name: "rtmdet", Path: "detection/rtmdet.onnx"},
		{Path: "detection/cintre.onnx", Custom: true},
	}

	specs, err := selectModels(&cfg, "", false)
	require.NoError(t, err)
	require.Len(t, specs, 1)
	assert.Equal(t, "/models/detection/rtmdet.onnx", specs[0].Path)

	specs, err = selectModels(&cfg, "Custom_cintre", false)
	require.NoError(t, err)
	assert.Equal(t, "/models/detection/cintre.onnx", specs[0].Path)

	specs, err = selectModels(&cfg, "ignored", true)
	require.NoError(t, err)
	assert.Len(t, specs, 2)

	_, err = selectModels(&cfg, "yolo", false)
	require.Error(t, err)
}

func TestFigureName(t *testing.T) {
	one := []objdet.Prediction{{Model: "rtmdet"}}
	assert.Equal(t, "p1_rtmdet.png", figureName("photos/p1.jpg", one, false))
	assert.Equal(t, "p1_benchmark.png", figureName("photos/p1.jpg", one, true))
	assert.Equal(t, "p1_benchmark.png", figureName("p1.JPG", []objdet.Prediction{{}, {}}, false))
}

func TestWriteListing(t *testing.T) {
	listing := []detectionListing{{
		File:  "p1.jpg",
		Model: "rtmdet",
		Detections: []objdet.Detection{
			{Box: imgutil.NewBox(1, 2, 30, 40), Score: 0.91, Label: "cintre"},
			{Box: imgutil.NewBox(0, 0, 5, 5), Score: 0.5, Class: 3},
		},
	}}

	var buf bytes.Buffer
	require.NoError(t, writeListing(&buf, listing, "text"))
	assert.Equal(t, "p1.jpg [rtmdet]: 2 detections\n  cintre 0.910 (1,2,30,40)\n  class 3 0.500 (0,0,5,5)\n", buf.String())

	buf.Reset()
	require.NoError(t, writeListing(&buf, listing, "json"))
	var doc map[string][]detectionListing
	require.NoError(t, json.Unmarshal(buf.Bytes(), &doc))
	assert.Equal(t, listing, doc["predictions"])
}

func TestDetectWithoutModels(t *testing.T) {
	workspace(t)
	photos(t, "photos")
	_, err := run(t, "detect", "photos")
	require.ErrorIs(t, err, errNoModels)

	_, err = run(t, "detect", "photos", "--format", "xml")
	require.Error(t, err)
}
