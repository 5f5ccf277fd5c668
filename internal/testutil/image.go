package testutil

import (
	"image"
	"image/color"
	"image/draw"
	"image/jpeg"
	"os"
	"path/filepath"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/require"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

// PhotoConfig describes a synthetic survey photo: a plate with a painted id.
type PhotoConfig struct {
	Label      string
	Width      int
	Height     int
	Scale      int
	Background color.Color
	Foreground color.Color
}

// DefaultPhotoConfig returns a gray wall with a dark "G12" plate.
func DefaultPhotoConfig() PhotoConfig {
	return PhotoConfig{
		Label:      "G12",
		Width:      320,
		Height:     240,
		Scale:      4,
		Background: color.RGBA{180, 176, 170, 255},
		Foreground: color.RGBA{20, 20, 20, 255},
	}
}

// GeneratePhoto renders the label centred on the background, scaled up with
// nearest-neighbour so strokes stay crisp.
func GeneratePhoto(cfg PhotoConfig) *image.NRGBA {
	if cfg.Scale < 1 {
		cfg.Scale = 1
	}
	face := basicfont.Face7x13
	tw := font.MeasureString(face, cfg.Label).Ceil()
	th := face.Metrics().Height.Ceil()

	glyphs := image.NewNRGBA(image.Rect(0, 0, tw+2, th+2))
	d := &font.Drawer{Dst: glyphs, Src: image.NewUniform(cfg.Foreground), Face: face, Dot: fixed.P(1, th-1)}
	d.DrawString(cfg.Label)
	label := imaging.Resize(glyphs, glyphs.Bounds().Dx()*cfg.Scale, 0, imaging.NearestNeighbor)

	img := imaging.New(cfg.Width, cfg.Height, cfg.Background)
	pos := image.Pt((cfg.Width-label.Bounds().Dx())/2, (cfg.Height-label.Bounds().Dy())/2)
	draw.Draw(img, label.Bounds().Add(pos), label, image.Point{}, draw.Over)
	return img
}

// Solid returns a uniform image.
func Solid(w, h int, c color.Color) *image.NRGBA {
	return imaging.New(w, h, c)
}

// SaveJPEG writes img under dir and returns its path.
func SaveJPEG(t *testing.T, dir, name string, img image.Image) string {
	t.Helper()
	require.NoError(t, EnsureDir(dir))
	path := filepath.Join(dir, name)
	f, err := os.Create(path) //nolint:gosec // G304: test output path
	require.NoError(t, err)
	defer func() { require.NoError(t, f.Close()) }()
	require.NoError(t, jpeg.Encode(f, img, &jpeg.Options{Quality: 90}))
	return path
}
