package render

import (
	"image"
	"image/color"
	"testing"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/image/colornames"

	"github.com/MeKo-Tech/tiresias/internal/gallery"
	"github.com/MeKo-Tech/tiresias/internal/imgutil"
	"github.com/MeKo-Tech/tiresias/internal/ocr"
)

func solid(w, h int, c color.Color) image.Image {
	return NewCanvas(w, h, c).Image()
}

func square(x, y, s float64) orb.Polygon {
	return orb.Polygon{{{x, y}, {x, y + s}, {x + s, y + s}, {x + s, y}, {x, y}}}
}

func testCatalogue() *gallery.Catalogue {
	return gallery.NewCatalogue("", []gallery.Gallery{
		{ID: "A1", Geometry: square(0, 0, 100)},
		{ID: "B2", Geometry: square(100, 0, 100)},
		{ID: "C3", Geometry: square(300, -300, 100)},
	})
}

func sameRGB(t *testing.T, want color.Color, got color.Color) {
	t.Helper()
	w := color.NRGBAModel.Convert(want).(color.NRGBA)
	g := color.NRGBAModel.Convert(got).(color.NRGBA)
	assert.Equal(t, [3]uint8{w.R, w.G, w.B}, [3]uint8{g.R, g.G, g.B})
}

func TestParseColor(t *testing.T) {
	tests := []struct {
		in      string
		want    color.NRGBA
		wantErr bool
	}{
		{in: "blue", want: color.NRGBA{0, 0, 255, 255}},
		{in: " Yellow ", want: color.NRGBA{255, 255, 0, 255}},
		{in: "#ff8000", want: color.NRGBA{255, 128, 0, 255}},
		{in: "#zzz", wantErr: true},
		{in: "ultraviolet", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseColor(tt.in)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestWithAlphaAndDarken(t *testing.T) {
	assert.Equal(t, uint8(102), WithAlpha(colornames.Green, 0.4).A)
	d := Darken(color.White, 1)
	assert.Equal(t, color.NRGBA{0, 0, 0, 255}, d)
}

func TestCanvasFillAndStroke(t *testing.T) {
	c := NewCanvas(20, 20, color.White)
	c.Fill([][]imgutil.Point{{{X: 2, Y: 2}, {X: 10, Y: 2}, {X: 10, Y: 10}, {X: 2, Y: 10}}}, color.Black)
	sameRGB(t, color.Black, c.Image().At(5, 5))
	sameRGB(t, color.White, c.Image().At(15, 15))

	c.Line(imgutil.Point{X: 0, Y: 15}, imgutil.Point{X: 19, Y: 15}, 2, colornames.Red)
	sameRGB(t, colornames.Red, c.Image().At(10, 15))
}

func TestCanvasFillHole(t *testing.T) {
	c := NewCanvas(30, 30, color.White)
	outer := []imgutil.Point{{X: 0, Y: 0}, {X: 30, Y: 0}, {X: 30, Y: 30}, {X: 0, Y: 30}}
	hole := []imgutil.Point{{X: 10, Y: 10}, {X: 10, Y: 20}, {X: 20, Y: 20}, {X: 20, Y: 10}}
	c.Fill([][]imgutil.Point{outer, hole}, color.Black)
	sameRGB(t, color.Black, c.Image().At(5, 5))
	sameRGB(t, color.White, c.Image().At(15, 15))
}

func TestText(t *testing.T) {
	c := NewCanvas(100, 40, color.White)
	c.Text("G12", 50, 30, 2, color.Black, AlignCenter)
	dark := 0
	for y := 0; y < 40; y++ {
		for x := 0; x < 100; x++ {
			if r, _, _, _ := c.Image().At(x, y).RGBA(); r < 0x8000 {
				dark++
			}
		}
	}
	assert.Positive(t, dark)
	w, h := TextSize("G12", 2)
	assert.Equal(t, 42, w)
	assert.Equal(t, 26, h)
}

func TestRawPanel(t *testing.T) {
	p := RawPanel(solid(200, 100, color.Black), "/data/photo.jpg", 64)
	assert.Equal(t, image.Rect(0, 0, 64, 64+titleBarHeight), p.Bounds())
	// letterboxed: band above and below the photo stays white
	sameRGB(t, color.White, p.At(32, titleBarHeight+2))
	sameRGB(t, color.Black, p.At(32, titleBarHeight+32))
}

func TestDetectionPanel(t *testing.T) {
	rows := []ocr.Row{{Text: "G12", Polygon: []float64{20, 40, 80, 40, 80, 80, 20, 80}}}
	p := DetectionPanel(solid(100, 100, color.White), rows, 100)
	inside := color.NRGBAModel.Convert(p.At(50, titleBarHeight+60)).(color.NRGBA)
	assert.Greater(t, inside.G, inside.R)
	sameRGB(t, color.White, p.At(5, titleBarHeight+95))
}

func TestMapPanel(t *testing.T) {
	style := DefaultStyle()
	style.PanelSize = 400
	style.BufferSize = 30
	p, err := MapPanel(testCatalogue(), "A1", []string{"B2"}, style)
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 400, 400+titleBarHeight), p.Bounds())

	frame := newMapFrame(testCatalogue().Bound(), 400)
	at := func(x, y float64) color.Color {
		q := frame.toPanel(orb.Point{x, y})
		return p.At(int(q.X), int(q.Y)+titleBarHeight)
	}
	sameRGB(t, style.OCRColor, at(80, 20))
	sameRGB(t, style.NeighborColor, at(110, 80))
	sameRGB(t, style.LaboColor, at(190, 10))
	sameRGB(t, style.LaboColor, at(350, -250))

	_, err = MapPanel(testCatalogue(), "ZZ", nil, style)
	require.ErrorIs(t, err, gallery.ErrUnknownID)
}

func TestMapPanelWithoutNeighbors(t *testing.T) {
	style := DefaultStyle()
	style.PanelSize = 400
	style.BufferSize = 30
	style.Neighbors = false
	p, err := MapPanel(testCatalogue(), "A1", []string{"B2"}, style)
	require.NoError(t, err)
	frame := newMapFrame(testCatalogue().Bound(), 400)
	q := frame.toPanel(orb.Point{110, 80})
	sameRGB(t, style.LaboColor, p.At(int(q.X), int(q.Y)+titleBarHeight))
}

func TestMosaic(t *testing.T) {
	_, err := Mosaic([]image.Image{solid(10, 10, color.Black)})
	require.ErrorIs(t, err, ErrMosaicTooSmall)

	items := []image.Image{solid(40, 20, color.Black), solid(40, 20, color.Black), solid(40, 20, colornames.Red)}
	m, err := Mosaic(items)
	require.NoError(t, err)
	width := 2*40 + 3*figureGap
	assert.Equal(t, width, m.Bounds().Dx())
	assert.Equal(t, 2*20+3*figureGap, m.Bounds().Dy())

	// the odd item is centred on the last row
	y := figureGap*2 + 20 + 10
	sameRGB(t, colornames.Red, m.At(width/2, y))
	sameRGB(t, color.White, m.At(figureGap+2, y))
}

func TestFigures(t *testing.T) {
	style := DefaultStyle()
	style.PanelSize = 80
	img := solid(50, 50, color.Gray{Y: 100})
	rows := []ocr.Row{{Text: "A1", Polygon: []float64{5, 5, 20, 5, 20, 15, 5, 15}}}

	fig, err := LocatedFigure(img, "p.jpg", rows, testCatalogue(), "A1", []string{"B2"}, style)
	require.NoError(t, err)
	assert.Equal(t, 3*80+4*figureGap, fig.Bounds().Dx())

	assert.Equal(t, 80+2*figureGap, NoGalleryFigure(img, "p.jpg", style).Bounds().Dx())
	assert.Equal(t, 2*80+3*figureGap, AmbiguousFigure(img, "p.jpg", rows, style).Bounds().Dx())
	assert.Equal(t, 2*50+3*figureGap, SideBySide(img, img).Bounds().Dx())
}
