package locate

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"log/slog"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MeKo-Tech/tiresias/internal/gallery"
	"github.com/MeKo-Tech/tiresias/internal/match"
	"github.com/MeKo-Tech/tiresias/internal/ocr"
	"github.com/MeKo-Tech/tiresias/internal/render"
	"github.com/MeKo-Tech/tiresias/internal/testutil"
)

// fakeEngine answers by image width so each test photo gets its own text.
type fakeEngine struct {
	texts  map[int][]string
	fail   map[int]bool
	calls  atomic.Int32
	closed bool
}

func (f *fakeEngine) Predict(ctx context.Context, img image.Image) (ocr.Prediction, error) {
	f.calls.Add(1)
	if err := ctx.Err(); err != nil {
		return ocr.Prediction{}, err
	}
	w := img.Bounds().Dx()
	if f.fail[w] {
		return ocr.Prediction{}, errors.New("engine exploded")
	}
	p := ocr.Prediction{Width: w, Height: img.Bounds().Dy()}
	for i, t := range f.texts[w] {
		x := float64(10 + 30*i)
		p.Rows = append(p.Rows, ocr.Row{Text: t, DetScore: 0.9, RecScore: 0.8, Polygon: []float64{x, 10, x + 20, 10, x + 20, 20, x, 20}})
	}
	return p, nil
}
func (f *fakeEngine) Name() string { return "fake" }
func (f *fakeEngine) Close() error { f.closed = true; return nil }

func square(x, y, s float64) orb.Polygon {
	return orb.Polygon{{{x, y}, {x, y + s}, {x + s, y + s}, {x + s, y}, {x, y}}}
}

func catalogue() *gallery.Catalogue {
	return gallery.NewCatalogue("", []gallery.Gallery{
		{ID: "GAN", Geometry: square(0, 0, 10)},
		{ID: "G12", Geometry: square(10, 0, 10)},
		{ID: "G13", Geometry: square(50, 50, 10)},
	})
}

func newLocator(t *testing.T, eng *fakeEngine, workers int) *Locator {
	t.Helper()
	style := render.DefaultStyle()
	style.PanelSize = 64
	l, err := NewBuilder().
		WithEngine(eng).
		WithCatalogue(catalogue()).
		WithStyle(style).
		WithWorkers(workers).
		Build()
	require.NoError(t, err)
	return l
}

func photo(t *testing.T, dir, name string, w int) string {
	t.Helper()
	return testutil.SaveJPEG(t, dir, name, testutil.Solid(w, 40, color.Gray{Y: 128}))
}

func figureWidth(t *testing.T, data []byte) int {
	t.Helper()
	img, err := png.Decode(bytes.NewReader(data))
	require.NoError(t, err)
	return img.Bounds().Dx()
}

func TestBuilderValidation(t *testing.T) {
	_, err := NewBuilder().WithCatalogue(catalogue()).Build()
	require.Error(t, err)
	_, err = NewBuilder().WithEngine(&fakeEngine{}).Build()
	require.Error(t, err)
	_, err = NewBuilder().WithEngine(&fakeEngine{}).WithCatalogue(gallery.NewCatalogue("", nil)).Build()
	require.Error(t, err)
}

func TestBuilderComputesNeighbors(t *testing.T) {
	l := newLocator(t, &fakeEngine{}, 1)
	assert.Equal(t, []string{"G12"}, l.Neighbors().Of("GAN"))
	assert.Empty(t, l.Neighbors().Of("G13"))
}

func TestLocateFileOutcomes(t *testing.T) {
	dir := t.TempDir()
	eng := &fakeEngine{texts: map[int][]string{
		100: {"gan", "sortie"},
		101: {"danger"},
		102: {"G12", "g13"},
		103: nil,
	}}
	l := newLocator(t, eng, 1)
	ctx := context.Background()
	gap := 16

	res, err := l.LocateFile(ctx, photo(t, dir, "located.jpg", 100))
	require.NoError(t, err)
	assert.Equal(t, match.Located, res.Outcome)
	assert.Equal(t, "GAN", res.Gallery)
	assert.Equal(t, []string{"G12"}, res.Neighbors)
	assert.Len(t, res.Matched, 1)
	assert.Len(t, res.Rows, 2)
	assert.Equal(t, "fake", res.Engine)
	assert.Equal(t, 3*64+4*gap, figureWidth(t, res.Figure))
	assert.Positive(t, res.Timings.TotalMs)

	res, err = l.LocateFile(ctx, photo(t, dir, "nogal.jpg", 101))
	require.NoError(t, err)
	assert.Equal(t, match.NoGallery, res.Outcome)
	assert.Equal(t, 64+2*gap, figureWidth(t, res.Figure))

	res, err = l.LocateFile(ctx, photo(t, dir, "ambiguous.jpg", 102))
	require.NoError(t, err)
	assert.Equal(t, match.Ambiguous, res.Outcome)
	assert.Equal(t, []string{"G12", "G13"}, res.Candidates)
	assert.Empty(t, res.Gallery)
	assert.Equal(t, 2*64+3*gap, figureWidth(t, res.Figure))

	res, err = l.LocateFile(ctx, photo(t, dir, "blank.jpg", 103))
	require.NoError(t, err)
	assert.Equal(t, match.NoText, res.Outcome)
	assert.False(t, res.HasFigure())
}

func TestLocateLogsOriginalMessages(t *testing.T) {
	var buf bytes.Buffer
	prev := slog.Default()
	slog.SetDefault(slog.New(slog.NewJSONHandler(&buf, nil)))
	defer slog.SetDefault(prev)

	eng := &fakeEngine{texts: map[int][]string{101: {"danger"}}}
	l := newLocator(t, eng, 1)
	img := testutil.Solid(100, 40, color.White)
	_, err := l.LocateImage(context.Background(), img, "blank")
	require.NoError(t, err)
	_, err = l.LocateImage(context.Background(), testutil.Solid(101, 40, color.White), "sign")
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "No text detected")
	assert.Contains(t, buf.String(), "No galerie detected")
}

func TestLocateWithoutFigures(t *testing.T) {
	eng := &fakeEngine{texts: map[int][]string{100: {"GAN"}}}
	l, err := NewBuilder().WithEngine(eng).WithCatalogue(catalogue()).WithFigures(false).Build()
	require.NoError(t, err)
	res, err := l.LocateImage(context.Background(), testutil.Solid(100, 40, color.White), "x")
	require.NoError(t, err)
	assert.Equal(t, match.Located, res.Outcome)
	assert.Nil(t, res.Figure)
}

func TestLocateFileErrors(t *testing.T) {
	l := newLocator(t, &fakeEngine{fail: map[int]bool{100: true}}, 1)
	_, err := l.LocateFile(context.Background(), filepath.Join(t.TempDir(), "missing.jpg"))
	require.Error(t, err)

	_, err = l.LocateFile(context.Background(), photo(t, t.TempDir(), "x.jpg", 100))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "engine exploded")
}

type countingProgress struct {
	NoOpProgress
	started, progressed, errors int
}

func (c *countingProgress) OnStart(int)         { c.started++ }
func (c *countingProgress) OnProgress(int, int) { c.progressed++ }
func (c *countingProgress) OnError(int, error)  { c.errors++ }

func TestLocateAllKeepsOrder(t *testing.T) {
	dir := t.TempDir()
	texts := map[int][]string{}
	var paths []string
	for i := 0; i < 8; i++ {
		w := 100 + i
		texts[w] = []string{[]string{"GAN", "G12", "G13", "nope"}[i%4]}
		paths = append(paths, photo(t, dir, filepath.Base(t.Name())+string(rune('a'+i))+".jpg", w))
	}
	eng := &fakeEngine{texts: texts, fail: map[int]bool{107: true}}
	prog := &countingProgress{}
	style := render.DefaultStyle()
	style.PanelSize = 32
	l, err := NewBuilder().WithEngine(eng).WithCatalogue(catalogue()).WithStyle(style).
		WithWorkers(4).WithProgress(prog).Build()
	require.NoError(t, err)

	results, err := l.LocateAll(context.Background(), paths)
	require.NoError(t, err)
	require.Len(t, results, 8)
	for i, r := range results {
		assert.Equal(t, paths[i], r.Path)
	}
	assert.Equal(t, "GAN", results[0].Gallery)
	assert.Equal(t, "G12", results[1].Gallery)
	assert.Equal(t, match.NoGallery, results[3].Outcome)
	assert.Contains(t, results[7].Error, "engine exploded")
	assert.Equal(t, match.Failed, results[7].Outcome)
	assert.Equal(t, 1, prog.started)
	assert.Equal(t, 8, prog.progressed)
	assert.Equal(t, 1, prog.errors)
}

func TestLocateAllCancelled(t *testing.T) {
	dir := t.TempDir()
	paths := []string{photo(t, dir, "a.jpg", 100), photo(t, dir, "b.jpg", 101)}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	l := newLocator(t, &fakeEngine{}, 2)
	_, err := l.LocateAll(ctx, paths)
	require.ErrorIs(t, err, context.Canceled)
}

func TestLocateAllEmpty(t *testing.T) {
	l := newLocator(t, &fakeEngine{}, 2)
	res, err := l.LocateAll(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, res)
}

func TestCloseReleasesEngine(t *testing.T) {
	eng := &fakeEngine{}
	l := newLocator(t, eng, 1)
	require.NoError(t, l.Close())
	assert.True(t, eng.closed)
}
