package report

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu"

	"github.com/MeKo-Tech/tiresias/internal/locate"
)

// FigureSuffix is appended to the photo base name for saved figures.
const FigureSuffix = "_tiresias.png"

// FigureName returns the file name of the figure for a photo path.
func FigureName(photo string) string {
	base := filepath.Base(photo)
	return strings.TrimSuffix(base, filepath.Ext(base)) + FigureSuffix
}

// uniqueName returns FigureName(photo), or a numbered variant of it when that
// name was already taken in the same run. Names are compared case-insensitively.
func uniqueName(photo string, taken map[string]bool) string {
	name := FigureName(photo)
	stem := strings.TrimSuffix(name, FigureSuffix)
	for n := 2; taken[strings.ToLower(name)]; n++ {
		name = stem + "_" + strconv.Itoa(n) + FigureSuffix
	}
	taken[strings.ToLower(name)] = true
	return name
}

// SaveFigures writes each rendered figure into dir and returns the written
// paths in result order. Results without a figure are skipped. Photos whose
// names differ only by extension get numbered figure names.
func SaveFigures(dir string, results []*locate.Result) ([]string, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("create output directory: %w", err)
	}
	var written []string
	taken := make(map[string]bool, len(results))
	for _, r := range results {
		if r == nil || !r.HasFigure() {
			continue
		}
		p := filepath.Join(dir, uniqueName(r.Path, taken))
		if err := os.WriteFile(p, r.Figure, 0o600); err != nil {
			return written, fmt.Errorf("write figure %s: %w", p, err)
		}
		slog.Debug("figure saved", "path", p)
		written = append(written, p)
	}
	return written, nil
}

// PDF bundles image files into one PDF, one page per image.
func PDF(out string, images []string) error {
	if len(images) == 0 {
		return errors.New("no figures to put in the PDF")
	}
	if err := os.MkdirAll(filepath.Dir(out), 0o750); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}
	imp := pdfcpu.DefaultImportConfig()
	if err := api.ImportImagesFile(images, out, imp, nil); err != nil {
		return fmt.Errorf("build PDF %s: %w", out, err)
	}
	return nil
}

// PageCount reports the number of pages of a PDF.
func PageCount(path string) (int, error) {
	return api.PageCountFile(path)
}
