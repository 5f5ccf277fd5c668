package cmd

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/MeKo-Tech/tiresias/internal/config"
	"github.com/MeKo-Tech/tiresias/internal/inputs"
	"github.com/MeKo-Tech/tiresias/internal/locate"
	"github.com/MeKo-Tech/tiresias/internal/report"
	"github.com/MeKo-Tech/tiresias/internal/store"
)

func newLocateCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "locate <file-or-dir>",
		Short: "Find the gallery where each survey photo was taken",
		Long: `Run OCR on a photo, or on every photo of a directory, and match the
recognized text against the gallery ids of the shapefile.

Each photo ends up located, ambiguous, without a known gallery or without
text. Figures are written for every outcome but the last one.

Examples:
  tiresias locate photo.jpg --shapefile galeries.shp
  tiresias locate photos/ --out-dir figures --pdf figures/report.pdf
  tiresias locate photos/ --format csv --workers 4 > results.csv`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := a.config()
			if err != nil {
				return err
			}
			return a.runLocate(cmd, cfg, args[0])
		},
	}

	f := cmd.Flags()
	f.StringP("format", "f", "", "output format: "+fmt.Sprint(report.Formats))
	f.StringP("out-dir", "o", "", "directory for the figures")
	f.String("pdf", "", "bundle the figures into this PDF")
	f.String("engine", "", "OCR engine: onnx or tesseract")
	f.Bool("no-neighbors", false, "do not draw the neighbouring galleries")
	f.Int("workers", 0, "number of photos processed in parallel")
	f.Bool("store", false, "save the results in the MySQL store")
	f.Bool("no-figures", false, "skip figure rendering")
	f.Bool("progress", false, "print one progress line per photo on stderr")
	return cmd
}

func (a *app) runLocate(cmd *cobra.Command, cfg *config.Config, target string) error {
	flags := cmd.Flags()
	format := cfg.Output.Format
	if flags.Changed("format") {
		format, _ = flags.GetString("format")
	}
	outDir := cfg.Output.Dir
	if flags.Changed("out-dir") {
		outDir, _ = flags.GetString("out-dir")
	}
	pdfPath := cfg.Output.PDF
	if flags.Changed("pdf") {
		pdfPath, _ = flags.GetString("pdf")
	}
	if flags.Changed("engine") {
		cfg.OCR.Engine, _ = flags.GetString("engine")
	}
	workers := cfg.Input.Workers
	if flags.Changed("workers") {
		workers, _ = flags.GetInt("workers")
	}
	useStore := cfg.Store.Enabled
	if flags.Changed("store") {
		useStore, _ = flags.GetBool("store")
	}
	noNeighbors, _ := flags.GetBool("no-neighbors")
	noFigures, _ := flags.GetBool("no-figures")
	showProgress, _ := flags.GetBool("progress")

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration validation failed: %w", err)
	}
	if workers <= 0 {
		return fmt.Errorf("invalid --workers: %d (must be positive)", workers)
	}
	if useStore && cfg.Store.DSN == "" {
		return store.ErrNoDSN
	}

	paths, err := inputs.Collect(target, cfg.Input.AllowedExtensions)
	if err != nil {
		return err
	}
	if len(paths) == 0 {
		return fmt.Errorf("no photo found in %s", target)
	}

	var progress locate.Progress = locate.NoOpProgress{}
	if showProgress {
		progress = locate.NewConsoleProgress(cmd.ErrOrStderr())
	}
	wantFigures := !noFigures && (outDir != "" || pdfPath != "" || (useStore && cfg.Store.KeepFigures))
	loc, err := a.openLocator(cfg, locatorOptions{
		figures:   wantFigures,
		neighbors: cfg.Display.Neighbors && !noNeighbors,
		workers:   workers,
		progress:  progress,
	})
	if err != nil {
		return err
	}
	defer func() { _ = loc.Close() }()

	ctx := cmd.Context()
	start := time.Now()
	results, err := loc.LocateAll(ctx, paths)
	if err != nil {
		return err
	}
	slog.Info("photos processed", "count", len(results), "engine", loc.Engine().Name(),
		"duration_ms", time.Since(start).Milliseconds())

	if err := report.Write(cmd.OutOrStdout(), results, format); err != nil {
		return err
	}
	if err := writeFigures(results, outDir, pdfPath); err != nil {
		return err
	}

	if useStore {
		st, err := store.Open(ctx, cfg.Store.DSN)
		if err != nil {
			return err
		}
		defer func() { _ = st.Close() }()
		st.KeepFigures = cfg.Store.KeepFigures
		if err := st.Migrate(ctx); err != nil {
			return err
		}
		if err := st.SaveAll(ctx, results); err != nil {
			return err
		}
		slog.Info("results stored", "count", len(results))
	}
	return nil
}

// writeFigures saves the figures into outDir and bundles them into pdfPath.
// Without outDir the PDF pages are staged in a temporary directory.
func writeFigures(results []*locate.Result, outDir, pdfPath string) error {
	if outDir == "" && pdfPath == "" {
		return nil
	}
	dir := outDir
	if dir == "" {
		tmp, err := os.MkdirTemp("", "tiresias-figures-")
		if err != nil {
			return err
		}
		defer func() { _ = os.RemoveAll(tmp) }()
		dir = tmp
	}
	written, err := report.SaveFigures(dir, results)
	if err != nil {
		return err
	}
	if outDir != "" {
		slog.Info("figures saved", "dir", outDir, "count", len(written))
	}
	if pdfPath == "" {
		return nil
	}
	if len(written) == 0 {
		slog.Warn("no figure to put in the PDF", "pdf", pdfPath)
		return nil
	}
	if err := report.PDF(pdfPath, written); err != nil {
		return err
	}
	slog.Info("PDF written", "path", filepath.Clean(pdfPath), "pages", len(written))
	return nil
}
