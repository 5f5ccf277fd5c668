package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"io"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/MeKo-Tech/tiresias/internal/config"
	"github.com/MeKo-Tech/tiresias/internal/imgutil"
	"github.com/MeKo-Tech/tiresias/internal/inputs"
	"github.com/MeKo-Tech/tiresias/internal/objdet"
	"github.com/MeKo-Tech/tiresias/internal/report"
)

var errNoModels = errors.New("no detection model configured (detection.models)")

func newDetectCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "detect <file-or-dir>",
		Short: "Run object detection models on survey photos",
		Long: `Run one exported detection model on each photo and save the photo next to
its prediction, or run every configured model with --benchmark and save the
predictions as a two-column mosaic.

Examples:
  tiresias detect photo.jpg --model rtmdet
  tiresias detect photos/ --benchmark --out-dir benchmark`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := a.config()
			if err != nil {
				return err
			}
			return runDetect(cmd, cfg, args[0])
		},
	}
	f := cmd.Flags()
	f.StringP("model", "m", "", "detection model name (default: the first configured model)")
	f.Bool("benchmark", false, "run every configured model and build a mosaic")
	f.StringP("out-dir", "o", "", "directory for the figures (default: output.dir or .)")
	f.StringP("format", "f", report.FormatText, "detection listing format: text or json")
	return cmd
}

// selectModels returns the specs to load for one detect run.
func selectModels(cfg *config.Config, name string, benchmark bool) ([]objdet.ModelSpec, error) {
	models := cfg.DetectionModels()
	if len(models) == 0 {
		return nil, errNoModels
	}
	switch {
	case benchmark:
		return models, nil
	case name != "":
		m, err := cfg.FindModel(name)
		if err != nil {
			return nil, err
		}
		return []objdet.ModelSpec{m}, nil
	default:
		return models[:1], nil
	}
}

func runDetect(cmd *cobra.Command, cfg *config.Config, target string) error {
	flags := cmd.Flags()
	name, _ := flags.GetString("model")
	benchmark, _ := flags.GetBool("benchmark")
	format, _ := flags.GetString("format")
	outDir := cfg.Output.Dir
	if flags.Changed("out-dir") {
		outDir, _ = flags.GetString("out-dir")
	}
	if outDir == "" {
		outDir = "."
	}
	if format != report.FormatText && format != report.FormatJSON {
		return fmt.Errorf("unsupported detection format %q", format)
	}

	specs, err := selectModels(cfg, name, benchmark)
	if err != nil {
		return err
	}
	paths, err := inputs.Collect(target, cfg.Input.AllowedExtensions)
	if err != nil {
		return err
	}
	dcfg, err := cfg.DetectorConfig()
	if err != nil {
		return err
	}
	detectors, err := objdet.LoadAll(specs, dcfg)
	if err != nil {
		return err
	}
	defer func() {
		for _, d := range detectors {
			_ = d.Close()
		}
	}()

	var listing []detectionListing
	for _, p := range paths {
		preds, fig, err := detectOne(cmd.Context(), p, detectors, benchmark)
		if err != nil {
			return err
		}
		out := filepath.Join(outDir, figureName(p, preds, benchmark))
		if err := imgutil.SavePNG(out, fig); err != nil {
			return err
		}
		slog.Info("detection figure saved", "photo", p, "path", out)
		for _, pr := range preds {
			listing = append(listing, detectionListing{File: p, Model: pr.Model, Detections: pr.Detections, Figure: out})
		}
	}
	return writeListing(cmd.OutOrStdout(), listing, format)
}

func detectOne(ctx context.Context, path string, detectors []*objdet.Detector, benchmark bool) ([]objdet.Prediction, image.Image, error) {
	img, _, err := imgutil.LoadImage(path)
	if err != nil {
		return nil, nil, err
	}
	name := filepath.Base(path)
	if benchmark && len(detectors) > 1 {
		fig, preds, err := objdet.Benchmark(ctx, img, name, detectors)
		return preds, fig, err
	}
	fig, pred, err := detectors[0].RawVsPrediction(ctx, img, name)
	return []objdet.Prediction{pred}, fig, err
}

func figureName(photo string, preds []objdet.Prediction, benchmark bool) string {
	base := strings.TrimSuffix(filepath.Base(photo), filepath.Ext(photo))
	if benchmark || len(preds) != 1 {
		return base + "_benchmark.png"
	}
	return base + "_" + preds[0].Model + ".png"
}

type detectionListing struct {
	File       string             `json:"file"`
	Model      string             `json:"model"`
	Figure     string             `json:"figure"`
	Detections []objdet.Detection `json:"detections"`
}

func writeListing(w io.Writer, listing []detectionListing, format string) error {
	if format == report.FormatJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(map[string]any{"predictions": listing})
	}
	for _, l := range listing {
		if _, err := fmt.Fprintf(w, "%s [%s]: %d detections\n", l.File, l.Model, len(l.Detections)); err != nil {
			return err
		}
		for _, d := range l.Detections {
			label := d.Label
			if label == "" {
				label = fmt.Sprintf("class %d", d.Class)
			}
			if _, err := fmt.Fprintf(w, "  %s %.3f (%.0f,%.0f,%.0f,%.0f)\n",
				label, d.Score, d.Box.MinX, d.Box.MinY, d.Box.MaxX, d.Box.MaxY); err != nil {
				return err
			}
		}
	}
	return nil
}
