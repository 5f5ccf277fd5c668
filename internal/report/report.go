// Package report writes localisation results as text, JSON, CSV or YAML and
// saves their figures as PNG files or a single PDF.
package report

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/MeKo-Tech/tiresias/internal/locate"
)

// Output formats.
const (
	FormatText = "text"
	FormatJSON = "json"
	FormatCSV  = "csv"
	FormatYAML = "yaml"
)

// Formats lists the accepted format names.
var Formats = []string{FormatText, FormatJSON, FormatCSV, FormatYAML}

// Write renders results to w in the given format.
func Write(w io.Writer, results []*locate.Result, format string) error {
	switch strings.ToLower(format) {
	case "", FormatText:
		return writeText(w, results)
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(struct {
			Results []*locate.Result `json:"results"`
		}{Results: results})
	case FormatCSV:
		return writeCSV(w, results)
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(map[string]any{"results": results}); err != nil {
			return err
		}
		return enc.Close()
	default:
		return fmt.Errorf("unsupported output format %q (want one of %s)", format, strings.Join(Formats, ", "))
	}
}

func writeText(w io.Writer, results []*locate.Result) error {
	for _, r := range results {
		if r == nil {
			continue
		}
		var line string
		switch {
		case r.Error != "":
			line = fmt.Sprintf("%s: error: %s", r.Path, r.Error)
		case r.Gallery != "":
			line = fmt.Sprintf("%s: galerie %s", r.Path, r.Gallery)
			if len(r.Neighbors) > 0 {
				line += " (extension possible: " + strings.Join(r.Neighbors, ", ") + ")"
			}
		case len(r.Candidates) > 0:
			line = fmt.Sprintf("%s: %s [%s]", r.Path, r.Outcome, strings.Join(r.Candidates, ", "))
		default:
			line = fmt.Sprintf("%s: %s", r.Path, r.Outcome)
		}
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
		for _, row := range r.Rows {
			if _, err := fmt.Fprintf(w, "  %q det=%.3f rec=%.3f\n", row.Text, row.DetScore, row.RecScore); err != nil {
				return err
			}
		}
	}
	return nil
}

func writeCSV(w io.Writer, results []*locate.Result) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"file", "outcome", "galerie", "candidates", "neighbors", "text", "det_score", "rec_score", "polygon", "error"}); err != nil {
		return err
	}
	for _, r := range results {
		if r == nil {
			continue
		}
		base := []string{r.Path, r.Outcome.String(), r.Gallery, strings.Join(r.Candidates, ";"), strings.Join(r.Neighbors, ";")}
		if len(r.Rows) == 0 {
			if err := cw.Write(append(base, "", "", "", "", r.Error)); err != nil {
				return err
			}
			continue
		}
		for _, row := range r.Rows {
			rec := append(append([]string(nil), base...),
				row.Text,
				strconv.FormatFloat(row.DetScore, 'f', 3, 64),
				strconv.FormatFloat(row.RecScore, 'f', 3, 64),
				formatPolygon(row.Polygon),
				r.Error,
			)
			if err := cw.Write(rec); err != nil {
				return err
			}
		}
	}
	cw.Flush()
	return cw.Error()
}

func formatPolygon(p []float64) string {
	parts := make([]string, len(p))
	for i, v := range p {
		parts[i] = strconv.FormatFloat(v, 'f', -1, 64)
	}
	return strings.Join(parts, " ")
}
