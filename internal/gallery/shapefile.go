package gallery

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/jonas-p/go-shp"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/ianaindex"
	"golang.org/x/text/encoding/unicode"
)

// Options controls how the shapefile is read.
type Options struct {
	Column      string // id attribute, defaults to GALERIE
	CRSWKT      string // overrides the .prj when set
	MaxIDLength int    // applied only when ids are merged
	Encoding    string // dbf text encoding, defaults to the .cpg or ISO-8859-1
}

// Dataset is the loaded shapefile: every record, and the catalogue built from
// them by CheckUnique.
type Dataset struct {
	Raw       []Gallery
	Catalogue *Catalogue
	CRS       string
}

// Load reads the polygons and ids of a gallery shapefile.
func Load(path string, opts Options) (*Dataset, error) {
	if opts.Column == "" {
		opts.Column = DefaultColumn
	}
	if opts.MaxIDLength == 0 {
		opts.MaxIDLength = DefaultMaxIDLength
	}
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("gallery shapefile: %w", err)
	}
	base := strings.TrimSuffix(path, ".shp")

	dec, err := textDecoder(opts.Encoding, base+".cpg")
	if err != nil {
		return nil, err
	}

	r, err := shp.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open shapefile %s: %w", path, err)
	}
	defer func() { _ = r.Close() }()

	col := -1
	for i, f := range r.Fields() {
		if strings.EqualFold(f.String(), opts.Column) {
			col = i
			break
		}
	}
	if col < 0 {
		return nil, fmt.Errorf("column %q not found in %s", opts.Column, path)
	}

	var raw []Gallery
	for r.Next() {
		n, shape := r.Shape()
		geom, ok := toGeometry(shape)
		if !ok {
			slog.Debug("skipping non-polygon shape", "row", n, "type", fmt.Sprintf("%T", shape))
			continue
		}
		id, err := dec.String(strings.Trim(r.ReadAttribute(n, col), " \x00"))
		if err != nil {
			return nil, fmt.Errorf("decode id at row %d: %w", n, err)
		}
		raw = append(raw, Gallery{ID: strings.TrimSpace(id), Geometry: geom})
	}
	if err := r.Err(); err != nil {
		return nil, fmt.Errorf("failed to read shapefile %s: %w", path, err)
	}
	if len(raw) == 0 {
		return nil, fmt.Errorf("no polygon records in %s", path)
	}

	crs := opts.CRSWKT
	if crs == "" {
		if data, err := os.ReadFile(base + ".prj"); err == nil { //nolint:gosec // G304: sidecar of a configured shapefile
			crs = strings.TrimSpace(string(data))
		}
	}

	unique := CheckUnique(raw, opts.MaxIDLength)
	slog.Debug("gallery shapefile loaded", "path", path, "records", len(raw), "galleries", len(unique))
	return &Dataset{Raw: raw, Catalogue: NewCatalogue(crs, unique), CRS: crs}, nil
}

// toGeometry converts polygon shapes. Clockwise parts start a new polygon. A
// counter-clockwise part is a hole of the current polygon when it lies inside
// its outer ring, and a new polygon otherwise.
func toGeometry(shape shp.Shape) (orb.Geometry, bool) {
	var parts []int32
	var pts []shp.Point
	switch s := shape.(type) {
	case *shp.Polygon:
		parts, pts = s.Parts, s.Points
	case *shp.PolygonZ:
		parts, pts = s.Parts, s.Points
	case *shp.PolygonM:
		parts, pts = s.Parts, s.Points
	default:
		return nil, false
	}

	var mp orb.MultiPolygon
	for i, start := range parts {
		end := int32(len(pts))
		if i+1 < len(parts) {
			end = parts[i+1]
		}
		if start < 0 || end > int32(len(pts)) || start >= end {
			continue
		}
		ring := make(orb.Ring, 0, end-start)
		for _, p := range pts[start:end] {
			ring = append(ring, orb.Point{p.X, p.Y})
		}
		if !ring.Closed() {
			ring = append(ring, ring[0])
		}
		if len(ring) < 4 {
			continue
		}
		if ring.Orientation() == orb.CCW && len(mp) > 0 {
			last := len(mp) - 1
			if planar.RingContains(mp[last][0], ring[0]) {
				mp[last] = append(mp[last], ring)
				continue
			}
		}
		mp = append(mp, orb.Polygon{ring})
	}

	switch len(mp) {
	case 0:
		return nil, false
	case 1:
		return mp[0], true
	default:
		return mp, true
	}
}

// textDecoder picks the dbf decoder from the explicit name, then the .cpg
// sidecar, then ISO-8859-1.
func textDecoder(name, cpgPath string) (*encoding.Decoder, error) {
	if name == "" {
		if data, err := os.ReadFile(cpgPath); err == nil { //nolint:gosec // G304: sidecar of a configured shapefile
			name = strings.TrimSpace(string(data))
		}
	}
	enc, err := lookupEncoding(name)
	if err != nil {
		return nil, err
	}
	return enc.NewDecoder(), nil
}

func lookupEncoding(name string) (encoding.Encoding, error) {
	switch strings.ToUpper(strings.ReplaceAll(name, " ", "")) {
	case "":
		return charmap.ISO8859_1, nil
	case "UTF-8", "UTF8":
		return unicode.UTF8, nil
	case "1252", "CP1252":
		return charmap.Windows1252, nil
	case "88591", "ISO88591", "LATIN1":
		return charmap.ISO8859_1, nil
	}
	enc, err := ianaindex.IANA.Encoding(name)
	if err != nil {
		return nil, fmt.Errorf("unknown dbf encoding %q: %w", name, err)
	}
	if enc == nil {
		return nil, errors.New("unsupported dbf encoding " + name)
	}
	return enc, nil
}
