// Package match ties recognized text to gallery identifiers.
package match

import (
	"fmt"
	"sort"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/MeKo-Tech/tiresias/internal/ocr"
)

// Kind classifies what an image tells us about its location.
type Kind int

const (
	NoText Kind = iota
	NoGallery
	Ambiguous
	Located
	// Failed marks a photo that could not be read or predicted.
	Failed
)

func (k Kind) String() string {
	switch k {
	case NoText:
		return "no_text"
	case NoGallery:
		return "no_gallery"
	case Ambiguous:
		return "ambiguous"
	case Located:
		return "located"
	case Failed:
		return "error"
	default:
		return "unknown"
	}
}

// MarshalText renders the kind as its snake_case name.
func (k Kind) MarshalText() ([]byte, error) { return []byte(k.String()), nil }

// UnmarshalText parses a name written by MarshalText.
func (k *Kind) UnmarshalText(b []byte) error {
	for _, c := range []Kind{NoText, NoGallery, Ambiguous, Located, Failed} {
		if c.String() == string(b) {
			*k = c
			return nil
		}
	}
	return fmt.Errorf("unknown outcome %q", b)
}

// Outcome is the classification of one prediction.
type Outcome struct {
	Kind       Kind
	Gallery    string    // set when Located
	Candidates []string  // distinct matched names, sorted
	Rows       []ocr.Row // rows whose text is a gallery name, upper-cased
}

// Matcher upper-cases text with the rules of one language.
type Matcher struct {
	upper cases.Caser
}

// New returns a matcher for a BCP 47 tag such as "fr". An unparsable tag
// falls back to language.Und.
func New(lang string) *Matcher {
	tag, err := language.Parse(lang)
	if err != nil {
		tag = language.Und
	}
	return &Matcher{upper: cases.Upper(tag)}
}

// Upper maps s to upper case.
func (m *Matcher) Upper(s string) string { return m.upper.String(s) }

// Galleries keeps the rows whose upper-cased text is a gallery name. It
// returns nil when nothing matches.
func (m *Matcher) Galleries(pred ocr.Prediction, names map[string]struct{}) []ocr.Row {
	var out []ocr.Row
	for _, row := range pred.Rows {
		row.Text = m.Upper(row.Text)
		if _, ok := names[row.Text]; ok {
			out = append(out, row)
		}
	}
	return out
}

// Unique reports whether exactly one distinct text remains.
func Unique(rows []ocr.Row) bool {
	return len(distinct(rows)) == 1
}

// Classify runs the full decision.
func (m *Matcher) Classify(pred ocr.Prediction, names map[string]struct{}) Outcome {
	if pred.Empty() {
		return Outcome{Kind: NoText}
	}
	rows := m.Galleries(pred, names)
	if rows == nil {
		return Outcome{Kind: NoGallery}
	}
	cands := distinct(rows)
	if len(cands) == 1 {
		return Outcome{Kind: Located, Gallery: cands[0], Candidates: cands, Rows: rows}
	}
	return Outcome{Kind: Ambiguous, Candidates: cands, Rows: rows}
}

func distinct(rows []ocr.Row) []string {
	seen := make(map[string]struct{}, len(rows))
	var out []string
	for _, r := range rows {
		if _, ok := seen[r.Text]; ok {
			continue
		}
		seen[r.Text] = struct{}{}
		out = append(out, r.Text)
	}
	sort.Strings(out)
	return out
}
