package textrec

import (
	"bufio"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
)

// Charset maps model class indices to tokens, excluding the blank class.
type Charset struct {
	Tokens []string
}

// LoadCharset reads a dictionary with one token per line. Empty lines are
// skipped except a line holding a single space, which is kept as " ".
func LoadCharset(path string) (*Charset, error) {
	if path == "" {
		return nil, errors.New("dictionary path cannot be empty")
	}
	f, err := os.Open(path) //nolint:gosec // G304: dictionary path comes from configuration
	if err != nil {
		return nil, fmt.Errorf("failed to open dictionary: %w", err)
	}
	defer func() {
		if err := f.Close(); err != nil {
			slog.Warn("closing dictionary", "path", path, "error", err)
		}
	}()

	tokens := make([]string, 0, 128)
	scanner := bufio.NewScanner(f)
	first := true
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r\n")
		if first {
			line = strings.TrimPrefix(line, "\uFEFF")
			first = false
		}
		if line != " " {
			line = strings.TrimSpace(line)
		}
		if line == "" {
			continue
		}
		tokens = append(tokens, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed reading dictionary: %w", err)
	}
	if len(tokens) == 0 {
		return nil, fmt.Errorf("dictionary is empty: %s", path)
	}
	return &Charset{Tokens: tokens}, nil
}

// Size returns the number of tokens.
func (c *Charset) Size() int { return len(c.Tokens) }

// Lookup maps a class index to its token given the blank position.
// Indices outside the charset (padding, unknown) yield false.
func (c *Charset) Lookup(class int, blankPosition string) (string, bool) {
	if c == nil {
		return "", false
	}
	if blankPosition == BlankFirst {
		class--
	}
	if class < 0 || class >= len(c.Tokens) {
		return "", false
	}
	return c.Tokens[class], true
}
