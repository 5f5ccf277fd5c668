// Package store persists localisation results in MySQL.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"

	"github.com/MeKo-Tech/tiresias/internal/locate"
)

// ErrNoDSN is returned by Open when no DSN is configured.
var ErrNoDSN = errors.New("store: empty DSN")

const createTable = `CREATE TABLE IF NOT EXISTS localizations (
	id BIGINT AUTO_INCREMENT PRIMARY KEY,
	image_path VARCHAR(1024) NOT NULL,
	outcome VARCHAR(16) NOT NULL,
	gallery VARCHAR(64),
	candidates TEXT,
	neighbors TEXT,
	ocr_text LONGTEXT,
	engine VARCHAR(32),
	total_ms DOUBLE,
	error_msg TEXT,
	figure LONGBLOB,
	created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
) CHARACTER SET utf8mb4 COLLATE utf8mb4_unicode_ci`

const insertRow = `INSERT INTO localizations
	(image_path, outcome, gallery, candidates, neighbors, ocr_text, engine, total_ms, error_msg, figure)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

const selectRecent = `SELECT id, image_path, outcome, gallery, candidates, neighbors, ocr_text, engine, total_ms, error_msg, created_at
	FROM localizations ORDER BY id DESC LIMIT ?`

// Record is one stored localisation.
type Record struct {
	ID         int64     `json:"id"`
	Path       string    `json:"path"`
	Outcome    string    `json:"outcome"`
	Gallery    string    `json:"gallery,omitempty"`
	Candidates []string  `json:"candidates,omitempty"`
	Neighbors  []string  `json:"neighbors,omitempty"`
	Texts      []string  `json:"texts,omitempty"`
	Engine     string    `json:"engine,omitempty"`
	TotalMs    float64   `json:"total_ms"`
	Error      string    `json:"error,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// Store wraps the database handle.
type Store struct {
	db *sql.DB
	// KeepFigures stores the PNG figure with each row.
	KeepFigures bool
}

// NormalizeDSN parses dsn and forces the options the store relies on.
func NormalizeDSN(dsn string) (*mysql.Config, error) {
	if strings.TrimSpace(dsn) == "" {
		return nil, ErrNoDSN
	}
	cfg, err := mysql.ParseDSN(dsn)
	if err != nil {
		return nil, fmt.Errorf("store: invalid DSN: %w", err)
	}
	cfg.ParseTime = true
	if cfg.Timeout == 0 {
		cfg.Timeout = 5 * time.Second
	}
	return cfg, nil
}

// Open connects to MySQL and checks the connection.
func Open(ctx context.Context, dsn string) (*Store, error) {
	cfg, err := NormalizeDSN(dsn)
	if err != nil {
		return nil, err
	}
	conn, err := mysql.NewConnector(cfg)
	if err != nil {
		return nil, fmt.Errorf("store: %w", err)
	}
	db := sql.OpenDB(conn)
	db.SetMaxOpenConns(4)
	db.SetConnMaxLifetime(5 * time.Minute)
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("store: connect to %s: %w", cfg.Addr, err)
	}
	slog.Info("store connected", "addr", cfg.Addr, "db", cfg.DBName)
	return &Store{db: db}, nil
}

// Migrate creates the localizations table when it does not exist.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, createTable); err != nil {
		return fmt.Errorf("store: create table: %w", err)
	}
	return nil
}

// Save inserts r and returns its id.
func (s *Store) Save(ctx context.Context, r *locate.Result) (int64, error) {
	if r == nil {
		return 0, errors.New("store: nil result")
	}
	args, err := insertArgs(r, s.KeepFigures)
	if err != nil {
		return 0, err
	}
	res, err := s.db.ExecContext(ctx, insertRow, args...)
	if err != nil {
		return 0, fmt.Errorf("store: insert: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("store: insert id: %w", err)
	}
	slog.Debug("localisation stored", "id", id, "path", r.Path)
	return id, nil
}

// SaveAll stores every result, stopping at the first error.
func (s *Store) SaveAll(ctx context.Context, results []*locate.Result) error {
	for _, r := range results {
		if r == nil {
			continue
		}
		if _, err := s.Save(ctx, r); err != nil {
			return err
		}
	}
	return nil
}

// Recent returns the last n records, newest first.
func (s *Store) Recent(ctx context.Context, n int) ([]Record, error) {
	if n <= 0 {
		return nil, nil
	}
	rows, err := s.db.QueryContext(ctx, selectRecent, n)
	if err != nil {
		return nil, fmt.Errorf("store: query: %w", err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var (
			rec                          Record
			gallery, cands, neigh, texts sql.NullString
			engine, errMsg               sql.NullString
			total                        sql.NullFloat64
		)
		if err := rows.Scan(&rec.ID, &rec.Path, &rec.Outcome, &gallery, &cands, &neigh, &texts, &engine, &total, &errMsg, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("store: scan: %w", err)
		}
		rec.Gallery = gallery.String
		rec.Engine = engine.String
		rec.Error = errMsg.String
		rec.TotalMs = total.Float64
		if rec.Candidates, err = decodeList(cands.String); err != nil {
			return nil, err
		}
		if rec.Neighbors, err = decodeList(neigh.String); err != nil {
			return nil, err
		}
		if rec.Texts, err = decodeList(texts.String); err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// Close closes the database handle.
func (s *Store) Close() error { return s.db.Close() }

func insertArgs(r *locate.Result, figure bool) ([]any, error) {
	cands, err := encodeList(r.Candidates)
	if err != nil {
		return nil, err
	}
	neigh, err := encodeList(r.Neighbors)
	if err != nil {
		return nil, err
	}
	texts := make([]string, 0, len(r.Rows))
	for _, row := range r.Rows {
		texts = append(texts, row.Text)
	}
	text, err := encodeList(texts)
	if err != nil {
		return nil, err
	}
	var fig []byte
	if figure {
		fig = r.Figure
	}
	return []any{
		r.Path,
		outcomeName(r),
		nullable(r.Gallery),
		cands,
		neigh,
		text,
		nullable(r.Engine),
		r.Timings.TotalMs,
		nullable(r.Error),
		fig,
	}, nil
}

func outcomeName(r *locate.Result) string {
	if r.Error != "" {
		return "error"
	}
	return r.Outcome.String()
}

// encodeList stores lists as JSON arrays; empty lists become NULL.
func encodeList(items []string) (sql.NullString, error) {
	if len(items) == 0 {
		return sql.NullString{}, nil
	}
	b, err := json.Marshal(items)
	if err != nil {
		return sql.NullString{}, err
	}
	return sql.NullString{String: string(b), Valid: true}, nil
}

func decodeList(s string) ([]string, error) {
	if s == "" {
		return nil, nil
	}
	var out []string
	if err := json.Unmarshal([]byte(s), &out); err != nil {
		return nil, fmt.Errorf("store: decode list: %w", err)
	}
	return out, nil
}

func nullable(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
