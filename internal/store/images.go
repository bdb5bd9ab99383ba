package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

// TraceStep is one provenance entry recorded while acquiring an image.
// Steps are numbered from 1 in the order they happened.
type TraceStep struct {
	Step   int    `json:"step"`
	Name   string `json:"name"`
	Detail string `json:"detail,omitempty"`
}

// ImageRecord describes a staged wallpaper and where it came from.
type ImageRecord struct {
	ID          int64       `json:"id"`
	Path        string      `json:"path"`
	URL         string      `json:"url,omitempty"`
	ContextURL  string      `json:"context_url,omitempty"`
	Source      string      `json:"source"`
	Size        int64       `json:"size"`
	Width       int         `json:"width"`
	Height      int         `json:"height"`
	Format      string      `json:"format,omitempty"`
	Title       string      `json:"title,omitempty"`
	Description string      `json:"description,omitempty"`
	Artist      string      `json:"artist,omitempty"`
	CreatedAt   time.Time   `json:"created_at"`
	Trace       []TraceStep `json:"trace,omitempty"`
}

const imageColumns = "id, path, url, context_url, source, size, width, height, format, title, description, artist, created_at"

// InsertImage persists a staged image and its trace in one transaction and
// returns the assigned identifier. Trace ordinals are renumbered 1..N in slice
// order so callers never persist gaps or duplicates.
func (s *Store) InsertImage(ctx context.Context, rec *ImageRecord) (int64, error) {
	if rec == nil {
		return 0, errors.New("insert image: nil record")
	}
	if strings.TrimSpace(rec.Path) == "" {
		return 0, errors.New("insert image: path is required")
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	ctx = ensureContext(ctx)

	var id int64
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			`INSERT INTO images (path, url, context_url, source, size, width, height, format, title, description, artist, created_at)
             VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			rec.Path,
			nullableString(rec.URL),
			nullableString(rec.ContextURL),
			rec.Source,
			rec.Size,
			rec.Width,
			rec.Height,
			nullableString(rec.Format),
			nullableString(rec.Title),
			nullableString(rec.Description),
			nullableString(rec.Artist),
			formatTime(rec.CreatedAt),
		)
		if err != nil {
			return err
		}
		if id, err = res.LastInsertId(); err != nil {
			return err
		}
		for i := range rec.Trace {
			rec.Trace[i].Step = i + 1
			if _, err := tx.ExecContext(ctx,
				"INSERT INTO image_trace (image_id, step, name, detail) VALUES (?, ?, ?, ?)",
				id, rec.Trace[i].Step, rec.Trace[i].Name, nullableString(rec.Trace[i].Detail),
			); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("insert image: %w", err)
	}
	rec.ID = id
	return id, nil
}

// HasSeen reports whether an image with the given context reference was
// already staged by any earlier run.
func (s *Store) HasSeen(ctx context.Context, contextURL string) (bool, error) {
	contextURL = strings.TrimSpace(contextURL)
	if contextURL == "" {
		return false, nil
	}
	ctx = ensureContext(ctx)
	var count int
	err := retryOnBusy(ctx, func() error {
		return s.db.QueryRowContext(ctx, "SELECT COUNT(1) FROM images WHERE context_url = ?", contextURL).Scan(&count)
	})
	if err != nil {
		return false, fmt.Errorf("lookup seen context %q: %w", contextURL, err)
	}
	return count > 0, nil
}

// RecentImages returns up to limit images ordered newest first, traces included.
func (s *Store) RecentImages(ctx context.Context, limit int) ([]ImageRecord, error) {
	ctx = ensureContext(ctx)
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+imageColumns+" FROM images ORDER BY created_at DESC, id DESC LIMIT ?", limit)
	if err != nil {
		return nil, fmt.Errorf("query images: %w", err)
	}
	defer rows.Close()

	var records []ImageRecord
	for rows.Next() {
		rec, err := scanImage(rows)
		if err != nil {
			return nil, fmt.Errorf("scan image: %w", err)
		}
		records = append(records, *rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate images: %w", err)
	}
	for i := range records {
		trace, err := s.imageTrace(ctx, records[i].ID)
		if err != nil {
			return nil, err
		}
		records[i].Trace = trace
	}
	return records, nil
}

// GetImage returns the image with the given id, or nil when absent.
func (s *Store) GetImage(ctx context.Context, id int64) (*ImageRecord, error) {
	ctx = ensureContext(ctx)
	row := s.db.QueryRowContext(ctx, "SELECT "+imageColumns+" FROM images WHERE id = ?", id)
	rec, err := scanImage(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get image %d: %w", id, err)
	}
	if rec.Trace, err = s.imageTrace(ctx, id); err != nil {
		return nil, err
	}
	return rec, nil
}

func (s *Store) imageTrace(ctx context.Context, id int64) ([]TraceStep, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT step, name, detail FROM image_trace WHERE image_id = ? ORDER BY step", id)
	if err != nil {
		return nil, fmt.Errorf("query trace for image %d: %w", id, err)
	}
	defer rows.Close()

	var trace []TraceStep
	for rows.Next() {
		var (
			step   TraceStep
			detail sql.NullString
		)
		if err := rows.Scan(&step.Step, &step.Name, &detail); err != nil {
			return nil, fmt.Errorf("scan trace: %w", err)
		}
		step.Detail = detail.String
		trace = append(trace, step)
	}
	return trace, rows.Err()
}

func scanImage(scanner interface{ Scan(dest ...any) error }) (*ImageRecord, error) {
	var (
		rec         ImageRecord
		url         sql.NullString
		contextURL  sql.NullString
		format      sql.NullString
		title       sql.NullString
		description sql.NullString
		artist      sql.NullString
		createdRaw  sql.NullString
	)
	if err := scanner.Scan(
		&rec.ID,
		&rec.Path,
		&url,
		&contextURL,
		&rec.Source,
		&rec.Size,
		&rec.Width,
		&rec.Height,
		&format,
		&title,
		&description,
		&artist,
		&createdRaw,
	); err != nil {
		return nil, err
	}
	rec.URL = url.String
	rec.ContextURL = contextURL.String
	rec.Format = format.String
	rec.Title = title.String
	rec.Description = description.String
	rec.Artist = artist.String
	rec.CreatedAt = parseTime(createdRaw)
	return &rec, nil
}
