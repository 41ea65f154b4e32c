// Package ingest owns the material catalogue and its extraction lifecycle.
//
// Materials are created in status "pending" and driven to "extracted" or
// "failed" by background jobs on the worker pool. At most one extraction
// per material may be in flight; an overlapping attempt is rejected with
// ErrExtractionInFlight rather than raced.
package ingest

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"studymate/internal/extract"
	"studymate/internal/models"
	"studymate/internal/worker"
)

// ErrExtractionInFlight reports a concurrent extraction attempt for the
// same material.
var ErrExtractionInFlight = errors.New("extraction already in flight")

// Service manages materials and their extraction state.
type Service struct {
	db   *sql.DB
	pool *worker.Pool

	mu       sync.Mutex
	inflight map[int64]struct{}
}

// NewService builds the ingest service on the shared database handle and
// worker pool.
func NewService(db *sql.DB, pool *worker.Pool) *Service {
	return &Service{
		db:       db,
		pool:     pool,
		inflight: make(map[int64]struct{}),
	}
}

// CreateParams carries the metadata of a new upload.
type CreateParams struct {
	Title        string
	Description  string
	Category     models.Category
	Subject      string
	Semester     int
	FileName     string
	OriginalName string
	StoredPath   string
}

// CreateMaterial inserts a material in pending status.
func (s *Service) CreateMaterial(ctx context.Context, p CreateParams) (*models.Material, error) {
	p.Title = strings.TrimSpace(p.Title)
	if p.Title == "" {
		return nil, errors.New("title is required")
	}
	if _, err := models.ParseCategory(string(p.Category)); err != nil {
		return nil, err
	}
	if strings.TrimSpace(p.Subject) == "" {
		return nil, errors.New("subject is required")
	}
	if p.Semester < 1 || p.Semester > 8 {
		return nil, errors.New("semester must be between 1 and 8")
	}

	now := time.Now().UTC()
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO materials
			(title, description, category, subject, semester, file_name, original_name, stored_path, extraction_status, uploaded_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.Title, p.Description, p.Category, p.Subject, p.Semester,
		p.FileName, p.OriginalName, p.StoredPath, models.ExtractionPending, now,
	)
	if err != nil {
		return nil, fmt.Errorf("create material: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("material id: %w", err)
	}
	return &models.Material{
		ID:               id,
		Title:            p.Title,
		Description:      p.Description,
		Category:         p.Category,
		Subject:          p.Subject,
		Semester:         p.Semester,
		FileName:         p.FileName,
		OriginalName:     p.OriginalName,
		StoredPath:       p.StoredPath,
		ExtractionStatus: models.ExtractionPending,
		UploadedAt:       now,
	}, nil
}

const materialColumns = `id, title, description, category, subject, semester,
	file_name, original_name, stored_path, extraction_status, extracted_text, extraction_error, uploaded_at`

func scanMaterial(row interface{ Scan(...any) error }) (*models.Material, error) {
	var m models.Material
	err := row.Scan(&m.ID, &m.Title, &m.Description, &m.Category, &m.Subject, &m.Semester,
		&m.FileName, &m.OriginalName, &m.StoredPath, &m.ExtractionStatus, &m.ExtractedText, &m.ExtractionError, &m.UploadedAt)
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// GetMaterial loads one material by id.
func (s *Service) GetMaterial(ctx context.Context, id int64) (*models.Material, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+materialColumns+` FROM materials WHERE id = ?`, id)
	m, err := scanMaterial(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("get material: %w", err)
	}
	return m, nil
}

// ListFilter narrows ListMaterials. Zero values mean "any".
type ListFilter struct {
	Category models.Category
	Subject  string
	Semester int
}

// ListMaterials returns materials matching the filter, newest first.
func (s *Service) ListMaterials(ctx context.Context, f ListFilter) ([]models.Material, error) {
	query := `SELECT ` + materialColumns + ` FROM materials WHERE 1=1`
	var args []any
	if f.Category != "" {
		query += ` AND category = ?`
		args = append(args, f.Category)
	}
	if f.Subject != "" {
		query += ` AND subject = ?`
		args = append(args, f.Subject)
	}
	if f.Semester > 0 {
		query += ` AND semester = ?`
		args = append(args, f.Semester)
	}
	query += ` ORDER BY uploaded_at DESC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list materials: %w", err)
	}
	defer rows.Close()

	var materials []models.Material
	for rows.Next() {
		m, err := scanMaterial(rows)
		if err != nil {
			return nil, fmt.Errorf("scan material: %w", err)
		}
		materials = append(materials, *m)
	}
	return materials, rows.Err()
}

// ExtractedMaterials returns the searchable corpus: every material whose
// text extraction has succeeded, newest first.
func (s *Service) ExtractedMaterials(ctx context.Context) ([]models.Material, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+materialColumns+` FROM materials WHERE extraction_status = ? ORDER BY uploaded_at DESC`,
		models.ExtractionExtracted,
	)
	if err != nil {
		return nil, fmt.Errorf("list extracted materials: %w", err)
	}
	defer rows.Close()

	var materials []models.Material
	for rows.Next() {
		m, err := scanMaterial(rows)
		if err != nil {
			return nil, fmt.Errorf("scan material: %w", err)
		}
		materials = append(materials, *m)
	}
	return materials, rows.Err()
}

// tryAcquire claims the extraction slot for a material.
func (s *Service) tryAcquire(id int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, busy := s.inflight[id]; busy {
		return false
	}
	s.inflight[id] = struct{}{}
	return true
}

func (s *Service) release(id int64) {
	s.mu.Lock()
	delete(s.inflight, id)
	s.mu.Unlock()
}

// Enqueue claims the material's extraction slot and submits the job to the
// worker pool, returning a handle the caller can await. A second attempt
// while one is in flight fails with ErrExtractionInFlight.
func (s *Service) Enqueue(id int64) (*Task, error) {
	if id <= 0 {
		return nil, errors.New("invalid material id")
	}
	if !s.tryAcquire(id) {
		return nil, ErrExtractionInFlight
	}
	task := &Task{MaterialID: id, done: make(chan struct{})}
	err := s.pool.Submit(worker.Job{
		MaterialID: id,
		Run: func() {
			defer s.release(id)
			task.err = s.extractOne(context.Background(), id)
			close(task.done)
		},
	})
	if err != nil {
		s.release(id)
		return nil, fmt.Errorf("enqueue extraction: %w", err)
	}
	return task, nil
}

// extractOne runs dispatch → extract → normalize for one material and
// commits the resulting state transition. The returned error is non-nil
// whenever the attempt did not end in status "extracted".
func (s *Service) extractOne(ctx context.Context, id int64) error {
	var originalName, storedPath string
	err := s.db.QueryRowContext(ctx,
		`SELECT original_name, stored_path FROM materials WHERE id = ?`, id,
	).Scan(&originalName, &storedPath)
	if err != nil {
		return fmt.Errorf("load material %d: %w", id, err)
	}

	text, err := s.runExtraction(ctx, originalName, storedPath)
	if err != nil {
		if markErr := s.markFailed(ctx, id, err); markErr != nil {
			return markErr
		}
		return err
	}
	return s.markExtracted(ctx, id, extract.Normalize(text))
}

func (s *Service) runExtraction(ctx context.Context, originalName, storedPath string) (string, error) {
	extractor, err := extract.ForExtension(filepath.Ext(originalName))
	if err != nil {
		return "", err
	}
	f, err := os.Open(storedPath)
	if err != nil {
		return "", fmt.Errorf("%w: %v", extract.ErrTextRead, err)
	}
	defer f.Close()
	return extractor.Extract(ctx, f)
}

// markExtracted commits the success transition, clearing any prior error.
func (s *Service) markExtracted(ctx context.Context, id int64, text string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE materials SET extraction_status = ?, extracted_text = ?, extraction_error = '' WHERE id = ?`,
		models.ExtractionExtracted, text, id,
	)
	if err != nil {
		return fmt.Errorf("mark material %d extracted: %w", id, err)
	}
	return nil
}

// markFailed commits the failure transition. Previously extracted text, if
// any, stays untouched.
func (s *Service) markFailed(ctx context.Context, id int64, cause error) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE materials SET extraction_status = ?, extraction_error = ? WHERE id = ?`,
		models.ExtractionFailed, cause.Error(), id,
	)
	if err != nil {
		return fmt.Errorf("mark material %d failed: %w", id, err)
	}
	return nil
}
