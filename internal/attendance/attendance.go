// Package attendance stores per-day attendance rows and summarizes them
// for the chatbot context.
package attendance

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"studymate/internal/models"
)

const (
	summaryWindow = 10 // records considered for the summary
	recentWindow  = 5  // records echoed back in the summary
)

// Service reads and writes attendance rows.
type Service struct {
	db *sql.DB
}

// NewService builds an attendance service over the shared database handle.
func NewService(db *sql.DB) *Service {
	return &Service{db: db}
}

// MarkEntry is one student's status for a marking operation.
type MarkEntry struct {
	StudentID int64                   `json:"student_id"`
	Status    models.AttendanceStatus `json:"status"`
}

// Mark upserts attendance for every entry on the given day. The date is
// truncated to midnight UTC so one row exists per student per day.
func (s *Service) Mark(ctx context.Context, date time.Time, subject string, entries []MarkEntry) error {
	if len(entries) == 0 {
		return errors.New("no attendance entries")
	}
	day := date.UTC().Truncate(24 * time.Hour)
	now := time.Now().UTC()
	for _, e := range entries {
		if e.StudentID <= 0 {
			return errors.New("invalid student id")
		}
		if e.Status != models.AttendancePresent && e.Status != models.AttendanceAbsent {
			return fmt.Errorf("invalid status: %q", e.Status)
		}
		_, err := s.db.ExecContext(ctx,
			`INSERT INTO attendance (student_id, date, status, subject, created_at)
			 VALUES (?, ?, ?, ?, ?)
			 ON CONFLICT(student_id, date) DO UPDATE SET status = excluded.status, subject = excluded.subject`,
			e.StudentID, day, e.Status, subject, now,
		)
		if err != nil {
			return fmt.Errorf("mark attendance for student %d: %w", e.StudentID, err)
		}
	}
	return nil
}

// Records lists a student's attendance rows, newest first. limit <= 0
// returns all rows.
func (s *Service) Records(ctx context.Context, studentID int64, limit int) ([]models.AttendanceRecord, error) {
	if studentID <= 0 {
		return nil, errors.New("invalid student id")
	}
	query := `SELECT id, student_id, date, status, subject FROM attendance WHERE student_id = ? ORDER BY date DESC`
	args := []any{studentID}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list attendance: %w", err)
	}
	defer rows.Close()

	var records []models.AttendanceRecord
	for rows.Next() {
		var r models.AttendanceRecord
		if err := rows.Scan(&r.ID, &r.StudentID, &r.Date, &r.Status, &r.Subject); err != nil {
			return nil, fmt.Errorf("scan attendance: %w", err)
		}
		records = append(records, r)
	}
	return records, rows.Err()
}

// Summarize computes attendance statistics over the student's 10 most
// recent records. It returns (nil, nil) when the student id is missing or
// no records exist; absence of data is not an error.
func (s *Service) Summarize(ctx context.Context, studentID int64) (*models.AttendanceSummary, error) {
	if studentID <= 0 {
		return nil, nil
	}
	records, err := s.Records(ctx, studentID, summaryWindow)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, nil
	}

	present := 0
	for _, r := range records {
		if r.Status == models.AttendancePresent {
			present++
		}
	}
	total := len(records)
	recent := records
	if len(recent) > recentWindow {
		recent = recent[:recentWindow]
	}
	return &models.AttendanceSummary{
		TotalClasses: total,
		PresentCount: present,
		AbsentCount:  total - present,
		Percentage:   fmt.Sprintf("%.2f", float64(present)/float64(total)*100),
		Recent:       recent,
	}, nil
}
