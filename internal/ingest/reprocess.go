package ingest

import (
	"context"
	"fmt"

	"studymate/internal/models"
)

// ReprocessReport summarizes one bulk reprocess run.
type ReprocessReport struct {
	Total     int `json:"total"`
	Attempted int `json:"attempted"`
	Succeeded int `json:"succeeded"`
	Failed    int `json:"failed"`
}

// ReprocessAll retries extraction for every material not yet extracted,
// one at a time. A failing material never aborts the rest; materials with
// an extraction already in flight are left alone. Materials already in
// status "extracted" are never touched.
func (s *Service) ReprocessAll(ctx context.Context) (ReprocessReport, error) {
	var report ReprocessReport

	rows, err := s.db.QueryContext(ctx,
		`SELECT id FROM materials WHERE extraction_status != ? ORDER BY id`,
		models.ExtractionExtracted,
	)
	if err != nil {
		return report, fmt.Errorf("list reprocess candidates: %w", err)
	}
	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return report, fmt.Errorf("scan candidate: %w", err)
		}
		ids = append(ids, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return report, err
	}

	report.Total = len(ids)
	for _, id := range ids {
		task, err := s.Enqueue(id)
		if err != nil {
			// In flight elsewhere or pool saturated; skip, don't abort.
			continue
		}
		report.Attempted++
		if err := task.Wait(ctx); err != nil {
			if ctx.Err() != nil {
				return report, ctx.Err()
			}
			report.Failed++
			continue
		}
		report.Succeeded++
	}
	return report, nil
}
