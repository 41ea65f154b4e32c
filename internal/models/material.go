package models

import (
	"fmt"
	"time"
)

// Category classifies an uploaded study material.
type Category string

const (
	CategorySyllabus  Category = "syllabus"
	CategoryNotes     Category = "notes"
	CategoryTimetable Category = "timetable"
	CategoryPYQ       Category = "pyqs"
)

// ParseCategory validates a raw category string.
func ParseCategory(raw string) (Category, error) {
	switch Category(raw) {
	case CategorySyllabus, CategoryNotes, CategoryTimetable, CategoryPYQ:
		return Category(raw), nil
	}
	return "", fmt.Errorf("invalid category: %q", raw)
}

// ExtractionStatus tracks the lifecycle of deriving text from a material's bytes.
type ExtractionStatus string

const (
	ExtractionPending   ExtractionStatus = "pending"
	ExtractionExtracted ExtractionStatus = "extracted"
	ExtractionFailed    ExtractionStatus = "failed"
)

// Material is an uploaded study artifact. ExtractedText is non-empty only
// when ExtractionStatus is "extracted"; ExtractionError is non-empty only
// when it is "failed".
type Material struct {
	ID               int64            `json:"id"`
	Title            string           `json:"title"`
	Description      string           `json:"description,omitempty"`
	Category         Category         `json:"category"`
	Subject          string           `json:"subject"`
	Semester         int              `json:"semester"`
	FileName         string           `json:"file_name"`
	OriginalName     string           `json:"original_name"`
	StoredPath       string           `json:"-"`
	ExtractionStatus ExtractionStatus `json:"extraction_status"`
	ExtractedText    string           `json:"-"`
	ExtractionError  string           `json:"extraction_error,omitempty"`
	UploadedAt       time.Time        `json:"uploaded_at"`
}
