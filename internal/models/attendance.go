package models

import "time"

// AttendanceStatus marks a student as present or absent for one day.
type AttendanceStatus string

const (
	AttendancePresent AttendanceStatus = "present"
	AttendanceAbsent  AttendanceStatus = "absent"
)

// AttendanceRecord is a single attendance row. Read-only to the chatbot core.
type AttendanceRecord struct {
	ID        int64            `json:"id"`
	StudentID int64            `json:"student_id"`
	Date      time.Time        `json:"date"`
	Status    AttendanceStatus `json:"status"`
	Subject   string           `json:"subject,omitempty"`
}

// AttendanceSummary aggregates a student's recent attendance.
type AttendanceSummary struct {
	TotalClasses int                `json:"total_classes"`
	PresentCount int                `json:"present_count"`
	AbsentCount  int                `json:"absent_count"`
	Percentage   string             `json:"percentage"`
	Recent       []AttendanceRecord `json:"recent"`
}
