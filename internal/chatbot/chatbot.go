// Package chatbot answers student queries by assembling study-material and
// attendance context around a conversational model, falling back to a
// deterministic reply whenever the model is unavailable or fails.
package chatbot

import (
	"context"
	"fmt"
	"log"
	"strings"

	"studymate/internal/attendance"
	"studymate/internal/ingest"
	"studymate/internal/models"
	"studymate/internal/search"

	"github.com/cloudwego/eino/schema"
)

const (
	modelPreviewLimit    = 500
	fallbackPreviewLimit = 200
)

// Canned replies used when no context and no model can serve the query.
var simpleResponses = map[string]string{
	"syllabus":   "You can find the syllabus in the Materials section under Syllabus category.",
	"notes":      "Study notes are available in the Materials library. Filter by subject to find relevant notes.",
	"timetable":  "Check the Timetable section in Materials for current class schedules.",
	"pyqs":       "Previous year questions are available in PYQs category in Materials.",
	"attendance": "Check your attendance records in the Student Dashboard. You can view attendance by subject and see your overall percentage.",
	"default":    "I can help you with syllabus, notes, timetable, previous year questions, and attendance queries. Please check the Materials section or ask specific questions.",
}

// Service wires the search engine, attendance summaries, the session
// registry, and the model provider into the chat endpoint.
type Service struct {
	provider   Provider
	sessions   *Registry
	engine     *search.Engine
	ingest     *ingest.Service
	attendance *attendance.Service
}

func NewService(provider Provider, sessions *Registry, engine *search.Engine, ing *ingest.Service, att *attendance.Service) *Service {
	if provider == nil {
		provider = Unavailable{}
	}
	return &Service{
		provider:   provider,
		sessions:   sessions,
		engine:     engine,
		ingest:     ing,
		attendance: att,
	}
}

// ChatRequest is one user turn.
type ChatRequest struct {
	Message   string
	SessionID string
	UserID    int64
}

// ChatResponse echoes the session id alongside the reply.
type ChatResponse struct {
	Response  string `json:"response"`
	SessionID string `json:"sessionId"`
}

// Chat produces a reply for one turn. It never returns an error for a
// well-formed request; every internal failure degrades to the
// deterministic fallback.
func (s *Service) Chat(ctx context.Context, req ChatRequest) ChatResponse {
	// Search must be total: any corpus error collapses to no documents.
	var docs []models.Material
	corpus, err := s.ingest.ExtractedMaterials(ctx)
	if err != nil {
		log.Printf("chatbot: load corpus: %v", err)
	} else {
		docs = s.engine.Search(req.Message, corpus)
	}

	var summary *models.AttendanceSummary
	if req.UserID > 0 && strings.Contains(strings.ToLower(req.Message), "attendance") {
		summary, err = s.attendance.Summarize(ctx, req.UserID)
		if err != nil {
			log.Printf("chatbot: attendance summary: %v", err)
			summary = nil
		}
	}

	if _, unavailable := s.provider.(Unavailable); !unavailable {
		if reply, err := s.generate(ctx, req, docs, summary); err == nil {
			return ChatResponse{Response: reply, SessionID: req.SessionID}
		} else {
			log.Printf("chatbot: model provider failed, falling back: %v", err)
		}
	}

	return ChatResponse{
		Response:  s.fallback(req.Message, docs, summary),
		SessionID: req.SessionID,
	}
}

// generate runs one model turn against the session's conversation.
func (s *Service) generate(ctx context.Context, req ChatRequest, docs []models.Material, summary *models.AttendanceSummary) (string, error) {
	prompt := req.Message
	if block := buildContextBlock(docs, summary); block != "" {
		prompt = req.Message + "\n\n[Context Information]:" + block
	}

	conv := s.sessions.Acquire(req.SessionID)
	conv.append(schema.User, prompt)

	reply, err := s.provider.Generate(ctx, conv.snapshot())
	if err != nil {
		return "", err
	}
	conv.append(schema.Assistant, reply)
	return reply, nil
}

// buildContextBlock renders the candidate documents and the attendance
// summary for the model prompt.
func buildContextBlock(docs []models.Material, summary *models.AttendanceSummary) string {
	var b strings.Builder
	for _, doc := range docs {
		fmt.Fprintf(&b, "\n- %s (%s, %s, semester %d)", doc.Title, doc.Category, doc.Subject, doc.Semester)
		if doc.Description != "" {
			fmt.Fprintf(&b, "\n  Description: %s", doc.Description)
		}
		if preview := truncate(doc.ExtractedText, modelPreviewLimit); preview != "" {
			fmt.Fprintf(&b, "\n  Content: %s", preview)
		}
	}
	if summary != nil {
		fmt.Fprintf(&b, "\nAttendance: %d classes, %d present, %d absent, %s%%",
			summary.TotalClasses, summary.PresentCount, summary.AbsentCount, summary.Percentage)
		for _, rec := range summary.Recent {
			fmt.Fprintf(&b, "\n  %s: %s", rec.Date.Format("2006-01-02"), rec.Status)
		}
	}
	return b.String()
}

// fallback synthesizes a deterministic reply: attendance summary first,
// then document enumeration, then the canned keyword table.
func (s *Service) fallback(message string, docs []models.Material, summary *models.AttendanceSummary) string {
	if summary != nil {
		var b strings.Builder
		fmt.Fprintf(&b, "Your attendance summary: %d classes total, %d present, %d absent (%s%%).",
			summary.TotalClasses, summary.PresentCount, summary.AbsentCount, summary.Percentage)
		if len(summary.Recent) > 0 {
			b.WriteString("\nRecent records:")
			for _, rec := range summary.Recent {
				fmt.Fprintf(&b, "\n- %s: %s", rec.Date.Format("2006-01-02"), rec.Status)
				if rec.Subject != "" {
					fmt.Fprintf(&b, " (%s)", rec.Subject)
				}
			}
		}
		return b.String()
	}

	if len(docs) > 0 {
		var b strings.Builder
		b.WriteString("Here is what I found in the materials library:")
		for i, doc := range docs {
			fmt.Fprintf(&b, "\n%d. %s (%s, %s, semester %d)", i+1, doc.Title, doc.Category, doc.Subject, doc.Semester)
			if doc.Description != "" {
				fmt.Fprintf(&b, "\n   %s", doc.Description)
			}
			if preview := truncate(doc.ExtractedText, fallbackPreviewLimit); preview != "" {
				fmt.Fprintf(&b, "\n   %s", preview)
			}
		}
		return b.String()
	}

	lower := strings.ToLower(message)
	switch {
	case strings.Contains(lower, "syllabus"):
		return simpleResponses["syllabus"]
	case strings.Contains(lower, "note"):
		return simpleResponses["notes"]
	case strings.Contains(lower, "time"), strings.Contains(lower, "schedule"):
		return simpleResponses["timetable"]
	case strings.Contains(lower, "previous"), strings.Contains(lower, "pyq"):
		return simpleResponses["pyqs"]
	case strings.Contains(lower, "attendance"):
		return simpleResponses["attendance"]
	default:
		return simpleResponses["default"]
	}
}

func truncate(text string, limit int) string {
	if len(text) <= limit {
		return text
	}
	return text[:limit]
}
