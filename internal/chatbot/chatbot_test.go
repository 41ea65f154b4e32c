package chatbot

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"testing"
	"time"

	"studymate/internal/attendance"
	"studymate/internal/config"
	"studymate/internal/ingest"
	"studymate/internal/models"
	"studymate/internal/search"
	"studymate/internal/storage"
	"studymate/internal/worker"

	"github.com/cloudwego/eino/schema"
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	cfg := &config.Config{
		Databases: map[string]config.DatabaseConfig{
			"sqlite3": {
				DSN: ":memory:",
			},
		},
	}
	db, err := storage.Open("sqlite3", cfg)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := storage.Migrate(db, "sqlite3"); err != nil {
		t.Fatalf("migrate db: %v", err)
	}
	return db
}

// fakeProvider records the last transcript it saw and replies with a fixed
// string or error.
type fakeProvider struct {
	reply string
	err   error
	seen  [][]*schema.Message
}

func (f *fakeProvider) Generate(_ context.Context, messages []*schema.Message) (string, error) {
	copied := make([]*schema.Message, len(messages))
	copy(copied, messages)
	f.seen = append(f.seen, copied)
	return f.reply, f.err
}

func newTestService(t *testing.T, provider Provider) (*Service, *sql.DB) {
	t.Helper()
	db := openTestDB(t)
	t.Cleanup(func() { db.Close() })
	pool := worker.NewPool(1, 2, 16, time.Minute)
	ing := ingest.NewService(db, pool)
	att := attendance.NewService(db)
	svc := NewService(provider, NewRegistry(10), search.NewEngine(nil), ing, att)
	return svc, db
}

func insertExtractedMaterial(t *testing.T, db *sql.DB, title string, category models.Category, text string) {
	t.Helper()
	_, err := db.Exec(
		`INSERT INTO materials (title, description, category, subject, semester, file_name, original_name, stored_path, extraction_status, extracted_text, uploaded_at)
		 VALUES (?, '', ?, 'CS', 3, ?, ?, '/tmp/x', 'extracted', ?, ?)`,
		title, category, title+".txt", title+".txt", text, time.Now().UTC(),
	)
	if err != nil {
		t.Fatalf("insert material: %v", err)
	}
}

func TestChatFallbackEnumeratesDocuments(t *testing.T) {
	svc, db := newTestService(t, Unavailable{})
	insertExtractedMaterial(t, db, "CS Semester 3 Syllabus", models.CategorySyllabus, "syllabus outline for semester three")

	resp := svc.Chat(context.Background(), ChatRequest{
		Message:   "Where can I find the syllabus?",
		SessionID: "s1",
	})
	if resp.SessionID != "s1" {
		t.Fatalf("session id = %q, want echoed s1", resp.SessionID)
	}
	if !strings.Contains(resp.Response, "CS Semester 3 Syllabus") {
		t.Fatalf("response %q does not enumerate the syllabus document", resp.Response)
	}
}

func TestChatFallbackPrefersAttendanceSummary(t *testing.T) {
	svc, db := newTestService(t, Unavailable{})
	insertExtractedMaterial(t, db, "Attendance policy", models.CategoryNotes, "attendance rules document")

	att := attendance.NewService(db)
	base := time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 4; i++ {
		err := att.Mark(context.Background(), base.AddDate(0, 0, i), "", []attendance.MarkEntry{
			{StudentID: 9, Status: models.AttendancePresent},
		})
		if err != nil {
			t.Fatalf("mark attendance: %v", err)
		}
	}

	resp := svc.Chat(context.Background(), ChatRequest{
		Message:   "how is my attendance?",
		SessionID: "s2",
		UserID:    9,
	})
	if !strings.Contains(resp.Response, "4 classes total") || !strings.Contains(resp.Response, "100.00%") {
		t.Fatalf("response %q does not render the attendance summary", resp.Response)
	}
}

func TestChatFallbackSkipsAttendanceWithoutUser(t *testing.T) {
	svc, _ := newTestService(t, Unavailable{})

	resp := svc.Chat(context.Background(), ChatRequest{
		Message:   "how is my attendance?",
		SessionID: "s3",
	})
	if resp.Response != simpleResponses["attendance"] {
		t.Fatalf("response = %q, want canned attendance reply", resp.Response)
	}
}

func TestChatCannedResponses(t *testing.T) {
	svc, _ := newTestService(t, Unavailable{})
	cases := []struct {
		message string
		want    string
	}{
		{"where is the syllabus", simpleResponses["syllabus"]},
		{"any notes?", simpleResponses["notes"]},
		{"class schedule please", simpleResponses["timetable"]},
		{"pyq for DAA", simpleResponses["pyqs"]},
		{"hello", simpleResponses["default"]},
	}
	for _, tc := range cases {
		resp := svc.Chat(context.Background(), ChatRequest{Message: tc.message, SessionID: "s"})
		if resp.Response != tc.want {
			t.Fatalf("Chat(%q) = %q, want %q", tc.message, resp.Response, tc.want)
		}
	}
}

func TestChatModelPathBuildsContextPrompt(t *testing.T) {
	provider := &fakeProvider{reply: "model answer"}
	svc, db := newTestService(t, provider)
	longText := strings.Repeat("x", 600)
	insertExtractedMaterial(t, db, "Long notes", models.CategoryNotes, longText)

	resp := svc.Chat(context.Background(), ChatRequest{
		Message:   "summarize my notes",
		SessionID: "s4",
	})
	if resp.Response != "model answer" {
		t.Fatalf("response = %q, want provider reply verbatim", resp.Response)
	}
	if len(provider.seen) != 1 {
		t.Fatalf("provider called %d times, want 1", len(provider.seen))
	}
	transcript := provider.seen[0]
	if len(transcript) != 1 || transcript[0].Role != schema.User {
		t.Fatalf("unexpected transcript: %+v", transcript)
	}
	prompt := transcript[0].Content
	if !strings.HasPrefix(prompt, "summarize my notes\n\n[Context Information]:") {
		t.Fatalf("prompt %q missing context marker", prompt)
	}
	if !strings.Contains(prompt, strings.Repeat("x", 500)) {
		t.Fatalf("prompt missing 500-char preview")
	}
	if strings.Contains(prompt, strings.Repeat("x", 501)) {
		t.Fatalf("preview not capped at 500 characters")
	}
}

func TestChatModelPathKeepsConversationHistory(t *testing.T) {
	provider := &fakeProvider{reply: "reply"}
	svc, _ := newTestService(t, provider)

	svc.Chat(context.Background(), ChatRequest{Message: "first turn", SessionID: "s5"})
	svc.Chat(context.Background(), ChatRequest{Message: "second turn", SessionID: "s5"})

	if len(provider.seen) != 2 {
		t.Fatalf("provider called %d times, want 2", len(provider.seen))
	}
	second := provider.seen[1]
	// user, assistant, user
	if len(second) != 3 {
		t.Fatalf("second transcript has %d messages, want 3", len(second))
	}
	if second[1].Role != schema.Assistant || second[1].Content != "reply" {
		t.Fatalf("assistant turn not preserved: %+v", second[1])
	}
}

func TestChatProviderErrorFallsBack(t *testing.T) {
	provider := &fakeProvider{err: errors.New("upstream timeout")}
	svc, db := newTestService(t, provider)
	insertExtractedMaterial(t, db, "Exam timetable", models.CategoryTimetable, "monday 9am algorithms")

	resp := svc.Chat(context.Background(), ChatRequest{
		Message:   "show the timetable",
		SessionID: "s6",
	})
	if !strings.Contains(resp.Response, "Exam timetable") {
		t.Fatalf("response %q, want deterministic document listing after provider failure", resp.Response)
	}
}

func TestChatQueryWithoutContextSendsBareQuery(t *testing.T) {
	provider := &fakeProvider{reply: "ok"}
	svc, _ := newTestService(t, provider)

	svc.Chat(context.Background(), ChatRequest{Message: "just a greeting here", SessionID: "s7"})
	prompt := provider.seen[0][0].Content
	if prompt != "just a greeting here" {
		t.Fatalf("prompt = %q, want bare query when no context exists", prompt)
	}
}

func TestRegistryLRUEviction(t *testing.T) {
	r := NewRegistry(2)
	a := r.Acquire("a")
	r.Acquire("b")
	r.Acquire("a") // refresh a
	r.Acquire("c") // evicts b
	if r.Len() != 2 {
		t.Fatalf("Len = %d, want 2", r.Len())
	}
	if got := r.Acquire("a"); got != a {
		t.Fatalf("session a was evicted, want it retained")
	}
	// b was least recently used: acquiring it again creates a fresh handle.
	b := r.Acquire("b")
	b.append(schema.User, "hello")
	if len(b.snapshot()) != 1 {
		t.Fatalf("recreated session carries stale history")
	}
}

func TestRegistryEvictIdle(t *testing.T) {
	r := NewRegistry(10)
	old := r.Acquire("old")
	old.mu.Lock()
	old.lastUsed = time.Now().Add(-2 * time.Hour)
	old.mu.Unlock()
	r.Acquire("fresh")

	if n := r.evictIdle(time.Hour); n != 1 {
		t.Fatalf("evictIdle = %d, want 1", n)
	}
	if r.Len() != 1 {
		t.Fatalf("Len = %d after eviction, want 1", r.Len())
	}
}
