package search

import (
	"fmt"
	"testing"
	"time"

	"studymate/internal/config"
	"studymate/internal/models"
)

func testMaterial(id int64, title string, category models.Category, text string, uploaded time.Time) models.Material {
	return models.Material{
		ID:               id,
		Title:            title,
		Category:         category,
		Subject:          "CS",
		Semester:         3,
		ExtractionStatus: models.ExtractionExtracted,
		ExtractedText:    text,
		UploadedAt:       uploaded,
	}
}

func TestInferCategory(t *testing.T) {
	engine := NewEngine(nil)
	cases := []struct {
		query   string
		want    models.Category
		matched bool
	}{
		{"where is the syllabus", models.CategorySyllabus, true},
		{"DAA notes please", models.CategoryNotes, true},
		{"class schedule for monday", models.CategoryTimetable, true},
		{"TIMETABLE", models.CategoryTimetable, true},
		{"previous year papers", models.CategoryPYQ, true},
		{"any pyq for OS?", models.CategoryPYQ, true},
		{"question bank", models.CategoryPYQ, true},
		{"hello there", "", false},
	}
	for _, tc := range cases {
		got, ok := engine.InferCategory(tc.query)
		if ok != tc.matched || got != tc.want {
			t.Fatalf("InferCategory(%q) = (%q, %v), want (%q, %v)", tc.query, got, ok, tc.want, tc.matched)
		}
	}
}

func TestInferCategoryFirstRuleWins(t *testing.T) {
	engine := NewEngine(nil)
	// Mentions both syllabus and notes; the table is ordered.
	got, ok := engine.InferCategory("notes about the syllabus")
	if !ok || got != models.CategorySyllabus {
		t.Fatalf("InferCategory = (%q, %v), want syllabus", got, ok)
	}
}

func TestSearchSkipsUnextracted(t *testing.T) {
	engine := NewEngine(nil)
	now := time.Now()
	corpus := []models.Material{
		testMaterial(1, "Greedy algorithms", models.CategoryNotes, "greedy strategies", now),
		{ID: 2, Title: "Pending upload", Category: models.CategoryNotes, ExtractionStatus: models.ExtractionPending, UploadedAt: now},
		{ID: 3, Title: "Broken upload", Category: models.CategoryNotes, ExtractionStatus: models.ExtractionFailed, UploadedAt: now},
	}
	results := engine.Search("greedy", corpus)
	if len(results) != 1 || results[0].ID != 1 {
		t.Fatalf("Search returned %v, want only material 1", results)
	}
}

func TestSearchCategoryFilterAndTopFive(t *testing.T) {
	engine := NewEngine(nil)
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	var corpus []models.Material
	for i := 0; i < 8; i++ {
		corpus = append(corpus, testMaterial(int64(i+1),
			fmt.Sprintf("Algorithms notes part %d", i+1),
			models.CategoryNotes, "asymptotic analysis", base.Add(time.Duration(i)*time.Hour)))
	}
	corpus = append(corpus, testMaterial(100, "Exam timetable", models.CategoryTimetable, "monday tuesday", base))

	results := engine.Search("notes on algorithms", corpus)
	if len(results) != 5 {
		t.Fatalf("Search returned %d results, want 5", len(results))
	}
	for i, m := range results {
		if m.Category != models.CategoryNotes {
			t.Fatalf("result %d has category %q, want notes", i, m.Category)
		}
		if i > 0 && results[i-1].UploadedAt.Before(m.UploadedAt) {
			t.Fatalf("results not sorted by upload time descending")
		}
	}
	// Most recent uploads win.
	if results[0].ID != 8 {
		t.Fatalf("top result = %d, want 8", results[0].ID)
	}
}

func TestSearchKeywordFilter(t *testing.T) {
	engine := NewEngine(nil)
	now := time.Now()
	corpus := []models.Material{
		testMaterial(1, "Graph theory", models.CategoryNotes, "spanning trees and cuts", now),
		testMaterial(2, "Linear algebra", models.CategoryNotes, "matrix decompositions", now.Add(time.Minute)),
	}
	results := engine.Search("notes about spanning trees", corpus)
	if len(results) != 1 || results[0].ID != 1 {
		t.Fatalf("Search = %v, want only the graph theory material", results)
	}
}

func TestSearchFallsBackWhenNoKeywordMatch(t *testing.T) {
	engine := NewEngine(nil)
	now := time.Now()
	corpus := []models.Material{
		testMaterial(1, "Graph theory", models.CategoryNotes, "spanning trees", now),
		testMaterial(2, "Linear algebra", models.CategoryNotes, "matrices", now.Add(time.Minute)),
	}
	results := engine.Search("notes about quantum chromodynamics", corpus)
	if len(results) != 2 {
		t.Fatalf("Search returned %d results, want fallback to 2", len(results))
	}
}

func TestSearchShortTokensIgnored(t *testing.T) {
	engine := NewEngine(nil)
	now := time.Now()
	corpus := []models.Material{
		testMaterial(1, "Unit one", models.CategoryNotes, "introduction", now),
	}
	// Every word is 3 chars or fewer, so no keyword filtering happens.
	results := engine.Search("o s db", corpus)
	if len(results) != 1 {
		t.Fatalf("Search returned %d results, want 1", len(results))
	}
}

func TestSearchDeterministic(t *testing.T) {
	engine := NewEngine(nil)
	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	var corpus []models.Material
	for i := 0; i < 6; i++ {
		corpus = append(corpus, testMaterial(int64(i+1),
			fmt.Sprintf("Notes %d", i+1), models.CategoryNotes, "shared content", base.Add(time.Duration(i)*time.Minute)))
	}
	first := engine.Search("notes shared", corpus)
	for i := 0; i < 10; i++ {
		again := engine.Search("notes shared", corpus)
		if len(again) != len(first) {
			t.Fatalf("run %d returned %d results, want %d", i, len(again), len(first))
		}
		for j := range again {
			if again[j].ID != first[j].ID {
				t.Fatalf("run %d result %d = %d, want %d", i, j, again[j].ID, first[j].ID)
			}
		}
	}
}

func TestSearchEmptyCorpus(t *testing.T) {
	engine := NewEngine(nil)
	if results := engine.Search("anything", nil); len(results) != 0 {
		t.Fatalf("Search on empty corpus = %v, want empty", results)
	}
}

func TestRulesFromConfig(t *testing.T) {
	rules := RulesFromConfig([]config.CategoryRule{
		{Match: []string{"lab manual"}, Category: "notes"},
		{Match: []string{"bogus"}, Category: "not-a-category"},
		{Match: nil, Category: "syllabus"},
	})
	if len(rules) != 1 {
		t.Fatalf("RulesFromConfig kept %d rules, want 1", len(rules))
	}
	engine := NewEngine(rules)
	got, ok := engine.InferCategory("where is the lab manual")
	if !ok || got != models.CategoryNotes {
		t.Fatalf("InferCategory = (%q, %v), want notes", got, ok)
	}

	if def := RulesFromConfig(nil); len(def) != len(DefaultRules()) {
		t.Fatalf("empty config should fall back to default rules")
	}
}
