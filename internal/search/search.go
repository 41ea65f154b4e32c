// Package search ranks extracted materials against a free-text query.
//
// The procedure is deterministic: infer a category from an ordered keyword
// table, filter, keep the five most recently uploaded candidates, then drop
// candidates sharing no significant word with the query — falling back to
// the recency ranking when that would empty the result.
package search

import (
	"sort"
	"strings"

	"studymate/internal/config"
	"studymate/internal/models"
)

const maxResults = 5

// minTokenLen+1 is the shortest query word considered significant.
const minTokenLen = 3

// Rule binds query substrings to a category. First match wins.
type Rule struct {
	Keywords []string
	Category models.Category
}

// DefaultRules returns the built-in category inference table, in priority order.
func DefaultRules() []Rule {
	return []Rule{
		{Keywords: []string{"syllabus"}, Category: models.CategorySyllabus},
		{Keywords: []string{"note"}, Category: models.CategoryNotes},
		{Keywords: []string{"timetable", "schedule"}, Category: models.CategoryTimetable},
		{Keywords: []string{"pyq", "previous year", "question"}, Category: models.CategoryPYQ},
	}
}

// Engine performs relevance search over a material corpus.
type Engine struct {
	rules []Rule
}

// NewEngine builds an engine with the given rule table; nil uses DefaultRules.
func NewEngine(rules []Rule) *Engine {
	if rules == nil {
		rules = DefaultRules()
	}
	return &Engine{rules: rules}
}

// RulesFromConfig converts configured category rules, dropping entries with
// an invalid category. Empty config falls back to the built-in table.
func RulesFromConfig(cfgRules []config.CategoryRule) []Rule {
	if len(cfgRules) == 0 {
		return DefaultRules()
	}
	var rules []Rule
	for _, r := range cfgRules {
		category, err := models.ParseCategory(r.Category)
		if err != nil || len(r.Match) == 0 {
			continue
		}
		rules = append(rules, Rule{Keywords: r.Match, Category: category})
	}
	if len(rules) == 0 {
		return DefaultRules()
	}
	return rules
}

// InferCategory matches the lowercased query against the rule table.
// The boolean reports whether any rule matched.
func (e *Engine) InferCategory(query string) (models.Category, bool) {
	lower := strings.ToLower(query)
	for _, rule := range e.rules {
		for _, kw := range rule.Keywords {
			if strings.Contains(lower, kw) {
				return rule.Category, true
			}
		}
	}
	return "", false
}

// Search returns at most five extracted materials relevant to the query.
// It is total: any malformed input degrades to an empty or unfiltered
// result rather than an error.
func (e *Engine) Search(query string, corpus []models.Material) []models.Material {
	candidates := make([]models.Material, 0, len(corpus))
	for _, m := range corpus {
		if m.ExtractionStatus == models.ExtractionExtracted {
			candidates = append(candidates, m)
		}
	}
	if len(candidates) == 0 {
		return nil
	}

	if category, ok := e.InferCategory(query); ok {
		filtered := candidates[:0]
		for _, m := range candidates {
			if m.Category == category {
				filtered = append(filtered, m)
			}
		}
		candidates = filtered
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].UploadedAt.After(candidates[j].UploadedAt)
	})
	if len(candidates) > maxResults {
		candidates = candidates[:maxResults]
	}

	tokens := significantWords(query)
	if len(tokens) == 0 {
		return candidates
	}

	var matched []models.Material
	for _, m := range candidates {
		haystack := strings.ToLower(m.Title + " " + m.Description + " " + m.ExtractedText)
		for _, tok := range tokens {
			if strings.Contains(haystack, tok) {
				matched = append(matched, m)
				break
			}
		}
	}
	// Keyword filtering never reduces the answer to nothing when recent
	// candidates exist.
	if len(matched) == 0 {
		return candidates
	}
	return matched
}

// significantWords tokenizes the query into case-folded words longer than
// three characters.
func significantWords(query string) []string {
	var words []string
	for _, w := range strings.Fields(strings.ToLower(query)) {
		if len(w) > minTokenLen {
			words = append(words, w)
		}
	}
	return words
}
