package index

import (
	"strings"

	"github.com/starford/designtrail/internal/models"
)

// Query narrows an element listing. Tags use AND semantics; Text is a
// case-insensitive substring matched against name, source URL, each tag
// and notes.
type Query struct {
	Tags []string `json:"tags"`
	Text string   `json:"query"`
}

// IsEmpty reports whether q passes everything through.
func (q Query) IsEmpty() bool {
	return len(q.Tags) == 0 && q.Text == ""
}

// Filter returns the elements matching q, preserving order. An empty
// query returns elements unchanged.
func Filter(elements []models.ElementSummary, q Query) []models.ElementSummary {
	if q.IsEmpty() {
		return elements
	}
	needle := strings.ToLower(q.Text)
	out := make([]models.ElementSummary, 0, len(elements))
	for _, el := range elements {
		if hasAllTags(el, q.Tags) && matchesText(el, needle) {
			out = append(out, el)
		}
	}
	return out
}

func hasAllTags(el models.ElementSummary, want []string) bool {
	for _, w := range want {
		found := false
		for _, t := range el.Tags {
			if t == w {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

func matchesText(el models.ElementSummary, needle string) bool {
	if needle == "" {
		return true
	}
	if strings.Contains(strings.ToLower(el.DisplayName), needle) ||
		strings.Contains(strings.ToLower(el.SourceURL), needle) ||
		strings.Contains(strings.ToLower(el.Notes), needle) {
		return true
	}
	for _, t := range el.Tags {
		if strings.Contains(strings.ToLower(t), needle) {
			return true
		}
	}
	return false
}
