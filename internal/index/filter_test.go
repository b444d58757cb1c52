package index

import (
	"testing"

	"github.com/starford/designtrail/internal/models"
)

var sample = []models.ElementSummary{
	{ElementID: "1", DisplayName: "Logo", SourceURL: "https://brand.example/logo", Tags: []string{"x", "brand"}},
	{ElementID: "2", DisplayName: "Card", Tags: []string{"y"}, Notes: "Uses the Logo asset"},
	{ElementID: "3", DisplayName: "Footer", Tags: []string{"x"}},
}

func ids(in []models.ElementSummary) []string {
	out := make([]string, 0, len(in))
	for _, e := range in {
		out = append(out, e.ElementID)
	}
	return out
}

func TestFilter(t *testing.T) {
	tests := []struct {
		name string
		q    Query
		want []string
	}{
		{"empty query is identity", Query{}, []string{"1", "2", "3"}},
		{"single tag", Query{Tags: []string{"x"}}, []string{"1", "3"}},
		{"tags are AND", Query{Tags: []string{"x", "brand"}}, []string{"1"}},
		{"unknown tag", Query{Tags: []string{"nope"}}, []string{}},
		{"text is case-insensitive over name and notes", Query{Text: "LOGO"}, []string{"1", "2"}},
		{"text matches url", Query{Text: "brand.example"}, []string{"1"}},
		{"text matches tag", Query{Text: "bra"}, []string{"1"}},
		{"tags and text combine", Query{Tags: []string{"x"}, Text: "foot"}, []string{"3"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ids(Filter(sample, tt.q))
			if len(got) != len(tt.want) {
				t.Fatalf("got %v, want %v", got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Fatalf("got %v, want %v", got, tt.want)
				}
			}
		})
	}
}
