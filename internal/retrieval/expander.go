package retrieval

import (
	"regexp"
	"strings"
)

var yearPattern = regexp.MustCompile(`\b(19|20)\d{2}\b`)

var workCues = []string{"work", "job", "career", "position", "role", "company", "employ"}

var rangeCues = []string{"from", "to", "until", "through", "between", "during"}

// QueryExpander appends retrieval hints to questions that mention year
// ranges, which embed poorly on their own. The original question is
// always kept verbatim at the front.
type QueryExpander struct{}

func NewQueryExpander() *QueryExpander { return &QueryExpander{} }

// Expand returns the query plus any extra terms, and the terms that
// were added. Queries without at least two year mentions pass through
// unchanged.
func (e *QueryExpander) Expand(query string) (string, []string) {
	years := yearPattern.FindAllString(query, -1)
	if len(years) < 2 {
		return query, nil
	}

	lower := strings.ToLower(query)
	var terms []string
	if containsAny(lower, workCues) {
		terms = append(terms, "employment", "job", "position", "company")
	}
	if containsAny(lower, rangeCues) {
		terms = append(terms, "time period", "duration")
	}
	if len(terms) == 0 {
		return query, nil
	}
	return query + " " + strings.Join(terms, " "), terms
}

func containsAny(s string, cues []string) bool {
	for _, cue := range cues {
		if strings.Contains(s, cue) {
			return true
		}
	}
	return false
}
