package retrieval

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestQueryExpander(t *testing.T) {
	e := NewQueryExpander()

	tests := []struct {
		name      string
		query     string
		wantTerms []string
	}{
		{
			name:      "Year Range At Work",
			query:     "What did I do from 2012 to 2019 at my job?",
			wantTerms: []string{"employment", "job", "position", "company", "time period", "duration"},
		},
		{
			name:      "Year Range Without Work Cue",
			query:     "What happened between 1998 and 2001?",
			wantTerms: []string{"time period", "duration"},
		},
		{
			name:  "Single Year",
			query: "Where did I work in 2015?",
		},
		{
			name:  "No Years",
			query: "What is my current job?",
		},
		{
			name:  "Years Without Any Cue",
			query: "2001 2002 odyssey sequels",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			expanded, terms := e.Expand(tc.query)

			assert.Equal(t, tc.wantTerms, terms)
			if len(tc.wantTerms) == 0 {
				assert.Equal(t, tc.query, expanded)
				return
			}
			assert.True(t, strings.HasPrefix(expanded, tc.query), "original query must be kept verbatim")
			for _, term := range tc.wantTerms {
				assert.Contains(t, expanded, term)
			}
		})
	}
}
