package retriever

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestApplyLaneRules(t *testing.T) {
	t.Parallel()

	tests := []struct {
		query string
		want  string
	}{
		{"redlands to shelby performance", "REDLANDS,SHELBY"},
		{"how did we do from redlands to shelby", "REDLANDS,SHELBY"},
		{"from los angeles to fort worth", "LOS ANGELES,FORT WORTH"},
		{"show the redlands-shelby lane", "REDLANDS,SHELBY"},
		{"Redlands TO Shelby", "REDLANDS,SHELBY"},
		{"overall carrier performance", ""},
		{"what changed in q2", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, applyLaneRules(tt.query), tt.query)
	}
}

func TestKeywordForm(t *testing.T) {
	t.Parallel()

	tests := []struct {
		query string
		want  string
	}{
		{"what is the on-time performance from redlands to shelby", "time performance redlands shelby"},
		{"the a an of", ""},
		{"carrier score", "carrier score"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, keywordForm(tt.query), tt.query)
	}
}

func TestReformulate(t *testing.T) {
	t.Parallel()

	t.Run("lane query gets pair and keyword forms", func(t *testing.T) {
		t.Parallel()
		forms := Reformulate("redlands to shelby performance")
		assert.Equal(t, []string{
			"redlands to shelby performance",
			"REDLANDS,SHELBY",
			"redlands shelby performance",
		}, forms)
	})

	t.Run("literal is always first", func(t *testing.T) {
		t.Parallel()
		forms := Reformulate("carrier score")
		assert.Equal(t, "carrier score", forms[0])
	})

	t.Run("duplicate forms are dropped", func(t *testing.T) {
		t.Parallel()
		// Keyword form equals the literal query, so only the literal
		// survives.
		forms := Reformulate("carrier score")
		assert.Equal(t, []string{"carrier score"}, forms)
	})

	t.Run("no empty forms", func(t *testing.T) {
		t.Parallel()
		for _, form := range Reformulate("the of an") {
			assert.NotEmpty(t, form)
		}
	})
}
