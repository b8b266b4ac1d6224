package retriever

import (
	"regexp"
	"strings"

	"github.com/lanekb/lanekb/internal/index"
)

// A single dense-vector query frequently misses exact structured-row
// matches (a specific origin/destination pair) when many near-duplicate
// rows are semantically close. Reformulation compensates: the query is
// tried in several forms and the results merged, which recovers the
// exact-match rows the embedding search alone loses.
//
// Rules live in an explicit table so each rewrite is independently
// testable.

// Rule rewrites a query into one alternate form. Pattern must match for
// the rule to apply; Rewrite receives the submatches (index 0 is the full
// match) and returns the alternate form, or "" to skip.
type Rule struct {
	Name    string
	Pattern *regexp.Regexp
	Rewrite func(match []string) string
}

// canonicalPair renders an origin/destination pair the way tabular lane
// data stores it: uppercased, comma-separated, no spaces.
func canonicalPair(origin, dest string) string {
	return strings.ToUpper(strings.TrimSpace(origin)) + "," + strings.ToUpper(strings.TrimSpace(dest))
}

// LaneRules extract recognized location pairs from natural-language
// queries and rewrite them into the "ORIGIN,DEST" form used by structured
// lane rows. The first matching rule wins.
var LaneRules = []Rule{
	{
		// "from redlands to shelby" — multi-word locations allowed.
		Name:    "from-to",
		Pattern: regexp.MustCompile(`(?i)\bfrom\s+([a-z][a-z '.-]*?)\s+to\s+([a-z][a-z '.-]*[a-z])`),
		Rewrite: func(m []string) string { return canonicalPair(m[1], m[2]) },
	},
	{
		// "redlands to shelby ..." — single-word locations on both sides,
		// so a trailing word like "performance" is not swallowed.
		Name:    "x-to-y",
		Pattern: regexp.MustCompile(`(?i)\b([a-z][a-z'.-]+)\s+to\s+([a-z][a-z'.-]+)\b`),
		Rewrite: func(m []string) string { return canonicalPair(m[1], m[2]) },
	},
	{
		// "redlands-shelby lane"
		Name:    "dashed-pair",
		Pattern: regexp.MustCompile(`(?i)\b([a-z][a-z'.]+)-([a-z][a-z'.]+)\s+lane\b`),
		Rewrite: func(m []string) string { return canonicalPair(m[1], m[2]) },
	},
}

// stopwords removed by the keyword-only reformulation.
var stopwords = map[string]struct{}{
	"a": {}, "an": {}, "and": {}, "are": {}, "at": {}, "be": {}, "by": {},
	"do": {}, "does": {}, "for": {}, "from": {}, "give": {}, "how": {},
	"in": {}, "is": {}, "it": {}, "me": {}, "of": {}, "on": {}, "or": {},
	"show": {}, "tell": {}, "that": {}, "the": {}, "this": {}, "to": {},
	"was": {}, "what": {}, "when": {}, "where": {}, "which": {}, "who": {},
	"why": {}, "with": {},
}

// applyLaneRules returns the canonical pair form for the first matching
// lane rule, or "" when no rule applies.
func applyLaneRules(query string) string {
	for _, rule := range LaneRules {
		m := rule.Pattern.FindStringSubmatch(query)
		if m == nil {
			continue
		}
		if form := rule.Rewrite(m); form != "" {
			return form
		}
	}
	return ""
}

// keywordForm strips stopwords from the query, leaving content terms
// only. Returns "" when nothing survives.
func keywordForm(query string) string {
	var kept []string
	for _, term := range index.Tokenize(query) {
		if _, stop := stopwords[term]; stop {
			continue
		}
		kept = append(kept, term)
	}
	return strings.Join(kept, " ")
}

// Reformulate expands a query into its fixed set of alternate forms:
// the literal query, the canonical lane-pair form when a location pair is
// recognized, and the keyword-only form. Duplicate and empty forms are
// dropped; the literal query is always first.
func Reformulate(query string) []string {
	forms := []string{query}
	seen := map[string]struct{}{query: {}}

	add := func(form string) {
		if form == "" {
			return
		}
		if _, dup := seen[form]; dup {
			return
		}
		seen[form] = struct{}{}
		forms = append(forms, form)
	}

	add(applyLaneRules(query))
	add(keywordForm(query))
	return forms
}
