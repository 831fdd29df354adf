// Package search implements the weighted in-memory fuzzy search subsystem:
// index building, query execution, result formatting, and the query/state
// controller. The index is a derived, disposable structure rebuilt from the
// content store whenever the post set or the content-inclusion flag changes;
// it is never persisted.
package search

import (
	"math"
	"sort"
	"strings"

	"github.com/starford/ansuz/internal/models"
)

// Field names one indexed text field of a post.
type Field string

const (
	FieldTitle    Field = "title"
	FieldTags     Field = "tags"
	FieldKeywords Field = "keywords"
	FieldExcerpt  Field = "excerpt"
	FieldContent  Field = "content"
)

type fieldSpec struct {
	field  Field
	weight float64
}

// weightTable is the single source of field weights. Title matches count
// double; body matches are discounted to cut false positives from long text.
var weightTable = []fieldSpec{
	{FieldTitle, 2.0},
	{FieldTags, 1.5},
	{FieldKeywords, 1.3},
	{FieldExcerpt, 1.0},
	{FieldContent, 0.7},
}

// fieldsFor selects one of the two index configurations. The weights of the
// remaining fields are unchanged when content is excluded.
func fieldsFor(includeContent bool) []fieldSpec {
	if includeContent {
		return weightTable
	}
	out := make([]fieldSpec, 0, len(weightTable)-1)
	for _, fs := range weightTable {
		if fs.field != FieldContent {
			out = append(out, fs)
		}
	}
	return out
}

// Settings is the query-time configuration. It is immutable during a single
// query execution.
type Settings struct {
	// IncludeContent controls whether post bodies participate in matching.
	IncludeContent bool `json:"include_content"`
	// Threshold governs fuzzy tolerance: 0.0 requires exact occurrences,
	// 1.0 matches anything.
	Threshold float64 `json:"threshold"`
	// MinLength is the minimum query length that triggers a search.
	MinLength int `json:"min_length"`
	// HighlightMatches controls whether highlight markup is rendered.
	HighlightMatches bool `json:"highlight_matches"`
}

// DefaultSettings mirrors the defaults the blog ships with.
func DefaultSettings() Settings {
	return Settings{
		IncludeContent:   true,
		Threshold:        0.4,
		MinLength:        1,
		HighlightMatches: true,
	}
}

// entry is the denormalized, weighted view of one post built for matching.
type entry struct {
	post   models.Post
	values map[Field][]string
}

// Index is the searchable structure over the current post set. It is
// immutable once built; a rebuild produces a fresh Index that replaces the
// old one atomically, so in-flight queries keep a consistent view.
type Index struct {
	entries []entry
	fields  []fieldSpec
	// Version records the store version and content flag the index was
	// built from, so staleness is a simple comparison.
	version        int64
	includeContent bool
}

// Build constructs an index over posts in their given order. The order is
// significant: it is the tie-break for equal relevance scores.
func Build(posts []models.Post, settings Settings, version int64) *Index {
	fields := fieldsFor(settings.IncludeContent)
	ix := &Index{
		entries:        make([]entry, 0, len(posts)),
		fields:         fields,
		version:        version,
		includeContent: settings.IncludeContent,
	}
	for _, p := range posts {
		values := make(map[Field][]string, len(fields))
		for _, fs := range fields {
			switch fs.field {
			case FieldTitle:
				values[FieldTitle] = []string{p.Title}
			case FieldTags:
				values[FieldTags] = p.Tags
			case FieldKeywords:
				values[FieldKeywords] = p.Keywords
			case FieldExcerpt:
				values[FieldExcerpt] = []string{p.Excerpt}
			case FieldContent:
				values[FieldContent] = []string{p.Content}
			}
		}
		ix.entries = append(ix.entries, entry{post: p, values: values})
	}
	return ix
}

// Stale reports whether the index no longer reflects the given store version
// and settings.
func (ix *Index) Stale(version int64, settings Settings) bool {
	return ix.version != version || ix.includeContent != settings.IncludeContent
}

// FieldMatch carries the match-position data for one field value.
type FieldMatch struct {
	Field      Field
	ValueIndex int
	Score      float64
	Intervals  []Interval
}

// Match is one scored hit: the originating post, its aggregate relevance
// score (lower = better, 0 = perfect), and per-field match positions.
type Match struct {
	Post   models.Post
	Score  float64
	Fields []FieldMatch
}

// perfectEpsilon stands in for a zero field score inside the weighted
// product so that additional matching fields still improve the aggregate.
const perfectEpsilon = 1e-3

// Search executes query against the index. Queries that are empty or shorter
// than settings.MinLength return nil without touching the entries. Tokens
// are whitespace-separated and combined with AND semantics: a post matches
// only if every token matches in at least one field. Results are ordered by
// ascending score; equal scores keep original post order.
func (ix *Index) Search(query string, settings Settings) []Match {
	trimmed := strings.TrimSpace(query)
	if trimmed == "" || len([]rune(trimmed)) < settings.MinLength {
		return nil
	}
	tokens := strings.Fields(trimmed)

	var out []Match
	for _, e := range ix.entries {
		if m, ok := ix.matchEntry(e, tokens, settings); ok {
			out = append(out, m)
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Score < out[j].Score
	})
	return out
}

type fieldKey struct {
	field Field
	value int
}

func (ix *Index) matchEntry(e entry, tokens []string, settings Settings) (Match, bool) {
	type acc struct {
		scoreSum  float64
		tokens    int
		intervals []Interval
	}
	accs := make(map[fieldKey]*acc)

	for _, tok := range tokens {
		tokenMatched := false
		for _, fs := range ix.fields {
			for vi, value := range e.values[fs.field] {
				score, ivs, ok := matchPattern(value, tok, settings.Threshold)
				if !ok {
					continue
				}
				tokenMatched = true
				k := fieldKey{fs.field, vi}
				a := accs[k]
				if a == nil {
					a = &acc{}
					accs[k] = a
				}
				a.scoreSum += score
				a.tokens++
				a.intervals = append(a.intervals, ivs...)
			}
		}
		if !tokenMatched {
			return Match{}, false
		}
	}

	// Aggregate per-field scores into one weighted relevance score using a
	// weight-normalized product: each matching field multiplies the total by
	// its (epsilon-floored) score raised to its share of the total weight.
	// More matching fields and lower field scores both pull the aggregate
	// down; a hit that is exact in every matched field scores a perfect 0.
	var totalWeight float64
	for _, fs := range ix.fields {
		totalWeight += fs.weight
	}

	total := 1.0
	allExact := true
	var fields []FieldMatch
	for _, fs := range ix.fields {
		for vi := range e.values[fs.field] {
			a, ok := accs[fieldKey{fs.field, vi}]
			if !ok {
				continue
			}
			fieldScore := a.scoreSum / float64(a.tokens)
			if fieldScore > 0 {
				allExact = false
			}
			adjusted := math.Max(fieldScore, perfectEpsilon)
			total *= math.Pow(adjusted, fs.weight/totalWeight)
			fields = append(fields, FieldMatch{
				Field:      fs.field,
				ValueIndex: vi,
				Score:      fieldScore,
				Intervals:  mergeIntervals(a.intervals),
			})
		}
	}
	if len(fields) == 0 {
		return Match{}, false
	}
	if allExact {
		total = 0
	}
	return Match{Post: e.post, Score: total, Fields: fields}, true
}
