package search

import (
	"sort"

	"github.com/starford/ansuz/internal/models"
	"github.com/starford/ansuz/internal/textutil"
)

// previewRadius is how many runes of context surround the best match in a
// body preview.
const previewRadius = 60

// Result is the display shape handed to presentation: identity fields plus
// markup-safe highlighted title and body preview. Only text that went through
// textutil.EscapeMarkup ever reaches the two markup fields.
type Result struct {
	ID               int           `json:"id"`
	Slug             string        `json:"slug"`
	Title            string        `json:"title"`
	Date             string        `json:"date"`
	Tags             []string      `json:"tags"`
	Excerpt          string        `json:"excerpt"`
	Cover            string        `json:"cover,omitempty"`
	Author           models.Author `json:"author"`
	Score            float64       `json:"score"`
	HighlightedTitle string        `json:"highlighted_title"`
	Preview          string        `json:"preview"`
}

// FormatMatches converts raw matches into display results.
func FormatMatches(matches []Match, settings Settings) []Result {
	out := make([]Result, 0, len(matches))
	for _, m := range matches {
		out = append(out, formatMatch(m, settings))
	}
	return out
}

func formatMatch(m Match, settings Settings) Result {
	r := Result{
		ID:               m.Post.ID,
		Slug:             m.Post.Slug,
		Title:            m.Post.Title,
		Date:             m.Post.Date,
		Tags:             m.Post.Tags,
		Excerpt:          m.Post.Excerpt,
		Cover:            m.Post.Cover,
		Author:           m.Post.Author,
		Score:            m.Score,
		HighlightedTitle: textutil.EscapeMarkup(m.Post.Title),
		Preview:          textutil.EscapeMarkup(m.Post.Excerpt),
	}
	if !settings.HighlightMatches {
		return r
	}

	// Title is highlighted independently against the full text: titles are
	// short, no windowing.
	if ivs := intervalsFor(m, FieldTitle); len(ivs) > 0 {
		r.HighlightedTitle = highlight(m.Post.Title, ivs)
	}

	// Body preview prefers a content match, then an excerpt match; when the
	// match was purely on tags or keywords the plain escaped excerpt stays.
	for _, f := range []struct {
		field Field
		text  string
	}{
		{FieldContent, m.Post.Content},
		{FieldExcerpt, m.Post.Excerpt},
	} {
		ivs := intervalsFor(m, f.field)
		if len(ivs) == 0 || f.text == "" {
			continue
		}
		r.Preview = buildPreview(f.text, ivs)
		break
	}
	return r
}

func intervalsFor(m Match, field Field) []Interval {
	var out []Interval
	for _, fm := range m.Fields {
		if fm.Field == field {
			out = append(out, fm.Intervals...)
		}
	}
	return out
}

// mergeIntervals sorts intervals by start offset and merges any that overlap
// or are adjacent (start <= previous end + 1). Merging an already-merged
// sequence returns it unchanged.
func mergeIntervals(intervals []Interval) []Interval {
	if len(intervals) < 2 {
		return intervals
	}
	sorted := make([]Interval, len(intervals))
	copy(sorted, intervals)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Start < sorted[j].Start })

	merged := sorted[:1]
	for _, cur := range sorted[1:] {
		last := &merged[len(merged)-1]
		if cur.Start <= last.End+1 {
			if cur.End > last.End {
				last.End = cur.End
			}
		} else {
			merged = append(merged, cur)
		}
	}
	return merged
}

// highlight walks merged intervals left to right: text outside any interval
// is escaped verbatim, text inside is escaped and wrapped in <mark>. Offsets
// are rune offsets. Intervals starting past the end of the text are skipped;
// stale indices during rapid query changes are expected, not a bug signal.
func highlight(text string, intervals []Interval) string {
	if text == "" || len(intervals) == 0 {
		return textutil.EscapeMarkup(text)
	}
	runes := []rune(text)
	merged := mergeIntervals(intervals)

	var b []byte
	last := 0
	for _, iv := range merged {
		if iv.Start > len(runes) {
			continue
		}
		start, end := iv.Start, iv.End
		if start < last {
			start = last
		}
		if end >= len(runes) {
			end = len(runes) - 1
		}
		if end < start {
			continue
		}
		b = append(b, textutil.EscapeMarkup(string(runes[last:start]))...)
		b = append(b, "<mark>"...)
		b = append(b, textutil.EscapeMarkup(string(runes[start:end+1]))...)
		b = append(b, "</mark>"...)
		last = end + 1
	}
	b = append(b, textutil.EscapeMarkup(string(runes[last:]))...)
	return string(b)
}

// buildPreview derives a bounded context window around the first match
// interval, re-bases all intervals into window-local coordinates, highlights
// the window, and adds truncation markers when the window does not reach the
// start or end of the content.
func buildPreview(content string, intervals []Interval) string {
	runes := []rune(content)
	merged := mergeIntervals(intervals)
	first := merged[0]

	start := first.Start - previewRadius
	if start < 0 {
		start = 0
	}
	end := first.End + previewRadius
	if end > len(runes) {
		end = len(runes)
	}
	if start >= len(runes) {
		// Stale interval beyond the text; fall back to the head of content.
		start, end = 0, min(len(runes), 2*previewRadius)
	}

	window := runes[start:end]
	var local []Interval
	for _, iv := range merged {
		s, e := iv.Start-start, iv.End-start
		if s >= len(window) || e < 0 {
			continue
		}
		if s < 0 {
			s = 0
		}
		if e > len(window)-1 {
			e = len(window) - 1
		}
		local = append(local, Interval{Start: s, End: e})
	}

	out := highlight(string(window), local)
	if start > 0 {
		out = "..." + out
	}
	if end < len(runes) {
		out = out + "..."
	}
	return out
}
