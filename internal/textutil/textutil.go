// Package textutil normalizes markdown for search and escapes text for safe
// highlight rendering.
package textutil

import (
	"regexp"
	"sort"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

// keywordScanLimit caps how much text keyword extraction considers.
const keywordScanLimit = 5000

var (
	entityRe = regexp.MustCompile(`&#?[a-zA-Z0-9]+;`)
	splitRe  = regexp.MustCompile(`[\s,.!?;:()，。！？；：（）]+`)
)

// stopwords are tokens too common to be useful as keywords. The set is
// mixed-language because post content is.
var stopwords = map[string]struct{}{
	"的": {}, "了": {}, "和": {}, "在": {}, "是": {}, "有": {}, "与": {}, "或": {},
	"the": {}, "and": {}, "for": {}, "you": {}, "this": {}, "that": {},
	"with": {}, "from": {}, "what": {}, "have": {}, "not": {},
}

var escaper = strings.NewReplacer(
	"&", "&amp;",
	"<", "&lt;",
	">", "&gt;",
	`"`, "&quot;",
	"'", "&#039;",
)

// EscapeMarkup escapes the five HTML-significant characters to their entity
// forms. This is the only path by which content-derived text may be embedded
// as markup; applying it twice double-escapes rather than round-tripping.
func EscapeMarkup(s string) string {
	return escaper.Replace(s)
}

// RenderHTML converts markdown to HTML for post delivery. Rendering failures
// degrade to the escaped source rather than erroring, since a post that
// cannot render should still be readable.
func RenderHTML(markdown string) string {
	var b strings.Builder
	if err := goldmark.Convert([]byte(markdown), &b); err != nil {
		return "<pre>" + EscapeMarkup(markdown) + "</pre>"
	}
	return b.String()
}

// SearchableText converts raw markdown to plain text suitable for indexing:
// fenced code blocks, HTML blocks, and image markup are dropped, link labels
// are kept, residual entities are removed, and whitespace is collapsed.
// Deterministic and side-effect free.
func SearchableText(raw string) string {
	if raw == "" {
		return ""
	}

	src := []byte(raw)
	doc := goldmark.New().Parser().Parse(text.NewReader(src))

	var b strings.Builder
	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			// Block boundaries become single spaces so adjacent
			// paragraphs do not run together.
			if n.Type() == ast.TypeBlock {
				b.WriteByte(' ')
			}
			return ast.WalkContinue, nil
		}
		switch t := n.(type) {
		case *ast.FencedCodeBlock, *ast.CodeBlock, *ast.HTMLBlock:
			return ast.WalkSkipChildren, nil
		case *ast.RawHTML, *ast.Image:
			return ast.WalkSkipChildren, nil
		case *ast.Text:
			b.Write(t.Segment.Value(src))
			if t.SoftLineBreak() || t.HardLineBreak() {
				b.WriteByte(' ')
			}
		case *ast.String:
			b.Write(t.Value)
		}
		return ast.WalkContinue, nil
	})

	plain := entityRe.ReplaceAllString(b.String(), " ")
	return strings.Join(strings.Fields(plain), " ")
}

// Excerpt strips markup from content and truncates to maxRunes runes,
// appending an ellipsis marker when text was cut.
func Excerpt(content string, maxRunes int) string {
	plain := SearchableText(content)
	runes := []rune(plain)
	if len(runes) <= maxRunes {
		return plain
	}
	return string(runes[:maxRunes]) + "…"
}

// ExtractKeywords returns up to limit tokens from text ranked by descending
// frequency, ties broken by first occurrence. Tokens are lowercased, split on
// whitespace and Latin/CJK punctuation, and filtered against a stopword set;
// tokens shorter than two runes are discarded. Only the first few thousand
// characters are scanned.
func ExtractKeywords(text string, limit int) []string {
	if text == "" || limit <= 0 {
		return nil
	}

	lowered := strings.ToLower(text)
	if runes := []rune(lowered); len(runes) > keywordScanLimit {
		lowered = string(runes[:keywordScanLimit])
	}

	counts := make(map[string]int)
	var order []string
	for _, tok := range splitRe.Split(lowered, -1) {
		if len([]rune(tok)) < 2 {
			continue
		}
		if _, stop := stopwords[tok]; stop {
			continue
		}
		if counts[tok] == 0 {
			order = append(order, tok)
		}
		counts[tok]++
	}

	sort.SliceStable(order, func(i, j int) bool {
		return counts[order[i]] > counts[order[j]]
	})

	if len(order) > limit {
		order = order[:limit]
	}
	return order
}
