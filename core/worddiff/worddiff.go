// Package worddiff computes token-level edit scripts between two text
// strings. Tokens are maximal word-character runs, whitespace runs, or
// single punctuation characters, so edits land on whole words rather
// than single letters. Whitespace-only edits are reclassified as equal:
// cosmetic spacing changes never show up in a rendered redline.
package worddiff

import (
	"regexp"
	"strings"

	"github.com/pmezard/go-difflib/difflib"
)

// Op is an edit script operation.
type Op int

// Edit operations.
const (
	Equal Op = iota
	Delete
	Insert
)

// String returns a short tag for the operation.
func (o Op) String() string {
	switch o {
	case Equal:
		return "equal"
	case Delete:
		return "delete"
	case Insert:
		return "insert"
	}
	return "unknown"
}

// Span is one (operation, text) tuple of an edit script. OrigLen is the
// number of original-text runes the span consumes: the rune count of
// Text for Equal and Delete spans taken from the original side, and zero
// for Insert spans and for whitespace insertions re-tagged Equal, whose
// text exists only on the corrected side. Renderers must advance their
// original-text position by OrigLen, never by the text length.
type Span struct {
	Op      Op
	Text    string
	OrigLen int
}

// tokenPattern splits text into word runs, whitespace runs, and single
// punctuation characters, preserving concatenation fidelity.
var tokenPattern = regexp.MustCompile(`[\p{L}\p{N}_]+|\s+|[^\p{L}\p{N}_\s]`)

// Tokenize splits text on word/whitespace/punctuation boundaries.
// Joining the tokens reproduces the input exactly.
func Tokenize(text string) []string {
	return tokenPattern.FindAllString(text, -1)
}

// Diff computes the token-level edit script from original to corrected.
//
// Invariants: joining Equal+Delete spans reproduces original, and joining
// Equal+Insert spans reproduces corrected — except that whitespace-only
// differences are re-tagged Equal (preferring the original side) so they
// are preserved in the output without being marked as edits. Adjacent
// same-operation spans are merged.
func Diff(original, corrected string) []Span {
	if original == "" && corrected == "" {
		return nil
	}
	if original == corrected {
		return []Span{{Op: Equal, Text: original, OrigLen: runeLen(original)}}
	}

	origTokens := Tokenize(original)
	corrTokens := Tokenize(corrected)

	matcher := difflib.NewMatcher(origTokens, corrTokens)
	var spans []Span
	for _, oc := range matcher.GetOpCodes() {
		switch oc.Tag {
		case 'e':
			if text := strings.Join(origTokens[oc.I1:oc.I2], ""); text != "" {
				spans = append(spans, Span{Op: Equal, Text: text, OrigLen: runeLen(text)})
			}
		case 'r':
			delText := strings.Join(origTokens[oc.I1:oc.I2], "")
			insText := strings.Join(corrTokens[oc.J1:oc.J2], "")
			if isWhitespace(delText) && isWhitespace(insText) {
				// Spacing-only churn; keep the original spacing.
				if delText != "" {
					spans = append(spans, Span{Op: Equal, Text: delText, OrigLen: runeLen(delText)})
				}
				continue
			}
			if delText != "" {
				spans = append(spans, Span{Op: Delete, Text: delText, OrigLen: runeLen(delText)})
			}
			if insText != "" {
				spans = append(spans, Span{Op: Insert, Text: insText})
			}
		case 'd':
			delText := strings.Join(origTokens[oc.I1:oc.I2], "")
			if delText == "" {
				continue
			}
			if isWhitespace(delText) {
				spans = append(spans, Span{Op: Equal, Text: delText, OrigLen: runeLen(delText)})
				continue
			}
			spans = append(spans, Span{Op: Delete, Text: delText, OrigLen: runeLen(delText)})
		case 'i':
			insText := strings.Join(corrTokens[oc.J1:oc.J2], "")
			if insText == "" {
				continue
			}
			if isWhitespace(insText) {
				// Re-tagged Equal, but the text has no original-side
				// position: OrigLen stays zero.
				spans = append(spans, Span{Op: Equal, Text: insText})
				continue
			}
			spans = append(spans, Span{Op: Insert, Text: insText})
		}
	}
	return mergeSpans(spans)
}

// Original reconstructs the original-side text of an edit script.
func Original(spans []Span) string {
	var b strings.Builder
	for _, s := range spans {
		if s.Op == Equal || s.Op == Delete {
			b.WriteString(s.Text)
		}
	}
	return b.String()
}

// Corrected reconstructs the corrected-side text of an edit script.
func Corrected(spans []Span) string {
	var b strings.Builder
	for _, s := range spans {
		if s.Op == Equal || s.Op == Insert {
			b.WriteString(s.Text)
		}
	}
	return b.String()
}

// HasChanges reports whether the script contains any Delete or Insert span.
func HasChanges(spans []Span) bool {
	for _, s := range spans {
		if s.Op != Equal {
			return true
		}
	}
	return false
}

// mergeSpans coalesces adjacent same-operation spans to minimize run
// fragmentation in the rendered output. Equal spans merge only when both
// sides are position-aligned (OrigLen matches the rune count): folding a
// re-tagged whitespace insertion into an aligned neighbor would shift
// every later character's original-text offset.
func mergeSpans(spans []Span) []Span {
	if len(spans) == 0 {
		return nil
	}
	merged := make([]Span, 0, len(spans))
	for _, s := range spans {
		if n := len(merged); n > 0 && merged[n-1].Op == s.Op && mergeable(merged[n-1], s) {
			merged[n-1].Text += s.Text
			merged[n-1].OrigLen += s.OrigLen
			continue
		}
		merged = append(merged, s)
	}
	return merged
}

func mergeable(a, b Span) bool {
	if a.Op != Equal {
		return true
	}
	return aligned(a) && aligned(b)
}

func aligned(s Span) bool {
	return s.OrigLen == runeLen(s.Text)
}

func runeLen(s string) int {
	return len([]rune(s))
}

func isWhitespace(s string) bool {
	return strings.TrimSpace(s) == ""
}
