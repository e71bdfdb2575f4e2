package redline

import (
	"github.com/rshdesign/redliner/core/docx"
	"github.com/rshdesign/redliner/core/worddiff"
)

// Redline presentation styles.
const (
	// DeletionColor is the fixed text color for struck deletions.
	DeletionColor = "FF0000"
	// InsertHighlight is the fixed highlight marker for insertions.
	InsertHighlight = "yellow"
)

// Render consumes an edit script plus the per-character format map and
// produces the paragraph's replacement run list.
//
// Equal spans are split wherever the formatting attribute set changes
// between adjacent characters, so the original formatting boundaries
// survive the rewrite exactly. Delete spans keep the font, size and
// weight of their original position but are forced into the deletion
// style. Insert spans inherit only font family and size from the default
// format — never weight, slant, underline or color — so a deleted bold
// price cannot leak boldness into an unrelated insertion.
//
// The returned list is complete before the caller swaps it into the
// paragraph; a failed computation never leaves a half-rewritten run list.
func Render(spans []worddiff.Span, formatMap []docx.Format) []docx.Run {
	var out []docx.Run

	if len(formatMap) == 0 {
		// No original formatting exists; apply only operation styles.
		for _, s := range spans {
			if s.Text == "" {
				continue
			}
			switch s.Op {
			case worddiff.Equal:
				out = append(out, docx.Run{Text: s.Text})
			case worddiff.Delete:
				out = append(out, docx.Run{Text: s.Text, Format: docx.Format{
					Strike: true,
					Color:  DeletionColor,
				}})
			case worddiff.Insert:
				out = append(out, docx.Run{Text: s.Text, Format: docx.Format{
					Highlight: InsertHighlight,
				}})
			}
		}
		return out
	}

	defaultFormat := formatMap[0]
	cursor := 0 // rune offset into the original text

	formatAt := func(idx int) docx.Format {
		if idx < len(formatMap) {
			return formatMap[idx]
		}
		return defaultFormat
	}

	for _, s := range spans {
		if s.Text == "" {
			continue
		}
		switch s.Op {
		case worddiff.Equal:
			// Characters past OrigLen exist only on the corrected side
			// (re-tagged whitespace insertions); they take the format of
			// the next original character and consume no offsets.
			chars := []rune(s.Text)
			i := 0
			for i < len(chars) {
				current := formatAt(cursor + min(i, s.OrigLen))
				j := i + 1
				for j < len(chars) && formatAt(cursor+min(j, s.OrigLen)) == current {
					j++
				}
				out = append(out, docx.Run{Text: string(chars[i:j]), Format: current})
				i = j
			}
			cursor += s.OrigLen

		case worddiff.Delete:
			src := formatAt(cursor)
			f := docx.Format{
				Font:   src.Font,
				Size:   src.Size,
				Bold:   src.Bold,
				Strike: true,
				Color:  DeletionColor,
			}
			out = append(out, docx.Run{Text: s.Text, Format: f})
			cursor += s.OrigLen

		case worddiff.Insert:
			f := docx.Format{
				Font:      defaultFormat.Font,
				Size:      defaultFormat.Size,
				Highlight: InsertHighlight,
			}
			out = append(out, docx.Run{Text: s.Text, Format: f})
			// Inserted text has no original position; the cursor stays put.
		}
	}
	return out
}
