package redline

import "github.com/rshdesign/redliner/core/docx"

// BuildFormatMap flattens a paragraph's ordered run list into one
// formatting snapshot per character offset of the paragraph's plain
// text. Offsets are rune positions, matching the diff engine's view of
// the text. Zero-length runs contribute no offsets; an empty run list
// yields an empty map and rendering falls back to a structural default.
func BuildFormatMap(runs []docx.Run) []docx.Format {
	var m []docx.Format
	for _, r := range runs {
		for range r.Text {
			m = append(m, r.Format)
		}
	}
	return m
}
