package redline

import (
	"strings"

	"github.com/rshdesign/redliner/core/docx"
)

// SkipReason explains why a paragraph was left untouched.
type SkipReason int

// Guard outcomes.
const (
	// SkipNone means the paragraph may be rewritten.
	SkipNone SkipReason = iota
	// SkipRedlined means an earlier reviewer's edits are present.
	SkipRedlined
	// SkipMixedBold means the paragraph mixes bold and non-bold runs.
	SkipMixedBold
)

// HasRedlines reports whether any run already carries a strikethrough or
// a highlight. Rebuilding such a paragraph would destroy a prior
// reviewer's or chef's edits.
func HasRedlines(runs []docx.Run) bool {
	for _, r := range runs {
		if r.Format.Strike || r.Format.Highlight != "" {
			return true
		}
	}
	return false
}

// HasMixedBold reports whether, among runs with non-empty trimmed text,
// at least one is bold and at least one is not. That pattern usually
// means "bold dish name + plain description", and a blind rewrite risks
// corrupting the visual structure.
func HasMixedBold(runs []docx.Run) bool {
	var hasBold, hasNonBold bool
	for _, r := range runs {
		if strings.TrimSpace(r.Text) == "" {
			continue
		}
		if r.Format.Bold == docx.FlagOn {
			hasBold = true
		} else {
			hasNonBold = true
		}
		if hasBold && hasNonBold {
			return true
		}
	}
	return false
}

// CheckEligibility evaluates both guard gates for a paragraph. Both are
// advisory skips: a rejected paragraph is left completely untouched.
func CheckEligibility(runs []docx.Run) SkipReason {
	if HasRedlines(runs) {
		return SkipRedlined
	}
	if HasMixedBold(runs) {
		return SkipMixedBold
	}
	return SkipNone
}
