// Package training learns correction rules from pairs of menu documents:
// an original as submitted and the redlined version a reviewer produced.
// Recurring word-level changes become rules, and mined examples can be
// folded back into the corrector's system prompt.
package training

import (
	"strings"

	"github.com/pmezard/go-difflib/difflib"

	"github.com/rshdesign/redliner/core/docx"
	"github.com/rshdesign/redliner/core/errors"
	"github.com/rshdesign/redliner/core/rules"
	"github.com/rshdesign/redliner/core/worddiff"
)

// Correction is one observed change between an original and a redlined
// paragraph.
type Correction struct {
	Type      string         `json:"type"` // replacement, deletion, insertion
	Original  string         `json:"original"`
	Corrected string         `json:"corrected"`
	Category  rules.Category `json:"category"`
	WordDiffs []WordDiff     `json:"word_diffs,omitempty"`
}

// WordDiff is a word-level change inside a replacement correction.
type WordDiff struct {
	Operation      string `json:"operation"` // replace, delete, insert
	OriginalWords  string `json:"original_words,omitempty"`
	CorrectedWords string `json:"corrected_words,omitempty"`
}

// FormatChange records a formatting difference between two paragraphs
// whose text is essentially the same.
type FormatChange struct {
	Type      string `json:"type"`
	Text      string `json:"text"`
	Original  string `json:"original"`
	Corrected string `json:"corrected"`
}

// PairAnalysis is the result of comparing one document pair.
type PairAnalysis struct {
	OriginalPath  string         `json:"original"`
	RedlinedPath  string         `json:"redlined"`
	Corrections   []Correction   `json:"corrections"`
	FormatChanges []FormatChange `json:"format_changes,omitempty"`
}

// Analyzer compares document pairs and extracts categorized corrections.
type Analyzer struct {
	chain []rules.Classifier
}

// NewAnalyzer returns an analyzer using the default classifier chain.
func NewAnalyzer() *Analyzer {
	return &Analyzer{chain: rules.Classifiers()}
}

// SetClassifiers replaces the classifier chain.
func (a *Analyzer) SetClassifiers(chain []rules.Classifier) {
	a.chain = chain
}

// LoadPair opens both documents and analyzes their differences.
func (a *Analyzer) LoadPair(originalPath, redlinedPath string) (*PairAnalysis, error) {
	orig, err := docx.Open(originalPath)
	if err != nil {
		return nil, errors.Wrapf(err, "open original %s", originalPath)
	}
	redl, err := docx.Open(redlinedPath)
	if err != nil {
		return nil, errors.Wrapf(err, "open redlined %s", redlinedPath)
	}

	analysis := a.Analyze(orig.Paragraphs(), redl.Paragraphs())
	analysis.OriginalPath = originalPath
	analysis.RedlinedPath = redlinedPath
	return analysis, nil
}

// Analyze compares two paragraph lists and extracts corrections.
func (a *Analyzer) Analyze(original, redlined []*docx.Paragraph) *PairAnalysis {
	origLines := paragraphTexts(original)
	redlLines := paragraphTexts(redlined)

	return &PairAnalysis{
		Corrections:   a.textCorrections(origLines, redlLines),
		FormatChanges: formatChanges(original, redlined),
	}
}

// textCorrections aligns paragraphs by similarity and extracts a
// correction per changed paragraph.
func (a *Analyzer) textCorrections(original, redlined []string) []Correction {
	var corrections []Correction

	matcher := difflib.NewMatcher(original, redlined)
	for _, oc := range matcher.GetOpCodes() {
		switch oc.Tag {
		case 'r':
			for oi := oc.I1; oi < oc.I2; oi++ {
				for ri := oc.J1; ri < oc.J2; ri++ {
					if c, ok := a.replacement(original[oi], redlined[ri]); ok {
						corrections = append(corrections, c)
					}
				}
			}
		case 'd':
			for oi := oc.I1; oi < oc.I2; oi++ {
				corrections = append(corrections, Correction{
					Type:     "deletion",
					Original: original[oi],
					Category: "content_removal",
				})
			}
		case 'i':
			for ri := oc.J1; ri < oc.J2; ri++ {
				corrections = append(corrections, Correction{
					Type:      "insertion",
					Corrected: redlined[ri],
					Category:  "content_addition",
				})
			}
		}
	}

	return corrections
}

// replacement builds a categorized replacement correction, or reports
// false when the texts are identical.
func (a *Analyzer) replacement(original, corrected string) (Correction, bool) {
	if original == corrected {
		return Correction{}, false
	}
	return Correction{
		Type:      "replacement",
		Original:  original,
		Corrected: corrected,
		Category:  rules.CategorizeWith(a.chain, original, corrected),
		WordDiffs: wordDiffs(original, corrected),
	}, true
}

// wordDiffs folds a token edit script into word-level operations,
// pairing a delete immediately followed by an insert into a replace.
func wordDiffs(original, corrected string) []WordDiff {
	spans := worddiff.Diff(original, corrected)

	var diffs []WordDiff
	for i := 0; i < len(spans); i++ {
		s := spans[i]
		switch s.Op {
		case worddiff.Equal:
			continue
		case worddiff.Delete:
			if i+1 < len(spans) && spans[i+1].Op == worddiff.Insert {
				diffs = append(diffs, WordDiff{
					Operation:      "replace",
					OriginalWords:  strings.TrimSpace(s.Text),
					CorrectedWords: strings.TrimSpace(spans[i+1].Text),
				})
				i++
				continue
			}
			diffs = append(diffs, WordDiff{
				Operation:     "delete",
				OriginalWords: strings.TrimSpace(s.Text),
			})
		case worddiff.Insert:
			diffs = append(diffs, WordDiff{
				Operation:      "insert",
				CorrectedWords: strings.TrimSpace(s.Text),
			})
		}
	}
	return diffs
}

// formatChanges compares alignment across paragraphs with near-equal
// text.
func formatChanges(original, redlined []*docx.Paragraph) []FormatChange {
	var changes []FormatChange
	for _, op := range original {
		ot := op.Text()
		if strings.TrimSpace(ot) == "" {
			continue
		}
		for _, rp := range redlined {
			rt := rp.Text()
			if textSimilarity(ot, rt) <= 0.8 {
				continue
			}
			if op.Alignment() != rp.Alignment() {
				changes = append(changes, FormatChange{
					Type:      "alignment",
					Text:      truncate(ot, 50),
					Original:  op.Alignment(),
					Corrected: rp.Alignment(),
				})
			}
		}
	}
	return changes
}

// textSimilarity returns the character-level match ratio of two texts.
func textSimilarity(a, b string) float64 {
	if a == b {
		return 1.0
	}
	return difflib.NewMatcher(strings.Split(a, ""), strings.Split(b, "")).Ratio()
}

func paragraphTexts(paras []*docx.Paragraph) []string {
	lines := make([]string, 0, len(paras))
	for _, p := range paras {
		if t := p.Text(); strings.TrimSpace(t) != "" {
			lines = append(lines, t)
		}
	}
	return lines
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
