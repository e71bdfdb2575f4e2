// Package lint checks menu documents against the house formatting SOP:
// menu paragraphs after the boundary marker must be centered, set in
// Calibri, at 12 pt. Inherited formatting is not flagged; only explicit
// deviations count.
package lint

import (
	"fmt"
	"strings"

	"github.com/rshdesign/redliner/core/docx"
	"github.com/rshdesign/redliner/core/redline"
)

// twelvePt is 12 pt in half-points, the unit of docx.Format.Size.
const twelvePt = 24

// centeredFloor is the fraction of menu paragraphs that must be
// centered for the alignment check to pass.
const centeredFloor = 0.8

// sampleCap limits how many offender samples a report carries per check.
const sampleCap = 5

// Checks holds the pass/fail state of each SOP rule.
type Checks struct {
	CenterAlignment   bool `json:"center_alignment"`
	FontSize12pt      bool `json:"font_size_12pt"`
	FontFamilyCalibri bool `json:"font_family_calibri"`
}

// Samples holds truncated offender texts per failed check.
type Samples struct {
	NotCentered  []string `json:"not_centered"`
	SizeMismatch []string `json:"size_mismatch"`
	FontMismatch []string `json:"font_mismatch"`
}

// Report is the lint result for one document.
type Report struct {
	Passed bool   `json:"passed"`
	Checks Checks `json:"checks"`
	Totals struct {
		MenuParagraphs int `json:"menu_paragraphs"`
	} `json:"totals"`
	Samples Samples  `json:"samples"`
	Reasons []string `json:"reasons"`
}

// Lint checks the menu paragraphs of a document. Paragraphs at or
// before the boundary marker are ignored; when the marker is absent the
// whole document is checked. An empty marker selects the default.
func Lint(doc *docx.Document, boundaryMarker string) *Report {
	if boundaryMarker == "" {
		boundaryMarker = redline.DefaultBoundaryMarker
	}

	paras := doc.Paragraphs()
	menu := paras
	for i, p := range paras {
		if strings.Contains(p.Text(), boundaryMarker) {
			menu = paras[i+1:]
			break
		}
	}

	report := &Report{}
	var notCentered, sizeMismatch, fontMismatch []string

	for _, p := range menu {
		text := strings.TrimSpace(p.Text())
		if text == "" {
			continue
		}
		report.Totals.MenuParagraphs++

		if p.Alignment() != "center" {
			notCentered = append(notCentered, truncate(text, 120))
		}

		badSize, badFont := checkFonts(p.Runs())
		if badSize {
			sizeMismatch = append(sizeMismatch, truncate(text, 120))
		}
		if badFont {
			fontMismatch = append(fontMismatch, truncate(text, 120))
		}
	}

	total := report.Totals.MenuParagraphs
	centeredRatio := 0.0
	if total > 0 {
		centeredRatio = float64(total-len(notCentered)) / float64(total)
	}

	report.Checks.CenterAlignment = centeredRatio >= centeredFloor
	report.Checks.FontSize12pt = len(sizeMismatch) == 0
	report.Checks.FontFamilyCalibri = len(fontMismatch) == 0
	report.Passed = report.Checks.CenterAlignment &&
		report.Checks.FontSize12pt &&
		report.Checks.FontFamilyCalibri

	report.Samples.NotCentered = cap5(notCentered)
	report.Samples.SizeMismatch = cap5(sizeMismatch)
	report.Samples.FontMismatch = cap5(fontMismatch)

	if !report.Checks.CenterAlignment {
		report.Reasons = append(report.Reasons,
			fmt.Sprintf("Menu paragraphs are not centered per SOP (only %d%% centered).",
				int(centeredRatio*100)))
	}
	if !report.Checks.FontSize12pt {
		report.Reasons = append(report.Reasons,
			"Detected paragraphs with explicit font size not equal to 12 pt.")
	}
	if !report.Checks.FontFamilyCalibri {
		report.Reasons = append(report.Reasons,
			"Detected paragraphs with explicit font not Calibri (Body).")
	}

	return report
}

// LintFile opens a document and lints it.
func LintFile(path, boundaryMarker string) (*Report, error) {
	doc, err := docx.Open(path)
	if err != nil {
		return nil, err
	}
	return Lint(doc, boundaryMarker), nil
}

// checkFonts flags runs with an explicit size other than 12 pt or an
// explicit non-Calibri font. Runs with inherited formatting pass.
func checkFonts(runs []docx.Run) (badSize, badFont bool) {
	for _, r := range runs {
		if strings.TrimSpace(r.Text) == "" {
			continue
		}
		if r.Format.Size != 0 && r.Format.Size != twelvePt {
			badSize = true
		}
		if r.Format.Font != "" && !strings.Contains(strings.ToLower(r.Format.Font), "calibri") {
			badFont = true
		}
	}
	return badSize, badFont
}

func cap5(s []string) []string {
	if len(s) > sampleCap {
		return s[:sampleCap]
	}
	return s
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
