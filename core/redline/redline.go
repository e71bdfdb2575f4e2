// Package redline rewrites menu paragraphs with tracked-change styling:
// proposed deletions struck through in red, proposed insertions
// highlighted, and every unchanged character keeping its original
// formatting. It contains the per-character format map builder, the run
// reconstruction renderer, the paragraph eligibility guard, and the
// document orchestrator that drives them.
package redline

import (
	"context"
	"fmt"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/rshdesign/redliner/core/allergen"
	"github.com/rshdesign/redliner/core/docx"
	"github.com/rshdesign/redliner/core/worddiff"
	"github.com/rshdesign/redliner/internal/logging"
)

// DefaultBoundaryMarker is the templated instruction sentence separating
// the submission form from the menu content.
const DefaultBoundaryMarker = "Please drop the menu content below on page 2."

// prixFixeKeywords mark fixed-course tasting menus.
var prixFixeKeywords = []string{
	"prix fixe", "pre-fix", "prefix", "prix-fixe",
	"tasting menu", "tasting experience",
	"course menu", "multi-course", "multicourse",
	"degustation", "chef's menu", "chef's table",
}

// courseHeaderPatterns match creative course section headers, e.g.
// `The Spark – "El Primer Encuentro"` (en-dash and curly quotes).
var courseHeaderPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)^The\s+\w+\s*[\x{2013}\x{2014}-]\s*[\x{201c}\x{201d}"][^\x{201c}\x{201d}"]+[\x{201c}\x{201d}"]`),
	regexp.MustCompile(`(?i)^[A-Z][a-z]+(?:\s+[A-Z]?[a-z]+)*\s*[\x{2013}\x{2014}-]\s*[\x{201c}\x{201d}"][^\x{201c}\x{201d}"]+[\x{201c}\x{201d}"]`),
	regexp.MustCompile(`(?i)^(?:COURSE|Course)\s+(?:One|Two|Three|Four|Five|Six|Seven|Eight|\d+)`),
}

// Corrector produces a corrected rendition of one menu line. It must be
// total: implementations recover from external failures by returning the
// input unchanged.
type Corrector interface {
	Correct(ctx context.Context, text string) string
}

// CorrectorFunc adapts a plain function to the Corrector interface.
type CorrectorFunc func(ctx context.Context, text string) string

// Correct calls the function.
func (f CorrectorFunc) Correct(ctx context.Context, text string) string {
	return f(ctx, text)
}

// AllergenConfigurable is implemented by correctors whose allergen
// vocabulary can be reconfigured from a document-local legend.
type AllergenConfigurable interface {
	SetAllergenCodes(codes map[string]string)
}

// Stats summarizes one document's processing run.
type Stats struct {
	Paragraphs       int  `json:"paragraphs"`
	Modified         int  `json:"modified"`
	SkippedRedlined  int  `json:"skipped_redlined"`
	SkippedMixedBold int  `json:"skipped_mixed_bold"`
	CoursesAdded     int  `json:"courses_added"`
	LegendDetected   bool `json:"legend_detected"`
	MarkerFound      bool `json:"marker_found"`
}

// Redliner drives redline processing of menu documents.
type Redliner struct {
	boundaryMarker string
}

// New creates a Redliner. An empty marker selects the default.
func New(boundaryMarker string) *Redliner {
	if boundaryMarker == "" {
		boundaryMarker = DefaultBoundaryMarker
	}
	return &Redliner{boundaryMarker: boundaryMarker}
}

// Process applies corrections to every eligible menu paragraph of an
// open document. Paragraphs at or before the boundary marker are never
// mutated; if the marker is absent the whole document is processed and a
// warning is logged.
func (r *Redliner) Process(ctx context.Context, doc *docx.Document, corrector Corrector) (*Stats, error) {
	log := logging.GetLogger()
	stats := &Stats{}

	menu := r.menuParagraphs(doc, stats)
	if !stats.MarkerFound {
		log.Warn("boundary marker not found, processing whole document",
			"marker", r.boundaryMarker)
	}

	// Reconfigure the corrector's allergen vocabulary from a
	// document-local legend before any correction call.
	if configurable, ok := corrector.(AllergenConfigurable); ok {
		texts := make([]string, len(menu))
		for i, p := range menu {
			texts[i] = p.Text()
		}
		codes, found := allergen.DetectLegend(texts)
		if found {
			stats.LegendDetected = true
			log.Info("document allergen legend detected", "codes", len(codes))
		} else {
			codes = allergen.DefaultCodes()
		}
		configurable.SetAllergenCodes(codes)
	}

	if r.isPrixFixe(menu) {
		added, err := r.addCourseNumbers(doc, menu)
		if err != nil {
			return nil, err
		}
		stats.CoursesAdded = added
		if added > 0 {
			log.Info("numbered prix fixe courses", "count", added)
		}
	}

	for _, p := range menu {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		stats.Paragraphs++
		if r.processParagraph(ctx, p, corrector, stats) {
			stats.Modified++
		}
	}
	log.Info("document processed",
		"paragraphs", stats.Paragraphs,
		"modified", stats.Modified,
		"skipped_redlined", stats.SkippedRedlined,
		"skipped_mixed_bold", stats.SkippedMixedBold)
	return stats, nil
}

// ProcessFile opens a document, processes it, and saves the result.
// If outputPath is empty the input path gains a "_Corrected" suffix.
// The returned path is where the document was written.
func (r *Redliner) ProcessFile(ctx context.Context, inputPath string, corrector Corrector, outputPath string) (string, *Stats, error) {
	doc, err := docx.Open(inputPath)
	if err != nil {
		return "", nil, err
	}
	stats, err := r.Process(ctx, doc, corrector)
	if err != nil {
		return "", nil, err
	}
	if outputPath == "" {
		outputPath = DerivedOutputPath(inputPath)
	}
	if err := doc.Save(outputPath); err != nil {
		return "", nil, err
	}
	return outputPath, stats, nil
}

// DerivedOutputPath appends the "_Corrected" suffix to a document path.
func DerivedOutputPath(inputPath string) string {
	ext := filepath.Ext(inputPath)
	stem := strings.TrimSuffix(inputPath, ext)
	return stem + "_Corrected" + ext
}

// menuParagraphs returns the paragraphs strictly after the boundary
// marker, or every paragraph when the marker is absent.
func (r *Redliner) menuParagraphs(doc *docx.Document, stats *Stats) []*docx.Paragraph {
	paras := doc.Paragraphs()
	for i, p := range paras {
		if strings.Contains(p.Text(), r.boundaryMarker) {
			stats.MarkerFound = true
			return paras[i+1:]
		}
	}
	return paras
}

// processParagraph runs the guard, the correction call, the diff engine
// and the renderer for one paragraph. Returns true when it was modified.
func (r *Redliner) processParagraph(ctx context.Context, p *docx.Paragraph, corrector Corrector, stats *Stats) bool {
	original := p.Text()
	if strings.TrimSpace(original) == "" {
		return false
	}

	runs := p.Runs()
	switch CheckEligibility(runs) {
	case SkipRedlined:
		stats.SkippedRedlined++
		return false
	case SkipMixedBold:
		stats.SkippedMixedBold++
		return false
	}

	corrected := corrector.Correct(ctx, original)
	if corrected == original {
		return false
	}

	spans := worddiff.Diff(original, corrected)
	if !worddiff.HasChanges(spans) {
		// Whitespace-only difference; nothing worth redlining.
		return false
	}

	formatMap := BuildFormatMap(runs)
	p.SetRuns(Render(spans, formatMap))
	return true
}

// isPrixFixe scans the first paragraphs of the menu for tasting-menu
// keywords.
func (r *Redliner) isPrixFixe(menu []*docx.Paragraph) bool {
	n := len(menu)
	if n > 10 {
		n = 10
	}
	var b strings.Builder
	for _, p := range menu[:n] {
		b.WriteString(strings.ToLower(p.Text()))
		b.WriteString(" ")
	}
	head := b.String()
	for _, kw := range prixFixeKeywords {
		if strings.Contains(head, kw) {
			logging.GetLogger().Info("detected prix fixe menu", "keyword", kw)
			return true
		}
	}
	return false
}

// IsCourseHeader reports whether a paragraph text looks like a course
// section header.
func IsCourseHeader(text string) bool {
	text = strings.TrimSpace(text)
	if text == "" {
		return false
	}
	for _, pat := range courseHeaderPatterns {
		if pat.MatchString(text) {
			return true
		}
	}
	return false
}

// addCourseNumbers inserts a centered, bold, highlighted number-only
// paragraph before each detected course header. Insertion runs in
// reverse document order on a snapshot taken before any insertion, so
// earlier insertion points stay valid.
func (r *Redliner) addCourseNumbers(doc *docx.Document, menu []*docx.Paragraph) (int, error) {
	type numbered struct {
		header *docx.Paragraph
		num    int
	}
	var headers []numbered
	for _, p := range menu {
		if IsCourseHeader(p.Text()) {
			headers = append(headers, numbered{header: p, num: len(headers) + 1})
		}
	}
	if len(headers) == 0 {
		return 0, nil
	}
	for i := len(headers) - 1; i >= 0; i-- {
		h := headers[i]
		numPara := docx.NewParagraph(docx.Run{
			Text: strconv.Itoa(h.num),
			Format: docx.Format{
				Bold:      docx.FlagOn,
				Highlight: InsertHighlight,
			},
		})
		numPara.SetAlignment("center")
		if err := doc.InsertBefore(h.header, numPara); err != nil {
			return 0, fmt.Errorf("number course %d: %w", h.num, err)
		}
	}
	return len(headers), nil
}
