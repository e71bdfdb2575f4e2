// Package docx provides pure Go reading and writing of Word (.docx)
// documents at the paragraph/run level. A .docx file is a zip archive of
// OOXML parts; this package models word/document.xml as an ordered list
// of paragraphs, each an ordered list of formatted runs, and round-trips
// every other part verbatim.
//
// Paragraphs that are never modified are re-emitted byte-for-byte from
// their original XML, so content outside the edited region is never
// disturbed. A modified paragraph replaces only its original run
// elements: the new run list is computed fully in memory and spliced
// into the paragraph's original bytes, leaving hyperlink wrappers,
// bookmarks and other inline content where they were.
package docx

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io"
	"os"
	"regexp"
	"strings"
)

// documentPart is the zip entry holding the main document body.
const documentPart = "word/document.xml"

// Flag is a tri-state run property (bold, italic, underline). OOXML
// distinguishes "explicitly on", "explicitly off" and "inherited".
type Flag int

// Flag states.
const (
	FlagUnset Flag = iota
	FlagOn
	FlagOff
)

// Bool reports whether the flag is explicitly on.
func (f Flag) Bool() bool { return f == FlagOn }

// Format is the formatting attribute set of a single run.
type Format struct {
	// Font is the ASCII font family name; empty means inherited.
	Font string
	// Size is the font size in half-points (24 = 12 pt); 0 means inherited.
	Size int
	// Bold, Italic and Underline are tri-state.
	Bold      Flag
	Italic    Flag
	Underline Flag
	// Color is a hex RRGGBB text color; empty means inherited.
	Color string
	// Strike is true when the run is struck through.
	Strike bool
	// Highlight is the OOXML highlight name (e.g. "yellow"); empty means none.
	Highlight string
}

// Run is a maximal span of characters sharing one formatting attribute set.
type Run struct {
	Text   string
	Format Format
}

// Paragraph is an ordered sequence of runs. The concatenation of all run
// texts equals the paragraph's plain text.
type Paragraph struct {
	raw       []byte   // original <w:p> XML; authoritative while !dirty
	startTag  []byte   // original start tag, reused when rebuilding
	propsXML  []byte   // raw <w:pPr> element, preserved across rebuilds
	pprRange  [2]int   // byte range of <w:pPr> within raw; [0,0] when absent
	runRanges [][2]int // byte ranges of the top-level <w:r> elements within raw
	closeTag  int      // byte offset of </w:p> within raw; 0 for <w:p/>
	runs      []Run
	dirty     bool
	propsMod  bool // propsXML no longer matches the original <w:pPr>
}

// NewParagraph creates a fresh paragraph from runs. It has no original
// XML, so it always serializes from the run model.
func NewParagraph(runs ...Run) *Paragraph {
	return &Paragraph{runs: runs, dirty: true}
}

// Text returns the paragraph's plain text (concatenated run texts).
func (p *Paragraph) Text() string {
	var b strings.Builder
	for _, r := range p.runs {
		b.WriteString(r.Text)
	}
	return b.String()
}

// Runs returns a copy of the paragraph's run list.
func (p *Paragraph) Runs() []Run {
	out := make([]Run, len(p.runs))
	copy(out, p.runs)
	return out
}

// SetRuns replaces the paragraph's run list in one step. Paragraph-level
// properties (alignment etc.) are untouched.
func (p *Paragraph) SetRuns(runs []Run) {
	p.runs = runs
	p.dirty = true
}

// SetAlignment sets the paragraph justification ("center", "left", ...),
// replacing any existing paragraph properties.
func (p *Paragraph) SetAlignment(val string) {
	p.propsXML = fmt.Appendf(nil, `<w:pPr><w:jc w:val=%q/></w:pPr>`, val)
	p.propsMod = true
	p.dirty = true
}

// jcValRe pulls the justification value out of a raw <w:pPr> element.
var jcValRe = regexp.MustCompile(`<w:jc\s+w:val="([^"]*)"`)

// Alignment returns the paragraph justification, or "" when none is set.
func (p *Paragraph) Alignment() string {
	if m := jcValRe.FindSubmatch(p.propsXML); m != nil {
		return string(m[1])
	}
	return ""
}

// segment is a slice of document.xml: either verbatim bytes or a
// modeled paragraph.
type segment struct {
	raw  []byte
	para *Paragraph
}

// zipPart is a preserved zip entry.
type zipPart struct {
	name string
	data []byte
}

// Document is an open .docx document.
type Document struct {
	parts    []zipPart
	segments []segment
	paras    []*Paragraph
}

// Open reads a .docx file from disk.
func Open(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("open document: %w", err)
	}
	return Parse(data)
}

// Parse reads a .docx document from bytes.
func Parse(data []byte) (*Document, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("read docx archive: %w", err)
	}

	doc := &Document{}
	var bodyXML []byte
	for _, f := range zr.File {
		rc, err := f.Open()
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", f.Name, err)
		}
		content, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", f.Name, err)
		}
		doc.parts = append(doc.parts, zipPart{name: f.Name, data: content})
		if f.Name == documentPart {
			bodyXML = content
		}
	}
	if bodyXML == nil {
		return nil, fmt.Errorf("read docx archive: missing %s", documentPart)
	}

	segments, paras, err := splitBody(bodyXML)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", documentPart, err)
	}
	doc.segments = segments
	doc.paras = paras
	return doc, nil
}

// Paragraphs returns the document's body-level paragraphs in order.
// Paragraphs inside tables are not included and are never modified.
func (d *Document) Paragraphs() []*Paragraph {
	return d.paras
}

// InsertBefore inserts a new paragraph immediately before target.
// The target must belong to this document.
func (d *Document) InsertBefore(target, p *Paragraph) error {
	for i, seg := range d.segments {
		if seg.para == target {
			d.segments = append(d.segments[:i], append([]segment{{para: p}}, d.segments[i:]...)...)
			for j, q := range d.paras {
				if q == target {
					d.paras = append(d.paras[:j], append([]*Paragraph{p}, d.paras[j:]...)...)
					break
				}
			}
			return nil
		}
	}
	return fmt.Errorf("insert paragraph: target not in document")
}

// Bytes serializes the document back to .docx bytes.
func (d *Document) Bytes() ([]byte, error) {
	var body bytes.Buffer
	for _, seg := range d.segments {
		if seg.para != nil {
			seg.para.writeXML(&body)
			continue
		}
		body.Write(seg.raw)
	}

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, part := range d.parts {
		w, err := zw.Create(part.name)
		if err != nil {
			return nil, fmt.Errorf("write %s: %w", part.name, err)
		}
		content := part.data
		if part.name == documentPart {
			content = body.Bytes()
		}
		if _, err := w.Write(content); err != nil {
			return nil, fmt.Errorf("write %s: %w", part.name, err)
		}
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("finalize docx archive: %w", err)
	}
	return buf.Bytes(), nil
}

// Save writes the document to path.
func (d *Document) Save(path string) error {
	data, err := d.Bytes()
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("save document: %w", err)
	}
	return nil
}

// DocumentXML returns the current serialized word/document.xml content.
// Intended for diagnostics and tests.
func (d *Document) DocumentXML() []byte {
	var body bytes.Buffer
	for _, seg := range d.segments {
		if seg.para != nil {
			seg.para.writeXML(&body)
			continue
		}
		body.Write(seg.raw)
	}
	return body.Bytes()
}
