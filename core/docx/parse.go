package docx

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// splitBody cuts word/document.xml into verbatim segments and modeled
// body-level paragraphs. Byte offsets come from the decoder, so the raw
// segments reproduce the source exactly.
func splitBody(data []byte) ([]segment, []*Paragraph, error) {
	d := xml.NewDecoder(bytes.NewReader(data))
	var (
		segs      []segment
		paras     []*Paragraph
		stack     []xml.Name
		lastCut   int64
		paraStart int64 = -1
		paraDepth int
	)

	inBody := func() bool {
		return len(stack) > 0 && stack[len(stack)-1].Local == "body"
	}

	for {
		off := d.InputOffset()
		tok, err := d.RawToken()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, nil, fmt.Errorf("tokenize body: %w", err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			if paraStart < 0 && t.Name.Local == "p" && t.Name.Space == "w" && inBody() {
				paraStart = off
				paraDepth = len(stack)
			}
			stack = append(stack, t.Name)
		case xml.EndElement:
			if len(stack) > 0 {
				stack = stack[:len(stack)-1]
			}
			if paraStart >= 0 && len(stack) == paraDepth && t.Name.Local == "p" && t.Name.Space == "w" {
				end := d.InputOffset()
				if paraStart > lastCut {
					segs = append(segs, segment{raw: data[lastCut:paraStart]})
				}
				p, err := parseParagraph(data[paraStart:end])
				if err != nil {
					return nil, nil, err
				}
				segs = append(segs, segment{para: p})
				paras = append(paras, p)
				lastCut = end
				paraStart = -1
			}
		}
	}
	if int(lastCut) < len(data) {
		segs = append(segs, segment{raw: data[lastCut:]})
	}
	return segs, paras, nil
}

// parseParagraph models one <w:p> element. Paragraph properties are kept
// as raw XML; direct child runs are parsed into the Run model. Other
// inline content (bookmarks, proofing marks, hyperlink wrappers) is not
// modeled; the recorded byte ranges let serialization splice a new run
// list around it without disturbing it.
func parseParagraph(raw []byte) (*Paragraph, error) {
	gt := bytes.IndexByte(raw, '>')
	if gt < 0 {
		return nil, fmt.Errorf("malformed paragraph element")
	}
	p := &Paragraph{raw: raw}
	if raw[gt-1] == '/' {
		// Empty <w:p/>; normalize the start tag for any future rebuild.
		p.startTag = append(append([]byte{}, raw[:gt-1]...), '>')
		return p, nil
	}
	p.startTag = append([]byte{}, raw[:gt+1]...)

	d := xml.NewDecoder(bytes.NewReader(raw))
	var (
		depth    int
		pprStart int64 = -1
		runStart int64
		run      *Run
		runDepth int
		inText   bool
	)
	for {
		off := d.InputOffset()
		tok, err := d.RawToken()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("tokenize paragraph: %w", err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			depth++
			switch {
			case depth == 2 && t.Name.Local == "pPr":
				pprStart = off
			case depth == 2 && t.Name.Local == "r":
				run = &Run{}
				runDepth = depth
				runStart = off
			case run != nil && depth == runDepth+1 && t.Name.Local == "t":
				inText = true
			case run != nil && depth == runDepth+1 && t.Name.Local == "tab":
				run.Text += "\t"
			case run != nil && depth == runDepth+1 && (t.Name.Local == "br" || t.Name.Local == "cr"):
				run.Text += "\n"
			case run != nil && depth == runDepth+2:
				applyRunProp(&run.Format, t)
			}
		case xml.EndElement:
			if depth == 1 && t.Name.Local == "p" {
				p.closeTag = int(off)
			}
			if depth == 2 && t.Name.Local == "pPr" && pprStart >= 0 {
				p.propsXML = append([]byte{}, raw[pprStart:d.InputOffset()]...)
				p.pprRange = [2]int{int(pprStart), int(d.InputOffset())}
				pprStart = -1
			}
			if run != nil && depth == runDepth && t.Name.Local == "r" {
				p.runs = append(p.runs, *run)
				p.runRanges = append(p.runRanges, [2]int{int(runStart), int(d.InputOffset())})
				run = nil
			}
			if t.Name.Local == "t" {
				inText = false
			}
			depth--
		case xml.CharData:
			if inText && run != nil {
				run.Text += string(t)
			}
		}
	}
	return p, nil
}

// applyRunProp folds one <w:rPr> child element into a Format.
func applyRunProp(f *Format, el xml.StartElement) {
	val := attrVal(el, "val")
	switch el.Name.Local {
	case "rFonts":
		if ascii := attrVal(el, "ascii"); ascii != "" {
			f.Font = ascii
		} else if hansi := attrVal(el, "hAnsi"); hansi != "" {
			f.Font = hansi
		}
	case "sz":
		if n, err := strconv.Atoi(val); err == nil {
			f.Size = n
		}
	case "b":
		f.Bold = flagFromVal(val)
	case "i":
		f.Italic = flagFromVal(val)
	case "u":
		if val == "none" {
			f.Underline = FlagOff
		} else {
			f.Underline = FlagOn
		}
	case "strike":
		f.Strike = flagFromVal(val) == FlagOn
	case "color":
		if val != "" && !strings.EqualFold(val, "auto") {
			f.Color = strings.ToUpper(val)
		}
	case "highlight":
		if val != "" && val != "none" {
			f.Highlight = val
		}
	}
}

// flagFromVal maps an OOXML toggle attribute to a Flag. A bare element
// (no w:val) means on.
func flagFromVal(val string) Flag {
	switch strings.ToLower(val) {
	case "", "1", "true", "on":
		return FlagOn
	default:
		return FlagOff
	}
}

// attrVal returns the named attribute's value, ignoring its namespace.
func attrVal(el xml.StartElement, local string) string {
	for _, a := range el.Attr {
		if a.Name.Local == local {
			return a.Value
		}
	}
	return ""
}
