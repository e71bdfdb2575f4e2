package docx

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"strconv"
)

// writeXML serializes the paragraph. Untouched paragraphs are re-emitted
// from their original bytes; modified parsed paragraphs are spliced so
// that only the original run elements are replaced.
func (p *Paragraph) writeXML(buf *bytes.Buffer) {
	if !p.dirty && p.raw != nil {
		buf.Write(p.raw)
		return
	}
	if p.raw != nil && p.closeTag > 0 {
		p.spliceXML(buf)
		return
	}
	if p.startTag != nil {
		buf.Write(p.startTag)
	} else {
		buf.WriteString("<w:p>")
	}
	buf.Write(p.propsXML)
	for _, r := range p.runs {
		writeRun(buf, r)
	}
	buf.WriteString("</w:p>")
}

// spliceXML rewrites a parsed paragraph in place: the original top-level
// run elements are removed and the current run list takes the first
// one's position. Everything else in the original bytes — hyperlink
// wrappers, bookmarks, proofing marks — is emitted verbatim.
func (p *Paragraph) spliceXML(buf *bytes.Buffer) {
	cut := 0
	if p.propsMod {
		// The original <w:pPr> (when present) gives way to the replacement.
		if p.pprRange[1] > 0 {
			buf.Write(p.raw[:p.pprRange[0]])
			cut = p.pprRange[1]
		} else {
			buf.Write(p.startTag)
			cut = len(p.startTag)
		}
		buf.Write(p.propsXML)
	}

	insertAt := p.closeTag
	if len(p.runRanges) > 0 {
		insertAt = p.runRanges[0][0]
	}
	emitted := false
	for _, rr := range p.runRanges {
		buf.Write(p.raw[cut:rr[0]])
		if !emitted && rr[0] == insertAt {
			for _, r := range p.runs {
				writeRun(buf, r)
			}
			emitted = true
		}
		cut = rr[1]
	}
	if !emitted {
		buf.Write(p.raw[cut:insertAt])
		for _, r := range p.runs {
			writeRun(buf, r)
		}
		cut = insertAt
	}
	buf.Write(p.raw[cut:])
}

// writeRun emits one <w:r> element with its run properties.
func writeRun(buf *bytes.Buffer, r Run) {
	buf.WriteString("<w:r>")
	writeRunProps(buf, r.Format)
	buf.WriteString(`<w:t xml:space="preserve">`)
	escapeInto(buf, r.Text)
	buf.WriteString("</w:t></w:r>")
}

// writeRunProps emits <w:rPr> for the set attributes, in schema order.
func writeRunProps(buf *bytes.Buffer, f Format) {
	var props bytes.Buffer
	if f.Font != "" {
		fmt.Fprintf(&props, `<w:rFonts w:ascii=%q w:hAnsi=%q/>`, f.Font, f.Font)
	}
	writeToggle(&props, "b", f.Bold)
	writeToggle(&props, "i", f.Italic)
	if f.Strike {
		props.WriteString(`<w:strike/>`)
	}
	if f.Color != "" {
		fmt.Fprintf(&props, `<w:color w:val=%q/>`, f.Color)
	}
	if f.Size != 0 {
		props.WriteString(`<w:sz w:val="` + strconv.Itoa(f.Size) + `"/>`)
		props.WriteString(`<w:szCs w:val="` + strconv.Itoa(f.Size) + `"/>`)
	}
	switch f.Underline {
	case FlagOn:
		props.WriteString(`<w:u w:val="single"/>`)
	case FlagOff:
		props.WriteString(`<w:u w:val="none"/>`)
	}
	if f.Highlight != "" {
		fmt.Fprintf(&props, `<w:highlight w:val=%q/>`, f.Highlight)
	}
	if props.Len() == 0 {
		return
	}
	buf.WriteString("<w:rPr>")
	buf.Write(props.Bytes())
	buf.WriteString("</w:rPr>")
}

// writeToggle emits a tri-state toggle element (<w:b/>, <w:b w:val="0"/>).
func writeToggle(buf *bytes.Buffer, name string, f Flag) {
	switch f {
	case FlagOn:
		buf.WriteString("<w:" + name + "/>")
	case FlagOff:
		buf.WriteString(`<w:` + name + ` w:val="0"/>`)
	}
}

func escapeInto(buf *bytes.Buffer, s string) {
	// xml.EscapeText only fails on a failing writer; bytes.Buffer cannot.
	_ = xml.EscapeText(buf, []byte(s))
}

// minimal parts for documents created from scratch.
const (
	contentTypesXML = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>` +
		`<Types xmlns="http://schemas.openxmlformats.org/package/2006/content-types">` +
		`<Default Extension="rels" ContentType="application/vnd.openxmlformats-package.relationships+xml"/>` +
		`<Default Extension="xml" ContentType="application/xml"/>` +
		`<Override PartName="/word/document.xml" ContentType="application/vnd.openxmlformats-officedocument.wordprocessingml.document.main+xml"/>` +
		`</Types>`
	relsXML = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>` +
		`<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships">` +
		`<Relationship Id="rId1" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/officeDocument" Target="word/document.xml"/>` +
		`</Relationships>`
	bodyOpenXML = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>` +
		`<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"><w:body>`
	bodyCloseXML = `</w:body></w:document>`
)

// New creates a document from scratch with the given paragraphs.
func New(paras ...*Paragraph) *Document {
	doc := &Document{
		parts: []zipPart{
			{name: "[Content_Types].xml", data: []byte(contentTypesXML)},
			{name: "_rels/.rels", data: []byte(relsXML)},
			{name: documentPart}, // content rebuilt on save
		},
		segments: []segment{{raw: []byte(bodyOpenXML)}},
	}
	for _, p := range paras {
		doc.segments = append(doc.segments, segment{para: p})
		doc.paras = append(doc.paras, p)
	}
	doc.segments = append(doc.segments, segment{raw: []byte(bodyCloseXML)})
	return doc
}
