package docx

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io"
	"strings"

	"github.com/antchfx/xmlquery"
)

// Boundary markers recognized by the text extractor. The first is the
// templated instruction sentence; bare "MENU" headings also appear in
// older templates.
var extractBoundaryMarkers = []string{
	"Please drop the menu content below on page 2",
	"MENU",
}

// ExtractResult holds raw and cleaned menu text pulled from a document.
type ExtractResult struct {
	MenuContent        string `json:"menu_content"`
	CleanedMenuContent string `json:"cleaned_menu_content"`
}

// ExtractMenuText pulls the menu region's text out of .docx bytes. The
// cleaned variant drops redline artifacts: struck-through runs and Word
// tracked deletions (w:del / w:moveFrom); tracked insertions are kept.
//
// Unlike Parse, extraction walks the raw XML tree so it can see run
// ancestry that the paragraph/run model does not carry.
func ExtractMenuText(data []byte) (*ExtractResult, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("read docx archive: %w", err)
	}
	var bodyXML []byte
	for _, f := range zr.File {
		if f.Name != documentPart {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", f.Name, err)
		}
		bodyXML, err = io.ReadAll(rc)
		rc.Close()
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", f.Name, err)
		}
		break
	}
	if bodyXML == nil {
		return nil, fmt.Errorf("read docx archive: missing %s", documentPart)
	}

	root, err := xmlquery.Parse(bytes.NewReader(bodyXML))
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", documentPart, err)
	}

	paras := bodyParagraphNodes(root)
	boundary := -1
	for i, p := range paras {
		text := strings.TrimSpace(rawText(p))
		if text == "MENU" || strings.Contains(text, extractBoundaryMarkers[0]) {
			boundary = i
			break
		}
	}
	source := paras
	if boundary >= 0 {
		source = paras[boundary+1:]
	}

	var rawLines, cleanedLines []string
	for _, p := range source {
		raw := rawText(p)
		// Template markers can linger below the boundary.
		trimmed := strings.TrimSpace(raw)
		if trimmed == "MENU" || strings.Contains(raw, "Please drop the menu content below") {
			continue
		}
		rawLines = append(rawLines, raw)
		cleanedLines = append(cleanedLines, cleanText(p))
	}
	rawLines = trimTrailingBlank(rawLines)
	cleanedLines = trimTrailingBlank(cleanedLines)

	return &ExtractResult{
		MenuContent:        strings.Join(rawLines, "\n"),
		CleanedMenuContent: strings.Join(cleanedLines, "\n"),
	}, nil
}

// bodyParagraphNodes returns the document order list of body-level w:p nodes.
func bodyParagraphNodes(root *xmlquery.Node) []*xmlquery.Node {
	var body *xmlquery.Node
	var findBody func(n *xmlquery.Node)
	findBody = func(n *xmlquery.Node) {
		for c := n.FirstChild; c != nil && body == nil; c = c.NextSibling {
			if c.Type == xmlquery.ElementNode && c.Data == "body" {
				body = c
				return
			}
			findBody(c)
		}
	}
	findBody(root)
	if body == nil {
		return nil
	}
	var paras []*xmlquery.Node
	for c := body.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == xmlquery.ElementNode && c.Data == "p" {
			paras = append(paras, c)
		}
	}
	return paras
}

// rawText concatenates every w:t descendant of a paragraph.
func rawText(p *xmlquery.Node) string {
	var b strings.Builder
	walkTextNodes(p, func(t *xmlquery.Node) {
		b.WriteString(t.InnerText())
	})
	return b.String()
}

// cleanText concatenates w:t descendants, skipping text inside tracked
// deletions and text belonging to struck-through runs.
func cleanText(p *xmlquery.Node) string {
	var b strings.Builder
	walkTextNodes(p, func(t *xmlquery.Node) {
		if inDeletedChange(t) || runIsStruck(t) {
			return
		}
		b.WriteString(t.InnerText())
	})
	return b.String()
}

// walkTextNodes visits every w:t element under n in document order.
func walkTextNodes(n *xmlquery.Node, visit func(*xmlquery.Node)) {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == xmlquery.ElementNode && c.Data == "t" {
			visit(c)
			continue
		}
		walkTextNodes(c, visit)
	}
}

// inDeletedChange reports whether any ancestor is a tracked deletion.
func inDeletedChange(n *xmlquery.Node) bool {
	for a := n.Parent; a != nil; a = a.Parent {
		if a.Type == xmlquery.ElementNode && (a.Data == "del" || a.Data == "moveFrom") {
			return true
		}
	}
	return false
}

// runIsStruck reports whether the w:t node's enclosing run carries w:strike.
func runIsStruck(n *xmlquery.Node) bool {
	var run *xmlquery.Node
	for a := n.Parent; a != nil; a = a.Parent {
		if a.Type == xmlquery.ElementNode && a.Data == "r" {
			run = a
			break
		}
	}
	if run == nil {
		return false
	}
	for c := run.FirstChild; c != nil; c = c.NextSibling {
		if c.Type != xmlquery.ElementNode || c.Data != "rPr" {
			continue
		}
		for pc := c.FirstChild; pc != nil; pc = pc.NextSibling {
			if pc.Type == xmlquery.ElementNode && pc.Data == "strike" {
				for _, a := range pc.Attr {
					if a.Name.Local == "val" && (a.Value == "0" || strings.EqualFold(a.Value, "false")) {
						return false
					}
				}
				return true
			}
		}
	}
	return false
}

func trimTrailingBlank(lines []string) []string {
	for len(lines) > 0 && strings.TrimSpace(lines[len(lines)-1]) == "" {
		lines = lines[:len(lines)-1]
	}
	return lines
}
