package allergen

import (
	"strings"

	"github.com/alecthomas/participle/v2"
	"github.com/alecthomas/participle/v2/lexer"
)

// legendKeywords validate that a parsed entry names a real allergen
// rather than random pipe-delimited text.
var legendKeywords = []string{
	"dairy", "gluten", "nuts", "nut", "shellfish", "fish",
	"vegetarian", "vegan", "egg", "celery", "crustacean",
	"sesame", "soya", "soy", "mustard", "lupin", "mollusc",
	"sulphite", "sulfite", "peanut", "tree",
}

// legendEntry is one "CODE name" pair of a pipe-delimited legend line,
// e.g. "CE celery" or "D=dairy". Trailing words beyond the name are
// tolerated; anything unlexable is elided.
type legendEntry struct {
	Code  string   `parser:"@Word"`
	Names []string `parser:"Sep? @Word*"`
}

// legendLexer tokenizes a single legend segment. Order matters: the
// catch-all must come last.
var legendLexer = lexer.MustSimple([]lexer.SimpleRule{
	{Name: "Word", Pattern: `[\p{L}][\p{L}'’]*`},
	{Name: "Sep", Pattern: `[=:\-–]`},
	{Name: "Whitespace", Pattern: `\s+`},
	{Name: "Other", Pattern: `.`},
})

// legendParser parses one legend segment.
var legendParser = participle.MustBuild[legendEntry](
	participle.Lexer(legendLexer),
	participle.Elide("Whitespace", "Other"),
)

// legendScanDepth is how many trailing paragraphs to inspect; legends
// sit at the bottom of the menu.
const legendScanDepth = 15

// minLegendEntries is the minimum number of valid "CODE name" pairs a
// line must carry to count as a legend.
const minLegendEntries = 5

// DetectLegend scans the trailing paragraphs of a menu for a
// pipe-delimited allergen legend such as
//
//	C crustaceans | CE celery | D dairy | E egg | F fish | ...
//
// and returns the parsed code table. The second return is false when no
// legend was found.
func DetectLegend(paragraphs []string) (map[string]string, bool) {
	start := 0
	if len(paragraphs) > legendScanDepth {
		start = len(paragraphs) - legendScanDepth
	}
	for _, text := range paragraphs[start:] {
		text = strings.TrimSpace(text)
		if text == "" || !strings.Contains(text, "|") {
			continue
		}
		segments := strings.Split(text, "|")
		if len(segments) < minLegendEntries {
			continue
		}
		codes := make(map[string]string)
		valid := 0
		for _, seg := range segments {
			code, name, ok := parseLegendEntry(seg)
			if !ok {
				continue
			}
			codes[code] = name
			valid++
		}
		if valid >= minLegendEntries {
			return codes, true
		}
	}
	return nil, false
}

// parseLegendEntry parses one pipe-delimited segment into a (code, name)
// pair, validating that it plausibly names an allergen.
func parseLegendEntry(segment string) (code, name string, ok bool) {
	segment = strings.TrimSpace(segment)
	if segment == "" {
		return "", "", false
	}
	entry, err := legendParser.ParseString("", segment)
	if err != nil {
		return "", "", false
	}
	if len(entry.Code) > 3 || len(entry.Names) == 0 {
		return "", "", false
	}
	// The name is at most the first two words, matching legend styles
	// like "tree nuts" without swallowing whole sentences.
	words := entry.Names
	if len(words) > 2 {
		words = words[:2]
	}
	name = strings.ToLower(strings.Join(words, " "))

	plausible := len(entry.Code) <= 2
	for _, kw := range legendKeywords {
		if strings.Contains(name, kw) {
			plausible = true
			break
		}
	}
	if !plausible {
		return "", "", false
	}
	return strings.ToUpper(entry.Code), titleCase(name), true
}

// titleCase capitalizes the first letter of each word.
func titleCase(s string) string {
	words := strings.Fields(s)
	for i, w := range words {
		r := []rune(w)
		r[0] = []rune(strings.ToUpper(string(r[0])))[0]
		words[i] = string(r)
	}
	return strings.Join(words, " ")
}
