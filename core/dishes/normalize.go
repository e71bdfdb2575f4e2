package dishes

import (
	"path/filepath"
	"regexp"
	"strings"
)

var (
	nonWordRe    = regexp.MustCompile(`[^\w\s]`)
	spaceRunRe   = regexp.MustCompile(`\s+`)
	underscoreRe = regexp.MustCompile(`_+`)
	priceTailRe  = regexp.MustCompile(`\s+\d+(?:\.\d{2})?\s*$`)
	codesTailRe  = regexp.MustCompile(`(?i)[,\s]*[DNGVSEFC,*]+\s*$`)

	restaurantPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)^([\w\s']+?)[\s_-]*(menu|revision|brief|submission)`),
		regexp.MustCompile(`(?i)^([\w\s']+?)[\s_-]*\d`),
		regexp.MustCompile(`(?i)^([\w\s']+)`),
	}
)

// Normalize lowercases a dish name, strips punctuation, and collapses
// whitespace so lookups are insensitive to typography.
func Normalize(name string) string {
	s := nonWordRe.ReplaceAllString(strings.ToLower(strings.TrimSpace(name)), "")
	return strings.TrimSpace(spaceRunRe.ReplaceAllString(s, " "))
}

// ExtractRestaurant derives a restaurant identifier from a menu filename.
// "Casa Azul Menu Revision 3.docx" becomes "casa_azul".
func ExtractRestaurant(filename string) string {
	name := strings.TrimSuffix(filepath.Base(filename), filepath.Ext(filename))

	for _, pattern := range restaurantPatterns {
		m := pattern.FindStringSubmatch(name)
		if m == nil {
			continue
		}
		id := strings.ToLower(strings.TrimSpace(m[1]))
		id = nonWordRe.ReplaceAllString(id, "_")
		id = spaceRunRe.ReplaceAllString(id, "_")
		id = underscoreRe.ReplaceAllString(id, "_")
		id = strings.Trim(id, "_")
		if id != "" {
			return id
		}
	}
	return "unknown"
}

// StripPrice removes a trailing price from a menu line. Prices vary per
// restaurant and must never participate in comparisons.
func StripPrice(line string) string {
	return strings.TrimSpace(priceTailRe.ReplaceAllString(line, ""))
}

// splitNameDescription breaks a line into dish name and description at
// the first spaced dash or comma.
func splitNameDescription(line string) (name, description string) {
	if i := strings.Index(line, " - "); i >= 0 {
		return strings.TrimSpace(line[:i]), strings.TrimSpace(line[i+3:])
	}
	if i := strings.Index(line, ", "); i >= 0 {
		return strings.TrimSpace(line[:i]), strings.TrimSpace(line[i+2:])
	}
	return strings.TrimSpace(line), ""
}

// splitIngredients splits a description on commas into trimmed
// ingredient names.
func splitIngredients(description string) []string {
	if description == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(description, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
