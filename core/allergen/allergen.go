// Package allergen defines the allergen-code vocabulary used on menus,
// ingredient-based inference, and detection of document-local allergen
// legends that override the house defaults.
package allergen

import (
	"sort"
	"strings"
)

// defaultCodes is the house SOP legend, used when a document carries no
// legend of its own.
var defaultCodes = map[string]string{
	"D":  "Dairy",
	"G":  "Gluten",
	"N":  "Nuts",
	"S":  "Shellfish",
	"V":  "Vegetarian",
	"VG": "Vegan",
}

// canonicalCodes is the full set of codes the dish store understands.
var canonicalCodes = map[string]string{
	"D":  "Dairy",
	"N":  "Nuts",
	"G":  "Gluten",
	"V":  "Vegetarian",
	"S":  "Vegan",
	"E":  "Eggs",
	"F":  "Fish",
	"C":  "Crustaceans",
	"SE": "Sesame",
	"SY": "Soy",
	"M":  "Mustard",
}

// ingredientCodes maps common ingredient words to allergen codes for
// inference over dish descriptions.
var ingredientCodes = map[string]string{
	// Dairy
	"milk": "D", "cheese": "D", "cream": "D", "butter": "D", "yogurt": "D",
	"crema": "D", "queso": "D", "mozzarella": "D", "parmesan": "D", "ricotta": "D",
	"burrata": "D", "mascarpone": "D", "béchamel": "D", "alfredo": "D",
	// Nuts
	"almond": "N", "peanut": "N", "walnut": "N", "pistachio": "N", "cashew": "N",
	"hazelnut": "N", "pecan": "N", "pine nut": "N", "macadamia": "N",
	// Gluten
	"bread": "G", "flour": "G", "wheat": "G", "panko": "G", "crumb": "G",
	"pasta": "G", "noodle": "G", "tortilla": "G", "croissant": "G", "brioche": "G",
	// Fish
	"salmon": "F", "tuna": "F", "cod": "F", "halibut": "F", "sea bass": "F",
	"snapper": "F", "trout": "F", "anchovy": "F", "mackerel": "F",
	// Crustaceans
	"shrimp": "C", "prawn": "C", "crab": "C", "lobster": "C", "crawfish": "C",
	// Eggs
	"egg": "E", "aioli": "E", "mayonnaise": "E", "hollandaise": "E", "meringue": "E",
	// Sesame
	"sesame": "SE", "tahini": "SE",
	// Soy
	"soy": "SY", "tofu": "SY", "edamame": "SY", "miso": "SY", "tempeh": "SY",
	// Mustard
	"mustard": "M", "dijon": "M",
}

// DefaultCodes returns a copy of the house SOP legend.
func DefaultCodes() map[string]string {
	out := make(map[string]string, len(defaultCodes))
	for k, v := range defaultCodes {
		out[k] = v
	}
	return out
}

// CanonicalCodes returns a copy of the full known code table.
func CanonicalCodes() map[string]string {
	out := make(map[string]string, len(canonicalCodes))
	for k, v := range canonicalCodes {
		out[k] = v
	}
	return out
}

// IsCanonical reports whether code is in the known code table.
func IsCanonical(code string) bool {
	_, ok := canonicalCodes[strings.ToUpper(code)]
	return ok
}

// ParseCodes parses a code list like "d, n,v*" into sorted canonical
// codes, dropping anything unknown.
func ParseCodes(s string) []string {
	seen := make(map[string]bool)
	for _, part := range strings.Split(strings.ToUpper(strings.ReplaceAll(s, " ", "")), ",") {
		code := strings.TrimRight(strings.TrimSpace(part), "*")
		if code != "" && IsCanonical(code) {
			seen[code] = true
		}
	}
	codes := make([]string, 0, len(seen))
	for c := range seen {
		codes = append(codes, c)
	}
	sort.Strings(codes)
	return codes
}

// InferFromIngredients scans a dish description for known ingredient
// words and returns the sorted set of implied allergen codes.
func InferFromIngredients(text string) []string {
	lower := strings.ToLower(text)
	seen := make(map[string]bool)
	for ingredient, code := range ingredientCodes {
		if strings.Contains(lower, ingredient) {
			seen[code] = true
		}
	}
	codes := make([]string, 0, len(seen))
	for c := range seen {
		codes = append(codes, c)
	}
	sort.Strings(codes)
	return codes
}
