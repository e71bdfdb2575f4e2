// Package rules holds the house correction knowledge: terminology pairs
// the kitchen has signed off on, one-way word preferences, abbreviation
// expansions, and context hints that tell the corrector when a pair
// applies. The training pipeline consults this package so a pair seen
// only once in training data is still admitted as a rule.
package rules

import "strings"

// Pair is an (original, corrected) word pair, lowercased.
type Pair struct {
	Original  string
	Corrected string
}

// knownPairs are terminology preferences reviewed by hand. Bidirectional
// pairs appear twice, once per direction.
var knownPairs = map[Pair]bool{
	// mayo/aioli intentionally absent: clients may prefer either.

	// Abbreviations
	{"bbq", "barbeque"}: true, {"barbeque", "bbq"}: true,
	{"bbq", "barbecue"}: true, {"barbecue", "bbq"}: true,

	// Raw preparations
	{"tartare", "tartar"}: true, {"tartar", "tartare"}: true,

	// Cocktail terminology
	{"crust", "rim"}:       true, // glass rim, never "salt crust"
	{"garnished", "topped"}: true,
	{"garnish", "top"}:      true,

	// Diacritics, French terms
	{"puree", "purée"}: true, {"purée", "puree"}: true,
	{"flambe", "flambé"}: true, {"flambé", "flambe"}: true,
	{"cafe", "café"}: true, {"café", "cafe"}: true,
	{"creme", "crème"}: true, {"crème", "creme"}: true,
	{"souffle", "soufflé"}: true, {"soufflé", "souffle"}: true,
	{"saute", "sauté"}: true, {"sauté", "saute"}: true,
	{"entree", "entrée"}: true, {"entrée", "entree"}: true,
	{"pate", "pâté"}: true, {"pâté", "pate"}: true,
	{"naive", "naïve"}: true, {"naïve", "naive"}: true,

	// Diacritics, Spanish terms
	{"jalapeno", "jalapeño"}: true, {"jalapeño", "jalapeno"}: true,
	{"habanero", "habañero"}: true, {"habañero", "habanero"}: true,
	{"pina", "piña"}: true, {"piña", "pina"}: true,
	{"nino", "niño"}: true, {"niño", "nino"}: true,
	{"ano", "año"}: true, {"año", "ano"}: true,

	// Common misspellings
	{"cesar", "caesar"}: true, {"caesar", "cesar"}: true,
	{"ceasar", "caesar"}: true, {"caesar", "ceasar"}: true,
	{"parmesan", "parmigiano"}: true, {"parmigiano", "parmesan"}: true,
	{"mozarella", "mozzarella"}: true, {"mozzarella", "mozarella"}: true,
	{"cappucino", "cappuccino"}: true, {"cappuccino", "cappucino"}: true,
	{"expresso", "espresso"}: true, {"espresso", "expresso"}: true,
	{"biters", "bitters"}: true, {"bitters", "biters"}: true,

	// Spelling variations
	{"yogurt", "yoghurt"}: true, {"yoghurt", "yogurt"}: true,
	{"donut", "doughnut"}: true, {"doughnut", "donut"}: true,
	{"ketchup", "catsup"}: true, {"catsup", "ketchup"}: true,

	// Term standardization
	{"shrimp", "prawn"}: true, {"prawn", "shrimp"}: true,
}

// terminologyCorrections are one-way house preferences: the corrected
// term is always the right one, regardless of direction.
var terminologyCorrections = map[string]string{
	"crust":   "rim",            // cocktails: "salt rim" not "salt crust"
	"bbq":     "barbeque sauce", // expand the abbreviation
	"sorbete": "sorbet",         // Spanish to English/French
}

// Hint describes when a correction pair applies, so the corrector can be
// more confident the next time it sees the dish.
type Hint struct {
	ItemTypes []string
	Keywords  []string
	Note      string
}

var contextHints = map[Pair]Hint{
	{"crust", "rim"}: {
		ItemTypes: []string{"cocktail", "drink", "beverage"},
		Keywords:  []string{"paloma", "margarita", "martini", "rim", "salt", "sugar", "chili"},
		Note:      `Glass rim terminology - use "rim" for cocktail glasses, not "crust"`,
	},
}

// knownAbbreviations maps common menu abbreviations to their expansions.
var knownAbbreviations = map[string]string{
	"bbq":  "barbeque",
	"msg":  "monosodium glutamate",
	"evoo": "extra virgin olive oil",
	"oj":   "orange juice",
	"pb":   "peanut butter",
	"gf":   "gluten free",
	"v":    "vegetarian",
	"vg":   "vegan",
}

func canon(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// IsKnownPair reports whether (original, corrected) is a reviewed
// terminology pair. Comparison is case-insensitive.
func IsKnownPair(original, corrected string) bool {
	return knownPairs[Pair{canon(original), canon(corrected)}]
}

// IsKnownAbbreviation reports whether text is a known menu abbreviation.
func IsKnownAbbreviation(text string) bool {
	_, ok := knownAbbreviations[canon(text)]
	return ok
}

// ExpandAbbreviation returns the expansion for a known abbreviation, or
// the input unchanged.
func ExpandAbbreviation(text string) string {
	if exp, ok := knownAbbreviations[canon(text)]; ok {
		return exp
	}
	return text
}

// IsTerminologyCorrection reports whether original has a one-way house
// correction.
func IsTerminologyCorrection(original string) bool {
	_, ok := terminologyCorrections[canon(original)]
	return ok
}

// TerminologyCorrection returns the preferred term for original, or the
// input unchanged when no preference exists.
func TerminologyCorrection(original string) string {
	if corr, ok := terminologyCorrections[canon(original)]; ok {
		return corr
	}
	return original
}

// HintFor returns the context hint for a correction pair, if one exists.
func HintFor(original, corrected string) (Hint, bool) {
	h, ok := contextHints[Pair{canon(original), canon(corrected)}]
	return h, ok
}
