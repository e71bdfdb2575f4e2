package rules

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// Category labels the kind of change a correction makes.
type Category string

const (
	CategoryTerminology Category = "terminology"
	CategoryAllergen    Category = "allergen"
	CategoryDiacritics  Category = "diacritics"
	CategoryCase        Category = "case_change"
	CategoryPunctuation Category = "punctuation"
	CategorySeparator   Category = "separator"
	CategoryPrice       Category = "price_format"
	CategorySpelling    Category = "spelling"
	CategoryRewrite     Category = "rewrite"
)

// Classifier decides whether a correction belongs to its category.
type Classifier struct {
	Category Category
	Match    func(original, corrected string) bool
}

// Classifiers returns the default classifier chain, most specific first.
// Categorize walks it in order and returns the first match; callers may
// build their own chain to change the behavior.
func Classifiers() []Classifier {
	return []Classifier{
		{CategoryTerminology, isTerminologyChange},
		{CategoryAllergen, isAllergenChange},
		{CategoryDiacritics, isDiacriticChange},
		{CategoryCase, isCaseChange},
		{CategorySeparator, isSeparatorChange},
		{CategoryPunctuation, isPunctuationChange},
		{CategoryPrice, isPriceChange},
		{CategorySpelling, isSpellingChange},
	}
}

// Categorize labels a correction using the default classifier chain.
// Corrections no classifier claims are rewrites.
func Categorize(original, corrected string) Category {
	return CategorizeWith(Classifiers(), original, corrected)
}

// CategorizeWith labels a correction using a caller-supplied chain.
func CategorizeWith(chain []Classifier, original, corrected string) Category {
	for _, c := range chain {
		if c.Match(original, corrected) {
			return c.Category
		}
	}
	return CategoryRewrite
}

// isTerminologyChange reports whether the changed words form a reviewed
// pair or a one-way house preference.
func isTerminologyChange(original, corrected string) bool {
	if IsKnownPair(original, corrected) {
		return true
	}
	origOnly, corrOnly := changedWords(original, corrected)
	if len(origOnly) == 0 && len(corrOnly) == 0 {
		return false
	}
	joined := strings.Join(corrOnly, " ")
	for _, ow := range origOnly {
		if IsTerminologyCorrection(ow) {
			want := TerminologyCorrection(ow)
			if want == joined {
				return true
			}
			for _, cw := range corrOnly {
				if want == canon(cw) {
					return true
				}
			}
		}
		for _, cw := range corrOnly {
			if IsKnownPair(ow, cw) {
				return true
			}
		}
	}
	return false
}

// allergenTailRe matches a trailing run of uppercase allergen codes,
// optionally comma-separated or starred, at the end of a menu line.
var allergenTailRe = regexp.MustCompile(`[,\s]+\*?[DNGVSEFC][DNGVSEFC,*\s]*$`)

// isAllergenChange reports whether the texts differ only in their
// trailing allergen codes.
func isAllergenChange(original, corrected string) bool {
	origBody := allergenTailRe.ReplaceAllString(original, "")
	corrBody := allergenTailRe.ReplaceAllString(corrected, "")
	if origBody == original && corrBody == corrected {
		return false
	}
	return strings.TrimSpace(origBody) == strings.TrimSpace(corrBody)
}

// isDiacriticChange reports whether the texts are equal once combining
// marks are stripped, ignoring case.
func isDiacriticChange(original, corrected string) bool {
	if original == corrected {
		return false
	}
	ob, cb := stripMarks(original), stripMarks(corrected)
	if ob == original && cb == corrected {
		return false
	}
	return strings.EqualFold(ob, cb)
}

func stripMarks(s string) string {
	var b strings.Builder
	for _, r := range norm.NFD.String(s) {
		if unicode.Is(unicode.Mn, r) {
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func isCaseChange(original, corrected string) bool {
	return original != corrected && strings.EqualFold(original, corrected)
}

var punctRe = regexp.MustCompile(`[^\w\s]`)

// isPunctuationChange reports whether the texts are equal once all
// punctuation is removed.
func isPunctuationChange(original, corrected string) bool {
	return original != corrected &&
		punctRe.ReplaceAllString(original, "") == punctRe.ReplaceAllString(corrected, "")
}

// isSeparatorChange catches the " / " vs " - " swap between a dish name
// and its description.
func isSeparatorChange(original, corrected string) bool {
	return (strings.Contains(corrected, " / ") && strings.Contains(original, " - ")) ||
		(strings.Contains(corrected, " - ") && strings.Contains(original, " / "))
}

func isPriceChange(original, corrected string) bool {
	return strings.ContainsAny(original, "$|") || strings.ContainsAny(corrected, "$|")
}

// isSpellingChange is a loose heuristic: similar length, same word
// count, at most two words changed.
func isSpellingChange(original, corrected string) bool {
	if original == corrected {
		return false
	}
	diff := len(original) - len(corrected)
	if diff < -3 || diff > 3 {
		return false
	}
	origWords := wordSet(original)
	corrWords := wordSet(corrected)
	if len(origWords) != len(corrWords) {
		return false
	}
	changed := 0
	for w := range origWords {
		if !corrWords[w] {
			changed++
		}
	}
	for w := range corrWords {
		if !origWords[w] {
			changed++
		}
	}
	return changed > 0 && changed <= 2
}

func wordSet(s string) map[string]bool {
	set := make(map[string]bool)
	for _, w := range strings.Fields(strings.ToLower(s)) {
		set[w] = true
	}
	return set
}

// changedWords returns the words present on only one side of the
// correction, in order of appearance.
func changedWords(original, corrected string) (origOnly, corrOnly []string) {
	origWords := wordSet(original)
	corrWords := wordSet(corrected)
	for _, w := range strings.Fields(strings.ToLower(original)) {
		if !corrWords[w] {
			origOnly = append(origOnly, w)
		}
	}
	for _, w := range strings.Fields(strings.ToLower(corrected)) {
		if !origWords[w] {
			corrOnly = append(corrOnly, w)
		}
	}
	return origOnly, corrOnly
}
