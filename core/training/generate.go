package training

import (
	"encoding/binary"
	"fmt"
	"strings"

	"github.com/zeebo/blake3"

	"github.com/rshdesign/redliner/core/rules"
)

// Rule is a correction rule mined from training data.
type Rule struct {
	RuleID      string      `json:"rule_id"`
	Category    string      `json:"category"`
	Severity    string      `json:"severity"`
	Description string      `json:"description"`
	Details     RuleDetails `json:"details"`
}

// RuleDetails carries the pattern behind a rule.
type RuleDetails struct {
	PatternType   string  `json:"pattern_type"`
	OriginalText  string  `json:"original_text"`
	CorrectedText string  `json:"corrected_text"`
	Occurrences   int     `json:"occurrences"`
	LearnedFrom   string  `json:"learned_from"`
	Confidence    float64 `json:"confidence"`
}

// ruleTemplates phrases a rule description per category.
var ruleTemplates = map[rules.Category]string{
	rules.CategorySpelling:    `Correct spelling: %q -> %q`,
	rules.CategoryDiacritics:  `Use proper diacritics: %q -> %q`,
	rules.CategoryPunctuation: `Fix punctuation: %q -> %q`,
	rules.CategorySeparator:   `Use correct separator: %q -> %q`,
	rules.CategoryCase:        `Apply correct case: %q -> %q`,
	rules.CategoryPrice:       `Format price correctly: %q -> %q`,
	rules.CategoryTerminology: `Use house terminology: %q -> %q`,
	rules.CategoryAllergen:    `Correct allergen codes: %q -> %q`,
}

type pattern struct {
	original  string
	corrected string
}

// GenerateRules mines rules from corrections. A word pattern must recur
// minOccurrences times to become a rule, except reviewed terminology
// pairs, which are admitted on a single sighting.
func GenerateRules(corrections []Correction, minOccurrences int) []Rule {
	if minOccurrences < 1 {
		minOccurrences = 1
	}

	// Group replacement patterns by category, preserving encounter order.
	type patternCount struct {
		counts map[pattern]int
		order  []pattern
	}
	byCategory := make(map[rules.Category]*patternCount)
	var catOrder []rules.Category

	for _, corr := range corrections {
		if corr.Type != "replacement" {
			continue
		}
		for _, wd := range corr.WordDiffs {
			if wd.Operation != "replace" {
				continue
			}
			p := pattern{
				original:  strings.ToLower(wd.OriginalWords),
				corrected: strings.ToLower(wd.CorrectedWords),
			}
			pc := byCategory[corr.Category]
			if pc == nil {
				pc = &patternCount{counts: make(map[pattern]int)}
				byCategory[corr.Category] = pc
				catOrder = append(catOrder, corr.Category)
			}
			if pc.counts[p] == 0 {
				pc.order = append(pc.order, p)
			}
			pc.counts[p]++
		}
	}

	var generated []Rule
	for _, cat := range catOrder {
		pc := byCategory[cat]
		for _, p := range pc.order {
			n := pc.counts[p]
			if n < minOccurrences && !rules.IsKnownPair(p.original, p.corrected) {
				continue
			}
			generated = append(generated, makeRule(cat, p, n))
		}
	}
	return generated
}

func makeRule(cat rules.Category, p pattern, occurrences int) Rule {
	tmpl, ok := ruleTemplates[cat]
	if !ok {
		tmpl = `Fix: %q -> %q`
	}
	confidence := float64(occurrences) / 10.0
	if confidence > 1.0 {
		confidence = 1.0
	}
	return Rule{
		RuleID:      ruleID(cat, p),
		Category:    titleCategory(cat),
		Severity:    "Medium",
		Description: fmt.Sprintf(tmpl, p.original, p.corrected),
		Details: RuleDetails{
			PatternType:   string(cat),
			OriginalText:  p.original,
			CorrectedText: p.corrected,
			Occurrences:   occurrences,
			LearnedFrom:   "training_data",
			Confidence:    confidence,
		},
	}
}

// ruleID derives a stable four-digit ID from the pattern content.
func ruleID(cat rules.Category, p pattern) string {
	sum := blake3.Sum256([]byte(p.original + "\x00" + p.corrected))
	n := binary.BigEndian.Uint32(sum[:4]) % 10000
	return fmt.Sprintf("LEARNED-%s-%04d", strings.ToUpper(string(cat)), n)
}

// titleCategory turns "price_format" into "Price Format".
func titleCategory(cat rules.Category) string {
	words := strings.Split(string(cat), "_")
	for i, w := range words {
		if w == "" {
			continue
		}
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}
