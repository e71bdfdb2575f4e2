package training

import (
	"fmt"
	"strings"

	"github.com/rshdesign/redliner/core/rules"
)

// Example is one mined input/output pair used to enrich the system
// prompt.
type Example struct {
	Input    string         `json:"input"`
	Output   string         `json:"output"`
	Category rules.Category `json:"category"`
}

// promptCategories is the order categories are surfaced in the enhanced
// prompt.
var promptCategories = []rules.Category{
	rules.CategorySpelling,
	rules.CategoryDiacritics,
	rules.CategorySeparator,
	rules.CategoryPunctuation,
	rules.CategoryPrice,
}

// maxPromptExamples caps how many mined examples the prompt absorbs.
const maxPromptExamples = 10

// examplesPerCategory caps how many examples one category contributes.
const examplesPerCategory = 2

// Optimizer injects mined correction examples into a system prompt.
type Optimizer struct {
	prompt   string
	examples []Example
}

// NewOptimizer wraps the current system prompt.
func NewOptimizer(currentPrompt string) *Optimizer {
	return &Optimizer{prompt: currentPrompt}
}

// AddCorrections mines examples from replacement corrections.
func (o *Optimizer) AddCorrections(corrections []Correction) {
	for _, corr := range corrections {
		if corr.Type != "replacement" {
			continue
		}
		o.examples = append(o.examples, Example{
			Input:    corr.Original,
			Output:   corr.Corrected,
			Category: corr.Category,
		})
	}
}

// Examples returns the mined examples.
func (o *Optimizer) Examples() []Example {
	return o.examples
}

// EnhancedPrompt returns the prompt with a learned-examples section, up
// to two examples per category in a fixed category order. When the
// prompt already has an EXAMPLES: section the learned block is inserted
// just before it.
func (o *Optimizer) EnhancedPrompt() string {
	byCategory := make(map[rules.Category][]Example)
	for _, ex := range o.examples {
		byCategory[ex.Category] = append(byCategory[ex.Category], ex)
	}

	var b strings.Builder
	b.WriteString("\n\nLEARNED EXAMPLES FROM TRAINING DATA:\n")

	count := 0
	for _, cat := range promptCategories {
		exs := byCategory[cat]
		if len(exs) == 0 || count >= maxPromptExamples {
			continue
		}
		fmt.Fprintf(&b, "\n%s:\n", titleCategory(cat))
		for i, ex := range exs {
			if i >= examplesPerCategory || count >= maxPromptExamples {
				break
			}
			fmt.Fprintf(&b, "Input: %q\n", ex.Input)
			fmt.Fprintf(&b, "Output: %q\n\n", ex.Output)
			count++
		}
	}

	section := b.String()
	if strings.Contains(o.prompt, "EXAMPLES:") {
		return strings.Replace(o.prompt, "EXAMPLES:", section+"\n\nEXAMPLES:", 1)
	}
	return o.prompt + section
}
