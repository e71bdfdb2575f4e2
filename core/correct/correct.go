// Package correct calls the OpenAI chat API to fix menu text according to
// the house style rules. Every entry point degrades to returning its input:
// a failed call never blocks a document run.
package correct

import (
	"context"
	"sort"
	"strconv"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/rshdesign/redliner/core/allergen"
	coreerrors "github.com/rshdesign/redliner/core/errors"
	"github.com/rshdesign/redliner/internal/logging"
)

// DefaultModel is used when no model is configured.
const DefaultModel = "gpt-4o"

const systemPrompt = `You are an expert menu editor for RSH Design. Your task is to correct menu item text according to strict formatting guidelines.

CRITICAL RULES:
1. Return ONLY the corrected text - no explanations, no comments, no markdown

2. PRESERVE EXISTING CAPITALIZATION - BE VERY CONSERVATIVE:
   - DO NOT change the capitalization of dish names, section headers, or titles
   - DO NOT lowercase words that are already capitalized (they are intentional)
   - DO NOT change "The Spark", "El Primer Encuentro", "Chilean Sea Bass", etc.
   - Only change capitalization if something is ALL CAPS that shouldn't be
   - Keep descriptions after the dish name in their original case

3. Fix ONLY clear spelling errors:
   - "tartar" → "tartare" (for raw fish/meat preparations)
   - "pre-fix" or "prefix" → "prix fixe" (French term for fixed-price menu)
   - "avacado" → "avocado"
   - "mozarella" → "mozzarella"
   - "parmesian" → "parmesan"
   - "Ceasar/Cesar" → "Caesar"

4. Formatting rules:
   - DO NOT change ingredient separators - keep commas as commas, keep hyphens as hyphens
   - DO NOT split compound words (yuzu-lime, cacao-ancho, cucumber-cilantro, huitlacoche-stuffed)
   - Dual prices: use " | " (space-bar-space) to separate two prices, not "/"
   - Enforce diacritics: jalapeño, crème brûlée, purée, soufflé, flambéed, etc.
   - Add asterisk (*) after items containing raw or undercooked ingredients (raw fish, tartare, carpaccio, caviar, oysters, raw egg)

5. DO NOT CHANGE:
   - Section headers like "The Spark – "El Primer Encuentro""
   - Dish names like "Chilean Sea Bass en Pipián Verde", "Tuna Tartare Tostada"
   - Title capitalization like "A Love Story", "Chocolate, Rose & Raspberry"
   - Words like "one" in "Choose one"
   - Compound words with hyphens (yuzu-lime, cacao-ancho, huitlacoche-stuffed)

6. If the text is already correct, return it UNCHANGED

EXAMPLES:
Input: "Tuna Tartar Tostada, avocado mousse, hibiscus ponzu D,G"
Output: "Tuna Tartare Tostada, avocado mousse, hibiscus ponzu * D,G"

Input: "Filete de Wagyu, australian Wagyu tenderloin, soft quail egg"
Output: "Filete de Wagyu, australian Wagyu tenderloin, soft quail egg *"

Input: "The Spark – "El Primer Encuentro""
Output: "The Spark – "El Primer Encuentro""

Input: "Chilean Sea Bass en Pipián Verde, seared chilean sea bass"
Output: "Chilean Sea Bass en Pipián Verde, seared chilean sea bass"

Input: "Chocolate, Rose & Raspberry, dark chocolate tart"
Output: "Chocolate, Rose & Raspberry, dark chocolate tart"

Input: "roasted plantain purée, shaved truffle D,N"
Output: "roasted plantain purée, shaved truffle D,N"
`

const allergenPrompt = `You are an allergen expert. Given a dish name and description, identify likely allergens.
Return ONLY comma-separated allergen codes:
D=Dairy, N=Nuts, G=Gluten, V=Vegetarian, S=Vegan, E=Eggs, F=Fish, C=Crustaceans, SE=Sesame, SY=Soy, M=Mustard

Example: D,N,G`

// DishLookup answers queries against the dish knowledge store.
// Implementations return ok=false when the dish is unknown.
type DishLookup interface {
	LookupDish(ctx context.Context, name, restaurant string) (allergens []string, confidence float64, ok bool)
}

// Client corrects menu text through the chat completions API.
// It satisfies the redline engine's Corrector contract.
type Client struct {
	api   openai.Client
	model string
	codes map[string]string
	store DishLookup
}

// New builds a Client. The key is required; the model falls back to
// DefaultModel when empty.
func New(apiKey, model string) (*Client, error) {
	if apiKey == "" {
		return nil, coreerrors.Wrap(coreerrors.ErrMissingConfig, "OPENAI_API_KEY is not set")
	}
	if model == "" {
		model = DefaultModel
	}
	return &Client{
		api:   openai.NewClient(option.WithAPIKey(apiKey)),
		model: model,
		codes: allergen.DefaultCodes(),
	}, nil
}

// SetAllergenCodes replaces the allergen vocabulary for this client.
// The map is copied; later caller mutations have no effect.
func (c *Client) SetAllergenCodes(codes map[string]string) {
	copied := make(map[string]string, len(codes))
	for k, v := range codes {
		copied[k] = v
	}
	c.codes = copied
}

// SetDishLookup attaches a dish knowledge store used for prompt context
// and allergen suggestions.
func (c *Client) SetDishLookup(store DishLookup) {
	c.store = store
}

// Correct fixes a single menu line. Any API failure is logged and the
// original text comes back unchanged.
func (c *Client) Correct(ctx context.Context, text string) string {
	out, err := c.TryCorrect(ctx, text)
	if err != nil {
		logging.CorrectionError("correct", err)
		return text
	}
	return out
}

// TryCorrect is Correct without the fallback: the transport error is
// surfaced so wrappers can decide whether to retry.
func (c *Client) TryCorrect(ctx context.Context, text string) (string, error) {
	if strings.TrimSpace(text) == "" {
		return text, nil
	}
	return c.complete(ctx, systemPrompt, text, 500)
}

// CorrectWithContext corrects text with extra SOP rules and dish-store
// knowledge folded into the user message.
func (c *Client) CorrectWithContext(ctx context.Context, text, sopRules, restaurant string) string {
	if strings.TrimSpace(text) == "" {
		return text
	}

	userMessage := buildUserMessage(text, sopRules, c.dishContext(ctx, text, restaurant))

	out, err := c.complete(ctx, systemPrompt, userMessage, 500)
	if err != nil {
		logging.CorrectionError("correct_with_context", err)
		return text
	}
	return out
}

// SuggestAllergens proposes allergen codes for a dish. The store wins
// outright above the confidence floor; otherwise ingredient inference,
// then the model as a last resort. Results are restricted to the
// configured vocabulary.
func (c *Client) SuggestAllergens(ctx context.Context, dishName, description, restaurant string) []string {
	suggested := make(map[string]bool)

	if c.store != nil {
		if codes, confidence, ok := c.store.LookupDish(ctx, dishName, restaurant); ok && confidence > 0.7 {
			return codes
		}
	}
	for _, code := range allergen.InferFromIngredients(dishName + " " + description) {
		suggested[code] = true
	}

	if len(suggested) == 0 {
		resp, err := c.complete(ctx, allergenPrompt, "Dish: "+dishName+"\nDescription: "+description, 50)
		if err != nil {
			logging.CorrectionError("suggest_allergens", err, "dish", dishName)
		} else {
			for _, code := range parseAllergenResponse(resp, c.codes) {
				suggested[code] = true
			}
		}
	}

	codes := make([]string, 0, len(suggested))
	for code := range suggested {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	return codes
}

func (c *Client) complete(ctx context.Context, system, user string, maxTokens int64) (string, error) {
	resp, err := c.api.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: openai.ChatModel(c.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(system),
			openai.UserMessage(user),
		},
		Temperature: openai.Float(0.1),
		MaxTokens:   openai.Int(maxTokens),
	})
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", coreerrors.NewCorrection("complete", "empty response", nil)
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

// dishContext summarizes what the store and the ingredient scan know
// about the line, for inclusion in the prompt.
func (c *Client) dishContext(ctx context.Context, text, restaurant string) string {
	var parts []string

	dishName := dishNameFromLine(text)
	if c.store != nil && dishName != "" {
		if codes, confidence, ok := c.store.LookupDish(ctx, dishName, restaurant); ok {
			parts = append(parts, "Known: "+dishName+" = "+strings.Join(codes, ",")+
				" (confidence: "+formatPercent(confidence)+")")
		}
	}
	if inferred := allergen.InferFromIngredients(text); len(inferred) > 0 {
		parts = append(parts, "Inferred from ingredients: "+strings.Join(inferred, ","))
	}

	return strings.Join(parts, "\n")
}

// dishNameFromLine takes the head of the line, up to the first comma or
// spaced dash, as the dish name.
func dishNameFromLine(text string) string {
	name := text
	if i := strings.Index(name, ","); i >= 0 {
		name = name[:i]
	}
	if i := strings.Index(name, " - "); i >= 0 {
		name = name[:i]
	}
	return strings.TrimSpace(name)
}

func buildUserMessage(text, sopRules, dishContext string) string {
	if sopRules == "" && dishContext == "" {
		return text
	}
	var parts []string
	if sopRules != "" {
		parts = append(parts, "SOP Context:\n"+sopRules)
	}
	if dishContext != "" {
		parts = append(parts, "Known Dish Allergens:\n"+dishContext)
	}
	return strings.Join(parts, "\n") + "\n\nMenu Item:\n" + text
}

// parseAllergenResponse extracts valid codes from a model reply,
// keeping only those present in the vocabulary.
func parseAllergenResponse(resp string, codes map[string]string) []string {
	var out []string
	for _, code := range strings.Split(strings.ToUpper(strings.TrimSpace(resp)), ",") {
		code = strings.TrimSpace(code)
		if code == "" {
			continue
		}
		if _, ok := codes[code]; ok {
			out = append(out, code)
		} else if allergen.IsCanonical(code) {
			out = append(out, code)
		}
	}
	return out
}

func formatPercent(f float64) string {
	return strconv.Itoa(int(f*100+0.5)) + "%"
}
