package dishes

import (
	"context"
	"regexp"
	"strings"

	"github.com/rshdesign/redliner/core/allergen"
	coreerrors "github.com/rshdesign/redliner/core/errors"
)

var allergenTailRe = regexp.MustCompile(`(?i)\s+\*?([DNGVSEFC,*]+)\s*$`)

// StoreAllergenCorrection records an allergen fix observed in training
// data: the line keeps its description, only the codes changed.
func (s *Store) StoreAllergenCorrection(ctx context.Context, dishLine, originalCodes, correctedCodes, restaurant string) (*Dish, error) {
	dishDesc := strings.TrimSpace(codesTailRe.ReplaceAllString(dishLine, ""))
	name, description := splitNameDescription(dishDesc)
	if len(name) < 2 {
		return nil, coreerrors.NewValidation("line", "no dish name")
	}

	codes := allergen.ParseCodes(correctedCodes)
	if len(codes) == 0 {
		return nil, coreerrors.NewValidation("codes", "no valid allergen codes")
	}

	return s.Upsert(ctx, UpsertParams{
		Name:        name,
		Allergens:   codes,
		Restaurant:  restaurant,
		Ingredients: splitIngredients(description),
		Description: description,
		Source:      "training",
		Notes:       "Learned: " + originalCodes + " → " + correctedCodes,
	})
}

// LearnFromCorrection stores the full corrected line as the approved
// version of the dish, decomposed into name, description, allergens,
// and price.
func (s *Store) LearnFromCorrection(ctx context.Context, originalLine, correctedLine, restaurant string) (*Dish, error) {
	price := ""
	line := strings.TrimSpace(correctedLine)
	if m := priceTailRe.FindStringSubmatch(line); m != nil {
		price = strings.TrimSpace(m[0])
		line = StripPrice(line)
	}

	var codes []string
	if m := allergenTailRe.FindStringSubmatch(line); m != nil {
		codes = allergen.ParseCodes(m[1])
		if len(codes) > 0 {
			line = strings.TrimSpace(allergenTailRe.ReplaceAllString(line, ""))
		}
	}

	name, description := splitNameDescription(line)
	if len(name) < 2 {
		return nil, coreerrors.NewValidation("line", "no dish name")
	}

	return s.Upsert(ctx, UpsertParams{
		Name:        name,
		Allergens:   codes,
		Restaurant:  restaurant,
		Ingredients: splitIngredients(description),
		Description: description,
		FullLine:    correctedLine,
		Price:       price,
		Source:      "training",
		Notes:       "Learned from correction. Original had different description.",
	})
}
