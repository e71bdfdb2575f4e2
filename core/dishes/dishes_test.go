package dishes

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	coreerrors "github.com/rshdesign/redliner/core/errors"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	dir := t.TempDir()
	store, err := Open(filepath.Join(dir, "dishes.db"))
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestNormalize(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{
			name: "lowercase and trim",
			in:   "  Tuna Tartare  ",
			want: "tuna tartare",
		},
		{
			name: "punctuation stripped",
			in:   "Chef's \"Special\" Tacos!",
			want: "chefs special tacos",
		},
		{
			name: "whitespace collapsed",
			in:   "Crème   Brûlée",
			want: "crème brûlée",
		},
		{
			name: "empty",
			in:   "   ",
			want: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Normalize(tt.in); got != tt.want {
				t.Errorf("Normalize(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestExtractRestaurant(t *testing.T) {
	tests := []struct {
		filename string
		want     string
	}{
		{"Casa Azul Menu Revision 3.docx", "casa_azul"},
		{"La Perla brief.docx", "la_perla"},
		{"Solana 2024.docx", "solana"},
		{"dinner.docx", "dinner"},
		{"/menus/Verde Submission Final.docx", "verde"},
	}

	for _, tt := range tests {
		t.Run(tt.filename, func(t *testing.T) {
			if got := ExtractRestaurant(tt.filename); got != tt.want {
				t.Errorf("ExtractRestaurant(%q) = %q, want %q", tt.filename, got, tt.want)
			}
		})
	}
}

func TestStripPrice(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Tuna Tartare, avocado D,G 18", "Tuna Tartare, avocado D,G"},
		{"Short Rib 32.50", "Short Rib"},
		{"No Price Here", "No Price Here"},
		{"Dozen Oysters 12 24", "Dozen Oysters 12"},
	}

	for _, tt := range tests {
		if got := StripPrice(tt.in); got != tt.want {
			t.Errorf("StripPrice(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestUpsertAndLookup(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	created, err := store.Upsert(ctx, UpsertParams{
		Name:       "Tuna Tartare Tostada",
		Allergens:  []string{"G", "D"},
		Restaurant: "casa_azul",
		Source:     "manual",
	})
	if err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}
	if created.ID == "" {
		t.Error("Upsert() created entry without ID")
	}
	if strings.Join(created.Allergens, ",") != "D,G" {
		t.Errorf("allergens = %v, want sorted [D G]", created.Allergens)
	}
	if created.CorrectionCount != 1 {
		t.Errorf("correction_count = %d, want 1", created.CorrectionCount)
	}

	got, err := store.Lookup(ctx, "tuna tartare tostada", "casa_azul")
	if err != nil {
		t.Fatalf("Lookup() error = %v", err)
	}
	if got.ID != created.ID {
		t.Errorf("Lookup() ID = %q, want %q", got.ID, created.ID)
	}

	// Lookup without restaurant falls back to any restaurant
	got, err = store.Lookup(ctx, "Tuna Tartare Tostada!", "")
	if err != nil {
		t.Fatalf("Lookup() without restaurant error = %v", err)
	}
	if got.Restaurant != "casa_azul" {
		t.Errorf("Lookup() restaurant = %q, want casa_azul", got.Restaurant)
	}
}

func TestUpsertConfidenceRamp(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	first, err := store.Upsert(ctx, UpsertParams{Name: "Mole Negro", Restaurant: "global"})
	if err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}
	if first.Confidence != 0.5 {
		t.Errorf("initial confidence = %v, want 0.5", first.Confidence)
	}

	var last *Dish
	for i := 0; i < 10; i++ {
		last, err = store.Upsert(ctx, UpsertParams{Name: "Mole Negro", Restaurant: "global"})
		if err != nil {
			t.Fatalf("Upsert() #%d error = %v", i, err)
		}
	}
	if last.Confidence > 1.0 {
		t.Errorf("confidence = %v, must cap at 1.0", last.Confidence)
	}
	if last.CorrectionCount != 11 {
		t.Errorf("correction_count = %d, want 11", last.CorrectionCount)
	}
	if last.ID != first.ID {
		t.Error("repeated Upsert created a new entry instead of updating")
	}
}

func TestLookupNotFound(t *testing.T) {
	store := openTestStore(t)

	_, err := store.Lookup(context.Background(), "Unknown Dish", "")
	if !coreerrors.Is(err, coreerrors.ErrNotFound) {
		t.Errorf("Lookup() error = %v, want ErrNotFound", err)
	}
}

func TestLookupDishAdapter(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	if _, _, ok := store.LookupDish(ctx, "nope", ""); ok {
		t.Error("LookupDish() ok = true for unknown dish")
	}

	if _, err := store.Upsert(ctx, UpsertParams{
		Name:      "Aguachile",
		Allergens: []string{"F"},
	}); err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}

	codes, confidence, ok := store.LookupDish(ctx, "Aguachile", "")
	if !ok {
		t.Fatal("LookupDish() ok = false for known dish")
	}
	if strings.Join(codes, ",") != "F" {
		t.Errorf("codes = %v, want [F]", codes)
	}
	if confidence != 0.5 {
		t.Errorf("confidence = %v, want 0.5", confidence)
	}
}

func TestLearnFromCorrection(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	corrected := "Enfrijochiladas, black bean sauce, scrambled eggs, bacon, pico de gallo, guajillo crema, cotija cheese D,G 15"
	d, err := store.LearnFromCorrection(ctx,
		"Enfrijochiladas, black bean sauce, scrambled eggs, pork chorizo, pico de gallo D,G 15",
		corrected, "casa_azul")
	if err != nil {
		t.Fatalf("LearnFromCorrection() error = %v", err)
	}

	if d.Name != "Enfrijochiladas" {
		t.Errorf("name = %q, want Enfrijochiladas", d.Name)
	}
	if d.FullLine != corrected {
		t.Errorf("full_line = %q, want the complete corrected line", d.FullLine)
	}
	if strings.Join(d.Allergens, ",") != "D,G" {
		t.Errorf("allergens = %v, want [D G]", d.Allergens)
	}
	if d.Price != "15" {
		t.Errorf("price = %q, want 15", d.Price)
	}
	if d.Description == "" || !strings.Contains(d.Description, "black bean sauce") {
		t.Errorf("description = %q, want ingredient list", d.Description)
	}
}

func TestLearnFromCorrectionRejectsEmpty(t *testing.T) {
	store := openTestStore(t)

	if _, err := store.LearnFromCorrection(context.Background(), "", "X", "r"); err == nil {
		t.Error("LearnFromCorrection() with one-letter name should fail")
	}
}

func TestStoreAllergenCorrection(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	d, err := store.StoreAllergenCorrection(ctx,
		"Tuna Tartare Tostada, avocado mousse, hibiscus ponzu D,G",
		"d", "d,g,f", "casa_azul")
	if err != nil {
		t.Fatalf("StoreAllergenCorrection() error = %v", err)
	}

	if d.Name != "Tuna Tartare Tostada" {
		t.Errorf("name = %q, want Tuna Tartare Tostada", d.Name)
	}
	if strings.Join(d.Allergens, ",") != "D,F,G" {
		t.Errorf("allergens = %v, want [D F G]", d.Allergens)
	}
	if !strings.Contains(d.Notes, "d → d,g,f") {
		t.Errorf("notes = %q, want learned transition recorded", d.Notes)
	}
}

func TestStoreAllergenCorrectionNoCodes(t *testing.T) {
	store := openTestStore(t)

	if _, err := store.StoreAllergenCorrection(context.Background(),
		"Some Dish, stuff", "d", "zzz", "r"); err == nil {
		t.Error("StoreAllergenCorrection() with invalid codes should fail")
	}
}

func TestSearch(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	seed := []UpsertParams{
		{Name: "Tuna Tartare Tostada", Restaurant: "casa_azul"},
		{Name: "Tuna Crudo", Restaurant: "la_perla"},
		{Name: "Short Rib", Restaurant: "casa_azul"},
	}
	for _, p := range seed {
		if _, err := store.Upsert(ctx, p); err != nil {
			t.Fatalf("Upsert(%q) error = %v", p.Name, err)
		}
	}

	results, err := store.Search(ctx, "tuna", "", 10)
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("Search(tuna) returned %d results, want 2", len(results))
	}

	results, err = store.Search(ctx, "tuna", "la_perla", 10)
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(results) != 1 || results[0].Name != "Tuna Crudo" {
		t.Errorf("Search(tuna, la_perla) = %v, want only Tuna Crudo", len(results))
	}

	results, err = store.Search(ctx, "", "", 10)
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(results) != 0 {
		t.Errorf("Search(empty) returned %d results, want 0", len(results))
	}
}

func TestStats(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	if _, err := store.Upsert(ctx, UpsertParams{Name: "A", Restaurant: "r1", Source: "manual"}); err != nil {
		t.Fatal(err)
	}
	if _, err := store.Upsert(ctx, UpsertParams{Name: "B", Restaurant: "r1"}); err != nil {
		t.Fatal(err)
	}
	if _, err := store.Upsert(ctx, UpsertParams{Name: "C", Restaurant: "r2"}); err != nil {
		t.Fatal(err)
	}

	stats, err := store.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats() error = %v", err)
	}
	if stats.TotalDishes != 3 {
		t.Errorf("TotalDishes = %d, want 3", stats.TotalDishes)
	}
	if stats.ByRestaurant["r1"] != 2 {
		t.Errorf("ByRestaurant[r1] = %d, want 2", stats.ByRestaurant["r1"])
	}
	if stats.BySource["manual"] != 1 {
		t.Errorf("BySource[manual] = %d, want 1", stats.BySource["manual"])
	}
	if stats.DriverType == "" {
		t.Error("DriverType should not be empty")
	}
}

func TestExportForPrompt(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	t.Run("empty store exports nothing", func(t *testing.T) {
		out, err := store.ExportForPrompt(ctx)
		if err != nil {
			t.Fatalf("ExportForPrompt() error = %v", err)
		}
		if out != "" {
			t.Errorf("ExportForPrompt() = %q, want empty", out)
		}
	})

	if _, err := store.Upsert(ctx, UpsertParams{
		Name:       "Enfrijochiladas",
		Restaurant: "casa_azul",
		FullLine:   "Enfrijochiladas, black bean sauce D,G 15",
	}); err != nil {
		t.Fatal(err)
	}
	if _, err := store.Upsert(ctx, UpsertParams{
		Name:       "Aguachile",
		Restaurant: "casa_azul",
		Allergens:  []string{"F"},
	}); err != nil {
		t.Fatal(err)
	}

	out, err := store.ExportForPrompt(ctx)
	if err != nil {
		t.Fatalf("ExportForPrompt() error = %v", err)
	}
	if !strings.Contains(out, "KNOWN DISHES") {
		t.Error("export missing header")
	}
	if !strings.Contains(out, "Casa Azul:") {
		t.Errorf("export missing restaurant heading:\n%s", out)
	}
	if !strings.Contains(out, "✓ Enfrijochiladas, black bean sauce D,G") {
		t.Errorf("export should show approved line without price:\n%s", out)
	}
	if strings.Contains(out, "D,G 15") {
		t.Error("export must strip prices from approved lines")
	}
	if !strings.Contains(out, "Aguachile: F") {
		t.Errorf("export missing allergen-only fallback:\n%s", out)
	}
}

func TestCompare(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	if _, err := store.Upsert(ctx, UpsertParams{
		Name:       "Enfrijochiladas",
		Restaurant: "casa_azul",
		FullLine:   "Enfrijochiladas, black bean sauce, cotija cheese D,G 15",
	}); err != nil {
		t.Fatal(err)
	}

	t.Run("price difference still matches", func(t *testing.T) {
		cmp, err := store.Compare(ctx, "Enfrijochiladas, black bean sauce, cotija cheese D,G 18", "casa_azul")
		if err != nil {
			t.Fatalf("Compare() error = %v", err)
		}
		if !cmp.Match {
			t.Error("Compare() match = false, prices must be ignored")
		}
	})

	t.Run("description difference flags mismatch", func(t *testing.T) {
		cmp, err := store.Compare(ctx, "Enfrijochiladas, black bean sauce, chorizo D,G 15", "casa_azul")
		if err != nil {
			t.Fatalf("Compare() error = %v", err)
		}
		if cmp.Match {
			t.Error("Compare() match = true for changed description")
		}
	})

	t.Run("unknown dish", func(t *testing.T) {
		if _, err := store.Compare(ctx, "Mystery Dish, stuff", ""); !coreerrors.Is(err, coreerrors.ErrNotFound) {
			t.Errorf("Compare() error = %v, want ErrNotFound", err)
		}
	})
}

func TestLookupCacheInvalidation(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	if _, err := store.Upsert(ctx, UpsertParams{Name: "Pozole", Restaurant: "r", Allergens: []string{"G"}}); err != nil {
		t.Fatal(err)
	}
	if _, err := store.Lookup(ctx, "Pozole", "r"); err != nil {
		t.Fatal(err)
	}

	// Cached entry must not mask the update.
	if _, err := store.Upsert(ctx, UpsertParams{Name: "Pozole", Restaurant: "r", Allergens: []string{"D", "G"}}); err != nil {
		t.Fatal(err)
	}
	got, err := store.Lookup(ctx, "Pozole", "r")
	if err != nil {
		t.Fatal(err)
	}
	if strings.Join(got.Allergens, ",") != "D,G" {
		t.Errorf("allergens after update = %v, want [D G]", got.Allergens)
	}
}

func TestLookupFallbackCacheInvalidation(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	if _, err := store.Upsert(ctx, UpsertParams{Name: "Pozole", Restaurant: "casa_azul", Allergens: []string{"G"}}); err != nil {
		t.Fatal(err)
	}
	// Fallback hit for a restaurant without its own row.
	d, err := store.Lookup(ctx, "Pozole", "verde")
	if err != nil {
		t.Fatal(err)
	}
	if strings.Join(d.Allergens, ",") != "G" {
		t.Fatalf("fallback allergens = %v, want [G]", d.Allergens)
	}

	// An update to the source row must reach every fallback reader,
	// including ones that cached under a different restaurant.
	if _, err := store.Upsert(ctx, UpsertParams{Name: "Pozole", Restaurant: "casa_azul", Allergens: []string{"D", "G"}}); err != nil {
		t.Fatal(err)
	}
	got, err := store.Lookup(ctx, "Pozole", "verde")
	if err != nil {
		t.Fatal(err)
	}
	if strings.Join(got.Allergens, ",") != "D,G" {
		t.Errorf("fallback allergens after update = %v, want [D G]", got.Allergens)
	}
}

func TestOpenCreatesFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sub", "dishes.db")

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	store, err := Open(path)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer store.Close()

	if _, err := store.Upsert(context.Background(), UpsertParams{Name: "Test"}); err != nil {
		t.Fatalf("Upsert() on fresh store error = %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Errorf("database file not created: %v", err)
	}
}
