// Package dishes is the dish knowledge store: approved descriptions and
// allergen codes learned from training pairs and human corrections, kept
// in SQLite and consulted during correction runs.
package dishes

import (
	"context"
	"database/sql"
	"encoding/json"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/rshdesign/redliner/core/cache"
	coreerrors "github.com/rshdesign/redliner/core/errors"
	"github.com/rshdesign/redliner/core/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS dishes (
	id               TEXT PRIMARY KEY,
	name             TEXT NOT NULL,
	name_normalized  TEXT NOT NULL,
	restaurant       TEXT NOT NULL DEFAULT 'global',
	full_line        TEXT,
	allergens        TEXT,
	ingredients      TEXT,
	description      TEXT,
	price            TEXT,
	source           TEXT,
	confidence       REAL NOT NULL DEFAULT 0.5,
	correction_count INTEGER NOT NULL DEFAULT 1,
	created_at       TEXT NOT NULL,
	updated_at       TEXT NOT NULL,
	notes            TEXT,
	UNIQUE (name_normalized, restaurant)
);
CREATE INDEX IF NOT EXISTS idx_dishes_normalized ON dishes (name_normalized);
`

// Dish is one approved entry in the knowledge store.
type Dish struct {
	ID              string    `json:"id"`
	Name            string    `json:"dish_name"`
	NameNormalized  string    `json:"dish_name_normalized"`
	Restaurant      string    `json:"restaurant"`
	FullLine        string    `json:"full_line,omitempty"`
	Allergens       []string  `json:"allergens"`
	Ingredients     []string  `json:"ingredients,omitempty"`
	Description     string    `json:"description,omitempty"`
	Price           string    `json:"price,omitempty"`
	Source          string    `json:"source"`
	Confidence      float64   `json:"confidence"`
	CorrectionCount int       `json:"correction_count"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
	Notes           string    `json:"notes,omitempty"`
}

// Stats summarizes the store contents.
type Stats struct {
	TotalDishes  int            `json:"total_dishes"`
	ByRestaurant map[string]int `json:"by_restaurant"`
	BySource     map[string]int `json:"by_source"`
	DriverType   string         `json:"driver_type"`
}

// Store is a SQLite-backed dish database with an LRU read cache in
// front of Lookup.
type Store struct {
	db    *sql.DB
	cache cache.Cache[string, *Dish]
}

// Open opens (creating if needed) the dish store at path.
func Open(path string) (*Store, error) {
	db, err := sqlite.Open(path)
	if err != nil {
		return nil, coreerrors.NewIO("open", path, err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, coreerrors.Wrap(err, "create dishes schema")
	}
	return &Store{
		db:    db,
		cache: cache.NewLRUCache[string, *Dish](cache.DefaultConfig()),
	}, nil
}

// Close releases the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// CacheStats exposes the read-cache counters.
func (s *Store) CacheStats() cache.Stats {
	return s.cache.Stats()
}

func cacheKey(normalized, restaurant string) string {
	return normalized + "\x00" + restaurant
}

// Lookup finds a dish by name. A restaurant match is preferred; any
// restaurant is accepted as a fallback. Returns ErrNotFound when the
// dish is unknown.
func (s *Store) Lookup(ctx context.Context, name, restaurant string) (*Dish, error) {
	normalized := Normalize(name)
	if normalized == "" {
		return nil, coreerrors.NewValidation("name", "empty dish name")
	}

	if restaurant != "" {
		key := cacheKey(normalized, restaurant)
		if d, ok := s.cache.Get(key); ok {
			return d, nil
		}
		d, err := s.scanOne(ctx,
			`SELECT `+dishColumns+` FROM dishes WHERE name_normalized = ? AND restaurant = ?`,
			normalized, restaurant)
		if err == nil {
			s.cache.Put(key, d)
			return d, nil
		}
		if !coreerrors.Is(err, coreerrors.ErrNotFound) {
			return nil, err
		}
	}

	// Cross-restaurant fallback rows cache under the empty key only, so
	// an Upsert's invalidation reaches them no matter which restaurant
	// originally asked.
	fallbackKey := cacheKey(normalized, "")
	if d, ok := s.cache.Get(fallbackKey); ok {
		return d, nil
	}
	d, err := s.scanOne(ctx,
		`SELECT `+dishColumns+` FROM dishes WHERE name_normalized = ? ORDER BY confidence DESC LIMIT 1`,
		normalized)
	if err != nil {
		return nil, err
	}
	s.cache.Put(fallbackKey, d)
	return d, nil
}

// LookupDish adapts Lookup to the correction client's store contract.
func (s *Store) LookupDish(ctx context.Context, name, restaurant string) ([]string, float64, bool) {
	d, err := s.Lookup(ctx, name, restaurant)
	if err != nil {
		return nil, 0, false
	}
	return d.Allergens, d.Confidence, true
}

// UpsertParams carries the optional fields of an Upsert. Zero values
// leave existing entry fields untouched.
type UpsertParams struct {
	Name        string
	Allergens   []string
	Restaurant  string
	Ingredients []string
	Description string
	FullLine    string
	Price       string
	Source      string
	Confidence  float64
	Notes       string
}

// Upsert adds a dish or folds new information into an existing entry.
// Re-learning an entry bumps its correction count and ramps confidence
// by 0.1 up to 1.0.
func (s *Store) Upsert(ctx context.Context, p UpsertParams) (*Dish, error) {
	normalized := Normalize(p.Name)
	if normalized == "" {
		return nil, coreerrors.NewValidation("name", "empty dish name")
	}
	if p.Restaurant == "" {
		p.Restaurant = "global"
	}
	if p.Source == "" {
		p.Source = "training"
	}
	if p.Confidence == 0 {
		p.Confidence = 0.5
	}

	now := time.Now().UTC()

	existing, err := s.scanOne(ctx,
		`SELECT `+dishColumns+` FROM dishes WHERE name_normalized = ? AND restaurant = ?`,
		normalized, p.Restaurant)
	switch {
	case err == nil:
		existing.UpdatedAt = now
		existing.CorrectionCount++
		existing.Confidence = min1(existing.Confidence + 0.1)
		if len(p.Allergens) > 0 {
			existing.Allergens = sortedSet(p.Allergens)
		}
		if p.FullLine != "" {
			existing.FullLine = p.FullLine
		}
		if p.Price != "" {
			existing.Price = p.Price
		}
		if len(p.Ingredients) > 0 {
			existing.Ingredients = sortedSet(append(existing.Ingredients, p.Ingredients...))
		}
		if p.Description != "" {
			existing.Description = p.Description
		}
		if p.Notes != "" {
			existing.Notes = p.Notes
		}
		if err := s.update(ctx, existing); err != nil {
			return nil, err
		}
		s.invalidate(normalized, p.Restaurant)
		return existing, nil

	case coreerrors.Is(err, coreerrors.ErrNotFound):
		d := &Dish{
			ID:              uuid.NewString(),
			Name:            strings.TrimSpace(p.Name),
			NameNormalized:  normalized,
			Restaurant:      p.Restaurant,
			FullLine:        p.FullLine,
			Allergens:       sortedSet(p.Allergens),
			Ingredients:     sortedSet(p.Ingredients),
			Description:     p.Description,
			Price:           p.Price,
			Source:          p.Source,
			Confidence:      p.Confidence,
			CorrectionCount: 1,
			CreatedAt:       now,
			UpdatedAt:       now,
			Notes:           p.Notes,
		}
		if err := s.insert(ctx, d); err != nil {
			return nil, err
		}
		s.invalidate(normalized, p.Restaurant)
		return d, nil

	default:
		return nil, err
	}
}

// Search finds dishes whose normalized name contains any query word,
// ranked by word matches then confidence.
func (s *Store) Search(ctx context.Context, query, restaurant string, limit int) ([]*Dish, error) {
	if limit <= 0 {
		limit = 10
	}
	words := strings.Fields(Normalize(query))
	if len(words) == 0 {
		return nil, nil
	}

	q := `SELECT ` + dishColumns + ` FROM dishes`
	args := []any{}
	if restaurant != "" {
		q += ` WHERE restaurant = ?`
		args = append(args, restaurant)
	}

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, coreerrors.Wrap(err, "search dishes")
	}
	defer rows.Close()

	var results []*Dish
	for rows.Next() {
		d, err := scanDish(rows)
		if err != nil {
			return nil, err
		}
		if matchCount(d.NameNormalized, words) > 0 {
			results = append(results, d)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, coreerrors.Wrap(err, "search dishes")
	}

	sort.SliceStable(results, func(i, j int) bool {
		mi, mj := matchCount(results[i].NameNormalized, words), matchCount(results[j].NameNormalized, words)
		if mi != mj {
			return mi > mj
		}
		return results[i].Confidence > results[j].Confidence
	})
	if len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

// Stats counts entries by restaurant and source.
func (s *Store) Stats(ctx context.Context) (*Stats, error) {
	stats := &Stats{
		ByRestaurant: make(map[string]int),
		BySource:     make(map[string]int),
		DriverType:   sqlite.DriverType(),
	}

	rows, err := s.db.QueryContext(ctx, `SELECT restaurant, source FROM dishes`)
	if err != nil {
		return nil, coreerrors.Wrap(err, "dish stats")
	}
	defer rows.Close()

	for rows.Next() {
		var restaurant, source string
		if err := rows.Scan(&restaurant, &source); err != nil {
			return nil, coreerrors.Wrap(err, "dish stats")
		}
		stats.TotalDishes++
		stats.ByRestaurant[restaurant]++
		stats.BySource[source]++
	}
	return stats, rows.Err()
}

// ExportForPrompt renders the store as prompt context: approved lines
// grouped by restaurant, prices stripped.
func (s *Store) ExportForPrompt(ctx context.Context) (string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+dishColumns+` FROM dishes ORDER BY restaurant, name`)
	if err != nil {
		return "", coreerrors.Wrap(err, "export dishes")
	}
	defer rows.Close()

	byRestaurant := make(map[string][]*Dish)
	var order []string
	for rows.Next() {
		d, err := scanDish(rows)
		if err != nil {
			return "", err
		}
		if _, ok := byRestaurant[d.Restaurant]; !ok {
			order = append(order, d.Restaurant)
		}
		byRestaurant[d.Restaurant] = append(byRestaurant[d.Restaurant], d)
	}
	if err := rows.Err(); err != nil {
		return "", coreerrors.Wrap(err, "export dishes")
	}
	if len(order) == 0 {
		return "", nil
	}

	lines := []string{
		"KNOWN DISHES (from training data):",
		"Use these approved descriptions when reviewing menus.",
		"NOTE: Prices may vary - do NOT flag price differences as errors.",
	}
	for _, restaurant := range order {
		lines = append(lines, "", titleRestaurant(restaurant)+":")
		for _, d := range byRestaurant[restaurant] {
			switch {
			case d.FullLine != "":
				lines = append(lines, "  ✓ "+StripPrice(d.FullLine))
			case d.Description != "":
				lines = append(lines, "  - "+d.Name+", "+d.Description+" "+strings.Join(d.Allergens, ","))
			default:
				lines = append(lines, "  - "+d.Name+": "+strings.Join(d.Allergens, ","))
			}
		}
	}
	return strings.Join(lines, "\n"), nil
}

// Comparison reports how a submitted line relates to the approved one.
type Comparison struct {
	DishName            string  `json:"dish_name"`
	SubmittedLine       string  `json:"submitted_line"`
	ApprovedLine        string  `json:"approved_line"`
	ApprovedDescription string  `json:"approved_description"`
	Match               bool    `json:"match"`
	Confidence          float64 `json:"confidence"`
	CorrectionCount     int     `json:"correction_count"`
}

// Compare checks a menu line against the approved version on record.
// Prices are ignored on both sides. Returns ErrNotFound when the dish
// is unknown or has no approved line.
func (s *Store) Compare(ctx context.Context, line, restaurant string) (*Comparison, error) {
	name, _ := splitNameDescription(line)
	if name == "" {
		return nil, coreerrors.NewValidation("line", "no dish name")
	}

	known, err := s.Lookup(ctx, name, restaurant)
	if err != nil {
		return nil, err
	}
	if known.FullLine == "" {
		return nil, coreerrors.NewNotFound("approved line", name)
	}

	submitted := StripPrice(line)
	approved := StripPrice(known.FullLine)
	return &Comparison{
		DishName:            name,
		SubmittedLine:       line,
		ApprovedLine:        known.FullLine,
		ApprovedDescription: approved,
		Match:               submitted == approved,
		Confidence:          known.Confidence,
		CorrectionCount:     known.CorrectionCount,
	}, nil
}

const dishColumns = `id, name, name_normalized, restaurant, full_line, allergens,
	ingredients, description, price, source, confidence, correction_count,
	created_at, updated_at, notes`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDish(r rowScanner) (*Dish, error) {
	var (
		d                            Dish
		fullLine, desc, price, notes sql.NullString
		allergens, ingredients       sql.NullString
		createdAt, updatedAt         string
	)
	err := r.Scan(&d.ID, &d.Name, &d.NameNormalized, &d.Restaurant, &fullLine,
		&allergens, &ingredients, &desc, &price, &d.Source, &d.Confidence,
		&d.CorrectionCount, &createdAt, &updatedAt, &notes)
	if err != nil {
		return nil, err
	}
	d.FullLine = fullLine.String
	d.Description = desc.String
	d.Price = price.String
	d.Notes = notes.String
	d.Allergens = decodeList(allergens.String)
	d.Ingredients = decodeList(ingredients.String)
	d.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	d.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)
	return &d, nil
}

func (s *Store) scanOne(ctx context.Context, query string, args ...any) (*Dish, error) {
	d, err := scanDish(s.db.QueryRowContext(ctx, query, args...))
	if err == sql.ErrNoRows {
		return nil, coreerrors.NewNotFound("dish", "")
	}
	if err != nil {
		return nil, coreerrors.Wrap(err, "query dish")
	}
	return d, nil
}

func (s *Store) insert(ctx context.Context, d *Dish) error {
	_, err := s.db.ExecContext(ctx, `INSERT INTO dishes (`+dishColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		d.ID, d.Name, d.NameNormalized, d.Restaurant, d.FullLine,
		encodeList(d.Allergens), encodeList(d.Ingredients), d.Description,
		d.Price, d.Source, d.Confidence, d.CorrectionCount,
		d.CreatedAt.Format(time.RFC3339), d.UpdatedAt.Format(time.RFC3339), d.Notes)
	return coreerrors.Wrap(err, "insert dish")
}

func (s *Store) update(ctx context.Context, d *Dish) error {
	_, err := s.db.ExecContext(ctx, `UPDATE dishes SET
		full_line = ?, allergens = ?, ingredients = ?, description = ?,
		price = ?, confidence = ?, correction_count = ?, updated_at = ?, notes = ?
		WHERE id = ?`,
		d.FullLine, encodeList(d.Allergens), encodeList(d.Ingredients),
		d.Description, d.Price, d.Confidence, d.CorrectionCount,
		d.UpdatedAt.Format(time.RFC3339), d.Notes, d.ID)
	return coreerrors.Wrap(err, "update dish")
}

func (s *Store) invalidate(normalized, restaurant string) {
	s.cache.Remove(cacheKey(normalized, restaurant))
	s.cache.Remove(cacheKey(normalized, ""))
}

func encodeList(list []string) string {
	if len(list) == 0 {
		return "[]"
	}
	data, err := json.Marshal(list)
	if err != nil {
		return "[]"
	}
	return string(data)
}

func decodeList(s string) []string {
	if s == "" {
		return nil
	}
	var list []string
	if err := json.Unmarshal([]byte(s), &list); err != nil {
		return nil
	}
	if len(list) == 0 {
		return nil
	}
	return list
}

func sortedSet(list []string) []string {
	seen := make(map[string]bool)
	for _, v := range list {
		if v = strings.TrimSpace(v); v != "" {
			seen[v] = true
		}
	}
	out := make([]string, 0, len(seen))
	for v := range seen {
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}

func min1(f float64) float64 {
	if f > 1.0 {
		return 1.0
	}
	return f
}

func matchCount(normalized string, words []string) int {
	n := 0
	for _, w := range words {
		if strings.Contains(normalized, w) {
			n++
		}
	}
	return n
}

func titleRestaurant(id string) string {
	words := strings.Split(strings.ReplaceAll(id, "_", " "), " ")
	for i, w := range words {
		if w == "" {
			continue
		}
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}
