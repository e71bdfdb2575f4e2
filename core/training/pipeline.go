package training

import (
	"encoding/hex"
	"encoding/json"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/zeebo/blake3"

	"github.com/rshdesign/redliner/core/errors"
	"github.com/rshdesign/redliner/internal/archive"
	"github.com/rshdesign/redliner/internal/logging"
)

// PairRef records one processed document pair in a session.
type PairRef struct {
	Original    string `json:"original"`
	Redlined    string `json:"redlined"`
	Corrections int    `json:"corrections"`
	Hash        string `json:"hash"`
}

// Session accumulates everything learned in one training run.
type Session struct {
	SessionID        string       `json:"session_id"`
	PairsProcessed   int          `json:"pairs_processed"`
	CorrectionsFound int          `json:"corrections_found"`
	RulesGenerated   int          `json:"rules_generated"`
	Pairs            []PairRef    `json:"pairs"`
	AllCorrections   []Correction `json:"all_corrections"`
	GeneratedRules   []Rule       `json:"generated_rules"`
}

// Pipeline coordinates pair analysis, rule generation and session
// persistence.
type Pipeline struct {
	dir      string
	analyzer *Analyzer
	session  Session
	seen     map[string]bool
}

// NewPipeline creates a pipeline writing session artifacts under dir.
func NewPipeline(dir string) (*Pipeline, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, errors.NewIO("create training directory", dir, err)
	}
	return &Pipeline{
		dir:      dir,
		analyzer: NewAnalyzer(),
		session: Session{
			SessionID: time.Now().Format("20060102_150405"),
		},
		seen: make(map[string]bool),
	}, nil
}

// SessionID returns the identifier of the current training session.
func (p *Pipeline) SessionID() string {
	return p.session.SessionID
}

// Session returns a snapshot of the accumulated session data.
func (p *Pipeline) Session() Session {
	return p.session
}

// IngestPair analyzes one document pair and folds its corrections into
// the session. A pair whose content hash was already processed is
// skipped and returns nil.
func (p *Pipeline) IngestPair(originalPath, redlinedPath string) (*PairAnalysis, error) {
	hash, err := pairHash(originalPath, redlinedPath)
	if err != nil {
		return nil, err
	}
	if p.seen[hash] {
		logging.Debug("skipping already processed pair",
			"original", filepath.Base(originalPath),
			"redlined", filepath.Base(redlinedPath))
		return nil, nil
	}

	analysis, err := p.analyzer.LoadPair(originalPath, redlinedPath)
	if err != nil {
		return nil, err
	}
	p.seen[hash] = true

	p.session.PairsProcessed++
	p.session.CorrectionsFound += len(analysis.Corrections)
	p.session.Pairs = append(p.session.Pairs, PairRef{
		Original:    originalPath,
		Redlined:    redlinedPath,
		Corrections: len(analysis.Corrections),
		Hash:        hash,
	})
	p.session.AllCorrections = append(p.session.AllCorrections, analysis.Corrections...)

	logging.Info("processed training pair",
		"original", filepath.Base(originalPath),
		"redlined", filepath.Base(redlinedPath),
		"corrections", len(analysis.Corrections),
		"format_changes", len(analysis.FormatChanges))

	return analysis, nil
}

// IngestDirectory discovers document pairs in dir and ingests each one.
// It returns the number of pairs processed.
func (p *Pipeline) IngestDirectory(dir string) (int, error) {
	pairs, err := DiscoverPairs(dir)
	if err != nil {
		return 0, err
	}

	processed := 0
	for _, pr := range pairs {
		if _, err := p.IngestPair(pr.Original, pr.Redlined); err != nil {
			logging.Warn("failed to process pair",
				"original", filepath.Base(pr.Original), "error", err)
			continue
		}
		processed++
	}
	return processed, nil
}

// GenerateRules mines rules from all accumulated corrections.
func (p *Pipeline) GenerateRules(minOccurrences int) []Rule {
	rules := GenerateRules(p.session.AllCorrections, minOccurrences)
	p.session.GeneratedRules = rules
	p.session.RulesGenerated = len(rules)

	logging.Info("generated rules",
		"corrections", len(p.session.AllCorrections), "rules", len(rules))
	return rules
}

// rulesFile is the JSON envelope for saved rules.
type rulesFile struct {
	GeneratedAt    string `json:"generated_at"`
	SessionID      string `json:"session_id"`
	PairsProcessed int    `json:"pairs_processed"`
	Rules          []Rule `json:"rules"`
}

// SaveRules writes the generated rules as JSON. An empty path defaults
// to learned_rules_<session>.json in the pipeline directory.
func (p *Pipeline) SaveRules(path string) (string, error) {
	if path == "" {
		path = filepath.Join(p.dir, "learned_rules_"+p.session.SessionID+".json")
	}
	out := rulesFile{
		GeneratedAt:    time.Now().Format(time.RFC3339),
		SessionID:      p.session.SessionID,
		PairsProcessed: p.session.PairsProcessed,
		Rules:          p.session.GeneratedRules,
	}
	if err := writeJSON(path, out); err != nil {
		return "", err
	}
	return path, nil
}

// SaveSession writes the full session data as JSON.
func (p *Pipeline) SaveSession() (string, error) {
	path := filepath.Join(p.dir, "session_"+p.session.SessionID+".json")
	if err := writeJSON(path, p.session); err != nil {
		return "", err
	}
	return path, nil
}

// OptimizedPrompt folds mined examples into the given system prompt and
// saves the result next to the session files.
func (p *Pipeline) OptimizedPrompt(currentPrompt string) (string, error) {
	opt := NewOptimizer(currentPrompt)
	opt.AddCorrections(p.session.AllCorrections)
	enhanced := opt.EnhancedPrompt()

	path := filepath.Join(p.dir, "optimized_prompt_"+p.session.SessionID+".txt")
	if err := os.WriteFile(path, []byte(enhanced), 0644); err != nil {
		return "", errors.NewIO("write optimized prompt", path, err)
	}
	return enhanced, nil
}

// Bundle archives the session as a .tar.gz or .tar.xz training bundle.
func (p *Pipeline) Bundle(dstPath string) error {
	stage, err := os.MkdirTemp("", "redliner-bundle-*")
	if err != nil {
		return errors.NewIO("create bundle staging directory", "", err)
	}
	defer os.RemoveAll(stage)

	manifest := archive.BundleManifest{
		Version:     "1",
		SessionID:   p.session.SessionID,
		CreatedAt:   time.Now().Format(time.RFC3339),
		Pairs:       p.session.PairsProcessed,
		Corrections: p.session.CorrectionsFound,
		Rules:       p.session.RulesGenerated,
	}
	if err := writeJSON(filepath.Join(stage, "manifest.json"), manifest); err != nil {
		return err
	}
	if err := writeJSON(filepath.Join(stage, "session.json"), p.session); err != nil {
		return err
	}
	if len(p.session.GeneratedRules) > 0 {
		out := rulesFile{
			GeneratedAt:    manifest.CreatedAt,
			SessionID:      p.session.SessionID,
			PairsProcessed: p.session.PairsProcessed,
			Rules:          p.session.GeneratedRules,
		}
		if err := writeJSON(filepath.Join(stage, "learned_rules.json"), out); err != nil {
			return err
		}
	}

	return archive.Create(stage, dstPath)
}

// MergeRules appends the generated rules to an existing rules JSON file
// and writes the merged set to outputPath.
func (p *Pipeline) MergeRules(existingPath, outputPath string) error {
	data, err := os.ReadFile(existingPath)
	if err != nil {
		return errors.NewIO("read rules file", existingPath, err)
	}
	var existing rulesFile
	if err := json.Unmarshal(data, &existing); err != nil {
		return errors.NewParse("rules json", existingPath, err.Error())
	}
	existing.Rules = append(existing.Rules, p.session.GeneratedRules...)
	return writeJSON(outputPath, existing)
}

// pairHash derives a stable pair identity from both file contents.
func pairHash(originalPath, redlinedPath string) (string, error) {
	orig, err := os.ReadFile(originalPath)
	if err != nil {
		return "", errors.NewIO("read original document", originalPath, err)
	}
	redl, err := os.ReadFile(redlinedPath)
	if err != nil {
		return "", errors.NewIO("read redlined document", redlinedPath, err)
	}
	h := blake3.New()
	h.Write(orig)
	h.Write([]byte{0})
	h.Write(redl)
	return hex.EncodeToString(h.Sum(nil)), nil
}

func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return errors.Wrap(err, "encode json")
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return errors.NewIO("write json file", path, err)
	}
	return nil
}

// Pair is a discovered original/redlined document pair.
type Pair struct {
	Original string
	Redlined string
}

// DiscoverPairs scans a directory for original/redlined docx pairs.
// Originals are files whose name contains "original"; each is matched
// to the redlined file whose normalized name is most similar.
func DiscoverPairs(dir string) ([]Pair, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, errors.NewIO("read training directory", dir, err)
	}

	var originals, redlined []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(strings.ToLower(e.Name()), ".docx") {
			continue
		}
		name := strings.ToLower(e.Name())
		switch {
		case strings.Contains(name, "original"):
			originals = append(originals, e.Name())
		case strings.Contains(name, "redlined") || strings.Contains(name, "corrected"):
			redlined = append(redlined, e.Name())
		}
	}
	sort.Strings(originals)

	var pairs []Pair
	for _, orig := range originals {
		best, score := "", 0.0
		key := pairKey(orig)
		for _, redl := range redlined {
			if s := textSimilarity(key, pairKey(redl)); s > score {
				best, score = redl, s
			}
		}
		if best == "" || score < 0.6 {
			logging.Warn("no redlined match for original", "file", orig)
			continue
		}
		pairs = append(pairs, Pair{
			Original: filepath.Join(dir, orig),
			Redlined: filepath.Join(dir, best),
		})
	}
	return pairs, nil
}

// versionRe strips version suffixes like "v2" so pairs at different
// revisions still match.
var versionRe = regexp.MustCompile(`v\d+`)

// pairKey normalizes a filename for pair matching: role words, version
// suffixes and separators are removed.
func pairKey(name string) string {
	key := strings.ToLower(strings.TrimSuffix(name, filepath.Ext(name)))
	for _, word := range []string{"original", "redlined", "corrected", "copy"} {
		key = strings.ReplaceAll(key, word, "")
	}
	key = versionRe.ReplaceAllString(key, "")
	key = strings.Map(func(r rune) rune {
		if r == '_' || r == '-' || r == ' ' || r == '.' {
			return -1
		}
		return r
	}, key)
	return key
}
