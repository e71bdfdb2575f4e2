// Command redliner corrects restaurant menu documents with tracked
// changes. It provides commands for single and bulk processing, menu text
// extraction, format linting, the dish knowledge store, and the training
// pipeline.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/alecthomas/kong"
	"github.com/joho/godotenv"

	"github.com/rshdesign/redliner/core/bulk"
	"github.com/rshdesign/redliner/core/correct"
	"github.com/rshdesign/redliner/core/dishes"
	"github.com/rshdesign/redliner/core/docx"
	"github.com/rshdesign/redliner/core/lint"
	"github.com/rshdesign/redliner/core/pdftext"
	"github.com/rshdesign/redliner/core/redline"
	"github.com/rshdesign/redliner/core/training"
	"github.com/rshdesign/redliner/internal/archive"
	"github.com/rshdesign/redliner/internal/logging"
	"github.com/rshdesign/redliner/internal/validation"
	"github.com/rshdesign/redliner/internal/web"
)

const version = "0.4.0"

// CLI defines the command-line interface for redliner.
var CLI struct {
	// Global flags
	Verbose bool `help:"Enable debug logging" short:"v"`
	LogJSON bool `name:"log-json" help:"Emit logs as JSON"`

	Process ProcessCmd `cmd:"" help:"Redline a single menu document"`
	Bulk    BulkCmd    `cmd:"" help:"Redline every menu document in a folder"`
	Extract ExtractCmd `cmd:"" help:"Extract clean menu text from a document"`
	PDF     PDFCmd     `cmd:"" help:"Extract text from a PDF menu"`
	Lint    LintCmd    `cmd:"" help:"Check a document against menu formatting SOP"`
	Dishes  DishGroup  `cmd:"" help:"Dish knowledge store operations"`
	Train   TrainGroup `cmd:"" help:"Training pipeline operations"`
	Serve   ServeCmd   `cmd:"" help:"Start the web upload server"`
	Version VersionCmd `cmd:"" help:"Print version information"`
}

// DishGroup contains knowledge store operations.
type DishGroup struct {
	Stats  DishStatsCmd  `cmd:"" help:"Show knowledge store statistics"`
	Search DishSearchCmd `cmd:"" help:"Search dishes by name"`
	Export DishExportCmd `cmd:"" help:"Export dish knowledge for prompt context"`
}

// TrainGroup contains training pipeline operations.
type TrainGroup struct {
	Ingest   TrainIngestCmd   `cmd:"" help:"Analyze one original/redlined pair"`
	Discover TrainDiscoverCmd `cmd:"" help:"Discover and analyze pairs in a folder"`
	Rules    TrainRulesCmd    `cmd:"" help:"Generate correction rules from a training folder"`
	Bundle   TrainBundleCmd   `cmd:"" help:"Package a training session as an archive"`
	Inspect  TrainInspectCmd  `cmd:"" help:"Show a training bundle's manifest and contents"`
}

// initLogging applies the global logging flags.
func initLogging() {
	level := logging.LevelInfo
	if CLI.Verbose {
		level = logging.LevelDebug
	}
	format := logging.FormatText
	if CLI.LogJSON {
		format = logging.FormatJSON
	}
	logging.InitLogger(level, format)
}

// newCorrector builds the OpenAI-backed corrector from the environment.
// The API key must be present before any document is touched.
func newCorrector(dbPath string) (redline.Corrector, func(), error) {
	apiKey := os.Getenv("OPENAI_API_KEY")
	client, err := correct.New(apiKey, os.Getenv("OPENAI_MODEL"))
	if err != nil {
		return nil, nil, err
	}

	cleanup := func() {}
	if dbPath != "" {
		store, err := dishes.Open(dbPath)
		if err != nil {
			return nil, nil, fmt.Errorf("open dish store: %w", err)
		}
		client.SetDishLookup(store)
		cleanup = func() { store.Close() }
	}

	return correct.NewRateLimited(client, 0, 0), cleanup, nil
}

// boundaryMarker resolves the marker flag against the environment.
func boundaryMarker(flag string) string {
	if flag != "" {
		return flag
	}
	return os.Getenv("BOUNDARY_MARKER")
}

// printJSON writes v as indented JSON to stdout.
func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// ProcessCmd redlines a single document.
type ProcessCmd struct {
	Path   string `arg:"" help:"Menu document to process" type:"existingfile"`
	Out    string `help:"Output path (default: input with _Corrected suffix)" type:"path"`
	Marker string `help:"Boundary marker sentence"`
	DB     string `help:"Dish knowledge SQLite database" type:"path"`
}

func (c *ProcessCmd) Run() error {
	if err := validation.ValidatePath(c.Path); err != nil {
		return fmt.Errorf("invalid input path: %w", err)
	}

	corrector, cleanup, err := newCorrector(c.DB)
	if err != nil {
		return err
	}
	defer cleanup()

	r := redline.New(boundaryMarker(c.Marker))
	outputPath, stats, err := r.ProcessFile(context.Background(), c.Path, corrector, c.Out)
	if err != nil {
		return fmt.Errorf("failed to process document: %w", err)
	}

	fmt.Printf("Processed: %s\n", c.Path)
	fmt.Printf("  Paragraphs: %d\n", stats.Paragraphs)
	fmt.Printf("  Modified: %d\n", stats.Modified)
	if stats.SkippedRedlined > 0 {
		fmt.Printf("  Skipped (already redlined): %d\n", stats.SkippedRedlined)
	}
	if stats.SkippedMixedBold > 0 {
		fmt.Printf("  Skipped (mixed bold): %d\n", stats.SkippedMixedBold)
	}
	if stats.CoursesAdded > 0 {
		fmt.Printf("  Courses numbered: %d\n", stats.CoursesAdded)
	}
	fmt.Printf("Created: %s\n", outputPath)
	return nil
}

// BulkCmd redlines every document in a folder.
type BulkCmd struct {
	Dir    string        `arg:"" help:"Folder of menu documents" type:"existingdir"`
	Out    string        `help:"Output folder (default: same as input)" type:"path"`
	Marker string        `help:"Boundary marker sentence"`
	DB     string        `help:"Dish knowledge SQLite database" type:"path"`
	Delay  time.Duration `help:"Delay between documents" default:"2s"`
}

func (c *BulkCmd) Run() error {
	corrector, cleanup, err := newCorrector(c.DB)
	if err != nil {
		return err
	}
	defer cleanup()

	p := bulk.New(redline.New(boundaryMarker(c.Marker)), corrector, c.Delay)
	summary, err := p.Run(context.Background(), c.Dir, c.Out)
	if err != nil {
		return err
	}

	fmt.Printf("Processed folder: %s\n", c.Dir)
	fmt.Printf("  Found: %d\n", summary.Found)
	fmt.Printf("  Succeeded: %d\n", len(summary.Succeeded))
	fmt.Printf("  Failed: %d\n", len(summary.Failed))
	fmt.Printf("  Elapsed: %s\n", summary.ElapsedStr)
	for _, f := range summary.Failed {
		fmt.Printf("  [FAIL] %s: %s\n", f.File, f.Error)
	}
	return nil
}

// ExtractCmd extracts clean menu text from a document.
type ExtractCmd struct {
	Path string `arg:"" help:"Menu document" type:"existingfile"`
	JSON bool   `help:"Emit the full extraction payload as JSON"`
}

func (c *ExtractCmd) Run() error {
	data, err := os.ReadFile(c.Path)
	if err != nil {
		return fmt.Errorf("failed to read document: %w", err)
	}
	result, err := docx.ExtractMenuText(data)
	if err != nil {
		return fmt.Errorf("failed to extract menu text: %w", err)
	}
	if c.JSON {
		return printJSON(result)
	}
	fmt.Println(result.CleanedMenuContent)
	return nil
}

// PDFCmd extracts text from a PDF menu.
type PDFCmd struct {
	Path string `arg:"" help:"PDF document" type:"existingfile"`
	JSON bool   `help:"Emit the full extraction payload as JSON"`
}

func (c *PDFCmd) Run() error {
	result, err := pdftext.Extract(c.Path)
	if err != nil {
		return fmt.Errorf("failed to extract PDF text: %w", err)
	}
	if c.JSON {
		return printJSON(result)
	}
	if !result.HasTextLayer {
		fmt.Fprintln(os.Stderr, "warning: no text layer detected, PDF may be scanned")
	}
	fmt.Println(result.FullText)
	return nil
}

// LintCmd checks a document against the menu formatting SOP.
type LintCmd struct {
	Path   string `arg:"" help:"Menu document" type:"existingfile"`
	Marker string `help:"Boundary marker sentence"`
}

func (c *LintCmd) Run() error {
	report, err := lint.LintFile(c.Path, boundaryMarker(c.Marker))
	if err != nil {
		return fmt.Errorf("failed to lint document: %w", err)
	}
	if err := printJSON(report); err != nil {
		return err
	}
	if !report.Passed {
		return fmt.Errorf("document failed %d formatting check(s)", len(report.Reasons))
	}
	return nil
}

// DishStatsCmd shows knowledge store statistics.
type DishStatsCmd struct {
	DB string `help:"Dish knowledge SQLite database" default:"dishes.db" type:"path"`
}

func (c *DishStatsCmd) Run() error {
	store, err := dishes.Open(c.DB)
	if err != nil {
		return fmt.Errorf("failed to open dish store: %w", err)
	}
	defer store.Close()

	stats, err := store.Stats(context.Background())
	if err != nil {
		return fmt.Errorf("failed to read stats: %w", err)
	}
	return printJSON(stats)
}

// DishSearchCmd searches dishes by name.
type DishSearchCmd struct {
	Query      string `arg:"" help:"Search terms"`
	DB         string `help:"Dish knowledge SQLite database" default:"dishes.db" type:"path"`
	Restaurant string `help:"Restrict to one restaurant"`
	Limit      int    `help:"Maximum results" default:"10"`
}

func (c *DishSearchCmd) Run() error {
	store, err := dishes.Open(c.DB)
	if err != nil {
		return fmt.Errorf("failed to open dish store: %w", err)
	}
	defer store.Close()

	found, err := store.Search(context.Background(), c.Query, c.Restaurant, c.Limit)
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}
	if len(found) == 0 {
		fmt.Println("No dishes found.")
		return nil
	}
	for _, d := range found {
		fmt.Printf("%s (%s)\n", d.Name, d.Restaurant)
		if len(d.Allergens) > 0 {
			fmt.Printf("  Allergens: %s\n", strings.Join(d.Allergens, ", "))
		}
		fmt.Printf("  Confidence: %.2f  Corrections: %d  Source: %s\n",
			d.Confidence, d.CorrectionCount, d.Source)
	}
	return nil
}

// DishExportCmd exports dish knowledge for prompt context.
type DishExportCmd struct {
	DB  string `help:"Dish knowledge SQLite database" default:"dishes.db" type:"path"`
	Out string `help:"Write to a file instead of stdout" type:"path"`
}

func (c *DishExportCmd) Run() error {
	store, err := dishes.Open(c.DB)
	if err != nil {
		return fmt.Errorf("failed to open dish store: %w", err)
	}
	defer store.Close()

	text, err := store.ExportForPrompt(context.Background())
	if err != nil {
		return fmt.Errorf("export failed: %w", err)
	}
	if c.Out != "" {
		if err := os.WriteFile(c.Out, []byte(text), 0o644); err != nil {
			return fmt.Errorf("failed to write export: %w", err)
		}
		fmt.Printf("Created: %s\n", c.Out)
		return nil
	}
	fmt.Println(text)
	return nil
}

// TrainIngestCmd analyzes one original/redlined pair.
type TrainIngestCmd struct {
	Original string `arg:"" help:"Original document" type:"existingfile"`
	Redlined string `arg:"" help:"Redlined document" type:"existingfile"`
	Out      string `help:"Training output folder" default:"training" type:"path"`
	Min      int    `help:"Minimum occurrences for a learned rule" default:"2"`
}

func (c *TrainIngestCmd) Run() error {
	p, err := training.NewPipeline(c.Out)
	if err != nil {
		return err
	}
	analysis, err := p.IngestPair(c.Original, c.Redlined)
	if err != nil {
		return fmt.Errorf("failed to analyze pair: %w", err)
	}
	if analysis == nil {
		fmt.Println("Pair already ingested this session.")
		return nil
	}

	p.GenerateRules(c.Min)
	return saveSessionOutputs(p)
}

// TrainDiscoverCmd discovers and analyzes pairs in a folder.
type TrainDiscoverCmd struct {
	Dir string `arg:"" help:"Folder of original/redlined documents" type:"existingdir"`
	Out string `help:"Training output folder" default:"training" type:"path"`
	Min int    `help:"Minimum occurrences for a learned rule" default:"2"`
}

func (c *TrainDiscoverCmd) Run() error {
	p, err := training.NewPipeline(c.Out)
	if err != nil {
		return err
	}
	n, err := p.IngestDirectory(c.Dir)
	if err != nil {
		return err
	}
	if n == 0 {
		fmt.Println("No document pairs found.")
		return nil
	}

	p.GenerateRules(c.Min)
	return saveSessionOutputs(p)
}

// TrainRulesCmd generates correction rules from a training folder.
type TrainRulesCmd struct {
	Dir   string `arg:"" help:"Folder of original/redlined documents" type:"existingdir"`
	Out   string `help:"Rules output path" type:"path"`
	Merge string `help:"Existing rules file to merge with" type:"path"`
	Min   int    `help:"Minimum occurrences for a learned rule" default:"2"`
}

func (c *TrainRulesCmd) Run() error {
	p, err := training.NewPipeline(os.TempDir())
	if err != nil {
		return err
	}
	if _, err := p.IngestDirectory(c.Dir); err != nil {
		return err
	}
	generated := p.GenerateRules(c.Min)

	if c.Merge != "" {
		out := c.Out
		if out == "" {
			out = c.Merge
		}
		if err := p.MergeRules(c.Merge, out); err != nil {
			return fmt.Errorf("failed to merge rules: %w", err)
		}
		fmt.Printf("Merged %d rule(s) into %s\n", len(generated), out)
		return nil
	}

	path, err := p.SaveRules(c.Out)
	if err != nil {
		return fmt.Errorf("failed to save rules: %w", err)
	}
	fmt.Printf("Generated %d rule(s)\n", len(generated))
	fmt.Printf("Created: %s\n", path)
	return nil
}

// TrainBundleCmd packages a training session as an archive.
type TrainBundleCmd struct {
	Dir string `arg:"" help:"Folder of original/redlined documents" type:"existingdir"`
	Out string `help:"Bundle path (.tar.gz or .tar.xz)" required:"" type:"path"`
	Min int    `help:"Minimum occurrences for a learned rule" default:"2"`
}

func (c *TrainBundleCmd) Run() error {
	p, err := training.NewPipeline(os.TempDir())
	if err != nil {
		return err
	}
	n, err := p.IngestDirectory(c.Dir)
	if err != nil {
		return err
	}
	p.GenerateRules(c.Min)

	if err := p.Bundle(c.Out); err != nil {
		return fmt.Errorf("failed to create bundle: %w", err)
	}
	fmt.Printf("Bundled %d pair(s)\n", n)
	fmt.Printf("Created: %s\n", c.Out)
	return nil
}

// TrainInspectCmd shows a bundle's manifest and contents.
type TrainInspectCmd struct {
	Bundle string `arg:"" help:"Bundle archive (.tar.gz or .tar.xz)" type:"existingfile"`
	JSON   bool   `help:"Emit JSON"`
}

func (c *TrainInspectCmd) Run() error {
	if !archive.IsSupportedFormat(c.Bundle) {
		return fmt.Errorf("unsupported bundle format: %s", c.Bundle)
	}
	manifest, err := archive.ReadManifest(c.Bundle)
	if err != nil {
		return fmt.Errorf("failed to read bundle: %w", err)
	}
	entries, err := archive.ListEntries(c.Bundle)
	if err != nil {
		return err
	}

	if c.JSON {
		return printJSON(struct {
			Bundle   string                  `json:"bundle"`
			Format   string                  `json:"format"`
			Manifest *archive.BundleManifest `json:"manifest"`
			HasRules bool                    `json:"has_rules"`
			Entries  []archive.Entry         `json:"entries"`
		}{
			Bundle:   archive.BundleID(filepath.Base(c.Bundle)),
			Format:   archive.DetectFormat(c.Bundle),
			Manifest: manifest,
			HasRules: archive.HasRules(c.Bundle),
			Entries:  entries,
		})
	}

	fmt.Printf("Bundle: %s (%s)\n", archive.BundleID(filepath.Base(c.Bundle)), archive.DetectFormat(c.Bundle))
	fmt.Printf("  Session: %s\n", manifest.SessionID)
	fmt.Printf("  Created: %s\n", manifest.CreatedAt)
	fmt.Printf("  Pairs: %d\n", manifest.Pairs)
	fmt.Printf("  Corrections: %d\n", manifest.Corrections)
	fmt.Printf("  Rules: %d\n", manifest.Rules)
	fmt.Println("Contents:")
	for _, e := range entries {
		fmt.Printf("  %8d  %s\n", e.Size, e.Name)
	}
	return nil
}

// saveSessionOutputs writes the rules and session files and reports them.
func saveSessionOutputs(p *training.Pipeline) error {
	rulesPath, err := p.SaveRules("")
	if err != nil {
		return fmt.Errorf("failed to save rules: %w", err)
	}
	sessionPath, err := p.SaveSession()
	if err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}

	session := p.Session()
	fmt.Printf("Session: %s\n", session.SessionID)
	fmt.Printf("  Pairs: %d\n", session.PairsProcessed)
	fmt.Printf("  Corrections: %d\n", session.CorrectionsFound)
	fmt.Printf("  Rules: %d\n", session.RulesGenerated)
	fmt.Printf("Created: %s\n", rulesPath)
	fmt.Printf("Created: %s\n", sessionPath)
	return nil
}

// ServeCmd starts the web upload server.
type ServeCmd struct {
	Port    int      `help:"HTTP server port" default:"8080"`
	Out     string   `help:"Working directory for uploads" type:"path"`
	Marker  string   `help:"Boundary marker sentence"`
	DB      string   `help:"Dish knowledge SQLite database" type:"path"`
	Origins []string `help:"Allowed CORS/websocket origins (default: all)"`
}

func (c *ServeCmd) Run() error {
	corrector, cleanup, err := newCorrector(c.DB)
	if err != nil {
		return err
	}
	defer cleanup()

	srv := web.New(web.Config{
		Port:           c.Port,
		OutputDir:      c.Out,
		BoundaryMarker: boundaryMarker(c.Marker),
		AllowedOrigins: c.Origins,
	}, corrector)
	return srv.Start()
}

// VersionCmd prints version information.
type VersionCmd struct{}

func (c *VersionCmd) Run() error {
	fmt.Printf("redliner version %s\n", version)
	return nil
}

func main() {
	// A .env beside the binary is optional; the environment wins.
	_ = godotenv.Load()

	ctx := kong.Parse(&CLI,
		kong.Name("redliner"),
		kong.Description("RSH Design menu redliner - tracked-change menu corrections"),
		kong.UsageOnError(),
		kong.ConfigureHelp(kong.HelpOptions{
			Compact: true,
		}),
	)
	initLogging()
	err := ctx.Run(ctx)
	ctx.FatalIfErrorf(err)
}
