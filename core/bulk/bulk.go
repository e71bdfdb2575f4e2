// Package bulk processes folders of menu documents. Each file is
// handled independently: one failing document is recorded and skipped,
// and a failed document never leaves a half-written file in the output
// folder.
package bulk

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/rshdesign/redliner/core/errors"
	"github.com/rshdesign/redliner/core/redline"
	"github.com/rshdesign/redliner/internal/logging"
)

// DefaultFileDelay paces consecutive documents to stay under API rate
// limits.
const DefaultFileDelay = 2 * time.Second

// Failure records one document that could not be processed.
type Failure struct {
	File  string `json:"file"`
	Error string `json:"error"`
}

// Summary is the result of one folder run.
type Summary struct {
	Found      int            `json:"found"`
	Succeeded  []string       `json:"succeeded"`
	Failed     []Failure      `json:"failed"`
	Stats      *redline.Stats `json:"stats"`
	OutputDir  string         `json:"output_dir"`
	Elapsed    time.Duration  `json:"-"`
	ElapsedStr string         `json:"elapsed"`
}

// Processor runs redline processing over every menu document in a
// folder.
type Processor struct {
	redliner  *redline.Redliner
	corrector redline.Corrector
	delay     time.Duration
}

// New creates a folder processor. A negative delay selects the default;
// zero disables pacing.
func New(r *redline.Redliner, c redline.Corrector, delay time.Duration) *Processor {
	if delay < 0 {
		delay = DefaultFileDelay
	}
	return &Processor{redliner: r, corrector: c, delay: delay}
}

// Discover lists the menu documents in a folder, skipping Word lock
// files ("~$" prefix) and already processed "_Corrected" outputs.
func Discover(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, errors.NewIO("read input directory", dir, err)
	}
	var files []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(strings.ToLower(name), ".docx") {
			continue
		}
		if strings.HasPrefix(name, "~$") || strings.HasSuffix(name, "_Corrected.docx") {
			continue
		}
		files = append(files, filepath.Join(dir, name))
	}
	sort.Strings(files)
	return files, nil
}

// Run processes every document from inputDir into outputDir. An empty
// outputDir writes next to the inputs; in-place outputs take the
// "_Corrected" suffix so a source document is never overwritten (and
// Discover skips them on a re-run).
func (p *Processor) Run(ctx context.Context, inputDir, outputDir string) (*Summary, error) {
	if outputDir == "" {
		outputDir = inputDir
	}
	inPlace := filepath.Clean(outputDir) == filepath.Clean(inputDir)

	files, err := Discover(inputDir)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return nil, errors.NewIO("create output directory", outputDir, err)
	}

	log := logging.GetLogger()
	start := time.Now()
	summary := &Summary{
		Found:     len(files),
		Stats:     &redline.Stats{},
		OutputDir: outputDir,
	}

	for i, file := range files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if i > 0 && p.delay > 0 {
			select {
			case <-time.After(p.delay):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}

		name := filepath.Base(file)
		log.Info("processing document", "file", name, "index", i+1, "total", len(files))

		outName := name
		if inPlace {
			outName = redline.DerivedOutputPath(name)
		}
		stats, err := p.processOne(ctx, file, filepath.Join(outputDir, outName))
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			log.Error("document failed", "file", name, "error", err)
			summary.Failed = append(summary.Failed, Failure{File: name, Error: err.Error()})
			continue
		}

		summary.Succeeded = append(summary.Succeeded, name)
		summary.Stats.Paragraphs += stats.Paragraphs
		summary.Stats.Modified += stats.Modified
		summary.Stats.SkippedRedlined += stats.SkippedRedlined
		summary.Stats.SkippedMixedBold += stats.SkippedMixedBold
		summary.Stats.CoursesAdded += stats.CoursesAdded
	}

	summary.Elapsed = time.Since(start)
	summary.ElapsedStr = summary.Elapsed.Round(time.Second).String()
	log.Info("folder processed",
		"found", summary.Found,
		"succeeded", len(summary.Succeeded),
		"failed", len(summary.Failed),
		"elapsed", summary.ElapsedStr)
	return summary, nil
}

// processOne redlines a single document via a temp file in the output
// directory, renaming into place only on success.
func (p *Processor) processOne(ctx context.Context, inputPath, outputPath string) (*redline.Stats, error) {
	tmp, err := os.CreateTemp(filepath.Dir(outputPath), ".redliner-*.docx")
	if err != nil {
		return nil, errors.NewIO("create temp output", outputPath, err)
	}
	tmpPath := tmp.Name()
	tmp.Close()

	_, stats, err := p.redliner.ProcessFile(ctx, inputPath, p.corrector, tmpPath)
	if err != nil {
		os.Remove(tmpPath)
		return nil, err
	}
	if err := os.Rename(tmpPath, outputPath); err != nil {
		os.Remove(tmpPath)
		return nil, errors.NewIO("move output into place", outputPath, err)
	}
	return stats, nil
}
