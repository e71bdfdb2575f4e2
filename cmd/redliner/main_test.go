package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/rshdesign/redliner/internal/archive"
)

func TestBoundaryMarkerFlagWins(t *testing.T) {
	t.Setenv("BOUNDARY_MARKER", "from env")
	if got := boundaryMarker("from flag"); got != "from flag" {
		t.Errorf("boundaryMarker = %q, want flag value", got)
	}
	if got := boundaryMarker(""); got != "from env" {
		t.Errorf("boundaryMarker = %q, want env value", got)
	}
}

func TestNewCorrectorRequiresAPIKey(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")
	if _, _, err := newCorrector(""); err == nil {
		t.Fatal("newCorrector succeeded without OPENAI_API_KEY")
	}
}

func TestNewCorrectorWithKey(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "sk-test")
	corrector, cleanup, err := newCorrector("")
	if err != nil {
		t.Fatalf("newCorrector: %v", err)
	}
	defer cleanup()
	if corrector == nil {
		t.Fatal("newCorrector returned nil corrector")
	}
}

func TestTrainInspectCmd(t *testing.T) {
	srcDir := t.TempDir()
	manifest := `{"version":"1","session_id":"20250110_120000","pairs":2,"rules":3}`
	if err := os.WriteFile(filepath.Join(srcDir, "manifest.json"), []byte(manifest), 0644); err != nil {
		t.Fatalf("write manifest: %v", err)
	}
	bundle := filepath.Join(t.TempDir(), "session.tar.gz")
	if err := archive.Create(srcDir, bundle); err != nil {
		t.Fatalf("create bundle: %v", err)
	}

	if err := (&TrainInspectCmd{Bundle: bundle}).Run(); err != nil {
		t.Fatalf("inspect: %v", err)
	}
	if err := (&TrainInspectCmd{Bundle: bundle, JSON: true}).Run(); err != nil {
		t.Fatalf("inspect --json: %v", err)
	}
}

func TestTrainInspectCmdRejectsNonBundle(t *testing.T) {
	path := filepath.Join(t.TempDir(), "notes.zip")
	if err := os.WriteFile(path, []byte("x"), 0644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := (&TrainInspectCmd{Bundle: path}).Run(); err == nil {
		t.Fatal("inspect accepted a non-bundle file")
	}
}

func TestVersionCmd(t *testing.T) {
	if err := (&VersionCmd{}).Run(); err != nil {
		t.Fatalf("version: %v", err)
	}
}
