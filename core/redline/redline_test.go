package redline

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rshdesign/redliner/core/docx"
	"github.com/rshdesign/redliner/core/worddiff"
)

func replaceCorrector(pairs ...string) Corrector {
	return CorrectorFunc(func(ctx context.Context, text string) string {
		for i := 0; i+1 < len(pairs); i += 2 {
			text = strings.ReplaceAll(text, pairs[i], pairs[i+1])
		}
		return text
	})
}

func identityCorrector() Corrector {
	return CorrectorFunc(func(ctx context.Context, text string) string { return text })
}

func menuDoc(lines ...string) *docx.Document {
	paras := []*docx.Paragraph{
		docx.NewParagraph(docx.Run{Text: DefaultBoundaryMarker}),
	}
	for _, line := range lines {
		paras = append(paras, docx.NewParagraph(docx.Run{Text: line}))
	}
	return docx.New(paras...)
}

func TestBuildFormatMap(t *testing.T) {
	bold := docx.Format{Bold: docx.FlagOn}
	plain := docx.Format{}
	m := BuildFormatMap([]docx.Run{
		{Text: "ab", Format: bold},
		{Text: "", Format: docx.Format{Italic: docx.FlagOn}}, // zero-length: no offsets
		{Text: "c", Format: plain},
	})
	if len(m) != 3 {
		t.Fatalf("map length = %d, want 3", len(m))
	}
	if m[0] != bold || m[1] != bold {
		t.Error("bold run offsets lost formatting")
	}
	if m[2] != plain {
		t.Error("plain run offset has wrong formatting")
	}
	if got := BuildFormatMap(nil); got != nil {
		t.Errorf("empty run list map = %v, want nil", got)
	}
}

func TestBuildFormatMapCountsRunes(t *testing.T) {
	m := BuildFormatMap([]docx.Run{{Text: "crème"}})
	if len(m) != 5 {
		t.Errorf("map length = %d, want 5 rune offsets", len(m))
	}
}

func TestRenderEqualSplitsAtFormatBoundary(t *testing.T) {
	// "Tuna " bold, "Tartare" plain; an equal span covering both must
	// split at the boundary.
	runs := []docx.Run{
		{Text: "Tuna ", Format: docx.Format{Bold: docx.FlagOn}},
		{Text: "Tartare"},
	}
	spans := []worddiff.Span{{Op: worddiff.Equal, Text: "Tuna Tartare", OrigLen: 12}}
	out := Render(spans, BuildFormatMap(runs))

	if len(out) != 2 {
		t.Fatalf("got %d runs, want 2: %+v", len(out), out)
	}
	if out[0].Text != "Tuna " || out[0].Format.Bold != docx.FlagOn {
		t.Errorf("run 0 = %+v, want bold %q", out[0], "Tuna ")
	}
	if out[1].Text != "Tartare" || out[1].Format.Bold != docx.FlagUnset {
		t.Errorf("run 1 = %+v, want plain %q", out[1], "Tartare")
	}
}

func TestRenderDeleteInheritsPositionFormat(t *testing.T) {
	runs := []docx.Run{
		{Text: "ab", Format: docx.Format{Font: "Calibri", Size: 24, Bold: docx.FlagOn, Color: "006600"}},
	}
	spans := []worddiff.Span{{Op: worddiff.Delete, Text: "ab", OrigLen: 2}}
	out := Render(spans, BuildFormatMap(runs))

	if len(out) != 1 {
		t.Fatalf("got %d runs, want 1", len(out))
	}
	f := out[0].Format
	if f.Font != "Calibri" || f.Size != 24 || f.Bold != docx.FlagOn {
		t.Errorf("deletion lost source font/size/bold: %+v", f)
	}
	if !f.Strike {
		t.Error("deletion not struck")
	}
	if f.Color != DeletionColor {
		t.Errorf("deletion color = %q, want %s (source color overridden)", f.Color, DeletionColor)
	}
}

func TestRenderInsertIsolation(t *testing.T) {
	// Default format is bold underlined colored; insertions take only
	// font and size from it.
	runs := []docx.Run{
		{Text: "x", Format: docx.Format{
			Font: "Calibri", Size: 24,
			Bold: docx.FlagOn, Italic: docx.FlagOn, Underline: docx.FlagOn,
			Color: "FF0000",
		}},
	}
	spans := []worddiff.Span{
		{Op: worddiff.Equal, Text: "x", OrigLen: 1},
		{Op: worddiff.Insert, Text: "new"},
	}
	out := Render(spans, BuildFormatMap(runs))

	ins := out[len(out)-1]
	if ins.Text != "new" {
		t.Fatalf("insert run text = %q", ins.Text)
	}
	f := ins.Format
	if f.Font != "Calibri" || f.Size != 24 {
		t.Errorf("insertion lost font/size inheritance: %+v", f)
	}
	if f.Bold != docx.FlagUnset || f.Italic != docx.FlagUnset || f.Underline != docx.FlagUnset {
		t.Errorf("insertion inherited weight/slant/underline: %+v", f)
	}
	if f.Color != "" {
		t.Errorf("insertion inherited color %q", f.Color)
	}
	if f.Highlight != InsertHighlight {
		t.Errorf("insertion highlight = %q, want %s", f.Highlight, InsertHighlight)
	}
}

func TestRenderCursorSkipsInserts(t *testing.T) {
	// After an insertion the cursor must still point at the next original
	// character, so the following equal span keeps its own formatting.
	runs := []docx.Run{
		{Text: "a", Format: docx.Format{Bold: docx.FlagOn}},
		{Text: "b", Format: docx.Format{Italic: docx.FlagOn}},
	}
	spans := []worddiff.Span{
		{Op: worddiff.Equal, Text: "a", OrigLen: 1},
		{Op: worddiff.Insert, Text: "X"},
		{Op: worddiff.Equal, Text: "b", OrigLen: 1},
	}
	out := Render(spans, BuildFormatMap(runs))

	last := out[len(out)-1]
	if last.Text != "b" || last.Format.Italic != docx.FlagOn {
		t.Errorf("post-insert equal run = %+v, want italic %q", last, "b")
	}
}

func TestRenderSpellingFixWithAddedSpace(t *testing.T) {
	// One script carrying both a real word fix and an added space: the
	// space consumes no original offset, so the bold boundary after it
	// must not shift.
	runs := []docx.Run{
		{Text: "grean beans,when available "},
		{Text: "stew", Format: docx.Format{Bold: docx.FlagOn}},
	}
	spans := worddiff.Diff("grean beans,when available stew", "green beans, when available stew")
	out := Render(spans, BuildFormatMap(runs))

	var visible strings.Builder
	for _, r := range out {
		if r.Format.Strike {
			continue
		}
		visible.WriteString(r.Text)
		switch {
		case strings.Contains(r.Text, "stew") && r.Format.Bold != docx.FlagOn:
			t.Errorf("bold word lost its weight: %+v", r)
		case !strings.Contains(r.Text, "stew") && r.Format.Bold == docx.FlagOn && r.Format.Highlight == "":
			t.Errorf("plain text became bold: %+v", r)
		}
	}
	if got := visible.String(); got != "green beans, when available stew" {
		t.Errorf("visible text = %q, want corrected line", got)
	}
}

func TestRenderEmptyFormatMap(t *testing.T) {
	spans := []worddiff.Span{
		{Op: worddiff.Equal, Text: "a", OrigLen: 1},
		{Op: worddiff.Delete, Text: "b", OrigLen: 1},
		{Op: worddiff.Insert, Text: "c"},
	}
	out := Render(spans, nil)
	if len(out) != 3 {
		t.Fatalf("got %d runs, want 3", len(out))
	}
	if !out[1].Format.Strike || out[1].Format.Color != DeletionColor {
		t.Errorf("structural deletion style wrong: %+v", out[1].Format)
	}
	if out[2].Format.Highlight != InsertHighlight {
		t.Errorf("structural insertion style wrong: %+v", out[2].Format)
	}
}

func TestGuardHasRedlines(t *testing.T) {
	if HasRedlines([]docx.Run{{Text: "clean"}}) {
		t.Error("clean runs flagged as redlined")
	}
	if !HasRedlines([]docx.Run{{Text: "x", Format: docx.Format{Strike: true}}}) {
		t.Error("struck run not flagged")
	}
	if !HasRedlines([]docx.Run{{Text: "x", Format: docx.Format{Highlight: "yellow"}}}) {
		t.Error("highlighted run not flagged")
	}
}

func TestGuardHasMixedBold(t *testing.T) {
	bold := docx.Format{Bold: docx.FlagOn}
	tests := []struct {
		name string
		runs []docx.Run
		want bool
	}{
		{"all bold", []docx.Run{{Text: "a", Format: bold}, {Text: "b", Format: bold}}, false},
		{"all plain", []docx.Run{{Text: "a"}, {Text: "b"}}, false},
		{"mixed", []docx.Run{{Text: "Dish", Format: bold}, {Text: "description"}}, true},
		{"whitespace run ignored", []docx.Run{{Text: "Dish", Format: bold}, {Text: "   "}}, false},
		{"empty", nil, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := HasMixedBold(tt.runs); got != tt.want {
				t.Errorf("HasMixedBold = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestCheckEligibilityOrder(t *testing.T) {
	// A paragraph that is both redlined and mixed-bold reports the
	// redline skip first.
	runs := []docx.Run{
		{Text: "a", Format: docx.Format{Bold: docx.FlagOn, Strike: true}},
		{Text: "b"},
	}
	if got := CheckEligibility(runs); got != SkipRedlined {
		t.Errorf("CheckEligibility = %v, want SkipRedlined", got)
	}
	if got := CheckEligibility([]docx.Run{{Text: "clean"}}); got != SkipNone {
		t.Errorf("CheckEligibility = %v, want SkipNone", got)
	}
}

func TestProcessBoundaryScope(t *testing.T) {
	doc := docx.New(
		docx.NewParagraph(docx.Run{Text: "Form filled by ochtopus lover"}),
		docx.NewParagraph(docx.Run{Text: DefaultBoundaryMarker}),
		docx.NewParagraph(docx.Run{Text: "Grilled ochtopus"}),
	)
	r := New("")
	stats, err := r.Process(context.Background(), doc, replaceCorrector("ochtopus", "octopus"))
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if !stats.MarkerFound {
		t.Error("marker not found")
	}
	if stats.Modified != 1 {
		t.Errorf("modified = %d, want 1", stats.Modified)
	}

	paras := doc.Paragraphs()
	if !strings.Contains(paras[0].Text(), "ochtopus") {
		t.Error("form region above the marker was modified")
	}
	if !strings.Contains(paras[2].Text(), "octopus") {
		t.Error("menu region was not corrected")
	}
}

func TestProcessMissingMarkerProcessesWholeDocument(t *testing.T) {
	doc := docx.New(
		docx.NewParagraph(docx.Run{Text: "Grilled ochtopus"}),
	)
	r := New("")
	stats, err := r.Process(context.Background(), doc, replaceCorrector("ochtopus", "octopus"))
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if stats.MarkerFound {
		t.Error("marker reported found in a document without one")
	}
	if stats.Modified != 1 {
		t.Errorf("modified = %d, want 1", stats.Modified)
	}
}

func TestProcessSkipsGuardedParagraphs(t *testing.T) {
	redlined := docx.NewParagraph(
		docx.Run{Text: "old", Format: docx.Format{Strike: true}},
		docx.Run{Text: "new"},
	)
	mixed := docx.NewParagraph(
		docx.Run{Text: "Dish", Format: docx.Format{Bold: docx.FlagOn}},
		docx.Run{Text: " with ochtopus"},
	)
	doc := docx.New(
		docx.NewParagraph(docx.Run{Text: DefaultBoundaryMarker}),
		redlined, mixed,
	)
	r := New("")
	stats, err := r.Process(context.Background(), doc, replaceCorrector("ochtopus", "octopus"))
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if stats.Modified != 0 {
		t.Errorf("modified = %d, want 0", stats.Modified)
	}
	if stats.SkippedRedlined != 1 {
		t.Errorf("skipped redlined = %d, want 1", stats.SkippedRedlined)
	}
	if stats.SkippedMixedBold != 1 {
		t.Errorf("skipped mixed bold = %d, want 1", stats.SkippedMixedBold)
	}
	if strings.Contains(mixed.Text(), "octopus") {
		t.Error("guarded paragraph was rewritten")
	}
}

func TestProcessWhitespaceOnlyChangeIsNotModified(t *testing.T) {
	doc := menuDoc("foo  bar")
	r := New("")
	stats, err := r.Process(context.Background(), doc, CorrectorFunc(func(ctx context.Context, text string) string {
		return strings.Join(strings.Fields(text), " ")
	}))
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if stats.Modified != 0 {
		t.Errorf("modified = %d for whitespace-only change, want 0", stats.Modified)
	}
}

func TestProcessContextCancelled(t *testing.T) {
	doc := menuDoc("line one", "line two")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	r := New("")
	if _, err := r.Process(ctx, doc, identityCorrector()); err == nil {
		t.Fatal("Process succeeded with a cancelled context")
	}
}

func TestTunaTartareEndToEnd(t *testing.T) {
	original := "Tuna Tartare, avocado, sesame D, G"
	corrected := "Tuna Tartare, avocado, sesame D, F, G"

	doc := docx.New(
		docx.NewParagraph(docx.Run{Text: DefaultBoundaryMarker}),
		docx.NewParagraph(docx.Run{Text: original, Format: docx.Format{Font: "Calibri", Size: 24}}),
	)
	r := New("")
	stats, err := r.Process(context.Background(), doc, CorrectorFunc(func(ctx context.Context, text string) string {
		if text == original {
			return corrected
		}
		return text
	}))
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if stats.Modified != 1 {
		t.Fatalf("modified = %d, want 1", stats.Modified)
	}

	runs := doc.Paragraphs()[1].Runs()
	var struck, highlighted []string
	var visible strings.Builder
	for _, r := range runs {
		if r.Format.Strike {
			struck = append(struck, r.Text)
			continue
		}
		visible.WriteString(r.Text)
		if r.Format.Highlight == InsertHighlight {
			highlighted = append(highlighted, r.Text)
		}
	}

	// The allergen addition shows up highlighted; nothing that survived
	// the correction is struck.
	if len(struck) != 0 {
		t.Errorf("unexpected struck runs %q for a pure insertion", struck)
	}
	if len(highlighted) == 0 {
		t.Fatal("no highlighted insertion in redlined paragraph")
	}
	joined := strings.Join(highlighted, "")
	if !strings.Contains(joined, "F") {
		t.Errorf("highlighted text %q does not carry the new allergen code", joined)
	}
	// Reading only unstruck text yields the corrected line.
	if got := visible.String(); got != corrected {
		t.Errorf("visible text = %q, want %q", got, corrected)
	}
	// Struck plus equal text reconstructs the original.
	full := doc.Paragraphs()[1].Text()
	for _, want := range []string{"Tuna Tartare", "avocado", "sesame"} {
		if !strings.Contains(full, want) {
			t.Errorf("paragraph lost %q", want)
		}
	}
}

func TestIsCourseHeader(t *testing.T) {
	tests := []struct {
		text string
		want bool
	}{
		{`The Spark – “El Primer Encuentro”`, true},
		{`Course One`, true},
		{`COURSE 3`, true},
		{`Tuna Tartare, avocado`, false},
		{"", false},
	}
	for _, tt := range tests {
		if got := IsCourseHeader(tt.text); got != tt.want {
			t.Errorf("IsCourseHeader(%q) = %v, want %v", tt.text, got, tt.want)
		}
	}
}

func TestProcessNumbersPrixFixeCourses(t *testing.T) {
	doc := docx.New(
		docx.NewParagraph(docx.Run{Text: DefaultBoundaryMarker}),
		docx.NewParagraph(docx.Run{Text: "A five course tasting menu"}),
		docx.NewParagraph(docx.Run{Text: `The Spark – “El Primer Encuentro”`}),
		docx.NewParagraph(docx.Run{Text: "Tuna Tostada"}),
		docx.NewParagraph(docx.Run{Text: `The Ember – “Fuego Lento”`}),
		docx.NewParagraph(docx.Run{Text: "Short Rib"}),
	)
	r := New("")
	stats, err := r.Process(context.Background(), doc, identityCorrector())
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if stats.CoursesAdded != 2 {
		t.Fatalf("courses added = %d, want 2", stats.CoursesAdded)
	}

	var texts []string
	for _, p := range doc.Paragraphs() {
		texts = append(texts, p.Text())
	}
	// Number paragraphs sit immediately before their headers, in order.
	idx1 := indexOf(texts, "1")
	idx2 := indexOf(texts, "2")
	if idx1 < 0 || idx2 < 0 {
		t.Fatalf("number paragraphs missing: %v", texts)
	}
	if texts[idx1+1] != `The Spark – “El Primer Encuentro”` {
		t.Errorf("paragraph after 1 = %q", texts[idx1+1])
	}
	if texts[idx2+1] != `The Ember – “Fuego Lento”` {
		t.Errorf("paragraph after 2 = %q", texts[idx2+1])
	}

	numRun := doc.Paragraphs()[idx1].Runs()[0]
	if numRun.Format.Bold != docx.FlagOn || numRun.Format.Highlight != InsertHighlight {
		t.Errorf("number paragraph style = %+v", numRun.Format)
	}
	if doc.Paragraphs()[idx1].Alignment() != "center" {
		t.Error("number paragraph not centered")
	}
}

func TestDerivedOutputPath(t *testing.T) {
	tests := []struct{ in, want string }{
		{"menu.docx", "menu_Corrected.docx"},
		{filepath.Join("dir", "lunch menu.docx"), filepath.Join("dir", "lunch menu_Corrected.docx")},
		{"noext", "noext_Corrected"},
	}
	for _, tt := range tests {
		if got := DerivedOutputPath(tt.in); got != tt.want {
			t.Errorf("DerivedOutputPath(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestProcessFile(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "menu.docx")
	if err := menuDoc("Grilled ochtopus").Save(in); err != nil {
		t.Fatalf("save fixture: %v", err)
	}

	r := New("")
	out, stats, err := r.ProcessFile(context.Background(), in, replaceCorrector("ochtopus", "octopus"), "")
	if err != nil {
		t.Fatalf("ProcessFile: %v", err)
	}
	if out != filepath.Join(dir, "menu_Corrected.docx") {
		t.Errorf("output path = %q", out)
	}
	if stats.Modified != 1 {
		t.Errorf("modified = %d, want 1", stats.Modified)
	}
	doc, err := docx.Open(out)
	if err != nil {
		t.Fatalf("open output: %v", err)
	}
	var all strings.Builder
	for _, p := range doc.Paragraphs() {
		all.WriteString(p.Text())
	}
	if !strings.Contains(all.String(), "octopus") {
		t.Error("saved output missing correction")
	}
}

func indexOf(list []string, want string) int {
	for i, s := range list {
		if s == want {
			return i
		}
	}
	return -1
}
