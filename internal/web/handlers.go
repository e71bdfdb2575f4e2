package web

import (
	"context"
	"fmt"
	"html/template"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"

	"github.com/rshdesign/redliner/core/docx"
	"github.com/rshdesign/redliner/core/redline"
	"github.com/rshdesign/redliner/internal/logging"
	"github.com/rshdesign/redliner/internal/validation"
)

var indexTemplate = template.Must(template.New("index").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>Menu Redliner</title>
<style>
body { font-family: system-ui, sans-serif; max-width: 40rem; margin: 3rem auto; padding: 0 1rem; }
progress { width: 100%; }
#log { font-family: monospace; font-size: 0.85rem; white-space: pre-wrap; color: #444; }
</style>
</head>
<body>
<h1>Menu Redliner</h1>
<p>Upload a menu .docx to receive a redlined copy with tracked corrections.</p>
<form id="form" method="post" action="/process" enctype="multipart/form-data">
<input type="file" name="document" accept=".docx" required>
<button type="submit">Redline</button>
</form>
<progress id="bar" value="0" max="100" hidden></progress>
<div id="log"></div>
<script>
const ws = new WebSocket((location.protocol === "https:" ? "wss://" : "ws://") + location.host + "/ws");
const bar = document.getElementById("bar");
const log = document.getElementById("log");
ws.onmessage = (ev) => {
  for (const line of ev.data.split("\n")) {
    if (!line) continue;
    const msg = JSON.parse(line);
    bar.hidden = false;
    bar.value = msg.progress;
    log.textContent += msg.type + ": " + (msg.message || msg.stage) + "\n";
  }
};
document.getElementById("form").onsubmit = () => { log.textContent = ""; };
</script>
</body>
</html>
`))

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := indexTemplate.Execute(w, nil); err != nil {
		logging.Error("failed to render index", "error", err)
	}
}

// handleProcess accepts a multipart docx upload, redlines it, and returns
// the corrected document as an attachment. Progress is broadcast to
// websocket clients as each paragraph is corrected.
func (s *Server) handleProcess(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	file, header, err := r.FormFile("document")
	if err != nil {
		http.Error(w, "missing document field", http.StatusBadRequest)
		return
	}
	defer file.Close()

	name := filepath.Base(header.Filename)
	if err := validation.ValidateFilename(name); err != nil {
		http.Error(w, fmt.Sprintf("invalid filename: %v", err), http.StatusBadRequest)
		return
	}
	if !strings.HasSuffix(strings.ToLower(name), ".docx") {
		http.Error(w, "only .docx uploads are supported", http.StatusBadRequest)
		return
	}
	if _, err := validation.ValidateFileType(file, name); err != nil {
		http.Error(w, fmt.Sprintf("invalid upload: %v", err), http.StatusBadRequest)
		return
	}
	if _, err := file.Seek(0, io.SeekStart); err != nil {
		http.Error(w, "failed to rewind upload", http.StatusInternalServerError)
		return
	}

	inputPath, err := s.saveUpload(file)
	if err != nil {
		logging.Error("failed to stage upload", "file", name, "error", err)
		http.Error(w, "failed to stage upload", http.StatusInternalServerError)
		return
	}
	defer os.Remove(inputPath)

	s.hub.Progress(name, "upload", "document received", 0)

	outputPath, stats, err := s.process(r.Context(), inputPath, name)
	if err != nil {
		logging.CorrectionError("web process", err, "file", name)
		s.hub.Error(name, err.Error())
		http.Error(w, fmt.Sprintf("processing failed: %v", err), http.StatusUnprocessableEntity)
		return
	}
	defer os.Remove(outputPath)

	s.hub.Complete(name, "document redlined", map[string]any{
		"paragraphs": stats.Paragraphs,
		"modified":   stats.Modified,
	})

	downloadName := redline.DerivedOutputPath(name)
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.wordprocessingml.document")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", downloadName))
	out, err := os.Open(outputPath)
	if err != nil {
		http.Error(w, "failed to read result", http.StatusInternalServerError)
		return
	}
	defer out.Close()
	if _, err := io.Copy(w, out); err != nil {
		logging.Error("failed to stream result", "file", name, "error", err)
	}
}

// saveUpload stages the upload in the output directory so processing works
// on a real file path.
func (s *Server) saveUpload(src io.Reader) (string, error) {
	tmp, err := os.CreateTemp(s.cfg.OutputDir, ".upload-*.docx")
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(tmp, src); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return "", err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return "", err
	}
	return tmp.Name(), nil
}

// process redlines the staged document, wrapping the corrector so each
// correction call advances the websocket progress bar.
func (s *Server) process(ctx context.Context, inputPath, name string) (string, *redline.Stats, error) {
	doc, err := docx.Open(inputPath)
	if err != nil {
		return "", nil, err
	}
	total := len(doc.Paragraphs())
	if total == 0 {
		total = 1
	}

	var done atomic.Int64
	progressCorrector := redline.CorrectorFunc(func(ctx context.Context, text string) string {
		n := int(done.Add(1))
		pct := n * 100 / total
		if pct > 99 {
			pct = 99
		}
		s.hub.Progress(name, "correct", fmt.Sprintf("correcting paragraph %d", n), pct)
		return s.corrector.Correct(ctx, text)
	})

	outputPath := filepath.Join(s.cfg.OutputDir, redline.DerivedOutputPath(filepath.Base(inputPath)))
	return s.redliner.ProcessFile(ctx, inputPath, wrapAllergen(s.corrector, progressCorrector), outputPath)
}

// allergenForwarder keeps legend reconfiguration working through the
// progress wrapper.
type allergenForwarder struct {
	redline.Corrector
	inner redline.AllergenConfigurable
}

func (a allergenForwarder) SetAllergenCodes(codes map[string]string) {
	a.inner.SetAllergenCodes(codes)
}

// wrapAllergen preserves the AllergenConfigurable interface of the wrapped
// corrector when present.
func wrapAllergen(inner redline.Corrector, wrapper redline.Corrector) redline.Corrector {
	if configurable, ok := inner.(redline.AllergenConfigurable); ok {
		return allergenForwarder{Corrector: wrapper, inner: configurable}
	}
	return wrapper
}
