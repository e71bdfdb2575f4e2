package web

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/rshdesign/redliner/core/docx"
	"github.com/rshdesign/redliner/core/redline"
)

func fixCorrector() redline.Corrector {
	return redline.CorrectorFunc(func(ctx context.Context, text string) string {
		return strings.ReplaceAll(text, "ochtopus", "octopus")
	})
}

func testServer(t *testing.T) *Server {
	t.Helper()
	s := New(Config{OutputDir: t.TempDir()}, fixCorrector())
	go s.hub.Run()
	return s
}

func menuDocx(t *testing.T, lines ...string) []byte {
	t.Helper()
	paras := make([]*docx.Paragraph, 0, len(lines)+1)
	paras = append(paras, docx.NewParagraph(docx.Run{Text: redline.DefaultBoundaryMarker}))
	for _, line := range lines {
		paras = append(paras, docx.NewParagraph(docx.Run{Text: line}))
	}
	data, err := docx.New(paras...).Bytes()
	if err != nil {
		t.Fatalf("build docx: %v", err)
	}
	return data
}

func uploadRequest(t *testing.T, filename string, content []byte) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("document", filename)
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	if _, err := part.Write(content); err != nil {
		t.Fatalf("write form file: %v", err)
	}
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/process", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func TestHandleIndex(t *testing.T) {
	s := testServer(t)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	if !strings.Contains(rec.Body.String(), "Menu Redliner") {
		t.Error("index page missing title")
	}
}

func TestHandleIndexNotFound(t *testing.T) {
	s := testServer(t)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/nope", nil))

	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusNotFound)
	}
}

func TestHandleHealth(t *testing.T) {
	s := testServer(t)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	var health struct {
		Status  string `json:"status"`
		Clients int    `json:"clients"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &health); err != nil {
		t.Fatalf("decode health response: %v", err)
	}
	if health.Status != "ok" {
		t.Errorf("status = %q, want ok", health.Status)
	}
}

func TestHandleProcess(t *testing.T) {
	s := testServer(t)
	content := menuDocx(t, "Grilled ochtopus salad", "Tuna Tartare, avocado")

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, uploadRequest(t, "menu.docx", content))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d: %s", rec.Code, http.StatusOK, rec.Body.String())
	}
	if cd := rec.Header().Get("Content-Disposition"); !strings.Contains(cd, "menu_Corrected.docx") {
		t.Errorf("Content-Disposition = %q, want corrected filename", cd)
	}

	doc, err := docx.Parse(rec.Body.Bytes())
	if err != nil {
		t.Fatalf("parse response docx: %v", err)
	}
	var all strings.Builder
	for _, p := range doc.Paragraphs() {
		all.WriteString(p.Text())
		all.WriteString("\n")
	}
	if !strings.Contains(all.String(), "octopus") {
		t.Error("response document missing corrected text")
	}
}

func TestHandleProcessRejectsNonDocx(t *testing.T) {
	s := testServer(t)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, uploadRequest(t, "menu.pdf", []byte("%PDF-1.7\n")))

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
}

func TestHandleProcessRejectsMislabeledContent(t *testing.T) {
	s := testServer(t)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, uploadRequest(t, "menu.docx", []byte("%PDF-1.7\n")))

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
}

func TestHandleProcessMethodNotAllowed(t *testing.T) {
	s := testServer(t)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/process", nil))

	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusMethodNotAllowed)
	}
}

func TestHandleProcessCleansStagedFiles(t *testing.T) {
	s := testServer(t)
	content := menuDocx(t, "Tuna Tartare, avocado")

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, uploadRequest(t, "menu.docx", content))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}

	entries, err := os.ReadDir(s.cfg.OutputDir)
	if err != nil {
		t.Fatalf("read output dir: %v", err)
	}
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), ".upload-") {
			t.Errorf("staged file %s not cleaned up", e.Name())
		}
	}
}

func TestWebSocketProgress(t *testing.T) {
	s := testServer(t)
	ts := httptest.NewServer(s.Handler())
	defer ts.Close()

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial websocket: %v", err)
	}
	defer conn.Close()

	// Give the hub time to register the client before broadcasting
	deadline := time.Now().Add(2 * time.Second)
	for s.hub.ClientCount() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("client never registered with hub")
		}
		time.Sleep(10 * time.Millisecond)
	}

	content := menuDocx(t, "Grilled ochtopus")
	req, err := http.NewRequest(http.MethodPost, ts.URL+"/process", nil)
	if err != nil {
		t.Fatal(err)
	}
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, _ := mw.CreateFormFile("document", "menu.docx")
	part.Write(content)
	mw.Close()
	req.Body = io.NopCloser(&body)
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("post upload: %v", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	sawProgress, sawComplete := false, false
	for !sawComplete {
		_, data, err := conn.ReadMessage()
		if err != nil {
			t.Fatalf("read websocket message: %v", err)
		}
		for _, line := range strings.Split(string(data), "\n") {
			if line == "" {
				continue
			}
			var msg ProgressMessage
			if err := json.Unmarshal([]byte(line), &msg); err != nil {
				t.Fatalf("decode message %q: %v", line, err)
			}
			switch msg.Type {
			case "progress":
				sawProgress = true
			case "complete":
				sawComplete = true
				if msg.Progress != 100 {
					t.Errorf("complete progress = %d, want 100", msg.Progress)
				}
			}
		}
	}
	if !sawProgress {
		t.Error("no progress messages received before completion")
	}
}

func TestCheckOrigin(t *testing.T) {
	s := New(Config{AllowedOrigins: []string{"http://localhost:3000"}}, fixCorrector())

	req := httptest.NewRequest(http.MethodGet, "/ws", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	if !s.checkOrigin(req) {
		t.Error("allowed origin rejected")
	}

	req.Header.Set("Origin", "http://evil.example")
	if s.checkOrigin(req) {
		t.Error("unlisted origin accepted")
	}

	open := New(Config{}, fixCorrector())
	if !open.checkOrigin(req) {
		t.Error("empty allow list should accept any origin")
	}
}

func TestWrapAllergen(t *testing.T) {
	plain := fixCorrector()
	wrapper := redline.CorrectorFunc(func(ctx context.Context, text string) string { return text })

	if _, ok := wrapAllergen(plain, wrapper).(redline.AllergenConfigurable); ok {
		t.Error("plain corrector gained allergen configuration")
	}

	cfg := &stubConfigurable{}
	wrapped := wrapAllergen(cfg, wrapper)
	configurable, ok := wrapped.(redline.AllergenConfigurable)
	if !ok {
		t.Fatal("configurable corrector lost allergen configuration through wrapper")
	}
	configurable.SetAllergenCodes(map[string]string{"D": "Dairy"})
	if cfg.codes["D"] != "Dairy" {
		t.Error("allergen codes not forwarded to inner corrector")
	}
	if got := wrapped.Correct(context.Background(), "text"); got != "text" {
		t.Errorf("Correct() = %q, want wrapper behavior", got)
	}
}

type stubConfigurable struct {
	codes map[string]string
}

func (s *stubConfigurable) Correct(ctx context.Context, text string) string { return text }
func (s *stubConfigurable) SetAllergenCodes(codes map[string]string)        { s.codes = codes }
