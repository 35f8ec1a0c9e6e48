package api

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dgallion1/pdfchat/internal/chunker"
	"github.com/dgallion1/pdfchat/internal/claude"
	"github.com/dgallion1/pdfchat/internal/config"
	"github.com/dgallion1/pdfchat/internal/document"
	"github.com/dgallion1/pdfchat/internal/pdftest"
)

const citedAnswer = `{
	"id": "msg_1",
	"model": "claude-test",
	"stop_reason": "end_turn",
	"content": [
		{"type": "text", "text": "The **revenue** grew"},
		{"type": "text", "text": " by 10%.", "citations": [
			{"type": "page_location", "cited_text": "Revenue grew 10% year over year.", "document_index": 1,
			 "document_title": "report.pdf (pages 3-4)", "start_page_number": 2, "end_page_number": 3}
		]}
	],
	"usage": {"input_tokens": 100, "output_tokens": 8}
}`

// fakeAnthropic serves /v1/messages with the handler in reply.
type fakeAnthropic struct {
	srv   *httptest.Server
	calls atomic.Int32
	reply http.HandlerFunc
}

func newFakeAnthropic(t *testing.T, reply http.HandlerFunc) *fakeAnthropic {
	t.Helper()
	f := &fakeAnthropic{reply: reply}
	f.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f.calls.Add(1)
		f.reply(w, r)
	}))
	t.Cleanup(f.srv.Close)
	return f
}

func (f *fakeAnthropic) factory(apiKey string) *claude.Client {
	return claude.NewClient(claude.Config{
		APIKey:  apiKey,
		Model:   "claude-test",
		BaseURL: f.srv.URL,
		Timeout: 5 * time.Second,
	})
}

func jsonReply(body string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, body)
	}
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testDocument() *Document {
	return &Document{
		Path:        "documents/report.pdf",
		Name:        "report.pdf",
		ContentHash: "abc123",
		Chunks: []chunker.Chunk{
			{Index: 0, Title: "report.pdf (pages 1-2)", PageStart: 1, PageEnd: 2, CitationsEnabled: true, Data: "%PDF-a"},
			{Index: 1, Title: "report.pdf (pages 3-4)", PageStart: 3, PageEnd: 4, CitationsEnabled: true, Data: "%PDF-b"},
		},
		Outline: []document.PageSummary{{Page: 1, Excerpt: "Annual report"}},
	}
}

func newTestServer(t *testing.T, cfg config.Config, doc *Document, f *fakeAnthropic) *Server {
	t.Helper()
	s := NewServer(cfg, doc, f.factory, testLogger())
	t.Cleanup(s.Close)
	return s
}

func keyedConfig() config.Config {
	return config.Config{AnthropicAPIKey: "sk-test"}
}

func do(t *testing.T, h http.Handler, method, target, body string, header map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, r)
	for k, v := range header {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rec.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
	return v
}

func TestHealth(t *testing.T) {
	s := newTestServer(t, config.Config{}, testDocument(), newFakeAnthropic(t, jsonReply(citedAnswer)))
	rec := do(t, s, http.MethodGet, "/health", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if got := decode[map[string]string](t, rec)["status"]; got != "ok" {
		t.Errorf("status field = %q", got)
	}
}

func TestAPIChat_ReturnsAssistantTurnWithAbsolutePages(t *testing.T) {
	f := newFakeAnthropic(t, jsonReply(citedAnswer))
	s := newTestServer(t, keyedConfig(), testDocument(), f)

	rec := do(t, s, http.MethodPost, "/api/chat", `{"message":"How did revenue change?"}`, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body)
	}
	turn := decode[struct {
		Role      string `json:"role"`
		Text      string `json:"text"`
		Citations []struct {
			DocumentTitle string `json:"document_title"`
			StartPage     int    `json:"start_page"`
			EndPage       int    `json:"end_page"`
			QuotedText    string `json:"quoted_text"`
		} `json:"citations"`
	}](t, rec)

	if turn.Role != "assistant" {
		t.Errorf("role = %q", turn.Role)
	}
	if turn.Text != "The **revenue** grew by 10%." {
		t.Errorf("text = %q", turn.Text)
	}
	if len(turn.Citations) != 1 {
		t.Fatalf("citations = %d, want 1", len(turn.Citations))
	}
	c := turn.Citations[0]
	if c.StartPage != 4 || c.EndPage != 4 {
		t.Errorf("pages = %d-%d, want 4-4", c.StartPage, c.EndPage)
	}
	if c.DocumentTitle != "report.pdf (pages 3-4)" {
		t.Errorf("title = %q", c.DocumentTitle)
	}
	if f.calls.Load() != 1 {
		t.Errorf("remote calls = %d", f.calls.Load())
	}
}

func TestAPIChat_StatusMapping(t *testing.T) {
	missingDoc := &Document{Path: "nope.pdf", Name: "nope.pdf", Err: document.ErrDocumentNotFound}

	tests := []struct {
		name   string
		cfg    config.Config
		doc    *Document
		reply  http.HandlerFunc
		body   string
		status int
	}{
		{"empty prompt", keyedConfig(), testDocument(), jsonReply(citedAnswer), `{"message":"   "}`, http.StatusBadRequest},
		{"invalid json", keyedConfig(), testDocument(), jsonReply(citedAnswer), `{`, http.StatusBadRequest},
		{"missing credential", config.Config{}, testDocument(), jsonReply(citedAnswer), `{"message":"hi"}`, http.StatusServiceUnavailable},
		{"missing document", keyedConfig(), missingDoc, jsonReply(citedAnswer), `{"message":"hi"}`, http.StatusServiceUnavailable},
		{"empty response", keyedConfig(), testDocument(), jsonReply(`{"id":"m","content":[]}`), `{"message":"hi"}`, http.StatusBadGateway},
		{"remote error", keyedConfig(), testDocument(), func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
			io.WriteString(w, `{"type":"error","error":{"type":"api_error","message":"overloaded"}}`)
		}, `{"message":"hi"}`, http.StatusBadGateway},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestServer(t, tt.cfg, tt.doc, newFakeAnthropic(t, tt.reply))
			rec := do(t, s, http.MethodPost, "/api/chat", tt.body, nil)
			if rec.Code != tt.status {
				t.Fatalf("status = %d, want %d (body %s)", rec.Code, tt.status, rec.Body)
			}
			if decode[map[string]string](t, rec)["error"] == "" {
				t.Error("missing error message")
			}
		})
	}
}

func TestAPIChat_FailedTurnLeavesHistoryUnchanged(t *testing.T) {
	s := newTestServer(t, keyedConfig(), testDocument(), newFakeAnthropic(t, jsonReply(`{"content":[]}`)))

	rec := do(t, s, http.MethodPost, "/api/chat", `{"message":"hi"}`, nil)
	if rec.Code != http.StatusBadGateway {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "error processing request") {
		t.Errorf("body = %s", rec.Body)
	}

	hist := decode[struct {
		State string            `json:"state"`
		Turns []json.RawMessage `json:"turns"`
	}](t, do(t, s, http.MethodGet, "/api/history", "", nil))
	if len(hist.Turns) != 0 {
		t.Errorf("turns = %d, want 0", len(hist.Turns))
	}
	if hist.State != "idle" {
		t.Errorf("state = %q", hist.State)
	}
}

func TestAPIChat_BusyWhileAwaitingResponse(t *testing.T) {
	entered := make(chan struct{})
	release := make(chan struct{})
	f := newFakeAnthropic(t, func(w http.ResponseWriter, r *http.Request) {
		close(entered)
		<-release
		jsonReply(citedAnswer)(w, r)
	})
	s := newTestServer(t, keyedConfig(), testDocument(), f)

	done := make(chan int)
	go func() {
		done <- do(t, s, http.MethodPost, "/api/chat", `{"message":"first"}`, nil).Code
	}()
	<-entered

	rec := do(t, s, http.MethodPost, "/api/chat", `{"message":"second"}`, nil)
	close(release)
	if rec.Code != http.StatusConflict {
		t.Errorf("second status = %d, want 409", rec.Code)
	}
	if code := <-done; code != http.StatusOK {
		t.Errorf("first status = %d", code)
	}

	hist := decode[struct {
		Turns []struct {
			Role string `json:"role"`
			Text string `json:"text"`
		} `json:"turns"`
	}](t, do(t, s, http.MethodGet, "/api/history", "", nil))
	if len(hist.Turns) != 2 || hist.Turns[0].Text != "first" || hist.Turns[1].Role != "assistant" {
		t.Errorf("history = %+v", hist.Turns)
	}
}

func TestAPIDocument(t *testing.T) {
	s := newTestServer(t, config.Config{}, testDocument(), newFakeAnthropic(t, jsonReply(citedAnswer)))

	rec := do(t, s, http.MethodGet, "/api/document", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	got := decode[struct {
		Name   string      `json:"name"`
		Pages  int         `json:"pages"`
		Chunks []chunkView `json:"chunks"`
	}](t, rec)
	if got.Name != "report.pdf" || got.Pages != 4 {
		t.Errorf("name=%q pages=%d", got.Name, got.Pages)
	}
	if len(got.Chunks) != 2 || got.Chunks[1].PageStart != 3 || got.Chunks[1].PayloadBytes != 6 {
		t.Errorf("chunks = %+v", got.Chunks)
	}
}

func TestAPIDocument_Unavailable(t *testing.T) {
	doc := &Document{Path: "x.pdf", Err: document.ErrDocumentNotFound}
	s := newTestServer(t, config.Config{}, doc, newFakeAnthropic(t, jsonReply(citedAnswer)))

	if rec := do(t, s, http.MethodGet, "/api/document", "", nil); rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d", rec.Code)
	}
}

func TestAPICredential(t *testing.T) {
	s := newTestServer(t, config.Config{}, testDocument(), newFakeAnthropic(t, jsonReply(citedAnswer)))

	if rec := do(t, s, http.MethodGet, "/api/stats/llm", "", nil); rec.Code != http.StatusServiceUnavailable {
		t.Errorf("stats before key = %d", rec.Code)
	}
	if rec := do(t, s, http.MethodPost, "/api/credential", `{"api_key":"  "}`, nil); rec.Code != http.StatusBadRequest {
		t.Errorf("empty key = %d", rec.Code)
	}
	if rec := do(t, s, http.MethodPost, "/api/credential", `{"api_key":"sk-live"}`, nil); rec.Code != http.StatusOK {
		t.Fatalf("set key = %d", rec.Code)
	}
	if rec := do(t, s, http.MethodPost, "/api/credential", `{"api_key":"sk-other"}`, nil); rec.Code != http.StatusConflict {
		t.Errorf("second key = %d", rec.Code)
	}
	if rec := do(t, s, http.MethodPost, "/api/chat", `{"message":"hi"}`, nil); rec.Code != http.StatusOK {
		t.Errorf("chat after key = %d", rec.Code)
	}
}

func TestAPIStats(t *testing.T) {
	s := newTestServer(t, keyedConfig(), testDocument(), newFakeAnthropic(t, jsonReply(citedAnswer)))
	do(t, s, http.MethodPost, "/api/chat", `{"message":"hi"}`, nil)

	rec := do(t, s, http.MethodGet, "/api/stats/llm", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	got := decode[struct {
		Model string               `json:"model"`
		Stats claude.StatsSnapshot `json:"stats"`
	}](t, rec)
	if got.Model != "claude-test" || got.Stats.Calls != 1 || got.Stats.Failures != 0 {
		t.Errorf("stats = %+v", got)
	}
}

func TestAuthMiddleware(t *testing.T) {
	cfg := keyedConfig()
	cfg.APIKey = "secret"
	s := newTestServer(t, cfg, testDocument(), newFakeAnthropic(t, jsonReply(citedAnswer)))

	tests := []struct {
		name   string
		header map[string]string
		status int
	}{
		{"no header", nil, http.StatusUnauthorized},
		{"malformed basic", map[string]string{"Authorization": "Basic secret"}, http.StatusUnauthorized},
		{"wrong key", map[string]string{"Authorization": "Bearer nope"}, http.StatusUnauthorized},
		{"valid bearer", map[string]string{"Authorization": "Bearer secret"}, http.StatusOK},
		{"valid basic", map[string]string{"Authorization": "Basic dXNlcjpzZWNyZXQ="}, http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for _, target := range []string{"/api/history", "/"} {
				if rec := do(t, s, http.MethodGet, target, "", tt.header); rec.Code != tt.status {
					t.Errorf("%s: status = %d, want %d", target, rec.Code, tt.status)
				}
			}
		})
	}

	if rec := do(t, s, http.MethodGet, "/", "", nil); rec.Header().Get("WWW-Authenticate") == "" {
		t.Error("expected a basic auth challenge")
	}
	if rec := do(t, s, http.MethodGet, "/health", "", nil); rec.Code != http.StatusOK {
		t.Errorf("health status = %d", rec.Code)
	}
}

func TestAuthMiddleware_CoversFormRoutes(t *testing.T) {
	cfg := keyedConfig()
	cfg.APIKey = "secret"
	f := newFakeAnthropic(t, jsonReply(citedAnswer))
	s := newTestServer(t, cfg, testDocument(), f)

	rec := do(t, s, http.MethodPost, "/chat", formBody("prompt", "hi"), formHeader)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("chat status = %d, want 401", rec.Code)
	}
	if f.calls.Load() != 0 {
		t.Errorf("remote calls = %d, want 0", f.calls.Load())
	}
	bearer := map[string]string{"Authorization": "Bearer secret"}
	hist := decode[struct {
		Turns []json.RawMessage `json:"turns"`
	}](t, do(t, s, http.MethodGet, "/api/history", "", bearer))
	if len(hist.Turns) != 0 {
		t.Errorf("turns = %d, want 0", len(hist.Turns))
	}

	// Without a configured Anthropic key, an unauthenticated caller cannot supply one.
	unkeyed := newTestServer(t, config.Config{APIKey: "secret"}, testDocument(), f)
	rec = do(t, unkeyed, http.MethodPost, "/credential", formBody("api_key", "sk-other"), formHeader)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("credential status = %d, want 401", rec.Code)
	}
	if unkeyed.client() != nil {
		t.Error("session started without service authorization")
	}

	withAuth := map[string]string{
		"Content-Type":  "application/x-www-form-urlencoded",
		"Authorization": "Bearer secret",
	}
	if rec := do(t, s, http.MethodPost, "/chat", formBody("prompt", "hi"), withAuth); rec.Code != http.StatusSeeOther {
		t.Errorf("authorized chat status = %d, want 303", rec.Code)
	}
}

func TestLoadDocument(t *testing.T) {
	path := filepath.Join(t.TempDir(), "five.pdf")
	if err := os.WriteFile(path, pdftest.Build(5), 0o644); err != nil {
		t.Fatal(err)
	}
	ch := chunker.New(chunker.NewPDFSplitter(), chunker.Config{MaxPages: 2})

	doc := LoadDocument(ch, path, testLogger())
	if doc.Err != nil {
		t.Fatalf("load: %v", doc.Err)
	}
	if doc.Name != "five.pdf" || doc.Pages() != 5 || len(doc.Chunks) != 3 {
		t.Errorf("name=%q pages=%d chunks=%d", doc.Name, doc.Pages(), len(doc.Chunks))
	}
	if len(doc.Outline) != 5 {
		t.Errorf("outline pages = %d", len(doc.Outline))
	}
	if doc.ContentHash == "" {
		t.Error("content hash not set")
	}
}

func TestLoadDocument_Missing(t *testing.T) {
	ch := chunker.New(chunker.NewPDFSplitter(), chunker.DefaultConfig())
	doc := LoadDocument(ch, filepath.Join(t.TempDir(), "missing.pdf"), testLogger())
	if !errors.Is(doc.Err, document.ErrDocumentNotFound) {
		t.Errorf("err = %v", doc.Err)
	}
}

func formBody(kv ...string) string {
	v := url.Values{}
	for i := 0; i+1 < len(kv); i += 2 {
		v.Set(kv[i], kv[i+1])
	}
	return v.Encode()
}

var formHeader = map[string]string{"Content-Type": "application/x-www-form-urlencoded"}
