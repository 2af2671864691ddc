package handlers

import (
	"bytes"
	"compress/gzip"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/giygas/finddrugs/analyzer"
	"github.com/giygas/finddrugs/data"
	"github.com/giygas/finddrugs/health"
	"github.com/giygas/finddrugs/lexicon"
	"github.com/giygas/finddrugs/validation"
)

func testLexicon(t *testing.T) *lexicon.Lexicon {
	t.Helper()
	lex, err := lexicon.Build([]lexicon.ClassDef{
		{
			Name:     "SSRI",
			Patterns: map[string]string{"sertraline": "sertraline|zoloft", "citalopram": "citalopram|celexa"},
			Order:    []string{"sertraline", "citalopram"},
		},
		{
			Name:     "MISC",
			Patterns: map[string]string{"bupropion": "bupropion|wellbutrin"},
			Order:    []string{"bupropion"},
		},
	})
	if err != nil {
		t.Fatalf("failed to build lexicon: %v", err)
	}
	return lex
}

func newTestHandler(t *testing.T, loaded bool) *HTTPHandlerImpl {
	t.Helper()
	store := data.NewLexiconContainer()
	store.SetServerStartTime(time.Now().Add(-90 * time.Second))
	if loaded {
		lex := testLexicon(t)
		store.UpdateLexicon(lex, analyzer.New(lex), validation.NewDataValidator().ReportLexiconQuality(lex))
	}
	return NewHTTPHandler(store, validation.NewDataValidator(), health.NewHealthChecker(store, time.Hour))
}

func post(h http.HandlerFunc, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h(rec, req)
	return rec
}

func TestAnalyzeNote(t *testing.T) {
	h := newTestHandler(t, true)

	rec := post(h.AnalyzeNote, `{"row_id": 1, "subject_id": 2, "hadm_id": 3,
		"text": "Admission medications:\nZoloft 50 mg\nDischarge medications:\ncelexa"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}

	var resp struct {
		RowID    int64             `json:"row_id"`
		Group    string            `json:"group"`
		Member   []bool            `json:"member"`
		Classes  []string          `json:"classes"`
		Findings analyzer.Findings `json:"findings"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}

	if resp.RowID != 1 || resp.Group != "3" {
		t.Errorf("unexpected response %+v", resp)
	}
	if len(resp.Member) != 2 || !resp.Member[0] || resp.Member[1] {
		t.Errorf("member = %v, want [true false]", resp.Member)
	}
	if strings.Join(resp.Classes, ",") != "SSRI,MISC" {
		t.Errorf("classes = %v", resp.Classes)
	}
	if !resp.Findings.DrugsDischarge[1] || resp.Findings.DrugsAdmit[1] {
		t.Errorf("findings = %+v", resp.Findings)
	}
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "application/json") {
		t.Errorf("Content-Type = %q", ct)
	}
}

func TestAnalyzeNoteErrors(t *testing.T) {
	tests := []struct {
		name   string
		loaded bool
		body   string
		want   int
	}{
		{"malformed json", true, `{"text":`, http.StatusBadRequest},
		{"trailing data", true, `{"text":"a"} {"text":"b"}`, http.StatusBadRequest},
		{"missing text", true, `{"row_id": 4}`, http.StatusBadRequest},
		{"negative id", true, `{"row_id": -4, "text": "x"}`, http.StatusBadRequest},
		{"no lexicon", false, `{"row_id": 4, "text": "x"}`, http.StatusServiceUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := post(newTestHandler(t, tt.loaded).AnalyzeNote, tt.body)
			if rec.Code != tt.want {
				t.Fatalf("status = %d, want %d (%s)", rec.Code, tt.want, rec.Body.String())
			}

			var resp ErrorResponse
			if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil || resp.Code != tt.want || resp.Message == "" {
				t.Errorf("unexpected error body %s", rec.Body.String())
			}
		})
	}
}

func TestAnalyzeBatch(t *testing.T) {
	h := newTestHandler(t, true)

	rec := post(h.AnalyzeBatch, `[
		{"row_id": 1, "text": "DISCHARGE MEDICATIONS:\nsertraline"},
		{"row_id": 2, "text": "ADMISSION MEDICATIONS: none"},
		{"row_id": 3, "text": "nothing here"}
	]`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}

	var resp []struct {
		RowID int64  `json:"row_id"`
		Group string `json:"group"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}

	want := []string{"0", "1", "U"}
	if len(resp) != len(want) {
		t.Fatalf("got %d results, want %d", len(resp), len(want))
	}
	for i, r := range resp {
		if r.RowID != int64(i+1) || r.Group != want[i] {
			t.Errorf("result %d = %+v, want row %d group %s", i, r, i+1, want[i])
		}
	}
}

func TestAnalyzeBatchErrors(t *testing.T) {
	h := newTestHandler(t, true)

	for _, body := range []string{`[]`, `{"text": "not an array"}`, `[{"row_id": 1, "text": ""}]`} {
		if rec := post(h.AnalyzeBatch, body); rec.Code != http.StatusBadRequest {
			t.Errorf("body %s: status = %d, want 400", body, rec.Code)
		}
	}
}

func TestServeLexicon(t *testing.T) {
	h := newTestHandler(t, true)

	rec := httptest.NewRecorder()
	h.ServeLexicon(rec, httptest.NewRequest(http.MethodGet, "/v1/lexicon", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}

	var resp LexiconResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if resp.Generics != 3 || strings.Join(resp.FlatList, ",") != "sertraline,citalopram,bupropion" {
		t.Errorf("unexpected lexicon %+v", resp)
	}
	if len(resp.Classes) != 2 || resp.Classes[1].Range != (lexicon.Range{Start: 2, End: 2}) {
		t.Errorf("unexpected classes %+v", resp.Classes)
	}

	rec = httptest.NewRecorder()
	newTestHandler(t, false).ServeLexicon(rec, httptest.NewRequest(http.MethodGet, "/v1/lexicon", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status without lexicon = %d, want 503", rec.Code)
	}
}

func TestHealthCheck(t *testing.T) {
	rec := httptest.NewRecorder()
	newTestHandler(t, true).HealthCheck(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}

	var resp HealthResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if resp.Status != "healthy" || resp.Data["generics"] != float64(3) {
		t.Errorf("unexpected health %+v", resp)
	}
	if resp.Uptime != "1m 30s" {
		t.Errorf("uptime = %q, want 1m 30s", resp.Uptime)
	}

	rec = httptest.NewRecorder()
	newTestHandler(t, false).HealthCheck(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status without lexicon = %d, want 503", rec.Code)
	}
}

func TestRespondWithJSONCompression(t *testing.T) {
	payload := map[string]string{"text": strings.Repeat("sertraline ", 200)}

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Accept-Encoding", "gzip, deflate")
	rec := httptest.NewRecorder()
	respondWithJSON(rec, req, http.StatusOK, payload)

	if rec.Header().Get("Content-Encoding") != "gzip" {
		t.Fatal("large response should be compressed")
	}
	gz, err := gzip.NewReader(rec.Body)
	if err != nil {
		t.Fatalf("invalid gzip: %v", err)
	}
	body, _ := io.ReadAll(gz)
	if !bytes.Contains(body, []byte("sertraline")) {
		t.Error("decompressed body lost its content")
	}

	rec = httptest.NewRecorder()
	respondWithJSON(rec, httptest.NewRequest(http.MethodGet, "/", nil), http.StatusOK, payload)
	if rec.Header().Get("Content-Encoding") != "" {
		t.Error("response must not be compressed without Accept-Encoding")
	}
}

func TestFormatUptimeHuman(t *testing.T) {
	tests := []struct {
		d    time.Duration
		want string
	}{
		{5 * time.Second, "5s"},
		{2*time.Minute + 3*time.Second, "2m 3s"},
		{3*time.Hour + 5*time.Second, "3h 0m 5s"},
		{50 * time.Hour, "2d 2h 0m 0s"},
	}
	for _, tt := range tests {
		if got := formatUptimeHuman(tt.d); got != tt.want {
			t.Errorf("formatUptimeHuman(%v) = %q, want %q", tt.d, got, tt.want)
		}
	}
}
