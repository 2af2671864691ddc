package health

import (
	"net/http"
	"testing"
	"time"

	"github.com/giygas/finddrugs/analyzer"
	"github.com/giygas/finddrugs/interfaces"
	"github.com/giygas/finddrugs/lexicon"
)

// MockHealthStore implements interfaces.LexiconStore for testing
type MockHealthStore struct {
	lex         *lexicon.Lexicon
	lastUpdated time.Time
	startTime   time.Time
	isUpdating  bool
}

func (m *MockHealthStore) GetLexicon() *lexicon.Lexicon { return m.lex }
func (m *MockHealthStore) GetAnalyzer() *analyzer.Analyzer {
	if m.lex == nil {
		return nil
	}
	return analyzer.New(m.lex)
}
func (m *MockHealthStore) GetQualityReport() *interfaces.LexiconQualityReport { return nil }
func (m *MockHealthStore) GetLastUpdated() time.Time                          { return m.lastUpdated }
func (m *MockHealthStore) IsUpdating() bool                                   { return m.isUpdating }
func (m *MockHealthStore) GetServerStartTime() time.Time                      { return m.startTime }
func (m *MockHealthStore) UpdateLexicon(*lexicon.Lexicon, *analyzer.Analyzer, *interfaces.LexiconQualityReport) {
}
func (m *MockHealthStore) BeginUpdate() bool { return true }
func (m *MockHealthStore) EndUpdate()        {}

func testLexicon(t *testing.T) *lexicon.Lexicon {
	t.Helper()
	lex, err := lexicon.Build([]lexicon.ClassDef{
		{Name: "SSRI", Patterns: map[string]string{"sertraline": "sertraline", "citalopram": "citalopram"}, Order: []string{"sertraline", "citalopram"}},
		{Name: "MISC", Patterns: map[string]string{"bupropion": "bupropion"}, Order: []string{"bupropion"}},
	})
	if err != nil {
		t.Fatalf("failed to build lexicon: %v", err)
	}
	return lex
}

func TestNewHealthChecker(t *testing.T) {
	hc := NewHealthChecker(&MockHealthStore{}, time.Hour)
	if _, ok := hc.(*HealthCheckerImpl); !ok {
		t.Error("NewHealthChecker should return *HealthCheckerImpl")
	}
}

func TestHealthCheck_Status(t *testing.T) {
	lex := testLexicon(t)

	tests := []struct {
		name       string
		store      *MockHealthStore
		interval   time.Duration
		wantStatus string
		wantHTTP   int
	}{
		{"healthy", &MockHealthStore{lex: lex, lastUpdated: time.Now()}, time.Hour, "healthy", http.StatusOK},
		{"no lexicon", &MockHealthStore{lastUpdated: time.Now()}, time.Hour, "unhealthy", http.StatusServiceUnavailable},
		{"stale", &MockHealthStore{lex: lex, lastUpdated: time.Now().Add(-3 * time.Hour)}, time.Hour, "degraded", http.StatusServiceUnavailable},
		{"very stale", &MockHealthStore{lex: lex, lastUpdated: time.Now().Add(-5 * time.Hour)}, time.Hour, "unhealthy", http.StatusServiceUnavailable},
		{"reload disabled never stale", &MockHealthStore{lex: lex, lastUpdated: time.Now().Add(-500 * time.Hour)}, 0, "healthy", http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, _, httpStatus := NewHealthChecker(tt.store, tt.interval).HealthCheck()
			if status != tt.wantStatus || httpStatus != tt.wantHTTP {
				t.Errorf("HealthCheck() = %s/%d, want %s/%d", status, httpStatus, tt.wantStatus, tt.wantHTTP)
			}
		})
	}
}

func TestHealthCheck_Details(t *testing.T) {
	store := &MockHealthStore{
		lex:         testLexicon(t),
		lastUpdated: time.Now().Add(-30 * time.Minute),
		startTime:   time.Now().Add(-2 * time.Hour),
		isUpdating:  true,
	}

	_, details, _ := NewHealthChecker(store, time.Hour).HealthCheck()

	for _, key := range []string{"last_update", "data_age_hours", "data", "system", "uptime_seconds", "next_update"} {
		if _, ok := details[key]; !ok {
			t.Errorf("details should contain %q", key)
		}
	}

	data := details["data"].(map[string]any)
	if data["classes"] != 2 || data["generics"] != 3 || data["is_updating"] != true {
		t.Errorf("unexpected data section %v", data)
	}

	system := details["system"].(map[string]any)
	if system["goroutines"] == nil {
		t.Error("system should contain goroutines count")
	}
	if _, ok := system["memory"]; !ok {
		t.Error("system should contain memory info")
	}
}

func TestCalculateNextUpdate(t *testing.T) {
	t.Run("disabled", func(t *testing.T) {
		hc := NewHealthChecker(&MockHealthStore{lastUpdated: time.Now()}, 0)
		if !hc.CalculateNextUpdate().IsZero() {
			t.Error("no next update expected when reloads are disabled")
		}
	})

	t.Run("after last update", func(t *testing.T) {
		last := time.Now().Add(-10 * time.Minute)
		hc := NewHealthChecker(&MockHealthStore{lastUpdated: last}, time.Hour)
		if got := hc.CalculateNextUpdate(); !got.Equal(last.Add(time.Hour)) {
			t.Errorf("CalculateNextUpdate() = %v, want %v", got, last.Add(time.Hour))
		}
	})

	t.Run("missed reloads", func(t *testing.T) {
		hc := NewHealthChecker(&MockHealthStore{lastUpdated: time.Now().Add(-150 * time.Minute)}, time.Hour)
		got := hc.CalculateNextUpdate()
		if got.Before(time.Now()) || got.After(time.Now().Add(time.Hour)) {
			t.Errorf("CalculateNextUpdate() = %v, want within the next hour", got)
		}
	})
}

func BenchmarkHealthCheck(b *testing.B) {
	lex, _ := lexicon.Build([]lexicon.ClassDef{{Name: "SSRI", Patterns: map[string]string{"sertraline": "sertraline"}, Order: []string{"sertraline"}}})
	hc := NewHealthChecker(&MockHealthStore{lex: lex, lastUpdated: time.Now()}, time.Hour)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		hc.HealthCheck()
	}
}
