package api

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/BTreeMap/EnrollBot/internal/models"
	"github.com/BTreeMap/EnrollBot/internal/testutil"
)

type fakeStats struct {
	counters models.MetricsCounters
	resetErr error
	resets   int
}

func (f *fakeStats) Snapshot() models.MetricsCounters { return f.counters }

func (f *fakeStats) Reset(ctx context.Context) error {
	if f.resetErr != nil {
		return f.resetErr
	}
	f.resets++
	f.counters = models.MetricsCounters{}
	return nil
}

type fakeStates struct {
	states []models.ConversationState
	err    error
}

func (f *fakeStates) List(ctx context.Context) ([]models.ConversationState, error) {
	return f.states, f.err
}

type fakeReceipts []models.Receipt

func (f fakeReceipts) GetReceipts() ([]models.Receipt, error) { return f, nil }

func newTestServer(stats *fakeStats, states *fakeStates) *Server {
	return NewServer(TransportWhatsApp, stats, states, nil, nil)
}

func serve(s *Server, method, target string) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	s.Handler().ServeHTTP(rr, httptest.NewRequest(method, target, nil))
	return rr
}

func TestHealthHandler(t *testing.T) {
	s := newTestServer(&fakeStats{}, &fakeStates{})
	rr := serve(s, http.MethodGet, "/health")
	testutil.AssertHTTPStatus(t, http.StatusOK, rr.Code, "health")
	resp := testutil.DecodeAPIResponse(t, rr)
	result, ok := resp.Result.(map[string]interface{})
	if !ok || result["transport"] != TransportWhatsApp {
		t.Errorf("unexpected health result: %#v", resp.Result)
	}
}

func TestMethodNotAllowed(t *testing.T) {
	s := newTestServer(&fakeStats{}, &fakeStates{})
	tests := []struct {
		method, target, allow string
	}{
		{http.MethodPost, "/health", http.MethodGet},
		{http.MethodPost, "/stats", http.MethodGet},
		{http.MethodGet, "/stats/reset", http.MethodPost},
		{http.MethodDelete, "/conversations", http.MethodGet},
		{http.MethodGet, "/webhook/twilio", http.MethodPost},
	}
	for _, tt := range tests {
		t.Run(tt.method+" "+tt.target, func(t *testing.T) {
			rr := serve(s, tt.method, tt.target)
			testutil.AssertHTTPStatus(t, http.StatusMethodNotAllowed, rr.Code, tt.target)
			if got := rr.Header().Get("Allow"); got != tt.allow {
				t.Errorf("Allow = %q, want %q", got, tt.allow)
			}
		})
	}
}

func TestStatsHandler(t *testing.T) {
	stats := &fakeStats{counters: models.MetricsCounters{
		TotalReceived:    4,
		TotalResponded:   3,
		Keywords:         map[string]int64{"hola": 2},
		ProgramInquiries: map[string]int64{"Marketing Digital": 1},
	}}
	s := newTestServer(stats, &fakeStates{})
	rr := serve(s, http.MethodGet, "/stats")
	testutil.AssertHTTPStatus(t, http.StatusOK, rr.Code, "stats")
	body := rr.Body.String()
	for _, want := range []string{`"totalReceived":4`, `"totalResponded":3`, `"hola":2`, `"Marketing Digital":1`} {
		if !strings.Contains(body, want) {
			t.Errorf("stats body missing %s: %s", want, body)
		}
	}
}

func TestStatsResetHandler(t *testing.T) {
	stats := &fakeStats{counters: models.MetricsCounters{TotalReceived: 9}}
	s := newTestServer(stats, &fakeStates{})
	rr := serve(s, http.MethodPost, "/stats/reset")
	testutil.AssertHTTPStatus(t, http.StatusOK, rr.Code, "reset")
	if stats.resets != 1 || stats.counters.TotalReceived != 0 {
		t.Errorf("reset not applied: %+v", stats)
	}

	stats.resetErr = errors.New("disk full")
	rr = serve(s, http.MethodPost, "/stats/reset")
	testutil.AssertHTTPStatus(t, http.StatusInternalServerError, rr.Code, "failed reset")
	if resp := testutil.DecodeAPIResponse(t, rr); resp.Status != string(models.APIStatusError) {
		t.Errorf("status = %q, want error", resp.Status)
	}
}

func TestConversationsHandler(t *testing.T) {
	base := time.Date(2026, 10, 14, 10, 0, 0, 0, time.UTC)
	states := &fakeStates{states: []models.ConversationState{
		{UserID: "51911111111", Stage: models.StageAwaitingProfile, UpdatedAt: base},
		{UserID: "51922222222", Stage: models.StageAwaitingPaymentMethod, UpdatedAt: base.Add(time.Minute)},
		{UserID: "51933333333", Stage: models.StageAwaitingProfile, UpdatedAt: base.Add(2 * time.Minute)},
	}}
	s := newTestServer(&fakeStats{}, states)

	tests := []struct {
		name   string
		target string
		status int
		users  []string
	}{
		{"all newest first", "/conversations", http.StatusOK, []string{"51933333333", "51922222222", "51911111111"}},
		{"stage filter", "/conversations?stage=awaiting_profile", http.StatusOK, []string{"51933333333", "51911111111"}},
		{"unknown stage", "/conversations?stage=PAID", http.StatusBadRequest, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := serve(s, http.MethodGet, tt.target)
			testutil.AssertHTTPStatus(t, tt.status, rr.Code, tt.target)
			resp := testutil.DecodeAPIResponse(t, rr)
			if tt.users == nil {
				return
			}
			list, ok := resp.Result.([]interface{})
			if !ok || len(list) != len(tt.users) {
				t.Fatalf("result = %#v, want %d entries", resp.Result, len(tt.users))
			}
			for i, item := range list {
				if got := item.(map[string]interface{})["user_id"]; got != tt.users[i] {
					t.Errorf("entry %d = %v, want %s", i, got, tt.users[i])
				}
			}
		})
	}
}

func TestConversationsHandlerListError(t *testing.T) {
	s := newTestServer(&fakeStats{}, &fakeStates{err: errors.New("db down")})
	rr := serve(s, http.MethodGet, "/conversations")
	testutil.AssertHTTPStatus(t, http.StatusInternalServerError, rr.Code, "list error")
}

func TestReceiptsHandler(t *testing.T) {
	s := newTestServer(&fakeStats{}, &fakeStates{})
	rr := serve(s, http.MethodGet, "/receipts")
	testutil.AssertHTTPStatus(t, http.StatusOK, rr.Code, "no receipt store")
	if !strings.Contains(rr.Body.String(), `"result":[]`) {
		t.Errorf("expected empty list, got %s", rr.Body.String())
	}

	s.receipts = fakeReceipts{{To: "51987654321", Status: models.MessageStatusDelivered, Time: 1}}
	rr = serve(s, http.MethodGet, "/receipts")
	testutil.AssertHTTPStatus(t, http.StatusOK, rr.Code, "receipts")
	if !strings.Contains(rr.Body.String(), "51987654321") {
		t.Errorf("receipt missing from %s", rr.Body.String())
	}
}

func TestWebhookHandler(t *testing.T) {
	s := newTestServer(&fakeStats{}, &fakeStates{})
	rr := serve(s, http.MethodPost, "/webhook/twilio")
	testutil.AssertHTTPStatus(t, http.StatusNotFound, rr.Code, "webhook disabled")

	called := false
	s.webhook = func(w http.ResponseWriter, r *http.Request) {
		called = true
		w.WriteHeader(http.StatusNoContent)
	}
	rr = serve(s, http.MethodPost, "/webhook/twilio")
	testutil.AssertHTTPStatus(t, http.StatusNoContent, rr.Code, "webhook enabled")
	if !called {
		t.Error("webhook not forwarded")
	}
}

func TestOptionsApplyDefaults(t *testing.T) {
	var cfg Opts
	for _, opt := range []Option{
		WithTransport(TransportTwilio),
		WithCatalogFiles("c.json", "s.json", "content.yaml"),
		WithMedia("/media", "https://cdn.example.com/m"),
		WithIdleSweep(time.Hour, ""),
	} {
		opt(&cfg)
	}
	cfg.applyDefaults()

	if cfg.Addr != DefaultAddr || cfg.StateDir != DefaultStateDir {
		t.Errorf("defaults not applied: %+v", cfg)
	}
	if cfg.Transport != TransportTwilio || cfg.CatalogPath != "c.json" || cfg.MediaBaseURL != "https://cdn.example.com/m" {
		t.Errorf("options not applied: %+v", cfg)
	}
	if cfg.IdleTTL != time.Hour || cfg.SweepSpec == "" || cfg.Location == nil {
		t.Errorf("sweep defaults wrong: %+v", cfg)
	}
}

func TestRunRejectsUnknownTransport(t *testing.T) {
	err := Run(nil, nil, nil, nil, WithTransport("telegram"), WithStateDir(t.TempDir()))
	if err == nil || !strings.Contains(err.Error(), "unknown transport") {
		t.Fatalf("expected unknown transport error, got %v", err)
	}
}

func TestServerStartAndShutdown(t *testing.T) {
	s := newTestServer(&fakeStats{}, &fakeStates{})
	if err := s.Start("127.0.0.1:0"); err != nil {
		t.Fatalf("Start: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := s.Shutdown(ctx); err != nil {
		t.Errorf("Shutdown: %v", err)
	}
}
