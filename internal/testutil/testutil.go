// Package testutil provides fakes and helpers shared by EnrollBot tests.
package testutil

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http/httptest"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/BTreeMap/EnrollBot/internal/models"
)

// ErrInjected is returned by fakes configured to fail.
var ErrInjected = errors.New("injected failure")

// SentMessage is one delivery recorded by RecordingSender.
type SentMessage struct {
	To    string
	Text  string
	Media *models.MediaRef
}

// RecordingSender records outbound messages and can fail on the Nth send.
type RecordingSender struct {
	mu     sync.Mutex
	Sent   []SentMessage
	FailAt int // 1-based send attempt that fails; 0 never fails
	calls  int
}

// SendMessage records a text message.
func (s *RecordingSender) SendMessage(ctx context.Context, to, body string) error {
	return s.record(SentMessage{To: to, Text: body})
}

// SendMedia records a media message.
func (s *RecordingSender) SendMedia(ctx context.Context, to string, media models.MediaRef) error {
	m := media
	return s.record(SentMessage{To: to, Media: &m})
}

func (s *RecordingSender) record(m SentMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.FailAt > 0 && s.calls == s.FailAt {
		return fmt.Errorf("send %d: %w", s.calls, ErrInjected)
	}
	s.Sent = append(s.Sent, m)
	return nil
}

// Messages returns a copy of the recorded messages.
func (s *RecordingSender) Messages() []SentMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]SentMessage, len(s.Sent))
	copy(out, s.Sent)
	return out
}

// Reset clears recorded messages and the failure switch.
func (s *RecordingSender) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Sent = nil
	s.FailAt = 0
	s.calls = 0
}

// FixedClock is a settable clock.
type FixedClock struct {
	mu sync.Mutex
	T  time.Time
}

// NewFixedClock returns a clock stopped at t.
func NewFixedClock(t time.Time) *FixedClock {
	return &FixedClock{T: t}
}

// Now returns the current fake time.
func (c *FixedClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.T
}

// Advance moves the clock forward.
func (c *FixedClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.T = c.T.Add(d)
}

type manualEntry struct {
	delay time.Duration
	fn    func()
}

// ManualTimer collects scheduled callbacks and runs them on demand.
type ManualTimer struct {
	mu      sync.Mutex
	nextID  int
	pending map[string]manualEntry
}

// NewManualTimer creates an empty ManualTimer.
func NewManualTimer() *ManualTimer {
	return &ManualTimer{pending: make(map[string]manualEntry)}
}

// ScheduleAfter records fn without running it.
func (m *ManualTimer) ScheduleAfter(delay time.Duration, fn func()) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	id := fmt.Sprintf("manual_%d", m.nextID)
	m.pending[id] = manualEntry{delay: delay, fn: fn}
	return id, nil
}

// Cancel drops a pending callback.
func (m *ManualTimer) Cancel(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.pending, id)
	return nil
}

// Pending returns the delays of pending callbacks in scheduling order.
func (m *ManualTimer) Pending() []time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := m.sortedIDs()
	out := make([]time.Duration, 0, len(ids))
	for _, id := range ids {
		out = append(out, m.pending[id].delay)
	}
	return out
}

// FireAll runs and removes every pending callback, returning how many ran.
func (m *ManualTimer) FireAll() int {
	m.mu.Lock()
	ids := m.sortedIDs()
	fns := make([]func(), 0, len(ids))
	for _, id := range ids {
		fns = append(fns, m.pending[id].fn)
		delete(m.pending, id)
	}
	m.mu.Unlock()

	for _, fn := range fns {
		fn()
	}
	return len(fns)
}

func (m *ManualTimer) sortedIDs() []string {
	ids := make([]string, 0, len(m.pending))
	for id := range m.pending {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		var a, b int
		fmt.Sscanf(ids[i], "manual_%d", &a)
		fmt.Sscanf(ids[j], "manual_%d", &b)
		return a < b
	})
	return ids
}

// MarketingDigital returns a COURSE catalog entry with prices, a payment link
// and a far-future start date.
func MarketingDigital() models.ProgramEntry {
	e := models.ProgramEntry{
		ProgramName:     "Marketing Digital",
		Edition:         "12",
		CategoryLabel:   "CURSO",
		Professional:    models.SegmentPrices{List: "1200", Installment: "660", Cash: "540", Deposit: "100"},
		Student:         models.SegmentPrices{List: "900", Installment: "495", Cash: "405", Deposit: "80"},
		ProfileResponse: [5]string{"Perfecto para actualizarte", "Ideal para tu búsqueda", "Aprende con nosotros", "Prepárate para tus prácticas", "Impulsa tu negocio"},
		StartLabel:      "Sábado 07 de noviembre",
		EndLabel:        "Sábado 12 de diciembre",
		Hours:           "9:00 a.m. a 1:00 p.m.",
		Days:            "Sábados",
		Sessions:        "6",
		Personalized:    "¡Hola! Gracias por tu interés en Marketing Digital.",
		Benefits:        "✅ Certificado incluido",
		PaymentLink:     "https://pagos.example.pe/marketing-digital",
	}
	e.StartDates[5] = "07/11/2099"
	return e
}

// Excel returns a PROGRAM catalog entry without a payment link.
func Excel() models.ProgramEntry {
	e := models.ProgramEntry{
		ProgramName:   "Excel Empresarial",
		Edition:       "3",
		CategoryLabel: "PROGRAMA",
		Professional:  models.SegmentPrices{List: "800", Installment: "440", Cash: "360", Deposit: "60"},
		Student:       models.SegmentPrices{List: "600", Installment: "330", Cash: "270", Deposit: "50"},
		Sessions:      "8",
	}
	e.StartDates[5] = "01/02/2099"
	return e
}

// Synonyms returns an index resolving the fixture entries.
func Synonyms() models.SynonymIndex {
	return models.SynonymIndex{
		{Key: "Marketing Digital", Variants: []string{"marketing", "mkt digital"}},
		{Key: "Excel Empresarial", Variants: []string{"excel"}},
	}
}

// DecodeAPIResponse decodes the standard JSON envelope from a recorder.
func DecodeAPIResponse(t *testing.T, rr *httptest.ResponseRecorder) models.APIResponse {
	t.Helper()
	var resp models.APIResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode JSON response: %v", err)
	}
	return resp
}

// AssertHTTPStatus checks the HTTP status code and fails the test if it doesn't match.
func AssertHTTPStatus(t *testing.T, expected, actual int, context string) {
	t.Helper()
	if actual != expected {
		t.Errorf("%s: expected status %d, got %d", context, expected, actual)
	}
}
