package models

import "strings"

// EventKind identifies a metrics event.
type EventKind string

const (
	EventReceived  EventKind = "received"
	EventResponded EventKind = "responded"
)

// TrackedKeywords is the fixed keyword vocabulary in priority order.
var TrackedKeywords = []string{"hola", "info", "estoy"}

// MetricsCounters holds the process-wide conversation counters.
type MetricsCounters struct {
	TotalReceived    int64            `json:"totalReceived"`
	TotalResponded   int64            `json:"totalResponded"`
	Keywords         map[string]int64 `json:"keywords"`
	ProgramInquiries map[string]int64 `json:"programInquiries"`
}

// NewMetricsCounters returns zeroed counters with every tracked keyword present.
func NewMetricsCounters() MetricsCounters {
	m := MetricsCounters{
		Keywords:         make(map[string]int64, len(TrackedKeywords)),
		ProgramInquiries: make(map[string]int64),
	}
	for _, k := range TrackedKeywords {
		m.Keywords[k] = 0
	}
	return m
}

// Normalize fills missing maps and keywords so loaded data always has the base shape.
func (m *MetricsCounters) Normalize() {
	if m.Keywords == nil {
		m.Keywords = make(map[string]int64, len(TrackedKeywords))
	}
	for _, k := range TrackedKeywords {
		if _, ok := m.Keywords[k]; !ok {
			m.Keywords[k] = 0
		}
	}
	if m.ProgramInquiries == nil {
		m.ProgramInquiries = make(map[string]int64)
	}
}

// Clone returns a deep copy.
func (m MetricsCounters) Clone() MetricsCounters {
	c := MetricsCounters{
		TotalReceived:    m.TotalReceived,
		TotalResponded:   m.TotalResponded,
		Keywords:         make(map[string]int64, len(m.Keywords)),
		ProgramInquiries: make(map[string]int64, len(m.ProgramInquiries)),
	}
	for k, v := range m.Keywords {
		c.Keywords[k] = v
	}
	for k, v := range m.ProgramInquiries {
		c.ProgramInquiries[k] = v
	}
	return c
}

// ProgramInquiryKey is the counter key used for a program name.
func ProgramInquiryKey(programName string) string {
	return strings.ToUpper(strings.TrimSpace(programName))
}
