package catalog

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/BTreeMap/EnrollBot/internal/models"
)

// DefaultMaxScheduleOptions caps the number of cohorts offered in one schedule block.
const DefaultMaxScheduleOptions = 3

// ParseStartDate parses a d/m/yyyy date in loc. Day and month may be unpadded.
func ParseStartDate(raw string, loc *time.Location) (time.Time, bool) {
	parts := strings.Split(strings.TrimSpace(raw), "/")
	if len(parts) != 3 {
		return time.Time{}, false
	}
	day, err1 := strconv.Atoi(strings.TrimSpace(parts[0]))
	month, err2 := strconv.Atoi(strings.TrimSpace(parts[1]))
	year, err3 := strconv.Atoi(strings.TrimSpace(parts[2]))
	if err1 != nil || err2 != nil || err3 != nil {
		return time.Time{}, false
	}
	if month < 1 || month > 12 || day < 1 || day > 31 || year < 1000 {
		return time.Time{}, false
	}
	d := time.Date(year, time.Month(month), day, 0, 0, 0, 0, loc)
	// time.Date normalizes 31/02 into March; reject such dates
	if d.Day() != day || d.Month() != time.Month(month) {
		return time.Time{}, false
	}
	return d, true
}

// ResolveUpcoming returns, in catalog order, up to limit cohorts of programName
// whose scheduling date falls on or after today's date in today's location.
// Entries with a missing or unparseable date are skipped.
func ResolveUpcoming(programName string, entries []models.ProgramEntry, today time.Time, limit int) []models.ProgramEntry {
	if limit <= 0 {
		limit = DefaultMaxScheduleOptions
	}
	loc := today.Location()
	y, m, d := today.Date()
	start := time.Date(y, m, d, 0, 0, 0, 0, loc)

	var out []models.ProgramEntry
	for _, e := range entries {
		if !strings.EqualFold(strings.TrimSpace(e.ProgramName), strings.TrimSpace(programName)) {
			continue
		}
		date, ok := ParseStartDate(e.SchedulingDate(), loc)
		if !ok || date.Before(start) {
			continue
		}
		out = append(out, e)
		if len(out) == limit {
			break
		}
	}
	return out
}

// FormatSchedule renders the schedule block for the given cohorts, or a notice
// when there are none.
func FormatSchedule(programName string, options []models.ProgramEntry) string {
	if len(options) == 0 {
		return fmt.Sprintf("⚠️ No encontré horarios próximos para *%s*.", programName)
	}
	var b strings.Builder
	b.WriteString("🔵 *HORARIOS*\n")
	for i, o := range options {
		fmt.Fprintf(&b, "\n*Opción %d:*\n", i+1)
		fmt.Fprintf(&b, "🔹 *Inicio:* %s\n", o.StartLabel)
		fmt.Fprintf(&b, "🔹 *Fin:* %s\n", o.EndLabel)
		fmt.Fprintf(&b, "🔹 *Horario:* %s %s (Perú 🇵🇪)\n", o.Hours, o.Days)
		fmt.Fprintf(&b, "🔹 *Duración:* %s sesiones\n", o.Sessions)
	}
	b.WriteString("\nClases *EN VIVO* vía Teams 🔴\n")
	b.WriteString("🔵 ¿Horario complicado? *Tenemos FLEXIBILIDAD* Horaria para ti ⏱️.\n")
	return b.String()
}
