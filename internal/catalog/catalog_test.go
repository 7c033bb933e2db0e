package catalog

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/BTreeMap/EnrollBot/internal/models"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write %s: %v", name, err)
	}
	return path
}

func TestFileStoreReadAllQuarantinesInvalidRows(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "programas.json", `[
		{"PROGRAMA": "Marketing Digital", "EDICION": 1, "CATEGORIA": "CURSO"},
		{"PROGRAMA": "", "EDICION": 2},
		{"PROGRAMA": "Gestión de Proyectos", "EDICION": "3"}
	]`)
	store := NewFileStore(path)

	entries, err := store.ReadAll(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 valid entries, got %d", len(entries))
	}
	if entries[1].ProgramName != "Gestión de Proyectos" {
		t.Errorf("expected catalog order preserved, got %q", entries[1].ProgramName)
	}

	entry, ok, err := store.ReadOne(context.Background(), "gestion de proyectos", "3")
	if err != nil || !ok {
		t.Fatalf("expected ReadOne to find normalized match, got ok=%v err=%v", ok, err)
	}
	if entry.Edition != "3" {
		t.Errorf("unexpected edition %q", entry.Edition)
	}
	if _, ok, _ := store.ReadOne(context.Background(), "Marketing Digital", "9"); ok {
		t.Error("expected no match for unknown edition")
	}
}

func TestFileStoreSingleObjectAndErrors(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "single.json", `{"PROGRAMA": "Excel"}`)
	entries, err := NewFileStore(path).ReadAll(context.Background())
	if err != nil || len(entries) != 1 {
		t.Fatalf("expected one entry from single object, got %d (%v)", len(entries), err)
	}

	if _, err := NewFileStore(filepath.Join(dir, "missing.json")).ReadAll(context.Background()); !errors.Is(err, ErrUnavailable) {
		t.Errorf("expected ErrUnavailable for missing file, got %v", err)
	}
	bad := writeFile(t, dir, "bad.json", `[{"PROGRAMA":`)
	if _, err := NewFileStore(bad).ReadAll(context.Background()); !errors.Is(err, ErrUnavailable) {
		t.Errorf("expected ErrUnavailable for corrupt file, got %v", err)
	}
}

func TestFileStoreSeesExternalEdits(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "programas.json", `[{"PROGRAMA": "Excel", "EDICION": "1"}]`)
	store := NewFileStore(path)
	if _, ok, _ := store.ReadOne(context.Background(), "Excel", "1"); !ok {
		t.Fatal("expected entry before edit")
	}
	writeFile(t, dir, "programas.json", `[]`)
	if _, ok, _ := store.ReadOne(context.Background(), "Excel", "1"); ok {
		t.Error("expected entry to disappear after the file was edited")
	}
}

func TestParseSynonymsKeepsFileOrder(t *testing.T) {
	index, err := ParseSynonyms([]byte(`{"zeta": ["z"], "alfa": ["a", "aa"], "medio": null}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	keys := []string{"zeta", "alfa", "medio"}
	if len(index) != len(keys) {
		t.Fatalf("expected %d groups, got %d", len(keys), len(index))
	}
	for i, k := range keys {
		if index[i].Key != k {
			t.Errorf("group %d: expected key %q, got %q", i, k, index[i].Key)
		}
	}
	if len(index[2].Variants) != 0 {
		t.Errorf("expected null variants to decode empty, got %v", index[2].Variants)
	}

	if _, err := ParseSynonyms([]byte(`["not", "an", "object"]`)); err == nil {
		t.Error("expected error for non-object synonyms")
	}
}

func TestSynonymFileStore(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "sinonimos.json", `{"Marketing Digital": ["marketing"]}`)
	index, err := NewSynonymFileStore(path).ReadAll(context.Background())
	if err != nil || len(index) != 1 {
		t.Fatalf("unexpected result: %v (%v)", index, err)
	}
	if _, err := NewSynonymFileStore(filepath.Join(dir, "nope.json")).ReadAll(context.Background()); !errors.Is(err, ErrUnavailable) {
		t.Errorf("expected ErrUnavailable, got %v", err)
	}
}

func TestContentFileStore(t *testing.T) {
	dir := t.TempDir()

	content, err := NewContentFileStore(filepath.Join(dir, "absent.yaml")).Read(context.Background())
	if err != nil {
		t.Fatalf("missing content file must not fail: %v", err)
	}
	if content.ProfilePrompt != DefaultProfilePrompt || content.CashDiscountPct != DefaultCashDiscountPct {
		t.Errorf("expected defaults, got %+v", content)
	}

	path := writeFile(t, dir, "content.yaml", "greeting: \"¡Hola!\"\ncta: \"Inscríbete\"\ncash_discount_pct: 60\n")
	content, err = NewContentFileStore(path).Read(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if content.Greeting != "¡Hola!" || content.CallToAction != "Inscríbete" {
		t.Errorf("unexpected texts: %+v", content)
	}
	if content.CashDiscountPct != 60 || content.InstallmentDiscountPct != DefaultInstallmentDiscountPct {
		t.Errorf("unexpected discounts: %+v", content)
	}

	jsonPath := writeFile(t, dir, "content.json", `{"plus": "Bonus"}`)
	content, err = NewContentFileStore(jsonPath).Read(context.Background())
	if err != nil || content.Plus != "Bonus" {
		t.Errorf("expected JSON content to load, got %+v (%v)", content, err)
	}
}

func TestMatch(t *testing.T) {
	entries := []models.ProgramEntry{
		{ProgramName: "Marketing", Edition: "1"},
		{ProgramName: "Marketing Digital", Edition: "1"},
		{ProgramName: "Marketing Digital", Edition: "2"},
		{ProgramName: "Excel", Edition: "1"},
		{ProgramName: "Power BI", Edition: "1"},
	}
	synonyms := models.SynonymIndex{
		{Key: "Marketing", Variants: []string{"mkt"}},
		{Key: "Marketing Digital", Variants: []string{"marketing digital", "mkt digital", ""}},
		{Key: "Excel", Variants: []string{"excel"}},
		{Key: "Power BI", Variants: []string{"excel"}},
		{Key: "Huérfano", Variants: []string{"orphan"}},
	}

	tests := []struct {
		name    string
		text    string
		want    string
		edition string
		found   bool
	}{
		{"longest variant wins", "Hola, estoy en Marketing Digital", "Marketing Digital", "1", true},
		{"accented input", "INFO sobre MÁRKETING DIGITAL", "Marketing Digital", "1", true},
		{"shorter key only", "info de marketing", "Marketing", "1", true},
		{"tie keeps earlier key", "quiero excel", "Excel", "1", true},
		{"orphan key has no entry", "orphan", "", "", false},
		{"no match", "buenos dias", "", "", false},
		{"empty text", "   ", "", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := Match(tt.text, entries, synonyms)
			if ok != tt.found {
				t.Fatalf("Match(%q) found=%v, want %v", tt.text, ok, tt.found)
			}
			if ok && (got.ProgramName != tt.want || got.Edition != tt.edition) {
				t.Errorf("Match(%q) = %s/%s, want %s/%s", tt.text, got.ProgramName, got.Edition, tt.want, tt.edition)
			}
		})
	}
}

func TestMatchTieBreakFollowsIndexOrder(t *testing.T) {
	entries := []models.ProgramEntry{{ProgramName: "Excel"}, {ProgramName: "Power BI"}}
	reversed := models.SynonymIndex{
		{Key: "Power BI", Variants: []string{"excel"}},
		{Key: "Excel", Variants: []string{"excel"}},
	}
	got, ok := Match("excel", entries, reversed)
	if !ok || got.ProgramName != "Power BI" {
		t.Errorf("expected first index key to win ties, got %q (%v)", got.ProgramName, ok)
	}
}

func TestParseStartDate(t *testing.T) {
	loc := time.UTC
	tests := []struct {
		raw string
		ok  bool
	}{
		{"15/11/2026", true},
		{"5/1/2027", true},
		{" 01/02/2026 ", true},
		{"31/02/2026", false},
		{"2026-11-15", false},
		{"", false},
		{"aa/bb/cccc", false},
	}
	for _, tt := range tests {
		if _, ok := ParseStartDate(tt.raw, loc); ok != tt.ok {
			t.Errorf("ParseStartDate(%q) ok=%v, want %v", tt.raw, ok, tt.ok)
		}
	}
}

func entryStarting(name, edition, date string) models.ProgramEntry {
	e := models.ProgramEntry{ProgramName: name, Edition: edition, StartLabel: "Inicio " + edition, Sessions: "8"}
	e.StartDates[5] = date
	return e
}

func TestResolveUpcoming(t *testing.T) {
	lima := time.FixedZone("PET", -5*3600)
	// 00:30 UTC on the 16th is still the 15th in Lima
	today := time.Date(2026, 10, 16, 0, 30, 0, 0, time.UTC).In(lima)

	entries := []models.ProgramEntry{
		entryStarting("Excel", "1", "14/10/2026"),
		entryStarting("Excel", "2", "15/10/2026"),
		entryStarting("Power BI", "1", "20/10/2026"),
		entryStarting("EXCEL", "3", "not a date"),
		entryStarting("excel", "4", "01/11/2026"),
		entryStarting("Excel", "5", "01/12/2026"),
		entryStarting("Excel", "6", "01/01/2027"),
	}

	got := ResolveUpcoming("Excel", entries, today, 3)
	want := []string{"2", "4", "5"}
	if len(got) != len(want) {
		t.Fatalf("expected %d options, got %d", len(want), len(got))
	}
	for i, ed := range want {
		if got[i].Edition != ed {
			t.Errorf("option %d: expected edition %s, got %s", i, ed, got[i].Edition)
		}
	}

	if all := ResolveUpcoming("Excel", entries, today, 0); len(all) != DefaultMaxScheduleOptions {
		t.Errorf("expected default limit, got %d", len(all))
	}
	if none := ResolveUpcoming("Excel", entries, time.Date(2030, 1, 1, 0, 0, 0, 0, lima), 3); len(none) != 0 {
		t.Errorf("expected no options in the far future, got %d", len(none))
	}
}

func TestFormatSchedule(t *testing.T) {
	empty := FormatSchedule("Excel", nil)
	if empty != "⚠️ No encontré horarios próximos para *Excel*." {
		t.Errorf("unexpected empty notice %q", empty)
	}
	block := FormatSchedule("Excel", []models.ProgramEntry{entryStarting("Excel", "1", "01/01/2030")})
	for _, want := range []string{"*HORARIOS*", "*Opción 1:*", "Inicio 1", "8 sesiones", "EN VIVO"} {
		if !strings.Contains(block, want) {
			t.Errorf("expected schedule block to contain %q:\n%s", want, block)
		}
	}
}
