package util

import (
	"strings"
	"testing"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"", ""},
		{"   ", ""},
		{"  Hola, ESTOY en Marketing Digital  ", "hola, estoy en marketing digital"},
		{"Gestión Pública", "gestion publica"},
		{"DEPÓSITO", "deposito"},
		{"Ingeniería ñandú", "ingenieria nandu"},
		{"3", "3"},
	}
	for _, tt := range tests {
		if got := Normalize(tt.in); got != tt.want {
			t.Errorf("Normalize(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestNormalizeIsIdempotent(t *testing.T) {
	inputs := []string{"Análisis de Datos", "POWER BI", " Excel Avanzado "}
	for _, in := range inputs {
		once := Normalize(in)
		if twice := Normalize(once); twice != once {
			t.Errorf("Normalize not idempotent for %q: %q vs %q", in, once, twice)
		}
	}
}

func TestContainsAny(t *testing.T) {
	if !ContainsAny("quiero pagar por web", "3", "web") {
		t.Error("expected web token to match")
	}
	if ContainsAny("quiero pagar", "", "yape") {
		t.Error("empty tokens must never match")
	}
}

func TestGenerateRandomID(t *testing.T) {
	id := GenerateRandomID("timer_", 16)
	if !strings.HasPrefix(id, "timer_") {
		t.Errorf("expected prefix, got %q", id)
	}
	if len(id) != len("timer_")+16 {
		t.Errorf("unexpected length %d for %q", len(id), id)
	}
	for _, c := range strings.TrimPrefix(id, "timer_") {
		if !strings.ContainsRune("0123456789abcdef", c) {
			t.Fatalf("non-hex character %q in %q", c, id)
		}
	}
	if GenerateRandomHex(0) != "" {
		t.Error("expected empty string for zero length")
	}
}

func TestGenerateTimerIDUniqueness(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 500; i++ {
		id := GenerateTimerID()
		if seen[id] {
			t.Fatalf("duplicate timer id %q", id)
		}
		seen[id] = true
	}
}
