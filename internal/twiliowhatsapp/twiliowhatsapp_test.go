package twiliowhatsapp

import (
	"context"
	"errors"
	"testing"
)

func TestMockClient_SendMessage(t *testing.T) {
	ctx := context.Background()
	mock := NewMockClient()

	if err := mock.SendMessage(ctx, "51987654321", "Hola"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := mock.SendMediaURL(ctx, "51987654321", "https://media.example.pe/pago/yapecursos.jpeg", ""); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	sent := mock.Sent()
	if len(sent) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(sent))
	}
	if sent[0].Body != "Hola" || sent[1].MediaURL == "" {
		t.Errorf("unexpected sends: %+v", sent)
	}

	mock.Err = errors.New("rate limited")
	if err := mock.SendMessage(ctx, "51987654321", "Hola"); err == nil {
		t.Error("expected configured error")
	}
}

func TestWhatsAppAddress(t *testing.T) {
	tests := map[string]string{
		"51987654321":            "whatsapp:+51987654321",
		"+51987654321":           "whatsapp:+51987654321",
		" whatsapp:+14155238886": "whatsapp:+14155238886",
	}
	for in, want := range tests {
		if got := WhatsAppAddress(in); got != want {
			t.Errorf("WhatsAppAddress(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestNewClientRequiresCredentials(t *testing.T) {
	t.Setenv("TWILIO_ACCOUNT_SID", "")
	t.Setenv("TWILIO_AUTH_TOKEN", "")
	t.Setenv("TWILIO_FROM_NUMBER", "")

	if _, err := NewClient(); err == nil {
		t.Error("expected error without credentials")
	}
	if _, err := NewClient(WithAccountSID("AC123"), WithAuthToken("secret")); err == nil {
		t.Error("expected error without sender number")
	}
	c, err := NewClient(WithAccountSID("AC123"), WithAuthToken("secret"), WithFromWhats("+14155238886"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c.fromWhats != "whatsapp:+14155238886" {
		t.Errorf("unexpected sender %q", c.fromWhats)
	}
}
