package messaging

import (
	"context"
	"errors"
	"io/fs"
	"testing"
	"time"

	"github.com/BTreeMap/EnrollBot/internal/models"
	"github.com/BTreeMap/EnrollBot/internal/whatsapp"
	"go.mau.fi/whatsmeow/proto/waE2E"
	"go.mau.fi/whatsmeow/types"
	"go.mau.fi/whatsmeow/types/events"
	"google.golang.org/protobuf/proto"
)

type mapMedia map[string][]byte

func (m mapMedia) Open(ref string) ([]byte, error) {
	if data, ok := m[ref]; ok {
		return data, nil
	}
	return nil, fs.ErrNotExist
}

// Ensure WhatsAppService implements Service interface
func TestWhatsAppService_ImplementsService(t *testing.T) {
	var _ Service = (*WhatsAppService)(nil)
	var _ Service = (*TwilioService)(nil)
}

func TestWhatsAppService_SendMessage_Receipt(t *testing.T) {
	mockClient := whatsapp.NewMockClient()
	svc := NewWhatsAppService(mockClient, nil)
	if err := svc.SendMessage(context.Background(), "+51 987 654 321", "hola"); err != nil {
		t.Fatalf("SendMessage returned error: %v", err)
	}
	if len(mockClient.Texts) != 1 || mockClient.Texts[0].To != "51987654321" {
		t.Fatalf("expected canonical recipient, got %+v", mockClient.Texts)
	}
	select {
	case receipt := <-svc.Receipts():
		if receipt.To != "51987654321" || receipt.Status != models.MessageStatusSent {
			t.Errorf("unexpected receipt %+v", receipt)
		}
	default:
		t.Fatal("expected receipt, got none")
	}
}

func TestWhatsAppService_SendMedia(t *testing.T) {
	mockClient := whatsapp.NewMockClient()
	svc := NewWhatsAppService(mockClient, mapMedia{"pago/yapecursos.jpeg": []byte("jpeg")})
	ctx := context.Background()

	err := svc.SendMedia(ctx, "51987654321", models.MediaRef{Kind: models.MediaImage, Path: "pago/yapecursos.jpeg"})
	if err != nil {
		t.Fatalf("SendMedia returned error: %v", err)
	}
	if len(mockClient.Media) != 1 {
		t.Fatalf("expected 1 media send, got %d", len(mockClient.Media))
	}
	if m := mockClient.Media[0].Media; m.FileName != "yapecursos.jpeg" || string(m.Data) != "jpeg" || m.Kind != models.MediaImage {
		t.Errorf("unexpected media %+v", m)
	}

	err = svc.SendMedia(ctx, "51987654321", models.MediaRef{Kind: models.MediaVideo, Path: "videos/WEB.mp4"})
	if !errors.Is(err, ErrMediaUnavailable) {
		t.Errorf("expected ErrMediaUnavailable for missing asset, got %v", err)
	}
}

func TestWhatsAppService_SendFailure(t *testing.T) {
	mockClient := whatsapp.NewMockClient()
	mockClient.Err = errors.New("not connected")
	svc := NewWhatsAppService(mockClient, nil)
	if err := svc.SendMessage(context.Background(), "51987654321", "hola"); err == nil {
		t.Fatal("expected send error")
	}
	select {
	case r := <-svc.Receipts():
		t.Errorf("no receipt expected on failure, got %+v", r)
	default:
	}
}

func TestWhatsAppService_StartStop(t *testing.T) {
	svc := NewWhatsAppService(whatsapp.NewMockClient(), nil)
	if err := svc.Start(context.Background()); err != nil {
		t.Fatalf("Start returned error: %v", err)
	}
	if err := svc.Stop(); err != nil {
		t.Fatalf("Stop returned error: %v", err)
	}
	if err := svc.Stop(); err != nil {
		t.Fatalf("second Stop returned error: %v", err)
	}
	if _, ok := <-svc.Receipts(); ok {
		t.Error("expected receipts channel closed")
	}
	if _, ok := <-svc.Responses(); ok {
		t.Error("expected responses channel closed")
	}
	if err := svc.SendMessage(context.Background(), "51987654321", "hola"); !errors.Is(err, ErrServiceStopped) {
		t.Errorf("expected ErrServiceStopped, got %v", err)
	}
}

func TestResponseFromEvent(t *testing.T) {
	user := types.NewJID("51987654321", types.DefaultUserServer)
	group := types.NewJID("120363000000000000", types.GroupServer)
	now := time.Unix(1760000000, 0)

	tests := []struct {
		name string
		evt  *events.Message
		want models.Response
	}{
		{
			name: "direct text",
			evt: &events.Message{
				Info:    types.MessageInfo{MessageSource: types.MessageSource{Chat: user, Sender: user}, PushName: "Ana", Timestamp: now},
				Message: &waE2E.Message{Conversation: proto.String("Hola, info de marketing")},
			},
			want: models.Response{From: "51987654321", Name: "Ana", Body: "Hola, info de marketing", Kind: models.InboundText, Time: now.Unix()},
		},
		{
			name: "extended text",
			evt: &events.Message{
				Info:    types.MessageInfo{MessageSource: types.MessageSource{Chat: user, Sender: user}, Timestamp: now},
				Message: &waE2E.Message{ExtendedTextMessage: &waE2E.ExtendedTextMessage{Text: proto.String("1")}},
			},
			want: models.Response{From: "51987654321", Body: "1", Kind: models.InboundText, Time: now.Unix()},
		},
		{
			name: "group text",
			evt: &events.Message{
				Info:    types.MessageInfo{MessageSource: types.MessageSource{Chat: group, Sender: user, IsGroup: true}, Timestamp: now},
				Message: &waE2E.Message{Conversation: proto.String("hola")},
			},
			want: models.Response{From: "51987654321", Body: "hola", Kind: models.InboundText, IsGroup: true, Time: now.Unix()},
		},
		{
			name: "own message",
			evt: &events.Message{
				Info:    types.MessageInfo{MessageSource: types.MessageSource{Chat: user, Sender: user, IsFromMe: true}, Timestamp: now},
				Message: &waE2E.Message{Conversation: proto.String("hola")},
			},
			want: models.Response{From: "51987654321", Body: "hola", Kind: models.InboundText, FromMe: true, Time: now.Unix()},
		},
		{
			name: "image",
			evt: &events.Message{
				Info:    types.MessageInfo{MessageSource: types.MessageSource{Chat: user, Sender: user}, Timestamp: now},
				Message: &waE2E.Message{ImageMessage: &waE2E.ImageMessage{}},
			},
			want: models.Response{From: "51987654321", Kind: models.InboundMedia, Time: now.Unix()},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ResponseFromEvent(tt.evt)
			if !ok {
				t.Fatal("expected event to convert")
			}
			if got != tt.want {
				t.Errorf("ResponseFromEvent() = %+v, want %+v", got, tt.want)
			}
		})
	}

	if _, ok := ResponseFromEvent(&events.Message{}); ok {
		t.Error("event without message must be skipped")
	}
}

func TestCanonicalizePhone(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"51987654321", "51987654321", false},
		{"whatsapp:+51987654321", "51987654321", false},
		{"+51 (987) 654-321", "51987654321", false},
		{"", "", true},
		{"abc", "", true},
		{"12345", "", true},
	}
	for _, tt := range tests {
		got, err := CanonicalizePhone(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("CanonicalizePhone(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("CanonicalizePhone(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
