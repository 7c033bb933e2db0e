package messaging

import (
	"context"
	"fmt"
	"log/slog"
	"path"
	"sync"
	"time"

	"github.com/BTreeMap/EnrollBot/internal/models"
	"github.com/BTreeMap/EnrollBot/internal/whatsapp"
	"go.mau.fi/whatsmeow/types/events"
)

// WhatsAppService implements Service using the Whatsmeow-based whatsapp client.
type WhatsAppService struct {
	client    whatsapp.WhatsAppSender
	waClient  *whatsapp.Client // set when client is a live connection, for event handling
	media     MediaSource
	receipts  chan models.Receipt
	responses chan models.Response

	mu      sync.RWMutex
	stopped bool
}

// NewWhatsAppService creates a new WhatsAppService wrapping the given WhatsAppSender.
// media resolves MediaRef paths; nil disables media sends.
func NewWhatsAppService(client whatsapp.WhatsAppSender, media MediaSource) *WhatsAppService {
	service := &WhatsAppService{
		client:    client,
		media:     media,
		receipts:  make(chan models.Receipt, DefaultChannelBufferSize),
		responses: make(chan models.Response, DefaultChannelBufferSize),
	}

	if waClient, ok := client.(*whatsapp.Client); ok {
		service.waClient = waClient
		slog.Debug("WhatsAppService created with full client for event handling")
	} else {
		slog.Debug("WhatsAppService created with interface client (likely mock)")
	}

	return service
}

// ValidateAndCanonicalizeRecipient implements Service. WhatsApp user JIDs are bare digits.
func (s *WhatsAppService) ValidateAndCanonicalizeRecipient(recipient string) (string, error) {
	return CanonicalizePhone(recipient)
}

// Start begins background processing (e.g., event polling).
func (s *WhatsAppService) Start(ctx context.Context) error {
	slog.Debug("WhatsAppService Start invoked")

	if s.waClient != nil && s.waClient.GetClient() != nil {
		s.waClient.GetClient().AddEventHandler(s.handleEvent)
		slog.Debug("WhatsAppService event handler registered")
	} else {
		slog.Debug("WhatsAppService no full client available, skipping event handling (likely mock)")
	}
	return nil
}

// Stop stops background processing and closes the event channels.
func (s *WhatsAppService) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return nil
	}
	s.stopped = true
	close(s.receipts)
	close(s.responses)
	if s.waClient != nil && s.waClient.GetClient() != nil {
		s.waClient.GetClient().Disconnect()
	}
	slog.Info("WhatsAppService stopped and channels closed")
	return nil
}

// SendMessage sends a message and emits a sent receipt.
func (s *WhatsAppService) SendMessage(ctx context.Context, to string, body string) error {
	if s.isStopped() {
		return ErrServiceStopped
	}
	canonicalTo, err := s.ValidateAndCanonicalizeRecipient(to)
	if err != nil {
		slog.Error("WhatsAppService SendMessage validation error", "error", err, "to", to)
		return err
	}
	slog.Debug("WhatsAppService SendMessage invoked", "to", canonicalTo, "body_length", len(body))
	if err := s.client.SendMessage(ctx, canonicalTo, body); err != nil {
		slog.Error("WhatsAppService SendMessage error", "error", err, "to", canonicalTo)
		return err
	}
	s.emitReceipt(models.Receipt{To: canonicalTo, Status: models.MessageStatusSent, Time: time.Now().Unix()})
	return nil
}

// SendMedia reads the asset from the media library, uploads it and emits a sent receipt.
func (s *WhatsAppService) SendMedia(ctx context.Context, to string, ref models.MediaRef) error {
	if s.isStopped() {
		return ErrServiceStopped
	}
	canonicalTo, err := s.ValidateAndCanonicalizeRecipient(to)
	if err != nil {
		slog.Error("WhatsAppService SendMedia validation error", "error", err, "to", to)
		return err
	}
	if s.media == nil {
		return fmt.Errorf("%w: no media library configured", ErrMediaUnavailable)
	}
	data, err := s.media.Open(ref.Path)
	if err != nil {
		slog.Error("WhatsAppService SendMedia failed to read asset", "error", err, "path", ref.Path)
		return fmt.Errorf("%w: %s: %v", ErrMediaUnavailable, ref.Path, err)
	}

	media := whatsapp.Media{Kind: ref.Kind, Data: data, FileName: path.Base(ref.Path), Caption: ref.Caption}
	if err := s.client.SendMedia(ctx, canonicalTo, media); err != nil {
		slog.Error("WhatsAppService SendMedia error", "error", err, "to", canonicalTo, "path", ref.Path)
		return err
	}
	s.emitReceipt(models.Receipt{To: canonicalTo, Status: models.MessageStatusSent, Time: time.Now().Unix()})
	return nil
}

// Receipts returns a channel of receipt events.
func (s *WhatsAppService) Receipts() <-chan models.Receipt {
	return s.receipts
}

// Responses returns a channel of incoming response events.
func (s *WhatsAppService) Responses() <-chan models.Response {
	return s.responses
}

func (s *WhatsAppService) isStopped() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.stopped
}

func (s *WhatsAppService) handleEvent(evt interface{}) {
	switch v := evt.(type) {
	case *events.Message:
		s.handleIncomingMessage(v)
	case *events.Receipt:
		s.handleMessageReceipt(v)
	case *events.Connected:
		slog.Info("WhatsAppService connected")
	case *events.Disconnected:
		slog.Warn("WhatsAppService disconnected")
	}
}

// ResponseFromEvent converts a whatsmeow message event. Group, broadcast, own
// and non-text messages are flagged rather than dropped so they can be counted.
func ResponseFromEvent(evt *events.Message) (models.Response, bool) {
	if evt == nil || evt.Message == nil {
		return models.Response{}, false
	}
	r := models.Response{
		From:        evt.Info.Sender.User,
		Name:        evt.Info.PushName,
		Kind:        models.InboundMedia,
		IsGroup:     evt.Info.IsGroup,
		IsBroadcast: evt.Info.IsIncomingBroadcast(),
		FromMe:      evt.Info.IsFromMe,
		Time:        evt.Info.Timestamp.Unix(),
	}
	if msg := evt.Message; msg.Conversation != nil {
		r.Body = msg.GetConversation()
		r.Kind = models.InboundText
	} else if msg.ExtendedTextMessage != nil && msg.ExtendedTextMessage.Text != nil {
		r.Body = msg.ExtendedTextMessage.GetText()
		r.Kind = models.InboundText
	}
	return r, true
}

func (s *WhatsAppService) handleIncomingMessage(evt *events.Message) {
	response, ok := ResponseFromEvent(evt)
	if !ok {
		return
	}
	slog.Debug("WhatsAppService processing incoming message", "from", response.From, "kind", response.Kind, "group", response.IsGroup)
	s.emitResponse(response)
}

func (s *WhatsAppService) handleMessageReceipt(evt *events.Receipt) {
	var status models.MessageStatus
	switch evt.Type {
	case events.ReceiptTypeDelivered:
		status = models.MessageStatusDelivered
	case events.ReceiptTypeRead:
		status = models.MessageStatusRead
	default:
		slog.Debug("WhatsAppService ignoring receipt type", "type", evt.Type)
		return
	}
	s.emitReceipt(models.Receipt{To: evt.MessageSource.Chat.User, Status: status, Time: evt.Timestamp.Unix()})
}

func (s *WhatsAppService) emitResponse(response models.Response) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.stopped {
		slog.Warn("WhatsAppService dropping inbound message (service stopped)", "from", response.From)
		return
	}
	select {
	case s.responses <- response:
	case <-time.After(DefaultChannelTimeout):
		slog.Warn("WhatsAppService responses channel blocked, dropping message", "from", response.From, "timeout", DefaultChannelTimeout)
	}
}

func (s *WhatsAppService) emitReceipt(receipt models.Receipt) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.stopped {
		return
	}
	select {
	case s.receipts <- receipt:
	case <-time.After(DefaultChannelTimeout):
		slog.Warn("WhatsAppService receipts channel blocked, dropping receipt", "to", receipt.To, "timeout", DefaultChannelTimeout)
	}
}
