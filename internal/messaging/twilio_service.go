package messaging

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/BTreeMap/EnrollBot/internal/models"
	"github.com/BTreeMap/EnrollBot/internal/twiliowhatsapp"
	twilioClient "github.com/twilio/twilio-go/client"
)

// emptyTwiML acknowledges a webhook without replying through TwiML; replies go out via the REST API.
const emptyTwiML = `<?xml version="1.0" encoding="UTF-8"?><Response></Response>`

// TwilioService implements the Service interface using Twilio API
type TwilioService struct {
	client       twiliowhatsapp.TwilioWhatsAppSender
	mediaBaseURL string
	validator    *twilioClient.RequestValidator
	webhookURL   string

	receipts  chan models.Receipt
	responses chan models.Response
	mu        sync.RWMutex
	stopped   bool
}

// TwilioOption configures a TwilioService.
type TwilioOption func(*TwilioService)

// WithMediaBaseURL sets the public URL the media library is served from.
// Twilio fetches attachments from base URL + media path.
func WithMediaBaseURL(base string) TwilioOption {
	return func(s *TwilioService) { s.mediaBaseURL = base }
}

// WithWebhookValidation rejects webhook requests whose X-Twilio-Signature does
// not match authToken for the given public webhook URL.
func WithWebhookValidation(authToken, webhookURL string) TwilioOption {
	return func(s *TwilioService) {
		v := twilioClient.NewRequestValidator(authToken)
		s.validator = &v
		s.webhookURL = webhookURL
	}
}

// NewTwilioService creates a new TwilioService around a Twilio client.
func NewTwilioService(client twiliowhatsapp.TwilioWhatsAppSender, opts ...TwilioOption) *TwilioService {
	service := &TwilioService{
		client:    client,
		receipts:  make(chan models.Receipt, DefaultChannelBufferSize),
		responses: make(chan models.Response, DefaultChannelBufferSize),
	}
	for _, opt := range opts {
		opt(service)
	}
	slog.Debug("Creating TwilioService", "media_base_set", service.mediaBaseURL != "", "validate_webhook", service.validator != nil)
	return service
}

// ValidateAndCanonicalizeRecipient implements Service. "whatsapp:+51..." and
// "+51..." both canonicalize to bare digits.
func (s *TwilioService) ValidateAndCanonicalizeRecipient(recipient string) (string, error) {
	return CanonicalizePhone(recipient)
}

// Start is a no-op: inbound traffic arrives through TwilioWebhookHandler.
func (s *TwilioService) Start(ctx context.Context) error {
	return nil
}

// Stop closes channels and stops the service
func (s *TwilioService) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return nil
	}
	s.stopped = true
	close(s.receipts)
	close(s.responses)
	return nil
}

// SendMessage sends a message via Twilio and emits a receipt
func (s *TwilioService) SendMessage(ctx context.Context, to string, body string) error {
	if s.isStopped() {
		return ErrServiceStopped
	}
	canonicalTo, err := s.ValidateAndCanonicalizeRecipient(to)
	if err != nil {
		slog.Error("TwilioService SendMessage validation error", "error", err, "to", to)
		return err
	}
	if err := s.client.SendMessage(ctx, canonicalTo, body); err != nil {
		return err
	}
	s.emitReceipt(models.Receipt{To: canonicalTo, Status: models.MessageStatusSent, Time: time.Now().Unix()})
	return nil
}

// SendMedia sends a media library asset by public URL.
func (s *TwilioService) SendMedia(ctx context.Context, to string, ref models.MediaRef) error {
	if s.isStopped() {
		return ErrServiceStopped
	}
	canonicalTo, err := s.ValidateAndCanonicalizeRecipient(to)
	if err != nil {
		slog.Error("TwilioService SendMedia validation error", "error", err, "to", to)
		return err
	}
	mediaURL, err := s.MediaURL(ref.Path)
	if err != nil {
		return err
	}
	if err := s.client.SendMediaURL(ctx, canonicalTo, mediaURL, ref.Caption); err != nil {
		return err
	}
	s.emitReceipt(models.Receipt{To: canonicalTo, Status: models.MessageStatusSent, Time: time.Now().Unix()})
	return nil
}

// MediaURL returns the public URL of a media reference.
func (s *TwilioService) MediaURL(ref string) (string, error) {
	if s.mediaBaseURL == "" {
		return "", fmt.Errorf("%w: no media base URL configured", ErrMediaUnavailable)
	}
	u, err := url.JoinPath(s.mediaBaseURL, ref)
	if err != nil {
		return "", fmt.Errorf("%w: %s: %v", ErrMediaUnavailable, ref, err)
	}
	return u, nil
}

// Receipts returns the channel for message receipts
func (s *TwilioService) Receipts() <-chan models.Receipt {
	return s.receipts
}

// Responses returns the channel for inbound messages received by the webhook
func (s *TwilioService) Responses() <-chan models.Response {
	return s.responses
}

func (s *TwilioService) isStopped() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.stopped
}

// TwilioWebhookHandler handles inbound Twilio webhook requests: incoming
// messages become Responses and status callbacks become Receipts.
func (s *TwilioService) TwilioWebhookHandler(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		slog.Error("Failed to parse Twilio webhook form", "error", err)
		http.Error(w, "Bad request", http.StatusBadRequest)
		return
	}
	if s.validator != nil {
		params := make(map[string]string, len(r.PostForm))
		for k := range r.PostForm {
			params[k] = r.PostForm.Get(k)
		}
		if !s.validator.Validate(s.webhookURL, params, r.Header.Get("X-Twilio-Signature")) {
			slog.Warn("Twilio webhook signature rejected", "remote", r.RemoteAddr)
			http.Error(w, "Forbidden", http.StatusForbidden)
			return
		}
	}

	if status := r.FormValue("MessageStatus"); status != "" && r.FormValue("Body") == "" && r.FormValue("NumMedia") == "" {
		s.handleStatusCallback(r.FormValue("To"), status)
		w.WriteHeader(http.StatusNoContent)
		return
	}

	from, err := s.ValidateAndCanonicalizeRecipient(r.FormValue("From"))
	if err != nil {
		slog.Warn("Twilio webhook missing or invalid sender", "error", err)
		http.Error(w, "Missing required fields", http.StatusBadRequest)
		return
	}
	response := models.Response{
		From: from,
		Name: r.FormValue("ProfileName"),
		Body: r.FormValue("Body"),
		Kind: models.InboundText,
		Time: time.Now().Unix(),
	}
	if n, _ := strconv.Atoi(r.FormValue("NumMedia")); n > 0 {
		response.Kind = models.InboundMedia
	}
	slog.Debug("Inbound WhatsApp message from Twilio", "from", response.From, "kind", response.Kind, "body_length", len(response.Body))
	s.emitResponse(response)

	w.Header().Set("Content-Type", "text/xml")
	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, emptyTwiML)
}

func (s *TwilioService) handleStatusCallback(to, status string) {
	var mapped models.MessageStatus
	switch status {
	case "delivered":
		mapped = models.MessageStatusDelivered
	case "read":
		mapped = models.MessageStatusRead
	case "failed", "undelivered":
		mapped = models.MessageStatusFailed
	default:
		slog.Debug("TwilioService ignoring status callback", "status", status)
		return
	}
	canonical, err := s.ValidateAndCanonicalizeRecipient(to)
	if err != nil {
		canonical = to
	}
	s.emitReceipt(models.Receipt{To: canonical, Status: mapped, Time: time.Now().Unix()})
}

func (s *TwilioService) emitReceipt(receipt models.Receipt) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.stopped {
		return
	}
	select {
	case s.receipts <- receipt:
	case <-time.After(DefaultChannelTimeout):
		slog.Warn("TwilioService receipts channel blocked, dropping receipt", "to", receipt.To)
	}
}

func (s *TwilioService) emitResponse(response models.Response) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.stopped {
		slog.Warn("TwilioService dropping inbound response (service stopped)", "from", response.From)
		return
	}
	select {
	case s.responses <- response:
		slog.Debug("TwilioService emitted inbound response", "from", response.From)
	case <-time.After(DefaultChannelTimeout):
		slog.Warn("TwilioService responses channel blocked, dropping message", "from", response.From)
	}
}
