// Package messaging provides the channel transports and routes inbound
// traffic to the conversation flow.
package messaging

import (
	"context"
	"log/slog"

	"github.com/BTreeMap/EnrollBot/internal/models"
)

// InboundHandler consumes inbound customer messages.
type InboundHandler interface {
	HandleInbound(ctx context.Context, r models.Response) error
}

// ReceiptSink persists delivery receipts.
type ReceiptSink interface {
	AddReceipt(r models.Receipt) error
}

// ResponseHandler routes a service's inbound messages to an InboundHandler,
// one at a time, and forwards receipts to an optional sink.
type ResponseHandler struct {
	msgService Service
	handler    InboundHandler
	receipts   ReceiptSink
}

// NewResponseHandler creates a new ResponseHandler. receipts may be nil.
func NewResponseHandler(msgService Service, handler InboundHandler, receipts ReceiptSink) *ResponseHandler {
	return &ResponseHandler{msgService: msgService, handler: handler, receipts: receipts}
}

// ProcessResponse canonicalizes the sender and hands the message to the handler.
// A message with an unusable sender is still handed over, marked Unroutable,
// so it is counted but never answered.
func (rh *ResponseHandler) ProcessResponse(ctx context.Context, response models.Response) error {
	canonical, err := rh.msgService.ValidateAndCanonicalizeRecipient(response.From)
	if err != nil {
		slog.Warn("ResponseHandler marking message with invalid sender as unroutable", "error", err, "from", response.From)
		response.Unroutable = true
	} else {
		response.From = canonical
	}
	return rh.handler.HandleInbound(ctx, response)
}

// Start begins processing responses and receipts from the messaging service.
// Both loops end when ctx is cancelled or the service closes its channels.
func (rh *ResponseHandler) Start(ctx context.Context) {
	slog.Info("ResponseHandler starting response processing")

	go func() {
		defer slog.Info("ResponseHandler stopped response processing")
		for {
			select {
			case response, ok := <-rh.msgService.Responses():
				if !ok {
					slog.Debug("ResponseHandler responses channel closed")
					return
				}
				if err := rh.ProcessResponse(ctx, response); err != nil {
					slog.Error("ResponseHandler failed to process response", "error", err, "from", response.From)
				}
			case <-ctx.Done():
				slog.Debug("ResponseHandler stopping due to context cancellation")
				return
			}
		}
	}()

	go func() {
		for {
			select {
			case receipt, ok := <-rh.msgService.Receipts():
				if !ok {
					return
				}
				rh.storeReceipt(receipt)
			case <-ctx.Done():
				return
			}
		}
	}()
}

func (rh *ResponseHandler) storeReceipt(receipt models.Receipt) {
	if rh.receipts == nil {
		return
	}
	if err := rh.receipts.AddReceipt(receipt); err != nil {
		slog.Error("ResponseHandler failed to store receipt", "error", err, "to", receipt.To, "status", receipt.Status)
	}
}
