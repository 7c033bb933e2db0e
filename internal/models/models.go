// Package models defines the core data structures for EnrollBot.
//
// It includes inbound/outbound message types, delivery receipts and the API
// response envelope shared across modules.
package models

import "errors"

// MessageStatus represents the delivery state of an outbound message.
type MessageStatus string

const (
	// MessageStatusSent indicates the message was accepted by the channel.
	MessageStatusSent MessageStatus = "sent"
	// MessageStatusDelivered indicates the message reached the device.
	MessageStatusDelivered MessageStatus = "delivered"
	// MessageStatusRead indicates the recipient opened the message.
	MessageStatusRead MessageStatus = "read"
	// MessageStatusFailed indicates the channel rejected the message.
	MessageStatusFailed MessageStatus = "failed"
)

// Receipt represents a delivery or read event for an outbound message.
type Receipt struct {
	To     string        `json:"to" db:"recipient"`
	Status MessageStatus `json:"status" db:"status"`
	Time   int64         `json:"time" db:"time"`
}

// InboundKind classifies an inbound channel event.
type InboundKind string

const (
	// InboundText is a plain text chat message.
	InboundText InboundKind = "text"
	// InboundMedia is an image, audio, sticker or any other non-text payload.
	InboundMedia InboundKind = "media"
)

// Response represents an inbound message from a customer.
// Group and broadcast traffic is flagged instead of dropped so it can still be counted.
type Response struct {
	From        string      `json:"from"`
	Name        string      `json:"name,omitempty"`
	Body        string      `json:"body"`
	Kind        InboundKind `json:"kind"`
	IsGroup     bool        `json:"is_group,omitempty"`
	IsBroadcast bool        `json:"is_broadcast,omitempty"`
	FromMe      bool        `json:"from_me,omitempty"`
	// Unroutable marks a sender that could not be canonicalized into a phone number.
	Unroutable  bool        `json:"unroutable,omitempty"`
	Time        int64       `json:"time"`
}

// IsDirectText reports whether the response is a one-to-one text message the bot should answer.
func (r Response) IsDirectText() bool {
	if r.IsGroup || r.IsBroadcast || r.FromMe || r.Unroutable {
		return false
	}
	return r.Kind == "" || r.Kind == InboundText
}

// MediaKind identifies the attachment type of an outbound media message.
type MediaKind string

const (
	MediaImage    MediaKind = "image"
	MediaVideo    MediaKind = "video"
	MediaDocument MediaKind = "document"
)

// MediaRef references a local media asset, relative to the configured media root.
type MediaRef struct {
	Kind    MediaKind `json:"kind"`
	Path    string    `json:"path"`
	Caption string    `json:"caption,omitempty"`
}

// OutboundMessage is one action of a bundle: either a text body or a media attachment.
type OutboundMessage struct {
	Text  string    `json:"text,omitempty"`
	Media *MediaRef `json:"media,omitempty"`
}

// IsMedia reports whether the message carries an attachment.
func (m OutboundMessage) IsMedia() bool {
	return m.Media != nil
}

// Text builds a text outbound message.
func Text(body string) OutboundMessage {
	return OutboundMessage{Text: body}
}

// Media builds a media outbound message.
func Media(kind MediaKind, path string) OutboundMessage {
	return OutboundMessage{Media: &MediaRef{Kind: kind, Path: path}}
}

// Bundle is the ordered list of outbound messages produced for one transition.
type Bundle []OutboundMessage

// AddText appends a text message, skipping empty bodies.
func (b Bundle) AddText(body string) Bundle {
	if body == "" {
		return b
	}
	return append(b, Text(body))
}

// AddMedia appends a media message.
func (b Bundle) AddMedia(kind MediaKind, path string) Bundle {
	return append(b, Media(kind, path))
}

// Error variables shared by validation code.
var (
	ErrEmptyRecipient   = errors.New("recipient cannot be empty")
	ErrEmptyProgramName = errors.New("program name is required")
	ErrInvalidStage     = errors.New("invalid conversation stage")
)

// APIStatus represents the status field of API responses.
type APIStatus string

const (
	APIStatusOK    APIStatus = "ok"
	APIStatusError APIStatus = "error"
)

// APIResponse is the standard JSON envelope returned by HTTP endpoints.
type APIResponse struct {
	Status  string      `json:"status"`
	Message string      `json:"message,omitempty"`
	Result  interface{} `json:"result,omitempty"`
}

// Success creates an ok response carrying a result.
func Success(result interface{}) APIResponse {
	return APIResponse{Status: string(APIStatusOK), Result: result}
}

// SuccessWithMessage creates an ok response with a message and result.
func SuccessWithMessage(message string, result interface{}) APIResponse {
	return APIResponse{Status: string(APIStatusOK), Message: message, Result: result}
}

// Error creates an error response.
func Error(message string) APIResponse {
	return APIResponse{Status: string(APIStatusError), Message: message}
}
