package http

import "time"

// ProviderInboundSMSRequest is the callback body an SMS provider posts when
// a subscriber message arrives on one of our numbers.
type ProviderInboundSMSRequest struct {
	// From is the originating subscriber address (MSISDN).
	From string `json:"from" validate:"required"`

	// To is the receiving number on our platform.
	To string `json:"to" validate:"required"`

	// Text is the message body exactly as the subscriber sent it.
	Text string `json:"text" validate:"required"`

	// MessageID is the provider's id for this inbound message.
	MessageID string `json:"message_id,omitempty"`

	// Timestamp is when the provider received the message. Optional; the
	// gateway stamps its own receive time when absent.
	Timestamp time.Time `json:"timestamp,omitempty"`
}

// ProviderDLRCallbackRequest is the delivery report body a provider posts
// for a reply we previously submitted.
type ProviderDLRCallbackRequest struct {
	// MessageID is the provider's id assigned at submission time; it is the
	// correlation key back to the outbox.
	MessageID string `json:"message_id" validate:"required"`

	// StatusCode is the provider's numeric delivery verdict.
	StatusCode int `json:"status_code" validate:"required"`

	Timestamp time.Time `json:"timestamp" validate:"required"`
}
