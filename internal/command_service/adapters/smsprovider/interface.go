package smsprovider

import "context"

// SMSRequestData holds the data for sending one reply via a provider.
type SMSRequestData struct {
	InternalMessageID string // our outbox message id
	Recipient         string
	Content           string
}

// SMSResponseData holds the outcome of a send attempt.
type SMSResponseData struct {
	ProviderMessageID string // the transport-assigned id used by later DLRs
	Success           bool
	ProviderStatus    string
	ErrorMessage      string
}

// Adapter is the outbound transport boundary. Delivery failures reported
// here are logged, never retried; the inbound gateway owns retries.
type Adapter interface {
	Send(ctx context.Context, request SMSRequestData) (*SMSResponseData, error)
	GetName() string
}
