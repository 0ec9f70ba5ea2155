package domain

import "time"

// WireType identifies the transport channel a message arrived on. SMS is
// the only channel deployed today; adding a channel means adding a constant
// and a transport adapter, not new branching in the pipeline.
type WireType string

const (
	WireTypeSMS WireType = "sms"
)

// InboundMessage is what the transport adapter delivers to the pipeline.
// Immutable once received.
type InboundMessage struct {
	WireType   WireType  `json:"wire_type"`
	RawText    string    `json:"raw_text"`
	Address    string    `json:"address"`
	ReceivedAt time.Time `json:"received_at"`
}

// RouteTarget is where the router sends an inbound message.
type RouteTarget string

const (
	RouteTargetDev  RouteTarget = "DEV"
	RouteTargetProd RouteTarget = "PROD"
)

// RoutingDecision is derived deterministically from the raw text. The dev
// routing suffix, if present, has already been removed from StrippedText.
type RoutingDecision struct {
	Target       RouteTarget
	StrippedText string
}

// ReplyMessage is the synthesized outbound SMS handed to the dispatcher.
type ReplyMessage struct {
	Address string
	Text    string
}

// DeliveryStatusUpdate is the out-of-band status event for a previously
// dispatched reply, correlated by the transport's own message id.
type DeliveryStatusUpdate struct {
	ExternalMessageID string    `json:"external_message_id"`
	StatusCode        int       `json:"status_code"`
	Timestamp         time.Time `json:"timestamp"`
}
