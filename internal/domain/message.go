package domain

import "time"

// EventKind classifies an inbound webhook event.
type EventKind string

const (
	EventNewMessage   EventKind = "new_message"
	EventRetraction   EventKind = "retraction"
	EventReadReceipt  EventKind = "read_receipt"
	EventEcho         EventKind = "echo"
	EventUnrecognized EventKind = "unrecognized"
)

// InboundMessage is one classified messaging event from the platform.
// ID is the platform-assigned message id (mid) and serves as the dedup key.
type InboundMessage struct {
	ID        string
	SenderID  string
	Text      string
	Kind      EventKind
	Timestamp time.Time
}
