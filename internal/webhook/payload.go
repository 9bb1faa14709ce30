package webhook

import (
	"encoding/json"
	"fmt"
	"time"

	"instarelay/internal/domain"
)

// Payload is the Graph API messaging webhook envelope:
// {entry: [{messaging: [{sender: {id}, message: {mid, text, ...}}]}]}.
type Payload struct {
	Object string  `json:"object"`
	Entry  []Entry `json:"entry"`
}

type Entry struct {
	ID        string      `json:"id"`
	Time      int64       `json:"time"`
	Messaging []Messaging `json:"messaging"`
}

type Messaging struct {
	Sender    *Party   `json:"sender"`
	Recipient *Party   `json:"recipient"`
	Timestamp int64    `json:"timestamp"`
	Message   *Message `json:"message"`
}

type Party struct {
	ID string `json:"id"`
}

type Message struct {
	Mid       string          `json:"mid"`
	Text      string          `json:"text"`
	IsDeleted bool            `json:"is_deleted"`
	IsEcho    bool            `json:"is_echo"`
	Read      json.RawMessage `json:"read,omitempty"` // presence marks a read receipt
}

// Classify inspects a decoded webhook payload and returns the event it
// carries. Order matters: missing structure first, then read receipts,
// retractions, and echoes, and only then a new message. A payload with
// recognizable structure but missing required fields is an error; the
// caller maps that to an internal failure rather than an acknowledgement.
func Classify(p *Payload) (domain.InboundMessage, error) {
	if p == nil || len(p.Entry) == 0 || len(p.Entry[0].Messaging) == 0 {
		return domain.InboundMessage{Kind: domain.EventUnrecognized}, nil
	}

	event := p.Entry[0].Messaging[0]
	msg := event.Message
	if msg == nil {
		return domain.InboundMessage{Kind: domain.EventUnrecognized}, nil
	}

	if msg.Read != nil {
		return domain.InboundMessage{Kind: domain.EventReadReceipt}, nil
	}

	if msg.IsDeleted {
		if event.Sender == nil || event.Sender.ID == "" || msg.Mid == "" {
			return domain.InboundMessage{}, fmt.Errorf("retraction event missing sender or mid")
		}
		return domain.InboundMessage{
			ID:       msg.Mid,
			SenderID: event.Sender.ID,
			Kind:     domain.EventRetraction,
		}, nil
	}

	if msg.IsEcho {
		return domain.InboundMessage{Kind: domain.EventEcho}, nil
	}

	if event.Sender == nil || event.Sender.ID == "" || msg.Mid == "" {
		return domain.InboundMessage{}, fmt.Errorf("message event missing sender or mid")
	}
	return domain.InboundMessage{
		ID:        msg.Mid,
		SenderID:  event.Sender.ID,
		Text:      msg.Text,
		Kind:      domain.EventNewMessage,
		Timestamp: time.Now(),
	}, nil
}
