package domain

import (
	"context"
	"time"
)

// Exchange is one relayed inbound message and the reply it produced,
// recorded for operator inspection. The relay itself never reads these back;
// the in-memory state stays authoritative.
type Exchange struct {
	ID        int64
	MessageID string
	SenderID  string
	ThreadID  string
	Inbound   string
	Reply     string
	Chunks    int
	CreatedAt time.Time
}

// HistoryStore records relayed exchanges and retractions.
type HistoryStore interface {
	RecordExchange(ctx context.Context, ex Exchange) error
	RecordRetraction(ctx context.Context, messageID, senderID string) error
	RecentExchanges(ctx context.Context, limit int) ([]Exchange, error)
	Prune(ctx context.Context, olderThan time.Time) (int64, error)
	Close() error
}
