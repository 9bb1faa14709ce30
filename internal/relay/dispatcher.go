package relay

import (
	"context"
	"log/slog"
	"regexp"
	"strings"

	"instarelay/internal/domain"
	"instarelay/internal/metrics"
)

const defaultChunkSize = 1000

var (
	boldPattern     = regexp.MustCompile(`\*\*(.*?)\*\*`)
	citationPattern = regexp.MustCompile(`【.*?†source】`)
	headingPattern  = regexp.MustCompile(`###\s*`)
)

// CleanText strips assistant markup the messaging platform would render
// literally: **bold** markers, 【…†source】 citation tags, and ### heading
// markers. Applying it to already-clean text is a no-op.
func CleanText(text string) string {
	out := boldPattern.ReplaceAllString(text, "$1")
	out = citationPattern.ReplaceAllString(out, "")
	out = headingPattern.ReplaceAllString(out, "")
	return strings.TrimSpace(out)
}

// chunkText splits text into consecutive chunks of at most size characters.
// Splitting counts runes, never bytes, so a chunk boundary cannot land
// inside a multi-byte character. Empty text yields no chunks; text of
// exactly size yields one.
func chunkText(text string, size int) []string {
	if text == "" {
		return nil
	}
	runes := []rune(text)
	var chunks []string
	for len(runes) > size {
		chunks = append(chunks, string(runes[:size]))
		runes = runes[size:]
	}
	return append(chunks, string(runes))
}

// Dispatcher formats assistant replies and delivers them to the platform,
// one send per chunk, in reading order.
type Dispatcher struct {
	sender    domain.MessageSender
	chunkSize int
	logger    *slog.Logger
}

func NewDispatcher(sender domain.MessageSender, chunkSize int, logger *slog.Logger) *Dispatcher {
	if chunkSize <= 0 {
		chunkSize = defaultChunkSize
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{
		sender:    sender,
		chunkSize: chunkSize,
		logger:    logger,
	}
}

// Dispatch cleans text and sends it to recipientID chunk by chunk. Chunks
// are strictly sequential so the recipient reads them in order. A failed
// chunk is logged and does not stop later chunks; there is no retry.
// It returns the cleaned text and the number of chunks attempted.
func (d *Dispatcher) Dispatch(ctx context.Context, recipientID, text string) (string, int) {
	cleaned := CleanText(text)
	chunks := chunkText(cleaned, d.chunkSize)

	for i, chunk := range chunks {
		if err := d.sender.SendText(ctx, recipientID, chunk); err != nil {
			metrics.ChunksFailed.Inc()
			d.logger.Error("chunk send failed",
				"recipient", recipientID,
				"chunk", i+1,
				"chunks", len(chunks),
				"err", err,
			)
			continue
		}
		metrics.ChunksSent.Inc()
		d.logger.Debug("chunk sent", "recipient", recipientID, "chunk", i+1, "chunks", len(chunks))
	}

	return cleaned, len(chunks)
}
