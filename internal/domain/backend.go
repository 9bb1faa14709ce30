package domain

import "context"

// Run states reported by the assistant backend. Queued and in_progress are
// the only non-terminal states; completed is the only successful one.
const (
	RunQueued     = "queued"
	RunInProgress = "in_progress"
	RunCompleted  = "completed"
	RunFailed     = "failed"
	RunCancelled  = "cancelled"
	RunExpired    = "expired"
)

// Run is one invocation of the assistant over a thread's message history.
type Run struct {
	ID     string
	Status string
}

// Terminal reports whether the run has reached a final state.
func (r Run) Terminal() bool {
	return r.Status != RunQueued && r.Status != RunInProgress
}

// AssistantBackend is the narrow surface the relay consumes from the
// conversational AI service.
type AssistantBackend interface {
	// CreateThread starts a new conversation thread and returns its id.
	CreateThread(ctx context.Context) (string, error)
	// AddMessage appends a user message to a thread and returns the
	// backend-assigned message id.
	AddMessage(ctx context.Context, threadID, text string) (string, error)
	// CreateRun starts a run of the given assistant over the thread.
	CreateRun(ctx context.Context, threadID, assistantID string) (Run, error)
	// GetRun fetches the current state of a run.
	GetRun(ctx context.Context, threadID, runID string) (Run, error)
	// LatestAssistantMessage returns the text of the most recent
	// assistant-authored message in the thread.
	LatestAssistantMessage(ctx context.Context, threadID string) (string, error)
	// DeleteMessage removes a message from a thread.
	DeleteMessage(ctx context.Context, threadID, messageID string) error
	// Healthy verifies the backend is reachable with valid credentials.
	Healthy(ctx context.Context) error
}

// MessageSender delivers one outbound text to a platform recipient.
type MessageSender interface {
	SendText(ctx context.Context, recipientID, text string) error
}

// Notifier pushes an operational alert to whoever is on call.
type Notifier interface {
	Notify(ctx context.Context, text string)
}
