// Package relay implements the conversation relay core: the dedup ledger,
// the sender-to-thread directory, the message correlation table, and the
// orchestration that turns an inbound platform message into an assistant
// reply delivered back to the sender.
package relay

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"instarelay/internal/domain"
	"instarelay/internal/metrics"
)

const (
	defaultPollInterval = 500 * time.Millisecond
	defaultRunTimeout   = 2 * time.Minute
)

// Result is the outcome of handling a new-message event.
type Result struct {
	Duplicate bool
	Reply     string // cleaned reply text, empty for duplicates
}

// Config configures the relay.
type Config struct {
	Backend      domain.AssistantBackend
	Dispatcher   *Dispatcher
	AssistantID  string
	PollInterval time.Duration
	RunTimeout   time.Duration
	History      domain.HistoryStore // optional
	Logger       *slog.Logger
}

// Relay owns the relay state and drives one inbound message through the
// backend to a delivered reply.
type Relay struct {
	state        *State
	backend      domain.AssistantBackend
	dispatcher   *Dispatcher
	assistantID  string
	pollInterval time.Duration
	runTimeout   time.Duration
	history      domain.HistoryStore
	logger       *slog.Logger

	// createMu serializes thread creation so two near-simultaneous first
	// messages from one sender cannot create two threads.
	createMu sync.Mutex
}

func New(cfg Config) *Relay {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = defaultPollInterval
	}
	if cfg.RunTimeout <= 0 {
		cfg.RunTimeout = defaultRunTimeout
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Relay{
		state:        NewState(),
		backend:      cfg.Backend,
		dispatcher:   cfg.Dispatcher,
		assistantID:  cfg.AssistantID,
		pollInterval: cfg.PollInterval,
		runTimeout:   cfg.RunTimeout,
		history:      cfg.History,
		logger:       cfg.Logger,
	}
}

// State exposes the relay state, mainly for diagnostics.
func (r *Relay) State() *State { return r.state }

// HandleMessage relays one new-message event: dedup, thread lookup or
// creation, backend submission, run wait, and reply dispatch. The call
// blocks until the run reaches a terminal state or the timeout elapses.
func (r *Relay) HandleMessage(ctx context.Context, msg domain.InboundMessage) (Result, error) {
	// Marked before submission, not after completion, so a duplicate
	// delivery racing the first copy is rejected while it is in flight.
	if !r.state.MarkSeen(msg.ID) {
		metrics.Duplicates.Inc()
		r.logger.Info("duplicate message skipped", "mid", msg.ID, "sender", msg.SenderID)
		return Result{Duplicate: true}, nil
	}

	threadID, err := r.threadFor(ctx, msg.SenderID)
	if err != nil {
		return Result{}, fmt.Errorf("thread for sender %s: %w", msg.SenderID, err)
	}

	backendMsgID, err := r.backend.AddMessage(ctx, threadID, msg.Text)
	if err != nil {
		return Result{}, fmt.Errorf("append message to thread %s: %w", threadID, err)
	}
	r.state.Correlate(msg.ID, backendMsgID)
	r.logger.Debug("message correlated", "mid", msg.ID, "backend_id", backendMsgID, "thread", threadID)

	run, err := r.backend.CreateRun(ctx, threadID, r.assistantID)
	if err != nil {
		return Result{}, fmt.Errorf("create run on thread %s: %w", threadID, err)
	}

	run, err = r.waitRun(ctx, threadID, run)
	if err != nil {
		metrics.RunsFailed.Inc()
		return Result{}, err
	}
	if run.Status != domain.RunCompleted {
		metrics.RunsFailed.Inc()
		return Result{}, fmt.Errorf("run %s ended in state %s", run.ID, run.Status)
	}
	metrics.RunsCompleted.Inc()

	reply, err := r.backend.LatestAssistantMessage(ctx, threadID)
	if err != nil {
		return Result{}, fmt.Errorf("fetch reply from thread %s: %w", threadID, err)
	}

	cleaned, chunks := r.dispatcher.Dispatch(ctx, msg.SenderID, reply)
	r.logger.Info("reply relayed",
		"mid", msg.ID,
		"sender", msg.SenderID,
		"thread", threadID,
		"chunks", chunks,
	)

	if r.history != nil {
		ex := domain.Exchange{
			MessageID: msg.ID,
			SenderID:  msg.SenderID,
			ThreadID:  threadID,
			Inbound:   msg.Text,
			Reply:     cleaned,
			Chunks:    chunks,
		}
		if err := r.history.RecordExchange(ctx, ex); err != nil {
			r.logger.Warn("history record failed", "mid", msg.ID, "err", err)
		}
	}

	return Result{Reply: cleaned}, nil
}

// threadFor returns the sender's thread, creating one through the backend
// on first contact. Fast path is a read; the slow path double-checks under
// the creation lock before asking the backend for a new thread.
func (r *Relay) threadFor(ctx context.Context, senderID string) (string, error) {
	if id, ok := r.state.Thread(senderID); ok {
		return id, nil
	}

	r.createMu.Lock()
	defer r.createMu.Unlock()

	if id, ok := r.state.Thread(senderID); ok {
		return id, nil
	}

	id, err := r.backend.CreateThread(ctx)
	if err != nil {
		return "", err
	}
	r.state.PutThread(senderID, id)
	metrics.ThreadsCreated.Inc()
	r.logger.Info("created new thread", "sender", senderID, "thread", id)
	return id, nil
}

// waitRun polls the run at a fixed cadence until it reaches a terminal
// state, the run timeout elapses, or ctx is cancelled.
func (r *Relay) waitRun(ctx context.Context, threadID string, run domain.Run) (domain.Run, error) {
	ctx, cancel := context.WithTimeout(ctx, r.runTimeout)
	defer cancel()

	start := time.Now()
	defer func() {
		metrics.RunWait.Observe(time.Since(start).Seconds())
	}()

	ticker := time.NewTicker(r.pollInterval)
	defer ticker.Stop()

	for !run.Terminal() {
		select {
		case <-ctx.Done():
			return run, fmt.Errorf("run %s did not finish: %w", run.ID, ctx.Err())
		case <-ticker.C:
		}

		var err error
		run, err = r.backend.GetRun(ctx, threadID, run.ID)
		if err != nil {
			return run, fmt.Errorf("poll run %s: %w", run.ID, err)
		}
	}
	return run, nil
}

// HandleRetraction deletes the backend messages correlated with messageID
// and drops the correlation entry. An unknown sender or an uncorrelated
// message id is a logged no-op; the sender is never messaged back.
func (r *Relay) HandleRetraction(ctx context.Context, senderID, messageID string) {
	threadID, ok := r.state.Thread(senderID)
	if !ok {
		r.logger.Info("retraction for unknown sender", "sender", senderID, "mid", messageID)
		return
	}

	refs, ok := r.state.Correlations(messageID)
	if !ok {
		r.logger.Info("no backend message correlated", "mid", messageID)
		return
	}

	// Deletions are independent: one failure does not stop the rest.
	for _, ref := range refs {
		if err := r.backend.DeleteMessage(ctx, threadID, ref); err != nil {
			r.logger.Error("backend message delete failed",
				"mid", messageID, "backend_id", ref, "thread", threadID, "err", err)
			continue
		}
		r.logger.Info("backend message deleted", "mid", messageID, "backend_id", ref, "thread", threadID)
	}

	r.state.DropCorrelation(messageID)
	metrics.Retractions.Inc()

	if r.history != nil {
		if err := r.history.RecordRetraction(ctx, messageID, senderID); err != nil {
			r.logger.Warn("history record failed", "mid", messageID, "err", err)
		}
	}
}
