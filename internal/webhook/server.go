// Package webhook exposes the relay over the platform's webhook protocol:
// the GET verification handshake and POST event delivery.
package webhook

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"instarelay/internal/domain"
	"instarelay/internal/metrics"
	"instarelay/internal/relay"
)

const maxBodyBytes = 1 << 20 // 1MB

// Relay is the subset of the conversation relay the webhook drives.
type Relay interface {
	HandleMessage(ctx context.Context, msg domain.InboundMessage) (relay.Result, error)
	HandleRetraction(ctx context.Context, senderID, messageID string)
}

// Config configures the webhook server.
type Config struct {
	Host            string
	Port            int
	Path            string          // webhook URL path (default: /)
	VerifyToken     string          // handshake secret
	AppSecret       string          // enables X-Hub-Signature-256 verification when set
	MetricsEndpoint string          // empty disables the metrics handler
	Notifier        domain.Notifier // optional, pinged on internal errors
	Logger          *slog.Logger
}

// Server terminates the platform webhook and hands classified events to the relay.
type Server struct {
	cfg    Config
	relay  Relay
	logger *slog.Logger
	server *http.Server
}

func NewServer(cfg Config, rel Relay) *Server {
	if cfg.Path == "" {
		cfg.Path = "/"
	}
	if cfg.Port == 0 {
		cfg.Port = 8080
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Server{
		cfg:    cfg,
		relay:  rel,
		logger: cfg.Logger,
	}
}

// Start runs the HTTP server until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	s.server = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	s.logger.Info("webhook server starting", "addr", s.server.Addr, "path", s.cfg.Path)

	errCh := make(chan error, 1)
	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("webhook server shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.server.Shutdown(shutdownCtx)
	case err := <-errCh:
		return fmt.Errorf("webhook server: %w", err)
	}
}

// Handler returns the webhook HTTP handler (exposed for tests and embedding).
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET "+s.cfg.Path, s.handleVerification)
	mux.HandleFunc("POST "+s.cfg.Path, s.handleEvents)
	if s.cfg.MetricsEndpoint != "" && s.cfg.MetricsEndpoint != s.cfg.Path {
		mux.HandleFunc("GET "+s.cfg.MetricsEndpoint, metrics.Collector.Handler())
	}
	return mux
}

// handleVerification answers the platform's webhook verification handshake:
// echo hub.challenge when hub.verify_token matches, 403 otherwise.
func (s *Server) handleVerification(rw http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("hub.verify_token")
	challenge := r.URL.Query().Get("hub.challenge")

	if token != s.cfg.VerifyToken {
		s.logger.Warn("webhook verification failed")
		http.Error(rw, "Invalid verification token", http.StatusForbidden)
		return
	}

	s.logger.Info("webhook verified")
	rw.Header().Set("Content-Type", "text/plain; charset=utf-8")
	rw.WriteHeader(http.StatusOK)
	fmt.Fprint(rw, challenge)
}

// handleEvents classifies one delivered event and routes it. Recognized and
// ignorable events are always acknowledged with 200 so the platform does not
// redeliver; only an unexpected processing failure produces 500.
func (s *Server) handleEvents(rw http.ResponseWriter, r *http.Request) {
	reqID := uuid.NewString()

	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		s.internalError(r.Context(), rw, reqID, fmt.Errorf("read body: %w", err))
		return
	}
	defer r.Body.Close()

	if s.cfg.AppSecret != "" {
		sig := r.Header.Get("X-Hub-Signature-256")
		if !verifySignature(body, s.cfg.AppSecret, sig) {
			s.logger.Warn("invalid webhook signature", "req", reqID)
			http.Error(rw, "Forbidden", http.StatusForbidden)
			return
		}
	}

	var payload Payload
	if err := json.Unmarshal(body, &payload); err != nil {
		// Undecodable bodies are acknowledged, not retried.
		s.logger.Warn("undecodable webhook body", "req", reqID, "err", err)
		s.respond(rw, "No reply needed")
		return
	}

	msg, err := Classify(&payload)
	if err != nil {
		s.internalError(r.Context(), rw, reqID, fmt.Errorf("classify event: %w", err))
		return
	}

	switch msg.Kind {
	case domain.EventUnrecognized:
		metrics.EventsUnrecognized.Inc()
		s.respond(rw, "No reply needed")

	case domain.EventReadReceipt:
		metrics.EventsReadReceipt.Inc()
		s.logger.Debug("read receipt skipped", "req", reqID)
		s.respond(rw, "Read event detected, skipping...")

	case domain.EventEcho:
		metrics.EventsEcho.Inc()
		s.logger.Debug("echo skipped", "req", reqID)
		s.respond(rw, "No reply needed")

	case domain.EventRetraction:
		metrics.EventsRetraction.Inc()
		s.logger.Info("unsend request", "req", reqID, "mid", msg.ID, "sender", msg.SenderID)
		s.relay.HandleRetraction(r.Context(), msg.SenderID, msg.ID)
		s.respond(rw, "Message unsend request handled")

	case domain.EventNewMessage:
		metrics.EventsNewMessage.Inc()
		s.logger.Info("message received",
			"req", reqID, "mid", msg.ID, "sender", msg.SenderID, "text_len", len(msg.Text))

		res, err := s.relay.HandleMessage(r.Context(), msg)
		if err != nil {
			s.internalError(r.Context(), rw, reqID, fmt.Errorf("relay message %s: %w", msg.ID, err))
			return
		}
		if res.Duplicate {
			s.respond(rw, "Duplicate message")
			return
		}
		s.respond(rw, res.Reply)

	default:
		s.respond(rw, "No reply needed")
	}
}

func (s *Server) respond(rw http.ResponseWriter, body string) {
	rw.Header().Set("Content-Type", "text/plain; charset=utf-8")
	rw.WriteHeader(http.StatusOK)
	fmt.Fprint(rw, body)
}

// internalError logs, optionally alerts, and reports a generic 500. The
// remote sender is never told about backend failures.
func (s *Server) internalError(ctx context.Context, rw http.ResponseWriter, reqID string, err error) {
	s.logger.Error("webhook processing failed", "req", reqID, "err", err)
	if s.cfg.Notifier != nil {
		s.cfg.Notifier.Notify(ctx, fmt.Sprintf("relay error (req %s): %v", reqID, err))
	}
	http.Error(rw, "Internal Server Error", http.StatusInternalServerError)
}

// verifySignature checks the X-Hub-Signature-256 header against the body.
func verifySignature(body []byte, secret, signature string) bool {
	if len(signature) < 7 || signature[:7] != "sha256=" {
		return false
	}
	expected := signature[7:]

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	computed := hex.EncodeToString(mac.Sum(nil))

	return hmac.Equal([]byte(expected), []byte(computed))
}
