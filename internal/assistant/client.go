// Package assistant implements the AssistantBackend interface against the
// OpenAI Assistants API (v2).
package assistant

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"instarelay/internal/domain"
)

const (
	defaultAPIBase     = "https://api.openai.com/v1"
	defaultHTTPTimeout = 60 * time.Second
	betaHeader         = "assistants=v2"
)

// Client talks to the OpenAI Assistants REST API.
type Client struct {
	apiKey  string
	apiBase string
	client  *http.Client
	logger  *slog.Logger
}

type Config struct {
	APIKey  string
	APIBase string
	Logger  *slog.Logger
}

func New(cfg Config) *Client {
	if cfg.APIBase == "" {
		cfg.APIBase = defaultAPIBase
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Client{
		apiKey:  cfg.APIKey,
		apiBase: cfg.APIBase,
		client:  &http.Client{Timeout: defaultHTTPTimeout},
		logger:  cfg.Logger,
	}
}

type threadObject struct {
	ID string `json:"id"`
}

type createMessageRequest struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type messageObject struct {
	ID      string        `json:"id"`
	Role    string        `json:"role"`
	Content []contentPart `json:"content"`
}

type contentPart struct {
	Type string     `json:"type"`
	Text *textValue `json:"text,omitempty"`
}

type textValue struct {
	Value string `json:"value"`
}

type messageList struct {
	Data []messageObject `json:"data"`
}

type createRunRequest struct {
	AssistantID string `json:"assistant_id"`
}

type runObject struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

type deletionObject struct {
	ID      string `json:"id"`
	Deleted bool   `json:"deleted"`
}

// CreateThread starts a new conversation thread.
func (c *Client) CreateThread(ctx context.Context) (string, error) {
	var thread threadObject
	if err := c.do(ctx, "POST", "/threads", struct{}{}, &thread); err != nil {
		return "", fmt.Errorf("create thread: %w", err)
	}
	return thread.ID, nil
}

// AddMessage appends a user message to the thread and returns the message id.
func (c *Client) AddMessage(ctx context.Context, threadID, text string) (string, error) {
	var msg messageObject
	in := createMessageRequest{Role: "user", Content: text}
	if err := c.do(ctx, "POST", "/threads/"+threadID+"/messages", in, &msg); err != nil {
		return "", fmt.Errorf("add message: %w", err)
	}
	return msg.ID, nil
}

// CreateRun starts a run of the assistant over the thread.
func (c *Client) CreateRun(ctx context.Context, threadID, assistantID string) (domain.Run, error) {
	var run runObject
	in := createRunRequest{AssistantID: assistantID}
	if err := c.do(ctx, "POST", "/threads/"+threadID+"/runs", in, &run); err != nil {
		return domain.Run{}, fmt.Errorf("create run: %w", err)
	}
	return domain.Run{ID: run.ID, Status: run.Status}, nil
}

// GetRun fetches the current run state.
func (c *Client) GetRun(ctx context.Context, threadID, runID string) (domain.Run, error) {
	var run runObject
	if err := c.do(ctx, "GET", "/threads/"+threadID+"/runs/"+runID, nil, &run); err != nil {
		return domain.Run{}, fmt.Errorf("get run: %w", err)
	}
	return domain.Run{ID: run.ID, Status: run.Status}, nil
}

// LatestAssistantMessage returns the text of the most recent assistant
// message in the thread. The list endpoint returns newest first.
func (c *Client) LatestAssistantMessage(ctx context.Context, threadID string) (string, error) {
	var list messageList
	if err := c.do(ctx, "GET", "/threads/"+threadID+"/messages?order=desc&limit=20", nil, &list); err != nil {
		return "", fmt.Errorf("list messages: %w", err)
	}

	for _, msg := range list.Data {
		if msg.Role != "assistant" {
			continue
		}
		for _, part := range msg.Content {
			if part.Type == "text" && part.Text != nil {
				return part.Text.Value, nil
			}
		}
	}
	return "", fmt.Errorf("thread %s has no assistant reply", threadID)
}

// DeleteMessage removes a message from the thread.
func (c *Client) DeleteMessage(ctx context.Context, threadID, messageID string) error {
	var del deletionObject
	if err := c.do(ctx, "DELETE", "/threads/"+threadID+"/messages/"+messageID, nil, &del); err != nil {
		return fmt.Errorf("delete message: %w", err)
	}
	if !del.Deleted {
		return fmt.Errorf("message %s not deleted", messageID)
	}
	return nil
}

// Healthy verifies the API is reachable with valid credentials.
func (c *Client) Healthy(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, "GET", c.apiBase+"/models", nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("assistants API not reachable: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusUnauthorized {
		return fmt.Errorf("assistants API: invalid API key")
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("assistants API returned %d", resp.StatusCode)
	}
	return nil
}

// do issues one API call. There is no automatic retry: a failed call is the
// caller's to report.
func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		jsonBody, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("marshal: %w", err)
		}
		body = bytes.NewReader(jsonBody)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.apiBase+path, body)
	if err != nil {
		return fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("OpenAI-Beta", betaHeader)

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("assistants request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("assistants API %d: %s", resp.StatusCode, string(respBody))
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode: %w", err)
		}
	}
	return nil
}
