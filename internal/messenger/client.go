// Package messenger sends text messages through the Meta Graph messaging API.
package messenger

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"
)

const (
	defaultAPIBase     = "https://graph.facebook.com/v20.0"
	defaultHTTPTimeout = 30 * time.Second
)

// Client implements domain.MessageSender for the Graph messaging API.
type Client struct {
	apiBase     string
	pageID      string
	accessToken string
	client      *http.Client
	logger      *slog.Logger
}

type Config struct {
	APIBase     string
	PageID      string
	AccessToken string
	Logger      *slog.Logger
}

func New(cfg Config) *Client {
	if cfg.APIBase == "" {
		cfg.APIBase = defaultAPIBase
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Client{
		apiBase:     cfg.APIBase,
		pageID:      cfg.PageID,
		accessToken: cfg.AccessToken,
		client:      &http.Client{Timeout: defaultHTTPTimeout},
		logger:      cfg.Logger,
	}
}

type sendRequest struct {
	Recipient     party       `json:"recipient"`
	Message       textMessage `json:"message"`
	MessagingType string      `json:"messaging_type"`
}

type party struct {
	ID string `json:"id"`
}

type textMessage struct {
	Text string `json:"text"`
}

// SendText delivers one text message to a recipient. One call per chunk;
// no batching, no retry.
func (c *Client) SendText(ctx context.Context, recipientID, text string) error {
	endpoint := fmt.Sprintf("%s/%s/messages?access_token=%s",
		c.apiBase, c.pageID, url.QueryEscape(c.accessToken))

	payload := sendRequest{
		Recipient:     party{ID: recipientID},
		Message:       textMessage{Text: text},
		MessagingType: "RESPONSE",
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("send: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		respBody, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("graph API %d: %s", resp.StatusCode, string(respBody))
	}

	c.logger.Debug("message sent", "recipient", recipientID, "text_len", len(text))
	return nil
}

// Healthy verifies the page is reachable with the configured credential.
func (c *Client) Healthy(ctx context.Context) error {
	endpoint := fmt.Sprintf("%s/%s?fields=id&access_token=%s",
		c.apiBase, c.pageID, url.QueryEscape(c.accessToken))

	req, err := http.NewRequestWithContext(ctx, "GET", endpoint, nil)
	if err != nil {
		return err
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("graph API not reachable: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("graph API %d: %s", resp.StatusCode, string(respBody))
	}
	return nil
}
