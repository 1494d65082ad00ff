// Package backendapi is the HTTP client for user-registered messaging
// backends. Each backend exposes /messages, /conversation and /send-message
// under its base URL.
package backendapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

type Client struct {
	HTTPClient *http.Client
}

func NewClient() *Client {
	return &Client{
		HTTPClient: &http.Client{Timeout: 10 * time.Second},
	}
}

// Preview is a summarized most-recent-message view of one conversation thread.
type Preview struct {
	PhoneNumber string `json:"phoneNumber"`
	Snippet     string `json:"snippet"`
	Timestamp   string `json:"timestamp"`
	Unread      bool   `json:"unread"`
	FromYou     bool   `json:"fromYou"`
}

// ConversationMessage is one message in a thread. Direction is optional in
// the backend contract; treat {from, time, text} as the minimum shape.
type ConversationMessage struct {
	From      string `json:"from"`
	Time      string `json:"time"`
	Text      string `json:"text"`
	Direction string `json:"direction,omitempty"` // "incoming" or "outgoing"
}

func (c *Client) GetMessages(ctx context.Context, baseURL string) ([]Preview, error) {
	body, err := c.get(ctx, baseURL+"/messages")
	if err != nil {
		return nil, err
	}
	var previews []Preview
	if err := json.Unmarshal(body, &previews); err != nil {
		return nil, fmt.Errorf("invalid /messages response from %s: %w", baseURL, err)
	}
	return previews, nil
}

func (c *Client) GetConversation(ctx context.Context, baseURL, phone string) ([]ConversationMessage, error) {
	body, err := c.get(ctx, baseURL+"/conversation?phone="+url.QueryEscape(phone))
	if err != nil {
		return nil, err
	}
	var msgs []ConversationMessage
	if err := json.Unmarshal(body, &msgs); err != nil {
		return nil, fmt.Errorf("invalid /conversation response from %s: %w", baseURL, err)
	}
	return msgs, nil
}

// SendMessage posts a message and returns the backend's plain-text
// confirmation body verbatim. A non-2xx body becomes the error message.
func (c *Client) SendMessage(ctx context.Context, baseURL, phone, text string) (string, error) {
	payload, err := json.Marshal(map[string]string{
		"phoneNumber": phone,
		"text":        text,
	})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, baseURL+"/send-message", bytes.NewBuffer(payload))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	if resp.StatusCode >= 300 {
		return "", fmt.Errorf("%s", strings.TrimSpace(string(respBody)))
	}
	return string(respBody), nil
}

func (c *Client) get(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= 300 {
		return nil, fmt.Errorf("backend error: %s - %s", resp.Status, strings.TrimSpace(string(body)))
	}
	return body, nil
}
