package app

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sort"
	"time"
)

// RemoteStore is the conversation backend: a single POST endpoint whose
// request body carries an "action" discriminator. The implementation lives
// behind this interface so the TUI can run against a mock when no endpoint
// is configured.
type RemoteStore interface {
	Send(ctx context.Context, sessionID, message string) (SendResult, error)
	Load(ctx context.Context, sessionID string) (LoadResult, error)
	List(ctx context.Context) ([]ConversationSummary, error)
	Delete(ctx context.Context, sessionID string) error
	Rename(ctx context.Context, sessionID, title string) error
}

type SendResult struct {
	Text string
	// ResponseTime is the round trip measured client-side, in seconds.
	ResponseTime float64
}

// LoadResult distinguishes a valid (possibly empty) transcript from a
// response whose shape could not be recognized. The two cases drive the
// cache differently: valid overwrites, malformed must not touch it.
type LoadResult struct {
	Messages  []Message
	Malformed bool
}

type Client struct {
	Endpoint string
	APIKey   string
	HTTP     *http.Client
}

func NewClient(endpoint, apiKey string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Client{
		Endpoint: endpoint,
		APIKey:   apiKey,
		HTTP:     &http.Client{Timeout: timeout},
	}
}

type apiRequest struct {
	Action    string `json:"action"`
	SessionID string `json:"sessionId,omitempty"`
	Message   string `json:"message,omitempty"`
	Title     string `json:"title,omitempty"`
}

// wireMessage mirrors the backend's load payload: timestamps travel as
// ISO-8601 text, with or without a zone offset.
type wireMessage struct {
	Role         string   `json:"role"`
	Content      string   `json:"content"`
	Timestamp    string   `json:"timestamp"`
	ResponseTime *float64 `json:"responseTime,omitempty"`
}

type wireSummary struct {
	SessionID    string `json:"sessionId"`
	Title        string `json:"title"`
	LastMessage  string `json:"lastMessage"`
	Timestamp    string `json:"timestamp"`
	MessageCount int    `json:"messageCount"`
}

func (c *Client) post(ctx context.Context, req apiRequest) ([]byte, error) {
	if c.Endpoint == "" {
		return nil, errors.New("agent endpoint is not configured")
	}
	payload, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.Endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.APIKey != "" {
		httpReq.Header.Set("x-api-key", c.APIKey)
	}

	resp, err := c.HTTP.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("agent request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read agent response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var errResp struct {
			Error string `json:"error"`
		}
		_ = json.Unmarshal(body, &errResp)
		if errResp.Error != "" {
			return nil, fmt.Errorf("agent error: status %d: %s", resp.StatusCode, errResp.Error)
		}
		return nil, fmt.Errorf("agent error: status %d", resp.StatusCode)
	}
	return body, nil
}

func (c *Client) Send(ctx context.Context, sessionID, message string) (SendResult, error) {
	start := time.Now()
	body, err := c.post(ctx, apiRequest{Action: "send", SessionID: sessionID, Message: message})
	if err != nil {
		return SendResult{}, err
	}

	var resp struct {
		Response string `json:"response"`
		Message  string `json:"message"`
		Error    string `json:"error"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return SendResult{}, fmt.Errorf("unrecognized send response: %w", err)
	}
	if resp.Error != "" {
		return SendResult{}, fmt.Errorf("agent error: %s", resp.Error)
	}
	text := resp.Response
	if text == "" {
		text = resp.Message
	}
	if text == "" {
		return SendResult{}, errors.New("agent returned an empty response")
	}
	return SendResult{Text: text, ResponseTime: time.Since(start).Seconds()}, nil
}

func (c *Client) Load(ctx context.Context, sessionID string) (LoadResult, error) {
	body, err := c.post(ctx, apiRequest{Action: "load", SessionID: sessionID})
	if err != nil {
		return LoadResult{}, err
	}

	var resp struct {
		Messages *json.RawMessage `json:"messages"`
	}
	if err := json.Unmarshal(body, &resp); err != nil || resp.Messages == nil {
		return LoadResult{Malformed: true}, nil
	}
	var wire []wireMessage
	if err := json.Unmarshal(*resp.Messages, &wire); err != nil {
		return LoadResult{Malformed: true}, nil
	}

	messages := make([]Message, 0, len(wire))
	for _, w := range wire {
		messages = append(messages, Message{
			Role:         w.Role,
			Content:      w.Content,
			Timestamp:    parseWireTime(w.Timestamp),
			ResponseTime: w.ResponseTime,
		})
	}
	return LoadResult{Messages: messages}, nil
}

func (c *Client) List(ctx context.Context) ([]ConversationSummary, error) {
	body, err := c.post(ctx, apiRequest{Action: "list"})
	if err != nil {
		return nil, err
	}

	var resp struct {
		Conversations *json.RawMessage `json:"conversations"`
	}
	if err := json.Unmarshal(body, &resp); err != nil || resp.Conversations == nil {
		// A list response without a conversations array is treated as an
		// empty, valid listing.
		return []ConversationSummary{}, nil
	}
	var wire []wireSummary
	if err := json.Unmarshal(*resp.Conversations, &wire); err != nil {
		return []ConversationSummary{}, nil
	}

	summaries := make([]ConversationSummary, 0, len(wire))
	for _, w := range wire {
		summaries = append(summaries, ConversationSummary{
			SessionID:    w.SessionID,
			Title:        w.Title,
			LastMessage:  w.LastMessage,
			Timestamp:    parseWireTime(w.Timestamp),
			MessageCount: w.MessageCount,
		})
	}
	sort.SliceStable(summaries, func(i, j int) bool {
		return summaries[i].Timestamp.After(summaries[j].Timestamp)
	})
	return summaries, nil
}

func (c *Client) Delete(ctx context.Context, sessionID string) error {
	_, err := c.post(ctx, apiRequest{Action: "delete", SessionID: sessionID})
	return err
}

func (c *Client) Rename(ctx context.Context, sessionID, title string) error {
	_, err := c.post(ctx, apiRequest{Action: "rename", SessionID: sessionID, Title: title})
	return err
}

var wireTimeLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
}

func parseWireTime(s string) time.Time {
	for _, layout := range wireTimeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
