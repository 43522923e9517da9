// Package client is a small HTTP client for the recipedex query service.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// Client talks to a running recipedex server.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

// Option customizes a Client.
type Option func(*Client)

// WithAPIKey attaches a bearer token to every request.
func WithAPIKey(key string) Option {
	return func(c *Client) { c.apiKey = key }
}

// WithTimeout overrides the default 120s request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.http.Timeout = d }
}

// WithHTTPClient substitutes the underlying HTTP client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.http = h }
}

// New creates a client for the given base URL (e.g. http://localhost:8000).
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 120 * time.Second},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// QueryResult is the answer to one RAG query.
type QueryResult struct {
	Answer    string `json:"answer"`
	Duration  int64  `json:"duration"`
	NbResults int    `json:"nbResults"`
	Thinking  string `json:"thinking"`
	Model     string `json:"model"`
}

// DataRow is one raw retrieval hit.
type DataRow struct {
	ID    string  `json:"id"`
	Text  string  `json:"text"`
	Score float64 `json:"score"`
}

// DataResult is the raw retrieval response.
type DataResult struct {
	Data     []DataRow `json:"data"`
	Duration int64     `json:"duration"`
}

type requestBody struct {
	Question  string `json:"question"`
	NbResults int    `json:"nbResults,omitempty"`
	Thinking  string `json:"thinking,omitempty"`
}

// Query asks the server to answer a question with retrieval-augmented
// generation. nbResults <= 0 and thinking == "" leave the server defaults.
func (c *Client) Query(ctx context.Context, question string, nbResults int, thinking string) (QueryResult, error) {
	var out QueryResult
	err := c.post(ctx, "/query", requestBody{Question: question, NbResults: nbResults, Thinking: thinking}, &out)
	return out, err
}

// Data fetches the raw retrieval hits for a question, without generation.
func (c *Client) Data(ctx context.Context, question string, nbResults int) (DataResult, error) {
	var out DataResult
	err := c.post(ctx, "/data", requestBody{Question: question, NbResults: nbResults}, &out)
	return out, err
}

func (c *Client) post(ctx context.Context, path string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("request %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var e struct {
			Error string `json:"error"`
		}
		if json.NewDecoder(resp.Body).Decode(&e) == nil && e.Error != "" {
			return fmt.Errorf("server error (HTTP %d): %s", resp.StatusCode, e.Error)
		}
		return fmt.Errorf("server error: HTTP %d", resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
