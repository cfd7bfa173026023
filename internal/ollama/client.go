// Package ollama is a thin client for the Ollama inference server.
package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
)

const defaultBaseURL = "http://localhost:11434"

type httpDoer interface {
	Do(*http.Request) (*http.Response, error)
}

// Kind classifies a failed call so callers can choose a response class
// without inspecting transport details.
type Kind int

const (
	KindTransport Kind = iota
	KindTimeout
	KindStatus
	KindDecode
)

func (k Kind) String() string {
	switch k {
	case KindTimeout:
		return "timeout"
	case KindStatus:
		return "status"
	case KindDecode:
		return "decode"
	default:
		return "transport"
	}
}

type ClientError struct {
	Kind       Kind
	StatusCode int
	Message    string
	Cause      error
}

func (e *ClientError) Error() string {
	if e.Cause != nil {
		return "ollama: " + e.Message + ": " + e.Cause.Error()
	}
	return "ollama: " + e.Message
}

func (e *ClientError) Unwrap() error {
	return e.Cause
}

// KindOf reports the Kind of err, or KindTransport when err did not come from
// this package.
func KindOf(err error) Kind {
	var ce *ClientError
	if errors.As(err, &ce) {
		return ce.Kind
	}
	if isTimeout(err) {
		return KindTimeout
	}
	return KindTransport
}

type Config struct {
	BaseURL string
}

// Client is safe for concurrent use. It sets no timeout of its own; every
// call is bounded by the deadline on the context passed in.
type Client struct {
	baseURL string
	client  httpDoer
}

func NewClient(cfg Config) *Client {
	return NewClientWithDoer(cfg, &http.Client{})
}

func NewClientWithDoer(cfg Config, doer httpDoer) *Client {
	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if base == "" {
		base = defaultBaseURL
	}
	if doer == nil {
		doer = &http.Client{}
	}

	return &Client{baseURL: base, client: doer}
}

func (c *Client) BaseURL() string {
	return c.baseURL
}

// ListModels calls GET /api/tags. It doubles as the liveness probe.
func (c *Client) ListModels(ctx context.Context) ([]Model, error) {
	request, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/tags", nil)
	if err != nil {
		return nil, &ClientError{Kind: KindTransport, Message: "create tags request", Cause: err}
	}

	var result ListModelsResponse
	if err := c.do(request, &result); err != nil {
		return nil, err
	}

	return result.Models, nil
}

// Generate calls POST /api/generate. Callers should leave Stream false; the
// decoder expects a single JSON document.
func (c *Client) Generate(ctx context.Context, req GenerateRequest) (*GenerateResponse, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, &ClientError{Kind: KindTransport, Message: "marshal generate request", Cause: err}
	}

	request, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/generate", bytes.NewReader(body))
	if err != nil {
		return nil, &ClientError{Kind: KindTransport, Message: "create generate request", Cause: err}
	}
	request.Header.Set("Content-Type", "application/json")

	var result GenerateResponse
	if err := c.do(request, &result); err != nil {
		return nil, err
	}

	return &result, nil
}

func (c *Client) do(request *http.Request, out any) error {
	request.Header.Set("Accept", "application/json")

	response, err := c.client.Do(request)
	if err != nil {
		if isTimeout(err) {
			return &ClientError{Kind: KindTimeout, Message: "request timed out", Cause: err}
		}
		return &ClientError{Kind: KindTransport, Message: "send request", Cause: err}
	}
	defer response.Body.Close()

	respBody, err := io.ReadAll(response.Body)
	if err != nil {
		if isTimeout(err) {
			return &ClientError{Kind: KindTimeout, Message: "read response timed out", Cause: err}
		}
		return &ClientError{Kind: KindTransport, Message: "read response", Cause: err}
	}

	if response.StatusCode < 200 || response.StatusCode >= 300 {
		return buildStatusError(response.StatusCode, respBody)
	}

	if err := json.Unmarshal(respBody, out); err != nil {
		return &ClientError{Kind: KindDecode, StatusCode: response.StatusCode, Message: "decode response", Cause: err}
	}

	return nil
}

func buildStatusError(statusCode int, body []byte) error {
	var envelope struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(body, &envelope); err == nil && strings.TrimSpace(envelope.Error) != "" {
		return &ClientError{
			Kind:       KindStatus,
			StatusCode: statusCode,
			Message:    fmt.Sprintf("api error (%d): %s", statusCode, strings.TrimSpace(envelope.Error)),
		}
	}

	snippet := strings.TrimSpace(string(body))
	if snippet == "" {
		snippet = http.StatusText(statusCode)
	}
	if len(snippet) > 256 {
		snippet = snippet[:256]
	}

	return &ClientError{
		Kind:       KindStatus,
		StatusCode: statusCode,
		Message:    fmt.Sprintf("api error (%d): %s", statusCode, snippet),
	}
}

func isTimeout(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
