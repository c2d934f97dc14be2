package client

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

	"github.com/google/uuid"
	"github.com/wolfeidau/faceterm/internal/api"
)

// Config holds common client configuration
type Config struct {
	ServerURL string
	Timeout   time.Duration
}

// DefaultConfig returns a default client configuration
func DefaultConfig() Config {
	return Config{
		ServerURL: "http://localhost:8080",
		Timeout:   30 * time.Second,
	}
}

// APIError is a non-success response from the server.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("server returned %d: %s", e.StatusCode, e.Message)
}

// Client calls the faceterm HTTP API.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// New creates a client with the given configuration
func New(config Config) *Client {
	return &Client{
		baseURL: strings.TrimSuffix(config.ServerURL, "/"),
		httpClient: &http.Client{
			Timeout: config.Timeout,
		},
	}
}

func (c *Client) ListTerminals(ctx context.Context, orgID string) ([]string, error) {
	var resp api.TerminalsResponse
	if err := c.do(ctx, http.MethodGet, terminalsPath(orgID), nil, &resp, http.StatusOK); err != nil {
		return nil, err
	}
	return resp.Terminals, nil
}

func (c *Client) AddTerminal(ctx context.Context, orgID, terminalID string) ([]string, error) {
	var resp api.TerminalsResponse
	req := api.TerminalRequest{TerminalID: terminalID}
	if err := c.do(ctx, http.MethodPost, terminalsPath(orgID), req, &resp, http.StatusCreated); err != nil {
		return nil, err
	}
	return resp.Terminals, nil
}

func (c *Client) ReplaceTerminal(ctx context.Context, orgID, oldID, newID string) ([]string, error) {
	var resp api.TerminalsResponse
	req := api.TerminalRequest{TerminalID: newID}
	path := terminalsPath(orgID) + "/" + url.PathEscape(oldID)
	if err := c.do(ctx, http.MethodPut, path, req, &resp, http.StatusOK); err != nil {
		return nil, err
	}
	return resp.Terminals, nil
}

func (c *Client) RemoveTerminal(ctx context.Context, orgID, terminalID string) error {
	path := terminalsPath(orgID) + "/" + url.PathEscape(terminalID)
	return c.do(ctx, http.MethodDelete, path, nil, nil, http.StatusNoContent)
}

// Register queues a registration. The server answers once it is queued.
func (c *Client) Register(ctx context.Context, orgID string, req api.PersonRequest) error {
	return c.do(ctx, http.MethodPost, orgPath(orgID)+"/registrations", req, nil, http.StatusAccepted)
}

// AddPerson registers one person and waits for the terminal's answer.
func (c *Client) AddPerson(ctx context.Context, orgID string, req api.PersonRequest) (bool, error) {
	var resp api.AddPersonResponse
	if err := c.do(ctx, http.MethodPost, orgPath(orgID)+"/persons", req, &resp, http.StatusOK); err != nil {
		return false, err
	}
	return resp.Success, nil
}

func (c *Client) Health(ctx context.Context) (api.HealthResponse, error) {
	var resp api.HealthResponse
	err := c.do(ctx, http.MethodGet, "/healthz", nil, &resp, http.StatusOK)
	return resp, err
}

func (c *Client) do(ctx context.Context, method, path string, body, out any, wantStatus int) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("X-Request-Id", uuid.NewString())
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s failed: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != wantStatus {
		var apiErr api.ErrorResponse
		if err := json.NewDecoder(resp.Body).Decode(&apiErr); err != nil || apiErr.Error == "" {
			apiErr.Error = http.StatusText(resp.StatusCode)
		}
		return &APIError{StatusCode: resp.StatusCode, Message: apiErr.Error}
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

func orgPath(orgID string) string {
	return "/v1/organizations/" + url.PathEscape(orgID)
}

func terminalsPath(orgID string) string {
	return orgPath(orgID) + "/terminals"
}
