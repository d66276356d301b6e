// Package client talks to a running relay server over its HTTP boundaries.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/Harsh-BH/threatrelay/internal/domain"
)

const (
	statusPath = "/api/v1/check-status"
	eventsPath = "/api/v1/events"
)

// APIError is a non-success answer from the relay. It unwraps to the error
// class matching its status code, when there is one.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("relay returned %d: %s", e.StatusCode, e.Message)
}

func (e *APIError) Unwrap() error {
	switch {
	case e.StatusCode == http.StatusNotFound:
		return domain.ErrUnknownWorkflow
	case e.StatusCode == http.StatusBadRequest:
		return domain.ErrValidation
	case e.StatusCode == http.StatusBadGateway:
		return domain.ErrWorkerUnreachable
	case e.StatusCode == http.StatusInternalServerError && strings.HasSuffix(e.Message, "not configured"):
		return domain.ErrWorkerMisconfigured
	}
	return nil
}

// Client calls the dispatch, status-check and event feed boundaries.
// It implements orchestrator.Dispatcher and poller.StatusChecker.
type Client struct {
	baseURL *url.URL
	http    *http.Client
}

// New creates a client for the relay at serverURL, e.g. http://localhost:8080.
func New(serverURL string, timeout time.Duration) (*Client, error) {
	parsed, err := url.Parse(serverURL)
	if err != nil {
		return nil, fmt.Errorf("client: parse server url: %w", err)
	}
	if parsed.Scheme == "" || parsed.Host == "" {
		return nil, errors.New("client: server url needs a scheme and host, e.g. `http://localhost:8080`")
	}
	parsed.Path = strings.TrimRight(parsed.Path, "/")

	return &Client{
		baseURL: parsed,
		http:    &http.Client{Timeout: timeout},
	}, nil
}

// Dispatch asks the relay to forward a job to its workflow.
func (c *Client) Dispatch(ctx context.Context, req *domain.DispatchRequest) (*domain.WorkerAck, error) {
	payload := req.Payload()
	if req.CallbackURL == "" {
		delete(payload, "callbackUrl")
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("client: marshal dispatch: %w", err)
	}

	path := "/api/v1/workflows/" + url.PathEscape(string(req.Workflow)) + "/dispatch"
	resp, err := c.do(ctx, http.MethodPost, path, nil, body)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, decodeError(resp)
	}
	ack := &domain.WorkerAck{}
	if err := json.NewDecoder(resp.Body).Decode(ack); err != nil {
		return nil, fmt.Errorf("client: decode dispatch response: %w", err)
	}
	return ack, nil
}

// CheckStatus performs one status check. Completed and processing are both answers;
// anything else is an error.
func (c *Client) CheckStatus(ctx context.Context, jobID string) (*domain.StatusResponse, error) {
	q := url.Values{"jobId": []string{jobID}}
	resp, err := c.do(ctx, http.MethodGet, statusPath, q, nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK, http.StatusAccepted:
	default:
		return nil, decodeError(resp)
	}
	status := &domain.StatusResponse{}
	if err := json.NewDecoder(resp.Body).Decode(status); err != nil {
		return nil, fmt.Errorf("client: decode status response: %w", err)
	}
	return status, nil
}

// Events lists the relay's event feed, newest first.
func (c *Client) Events(ctx context.Context, limit int) ([]*domain.Event, error) {
	var q url.Values
	if limit > 0 {
		q = url.Values{"limit": []string{strconv.Itoa(limit)}}
	}
	resp, err := c.do(ctx, http.MethodGet, eventsPath, q, nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, decodeError(resp)
	}
	var feed struct {
		Events []*domain.Event `json:"events"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&feed); err != nil {
		return nil, fmt.Errorf("client: decode events: %w", err)
	}
	return feed.Events, nil
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body []byte) (*http.Response, error) {
	u := *c.baseURL
	u.Path = c.baseURL.Path + path
	u.RawQuery = query.Encode()

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, u.String(), reader)
	if err != nil {
		return nil, fmt.Errorf("client: build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrTransport, err)
	}
	return resp, nil
}

func decodeError(resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
	var body struct {
		Error string `json:"error"`
	}
	msg := strings.TrimSpace(string(raw))
	if err := json.Unmarshal(raw, &body); err == nil && body.Error != "" {
		msg = body.Error
	}
	return &APIError{StatusCode: resp.StatusCode, Message: msg}
}
