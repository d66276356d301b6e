package executor

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/Harsh-BH/threatrelay/internal/domain"
)

const (
	// maxResponseBytes caps how much of a worker response is read.
	maxResponseBytes = 1 << 20 // 1 MB

	// maxLoggedBytes caps worker bodies in log lines.
	maxLoggedBytes = 1000
)

// Endpoint is the webhook behind one workflow and the setting that configures it.
type Endpoint struct {
	EnvKey string
	URL    string
}

// WebhookExecutor hands jobs to external workflows over HTTP. It never retries.
type WebhookExecutor struct {
	httpClient *http.Client
	endpoints  map[domain.Workflow]Endpoint
	apiKey     string
	logger     *zap.Logger
}

// NewWebhookExecutor creates an executor for the given workflow endpoints.
// An endpoint with an empty URL is registered but reports WorkerMisconfigured on use.
func NewWebhookExecutor(endpoints map[domain.Workflow]Endpoint, apiKey string, timeout time.Duration, logger *zap.Logger) *WebhookExecutor {
	return &WebhookExecutor{
		httpClient: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		endpoints: endpoints,
		apiKey:    apiKey,
		logger:    logger,
	}
}

// Workflows lists the registered workflow names in sorted order.
func (e *WebhookExecutor) Workflows() []domain.Workflow {
	out := make([]domain.Workflow, 0, len(e.endpoints))
	for wf := range e.endpoints {
		out = append(out, wf)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Configured reports whether a workflow has a webhook URL.
func (e *WebhookExecutor) Configured(wf domain.Workflow) bool {
	ep, ok := e.endpoints[wf]
	return ok && ep.URL != ""
}

// Ready reports whether a workflow can be dispatched without touching the network.
func (e *WebhookExecutor) Ready(wf domain.Workflow) error {
	_, err := e.resolve(wf)
	return err
}

// Submit POSTs the job payload to the workflow's webhook and returns the worker's answer.
// Non-2xx answers are returned as acks, not errors.
func (e *WebhookExecutor) Submit(ctx context.Context, req *domain.DispatchRequest) (*domain.WorkerAck, error) {
	url, err := e.resolve(req.Workflow)
	if err != nil {
		return nil, err
	}

	body, err := json.Marshal(req.Payload())
	if err != nil {
		return nil, fmt.Errorf("executor: marshal payload: %w", err)
	}

	e.logger.Info("Forwarding job to worker",
		zap.String("job_id", req.JobID),
		zap.String("workflow", string(req.Workflow)),
	)

	return e.do(ctx, http.MethodPost, url, body, req.Workflow)
}

// Probe forwards a GET to the workflow's webhook.
func (e *WebhookExecutor) Probe(ctx context.Context, wf domain.Workflow) (*domain.WorkerAck, error) {
	url, err := e.resolve(wf)
	if err != nil {
		return nil, err
	}
	return e.do(ctx, http.MethodGet, url, nil, wf)
}

func (e *WebhookExecutor) resolve(wf domain.Workflow) (string, error) {
	ep, ok := e.endpoints[wf]
	if !ok {
		return "", fmt.Errorf("%w: %q", domain.ErrUnknownWorkflow, wf)
	}
	if ep.URL == "" {
		return "", &domain.WorkerConfigError{EnvKey: ep.EnvKey}
	}
	return ep.URL, nil
}

func (e *WebhookExecutor) do(ctx context.Context, method, url string, body []byte, wf domain.Workflow) (*domain.WorkerAck, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return nil, fmt.Errorf("executor: build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if e.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+e.apiKey)
	}

	resp, err := e.httpClient.Do(req)
	if err != nil {
		e.logger.Warn("Worker request failed",
			zap.String("workflow", string(wf)),
			zap.String("method", method),
			zap.Error(err),
		)
		return nil, fmt.Errorf("%w: %v", domain.ErrWorkerUnreachable, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		e.logger.Warn("Failed to read worker response body", zap.Error(err))
	}

	e.logger.Info("Worker responded",
		zap.String("workflow", string(wf)),
		zap.String("method", method),
		zap.Int("status", resp.StatusCode),
		zap.String("body", truncate(raw, maxLoggedBytes)),
	)

	return &domain.WorkerAck{
		Success: resp.StatusCode >= 200 && resp.StatusCode < 300,
		Status:  resp.StatusCode,
		Data:    decodeBody(raw),
	}, nil
}

// decodeBody returns the parsed JSON value, or the raw text when the body is not JSON.
func decodeBody(raw []byte) interface{} {
	var v interface{}
	if err := json.Unmarshal(raw, &v); err == nil {
		return v
	}
	return string(raw)
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
