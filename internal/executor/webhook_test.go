package executor

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/Harsh-BH/threatrelay/internal/domain"
)

func newTestExecutor(url, apiKey string) *WebhookExecutor {
	return NewWebhookExecutor(map[domain.Workflow]Endpoint{
		domain.WorkflowPhishing: {EnvKey: "N8N_PHISHING_WEBHOOK", URL: url},
		domain.WorkflowLogs:     {EnvKey: "N8N_LOGS_WEBHOOK"},
	}, apiKey, 5*time.Second, zap.NewNop())
}

func dispatchReq(wf domain.Workflow) *domain.DispatchRequest {
	return &domain.DispatchRequest{
		Workflow:    wf,
		JobID:       "job_1",
		Target:      "http://evil.example",
		CallbackURL: "http://relay.local/api/v1/callback",
	}
}

func TestSubmit_ForwardsPayloadAndAuth(t *testing.T) {
	var gotAuth, gotType string
	var gotBody map[string]interface{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotType = r.Header.Get("Content-Type")
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"accepted":true}`))
	}))
	defer srv.Close()

	ack, err := newTestExecutor(srv.URL, "secret").Submit(context.Background(), dispatchReq(domain.WorkflowPhishing))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !ack.Success || ack.Status != http.StatusOK {
		t.Errorf("expected success 200, got %+v", ack)
	}
	data, ok := ack.Data.(map[string]interface{})
	if !ok || data["accepted"] != true {
		t.Errorf("expected decoded JSON data, got %#v", ack.Data)
	}
	if gotAuth != "Bearer secret" {
		t.Errorf("expected bearer auth, got %q", gotAuth)
	}
	if gotType != "application/json" {
		t.Errorf("expected JSON content type, got %q", gotType)
	}
	if gotBody["jobId"] != "job_1" || gotBody["target"] != "http://evil.example" {
		t.Errorf("unexpected payload %v", gotBody)
	}
	if gotBody["callbackUrl"] != "http://relay.local/api/v1/callback" {
		t.Errorf("expected callbackUrl in payload, got %v", gotBody["callbackUrl"])
	}
}

func TestSubmit_NoAuthHeaderWithoutKey(t *testing.T) {
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
	}))
	defer srv.Close()

	if _, err := newTestExecutor(srv.URL, "").Submit(context.Background(), dispatchReq(domain.WorkflowPhishing)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotAuth != "" {
		t.Errorf("expected no Authorization header, got %q", gotAuth)
	}
}

func TestSubmit_NonJSONBodyIsText(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte("workflow inactive"))
	}))
	defer srv.Close()

	ack, err := newTestExecutor(srv.URL, "").Submit(context.Background(), dispatchReq(domain.WorkflowPhishing))
	if err != nil {
		t.Fatalf("non-2xx answers must not be errors: %v", err)
	}
	if ack.Success || ack.Status != http.StatusBadGateway {
		t.Errorf("expected failed 502 ack, got %+v", ack)
	}
	if ack.Data != "workflow inactive" {
		t.Errorf("expected raw text, got %#v", ack.Data)
	}
}

func TestSubmit_MisconfiguredMakesNoRequest(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
	}))
	defer srv.Close()

	_, err := newTestExecutor(srv.URL, "").Submit(context.Background(), dispatchReq(domain.WorkflowLogs))
	if !errors.Is(err, domain.ErrWorkerMisconfigured) || !errors.Is(err, domain.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
	if err.Error() != "N8N_LOGS_WEBHOOK not configured" {
		t.Errorf("unexpected message %q", err.Error())
	}
	if calls.Load() != 0 {
		t.Errorf("expected no outbound requests, got %d", calls.Load())
	}
}

func TestSubmit_UnknownWorkflow(t *testing.T) {
	_, err := newTestExecutor("http://unused", "").Submit(context.Background(), dispatchReq("sms"))
	if !errors.Is(err, domain.ErrUnknownWorkflow) {
		t.Errorf("expected ErrUnknownWorkflow, got %v", err)
	}
}

func TestSubmit_UnreachableWorker(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	url := srv.URL
	srv.Close()

	_, err := newTestExecutor(url, "").Submit(context.Background(), dispatchReq(domain.WorkflowPhishing))
	if !errors.Is(err, domain.ErrWorkerUnreachable) || !errors.Is(err, domain.ErrTransport) {
		t.Errorf("expected transport error, got %v", err)
	}
}

func TestProbe_ForwardsGet(t *testing.T) {
	var method string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		method = r.Method
		_, _ = w.Write([]byte(`[1,2]`))
	}))
	defer srv.Close()

	ack, err := newTestExecutor(srv.URL, "").Probe(context.Background(), domain.WorkflowPhishing)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if method != http.MethodGet {
		t.Errorf("expected GET, got %s", method)
	}
	if list, ok := ack.Data.([]interface{}); !ok || len(list) != 2 {
		t.Errorf("expected JSON array, got %#v", ack.Data)
	}
}

func TestWorkflows_Sorted(t *testing.T) {
	exe := newTestExecutor("http://unused", "")
	wfs := exe.Workflows()
	if len(wfs) != 2 || wfs[0] != domain.WorkflowLogs || wfs[1] != domain.WorkflowPhishing {
		t.Errorf("unexpected workflows %v", wfs)
	}
	if exe.Configured(domain.WorkflowLogs) {
		t.Error("logs workflow should not be configured")
	}
}

func TestTruncate(t *testing.T) {
	long := strings.Repeat("a", 1500)
	got := truncate([]byte(long), maxLoggedBytes)
	if len(got) != maxLoggedBytes+3 {
		t.Errorf("expected %d chars, got %d", maxLoggedBytes+3, len(got))
	}
	if truncate([]byte("short"), maxLoggedBytes) != "short" {
		t.Error("short bodies must not change")
	}
}
