package cli

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/Harsh-BH/threatrelay/internal/domain"
)

// fakeRelay answers dispatches with ack and every status check with completed.
func fakeRelay(t *testing.T, ack domain.WorkerAck) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/v1/workflows/{workflow}/dispatch", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]interface{}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body["jobId"] == "" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		_ = json.NewEncoder(w).Encode(ack)
	})
	mux.HandleFunc("GET /api/v1/check-status", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(domain.StatusResponse{
			Status: domain.JobStatusCompleted,
			Result: &domain.AnalysisResult{JobID: r.URL.Query().Get("jobId"), Verdict: "phishing", Score: "9"},
		})
	})
	mux.HandleFunc("GET /api/v1/events", func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"success": true,
			"count":   1,
			"events":  []domain.Event{{ID: "phish-1", Label: domain.LabelSuspicious}},
		})
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func runCLI(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	cmd := NewRootCmd()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func TestAnalyze_PrintsCompletedOutcome(t *testing.T) {
	srv := fakeRelay(t, domain.WorkerAck{Success: true, Status: 200})

	stdout, stderr, err := runCLI(t, "analyze", "http://evil.example", "--server", srv.URL, "--interval", "5ms")
	require.NoError(t, err)

	var out map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(stdout), &out))
	require.Equal(t, "completed", out["state"])
	result, _ := out["result"].(map[string]interface{})
	require.Equal(t, "phishing", result["verdict"])
	require.Equal(t, out["jobId"], result["jobId"])

	require.Contains(t, stderr, "submitting")
	require.Contains(t, stderr, "awaiting_result")
}

func TestAnalyze_YAMLOutput(t *testing.T) {
	srv := fakeRelay(t, domain.WorkerAck{Success: true, Status: 200})

	stdout, _, err := runCLI(t, "analyze", "x", "--server", srv.URL, "--interval", "5ms", "-o", "yaml", "-q")
	require.NoError(t, err)

	var out map[string]interface{}
	require.NoError(t, yaml.Unmarshal([]byte(stdout), &out))
	require.Equal(t, "completed", out["state"])
	require.True(t, strings.HasPrefix(out["jobId"].(string), "job_"))
}

func TestAnalyze_RejectedDispatchFails(t *testing.T) {
	srv := fakeRelay(t, domain.WorkerAck{Success: false, Status: 500, Data: "boom"})

	stdout, _, err := runCLI(t, "analyze", "x", "--server", srv.URL, "-q")
	require.ErrorIs(t, err, errAnalysisFailed)
	require.Contains(t, stdout, `"state": "failed"`)
}

func TestAnalyze_ValidatesArgs(t *testing.T) {
	_, _, err := runCLI(t, "analyze")
	require.Error(t, err)

	_, _, err = runCLI(t, "analyze", "x", "--attempts", "0")
	require.Error(t, err)
}

func TestStatus_SingleCheck(t *testing.T) {
	srv := fakeRelay(t, domain.WorkerAck{Success: true, Status: 200})

	stdout, _, err := runCLI(t, "status", "job_42", "--server", srv.URL)
	require.NoError(t, err)
	require.Contains(t, stdout, `"jobId": "job_42"`)
}

func TestEvents_UnsupportedFormat(t *testing.T) {
	srv := fakeRelay(t, domain.WorkerAck{Success: true, Status: 200})

	stdout, _, err := runCLI(t, "events", "--server", srv.URL)
	require.NoError(t, err)
	require.Contains(t, stdout, "phish-1")

	_, _, err = runCLI(t, "events", "--server", srv.URL, "-o", "xml")
	require.Error(t, err)
}

func TestServerFromEnvironment(t *testing.T) {
	srv := fakeRelay(t, domain.WorkerAck{Success: true, Status: 200})
	t.Setenv("RELAYCTL_SERVER", srv.URL)

	stdout, _, err := runCLI(t, "status", "job_1")
	require.NoError(t, err)
	require.Contains(t, stdout, "completed")
}
