package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

const jobIDPrefix = "job_"

// NewJobID mints an opaque job identifier backed by a UUIDv7.
func NewJobID() (string, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", fmt.Errorf("generate UUIDv7: %w", err)
	}
	return jobIDPrefix + id.String(), nil
}

// Workflow names an external analysis workflow reachable by webhook.
type Workflow string

const (
	WorkflowPhishing Workflow = "phishing"
	WorkflowLogs     Workflow = "logs"
)

// Score is a threat score that arrives either as a JSON string or a JSON number.
// It is kept in its textual form.
type Score string

// UnmarshalJSON accepts "7.5", 7.5 and null.
func (s *Score) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*s = ""
		return nil
	}
	if data[0] == '"' {
		var str string
		if err := json.Unmarshal(data, &str); err != nil {
			return err
		}
		*s = Score(str)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("score must be a string or a number: %w", err)
	}
	*s = Score(n.String())
	return nil
}

// Float returns the numeric value of the score, if it has one.
func (s Score) Float() (float64, bool) {
	f, err := strconv.ParseFloat(strings.TrimSpace(string(s)), 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

// CallbackRequest is the completion notification posted by the external worker.
type CallbackRequest struct {
	JobID       string `json:"jobId" validate:"jobid"`
	URL         string `json:"url,omitempty"`
	Verdict     string `json:"verdict,omitempty"`
	ThreatScore Score  `json:"threat_score,omitempty"`
	Score       Score  `json:"score,omitempty"`
	Details     string `json:"details,omitempty"`
	Timestamp   string `json:"timestamp,omitempty"`
}

// AnalysisResult is the normalized outcome of one job, as handed back to pollers.
type AnalysisResult struct {
	JobID      string    `json:"jobId" yaml:"jobId"`
	URL        string    `json:"url,omitempty" yaml:"url,omitempty"`
	Verdict    string    `json:"verdict,omitempty" yaml:"verdict,omitempty"`
	Score      Score     `json:"threat_score,omitempty" yaml:"threat_score,omitempty"`
	Details    string    `json:"details,omitempty" yaml:"details,omitempty"`
	Timestamp  string    `json:"timestamp,omitempty" yaml:"timestamp,omitempty"`
	ReceivedAt time.Time `json:"receivedAt" yaml:"receivedAt"`
}

// Normalize converts a callback into the result stored for its job.
func (r *CallbackRequest) Normalize(receivedAt time.Time) *AnalysisResult {
	score := r.ThreatScore
	if score == "" {
		score = r.Score
	}
	return &AnalysisResult{
		JobID:      strings.TrimSpace(r.JobID),
		URL:        r.URL,
		Verdict:    r.Verdict,
		Score:      score,
		Details:    r.Details,
		Timestamp:  r.Timestamp,
		ReceivedAt: receivedAt.UTC(),
	}
}

// JobRecord is a stored result together with its arrival time.
type JobRecord struct {
	JobID     string          `json:"jobId"`
	Result    *AnalysisResult `json:"result"`
	ArrivedAt time.Time       `json:"arrivedAt"`
}

// JobStatus is reported by the status-check boundary.
type JobStatus string

const (
	JobStatusProcessing JobStatus = "processing"
	JobStatusCompleted  JobStatus = "completed"
)

// StatusResponse is the body of a status check.
type StatusResponse struct {
	Status  JobStatus       `json:"status"`
	Result  *AnalysisResult `json:"result,omitempty"`
	Message string          `json:"message,omitempty"`
}

// DispatchRequest asks the proxy to hand a job to an external workflow.
// Extra carries any additional fields, forwarded to the worker unchanged.
type DispatchRequest struct {
	Workflow    Workflow               `json:"-"`
	JobID       string                 `json:"jobId" validate:"jobid"`
	Target      string                 `json:"target" validate:"max=8192"`
	URL         string                 `json:"url,omitempty" validate:"max=8192"`
	CallbackURL string                 `json:"callbackUrl,omitempty" validate:"omitempty,url"`
	Extra       map[string]interface{} `json:"-"`
}

// AnalysisTarget returns the target, falling back to the legacy url field.
func (r *DispatchRequest) AnalysisTarget() string {
	if t := strings.TrimSpace(r.Target); t != "" {
		return t
	}
	return strings.TrimSpace(r.URL)
}

// Payload builds the JSON object sent to the worker.
func (r *DispatchRequest) Payload() map[string]interface{} {
	body := make(map[string]interface{}, len(r.Extra)+4)
	for k, v := range r.Extra {
		body[k] = v
	}
	target := r.AnalysisTarget()
	body["jobId"] = r.JobID
	body["target"] = target
	body["url"] = target
	body["callbackUrl"] = r.CallbackURL
	return body
}

// WorkerAck is the worker's immediate answer to a dispatch, forwarded unchanged.
// Data holds the decoded JSON body, or the raw text when the body is not JSON.
type WorkerAck struct {
	Success bool        `json:"success"`
	Status  int         `json:"status"`
	Data    interface{} `json:"data"`
}

// Accepted reports whether the worker answered with a 2xx status.
func (a *WorkerAck) Accepted() bool {
	return a != nil && a.Status >= 200 && a.Status < 300
}
