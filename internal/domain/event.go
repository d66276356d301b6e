package domain

import (
	"time"

	"github.com/google/uuid"
)

// EventLabel classifies a feed event.
type EventLabel string

const (
	LabelPhishing   EventLabel = "phishing"
	LabelSuspicious EventLabel = "suspicious"
	LabelSafe       EventLabel = "safe"
)

// EventSource records which path produced a feed event.
type EventSource string

const (
	SourceDispatch EventSource = "dispatch"
	SourceCallback EventSource = "callback"
	SourceWorker   EventSource = "worker"
)

// Event is one entry of the local event feed shown by the UI.
type Event struct {
	ID                 string                 `json:"id"`
	Source             EventSource            `json:"source"`
	JobID              string                 `json:"jobId,omitempty"`
	Subject            string                 `json:"subject"`
	From               string                 `json:"from"`
	Body               string                 `json:"body"`
	Label              EventLabel             `json:"label"`
	Confidence         float64                `json:"confidence"`
	Response           string                 `json:"response"`
	Timestamp          time.Time              `json:"timestamp"`
	KeyFindings        []string               `json:"keyFindings"`
	RecommendedActions []string               `json:"recommendedActions"`
	AffectedSystems    []string               `json:"affectedSystems"`
	IncidentDateTime   string                 `json:"incidentDateTime,omitempty"`
	ResourceAddress    string                 `json:"resourceAddress,omitempty"`
	IncidentSeverity   interface{}            `json:"incidentSeverity,omitempty"`
	RiskScore          string                 `json:"riskScore,omitempty"`
	RawData            map[string]interface{} `json:"rawData,omitempty"`
}

// NewEventID returns a feed event id of the form phish-<uuid>.
func NewEventID() string {
	return "phish-" + uuid.NewString()
}
