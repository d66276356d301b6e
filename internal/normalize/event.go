// Package normalize turns loosely structured worker payloads into feed events.
package normalize

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/oliveagle/jsonpath"

	"github.com/Harsh-BH/threatrelay/internal/domain"
)

const (
	defaultSubject = "Phishing Alert from n8n"
	defaultFrom    = "n8n-detection"

	responseHigh   = "Do not click any links or provide credentials. Report to IT Security and block the sender."
	responseMedium = "Verify sender domain and links using an out-of-band channel before responding."
	responseSafe   = "Appears safe; still avoid clicking unknown links. Verify sender if unsure."
)

// severityPaths are tried in order; the first present value wins.
var severityPaths = compileAll(
	"$.incident_severity",
	"$.threat_level",
	"$.severity",
	"$.risk_score",
	"$.label",
)

var (
	subjectPaths    = compileAll("$.summary", "$.subject", "$.incident_category")
	fromPaths       = compileAll("$.source", "$.from", "$.resource_address_or_domain")
	riskScorePaths  = compileAll("$.risk_score", "$.threat_level")
	bodyPath        = compileAll("$.body")
	confidencePath  = compileAll("$.confidence")
	responsePath    = compileAll("$.response")
	incidentPath    = compileAll("$.incident_date_time")
	resourcePath    = compileAll("$.resource_address_or_domain")
	incidentSevPath = compileAll("$.incident_severity")
	findingsPath    = compileAll("$.key_findings")
	actionsPath     = compileAll("$.recommended_actions")
	systemsPath     = compileAll("$.affected_systems")
	jobIDPath       = compileAll("$.jobId")
)

func compileAll(exprs ...string) []*jsonpath.Compiled {
	out := make([]*jsonpath.Compiled, 0, len(exprs))
	for _, expr := range exprs {
		c, err := jsonpath.Compile(expr)
		if err != nil {
			panic(fmt.Sprintf("normalize: invalid JSONPath %q: %v", expr, err))
		}
		out = append(out, c)
	}
	return out
}

// first returns the first value found under paths that is not null.
func first(data map[string]interface{}, paths []*jsonpath.Compiled) (interface{}, bool) {
	for _, p := range paths {
		v, err := p.Lookup(data)
		if err != nil || v == nil {
			continue
		}
		return v, true
	}
	return nil, false
}

// firstTruthy is like first but also skips empty strings, zero and false.
func firstTruthy(data map[string]interface{}, paths []*jsonpath.Compiled) (interface{}, bool) {
	for _, p := range paths {
		v, err := p.Lookup(data)
		if err != nil || !truthy(v) {
			continue
		}
		return v, true
	}
	return nil, false
}

// Severity extracts the most specific severity indicator from a payload.
func Severity(data map[string]interface{}) interface{} {
	v, _ := first(data, severityPaths)
	return v
}

// Label maps a severity value to a feed label.
func Label(severity interface{}) domain.EventLabel {
	if !truthy(severity) {
		return domain.LabelSafe
	}
	switch text(severity) {
	case "high", "critical", "phishing":
		return domain.LabelPhishing
	case "medium", "suspicious", "moderate":
		return domain.LabelSuspicious
	case "low", "safe":
		return domain.LabelSafe
	}
	if n, ok := number(severity); ok {
		switch {
		case n >= 7:
			return domain.LabelPhishing
		case n >= 4:
			return domain.LabelSuspicious
		}
	}
	return domain.LabelSafe
}

// Confidence derives a confidence in [0.5, 0.95] from a severity value.
func Confidence(severity interface{}) float64 {
	if !truthy(severity) {
		return 0.5
	}
	switch text(severity) {
	case "high", "critical":
		return 0.95
	case "medium", "moderate":
		return 0.75
	case "low":
		return 0.5
	}
	if n, ok := number(severity); ok {
		switch {
		case n >= 10:
			return 0.95
		case n >= 7:
			return 0.90
		case n >= 4:
			return 0.70
		}
	}
	return 0.5
}

// Response returns the default advice shown for a severity value.
func Response(severity interface{}) string {
	if !truthy(severity) {
		return responseSafe
	}
	switch text(severity) {
	case "high", "critical":
		return responseHigh
	case "medium", "moderate":
		return responseMedium
	}
	if n, ok := number(severity); ok && n >= 7 {
		return responseHigh
	}
	return responseSafe
}

// Event builds a feed event from a worker or dispatch payload. Explicit fields in
// the payload win over values derived from severity. The timestamp is
// incident_date_time when it parses as RFC 3339, and now otherwise; an unparsable
// value is still kept verbatim in IncidentDateTime.
func Event(data map[string]interface{}, source domain.EventSource, now time.Time) *domain.Event {
	if data == nil {
		data = map[string]interface{}{}
	}
	severity := Severity(data)

	e := &domain.Event{
		ID:                 domain.NewEventID(),
		Source:             source,
		Subject:            stringOr(data, subjectPaths, defaultSubject),
		From:               stringOr(data, fromPaths, defaultFrom),
		Label:              Label(severity),
		Confidence:         Confidence(severity),
		Response:           stringOr(data, responsePath, Response(severity)),
		Timestamp:          now.UTC(),
		KeyFindings:        stringList(data, findingsPath),
		RecommendedActions: stringList(data, actionsPath),
		AffectedSystems:    stringList(data, systemsPath),
		IncidentDateTime:   stringOr(data, incidentPath, ""),
		ResourceAddress:    stringOr(data, resourcePath, ""),
		RiskScore:          stringOr(data, riskScorePaths, ""),
		RawData:            data,
	}

	if v, ok := first(data, incidentSevPath); ok {
		e.IncidentSeverity = v
	}
	if v, ok := firstTruthy(data, jobIDPath); ok {
		e.JobID = text(v)
	}
	if v, ok := firstTruthy(data, confidencePath); ok {
		if n, ok := number(v); ok {
			e.Confidence = n
		}
	}
	if v, ok := firstTruthy(data, bodyPath); ok {
		e.Body = display(v)
	} else if raw, err := json.Marshal(data); err == nil {
		e.Body = string(raw)
	}
	if e.IncidentDateTime != "" {
		if ts, err := time.Parse(time.RFC3339, e.IncidentDateTime); err == nil {
			e.Timestamp = ts.UTC()
		}
	}
	return e
}

func stringOr(data map[string]interface{}, paths []*jsonpath.Compiled, fallback string) string {
	if v, ok := firstTruthy(data, paths); ok {
		return display(v)
	}
	return fallback
}

func stringList(data map[string]interface{}, paths []*jsonpath.Compiled) []string {
	out := []string{}
	v, ok := first(data, paths)
	if !ok {
		return out
	}
	switch items := v.(type) {
	case []interface{}:
		for _, item := range items {
			if item != nil {
				out = append(out, display(item))
			}
		}
	case []string:
		out = append(out, items...)
	case string:
		if items != "" {
			out = append(out, items)
		}
	}
	return out
}

func truthy(v interface{}) bool {
	switch t := v.(type) {
	case nil:
		return false
	case string:
		return t != ""
	case bool:
		return t
	case float64:
		return t != 0 && !math.IsNaN(t)
	case int:
		return t != 0
	case json.Number:
		f, err := t.Float64()
		return err != nil || f != 0
	}
	return true
}

func text(v interface{}) string {
	return strings.ToLower(display(v))
}

func display(v interface{}) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case int:
		return strconv.Itoa(t)
	case bool:
		return strconv.FormatBool(t)
	case json.Number:
		return t.String()
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	return string(raw)
}

func number(v interface{}) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case int:
		return float64(t), true
	case bool:
		if t {
			return 1, true
		}
		return 0, true
	case json.Number:
		f, err := t.Float64()
		return f, err == nil
	case string:
		s := strings.TrimSpace(t)
		if s == "" {
			return 0, true
		}
		f, err := strconv.ParseFloat(s, 64)
		return f, err == nil
	}
	return 0, false
}
