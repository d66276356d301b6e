package http

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/Harsh-BH/threatrelay/internal/domain"
	"github.com/Harsh-BH/threatrelay/internal/usecase"
)

const callbackPath = "/api/v1/callback"

// WorkflowLister reports which workflows exist and which have a webhook.
type WorkflowLister interface {
	Workflows() []domain.Workflow
	Configured(wf domain.Workflow) bool
}

// DispatchHandler proxies jobs and probes to the external workflows.
type DispatchHandler struct {
	dispatchUC    *usecase.DispatchJobUsecase
	probeUC       *usecase.ProbeWorkflowUsecase
	workflows     WorkflowLister
	publicBaseURL string
	logger        *zap.Logger
}

// NewDispatchHandler creates a new DispatchHandler.
func NewDispatchHandler(
	dispatchUC *usecase.DispatchJobUsecase,
	probeUC *usecase.ProbeWorkflowUsecase,
	workflows WorkflowLister,
	publicBaseURL string,
	logger *zap.Logger,
) *DispatchHandler {
	return &DispatchHandler{
		dispatchUC:    dispatchUC,
		probeUC:       probeUC,
		workflows:     workflows,
		publicBaseURL: strings.TrimRight(publicBaseURL, "/"),
		logger:        logger,
	}
}

// Dispatch handles POST /api/v1/workflows/:workflow/dispatch
func (h *DispatchHandler) Dispatch(c *gin.Context) {
	body, err := readJSONObject(c)
	if err != nil {
		bodyError(c, err)
		return
	}

	req := dispatchRequest(domain.Workflow(c.Param("workflow")), body)
	if req.CallbackURL == "" {
		req.CallbackURL = callbackURL(c, h.publicBaseURL)
	}

	ack, err := h.dispatchUC.Execute(c.Request.Context(), req)
	if err != nil {
		var cfgErr *domain.WorkerConfigError
		switch {
		case errors.As(err, &cfgErr):
			c.JSON(http.StatusInternalServerError, gin.H{"error": cfgErr.Error()})
		case errors.Is(err, domain.ErrUnknownWorkflow):
			c.JSON(http.StatusNotFound, gin.H{"error": "Unknown workflow"})
		case errors.Is(err, domain.ErrMissingJobID):
			c.JSON(http.StatusBadRequest, gin.H{"error": "Missing jobId"})
		case errors.Is(err, domain.ErrMissingTarget):
			c.JSON(http.StatusBadRequest, gin.H{"error": "Missing target"})
		case errors.Is(err, domain.ErrValidation):
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		case errors.Is(err, domain.ErrWorkerUnreachable):
			c.JSON(http.StatusBadGateway, gin.H{"error": "Failed to reach worker"})
		default:
			h.logger.Error("Dispatch failed", zap.Error(err), zap.String("job_id", req.JobID))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		}
		return
	}

	c.JSON(http.StatusOK, ack)
}

// Probe handles GET /api/v1/workflows/:workflow
func (h *DispatchHandler) Probe(c *gin.Context) {
	ack, err := h.probeUC.Execute(c.Request.Context(), domain.Workflow(c.Param("workflow")))
	if err != nil {
		var cfgErr *domain.WorkerConfigError
		switch {
		case errors.As(err, &cfgErr):
			c.JSON(http.StatusInternalServerError, gin.H{"error": cfgErr.Error()})
		case errors.Is(err, domain.ErrUnknownWorkflow):
			c.JSON(http.StatusNotFound, gin.H{"error": "Unknown workflow"})
		case errors.Is(err, domain.ErrWorkerUnreachable):
			c.JSON(http.StatusBadGateway, gin.H{"error": "Failed to reach worker"})
		default:
			h.logger.Error("Probe failed", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": ack.Status, "data": ack.Data})
}

// List handles GET /api/v1/workflows
func (h *DispatchHandler) List(c *gin.Context) {
	names := h.workflows.Workflows()
	out := make([]gin.H, 0, len(names))
	for _, wf := range names {
		out = append(out, gin.H{
			"name":       wf,
			"configured": h.workflows.Configured(wf),
		})
	}
	c.JSON(http.StatusOK, gin.H{"workflows": out})
}

// readJSONObject decodes the body as a JSON object. An empty body is an empty object.
// Failures wrap domain.ErrMalformedBody.
func readJSONObject(c *gin.Context) (map[string]interface{}, error) {
	raw, err := io.ReadAll(c.Request.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrMalformedBody, err)
	}
	body := map[string]interface{}{}
	if len(bytes.TrimSpace(raw)) == 0 {
		return body, nil
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&body); err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrMalformedBody, err)
	}
	if body == nil {
		body = map[string]interface{}{}
	}
	return body, nil
}

// bodyError answers a request body that could not be read or parsed. Bodies cut
// off by http.MaxBytesReader get the same 413 as BodySizeLimit.
func bodyError(c *gin.Context, err error) {
	var tooLarge *http.MaxBytesError
	switch {
	case errors.As(err, &tooLarge):
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "Request body too large"})
	case errors.Is(err, domain.ErrValidation):
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
	}
}

// dispatchRequest splits the known fields out of body; everything else is forwarded as is.
func dispatchRequest(wf domain.Workflow, body map[string]interface{}) *domain.DispatchRequest {
	req := &domain.DispatchRequest{
		Workflow:    wf,
		JobID:       stringField(body, "jobId"),
		Target:      stringField(body, "target"),
		URL:         stringField(body, "url"),
		CallbackURL: stringField(body, "callbackUrl"),
		Extra:       make(map[string]interface{}, len(body)),
	}
	for k, v := range body {
		switch k {
		case "jobId", "target", "url", "callbackUrl":
		default:
			req.Extra[k] = v
		}
	}
	return req
}

func stringField(body map[string]interface{}, key string) string {
	s, _ := body[key].(string)
	return strings.TrimSpace(s)
}

// callbackURL is PUBLIC_BASE_URL when set, otherwise the inbound request's scheme and host.
func callbackURL(c *gin.Context, publicBaseURL string) string {
	if publicBaseURL != "" {
		return publicBaseURL + callbackPath
	}
	scheme := "http"
	if c.Request.TLS != nil {
		scheme = "https"
	}
	if proto := c.GetHeader("X-Forwarded-Proto"); proto != "" {
		scheme = strings.TrimSpace(strings.Split(proto, ",")[0])
	}
	host := c.Request.Host
	if fwd := c.GetHeader("X-Forwarded-Host"); fwd != "" {
		host = strings.TrimSpace(strings.Split(fwd, ",")[0])
	}
	return scheme + "://" + host + callbackPath
}
