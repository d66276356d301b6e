package usecase

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/Harsh-BH/threatrelay/internal/domain"
	"github.com/Harsh-BH/threatrelay/internal/metrics"
	"github.com/Harsh-BH/threatrelay/internal/normalize"
)

// DispatchJobUsecase hands a job to an external workflow and returns the worker's ack.
type DispatchJobUsecase struct {
	gateway  WorkerGateway
	notifier EventNotifier
	logger   *zap.Logger
}

// NewDispatchJobUsecase creates a new DispatchJobUsecase.
func NewDispatchJobUsecase(gateway WorkerGateway, notifier EventNotifier, logger *zap.Logger) *DispatchJobUsecase {
	return &DispatchJobUsecase{
		gateway:  gateway,
		notifier: notifier,
		logger:   logger,
	}
}

// Execute checks the workflow configuration, validates the request, mirrors it into
// the event feed and forwards it once. Worker answers of any status are returned as acks.
func (uc *DispatchJobUsecase) Execute(ctx context.Context, req *domain.DispatchRequest) (*domain.WorkerAck, error) {
	wf := string(req.Workflow)

	// Configuration problems are reported before the payload is even looked at.
	if err := uc.gateway.Ready(req.Workflow); err != nil {
		if errors.Is(err, domain.ErrWorkerMisconfigured) {
			metrics.DispatchesTotal.WithLabelValues(wf, "misconfigured").Inc()
			uc.logger.Error("Worker webhook not configured", zap.String("workflow", wf), zap.Error(err))
		}
		return nil, err
	}

	if err := req.Validate(); err != nil {
		metrics.DispatchesTotal.WithLabelValues(wf, "invalid").Inc()
		return nil, err
	}

	if uc.notifier != nil {
		uc.notifier.Notify(normalize.Event(req.Payload(), domain.SourceDispatch, time.Now()))
	}

	start := time.Now()
	ack, err := uc.gateway.Submit(ctx, req)
	metrics.DispatchDuration.WithLabelValues(wf).Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.DispatchesTotal.WithLabelValues(wf, "unreachable").Inc()
		uc.logger.Error("Failed to forward job to worker",
			zap.String("job_id", req.JobID),
			zap.String("workflow", wf),
			zap.Error(err),
		)
		return nil, err
	}

	outcome := "accepted"
	if !ack.Accepted() {
		outcome = "rejected"
	}
	metrics.DispatchesTotal.WithLabelValues(wf, outcome).Inc()

	uc.logger.Info("Job dispatched",
		zap.String("job_id", req.JobID),
		zap.String("workflow", wf),
		zap.Int("worker_status", ack.Status),
	)
	return ack, nil
}

// ProbeWorkflowUsecase forwards a GET to a workflow's webhook.
type ProbeWorkflowUsecase struct {
	gateway WorkerGateway
	logger  *zap.Logger
}

// NewProbeWorkflowUsecase creates a new ProbeWorkflowUsecase.
func NewProbeWorkflowUsecase(gateway WorkerGateway, logger *zap.Logger) *ProbeWorkflowUsecase {
	return &ProbeWorkflowUsecase{gateway: gateway, logger: logger}
}

// Execute returns the webhook's answer to a GET.
func (uc *ProbeWorkflowUsecase) Execute(ctx context.Context, wf domain.Workflow) (*domain.WorkerAck, error) {
	if err := uc.gateway.Ready(wf); err != nil {
		return nil, err
	}
	ack, err := uc.gateway.Probe(ctx, wf)
	if err != nil {
		uc.logger.Warn("Workflow probe failed", zap.String("workflow", string(wf)), zap.Error(err))
		return nil, err
	}
	return ack, nil
}
