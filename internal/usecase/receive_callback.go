package usecase

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/Harsh-BH/threatrelay/internal/domain"
	"github.com/Harsh-BH/threatrelay/internal/metrics"
	"github.com/Harsh-BH/threatrelay/internal/normalize"
	"github.com/Harsh-BH/threatrelay/internal/repository"
)

// ReceiveCallbackUsecase stores results posted back by external workers.
type ReceiveCallbackUsecase struct {
	store    repository.ResultStore
	notifier EventNotifier
	logger   *zap.Logger
	now      func() time.Time
}

// NewReceiveCallbackUsecase creates a new ReceiveCallbackUsecase.
func NewReceiveCallbackUsecase(store repository.ResultStore, notifier EventNotifier, logger *zap.Logger) *ReceiveCallbackUsecase {
	return &ReceiveCallbackUsecase{
		store:    store,
		notifier: notifier,
		logger:   logger,
		now:      time.Now,
	}
}

// Execute validates the callback and stores its result, replacing any earlier
// result for the same job. It does not check that the job was ever dispatched.
func (uc *ReceiveCallbackUsecase) Execute(ctx context.Context, req *domain.CallbackRequest) (*domain.AnalysisResult, error) {
	if err := req.Validate(); err != nil {
		metrics.CallbacksTotal.WithLabelValues("invalid").Inc()
		return nil, err
	}

	result := req.Normalize(uc.now())
	if err := uc.store.Put(ctx, result.JobID, result); err != nil {
		metrics.CallbacksTotal.WithLabelValues("error").Inc()
		uc.logger.Error("Failed to store result", zap.String("job_id", result.JobID), zap.Error(err))
		return nil, fmt.Errorf("store result: %w", err)
	}
	metrics.CallbacksTotal.WithLabelValues("stored").Inc()

	uc.logger.Info("Result stored",
		zap.String("job_id", result.JobID),
		zap.String("verdict", result.Verdict),
		zap.String("score", string(result.Score)),
	)

	if uc.notifier != nil {
		uc.notifier.Notify(completionEvent(result))
	}
	return result, nil
}

func completionEvent(r *domain.AnalysisResult) *domain.Event {
	payload := map[string]interface{}{
		"jobId":   r.JobID,
		"subject": "Analysis completed",
	}
	if r.URL != "" {
		payload["subject"] = "Analysis completed: " + r.URL
		payload["resource_address_or_domain"] = r.URL
	}
	if r.Score != "" {
		payload["risk_score"] = string(r.Score)
	}
	if r.Verdict != "" {
		payload["label"] = r.Verdict
	}
	if r.Details != "" {
		payload["body"] = r.Details
	}
	return normalize.Event(payload, domain.SourceCallback, r.ReceivedAt)
}
