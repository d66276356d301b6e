package usecase

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/Harsh-BH/threatrelay/internal/domain"
	"github.com/Harsh-BH/threatrelay/internal/metrics"
	"github.com/Harsh-BH/threatrelay/internal/repository"
)

const processingMessage = "Analysis still in progress"

// CheckStatusUsecase answers polls, handing each stored result out exactly once.
type CheckStatusUsecase struct {
	store  repository.ResultStore
	logger *zap.Logger
}

// NewCheckStatusUsecase creates a new CheckStatusUsecase.
func NewCheckStatusUsecase(store repository.ResultStore, logger *zap.Logger) *CheckStatusUsecase {
	return &CheckStatusUsecase{
		store:  store,
		logger: logger,
	}
}

// Execute removes and returns the result for jobID if it has arrived.
// An absent result is reported as processing and has no side effect.
func (uc *CheckStatusUsecase) Execute(ctx context.Context, jobID string) (*domain.StatusResponse, error) {
	jobID = strings.TrimSpace(jobID)
	if jobID == "" {
		return nil, domain.ErrMissingJobID
	}

	rec, ok, err := uc.store.TakeIfPresent(ctx, jobID)
	if err != nil {
		uc.logger.Error("Failed to check job status", zap.String("job_id", jobID), zap.Error(err))
		return nil, fmt.Errorf("check status: %w", err)
	}

	if !ok {
		metrics.StatusChecksTotal.WithLabelValues(string(domain.JobStatusProcessing)).Inc()
		uc.logger.Debug("Job still processing", zap.String("job_id", jobID))
		return &domain.StatusResponse{
			Status:  domain.JobStatusProcessing,
			Message: processingMessage,
		}, nil
	}

	metrics.StatusChecksTotal.WithLabelValues(string(domain.JobStatusCompleted)).Inc()
	uc.logger.Info("Result handed to poller",
		zap.String("job_id", jobID),
		zap.Duration("pending_for", time.Since(rec.ArrivedAt)),
	)
	return &domain.StatusResponse{
		Status: domain.JobStatusCompleted,
		Result: rec.Result,
	}, nil
}
