package usecase

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/Harsh-BH/threatrelay/internal/domain"
	"github.com/Harsh-BH/threatrelay/internal/normalize"
	"github.com/Harsh-BH/threatrelay/internal/repository"
)

// RecordEventUsecase stores incident data posted by workers or the UI into the feed.
type RecordEventUsecase struct {
	repo     repository.EventRepository
	notifier EventNotifier
	logger   *zap.Logger
}

// NewRecordEventUsecase creates a new RecordEventUsecase.
func NewRecordEventUsecase(repo repository.EventRepository, notifier EventNotifier, logger *zap.Logger) *RecordEventUsecase {
	return &RecordEventUsecase{
		repo:     repo,
		notifier: notifier,
		logger:   logger,
	}
}

// Execute normalizes the payload and appends it to the feed. The event is then
// queued for broadcast; the feed sink skips it as a duplicate.
func (uc *RecordEventUsecase) Execute(ctx context.Context, data map[string]interface{}) (*domain.Event, error) {
	event := normalize.Event(data, domain.SourceWorker, time.Now())

	if err := uc.repo.Append(ctx, event); err != nil {
		uc.logger.Error("Failed to store event", zap.String("event_id", event.ID), zap.Error(err))
		return nil, fmt.Errorf("record event: %w", err)
	}

	uc.logger.Info("Event stored",
		zap.String("event_id", event.ID),
		zap.String("label", string(event.Label)),
		zap.Float64("confidence", event.Confidence),
	)

	if uc.notifier != nil {
		uc.notifier.Notify(event)
	}
	return event, nil
}

// ListEventsUsecase reads the feed.
type ListEventsUsecase struct {
	repo     repository.EventRepository
	capacity int
}

// NewListEventsUsecase creates a new ListEventsUsecase. capacity caps every listing.
func NewListEventsUsecase(repo repository.EventRepository, capacity int) *ListEventsUsecase {
	return &ListEventsUsecase{repo: repo, capacity: capacity}
}

// Execute returns up to limit events, newest first. A limit outside (0, capacity]
// means capacity.
func (uc *ListEventsUsecase) Execute(ctx context.Context, limit int) ([]*domain.Event, error) {
	if limit <= 0 || limit > uc.capacity {
		limit = uc.capacity
	}
	events, err := uc.repo.List(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	return events, nil
}
