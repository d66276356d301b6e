package usecase

import (
	"context"

	"github.com/Harsh-BH/threatrelay/internal/domain"
)

// WorkerGateway reaches the external analysis workflows.
type WorkerGateway interface {
	// Ready fails when a workflow is unknown or has no webhook configured.
	Ready(wf domain.Workflow) error
	Submit(ctx context.Context, req *domain.DispatchRequest) (*domain.WorkerAck, error)
	Probe(ctx context.Context, wf domain.Workflow) (*domain.WorkerAck, error)
}

// EventNotifier queues feed events without blocking.
type EventNotifier interface {
	Notify(event *domain.Event) bool
}
