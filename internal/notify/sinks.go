package notify

import (
	"context"
	"errors"

	"github.com/Harsh-BH/threatrelay/internal/domain"
	"github.com/Harsh-BH/threatrelay/internal/publisher"
	"github.com/Harsh-BH/threatrelay/internal/repository"
)

type feedSink struct {
	repo repository.EventRepository
}

// FeedSink appends events to the local event feed. Duplicates are ignored.
func FeedSink(repo repository.EventRepository) Sink {
	return &feedSink{repo: repo}
}

func (s *feedSink) Name() string { return "feed" }

func (s *feedSink) Deliver(ctx context.Context, event *domain.Event) error {
	err := s.repo.Append(ctx, event)
	if errors.Is(err, domain.ErrDuplicateEvent) {
		return nil
	}
	return err
}

type broadcastSink struct {
	pub publisher.Publisher
}

// BroadcastSink publishes events to the message broker.
func BroadcastSink(pub publisher.Publisher) Sink {
	return &broadcastSink{pub: pub}
}

func (s *broadcastSink) Name() string { return "broadcast" }

func (s *broadcastSink) Deliver(ctx context.Context, event *domain.Event) error {
	return s.pub.Publish(ctx, event)
}
