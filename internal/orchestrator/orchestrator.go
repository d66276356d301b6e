// Package orchestrator runs one analysis end to end: dispatch, then poll for the result.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/Harsh-BH/threatrelay/internal/domain"
	"github.com/Harsh-BH/threatrelay/internal/metrics"
	"github.com/Harsh-BH/threatrelay/internal/poller"
)

// State is a step of one orchestrated submission.
type State string

const (
	StateSubmitting     State = "submitting"
	StateAwaitingResult State = "awaiting_result"
	StateCompleted      State = "completed"
	StateFailed         State = "failed"
)

// Terminal reports whether no further transition can follow s.
func (s State) Terminal() bool {
	return s == StateCompleted || s == StateFailed
}

// Submission is what the caller wants analyzed.
type Submission struct {
	Workflow domain.Workflow
	Target   string
	// Extra fields are forwarded to the worker unchanged.
	Extra map[string]interface{}
}

// Transition is reported to an Observer each time the state changes.
type Transition struct {
	JobID  string                 `json:"jobId" yaml:"jobId"`
	State  State                  `json:"state" yaml:"state"`
	Reason string                 `json:"reason,omitempty" yaml:"reason,omitempty"`
	Result *domain.AnalysisResult `json:"result,omitempty" yaml:"result,omitempty"`
	At     time.Time              `json:"at" yaml:"at"`
}

// Outcome is the terminal result of Run.
type Outcome struct {
	JobID  string                 `json:"jobId" yaml:"jobId"`
	State  State                  `json:"state" yaml:"state"`
	Result *domain.AnalysisResult `json:"result,omitempty" yaml:"result,omitempty"`
	Reason string                 `json:"reason,omitempty" yaml:"reason,omitempty"`
}

// Observer receives state transitions.
type Observer interface {
	OnTransition(t Transition)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(t Transition)

func (f ObserverFunc) OnTransition(t Transition) { f(t) }

// Dispatcher hands a job to the dispatch proxy.
type Dispatcher interface {
	Dispatch(ctx context.Context, req *domain.DispatchRequest) (*domain.WorkerAck, error)
}

// DispatcherFunc adapts a function to Dispatcher.
type DispatcherFunc func(ctx context.Context, req *domain.DispatchRequest) (*domain.WorkerAck, error)

func (f DispatcherFunc) Dispatch(ctx context.Context, req *domain.DispatchRequest) (*domain.WorkerAck, error) {
	return f(ctx, req)
}

// Orchestrator drives Submitting → AwaitingResult → Completed | Failed.
type Orchestrator struct {
	dispatcher  Dispatcher
	poller      *poller.Poller
	policy      poller.Policy
	callbackURL string
	logger      *zap.Logger
	newJobID    func() (string, error)
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithCallbackURL sets the callback URL sent with every dispatch. When empty the
// dispatch proxy derives one.
func WithCallbackURL(url string) Option {
	return func(o *Orchestrator) { o.callbackURL = url }
}

// WithJobIDs replaces the job id generator.
func WithJobIDs(gen func() (string, error)) Option {
	return func(o *Orchestrator) { o.newJobID = gen }
}

// New creates an orchestrator. A zero policy means poller.DefaultPolicy.
func New(dispatcher Dispatcher, checker poller.StatusChecker, policy poller.Policy, logger *zap.Logger, opts ...Option) *Orchestrator {
	if policy.MaxAttempts <= 0 {
		policy = poller.DefaultPolicy()
	}
	o := &Orchestrator{
		dispatcher: dispatcher,
		poller:     poller.New(checker, logger),
		policy:     policy,
		logger:     logger,
		newJobID:   domain.NewJobID,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Run analyzes one submission and blocks until it reaches a terminal state.
func (o *Orchestrator) Run(ctx context.Context, sub Submission) Outcome {
	return o.RunObserved(ctx, sub, nil)
}

// RunObserved is Run with every transition reported to obs.
func (o *Orchestrator) RunObserved(ctx context.Context, sub Submission, obs Observer) Outcome {
	r := &run{obs: obs}

	jobID, err := o.newJobID()
	if err != nil {
		return o.finish(r.fail(fmt.Sprintf("dispatch failed: %v", err)))
	}
	r.jobID = jobID
	r.move(StateSubmitting, "", nil)

	ack, err := o.dispatcher.Dispatch(ctx, &domain.DispatchRequest{
		Workflow:    sub.Workflow,
		JobID:       jobID,
		Target:      sub.Target,
		CallbackURL: o.callbackURL,
		Extra:       sub.Extra,
	})
	switch {
	case err != nil:
		return o.finish(r.fail(fmt.Sprintf("dispatch failed: %v", err)))
	case !ack.Accepted():
		return o.finish(r.fail(fmt.Sprintf("dispatch failed: worker returned status %d", ack.Status)))
	}

	r.move(StateAwaitingResult, "", nil)

	result, err := o.poller.Poll(ctx, jobID, o.policy)
	switch {
	case errors.Is(err, domain.ErrPollTimeout):
		return o.finish(r.fail(fmt.Sprintf("timed out waiting for result after %s", o.policy.Budget())))
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return o.finish(r.fail(fmt.Sprintf("cancelled: %v", err)))
	case err != nil:
		return o.finish(r.fail(fmt.Sprintf("status check failed: %v", err)))
	}

	r.move(StateCompleted, "", result)
	return o.finish(r.outcome())
}

func (o *Orchestrator) finish(out Outcome) Outcome {
	metrics.OrchestrationsTotal.WithLabelValues(string(out.State)).Inc()
	if out.State == StateFailed {
		o.logger.Warn("Analysis failed", zap.String("job_id", out.JobID), zap.String("reason", out.Reason))
	} else {
		o.logger.Info("Analysis completed", zap.String("job_id", out.JobID))
	}
	return out
}

// run holds the state of one call. It ignores moves after a terminal state.
type run struct {
	jobID  string
	state  State
	reason string
	result *domain.AnalysisResult
	obs    Observer
}

func (r *run) move(to State, reason string, result *domain.AnalysisResult) {
	if r.state.Terminal() {
		return
	}
	r.state, r.reason, r.result = to, reason, result
	if r.obs != nil {
		r.obs.OnTransition(Transition{
			JobID:  r.jobID,
			State:  to,
			Reason: reason,
			Result: result,
			At:     time.Now().UTC(),
		})
	}
}

func (r *run) fail(reason string) Outcome {
	r.move(StateFailed, reason, nil)
	return r.outcome()
}

func (r *run) outcome() Outcome {
	return Outcome{JobID: r.jobID, State: r.state, Result: r.result, Reason: r.reason}
}
