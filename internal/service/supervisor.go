package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"

	"github.com/jjenkins/laborwatch/internal/model"
)

// ErrNoTargets aborts a batch whose target list is empty. This is the only
// failure that aborts a batch before run_started.
var ErrNoTargets = errors.New("batch target list is empty")

// CheckRunner is the coordinator capability the supervisor drives
type CheckRunner interface {
	Run(ctx context.Context, jurisdictionID int, emit EmitFunc) (model.CheckSummary, error)
}

// TargetResolver resolves batch target labels to jurisdictions, creating
// missing ones
type TargetResolver interface {
	GetByCityState(ctx context.Context, city, state string) (*model.Jurisdiction, error)
	Create(ctx context.Context, j *model.Jurisdiction) error
}

// Per-phase percent estimates for city_progress. Monotonically
// non-decreasing, interpolating toward 95 before the terminal event.
var phasePercent = map[EventType]int{
	EventStarted:     5,
	EventResearching: 25,
	EventScanning:    45,
	EventVerifying:   70,
	EventLegislation: 90,
}

// Supervisor runs the check coordinator across a fixed ordered target list,
// one target at a time. Targets run sequentially because the research
// capability is rate-limited and the fact stores are shared writers;
// serializing keeps event order deterministic and attributable to exactly one
// in-flight city. One city's failure never stops the batch.
type Supervisor struct {
	runner    CheckRunner
	targets   TargetResolver
	logger    *log.Logger
	errLogger *log.Logger
}

// NewSupervisor creates a Supervisor
func NewSupervisor(runner CheckRunner, targets TargetResolver) *Supervisor {
	return &Supervisor{
		runner:    runner,
		targets:   targets,
		logger:    log.New(os.Stdout, "", log.LstdFlags),
		errLogger: log.New(os.Stderr, "ERROR: ", log.LstdFlags),
	}
}

// RunBatch checks every target in order and emits the batch event stream.
// The caller supplies membership and order; the supervisor decides neither.
func (s *Supervisor) RunBatch(ctx context.Context, targets []model.Metro, emit EmitFunc) (model.BatchSummary, error) {
	summary := model.BatchSummary{Total: len(targets)}

	if len(targets) == 0 {
		return summary, ErrNoTargets
	}

	metros := make([]string, len(targets))
	for i, t := range targets {
		metros[i] = t.City
	}
	if err := emit(Event{Type: EventRunStarted, Metros: metros}); err != nil {
		return summary, err
	}

	for idx, target := range targets {
		if ctx.Err() != nil {
			return summary, ctx.Err()
		}

		s.logger.Printf("[%d/%d] Checking %s, %s", idx+1, len(targets), target.City, target.State)

		if err := emit(Event{Type: EventCityStarted, City: target.City, State: target.State}); err != nil {
			return summary, err
		}

		j, err := s.resolveTarget(ctx, target)
		if err != nil {
			s.errLogger.Printf("Failed to resolve %s, %s: %v", target.City, target.State, err)
			summary.Failed++
			if err := emit(Event{Type: EventCityFailed, City: target.City, State: target.State, Message: err.Error()}); err != nil {
				return summary, err
			}
			continue
		}

		cityResult, err := s.runner.Run(ctx, j.ID, s.forwardProgress(target, emit))
		if err != nil {
			if ctx.Err() != nil {
				return summary, ctx.Err()
			}
			s.errLogger.Printf("Check failed for %s, %s: %v", target.City, target.State, err)
			summary.Failed++
			if err := emit(Event{Type: EventCityFailed, City: target.City, State: target.State, Message: err.Error()}); err != nil {
				return summary, err
			}
			continue
		}

		summary.Succeeded++
		summary.LowConfidenceTotal += cityResult.LowConfidence
		if err := emit(Event{Type: EventCityCompleted, City: target.City, State: target.State, Summary: cityResult}); err != nil {
			return summary, err
		}
	}

	if err := emit(Event{Type: EventRunCompleted, Batch: summary}); err != nil {
		return summary, err
	}

	s.logger.Printf("Batch completed: %d/%d succeeded, %d failed", summary.Succeeded, summary.Total, summary.Failed)
	return summary, nil
}

// resolveTarget looks up a target label, creating a city-level jurisdiction
// when none exists yet
func (s *Supervisor) resolveTarget(ctx context.Context, target model.Metro) (*model.Jurisdiction, error) {
	j, err := s.targets.GetByCityState(ctx, target.City, target.State)
	if err != nil {
		return nil, err
	}
	if j != nil {
		return j, nil
	}

	created := &model.Jurisdiction{
		Level: model.LevelCity,
		City:  target.City,
		State: target.State,
	}
	if err := s.targets.Create(ctx, created); err != nil {
		return nil, fmt.Errorf("failed to create jurisdiction for %s, %s: %w", target.City, target.State, err)
	}

	s.logger.Printf("Created jurisdiction %d for %s, %s", created.ID, target.City, target.State)
	return created, nil
}

// forwardProgress translates one city's coordinator events into
// city_progress events with a monotone percent estimate. Terminal coordinator
// events are dropped; the supervisor reports those itself as city_completed
// or city_failed.
func (s *Supervisor) forwardProgress(target model.Metro, emit EmitFunc) EmitFunc {
	lastPercent := 0

	return func(e Event) error {
		switch e.Type {
		case EventCompleted, EventError:
			return nil
		}

		if p, ok := phasePercent[e.Type]; ok && p > lastPercent {
			lastPercent = p
		}

		message := e.Message
		if e.Type == EventResult {
			message = fmt.Sprintf("Requirement classified as %s", e.Status)
		}

		return emit(Event{
			Type:    EventCityProgress,
			City:    target.City,
			State:   target.State,
			Phase:   e.Type,
			Percent: lastPercent,
			Message: message,
		})
	}
}
