package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jjenkins/laborwatch/internal/model"
)

// ErrCheckInProgress rejects a second concurrent check on the same
// jurisdiction. The caller retries after the running check finishes.
var ErrCheckInProgress = errors.New("a check is already running for this jurisdiction")

// FactClassifier reconciles one discovered fact against the record set.
// RequirementStore and LegislationStore both satisfy it.
type FactClassifier interface {
	Classify(ctx context.Context, jurisdictionID int, level model.Level, fact model.DiscoveredFact) (model.ClassifyResult, error)
}

// Coordinator runs one research task for one jurisdiction end to end:
// research, per-fact classification through the fact stores, the confidence
// gate, and an ordered event stream describing every transition. Phases are
// strictly sequential; the only automatic retry is the gate's bounded
// per-fact re-verification.
type Coordinator struct {
	research      Researcher
	jurisdictions JurisdictionDirectory
	requirements  FactClassifier
	legislation   FactClassifier
	gate          ConfidenceGate
	phaseTimeout  time.Duration
	logger        *log.Logger
	errLogger     *log.Logger

	mu     sync.Mutex
	active map[int]bool
}

// NewCoordinator creates a Coordinator
func NewCoordinator(research Researcher, jurisdictions JurisdictionDirectory, requirements, legislation FactClassifier, gate ConfidenceGate, phaseTimeout time.Duration) *Coordinator {
	return &Coordinator{
		research:      research,
		jurisdictions: jurisdictions,
		requirements:  requirements,
		legislation:   legislation,
		gate:          gate,
		phaseTimeout:  phaseTimeout,
		logger:        log.New(os.Stdout, "", log.LstdFlags),
		errLogger:     log.New(os.Stderr, "ERROR: ", log.LstdFlags),
		active:        map[int]bool{},
	}
}

func (c *Coordinator) acquire(jurisdictionID int) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.active[jurisdictionID] {
		return false
	}
	c.active[jurisdictionID] = true
	return true
}

func (c *Coordinator) release(jurisdictionID int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.active, jurisdictionID)
}

// Busy reports whether a check is currently running for a jurisdiction
func (c *Coordinator) Busy(jurisdictionID int) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.active[jurisdictionID]
}

// Run executes one check and emits its event stream through emit. The
// returned summary reflects whatever was committed before any failure;
// per-fact writes are atomic, so partial progress is valid, just incomplete.
// Run emits the terminal completed or error event itself unless the consumer
// disconnected.
func (c *Coordinator) Run(ctx context.Context, jurisdictionID int, emit EmitFunc) (model.CheckSummary, error) {
	var summary model.CheckSummary

	if !c.acquire(jurisdictionID) {
		c.fail(emit, ErrCheckInProgress.Error())
		return summary, ErrCheckInProgress
	}
	defer c.release(jurisdictionID)

	j, err := c.jurisdictions.GetByID(ctx, jurisdictionID)
	if err != nil {
		return summary, c.abort(ctx, emit, err)
	}
	if j == nil {
		err := fmt.Errorf("jurisdiction %d not found", jurisdictionID)
		return summary, c.abort(ctx, emit, err)
	}

	runID := uuid.NewString()
	c.logger.Printf("[%s] Starting compliance check for %s", runID, j.Label())

	if err := emit(Event{Type: EventStarted}); err != nil {
		return summary, err
	}

	if err := emit(Event{Type: EventResearching, Message: fmt.Sprintf("Researching labor requirements for %s...", j.Label())}); err != nil {
		return summary, err
	}
	facts, err := c.discoverPhase(ctx, func(pctx context.Context) ([]model.DiscoveredFact, error) {
		return c.research.DiscoverRequirements(pctx, j)
	})
	if err != nil {
		c.errLogger.Printf("[%s] Requirement research failed: %v", runID, err)
		return summary, c.abort(ctx, emit, err)
	}

	if err := emit(Event{Type: EventScanning, Message: fmt.Sprintf("Scanning %d discovered facts...", len(facts))}); err != nil {
		return summary, err
	}
	if err := emit(Event{Type: EventVerifying, Message: "Verifying facts against current records..."}); err != nil {
		return summary, err
	}

	for _, fact := range facts {
		if err := c.processFact(ctx, j, fact, c.requirements, false, emit, &summary); err != nil {
			c.errLogger.Printf("[%s] Fact %q failed: %v", runID, fact.Title, err)
			return summary, c.abort(ctx, emit, err)
		}
	}

	if err := emit(Event{Type: EventLegislation, Message: fmt.Sprintf("Checking pending legislation for %s...", j.Label())}); err != nil {
		return summary, err
	}
	bills, err := c.discoverPhase(ctx, func(pctx context.Context) ([]model.DiscoveredFact, error) {
		return c.research.DiscoverLegislation(pctx, j)
	})
	if err != nil {
		c.errLogger.Printf("[%s] Legislation research failed: %v", runID, err)
		return summary, c.abort(ctx, emit, err)
	}

	for _, fact := range bills {
		if err := c.processFact(ctx, j, fact, c.legislation, true, emit, &summary); err != nil {
			c.errLogger.Printf("[%s] Legislation %q failed: %v", runID, fact.Title, err)
			return summary, c.abort(ctx, emit, err)
		}
	}

	c.logger.Printf("[%s] Check completed for %s: %d new, %d updated, %d low confidence",
		runID, j.Label(), summary.New, summary.Updated, summary.LowConfidence)

	if err := emit(Event{Type: EventCompleted, Summary: summary}); err != nil {
		return summary, err
	}

	return summary, nil
}

// processFact runs one discovered fact through the confidence gate and the
// classifier, emitting the per-fact events
func (c *Coordinator) processFact(ctx context.Context, j *model.Jurisdiction, fact model.DiscoveredFact, classifier FactClassifier, isLegislation bool, emit EmitFunc, summary *model.CheckSummary) error {
	retries := 0

	for {
		decision := c.gate.Evaluate(fact.Confidence, retries)

		if decision == Retry {
			err := emit(Event{
				Type:       EventConfidenceRetry,
				Confidence: fact.Confidence,
				Message:    fmt.Sprintf("Confidence %.2f below threshold for %q, re-verifying...", fact.Confidence, fact.Title),
			})
			if err != nil {
				return err
			}

			verified, err := c.reverifyPhase(ctx, j, fact)
			retries++
			if err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				// Burn the retry and gate the original score.
				c.errLogger.Printf("Re-verification of %q failed: %v", fact.Title, err)
			} else {
				fact = verified
			}
			continue
		}

		if decision == AcceptLowConfidence {
			err := emit(Event{
				Type:       EventConfidenceGate,
				Confidence: fact.Confidence,
				Message:    fmt.Sprintf("Accepting %q at low confidence %.2f, flagged for review", fact.Title, fact.Confidence),
			})
			if err != nil {
				return err
			}
			summary.LowConfidence++
		}

		result, err := classifier.Classify(ctx, j.ID, j.Level, fact)
		if err != nil {
			return err
		}

		if err := emit(Event{Type: EventResult, Status: result.Status, Location: j.Label()}); err != nil {
			return err
		}

		switch result.Status {
		case model.StatusNew:
			summary.New++
			if isLegislation {
				summary.Alerts++
			}
		case model.StatusUpdated:
			summary.Updated++
			summary.Alerts++
		}

		return nil
	}
}

// discoverPhase runs one research phase under the wall-clock budget
func (c *Coordinator) discoverPhase(ctx context.Context, fn func(context.Context) ([]model.DiscoveredFact, error)) ([]model.DiscoveredFact, error) {
	pctx, cancel := context.WithTimeout(ctx, c.phaseTimeout)
	defer cancel()

	facts, err := fn(pctx)
	if err != nil {
		if errors.Is(pctx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
			return nil, fmt.Errorf("research phase timed out after %s", c.phaseTimeout)
		}
		return nil, err
	}

	return facts, nil
}

// reverifyPhase re-verifies one fact under the same budget as a full phase
func (c *Coordinator) reverifyPhase(ctx context.Context, j *model.Jurisdiction, fact model.DiscoveredFact) (model.DiscoveredFact, error) {
	pctx, cancel := context.WithTimeout(ctx, c.phaseTimeout)
	defer cancel()

	verified, err := c.research.Reverify(pctx, j, fact)
	if err != nil {
		if errors.Is(pctx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
			return fact, fmt.Errorf("re-verification timed out after %s", c.phaseTimeout)
		}
		return fact, err
	}

	return verified, nil
}

// abort emits the terminal error event unless the consumer is already gone,
// then returns err unchanged
func (c *Coordinator) abort(ctx context.Context, emit EmitFunc, err error) error {
	if ctx.Err() != nil {
		return err
	}
	c.fail(emit, err.Error())
	return err
}

func (c *Coordinator) fail(emit EmitFunc, message string) {
	// The consumer may have disconnected; nothing left to tell anyone.
	_ = emit(Event{Type: EventError, Message: message})
}
