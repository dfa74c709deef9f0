package service

import (
	"context"
	"encoding/json"

	"github.com/jjenkins/laborwatch/internal/model"
)

// EventType tags one event in a check or batch stream
type EventType string

// Check coordinator event types, in emission order.
const (
	EventStarted         EventType = "started"
	EventResearching     EventType = "researching"
	EventScanning        EventType = "scanning"
	EventVerifying       EventType = "verifying"
	EventLegislation     EventType = "legislation"
	EventResult          EventType = "result"
	EventConfidenceRetry EventType = "confidence_retry"
	EventConfidenceGate  EventType = "confidence_gate"
	EventCompleted       EventType = "completed"
	EventError           EventType = "error"
)

// Batch supervisor event types.
const (
	EventRunStarted    EventType = "run_started"
	EventCityStarted   EventType = "city_started"
	EventCityProgress  EventType = "city_progress"
	EventCityCompleted EventType = "city_completed"
	EventCityFailed    EventType = "city_failed"
	EventRunCompleted  EventType = "run_completed"
)

// Event is the tagged union written to the event transport. Which fields are
// populated depends on Type; MarshalJSON emits exactly the wire shape for
// each type.
type Event struct {
	Type       EventType
	Message    string
	Status     model.ClassifyStatus
	Location   string
	Confidence float64
	Summary    model.CheckSummary

	City    string
	State   string
	Phase   EventType
	Percent int
	Metros  []string
	Batch   model.BatchSummary
}

// MarshalJSON renders the event per the stream contract: a flat object whose
// fields are determined by type.
func (e Event) MarshalJSON() ([]byte, error) {
	m := map[string]any{"type": string(e.Type)}

	switch e.Type {
	case EventStarted:
		// type only
	case EventResearching, EventScanning, EventVerifying, EventLegislation:
		m["message"] = e.Message
	case EventResult:
		m["status"] = string(e.Status)
		if e.Location != "" {
			m["location"] = e.Location
		}
	case EventConfidenceRetry, EventConfidenceGate:
		m["confidence"] = e.Confidence
		m["message"] = e.Message
	case EventCompleted:
		m["new"] = e.Summary.New
		m["updated"] = e.Summary.Updated
		m["alerts"] = e.Summary.Alerts
		m["low_confidence"] = e.Summary.LowConfidence
	case EventError:
		m["message"] = e.Message
	case EventRunStarted:
		m["metros"] = e.Metros
	case EventCityStarted:
		m["city"] = e.City
		m["state"] = e.State
	case EventCityProgress:
		m["city"] = e.City
		m["state"] = e.State
		m["phase"] = string(e.Phase)
		m["percent"] = e.Percent
		m["message"] = e.Message
	case EventCityCompleted:
		m["city"] = e.City
		m["state"] = e.State
		m["new"] = e.Summary.New
		m["updated"] = e.Summary.Updated
		m["alerts"] = e.Summary.Alerts
		m["low_confidence"] = e.Summary.LowConfidence
	case EventCityFailed:
		m["city"] = e.City
		m["state"] = e.State
		m["message"] = e.Message
	case EventRunCompleted:
		m["total"] = e.Batch.Total
		m["succeeded"] = e.Batch.Succeeded
		m["failed"] = e.Batch.Failed
		m["low_confidence_total"] = e.Batch.LowConfidenceTotal
	}

	return json.Marshal(m)
}

// EmitFunc pushes one event onto a run's transport. A non-nil error means the
// consumer is gone and the producer must stop promptly.
type EmitFunc func(Event) error

// Stream is the transport between one run's producer and its single
// consumer: a strictly ordered push stream. The channel is unbuffered, so a
// slow consumer applies backpressure to the producer instead of growing a
// buffer.
type Stream struct {
	ctx context.Context
	ch  chan Event
}

// NewStream creates a stream bound to the consumer's context. Cancelling the
// context (consumer disconnect) unblocks any pending Emit.
func NewStream(ctx context.Context) *Stream {
	return &Stream{ctx: ctx, ch: make(chan Event)}
}

// Emit pushes one event, blocking until the consumer takes it or disconnects
func (s *Stream) Emit(e Event) error {
	select {
	case <-s.ctx.Done():
		return s.ctx.Err()
	case s.ch <- e:
		return nil
	}
}

// Close signals the consumer that no further events follow. Only the producer
// may call it, exactly once.
func (s *Stream) Close() {
	close(s.ch)
}

// Events exposes the consumer side of the stream
func (s *Stream) Events() <-chan Event {
	return s.ch
}
