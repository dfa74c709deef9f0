package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestConfidenceGateAccepts(t *testing.T) {
	gate := ConfidenceGate{Threshold: 0.95, MaxRetries: 1}

	assert.Equal(t, Accept, gate.Evaluate(0.95, 0))
	assert.Equal(t, Accept, gate.Evaluate(0.99, 0))
	assert.Equal(t, Accept, gate.Evaluate(1.0, 0))
	// The score wins regardless of retries already spent.
	assert.Equal(t, Accept, gate.Evaluate(0.95, 1))
}

func TestConfidenceGateRetriesFirst(t *testing.T) {
	gate := ConfidenceGate{Threshold: 0.95, MaxRetries: 1}

	assert.Equal(t, Retry, gate.Evaluate(0.949, 0))
	assert.Equal(t, Retry, gate.Evaluate(0.80, 0))
	assert.Equal(t, Retry, gate.Evaluate(0.0, 0))
}

func TestConfidenceGateAcceptsLowAfterBudget(t *testing.T) {
	gate := ConfidenceGate{Threshold: 0.95, MaxRetries: 1}

	assert.Equal(t, AcceptLowConfidence, gate.Evaluate(0.80, 1))
	assert.Equal(t, AcceptLowConfidence, gate.Evaluate(0.80, 2))
}

func TestConfidenceGateZeroRetryBudget(t *testing.T) {
	gate := ConfidenceGate{Threshold: 0.95, MaxRetries: 0}

	assert.Equal(t, AcceptLowConfidence, gate.Evaluate(0.94, 0))
	assert.Equal(t, Accept, gate.Evaluate(0.96, 0))
}

func TestConfidenceGateDeterministic(t *testing.T) {
	gate := ConfidenceGate{Threshold: 0.95, MaxRetries: 1}

	for i := 0; i < 100; i++ {
		assert.Equal(t, Retry, gate.Evaluate(0.90, 0))
		assert.Equal(t, Accept, gate.Evaluate(0.98, 0))
		assert.Equal(t, AcceptLowConfidence, gate.Evaluate(0.90, 1))
	}
}

func TestDecisionString(t *testing.T) {
	assert.Equal(t, "accept", Accept.String())
	assert.Equal(t, "retry", Retry.String())
	assert.Equal(t, "accept_low_confidence", AcceptLowConfidence.String())
}
