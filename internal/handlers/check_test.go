package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jjenkins/laborwatch/internal/model"
	"github.com/jjenkins/laborwatch/internal/service"
)

type stubCheckRunner struct {
	events  []service.Event
	err     error
	busy    bool
	gotID   int
	summary model.CheckSummary
}

func (s *stubCheckRunner) Run(ctx context.Context, jurisdictionID int, emit service.EmitFunc) (model.CheckSummary, error) {
	s.gotID = jurisdictionID
	for _, e := range s.events {
		if err := emit(e); err != nil {
			return s.summary, err
		}
	}
	return s.summary, s.err
}

func (s *stubCheckRunner) Busy(jurisdictionID int) bool { return s.busy }

type stubBatchRunner struct {
	events []service.Event
}

func (s *stubBatchRunner) RunBatch(ctx context.Context, targets []model.Metro, emit service.EmitFunc) (model.BatchSummary, error) {
	for _, e := range s.events {
		if err := emit(e); err != nil {
			return model.BatchSummary{}, err
		}
	}
	return model.BatchSummary{Total: len(targets)}, nil
}

// readStream splits an event-stream body into its data payloads
func readStream(t *testing.T, body io.Reader) []string {
	t.Helper()
	raw, err := io.ReadAll(body)
	require.NoError(t, err)

	var payloads []string
	for _, line := range strings.Split(string(raw), "\n\n") {
		if line == "" {
			continue
		}
		require.True(t, strings.HasPrefix(line, "data: "), "frame %q missing data prefix", line)
		payloads = append(payloads, strings.TrimPrefix(line, "data: "))
	}
	return payloads
}

func TestCheckHandlerStreamsEvents(t *testing.T) {
	runner := &stubCheckRunner{
		events: []service.Event{
			{Type: service.EventStarted},
			{Type: service.EventResearching, Message: "Researching..."},
			{Type: service.EventCompleted, Summary: model.CheckSummary{New: 2}},
		},
	}

	app := fiber.New()
	app.Post("/check/:id", CheckHandler(runner))

	resp, err := app.Test(httptest.NewRequest("POST", "/check/3", nil), -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	payloads := readStream(t, resp.Body)
	require.NotEmpty(t, payloads)
	assert.Equal(t, "[DONE]", payloads[len(payloads)-1])
	assert.Equal(t, 3, runner.gotID)

	var first map[string]any
	require.NoError(t, json.Unmarshal([]byte(payloads[0]), &first))
	assert.Equal(t, "started", first["type"])

	var last map[string]any
	require.NoError(t, json.Unmarshal([]byte(payloads[len(payloads)-2]), &last))
	assert.Equal(t, "completed", last["type"])
	assert.Equal(t, float64(2), last["new"])
	assert.Equal(t, float64(0), last["updated"])
}

func TestCheckHandlerErrorTravelsInBand(t *testing.T) {
	runner := &stubCheckRunner{
		events: []service.Event{
			{Type: service.EventStarted},
			{Type: service.EventError, Message: "research capability unavailable"},
		},
		err: errors.New("research capability unavailable"),
	}

	app := fiber.New()
	app.Post("/check/:id", CheckHandler(runner))

	resp, err := app.Test(httptest.NewRequest("POST", "/check/3", nil), -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	// The stream itself is 200; the failure is an in-band error event.
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	payloads := readStream(t, resp.Body)
	require.GreaterOrEqual(t, len(payloads), 3)

	var errEvent map[string]any
	require.NoError(t, json.Unmarshal([]byte(payloads[len(payloads)-2]), &errEvent))
	assert.Equal(t, "error", errEvent["type"])
	assert.Contains(t, errEvent["message"], "unavailable")
	assert.Equal(t, "[DONE]", payloads[len(payloads)-1])
}

func TestCheckHandlerInvalidID(t *testing.T) {
	app := fiber.New()
	app.Post("/check/:id", CheckHandler(&stubCheckRunner{}))

	resp, err := app.Test(httptest.NewRequest("POST", "/check/abc", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

func TestCheckHandlerConflictWhileBusy(t *testing.T) {
	app := fiber.New()
	app.Post("/check/:id", CheckHandler(&stubCheckRunner{busy: true}))

	resp, err := app.Test(httptest.NewRequest("POST", "/check/3", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusConflict, resp.StatusCode)
}

func TestBatchCheckHandlerStreams(t *testing.T) {
	runner := &stubBatchRunner{
		events: []service.Event{
			{Type: service.EventRunStarted, Metros: []string{"Austin"}},
			{Type: service.EventCityStarted, City: "Austin", State: "TX"},
			{Type: service.EventCityCompleted, City: "Austin", State: "TX", Summary: model.CheckSummary{New: 1}},
			{Type: service.EventRunCompleted, Batch: model.BatchSummary{Total: 1, Succeeded: 1}},
		},
	}

	app := fiber.New()
	app.Post("/check-top-metros", BatchCheckHandler(runner, []model.Metro{{City: "Austin", State: "TX"}}))

	resp, err := app.Test(httptest.NewRequest("POST", "/check-top-metros", nil), -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	payloads := readStream(t, resp.Body)
	require.Len(t, payloads, 5)

	var first map[string]any
	require.NoError(t, json.Unmarshal([]byte(payloads[0]), &first))
	assert.Equal(t, "run_started", first["type"])
	assert.Equal(t, []any{"Austin"}, first["metros"])
	assert.Equal(t, "[DONE]", payloads[4])
}
