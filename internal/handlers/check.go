package handlers

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"

	"github.com/gofiber/fiber/v2"
	"github.com/valyala/fasthttp"

	"github.com/jjenkins/laborwatch/internal/model"
	"github.com/jjenkins/laborwatch/internal/service"
)

// CheckRunner is the coordinator capability the check endpoint drives
type CheckRunner interface {
	Run(ctx context.Context, jurisdictionID int, emit service.EmitFunc) (model.CheckSummary, error)
	Busy(jurisdictionID int) bool
}

// BatchRunner is the supervisor capability the batch endpoint drives
type BatchRunner interface {
	RunBatch(ctx context.Context, targets []model.Metro, emit service.EmitFunc) (model.BatchSummary, error)
}

// CheckHandler starts a check coordinator run and streams its events as
// line-delimited JSON, one `data: ` line per event, terminated by
// `data: [DONE]`
func CheckHandler(runner CheckRunner) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := c.ParamsInt("id")
		if err != nil || id <= 0 {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid jurisdiction id"})
		}

		// Fast-path rejection before the stream opens. Run re-checks
		// under its lock.
		if runner.Busy(id) {
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": service.ErrCheckInProgress.Error()})
		}

		setStreamHeaders(c)
		c.Context().SetBodyStreamWriter(fasthttp.StreamWriter(func(w *bufio.Writer) {
			streamRun(w, func(ctx context.Context, emit service.EmitFunc) {
				// Terminal event already emitted inside Run.
				_, _ = runner.Run(ctx, id, emit)
			})
		}))

		return nil
	}
}

// BatchCheckHandler starts a batch supervisor run over the server-defined
// metro list and streams batch events in the same framing
func BatchCheckHandler(runner BatchRunner, metros []model.Metro) fiber.Handler {
	return func(c *fiber.Ctx) error {
		setStreamHeaders(c)
		c.Context().SetBodyStreamWriter(fasthttp.StreamWriter(func(w *bufio.Writer) {
			streamRun(w, func(ctx context.Context, emit service.EmitFunc) {
				// Terminal event already emitted inside RunBatch.
				_, _ = runner.RunBatch(ctx, metros, emit)
			})
		}))

		return nil
	}
}

func setStreamHeaders(c *fiber.Ctx) {
	c.Set(fiber.HeaderContentType, "text/event-stream")
	c.Set(fiber.HeaderCacheControl, "no-cache")
	c.Set("Connection", "keep-alive")
	c.Set("X-Accel-Buffering", "no")
}

// streamRun bridges a producer onto the response writer. Events are flushed
// incrementally; a failed flush means the consumer disconnected, which
// cancels the run context so no further research calls are issued.
func streamRun(w *bufio.Writer, run func(ctx context.Context, emit service.EmitFunc)) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stream := service.NewStream(ctx)
	go func() {
		defer stream.Close()
		run(ctx, stream.Emit)
	}()

	for ev := range stream.Events() {
		line, err := json.Marshal(ev)
		if err != nil {
			// A malformed line must be skippable by the consumer;
			// it must never abort the stream.
			continue
		}

		fmt.Fprintf(w, "data: %s\n\n", line)
		if err := w.Flush(); err != nil {
			cancel()
			for range stream.Events() {
				// Drain so the producer's pending Emit unblocks.
			}
			return
		}
	}

	fmt.Fprint(w, "data: [DONE]\n\n")
	w.Flush()
}
