package handlers

import (
	"bufio"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"time"

	"coop-ledger/internal/adapters/http/middleware"
	"coop-ledger/internal/core/domain"
	"coop-ledger/internal/pkg/pubsub"
	"coop-ledger/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
	"github.com/valyala/fasthttp"
)

const heartbeatInterval = 30 * time.Second

// StreamHandler serves ledger change notifications as Server-Sent Events
type StreamHandler struct {
	hub       *pubsub.Hub
	heartbeat time.Duration
}

// NewStreamHandler creates a new stream handler
func NewStreamHandler(hub *pubsub.Hub) *StreamHandler {
	return &StreamHandler{hub: hub, heartbeat: heartbeatInterval}
}

// canSubscribe: staff may watch any path; members only the rate table and their own user record
func canSubscribe(actor domain.Actor, path string) bool {
	if actor.Role.IsStaff() {
		return true
	}
	return pubsub.Matches(pubsub.RatesRoot, path) || pubsub.Matches(pubsub.UserPath(actor.ID), path)
}

// Stream
// @Summary Subscribe to change notifications
// @Description Server-Sent Events for the given path and everything below it
// @Tags Stream
// @Produce text/event-stream
// @Security BearerAuth
// @Param path query string false "Subscription path" default(org)
// @Success 200 {string} string "event stream"
// @Failure 403 {object} response.Response
// @Router /stream [get]
func (h *StreamHandler) Stream(c *fiber.Ctx) error {
	actor, ok := middleware.CurrentActor(c)
	if !ok {
		return unauthorized(c)
	}

	path := pubsub.Clean(c.Query("path"))
	if path != pubsub.Root && !strings.HasPrefix(path, pubsub.Root+"/") {
		return response.BadRequest(c, "Path must be under "+pubsub.Root)
	}
	if !canSubscribe(actor, path) {
		return response.Forbidden(c, "You may not subscribe to "+path)
	}

	events, cancel := h.hub.Subscribe(path)
	heartbeat := h.heartbeat
	clientID := fmt.Sprintf("%s-%d", actor.ID, time.Now().UnixNano())

	c.Set("Content-Type", "text/event-stream")
	c.Set("Cache-Control", "no-cache")
	c.Set("Connection", "keep-alive")
	c.Set("Transfer-Encoding", "chunked")

	c.Context().SetBodyStreamWriter(fasthttp.StreamWriter(func(w *bufio.Writer) {
		defer cancel()
		log.Printf("📡 SSE client connected: %s on %s", clientID, path)

		fmt.Fprintf(w, "event: connected\ndata: {\"path\":%q}\n\n", path)
		if err := w.Flush(); err != nil {
			return
		}

		ticker := time.NewTicker(heartbeat)
		defer ticker.Stop()

		for {
			select {
			case e, ok := <-events:
				if !ok {
					return
				}
				if err := writeEvent(w, e); err != nil {
					log.Printf("📡 SSE client disconnected: %s", clientID)
					return
				}
			case <-ticker.C:
				fmt.Fprintf(w, ": heartbeat\n\n")
				if err := w.Flush(); err != nil {
					log.Printf("📡 SSE client disconnected: %s", clientID)
					return
				}
			}
		}
	}))

	return nil
}

// writeEvent writes one SSE frame: the event kind as the SSE event name, the whole event as JSON data
func writeEvent(w *bufio.Writer, e pubsub.Event) error {
	data, err := json.Marshal(e)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "event: %s\ndata: %s\n\n", e.Kind, data)
	return w.Flush()
}
