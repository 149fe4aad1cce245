package handlers

import (
	"bufio"
	"context"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/neighborfix/maintenance-service/internal/events"
)

const feedHeartbeat = 15 * time.Second

// FeedHandler streams an account's events as Server-Sent Events.
type FeedHandler struct {
	feed      events.Feed
	logger    *zap.Logger
	heartbeat time.Duration
}

// NewFeedHandler constructs handler.
func NewFeedHandler(feed events.Feed, logger *zap.Logger) *FeedHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FeedHandler{feed: feed, logger: logger, heartbeat: feedHeartbeat}
}

// Stream GET /v1/feed.
func (h *FeedHandler) Stream(c *fiber.Ctx) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}
	// The stream outlives the handler, so it cannot use the request context.
	sub, err := h.feed.Subscribe(context.Background(), actor.ID)
	if err != nil {
		return err
	}

	c.Set(fiber.HeaderContentType, "text/event-stream")
	c.Set(fiber.HeaderCacheControl, "no-cache")
	c.Set(fiber.HeaderConnection, "keep-alive")
	c.Set("X-Accel-Buffering", "no")

	accountID := actor.ID
	c.Context().SetBodyStreamWriter(fasthttp.StreamWriter(func(w *bufio.Writer) {
		defer sub.Close()
		ticker := time.NewTicker(h.heartbeat)
		defer ticker.Stop()

		if _, err := fmt.Fprint(w, ": connected\n\n"); err != nil || w.Flush() != nil {
			return
		}
		for {
			select {
			case payload, ok := <-sub.C:
				if !ok {
					return
				}
				if _, err := fmt.Fprintf(w, "data: %s\n\n", payload); err != nil {
					return
				}
			case <-ticker.C:
				if _, err := fmt.Fprint(w, ": ping\n\n"); err != nil {
					return
				}
			}
			if err := w.Flush(); err != nil {
				h.logger.Debug("feed client disconnected", zap.String("account_id", accountID))
				return
			}
		}
	}))
	return nil
}
