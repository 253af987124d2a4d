package handler

import (
	"bufio"
	"encoding/json"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"videoapi/internal/access"
	"videoapi/internal/events"
	"videoapi/internal/service"
)

type readyFrame struct {
	SubscriptionID string `json:"subscription_id"`
	TenantID       string `json:"tenant_id"`
}

// writeFrame writes one server-sent event and flushes it. A flush error means
// the client went away.
func writeFrame(w *bufio.Writer, event string, data any) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, payload); err != nil {
		return err
	}
	return w.Flush()
}

// streamEvents announces sub, then relays its events until the subscription
// is closed or the client disconnects. A comment line is sent every heartbeat.
func streamEvents(w *bufio.Writer, sub *events.Subscription, heartbeat time.Duration) error {
	if err := writeFrame(w, "ready", readyFrame{SubscriptionID: sub.ID, TenantID: sub.Tenant}); err != nil {
		return err
	}

	var tick <-chan time.Time
	if heartbeat > 0 {
		t := time.NewTicker(heartbeat)
		defer t.Stop()
		tick = t.C
	}

	for {
		select {
		case ev, ok := <-sub.Events():
			if !ok {
				return nil
			}
			if err := writeFrame(w, "progress", ev); err != nil {
				return err
			}
		case <-tick:
			if _, err := w.WriteString(": keep-alive\n\n"); err != nil {
				return err
			}
			if err := w.Flush(); err != nil {
				return err
			}
		}
	}
}

// SubscribeEvents godoc
// @Summary Observe processing progress
// @Description Server-sent events for the caller's tenant. The first frame is "ready" and carries the subscription id; progress arrives as "progress" frames.
// @Tags events
// @Produce text/event-stream
// @Param videoId query string false "also observe this video"
// @Param token query string false "bearer token"
// @Success 200 {string} string
// @Failure 403 {object} errorPayload
// @Failure 404 {object} errorPayload
// @Security BearerAuth
// @Router /events [get]
func SubscribeEvents(hub *events.Hub, videos service.VideoService, heartbeat time.Duration) fiber.Handler {
	return func(c *fiber.Ctx) error {
		caller, ok := callerOf(c)
		if !ok {
			return unauthorized(c)
		}

		videoID := c.Query("videoId")
		if videoID != "" {
			if _, err := uuid.Parse(videoID); err != nil {
				return writeError(c, fiber.StatusBadRequest, "INVALID_ID", "invalid videoId format")
			}
			if _, err := videos.Get(c.UserContext(), caller, videoID); err != nil {
				return writeServiceError(c, err)
			}
		}

		var videoIDs []string
		if videoID != "" {
			videoIDs = append(videoIDs, videoID)
		}
		sub := hub.Subscribe(caller.UserID, caller.TenantID, videoIDs...)

		c.Set(fiber.HeaderContentType, "text/event-stream")
		c.Set(fiber.HeaderCacheControl, "no-cache")
		c.Set(fiber.HeaderConnection, "keep-alive")
		c.Set("X-Accel-Buffering", "no")

		c.Context().SetBodyStreamWriter(func(w *bufio.Writer) {
			defer sub.Close()
			_ = streamEvents(w, sub, heartbeat)
		})
		return nil
	}
}

// ownSubscription resolves the path's subscription and checks that the caller opened it.
func ownSubscription(c *fiber.Ctx, hub *events.Hub, caller access.Caller) (*events.Subscription, error) {
	sub, ok := hub.Lookup(c.Params("subscriptionId"))
	if !ok {
		return nil, events.ErrSubscriptionNotFound
	}
	if sub.UserID != caller.UserID {
		return nil, service.ErrForbidden
	}
	return sub, nil
}

// JoinVideo godoc
// @Summary Observe a video
// @Tags events
// @Param subscriptionId path string true "subscription id"
// @Param id path string true "video id"
// @Success 204
// @Failure 403 {object} errorPayload
// @Failure 404 {object} errorPayload
// @Security BearerAuth
// @Router /events/{subscriptionId}/videos/{id} [post]
func JoinVideo(hub *events.Hub, videos service.VideoService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		caller, ok := callerOf(c)
		if !ok {
			return unauthorized(c)
		}
		sub, err := ownSubscription(c, hub, caller)
		if err != nil {
			return writeServiceError(c, err)
		}
		id, ok := videoID(c)
		if !ok {
			return writeError(c, fiber.StatusBadRequest, "INVALID_ID", "invalid id format")
		}
		if _, err := videos.Get(c.UserContext(), caller, id); err != nil {
			return writeServiceError(c, err)
		}
		if err := hub.Join(sub.ID, id); err != nil {
			return writeServiceError(c, err)
		}
		return c.SendStatus(fiber.StatusNoContent)
	}
}

// LeaveVideo godoc
// @Summary Stop observing a video
// @Tags events
// @Param subscriptionId path string true "subscription id"
// @Param id path string true "video id"
// @Success 204
// @Failure 403 {object} errorPayload
// @Failure 404 {object} errorPayload
// @Security BearerAuth
// @Router /events/{subscriptionId}/videos/{id} [delete]
func LeaveVideo(hub *events.Hub) fiber.Handler {
	return func(c *fiber.Ctx) error {
		caller, ok := callerOf(c)
		if !ok {
			return unauthorized(c)
		}
		sub, err := ownSubscription(c, hub, caller)
		if err != nil {
			return writeServiceError(c, err)
		}
		if err := hub.Leave(sub.ID, c.Params("id")); err != nil {
			return writeServiceError(c, err)
		}
		return c.SendStatus(fiber.StatusNoContent)
	}
}
