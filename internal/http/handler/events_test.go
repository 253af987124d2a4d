package handler

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"videoapi/internal/events"
	"videoapi/internal/model"
	"videoapi/internal/service"
	serviceMocks "videoapi/internal/service/mocks"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func progress(videoID, tenant string, pct int) model.ProgressEvent {
	return model.ProgressEvent{VideoID: videoID, TenantID: tenant, Status: model.StateProcessing, Progress: pct, Stage: "running analysis"}
}

func TestStreamEvents(t *testing.T) {
	hub := events.NewHub(4, nil)
	sub := hub.Subscribe("u1", "t1")
	hub.Publish(progress("v1", "t1", 25), events.TenantPartition("t1"))
	hub.Publish(progress("v1", "t1", 50), events.TenantPartition("t1"))
	sub.Close()

	var buf bytes.Buffer
	w := bufio.NewWriter(&buf)
	require.NoError(t, streamEvents(w, sub, 0))

	frames := strings.Split(strings.TrimSuffix(buf.String(), "\n\n"), "\n\n")
	require.Len(t, frames, 3)
	assert.Equal(t, fmt.Sprintf("event: ready\ndata: {\"subscription_id\":%q,\"tenant_id\":\"t1\"}", sub.ID), frames[0])

	for i, want := range []int{25, 50} {
		lines := strings.SplitN(frames[i+1], "\n", 2)
		assert.Equal(t, "event: progress", lines[0])
		var ev model.ProgressEvent
		require.NoError(t, json.Unmarshal([]byte(strings.TrimPrefix(lines[1], "data: ")), &ev))
		assert.Equal(t, want, ev.Progress)
	}
}

func TestStreamEvents_Heartbeat(t *testing.T) {
	hub := events.NewHub(4, nil)
	sub := hub.Subscribe("u1", "t1")
	go func() {
		time.Sleep(50 * time.Millisecond)
		sub.Close()
	}()

	var buf bytes.Buffer
	require.NoError(t, streamEvents(bufio.NewWriter(&buf), sub, 5*time.Millisecond))

	assert.Contains(t, buf.String(), ": keep-alive\n\n")
}

// closeWhenSubscribed publishes evs once the handler has subscribed and then
// ends every stream so app.Test can read the whole body.
func closeWhenSubscribed(hub *events.Hub, publish func()) {
	go func() {
		deadline := time.Now().Add(2 * time.Second)
		for hub.Len() == 0 && time.Now().Before(deadline) {
			time.Sleep(2 * time.Millisecond)
		}
		publish()
		hub.CloseAll()
	}()
}

func TestSubscribeEvents(t *testing.T) {
	mockSvc := new(serviceMocks.MockVideoService)

	t.Run("tenant stream", func(t *testing.T) {
		hub := events.NewHub(8, nil)
		app := fiber.New()
		app.Get("/events", withCaller(viewerCaller), SubscribeEvents(hub, mockSvc, 0))

		closeWhenSubscribed(hub, func() {
			hub.Publish(progress("v1", "t1", 25), events.TenantPartition("t1"))
			hub.Publish(progress("v2", "t2", 25), events.TenantPartition("t2"))
		})

		resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/events", nil), 5000)
		require.NoError(t, err)

		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))
		body, _ := io.ReadAll(resp.Body)
		assert.True(t, strings.HasPrefix(string(body), "event: ready\n"))
		assert.Equal(t, 1, strings.Count(string(body), "event: progress\n"))
		assert.Contains(t, string(body), `"video_id":"v1"`)
		assert.NotContains(t, string(body), `"video_id":"v2"`)
		assert.Equal(t, 0, hub.Len())
	})

	t.Run("admin opts into another tenant's video", func(t *testing.T) {
		hub := events.NewHub(8, nil)
		app := fiber.New()
		app.Get("/events", withCaller(adminCaller), SubscribeEvents(hub, mockSvc, 0))
		id := uuid.NewString()
		mockSvc.On("Get", mock.Anything, adminCaller, id).Return(&model.Video{ID: id, TenantID: "t2"}, nil).Once()

		closeWhenSubscribed(hub, func() {
			hub.Publish(progress(id, "t2", 75), events.VideoPartition(id), events.TenantPartition("t2"))
		})

		resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/events?videoId="+id, nil), 5000)
		require.NoError(t, err)

		body, _ := io.ReadAll(resp.Body)
		assert.Equal(t, 1, strings.Count(string(body), "event: progress\n"))
		assert.Contains(t, string(body), `"progress":75`)
	})

	t.Run("opt-in refused for other tenant", func(t *testing.T) {
		hub := events.NewHub(8, nil)
		app := fiber.New()
		app.Get("/events", withCaller(viewerCaller), SubscribeEvents(hub, mockSvc, 0))
		id := uuid.NewString()
		mockSvc.On("Get", mock.Anything, viewerCaller, id).Return(nil, service.ErrForbidden).Once()

		resp, _ := app.Test(httptest.NewRequest(http.MethodGet, "/events?videoId="+id, nil))

		assert.Equal(t, http.StatusForbidden, resp.StatusCode)
		assert.Equal(t, "FORBIDDEN", decodeError(t, resp).Error.Code)
		assert.Equal(t, 0, hub.Len())
	})

	t.Run("malformed videoId", func(t *testing.T) {
		hub := events.NewHub(8, nil)
		app := fiber.New()
		app.Get("/events", withCaller(viewerCaller), SubscribeEvents(hub, mockSvc, 0))

		resp, _ := app.Test(httptest.NewRequest(http.MethodGet, "/events?videoId=abc", nil))

		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		assert.Equal(t, "INVALID_ID", decodeError(t, resp).Error.Code)
		assert.Equal(t, 0, hub.Len())
		mockSvc.AssertNotCalled(t, "Get", mock.Anything, viewerCaller, "abc")
	})

	mockSvc.AssertExpectations(t)
}

func TestJoinAndLeaveVideo(t *testing.T) {
	mockSvc := new(serviceMocks.MockVideoService)
	hub := events.NewHub(8, nil)
	sub := hub.Subscribe(viewerCaller.UserID, viewerCaller.TenantID)
	defer sub.Close()

	app := fiber.New()
	app.Post("/events/:subscriptionId/videos/:id", withCaller(viewerCaller), JoinVideo(hub, mockSvc))
	app.Delete("/events/:subscriptionId/videos/:id", withCaller(viewerCaller), LeaveVideo(hub))

	stranger := fiber.New()
	stranger.Post("/events/:subscriptionId/videos/:id", withCaller(editorCaller), JoinVideo(hub, mockSvc))

	videoID := uuid.NewString()
	path := "/events/" + sub.ID + "/videos/" + videoID

	t.Run("join", func(t *testing.T) {
		mockSvc.On("Get", mock.Anything, viewerCaller, videoID).Return(&model.Video{ID: videoID, TenantID: "t1"}, nil).Once()

		resp, _ := app.Test(httptest.NewRequest(http.MethodPost, path, nil))
		assert.Equal(t, http.StatusNoContent, resp.StatusCode)

		hub.Publish(progress(videoID, "t1", 50), events.VideoPartition(videoID))
		select {
		case ev := <-sub.Events():
			assert.Equal(t, videoID, ev.VideoID)
		default:
			t.Fatal("expected the video partition event")
		}
	})

	t.Run("join forbidden video", func(t *testing.T) {
		other := uuid.NewString()
		mockSvc.On("Get", mock.Anything, viewerCaller, other).Return(nil, service.ErrForbidden).Once()

		resp, _ := app.Test(httptest.NewRequest(http.MethodPost, "/events/"+sub.ID+"/videos/"+other, nil))
		assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	})

	t.Run("not the owner", func(t *testing.T) {
		resp, _ := stranger.Test(httptest.NewRequest(http.MethodPost, path, nil))
		assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	})

	t.Run("unknown subscription", func(t *testing.T) {
		resp, _ := app.Test(httptest.NewRequest(http.MethodPost, "/events/nope/videos/"+videoID, nil))
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
		assert.Equal(t, "NOT_FOUND", decodeError(t, resp).Error.Code)
	})

	t.Run("leave", func(t *testing.T) {
		resp, _ := app.Test(httptest.NewRequest(http.MethodDelete, path, nil))
		assert.Equal(t, http.StatusNoContent, resp.StatusCode)

		hub.Publish(progress(videoID, "t1", 75), events.VideoPartition(videoID))
		select {
		case ev := <-sub.Events():
			t.Fatalf("unexpected event after leaving: %+v", ev)
		default:
		}
	})

	mockSvc.AssertExpectations(t)
}
