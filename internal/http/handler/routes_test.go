package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"videoapi/internal/access"
	"videoapi/internal/auth"
	"videoapi/internal/events"
	"videoapi/internal/service"
	serviceMocks "videoapi/internal/service/mocks"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

type tokenTable map[string]access.Caller

func (t tokenTable) Verify(_ context.Context, token string) (access.Caller, error) {
	if token == "" {
		return access.Caller{}, auth.ErrMissingToken
	}
	c, ok := t[token]
	if !ok {
		return access.Caller{}, auth.ErrInvalidToken
	}
	return c, nil
}

func TestRegisterRoutes(t *testing.T) {
	videos := new(serviceMocks.MockVideoService)
	users := new(serviceMocks.MockUserService)

	app := fiber.New(fiber.Config{ErrorHandler: ErrorHandler()})
	RegisterRoutes(app, Deps{
		Videos:   videos,
		Users:    users,
		Hub:      events.NewHub(4, nil),
		Auth:     tokenTable{"viewer": viewerCaller, "admin": adminCaller},
		Gatherer: prometheus.NewRegistry(),
	})

	videos.On("List", mock.Anything, viewerCaller, service.VideoQuery{Limit: 10}).
		Return(&service.VideoListResult{Limit: 10}, nil)
	users.On("List", mock.Anything, "", 10, 0).Return(&service.UserListResult{Limit: 10}, nil)

	tests := []struct {
		name       string
		method     string
		path       string
		token      string
		wantStatus int
		wantCode   string
	}{
		{name: "liveness", method: http.MethodGet, path: "/healthz", wantStatus: http.StatusOK},
		{name: "metrics", method: http.MethodGet, path: "/metrics", wantStatus: http.StatusOK},
		{name: "videos without token", method: http.MethodGet, path: "/videos", wantStatus: http.StatusUnauthorized, wantCode: "UNAUTHORIZED"},
		{name: "videos with bad token", method: http.MethodGet, path: "/videos", token: "forged", wantStatus: http.StatusUnauthorized, wantCode: "UNAUTHORIZED"},
		{name: "videos as viewer", method: http.MethodGet, path: "/videos", token: "viewer", wantStatus: http.StatusOK},
		{name: "videos via query token", method: http.MethodGet, path: "/videos?token=viewer", wantStatus: http.StatusOK},
		{name: "viewer cannot upload", method: http.MethodPost, path: "/videos", token: "viewer", wantStatus: http.StatusForbidden, wantCode: "INSUFFICIENT_ROLE"},
		{name: "viewer cannot manage users", method: http.MethodGet, path: "/users", token: "viewer", wantStatus: http.StatusForbidden, wantCode: "INSUFFICIENT_ROLE"},
		{name: "admin manages users", method: http.MethodGet, path: "/users", token: "admin", wantStatus: http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.path, nil)
			if tt.token != "" {
				req.Header.Set("Authorization", "Bearer "+tt.token)
			}
			resp, err := app.Test(req)
			assert.NoError(t, err)
			assert.Equal(t, tt.wantStatus, resp.StatusCode)
			if tt.wantCode != "" {
				assert.Equal(t, tt.wantCode, decodeError(t, resp).Error.Code)
			}
		})
	}
}
