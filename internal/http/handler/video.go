package handler

import (
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"videoapi/internal/access"
	"videoapi/internal/http/middleware"
	"videoapi/internal/service"
)

// callerOf returns the authenticated caller. Routes using it sit behind
// middleware.Authenticate, so a miss is a wiring error.
func callerOf(c *fiber.Ctx) (access.Caller, bool) {
	return middleware.CallerFrom(c)
}

func unauthorized(c *fiber.Ctx) error {
	return writeError(c, fiber.StatusUnauthorized, "UNAUTHORIZED", "missing token")
}

func videoID(c *fiber.Ctx) (string, bool) {
	id := c.Params("id")
	if _, err := uuid.Parse(id); err != nil {
		return "", false
	}
	return id, true
}

func queryInt(c *fiber.Ctx, key string, def int) (int, bool) {
	raw := c.Query(key)
	if raw == "" {
		return def, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, false
	}
	return n, true
}

// ListVideos godoc
// @Summary List videos
// @Description Videos visible to the caller, newest first. Non-admins only see their own tenant.
// @Tags videos
// @Produce json
// @Param state query string false "pending|processing|completed|failed"
// @Param disposition query string false "pending|safe|flagged"
// @Param tenantId query string false "tenant partition"
// @Param limit query int false "page size" default(10)
// @Param offset query int false "page offset" default(0)
// @Success 200 {object} service.VideoListResult
// @Failure 400 {object} errorPayload
// @Failure 403 {object} errorPayload
// @Security BearerAuth
// @Router /videos [get]
func ListVideos(svc service.VideoService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		caller, ok := callerOf(c)
		if !ok {
			return unauthorized(c)
		}
		limit, ok := queryInt(c, "limit", 10)
		if !ok {
			return writeError(c, fiber.StatusBadRequest, "INVALID_LIMIT", "invalid limit")
		}
		offset, ok := queryInt(c, "offset", 0)
		if !ok {
			return writeError(c, fiber.StatusBadRequest, "INVALID_OFFSET", "invalid offset")
		}

		res, err := svc.List(c.UserContext(), caller, service.VideoQuery{
			TenantID:    c.Query("tenantId"),
			State:       c.Query("state"),
			Disposition: c.Query("disposition"),
			Limit:       limit,
			Offset:      offset,
		})
		if err != nil {
			return writeServiceError(c, err)
		}
		return c.JSON(res)
	}
}

// UploadVideo godoc
// @Summary Upload a video
// @Description Stores the file and starts background processing. Admins and editors only.
// @Tags videos
// @Accept multipart/form-data
// @Produce json
// @Param video formData file true "video file"
// @Param tenantId formData string false "place the video in another user's tenant"
// @Success 201 {object} model.Video
// @Failure 400 {object} errorPayload
// @Failure 413 {object} errorPayload
// @Security BearerAuth
// @Router /videos [post]
func UploadVideo(svc service.VideoService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		caller, ok := callerOf(c)
		if !ok {
			return unauthorized(c)
		}
		fh, err := c.FormFile("video")
		if err != nil {
			return writeError(c, fiber.StatusBadRequest, "FILE_REQUIRED", "video file is required")
		}
		f, err := fh.Open()
		if err != nil {
			return writeError(c, fiber.StatusBadRequest, "FILE_OPEN_ERROR", "cannot open uploaded file")
		}
		defer f.Close()

		v, err := svc.Upload(c.UserContext(), caller, service.UploadInput{
			Reader:   f,
			Filename: fh.Filename,
			Size:     fh.Size,
			TenantID: c.FormValue("tenantId"),
		})
		if err != nil {
			return writeServiceError(c, err)
		}
		return c.Status(fiber.StatusCreated).JSON(v)
	}
}

// GetVideo godoc
// @Summary Get a video
// @Tags videos
// @Produce json
// @Param id path string true "video id"
// @Success 200 {object} model.Video
// @Failure 403 {object} errorPayload
// @Failure 404 {object} errorPayload
// @Security BearerAuth
// @Router /videos/{id} [get]
func GetVideo(svc service.VideoService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		caller, ok := callerOf(c)
		if !ok {
			return unauthorized(c)
		}
		id, ok := videoID(c)
		if !ok {
			return writeError(c, fiber.StatusBadRequest, "INVALID_ID", "invalid id format")
		}
		v, err := svc.Get(c.UserContext(), caller, id)
		if err != nil {
			return writeServiceError(c, err)
		}
		return c.JSON(v)
	}
}

// DeleteVideo godoc
// @Summary Delete a video
// @Tags videos
// @Param id path string true "video id"
// @Success 204
// @Failure 403 {object} errorPayload
// @Failure 404 {object} errorPayload
// @Security BearerAuth
// @Router /videos/{id} [delete]
func DeleteVideo(svc service.VideoService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		caller, ok := callerOf(c)
		if !ok {
			return unauthorized(c)
		}
		id, ok := videoID(c)
		if !ok {
			return writeError(c, fiber.StatusBadRequest, "INVALID_ID", "invalid id format")
		}
		if err := svc.Delete(c.UserContext(), caller, id); err != nil {
			return writeServiceError(c, err)
		}
		return c.SendStatus(fiber.StatusNoContent)
	}
}

// StreamVideo godoc
// @Summary Stream a processed video
// @Description Honors a single "bytes=start-[end]" range. The token may be passed as a query parameter for media elements.
// @Tags videos
// @Produce video/mp4
// @Param id path string true "video id"
// @Param token query string false "bearer token"
// @Param Range header string false "bytes=start-end"
// @Success 200 {file} binary
// @Success 206 {file} binary
// @Failure 403 {object} errorPayload
// @Failure 404 {object} errorPayload
// @Failure 409 {object} errorPayload
// @Security BearerAuth
// @Router /videos/{id}/stream [get]
func StreamVideo(svc service.VideoService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		caller, ok := callerOf(c)
		if !ok {
			return unauthorized(c)
		}
		id, ok := videoID(c)
		if !ok {
			return writeError(c, fiber.StatusBadRequest, "INVALID_ID", "invalid id format")
		}

		d, err := svc.Open(c.UserContext(), caller, id, c.Get(fiber.HeaderRange))
		if err != nil {
			return writeServiceError(c, err)
		}

		c.Set(fiber.HeaderContentType, d.ContentType)
		c.Set(fiber.HeaderAcceptRanges, "bytes")
		status := fiber.StatusOK
		if d.Partial() {
			status = fiber.StatusPartialContent
			c.Set(fiber.HeaderContentRange, d.ContentRange())
		}
		c.Status(status)
		// fasthttp closes the body once it has been written.
		c.Context().SetBodyStream(d.Body, int(d.ContentLength))
		return nil
	}
}
