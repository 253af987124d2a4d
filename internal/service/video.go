package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"

	"videoapi/internal/access"
	"videoapi/internal/model"
	"videoapi/internal/repository"
	"videoapi/internal/storage"
)

const (
	defaultLimit = 10
	maxLimit     = 100
	sniffBytes   = 3072
)

var allowedMIMEs = []string{
	"video/mp4",
	"video/quicktime",
	"video/x-msvideo",
	"video/webm",
	"video/x-matroska",
}

var extMIMEs = map[string]string{
	".mp4":  "video/mp4",
	".mov":  "video/quicktime",
	".avi":  "video/x-msvideo",
	".webm": "video/webm",
	".mkv":  "video/x-matroska",
}

// UploadInput is a video file received from a client.
type UploadInput struct {
	Reader   io.Reader
	Filename string
	Size     int64
	// TenantID optionally places the video in another user's partition.
	// Only admins and editors may set it.
	TenantID string
}

// StoredObject describes bytes already written to object storage.
type StoredObject struct {
	Key          string
	OriginalName string
	Size         int64
	ContentType  string
}

// VideoQuery filters a listing. An empty TenantID means the caller's own
// partition, or every partition for an admin.
type VideoQuery struct {
	TenantID    string
	State       string
	Disposition string
	Limit       int
	Offset      int
}

// VideoListResult is the service-level DTO for paginated videos.
type VideoListResult struct {
	Items  []model.Video `json:"data"`
	Total  int           `json:"total"`
	Limit  int           `json:"limit"`
	Offset int           `json:"offset"`
}

// Dispatcher runs processing for a submitted video in the background.
type Dispatcher interface {
	Start(id string)
}

// VideoService defines the use cases for handling videos. Every read and
// write is gated by access.Allow against the video's tenant.
type VideoService interface {
	// Upload stores the content, then submits it. The stored object is
	// removed again if the record cannot be created.
	Upload(ctx context.Context, caller access.Caller, in UploadInput) (*model.Video, error)

	// Submit creates the pending record for stored bytes and dispatches processing.
	Submit(ctx context.Context, obj StoredObject, ownerID, tenantID string) (*model.Video, error)

	List(ctx context.Context, caller access.Caller, q VideoQuery) (*VideoListResult, error)

	Get(ctx context.Context, caller access.Caller, id string) (*model.Video, error)

	// Delete removes stored bytes, then the record. Admins and editors only.
	Delete(ctx context.Context, caller access.Caller, id string) error

	// Open authorizes the caller and opens the video for streaming, honoring
	// a single byte range. It fails with ErrNotFound, ErrForbidden or
	// ErrNotReady in that order of precedence.
	Open(ctx context.Context, caller access.Caller, id, rangeHeader string) (*Delivery, error)
}

type videoService struct {
	store    storage.Storage
	videos   repository.VideoRepository
	users    repository.UserRepository
	dispatch Dispatcher
	now      func() time.Time
}

func NewVideoService(store storage.Storage, videos repository.VideoRepository, users repository.UserRepository, dispatch Dispatcher) VideoService {
	return &videoService{
		store:    store,
		videos:   videos,
		users:    users,
		dispatch: dispatch,
		now:      time.Now,
	}
}

// detectType sniffs the leading bytes and falls back to the file extension.
func detectType(head []byte, filename string) (string, bool) {
	detected := mimetype.Detect(head)
	for _, allowed := range allowedMIMEs {
		if detected.Is(allowed) {
			return allowed, true
		}
	}
	if ct, ok := extMIMEs[strings.ToLower(filepath.Ext(filename))]; ok {
		return ct, true
	}
	return "", false
}

func (s *videoService) resolveUploadTenant(ctx context.Context, caller access.Caller, requested string) (string, error) {
	if requested == "" || !caller.HasRole(model.RoleAdmin, model.RoleEditor) {
		return caller.TenantID, nil
	}
	if _, err := s.users.FindByID(ctx, requested); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return "", ErrInvalidTenant
		}
		return "", fmt.Errorf("lookup tenant: %w", err)
	}
	return requested, nil
}

func (s *videoService) Upload(ctx context.Context, caller access.Caller, in UploadInput) (*model.Video, error) {
	if in.Reader == nil {
		return nil, ErrReaderNil
	}
	if in.Size == 0 {
		return nil, ErrEmptyFile
	}

	tenant, err := s.resolveUploadTenant(ctx, caller, in.TenantID)
	if err != nil {
		return nil, err
	}

	head := make([]byte, sniffBytes)
	n, err := io.ReadFull(in.Reader, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("read upload: %w", err)
	}
	head = head[:n]
	if n == 0 {
		return nil, ErrEmptyFile
	}
	contentType, ok := detectType(head, in.Filename)
	if !ok {
		return nil, ErrUnsupportedType
	}

	ext := strings.ToLower(filepath.Ext(in.Filename))
	key := filepath.ToSlash(filepath.Join("videos", uuid.NewString()+ext))

	info, err := s.store.Put(ctx, key, io.MultiReader(bytes.NewReader(head), in.Reader), storage.PutObjectOptions{
		Size:        in.Size,
		ContentType: contentType,
		Metadata: map[string]string{
			"original-filename": in.Filename,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("upload to storage: %w", err)
	}

	v, err := s.Submit(ctx, StoredObject{
		Key:          info.Key,
		OriginalName: in.Filename,
		Size:         info.Size,
		ContentType:  contentType,
	}, caller.UserID, tenant)
	if err != nil {
		if delErr := s.store.Delete(ctx, key); delErr != nil {
			return nil, fmt.Errorf("%w; rollback delete failed: %v", err, delErr)
		}
		return nil, err
	}
	return v, nil
}

func (s *videoService) Submit(ctx context.Context, obj StoredObject, ownerID, tenantID string) (*model.Video, error) {
	v := &model.Video{
		ID:           uuid.NewString(),
		TenantID:     tenantID,
		UploadedBy:   ownerID,
		OriginalName: obj.OriginalName,
		Filename:     filepath.Base(obj.Key),
		StoragePath:  obj.Key,
		Size:         obj.Size,
		ContentType:  obj.ContentType,
		State:        model.StatePending,
		Progress:     0,
		Disposition:  model.DispositionPending,
		CreatedAt:    s.now().UTC(),
	}
	stored, err := s.videos.Create(ctx, v)
	if err != nil {
		return nil, fmt.Errorf("db save failed: %w", err)
	}
	s.dispatch.Start(stored.ID)
	return stored, nil
}

func (s *videoService) List(ctx context.Context, caller access.Caller, q VideoQuery) (*VideoListResult, error) {
	tenant, ok := access.ScopeTenant(caller, q.TenantID)
	if !ok {
		return nil, ErrForbidden
	}

	f := model.VideoFilter{
		TenantID:    tenant,
		State:       model.ProcessingState(q.State),
		Disposition: model.Disposition(q.Disposition),
	}
	if f.State != "" && !f.State.Valid() {
		return nil, fmt.Errorf("%w: state %q", ErrInvalidFilter, q.State)
	}
	if f.Disposition != "" && !f.Disposition.Valid() {
		return nil, fmt.Errorf("%w: disposition %q", ErrInvalidFilter, q.Disposition)
	}

	limit, offset := clampPage(q.Limit, q.Offset)
	res, err := s.videos.List(ctx, f, repository.PageQuery{Limit: limit, Offset: offset})
	if err != nil {
		return nil, err
	}
	return &VideoListResult{Items: res.Items, Total: res.Total, Limit: limit, Offset: offset}, nil
}

func clampPage(limit, offset int) (int, int) {
	if limit <= 0 {
		limit = defaultLimit
	}
	limit = min(limit, maxLimit)
	return limit, max(offset, 0)
}

func (s *videoService) Get(ctx context.Context, caller access.Caller, id string) (*model.Video, error) {
	if id == "" {
		return nil, ErrIDRequired
	}
	v, err := s.videos.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if !access.Allow(caller, v.TenantID) {
		return nil, ErrForbidden
	}
	return v, nil
}

func (s *videoService) Delete(ctx context.Context, caller access.Caller, id string) error {
	v, err := s.Get(ctx, caller, id)
	if err != nil {
		return err
	}
	if !caller.HasRole(model.RoleAdmin, model.RoleEditor) {
		return ErrForbidden
	}
	// Storage first; a failed removal keeps the record that points at the bytes.
	if err := s.store.Delete(ctx, v.StoragePath); err != nil {
		return fmt.Errorf("delete storage: %w", err)
	}
	return s.videos.Delete(ctx, id)
}

func (s *videoService) Open(ctx context.Context, caller access.Caller, id, rangeHeader string) (*Delivery, error) {
	v, err := s.Get(ctx, caller, id)
	if err != nil {
		return nil, err
	}
	if v.State != model.StateCompleted {
		return nil, ErrNotReady
	}

	if r, ok := ParseRange(rangeHeader, v.Size); ok {
		body, err := s.store.GetRange(ctx, v.StoragePath, r.Start, r.End)
		if err != nil {
			return nil, fmt.Errorf("open range: %w", err)
		}
		return &Delivery{
			Body:          body,
			ContentType:   v.ContentType,
			ContentLength: r.Length(),
			Total:         v.Size,
			Range:         &r,
		}, nil
	}

	body, _, err := s.store.Get(ctx, v.StoragePath)
	if err != nil {
		return nil, fmt.Errorf("open object: %w", err)
	}
	return &Delivery{
		Body:          body,
		ContentType:   v.ContentType,
		ContentLength: v.Size,
		Total:         v.Size,
	}, nil
}
