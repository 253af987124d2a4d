package repository

import (
	"context"

	"videoapi/internal/model"
)

// VideoRepository defines data access for video records. No business logic here.
type VideoRepository interface {
	// Create inserts a new video record and returns the stored row.
	Create(ctx context.Context, v *model.Video) (*model.Video, error)

	// FindByID returns a video by its ID, or ErrNotFound.
	FindByID(ctx context.Context, id string) (*model.Video, error)

	// List returns videos matching the filter, newest first, with a total count.
	List(ctx context.Context, f model.VideoFilter, pq PageQuery) (*PageResult[model.Video], error)

	// Update applies a partial update atomically and returns the updated row, or ErrNotFound.
	Update(ctx context.Context, id string, u model.VideoUpdate) (*model.Video, error)

	// Delete removes a video by ID. It returns nil if the row did not exist.
	Delete(ctx context.Context, id string) error
}
