package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"videoapi/internal/model"
	"videoapi/internal/repository"
)

const videoColumns = `id, tenant_id, uploaded_by, original_name, filename, storage_path, size, content_type,
		processing_state, processing_progress, failure_reason, duration, width, height,
		disposition, disposition_reason, created_at, processed_at`

// VideoPostgres is a PostgreSQL implementation of repository.VideoRepository.
// It uses database/sql with parameterized queries and contains no business logic.
type VideoPostgres struct {
	db *sql.DB
}

// NewVideoPostgres creates a new VideoPostgres repository.
func NewVideoPostgres(db *sql.DB) *VideoPostgres {
	return &VideoPostgres{db: db}
}

var _ repository.VideoRepository = (*VideoPostgres)(nil)

type rowScanner interface {
	Scan(dest ...any) error
}

func scanVideo(row rowScanner) (*model.Video, error) {
	var (
		v                 model.Video
		failureReason     sql.NullString
		duration          sql.NullFloat64
		width, height     sql.NullInt64
		dispositionReason sql.NullString
		processedAt       sql.NullTime
	)
	if err := row.Scan(
		&v.ID,
		&v.TenantID,
		&v.UploadedBy,
		&v.OriginalName,
		&v.Filename,
		&v.StoragePath,
		&v.Size,
		&v.ContentType,
		&v.State,
		&v.Progress,
		&failureReason,
		&duration,
		&width,
		&height,
		&v.Disposition,
		&dispositionReason,
		&v.CreatedAt,
		&processedAt,
	); err != nil {
		return nil, err
	}
	if failureReason.Valid {
		v.FailureReason = &failureReason.String
	}
	if duration.Valid {
		v.Duration = &duration.Float64
	}
	if width.Valid {
		w := int(width.Int64)
		v.Width = &w
	}
	if height.Valid {
		h := int(height.Int64)
		v.Height = &h
	}
	if dispositionReason.Valid {
		v.DispositionReason = &dispositionReason.String
	}
	if processedAt.Valid {
		v.ProcessedAt = &processedAt.Time
	}
	return &v, nil
}

// Create inserts a new video row and returns the stored record.
func (r *VideoPostgres) Create(ctx context.Context, v *model.Video) (*model.Video, error) {
	q := `
		INSERT INTO videos (id, tenant_id, uploaded_by, original_name, filename, storage_path, size, content_type,
			processing_state, processing_progress, disposition, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING ` + videoColumns
	row := r.db.QueryRowContext(ctx, q,
		v.ID,
		v.TenantID,
		v.UploadedBy,
		v.OriginalName,
		v.Filename,
		v.StoragePath,
		v.Size,
		v.ContentType,
		v.State,
		v.Progress,
		v.Disposition,
		v.CreatedAt,
	)
	return scanVideo(row)
}

// FindByID fetches a single video by its ID.
func (r *VideoPostgres) FindByID(ctx context.Context, id string) (*model.Video, error) {
	q := `SELECT ` + videoColumns + ` FROM videos WHERE id = $1`
	v, err := scanVideo(r.db.QueryRowContext(ctx, q, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return v, nil
}

func videoWhere(f model.VideoFilter) (string, []any) {
	var (
		conds []string
		args  []any
	)
	if f.TenantID != "" {
		args = append(args, f.TenantID)
		conds = append(conds, fmt.Sprintf("tenant_id = $%d", len(args)))
	}
	if f.State != "" {
		args = append(args, f.State)
		conds = append(conds, fmt.Sprintf("processing_state = $%d", len(args)))
	}
	if f.Disposition != "" {
		args = append(args, f.Disposition)
		conds = append(conds, fmt.Sprintf("disposition = $%d", len(args)))
	}
	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

// List returns videos using LIMIT/OFFSET pagination and a total count.
func (r *VideoPostgres) List(ctx context.Context, f model.VideoFilter, pq repository.PageQuery) (*repository.PageResult[model.Video], error) {
	where, args := videoWhere(f)

	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM videos`+where, args...).Scan(&total); err != nil {
		return nil, err
	}

	qList := `SELECT ` + videoColumns + ` FROM videos` + where +
		fmt.Sprintf(` ORDER BY created_at DESC, id DESC LIMIT $%d OFFSET $%d`, len(args)+1, len(args)+2)
	rows, err := r.db.QueryContext(ctx, qList, append(args, pq.Limit, pq.Offset)...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]model.Video, 0)
	for rows.Next() {
		v, err := scanVideo(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, *v)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return &repository.PageResult[model.Video]{
		Items: items,
		Total: total,
	}, nil
}

// Update applies the non-nil fields of u in a single statement.
// Columns are always emitted in the same order so statements stay cacheable.
func (r *VideoPostgres) Update(ctx context.Context, id string, u model.VideoUpdate) (*model.Video, error) {
	if u.Empty() {
		return r.FindByID(ctx, id)
	}

	var (
		sets []string
		args []any
	)
	set := func(col string, val any) {
		args = append(args, val)
		sets = append(sets, fmt.Sprintf("%s = $%d", col, len(args)))
	}
	if u.State != nil {
		set("processing_state", *u.State)
	}
	if u.Progress != nil {
		set("processing_progress", *u.Progress)
	}
	if u.FailureReason != nil {
		set("failure_reason", *u.FailureReason)
	}
	if u.Duration != nil {
		set("duration", *u.Duration)
	}
	if u.Width != nil {
		set("width", *u.Width)
	}
	if u.Height != nil {
		set("height", *u.Height)
	}
	if u.Disposition != nil {
		set("disposition", *u.Disposition)
	}
	if u.DispositionReason != nil {
		set("disposition_reason", *u.DispositionReason)
	}
	if u.ProcessedAt != nil {
		set("processed_at", *u.ProcessedAt)
	}
	args = append(args, id)

	q := `UPDATE videos SET ` + strings.Join(sets, ", ") +
		fmt.Sprintf(` WHERE id = $%d RETURNING `, len(args)) + videoColumns
	v, err := scanVideo(r.db.QueryRowContext(ctx, q, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return v, nil
}

// Delete removes a video by ID. It does not return an error if the row does not exist.
func (r *VideoPostgres) Delete(ctx context.Context, id string) error {
	const q = `DELETE FROM videos WHERE id = $1`
	_, err := r.db.ExecContext(ctx, q, id)
	return err
}
