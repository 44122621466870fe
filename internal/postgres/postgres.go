// Package postgres implements the queue repositories on PostgreSQL.
package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/framegrid/queued/internal/queue"
)

// Connect opens a pool against the given database and verifies it with a
// ping.
func Connect(ctx context.Context, databaseURL string) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return pool, nil
}

const renderColumns = `id, user_id, file_id, file_version, frame_start, frame_end, step, slices, pointer_frame, pointer_slice, total_jobs, completed_jobs, subscription_item_id`

const (
	loadQueueSQL = `SELECT ` + renderColumns + ` FROM queue.queue`

	loadRenderSQL = `SELECT ` + renderColumns + ` FROM queue.queue WHERE id = $1`

	storeRenderSQL = `
		INSERT INTO queue.queue (` + renderColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT (user_id, id) DO UPDATE SET
			file_id = EXCLUDED.file_id,
			file_version = EXCLUDED.file_version,
			frame_start = EXCLUDED.frame_start,
			frame_end = EXCLUDED.frame_end,
			step = EXCLUDED.step,
			slices = EXCLUDED.slices,
			pointer_frame = EXCLUDED.pointer_frame,
			pointer_slice = EXCLUDED.pointer_slice,
			total_jobs = EXCLUDED.total_jobs,
			completed_jobs = EXCLUDED.completed_jobs,
			subscription_item_id = EXCLUDED.subscription_item_id`

	updatePointerSQL = `UPDATE queue.queue SET pointer_frame = $1, pointer_slice = $2 WHERE id = $3`

	incrementCompletedSQL = `
		UPDATE queue.queue
		SET completed_jobs = completed_jobs + 1
		WHERE id = $1
		RETURNING ` + renderColumns

	deleteRenderSQL = `DELETE FROM queue.queue WHERE id = $1`

	storeJobSQL = `
		INSERT INTO queue.jobs (user_id, render_id, frame, slice, worker_id)
		VALUES ($1, $2, $3, $4, $5)`

	deleteJobSQL = `DELETE FROM queue.jobs WHERE render_id = $1 AND frame = $2 AND slice = $3`

	countJobsSQL = `SELECT COUNT(*) FROM queue.jobs WHERE render_id = $1`
)

// RenderRepository is the PostgreSQL implementation of
// queue.RenderRepository.
type RenderRepository struct {
	pool *pgxpool.Pool
}

// NewRenderRepository creates a render repository on the given pool.
func NewRenderRepository(pool *pgxpool.Pool) *RenderRepository {
	return &RenderRepository{pool: pool}
}

// scanRender reads one queue.queue row. The uuid columns are rendered
// back to strings for the entity.
func scanRender(row pgx.Row) (*queue.Render, error) {
	var (
		render         queue.Render
		userID, fileID uuid.UUID
	)

	err := row.Scan(
		&render.ID, &userID, &fileID, &render.FileVersion,
		&render.FrameStart, &render.FrameEnd, &render.Step, &render.Slices,
		&render.PointerFrame, &render.PointerSlice,
		&render.TotalJobs, &render.CompletedJobs,
		&render.SubscriptionItemID,
	)
	if err != nil {
		return nil, err
	}

	render.UserID = userID.String()
	render.FileID = fileID.String()
	return &render, nil
}

// LoadQueue implements queue.RenderRepository.
func (r *RenderRepository) LoadQueue(ctx context.Context) ([]*queue.Render, error) {
	rows, err := r.pool.Query(ctx, loadQueueSQL)
	if err != nil {
		return nil, fmt.Errorf("failed to load queue: %w", err)
	}
	defer rows.Close()

	var renders []*queue.Render
	for rows.Next() {
		render, err := scanRender(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan render: %w", err)
		}
		renders = append(renders, render)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to load queue: %w", err)
	}

	return renders, nil
}

// Load implements queue.RenderRepository.
func (r *RenderRepository) Load(ctx context.Context, id string) (*queue.Render, error) {
	render, err := scanRender(r.pool.QueryRow(ctx, loadRenderSQL, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load render %s: %w", id, err)
	}

	return render, nil
}

// Store implements queue.RenderRepository. The uuid-typed identifiers are
// validated here, before they reach the database.
func (r *RenderRepository) Store(ctx context.Context, render *queue.Render) error {
	userID, err := uuid.Parse(render.UserID)
	if err != nil {
		return fmt.Errorf("invalid user id %q: %w", render.UserID, err)
	}
	fileID, err := uuid.Parse(render.FileID)
	if err != nil {
		return fmt.Errorf("invalid file id %q: %w", render.FileID, err)
	}

	_, err = r.pool.Exec(ctx, storeRenderSQL,
		render.ID, userID, fileID, render.FileVersion,
		render.FrameStart, render.FrameEnd, render.Step, render.Slices,
		render.PointerFrame, render.PointerSlice,
		render.TotalJobs, render.CompletedJobs,
		render.SubscriptionItemID,
	)
	if err != nil {
		return fmt.Errorf("failed to store render %s: %w", render.ID, err)
	}

	return nil
}

// UpdatePointer implements queue.RenderRepository.
func (r *RenderRepository) UpdatePointer(ctx context.Context, render *queue.Render) error {
	_, err := r.pool.Exec(ctx, updatePointerSQL, render.PointerFrame, render.PointerSlice, render.ID)
	if err != nil {
		return fmt.Errorf("failed to update pointer for render %s: %w", render.ID, err)
	}

	return nil
}

// IncrementCompletedJobs implements queue.RenderRepository. The increment
// and read-back happen in one statement, so concurrent terminal events
// each observe a distinct counter value.
func (r *RenderRepository) IncrementCompletedJobs(ctx context.Context, id string) (*queue.Render, error) {
	render, err := scanRender(r.pool.QueryRow(ctx, incrementCompletedSQL, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to increment completed jobs for render %s: %w", id, err)
	}

	return render, nil
}

// Delete implements queue.RenderRepository.
func (r *RenderRepository) Delete(ctx context.Context, id string) error {
	if _, err := r.pool.Exec(ctx, deleteRenderSQL, id); err != nil {
		return fmt.Errorf("failed to delete render %s: %w", id, err)
	}

	return nil
}

// JobRepository is the PostgreSQL implementation of queue.JobRepository.
type JobRepository struct {
	pool *pgxpool.Pool
}

// NewJobRepository creates a job repository on the given pool.
func NewJobRepository(pool *pgxpool.Pool) *JobRepository {
	return &JobRepository{pool: pool}
}

// Store implements queue.JobRepository. The unique index on (render_id,
// frame, slice) turns a duplicate reservation into an insert error.
func (j *JobRepository) Store(ctx context.Context, job *queue.Job) error {
	userID, err := uuid.Parse(job.UserID)
	if err != nil {
		return fmt.Errorf("invalid user id %q: %w", job.UserID, err)
	}

	_, err = j.pool.Exec(ctx, storeJobSQL, userID, job.RenderID, job.Frame, job.Slice, job.WorkerID)
	if err != nil {
		return fmt.Errorf("failed to store job %s %d/%d: %w", job.RenderID, job.Frame, job.Slice, err)
	}

	return nil
}

// Delete implements queue.JobRepository.
func (j *JobRepository) Delete(ctx context.Context, renderID string, frame, slice int32) (bool, error) {
	tag, err := j.pool.Exec(ctx, deleteJobSQL, renderID, frame, slice)
	if err != nil {
		return false, fmt.Errorf("failed to delete job %s %d/%d: %w", renderID, frame, slice, err)
	}

	return tag.RowsAffected() > 0, nil
}

// Count implements queue.JobRepository.
func (j *JobRepository) Count(ctx context.Context, renderID string) (int64, error) {
	var count int64
	if err := j.pool.QueryRow(ctx, countJobsSQL, renderID).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count jobs for render %s: %w", renderID, err)
	}

	return count, nil
}
