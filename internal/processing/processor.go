// Package processing drives one video through intake, metadata extraction
// and screening. Each stage persists the record before its event is
// published, so storage never shows progress behind what observers saw.
package processing

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"videoapi/internal/events"
	"videoapi/internal/metrics"
	"videoapi/internal/model"
	"videoapi/internal/probe"
	"videoapi/internal/repository"
	"videoapi/internal/screening"
)

// Stage labels carried on progress events.
const (
	StageIntake       = "intake acknowledged"
	StageMetadata     = "extracting metadata"
	StageMetadataDone = "metadata extracted"
	StageAnalysis     = "running analysis"
	StageCompleted    = "processing completed"
	StageFailed       = "processing failed"
)

const (
	resultCompleted = "completed"
	resultFailed    = "failed"
	resultAborted   = "aborted"
)

var (
	ErrAlreadyRunning = errors.New("processing already running for video")
	ErrNotPending     = errors.New("video is not pending")

	errVanished = errors.New("video record vanished")
)

// ProbeError reports that metadata could not be read from the stored bytes.
type ProbeError struct {
	Err error
}

func (e *ProbeError) Error() string { return "metadata probe failed: " + e.Err.Error() }
func (e *ProbeError) Unwrap() error { return e.Err }

// Presigner issues a URL the prober can read the stored object from.
type Presigner interface {
	PresignGet(ctx context.Context, key string, expiry time.Duration) (string, error)
}

// Deps are the collaborators a Processor needs.
type Deps struct {
	Videos    repository.VideoRepository
	Store     Presigner
	Prober    probe.Prober
	Engine    *screening.Engine
	Publisher events.Publisher
	Metrics   *metrics.Metrics
}

// Processor runs processing for many videos concurrently but never more
// than once at a time for the same video.
type Processor struct {
	videos  repository.VideoRepository
	store   Presigner
	prober  probe.Prober
	engine  *screening.Engine
	pub     events.Publisher
	metrics *metrics.Metrics
	log     zerolog.Logger
	tracer  trace.Tracer

	// StageDelay paces the pipeline between stages; zero disables it.
	StageDelay time.Duration
	// URLTTL bounds the lifetime of the presigned URL handed to the prober.
	URLTTL time.Duration

	mu       sync.Mutex
	inflight map[string]struct{}
	wg       sync.WaitGroup
}

func New(d Deps, log zerolog.Logger) *Processor {
	engine := d.Engine
	if engine == nil {
		engine = screening.NewEngine()
	}
	return &Processor{
		videos:   d.Videos,
		store:    d.Store,
		prober:   d.Prober,
		engine:   engine,
		pub:      d.Publisher,
		metrics:  d.Metrics,
		log:      log.With().Str("component", "processing").Logger(),
		tracer:   otel.Tracer("videoapi/internal/processing"),
		URLTTL:   15 * time.Minute,
		inflight: make(map[string]struct{}),
	}
}

func (p *Processor) claim(id string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, busy := p.inflight[id]; busy {
		return false
	}
	p.inflight[id] = struct{}{}
	return true
}

func (p *Processor) release(id string) {
	p.mu.Lock()
	delete(p.inflight, id)
	p.mu.Unlock()
}

// Running reports whether a run for id is in flight.
func (p *Processor) Running(id string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, ok := p.inflight[id]
	return ok
}

// Start runs Advance in the background. Use Wait to drain runs on shutdown.
func (p *Processor) Start(id string) {
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		_ = p.Advance(context.Background(), id)
	}()
}

// Wait blocks until every run started with Start has returned or ctx is done.
func (p *Processor) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Advance runs a pending video to completed or failed. A failure is stored
// on the record and published before Advance returns it. A record deleted
// mid-run ends the run quietly with a nil error. If the move to processing
// cannot be persisted, the record is left pending and nothing is published.
func (p *Processor) Advance(ctx context.Context, id string) error {
	if !p.claim(id) {
		p.log.Warn().Str("video_id", id).Msg("processing already running")
		return ErrAlreadyRunning
	}
	defer p.release(id)

	ctx, span := p.tracer.Start(ctx, "processing.Advance", trace.WithAttributes(attribute.String("video.id", id)))
	defer span.End()

	v, err := p.videos.FindByID(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		p.vanished(id, "load")
		return nil
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "load failed")
		return fmt.Errorf("load video: %w", err)
	}
	if v.State != model.StatePending {
		p.log.Warn().Str("video_id", id).Str("state", string(v.State)).Msg("refusing to process non-pending video")
		return ErrNotPending
	}

	r := &run{p: p, video: v, span: span}
	err = r.execute(ctx)
	switch {
	case err == nil:
		p.metrics.RunFinished(resultCompleted)
		return nil
	case errors.Is(err, errVanished):
		return nil
	}

	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	if r.video.State == model.StatePending {
		// failed is only reachable from processing; the record stays pending.
		p.metrics.RunFinished(resultFailed)
		p.log.Error().Err(err).Str("video_id", id).Msg("processing did not start")
		return err
	}
	if ferr := r.fail(context.WithoutCancel(ctx), err); errors.Is(ferr, errVanished) {
		return nil
	}
	p.metrics.RunFinished(resultFailed)
	return err
}

func (p *Processor) vanished(id, at string) {
	p.metrics.RunFinished(resultAborted)
	p.log.Info().Str("video_id", id).Str("at", at).Msg("video deleted during processing, stopping")
}

func (p *Processor) pause(ctx context.Context) error {
	if p.StageDelay <= 0 {
		return nil
	}
	t := time.NewTimer(p.StageDelay)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// run is the state of one Advance call.
type run struct {
	p     *Processor
	video *model.Video
	span  trace.Span
}

func (r *run) execute(ctx context.Context) error {
	p := r.p

	processing := model.StateProcessing
	if err := r.step(ctx, StageIntake, model.VideoUpdate{State: &processing, Progress: intPtr(0)}); err != nil {
		return err
	}
	if err := p.pause(ctx); err != nil {
		return err
	}

	if err := r.step(ctx, StageMetadata, model.VideoUpdate{Progress: intPtr(25)}); err != nil {
		return err
	}
	started := time.Now()
	md, err := r.probe(ctx)
	p.metrics.ObserveStage("metadata", time.Since(started))
	if err != nil {
		return err
	}
	if err := r.step(ctx, StageMetadataDone, model.VideoUpdate{
		Progress: intPtr(50),
		Duration: &md.Duration,
		Width:    &md.Width,
		Height:   &md.Height,
	}); err != nil {
		return err
	}
	if err := p.pause(ctx); err != nil {
		return err
	}

	started = time.Now()
	res := p.engine.Evaluate(screening.Input{
		Name:     r.video.OriginalName,
		Duration: md.Duration,
		Size:     r.video.Size,
	})
	p.metrics.ObserveStage("analysis", time.Since(started))
	analysis := model.VideoUpdate{Progress: intPtr(75), Disposition: &res.Disposition}
	if reason := res.Reason(); reason != "" {
		analysis.DispositionReason = &reason
	}
	if err := r.step(ctx, StageAnalysis, analysis); err != nil {
		return err
	}
	p.metrics.Disposition(string(res.Disposition))
	if err := p.pause(ctx); err != nil {
		return err
	}

	completed := model.StateCompleted
	now := time.Now().UTC()
	return r.step(ctx, StageCompleted, model.VideoUpdate{State: &completed, Progress: intPtr(100), ProcessedAt: &now})
}

func (r *run) probe(ctx context.Context) (probe.Metadata, error) {
	url, err := r.p.store.PresignGet(ctx, r.video.StoragePath, r.p.URLTTL)
	if err != nil {
		return probe.Metadata{}, &ProbeError{Err: fmt.Errorf("presign: %w", err)}
	}
	md, err := r.p.prober.Probe(ctx, url)
	if err != nil {
		return probe.Metadata{}, &ProbeError{Err: err}
	}
	return md, nil
}

// step persists u, then publishes the resulting state.
func (r *run) step(ctx context.Context, stage string, u model.VideoUpdate) error {
	updated, err := r.p.videos.Update(ctx, r.video.ID, u)
	if errors.Is(err, repository.ErrNotFound) {
		r.p.vanished(r.video.ID, stage)
		return errVanished
	}
	if err != nil {
		return fmt.Errorf("persist %q: %w", stage, err)
	}
	r.video = updated

	ev := model.ProgressEvent{
		VideoID:  updated.ID,
		TenantID: updated.TenantID,
		Status:   updated.State,
		Progress: updated.Progress,
		Stage:    stage,
	}
	if updated.State == model.StateCompleted {
		ev.Disposition = updated.Disposition
		if updated.DispositionReason != nil {
			ev.DispositionReason = *updated.DispositionReason
		}
	}
	r.span.AddEvent(stage, trace.WithAttributes(attribute.Int("progress", updated.Progress)))
	r.p.pub.Publish(ev, events.Partitions(ev)...)

	r.p.log.Info().
		Str("video_id", updated.ID).
		Str("tenant_id", updated.TenantID).
		Str("state", string(updated.State)).
		Int("progress", updated.Progress).
		Str("stage", stage).
		Msg("processing transition")
	return nil
}

// fail records cause on the video. Progress stays where the last stage left it.
func (r *run) fail(ctx context.Context, cause error) error {
	reason := cause.Error()
	failed := model.StateFailed
	updated, err := r.p.videos.Update(ctx, r.video.ID, model.VideoUpdate{State: &failed, FailureReason: &reason})
	if errors.Is(err, repository.ErrNotFound) {
		r.p.vanished(r.video.ID, StageFailed)
		return errVanished
	}
	if err != nil {
		r.p.log.Error().Err(err).Str("video_id", r.video.ID).Str("cause", reason).Msg("could not record processing failure")
		updated = r.video
	}

	ev := model.ProgressEvent{
		VideoID:  updated.ID,
		TenantID: updated.TenantID,
		Status:   model.StateFailed,
		Progress: updated.Progress,
		Stage:    StageFailed,
		Error:    reason,
	}
	r.p.pub.Publish(ev, events.Partitions(ev)...)

	r.p.log.Error().
		Str("video_id", updated.ID).
		Str("tenant_id", updated.TenantID).
		Str("state", string(model.StateFailed)).
		Int("progress", updated.Progress).
		Str("error", reason).
		Msg("processing failed")
	return nil
}

func intPtr(v int) *int { return &v }
