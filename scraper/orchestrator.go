package scraper

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"serpwatch/config"
	"serpwatch/extract"
	"serpwatch/models"
	"serpwatch/services"
)

// ScrapeService is the full surface of the external scraping API the
// pipeline uses: submission plus the poller's result endpoints.
type ScrapeService interface {
	Submit(ctx context.Context, job *models.Job) (string, error)
	ResultSource
}

// Queue is the durable three-pool job queue the orchestrator drains.
type Queue interface {
	Enqueue(job *models.Job) error
	PeekSubmitted() (*models.QueueRecord, error)
	MoveToInProgress(jobID uuid.UUID) error
	MoveToCompleted(jobID uuid.UUID) error
	DrainActive() ([]models.QueueRecord, error)
}

// Tracker is the authoritative per-job status ledger.
type Tracker interface {
	UpsertTracking(ctx context.Context, r *models.JobTrackingRecord) error
	GetTracking(ctx context.Context, jobID uuid.UUID) (*models.JobTrackingRecord, error)
	CreatePipelineLog(ctx context.Context, l *models.PipelineLog) error
}

// Persister stores fetch payloads and extraction output.
type Persister interface {
	StoreResult(ctx context.Context, job *models.Job, kind models.PayloadKind, body []byte) (*models.SerpResult, error)
	StoreExtraction(ctx context.Context, serp *models.SerpResult, data *extract.ExtractedAdsData) (*services.ExtractionResult, error)
	EnqueueRenderings(ctx context.Context, job *models.Job, ads []models.Ad, maxAds int) (int, error)
}

// Orchestrator drains the submitted pool and runs each job through the
// four pipeline stages, keeping the tracking ledger current after every
// stage transition.
type Orchestrator struct {
	cfg     *config.Config
	queue   Queue
	tracker Tracker
	persist Persister
	service ScrapeService

	// optional nudge for the rendering worker after renderings enqueue
	renderTrigger func()

	mu     sync.Mutex
	paused bool
}

func NewOrchestrator(cfg *config.Config, queue Queue, tracker Tracker, persist Persister, service ScrapeService) *Orchestrator {
	return &Orchestrator{
		cfg:     cfg,
		queue:   queue,
		tracker: tracker,
		persist: persist,
		service: service,
	}
}

// SetRenderTrigger registers a callback invoked whenever a job enqueues
// rendering work.
func (o *Orchestrator) SetRenderTrigger(fn func()) {
	o.renderTrigger = fn
}

func (o *Orchestrator) Pause() {
	o.mu.Lock()
	o.paused = true
	o.mu.Unlock()
	log.Println("Pipeline paused")
}

func (o *Orchestrator) Resume() {
	o.mu.Lock()
	o.paused = false
	o.mu.Unlock()
	log.Println("Pipeline resumed")
}

func (o *Orchestrator) IsPaused() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.paused
}

// RunBatch drains the submitted pool. With Concurrency 1 jobs run
// strictly in enqueue order; above 1 they run through a bounded
// errgroup. Queue invariant violations abort the batch.
func (o *Orchestrator) RunBatch(ctx context.Context) error {
	if o.IsPaused() {
		log.Println("Pipeline is paused, skipping batch")
		return nil
	}

	concurrency := o.cfg.Pipeline.Concurrency
	if concurrency < 1 {
		concurrency = 1
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)

	processed := 0
	for {
		if err := gctx.Err(); err != nil {
			break
		}
		if o.IsPaused() {
			break
		}

		record, err := o.queue.PeekSubmitted()
		if err != nil {
			return fmt.Errorf("peek submitted pool: %w", err)
		}
		if record == nil {
			break
		}

		job := record.Job
		if err := o.queue.MoveToInProgress(job.ID); err != nil {
			// an ErrNotInPool here means the queue's invariant broke;
			// abort the batch rather than guessing at the pool state
			return fmt.Errorf("claim job %s: %w", job.ID, err)
		}

		processed++
		g.Go(func() error {
			o.processJob(gctx, &job)
			if err := o.queue.MoveToCompleted(job.ID); err != nil {
				// a concurrent cancel drains the pools itself; anything
				// else is a broken queue invariant and kills the batch
				if o.jobCancelled(gctx, job.ID) {
					return nil
				}
				return fmt.Errorf("finalize job %s: %w", job.ID, err)
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return err
	}

	log.Printf("Batch finished: %d job(s) processed", processed)
	return nil
}

// processJob runs one job through api_call, serp_processing,
// ads_extraction and rendering. Stage failures mark the tracking record
// and short-circuit per the stage's severity; the job itself always
// reaches the completed pool.
func (o *Orchestrator) processJob(ctx context.Context, job *models.Job) {
	tracking := models.NewJobTrackingRecord(job)
	o.pipelineLog(ctx, job, models.LogLevelInfo, fmt.Sprintf("Processing job %q in %s", job.Query, job.Location))

	// Stage 1: api_call (submission + polling)
	tracking.APICallStatus = models.StageInProgress
	o.saveTracking(ctx, tracking)

	externalID, err := o.service.Submit(ctx, job)
	if err != nil {
		o.failStage(ctx, job, tracking, &tracking.APICallStatus, fmt.Errorf("submit: %w", err))
		return
	}
	tracking.ExternalID = externalID
	o.saveTracking(ctx, tracking)

	payload, err := o.awaitResult(ctx, job, externalID)
	if err != nil {
		o.failStage(ctx, job, tracking, &tracking.APICallStatus, err)
		return
	}
	// A cancel_batch while we were polling marked the ledger failed.
	// Check before touching the ledger again: the late result is
	// discarded, never written over the cancellation.
	if o.jobCancelled(ctx, job.ID) {
		o.pipelineLog(ctx, job, models.LogLevelWarn, "Job was cancelled while polling, discarding result")
		return
	}

	tracking.APICallStatus = models.StageSuccess
	o.saveTracking(ctx, tracking)

	// Stage 2: serp_processing
	tracking.SerpProcessingStatus = models.StageInProgress
	o.saveTracking(ctx, tracking)

	serp, err := o.persist.StoreResult(ctx, job, payload.Kind, payload.Body)
	if err != nil {
		o.failStage(ctx, job, tracking, &tracking.SerpProcessingStatus, fmt.Errorf("store result: %w", err))
		return
	}
	tracking.SerpID = &serp.ID
	tracking.SerpProcessingStatus = models.StageSuccess
	o.saveTracking(ctx, tracking)

	// Stage 3: ads_extraction. Extraction itself never fails; only
	// persisting its output can.
	tracking.AdsExtractionStatus = models.StageInProgress
	o.saveTracking(ctx, tracking)

	data := extract.FromPayload(payload.Body, job.Platform)
	extraction, err := o.persist.StoreExtraction(ctx, serp, data)
	if extraction != nil {
		tracking.NewAdsCount = extraction.NewAds
		tracking.NewAdvertisersCount = extraction.NewAdvertisers
	}
	if err != nil {
		o.failStage(ctx, job, tracking, &tracking.AdsExtractionStatus, fmt.Errorf("store extraction: %w", err))
		return
	}
	tracking.AdsExtractionStatus = models.StageSuccess
	o.saveTracking(ctx, tracking)

	o.pipelineLog(ctx, job, models.LogLevelInfo,
		fmt.Sprintf("Extracted %d ad(s), %d new advertiser(s)", extraction.NewAds, extraction.NewAdvertisers))

	// Stage 4: rendering. Enqueue only; capture runs asynchronously and
	// its failures stay on the individual rendering rows.
	tracking.RenderingStatus = models.StageInProgress
	o.saveTracking(ctx, tracking)

	enqueued, err := o.persist.EnqueueRenderings(ctx, job, extraction.Ads, o.cfg.Pipeline.MaxRenderedAds)
	if err != nil {
		o.failStage(ctx, job, tracking, &tracking.RenderingStatus, fmt.Errorf("enqueue renderings: %w", err))
		return
	}
	tracking.RenderingStatus = models.StageSuccess
	o.saveTracking(ctx, tracking)

	if enqueued > 0 && o.renderTrigger != nil {
		o.renderTrigger()
	}

	o.pipelineLog(ctx, job, models.LogLevelInfo,
		fmt.Sprintf("Job finished with status %s (%d rendering(s) enqueued)", tracking.Status, enqueued))
}

// awaitResult polls with the platform's budget, falling back to the
// pipeline-wide defaults.
func (o *Orchestrator) awaitResult(ctx context.Context, job *models.Job, externalID string) (*ResultPayload, error) {
	maxAttempts, delay := o.cfg.PollBudget(job.Platform)
	poller := NewPoller(o.service, DefaultPolicy(maxAttempts, delay))
	return poller.AwaitResult(ctx, externalID)
}

// failStage marks one stage failed, records the error on the ledger and
// logs it to the pipeline trail.
func (o *Orchestrator) failStage(ctx context.Context, job *models.Job, tracking *models.JobTrackingRecord, stage *models.StageStatus, stageErr error) {
	*stage = models.StageFailed
	tracking.ErrorMessage = stageErr.Error()
	o.saveTracking(ctx, tracking)
	o.pipelineLog(ctx, job, models.LogLevelError, stageErr.Error())
}

// jobCancelled reports whether the ledger already holds a terminal
// failed status for the job, written by a concurrent cancellation.
func (o *Orchestrator) jobCancelled(ctx context.Context, jobID uuid.UUID) bool {
	current, err := o.tracker.GetTracking(ctx, jobID)
	return err == nil && current != nil && current.Status == models.JobFailed
}

func (o *Orchestrator) saveTracking(ctx context.Context, tracking *models.JobTrackingRecord) {
	tracking.Status = tracking.DeriveStatus()
	if err := o.tracker.UpsertTracking(ctx, tracking); err != nil {
		log.Printf("Failed to upsert tracking for job %s: %v", tracking.JobID, err)
	}
}

func (o *Orchestrator) pipelineLog(ctx context.Context, job *models.Job, level models.LogLevel, message string) {
	log.Printf("[%s] %s", job.Platform, message)

	entry := &models.PipelineLog{
		JobID:     &job.ID,
		Timestamp: time.Now(),
		Level:     level,
		Message:   message,
		Platform:  job.Platform,
	}
	if err := o.tracker.CreatePipelineLog(ctx, entry); err != nil {
		log.Printf("Failed to persist pipeline log: %v", err)
	}
}

// SeedPlatform enqueues one job per watched query+location pair of the
// given platform, carrying the platform's default options.
func (o *Orchestrator) SeedPlatform(ctx context.Context, platformID string) (int, error) {
	platform, ok := o.cfg.Platforms[platformID]
	if !ok {
		return 0, fmt.Errorf("unknown platform: %s", platformID)
	}

	seeded := 0
	for _, entry := range platform.Watch {
		job := &models.Job{
			ID:          uuid.New(),
			Query:       entry.Query,
			Location:    entry.Location,
			Platform:    platform.ID,
			Options:     platform.Options,
			SubmittedAt: time.Now(),
		}
		if err := o.queue.Enqueue(job); err != nil {
			return seeded, fmt.Errorf("enqueue %q: %w", entry.Query, err)
		}
		o.saveTracking(ctx, models.NewJobTrackingRecord(job))
		seeded++
	}

	if seeded > 0 {
		log.Printf("Seeded %d job(s) for platform %s", seeded, platformID)
	}
	return seeded, nil
}

// SeedAll seeds every configured platform's watch list
func (o *Orchestrator) SeedAll(ctx context.Context) (int, error) {
	total := 0
	for id := range o.cfg.Platforms {
		n, err := o.SeedPlatform(ctx, id)
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

// HandleCommand dispatches a queue command aimed at the pipeline
func (o *Orchestrator) HandleCommand(ctx context.Context, cmd *models.Command, params *models.CommandParams) error {
	switch cmd.Command {
	case models.CmdRunNow:
		if _, err := o.SeedAll(ctx); err != nil {
			return err
		}
		return o.RunBatch(ctx)
	case models.CmdRunPlatform:
		if params.Platform == "" {
			return fmt.Errorf("run_platform requires a platform param")
		}
		if _, err := o.SeedPlatform(ctx, params.Platform); err != nil {
			return err
		}
		return o.RunBatch(ctx)
	case models.CmdPause:
		o.Pause()
		return nil
	case models.CmdResume:
		o.Resume()
		return nil
	case models.CmdCancelBatch:
		return o.CancelBatch(ctx, params.Reason)
	default:
		return fmt.Errorf("unknown command: %s", cmd.Command)
	}
}

// CancelBatch drains both active pools and marks every drained job
// failed in the ledger. In-flight pollers notice the failed status and
// discard their late results.
func (o *Orchestrator) CancelBatch(ctx context.Context, reason string) error {
	if reason == "" {
		reason = "batch cancelled by operator"
	}

	drained, err := o.queue.DrainActive()
	if err != nil {
		return fmt.Errorf("drain queue: %w", err)
	}

	for i := range drained {
		job := drained[i].Job
		tracking, err := o.tracker.GetTracking(ctx, job.ID)
		if err != nil {
			log.Printf("Failed to load tracking for cancelled job %s: %v", job.ID, err)
			continue
		}
		if tracking == nil {
			tracking = models.NewJobTrackingRecord(&job)
		}
		if tracking.Status.Terminal() {
			continue
		}

		tracking.Status = models.JobFailed
		tracking.ErrorMessage = reason
		if err := o.tracker.UpsertTracking(ctx, tracking); err != nil {
			log.Printf("Failed to mark cancelled job %s: %v", job.ID, err)
			continue
		}
		o.pipelineLog(ctx, &job, models.LogLevelWarn, fmt.Sprintf("Cancelled: %s", reason))
	}

	log.Printf("Cancelled batch: %d job(s) drained", len(drained))
	return nil
}
