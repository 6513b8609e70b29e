// Package worker provides a background job processing system using goroutines.
//
// Go Pattern: Goroutines and channels are Go's concurrency primitives.
// A goroutine is like a lightweight thread (thousands are fine), and
// channels are typed pipes for communication between goroutines.
//
// This worker pool pattern is very common in Go:
// 1. Create a buffered channel as a job queue
// 2. Spawn N worker goroutines that read from the channel
// 3. Send jobs to the channel from your HTTP handlers
// 4. Workers process jobs concurrently
//
// The pipeline stages are order-sensitive (classify before group, group
// before render), so production runs with a single worker; the pool
// shape still allows scaling the independent stages later.
package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/briahnloo/content-generator-stitching/internal/services/classifier"
	"github.com/briahnloo/content-generator-stitching/internal/services/downloader"
	"github.com/briahnloo/content-generator-stitching/internal/services/grouper"
	"github.com/briahnloo/content-generator-stitching/internal/services/publisher"
	"github.com/briahnloo/content-generator-stitching/internal/services/renderer"
	"github.com/briahnloo/content-generator-stitching/internal/services/uploadrouter"
)

// JobType identifies what kind of work a job represents.
type JobType string

const (
	JobDownload     JobType = "download"
	JobClassify     JobType = "classify"
	JobGroup        JobType = "group"
	JobGroupMega    JobType = "group_mega"
	JobRender       JobType = "render"
	JobRoute        JobType = "route"
	JobDispatch     JobType = "dispatch"
	JobRetryUploads JobType = "retry_uploads"
)

// Job represents a unit of work to be processed by a worker.
type Job struct {
	ID        string
	Type      JobType
	Payload   json.RawMessage // Flexible payload — different job types need different data
	CreatedAt time.Time
}

// LimitPayload bounds how many records a stage touches in one run.
// Zero means no bound.
type LimitPayload struct {
	Limit int `json:"limit"`
}

// GroupPayload controls one grouping run.
type GroupPayload struct {
	MaxCompilations     int `json:"max_compilations"`
	ClipsPerCompilation int `json:"clips_per_compilation"`
}

// MegaPayload controls one mega-compilation run.
type MegaPayload struct {
	CompilationType string `json:"compilation_type"`
	NumSources      int    `json:"num_sources"`
	MaxCompilations int    `json:"max_compilations"`
}

// Stages are the pipeline services the workers drive.
type Stages struct {
	Downloader *downloader.Service
	Classifier *classifier.Service
	Grouper    *grouper.Service
	Renderer   *renderer.Service
	Router     *uploadrouter.Service
	Dispatcher *publisher.Dispatcher
}

// Pool manages a pool of worker goroutines.
type Pool struct {
	// Go Pattern: Channels are the backbone of Go concurrency.
	// This buffered channel acts as our job queue.
	// Buffered means it can hold `queueSize` jobs before blocking.
	jobs    chan Job
	workers int
	stages  Stages

	// Go Pattern: sync.WaitGroup tracks running goroutines.
	// We call wg.Add(1) when starting a worker, wg.Done() when it finishes,
	// and wg.Wait() blocks until all workers are done (used for graceful shutdown).
	wg sync.WaitGroup

	// Go Pattern: context.Context with cancel for graceful shutdown.
	// When we call cancel(), all workers' contexts are cancelled.
	ctx    context.Context
	cancel context.CancelFunc
}

// NewPool creates a new worker pool.
func NewPool(workers, queueSize int, stages Stages) *Pool {
	ctx, cancel := context.WithCancel(context.Background())
	return &Pool{
		jobs:    make(chan Job, queueSize), // Buffered channel
		workers: workers,
		stages:  stages,
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Start launches the worker goroutines.
// Go Pattern: The `go` keyword starts a new goroutine (lightweight thread).
// Each worker runs in its own goroutine, reading from the shared jobs channel.
func (p *Pool) Start() {
	log.Printf("🚀 Starting %d background workers", p.workers)
	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go p.worker(i) // Launch worker goroutine
	}
}

// Stop gracefully shuts down all workers.
// Go Pattern: Close the channel + cancel the context + wait for completion.
func (p *Pool) Stop() {
	log.Println("⏹️  Stopping workers...")
	p.cancel()    // Signal all workers to stop
	close(p.jobs) // Close the channel (workers will drain remaining jobs)
	p.wg.Wait()   // Wait for all workers to finish
	log.Println("✅ All workers stopped")
}

// Submit adds a job to the queue.
// Returns an error if the queue is full (non-blocking).
func (p *Pool) Submit(job Job) error {
	// Go Pattern: `select` with `default` makes channel operations non-blocking.
	// Without default, sending to a full channel would block the HTTP handler.
	select {
	case p.jobs <- job:
		log.Printf("📥 Job queued: %s (type: %s)", job.ID, job.Type)
		return nil
	default:
		return fmt.Errorf("job queue is full; try again later")
	}
}

// QueueSize returns the current number of jobs in the queue.
func (p *Pool) QueueSize() int {
	return len(p.jobs)
}

// WorkerCount returns the number of workers.
func (p *Pool) WorkerCount() int {
	return p.workers
}

// worker is the main loop for each worker goroutine.
// It reads jobs from the channel and processes them.
func (p *Pool) worker(id int) {
	defer p.wg.Done() // Signal completion when this worker exits

	log.Printf("👷 Worker %d started", id)

	// Go Pattern: `range` over a channel reads values until the channel is closed.
	// This is the idiomatic way to consume from a channel.
	for job := range p.jobs {
		// Check if we should stop
		select {
		case <-p.ctx.Done():
			log.Printf("👷 Worker %d shutting down", id)
			return
		default:
			// Continue processing
		}

		log.Printf("👷 Worker %d processing job: %s (type: %s)", id, job.ID, job.Type)

		var err error
		switch job.Type {
		case JobDownload:
			err = p.processDownload(job)
		case JobClassify:
			err = p.processClassify(job)
		case JobGroup:
			err = p.processGroup(job)
		case JobGroupMega:
			err = p.processGroupMega(job)
		case JobRender:
			err = p.processRender(job)
		case JobRoute:
			err = p.processRoute(job)
		case JobDispatch:
			err = p.processDispatch(job)
		case JobRetryUploads:
			err = p.processRetryUploads(job)
		default:
			log.Printf("❌ Worker %d: unknown job type: %s", id, job.Type)
		}

		if err != nil {
			log.Printf("❌ Worker %d: job %s failed: %v", id, job.ID, err)
		} else {
			log.Printf("✅ Worker %d: job %s completed", id, job.ID)
		}
	}

	log.Printf("👷 Worker %d stopped", id)
}

func (p *Pool) processDownload(job Job) error {
	var payload LimitPayload
	if len(job.Payload) > 0 {
		if err := json.Unmarshal(job.Payload, &payload); err != nil {
			return fmt.Errorf("invalid download payload: %w", err)
		}
	}
	_, _, err := p.stages.Downloader.DownloadDiscovered(p.ctx, payload.Limit)
	return err
}

func (p *Pool) processClassify(job Job) error {
	var payload LimitPayload
	if len(job.Payload) > 0 {
		if err := json.Unmarshal(job.Payload, &payload); err != nil {
			return fmt.Errorf("invalid classify payload: %w", err)
		}
	}
	_, _, _, err := p.stages.Classifier.ClassifyDownloaded(p.ctx, payload.Limit, nil)
	return err
}

func (p *Pool) processGroup(job Job) error {
	var payload GroupPayload
	if len(job.Payload) > 0 {
		if err := json.Unmarshal(job.Payload, &payload); err != nil {
			return fmt.Errorf("invalid group payload: %w", err)
		}
	}
	if payload.MaxCompilations <= 0 {
		payload.MaxCompilations = 2 // Per-run default, matches the scheduler cadence
	}
	_, err := p.stages.Grouper.CreateCompilations(p.ctx, payload.MaxCompilations, payload.ClipsPerCompilation)
	return err
}

func (p *Pool) processGroupMega(job Job) error {
	var payload MegaPayload
	if len(job.Payload) > 0 {
		if err := json.Unmarshal(job.Payload, &payload); err != nil {
			return fmt.Errorf("invalid mega payload: %w", err)
		}
	}
	// A named type targets one source pool; empty means sweep them all.
	if payload.CompilationType != "" {
		_, err := p.stages.Grouper.CreateMegaCompilation(p.ctx, payload.CompilationType, payload.NumSources)
		return err
	}
	if payload.MaxCompilations <= 0 {
		payload.MaxCompilations = 2
	}
	_, err := p.stages.Grouper.CreateMegaCompilations(p.ctx, payload.MaxCompilations, payload.NumSources)
	return err
}

func (p *Pool) processRender(job Job) error {
	var payload LimitPayload
	if len(job.Payload) > 0 {
		if err := json.Unmarshal(job.Payload, &payload); err != nil {
			return fmt.Errorf("invalid render payload: %w", err)
		}
	}
	if _, _, err := p.stages.Renderer.RenderPending(p.ctx, payload.Limit); err != nil {
		return err
	}
	// Auto-approved compilations skip the human review queue.
	_, err := p.stages.Renderer.PromoteAutoApproved(p.ctx)
	return err
}

func (p *Pool) processRoute(job Job) error {
	var payload LimitPayload
	if len(job.Payload) > 0 {
		if err := json.Unmarshal(job.Payload, &payload); err != nil {
			return fmt.Errorf("invalid route payload: %w", err)
		}
	}
	_, err := p.stages.Router.RouteApprovedCompilations(p.ctx, payload.Limit)
	return err
}

func (p *Pool) processDispatch(Job) error {
	_, err := p.stages.Dispatcher.ProcessNext(p.ctx)
	return err
}

func (p *Pool) processRetryUploads(Job) error {
	_, err := p.stages.Router.RetryFailedUploads(p.ctx)
	return err
}
