// Package events persists lifecycle events asynchronously so policy
// operations never block on the audit trail.
package events

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/openclaims/coverd/models"
	"github.com/openclaims/coverd/repositories"
	"go.uber.org/zap"
)

// Recorder buffers lifecycle events and persists them from background
// workers. Enqueueing never blocks; when the buffer is full the event
// is dropped with a warning.
type Recorder struct {
	eventRepo   repositories.EventRepository
	logger      *zap.Logger
	eventChan   chan *models.Event
	workerCount int
	bufferSize  int
	wg          sync.WaitGroup
	ctx         context.Context
	cancel      context.CancelFunc
	started     bool
	mu          sync.Mutex
}

// Config holds configuration for the Recorder
type Config struct {
	BufferSize  int // Size of the event buffer channel
	WorkerCount int // Number of concurrent workers
}

// DefaultConfig returns the default configuration
func DefaultConfig() Config {
	return Config{
		BufferSize:  10000,
		WorkerCount: 3,
	}
}

// NewRecorder creates a new Recorder instance
func NewRecorder(eventRepo repositories.EventRepository, logger *zap.Logger, config Config) *Recorder {
	ctx, cancel := context.WithCancel(context.Background())

	return &Recorder{
		eventRepo:   eventRepo,
		logger:      logger,
		eventChan:   make(chan *models.Event, config.BufferSize),
		workerCount: config.WorkerCount,
		bufferSize:  config.BufferSize,
		ctx:         ctx,
		cancel:      cancel,
	}
}

// Start starts the background workers
func (r *Recorder) Start() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.started {
		return fmt.Errorf("event recorder already started")
	}

	for i := 0; i < r.workerCount; i++ {
		r.wg.Add(1)
		go r.worker(i)
	}

	r.started = true
	r.logger.Info("started event recorder",
		zap.Int("worker_count", r.workerCount),
		zap.Int("buffer_size", r.bufferSize))

	return nil
}

// Stop gracefully stops the recorder, waiting for pending events
// to be persisted up to the timeout
func (r *Recorder) Stop(timeout time.Duration) error {
	r.mu.Lock()
	if !r.started {
		r.mu.Unlock()
		return fmt.Errorf("event recorder not started")
	}
	r.mu.Unlock()

	r.logger.Info("stopping event recorder", zap.Int("pending_events", len(r.eventChan)))

	close(r.eventChan)

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		r.logger.Info("event recorder stopped gracefully")
		r.cancel()
		return nil
	case <-time.After(timeout):
		r.cancel()
		return fmt.Errorf("event recorder stop timeout after %v", timeout)
	}
}

// Record enqueues an event without blocking. Returns an error when the
// recorder is stopped or the buffer is full.
func (r *Recorder) Record(event *models.Event) error {
	r.mu.Lock()
	if !r.started {
		r.mu.Unlock()
		return fmt.Errorf("event recorder not started")
	}
	r.mu.Unlock()

	select {
	case r.eventChan <- event:
		return nil
	default:
		r.logger.Warn("event buffer full, dropping event",
			zap.String("kind", string(event.Kind)),
			zap.String("policy_id", event.PolicyID.String()))
		return fmt.Errorf("event buffer full")
	}
}

// worker persists events from the channel
func (r *Recorder) worker(id int) {
	defer r.wg.Done()

	r.logger.Debug("event worker started", zap.Int("worker_id", id))

	for event := range r.eventChan {
		if err := r.persist(event); err != nil {
			r.logger.Error("failed to persist event",
				zap.Int("worker_id", id),
				zap.Error(err),
				zap.String("kind", string(event.Kind)),
				zap.String("policy_id", event.PolicyID.String()))
		}
	}

	r.logger.Debug("event worker stopped", zap.Int("worker_id", id))
}

// persist inserts a single event
func (r *Recorder) persist(event *models.Event) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := r.eventRepo.Insert(ctx, event); err != nil {
		return fmt.Errorf("failed to insert event: %w", err)
	}

	return nil
}

// Stats represents recorder statistics
type Stats struct {
	BufferSize    int
	PendingEvents int
	WorkerCount   int
	Started       bool
}

// GetStats returns statistics about the recorder
func (r *Recorder) GetStats() Stats {
	r.mu.Lock()
	defer r.mu.Unlock()

	return Stats{
		BufferSize:    r.bufferSize,
		PendingEvents: len(r.eventChan),
		WorkerCount:   r.workerCount,
		Started:       r.started,
	}
}

// Convenience methods for the lifecycle event kinds

// RecordPolicyCreated records a policy creation event
func (r *Recorder) RecordPolicyCreated(policy *models.Policy, requestID string) error {
	event := models.NewEvent(models.EventKindPolicyCreated, policy.ID, models.PolicyCreatedPayload{
		ID:       policy.ID,
		Owner:    policy.Owner,
		Target:   policy.Target,
		Deadline: policy.Deadline,
		Coverage: policy.Coverage,
	}).WithRequestID(requestID)

	return r.Record(event)
}

// RecordPolicyResolved records a policy resolution event
func (r *Recorder) RecordPolicyResolved(id models.PolicyID, compensated bool, requestID string) error {
	event := models.NewEvent(models.EventKindPolicyResolved, id, models.PolicyResolvedPayload{
		ID:          id,
		Compensated: compensated,
	}).WithRequestID(requestID)

	return r.Record(event)
}

// RecordClaimRegistered records a claim registration event
func (r *Recorder) RecordClaimRegistered(id models.PolicyID, owner, target models.Address, at time.Time, requestID string) error {
	event := models.NewEvent(models.EventKindClaimRegistered, id, models.ClaimRegisteredPayload{
		ID:     id,
		Owner:  owner,
		Target: target,
		At:     at,
	}).WithRequestID(requestID)

	return r.Record(event)
}
