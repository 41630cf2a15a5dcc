// Package queue implements the persistent upload queue: receipts captured
// while offline are stored locally and later drained through an Uploader
// with a bounded number of attempts per item.
package queue

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/snaptrack/snaptrack/internal/client/metrics"
	"github.com/snaptrack/snaptrack/internal/client/models"
	"github.com/snaptrack/snaptrack/internal/client/repositories/uploads"
	"github.com/snaptrack/snaptrack/internal/logging"
)

const DefaultRetryBudget = 3

var (
	// ErrStorage wraps every failure of the local store.
	ErrStorage = errors.New("queue storage error")
	// ErrNotFound is returned when an id names no item.
	ErrNotFound = errors.New("upload not found")
)

var (
	// errClaimed marks an item another drainer already holds.
	errClaimed = errors.New("upload already in progress")
	// errBudgetExhausted is the recorded error of an item evicted without
	// another attempt.
	errBudgetExhausted = errors.New("retry budget exhausted")
)

// Uploader submits one receipt. *gateway.Gateway satisfies it.
type Uploader interface {
	UploadReceipt(ctx context.Context, req models.UploadRequest) (*models.ReceiptRecord, error)
	UpdateReceipt(ctx context.Context, id string, patch models.ReceiptPatch) error
}

// Connectivity reports whether the backend is believed reachable.
type Connectivity func(ctx context.Context) bool

type Queue struct {
	repo    uploads.Repository
	budget  int
	online  Connectivity
	log     logging.Logger
	metrics *metrics.Metrics
	now     func() time.Time
	newID   func() (string, error)

	// mu serializes read-modify-write cycles on the store.
	mu sync.Mutex
	// draining admits one Drain at a time.
	draining sync.Mutex
}

type Option func(*Queue)

// WithRetryBudget sets the number of failed attempts after which an item is
// evicted. Values below 1 keep the default.
func WithRetryBudget(n int) Option {
	return func(q *Queue) {
		if n > 0 {
			q.budget = n
		}
	}
}

// WithConnectivity makes Drain a no-op while check reports offline.
func WithConnectivity(check Connectivity) Option {
	return func(q *Queue) { q.online = check }
}

func WithLogger(l logging.Logger) Option {
	return func(q *Queue) { q.log = l }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(q *Queue) { q.metrics = m }
}

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(q *Queue) { q.now = now }
}

func New(repo uploads.Repository, opts ...Option) *Queue {
	q := &Queue{
		repo:   repo,
		budget: DefaultRetryBudget,
		log:    logging.Nop(),
		now:    time.Now,
		newID:  newID,
	}
	for _, o := range opts {
		o(q)
	}
	q.log = q.log.With("component", "queue")
	return q
}

// RetryBudget returns the configured number of attempts per item.
func (q *Queue) RetryBudget() int { return q.budget }

func newID() (string, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", err
	}
	return id.String(), nil
}

// Enqueue appends a pending upload built from d and returns its id. It does
// no network I/O and fails only when the store does.
func (q *Queue) Enqueue(ctx context.Context, d models.ReceiptDraft) (string, error) {
	id, err := q.newID()
	if err != nil {
		return "", fmt.Errorf("generate id: %w", err)
	}

	item := models.QueuedUpload{
		ID:           id,
		ReceiptDraft: cloneDraft(d),
		EnqueuedAt:   q.now().UTC(),
		Status:       models.StatusPending,
	}

	var pending int
	err = q.update(ctx, func(s *uploads.State) error {
		s.Queue = append(s.Queue, item)
		pending = countPending(s.Queue)
		return nil
	})
	if err != nil {
		return "", err
	}

	q.metrics.Pending(pending)
	q.log.Debug(ctx, "upload enqueued", "id", id, "entity", d.Entity)
	return id, nil
}

// ListPending returns every queued item in insertion order, whatever its
// status.
func (q *Queue) ListPending(ctx context.Context) ([]models.QueuedUpload, error) {
	s, err := q.load(ctx)
	if err != nil {
		return nil, err
	}
	return s.Queue, nil
}

// PendingCount counts items with status pending or failed.
func (q *Queue) PendingCount(ctx context.Context) (int, error) {
	s, err := q.load(ctx)
	if err != nil {
		return 0, err
	}
	return countPending(s.Queue), nil
}

// FailedUploads lists items evicted after exhausting their retry budget.
func (q *Queue) FailedUploads(ctx context.Context) ([]models.FailedUpload, error) {
	s, err := q.load(ctx)
	if err != nil {
		return nil, err
	}
	return s.Failed, nil
}

// Requeue moves an evicted item back to the tail of the queue with a fresh
// retry budget.
func (q *Queue) Requeue(ctx context.Context, id string) error {
	var pending int
	err := q.update(ctx, func(s *uploads.State) error {
		i := slices.IndexFunc(s.Failed, func(f models.FailedUpload) bool { return f.ID == id })
		if i < 0 {
			return ErrNotFound
		}
		item := s.Failed[i].QueuedUpload
		item.Status = models.StatusPending
		item.RetryCount = 0

		s.Failed = slices.Delete(s.Failed, i, i+1)
		s.Queue = append(s.Queue, item)
		pending = countPending(s.Queue)
		return nil
	})
	if err != nil {
		return err
	}

	q.metrics.Pending(pending)
	q.log.Info(ctx, "upload requeued", "id", id)
	return nil
}

// DiscardFailed deletes an evicted item for good.
func (q *Queue) DiscardFailed(ctx context.Context, id string) error {
	err := q.update(ctx, func(s *uploads.State) error {
		i := slices.IndexFunc(s.Failed, func(f models.FailedUpload) bool { return f.ID == id })
		if i < 0 {
			return ErrNotFound
		}
		s.Failed = slices.Delete(s.Failed, i, i+1)
		return nil
	})
	if err != nil {
		return err
	}
	q.log.Info(ctx, "failed upload discarded", "id", id)
	return nil
}

// Recover returns items a crashed process left in uploading to pending and
// reports how many it reset. Items that have used up the current retry
// budget are moved to the failed-uploads list. It waits for a running Drain
// to finish.
func (q *Queue) Recover(ctx context.Context) (int, error) {
	q.draining.Lock()
	defer q.draining.Unlock()

	var n, pending int
	err := q.update(ctx, func(s *uploads.State) error {
		for i := range s.Queue {
			if s.Queue[i].Status == models.StatusUploading {
				s.Queue[i].Status = models.StatusPending
				n++
			}
		}
		pending = countPending(s.Queue)
		return nil
	})
	if err != nil {
		return 0, err
	}

	if n > 0 {
		q.log.Warn(ctx, "reset interrupted uploads", "count", n)
	}

	evicted, err := q.evictExhausted(ctx)
	if err != nil {
		return n, err
	}
	q.metrics.Drained("evicted", evicted)
	q.metrics.Pending(pending - evicted)
	return n, nil
}

func (q *Queue) load(ctx context.Context) (*uploads.State, error) {
	s, err := q.repo.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrStorage, err)
	}
	return s, nil
}

// update runs fn against the stored state. Errors returned by fn itself
// pass through unwrapped; store failures wrap ErrStorage.
func (q *Queue) update(ctx context.Context, fn func(s *uploads.State) error) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	var fnErr error
	err := q.repo.Update(ctx, func(s *uploads.State) error {
		fnErr = fn(s)
		return fnErr
	})
	switch {
	case fnErr != nil:
		return fnErr
	case err != nil:
		return fmt.Errorf("%w: %w", ErrStorage, err)
	default:
		return nil
	}
}

func countPending(items []models.QueuedUpload) int {
	n := 0
	for _, it := range items {
		if it.CountsAsPending() {
			n++
		}
	}
	return n
}

func cloneDraft(d models.ReceiptDraft) models.ReceiptDraft {
	d.Tags = slices.Clone(d.Tags)
	if d.Amount != nil {
		a := *d.Amount
		d.Amount = &a
	}
	return d
}
