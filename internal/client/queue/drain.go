package queue

import (
	"context"
	"errors"
	"slices"

	"github.com/snaptrack/snaptrack/internal/client/models"
	"github.com/snaptrack/snaptrack/internal/client/repositories/uploads"
)

// Drain submits every eligible item through up, one at a time in insertion
// order. Items already marked uploading are left alone. A failed item has
// its retry count raised and is moved to the failed-uploads list once the
// count reaches the retry budget. Items whose count already reached the
// budget, because it was lowered, are moved there first and counted in
// Evicted.
//
// Drain returns a zero result when the connectivity check reports offline,
// and a result with Skipped set when another Drain is running. Once items
// are selected the cycle runs to completion even if ctx is canceled; each
// request is still bounded by the uploader's own timeout. The returned
// error is non-nil only when the initial read of the queue fails.
func (q *Queue) Drain(ctx context.Context, up Uploader) (models.DrainResult, error) {
	var res models.DrainResult

	if q.online != nil && !q.online(ctx) {
		q.log.Debug(ctx, "drain skipped: offline")
		return res, nil
	}
	if !q.draining.TryLock() {
		q.log.Debug(ctx, "drain skipped: already running")
		res.Skipped = true
		return res, nil
	}
	defer q.draining.Unlock()

	if n, err := q.evictExhausted(ctx); err != nil {
		res.StorageErrors++
		q.log.Error(ctx, "drain: evict exhausted items", "error", err)
	} else {
		res.Evicted += n
	}

	s, err := q.load(ctx)
	if err != nil {
		q.log.Error(ctx, "drain: read queue", "error", err)
		return res, err
	}

	var selected []string
	for _, it := range s.Queue {
		if q.eligible(it) {
			selected = append(selected, it.ID)
		}
	}
	if len(selected) == 0 && res.Evicted == 0 {
		return res, nil
	}

	ctx = context.WithoutCancel(ctx)
	for _, id := range selected {
		q.drainOne(ctx, up, id, s, &res)
	}

	q.metrics.Drained("success", res.Success)
	q.metrics.Drained("failed", res.Failed)
	q.metrics.Drained("evicted", res.Evicted)
	if n, err := q.PendingCount(ctx); err == nil {
		q.metrics.Pending(n)
	}

	q.log.Info(ctx, "drain finished",
		"selected", len(selected), "success", res.Success, "failed", res.Failed,
		"evicted", res.Evicted, "storage_errors", res.StorageErrors)
	return res, nil
}

func (q *Queue) eligible(it models.QueuedUpload) bool {
	switch it.Status {
	case models.StatusPending:
		return true
	case models.StatusFailed:
		return it.RetryCount < q.budget
	default:
		return false
	}
}

// drainOne runs one item through claim, submit and settle. snapshot is the
// state read at the start of the cycle; it stands in for the store when a
// write fails.
func (q *Queue) drainOne(ctx context.Context, up Uploader, id string, snapshot *uploads.State, res *models.DrainResult) {
	item, err := q.claim(ctx, id)
	switch {
	case errors.Is(err, ErrNotFound), errors.Is(err, errClaimed):
		q.log.Debug(ctx, "drain: item no longer eligible", "id", id, "reason", err)
		return
	case err != nil:
		res.StorageErrors++
		q.log.Error(ctx, "drain: mark uploading", "id", id, "error", err)
		i := slices.IndexFunc(snapshot.Queue, func(it models.QueuedUpload) bool { return it.ID == id })
		item = snapshot.Queue[i]
		item.Status = models.StatusUploading
	}

	subErr := q.submit(ctx, up, &item, res)
	if subErr == nil {
		res.Success++
		if err := q.remove(ctx, id); err != nil && !errors.Is(err, ErrNotFound) {
			res.StorageErrors++
			q.log.Error(ctx, "drain: remove uploaded item", "id", id, "error", err)
		}
		return
	}

	res.Failed++
	item.Status = models.StatusFailed
	item.RetryCount++

	if item.RetryCount < q.budget {
		q.log.Warn(ctx, "upload failed, will retry",
			"id", id, "attempt", item.RetryCount, "budget", q.budget, "error", subErr)
		if err := q.save(ctx, item); err != nil && !errors.Is(err, ErrNotFound) {
			res.StorageErrors++
			q.log.Error(ctx, "drain: record failure", "id", id, "error", err)
		}
		return
	}

	res.Evicted++
	q.log.Warn(ctx, "upload evicted after exhausting retries",
		"id", id, "attempts", item.RetryCount, "error", subErr)
	failed := models.FailedUpload{QueuedUpload: item, LastError: subErr.Error(), FailedAt: q.now().UTC()}
	if err := q.evict(ctx, failed); err != nil {
		res.StorageErrors++
		q.log.Error(ctx, "drain: evict item", "id", id, "error", err)
	}
}

// submit uploads the image unless an earlier attempt already created the
// record, then overwrites server-extracted fields with the locally entered
// ones.
func (q *Queue) submit(ctx context.Context, up Uploader, item *models.QueuedUpload, res *models.DrainResult) error {
	var server *models.ReceiptRecord

	if item.RecordID == "" {
		rec, err := up.UploadReceipt(ctx, models.UploadRequest{
			ImageRef:       item.ImageRef,
			Entity:         item.Entity,
			Tags:           item.Tags,
			Notes:          item.Notes,
			IdempotencyKey: item.ID,
		})
		if err != nil {
			return err
		}
		if rec == nil || rec.ID == "" {
			return nil
		}

		server = rec
		item.RecordID = rec.ID
		if err := q.save(ctx, *item); err != nil && !errors.Is(err, ErrNotFound) {
			res.StorageErrors++
			q.log.Error(ctx, "drain: record created receipt", "id", item.ID, "error", err)
		}
	}

	patch := models.LocalOverrides(item.ReceiptDraft, server)
	if patch.Empty() {
		return nil
	}
	return up.UpdateReceipt(ctx, item.RecordID, patch)
}

// claim marks the stored item uploading and returns it.
func (q *Queue) claim(ctx context.Context, id string) (models.QueuedUpload, error) {
	var item models.QueuedUpload
	err := q.update(ctx, func(s *uploads.State) error {
		i := indexOf(s.Queue, id)
		if i < 0 {
			return ErrNotFound
		}
		if !q.eligible(s.Queue[i]) {
			return errClaimed
		}
		s.Queue[i].Status = models.StatusUploading
		item = s.Queue[i]
		return nil
	})
	return item, err
}

// save overwrites the stored item with the same id.
func (q *Queue) save(ctx context.Context, item models.QueuedUpload) error {
	return q.update(ctx, func(s *uploads.State) error {
		i := indexOf(s.Queue, item.ID)
		if i < 0 {
			return ErrNotFound
		}
		s.Queue[i] = item
		return nil
	})
}

func (q *Queue) remove(ctx context.Context, id string) error {
	return q.update(ctx, func(s *uploads.State) error {
		i := indexOf(s.Queue, id)
		if i < 0 {
			return ErrNotFound
		}
		s.Queue = slices.Delete(s.Queue, i, i+1)
		return nil
	})
}

// evict moves the item from the queue to the failed-uploads list. An item
// already gone from the queue is still recorded as failed.
func (q *Queue) evict(ctx context.Context, f models.FailedUpload) error {
	return q.update(ctx, func(s *uploads.State) error {
		if i := indexOf(s.Queue, f.ID); i >= 0 {
			s.Queue = slices.Delete(s.Queue, i, i+1)
		}
		s.Failed = append(s.Failed, f)
		return nil
	})
}

// evictExhausted moves queued items whose retry count already reached the
// budget to the failed-uploads list. Such items exist when the budget was
// lowered since they last failed. Items marked uploading are left alone.
func (q *Queue) evictExhausted(ctx context.Context) (int, error) {
	var moved []string
	err := q.update(ctx, func(s *uploads.State) error {
		moved = moved[:0]
		kept := s.Queue[:0:0]
		for _, it := range s.Queue {
			if it.RetryCount < q.budget || it.Status == models.StatusUploading {
				kept = append(kept, it)
				continue
			}
			it.Status = models.StatusFailed
			s.Failed = append(s.Failed, models.FailedUpload{
				QueuedUpload: it,
				LastError:    errBudgetExhausted.Error(),
				FailedAt:     q.now().UTC(),
			})
			moved = append(moved, it.ID)
		}
		s.Queue = kept
		return nil
	})
	if err != nil {
		return 0, err
	}
	for _, id := range moved {
		q.log.Warn(ctx, "upload evicted: retry budget already exhausted", "id", id, "budget", q.budget)
	}
	return len(moved), nil
}

func indexOf(items []models.QueuedUpload, id string) int {
	return slices.IndexFunc(items, func(it models.QueuedUpload) bool { return it.ID == id })
}
