// Package models defines the client-side records shared by the gateway and
// the upload queue.
package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// UploadStatus is the per-attempt state of a queued upload.
type UploadStatus string

const (
	StatusPending   UploadStatus = "pending"
	StatusUploading UploadStatus = "uploading"
	StatusFailed    UploadStatus = "failed"
)

// ReceiptDraft holds the fields a user (or OCR) captured before the receipt
// could be submitted.
type ReceiptDraft struct {
	ImageRef string           `json:"imageReference"`
	Entity   string           `json:"entity"`
	Vendor   string           `json:"vendor,omitempty"`
	Amount   *decimal.Decimal `json:"amount,omitempty"`
	Date     string           `json:"date,omitempty"`
	Tags     []string         `json:"tags,omitempty"`
	Notes    string           `json:"notes,omitempty"`
}

// QueuedUpload is one offline-pending receipt submission.
type QueuedUpload struct {
	ID string `json:"id"`
	ReceiptDraft
	EnqueuedAt time.Time    `json:"enqueuedAt"`
	Status     UploadStatus `json:"status"`
	RetryCount int          `json:"retryCount"`

	// RecordID is set once the server has created the receipt, so later
	// attempts only repeat the field update.
	RecordID string `json:"recordId,omitempty"`
}

// CountsAsPending reports whether the item is included in the pending count.
func (u QueuedUpload) CountsAsPending() bool {
	return u.Status == StatusPending || u.Status == StatusFailed
}

// FailedUpload is an item evicted from the queue after exhausting its
// retry budget.
type FailedUpload struct {
	QueuedUpload
	LastError string    `json:"lastError"`
	FailedAt  time.Time `json:"failedAt"`
}

// UploadRequest is what the gateway needs to submit one receipt image.
type UploadRequest struct {
	ImageRef       string
	Entity         string
	Tags           []string
	Notes          string
	IdempotencyKey string
}

// DrainResult summarises one drain cycle.
type DrainResult struct {
	Success       int  `json:"success"`
	Failed        int  `json:"failed"`
	Evicted       int  `json:"evicted"`
	StorageErrors int  `json:"storageErrors"`
	Skipped       bool `json:"skipped"`
}
