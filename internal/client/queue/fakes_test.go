package queue

import (
	"context"
	"errors"
	"slices"
	"sync"

	"github.com/snaptrack/snaptrack/internal/client/models"
	"github.com/snaptrack/snaptrack/internal/client/repositories/uploads"
)

var errDisk = errors.New("disk full")

// memRepo is an in-memory uploads.Repository. failLoad and failUpdate
// inject store failures.
type memRepo struct {
	mu         sync.Mutex
	state      uploads.State
	failLoad   bool
	failUpdate bool
	updates    int
}

func (r *memRepo) Load(context.Context) (*uploads.State, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failLoad {
		return nil, errDisk
	}
	return r.copyState(), nil
}

func (r *memRepo) Update(_ context.Context, fn func(s *uploads.State) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.updates++
	if r.failUpdate {
		return errDisk
	}
	s := r.copyState()
	if err := fn(s); err != nil {
		return err
	}
	r.state = *s
	return nil
}

func (r *memRepo) copyState() *uploads.State {
	return &uploads.State{
		Queue:  slices.Clone(r.state.Queue),
		Failed: slices.Clone(r.state.Failed),
	}
}

func (r *memRepo) setFailUpdate(v bool) {
	r.mu.Lock()
	r.failUpdate = v
	r.mu.Unlock()
}

// fakeUploader records calls. Uploads of an image listed in failImages
// fail; everything else creates a record whose id is "rec-" + image ref.
type fakeUploader struct {
	mu         sync.Mutex
	uploads    []models.UploadRequest
	updates    []updateCall
	failImages map[string]error
	updateErr  error
	server     func(req models.UploadRequest) *models.ReceiptRecord
	block      chan struct{}
	started    chan struct{}
}

type updateCall struct {
	id    string
	patch models.ReceiptPatch
}

func (f *fakeUploader) UploadReceipt(_ context.Context, req models.UploadRequest) (*models.ReceiptRecord, error) {
	if f.started != nil {
		f.started <- struct{}{}
	}
	if f.block != nil {
		<-f.block
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.uploads = append(f.uploads, req)
	if err := f.failImages[req.ImageRef]; err != nil {
		return nil, err
	}
	if f.server != nil {
		return f.server(req), nil
	}
	return &models.ReceiptRecord{ID: "rec-" + req.ImageRef, Entity: req.Entity}, nil
}

func (f *fakeUploader) UpdateReceipt(_ context.Context, id string, patch models.ReceiptPatch) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updates = append(f.updates, updateCall{id: id, patch: patch})
	return f.updateErr
}

func (f *fakeUploader) uploadedImages() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.uploads))
	for _, u := range f.uploads {
		out = append(out, u.ImageRef)
	}
	return out
}
