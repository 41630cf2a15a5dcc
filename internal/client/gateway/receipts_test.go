package gateway

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/snaptrack/snaptrack/internal/client/images"
	"github.com/snaptrack/snaptrack/internal/client/models"
)

func writeImage(t *testing.T) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "lunch.jpg")
	require.NoError(t, os.WriteFile(p, []byte("jpeg-bytes"), 0o600))
	return p
}

func TestUploadReceipt_SendsMultipartAndNormalizes(t *testing.T) {
	type captured struct {
		ct, key, entity, tags, notes, filename string
		image                                  []byte
	}
	var c captured

	r := chi.NewRouter()
	r.Post("/api/receipts/upload", func(w http.ResponseWriter, r *http.Request) {
		c.ct = r.Header.Get("Content-Type")
		c.key = r.Header.Get("Idempotency-Key")
		if !assert.NoError(t, r.ParseMultipartForm(1<<20)) {
			return
		}
		c.entity = r.FormValue("entity")
		c.tags = r.FormValue("tags")
		c.notes = r.FormValue("notes")
		f, hdr, err := r.FormFile("image")
		if assert.NoError(t, err) {
			c.filename = hdr.Filename
			c.image, _ = io.ReadAll(f)
		}
		_, _ = w.Write([]byte(`{"data":{"receipt":{"receipt_id":"r-9","merchant":"Cafe","total":"12.40","extracted":{"date":"2026-03-01"}}}}`))
	})
	srv := httptest.NewServer(r)
	defer srv.Close()

	g := New(srv.URL)
	g.SetAuthToken("tok")

	rec, err := g.UploadReceipt(context.Background(), models.UploadRequest{
		ImageRef:       writeImage(t),
		Entity:         "business",
		Tags:           []string{"food", "travel"},
		Notes:          "client lunch",
		IdempotencyKey: "q-1",
	})
	require.NoError(t, err)

	assert.Contains(t, c.ct, "multipart/form-data")
	assert.Equal(t, "q-1", c.key)
	assert.Equal(t, "business", c.entity)
	assert.JSONEq(t, `["food","travel"]`, c.tags)
	assert.Equal(t, "client lunch", c.notes)
	assert.Equal(t, "lunch.jpg", c.filename)
	assert.Equal(t, []byte("jpeg-bytes"), c.image)

	assert.Equal(t, "r-9", rec.ID)
	assert.Equal(t, "Cafe", rec.Vendor)
	assert.Equal(t, "2026-03-01", rec.Date)
	require.NotNil(t, rec.Amount)
	assert.True(t, decimal.RequireFromString("12.4").Equal(*rec.Amount))
}

func TestUploadReceipt_EmptyResponseGivesEmptyRecord(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	rec, err := New(srv.URL).UploadReceipt(context.Background(), models.UploadRequest{
		ImageRef: writeImage(t),
		Entity:   "personal",
	})
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Empty(t, rec.ID)
}

func TestUploadReceipt_MissingImage(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
	}))
	defer srv.Close()

	g := New(srv.URL, WithImageOpener(images.NewRouter(nil)))
	_, err := g.UploadReceipt(context.Background(), models.UploadRequest{
		ImageRef: filepath.Join(t.TempDir(), "gone.jpg"),
		Entity:   "personal",
	})
	require.ErrorIs(t, err, ErrClient)
	assert.ErrorIs(t, err, images.ErrImageNotFound)
	assert.Zero(t, calls)
}

func TestUpdateReceipt_PatchesByID(t *testing.T) {
	var gotPath string
	var gotBody map[string]any
	r := chi.NewRouter()
	r.Patch("/api/receipts/{id}", func(w http.ResponseWriter, r *http.Request) {
		gotPath = chi.URLParam(r, "id")
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		w.WriteHeader(http.StatusNoContent)
	})
	srv := httptest.NewServer(r)
	defer srv.Close()

	vendor := "Bakery"
	err := New(srv.URL).UpdateReceipt(context.Background(), "r-1", models.ReceiptPatch{
		Vendor: &vendor,
		Tags:   []string{"food"},
	})
	require.NoError(t, err)
	assert.Equal(t, "r-1", gotPath)
	assert.Equal(t, "Bakery", gotBody["vendor"])
	assert.NotContains(t, gotBody, "amount")
}

func TestListReceiptsAndPing(t *testing.T) {
	r := chi.NewRouter()
	r.Get("/api/health", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Get("/api/receipts", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"receipts":[{"id":"a","amount":5,"entity":"personal"},{"id":"b","tags":"food, misc"}]}`))
	})
	srv := httptest.NewServer(r)
	defer srv.Close()

	g := New(srv.URL)
	require.NoError(t, g.Ping(context.Background()))

	recs, err := g.ListReceipts(context.Background())
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, "a", recs[0].ID)
	assert.True(t, decimal.NewFromInt(5).Equal(*recs[0].Amount))
	assert.Equal(t, []string{"food", "misc"}, recs[1].Tags)
}
