package cli

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/snaptrack/snaptrack/internal/client/config"
	"github.com/snaptrack/snaptrack/internal/client/gateway"
	"github.com/snaptrack/snaptrack/internal/client/localdb"
	"github.com/snaptrack/snaptrack/internal/client/metrics"
	"github.com/snaptrack/snaptrack/internal/client/models"
	"github.com/snaptrack/snaptrack/internal/client/queue"
	"github.com/snaptrack/snaptrack/internal/client/repositories/uploads"
	"github.com/snaptrack/snaptrack/internal/client/session"
	"github.com/snaptrack/snaptrack/internal/client/stats"
	"github.com/snaptrack/snaptrack/internal/logging"
)

// ------------ fakes ------------

type fakeBackend struct {
	mu       sync.Mutex
	pingErr  error
	failRefs map[string]error
	uploaded []string
	receipts []models.ReceiptRecord
}

func (f *fakeBackend) Ping(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.pingErr
}

func (f *fakeBackend) setPing(err error) {
	f.mu.Lock()
	f.pingErr = err
	f.mu.Unlock()
}

func (f *fakeBackend) UploadReceipt(_ context.Context, req models.UploadRequest) (*models.ReceiptRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.uploaded = append(f.uploaded, req.ImageRef)
	if err := f.failRefs[req.ImageRef]; err != nil {
		return nil, err
	}
	return &models.ReceiptRecord{ID: "r-" + req.ImageRef}, nil
}

func (f *fakeBackend) UpdateReceipt(context.Context, string, models.ReceiptPatch) error { return nil }

func (f *fakeBackend) ListReceipts(context.Context) ([]models.ReceiptRecord, error) {
	return f.receipts, nil
}

func (f *fakeBackend) uploads() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.uploaded...)
}

type fakeSession struct {
	pin      []byte
	loggedIn bool
	tokens   session.Tokens
	restore  bool
}

func (f *fakeSession) Unlock(_ context.Context, pin []byte) error {
	f.pin = append([]byte(nil), pin...)
	return nil
}
func (f *fakeSession) Restore(context.Context) (bool, error) {
	f.loggedIn = f.restore
	return f.restore, nil
}
func (f *fakeSession) Login(_ context.Context, t session.Tokens) error {
	f.tokens, f.loggedIn = t, true
	return nil
}
func (f *fakeSession) Logout(context.Context) error { f.loggedIn = false; return nil }
func (f *fakeSession) Status() session.Status { return session.Status{LoggedIn: f.loggedIn} }

// ------------ helpers ------------

func readerFromLines(lines ...string) *bufio.Reader {
	return bufio.NewReader(strings.NewReader(strings.Join(lines, "\n") + "\n"))
}

func newTestApp(t *testing.T, be *fakeBackend, sess *fakeSession, opts ...queue.Option) (*App, *bytes.Buffer) {
	t.Helper()
	db, err := localdb.Open(context.Background(), filepath.Join(t.TempDir(), "cli.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	var out bytes.Buffer
	app := &App{
		config:  &config.Config{OnlineCheckInterval: time.Hour},
		log:     logging.Nop(),
		backend: be,
		session: sess,
		stats:   stats.NewService(be, time.Minute, nil),
		reader:  readerFromLines(),
		out:     &out,
		mode:    ModeOffline,
	}
	opts = append(opts, queue.WithConnectivity(func(context.Context) bool { return app.isOnline() }))
	app.queue = queue.New(uploads.NewSQLiteRepository(db), opts...)
	return app, &out
}

func stubSecrets(t *testing.T, values ...string) {
	t.Helper()
	orig := getSecret
	i := 0
	getSecret = func(string, io.Writer) ([]byte, error) {
		if i >= len(values) {
			return nil, errors.New("no more input")
		}
		v := values[i]
		i++
		return []byte(v), nil
	}
	t.Cleanup(func() { getSecret = orig })
}

// ------------ tests ------------

func TestAdd_QueuesWhileOffline(t *testing.T) {
	be := &fakeBackend{}
	app, out := newTestApp(t, be, &fakeSession{loggedIn: true})
	app.reader = readerFromLines(
		"/tmp/coffee.jpg", // image
		"",                // entity -> personal
		"Coffee Shop",     // vendor
		"4.50",            // amount
		"2025-01-07",      // date
		"food, morning",   // tags
		"flat white",      // notes
		"",                // end of notes
	)

	require.NoError(t, app.Add(context.Background()))
	assert.Contains(t, out.String(), "Queued as ")
	assert.Contains(t, out.String(), "uploaded when you are online")
	assert.Empty(t, be.uploads())

	items, err := app.queue.ListPending(context.Background())
	require.NoError(t, err)
	require.Len(t, items, 1)
	it := items[0]
	assert.Equal(t, "personal", it.Entity)
	assert.Equal(t, "Coffee Shop", it.Vendor)
	assert.True(t, decimal.RequireFromString("4.5").Equal(*it.Amount))
	assert.Equal(t, []string{"food", "morning"}, it.Tags)
	assert.Equal(t, "flat white", it.Notes)
}

func TestAdd_Validation(t *testing.T) {
	app, _ := newTestApp(t, &fakeBackend{}, &fakeSession{})

	app.reader = readerFromLines("")
	assert.Error(t, app.Add(context.Background()))

	app.reader = readerFromLines("img", "business", "", "lots")
	assert.ErrorContains(t, app.Add(context.Background()), "not a number")

	app.reader = readerFromLines("img", "business", "", "", "07/01/2025")
	assert.ErrorContains(t, app.Add(context.Background()), "YYYY-MM-DD")

	app.reader = readerFromLines("img", "business", "", "", "2025-01-07garbage")
	assert.ErrorContains(t, app.Add(context.Background()), "YYYY-MM-DD")

	items, err := app.queue.ListPending(context.Background())
	require.NoError(t, err)
	assert.Empty(t, items, "rejected input is never queued")
}

func TestAdd_UploadsImmediatelyWhenOnline(t *testing.T) {
	be := &fakeBackend{}
	app, out := newTestApp(t, be, &fakeSession{loggedIn: true})
	app.mode = ModeOnline
	app.reader = readerFromLines("img-1", "business", "", "", "", "", "")

	require.NoError(t, app.Add(context.Background()))
	assert.Equal(t, []string{"img-1"}, be.uploads())
	assert.Contains(t, out.String(), "Uploaded 1, failed 0.")
}

func TestWatcher_DrainsOnReconnect(t *testing.T) {
	ctx := context.Background()
	be := &fakeBackend{pingErr: &gateway.Error{Kind: gateway.KindNetwork}}
	app, _ := newTestApp(t, be, &fakeSession{loggedIn: true})

	_, err := app.queue.Enqueue(ctx, models.ReceiptDraft{ImageRef: "offline-1", Entity: "personal"})
	require.NoError(t, err)

	app.checkOnline(ctx)
	assert.Equal(t, ModeOffline, app.currentMode())
	assert.Empty(t, be.uploads())

	be.setPing(nil)
	app.checkOnline(ctx)
	assert.Equal(t, ModeOnline, app.currentMode())
	assert.Equal(t, []string{"offline-1"}, be.uploads())

	n, err := app.queue.PendingCount(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	// staying online does not trigger another drain
	_, err = app.queue.Enqueue(ctx, models.ReceiptDraft{ImageRef: "later"})
	require.NoError(t, err)
	app.checkOnline(ctx)
	assert.Equal(t, []string{"offline-1"}, be.uploads())
}

func TestWatcher_StopsOnCancel(t *testing.T) {
	app, _ := newTestApp(t, &fakeBackend{}, &fakeSession{})
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		app.StartOnlineStatusWatcher(ctx, time.Millisecond)
		close(done)
	}()
	require.Eventually(t, app.isOnline, time.Second, time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("watcher did not stop")
	}
}

func TestSync_OfflineAndEvictions(t *testing.T) {
	ctx := context.Background()
	be := &fakeBackend{failRefs: map[string]error{"bad": errors.New("rejected")}}
	app, out := newTestApp(t, be, &fakeSession{loggedIn: true}, queue.WithRetryBudget(1))

	_, err := app.queue.Enqueue(ctx, models.ReceiptDraft{ImageRef: "bad"})
	require.NoError(t, err)

	require.NoError(t, app.Sync(ctx))
	assert.Contains(t, out.String(), "Offline. 1 upload(s)")

	app.mode = ModeOnline
	out.Reset()
	require.NoError(t, app.Sync(ctx))
	assert.Contains(t, out.String(), "Uploaded 0, failed 1, 1 moved to 'failed'.")

	out.Reset()
	require.NoError(t, app.Failed(ctx))
	assert.Contains(t, out.String(), "rejected")
}

func TestRequeueDiscard(t *testing.T) {
	ctx := context.Background()
	be := &fakeBackend{failRefs: map[string]error{"a": errors.New("x"), "b": errors.New("x")}}
	app, out := newTestApp(t, be, &fakeSession{loggedIn: true}, queue.WithRetryBudget(1))
	app.mode = ModeOnline

	idA, err := app.queue.Enqueue(ctx, models.ReceiptDraft{ImageRef: "a"})
	require.NoError(t, err)
	idB, err := app.queue.Enqueue(ctx, models.ReceiptDraft{ImageRef: "b"})
	require.NoError(t, err)
	require.NoError(t, app.Sync(ctx))

	require.NoError(t, app.Requeue(ctx, idA))
	require.NoError(t, app.Discard(ctx, idB))
	assert.ErrorIs(t, app.Discard(ctx, idB), queue.ErrNotFound)

	out.Reset()
	require.NoError(t, app.List(ctx))
	assert.Contains(t, out.String(), idA)
	assert.Contains(t, out.String(), "pending")

	out.Reset()
	require.NoError(t, app.Failed(ctx))
	assert.Contains(t, out.String(), "No failed uploads.")
}

func TestStats_PrintsTotals(t *testing.T) {
	amount := func(s string) *decimal.Decimal { d := decimal.RequireFromString(s); return &d }
	be := &fakeBackend{receipts: []models.ReceiptRecord{
		{ID: "1", Entity: "personal", Amount: amount("4.50"), Date: "2025-01-07", Tags: []string{"food"}},
		{ID: "2", Entity: "business", Amount: amount("20"), Date: "2025-03-01"},
	}}
	app, out := newTestApp(t, be, &fakeSession{loggedIn: true})

	require.NoError(t, app.Stats(context.Background(), []string{"2025-01-01", "2025-01-31"}))
	assert.Contains(t, out.String(), "1 receipt(s), total 4.50")
	assert.Contains(t, out.String(), "food")
	assert.NotContains(t, out.String(), "business")

	assert.Error(t, app.Stats(context.Background(), []string{"January"}))
}

func TestUnlockLoginLogout(t *testing.T) {
	ctx := context.Background()
	sess := &fakeSession{restore: false}
	app, out := newTestApp(t, &fakeBackend{}, sess)

	stubSecrets(t, "1234", " access-1 ", "refresh-1")
	require.NoError(t, app.unlock(ctx))
	assert.Equal(t, []byte("1234"), sess.pin)
	assert.Contains(t, out.String(), "Not signed in.")

	require.NoError(t, app.Login(ctx))
	assert.Equal(t, session.Tokens{AccessToken: "access-1", RefreshToken: "refresh-1"}, sess.tokens)
	assert.True(t, app.isLoggedIn())

	require.NoError(t, app.Logout(ctx))
	assert.False(t, app.isLoggedIn())
}

func TestGetStatus(t *testing.T) {
	app, _ := newTestApp(t, &fakeBackend{}, &fakeSession{})
	_, err := app.queue.Enqueue(context.Background(), models.ReceiptDraft{ImageRef: "x"})
	require.NoError(t, err)

	assert.Equal(t, "(offline, signed out, 1 pending)", app.getStatus())
}

func TestMetricsRouter(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	m.Pending(2)

	srv := httptest.NewServer(metricsRouter(reg))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "snaptrack_queue_pending_items 2")
}
