package cli

import (
	"bufio"
	"context"
	"database/sql"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/oauth2"

	"github.com/snaptrack/snaptrack/internal/client/config"
	"github.com/snaptrack/snaptrack/internal/client/gateway"
	"github.com/snaptrack/snaptrack/internal/client/images"
	"github.com/snaptrack/snaptrack/internal/client/localdb"
	"github.com/snaptrack/snaptrack/internal/client/metrics"
	"github.com/snaptrack/snaptrack/internal/client/models"
	"github.com/snaptrack/snaptrack/internal/client/queue"
	"github.com/snaptrack/snaptrack/internal/client/repositories/metadata"
	"github.com/snaptrack/snaptrack/internal/client/repositories/uploads"
	"github.com/snaptrack/snaptrack/internal/client/session"
	"github.com/snaptrack/snaptrack/internal/client/stats"
	"github.com/snaptrack/snaptrack/internal/logging"
)

type Mode string

const (
	ModeOffline Mode = "offline"
	ModeOnline  Mode = "online"
)

// backend is the part of the gateway the CLI uses.
type backend interface {
	queue.Uploader
	Ping(ctx context.Context) error
}

type uploadQueue interface {
	Enqueue(ctx context.Context, d models.ReceiptDraft) (string, error)
	ListPending(ctx context.Context) ([]models.QueuedUpload, error)
	PendingCount(ctx context.Context) (int, error)
	FailedUploads(ctx context.Context) ([]models.FailedUpload, error)
	Requeue(ctx context.Context, id string) error
	DiscardFailed(ctx context.Context, id string) error
	Drain(ctx context.Context, up queue.Uploader) (models.DrainResult, error)
}

type sessionManager interface {
	Unlock(ctx context.Context, pin []byte) error
	Restore(ctx context.Context) (bool, error)
	Login(ctx context.Context, t session.Tokens) error
	Logout(ctx context.Context) error
	Status() session.Status
}

type summarizer interface {
	Summary(ctx context.Context, from, to time.Time) (*stats.Summary, error)
	Invalidate()
}

type App struct {
	config   *config.Config
	log      logging.Logger
	backend  backend
	queue    uploadQueue
	session  sessionManager
	stats    summarizer
	registry *prometheus.Registry
	db       *sql.DB

	reader *bufio.Reader
	out    io.Writer

	mu   sync.Mutex
	mode Mode
}

// NewApp opens local storage and wires every component from c.
func NewApp(ctx context.Context, c *config.Config) (*App, error) {
	log, err := logging.New(c.LogBackend, c.LogLevel, os.Stderr)
	if err != nil {
		return nil, err
	}

	db, err := localdb.Open(ctx, c.DatabasePath)
	if err != nil {
		log.Error(ctx, "error initializing database", "error", err)
		return nil, err
	}

	reg := prometheus.NewRegistry()
	m := metrics.New(reg)

	imgs := images.NewRouter(nil)
	if c.S3Region != "" || c.S3Endpoint != "" {
		s3o, err := images.NewS3OpenerFromConfig(ctx, images.S3Settings{
			Region:    c.S3Region,
			Endpoint:  c.S3Endpoint,
			AccessKey: c.S3AccessKey,
			SecretKey: c.S3SecretKey,
		})
		if err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("s3 images: %w", err)
		}
		imgs.Handle("s3", s3o)
	}

	gw := gateway.New(c.ServerURL,
		gateway.WithTimeout(c.RequestTimeout),
		gateway.WithImageOpener(imgs),
		gateway.WithLogger(log),
		gateway.WithMetrics(m),
	)

	sessOpts := []session.Option{session.WithLogger(log)}
	if c.OAuthTokenURL != "" {
		sessOpts = append(sessOpts, session.WithOAuth(&oauth2.Config{
			ClientID:     c.OAuthClientID,
			ClientSecret: c.OAuthClientSecret,
			Endpoint:     oauth2.Endpoint{TokenURL: c.OAuthTokenURL},
		}))
	}
	sess := session.New(metadata.NewSQLiteRepository(db), gw, sessOpts...)
	gw.SetRefresher(sess)

	app := &App{
		config:   c,
		log:      log,
		backend:  gw,
		session:  sess,
		stats:    stats.NewService(gw, c.StatsCacheTTL, log),
		registry: reg,
		db:       db,
		reader:   bufio.NewReader(os.Stdin),
		out:      os.Stdout,
		mode:     ModeOffline,
	}

	q := queue.New(uploads.NewSQLiteRepository(db),
		queue.WithRetryBudget(c.RetryBudget),
		queue.WithConnectivity(func(context.Context) bool { return app.isOnline() }),
		queue.WithLogger(log),
		queue.WithMetrics(m),
	)
	if _, err := q.Recover(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	app.queue = q

	return app, nil
}

// Run starts the optional metrics endpoint and the REPL, and releases local
// storage when the REPL exits.
func (a *App) Run(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	defer a.Close()

	if a.config.MetricsAddr != "" {
		go func() {
			if err := serveMetrics(ctx, a.config.MetricsAddr, a.registry); err != nil {
				a.log.Error(ctx, "metrics endpoint stopped", "error", err)
			}
		}()
	}
	a.Root(ctx)
}

func (a *App) Close() error {
	if a.db == nil {
		return nil
	}
	return a.db.Close()
}

func (a *App) setMode(ctx context.Context, mode Mode) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.mode == mode {
		return false
	}
	a.mode = mode
	a.log.Info(ctx, "connectivity changed", "mode", mode)
	return true
}

func (a *App) currentMode() Mode {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.mode
}

func (a *App) isOnline() bool {
	return a.currentMode() == ModeOnline
}

func (a *App) isLoggedIn() bool {
	return a.session.Status().LoggedIn
}

// StartOnlineStatusWatcher pings the backend every interval until ctx is
// done. Every offline to online transition drains the upload queue.
func (a *App) StartOnlineStatusWatcher(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	a.checkOnline(ctx)
	for {
		select {
		case <-ticker.C:
			a.checkOnline(ctx)
		case <-ctx.Done():
			return
		}
	}
}

func (a *App) checkOnline(ctx context.Context) {
	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	err := a.backend.Ping(pingCtx)
	cancel()

	if !reachable(err) {
		a.setMode(ctx, ModeOffline)
		return
	}
	if a.setMode(ctx, ModeOnline) && a.isLoggedIn() {
		if _, err := a.drain(ctx); err != nil {
			a.log.Error(ctx, "drain after reconnect failed", "error", err)
		}
	}
}

// reachable reports whether the backend answered the ping. An auth or
// client error still proves connectivity.
func reachable(err error) bool {
	switch gateway.KindOf(err) {
	case gateway.KindUnauthorized, gateway.KindClient:
		return true
	default:
		return err == nil
	}
}

// drain runs one queue drain and invalidates cached statistics when new
// receipts reached the backend.
func (a *App) drain(ctx context.Context) (models.DrainResult, error) {
	res, err := a.queue.Drain(ctx, a.backend)
	if err != nil {
		return res, err
	}
	if res.Success > 0 {
		a.stats.Invalidate()
	}
	return res, nil
}
