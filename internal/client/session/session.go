// Package session keeps the user's bearer and refresh tokens. Tokens are
// stored sealed under a PIN-derived key in the local key-value store, loaded
// into the gateway at startup and rotated through the OAuth2 refresh-token
// grant when the backend rejects the access token.
package session

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/oauth2"

	"github.com/snaptrack/snaptrack/internal/client/repositories/metadata"
	"github.com/snaptrack/snaptrack/internal/common"
	"github.com/snaptrack/snaptrack/internal/cryptox"
	"github.com/snaptrack/snaptrack/internal/logging"
)

var (
	ErrLocked             = errors.New("session is locked, enter the PIN first")
	ErrWrongPIN           = errors.New("wrong PIN")
	ErrNoSession          = errors.New("not signed in")
	ErrRefreshUnavailable = errors.New("token refresh is not configured")
)

// Tokens is the persisted session.
type Tokens struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token,omitempty"`
	Expiry       time.Time `json:"expiry,omitempty"`
}

// TokenSink receives the current access token. *gateway.Gateway is one.
type TokenSink interface {
	SetAuthToken(token string)
	ClearAuthToken()
}

// Status describes the session for display. Subject and ExpiresAt are read
// from the access token when it is a JWT and are not verified.
type Status struct {
	LoggedIn   bool
	Subject    string
	ExpiresAt  time.Time
	Expired    bool
	CanRefresh bool
}

type Manager struct {
	kv     metadata.Repository
	sink   TokenSink
	oauth  *oauth2.Config
	client *http.Client
	log    logging.Logger
	now    func() time.Time

	mu     sync.Mutex
	key    []byte
	tokens Tokens
}

type Option func(*Manager)

// WithOAuth enables Refresh against cfg.Endpoint.TokenURL.
func WithOAuth(cfg *oauth2.Config) Option {
	return func(m *Manager) { m.oauth = cfg }
}

// WithHTTPClient sets the client used for the token endpoint.
func WithHTTPClient(c *http.Client) Option {
	return func(m *Manager) { m.client = c }
}

func WithLogger(l logging.Logger) Option {
	return func(m *Manager) { m.log = l }
}

func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

func New(kv metadata.Repository, sink TokenSink, opts ...Option) *Manager {
	m := &Manager{
		kv:   kv,
		sink: sink,
		log:  logging.Nop(),
		now:  time.Now,
	}
	for _, o := range opts {
		o(m)
	}
	m.log = m.log.With("component", "session")
	return m
}

// Unlock derives the sealing key from pin. The salt is created on first
// use and stored next to the session.
func (m *Manager) Unlock(ctx context.Context, pin []byte) error {
	salt, err := m.kv.Get(ctx, common.KeySessionSalt)
	if err != nil {
		return fmt.Errorf("read salt: %w", err)
	}
	if len(salt) == 0 {
		if salt, err = cryptox.NewSalt(); err != nil {
			return fmt.Errorf("generate salt: %w", err)
		}
		if err := m.kv.Set(ctx, common.KeySessionSalt, salt); err != nil {
			return fmt.Errorf("save salt: %w", err)
		}
	}

	key := cryptox.DeriveKey(pin, salt)
	m.mu.Lock()
	m.key = key
	m.mu.Unlock()
	return nil
}

// Restore loads the saved session into the sink. It reports false when no
// session is saved.
func (m *Manager) Restore(ctx context.Context) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.key == nil {
		return false, ErrLocked
	}
	sealed, err := m.kv.Get(ctx, common.KeySession)
	if err != nil {
		return false, fmt.Errorf("read session: %w", err)
	}
	if len(sealed) == 0 {
		return false, nil
	}

	var t Tokens
	if err := cryptox.Open(sealed, m.key, &t); err != nil {
		if errors.Is(err, cryptox.ErrDecrypt) {
			return false, ErrWrongPIN
		}
		return false, fmt.Errorf("open session: %w", err)
	}

	m.tokens = t
	m.sink.SetAuthToken(t.AccessToken)
	m.log.Info(ctx, "session restored", claimsArgs(t.AccessToken)...)
	return true, nil
}

// Login saves t and hands the access token to the sink.
func (m *Manager) Login(ctx context.Context, t Tokens) error {
	if t.AccessToken == "" {
		return errors.New("access token is required")
	}
	if t.Expiry.IsZero() {
		t.Expiry = expiryOf(t.AccessToken)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.persist(ctx, t); err != nil {
		return err
	}
	m.tokens = t
	m.sink.SetAuthToken(t.AccessToken)
	m.log.Info(ctx, "signed in", claimsArgs(t.AccessToken)...)
	return nil
}

// Logout forgets the session locally and in the sink. The salt is kept so
// the same PIN keeps working.
func (m *Manager) Logout(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.tokens = Tokens{}
	m.sink.ClearAuthToken()
	if err := m.kv.Delete(ctx, common.KeySession); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	m.log.Info(ctx, "signed out")
	return nil
}

// Refresh exchanges the refresh token for a new access token and saves the
// rotated pair. It satisfies gateway.Refresher; the gateway installs the
// returned token itself.
func (m *Manager) Refresh(ctx context.Context) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.oauth == nil {
		return "", ErrRefreshUnavailable
	}
	if m.tokens.RefreshToken == "" {
		return "", ErrNoSession
	}

	if m.client != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, m.client)
	}
	// The stale access token is dropped so the source always hits the
	// token endpoint.
	src := m.oauth.TokenSource(ctx, &oauth2.Token{RefreshToken: m.tokens.RefreshToken})
	tok, err := src.Token()
	if err != nil {
		return "", fmt.Errorf("refresh token grant: %w", err)
	}

	t := Tokens{
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		Expiry:       tok.Expiry,
	}
	if t.RefreshToken == "" {
		t.RefreshToken = m.tokens.RefreshToken
	}
	if exp := expiryOf(t.AccessToken); !exp.IsZero() {
		t.Expiry = exp
	}

	m.tokens = t
	if m.key == nil {
		m.log.Warn(ctx, "refreshed token not saved: session locked")
	} else if err := m.persist(ctx, t); err != nil {
		m.log.Warn(ctx, "refreshed token not saved", "error", err)
	}

	m.log.Info(ctx, "access token rotated", claimsArgs(t.AccessToken)...)
	return t.AccessToken, nil
}

// Status reports the current in-memory session.
func (m *Manager) Status() Status {
	m.mu.Lock()
	t := m.tokens
	m.mu.Unlock()

	s := Status{
		LoggedIn:   t.AccessToken != "",
		ExpiresAt:  t.Expiry,
		CanRefresh: m.oauth != nil && t.RefreshToken != "",
	}
	if claims := parseClaims(t.AccessToken); claims != nil {
		s.Subject, _ = claims.GetSubject()
	}
	if !s.ExpiresAt.IsZero() {
		s.Expired = !m.now().Before(s.ExpiresAt)
	}
	return s
}

// persist is called with m.mu held.
func (m *Manager) persist(ctx context.Context, t Tokens) error {
	if m.key == nil {
		return ErrLocked
	}
	sealed, err := cryptox.Seal(t, m.key)
	if err != nil {
		return fmt.Errorf("seal session: %w", err)
	}
	if err := m.kv.Set(ctx, common.KeySession, sealed); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

func parseClaims(token string) jwt.MapClaims {
	if token == "" {
		return nil
	}
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return nil
	}
	return claims
}

func expiryOf(token string) time.Time {
	claims := parseClaims(token)
	if claims == nil {
		return time.Time{}
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}
	}
	return exp.Time
}

func claimsArgs(token string) []any {
	claims := parseClaims(token)
	if claims == nil {
		return nil
	}
	sub, _ := claims.GetSubject()
	args := []any{"subject", sub}
	if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
		args = append(args, "expires_at", exp.Time)
	}
	return args
}
