// Package session binds each request to an optional account id.
//
// A Session moves Anonymous -> Authenticated -> Anonymous. The browser holds
// an HS256-signed cookie naming an opaque session id; the id to account
// mapping lives server side in a Store, so logout takes effect immediately.
package session

import (
	"context"
	"net/http"
	"time"

	"github.com/dmitrijs2005/texbridge/internal/common"
	"github.com/dmitrijs2005/texbridge/internal/logging"
	"github.com/dmitrijs2005/texbridge/internal/server/auth"
	"github.com/dmitrijs2005/texbridge/internal/server/models"
	"github.com/google/uuid"
)

// Session is the per-request identity context. A nil AccountID means
// Anonymous.
type Session struct {
	ID        string
	AccountID *int64
}

// Authenticated reports whether the session is bound to an account.
func (s *Session) Authenticated() bool {
	return s != nil && s.AccountID != nil
}

// AccountFinder resolves account ids. A nil account with a nil error means
// the id does not exist.
type AccountFinder interface {
	FindByID(ctx context.Context, id int64) (*models.Account, error)
}

// Options configures the session cookie.
type Options struct {
	CookieName string
	TTL        time.Duration
	Secure     bool
}

type Manager struct {
	store    Store
	accounts AccountFinder
	secret   []byte
	opts     Options
	log      logging.Logger
}

func NewManager(store Store, accounts AccountFinder, secret []byte, opts Options, log logging.Logger) *Manager {
	if opts.CookieName == "" {
		opts.CookieName = common.DefaultSessionCookieName
	}
	if opts.TTL <= 0 {
		opts.TTL = 24 * time.Hour
	}
	return &Manager{store: store, accounts: accounts, secret: secret, opts: opts, log: log}
}

// Load restores the session named by the request cookie. Missing, forged,
// expired or terminated cookies all yield an Anonymous session.
func (m *Manager) Load(r *http.Request) *Session {
	c, err := r.Cookie(m.opts.CookieName)
	if err != nil || c.Value == "" {
		return &Session{}
	}
	sid, err := auth.GetSessionIDFromToken(c.Value, m.secret)
	if err != nil {
		return &Session{}
	}
	accountID, ok := m.store.Get(sid)
	if !ok {
		return &Session{}
	}
	return &Session{ID: sid, AccountID: &accountID}
}

// Establish binds s to accountID. Re-establishing for the same account is a
// no-op; a different account replaces the binding under a fresh session id.
func (m *Manager) Establish(w http.ResponseWriter, s *Session, accountID int64) error {
	if s.Authenticated() && *s.AccountID == accountID && s.ID != "" {
		return nil
	}
	if s.ID != "" {
		m.store.Delete(s.ID)
	}

	sid := uuid.NewString()
	token, err := auth.GenerateSessionToken(sid, m.secret, m.opts.TTL)
	if err != nil {
		return err
	}
	m.store.Set(sid, accountID, m.opts.TTL)

	http.SetCookie(w, &http.Cookie{
		Name:     m.opts.CookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(m.opts.TTL.Seconds()),
		HttpOnly: true,
		Secure:   m.opts.Secure,
		SameSite: http.SameSiteLaxMode,
	})

	s.ID = sid
	s.AccountID = &accountID
	return nil
}

// Current returns the bound account, or nil when the session is Anonymous or
// its account no longer exists. Only store failures are returned as errors.
func (m *Manager) Current(ctx context.Context, s *Session) (*models.Account, error) {
	if !s.Authenticated() {
		return nil, nil
	}
	account, err := m.accounts.FindByID(ctx, *s.AccountID)
	if err != nil {
		return nil, err
	}
	if account == nil {
		m.log.Info(ctx, "session bound to missing account", "account_id", *s.AccountID)
		s.AccountID = nil
		return nil, nil
	}
	return account, nil
}

// Terminate makes s Anonymous and expires the cookie. Safe to call on an
// already Anonymous session.
func (m *Manager) Terminate(w http.ResponseWriter, s *Session) {
	if s.ID != "" {
		m.store.Delete(s.ID)
	}
	s.ID = ""
	s.AccountID = nil

	http.SetCookie(w, &http.Cookie{
		Name:     m.opts.CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   m.opts.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// RequireAuthenticated is the guard used by protected operations.
func (m *Manager) RequireAuthenticated(ctx context.Context, s *Session) (*models.Account, error) {
	account, err := m.Current(ctx, s)
	if err != nil {
		return nil, err
	}
	if account == nil {
		return nil, common.ErrUnauthorized
	}
	return account, nil
}
