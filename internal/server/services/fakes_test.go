package services

import (
	"context"
	"database/sql"
	"sync"
	"time"

	"github.com/dmitrijs2005/texbridge/internal/common"
	"github.com/dmitrijs2005/texbridge/internal/dbx"
	"github.com/dmitrijs2005/texbridge/internal/server/models"
	"github.com/dmitrijs2005/texbridge/internal/server/repositories/accounts"
	"github.com/dmitrijs2005/texbridge/internal/server/repositories/donations"
)

// memAccounts enforces the same unique columns as the accounts table.
type memAccounts struct {
	mu      sync.Mutex
	nextID  int64
	rows    []*models.Account
	inserts int
	// beforeInsert runs under the lock and may return an error to inject.
	beforeInsert func(m *memAccounts, a *models.Account) error
	findErr      error
}

func newMemAccounts() *memAccounts { return &memAccounts{} }

func (m *memAccounts) Insert(_ context.Context, a *models.Account) (*models.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.beforeInsert != nil {
		if err := m.beforeInsert(m, a); err != nil {
			return nil, err
		}
	}
	for _, r := range m.rows {
		switch {
		case r.Username == a.Username:
			return nil, &common.DuplicateKeyError{Field: "username"}
		case r.Email == a.Email:
			return nil, &common.DuplicateKeyError{Field: "email"}
		case a.ProviderID != "" && r.ProviderID == a.ProviderID:
			return nil, &common.DuplicateKeyError{Field: "provider_id"}
		}
	}
	m.addLocked(a)
	m.inserts++
	return a, nil
}

func (m *memAccounts) addLocked(a *models.Account) {
	m.nextID++
	a.ID = m.nextID
	a.CreatedAt = time.Now()
	cp := *a
	m.rows = append(m.rows, &cp)
}

func (m *memAccounts) find(match func(*models.Account) bool) (*models.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.findErr != nil {
		return nil, m.findErr
	}
	for _, r := range m.rows {
		if match(r) {
			cp := *r
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *memAccounts) FindByID(_ context.Context, id int64) (*models.Account, error) {
	return m.find(func(a *models.Account) bool { return a.ID == id })
}

func (m *memAccounts) FindByUsername(_ context.Context, v string) (*models.Account, error) {
	return m.find(func(a *models.Account) bool { return a.Username == v })
}

func (m *memAccounts) FindByEmail(_ context.Context, v string) (*models.Account, error) {
	return m.find(func(a *models.Account) bool { return a.Email == v })
}

func (m *memAccounts) FindByProviderID(_ context.Context, v string) (*models.Account, error) {
	if v == "" {
		return nil, nil
	}
	return m.find(func(a *models.Account) bool { return a.ProviderID == v })
}

// fakeRepoManager hands out the in-memory accounts repo and real Postgres
// donation repos bound to whatever handle (sqlmock db or tx) is passed in.
type fakeRepoManager struct {
	accounts *memAccounts
}

func (f *fakeRepoManager) RunMigrations(context.Context, *sql.DB) error { return nil }

func (f *fakeRepoManager) Accounts(dbx.DBTX) accounts.Repository { return f.accounts }

func (f *fakeRepoManager) Donations(db dbx.DBTX) donations.Repository {
	return donations.NewPostgresRepository(db)
}

type countingRecorder struct {
	mu        sync.Mutex
	submitted int
	rejected  map[string]int
	orphans   int
}

func (c *countingRecorder) DonationSubmitted(int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.submitted++
}

func (c *countingRecorder) SubmissionRejected(reason string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.rejected == nil {
		c.rejected = map[string]int{}
	}
	c.rejected[reason]++
}

func (c *countingRecorder) OrphansRemoved(n int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.orphans += n
}
