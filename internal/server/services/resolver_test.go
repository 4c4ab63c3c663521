package services

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/dmitrijs2005/texbridge/internal/common"
	"github.com/dmitrijs2005/texbridge/internal/logging"
	"github.com/dmitrijs2005/texbridge/internal/server/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.UnixMilli(1700000000123)

func newResolver(t *testing.T) (*ProviderResolver, *memAccounts) {
	t.Helper()
	repo := newMemAccounts()
	r := NewProviderResolver(nil, &fakeRepoManager{accounts: repo}, logging.Nop{})
	r.now = func() time.Time { return fixedNow }
	return r, repo
}

func TestResolve_CreatesOnFirstSight(t *testing.T) {
	r, repo := newResolver(t)

	acc, err := r.Resolve(context.Background(), "sub-1", "jane@x.com", "Jane  Q\tDoe", "https://pic")
	require.NoError(t, err)
	assert.Equal(t, "Jane_Q_Doe_1700000000123", acc.Username)
	assert.Equal(t, "jane@x.com", acc.Email)
	assert.Equal(t, "sub-1", acc.ProviderID)
	assert.Equal(t, "https://pic", acc.AvatarURL)
	assert.False(t, acc.HasPassword())
	assert.Equal(t, 1, repo.inserts)
}

func TestResolve_IsIdempotent(t *testing.T) {
	r, repo := newResolver(t)
	ctx := context.Background()

	first, err := r.Resolve(ctx, "sub-1", "jane@x.com", "Jane", "")
	require.NoError(t, err)

	r.now = func() time.Time { return fixedNow.Add(time.Hour) }
	second, err := r.Resolve(ctx, "sub-1", "new@x.com", "Someone Else", "https://new")
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, first.Username, second.Username, "no field refresh")
	assert.Equal(t, "jane@x.com", second.Email)
	assert.Equal(t, 1, repo.inserts)
}

func TestResolve_EmailOwnedByPasswordAccount(t *testing.T) {
	r, repo := newResolver(t)
	repo.addLocked(&models.Account{Username: "alice", Email: "alice@x.com", PasswordHash: "h"})

	_, err := r.Resolve(context.Background(), "sub-9", "alice@x.com", "Alice", "")
	require.ErrorIs(t, err, common.ErrProviderResolution)
	assert.ErrorIs(t, err, common.ErrDuplicateKey)

	var pre *common.ProviderResolutionError
	require.ErrorAs(t, err, &pre)

	// nothing merged
	acc, _ := repo.FindByEmail(context.Background(), "alice@x.com")
	assert.Empty(t, acc.ProviderID)
	assert.Equal(t, 0, repo.inserts)
}

func TestResolve_RetriesOnUsernameCollision(t *testing.T) {
	r, repo := newResolver(t)
	repo.addLocked(&models.Account{Username: "Jane_1700000000123", Email: "other@x.com", PasswordHash: "h"})

	acc, err := r.Resolve(context.Background(), "sub-1", "jane@x.com", "Jane", "")
	require.NoError(t, err)
	assert.Regexp(t, regexp.MustCompile(`^Jane_1700000000123_[0-9a-f]{6}$`), acc.Username)
}

func TestResolve_GivesUpAfterBoundedRetries(t *testing.T) {
	r, repo := newResolver(t)
	attempts := 0
	repo.beforeInsert = func(*memAccounts, *models.Account) error {
		attempts++
		return &common.DuplicateKeyError{Field: "username"}
	}

	_, err := r.Resolve(context.Background(), "sub-1", "jane@x.com", "Jane", "")
	assert.ErrorIs(t, err, common.ErrProviderResolution)
	assert.Equal(t, maxUsernameAttempts, attempts)
}

func TestResolve_ConcurrentFirstResolutionReturnsWinner(t *testing.T) {
	r, repo := newResolver(t)
	var winnerID int64
	repo.beforeInsert = func(m *memAccounts, a *models.Account) error {
		m.beforeInsert = nil
		w := &models.Account{Username: "winner", Email: a.Email, ProviderID: a.ProviderID}
		m.addLocked(w)
		winnerID = w.ID
		return &common.DuplicateKeyError{Field: "provider_id"}
	}

	acc, err := r.Resolve(context.Background(), "sub-1", "jane@x.com", "Jane", "")
	require.NoError(t, err)
	assert.Equal(t, winnerID, acc.ID)
	assert.Equal(t, "winner", acc.Username)
}

func TestResolve_InputErrors(t *testing.T) {
	r, _ := newResolver(t)

	_, err := r.Resolve(context.Background(), "", "a@x", "A", "")
	assert.ErrorIs(t, err, common.ErrProviderResolution)

	_, err = r.Resolve(context.Background(), "sub-1", "", "A", "")
	assert.ErrorIs(t, err, common.ErrProviderResolution)
}

func TestResolve_StorageError(t *testing.T) {
	r, repo := newResolver(t)
	repo.findErr = errors.New("db down")

	_, err := r.Resolve(context.Background(), "sub-1", "a@x", "A", "")
	assert.ErrorIs(t, err, common.ErrStorage)
	assert.NotErrorIs(t, err, common.ErrProviderResolution)
}

func TestDeriveUsername(t *testing.T) {
	name, err := deriveUsername("   ", fixedNow, 0)
	require.NoError(t, err)
	assert.Equal(t, "user_1700000000123", name)

	name, err = deriveUsername("Ana María López", fixedNow, 0)
	require.NoError(t, err)
	assert.Equal(t, "Ana_María_López_1700000000123", name)
}
