// Package services contains server-side business logic: password accounts,
// delegated-identity resolution, the donation submission pipeline and the
// orphaned-attachment sweeper.
package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/dmitrijs2005/texbridge/internal/common"
	"github.com/dmitrijs2005/texbridge/internal/dbx"
	"github.com/dmitrijs2005/texbridge/internal/logging"
	"github.com/dmitrijs2005/texbridge/internal/server/models"
	"github.com/dmitrijs2005/texbridge/internal/server/repositories/repomanager"
	"golang.org/x/crypto/bcrypt"
)

// BcryptCost is fixed; callers cannot choose it.
const BcryptCost = 10

// errUnknownAccount is what Authenticate returns when nothing matches. It is
// an ErrInvalidCredentials to callers and an ErrNotFound to logs.
var errUnknownAccount = fmt.Errorf("%w: %w", common.ErrInvalidCredentials, common.ErrNotFound)

var (
	dummyHashOnce sync.Once
	dummyHash     []byte
)

// equalizeTiming spends about as long as a real bcrypt comparison so a
// missing account cannot be told apart by response time.
func equalizeTiming(password []byte) {
	dummyHashOnce.Do(func() {
		dummyHash, _ = bcrypt.GenerateFromPassword([]byte("texbridge-timing"), BcryptCost)
	})
	_ = bcrypt.CompareHashAndPassword(dummyHash, password)
}

// AccountService registers and verifies password accounts.
type AccountService struct {
	db          dbx.DBTX
	repomanager repomanager.RepositoryManager
	log         logging.Logger
}

func NewAccountService(db dbx.DBTX, m repomanager.RepositoryManager, log logging.Logger) *AccountService {
	return &AccountService{db: db, repomanager: m, log: log.With("module", "accounts")}
}

// Register creates a password account. All three inputs are required; a
// taken username or email yields common.ErrDuplicateAccount.
func (s *AccountService) Register(ctx context.Context, username, email, password string) (*models.Account, error) {
	var missing []string
	if strings.TrimSpace(username) == "" {
		missing = append(missing, "username")
	}
	if strings.TrimSpace(email) == "" {
		missing = append(missing, "email")
	}
	if password == "" {
		missing = append(missing, "password")
	}
	if err := common.NewValidationError(missing...); err != nil {
		return nil, err
	}

	pw := []byte(password)
	defer common.WipeByteArray(pw)

	hash, err := bcrypt.GenerateFromPassword(pw, BcryptCost)
	if err != nil {
		if errors.Is(err, bcrypt.ErrPasswordTooLong) {
			return nil, common.NewValidationError("password")
		}
		return nil, fmt.Errorf("hash password: %w", err)
	}

	repo := s.repomanager.Accounts(s.db)
	account, err := repo.Insert(ctx, &models.Account{Username: username, Email: email, PasswordHash: string(hash)})
	if err != nil {
		var dup *common.DuplicateKeyError
		if errors.As(err, &dup) {
			s.log.Info(ctx, "registration rejected", "field", dup.Field)
			return nil, fmt.Errorf("%w: %s", common.ErrDuplicateAccount, dup.Field)
		}
		return nil, fmt.Errorf("%w: %w", common.ErrStorage, err)
	}

	s.log.Info(ctx, "account registered", "account_id", account.ID)
	return account, nil
}

// Authenticate verifies a password. An identifier containing "@" is looked
// up by email, anything else by username. Unknown accounts, provider-only
// accounts and wrong passwords all yield common.ErrInvalidCredentials.
func (s *AccountService) Authenticate(ctx context.Context, identifier, password string) (*models.Account, error) {
	var missing []string
	if identifier == "" {
		missing = append(missing, "username")
	}
	if password == "" {
		missing = append(missing, "password")
	}
	if err := common.NewValidationError(missing...); err != nil {
		return nil, err
	}

	repo := s.repomanager.Accounts(s.db)

	var (
		account *models.Account
		err     error
	)
	if strings.Contains(identifier, "@") {
		account, err = repo.FindByEmail(ctx, identifier)
	} else {
		account, err = repo.FindByUsername(ctx, identifier)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %w", common.ErrStorage, err)
	}

	pw := []byte(password)
	defer common.WipeByteArray(pw)

	if account == nil {
		equalizeTiming(pw)
		return nil, errUnknownAccount
	}
	if !account.HasPassword() {
		equalizeTiming(pw)
		return nil, common.ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(account.PasswordHash), pw); err != nil {
		return nil, common.ErrInvalidCredentials
	}
	return account, nil
}
