package services

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/dmitrijs2005/texbridge/internal/common"
	"github.com/dmitrijs2005/texbridge/internal/dbx"
	"github.com/dmitrijs2005/texbridge/internal/logging"
	"github.com/dmitrijs2005/texbridge/internal/server/models"
	"github.com/dmitrijs2005/texbridge/internal/server/repositories/repomanager"
)

// maxUsernameAttempts bounds retries when a generated username is taken.
const maxUsernameAttempts = 3

// ProviderResolver maps a provider subject id to a local account, creating
// the account on first sight. It never merges a provider identity into an
// existing password account.
type ProviderResolver struct {
	db          dbx.DBTX
	repomanager repomanager.RepositoryManager
	log         logging.Logger
	now         func() time.Time
}

func NewProviderResolver(db dbx.DBTX, m repomanager.RepositoryManager, log logging.Logger) *ProviderResolver {
	return &ProviderResolver{db: db, repomanager: m, log: log.With("module", "provider_resolver"), now: time.Now}
}

// Resolve returns the account linked to subjectID. An existing account is
// returned unchanged. Conflicts on email are reported as
// *common.ProviderResolutionError.
func (s *ProviderResolver) Resolve(ctx context.Context, subjectID, emailHint, displayNameHint, avatarHint string) (*models.Account, error) {
	if subjectID == "" {
		return nil, &common.ProviderResolutionError{Cause: errors.New("empty subject id")}
	}

	repo := s.repomanager.Accounts(s.db)

	existing, err := repo.FindByProviderID(ctx, subjectID)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", common.ErrStorage, err)
	}
	if existing != nil {
		return existing, nil
	}

	if strings.TrimSpace(emailHint) == "" {
		return nil, &common.ProviderResolutionError{Cause: errors.New("provider supplied no email")}
	}

	for attempt := 0; attempt < maxUsernameAttempts; attempt++ {
		username, err := deriveUsername(displayNameHint, s.now(), attempt)
		if err != nil {
			return nil, err
		}

		created, err := repo.Insert(ctx, &models.Account{
			Username:   username,
			Email:      emailHint,
			ProviderID: subjectID,
			AvatarURL:  avatarHint,
		})
		if err == nil {
			s.log.Info(ctx, "provider account created", "account_id", created.ID)
			return created, nil
		}

		var dup *common.DuplicateKeyError
		if !errors.As(err, &dup) {
			return nil, fmt.Errorf("%w: %w", common.ErrStorage, err)
		}

		switch dup.Field {
		case "username":
			s.log.Debug(ctx, "generated username taken, retrying", "attempt", attempt+1)
			continue
		case "provider_id":
			// Lost a race with a concurrent first resolution of the same subject.
			winner, ferr := repo.FindByProviderID(ctx, subjectID)
			if ferr != nil {
				return nil, fmt.Errorf("%w: %w", common.ErrStorage, ferr)
			}
			if winner != nil {
				return winner, nil
			}
			return nil, &common.ProviderResolutionError{Cause: err}
		default:
			s.log.Warn(ctx, "provider identity conflicts with existing account", "field", dup.Field)
			return nil, &common.ProviderResolutionError{Cause: err}
		}
	}

	return nil, &common.ProviderResolutionError{
		Cause: fmt.Errorf("generated username still taken after %d attempts", maxUsernameAttempts),
	}
}

// deriveUsername joins the words of displayName with "_" and appends a
// millisecond timestamp. Retries add a random token as well.
func deriveUsername(displayName string, now time.Time, attempt int) (string, error) {
	base := strings.Join(strings.Fields(displayName), "_")
	if base == "" {
		base = "user"
	}
	name := base + "_" + strconv.FormatInt(now.UnixMilli(), 10)
	if attempt > 0 {
		token, err := common.MakeRandHexString(3)
		if err != nil {
			return "", err
		}
		name += "_" + token
	}
	return name, nil
}
