package accounts

import (
	"context"

	"github.com/dmitrijs2005/texbridge/internal/server/models"
)

// Repository is the credential store. Find* methods return (nil, nil) when
// no account matches. Insert fails with *common.DuplicateKeyError when the
// username, email or provider id is already taken; nothing is written then.
type Repository interface {
	Insert(ctx context.Context, account *models.Account) (*models.Account, error)
	FindByID(ctx context.Context, id int64) (*models.Account, error)
	FindByUsername(ctx context.Context, username string) (*models.Account, error)
	FindByEmail(ctx context.Context, email string) (*models.Account, error)
	FindByProviderID(ctx context.Context, providerID string) (*models.Account, error)
}
