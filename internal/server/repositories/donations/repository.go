package donations

import (
	"context"

	"github.com/dmitrijs2005/texbridge/internal/server/models"
)

// Repository persists donations. Donations are never updated or deleted.
type Repository interface {
	Insert(ctx context.Context, donation *models.Donation) (*models.Donation, error)
	Get(ctx context.Context, id int64) (*models.Donation, error)
	List(ctx context.Context, ownerID *int64) ([]*models.Donation, error)
	ReferencedPhotos(ctx context.Context) (map[string]struct{}, error)
}
