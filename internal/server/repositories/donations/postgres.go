// Package donations provides the PostgreSQL-backed donation repository.
// Photo references are stored as a single comma-delimited column; generated
// storage names never contain a comma.
package donations

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/texbridge/internal/common"
	"github.com/dmitrijs2005/texbridge/internal/dbx"
	"github.com/dmitrijs2005/texbridge/internal/server/models"
)

const photoSeparator = ","

const selectColumns = `SELECT id, owner_id, quantity, category, condition, description, address, contact,
		location_lat, location_lon, photo_paths, created_at FROM donations`

// PostgresRepository implements donation storage over a dbx.DBTX (*sql.DB or *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Insert stores a donation and fills in its ID and CreatedAt.
func (r *PostgresRepository) Insert(ctx context.Context, d *models.Donation) (*models.Donation, error) {
	if len(d.PhotoPaths) == 0 {
		return nil, errors.New("donation without photos")
	}

	query := `
		INSERT INTO donations (owner_id, quantity, category, condition, description, address, contact,
			location_lat, location_lon, photo_paths)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id, created_at
	`
	err := r.db.QueryRowContext(ctx, query,
		d.OwnerID, d.Quantity, d.Category, d.Condition, d.Description, d.Address, d.Contact,
		nullFloat(d.LocationLat), nullFloat(d.LocationLon), strings.Join(d.PhotoPaths, photoSeparator),
	).Scan(&d.ID, &d.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return d, nil
}

// Get returns the donation with the given id or common.ErrNotFound.
func (r *PostgresRepository) Get(ctx context.Context, id int64) (*models.Donation, error) {
	d, err := scanDonation(r.db.QueryRowContext(ctx, selectColumns+` WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return d, nil
}

// List returns donations newest first, optionally restricted to one owner.
// Ties on created_at are broken by id so the order is stable.
func (r *PostgresRepository) List(ctx context.Context, ownerID *int64) ([]*models.Donation, error) {
	var (
		rows *sql.Rows
		err  error
	)
	if ownerID != nil {
		rows, err = r.db.QueryContext(ctx, selectColumns+` WHERE owner_id = $1 ORDER BY created_at DESC, id DESC`, *ownerID)
	} else {
		rows, err = r.db.QueryContext(ctx, selectColumns+` ORDER BY created_at DESC, id DESC`)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to select donations: %w", err)
	}
	defer rows.Close()

	result := []*models.Donation{}
	for rows.Next() {
		d, err := scanDonation(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, d)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// ReferencedPhotos returns the set of every storage name referenced by any
// committed donation.
func (r *PostgresRepository) ReferencedPhotos(ctx context.Context) (map[string]struct{}, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT photo_paths FROM donations`)
	if err != nil {
		return nil, fmt.Errorf("failed to select photo paths: %w", err)
	}
	defer rows.Close()

	refs := make(map[string]struct{})
	for rows.Next() {
		var joined string
		if err := rows.Scan(&joined); err != nil {
			return nil, err
		}
		for _, p := range splitPaths(joined) {
			refs[p] = struct{}{}
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return refs, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanDonation(s scanner) (*models.Donation, error) {
	var (
		d        models.Donation
		lat, lon sql.NullFloat64
		photos   string
	)
	if err := s.Scan(
		&d.ID, &d.OwnerID, &d.Quantity, &d.Category, &d.Condition, &d.Description, &d.Address, &d.Contact,
		&lat, &lon, &photos, &d.CreatedAt,
	); err != nil {
		return nil, err
	}
	if lat.Valid {
		d.LocationLat = &lat.Float64
	}
	if lon.Valid {
		d.LocationLon = &lon.Float64
	}
	d.PhotoPaths = splitPaths(photos)
	return &d, nil
}

func splitPaths(joined string) []string {
	var out []string
	for _, p := range strings.Split(joined, photoSeparator) {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func nullFloat(f *float64) sql.NullFloat64 {
	if f == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *f, Valid: true}
}
