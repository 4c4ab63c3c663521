// Package accounts implements the credential store on PostgreSQL.
package accounts

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/texbridge/internal/common"
	"github.com/dmitrijs2005/texbridge/internal/dbx"
	"github.com/dmitrijs2005/texbridge/internal/server/models"
)

const selectColumns = `SELECT id, username, email, password_hash, provider_id, avatar_url, created_at FROM accounts`

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Insert relies on the table's unique constraints, so concurrent inserts of
// the same username or email produce exactly one row.
func (r *PostgresRepository) Insert(ctx context.Context, account *models.Account) (*models.Account, error) {

	query :=
		`INSERT INTO accounts (username, email, password_hash, provider_id, avatar_url)
         VALUES ($1, $2, $3, $4, $5)
		 RETURNING id, created_at
		 `

	err := r.db.QueryRowContext(ctx, query,
		account.Username, account.Email,
		nullable(account.PasswordHash), nullable(account.ProviderID), nullable(account.AvatarURL),
	).Scan(&account.ID, &account.CreatedAt)

	if err != nil {
		if constraint, ok := dbx.UniqueViolation(err); ok {
			return nil, &common.DuplicateKeyError{Field: dbx.ColumnFromConstraint("accounts", constraint)}
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	return account, nil
}

func (r *PostgresRepository) FindByID(ctx context.Context, id int64) (*models.Account, error) {
	return r.findOne(ctx, selectColumns+` WHERE id = $1`, id)
}

func (r *PostgresRepository) FindByUsername(ctx context.Context, username string) (*models.Account, error) {
	return r.findOne(ctx, selectColumns+` WHERE username = $1`, username)
}

func (r *PostgresRepository) FindByEmail(ctx context.Context, email string) (*models.Account, error) {
	return r.findOne(ctx, selectColumns+` WHERE email = $1`, email)
}

func (r *PostgresRepository) FindByProviderID(ctx context.Context, providerID string) (*models.Account, error) {
	if providerID == "" {
		return nil, nil
	}
	return r.findOne(ctx, selectColumns+` WHERE provider_id = $1`, providerID)
}

func (r *PostgresRepository) findOne(ctx context.Context, query string, arg any) (*models.Account, error) {
	var (
		a                        models.Account
		hash, providerID, avatar sql.NullString
	)

	err := r.db.QueryRowContext(ctx, query, arg).
		Scan(&a.ID, &a.Username, &a.Email, &hash, &providerID, &avatar, &a.CreatedAt)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	a.PasswordHash = hash.String
	a.ProviderID = providerID.String
	a.AvatarURL = avatar.String
	return &a, nil
}

func nullable(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
