package repomanager

import (
	"context"
	"database/sql"

	"github.com/dmitrijs2005/texbridge/internal/dbx"
	"github.com/dmitrijs2005/texbridge/internal/server/repositories/accounts"
	"github.com/dmitrijs2005/texbridge/internal/server/repositories/donations"
)

// RepositoryManager vends repositories bound to either the pool or an open
// transaction, and owns schema migrations.
type RepositoryManager interface {
	RunMigrations(context.Context, *sql.DB) error
	Accounts(db dbx.DBTX) accounts.Repository
	Donations(db dbx.DBTX) donations.Repository
}
