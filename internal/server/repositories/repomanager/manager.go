package repomanager

import (
	"context"
	"database/sql"

	"github.com/aelouarti/partage/internal/dbx"
	"github.com/aelouarti/partage/internal/server/repositories/files"
	"github.com/aelouarti/partage/internal/server/repositories/shares"
	"github.com/aelouarti/partage/internal/server/repositories/users"
)

// RepositoryManager vends repositories bound to a DBTX, so a service can run
// the same repository code against the pool or inside a transaction.
type RepositoryManager interface {
	RunMigrations(context.Context, *sql.DB) error
	Users(db dbx.DBTX) users.Repository
	Files(db dbx.DBTX) files.Repository
	Shares(db dbx.DBTX) shares.Repository
}
