// Package repomanager hands out repositories bound to either the shared
// connection or a transaction, and owns the underlying store's lifecycle.
package repomanager

import (
	"context"

	"github.com/dmitrijs2005/gophauth/internal/dbx"
	"github.com/dmitrijs2005/gophauth/internal/server/repositories/refreshtokens"
	"github.com/dmitrijs2005/gophauth/internal/server/repositories/users"
)

type RepositoryManager interface {
	RunMigrations(ctx context.Context) error
	Ping(ctx context.Context) error
	// Conn is the non-transactional handle to pass to Users and RefreshTokens.
	Conn() dbx.DBTX
	// WithTx runs fn in a transaction; repositories built from tx take part
	// in it. fn's error rolls everything back.
	WithTx(ctx context.Context, fn func(ctx context.Context, tx dbx.DBTX) error) error
	Users(db dbx.DBTX) users.Repository
	RefreshTokens(db dbx.DBTX) refreshtokens.Repository
	Close() error
}
