// Package admin implements operator commands that act directly on the
// credential store: toggling accounts, revoking sessions and removing users.
// None of them is reachable over HTTP.
package admin

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/dmitrijs2005/gophauth/internal/common"
	"github.com/dmitrijs2005/gophauth/internal/dbx"
	"github.com/dmitrijs2005/gophauth/internal/server/models"
	"github.com/dmitrijs2005/gophauth/internal/server/repositories/repomanager"
)

const (
	CmdActivate       = "activate"
	CmdDeactivate     = "deactivate"
	CmdRevokeSessions = "revoke-sessions"
	CmdDeleteUser     = "delete-user"
)

const Usage = "usage: gophauth-admin [flags] activate|deactivate|revoke-sessions|delete-user <email>"

var ErrUnknownCommand = errors.New("unknown command")

type Admin struct {
	rm  repomanager.RepositoryManager
	out io.Writer
}

func New(rm repomanager.RepositoryManager, out io.Writer) *Admin {
	return &Admin{rm: rm, out: out}
}

// Exec runs one command against the account with the given email.
func (a *Admin) Exec(ctx context.Context, cmd, email string) error {
	switch cmd {
	case CmdActivate:
		return a.setActive(ctx, email, true)
	case CmdDeactivate:
		return a.setActive(ctx, email, false)
	case CmdRevokeSessions:
		return a.revokeSessions(ctx, email)
	case CmdDeleteUser:
		return a.deleteUser(ctx, email)
	default:
		return fmt.Errorf("%w: %q", ErrUnknownCommand, cmd)
	}
}

// setActive flips the account flag. Deactivation also revokes every refresh
// token in the same transaction so no session outlives it.
func (a *Admin) setActive(ctx context.Context, email string, active bool) error {
	var revoked int64
	err := a.rm.WithTx(ctx, func(ctx context.Context, tx dbx.DBTX) error {
		u, err := a.findUser(ctx, tx, email)
		if err != nil {
			return err
		}
		if _, err := a.rm.Users(tx).SetActive(ctx, u.ID, active); err != nil {
			return err
		}
		if active {
			return nil
		}
		revoked, err = a.rm.RefreshTokens(tx).DeleteAllForUser(ctx, u.ID)
		return err
	})
	if err != nil {
		return err
	}

	if active {
		fmt.Fprintf(a.out, "activated %s\n", email)
	} else {
		fmt.Fprintf(a.out, "deactivated %s, revoked %d session(s)\n", email, revoked)
	}
	return nil
}

func (a *Admin) revokeSessions(ctx context.Context, email string) error {
	conn := a.rm.Conn()
	u, err := a.findUser(ctx, conn, email)
	if err != nil {
		return err
	}
	n, err := a.rm.RefreshTokens(conn).DeleteAllForUser(ctx, u.ID)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "revoked %d session(s) of %s\n", n, email)
	return nil
}

func (a *Admin) deleteUser(ctx context.Context, email string) error {
	conn := a.rm.Conn()
	u, err := a.findUser(ctx, conn, email)
	if err != nil {
		return err
	}
	if _, err := a.rm.Users(conn).Delete(ctx, u.ID); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "deleted %s\n", email)
	return nil
}

func (a *Admin) findUser(ctx context.Context, db dbx.DBTX, email string) (*models.User, error) {
	u, err := a.rm.Users(db).GetUserByEmail(ctx, email)
	if errors.Is(err, common.ErrorNotFound) {
		return nil, fmt.Errorf("%w: %s", common.ErrUserNotFound, email)
	}
	return u, err
}
