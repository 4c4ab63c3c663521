// Package accountctl implements the operator commands of texbridge: applying
// migrations, creating password accounts from a terminal and running one
// orphan sweep by hand.
package accountctl

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/dmitrijs2005/texbridge/internal/common"
	"github.com/dmitrijs2005/texbridge/internal/server/models"
)

var (
	ErrUnknownCommand   = errors.New("unknown command")
	ErrPasswordMismatch = errors.New("passwords do not match")
)

type Registrar interface {
	Register(ctx context.Context, username, email, password string) (*models.Account, error)
}

type Sweeper interface {
	SweepOnce(ctx context.Context) (int, error)
}

type App struct {
	accounts Registrar
	sweeper  Sweeper
	migrate  func(ctx context.Context) error
	reader   *bufio.Reader
	out      io.Writer
}

func NewApp(accounts Registrar, sweeper Sweeper, migrate func(ctx context.Context) error, in io.Reader, out io.Writer) *App {
	return &App{
		accounts: accounts,
		sweeper:  sweeper,
		migrate:  migrate,
		reader:   bufio.NewReader(in),
		out:      out,
	}
}

// Usage describes the available commands.
const Usage = `usage: accountctl <command> [flags]

commands:
  migrate    apply pending database migrations
  register   create a password account
  sweep      remove unreferenced attachments once
`

func (a *App) Run(ctx context.Context, cmd string) error {
	switch cmd {
	case "migrate":
		if err := a.migrate(ctx); err != nil {
			return err
		}
		fmt.Fprintln(a.out, "Migrations applied")
		return nil
	case "register":
		return a.register(ctx)
	case "sweep":
		n, err := a.sweeper.SweepOnce(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(a.out, "Removed %d orphaned attachment(s)\n", n)
		return nil
	case "help", "":
		fmt.Fprint(a.out, Usage)
		return nil
	default:
		return fmt.Errorf("%w: %s", ErrUnknownCommand, cmd)
	}
}

func (a *App) register(ctx context.Context) error {
	username, err := GetSimpleText(a.reader, "Enter user name", a.out)
	if err != nil {
		return err
	}
	email, err := GetSimpleText(a.reader, "Enter email", a.out)
	if err != nil {
		return err
	}

	password, err := GetPassword(a.out, "Enter password: ")
	if err != nil {
		return err
	}
	defer common.WipeByteArray(password)

	repeat, err := GetPassword(a.out, "Repeat password: ")
	if err != nil {
		return err
	}
	defer common.WipeByteArray(repeat)

	if !bytes.Equal(password, repeat) {
		return ErrPasswordMismatch
	}

	account, err := a.accounts.Register(ctx, username, email, string(password))
	if err != nil {
		return err
	}

	fmt.Fprintf(a.out, "Created account %d (%s)\n", account.ID, account.Username)
	return nil
}
