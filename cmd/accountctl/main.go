package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/dmitrijs2005/texbridge/internal/accountctl"
	"github.com/dmitrijs2005/texbridge/internal/logging"
	"github.com/dmitrijs2005/texbridge/internal/server"
	"github.com/dmitrijs2005/texbridge/internal/server/config"
	"github.com/dmitrijs2005/texbridge/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/texbridge/internal/server/services"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func run() error {
	cmd := ""
	if len(os.Args) > 1 && !strings.HasPrefix(os.Args[1], "-") {
		cmd = os.Args[1]
	}
	if cmd == "" || cmd == "help" {
		fmt.Fprint(os.Stdout, accountctl.Usage)
		return nil
	}

	ctx := context.Background()
	cfg := config.LoadConfig()
	logger := logging.NewJSON(os.Stderr, cfg.LogLevel)

	db, err := repomanager.OpenPostgres(ctx, cfg.DatabaseDSN)
	if err != nil {
		return err
	}
	defer db.Close()

	rm := repomanager.NewPostgresRepositoryManager()
	migrate := func(ctx context.Context) error { return rm.RunMigrations(ctx, db) }

	var sweeper accountctl.Sweeper
	if cmd == "sweep" {
		store, err := server.NewStore(ctx, cfg)
		if err != nil {
			return err
		}
		sweeper = services.NewOrphanSweeper(db, rm, store, cfg.OrphanGracePeriod, cfg.OrphanSweepInterval, logger, nil)
	}

	app := accountctl.NewApp(services.NewAccountService(db, rm, logger), sweeper, migrate, os.Stdin, os.Stdout)
	return app.Run(ctx, cmd)
}
