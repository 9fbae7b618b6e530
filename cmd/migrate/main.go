// README: Applies migrations/*.sql to the configured Postgres database.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"github.com/nourseensaeed7/BinWise-Recycle/internal/config"
	"github.com/nourseensaeed7/BinWise-Recycle/internal/logger"
	"github.com/nourseensaeed7/BinWise-Recycle/internal/migrate"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "migrate"})
	_ = godotenv.Load()

	cmd := flag.String("cmd", "up", "migration command: up|down|status|version|redo|reset")
	dir := flag.String("dir", migrate.DefaultDir, "goose migrations directory")
	flag.Parse()

	cfg, err := config.Load()
	requireResource(logg, "config", err)
	if cfg.DB.Driver != config.DriverPostgres {
		fmt.Fprintf(os.Stderr, "migrations target postgres; driver is %q\n", cfg.DB.Driver)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{ServiceName: "migrate", Level: logger.ParseLevel(cfg.Log.Level), Format: cfg.Log.Format})
	ctx := logg.WithFields(context.Background(), map[string]any{"cmd": *cmd, "dir": *dir})

	db, err := migrate.Open(cfg.DB.DSN)
	requireResource(logg, "database", err)
	defer db.Close()

	if err := migrate.Run(ctx, db, *dir, *cmd, flag.Args()...); err != nil {
		logg.Error(ctx, "migration failed", err)
		os.Exit(1)
	}
	logg.Info(ctx, "migration finished")
}

func requireResource(logg *logger.Logger, resource string, err error) {
	if err == nil {
		return
	}
	logg.Error(context.Background(), fmt.Sprintf("resource not working: %s", resource), err)
	os.Exit(1)
}
