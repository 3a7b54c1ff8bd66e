package main

import (
	"errors"
	"flag"
	"fmt"
	"os"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"go.uber.org/zap"

	"github.com/khoahotran/stories-backend/internal/config"
	"github.com/khoahotran/stories-backend/pkg/logger"
)

func main() {
	dir := flag.String("path", "migrations", "directory holding the SQL migrations")
	steps := flag.Int("steps", 0, "apply N migrations (negative rolls back); 0 means all the way up, or down with -down")
	down := flag.Bool("down", false, "roll back every migration")
	flag.Parse()

	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: cannot load config: %v\n", err)
		os.Exit(1)
	}
	appLogger := logger.NewZapLogger(cfg.App.Env)

	m, err := migrate.New("file://"+*dir, cfg.DB.DSN)
	if err != nil {
		appLogger.Fatal("Failed to create migrate instance", err)
	}
	defer m.Close()

	switch {
	case *steps != 0:
		err = m.Steps(*steps)
	case *down:
		err = m.Down()
	default:
		err = m.Up()
	}
	if err != nil && !errors.Is(err, migrate.ErrNoChange) {
		appLogger.Fatal("Migration failed", err)
	}

	version, dirty, verr := m.Version()
	if verr != nil && !errors.Is(verr, migrate.ErrNilVersion) {
		appLogger.Fatal("Failed to read schema version", verr)
	}
	appLogger.Info("Migrations applied", zap.Uint("version", version), zap.Bool("dirty", dirty))
}
