package main

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/jw6ventures/habitplanner/internal/store"
)

type MigrateCmd struct{}

func (c *MigrateCmd) Run(app *appContext) error {
	pool, err := openPool(app.ctx, app.cfg)
	if err != nil {
		return err
	}
	defer pool.Close()

	applied, err := store.New(pool).Migrate(app.ctx)
	if err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	if len(applied) == 0 {
		app.log.Info("database is up to date")
		return nil
	}
	app.log.Info("migrations applied", zap.Strings("migrations", applied))
	return nil
}
