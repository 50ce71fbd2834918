package postgres

import (
	"context"
	"time"

	"cloud_bot/internal/journal"
	"cloud_bot/internal/modules/config"
	"cloud_bot/pkg/db"
	"cloud_bot/pkg/logger"

	"github.com/pkg/errors"
	"go.uber.org/fx"
)

type Journal struct {
	fx.Out

	Recorder journal.Recorder
	Reader   journal.Reader
}

// newJournal: без DSN журнал пишется в никуда, движку postgres не обязателен.
func newJournal(lc fx.Lifecycle, cfg *config.Config) (Journal, error) {
	if cfg.Postgres.DSN == "" {
		logger.Info("[JOURNAL] postgres.dsn is empty, journal disabled")
		return Journal{Recorder: journal.Nop{}, Reader: journal.Nop{}}, nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	poolMaster, err := db.NewPool(ctx, db.PoolConfig{
		DSN:         cfg.Postgres.DSN,
		MaxConns:    4,
		ConnTimeout: 5 * time.Second,
	})
	if err != nil {
		return Journal{}, errors.Wrap(err, "postgres pool")
	}

	tx := db.NewPgTxManager(poolMaster)
	pg := journal.NewPostgres(tx)
	if err := pg.EnsureSchema(ctx); err != nil {
		tx.Close()
		return Journal{}, err
	}

	lc.Append(fx.StopHook(tx.Close))
	logger.Info("[JOURNAL] postgres journal ready")
	return Journal{Recorder: pg, Reader: pg}, nil
}

func Module() fx.Option {
	return fx.Module("postgres",
		fx.Provide(newJournal),
	)
}
