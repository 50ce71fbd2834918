package journal

import (
	"context"
	"time"

	"cloud_bot/internal/models"
	"cloud_bot/pkg/db"

	"github.com/jackc/pgx/v5"
	"github.com/pkg/errors"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS trade_journal (
	id          BIGSERIAL PRIMARY KEY,
	symbol      TEXT        NOT NULL,
	intent      TEXT        NOT NULL,
	transition  TEXT        NOT NULL,
	side_before TEXT        NOT NULL,
	side_after  TEXT        NOT NULL,
	quantity    DOUBLE PRECISION NOT NULL DEFAULT 0,
	price       DOUBLE PRECISION NOT NULL DEFAULT 0,
	order_id    TEXT        NOT NULL DEFAULT '',
	status      TEXT        NOT NULL,
	error       TEXT        NOT NULL DEFAULT '',
	created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS trade_journal_symbol_created_idx ON trade_journal (symbol, created_at DESC);
`

const insertSQL = `
INSERT INTO trade_journal
	(symbol, intent, transition, side_before, side_after, quantity, price, order_id, status, error, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`

const recentSQL = `
SELECT symbol, intent, transition, side_before, side_after, quantity, price, order_id, status, error, created_at
FROM trade_journal
WHERE ($1 = '' OR symbol = $1)
ORDER BY created_at DESC
LIMIT $2`

type Postgres struct {
	tx *db.PgTxManager
}

func NewPostgres(tx *db.PgTxManager) *Postgres {
	return &Postgres{tx: tx}
}

func (p *Postgres) EnsureSchema(ctx context.Context) error {
	_, err := p.tx.Conn().Exec(ctx, schemaSQL)
	return errors.Wrap(err, "journal schema")
}

func (p *Postgres) Record(ctx context.Context, e models.JournalEntry) error {
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now()
	}
	return p.tx.RunMaster(ctx, func(ctxTx context.Context, tx pgx.Tx) error {
		_, err := tx.Exec(ctxTx, insertSQL,
			e.Symbol, string(e.Intent), string(e.Transition),
			string(e.SideBefore), string(e.SideAfter),
			e.Quantity, e.Price, e.OrderID, string(e.Status), e.Error, e.CreatedAt,
		)
		return errors.Wrap(err, "insert journal entry")
	})
}

func (p *Postgres) Recent(ctx context.Context, symbol string, limit int) ([]models.JournalEntry, error) {
	if limit <= 0 || limit > 500 {
		limit = 50
	}
	// чтение одним снимком, read-only
	var out []models.JournalEntry
	err := p.tx.RunRepeatableRead(ctx, func(ctxTx context.Context, tx pgx.Tx) error {
		rows, err := tx.Query(ctxTx, recentSQL, symbol, limit)
		if err != nil {
			return errors.Wrap(err, "query journal")
		}
		defer rows.Close()

		for rows.Next() {
			var (
				e                                 models.JournalEntry
				intent, tr, before, after, status string
			)
			if err := rows.Scan(&e.Symbol, &intent, &tr, &before, &after,
				&e.Quantity, &e.Price, &e.OrderID, &status, &e.Error, &e.CreatedAt); err != nil {
				return errors.Wrap(err, "scan journal")
			}
			e.Intent = models.Intent(intent)
			e.Transition = models.Transition(tr)
			e.SideBefore = models.Side(before)
			e.SideAfter = models.Side(after)
			e.Status = models.JournalStatus(status)
			out = append(out, e)
		}
		return errors.Wrap(rows.Err(), "iterate journal")
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
