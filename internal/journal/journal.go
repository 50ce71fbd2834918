package journal

import (
	"context"

	"cloud_bot/internal/models"
)

// Recorder: журнал решений и ордеров по символам.
type Recorder interface {
	Record(ctx context.Context, e models.JournalEntry) error
}

// Reader отдаёт последние записи (для API).
type Reader interface {
	Recent(ctx context.Context, symbol string, limit int) ([]models.JournalEntry, error)
}

// Nop: журнал без хранилища, когда postgres не настроен.
type Nop struct{}

func (Nop) Record(context.Context, models.JournalEntry) error { return nil }

func (Nop) Recent(context.Context, string, int) ([]models.JournalEntry, error) { return nil, nil }
