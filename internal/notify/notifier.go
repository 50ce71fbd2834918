package notify

import (
	"fmt"

	"cloud_bot/pkg/logger"
)

// Notifier: пассивные уведомления оператору.
type Notifier interface {
	Send(msg string)
	Sendf(format string, args ...any)
}

// Stdout: вместо Telegram, когда токен не задан.
type Stdout struct{}

func NewStdout() *Stdout { return &Stdout{} }

func (Stdout) Send(msg string) { logger.Info("[NOTIFY] %s", msg) }

func (s Stdout) Sendf(format string, args ...any) { s.Send(fmt.Sprintf(format, args...)) }
