package notify

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"cloud_bot/internal/models"
	"cloud_bot/pkg/logger"

	tgbot "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/pkg/errors"
)

// Controller: то, чем оператор управляет из чата.
type Controller interface {
	Snapshot() models.EngineSnapshot
	SetTradingEnabled(enabled bool)
	ForceCloseAll()
	ForceClose(symbol string) error
}

// Telegram шлёт события в один чат и принимает команды только из него.
type Telegram struct {
	bot    *tgbot.BotAPI
	chatID int64
}

func NewTelegram(token string, chatID int64) (*Telegram, error) {
	b, err := tgbot.NewBotAPI(token)
	if err != nil {
		return nil, errors.Wrap(err, "telegram bot api")
	}
	return &Telegram{bot: b, chatID: chatID}, nil
}

func (t *Telegram) Send(msg string) {
	if t == nil || t.bot == nil || t.chatID == 0 {
		return
	}
	if _, err := t.bot.Send(tgbot.NewMessage(t.chatID, msg)); err != nil {
		logger.Warn("[TG] send: %v", err)
	}
}

func (t *Telegram) Sendf(format string, args ...any) { t.Send(fmt.Sprintf(format, args...)) }

// Serve читает апдейты long-poll'ом, пока жив ctx.
func (t *Telegram) Serve(ctx context.Context, ctrl Controller) {
	u := tgbot.NewUpdate(0)
	u.Timeout = 30
	updates := t.bot.GetUpdatesChan(u)
	defer t.bot.StopReceivingUpdates()

	for {
		select {
		case <-ctx.Done():
			return
		case upd, ok := <-updates:
			if !ok {
				return
			}
			msg := upd.Message
			if msg == nil || !msg.IsCommand() || msg.Chat == nil {
				continue
			}
			if msg.Chat.ID != t.chatID {
				logger.Warn("[TG] command from foreign chat %d ignored", msg.Chat.ID)
				continue
			}
			t.Send(HandleCommand(ctrl, msg.Command(), msg.CommandArguments()))
		}
	}
}

// HandleCommand исполняет команду и возвращает текст ответа.
func HandleCommand(ctrl Controller, cmd, args string) string {
	switch cmd {
	case "status", "start":
		return FormatStatus(ctrl.Snapshot())
	case "trade_on":
		ctrl.SetTradingEnabled(true)
		return "▶️ Торговля включена"
	case "trade_off":
		ctrl.SetTradingEnabled(false)
		return "⏸ Торговля на паузе, облако продолжает считаться"
	case "close_all":
		ctrl.ForceCloseAll()
		return "🧯 Закрываю все позиции"
	case "close":
		symbol := strings.ToUpper(strings.TrimSpace(args))
		if symbol == "" {
			return "Использование: /close BTCUSDT"
		}
		if err := ctrl.ForceClose(symbol); err != nil {
			return "⚠️ " + err.Error()
		}
		return "🧯 Закрываю " + symbol
	default:
		return "Команды: /status /trade_on /trade_off /close_all /close SYMBOL"
	}
}

// FormatStatus: краткая сводка для чата.
func FormatStatus(s models.EngineSnapshot) string {
	var b strings.Builder
	onOff := func(v bool) string {
		if v {
			return "on"
		}
		return "off"
	}
	fmt.Fprintf(&b, "📊 trading=%s force_close=%s connection=%s\n",
		onOff(s.TradingEnabled), onOff(s.ForceClosePending), onOff(s.ConnectionOK))

	symbols := append([]models.SymbolStatus(nil), s.Symbols...)
	sort.Slice(symbols, func(i, j int) bool { return symbols[i].Symbol < symbols[j].Symbol })
	for _, st := range symbols {
		fmt.Fprintf(&b, "- %s %s qty=%g entry=%g pnl=%.2f zone=%s",
			st.Symbol, st.Side, st.Quantity, st.EntryPrice, st.UnrealizedPnL, st.Zone)
		if st.LastError != "" {
			fmt.Fprintf(&b, " err=%s", st.LastError)
		}
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}
