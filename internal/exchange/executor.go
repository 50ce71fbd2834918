package exchange

import (
	"context"
	"fmt"
	"time"

	"cloud_bot/internal/models"
	"cloud_bot/pkg/logger"

	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// Stage: шаг разворота (close → settle → open).
type Stage string

const (
	StageIdle     Stage = "idle"
	StageClosing  Stage = "closing"
	StageSettling Stage = "settling"
	StageOpening  Stage = "opening"
	StageDone     Stage = "done"
	// StageLeftFlat: старая сторона закрыта, новая не открылась.
	StageLeftFlat Stage = "left_flat"
)

type Order struct {
	Symbol   string
	Intent   models.Intent
	Quantity float64
}

type Execution struct {
	Intent models.Intent
	Stage  Stage
	Closed bool
	Opened *OrderResult
}

// Executor превращает Intent в вызовы Gateway.
// Разворот для движка выглядит одной операцией.
type Executor struct {
	gw     Gateway
	settle time.Duration
	log    *zap.Logger
}

func NewExecutor(gw Gateway, settle time.Duration) *Executor {
	return &Executor{
		gw:     gw,
		settle: settle,
		log:    logger.Named("executor"),
	}
}

func (e *Executor) Execute(ctx context.Context, o Order) (Execution, error) {
	ex := Execution{Intent: o.Intent, Stage: StageIdle}

	switch o.Intent {
	case models.IntentNone:
		ex.Stage = StageDone
		return ex, nil

	case models.IntentClose:
		ex.Stage = StageClosing
		if err := e.gw.ClosePosition(ctx, o.Symbol); err != nil {
			return ex, asOrderError(err)
		}
		ex.Closed = true
		ex.Stage = StageDone
		return ex, nil

	case models.IntentOpenLong, models.IntentOpenShort:
		ex.Stage = StageOpening
		res, err := e.gw.PlaceOrder(ctx, o.Symbol, entrySide(o.Intent), o.Quantity)
		if err != nil {
			return ex, asOrderError(err)
		}
		ex.Opened = &res
		ex.Stage = StageDone
		return ex, nil

	case models.IntentReverseToLong, models.IntentReverseToShort:
		return e.reverse(ctx, o)
	}

	return ex, NewOrderError(ErrInvalidQuantity, fmt.Sprintf("unknown intent %q", o.Intent))
}

func (e *Executor) reverse(ctx context.Context, o Order) (Execution, error) {
	ex := Execution{Intent: o.Intent, Stage: StageClosing}

	for {
		switch ex.Stage {
		case StageClosing:
			if err := e.gw.ClosePosition(ctx, o.Symbol); err != nil {
				// ничего не открываем поверх незакрытой позиции
				e.log.Error("[EXEC] reversal close failed",
					zap.String("symbol", o.Symbol), zap.String("intent", string(o.Intent)), zap.Error(err))
				return ex, asOrderError(err)
			}
			ex.Closed = true
			ex.Stage = StageSettling

		case StageSettling:
			if e.settle > 0 {
				t := time.NewTimer(e.settle)
				select {
				case <-t.C:
				case <-ctx.Done():
					t.Stop()
					ex.Stage = StageLeftFlat
					e.log.Error("[EXEC] reversal left flat",
						zap.String("symbol", o.Symbol), zap.Error(ctx.Err()))
					return ex, NewOrderError(ErrOutcomeUnknown, "reversal interrupted after close")
				}
			}
			ex.Stage = StageOpening

		case StageOpening:
			res, err := e.gw.PlaceOrder(ctx, o.Symbol, entrySide(o.Intent), o.Quantity)
			if err != nil {
				// без повтора: позиция остаётся пустой до следующего сигнала
				ex.Stage = StageLeftFlat
				e.log.Error("[EXEC] reversal left flat",
					zap.String("symbol", o.Symbol), zap.String("intent", string(o.Intent)), zap.Error(err))
				return ex, asOrderError(err)
			}
			ex.Opened = &res
			ex.Stage = StageDone

		default:
			return ex, nil
		}
	}
}

func entrySide(i models.Intent) models.OrderSide {
	switch i {
	case models.IntentOpenShort, models.IntentReverseToShort:
		return models.OrderSell
	default:
		return models.OrderBuy
	}
}

// asOrderError гарантирует, что наружу уходит ErrOrderExecution.
func asOrderError(err error) error {
	if errors.Is(err, ErrOrderExecution) {
		return err
	}
	if IsTimeout(err) {
		return WrapOrderError(ErrOutcomeUnknown, err)
	}
	return WrapOrderError(ErrExchangeRejected, err)
}
