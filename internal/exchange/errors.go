package exchange

import (
	"context"
	"net"

	"github.com/pkg/errors"
)

var (
	// ErrDataUnavailable: биржа не отдала свечи/позицию/цену.
	ErrDataUnavailable = errors.New("data unavailable")

	// ErrOrderExecution: общий корень ошибок исполнения ордера.
	ErrOrderExecution = errors.New("order execution failure")

	ErrInsufficientMargin = errors.New("insufficient margin")
	ErrInvalidQuantity    = errors.New("invalid quantity")
	ErrExchangeRejected   = errors.New("exchange rejected")

	// ErrOutcomeUnknown: таймаут: ордер мог пройти, сверяемся на следующем цикле.
	ErrOutcomeUnknown = errors.New("order outcome unknown")

	ErrRateLimited = errors.New("rate limited")
)

// orderError сохраняет и конкретную причину, и принадлежность к ErrOrderExecution.
type orderError struct {
	kind   error
	reason string
	cause  error
}

func (e *orderError) Error() string {
	if e.reason == "" {
		return ErrOrderExecution.Error() + ": " + e.kind.Error()
	}
	return ErrOrderExecution.Error() + ": " + e.kind.Error() + ": " + e.reason
}

func (e *orderError) Is(target error) bool {
	return target == ErrOrderExecution || target == e.kind
}

func (e *orderError) Unwrap() error {
	if e.cause != nil {
		return e.cause
	}
	return e.kind
}

// NewOrderError заворачивает причину в таксономию исполнения.
func NewOrderError(kind error, reason string) error {
	return errors.WithStack(&orderError{kind: kind, reason: reason})
}

// WrapOrderError то же самое, но с исходной ошибкой в цепочке.
func WrapOrderError(kind error, cause error) error {
	return errors.WithStack(&orderError{kind: kind, reason: cause.Error(), cause: cause})
}

// dataError: принадлежность к ErrDataUnavailable, исходная причина остаётся в цепочке.
type dataError struct {
	cause error
}

func (e *dataError) Error() string { return ErrDataUnavailable.Error() + ": " + e.cause.Error() }

func (e *dataError) Is(target error) bool { return target == ErrDataUnavailable }

func (e *dataError) Unwrap() error { return e.cause }

// WrapDataError помечает сбой чтения. ErrRateLimited и прочие причины видны через errors.Is.
func WrapDataError(cause error) error {
	if cause == nil || errors.Is(cause, ErrDataUnavailable) {
		return cause
	}
	return errors.WithStack(&dataError{cause: cause})
}

// IsTimeout: дедлайн контекста или сетевой таймаут.
func IsTimeout(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}
