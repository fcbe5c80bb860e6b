package domain

import "fmt"

// ErrorKind classifies failures. Kinds are errors themselves so callers can
// match with errors.Is(err, domain.OrderRejected).
type ErrorKind string

const (
	DataUnavailable        ErrorKind = "data unavailable"
	PriceUnavailable       ErrorKind = "price unavailable"
	InvalidConfiguration   ErrorKind = "invalid configuration"
	InvalidLeverage        ErrorKind = "invalid leverage"
	OrderRejected          ErrorKind = "order rejected"
	TransientExchangeError ErrorKind = "transient exchange error"
)

func (k ErrorKind) Error() string { return string(k) }

// parent returns the broader kind a kind belongs to, if any.
func (k ErrorKind) parent() ErrorKind {
	switch k {
	case PriceUnavailable:
		return DataUnavailable
	case InvalidLeverage:
		return InvalidConfiguration
	}
	return ""
}

type OrderError struct {
	Kind   ErrorKind
	Symbol string
	Reason string
	Err    error
}

func NewOrderError(kind ErrorKind, symbol, reason string, err error) *OrderError {
	return &OrderError{Kind: kind, Symbol: symbol, Reason: reason, Err: err}
}

func (e *OrderError) Error() string {
	msg := string(e.Kind)
	if e.Symbol != "" {
		msg = fmt.Sprintf("%s [%s]", msg, e.Symbol)
	}
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *OrderError) Unwrap() error { return e.Err }

func (e *OrderError) Is(target error) bool {
	k, ok := target.(ErrorKind)
	if !ok {
		return false
	}
	return e.Kind == k || (k != "" && e.Kind.parent() == k)
}
