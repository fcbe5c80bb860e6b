package domain_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/vitos/crypto_momentum_bot/internal/domain"
)

func TestOrderError_Is(t *testing.T) {
	cause := errors.New("i/o timeout")

	tests := []struct {
		name   string
		err    error
		is     []error
		isNot  []error
		substr string
	}{
		{
			name:   "price unavailable is data unavailable",
			err:    domain.NewOrderError(domain.PriceUnavailable, "BTCUSDT", "price fetch failed", cause),
			is:     []error{domain.PriceUnavailable, domain.DataUnavailable, cause},
			isNot:  []error{domain.OrderRejected, domain.InvalidConfiguration},
			substr: "price unavailable [BTCUSDT]: price fetch failed: i/o timeout",
		},
		{
			name:   "invalid leverage is invalid configuration",
			err:    domain.NewOrderError(domain.InvalidLeverage, "", "leverage 200 outside [1, 125]", nil),
			is:     []error{domain.InvalidLeverage, domain.InvalidConfiguration},
			isNot:  []error{domain.DataUnavailable},
			substr: "invalid leverage: leverage 200 outside [1, 125]",
		},
		{
			name:   "wrapped rejection",
			err:    fmt.Errorf("open long: %w", domain.NewOrderError(domain.OrderRejected, "ETHUSDT", "Margin is insufficient.", nil)),
			is:     []error{domain.OrderRejected},
			isNot:  []error{domain.TransientExchangeError, domain.InvalidConfiguration},
			substr: "Margin is insufficient.",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for _, target := range tt.is {
				assert.ErrorIs(t, tt.err, target)
			}
			for _, target := range tt.isNot {
				assert.NotErrorIs(t, tt.err, target)
			}
			assert.Contains(t, tt.err.Error(), tt.substr)
		})
	}
}

func TestSide_OrderSide(t *testing.T) {
	assert.Equal(t, domain.OrderSideBuy, domain.SideLong.OrderSide())
	assert.Equal(t, domain.OrderSideSell, domain.SideShort.OrderSide())
}

func TestTradingSignal_String(t *testing.T) {
	assert.Equal(t, "OPEN_LONG", domain.OpenLong.String())
	assert.Equal(t, "CLOSE_ALL", domain.CloseAll.String())
	assert.Equal(t, "UNKNOWN", domain.TradingSignal(42).String())
}
