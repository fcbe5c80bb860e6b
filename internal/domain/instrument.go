package domain

import "github.com/shopspring/decimal"

// Instrument carries the trading rules of a contract that order sizing depends on.
type Instrument struct {
	Symbol       string          `json:"symbol"`
	BaseAsset    string          `json:"base_asset"`
	QuoteAsset   string          `json:"quote_asset"`
	Status       string          `json:"status"`
	QuantityStep decimal.Decimal `json:"quantity_step"`
	MinQuantity  decimal.Decimal `json:"min_quantity"`
}

type AccountInfo struct {
	TotalWalletBalance    decimal.Decimal `json:"total_wallet_balance"`
	AvailableBalance      decimal.Decimal `json:"available_balance"`
	TotalUnrealizedProfit decimal.Decimal `json:"total_unrealized_profit"`
}
