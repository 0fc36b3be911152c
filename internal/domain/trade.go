package domain

import "github.com/shopspring/decimal"

// TradeRecord is an executed trade as reported by the historical indexer.
type TradeRecord struct {
	MarketID         string          // market identifier
	Timestamp        int64           // Unix timestamp in seconds
	ExecutedYesPrice decimal.Decimal // executed YES price, already scaled to [0,1]
	TransactionID    string          // transaction hash
}
