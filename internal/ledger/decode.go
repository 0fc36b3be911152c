package ledger

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"market-chart-lab/internal/price"
)

// Decode errors.
var (
	ErrNotMarketEvent = errors.New("not a market buy/sell event")
	ErrRemovedLog     = errors.New("log removed by reorg")
	ErrShortData      = errors.New("log data too short")
)

// wordHexLen is the hex length of one 32-byte ABI word.
const wordHexLen = 64

// Side identifies the trade direction of a decoded log.
type Side string

const (
	SideBuy  Side = "buy"
	SideSell Side = "sell"
)

// Trade is a decoded market buy/sell log.
type Trade struct {
	MarketTopic string
	Side        Side
	TxHash      string
	BlockNumber uint64
	LogIndex    uint64
	YesPrice    decimal.Decimal // scaled to [0,1]
}

// DecoderConfig configures log decoding.
type DecoderConfig struct {
	// Contract is the market contract address; empty matches any emitter.
	Contract string
	// BuySignature and SellSignature default to BuyEventSignature / SellEventSignature.
	BuySignature  string
	SellSignature string
	// PriceWordIndex is the data word holding the yes price.
	PriceWordIndex int
	// PriceDecimals is the fixed-point scale of the price word.
	PriceDecimals int32
}

// DefaultDecoderConfig returns the default decoder configuration.
func DefaultDecoderConfig() DecoderConfig {
	return DecoderConfig{
		BuySignature:   BuyEventSignature,
		SellSignature:  SellEventSignature,
		PriceWordIndex: 1,
		PriceDecimals:  price.DefaultDecimals,
	}
}

// Decoder recognises market Buy/Sell logs and extracts the yes price.
type Decoder struct {
	contract  string
	buyTopic  string
	sellTopic string
	priceWord int
	decimals  int32
}

// NewDecoder creates a decoder. Empty signatures, a negative word index and
// non-positive decimals take defaults.
func NewDecoder(cfg DecoderConfig) *Decoder {
	def := DefaultDecoderConfig()
	if cfg.BuySignature == "" {
		cfg.BuySignature = def.BuySignature
	}
	if cfg.SellSignature == "" {
		cfg.SellSignature = def.SellSignature
	}
	if cfg.PriceWordIndex < 0 {
		cfg.PriceWordIndex = def.PriceWordIndex
	}
	if cfg.PriceDecimals <= 0 {
		cfg.PriceDecimals = def.PriceDecimals
	}
	return &Decoder{
		contract:  strings.ToLower(cfg.Contract),
		buyTopic:  EventTopic(cfg.BuySignature),
		sellTopic: EventTopic(cfg.SellSignature),
		priceWord: cfg.PriceWordIndex,
		decimals:  cfg.PriceDecimals,
	}
}

// Filter returns a LogFilter for Buy/Sell events of one market.
func (d *Decoder) Filter(marketID string, from, to uint64) LogFilter {
	f := LogFilter{
		Topics:    [][]string{{d.buyTopic, d.sellTopic}, {MarketTopic(marketID)}},
		FromBlock: from,
		ToBlock:   to,
	}
	if d.contract != "" {
		f.Addresses = []string{d.contract}
	}
	return f
}

// ContractFilter returns a LogFilter for Buy/Sell events of every market.
func (d *Decoder) ContractFilter(from, to uint64) LogFilter {
	f := LogFilter{
		Topics:    [][]string{{d.buyTopic, d.sellTopic}},
		FromBlock: from,
		ToBlock:   to,
	}
	if d.contract != "" {
		f.Addresses = []string{d.contract}
	}
	return f
}

// Decode converts a log into a Trade.
func (d *Decoder) Decode(l Log) (Trade, error) {
	if l.Removed {
		return Trade{}, ErrRemovedLog
	}
	if d.contract != "" && !strings.EqualFold(l.Address, d.contract) {
		return Trade{}, ErrNotMarketEvent
	}
	if len(l.Topics) < 2 {
		return Trade{}, ErrNotMarketEvent
	}

	var side Side
	switch NormalizeTopic(l.Topics[0]) {
	case d.buyTopic:
		side = SideBuy
	case d.sellTopic:
		side = SideSell
	default:
		return Trade{}, ErrNotMarketEvent
	}

	word, err := dataWord(l.Data, d.priceWord)
	if err != nil {
		return Trade{}, err
	}
	yes, err := price.ParseFixed("0x"+word, d.decimals)
	if err != nil {
		return Trade{}, fmt.Errorf("price word: %w", err)
	}

	return Trade{
		MarketTopic: NormalizeTopic(l.Topics[1]),
		Side:        side,
		TxHash:      l.TxHash,
		BlockNumber: l.BlockNumber,
		LogIndex:    l.LogIndex,
		YesPrice:    yes,
	}, nil
}

// dataWord returns the hex digits of the i-th 32-byte word of 0x-prefixed data.
func dataWord(data string, i int) (string, error) {
	raw := strings.TrimPrefix(strings.TrimPrefix(data, "0x"), "0X")
	start := i * wordHexLen
	end := start + wordHexLen
	if end > len(raw) {
		return "", fmt.Errorf("word %d of %d-byte data: %w", i, len(raw)/2, ErrShortData)
	}
	return raw[start:end], nil
}
