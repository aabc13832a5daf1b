package model

import (
	"errors"
	"strings"
)

// ErrUnknownMarket is returned by ResolveSymbol for markets other than forex and crypto.
var ErrUnknownMarket = errors.New("unknown market")

// Market groups instruments by how their provider tickers are formed.
type Market string

const (
	MarketForex  Market = "forex"
	MarketCrypto Market = "crypto"
)

// Instrument is a display symbol resolved to the ticker a data provider uses.
type Instrument struct {
	Market Market `json:"market"`
	Symbol string `json:"symbol"` // e.g. "EUR/USD", "BTC"
	Ticker string `json:"ticker"` // e.g. "EURUSD=X", "BTC-USD"
}

// Key returns "market:symbol".
func (i *Instrument) Key() string {
	return string(i.Market) + ":" + i.Symbol
}

var forexTickers = map[string]string{
	"EUR/USD": "EURUSD=X",
	"GBP/USD": "GBPUSD=X",
	"USD/JPY": "USDJPY=X",
	"AUD/USD": "AUDUSD=X",
	"USD/CAD": "USDCAD=X",
}

var cryptoTickers = map[string]string{
	"BTC":  "BTC-USD",
	"ETH":  "ETH-USD",
	"ADA":  "ADA-USD",
	"DOT":  "DOT-USD",
	"LINK": "LINK-USD",
}

// ResolveSymbol maps a display symbol to a provider ticker. Symbols outside
// the known tables fall back to "<BASEQUOTE>=X" for forex and "<SYM>-USD"
// for crypto.
func ResolveSymbol(market Market, symbol string) (Instrument, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	inst := Instrument{Market: market, Symbol: symbol}
	switch Market(strings.ToLower(string(market))) {
	case MarketForex:
		inst.Market = MarketForex
		if t, ok := forexTickers[symbol]; ok {
			inst.Ticker = t
		} else {
			inst.Ticker = strings.ReplaceAll(symbol, "/", "") + "=X"
		}
	case MarketCrypto:
		inst.Market = MarketCrypto
		if t, ok := cryptoTickers[symbol]; ok {
			inst.Ticker = t
		} else {
			inst.Ticker = symbol + "-USD"
		}
	default:
		return Instrument{}, ErrUnknownMarket
	}
	return inst, nil
}

// KnownSymbols lists the display symbols offered for a market, sorted as
// they are presented to users.
func KnownSymbols(market Market) []string {
	switch market {
	case MarketForex:
		return []string{"EUR/USD", "GBP/USD", "USD/JPY", "AUD/USD", "USD/CAD"}
	case MarketCrypto:
		return []string{"BTC", "ETH", "ADA", "DOT", "LINK"}
	}
	return nil
}
