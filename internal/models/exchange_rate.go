package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// RatePair is an ordered (base, quote) currency tuple.
type RatePair struct {
	Base  string
	Quote string
}

func (p RatePair) String() string {
	return p.Base + "/" + p.Quote
}

// The two conversions the collection view needs.
var (
	PairUSDAUD = RatePair{Base: "USD", Quote: "AUD"}
	PairUSDJPY = RatePair{Base: "USD", Quote: "JPY"}
)

// RequiredPairs lists every pair a provider response must quote to be
// considered complete.
var RequiredPairs = []RatePair{PairUSDAUD, PairUSDJPY}

// ExchangeRate is one cached conversion rate. It is owned exclusively by the
// rate cache and doubles as its persisted row, keyed by the pair string.
type ExchangeRate struct {
	Pair      string          `json:"pair" gorm:"primaryKey"`
	Value     decimal.Decimal `json:"value" gorm:"type:numeric;not null"`
	FetchedAt time.Time       `json:"fetched_at" gorm:"not null"`
}

// Age returns how old the rate is at the given instant.
func (r ExchangeRate) Age(now time.Time) time.Duration {
	return now.Sub(r.FetchedAt)
}
