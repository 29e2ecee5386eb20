package models

import (
	"github.com/shopspring/decimal"
)

// GradingPrice is one grading tier of a card with its USD price and any
// converted amounts. Converted amounts are nil when no rate was available at
// conversion time, never silently zero.
type GradingPrice struct {
	Label     string           `json:"label"`
	AmountUSD decimal.Decimal  `json:"amount_usd"`
	AmountAUD *decimal.Decimal `json:"amount_aud"`
	AmountJPY *decimal.Decimal `json:"amount_jpy"`
	DetailRef string           `json:"detail_ref,omitempty"`
}

// CardEntity is one card aggregated from all listing rows that share its
// canonical (trimmed, case-folded) name. Name keeps the first-seen casing.
// Gradings preserve first-seen order; labels are unique within a card.
type CardEntity struct {
	Name      string         `json:"name"`
	DetailRef string         `json:"detail_ref,omitempty"` // from the first row seen for this card
	ImageURL  string         `json:"image_url,omitempty"`
	Gradings  []GradingPrice `json:"gradings"`
}
