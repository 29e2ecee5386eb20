package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// CollectionSnapshot is the complete, immutable result of one pipeline run.
// A refresh produces a wholly new snapshot; nothing mutates an existing one.
//
// Totals and CardCount come from the listing page's own summary region, not
// from re-summing grading prices (the page total may include offers outside
// the visible table). All four are nil when the summary could not be parsed;
// that is a degraded-but-valid snapshot, the card list still renders.
type CollectionSnapshot struct {
	ID            string           `json:"id"`
	Cards         []CardEntity     `json:"cards"`
	TotalValueUSD *decimal.Decimal `json:"total_value_usd"`
	TotalValueAUD *decimal.Decimal `json:"total_value_aud"`
	TotalValueJPY *decimal.Decimal `json:"total_value_jpy"`
	CardCount     *int             `json:"card_count"`
	GeneratedAt   time.Time        `json:"generated_at"`
	Diagnostics   []Diagnostic     `json:"diagnostics,omitempty"`
}

// SnapshotRecord stores per-run collection totals for historical tracking.
type SnapshotRecord struct {
	ID            uint      `json:"id" gorm:"primaryKey;autoIncrement"`
	SnapshotID    string    `json:"snapshot_id" gorm:"index"`
	CardCount     int       `json:"card_count"`
	GradingCount  int       `json:"grading_count"`
	TotalValueUSD float64   `json:"total_value_usd"`
	GeneratedAt   time.Time `json:"generated_at" gorm:"index"`
	CreatedAt     time.Time `json:"created_at"`
}

// SnapshotHistoryResponse is the API response for snapshot history.
type SnapshotHistoryResponse struct {
	Snapshots []SnapshotRecord `json:"snapshots"`
	Period    string           `json:"period"` // "week", "month", "year", "all"
}
