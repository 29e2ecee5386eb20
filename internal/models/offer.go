package models

import (
	"github.com/shopspring/decimal"
)

// DefaultGrading is substituted when a listing row has no grading cell.
const DefaultGrading = "Ungraded"

// OfferRecord is one row of the seller listing: a single card/grading/price
// combination. Records are transient; they exist between extraction and
// aggregation and are not persisted.
type OfferRecord struct {
	RawName    string          `json:"raw_name"`
	RawGrading string          `json:"raw_grading"`
	RawPrice   string          `json:"raw_price"`
	PriceUSD   decimal.Decimal `json:"price_usd"`
	DetailRef  string          `json:"detail_ref,omitempty"` // relative detail-page path, empty when the row had no link
}

// DiagnosticKind classifies non-fatal conditions observed during a run.
type DiagnosticKind string

const (
	DiagnosticRowSkipped       DiagnosticKind = "row_skipped"
	DiagnosticSummaryMissing   DiagnosticKind = "summary_missing"
	DiagnosticImageUnresolved  DiagnosticKind = "image_unresolved"
	DiagnosticRatesUnavailable DiagnosticKind = "rates_unavailable"
)

// Diagnostic records a condition that was absorbed instead of raised.
// Fatal conditions are returned as errors and never appear here.
type Diagnostic struct {
	Kind   DiagnosticKind `json:"kind"`
	Row    int            `json:"row,omitempty"`
	Field  string         `json:"field,omitempty"`
	Detail string         `json:"detail,omitempty"`
}
