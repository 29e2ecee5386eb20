package scrape

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/pokedan/cardwatch/backend/internal/metrics"
	"github.com/pokedan/cardwatch/backend/internal/models"
)

// ErrTableNotFound means the listing page had no offer table at all. No rows
// can be recovered from such a page, so this aborts the whole run.
var ErrTableNotFound = errors.New("listing table not found")

const (
	offerTableSelector         = "table#games_table"
	offerTableFallbackSelector = "table.offers"
	offerRowSelector           = "tr.offer"

	summarySelector         = "div#collection-summary"
	summaryFallbackSelector = "tfoot.summary"
	summaryValueSelector    = "span.js-total-value"
	summaryValueFallback    = "td.total span.js-price"
	summaryCountSelector    = "span.js-card-count"
	summaryCountFallback    = "td.count"
)

// Summary holds the page-reported collection totals from the listing's
// summary region. It is reported as-is, never re-derived from row prices.
type Summary struct {
	TotalValueUSD decimal.Decimal
	CardCount     int
}

// Extractor turns listing markup into offer records according to a selector
// schema. Extraction has no side effects on its input; re-running it on the
// same document yields the same records.
type Extractor struct {
	schema []FieldRule
	logger zerolog.Logger
}

// NewExtractor creates an extractor. A nil schema uses DefaultSchema.
func NewExtractor(schema []FieldRule, logger zerolog.Logger) *Extractor {
	if schema == nil {
		schema = DefaultSchema()
	}
	return &Extractor{
		schema: schema,
		logger: logger.With().Str("component", "extractor").Logger(),
	}
}

// Extract parses a full listing page. It fails only when the offer table is
// missing; defective rows are skipped with a diagnostic and extraction
// continues with the next row.
func (e *Extractor) Extract(html string) ([]models.OfferRecord, []models.Diagnostic, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, nil, fmt.Errorf("parse listing document: %w", err)
	}

	table := doc.Find(offerTableSelector)
	if table.Length() == 0 {
		table = doc.Find(offerTableFallbackSelector)
	}
	if table.Length() == 0 {
		return nil, nil, ErrTableNotFound
	}

	records, diags := e.extractRows(table, 0)
	return records, diags, nil
}

// ExtractRows parses a paged listing fragment, which carries offer rows but
// not necessarily the table wrapper. offset is the number of rows already seen
// on earlier pages, so diagnostic row indexes keep counting across the whole
// listing. An empty result is not an error; it is how the caller detects the
// end of pagination.
func (e *Extractor) ExtractRows(html string, offset int) ([]models.OfferRecord, []models.Diagnostic, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, nil, fmt.Errorf("parse listing fragment: %w", err)
	}

	records, diags := e.extractRows(doc.Selection, offset)
	return records, diags, nil
}

func (e *Extractor) extractRows(root *goquery.Selection, offset int) ([]models.OfferRecord, []models.Diagnostic) {
	var records []models.OfferRecord
	var diags []models.Diagnostic

	root.Find(offerRowSelector).Each(func(i int, row *goquery.Selection) {
		record, diag := e.extractRow(offset+i, row)
		if diag != nil {
			diags = append(diags, *diag)
			metrics.RowsSkippedTotal.WithLabelValues(diag.Field).Inc()
			e.logger.Warn().Int("row", diag.Row).Str("field", diag.Field).Str("detail", diag.Detail).Msg("skipping listing row")
			return
		}
		records = append(records, *record)
	})

	metrics.OffersExtractedTotal.Add(float64(len(records)))
	return records, diags
}

// extractRow applies every schema rule to one row. It returns either a record
// or the diagnostic explaining why the row was skipped, never both.
func (e *Extractor) extractRow(idx int, row *goquery.Selection) (*models.OfferRecord, *models.Diagnostic) {
	values := make(map[Field]string, len(e.schema))

	for _, rule := range e.schema {
		value, ok := applyRule(row, rule)
		if !ok {
			if rule.Mandatory {
				return nil, &models.Diagnostic{
					Kind:   models.DiagnosticRowSkipped,
					Row:    idx,
					Field:  string(rule.Field),
					Detail: "mandatory field not found",
				}
			}
			value = rule.Default
		}
		values[rule.Field] = value
	}

	price, err := NormalizePrice(values[FieldPrice])
	if err != nil {
		return nil, &models.Diagnostic{
			Kind:   models.DiagnosticRowSkipped,
			Row:    idx,
			Field:  string(FieldPrice),
			Detail: fmt.Sprintf("unparseable price %q: %v", values[FieldPrice], err),
		}
	}

	return &models.OfferRecord{
		RawName:    values[FieldName],
		RawGrading: values[FieldGrading],
		RawPrice:   values[FieldPrice],
		PriceUSD:   price,
		DetailRef:  values[FieldDetailRef],
	}, nil
}

func applyRule(row *goquery.Selection, rule FieldRule) (string, bool) {
	sel := row.Find(rule.Primary)
	if sel.Length() == 0 && rule.Fallback != "" {
		sel = row.Find(rule.Fallback)
	}
	if sel.Length() == 0 {
		return "", false
	}

	var value string
	if rule.Attr != "" {
		attr, ok := sel.First().Attr(rule.Attr)
		if !ok {
			return "", false
		}
		value = strings.TrimSpace(attr)
	} else {
		value = strings.TrimSpace(sel.First().Text())
	}

	if value == "" {
		return "", false
	}
	return value, true
}

// ExtractSummary locates the page's summary region and parses the reported
// total value and card count. Any failure yields nil: the snapshot degrades
// to null totals while the card list still renders.
func (e *Extractor) ExtractSummary(html string) *Summary {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil
	}

	region := doc.Find(summarySelector)
	if region.Length() == 0 {
		region = doc.Find(summaryFallbackSelector)
	}
	if region.Length() == 0 {
		return nil
	}

	valueSel := region.Find(summaryValueSelector)
	if valueSel.Length() == 0 {
		valueSel = region.Find(summaryValueFallback)
	}
	total, err := NormalizePrice(strings.TrimSpace(valueSel.First().Text()))
	if err != nil {
		return nil
	}

	countSel := region.Find(summaryCountSelector)
	if countSel.Length() == 0 {
		countSel = region.Find(summaryCountFallback)
	}
	countText := strings.TrimSpace(countSel.First().Text())
	countText = strings.ReplaceAll(countText, ",", "")
	count, err := strconv.Atoi(countText)
	if err != nil || count < 0 {
		return nil
	}

	return &Summary{TotalValueUSD: total, CardCount: count}
}

// priceReplacer strips currency glyphs and group separators ahead of decimal
// parsing. Non-breaking spaces show up in scraped price cells.
var priceReplacer = strings.NewReplacer(
	"$", "", "£", "", "€", "", "¥", "",
	"US", "", "AU", "",
	",", "", " ", "", " ", "",
)

// NormalizePrice turns raw price text like "$1,234.56" into a decimal amount.
func NormalizePrice(text string) (decimal.Decimal, error) {
	cleaned := strings.TrimSpace(priceReplacer.Replace(text))
	if cleaned == "" {
		return decimal.Decimal{}, errors.New("empty price text")
	}

	amount, err := decimal.NewFromString(cleaned)
	if err != nil {
		return decimal.Decimal{}, err
	}
	if amount.IsNegative() {
		return decimal.Decimal{}, errors.New("negative price")
	}
	return amount, nil
}
