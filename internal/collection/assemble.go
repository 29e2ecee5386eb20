package collection

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/pokedan/cardwatch/backend/internal/models"
	"github.com/pokedan/cardwatch/backend/internal/scrape"
)

// RateSource is the read side of the currency rate cache.
type RateSource interface {
	GetRate(base, quote string) (decimal.Decimal, bool)
}

// Assemble produces the final immutable snapshot: every grading of every
// entity priced through Convert, totals taken from the page summary. The
// input entities are not modified; priced copies are built in their place.
//
// A nil summary degrades totals and card count to nil while the card list
// stays fully populated. GeneratedAt is set here, once.
func Assemble(entities []models.CardEntity, rates RateSource, summary *scrape.Summary, diags []models.Diagnostic) *models.CollectionSnapshot {
	rateAUD := lookupRate(rates, "USD", "AUD")
	rateJPY := lookupRate(rates, "USD", "JPY")

	cards := make([]models.CardEntity, len(entities))
	for i, entity := range entities {
		priced := entity
		priced.Gradings = make([]models.GradingPrice, len(entity.Gradings))
		for j, grading := range entity.Gradings {
			grading.AmountAUD, grading.AmountJPY = Convert(grading.AmountUSD, rateAUD, rateJPY)
			priced.Gradings[j] = grading
		}
		cards[i] = priced
	}

	snapshot := &models.CollectionSnapshot{
		ID:          uuid.New().String(),
		Cards:       cards,
		GeneratedAt: time.Now(),
		Diagnostics: diags,
	}

	if summary != nil {
		total := summary.TotalValueUSD
		count := summary.CardCount
		snapshot.TotalValueUSD = &total
		snapshot.TotalValueAUD, snapshot.TotalValueJPY = Convert(total, rateAUD, rateJPY)
		snapshot.CardCount = &count
	}

	return snapshot
}

func lookupRate(rates RateSource, base, quote string) *decimal.Decimal {
	if rates == nil {
		return nil
	}
	value, ok := rates.GetRate(base, quote)
	if !ok {
		return nil
	}
	return &value
}
