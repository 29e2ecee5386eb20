package collection

import (
	"strings"

	"github.com/pokedan/cardwatch/backend/internal/models"
)

// canonicalName is the aggregation key: trimmed and case-folded. The entity
// keeps the first-seen casing for display.
func canonicalName(raw string) string {
	return strings.ToLower(strings.TrimSpace(raw))
}

// Aggregate groups offer records into unpriced card entities. The first
// record for a canonical name creates the entity and donates its detail ref;
// later records append grading entries. A repeated grading label on the same
// card replaces that label's price in place: the source sometimes lists a
// grading twice with a corrected price, and the last one stands.
//
// Entity order is first-seen order in the source; so is grading order within
// an entity.
func Aggregate(offers []models.OfferRecord) []models.CardEntity {
	entities := make([]models.CardEntity, 0, len(offers))
	index := make(map[string]int, len(offers))

	for _, offer := range offers {
		key := canonicalName(offer.RawName)
		if key == "" {
			continue
		}

		grading := offer.RawGrading
		if grading == "" {
			grading = models.DefaultGrading
		}

		entry := models.GradingPrice{
			Label:     grading,
			AmountUSD: offer.PriceUSD,
			DetailRef: offer.DetailRef,
		}

		i, seen := index[key]
		if !seen {
			index[key] = len(entities)
			entities = append(entities, models.CardEntity{
				Name:      strings.TrimSpace(offer.RawName),
				DetailRef: offer.DetailRef,
				Gradings:  []models.GradingPrice{entry},
			})
			continue
		}

		entity := &entities[i]
		replaced := false
		for j := range entity.Gradings {
			if entity.Gradings[j].Label == grading {
				entity.Gradings[j] = entry
				replaced = true
				break
			}
		}
		if !replaced {
			entity.Gradings = append(entity.Gradings, entry)
		}
	}

	return entities
}
