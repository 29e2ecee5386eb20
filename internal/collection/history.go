package collection

import (
	"time"

	"gorm.io/gorm"

	"github.com/pokedan/cardwatch/backend/internal/models"
)

// History records per-run collection totals for value-over-time tracking.
type History struct {
	db *gorm.DB
}

// NewHistory creates the history store. db may be nil to disable recording.
func NewHistory(db *gorm.DB) *History {
	return &History{db: db}
}

// Record persists the totals of a finished snapshot. Degraded snapshots with
// null totals are skipped: a null total is "unknown", not zero, and a zero
// row would poison the history chart.
func (h *History) Record(snapshot *models.CollectionSnapshot) error {
	if h.db == nil || snapshot.TotalValueUSD == nil || snapshot.CardCount == nil {
		return nil
	}

	gradings := 0
	for _, card := range snapshot.Cards {
		gradings += len(card.Gradings)
	}

	record := models.SnapshotRecord{
		SnapshotID:    snapshot.ID,
		CardCount:     *snapshot.CardCount,
		GradingCount:  gradings,
		TotalValueUSD: snapshot.TotalValueUSD.InexactFloat64(),
		GeneratedAt:   snapshot.GeneratedAt,
		CreatedAt:     time.Now(),
	}

	return h.db.Create(&record).Error
}

// GetHistory retrieves snapshot records for a given period.
func (h *History) GetHistory(period string) ([]models.SnapshotRecord, error) {
	if h.db == nil {
		return nil, nil
	}

	now := time.Now()
	var startDate time.Time

	switch period {
	case "week":
		startDate = now.AddDate(0, 0, -7)
	case "month":
		startDate = now.AddDate(0, -1, 0)
	case "3month":
		startDate = now.AddDate(0, -3, 0)
	case "year":
		startDate = now.AddDate(-1, 0, 0)
	case "all":
		startDate = time.Time{} // No filter
	default:
		startDate = now.AddDate(0, -1, 0) // Default to 1 month
	}

	query := h.db.Order("generated_at ASC")
	if !startDate.IsZero() {
		query = query.Where("generated_at >= ?", startDate)
	}

	var records []models.SnapshotRecord
	if err := query.Find(&records).Error; err != nil {
		return nil, err
	}
	return records, nil
}
