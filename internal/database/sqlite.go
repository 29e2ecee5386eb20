package database

import (
	"os"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/pokedan/cardwatch/backend/internal/models"
)

// Open connects to the sqlite store and migrates the schema. The store holds
// the persisted rate cache and the snapshot value history; everything else in
// a run is transient.
//
// A corrupt store is "no cache": the file is removed and recreated empty, so
// the process cold-starts instead of refusing to run.
func Open(dbPath string) (*gorm.DB, error) {
	db, err := open(dbPath)
	if err == nil {
		return db, nil
	}

	if rmErr := os.Remove(dbPath); rmErr != nil {
		return nil, err
	}
	return open(dbPath)
}

func open(dbPath string) (*gorm.DB, error) {
	db, err := gorm.Open(sqlite.Open(dbPath), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, err
	}

	if err := db.AutoMigrate(&models.ExchangeRate{}, &models.SnapshotRecord{}); err != nil {
		return nil, err
	}

	return db, nil
}
