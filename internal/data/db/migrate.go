package db

import (
	types "github.com/openfolk/contacts-backend/internal/domain"
	"gorm.io/gorm"
)

func AutoMigrateAll(db *gorm.DB) error {
	return db.AutoMigrate(

		// Accounts + groups
		&types.Account{},
		&types.Group{},

		// Raw contacts and their typed rows
		&types.RawContact{},
		&types.DataRow{},
		&types.PhoneLookup{},
		&types.NameLookup{},

		// Aggregates
		&types.Contact{},
		&types.AggregationException{},
		&types.DeleteLog{},

		// Usage ranking
		&types.DataUsageStat{},
	)
}
