package db

import (
	"fmt"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// InitDB opens the Postgres connection and migrates the schema.
func InitDB(dsn string) (*gorm.DB, error) {
	g, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}
	if err := g.AutoMigrate(&User{}, &Key{}, &BillingEvent{}, &Alert{}); err != nil {
		return nil, fmt.Errorf("migrate schema: %w", err)
	}
	return g, nil
}
