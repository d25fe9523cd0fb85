package domain

import "time"

// WatchedMarket is a market the operator had streaming; persisted so the
// streams come back automatically on the next start.
type WatchedMarket struct {
	Name    string    `gorm:"primaryKey" json:"name"`
	AddedAt time.Time `json:"added_at"`
}

// AppConfig represents user-specific configuration (Key-Value)
type AppConfig struct {
	Key       string    `gorm:"primaryKey" json:"key"`
	Value     string    `json:"value"`
	UpdatedAt time.Time `json:"updated_at"`
}
