package models

import "time"

// CacheEntry is a counter or value held in the SQL fallback of the shared cache.
type CacheEntry struct {
	Key       string `gorm:"column:cache_key;primaryKey;size:255"`
	Value     []byte
	ExpiresAt time.Time `gorm:"index"`
	CreatedAt time.Time
	UpdatedAt time.Time
}
