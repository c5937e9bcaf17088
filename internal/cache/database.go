package cache

import (
	"context"
	"errors"
	"strconv"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/seewalk/verslo-daigynas-directory-sub001/internal/database"
	"github.com/seewalk/verslo-daigynas-directory-sub001/internal/models"
)

var errNoDatabase = errors.New("cache: database store not initialised")

// DatabaseStore keeps the cache in the cache_entries table when Redis is not configured.
// Counters are stored as decimal strings so the column stays a plain blob.
type DatabaseStore struct {
	db  *gorm.DB
	now func() time.Time
}

// NewDatabaseStore returns nil for a nil db.
func NewDatabaseStore(db *gorm.DB) *DatabaseStore {
	if db == nil {
		return nil
	}
	return &DatabaseStore{db: db, now: database.Now}
}

func (s *DatabaseStore) conn(ctx context.Context) (*gorm.DB, error) {
	if s == nil || s.db == nil {
		return nil, errNoDatabase
	}
	if ctx == nil {
		ctx = context.Background()
	}
	return s.db.WithContext(ctx), nil
}

func live(entry *models.CacheEntry, now time.Time) bool {
	return entry.ExpiresAt.IsZero() || !now.After(entry.ExpiresAt)
}

// IncrementWithTTL bumps the counter under key inside a row-locking transaction. A missing
// or lapsed counter restarts at 1 with a fresh window.
func (s *DatabaseStore) IncrementWithTTL(ctx context.Context, key string, window time.Duration) (int64, time.Duration, error) {
	db, err := s.conn(ctx)
	if err != nil {
		return 0, 0, err
	}
	if window <= 0 {
		window = defaultWindow
	}

	now := s.now()
	entry := models.CacheEntry{Key: key}
	var count int64

	err = db.Transaction(func(tx *gorm.DB) error {
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).Take(&entry, "cache_key = ?", key).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			count = 1
			entry.Value = []byte("1")
			entry.ExpiresAt = now.Add(window)
			return tx.Create(&entry).Error
		case err != nil:
			return err
		}

		if live(&entry, now) {
			previous, _ := strconv.ParseInt(string(entry.Value), 10, 64)
			count = previous + 1
		} else {
			count = 1
			entry.ExpiresAt = now.Add(window)
		}
		entry.Value = strconv.AppendInt(nil, count, 10)
		return tx.Save(&entry).Error
	})
	if err != nil {
		return 0, 0, err
	}
	return count, entry.ExpiresAt.Sub(now), nil
}

// Set upserts value under key. A non-positive ttl stores the entry without expiry.
func (s *DatabaseStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	db, err := s.conn(ctx)
	if err != nil {
		return err
	}
	entry := models.CacheEntry{Key: key, Value: value}
	if ttl > 0 {
		entry.ExpiresAt = s.now().Add(ttl)
	}
	return db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "cache_key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "expires_at", "updated_at"}),
	}).Create(&entry).Error
}

// Get reports a lapsed entry as missing and removes it.
func (s *DatabaseStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	db, err := s.conn(ctx)
	if err != nil {
		return nil, false, err
	}

	var entry models.CacheEntry
	switch err := db.Take(&entry, "cache_key = ?", key).Error; {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return nil, false, nil
	case err != nil:
		return nil, false, err
	}

	if !live(&entry, s.now()) {
		_ = db.Delete(&models.CacheEntry{}, "cache_key = ?", key).Error
		return nil, false, nil
	}
	return entry.Value, true, nil
}

// Delete removes keys; unknown keys are ignored.
func (s *DatabaseStore) Delete(ctx context.Context, keys ...string) error {
	db, err := s.conn(ctx)
	if err != nil || len(keys) == 0 {
		return err
	}
	return db.Where("cache_key IN ?", keys).Delete(&models.CacheEntry{}).Error
}

// PurgeExpired removes lapsed entries for the maintenance scheduler and reports how many
// rows went. Entries without expiry are kept.
func (s *DatabaseStore) PurgeExpired(ctx context.Context) (int64, error) {
	db, err := s.conn(ctx)
	if err != nil {
		return 0, err
	}
	res := db.Where("expires_at > ? AND expires_at < ?", time.Time{}, s.now()).Delete(&models.CacheEntry{})
	return res.RowsAffected, res.Error
}
