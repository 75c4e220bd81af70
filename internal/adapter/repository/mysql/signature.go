package mysql

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// SignatureRecord is one persisted decryption signature.
type SignatureRecord struct {
	ID        uint64    `gorm:"primaryKey;column:id"`
	CacheKey  string    `gorm:"size:128;uniqueIndex;column:cache_key"`
	Payload   string    `gorm:"type:text;column:payload"`
	ExpiresAt time.Time `gorm:"index;column:expires_at"`
	CreatedAt time.Time `gorm:"column:created_at"`
	UpdatedAt time.Time `gorm:"column:updated_at"`
}

func (SignatureRecord) TableName() string { return "decryption_signatures" }

// SignatureRepository implements fhe.StringStorage on top of gorm. It works
// with both the MySQL and SQLite dialectors.
type SignatureRepository struct {
	db  *gorm.DB
	now func() time.Time
}

func NewSignatureRepository(db *gorm.DB) *SignatureRepository {
	return &SignatureRepository{db: db, now: time.Now}
}

func (r *SignatureRepository) Migrate(ctx context.Context) error {
	return r.db.WithContext(ctx).AutoMigrate(&SignatureRecord{})
}

func (r *SignatureRepository) GetItem(ctx context.Context, key string) (string, bool, error) {
	var out SignatureRecord
	res := r.db.WithContext(ctx).Where("cache_key = ?", key).First(&out)
	if errors.Is(res.Error, gorm.ErrRecordNotFound) {
		return "", false, nil
	}
	if res.Error != nil {
		return "", false, res.Error
	}
	if !out.ExpiresAt.IsZero() && !r.now().Before(out.ExpiresAt) {
		return "", false, r.RemoveItem(ctx, key)
	}
	return out.Payload, true, nil
}

// SetItem upserts on cache_key.
func (r *SignatureRepository) SetItem(ctx context.Context, key, value string, expiresAt time.Time) error {
	rec := SignatureRecord{CacheKey: key, Payload: value, ExpiresAt: expiresAt.UTC()}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "cache_key"}},
		DoUpdates: clause.AssignmentColumns([]string{"payload", "expires_at", "updated_at"}),
	}).Create(&rec).Error
}

func (r *SignatureRepository) RemoveItem(ctx context.Context, key string) error {
	return r.db.WithContext(ctx).Where("cache_key = ?", key).Delete(&SignatureRecord{}).Error
}

// PurgeExpired deletes every record whose expiry has passed.
func (r *SignatureRepository) PurgeExpired(ctx context.Context) (int64, error) {
	res := r.db.WithContext(ctx).Where("expires_at <= ?", r.now().UTC()).Delete(&SignatureRecord{})
	return res.RowsAffected, res.Error
}
