package store

import (
	"context"

	"gorm.io/gorm"

	"shopsync/internal/model"
)

// ChecksumStore is the small key/value table the import pipeline uses to
// remember the last imported content hash per bundle section.
type ChecksumStore struct {
	s *Store
}

func NewChecksumStore(s *Store) *ChecksumStore { return &ChecksumStore{s: s} }

// Get returns the stored hash for key, or "" when none was recorded.
func (c *ChecksumStore) Get(ctx context.Context, key string) (string, error) {
	var rec model.ChecksumRecord
	err := c.s.db.WithContext(ctx).Where("key = ?", key).First(&rec).Error
	if err == gorm.ErrRecordNotFound {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return rec.Hash, nil
}

// Put stores the hash for key, overwriting any previous value.
func (c *ChecksumStore) Put(ctx context.Context, key, hash string) error {
	return c.s.write(ctx, []string{model.ChecksumRecord{}.TableName()}, func(tx *gorm.DB) (bool, error) {
		var old model.ChecksumRecord
		err := tx.Where("key = ?", key).First(&old).Error
		switch {
		case err == nil:
			if old.Hash == hash {
				return false, nil
			}
			return true, tx.Model(&model.ChecksumRecord{}).Where("key = ?", key).Update("hash", hash).Error
		case err == gorm.ErrRecordNotFound:
			return true, tx.Create(&model.ChecksumRecord{Key: key, Hash: hash}).Error
		default:
			return false, err
		}
	})
}
