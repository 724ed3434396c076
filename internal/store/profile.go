package store

import (
	"context"

	"gorm.io/gorm"

	"shopsync/internal/model"
)

// ProfileStore caches the single profile record per user.
type ProfileStore struct {
	s *Store
}

func NewProfileStore(s *Store) *ProfileStore { return &ProfileStore{s: s} }

var profileTables = []string{model.UserProfile{}.TableName()}

// Replace writes the user's profile, skipping identical data.
func (p *ProfileStore) Replace(ctx context.Context, profile model.UserProfile) error {
	return p.s.write(ctx, profileTables, func(tx *gorm.DB) (bool, error) {
		var old model.UserProfile
		err := tx.Where("user_id = ?", profile.UserID).First(&old).Error
		switch {
		case err == nil:
			if old.Equal(profile) {
				return false, nil
			}
			return true, tx.Save(&profile).Error
		case err == gorm.ErrRecordNotFound:
			return true, tx.Create(&profile).Error
		default:
			return false, err
		}
	})
}

// Snapshot returns the profile or nil when none is cached.
func (p *ProfileStore) Snapshot(ctx context.Context, userID string) (*model.UserProfile, error) {
	var out model.UserProfile
	err := p.s.db.WithContext(ctx).Where("user_id = ?", userID).First(&out).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// Clear removes the user's profile row.
func (p *ProfileStore) Clear(ctx context.Context, userID string) error {
	return p.s.write(ctx, profileTables, func(tx *gorm.DB) (bool, error) {
		res := tx.Where("user_id = ?", userID).Delete(&model.UserProfile{})
		return res.RowsAffected > 0, res.Error
	})
}

// Observe opens a live query over the user's profile row.
func (p *ProfileStore) Observe(userID string) (*Subscription[model.UserProfile], error) {
	return observe(p.s, profileTables,
		func() ([]model.UserProfile, error) {
			prof, err := p.Snapshot(context.Background(), userID)
			if err != nil {
				return nil, err
			}
			if prof == nil {
				return nil, nil
			}
			return []model.UserProfile{*prof}, nil
		},
		func(a, b []model.UserProfile) bool { return sliceEqual(a, b, model.UserProfile.Equal) },
	)
}
