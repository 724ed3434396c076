package repo

import (
	"context"
	"time"

	"go.uber.org/zap"

	"shopsync/internal/model"
	"shopsync/internal/remote"
	"shopsync/internal/store"
)

// ProfileRepository reconciles the user's single profile document with the
// local cache.
type ProfileRepository struct {
	userID   string
	profiles *store.ProfileStore
	col      remote.Collection
	retry    remote.RetryPolicy
	log      *zap.SugaredLogger

	cancel context.CancelFunc
}

func NewProfileRepository(
	userID string,
	profiles *store.ProfileStore,
	col remote.Collection,
	log *zap.SugaredLogger,
) *ProfileRepository {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	r := &ProfileRepository{
		userID:   userID,
		profiles: profiles,
		col:      col,
		retry:    remote.DefaultRetryPolicy(),
		log:      log,
	}
	ctx, cancel := context.WithCancel(context.Background())
	r.cancel = cancel
	bindListener(ctx, col, log, func(docs []remote.Document) error {
		for _, d := range docs {
			if remote.DocID(d) == userID {
				return profiles.Replace(ctx, model.UserProfileFromDocument(userID, d))
			}
		}
		return nil
	})
	return r
}

// Close detaches the realtime listener.
func (r *ProfileRepository) Close() { r.cancel() }

// Observe opens a live query over the profile row.
func (r *ProfileRepository) Observe() (*store.Subscription[model.UserProfile], error) {
	return r.profiles.Observe(r.userID)
}

// Snapshot returns the cached profile, nil when none is cached yet.
func (r *ProfileRepository) Snapshot(ctx context.Context) (*model.UserProfile, error) {
	return r.profiles.Snapshot(ctx, r.userID)
}

// Save writes the profile remotely and reflects it locally. Remote failure is
// surfaced; the local cache keeps its previous state in that case.
func (r *ProfileRepository) Save(ctx context.Context, profile model.UserProfile) error {
	profile.UserID = r.userID
	profile.UpdatedAt = time.Now().UTC()
	doc := profile.Document()
	err := r.retry.Do(ctx, "profile write", func(ctx context.Context) error {
		return r.col.Write(ctx, r.userID, doc, false)
	})
	if err != nil {
		return err
	}
	return r.profiles.Replace(ctx, profile)
}

// ClearLocal drops the cached profile (logout path).
func (r *ProfileRepository) ClearLocal(ctx context.Context) error {
	return r.profiles.Clear(ctx, r.userID)
}
