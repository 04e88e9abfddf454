package offer

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/skylith/reoffer/internal/models"
	"gorm.io/gorm"
)

// storeTimeout bounds every store call so a slow backend fails fast instead
// of hanging a request.
const storeTimeout = 5 * time.Second

// Store is the persistence contract the offer core consumes. All
// cross-request coordination happens through ConditionalUpdate.
type Store interface {
	// GetByID loads an offer by primary key. Returns ErrNotFound for an
	// unknown id.
	GetByID(ctx context.Context, offerID string) (*models.Offer, error)
	// InsertIfAbsent persists a new offer. Returns ErrAlreadyExists when the
	// id is already taken.
	InsertIfAbsent(ctx context.Context, o *models.Offer) error
	// ConditionalUpdate applies fields only when the stored status (and, when
	// expectedCursor is non-nil, the cursor) still matches what the caller
	// observed. Returns ErrConditionFailed when no row matched.
	ConditionalUpdate(ctx context.Context, offerID, expectedStatus string, expectedCursor *int, fields map[string]any) error
}

// GormStore implements Store on a GORM connection.
type GormStore struct {
	db *gorm.DB
}

// NewGormStore constructs a GormStore.
func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

func (s *GormStore) GetByID(ctx context.Context, offerID string) (*models.Offer, error) {
	ctx, cancel := context.WithTimeout(ctx, storeTimeout)
	defer cancel()

	var o models.Offer
	if err := s.db.WithContext(ctx).Where("offer_id = ?", offerID).First(&o).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("%w: get %s: %v", ErrStoreUnavailable, offerID, err)
	}
	return &o, nil
}

func (s *GormStore) InsertIfAbsent(ctx context.Context, o *models.Offer) error {
	ctx, cancel := context.WithTimeout(ctx, storeTimeout)
	defer cancel()

	if err := s.db.WithContext(ctx).Create(o).Error; err != nil {
		if isDuplicateKeyErr(err) {
			return ErrAlreadyExists
		}
		return fmt.Errorf("%w: insert %s: %v", ErrStoreUnavailable, o.OfferID, err)
	}
	return nil
}

func (s *GormStore) ConditionalUpdate(ctx context.Context, offerID, expectedStatus string, expectedCursor *int, fields map[string]any) error {
	ctx, cancel := context.WithTimeout(ctx, storeTimeout)
	defer cancel()

	tx := s.db.WithContext(ctx).Model(&models.Offer{}).
		Where("offer_id = ? AND status = ?", offerID, expectedStatus)
	if expectedCursor != nil {
		tx = tx.Where("cursor = ?", *expectedCursor)
	}

	res := tx.Updates(fields)
	if res.Error != nil {
		return fmt.Errorf("%w: update %s: %v", ErrStoreUnavailable, offerID, res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrConditionFailed
	}
	return nil
}

// isDuplicateKeyErr detects primary-key collisions across dialects. Only
// uniqueness violations qualify; other constraint failures (NOT NULL, CHECK)
// must surface as store errors rather than trigger an id regeneration.
func isDuplicateKeyErr(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique constraint") ||
		strings.Contains(msg, "duplicate key")
}

// withStoreRetry runs op and retries once after a short backoff when the
// failure is transient. Condition failures are not retried here; the state
// machine handles those with a re-read.
func withStoreRetry(ctx context.Context, op func() error) error {
	err := op()
	if err == nil || !errors.Is(err, ErrStoreUnavailable) {
		return err
	}
	select {
	case <-time.After(100 * time.Millisecond):
	case <-ctx.Done():
		return err
	}
	return op()
}
