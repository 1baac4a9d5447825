package quota

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/docsmithhq/docsmith/app/models"
)

// Store provides the counter primitives. Consumed is only ever mutated
// through ConsumeIfUnder, a single conditional UPDATE; no caller is allowed
// to read-then-write a counter.
type Store interface {
	EnsureCounter(ctx context.Context, accountID uint, kind string, start, end time.Time, limit int64) (*models.QuotaCounter, error)
	ConsumeIfUnder(ctx context.Context, counterID uint, amount int64) (bool, error)
	GetCounter(ctx context.Context, accountID uint, kind string, start time.Time) (*models.QuotaCounter, error)
}

type gormStore struct {
	db *gorm.DB
}

// NewStore creates a quota store backed by GORM.
func NewStore(db *gorm.DB) Store {
	return &gormStore{db: db}
}

// EnsureCounter lazily creates the counter for the canonical window. The
// uniqueness constraint on (account_id, window_kind, window_start) resolves
// the concurrent-creation race: the losing insert is a no-op and falls back
// to re-reading the now-existing row.
func (s *gormStore) EnsureCounter(ctx context.Context, accountID uint, kind string, start, end time.Time, limit int64) (*models.QuotaCounter, error) {
	counter := &models.QuotaCounter{
		AccountID:   accountID,
		WindowKind:  kind,
		WindowStart: start,
		WindowEnd:   end,
		QuotaLimit:  limit,
	}
	if err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{
			{Name: "account_id"},
			{Name: "window_kind"},
			{Name: "window_start"},
		},
		DoNothing: true,
	}).Create(counter).Error; err != nil {
		return nil, err
	}

	return s.GetCounter(ctx, accountID, kind, start)
}

// ConsumeIfUnder increments the counter only if the result stays within the
// limit. The database serializes concurrent updates, so two requests racing
// for the last unit cannot both win.
func (s *gormStore) ConsumeIfUnder(ctx context.Context, counterID uint, amount int64) (bool, error) {
	res := s.db.WithContext(ctx).Model(&models.QuotaCounter{}).
		Where("id = ? AND consumed + ? <= quota_limit", counterID, amount).
		UpdateColumn("consumed", gorm.Expr("consumed + ?", amount))
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (s *gormStore) GetCounter(ctx context.Context, accountID uint, kind string, start time.Time) (*models.QuotaCounter, error) {
	var counter models.QuotaCounter
	err := s.db.WithContext(ctx).
		Where("account_id = ? AND window_kind = ? AND window_start = ?", accountID, kind, start).
		First(&counter).Error
	if err != nil {
		return nil, err
	}
	return &counter, nil
}
