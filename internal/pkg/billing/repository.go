package billing

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/docsmithhq/docsmith/app/models"
)

// Repository provides the DB operations used by the reconciler. Every method
// takes the request context so the webhook processing deadline cancels
// in-flight queries.
type Repository interface {
	CreateEventIfNotExists(ctx context.Context, event *models.ProcessedEvent) (bool, *models.ProcessedEvent, error)
	FinalizeEvent(ctx context.Context, id uint, outcome, processingError string) error
	RecordEventFailure(ctx context.Context, id uint, processingError string) error
	GetAccountByID(ctx context.Context, id uint) (*models.Account, error)
	GetAccountByCustomerRef(ctx context.Context, ref string) (*models.Account, error)
	GetSubscriptionByProviderRef(ctx context.Context, ref string) (*models.Subscription, error)
	SaveAccount(ctx context.Context, account *models.Account) error
	SaveSubscription(ctx context.Context, sub *models.Subscription) error
	Transaction(ctx context.Context, fn func(Repository) error) error
}

type gormRepository struct {
	db *gorm.DB
}

// NewRepository creates a billing repository backed by GORM.
func NewRepository(db *gorm.DB) Repository {
	return &gormRepository{db: db}
}

func (r *gormRepository) CreateEventIfNotExists(ctx context.Context, event *models.ProcessedEvent) (bool, *models.ProcessedEvent, error) {
	tx := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{
			{Name: "provider_event_id"},
		},
		DoNothing: true,
	}).Create(event)
	if tx.Error != nil {
		return false, nil, tx.Error
	}

	created := tx.RowsAffected > 0
	var stored models.ProcessedEvent
	if err := r.db.WithContext(ctx).Where("provider_event_id = ?", event.ProviderEventID).
		First(&stored).Error; err != nil {
		return false, nil, err
	}
	return created, &stored, nil
}

func (r *gormRepository) FinalizeEvent(ctx context.Context, id uint, outcome, processingError string) error {
	return r.db.WithContext(ctx).Model(&models.ProcessedEvent{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"outcome":          outcome,
			"processing_error": processingError,
		}).Error
}

func (r *gormRepository) RecordEventFailure(ctx context.Context, id uint, processingError string) error {
	return r.db.WithContext(ctx).Model(&models.ProcessedEvent{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"outcome":          models.EventOutcomeFailed,
			"processing_error": processingError,
			"retry_count":      gorm.Expr("retry_count + 1"),
		}).Error
}

func (r *gormRepository) GetAccountByID(ctx context.Context, id uint) (*models.Account, error) {
	var account models.Account
	if err := r.db.WithContext(ctx).First(&account, id).Error; err != nil {
		return nil, err
	}
	return &account, nil
}

func (r *gormRepository) GetAccountByCustomerRef(ctx context.Context, ref string) (*models.Account, error) {
	var account models.Account
	if err := r.db.WithContext(ctx).Where("billing_customer_ref = ?", ref).First(&account).Error; err != nil {
		return nil, err
	}
	return &account, nil
}

func (r *gormRepository) GetSubscriptionByProviderRef(ctx context.Context, ref string) (*models.Subscription, error) {
	var sub models.Subscription
	if err := r.db.WithContext(ctx).Where("provider_subscription_id = ?", ref).First(&sub).Error; err != nil {
		return nil, err
	}
	return &sub, nil
}

func (r *gormRepository) SaveAccount(ctx context.Context, account *models.Account) error {
	return r.db.WithContext(ctx).Save(account).Error
}

func (r *gormRepository) SaveSubscription(ctx context.Context, sub *models.Subscription) error {
	return r.db.WithContext(ctx).Save(sub).Error
}

func (r *gormRepository) Transaction(ctx context.Context, fn func(Repository) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&gormRepository{db: tx})
	})
}
