package jobqueue

import (
	"context"
	"fmt"

	"github.com/gofiber/fiber/v2/log"
	"gorm.io/gorm"

	"github.com/docsmithhq/docsmith/app/models"
	"github.com/docsmithhq/docsmith/internal/pkg/metrics/counter"
	"github.com/docsmithhq/docsmith/internal/pkg/quota"
)

// UsageProcessor performs the deferred quota increments for completed
// operations. Consumption happens through the tracker's conditional update;
// if the window filled up between admission and commit, the over-limit
// decision is recorded explicitly instead of silently exceeding the limit.
type UsageProcessor struct {
	db      *gorm.DB
	tracker *quota.Tracker
}

// NewUsageProcessor creates a processor over the given DB handle and tracker.
func NewUsageProcessor(db *gorm.DB, tracker *quota.Tracker) *UsageProcessor {
	return &UsageProcessor{db: db, tracker: tracker}
}

// Process applies one usage commit job.
func (p *UsageProcessor) Process(ctx context.Context, job *Job) error {
	payload, err := UsageCommitPayloadFromMap(job.Payload)
	if err != nil {
		return fmt.Errorf("invalid usage commit payload: %w", err)
	}
	if payload.Amount <= 0 {
		payload.Amount = 1
	}

	var account models.Account
	if err := p.db.WithContext(ctx).First(&account, payload.AccountID).Error; err != nil {
		return fmt.Errorf("account %d not found for usage commit: %w", payload.AccountID, err)
	}

	for _, kind := range []string{models.QuotaWindowDaily, models.QuotaWindowMonthly} {
		res, err := p.tracker.TryConsume(ctx, &account, kind, payload.Amount)
		if err != nil {
			return err
		}
		if !res.Allowed {
			// The operation already ran; record the over-limit commit rather
			// than failing the job.
			log.Warnf("[Usage] account %d %s window filled before commit", account.ID, kind)
			_ = counter.AddDenial("OverLimitCommit")
		}
	}
	return nil
}
