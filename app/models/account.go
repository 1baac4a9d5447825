package models

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base32"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

const (
	ROLE_USER  = "user"
	ROLE_ADMIN = "admin"

	STATUS_ACTIVE   = "active"
	STATUS_INACTIVE = "inactive"
	STATUS_DISABLED = "disabled"
)

// Account represents a billable user of the service. The Tier field is a
// denormalized cache of the resolved entitlement and is written exclusively
// by the billing reconciler (admin overrides go through the same path).
type Account struct {
	ID                     uint       `gorm:"primaryKey" json:"id"`
	Name                   string     `gorm:"type:varchar(150)" json:"name" validate:"required,min=3,max=150"`
	Email                  string     `gorm:"uniqueIndex;type:varchar(200)" json:"email" validate:"required,email,min=5,max=200"`
	Role                   string     `gorm:"type:varchar(50);default:'user'" json:"role" validate:"oneof=user admin"`
	Status                 string     `gorm:"type:varchar(50);default:'active'" json:"status" validate:"oneof=active inactive disabled"`
	Tier                   string     `gorm:"type:varchar(50);not null;default:'free'" json:"tier"`
	BillingCustomerRef     *string    `gorm:"type:varchar(191);uniqueIndex" json:"-"`
	BillingSubscriptionRef *string    `gorm:"type:varchar(191);index" json:"-"`
	SubscriptionStatus     string     `gorm:"type:varchar(32);not null;default:'none'" json:"subscription_status"`
	CurrentPeriodStart     *time.Time `gorm:"type:timestamp;default:null" json:"current_period_start,omitempty"`
	CurrentPeriodEnd       *time.Time `gorm:"type:timestamp;default:null" json:"current_period_end,omitempty"`
	DeletionRequestedAt    *time.Time `gorm:"type:timestamp;default:null" json:"-"`
	PurgeScheduledAt       *time.Time `gorm:"type:timestamp;default:null" json:"-"`
	APIKeyHash             string     `gorm:"type:char(64);default:'';index" json:"-"`
	APIKeyPrefix           string     `gorm:"type:varchar(20);default:''" json:"api_key_prefix"`
	APIKeyCreatedAt        *time.Time `json:"api_key_created_at"`
	APIKeyLastUsedAt       *time.Time `json:"api_key_last_used_at"`
	CreatedAt              time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt              time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

func (a *Account) Validate() error {
	v := validator.New()

	return v.Struct(a)
}

// IsActive reports whether the account status is active
func (a *Account) IsActive() bool {
	return a.Status == STATUS_ACTIVE
}

// IsMarkedForDeletion reports whether the account is soft-deleted and awaiting
// the compliance purge worker. The billing engine only ever reads this flag.
func (a *Account) IsMarkedForDeletion() bool {
	return a.DeletionRequestedAt != nil
}

// MarkForDeletion sets the soft-deletion flag and schedules the purge. The
// hard delete itself is owned by the external compliance worker.
func (a *Account) MarkForDeletion(purgeAfter time.Duration) {
	now := time.Now()
	purgeAt := now.Add(purgeAfter)
	a.DeletionRequestedAt = &now
	a.PurgeScheduledAt = &purgeAt
}

var apiKeyEncoding = base32.StdEncoding.WithPadding(base32.NoPadding)

const apiKeyPrefix = "dsk_"

// HasActiveAPIKey reports whether the account has an API key configured
func (a *Account) HasActiveAPIKey() bool {
	return a != nil && a.APIKeyHash != ""
}

// IssueAPIKey generates a new API key, persists metadata on the struct, and returns the raw secret.
// Callers must persist the struct via the database after invoking this method.
func (a *Account) IssueAPIKey() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	encoded := strings.ToLower(apiKeyEncoding.EncodeToString(b))
	rawKey := apiKeyPrefix + encoded
	if len(rawKey) < 12 {
		return "", fmt.Errorf("api key generation failed: key too short")
	}
	now := time.Now()
	a.APIKeyHash = HashAPIKey(rawKey)
	a.APIKeyPrefix = rawKey[:16]
	a.APIKeyCreatedAt = &now
	a.APIKeyLastUsedAt = nil
	return rawKey, nil
}

// HashAPIKey returns the SHA-256 hash for the provided API key.
func HashAPIKey(raw string) string {
	sum := sha256.Sum256([]byte(strings.TrimSpace(raw)))
	return hex.EncodeToString(sum[:])
}
