package gormstore

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Wallet represents the wallets table: one row per account, mutated only
// through the service's balance choke-point.
type Wallet struct {
	UserID        string    `gorm:"primaryKey"`
	CoinBalance   int64     `gorm:"not null"`
	TotalEarnings int64     `gorm:"not null"`
	CreatedAt     time.Time `gorm:"not null"`
	UpdatedAt     time.Time `gorm:"not null"`
}

func (Wallet) TableName() string { return "wallets" }

// CoinTransaction mirrors the coin_transactions audit table.
type CoinTransaction struct {
	TransactionID string         `gorm:"type:uuid;primaryKey"`
	UserID        string         `gorm:"not null;index:idx_coin_tx_user_created,priority:1"`
	Amount        int64          `gorm:"not null"`
	Reason        string         `gorm:"not null"`
	RelatedID     string         `gorm:""`
	BalanceAfter  int64          `gorm:"not null"`
	Metadata      datatypes.JSON `gorm:"not null"`
	CreatedAt     time.Time      `gorm:"not null;index:idx_coin_tx_user_created,priority:2"`
}

func (CoinTransaction) TableName() string { return "coin_transactions" }

func (transaction *CoinTransaction) BeforeCreate(tx *gorm.DB) error {
	if transaction.TransactionID == "" {
		transaction.TransactionID = uuid.NewString()
	}
	return nil
}

// GiftTransaction mirrors the gift_transactions table. Rows are append-only.
type GiftTransaction struct {
	TransferID  string    `gorm:"type:uuid;primaryKey"`
	SenderID    string    `gorm:"not null;index"`
	RecipientID string    `gorm:"not null;index"`
	PostID      *string   `gorm:""`
	GiftID      string    `gorm:"not null"`
	CoinAmount  int64     `gorm:"not null"`
	CreatedAt   time.Time `gorm:"not null"`
}

func (GiftTransaction) TableName() string { return "gift_transactions" }

func (transfer *GiftTransaction) BeforeCreate(tx *gorm.DB) error {
	if transfer.TransferID == "" {
		transfer.TransferID = uuid.NewString()
	}
	return nil
}

// TemplateUnlock mirrors the template_unlocks table. The composite primary key
// is the uniqueness gate for concurrent unlock attempts.
type TemplateUnlock struct {
	UserID     string    `gorm:"primaryKey"`
	TemplateID string    `gorm:"primaryKey"`
	CoinsSpent int64     `gorm:"not null"`
	UnlockedAt time.Time `gorm:"not null"`
}

func (TemplateUnlock) TableName() string { return "template_unlocks" }

// DailyLogin mirrors the daily_logins table. One row per user per UTC
// calendar date.
type DailyLogin struct {
	UserID          string    `gorm:"primaryKey"`
	LoginDate       string    `gorm:"primaryKey"`
	CoinsEarned     int64     `gorm:"not null"`
	ConsecutiveDays int       `gorm:"not null"`
	CreatedAt       time.Time `gorm:"not null"`
}

func (DailyLogin) TableName() string { return "daily_logins" }

// ViewAccrual mirrors the view_accruals watermark table.
type ViewAccrual struct {
	UserID        string    `gorm:"primaryKey"`
	CreditedUnits int64     `gorm:"not null"`
	UpdatedAt     time.Time `gorm:"not null"`
}

func (ViewAccrual) TableName() string { return "view_accruals" }

// PaymentEvent mirrors the payment_events table keyed by the external
// provider's event id.
type PaymentEvent struct {
	ExternalEventID string    `gorm:"primaryKey"`
	UserID          string    `gorm:"not null;index"`
	Coins           int64     `gorm:"not null"`
	ProcessedAt     time.Time `gorm:"not null"`
}

func (PaymentEvent) TableName() string { return "payment_events" }

// GiftCatalogEntry mirrors the gift_catalog table.
type GiftCatalogEntry struct {
	GiftID   string `gorm:"primaryKey"`
	Name     string `gorm:"not null"`
	Icon     string `gorm:"not null"`
	CoinCost int64  `gorm:"not null"`
}

func (GiftCatalogEntry) TableName() string { return "gift_catalog" }

// PremiumTemplate mirrors the premium_templates table.
type PremiumTemplate struct {
	TemplateID string `gorm:"primaryKey"`
	CreatorID  string `gorm:"not null;index"`
	UnlockCost int64  `gorm:"not null"`
}

func (PremiumTemplate) TableName() string { return "premium_templates" }
