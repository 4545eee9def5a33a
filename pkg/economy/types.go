package economy

import (
	"context"
	"fmt"
	"strings"
)

// CoinAmount is an integer quantity of platform coins.
type CoinAmount int64

// Int64 returns the raw coin amount.
func (amount CoinAmount) Int64() int64 {
	return int64(amount)
}

// DeltaReason classifies a balance mutation for the audit trail.
type DeltaReason string

const (
	ReasonGiftSent       DeltaReason = "gift_sent"
	ReasonGiftReceived   DeltaReason = "gift_received"
	ReasonTemplateUnlock DeltaReason = "template_unlock"
	ReasonDailyBonus     DeltaReason = "daily_bonus"
	ReasonViewEarnings   DeltaReason = "view_earnings"
	ReasonCoinPurchase   DeltaReason = "coin_purchase"
)

// String returns the stored reason value.
func (reason DeltaReason) String() string {
	return string(reason)
}

// EarningsClassified reports whether a credit with this reason also counts
// toward lifetime total earnings. Purchases do not.
func (reason DeltaReason) EarningsClassified() bool {
	switch reason {
	case ReasonGiftReceived, ReasonDailyBonus, ReasonViewEarnings:
		return true
	}
	return false
}

// Wallet is the balance view for one account.
type Wallet struct {
	UserID        string
	CoinBalance   CoinAmount
	TotalEarnings CoinAmount
}

// CoinTransaction is a single immutable line in the audit trail. Every balance
// delta appends exactly one.
type CoinTransaction struct {
	TransactionID  string
	UserID         string
	Amount         CoinAmount
	Reason         DeltaReason
	RelatedID      string
	BalanceAfter   CoinAmount
	MetadataJSON   string
	CreatedUnixUTC int64
}

// GiftTransaction records a completed two-sided gift transfer.
type GiftTransaction struct {
	TransferID     string
	SenderID       string
	RecipientID    string
	PostID         string
	GiftID         string
	CoinAmount     CoinAmount
	CreatedUnixUTC int64
}

// TemplateUnlock records a one-time premium template purchase.
type TemplateUnlock struct {
	UserID          string
	TemplateID      string
	CoinsSpent      CoinAmount
	UnlockedUnixUTC int64
}

// DailyLogin records a claimed daily bonus. LoginDate is a UTC calendar date
// formatted as 2006-01-02.
type DailyLogin struct {
	UserID          string
	LoginDate       string
	CoinsEarned     CoinAmount
	ConsecutiveDays int
}

// ViewAccrual is the per-user watermark of already-credited view units.
type ViewAccrual struct {
	UserID        string
	CreditedUnits int64
}

// PaymentEvent records a processed external payment completion.
type PaymentEvent struct {
	ExternalEventID  string
	UserID           string
	Coins            CoinAmount
	ProcessedUnixUTC int64
}

// Gift is a virtual-gift catalog entry. CoinCost is fixed at definition time.
type Gift struct {
	GiftID   string
	Name     string
	Icon     string
	CoinCost CoinAmount
}

// Template is the premium-template metadata the economy needs: who made it and
// what an unlock costs.
type Template struct {
	TemplateID string
	CreatorID  string
	UnlockCost CoinAmount
}

// Store is the persistence contract used by Service. Implementations must make
// WithTx atomic: everything inside the closure commits or nothing does.
type Store interface {
	WithTx(ctx context.Context, fn func(ctx context.Context, txStore Store) error) error
	CreateWallet(ctx context.Context, userID string) error
	GetWallet(ctx context.Context, userID string) (Wallet, error)
	GetOrCreateWalletForUpdate(ctx context.Context, userID string) (Wallet, error)
	UpdateWallet(ctx context.Context, wallet Wallet) error
	InsertCoinTransaction(ctx context.Context, transaction CoinTransaction) error
	InsertGiftTransaction(ctx context.Context, transfer *GiftTransaction) error
	HasTemplateUnlock(ctx context.Context, userID string, templateID string) (bool, error)
	InsertTemplateUnlock(ctx context.Context, unlock TemplateUnlock) error
	GetDailyLogin(ctx context.Context, userID string, loginDate string) (DailyLogin, bool, error)
	InsertDailyLogin(ctx context.Context, record DailyLogin) error
	GetViewAccrualForUpdate(ctx context.Context, userID string) (ViewAccrual, error)
	SaveViewAccrual(ctx context.Context, accrual ViewAccrual) error
	InsertPaymentEvent(ctx context.Context, event PaymentEvent) error
	ListCoinTransactions(ctx context.Context, userID string, limit int) ([]CoinTransaction, error)
}

// Catalog supplies read-only gift and template definitions.
type Catalog interface {
	GetGift(ctx context.Context, giftID string) (Gift, error)
	GetTemplate(ctx context.Context, templateID string) (Template, error)
}

func validateUserID(raw string) (string, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return "", fmt.Errorf("%w: empty value", ErrInvalidUserID)
	}
	return trimmed, nil
}

func validateCatalogID(raw string, sentinel error) (string, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return "", fmt.Errorf("%w: empty value", sentinel)
	}
	return trimmed, nil
}

func validatePositiveAmount(raw int64) (CoinAmount, error) {
	if raw <= 0 {
		return 0, fmt.Errorf("%w: must be greater than zero", ErrInvalidCoinAmount)
	}
	return CoinAmount(raw), nil
}
