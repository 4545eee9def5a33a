package gormstore

import (
	"context"
	"errors"
	"time"

	"github.com/Dave-Sleek/promptshare-economy/pkg/economy"
	gosqlite "github.com/glebarez/go-sqlite"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	constraintWalletPrimary       = "wallets_pkey"
	constraintUnlockPrimary       = "template_unlocks_pkey"
	constraintDailyLoginPrimary   = "daily_logins_pkey"
	constraintPaymentEventPrimary = "payment_events_pkey"
	constraintAccrualPrimary      = "view_accruals_pkey"
	defaultMetadataJSON           = "{}"
	pgUniqueViolationCode         = "23505"
	sqliteConstraintCode          = 19
	errorOperationStore           = "store"
	errorSubjectWallet            = "wallet"
	errorSubjectTransaction       = "coin_transaction"
	errorSubjectGift              = "gift_transaction"
	errorSubjectUnlock            = "template_unlock"
	errorSubjectDailyLogin        = "daily_login"
	errorSubjectAccrual           = "view_accrual"
	errorSubjectPayment           = "payment_event"
	errorCodeCreate               = "create"
	errorCodeGet                  = "get"
	errorCodeInsert               = "insert"
	errorCodeList                 = "list"
	errorCodeSave                 = "save"
	errorCodeUpdate               = "update"
)

// Store implements economy.Store using GORM.
type Store struct {
	db *gorm.DB
}

// New returns a Store backed by gorm.DB.
func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

// Migrate creates the economy tables.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&Wallet{},
		&CoinTransaction{},
		&GiftTransaction{},
		&TemplateUnlock{},
		&DailyLogin{},
		&ViewAccrual{},
		&PaymentEvent{},
		&GiftCatalogEntry{},
		&PremiumTemplate{},
	)
}

// WithTx executes fn within a transaction.
func (store *Store) WithTx(ctx context.Context, fn func(ctx context.Context, txStore economy.Store) error) error {
	return store.db.WithContext(ctx).Transaction(func(transaction *gorm.DB) error {
		return fn(ctx, &Store{db: transaction})
	})
}

func (store *Store) CreateWallet(ctx context.Context, userID string) error {
	model := Wallet{UserID: userID}
	err := store.db.WithContext(ctx).Create(&model).Error
	if isUniqueViolation(err, constraintWalletPrimary) {
		return wrapStoreError(errorSubjectWallet, errorCodeCreate, economy.ErrWalletExists)
	}
	if err != nil {
		return wrapStoreError(errorSubjectWallet, errorCodeCreate, err)
	}
	return nil
}

func (store *Store) GetWallet(ctx context.Context, userID string) (economy.Wallet, error) {
	var model Wallet
	err := store.db.WithContext(ctx).Where("user_id = ?", userID).Take(&model).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return economy.Wallet{}, wrapStoreError(errorSubjectWallet, errorCodeGet, economy.ErrUnknownWallet)
	}
	if err != nil {
		return economy.Wallet{}, wrapStoreError(errorSubjectWallet, errorCodeGet, err)
	}
	return mapWallet(model), nil
}

func (store *Store) GetOrCreateWalletForUpdate(ctx context.Context, userID string) (economy.Wallet, error) {
	var model Wallet
	err := store.lockedQuery(ctx).Where("user_id = ?", userID).Take(&model).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		created := Wallet{UserID: userID}
		createErr := store.db.WithContext(ctx).Create(&created).Error
		if createErr != nil && !isUniqueViolation(createErr, constraintWalletPrimary) {
			return economy.Wallet{}, wrapStoreError(errorSubjectWallet, errorCodeCreate, createErr)
		}
		err = store.lockedQuery(ctx).Where("user_id = ?", userID).Take(&model).Error
	}
	if err != nil {
		return economy.Wallet{}, wrapStoreError(errorSubjectWallet, errorCodeGet, err)
	}
	return mapWallet(model), nil
}

// lockedQuery adds a row lock on dialects that support it. SQLite has no
// FOR UPDATE; its single-writer model serializes the transaction instead.
func (store *Store) lockedQuery(ctx context.Context) *gorm.DB {
	query := store.db.WithContext(ctx)
	if store.db.Dialector.Name() == "postgres" {
		query = query.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	return query
}

func (store *Store) UpdateWallet(ctx context.Context, wallet economy.Wallet) error {
	result := store.db.WithContext(ctx).
		Model(&Wallet{}).
		Where("user_id = ?", wallet.UserID).
		Updates(map[string]interface{}{
			"coin_balance":   wallet.CoinBalance.Int64(),
			"total_earnings": wallet.TotalEarnings.Int64(),
			"updated_at":     time.Now().UTC(),
		})
	if result.Error != nil {
		return wrapStoreError(errorSubjectWallet, errorCodeUpdate, result.Error)
	}
	if result.RowsAffected == 0 {
		return wrapStoreError(errorSubjectWallet, errorCodeUpdate, economy.ErrUnknownWallet)
	}
	return nil
}

func (store *Store) InsertCoinTransaction(ctx context.Context, transaction economy.CoinTransaction) error {
	createdAt := time.Unix(transaction.CreatedUnixUTC, 0).UTC()
	if transaction.CreatedUnixUTC == 0 {
		createdAt = time.Now().UTC()
	}
	model := CoinTransaction{
		TransactionID: transaction.TransactionID,
		UserID:        transaction.UserID,
		Amount:        transaction.Amount.Int64(),
		Reason:        transaction.Reason.String(),
		RelatedID:     transaction.RelatedID,
		BalanceAfter:  transaction.BalanceAfter.Int64(),
		Metadata:      datatypesJSON(transaction.MetadataJSON),
		CreatedAt:     createdAt,
	}
	if err := store.db.WithContext(ctx).Create(&model).Error; err != nil {
		return wrapStoreError(errorSubjectTransaction, errorCodeInsert, err)
	}
	return nil
}

func (store *Store) InsertGiftTransaction(ctx context.Context, transfer *economy.GiftTransaction) error {
	var postID *string
	if transfer.PostID != "" {
		value := transfer.PostID
		postID = &value
	}
	model := GiftTransaction{
		SenderID:    transfer.SenderID,
		RecipientID: transfer.RecipientID,
		PostID:      postID,
		GiftID:      transfer.GiftID,
		CoinAmount:  transfer.CoinAmount.Int64(),
		CreatedAt:   time.Unix(transfer.CreatedUnixUTC, 0).UTC(),
	}
	if err := store.db.WithContext(ctx).Create(&model).Error; err != nil {
		return wrapStoreError(errorSubjectGift, errorCodeInsert, err)
	}
	transfer.TransferID = model.TransferID
	return nil
}

func (store *Store) HasTemplateUnlock(ctx context.Context, userID string, templateID string) (bool, error) {
	var model TemplateUnlock
	err := store.db.WithContext(ctx).
		Where("user_id = ? AND template_id = ?", userID, templateID).
		Take(&model).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false, nil
	}
	if err != nil {
		return false, wrapStoreError(errorSubjectUnlock, errorCodeGet, err)
	}
	return true, nil
}

func (store *Store) InsertTemplateUnlock(ctx context.Context, unlock economy.TemplateUnlock) error {
	model := TemplateUnlock{
		UserID:     unlock.UserID,
		TemplateID: unlock.TemplateID,
		CoinsSpent: unlock.CoinsSpent.Int64(),
		UnlockedAt: time.Unix(unlock.UnlockedUnixUTC, 0).UTC(),
	}
	err := store.db.WithContext(ctx).Create(&model).Error
	if isUniqueViolation(err, constraintUnlockPrimary) {
		return wrapStoreError(errorSubjectUnlock, errorCodeInsert, economy.ErrAlreadyUnlocked)
	}
	if err != nil {
		return wrapStoreError(errorSubjectUnlock, errorCodeInsert, err)
	}
	return nil
}

func (store *Store) GetDailyLogin(ctx context.Context, userID string, loginDate string) (economy.DailyLogin, bool, error) {
	var model DailyLogin
	err := store.db.WithContext(ctx).
		Where("user_id = ? AND login_date = ?", userID, loginDate).
		Take(&model).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return economy.DailyLogin{}, false, nil
	}
	if err != nil {
		return economy.DailyLogin{}, false, wrapStoreError(errorSubjectDailyLogin, errorCodeGet, err)
	}
	record := economy.DailyLogin{
		UserID:          model.UserID,
		LoginDate:       model.LoginDate,
		CoinsEarned:     economy.CoinAmount(model.CoinsEarned),
		ConsecutiveDays: model.ConsecutiveDays,
	}
	return record, true, nil
}

func (store *Store) InsertDailyLogin(ctx context.Context, record economy.DailyLogin) error {
	model := DailyLogin{
		UserID:          record.UserID,
		LoginDate:       record.LoginDate,
		CoinsEarned:     record.CoinsEarned.Int64(),
		ConsecutiveDays: record.ConsecutiveDays,
		CreatedAt:       time.Now().UTC(),
	}
	err := store.db.WithContext(ctx).Create(&model).Error
	if isUniqueViolation(err, constraintDailyLoginPrimary) {
		return wrapStoreError(errorSubjectDailyLogin, errorCodeInsert, economy.ErrAlreadyClaimedToday)
	}
	if err != nil {
		return wrapStoreError(errorSubjectDailyLogin, errorCodeInsert, err)
	}
	return nil
}

func (store *Store) GetViewAccrualForUpdate(ctx context.Context, userID string) (economy.ViewAccrual, error) {
	// A locking select on a missing row holds nothing, so the watermark row is
	// materialized before the lock is taken. Otherwise two first-time accruals
	// could both read zero credited units and pay the same views twice.
	var model ViewAccrual
	err := store.lockedQuery(ctx).Where("user_id = ?", userID).Take(&model).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		created := ViewAccrual{UserID: userID, UpdatedAt: time.Now().UTC()}
		createErr := store.db.WithContext(ctx).Create(&created).Error
		if createErr != nil && !isUniqueViolation(createErr, constraintAccrualPrimary) {
			return economy.ViewAccrual{}, wrapStoreError(errorSubjectAccrual, errorCodeCreate, createErr)
		}
		err = store.lockedQuery(ctx).Where("user_id = ?", userID).Take(&model).Error
	}
	if err != nil {
		return economy.ViewAccrual{}, wrapStoreError(errorSubjectAccrual, errorCodeGet, err)
	}
	return economy.ViewAccrual{UserID: model.UserID, CreditedUnits: model.CreditedUnits}, nil
}

func (store *Store) SaveViewAccrual(ctx context.Context, accrual economy.ViewAccrual) error {
	model := ViewAccrual{
		UserID:        accrual.UserID,
		CreditedUnits: accrual.CreditedUnits,
		UpdatedAt:     time.Now().UTC(),
	}
	err := store.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"credited_units", "updated_at"}),
		}).
		Create(&model).Error
	if err != nil {
		return wrapStoreError(errorSubjectAccrual, errorCodeSave, err)
	}
	return nil
}

func (store *Store) InsertPaymentEvent(ctx context.Context, event economy.PaymentEvent) error {
	model := PaymentEvent{
		ExternalEventID: event.ExternalEventID,
		UserID:          event.UserID,
		Coins:           event.Coins.Int64(),
		ProcessedAt:     time.Unix(event.ProcessedUnixUTC, 0).UTC(),
	}
	err := store.db.WithContext(ctx).Create(&model).Error
	if isUniqueViolation(err, constraintPaymentEventPrimary) {
		return wrapStoreError(errorSubjectPayment, errorCodeInsert, economy.ErrDuplicatePaymentEvent)
	}
	if err != nil {
		return wrapStoreError(errorSubjectPayment, errorCodeInsert, err)
	}
	return nil
}

func (store *Store) ListCoinTransactions(ctx context.Context, userID string, limit int) ([]economy.CoinTransaction, error) {
	var rows []CoinTransaction
	err := store.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, wrapStoreError(errorSubjectTransaction, errorCodeList, err)
	}
	transactions := make([]economy.CoinTransaction, 0, len(rows))
	for _, row := range rows {
		transactions = append(transactions, economy.CoinTransaction{
			TransactionID:  row.TransactionID,
			UserID:         row.UserID,
			Amount:         economy.CoinAmount(row.Amount),
			Reason:         economy.DeltaReason(row.Reason),
			RelatedID:      row.RelatedID,
			BalanceAfter:   economy.CoinAmount(row.BalanceAfter),
			MetadataJSON:   string(row.Metadata),
			CreatedUnixUTC: row.CreatedAt.Unix(),
		})
	}
	return transactions, nil
}

func mapWallet(model Wallet) economy.Wallet {
	return economy.Wallet{
		UserID:        model.UserID,
		CoinBalance:   economy.CoinAmount(model.CoinBalance),
		TotalEarnings: economy.CoinAmount(model.TotalEarnings),
	}
}

func wrapStoreError(subject string, code string, err error) error {
	return economy.WrapError(errorOperationStore, subject, code, err)
}

func datatypesJSON(raw string) datatypes.JSON {
	if raw == "" {
		return datatypes.JSON([]byte(defaultMetadataJSON))
	}
	return datatypes.JSON([]byte(raw))
}

func isUniqueViolation(err error, pgConstraint string) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgUniqueViolationCode && pgErr.ConstraintName == pgConstraint
	}
	var sqliteErr *gosqlite.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.Code()&0xFF == sqliteConstraintCode
	}
	return false
}
