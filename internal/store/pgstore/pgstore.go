package pgstore

import (
	"context"
	"errors"

	"github.com/Dave-Sleek/promptshare-economy/pkg/economy"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	constraintWalletPrimary       = "wallets_pkey"
	constraintUnlockPrimary       = "template_unlocks_pkey"
	constraintDailyLoginPrimary   = "daily_logins_pkey"
	constraintPaymentEventPrimary = "payment_events_pkey"
	pgUniqueViolationCode         = "23505"
	errorOperationStore           = "store"
	errorSubjectWallet            = "wallet"
	errorSubjectTransaction       = "coin_transaction"
	errorSubjectGift              = "gift_transaction"
	errorSubjectUnlock            = "template_unlock"
	errorSubjectDailyLogin        = "daily_login"
	errorSubjectAccrual           = "view_accrual"
	errorSubjectPayment           = "payment_event"
	errorSubjectTx                = "transaction"
	errorCodeBegin                = "begin"
	errorCodeCommit               = "commit"
	errorCodeCreate               = "create"
	errorCodeGet                  = "get"
	errorCodeInsert               = "insert"
	errorCodeList                 = "list"
	errorCodeSave                 = "save"
	errorCodeUpdate               = "update"

	sqlInsertWallet = `
		insert into wallets(user_id, coin_balance, total_earnings, created_at, updated_at)
		values($1, 0, 0, now(), now())
	`

	sqlEnsureWallet = `
		insert into wallets(user_id, coin_balance, total_earnings, created_at, updated_at)
		values($1, 0, 0, now(), now())
		on conflict (user_id) do nothing
	`

	sqlSelectWallet = `
		select user_id, coin_balance, total_earnings from wallets where user_id = $1
	`

	sqlSelectWalletForUpdate = sqlSelectWallet + ` for update`

	sqlUpdateWallet = `
		update wallets set coin_balance = $2, total_earnings = $3, updated_at = now()
		where user_id = $1
	`

	sqlInsertCoinTransaction = `
		insert into coin_transactions(
			transaction_id, user_id, amount, reason, related_id, balance_after, metadata, created_at
		)
		values(
			gen_random_uuid(), $1, $2, $3, $4, $5,
			coalesce(nullif($6,''),'{}')::jsonb,
			to_timestamp($7)
		)
	`

	sqlInsertGiftTransaction = `
		insert into gift_transactions(
			transfer_id, sender_id, recipient_id, post_id, gift_id, coin_amount, created_at
		)
		values(gen_random_uuid(), $1, $2, nullif($3,''), $4, $5, to_timestamp($6))
		returning transfer_id::text
	`

	sqlHasTemplateUnlock = `
		select exists(select 1 from template_unlocks where user_id = $1 and template_id = $2)
	`

	sqlInsertTemplateUnlock = `
		insert into template_unlocks(user_id, template_id, coins_spent, unlocked_at)
		values($1, $2, $3, to_timestamp($4))
	`

	sqlSelectDailyLogin = `
		select user_id, login_date, coins_earned, consecutive_days
		from daily_logins
		where user_id = $1 and login_date = $2
	`

	sqlInsertDailyLogin = `
		insert into daily_logins(user_id, login_date, coins_earned, consecutive_days, created_at)
		values($1, $2, $3, $4, now())
	`

	sqlEnsureAccrual = `
		insert into view_accruals(user_id, credited_units, updated_at)
		values($1, 0, now())
		on conflict (user_id) do nothing
	`

	sqlSelectAccrualForUpdate = `
		select user_id, credited_units from view_accruals where user_id = $1 for update
	`

	sqlUpsertAccrual = `
		insert into view_accruals(user_id, credited_units, updated_at)
		values($1, $2, now())
		on conflict (user_id) do update set credited_units = excluded.credited_units, updated_at = now()
	`

	sqlInsertPaymentEvent = `
		insert into payment_events(external_event_id, user_id, coins, processed_at)
		values($1, $2, $3, to_timestamp($4))
	`

	sqlListCoinTransactions = `
		select
			transaction_id::text,
			user_id,
			amount,
			reason,
			coalesce(related_id,''),
			balance_after,
			coalesce(metadata::text,'{}'),
			extract(epoch from created_at)::bigint
		from coin_transactions
		where user_id = $1
		order by created_at desc
		limit $2
	`
)

// querier is satisfied by both pgxpool.Pool and pgx.Tx.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store implements economy.Store using a pgx connection pool. Methods run in
// autocommit mode until WithTx hands out a transaction-scoped Store.
type Store struct {
	pool *pgxpool.Pool
	q    querier
}

// New returns a Store backed by a pgx pool.
func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool, q: pool}
}

func (store *Store) WithTx(ctx context.Context, fn func(ctx context.Context, txStore economy.Store) error) error {
	if store.pool == nil {
		// Already transaction-scoped; nested calls join the same transaction.
		return fn(ctx, store)
	}
	tx, err := store.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return wrapStoreError(errorSubjectTx, errorCodeBegin, err)
	}
	if err := fn(ctx, &Store{q: tx}); err != nil {
		_ = tx.Rollback(ctx)
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return wrapStoreError(errorSubjectTx, errorCodeCommit, err)
	}
	return nil
}

func (store *Store) CreateWallet(ctx context.Context, userID string) error {
	_, err := store.q.Exec(ctx, sqlInsertWallet, userID)
	if isUniqueViolation(err, constraintWalletPrimary) {
		return wrapStoreError(errorSubjectWallet, errorCodeCreate, economy.ErrWalletExists)
	}
	if err != nil {
		return wrapStoreError(errorSubjectWallet, errorCodeCreate, err)
	}
	return nil
}

func (store *Store) GetWallet(ctx context.Context, userID string) (economy.Wallet, error) {
	return store.selectWallet(ctx, sqlSelectWallet, userID)
}

func (store *Store) GetOrCreateWalletForUpdate(ctx context.Context, userID string) (economy.Wallet, error) {
	if _, err := store.q.Exec(ctx, sqlEnsureWallet, userID); err != nil {
		return economy.Wallet{}, wrapStoreError(errorSubjectWallet, errorCodeCreate, err)
	}
	return store.selectWallet(ctx, sqlSelectWalletForUpdate, userID)
}

func (store *Store) selectWallet(ctx context.Context, query string, userID string) (economy.Wallet, error) {
	var wallet economy.Wallet
	var balance, earnings int64
	err := store.q.QueryRow(ctx, query, userID).Scan(&wallet.UserID, &balance, &earnings)
	if errors.Is(err, pgx.ErrNoRows) {
		return economy.Wallet{}, wrapStoreError(errorSubjectWallet, errorCodeGet, economy.ErrUnknownWallet)
	}
	if err != nil {
		return economy.Wallet{}, wrapStoreError(errorSubjectWallet, errorCodeGet, err)
	}
	wallet.CoinBalance = economy.CoinAmount(balance)
	wallet.TotalEarnings = economy.CoinAmount(earnings)
	return wallet, nil
}

func (store *Store) UpdateWallet(ctx context.Context, wallet economy.Wallet) error {
	tag, err := store.q.Exec(ctx, sqlUpdateWallet, wallet.UserID, wallet.CoinBalance.Int64(), wallet.TotalEarnings.Int64())
	if err != nil {
		return wrapStoreError(errorSubjectWallet, errorCodeUpdate, err)
	}
	if tag.RowsAffected() == 0 {
		return wrapStoreError(errorSubjectWallet, errorCodeUpdate, economy.ErrUnknownWallet)
	}
	return nil
}

func (store *Store) InsertCoinTransaction(ctx context.Context, transaction economy.CoinTransaction) error {
	_, err := store.q.Exec(ctx, sqlInsertCoinTransaction,
		transaction.UserID,
		transaction.Amount.Int64(),
		transaction.Reason.String(),
		transaction.RelatedID,
		transaction.BalanceAfter.Int64(),
		transaction.MetadataJSON,
		transaction.CreatedUnixUTC,
	)
	if err != nil {
		return wrapStoreError(errorSubjectTransaction, errorCodeInsert, err)
	}
	return nil
}

func (store *Store) InsertGiftTransaction(ctx context.Context, transfer *economy.GiftTransaction) error {
	err := store.q.QueryRow(ctx, sqlInsertGiftTransaction,
		transfer.SenderID,
		transfer.RecipientID,
		transfer.PostID,
		transfer.GiftID,
		transfer.CoinAmount.Int64(),
		transfer.CreatedUnixUTC,
	).Scan(&transfer.TransferID)
	if err != nil {
		return wrapStoreError(errorSubjectGift, errorCodeInsert, err)
	}
	return nil
}

func (store *Store) HasTemplateUnlock(ctx context.Context, userID string, templateID string) (bool, error) {
	var unlocked bool
	err := store.q.QueryRow(ctx, sqlHasTemplateUnlock, userID, templateID).Scan(&unlocked)
	if err != nil {
		return false, wrapStoreError(errorSubjectUnlock, errorCodeGet, err)
	}
	return unlocked, nil
}

func (store *Store) InsertTemplateUnlock(ctx context.Context, unlock economy.TemplateUnlock) error {
	_, err := store.q.Exec(ctx, sqlInsertTemplateUnlock,
		unlock.UserID,
		unlock.TemplateID,
		unlock.CoinsSpent.Int64(),
		unlock.UnlockedUnixUTC,
	)
	if isUniqueViolation(err, constraintUnlockPrimary) {
		return wrapStoreError(errorSubjectUnlock, errorCodeInsert, economy.ErrAlreadyUnlocked)
	}
	if err != nil {
		return wrapStoreError(errorSubjectUnlock, errorCodeInsert, err)
	}
	return nil
}

func (store *Store) GetDailyLogin(ctx context.Context, userID string, loginDate string) (economy.DailyLogin, bool, error) {
	var record economy.DailyLogin
	var coins int64
	err := store.q.QueryRow(ctx, sqlSelectDailyLogin, userID, loginDate).Scan(
		&record.UserID,
		&record.LoginDate,
		&coins,
		&record.ConsecutiveDays,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return economy.DailyLogin{}, false, nil
	}
	if err != nil {
		return economy.DailyLogin{}, false, wrapStoreError(errorSubjectDailyLogin, errorCodeGet, err)
	}
	record.CoinsEarned = economy.CoinAmount(coins)
	return record, true, nil
}

func (store *Store) InsertDailyLogin(ctx context.Context, record economy.DailyLogin) error {
	_, err := store.q.Exec(ctx, sqlInsertDailyLogin,
		record.UserID,
		record.LoginDate,
		record.CoinsEarned.Int64(),
		record.ConsecutiveDays,
	)
	if isUniqueViolation(err, constraintDailyLoginPrimary) {
		return wrapStoreError(errorSubjectDailyLogin, errorCodeInsert, economy.ErrAlreadyClaimedToday)
	}
	if err != nil {
		return wrapStoreError(errorSubjectDailyLogin, errorCodeInsert, err)
	}
	return nil
}

func (store *Store) GetViewAccrualForUpdate(ctx context.Context, userID string) (economy.ViewAccrual, error) {
	// A select for update on a missing row takes no lock, so the watermark row
	// is materialized first. Otherwise two first-time accruals could both read
	// zero credited units and pay the same views twice.
	if _, err := store.q.Exec(ctx, sqlEnsureAccrual, userID); err != nil {
		return economy.ViewAccrual{}, wrapStoreError(errorSubjectAccrual, errorCodeCreate, err)
	}
	var accrual economy.ViewAccrual
	err := store.q.QueryRow(ctx, sqlSelectAccrualForUpdate, userID).Scan(&accrual.UserID, &accrual.CreditedUnits)
	if err != nil {
		return economy.ViewAccrual{}, wrapStoreError(errorSubjectAccrual, errorCodeGet, err)
	}
	return accrual, nil
}

func (store *Store) SaveViewAccrual(ctx context.Context, accrual economy.ViewAccrual) error {
	if _, err := store.q.Exec(ctx, sqlUpsertAccrual, accrual.UserID, accrual.CreditedUnits); err != nil {
		return wrapStoreError(errorSubjectAccrual, errorCodeSave, err)
	}
	return nil
}

func (store *Store) InsertPaymentEvent(ctx context.Context, event economy.PaymentEvent) error {
	_, err := store.q.Exec(ctx, sqlInsertPaymentEvent,
		event.ExternalEventID,
		event.UserID,
		event.Coins.Int64(),
		event.ProcessedUnixUTC,
	)
	if isUniqueViolation(err, constraintPaymentEventPrimary) {
		return wrapStoreError(errorSubjectPayment, errorCodeInsert, economy.ErrDuplicatePaymentEvent)
	}
	if err != nil {
		return wrapStoreError(errorSubjectPayment, errorCodeInsert, err)
	}
	return nil
}

func (store *Store) ListCoinTransactions(ctx context.Context, userID string, limit int) ([]economy.CoinTransaction, error) {
	rows, err := store.q.Query(ctx, sqlListCoinTransactions, userID, limit)
	if err != nil {
		return nil, wrapStoreError(errorSubjectTransaction, errorCodeList, err)
	}
	defer rows.Close()

	var transactions []economy.CoinTransaction
	for rows.Next() {
		var transaction economy.CoinTransaction
		var amount, balanceAfter int64
		var reason string
		if err := rows.Scan(
			&transaction.TransactionID,
			&transaction.UserID,
			&amount,
			&reason,
			&transaction.RelatedID,
			&balanceAfter,
			&transaction.MetadataJSON,
			&transaction.CreatedUnixUTC,
		); err != nil {
			return nil, wrapStoreError(errorSubjectTransaction, errorCodeList, err)
		}
		transaction.Amount = economy.CoinAmount(amount)
		transaction.Reason = economy.DeltaReason(reason)
		transaction.BalanceAfter = economy.CoinAmount(balanceAfter)
		transactions = append(transactions, transaction)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapStoreError(errorSubjectTransaction, errorCodeList, err)
	}
	return transactions, nil
}

func wrapStoreError(subject string, code string, err error) error {
	return economy.WrapError(errorOperationStore, subject, code, err)
}

func isUniqueViolation(err error, constraintName string) bool {
	if err == nil {
		return false
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgUniqueViolationCode && pgErr.ConstraintName == constraintName
	}
	return false
}
