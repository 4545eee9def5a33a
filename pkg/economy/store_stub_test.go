package economy

import (
	"context"
	"fmt"
	"testing"
	"time"
)

// stubStore is an in-memory Store with snapshot-rollback transactions, so
// service tests observe the same all-or-nothing behavior as a real database.
type stubStore struct {
	wallets         map[string]Wallet
	transactions    []CoinTransaction
	gifts           []GiftTransaction
	unlocks         map[string]TemplateUnlock
	dailyLogins     map[string]DailyLogin
	accruals        map[string]ViewAccrual
	payments        map[string]PaymentEvent
	nextTransfer    int
	unlockInsertErr error
}

func newStubStore() *stubStore {
	return &stubStore{
		wallets:     map[string]Wallet{},
		unlocks:     map[string]TemplateUnlock{},
		dailyLogins: map[string]DailyLogin{},
		accruals:    map[string]ViewAccrual{},
		payments:    map[string]PaymentEvent{},
	}
}

func (store *stubStore) seedWallet(userID string, balance int64, earnings int64) {
	store.wallets[userID] = Wallet{
		UserID:        userID,
		CoinBalance:   CoinAmount(balance),
		TotalEarnings: CoinAmount(earnings),
	}
}

func (store *stubStore) snapshot() *stubStore {
	copied := newStubStore()
	for key, value := range store.wallets {
		copied.wallets[key] = value
	}
	for key, value := range store.unlocks {
		copied.unlocks[key] = value
	}
	for key, value := range store.dailyLogins {
		copied.dailyLogins[key] = value
	}
	for key, value := range store.accruals {
		copied.accruals[key] = value
	}
	for key, value := range store.payments {
		copied.payments[key] = value
	}
	copied.transactions = append([]CoinTransaction(nil), store.transactions...)
	copied.gifts = append([]GiftTransaction(nil), store.gifts...)
	copied.nextTransfer = store.nextTransfer
	return copied
}

func (store *stubStore) restore(from *stubStore) {
	store.wallets = from.wallets
	store.transactions = from.transactions
	store.gifts = from.gifts
	store.unlocks = from.unlocks
	store.dailyLogins = from.dailyLogins
	store.accruals = from.accruals
	store.payments = from.payments
	store.nextTransfer = from.nextTransfer
}

func (store *stubStore) WithTx(ctx context.Context, fn func(ctx context.Context, txStore Store) error) error {
	saved := store.snapshot()
	if err := fn(ctx, store); err != nil {
		store.restore(saved)
		return err
	}
	return nil
}

func (store *stubStore) CreateWallet(_ context.Context, userID string) error {
	if _, exists := store.wallets[userID]; exists {
		return ErrWalletExists
	}
	store.wallets[userID] = Wallet{UserID: userID}
	return nil
}

func (store *stubStore) GetWallet(_ context.Context, userID string) (Wallet, error) {
	wallet, exists := store.wallets[userID]
	if !exists {
		return Wallet{}, ErrUnknownWallet
	}
	return wallet, nil
}

func (store *stubStore) GetOrCreateWalletForUpdate(_ context.Context, userID string) (Wallet, error) {
	wallet, exists := store.wallets[userID]
	if !exists {
		wallet = Wallet{UserID: userID}
		store.wallets[userID] = wallet
	}
	return wallet, nil
}

func (store *stubStore) UpdateWallet(_ context.Context, wallet Wallet) error {
	if _, exists := store.wallets[wallet.UserID]; !exists {
		return ErrUnknownWallet
	}
	store.wallets[wallet.UserID] = wallet
	return nil
}

func (store *stubStore) InsertCoinTransaction(_ context.Context, transaction CoinTransaction) error {
	store.transactions = append(store.transactions, transaction)
	return nil
}

func (store *stubStore) InsertGiftTransaction(_ context.Context, transfer *GiftTransaction) error {
	store.nextTransfer++
	transfer.TransferID = fmt.Sprintf("transfer-%d", store.nextTransfer)
	store.gifts = append(store.gifts, *transfer)
	return nil
}

func (store *stubStore) HasTemplateUnlock(_ context.Context, userID string, templateID string) (bool, error) {
	_, exists := store.unlocks[userID+"|"+templateID]
	return exists, nil
}

func (store *stubStore) InsertTemplateUnlock(_ context.Context, unlock TemplateUnlock) error {
	if store.unlockInsertErr != nil {
		err := store.unlockInsertErr
		store.unlockInsertErr = nil
		return err
	}
	key := unlock.UserID + "|" + unlock.TemplateID
	if _, exists := store.unlocks[key]; exists {
		return ErrAlreadyUnlocked
	}
	store.unlocks[key] = unlock
	return nil
}

func (store *stubStore) GetDailyLogin(_ context.Context, userID string, loginDate string) (DailyLogin, bool, error) {
	record, exists := store.dailyLogins[userID+"|"+loginDate]
	return record, exists, nil
}

func (store *stubStore) InsertDailyLogin(_ context.Context, record DailyLogin) error {
	key := record.UserID + "|" + record.LoginDate
	if _, exists := store.dailyLogins[key]; exists {
		return ErrAlreadyClaimedToday
	}
	store.dailyLogins[key] = record
	return nil
}

func (store *stubStore) GetViewAccrualForUpdate(_ context.Context, userID string) (ViewAccrual, error) {
	accrual, exists := store.accruals[userID]
	if !exists {
		return ViewAccrual{UserID: userID}, nil
	}
	return accrual, nil
}

func (store *stubStore) SaveViewAccrual(_ context.Context, accrual ViewAccrual) error {
	store.accruals[accrual.UserID] = accrual
	return nil
}

func (store *stubStore) InsertPaymentEvent(_ context.Context, event PaymentEvent) error {
	if _, exists := store.payments[event.ExternalEventID]; exists {
		return ErrDuplicatePaymentEvent
	}
	store.payments[event.ExternalEventID] = event
	return nil
}

func (store *stubStore) ListCoinTransactions(_ context.Context, userID string, limit int) ([]CoinTransaction, error) {
	var matched []CoinTransaction
	for index := len(store.transactions) - 1; index >= 0 && len(matched) < limit; index-- {
		if store.transactions[index].UserID == userID {
			matched = append(matched, store.transactions[index])
		}
	}
	return matched, nil
}

// stubCatalog serves fixed gift and template definitions.
type stubCatalog struct {
	gifts     map[string]Gift
	templates map[string]Template
}

func newStubCatalog() *stubCatalog {
	return &stubCatalog{
		gifts: map[string]Gift{
			"rose":    {GiftID: "rose", Name: "Rose", Icon: "🌹", CoinCost: 30},
			"diamond": {GiftID: "diamond", Name: "Diamond", Icon: "💎", CoinCost: 100},
		},
		templates: map[string]Template{
			"tpl-sunset": {TemplateID: "tpl-sunset", CreatorID: "creator-1", UnlockCost: 50},
		},
	}
}

func (catalog *stubCatalog) GetGift(_ context.Context, giftID string) (Gift, error) {
	gift, exists := catalog.gifts[giftID]
	if !exists {
		return Gift{}, ErrUnknownGift
	}
	return gift, nil
}

func (catalog *stubCatalog) GetTemplate(_ context.Context, templateID string) (Template, error) {
	template, exists := catalog.templates[templateID]
	if !exists {
		return Template{}, ErrUnknownTemplate
	}
	return template, nil
}

// testClock is an adjustable clock for streak tests.
type testClock struct {
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Date(2025, time.March, 10, 12, 0, 0, 0, time.UTC)}
}

func (clock *testClock) fn() func() time.Time {
	return func() time.Time { return clock.now }
}

func (clock *testClock) advanceDays(days int) {
	clock.now = clock.now.AddDate(0, 0, days)
}

func mustNewService(test *testing.T, store Store, catalog Catalog, now func() time.Time, options ...ServiceOption) *Service {
	test.Helper()
	service, err := NewService(store, catalog, now, options...)
	if err != nil {
		test.Fatalf("service init failed: %v", err)
	}
	return service
}
