package economy

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Service contains the coin-economy domain logic over a Store and a Catalog.
// It is the only code path through which balances change.
type Service struct {
	store   Store
	catalog Catalog
	nowFn   func() time.Time
	logger  OperationLogger
}

// NewService wires a Service.
func NewService(store Store, catalog Catalog, now func() time.Time, options ...ServiceOption) (*Service, error) {
	if store == nil {
		return nil, fmt.Errorf("%w: store dependency is nil", ErrInvalidServiceConfig)
	}
	if catalog == nil {
		return nil, fmt.Errorf("%w: catalog dependency is nil", ErrInvalidServiceConfig)
	}
	if now == nil {
		return nil, fmt.Errorf("%w: clock dependency is nil", ErrInvalidServiceConfig)
	}
	service := &Service{store: store, catalog: catalog, nowFn: now}
	for _, option := range options {
		if option != nil {
			option(service)
		}
	}
	return service, nil
}

// Balance returns the wallet for userID. Fails with ErrUnknownWallet when the
// account has never been provisioned.
func (service *Service) Balance(ctx context.Context, userID string) (Wallet, error) {
	userID, err := validateUserID(userID)
	if err != nil {
		return Wallet{}, err
	}
	return service.store.GetWallet(ctx, userID)
}

// CreateWallet provisions a zero-balance wallet for a new account. A second
// call for the same user resolves to the existing wallet.
func (service *Service) CreateWallet(ctx context.Context, userID string) (Wallet, error) {
	userID, err := validateUserID(userID)
	if err != nil {
		return Wallet{}, err
	}
	operationError := service.store.CreateWallet(ctx, userID)
	if operationError != nil && !errors.Is(operationError, ErrWalletExists) {
		service.logOperation(ctx, OperationLog{
			Operation: operationCreateWallet,
			UserID:    userID,
			Error:     operationError,
		})
		return Wallet{}, operationError
	}
	service.logOperation(ctx, OperationLog{
		Operation: operationCreateWallet,
		UserID:    userID,
	})
	return service.store.GetWallet(ctx, userID)
}

// History returns the user's most recent coin transactions, newest first.
func (service *Service) History(ctx context.Context, userID string, limit int) ([]CoinTransaction, error) {
	userID, err := validateUserID(userID)
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	if limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}
	return service.store.ListCoinTransactions(ctx, userID, limit)
}

// applyDelta is the single choke-point for balance changes. It locks the
// wallet row, enforces non-negativity, persists the new balance, and appends
// the audit record, all inside the caller's transaction. Credits with an
// earnings-classified reason also advance total earnings.
func (service *Service) applyDelta(ctx context.Context, txStore Store, userID string, delta CoinAmount, reason DeltaReason, relatedID string, metadataJSON string) (Wallet, error) {
	wallet, err := txStore.GetOrCreateWalletForUpdate(ctx, userID)
	if err != nil {
		return Wallet{}, err
	}
	if delta < 0 && wallet.CoinBalance+delta < 0 {
		return Wallet{}, ErrInsufficientFunds
	}
	wallet.CoinBalance += delta
	if delta > 0 && reason.EarningsClassified() {
		wallet.TotalEarnings += delta
	}
	if err := txStore.UpdateWallet(ctx, wallet); err != nil {
		return Wallet{}, err
	}
	transaction := CoinTransaction{
		UserID:         userID,
		Amount:         delta,
		Reason:         reason,
		RelatedID:      relatedID,
		BalanceAfter:   wallet.CoinBalance,
		MetadataJSON:   metadataJSON,
		CreatedUnixUTC: service.nowFn().UTC().Unix(),
	}
	if err := txStore.InsertCoinTransaction(ctx, transaction); err != nil {
		return Wallet{}, err
	}
	return wallet, nil
}

func (service *Service) logOperation(ctx context.Context, entry OperationLog) {
	if service.logger == nil {
		return
	}
	if entry.Status == "" {
		if entry.Error != nil {
			entry.Status = operationStatusError
		} else {
			entry.Status = operationStatusOK
		}
	}
	service.logger.LogOperation(ctx, entry)
}
