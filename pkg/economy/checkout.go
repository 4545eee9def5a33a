package economy

import (
	"context"
	"errors"
)

// PaymentResult reports a processed payment completion. Duplicate means the
// webhook was a replay and nothing was credited.
type PaymentResult struct {
	Duplicate bool
	Coins     CoinAmount
	Balance   CoinAmount
}

// RecordPayment credits purchased coins once per external payment event.
// Purchases do not count toward total earnings. Replays of the same
// externalEventID are detected and succeed without a second credit.
func (service *Service) RecordPayment(ctx context.Context, userID string, coins int64, externalEventID string) (PaymentResult, error) {
	userID, err := validateUserID(userID)
	if err != nil {
		return PaymentResult{}, err
	}
	externalEventID, err = validateCatalogID(externalEventID, ErrInvalidEventID)
	if err != nil {
		return PaymentResult{}, err
	}
	amount, err := validatePositiveAmount(coins)
	if err != nil {
		return PaymentResult{}, err
	}

	var result PaymentResult
	operationError := service.store.WithTx(ctx, func(ctx context.Context, txStore Store) error {
		event := PaymentEvent{
			ExternalEventID:  externalEventID,
			UserID:           userID,
			Coins:            amount,
			ProcessedUnixUTC: service.nowFn().UTC().Unix(),
		}
		if err := txStore.InsertPaymentEvent(ctx, event); err != nil {
			return err
		}
		wallet, err := service.applyDelta(ctx, txStore, userID, amount, ReasonCoinPurchase, externalEventID, "")
		if err != nil {
			return err
		}
		result = PaymentResult{Coins: amount, Balance: wallet.CoinBalance}
		return nil
	})
	service.logOperation(ctx, OperationLog{
		Operation: operationPayment,
		UserID:    userID,
		Amount:    amount,
		RelatedID: externalEventID,
		Error:     operationError,
	})
	if errors.Is(operationError, ErrDuplicatePaymentEvent) {
		wallet, err := service.store.GetWallet(ctx, userID)
		if err != nil && !errors.Is(err, ErrUnknownWallet) {
			return PaymentResult{}, err
		}
		return PaymentResult{Duplicate: true, Balance: wallet.CoinBalance}, nil
	}
	if operationError != nil {
		return PaymentResult{}, operationError
	}
	return result, nil
}
