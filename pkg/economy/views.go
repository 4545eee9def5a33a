package economy

import (
	"context"
	"fmt"
)

// AccrualResult reports a view-earnings accrual. CoinsCredited is zero when
// the view count has not crossed the next ten-view unit since the last run.
type AccrualResult struct {
	CoinsCredited CoinAmount
	CreditedUnits int64
	Balance       CoinAmount
}

// AccrueViewEarnings converts accumulated qualifying views into coins at one
// coin per ten views. The per-user watermark of already-credited units
// advances in the same transaction, so views are never paid out twice.
// totalViews comes from the post/view collaborator and is the lifetime count.
func (service *Service) AccrueViewEarnings(ctx context.Context, userID string, totalViews int64) (AccrualResult, error) {
	userID, err := validateUserID(userID)
	if err != nil {
		return AccrualResult{}, err
	}
	if totalViews < 0 {
		return AccrualResult{}, fmt.Errorf("%w: negative total", ErrInvalidViewCount)
	}

	var result AccrualResult
	operationError := service.store.WithTx(ctx, func(ctx context.Context, txStore Store) error {
		accrual, err := txStore.GetViewAccrualForUpdate(ctx, userID)
		if err != nil {
			return err
		}
		earnedUnits := totalViews / viewsPerCoin
		newlyEarnable := earnedUnits - accrual.CreditedUnits
		if newlyEarnable <= 0 {
			wallet, err := txStore.GetOrCreateWalletForUpdate(ctx, userID)
			if err != nil {
				return err
			}
			result = AccrualResult{CreditedUnits: accrual.CreditedUnits, Balance: wallet.CoinBalance}
			return nil
		}
		wallet, err := service.applyDelta(ctx, txStore, userID, CoinAmount(newlyEarnable), ReasonViewEarnings, "", "")
		if err != nil {
			return err
		}
		accrual.UserID = userID
		accrual.CreditedUnits = earnedUnits
		if err := txStore.SaveViewAccrual(ctx, accrual); err != nil {
			return err
		}
		result = AccrualResult{
			CoinsCredited: CoinAmount(newlyEarnable),
			CreditedUnits: earnedUnits,
			Balance:       wallet.CoinBalance,
		}
		return nil
	})
	service.logOperation(ctx, OperationLog{
		Operation: operationViewAccrual,
		UserID:    userID,
		Amount:    result.CoinsCredited,
		Error:     operationError,
	})
	if operationError != nil {
		return AccrualResult{}, operationError
	}
	return result, nil
}
