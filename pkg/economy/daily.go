package economy

import (
	"context"
	"errors"
)

// DailyBonusResult reports a daily claim. AlreadyClaimed is benign: the bonus
// for today was taken earlier and no coins moved.
type DailyBonusResult struct {
	AlreadyClaimed  bool
	Coins           CoinAmount
	ConsecutiveDays int
	Balance         CoinAmount
}

// ClaimDailyBonus grants the once-per-calendar-day reward. Dates are UTC.
// The streak continues when yesterday was claimed and resets to 1 otherwise.
// The wallet row lock taken before the daily-login insert serializes claims
// from multiple devices for the same user.
func (service *Service) ClaimDailyBonus(ctx context.Context, userID string) (DailyBonusResult, error) {
	userID, err := validateUserID(userID)
	if err != nil {
		return DailyBonusResult{}, err
	}
	now := service.nowFn().UTC()
	today := now.Format(loginDateLayout)
	yesterday := now.AddDate(0, 0, -1).Format(loginDateLayout)

	var result DailyBonusResult
	operationError := service.store.WithTx(ctx, func(ctx context.Context, txStore Store) error {
		if _, err := txStore.GetOrCreateWalletForUpdate(ctx, userID); err != nil {
			return err
		}
		if _, claimed, err := txStore.GetDailyLogin(ctx, userID, today); err != nil {
			return err
		} else if claimed {
			return ErrAlreadyClaimedToday
		}
		consecutiveDays := 1
		if previous, claimed, err := txStore.GetDailyLogin(ctx, userID, yesterday); err != nil {
			return err
		} else if claimed {
			consecutiveDays = previous.ConsecutiveDays + 1
		}
		coins := dailyBonusCoins(consecutiveDays)
		record := DailyLogin{
			UserID:          userID,
			LoginDate:       today,
			CoinsEarned:     coins,
			ConsecutiveDays: consecutiveDays,
		}
		if err := txStore.InsertDailyLogin(ctx, record); err != nil {
			return err
		}
		wallet, err := service.applyDelta(ctx, txStore, userID, coins, ReasonDailyBonus, today, "")
		if err != nil {
			return err
		}
		result = DailyBonusResult{
			Coins:           coins,
			ConsecutiveDays: consecutiveDays,
			Balance:         wallet.CoinBalance,
		}
		return nil
	})
	service.logOperation(ctx, OperationLog{
		Operation: operationDailyBonus,
		UserID:    userID,
		Amount:    result.Coins,
		RelatedID: today,
		Error:     operationError,
	})
	if errors.Is(operationError, ErrAlreadyClaimedToday) {
		wallet, err := service.store.GetWallet(ctx, userID)
		if err != nil && !errors.Is(err, ErrUnknownWallet) {
			return DailyBonusResult{}, err
		}
		return DailyBonusResult{AlreadyClaimed: true, Balance: wallet.CoinBalance}, nil
	}
	if operationError != nil {
		return DailyBonusResult{}, operationError
	}
	return result, nil
}

// dailyBonusCoins computes the streak-scaled reward: 5, 7, 9, ... capped at 17
// from day 7 onward.
func dailyBonusCoins(consecutiveDays int) CoinAmount {
	streakDays := consecutiveDays - 1
	if streakDays > dailyBonusStreakCap-1 {
		streakDays = dailyBonusStreakCap - 1
	}
	return CoinAmount(dailyBonusBaseCoins + streakDays*dailyBonusStepCoins)
}
