package economy

import (
	"context"
	"errors"
	"fmt"
)

// UnlockResult reports the outcome of an unlock attempt. AlreadyUnlocked is a
// benign outcome: no coins were charged.
type UnlockResult struct {
	AlreadyUnlocked bool
	CoinsSpent      CoinAmount
	Balance         CoinAmount
}

// UnlockTemplate charges the one-time unlock cost and records the unlock. The
// template's creator and users holding an unlock record pass through without a
// charge. A concurrent duplicate attempt loses the unique-constraint race,
// rolls back its debit, and resolves to AlreadyUnlocked.
func (service *Service) UnlockTemplate(ctx context.Context, userID string, templateID string) (UnlockResult, error) {
	userID, err := validateUserID(userID)
	if err != nil {
		return UnlockResult{}, err
	}
	templateID, err = validateCatalogID(templateID, ErrInvalidTemplateID)
	if err != nil {
		return UnlockResult{}, err
	}
	template, err := service.catalog.GetTemplate(ctx, templateID)
	if err != nil {
		return UnlockResult{}, err
	}
	if template.CreatorID == userID {
		return UnlockResult{AlreadyUnlocked: true}, nil
	}

	var result UnlockResult
	operationError := service.store.WithTx(ctx, func(ctx context.Context, txStore Store) error {
		unlocked, err := txStore.HasTemplateUnlock(ctx, userID, template.TemplateID)
		if err != nil {
			return err
		}
		if unlocked {
			return ErrAlreadyUnlocked
		}
		wallet, err := service.applyDelta(ctx, txStore, userID, -template.UnlockCost, ReasonTemplateUnlock, template.TemplateID, "")
		if err != nil {
			return err
		}
		unlock := TemplateUnlock{
			UserID:          userID,
			TemplateID:      template.TemplateID,
			CoinsSpent:      template.UnlockCost,
			UnlockedUnixUTC: service.nowFn().UTC().Unix(),
		}
		if err := txStore.InsertTemplateUnlock(ctx, unlock); err != nil {
			return err
		}
		result = UnlockResult{CoinsSpent: template.UnlockCost, Balance: wallet.CoinBalance}
		return nil
	})
	service.logOperation(ctx, OperationLog{
		Operation: operationUnlock,
		UserID:    userID,
		Amount:    template.UnlockCost,
		RelatedID: template.TemplateID,
		Error:     operationError,
	})
	if errors.Is(operationError, ErrAlreadyUnlocked) {
		return service.alreadyUnlockedResult(ctx, userID)
	}
	if operationError != nil {
		return UnlockResult{}, operationError
	}
	return result, nil
}

// alreadyUnlockedResult re-reads the balance after a benign unlock conflict so
// callers still get the authoritative value.
func (service *Service) alreadyUnlockedResult(ctx context.Context, userID string) (UnlockResult, error) {
	wallet, err := service.store.GetWallet(ctx, userID)
	if err != nil && !errors.Is(err, ErrUnknownWallet) {
		return UnlockResult{}, fmt.Errorf("balance after unlock conflict: %w", err)
	}
	return UnlockResult{AlreadyUnlocked: true, Balance: wallet.CoinBalance}, nil
}
