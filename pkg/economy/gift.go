package economy

import (
	"context"
	"encoding/json"
	"strings"
)

// GiftReceipt reports a completed transfer with both authoritative
// post-mutation balances.
type GiftReceipt struct {
	TransferID       string
	GiftID           string
	CoinAmount       CoinAmount
	SenderBalance    CoinAmount
	RecipientBalance CoinAmount
}

// SendGift moves the gift's coin cost from sender to recipient as one atomic
// step and appends an immutable gift transaction. The credited amount counts
// toward the recipient's total earnings.
func (service *Service) SendGift(ctx context.Context, senderID string, recipientID string, giftID string, postID string) (GiftReceipt, error) {
	senderID, err := validateUserID(senderID)
	if err != nil {
		return GiftReceipt{}, err
	}
	recipientID, err = validateUserID(recipientID)
	if err != nil {
		return GiftReceipt{}, err
	}
	giftID, err = validateCatalogID(giftID, ErrInvalidGiftID)
	if err != nil {
		return GiftReceipt{}, err
	}
	if senderID == recipientID {
		return GiftReceipt{}, ErrSelfGiftNotAllowed
	}
	gift, err := service.catalog.GetGift(ctx, giftID)
	if err != nil {
		return GiftReceipt{}, err
	}

	var receipt GiftReceipt
	operationError := service.store.WithTx(ctx, func(ctx context.Context, txStore Store) error {
		metadata := giftMetadata(gift.GiftID, postID)
		transfer := &GiftTransaction{
			SenderID:       senderID,
			RecipientID:    recipientID,
			PostID:         strings.TrimSpace(postID),
			GiftID:         gift.GiftID,
			CoinAmount:     gift.CoinCost,
			CreatedUnixUTC: service.nowFn().UTC().Unix(),
		}
		if err := txStore.InsertGiftTransaction(ctx, transfer); err != nil {
			return err
		}
		// Wallet rows are locked in user-id order so crossing gifts between
		// the same pair cannot deadlock.
		first, second := senderID, recipientID
		if second < first {
			first, second = second, first
		}
		wallets := make(map[string]Wallet, 2)
		for _, userID := range []string{first, second} {
			delta := gift.CoinCost
			reason := ReasonGiftReceived
			if userID == senderID {
				delta = -gift.CoinCost
				reason = ReasonGiftSent
			}
			wallet, err := service.applyDelta(ctx, txStore, userID, delta, reason, transfer.TransferID, metadata)
			if err != nil {
				return err
			}
			wallets[userID] = wallet
		}
		receipt = GiftReceipt{
			TransferID:       transfer.TransferID,
			GiftID:           gift.GiftID,
			CoinAmount:       gift.CoinCost,
			SenderBalance:    wallets[senderID].CoinBalance,
			RecipientBalance: wallets[recipientID].CoinBalance,
		}
		return nil
	})
	service.logOperation(ctx, OperationLog{
		Operation: operationSendGift,
		UserID:    senderID,
		PeerID:    recipientID,
		Amount:    gift.CoinCost,
		RelatedID: gift.GiftID,
		Error:     operationError,
	})
	if operationError != nil {
		return GiftReceipt{}, operationError
	}
	return receipt, nil
}

func giftMetadata(giftID string, postID string) string {
	payload := map[string]string{"gift_id": giftID}
	if trimmed := strings.TrimSpace(postID); trimmed != "" {
		payload["post_id"] = trimmed
	}
	encoded, err := json.Marshal(payload)
	if err != nil {
		return "{}"
	}
	return string(encoded)
}
