package httpserver

import (
	"errors"
	"net/http"

	"github.com/Dave-Sleek/promptshare-economy/pkg/economy"
	"github.com/gin-gonic/gin"
)

type sendGiftRequest struct {
	RecipientID string `json:"recipient_id"`
	GiftID      string `json:"gift_id"`
	PostID      string `json:"post_id"`
}

type unlockRequest struct {
	TemplateID string `json:"template_id"`
}

type accrualRequest struct {
	UserID     string `json:"user_id"`
	TotalViews int64  `json:"total_views"`
}

type paymentWebhookRequest struct {
	UserID          string `json:"user_id"`
	Coins           int64  `json:"coins"`
	ExternalEventID string `json:"external_event_id"`
}

type walletPayload struct {
	UserID        string `json:"user_id"`
	CoinBalance   int64  `json:"coin_balance"`
	TotalEarnings int64  `json:"total_earnings"`
}

type transactionPayload struct {
	TransactionID  string `json:"transaction_id"`
	Amount         int64  `json:"amount"`
	Reason         string `json:"reason"`
	RelatedID      string `json:"related_id,omitempty"`
	BalanceAfter   int64  `json:"balance_after"`
	CreatedUnixUTC int64  `json:"created_unix_utc"`
}

func walletJSON(wallet economy.Wallet) walletPayload {
	return walletPayload{
		UserID:        wallet.UserID,
		CoinBalance:   wallet.CoinBalance.Int64(),
		TotalEarnings: wallet.TotalEarnings.Int64(),
	}
}

func errorResponse(message string) gin.H {
	return gin.H{"success": false, "error": message}
}

// domainErrorStatus maps a domain failure to an HTTP status and the short,
// specific message surfaced to the end user. Unanticipated errors come back
// as a generic ledger-unavailable message, never a raw internal string.
func domainErrorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, economy.ErrInsufficientFunds):
		return http.StatusPaymentRequired, "You don't have enough coins"
	case errors.Is(err, economy.ErrSelfGiftNotAllowed):
		return http.StatusBadRequest, "You can't send a gift to yourself"
	case errors.Is(err, economy.ErrUnknownGift):
		return http.StatusNotFound, "That gift doesn't exist"
	case errors.Is(err, economy.ErrUnknownTemplate):
		return http.StatusNotFound, "That template doesn't exist"
	case errors.Is(err, economy.ErrUnknownWallet):
		return http.StatusNotFound, "Wallet not found"
	case errors.Is(err, economy.ErrInvalidUserID),
		errors.Is(err, economy.ErrInvalidGiftID),
		errors.Is(err, economy.ErrInvalidTemplateID),
		errors.Is(err, economy.ErrInvalidEventID),
		errors.Is(err, economy.ErrInvalidCoinAmount),
		errors.Is(err, economy.ErrInvalidViewCount):
		return http.StatusBadRequest, "Invalid request"
	}
	return http.StatusBadGateway, "The coin service is temporarily unavailable"
}
