package httpserver

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func (handler *httpHandler) handleCreateWallet(ctx *gin.Context) {
	userID := authenticatedUserID(ctx)
	requestCtx, cancel := handler.requestContext(ctx)
	defer cancel()

	wallet, err := handler.service.CreateWallet(requestCtx, userID)
	if err != nil {
		handler.respondDomainError(ctx, "wallet create failed", err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"success": true, "wallet": walletJSON(wallet)})
}

func (handler *httpHandler) handleWallet(ctx *gin.Context) {
	userID := authenticatedUserID(ctx)
	requestCtx, cancel := handler.requestContext(ctx)
	defer cancel()

	wallet, err := handler.service.Balance(requestCtx, userID)
	if err != nil {
		handler.respondDomainError(ctx, "wallet fetch failed", err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"success": true, "wallet": walletJSON(wallet)})
}

func (handler *httpHandler) handleHistory(ctx *gin.Context) {
	userID := authenticatedUserID(ctx)
	limit, _ := strconv.Atoi(ctx.DefaultQuery("limit", "50"))
	requestCtx, cancel := handler.requestContext(ctx)
	defer cancel()

	transactions, err := handler.service.History(requestCtx, userID, limit)
	if err != nil {
		handler.respondDomainError(ctx, "history fetch failed", err)
		return
	}
	payload := make([]transactionPayload, 0, len(transactions))
	for _, transaction := range transactions {
		payload = append(payload, transactionPayload{
			TransactionID:  transaction.TransactionID,
			Amount:         transaction.Amount.Int64(),
			Reason:         transaction.Reason.String(),
			RelatedID:      transaction.RelatedID,
			BalanceAfter:   transaction.BalanceAfter.Int64(),
			CreatedUnixUTC: transaction.CreatedUnixUTC,
		})
	}
	ctx.JSON(http.StatusOK, gin.H{"success": true, "transactions": payload})
}

func (handler *httpHandler) handleSendGift(ctx *gin.Context) {
	userID := authenticatedUserID(ctx)
	var request sendGiftRequest
	if err := ctx.ShouldBindJSON(&request); err != nil {
		ctx.JSON(http.StatusBadRequest, errorResponse("expected JSON body"))
		return
	}
	requestCtx, cancel := handler.requestContext(ctx)
	defer cancel()

	receipt, err := handler.service.SendGift(requestCtx, userID, request.RecipientID, request.GiftID, request.PostID)
	if err != nil {
		handler.respondDomainError(ctx, "gift send failed", err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{
		"success":           true,
		"transfer_id":       receipt.TransferID,
		"coin_amount":       receipt.CoinAmount.Int64(),
		"sender_balance":    receipt.SenderBalance.Int64(),
		"recipient_balance": receipt.RecipientBalance.Int64(),
	})
}

func (handler *httpHandler) handleUnlock(ctx *gin.Context) {
	userID := authenticatedUserID(ctx)
	var request unlockRequest
	if err := ctx.ShouldBindJSON(&request); err != nil {
		ctx.JSON(http.StatusBadRequest, errorResponse("expected JSON body"))
		return
	}
	requestCtx, cancel := handler.requestContext(ctx)
	defer cancel()

	result, err := handler.service.UnlockTemplate(requestCtx, userID, request.TemplateID)
	if err != nil {
		handler.respondDomainError(ctx, "template unlock failed", err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{
		"success":          true,
		"already_unlocked": result.AlreadyUnlocked,
		"coins_spent":      result.CoinsSpent.Int64(),
		"balance":          result.Balance.Int64(),
	})
}

func (handler *httpHandler) handleDailyBonus(ctx *gin.Context) {
	userID := authenticatedUserID(ctx)
	requestCtx, cancel := handler.requestContext(ctx)
	defer cancel()

	result, err := handler.service.ClaimDailyBonus(requestCtx, userID)
	if err != nil {
		handler.respondDomainError(ctx, "daily bonus claim failed", err)
		return
	}
	if result.AlreadyClaimed {
		ctx.JSON(http.StatusOK, gin.H{
			"success": false,
			"error":   "Already claimed today",
			"balance": result.Balance.Int64(),
		})
		return
	}
	ctx.JSON(http.StatusOK, gin.H{
		"success":          true,
		"coins":            result.Coins.Int64(),
		"consecutive_days": result.ConsecutiveDays,
		"balance":          result.Balance.Int64(),
	})
}

func (handler *httpHandler) handleAccrual(ctx *gin.Context) {
	var request accrualRequest
	if err := ctx.ShouldBindJSON(&request); err != nil {
		ctx.JSON(http.StatusBadRequest, errorResponse("expected JSON body"))
		return
	}
	requestCtx, cancel := handler.requestContext(ctx)
	defer cancel()

	result, err := handler.service.AccrueViewEarnings(requestCtx, request.UserID, request.TotalViews)
	if err != nil {
		handler.respondDomainError(ctx, "view accrual failed", err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{
		"success":        true,
		"coins_credited": result.CoinsCredited.Int64(),
		"credited_units": result.CreditedUnits,
		"balance":        result.Balance.Int64(),
	})
}

func (handler *httpHandler) handlePaymentWebhook(ctx *gin.Context) {
	var request paymentWebhookRequest
	if err := ctx.ShouldBindJSON(&request); err != nil {
		ctx.JSON(http.StatusBadRequest, errorResponse("expected JSON body"))
		return
	}
	requestCtx, cancel := handler.requestContext(ctx)
	defer cancel()

	result, err := handler.service.RecordPayment(requestCtx, request.UserID, request.Coins, request.ExternalEventID)
	if err != nil {
		handler.respondDomainError(ctx, "payment credit failed", err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{
		"success":   true,
		"duplicate": result.Duplicate,
		"coins":     result.Coins.Int64(),
		"balance":   result.Balance.Int64(),
	})
}

func (handler *httpHandler) requestContext(ctx *gin.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx.Request.Context(), handler.cfg.RequestTimeout)
}

func (handler *httpHandler) respondDomainError(ctx *gin.Context, message string, err error) {
	status, userMessage := domainErrorStatus(err)
	if status == http.StatusBadGateway {
		handler.logger.Error(message, zap.Error(err))
	}
	ctx.JSON(status, errorResponse(userMessage))
}
