package economy

import (
	"errors"
	"testing"
)

func TestWrapErrorPreservesSentinel(test *testing.T) {
	test.Parallel()
	wrapped := WrapError("send_gift", "wallet", "insufficient_funds", ErrInsufficientFunds)
	if !errors.Is(wrapped, ErrInsufficientFunds) {
		test.Fatalf("wrapped error must unwrap to the sentinel")
	}
	var operationError OperationError
	if !errors.As(wrapped, &operationError) {
		test.Fatalf("expected OperationError, got %T", wrapped)
	}
	if operationError.Operation() != "send_gift" || operationError.Subject() != "wallet" || operationError.Code() != "insufficient_funds" {
		test.Fatalf("unexpected segments: %v", operationError)
	}
}

func TestWrapErrorNilPassthrough(test *testing.T) {
	test.Parallel()
	if WrapError("op", "subject", "code", nil) != nil {
		test.Fatalf("wrapping nil must return nil")
	}
}

func TestEarningsClassification(test *testing.T) {
	test.Parallel()
	classified := []DeltaReason{ReasonGiftReceived, ReasonDailyBonus, ReasonViewEarnings}
	for _, reason := range classified {
		if !reason.EarningsClassified() {
			test.Fatalf("%s must be earnings-classified", reason)
		}
	}
	unclassified := []DeltaReason{ReasonGiftSent, ReasonTemplateUnlock, ReasonCoinPurchase}
	for _, reason := range unclassified {
		if reason.EarningsClassified() {
			test.Fatalf("%s must not be earnings-classified", reason)
		}
	}
}
