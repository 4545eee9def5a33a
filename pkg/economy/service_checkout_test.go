package economy

import (
	"context"
	"errors"
	"testing"
)

func TestRecordPaymentCreditsOnce(test *testing.T) {
	test.Parallel()
	store := newStubStore()
	service := mustNewService(test, store, newStubCatalog(), newTestClock().fn())

	result, err := service.RecordPayment(context.Background(), "alice", 500, "evt-100")
	if err != nil {
		test.Fatalf("payment: %v", err)
	}
	if result.Duplicate {
		test.Fatalf("first payment must not be a duplicate")
	}
	if result.Coins != 500 || result.Balance != 500 {
		test.Fatalf("unexpected result: %+v", result)
	}
	if store.wallets["alice"].TotalEarnings != 0 {
		test.Fatalf("purchases must not count toward earnings, got %d", store.wallets["alice"].TotalEarnings)
	}
}

func TestRecordPaymentReplayIsBenign(test *testing.T) {
	test.Parallel()
	store := newStubStore()
	service := mustNewService(test, store, newStubCatalog(), newTestClock().fn())

	if _, err := service.RecordPayment(context.Background(), "alice", 500, "evt-100"); err != nil {
		test.Fatalf("first payment: %v", err)
	}
	replay, err := service.RecordPayment(context.Background(), "alice", 500, "evt-100")
	if err != nil {
		test.Fatalf("replay must resolve benignly: %v", err)
	}
	if !replay.Duplicate {
		test.Fatalf("expected Duplicate result")
	}
	if replay.Balance != 500 {
		test.Fatalf("replay must not credit twice, balance %d", replay.Balance)
	}
	if len(store.transactions) != 1 {
		test.Fatalf("expected one audit line, got %d", len(store.transactions))
	}
}

func TestRecordPaymentValidation(test *testing.T) {
	test.Parallel()
	store := newStubStore()
	service := mustNewService(test, store, newStubCatalog(), newTestClock().fn())

	if _, err := service.RecordPayment(context.Background(), "alice", 0, "evt-1"); !errors.Is(err, ErrInvalidCoinAmount) {
		test.Fatalf("expected ErrInvalidCoinAmount for zero coins, got %v", err)
	}
	if _, err := service.RecordPayment(context.Background(), "alice", -10, "evt-2"); !errors.Is(err, ErrInvalidCoinAmount) {
		test.Fatalf("expected ErrInvalidCoinAmount for negative coins, got %v", err)
	}
	if _, err := service.RecordPayment(context.Background(), "alice", 100, " "); !errors.Is(err, ErrInvalidEventID) {
		test.Fatalf("expected ErrInvalidEventID, got %v", err)
	}
}
