package httpserver

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/Dave-Sleek/promptshare-economy/internal/store/gormstore"
	"github.com/Dave-Sleek/promptshare-economy/pkg/economy"
	"github.com/gin-gonic/gin"
	"github.com/glebarez/sqlite"
	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const (
	testSigningKey    = "test-signing-key"
	testWebhookSecret = "test-webhook-secret"
	testIssuer        = "promptshare"
)

func newTestRouter(test *testing.T) *gin.Engine {
	test.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		test.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		test.Fatalf("raw db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	test.Cleanup(func() { _ = sqlDB.Close() })
	if err := gormstore.Migrate(db); err != nil {
		test.Fatalf("migrate: %v", err)
	}
	ctx := context.Background()
	if err := gormstore.SeedDefaultGifts(ctx, db); err != nil {
		test.Fatalf("seed gifts: %v", err)
	}
	if err := db.Create(&gormstore.PremiumTemplate{TemplateID: "tpl-1", CreatorID: "creator-1", UnlockCost: 40}).Error; err != nil {
		test.Fatalf("seed template: %v", err)
	}

	service, err := economy.NewService(gormstore.New(db), gormstore.NewCatalog(db), func() time.Time { return time.Now().UTC() })
	if err != nil {
		test.Fatalf("service init: %v", err)
	}

	cfg := Config{
		TokenSigningKey: testSigningKey,
		TokenIssuer:     testIssuer,
		WebhookSecret:   testWebhookSecret,
	}
	if err := cfg.Validate(); err != nil {
		test.Fatalf("config: %v", err)
	}
	return NewRouter(cfg, service, zap.NewNop())
}

func signToken(test *testing.T, key string, userID string) string {
	test.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": userID,
		"iss": testIssuer,
		"exp": time.Now().Add(time.Hour).Unix(),
	})
	signed, err := token.SignedString([]byte(key))
	if err != nil {
		test.Fatalf("sign token: %v", err)
	}
	return signed
}

func doRequest(router *gin.Engine, method string, path string, body string, headers map[string]string) *httptest.ResponseRecorder {
	request := httptest.NewRequest(method, path, strings.NewReader(body))
	request.Header.Set("Content-Type", "application/json")
	for key, value := range headers {
		request.Header.Set(key, value)
	}
	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, request)
	return recorder
}

func authHeaders(test *testing.T, userID string) map[string]string {
	return map[string]string{"Authorization": "Bearer " + signToken(test, testSigningKey, userID)}
}

func webhookHeaders() map[string]string {
	return map[string]string{"X-Webhook-Secret": testWebhookSecret}
}

func decodeBody(test *testing.T, recorder *httptest.ResponseRecorder) map[string]any {
	test.Helper()
	var payload map[string]any
	if err := json.Unmarshal(recorder.Body.Bytes(), &payload); err != nil {
		test.Fatalf("decode body %q: %v", recorder.Body.String(), err)
	}
	return payload
}

func TestHealthz(test *testing.T) {
	test.Parallel()
	router := newTestRouter(test)
	recorder := doRequest(router, http.MethodGet, "/healthz", "", nil)
	if recorder.Code != http.StatusOK {
		test.Fatalf("expected 200, got %d", recorder.Code)
	}
}

func TestAPIRequiresBearerToken(test *testing.T) {
	test.Parallel()
	router := newTestRouter(test)

	recorder := doRequest(router, http.MethodGet, "/api/wallet", "", nil)
	if recorder.Code != http.StatusUnauthorized {
		test.Fatalf("expected 401 without token, got %d", recorder.Code)
	}

	forged := map[string]string{"Authorization": "Bearer " + signToken(test, "wrong-key", "alice")}
	recorder = doRequest(router, http.MethodGet, "/api/wallet", "", forged)
	if recorder.Code != http.StatusUnauthorized {
		test.Fatalf("expected 401 with forged token, got %d", recorder.Code)
	}
}

func TestWebhookRequiresSecret(test *testing.T) {
	test.Parallel()
	router := newTestRouter(test)

	body := `{"user_id":"alice","coins":100,"external_event_id":"evt-1"}`
	recorder := doRequest(router, http.MethodPost, "/internal/payments", body, nil)
	if recorder.Code != http.StatusUnauthorized {
		test.Fatalf("expected 401 without secret, got %d", recorder.Code)
	}
	recorder = doRequest(router, http.MethodPost, "/internal/payments", body, map[string]string{"X-Webhook-Secret": "nope"})
	if recorder.Code != http.StatusUnauthorized {
		test.Fatalf("expected 401 with wrong secret, got %d", recorder.Code)
	}
}

func TestWalletCreateAndFetch(test *testing.T) {
	test.Parallel()
	router := newTestRouter(test)

	recorder := doRequest(router, http.MethodPost, "/api/wallet", "", authHeaders(test, "alice"))
	if recorder.Code != http.StatusOK {
		test.Fatalf("create wallet: %d %s", recorder.Code, recorder.Body.String())
	}

	recorder = doRequest(router, http.MethodGet, "/api/wallet", "", authHeaders(test, "alice"))
	if recorder.Code != http.StatusOK {
		test.Fatalf("fetch wallet: %d %s", recorder.Code, recorder.Body.String())
	}
	payload := decodeBody(test, recorder)
	wallet, ok := payload["wallet"].(map[string]any)
	if !ok {
		test.Fatalf("missing wallet object: %v", payload)
	}
	if wallet["user_id"] != "alice" || wallet["coin_balance"] != float64(0) {
		test.Fatalf("unexpected wallet payload: %v", wallet)
	}
}

func TestWalletFetchUnknownUser(test *testing.T) {
	test.Parallel()
	router := newTestRouter(test)

	recorder := doRequest(router, http.MethodGet, "/api/wallet", "", authHeaders(test, "ghost"))
	if recorder.Code != http.StatusNotFound {
		test.Fatalf("expected 404, got %d", recorder.Code)
	}
}

func TestGiftFlowOverHTTP(test *testing.T) {
	test.Parallel()
	router := newTestRouter(test)

	fund := `{"user_id":"alice","coins":100,"external_event_id":"evt-fund"}`
	recorder := doRequest(router, http.MethodPost, "/internal/payments", fund, webhookHeaders())
	if recorder.Code != http.StatusOK {
		test.Fatalf("fund wallet: %d %s", recorder.Code, recorder.Body.String())
	}

	gift := `{"recipient_id":"bob","gift_id":"star","post_id":"post-1"}`
	recorder = doRequest(router, http.MethodPost, "/api/gifts", gift, authHeaders(test, "alice"))
	if recorder.Code != http.StatusOK {
		test.Fatalf("send gift: %d %s", recorder.Code, recorder.Body.String())
	}
	payload := decodeBody(test, recorder)
	if payload["coin_amount"] != float64(30) || payload["sender_balance"] != float64(70) || payload["recipient_balance"] != float64(30) {
		test.Fatalf("unexpected gift payload: %v", payload)
	}
	if payload["transfer_id"] == "" {
		test.Fatalf("transfer id missing")
	}
}

func TestGiftInsufficientFundsOverHTTP(test *testing.T) {
	test.Parallel()
	router := newTestRouter(test)

	gift := `{"recipient_id":"bob","gift_id":"diamond"}`
	recorder := doRequest(router, http.MethodPost, "/api/gifts", gift, authHeaders(test, "alice"))
	if recorder.Code != http.StatusPaymentRequired {
		test.Fatalf("expected 402, got %d %s", recorder.Code, recorder.Body.String())
	}
	payload := decodeBody(test, recorder)
	if payload["error"] != "You don't have enough coins" {
		test.Fatalf("unexpected error message: %v", payload["error"])
	}
}

func TestDailyBonusOverHTTP(test *testing.T) {
	test.Parallel()
	router := newTestRouter(test)

	recorder := doRequest(router, http.MethodPost, "/api/daily-bonus", "", authHeaders(test, "alice"))
	if recorder.Code != http.StatusOK {
		test.Fatalf("first claim: %d %s", recorder.Code, recorder.Body.String())
	}
	payload := decodeBody(test, recorder)
	if payload["success"] != true || payload["coins"] != float64(5) || payload["consecutive_days"] != float64(1) {
		test.Fatalf("unexpected first claim: %v", payload)
	}

	recorder = doRequest(router, http.MethodPost, "/api/daily-bonus", "", authHeaders(test, "alice"))
	if recorder.Code != http.StatusOK {
		test.Fatalf("repeat claim: %d %s", recorder.Code, recorder.Body.String())
	}
	payload = decodeBody(test, recorder)
	if payload["success"] != false || payload["error"] != "Already claimed today" {
		test.Fatalf("unexpected repeat claim: %v", payload)
	}
	if payload["balance"] != float64(5) {
		test.Fatalf("repeat claim must still report the balance: %v", payload)
	}
}

func TestUnlockOverHTTP(test *testing.T) {
	test.Parallel()
	router := newTestRouter(test)

	fund := `{"user_id":"alice","coins":100,"external_event_id":"evt-fund"}`
	if recorder := doRequest(router, http.MethodPost, "/internal/payments", fund, webhookHeaders()); recorder.Code != http.StatusOK {
		test.Fatalf("fund wallet: %d", recorder.Code)
	}

	body := `{"template_id":"tpl-1"}`
	recorder := doRequest(router, http.MethodPost, "/api/unlocks", body, authHeaders(test, "alice"))
	if recorder.Code != http.StatusOK {
		test.Fatalf("unlock: %d %s", recorder.Code, recorder.Body.String())
	}
	payload := decodeBody(test, recorder)
	if payload["already_unlocked"] != false || payload["coins_spent"] != float64(40) || payload["balance"] != float64(60) {
		test.Fatalf("unexpected unlock payload: %v", payload)
	}

	recorder = doRequest(router, http.MethodPost, "/api/unlocks", body, authHeaders(test, "alice"))
	payload = decodeBody(test, recorder)
	if payload["already_unlocked"] != true || payload["balance"] != float64(60) {
		test.Fatalf("repeat unlock must be benign: %v", payload)
	}
}

func TestAccrualOverHTTP(test *testing.T) {
	test.Parallel()
	router := newTestRouter(test)

	body := `{"user_id":"bob","total_views":47}`
	recorder := doRequest(router, http.MethodPost, "/internal/accruals", body, webhookHeaders())
	if recorder.Code != http.StatusOK {
		test.Fatalf("accrual: %d %s", recorder.Code, recorder.Body.String())
	}
	payload := decodeBody(test, recorder)
	if payload["coins_credited"] != float64(4) || payload["credited_units"] != float64(4) || payload["balance"] != float64(4) {
		test.Fatalf("unexpected accrual payload: %v", payload)
	}
}

func TestPaymentReplayOverHTTP(test *testing.T) {
	test.Parallel()
	router := newTestRouter(test)

	body := `{"user_id":"alice","coins":500,"external_event_id":"evt-9"}`
	if recorder := doRequest(router, http.MethodPost, "/internal/payments", body, webhookHeaders()); recorder.Code != http.StatusOK {
		test.Fatalf("first payment: %d", recorder.Code)
	}
	recorder := doRequest(router, http.MethodPost, "/internal/payments", body, webhookHeaders())
	if recorder.Code != http.StatusOK {
		test.Fatalf("replay: %d %s", recorder.Code, recorder.Body.String())
	}
	payload := decodeBody(test, recorder)
	if payload["duplicate"] != true || payload["balance"] != float64(500) {
		test.Fatalf("replay must not double-credit: %v", payload)
	}
}

func TestHistoryOverHTTP(test *testing.T) {
	test.Parallel()
	router := newTestRouter(test)

	if recorder := doRequest(router, http.MethodPost, "/api/daily-bonus", "", authHeaders(test, "alice")); recorder.Code != http.StatusOK {
		test.Fatalf("claim: %d", recorder.Code)
	}

	recorder := doRequest(router, http.MethodGet, "/api/wallet/history", "", authHeaders(test, "alice"))
	if recorder.Code != http.StatusOK {
		test.Fatalf("history: %d %s", recorder.Code, recorder.Body.String())
	}
	payload := decodeBody(test, recorder)
	transactions, ok := payload["transactions"].([]any)
	if !ok || len(transactions) != 1 {
		test.Fatalf("expected one transaction, got %v", payload)
	}
	entry := transactions[0].(map[string]any)
	if entry["reason"] != "daily_bonus" || entry["amount"] != float64(5) {
		test.Fatalf("unexpected history entry: %v", entry)
	}
}
