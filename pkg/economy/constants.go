package economy

const (
	operationCreateWallet = "create_wallet"
	operationSendGift     = "send_gift"
	operationUnlock       = "unlock_template"
	operationDailyBonus   = "daily_bonus"
	operationViewAccrual  = "view_accrual"
	operationPayment      = "payment"

	operationStatusOK    = "ok"
	operationStatusError = "error"

	// Daily bonus: 5 coins base, +2 per consecutive day, capped at day 7.
	dailyBonusBaseCoins = 5
	dailyBonusStepCoins = 2
	dailyBonusStreakCap = 7
	loginDateLayout     = "2006-01-02"

	// One coin per ten qualifying views.
	viewsPerCoin = 10

	defaultHistoryLimit = 50
	maxHistoryLimit     = 200
)
