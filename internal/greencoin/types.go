package greencoin

import (
	"encoding/json"

	"github.com/shopspring/decimal"
)

// Action types accepted by POST /action
const (
	ActionCloseTabs      = "close_tabs"
	ActionEfficientDrive = "efficient_drive"
	ActionAIOptimize     = "ai_optimize"
	ActionServerOptimize = "server_optimize"
)

// Wallet types and redemption kinds accepted by POST /redeem
const (
	WalletMoney  = "money"
	WalletPoints = "points"

	RedeemCash         = "cash"
	RedeemGiftCard     = "gift_card"
	RedeemCarbonOffset = "carbon_offset"
)

// RegisterRequest is the body of POST /register
type RegisterRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
}

// RegisterResponse is the response from the register endpoint
type RegisterResponse struct {
	UserID   string `json:"user_id"`
	Username string `json:"username"`
	Message  string `json:"message"`
}

// WalletBalance is one of the two wallets of a user
type WalletBalance struct {
	BalanceCoins decimal.Decimal `json:"balance_coins"`
	BalanceUSD   decimal.Decimal `json:"balance_usd"`
}

// Wallets holds the money and points wallets
type Wallets struct {
	Money  WalletBalance `json:"money"`
	Points WalletBalance `json:"points"`
}

// UserStats contains per-user impact counters
type UserStats struct {
	TotalCO2SavedKg   float64         `json:"total_co2_saved_kg"`
	CurrentStreakDays int             `json:"current_streak_days"`
	TotalValueUSD     decimal.Decimal `json:"total_value_usd"`
	ActionsCount      int             `json:"actions_count"`
}

// Balance is the response from GET /balance/{user_id}
type Balance struct {
	UserID   string    `json:"user_id"`
	Username string    `json:"username"`
	Wallets  Wallets   `json:"wallets"`
	Stats    UserStats `json:"stats"`
}

// GlobalStats is the response from GET /stats
type GlobalStats struct {
	TotalUsers       int             `json:"total_users"`
	TotalCO2SavedKg  float64         `json:"total_co2_saved_kg"`
	TreesEquivalent  float64         `json:"trees_equivalent"`
	TotalActions     int             `json:"total_actions"`
	TotalCoinsMinted decimal.Decimal `json:"total_coins_minted"`
	TotalValueUSD    decimal.Decimal `json:"total_value_usd"`
	ActionBreakdown  map[string]int  `json:"action_breakdown,omitempty"`
}

// LeaderboardEntry is a single ranked row
type LeaderboardEntry struct {
	Rank       int             `json:"rank"`
	Username   string          `json:"username"`
	CO2SavedKg float64         `json:"co2_saved_kg"`
	TotalCoins decimal.Decimal `json:"total_coins"`
	StreakDays int             `json:"streak_days"`
}

// Leaderboard is kept in server rank order
type Leaderboard []LeaderboardEntry

// LeaderboardResponse is the response from GET /leaderboard
type LeaderboardResponse struct {
	Leaderboard Leaderboard `json:"leaderboard"`
}

// ActionSubmission is a sustainable action performed by the user
type ActionSubmission struct {
	ActionType string         `json:"action_type"`
	Metadata   map[string]any `json:"metadata"`
}

type actionRequest struct {
	UserID     string         `json:"user_id"`
	ActionType string         `json:"action_type"`
	Metadata   map[string]any `json:"metadata"`
}

// ActionResult is the response from POST /action
type ActionResult struct {
	Success      bool            `json:"success"`
	Message      string          `json:"message"`
	CO2SavedKg   float64         `json:"co2_saved_kg"`
	CoinsMinted  decimal.Decimal `json:"coins_minted"`
	MoneyWallet  decimal.Decimal `json:"money_wallet"`
	PointsWallet decimal.Decimal `json:"points_wallet"`
	StreakDays   int             `json:"streak_days"`
	Multiplier   float64         `json:"multiplier"`
}

// Redemption is the body of POST /redeem
type Redemption struct {
	UserID         string          `json:"user_id"`
	WalletType     string          `json:"wallet_type"`
	Amount         decimal.Decimal `json:"amount"`
	RedemptionType string          `json:"redemption_type"`
}

// amounts go out as JSON numbers, not decimal's default quoted strings
type redeemRequest struct {
	UserID         string      `json:"user_id"`
	WalletType     string      `json:"wallet_type"`
	Amount         json.Number `json:"amount"`
	RedemptionType string      `json:"redemption_type"`
}

// RedemptionResult is the response from POST /redeem
type RedemptionResult struct {
	Success        bool            `json:"success"`
	CoinsRedeemed  decimal.Decimal `json:"coins_redeemed"`
	USDValue       decimal.Decimal `json:"usd_value"`
	YouReceive     decimal.Decimal `json:"you_receive"`
	PlatformFee    decimal.Decimal `json:"platform_fee"`
	RedemptionType string          `json:"redemption_type"`
	NewBalance     decimal.Decimal `json:"new_balance"`
}

// HistoryEntry is one logged action of a user
type HistoryEntry struct {
	ActionID    string          `json:"action_id"`
	ActionType  string          `json:"action_type"`
	CO2SavedKg  float64         `json:"co2_saved_kg"`
	CoinsMinted decimal.Decimal `json:"coins_minted"`
	Multiplier  float64         `json:"multiplier"`
	StreakDays  int             `json:"streak_days"`
	Metadata    map[string]any  `json:"metadata,omitempty"`
	Timestamp   string          `json:"timestamp"`
}

// HistoryResponse is the response from GET /user/{user_id}/history
type HistoryResponse struct {
	UserID  string         `json:"user_id"`
	Actions []HistoryEntry `json:"actions"`
}
