package notifier

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/go-telegram/bot/models"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/suspectuso/green-coin/internal/greencoin"
	"github.com/suspectuso/green-coin/internal/session"
)

type sent struct {
	chatID int64
	text   string
}

type recordingSender struct {
	msgs []sent
	err  error
}

func (r *recordingSender) SendNotification(ctx context.Context, chatID int64, text string, keyboard *models.InlineKeyboardMarkup) error {
	r.msgs = append(r.msgs, sent{chatID, text})
	return r.err
}

func newTestNotifier(s Sender) *Notifier {
	return New(s, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestFormatAction(t *testing.T) {
	text := FormatAction(greencoin.ActionCloseTabs, &greencoin.ActionResult{
		Success:     true,
		Message:     "Tabs closed",
		CoinsMinted: decimal.RequireFromString("1.5"),
		StreakDays:  1,
	})

	assert.Contains(t, text, "✅ <b>Tabs closed</b>")
	assert.Contains(t, text, "💰 +1.50 GreenCoins")
	assert.Contains(t, text, "🔥 Streak: 1 day")
	assert.Contains(t, text, "Close Browser Tabs")
	assert.NotContains(t, text, "Streak bonus")
}

func TestFormatActionBonus(t *testing.T) {
	text := FormatAction(greencoin.ActionAIOptimize, &greencoin.ActionResult{
		Message:     "Prompts optimized",
		CoinsMinted: decimal.RequireFromString("3.456"),
		StreakDays:  4,
		Multiplier:  1.2,
		CO2SavedKg:  1250,
	})

	assert.Contains(t, text, "+3.46 GreenCoins")
	assert.Contains(t, text, "4 days")
	assert.Contains(t, text, "x1.20")
	assert.Contains(t, text, "1.25K kg")
}

func TestFormatRedemption(t *testing.T) {
	text := FormatRedemption(&greencoin.RedemptionResult{
		Success:        true,
		CoinsRedeemed:  decimal.NewFromInt(10),
		USDValue:       decimal.RequireFromString("1"),
		YouReceive:     decimal.RequireFromString("0.95"),
		PlatformFee:    decimal.RequireFromString("0.05"),
		RedemptionType: greencoin.RedeemGiftCard,
		NewBalance:     decimal.RequireFromString("2.5"),
	})

	assert.Contains(t, text, "Redeemed 10.00 coins")
	assert.Contains(t, text, "Gift card")
	assert.Contains(t, text, "Fee: $0.05")
	assert.Contains(t, text, "<b>$0.95</b>")
	assert.Contains(t, text, "New balance: 2.50 coins")
}

func TestActionLoggedSends(t *testing.T) {
	s := &recordingSender{}
	n := newTestNotifier(s)

	n.ActionLogged(context.Background(), 42, greencoin.ActionCloseTabs, &session.Outcome{
		Result: &greencoin.ActionResult{Message: "Tabs closed", CoinsMinted: decimal.RequireFromString("1.5"), StreakDays: 1},
	})
	n.ActionLogged(context.Background(), 42, greencoin.ActionCloseTabs, nil)

	require.Len(t, s.msgs, 1)
	assert.Equal(t, int64(42), s.msgs[0].chatID)
	assert.Contains(t, s.msgs[0].text, "Tabs closed")
}

func TestRedeemedSendError(t *testing.T) {
	s := &recordingSender{err: errors.New("blocked by user")}
	n := newTestNotifier(s)

	n.Redeemed(context.Background(), 7, &session.RedeemOutcome{
		Result: &greencoin.RedemptionResult{CoinsRedeemed: decimal.NewFromInt(1)},
	})

	assert.Len(t, s.msgs, 1)
}
