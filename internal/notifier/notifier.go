package notifier

import (
	"context"
	"fmt"
	"html"
	"log/slog"
	"strings"

	"github.com/go-telegram/bot/models"

	"github.com/suspectuso/green-coin/internal/actions"
	"github.com/suspectuso/green-coin/internal/greencoin"
	"github.com/suspectuso/green-coin/internal/session"
)

// Sender delivers a message to a chat
type Sender interface {
	SendNotification(ctx context.Context, chatID int64, text string, keyboard *models.InlineKeyboardMarkup) error
}

// Notifier sends receipts for confirmed actions and redemptions
type Notifier struct {
	bot Sender
	log *slog.Logger
}

// New creates a new Notifier
func New(bot Sender, log *slog.Logger) *Notifier {
	return &Notifier{
		bot: bot,
		log: log,
	}
}

// ActionLogged sends the receipt of a confirmed action
func (n *Notifier) ActionLogged(ctx context.Context, chatID int64, actionType string, out *session.Outcome) {
	if out == nil || out.Result == nil {
		return
	}

	n.log.Info("sending action receipt",
		"chat_id", chatID,
		"action_type", actionType,
		"coins_minted", out.Result.CoinsMinted.String(),
	)

	text := FormatAction(actionType, out.Result)
	if err := n.bot.SendNotification(ctx, chatID, text, nil); err != nil {
		n.log.Error("send action notification", "error", err)
	}
}

// Redeemed sends the receipt of a confirmed redemption
func (n *Notifier) Redeemed(ctx context.Context, chatID int64, out *session.RedeemOutcome) {
	if out == nil || out.Result == nil {
		return
	}

	text := FormatRedemption(out.Result)
	if err := n.bot.SendNotification(ctx, chatID, text, nil); err != nil {
		n.log.Error("send redemption notification", "error", err)
	}
}

// FormatAction renders the action alert: message, coins minted with two
// decimals and the streak
func FormatAction(actionType string, r *greencoin.ActionResult) string {
	title := actionType
	if k, ok := actions.Lookup(actionType); ok {
		title = k.Emoji + " " + k.Title
	}

	lines := []string{
		fmt.Sprintf("✅ <b>%s</b>", html.EscapeString(r.Message)),
		fmt.Sprintf("<i>%s</i>", title),
		"",
		fmt.Sprintf("💰 +%s GreenCoins", r.CoinsMinted.StringFixed(2)),
		fmt.Sprintf("🔥 Streak: %d %s", r.StreakDays, days(r.StreakDays)),
	}

	if r.CO2SavedKg > 0 {
		lines = append(lines, fmt.Sprintf("🌍 CO₂ saved: %s kg", formatNumber(r.CO2SavedKg)))
	}
	if r.Multiplier > 1 {
		lines = append(lines, fmt.Sprintf("⚡ Streak bonus: x%.2f", r.Multiplier))
	}

	return strings.Join(lines, "\n")
}

// FormatRedemption renders a redemption receipt
func FormatRedemption(r *greencoin.RedemptionResult) string {
	lines := []string{
		fmt.Sprintf("🎁 <b>Redeemed %s coins</b>", r.CoinsRedeemed.StringFixed(2)),
		fmt.Sprintf("<i>via %s</i>", formatRedemptionType(r.RedemptionType)),
		"",
		fmt.Sprintf("Value: $%s", r.USDValue.StringFixed(2)),
	}

	if r.PlatformFee.IsPositive() {
		lines = append(lines, fmt.Sprintf("Fee: $%s", r.PlatformFee.StringFixed(2)))
	}
	lines = append(lines,
		fmt.Sprintf("You receive: <b>$%s</b>", r.YouReceive.StringFixed(2)),
		"",
		fmt.Sprintf("New balance: %s coins", r.NewBalance.StringFixed(2)),
	)

	return strings.Join(lines, "\n")
}

func formatRedemptionType(t string) string {
	switch t {
	case greencoin.RedeemCash:
		return "Cash"
	case greencoin.RedeemGiftCard:
		return "Gift card"
	case greencoin.RedeemCarbonOffset:
		return "Carbon offset"
	default:
		if t != "" {
			return t
		}
		return "Redemption"
	}
}

func days(n int) string {
	if n == 1 {
		return "day"
	}
	return "days"
}

func formatNumber(num float64) string {
	abs := num
	if abs < 0 {
		abs = -abs
	}

	switch {
	case abs >= 1_000_000:
		return fmt.Sprintf("%.2fM", num/1_000_000)
	case abs >= 1_000:
		return fmt.Sprintf("%.2fK", num/1_000)
	default:
		return fmt.Sprintf("%.2f", num)
	}
}
