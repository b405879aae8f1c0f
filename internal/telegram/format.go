package telegram

import (
	"errors"
	"fmt"
	"html"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/suspectuso/green-coin/internal/actions"
	"github.com/suspectuso/green-coin/internal/greencoin"
	"github.com/suspectuso/green-coin/internal/session"
	"github.com/suspectuso/green-coin/internal/view"
)

// FormatModel renders a page as Telegram HTML
func FormatModel(m view.Model) string {
	var text string
	switch m.Kind {
	case view.KindRegistration:
		return formatRegistration(m)
	case view.KindDashboard:
		text = formatDashboard(m)
	case view.KindActions:
		text = formatActions(m)
	case view.KindLeaderboard:
		text = formatLeaderboard(m)
	case view.KindHistory:
		text = formatHistory(m)
	}

	if m.Busy {
		text += "\n\n⏳ <i>Updating...</i>"
	} else if !m.RefreshedAt.IsZero() {
		text += fmt.Sprintf("\n\n<i>Updated %s UTC</i>", m.RefreshedAt.UTC().Format("15:04:05"))
	}
	return text
}

func formatRegistration(m view.Model) string {
	switch {
	case m.Busy:
		return "⏳ <b>Setting up your account...</b>"
	case m.Resumable:
		return fmt.Sprintf(
			"⚠️ <b>Your account could not be loaded</b>\n\n"+
				"ID: <code>%s</code>\n\n"+
				"Retry, or register again if the server no longer knows you.",
			html.EscapeString(m.UserID),
		)
	default:
		return "🌱 <b>Green Coin</b>\n\n" +
			"Earn GreenCoins for sustainable actions and climb the leaderboard.\n\n" +
			"Send me a username to create your account 👇"
	}
}

func formatDashboard(m view.Model) string {
	lines := []string{
		fmt.Sprintf("👋 <b>%s</b>", html.EscapeString(m.Username)),
		"",
		fmt.Sprintf("💵 Money wallet: <b>%s</b> coins (%s)", coins(m.Wallets.Money.BalanceCoins), usd(m.Wallets.Money.BalanceUSD)),
		fmt.Sprintf("🎯 Points wallet: <b>%s</b> coins (%s)", coins(m.Wallets.Points.BalanceCoins), usd(m.Wallets.Points.BalanceUSD)),
		"",
		fmt.Sprintf("🌍 CO₂ saved: <b>%.2f kg</b>", m.Stats.TotalCO2SavedKg),
		fmt.Sprintf("🔥 Streak: <b>%d</b> %s", m.Stats.CurrentStreakDays, plural(m.Stats.CurrentStreakDays, "day", "days")),
		fmt.Sprintf("✅ Actions: <b>%d</b>", m.Stats.ActionsCount),
		fmt.Sprintf("💰 Total value: <b>%s</b>", usd(m.Stats.TotalValueUSD)),
	}

	if g := m.Global; g != nil {
		lines = append(lines,
			"",
			"<b>Community</b>",
			fmt.Sprintf("👥 Users: %d", g.TotalUsers),
			fmt.Sprintf("🌍 CO₂ saved: %.2f kg", g.TotalCO2SavedKg),
			fmt.Sprintf("🌳 Trees equivalent: %.1f", g.TreesEquivalent),
			fmt.Sprintf("🪙 Coins minted: %s", coins(g.TotalCoinsMinted)),
		)
	}
	return strings.Join(lines, "\n")
}

func formatActions(m view.Model) string {
	lines := []string{"⚡ <b>Log a sustainable action</b>", ""}
	for _, k := range m.Actions {
		lines = append(lines, fmt.Sprintf("%s <b>%s</b>\n<i>%s</i>", k.Emoji, k.Title, k.Description))
	}
	return strings.Join(lines, "\n")
}

func formatLeaderboard(m view.Model) string {
	if len(m.Rows) == 0 {
		return "🏆 <b>Leaderboard</b>\n\nNo one has logged an action yet."
	}

	lines := []string{"🏆 <b>Leaderboard</b>", ""}
	for _, r := range m.Rows {
		place := r.Medal
		if !r.Podium {
			place = fmt.Sprintf("#%d", r.Rank)
		}
		name := html.EscapeString(r.Username)
		if r.Self {
			name = "<b>" + name + "</b> (you)"
		}
		lines = append(lines, fmt.Sprintf("%s %s · %.2f kg · %s coins · 🔥%d",
			place, name, r.CO2SavedKg, coins(r.TotalCoins), r.StreakDays))
	}
	return strings.Join(lines, "\n")
}

func formatHistory(m view.Model) string {
	if len(m.History) == 0 {
		return "📜 <b>History</b>\n\nNo actions logged yet."
	}

	lines := []string{"📜 <b>History</b>", ""}
	for _, h := range m.History {
		title := h.ActionType
		emoji := "•"
		if k, ok := actions.Lookup(h.ActionType); ok {
			title, emoji = k.Title, k.Emoji
		}
		lines = append(lines, fmt.Sprintf("%s %s · +%s · %.2f kg · <i>%s</i>",
			emoji, title, coins(h.CoinsMinted), h.CO2SavedKg, html.EscapeString(h.Timestamp)))
	}
	return strings.Join(lines, "\n")
}

// ErrorText maps a controller or client error to a user message
func ErrorText(err error) string {
	var apiErr *greencoin.APIError
	switch {
	case errors.Is(err, session.ErrBusy):
		return "⏳ Still working on your previous request."
	case errors.Is(err, session.ErrNotRegistered):
		return "You are not registered yet. Send /start."
	case errors.Is(err, session.ErrAlreadyRegistered):
		return "You are already registered."
	case errors.Is(err, session.ErrInvalidUsername):
		return "❌ Username cannot be empty."
	case errors.Is(err, session.ErrInvalidAction):
		return "❌ This action cannot be logged."
	case errors.Is(err, session.ErrInvalidRedemption):
		return "❌ Enter a positive amount."
	case errors.Is(err, session.ErrBalanceUnavailable):
		return "⚠️ Account created, but your balance could not be loaded yet. Tap Retry."
	case errors.Is(err, greencoin.ErrNotFound):
		return "❌ The server does not know this account. Register again."
	case errors.As(err, &apiErr) && errors.Is(err, greencoin.ErrRejected) && apiErr.Detail != "":
		return "❌ " + html.EscapeString(apiErr.Detail)
	case errors.Is(err, greencoin.ErrRejected):
		return "❌ The request was rejected."
	case errors.Is(err, greencoin.ErrNetwork):
		return "❌ Green Coin server is unreachable. Try again later."
	case errors.Is(err, greencoin.ErrProtocol):
		return "❌ Unexpected answer from the server."
	default:
		return "❌ Something went wrong."
	}
}

// StaleNotice is appended when part of the refresh failed
func StaleNotice(ws []session.Warning) string {
	if len(ws) == 0 {
		return ""
	}
	names := make([]string, len(ws))
	for i, w := range ws {
		names[i] = w.Resource
	}
	return fmt.Sprintf("\n\n⚠️ <i>Could not refresh %s; showing previous data.</i>", strings.Join(names, ", "))
}

func coins(d decimal.Decimal) string {
	return d.StringFixed(2)
}

func usd(d decimal.Decimal) string {
	return "$" + d.StringFixed(2)
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}
