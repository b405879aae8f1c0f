package telegram

import (
	"fmt"

	"github.com/go-telegram/bot/models"

	"github.com/suspectuso/green-coin/internal/actions"
	"github.com/suspectuso/green-coin/internal/greencoin"
	"github.com/suspectuso/green-coin/internal/session"
	"github.com/suspectuso/green-coin/internal/view"
)

// Callback data
const (
	cbView     = "view:"
	cbAct      = "act:"
	cbRedeem   = "redeem:"
	cbRedeemAs = "rdm:"
	cbReload   = "reload"
	cbRegister = "register"
)

var tabTitles = map[session.Mode]string{
	session.ModeDashboard:   "📊 Dashboard",
	session.ModeActions:     "⚡ Actions",
	session.ModeLeaderboard: "🏆 Leaderboard",
	session.ModeHistory:     "📜 History",
}

var redemptionTitles = map[string]string{
	greencoin.RedeemCash:         "💵 Cash",
	greencoin.RedeemGiftCard:     "🎁 Gift card",
	greencoin.RedeemCarbonOffset: "🌳 Carbon offset",
}

// TabRows returns the page switcher with the current page marked
func TabRows(current session.Mode) [][]models.InlineKeyboardButton {
	button := func(m session.Mode) models.InlineKeyboardButton {
		text := tabTitles[m]
		if m == current {
			text = "• " + text
		}
		return models.InlineKeyboardButton{Text: text, CallbackData: cbView + string(m)}
	}

	return [][]models.InlineKeyboardButton{
		{button(session.ModeDashboard), button(session.ModeActions)},
		{button(session.ModeLeaderboard), button(session.ModeHistory)},
		{{Text: "🔄 Refresh", CallbackData: cbReload}},
	}
}

// RegisterKeyboard is shown on the registration page
func RegisterKeyboard(resumable bool) *models.InlineKeyboardMarkup {
	if !resumable {
		return nil
	}
	return &models.InlineKeyboardMarkup{
		InlineKeyboard: [][]models.InlineKeyboardButton{
			{{Text: "🔄 Retry", CallbackData: cbReload}},
			{{Text: "📝 Register again", CallbackData: cbRegister}},
		},
	}
}

// DashboardKeyboard returns redeem buttons above the tabs
func DashboardKeyboard() *models.InlineKeyboardMarkup {
	rows := [][]models.InlineKeyboardButton{
		{
			{Text: "💸 Redeem money", CallbackData: cbRedeem + greencoin.WalletMoney},
			{Text: "🎯 Redeem points", CallbackData: cbRedeem + greencoin.WalletPoints},
		},
	}
	return &models.InlineKeyboardMarkup{InlineKeyboard: append(rows, TabRows(session.ModeDashboard)...)}
}

// ActionsKeyboard returns one button per catalog action
func ActionsKeyboard(kinds []actions.Kind) *models.InlineKeyboardMarkup {
	var rows [][]models.InlineKeyboardButton
	for _, k := range kinds {
		rows = append(rows, []models.InlineKeyboardButton{
			{Text: fmt.Sprintf("%s %s", k.Emoji, k.Title), CallbackData: cbAct + k.Type},
		})
	}
	return &models.InlineKeyboardMarkup{InlineKeyboard: append(rows, TabRows(session.ModeActions)...)}
}

// RedemptionKeyboard asks how coins of wallet should be paid out
func RedemptionKeyboard(wallet string) *models.InlineKeyboardMarkup {
	var rows [][]models.InlineKeyboardButton
	for _, t := range []string{greencoin.RedeemCash, greencoin.RedeemGiftCard, greencoin.RedeemCarbonOffset} {
		rows = append(rows, []models.InlineKeyboardButton{
			{Text: redemptionTitles[t], CallbackData: fmt.Sprintf("%s%s:%s", cbRedeemAs, wallet, t)},
		})
	}
	rows = append(rows, []models.InlineKeyboardButton{
		{Text: "⬅️ Back", CallbackData: cbView + string(session.ModeDashboard)},
	})
	return &models.InlineKeyboardMarkup{InlineKeyboard: rows}
}

// BackKeyboard returns a simple back button
func BackKeyboard() *models.InlineKeyboardMarkup {
	return &models.InlineKeyboardMarkup{
		InlineKeyboard: [][]models.InlineKeyboardButton{
			{
				{Text: "⬅️ Back", CallbackData: cbView + string(session.ModeDashboard)},
			},
		},
	}
}

// ModelKeyboard picks the keyboard of a rendered page
func ModelKeyboard(m view.Model) *models.InlineKeyboardMarkup {
	switch m.Kind {
	case view.KindRegistration:
		return RegisterKeyboard(m.Resumable)
	case view.KindDashboard:
		return DashboardKeyboard()
	case view.KindActions:
		return ActionsKeyboard(m.Actions)
	case view.KindLeaderboard:
		return &models.InlineKeyboardMarkup{InlineKeyboard: TabRows(session.ModeLeaderboard)}
	default:
		return &models.InlineKeyboardMarkup{InlineKeyboard: TabRows(session.ModeHistory)}
	}
}
