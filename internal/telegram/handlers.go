package telegram

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"github.com/shopspring/decimal"

	"github.com/suspectuso/green-coin/internal/actions"
	"github.com/suspectuso/green-coin/internal/config"
	"github.com/suspectuso/green-coin/internal/greencoin"
	"github.com/suspectuso/green-coin/internal/session"
	"github.com/suspectuso/green-coin/internal/view"
)

// Notifier delivers the receipts of confirmed mutations
type Notifier interface {
	ActionLogged(ctx context.Context, chatID int64, actionType string, out *session.Outcome)
	Redeemed(ctx context.Context, chatID int64, out *session.RedeemOutcome)
}

// Recorder receives session level measurements
type Recorder interface {
	ObserveWarnings(ws []session.Warning)
	ActionLogged(actionType string)
}

type nopRecorder struct{}

func (nopRecorder) ObserveWarnings([]session.Warning) {}
func (nopRecorder) ActionLogged(string)               {}

// Bot wraps the telegram bot with handlers
type Bot struct {
	bot      *bot.Bot
	cfg      *config.Config
	sessions *Sessions
	source   actions.Source
	prompts  *Prompts
	rec      Recorder
	notifier Notifier
	log      *slog.Logger
}

// New creates a new telegram bot
func New(cfg *config.Config, sessions *Sessions, source actions.Source, rec Recorder, log *slog.Logger) (*Bot, error) {
	if rec == nil {
		rec = nopRecorder{}
	}
	b := &Bot{
		cfg:      cfg,
		sessions: sessions,
		source:   source,
		prompts:  NewPrompts(),
		rec:      rec,
		log:      log,
	}

	opts := []bot.Option{
		bot.WithDefaultHandler(b.defaultHandler),
		bot.WithCallbackQueryDataHandler("", bot.MatchTypePrefix, b.callbackHandler),
	}

	tgBot, err := bot.New(cfg.BotToken, opts...)
	if err != nil {
		return nil, fmt.Errorf("create bot: %w", err)
	}

	b.bot = tgBot

	// Register command handlers
	tgBot.RegisterHandler(bot.HandlerTypeMessageText, "/start", bot.MatchTypeExact, b.startHandler)
	tgBot.RegisterHandler(bot.HandlerTypeMessageText, "/start ", bot.MatchTypePrefix, b.startHandler)
	tgBot.RegisterHandler(bot.HandlerTypeMessageText, "/dashboard", bot.MatchTypeExact, b.modeHandler(session.ModeDashboard))
	tgBot.RegisterHandler(bot.HandlerTypeMessageText, "/actions", bot.MatchTypeExact, b.modeHandler(session.ModeActions))
	tgBot.RegisterHandler(bot.HandlerTypeMessageText, "/leaderboard", bot.MatchTypeExact, b.modeHandler(session.ModeLeaderboard))
	tgBot.RegisterHandler(bot.HandlerTypeMessageText, "/history", bot.MatchTypeExact, b.modeHandler(session.ModeHistory))

	return b, nil
}

// SetNotifier sets the receipt sender
func (b *Bot) SetNotifier(n Notifier) {
	b.notifier = n
}

// Start starts the bot polling
func (b *Bot) Start(ctx context.Context) {
	b.bot.Start(ctx)
}

// StartWebhook processes updates delivered to WebhookHandler
func (b *Bot) StartWebhook(ctx context.Context) {
	b.bot.StartWebhook(ctx)
}

// WebhookHandler accepts updates pushed by Telegram
func (b *Bot) WebhookHandler() http.Handler {
	return b.bot.WebhookHandler()
}

// GetBot returns the underlying bot instance
func (b *Bot) GetBot() *bot.Bot {
	return b.bot
}

// RegisterCommands publishes the command menu
func (b *Bot) RegisterCommands(ctx context.Context) error {
	_, err := b.bot.SetMyCommands(ctx, &bot.SetMyCommandsParams{
		Commands: []models.BotCommand{
			{Command: "start", Description: "Open your Green Coin dashboard"},
			{Command: "actions", Description: "Log a sustainable action"},
			{Command: "leaderboard", Description: "Top savers"},
			{Command: "history", Description: "Your recent actions"},
		},
	})
	return err
}

// --- Handlers ---

func (b *Bot) startHandler(ctx context.Context, tgBot *bot.Bot, update *models.Update) {
	if update.Message == nil {
		return
	}

	chatID := update.Message.Chat.ID
	ctrl, ok := b.session(ctx, chatID)
	if !ok {
		return
	}

	snap := ctrl.Snapshot()
	if !snap.Registered() {
		b.prompts.AskUsername(chatID)
	} else if snap.Balance != nil {
		b.prompts.Clear(chatID)
		ctrl.SelectView(session.ModeDashboard)
	}

	text, kb := b.page(ctx, ctrl)
	b.sendMessage(ctx, chatID, text, kb)
}

func (b *Bot) modeHandler(mode session.Mode) bot.HandlerFunc {
	return func(ctx context.Context, tgBot *bot.Bot, update *models.Update) {
		if update.Message == nil {
			return
		}

		chatID := update.Message.Chat.ID
		ctrl, ok := b.session(ctx, chatID)
		if !ok {
			return
		}

		ctrl.SelectView(mode)
		text, kb := b.page(ctx, ctrl)
		b.sendMessage(ctx, chatID, text, kb)
	}
}

func (b *Bot) defaultHandler(ctx context.Context, tgBot *bot.Bot, update *models.Update) {
	if update.Message == nil || update.Message.Text == "" {
		return
	}

	chatID := update.Message.Chat.ID
	text := strings.TrimSpace(update.Message.Text)

	prompt := b.prompts.Pending(chatID)
	switch prompt.Step {
	case StepUsername:
		b.handleWaitUsername(ctx, chatID, text)
	case StepRedeemAmount:
		b.handleWaitRedeemAmount(ctx, chatID, text, prompt.Redeem)
	}
}

func (b *Bot) handleWaitUsername(ctx context.Context, chatID int64, username string) {
	ctrl, ok := b.session(ctx, chatID)
	if !ok {
		return
	}

	warnings, err := ctrl.Register(ctx, username)
	b.rec.ObserveWarnings(warnings)

	switch {
	case errors.Is(err, session.ErrInvalidUsername):
		b.sendMessage(ctx, chatID, ErrorText(err)+" Try again.", nil)
		return
	case errors.Is(err, session.ErrBusy):
		b.sendMessage(ctx, chatID, ErrorText(err), nil)
		return
	case err != nil && !errors.Is(err, session.ErrBalanceUnavailable):
		// nothing was committed, the next message is another attempt
		b.log.Warn("register", "chat_id", chatID, "error", err)
		b.sendMessage(ctx, chatID, ErrorText(err)+"\n\nSend a username to try again.", nil)
		return
	}

	b.prompts.Clear(chatID)
	if err != nil {
		b.log.Warn("first balance fetch", "chat_id", chatID, "error", err)
		b.sendMessage(ctx, chatID, ErrorText(err), nil)
	} else {
		b.log.Info("chat registered", "chat_id", chatID, "user_id", ctrl.Snapshot().Identity)
	}

	text, kb := b.page(ctx, ctrl)
	b.sendMessage(ctx, chatID, text+StaleNotice(warnings), kb)
}

func (b *Bot) handleWaitRedeemAmount(ctx context.Context, chatID int64, text string, redemption greencoin.Redemption) {
	amount, err := decimal.NewFromString(strings.Replace(text, ",", ".", 1))
	if err != nil || !amount.IsPositive() {
		b.sendMessage(ctx, chatID,
			"❌ Enter a positive number. For example: <code>5</code> or <code>2.5</code>",
			BackKeyboard(),
		)
		return
	}

	ctrl, ok := b.session(ctx, chatID)
	if !ok {
		return
	}
	b.prompts.Clear(chatID)

	redemption.Amount = amount
	out, err := ctrl.Redeem(ctx, redemption)
	if err != nil {
		b.sendMessage(ctx, chatID, ErrorText(err), BackKeyboard())
		return
	}
	b.rec.ObserveWarnings(out.Warnings)

	if b.notifier != nil {
		b.notifier.Redeemed(ctx, chatID, out)
	}

	ctrl.SelectView(session.ModeDashboard)
	page, kb := b.page(ctx, ctrl)
	b.sendMessage(ctx, chatID, page+StaleNotice(out.Warnings), kb)
}

func (b *Bot) callbackHandler(ctx context.Context, tgBot *bot.Bot, update *models.Update) {
	if update.CallbackQuery == nil {
		return
	}

	cb := update.CallbackQuery
	data := cb.Data

	// Answer callback to remove loading state
	tgBot.AnswerCallbackQuery(ctx, &bot.AnswerCallbackQueryParams{
		CallbackQueryID: cb.ID,
	})

	chatID := callbackChatID(cb)
	ctrl, ok := b.session(ctx, chatID)
	if !ok {
		return
	}

	switch {
	case strings.HasPrefix(data, cbView):
		b.handleView(ctx, cb, ctrl, strings.TrimPrefix(data, cbView))
	case strings.HasPrefix(data, cbAct):
		b.handleAction(ctx, cb, ctrl, strings.TrimPrefix(data, cbAct))
	case strings.HasPrefix(data, cbRedeemAs):
		b.handleRedeemType(ctx, cb, ctrl, strings.TrimPrefix(data, cbRedeemAs))
	case strings.HasPrefix(data, cbRedeem):
		b.editMessage(ctx, cb.Message, "💸 <b>How do you want to redeem?</b>", RedemptionKeyboard(strings.TrimPrefix(data, cbRedeem)))
	case data == cbReload:
		b.handleReload(ctx, cb, ctrl)
	case data == cbRegister:
		b.prompts.AskUsername(chatID)
		b.editMessage(ctx, cb.Message, FormatModel(view.Model{Kind: view.KindRegistration}), nil)
	default:
		b.log.Warn("unknown callback", "data", data, "chat_id", chatID)
	}
}

func (b *Bot) handleView(ctx context.Context, cb *models.CallbackQuery, ctrl *session.Controller, name string) {
	mode, err := session.ParseMode(name)
	if err != nil {
		b.log.Warn("select view", "error", err)
		return
	}

	b.prompts.Clear(callbackChatID(cb))
	ctrl.SelectView(mode)
	text, kb := b.page(ctx, ctrl)
	b.editMessage(ctx, cb.Message, text, kb)
}

func (b *Bot) handleAction(ctx context.Context, cb *models.CallbackQuery, ctrl *session.Controller, actionType string) {
	chatID := callbackChatID(cb)

	sub, err := actions.Submission(ctx, b.source, actionType)
	if err != nil {
		b.log.Warn("collect metadata", "chat_id", chatID, "action_type", actionType, "error", err)
		b.sendMessage(ctx, chatID, "❌ Could not measure this action.", nil)
		return
	}

	out, err := ctrl.SubmitAction(ctx, sub)
	if err != nil {
		b.sendMessage(ctx, chatID, ErrorText(err), nil)
		return
	}
	b.rec.ActionLogged(actionType)
	b.rec.ObserveWarnings(out.Warnings)

	if b.notifier != nil {
		b.notifier.ActionLogged(ctx, chatID, actionType, out)
	}

	text, kb := b.page(ctx, ctrl)
	b.editMessage(ctx, cb.Message, text+StaleNotice(out.Warnings), kb)
}

func (b *Bot) handleRedeemType(ctx context.Context, cb *models.CallbackQuery, ctrl *session.Controller, data string) {
	wallet, kind, ok := strings.Cut(data, ":")
	if !ok {
		return
	}

	snap := ctrl.Snapshot()
	if snap.Balance == nil {
		b.editMessage(ctx, cb.Message, ErrorText(session.ErrNotRegistered), nil)
		return
	}

	available := snap.Balance.Wallets.Money.BalanceCoins
	if wallet == greencoin.WalletPoints {
		available = snap.Balance.Wallets.Points.BalanceCoins
	}

	b.prompts.AskRedeemAmount(callbackChatID(cb), wallet, kind)

	b.editMessage(ctx, cb.Message,
		fmt.Sprintf("🔢 How many coins? Available: <b>%s</b>\nFor example: <code>5</code> or <code>2.5</code>", coins(available)),
		BackKeyboard(),
	)
}

func (b *Bot) handleReload(ctx context.Context, cb *models.CallbackQuery, ctrl *session.Controller) {
	warnings, err := ctrl.Reload(ctx)
	if err != nil {
		b.sendMessage(ctx, callbackChatID(cb), ErrorText(err), nil)
		return
	}
	b.rec.ObserveWarnings(warnings)

	text, kb := b.page(ctx, ctrl)
	b.editMessage(ctx, cb.Message, text+StaleNotice(warnings), kb)
}

// --- Helpers ---

func (b *Bot) session(ctx context.Context, chatID int64) (*session.Controller, bool) {
	ctrl, warnings, err := b.sessions.Get(ctx, chatID)
	if err != nil {
		b.log.Error("get session", "chat_id", chatID, "error", err)
		b.sendMessage(ctx, chatID, ErrorText(err), nil)
		return nil, false
	}
	b.rec.ObserveWarnings(warnings)
	return ctrl, true
}

// page renders the selected page; history is fetched on demand
func (b *Bot) page(ctx context.Context, ctrl *session.Controller) (string, *models.InlineKeyboardMarkup) {
	snap := ctrl.Snapshot()
	m := view.Select(snap, snap.Mode)

	if m.Kind == view.KindHistory {
		entries, err := ctrl.LoadHistory(ctx, b.cfg.HistoryLimit)
		if err != nil {
			b.log.Warn("load history", "user_id", snap.Identity, "error", err)
			return ErrorText(err), ModelKeyboard(m)
		}
		m = m.WithHistory(entries)
	}

	return FormatModel(m), ModelKeyboard(m)
}

func callbackChatID(cb *models.CallbackQuery) int64 {
	if cb.Message.Message != nil {
		return cb.Message.Message.Chat.ID
	}
	return cb.From.ID
}

func (b *Bot) sendMessage(ctx context.Context, chatID int64, text string, keyboard *models.InlineKeyboardMarkup) {
	params := &bot.SendMessageParams{
		ChatID:    chatID,
		Text:      text,
		ParseMode: models.ParseModeHTML,
	}
	if keyboard != nil {
		params.ReplyMarkup = keyboard
	}

	_, err := b.bot.SendMessage(ctx, params)
	if err != nil {
		b.log.Error("send message", "error", err)
	}
}

func (b *Bot) editMessage(ctx context.Context, msg models.MaybeInaccessibleMessage, text string, keyboard *models.InlineKeyboardMarkup) {
	if msg.Message == nil {
		return
	}

	params := &bot.EditMessageTextParams{
		ChatID:    msg.Message.Chat.ID,
		MessageID: msg.Message.ID,
		Text:      text,
		ParseMode: models.ParseModeHTML,
	}
	if keyboard != nil {
		params.ReplyMarkup = keyboard
	}

	_, err := b.bot.EditMessageText(ctx, params)
	if err != nil {
		b.log.Error("edit message", "error", err)
	}
}

// SendNotification sends a notification message to a chat
func (b *Bot) SendNotification(ctx context.Context, chatID int64, text string, keyboard *models.InlineKeyboardMarkup) error {
	disablePreview := true
	params := &bot.SendMessageParams{
		ChatID:    chatID,
		Text:      text,
		ParseMode: models.ParseModeHTML,
		LinkPreviewOptions: &models.LinkPreviewOptions{
			IsDisabled: &disablePreview,
		},
	}
	if keyboard != nil {
		params.ReplyMarkup = keyboard
	}

	_, err := b.bot.SendMessage(ctx, params)
	return err
}
