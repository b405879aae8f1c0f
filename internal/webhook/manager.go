package webhook

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
)

// Registrar is the part of the Bot API that manages the webhook
type Registrar interface {
	SetWebhook(ctx context.Context, params *bot.SetWebhookParams) (bool, error)
	DeleteWebhook(ctx context.Context, params *bot.DeleteWebhookParams) (bool, error)
	GetWebhookInfo(ctx context.Context) (*models.WebhookInfo, error)
}

// Manager keeps the Telegram webhook pointed at this deployment
type Manager struct {
	api      Registrar
	endpoint string
	secret   string
	log      *slog.Logger

	mu         sync.Mutex
	registered bool
}

// NewManager creates a new webhook manager. An empty endpoint means
// polling mode.
func NewManager(api Registrar, endpoint, secret string, log *slog.Logger) *Manager {
	return &Manager{
		api:      api,
		endpoint: endpoint,
		secret:   secret,
		log:      log,
	}
}

// Init registers the webhook, or removes a stale one in polling mode
func (m *Manager) Init(ctx context.Context) error {
	if m.endpoint == "" {
		// getUpdates is refused while a webhook is set
		if _, err := m.api.DeleteWebhook(ctx, &bot.DeleteWebhookParams{}); err != nil {
			return fmt.Errorf("delete webhook: %w", err)
		}
		m.log.Info("webhook endpoint not set, using polling")
		return nil
	}

	return m.register(ctx)
}

// SyncLoop periodically re-registers the webhook if it was changed elsewhere
func (m *Manager) SyncLoop(ctx context.Context, interval time.Duration) {
	if m.endpoint == "" {
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	m.log.Info("webhook sync loop started", "interval", interval)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := m.sync(ctx); err != nil {
				m.log.Error("sync webhook", "error", err)
			}
		}
	}
}

func (m *Manager) sync(ctx context.Context) error {
	info, err := m.api.GetWebhookInfo(ctx)
	if err != nil {
		return fmt.Errorf("get webhook info: %w", err)
	}

	if info.URL == m.endpoint {
		if info.LastErrorMessage != "" {
			m.log.Warn("telegram reports webhook errors",
				"error", info.LastErrorMessage,
				"pending", info.PendingUpdateCount,
			)
		}
		return nil
	}

	m.log.Warn("webhook changed, re-registering", "current", info.URL)
	return m.register(ctx)
}

func (m *Manager) register(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	_, err := m.api.SetWebhook(ctx, &bot.SetWebhookParams{
		URL:         m.endpoint,
		SecretToken: m.secret,
	})
	if err != nil {
		return fmt.Errorf("set webhook: %w", err)
	}

	m.registered = true
	m.log.Info("webhook registered", "endpoint", m.endpoint)
	return nil
}

// Registered reports whether the webhook was set by this process
func (m *Manager) Registered() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.registered
}
