// Package session owns the client view-state of one installation and
// reconciles it with the reward service after every mutation.
package session

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/suspectuso/green-coin/internal/actions"
	"github.com/suspectuso/green-coin/internal/greencoin"
	"github.com/suspectuso/green-coin/internal/identity"
)

// RewardService is the remote side of the protocol
type RewardService interface {
	Register(ctx context.Context, username string) (string, error)
	FetchBalance(ctx context.Context, userID string) (*greencoin.Balance, error)
	FetchGlobalStats(ctx context.Context) (*greencoin.GlobalStats, error)
	FetchLeaderboard(ctx context.Context) (greencoin.Leaderboard, error)
	SubmitAction(ctx context.Context, userID string, sub greencoin.ActionSubmission) (*greencoin.ActionResult, error)
	Redeem(ctx context.Context, r greencoin.Redemption) (*greencoin.RedemptionResult, error)
	FetchHistory(ctx context.Context, userID string, limit int) ([]greencoin.HistoryEntry, error)
}

// Controller is the session state machine.
// The lock is never held across a network call.
type Controller struct {
	api      RewardService
	store    identity.Store
	log      *slog.Logger
	onChange func(Snapshot)
	now      func() time.Time

	mu          sync.Mutex
	state       State
	identity    string
	mode        Mode
	balance     *greencoin.Balance
	stats       *greencoin.GlobalStats
	leaderboard greencoin.Leaderboard
	refreshedAt time.Time
}

// Option configures a Controller
type Option func(*Controller)

// WithLogger sets the logger
func WithLogger(log *slog.Logger) Option {
	return func(c *Controller) {
		c.log = log
	}
}

// WithOnChange registers a callback run after every transition
func WithOnChange(fn func(Snapshot)) Option {
	return func(c *Controller) {
		c.onChange = fn
	}
}

// WithClock overrides time.Now
func WithClock(now func() time.Time) Option {
	return func(c *Controller) {
		c.now = now
	}
}

// New creates a controller in the Unregistered state; call Load next
func New(api RewardService, store identity.Store, opts ...Option) *Controller {
	c := &Controller{
		api:   api,
		store: store,
		log:   slog.Default(),
		now:   time.Now,
		state: StateUnregistered,
		mode:  ModeDashboard,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Load reads the stored identity. Without one the controller stays
// Unregistered; otherwise it goes through Loading to Ready.
func (c *Controller) Load(ctx context.Context) ([]Warning, error) {
	id, ok, err := c.store.Get(ctx)
	if err != nil {
		return nil, fmt.Errorf("read identity: %w", err)
	}
	if !ok {
		c.log.Debug("no stored identity")
		return nil, nil
	}

	c.mu.Lock()
	if c.state.busy() {
		c.mu.Unlock()
		return nil, ErrBusy
	}
	c.identity = id
	c.state = StateLoading
	c.mu.Unlock()
	c.notify()

	warnings := c.refresh(ctx, id)
	c.settle(StateReady)

	c.log.Info("session loaded", "user_id", id, "warnings", len(warnings))
	return warnings, nil
}

// Reload runs the refresh sequence again for the current identity
func (c *Controller) Reload(ctx context.Context) ([]Warning, error) {
	c.mu.Lock()
	if c.state.busy() {
		c.mu.Unlock()
		return nil, ErrBusy
	}
	if c.identity == "" {
		c.mu.Unlock()
		return nil, ErrNotRegistered
	}
	id := c.identity
	c.state = StateLoading
	c.mu.Unlock()
	c.notify()

	warnings := c.refresh(ctx, id)
	c.settle(StateReady)
	return warnings, nil
}

// Register creates a user and persists its identity before the first
// refresh, so a crash mid-sequence still resumes on the next Load.
// Allowed while Unregistered, or when the stored identity has no balance
// (the service no longer knows it).
func (c *Controller) Register(ctx context.Context, username string) ([]Warning, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return nil, ErrInvalidUsername
	}

	c.mu.Lock()
	if c.state.busy() {
		c.mu.Unlock()
		return nil, ErrBusy
	}
	if c.identity != "" && c.balance != nil {
		c.mu.Unlock()
		return nil, ErrAlreadyRegistered
	}
	prev := c.state
	c.state = StateLoading
	c.mu.Unlock()
	c.notify()

	id, err := c.api.Register(ctx, username)
	if err != nil {
		c.settle(prev)
		return nil, fmt.Errorf("register: %w", err)
	}

	if err := c.store.Set(ctx, id); err != nil {
		c.settle(prev)
		return nil, fmt.Errorf("persist identity: %w", err)
	}

	c.mu.Lock()
	c.identity = id
	c.balance = nil
	c.mu.Unlock()

	c.log.Info("registered", "username", username, "user_id", id)

	warnings := c.refresh(ctx, id)
	c.settle(StateReady)

	for _, w := range warnings {
		if w.Resource == ResourceBalance {
			return warnings, fmt.Errorf("%w: %w", ErrBalanceUnavailable, w.Err)
		}
	}
	return warnings, nil
}

// SelectView switches the displayed page; it never touches the network
func (c *Controller) SelectView(mode Mode) error {
	if _, err := ParseMode(string(mode)); err != nil {
		return err
	}

	c.mu.Lock()
	c.mode = mode
	c.mu.Unlock()
	c.notify()
	return nil
}

// SubmitAction logs an action. While another mutation is pending it is
// rejected with ErrBusy without any network request. Snapshots change
// only through the refresh that follows a confirmed result.
func (c *Controller) SubmitAction(ctx context.Context, sub greencoin.ActionSubmission) (*Outcome, error) {
	if err := actions.Validate(sub); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidAction, err)
	}

	id, err := c.beginMutation()
	if err != nil {
		return nil, err
	}

	result, err := c.api.SubmitAction(ctx, id, sub)
	if err != nil {
		c.settle(StateReady)
		c.log.Warn("submit action", "user_id", id, "action_type", sub.ActionType, "error", err)
		return nil, fmt.Errorf("submit action: %w", err)
	}

	c.log.Info("action logged",
		"user_id", id,
		"action_type", sub.ActionType,
		"coins_minted", result.CoinsMinted.String(),
		"streak_days", result.StreakDays,
	)

	warnings := c.refresh(ctx, id)
	c.settle(StateReady)
	return &Outcome{Result: result, Warnings: warnings}, nil
}

// Redeem converts coins of one wallet into a reward, guarded like SubmitAction
func (c *Controller) Redeem(ctx context.Context, r greencoin.Redemption) (*RedeemOutcome, error) {
	if r.WalletType != greencoin.WalletMoney && r.WalletType != greencoin.WalletPoints {
		return nil, fmt.Errorf("%w: wallet %q", ErrInvalidRedemption, r.WalletType)
	}
	if !r.Amount.IsPositive() {
		return nil, fmt.Errorf("%w: amount must be positive", ErrInvalidRedemption)
	}

	id, err := c.beginMutation()
	if err != nil {
		return nil, err
	}
	r.UserID = id

	result, err := c.api.Redeem(ctx, r)
	if err != nil {
		c.settle(StateReady)
		c.log.Warn("redeem", "user_id", id, "wallet", r.WalletType, "error", err)
		return nil, fmt.Errorf("redeem: %w", err)
	}

	c.log.Info("coins redeemed",
		"user_id", id,
		"wallet", r.WalletType,
		"amount", r.Amount.String(),
		"type", r.RedemptionType,
	)

	warnings := c.refresh(ctx, id)
	c.settle(StateReady)
	return &RedeemOutcome{Result: result, Warnings: warnings}, nil
}

// LoadHistory returns recent actions of the user; the result is not kept
func (c *Controller) LoadHistory(ctx context.Context, limit int) ([]greencoin.HistoryEntry, error) {
	c.mu.Lock()
	id := c.identity
	c.mu.Unlock()

	if id == "" {
		return nil, ErrNotRegistered
	}

	entries, err := c.api.FetchHistory(ctx, id, limit)
	if err != nil {
		return nil, fmt.Errorf("load history: %w", err)
	}
	return entries, nil
}

// Snapshot returns a copy of the current view-state
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	snap := Snapshot{
		State:       c.state,
		Identity:    c.identity,
		Mode:        c.mode,
		Leaderboard: slices.Clone(c.leaderboard),
		RefreshedAt: c.refreshedAt,
	}
	if c.balance != nil {
		b := *c.balance
		snap.Balance = &b
	}
	if c.stats != nil {
		s := *c.stats
		s.ActionBreakdown = maps.Clone(c.stats.ActionBreakdown)
		snap.Stats = &s
	}
	return snap
}

func (c *Controller) beginMutation() (string, error) {
	c.mu.Lock()
	if c.state.busy() {
		c.mu.Unlock()
		return "", ErrBusy
	}
	if c.identity == "" {
		c.mu.Unlock()
		return "", ErrNotRegistered
	}
	id := c.identity
	c.state = StateActionPending
	c.mu.Unlock()
	c.notify()
	return id, nil
}

func (c *Controller) settle(s State) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
	c.notify()
}

// refresh fetches balance, stats and leaderboard one after another. Each
// snapshot is replaced whole when its own fetch succeeds; a failure is
// returned as a warning and does not stop the sequence.
func (c *Controller) refresh(ctx context.Context, id string) []Warning {
	var warnings []Warning
	fail := func(resource string, err error) {
		c.log.Warn("refresh failed", "resource", resource, "user_id", id, "error", err)
		warnings = append(warnings, Warning{Resource: resource, Err: err})
	}

	balance, err := c.api.FetchBalance(ctx, id)
	if err != nil {
		fail(ResourceBalance, err)
	} else {
		c.mu.Lock()
		c.balance = balance
		c.refreshedAt = c.now()
		c.mu.Unlock()
	}

	stats, err := c.api.FetchGlobalStats(ctx)
	if err != nil {
		fail(ResourceStats, err)
	} else {
		c.mu.Lock()
		c.stats = stats
		c.refreshedAt = c.now()
		c.mu.Unlock()
	}

	leaderboard, err := c.api.FetchLeaderboard(ctx)
	if err != nil {
		fail(ResourceLeaderboard, err)
	} else {
		c.mu.Lock()
		c.leaderboard = leaderboard
		c.refreshedAt = c.now()
		c.mu.Unlock()
	}

	return warnings
}

func (c *Controller) notify() {
	if c.onChange != nil {
		c.onChange(c.Snapshot())
	}
}
