package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/suspectuso/green-coin/internal/greencoin"
	"github.com/suspectuso/green-coin/internal/identity"
)

// fakeService records every call in order and answers from overridable funcs
type fakeService struct {
	mu    sync.Mutex
	calls []string

	register    func(username string) (string, error)
	balance     func(userID string) (*greencoin.Balance, error)
	stats       func() (*greencoin.GlobalStats, error)
	leaderboard func() (greencoin.Leaderboard, error)
	submit      func(userID string, sub greencoin.ActionSubmission) (*greencoin.ActionResult, error)
	redeem      func(r greencoin.Redemption) (*greencoin.RedemptionResult, error)
	history     func(userID string, limit int) ([]greencoin.HistoryEntry, error)
}

func newFakeService() *fakeService {
	return &fakeService{
		register: func(string) (string, error) { return "u1", nil },
		balance: func(userID string) (*greencoin.Balance, error) {
			return &greencoin.Balance{UserID: userID, Username: "alice"}, nil
		},
		stats: func() (*greencoin.GlobalStats, error) {
			return &greencoin.GlobalStats{TotalUsers: 1}, nil
		},
		leaderboard: func() (greencoin.Leaderboard, error) {
			return greencoin.Leaderboard{{Rank: 1, Username: "alice"}}, nil
		},
		submit: func(string, greencoin.ActionSubmission) (*greencoin.ActionResult, error) {
			return &greencoin.ActionResult{Success: true, Message: "Tabs closed", CoinsMinted: decimal.RequireFromString("1.5"), StreakDays: 1}, nil
		},
		redeem: func(r greencoin.Redemption) (*greencoin.RedemptionResult, error) {
			return &greencoin.RedemptionResult{Success: true, CoinsRedeemed: r.Amount}, nil
		},
		history: func(string, int) ([]greencoin.HistoryEntry, error) {
			return []greencoin.HistoryEntry{{ActionID: "a1", ActionType: greencoin.ActionCloseTabs}}, nil
		},
	}
}

func (f *fakeService) record(call string) {
	f.mu.Lock()
	f.calls = append(f.calls, call)
	f.mu.Unlock()
}

func (f *fakeService) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func (f *fakeService) count(call string) int {
	n := 0
	for _, c := range f.Calls() {
		if c == call {
			n++
		}
	}
	return n
}

func (f *fakeService) Register(ctx context.Context, username string) (string, error) {
	f.record("register")
	return f.register(username)
}

func (f *fakeService) FetchBalance(ctx context.Context, userID string) (*greencoin.Balance, error) {
	f.record("balance")
	return f.balance(userID)
}

func (f *fakeService) FetchGlobalStats(ctx context.Context) (*greencoin.GlobalStats, error) {
	f.record("stats")
	return f.stats()
}

func (f *fakeService) FetchLeaderboard(ctx context.Context) (greencoin.Leaderboard, error) {
	f.record("leaderboard")
	return f.leaderboard()
}

func (f *fakeService) SubmitAction(ctx context.Context, userID string, sub greencoin.ActionSubmission) (*greencoin.ActionResult, error) {
	f.record("action")
	return f.submit(userID, sub)
}

func (f *fakeService) Redeem(ctx context.Context, r greencoin.Redemption) (*greencoin.RedemptionResult, error) {
	f.record("redeem")
	return f.redeem(r)
}

func (f *fakeService) FetchHistory(ctx context.Context, userID string, limit int) ([]greencoin.HistoryEntry, error) {
	f.record("history")
	return f.history(userID, limit)
}

type failingStore struct {
	getErr error
	setErr error
}

func (s failingStore) Get(ctx context.Context) (string, bool, error) {
	return "", false, s.getErr
}

func (s failingStore) Set(ctx context.Context, id string) error {
	return s.setErr
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestController(api RewardService, store identity.Store, opts ...Option) *Controller {
	return New(api, store, append([]Option{WithLogger(quietLogger())}, opts...)...)
}

var closeTabs = greencoin.ActionSubmission{
	ActionType: greencoin.ActionCloseTabs,
	Metadata:   map[string]any{"tabs": 8},
}

func TestLoadWithoutIdentity(t *testing.T) {
	api := newFakeService()
	c := newTestController(api, identity.NewMemory(""))

	warnings, err := c.Load(context.Background())
	require.NoError(t, err)
	assert.Empty(t, warnings)

	snap := c.Snapshot()
	assert.Equal(t, StateUnregistered, snap.State)
	assert.False(t, snap.Registered())
	assert.Empty(t, api.Calls())
}

func TestLoadResumesStoredIdentity(t *testing.T) {
	api := newFakeService()
	c := newTestController(api, identity.NewMemory("u1"))

	warnings, err := c.Load(context.Background())
	require.NoError(t, err)
	assert.Empty(t, warnings)

	snap := c.Snapshot()
	assert.Equal(t, StateReady, snap.State)
	assert.Equal(t, "u1", snap.Identity)
	require.NotNil(t, snap.Balance)
	assert.Equal(t, "alice", snap.Balance.Username)
	assert.Equal(t, []string{"balance", "stats", "leaderboard"}, api.Calls())
}

func TestLoadStoreError(t *testing.T) {
	api := newFakeService()
	c := newTestController(api, failingStore{getErr: errors.New("disk gone")})

	_, err := c.Load(context.Background())
	assert.Error(t, err)
	assert.Equal(t, StateUnregistered, c.Snapshot().State)
	assert.Empty(t, api.Calls())
}

func TestRegisterAlice(t *testing.T) {
	api := newFakeService()
	store := identity.NewMemory("")
	c := newTestController(api, store)

	// the identity must be durable before the first balance fetch
	api.balance = func(userID string) (*greencoin.Balance, error) {
		id, ok, err := store.Get(context.Background())
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, "u1", id)
		return &greencoin.Balance{UserID: userID, Username: "alice"}, nil
	}

	warnings, err := c.Register(context.Background(), "alice")
	require.NoError(t, err)
	assert.Empty(t, warnings)

	snap := c.Snapshot()
	assert.Equal(t, StateReady, snap.State)
	assert.Equal(t, "u1", snap.Identity)
	require.NotNil(t, snap.Balance)
	assert.Equal(t, "u1", snap.Balance.UserID)

	assert.Equal(t, []string{"register", "balance", "stats", "leaderboard"}, api.Calls())

	id, ok, err := store.Get(context.Background())
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "u1", id)
}

func TestRegisterFailureKeepsUnregistered(t *testing.T) {
	api := newFakeService()
	api.register = func(string) (string, error) {
		return "", fmt.Errorf("register: %w", greencoin.ErrNetwork)
	}
	store := identity.NewMemory("")
	c := newTestController(api, store)

	_, err := c.Register(context.Background(), "alice")
	assert.ErrorIs(t, err, greencoin.ErrNetwork)

	assert.Equal(t, StateUnregistered, c.Snapshot().State)
	_, ok, _ := store.Get(context.Background())
	assert.False(t, ok)
	assert.Equal(t, []string{"register"}, api.Calls())
}

func TestRegisterPersistFailure(t *testing.T) {
	api := newFakeService()
	c := newTestController(api, failingStore{setErr: errors.New("read-only")})

	_, err := c.Register(context.Background(), "alice")
	assert.Error(t, err)
	assert.Equal(t, StateUnregistered, c.Snapshot().State)
	assert.Equal(t, []string{"register"}, api.Calls())
}

func TestRegisterBalanceFailure(t *testing.T) {
	api := newFakeService()
	api.balance = func(string) (*greencoin.Balance, error) {
		return nil, greencoin.ErrNetwork
	}
	store := identity.NewMemory("")
	c := newTestController(api, store)

	warnings, err := c.Register(context.Background(), "alice")
	assert.ErrorIs(t, err, greencoin.ErrNetwork)
	assert.ErrorIs(t, err, ErrBalanceUnavailable)
	require.Len(t, warnings, 1)
	assert.Equal(t, ResourceBalance, warnings[0].Resource)

	snap := c.Snapshot()
	assert.Equal(t, StateReady, snap.State)
	assert.Equal(t, "u1", snap.Identity)
	assert.Nil(t, snap.Balance)

	// registration can be retried since no balance was ever loaded
	api.balance = newFakeService().balance
	_, err = c.Register(context.Background(), "alice")
	assert.NoError(t, err)
	assert.NotNil(t, c.Snapshot().Balance)
}

func TestRegisterValidation(t *testing.T) {
	api := newFakeService()
	c := newTestController(api, identity.NewMemory(""))

	_, err := c.Register(context.Background(), "   ")
	assert.ErrorIs(t, err, ErrInvalidUsername)
	assert.Empty(t, api.Calls())
}

func TestRegisterTwice(t *testing.T) {
	api := newFakeService()
	c := newTestController(api, identity.NewMemory("u1"))
	_, err := c.Load(context.Background())
	require.NoError(t, err)

	_, err = c.Register(context.Background(), "bob")
	assert.ErrorIs(t, err, ErrAlreadyRegistered)
	assert.Equal(t, 0, api.count("register"))
}

func TestSubmitActionRefreshesInOrder(t *testing.T) {
	api := newFakeService()
	c := newTestController(api, identity.NewMemory("u1"))
	_, err := c.Load(context.Background())
	require.NoError(t, err)

	var gotUser string
	var gotSub greencoin.ActionSubmission
	api.submit = func(userID string, sub greencoin.ActionSubmission) (*greencoin.ActionResult, error) {
		gotUser, gotSub = userID, sub
		return newFakeService().submit(userID, sub)
	}

	out, err := c.SubmitAction(context.Background(), closeTabs)
	require.NoError(t, err)
	assert.Empty(t, out.Warnings)
	assert.Equal(t, "Tabs closed", out.Result.Message)
	assert.True(t, decimal.RequireFromString("1.5").Equal(out.Result.CoinsMinted))
	assert.Equal(t, 1, out.Result.StreakDays)

	assert.Equal(t, "u1", gotUser)
	assert.Equal(t, 8, gotSub.Metadata["tabs"])

	calls := api.Calls()
	assert.Equal(t, []string{"action", "balance", "stats", "leaderboard"}, calls[3:])
	assert.Equal(t, StateReady, c.Snapshot().State)
}

func TestSubmitActionWhilePending(t *testing.T) {
	api := newFakeService()
	c := newTestController(api, identity.NewMemory("u1"))
	_, err := c.Load(context.Background())
	require.NoError(t, err)

	entered := make(chan struct{})
	release := make(chan struct{})
	api.submit = func(userID string, sub greencoin.ActionSubmission) (*greencoin.ActionResult, error) {
		close(entered)
		<-release
		return &greencoin.ActionResult{Success: true, Message: "ok"}, nil
	}

	done := make(chan error, 1)
	go func() {
		_, err := c.SubmitAction(context.Background(), closeTabs)
		done <- err
	}()

	<-entered
	assert.Equal(t, StateActionPending, c.Snapshot().State)

	_, err = c.SubmitAction(context.Background(), closeTabs)
	assert.ErrorIs(t, err, ErrBusy)

	_, err = c.Redeem(context.Background(), greencoin.Redemption{WalletType: greencoin.WalletMoney, Amount: decimal.NewFromInt(1)})
	assert.ErrorIs(t, err, ErrBusy)

	_, err = c.Reload(context.Background())
	assert.ErrorIs(t, err, ErrBusy)

	close(release)
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("first submission did not finish")
	}

	assert.Equal(t, 1, api.count("action"))
	assert.Equal(t, 0, api.count("redeem"))
	assert.Equal(t, StateReady, c.Snapshot().State)
}

func TestSubmitActionRejected(t *testing.T) {
	api := newFakeService()
	c := newTestController(api, identity.NewMemory("u1"))
	_, err := c.Load(context.Background())
	require.NoError(t, err)
	before := c.Snapshot()

	api.submit = func(string, greencoin.ActionSubmission) (*greencoin.ActionResult, error) {
		return nil, &greencoin.APIError{Op: "submit action", Status: 422, Detail: "bad metadata"}
	}

	_, err = c.SubmitAction(context.Background(), closeTabs)
	assert.ErrorIs(t, err, greencoin.ErrRejected)

	after := c.Snapshot()
	assert.Equal(t, StateReady, after.State)
	assert.Equal(t, before.Balance, after.Balance)
	assert.Equal(t, 1, api.count("balance"), "no refresh after a rejected action")
}

func TestSubmitActionInvalid(t *testing.T) {
	api := newFakeService()
	c := newTestController(api, identity.NewMemory("u1"))
	_, err := c.Load(context.Background())
	require.NoError(t, err)

	_, err = c.SubmitAction(context.Background(), greencoin.ActionSubmission{ActionType: "plant_tree"})
	assert.ErrorIs(t, err, ErrInvalidAction)
	assert.Equal(t, 0, api.count("action"))
	assert.Equal(t, StateReady, c.Snapshot().State)
}

func TestSubmitActionUnregistered(t *testing.T) {
	api := newFakeService()
	c := newTestController(api, identity.NewMemory(""))

	_, err := c.SubmitAction(context.Background(), closeTabs)
	assert.ErrorIs(t, err, ErrNotRegistered)
	assert.Empty(t, api.Calls())
}

func TestPartialRefreshFailure(t *testing.T) {
	api := newFakeService()
	c := newTestController(api, identity.NewMemory("u1"))
	_, err := c.Load(context.Background())
	require.NoError(t, err)
	before := c.Snapshot()

	api.balance = func(userID string) (*greencoin.Balance, error) {
		return &greencoin.Balance{UserID: userID, Username: "alice", Stats: greencoin.UserStats{ActionsCount: 1}}, nil
	}
	api.stats = func() (*greencoin.GlobalStats, error) {
		return nil, fmt.Errorf("fetch stats: %w", greencoin.ErrNetwork)
	}
	api.leaderboard = func() (greencoin.Leaderboard, error) {
		return greencoin.Leaderboard{{Rank: 1, Username: "bob"}, {Rank: 2, Username: "alice"}}, nil
	}

	out, err := c.SubmitAction(context.Background(), closeTabs)
	require.NoError(t, err)
	require.Len(t, out.Warnings, 1)
	assert.Equal(t, ResourceStats, out.Warnings[0].Resource)
	assert.ErrorIs(t, out.Warnings[0], greencoin.ErrNetwork)
	assert.ErrorIs(t, JoinWarnings(out.Warnings), greencoin.ErrNetwork)

	after := c.Snapshot()
	assert.Equal(t, 1, after.Balance.Stats.ActionsCount)
	assert.Equal(t, before.Stats, after.Stats)
	require.Len(t, after.Leaderboard, 2)
	assert.Equal(t, "bob", after.Leaderboard[0].Username)
}

func TestLoadNotFoundKeepsIdentity(t *testing.T) {
	api := newFakeService()
	api.balance = func(string) (*greencoin.Balance, error) {
		return nil, &greencoin.APIError{Op: "fetch balance", Status: 404, Detail: "User not found"}
	}
	c := newTestController(api, identity.NewMemory("gone"))

	warnings, err := c.Load(context.Background())
	require.NoError(t, err)
	require.Len(t, warnings, 1)
	assert.ErrorIs(t, warnings[0], greencoin.ErrNotFound)

	snap := c.Snapshot()
	assert.Equal(t, StateReady, snap.State)
	assert.Equal(t, "gone", snap.Identity)
	assert.Nil(t, snap.Balance)
	assert.NotNil(t, snap.Stats)
}

func TestRedeem(t *testing.T) {
	api := newFakeService()
	c := newTestController(api, identity.NewMemory("u1"))
	_, err := c.Load(context.Background())
	require.NoError(t, err)

	var got greencoin.Redemption
	api.redeem = func(r greencoin.Redemption) (*greencoin.RedemptionResult, error) {
		got = r
		return &greencoin.RedemptionResult{Success: true, CoinsRedeemed: r.Amount}, nil
	}

	out, err := c.Redeem(context.Background(), greencoin.Redemption{
		WalletType:     greencoin.WalletMoney,
		Amount:         decimal.RequireFromString("2.5"),
		RedemptionType: greencoin.RedeemCash,
	})
	require.NoError(t, err)
	assert.True(t, out.Result.Success)
	assert.Equal(t, "u1", got.UserID)
	assert.Equal(t, []string{"redeem", "balance", "stats", "leaderboard"}, api.Calls()[3:])
}

func TestRedeemValidation(t *testing.T) {
	api := newFakeService()
	c := newTestController(api, identity.NewMemory("u1"))
	_, err := c.Load(context.Background())
	require.NoError(t, err)

	_, err = c.Redeem(context.Background(), greencoin.Redemption{WalletType: "gold", Amount: decimal.NewFromInt(1)})
	assert.ErrorIs(t, err, ErrInvalidRedemption)

	_, err = c.Redeem(context.Background(), greencoin.Redemption{WalletType: greencoin.WalletPoints, Amount: decimal.Zero})
	assert.ErrorIs(t, err, ErrInvalidRedemption)

	assert.Equal(t, 0, api.count("redeem"))
}

func TestRedeemInsufficient(t *testing.T) {
	api := newFakeService()
	c := newTestController(api, identity.NewMemory("u1"))
	_, err := c.Load(context.Background())
	require.NoError(t, err)

	api.redeem = func(greencoin.Redemption) (*greencoin.RedemptionResult, error) {
		return nil, &greencoin.APIError{Op: "redeem", Status: 400, Detail: "Insufficient balance"}
	}

	_, err = c.Redeem(context.Background(), greencoin.Redemption{WalletType: greencoin.WalletMoney, Amount: decimal.NewFromInt(100)})
	assert.ErrorIs(t, err, greencoin.ErrRejected)
	assert.Contains(t, err.Error(), "Insufficient balance")
	assert.Equal(t, StateReady, c.Snapshot().State)
}

func TestSelectView(t *testing.T) {
	api := newFakeService()
	c := newTestController(api, identity.NewMemory(""))

	require.NoError(t, c.SelectView(ModeLeaderboard))
	assert.Equal(t, ModeLeaderboard, c.Snapshot().Mode)

	assert.ErrorIs(t, c.SelectView("settings"), ErrInvalidView)
	assert.Equal(t, ModeLeaderboard, c.Snapshot().Mode)
	assert.Empty(t, api.Calls())
}

func TestReload(t *testing.T) {
	api := newFakeService()
	c := newTestController(api, identity.NewMemory(""))

	_, err := c.Reload(context.Background())
	assert.ErrorIs(t, err, ErrNotRegistered)

	c = newTestController(api, identity.NewMemory("u1"))
	_, err = c.Load(context.Background())
	require.NoError(t, err)

	_, err = c.Reload(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, api.count("balance"))
}

func TestRefreshedAtTracksLastSuccess(t *testing.T) {
	start := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	now := start
	clock := func() time.Time {
		now = now.Add(time.Second)
		return now
	}

	api := newFakeService()
	c := newTestController(api, identity.NewMemory("u1"), WithClock(clock))
	_, err := c.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, start.Add(3*time.Second), c.Snapshot().RefreshedAt)

	// a failed fetch leaves the timestamp of the last good one
	api.leaderboard = func() (greencoin.Leaderboard, error) {
		return nil, greencoin.ErrNetwork
	}
	warnings, err := c.Reload(context.Background())
	require.NoError(t, err)
	require.Len(t, warnings, 1)
	assert.Equal(t, start.Add(5*time.Second), c.Snapshot().RefreshedAt)
}

func TestLoadHistory(t *testing.T) {
	api := newFakeService()
	c := newTestController(api, identity.NewMemory(""))

	_, err := c.LoadHistory(context.Background(), 10)
	assert.ErrorIs(t, err, ErrNotRegistered)

	c = newTestController(api, identity.NewMemory("u1"))
	_, err = c.Load(context.Background())
	require.NoError(t, err)

	var gotLimit int
	api.history = func(userID string, limit int) ([]greencoin.HistoryEntry, error) {
		gotLimit = limit
		return []greencoin.HistoryEntry{{ActionID: "a1"}, {ActionID: "a2"}}, nil
	}

	entries, err := c.LoadHistory(context.Background(), 5)
	require.NoError(t, err)
	assert.Len(t, entries, 2)
	assert.Equal(t, 5, gotLimit)
	assert.Equal(t, StateReady, c.Snapshot().State)
}

func TestOnChangeSeesTransitions(t *testing.T) {
	api := newFakeService()

	var mu sync.Mutex
	var states []State
	c := newTestController(api, identity.NewMemory("u1"), WithOnChange(func(s Snapshot) {
		mu.Lock()
		states = append(states, s.State)
		mu.Unlock()
	}))

	_, err := c.Load(context.Background())
	require.NoError(t, err)
	_, err = c.SubmitAction(context.Background(), closeTabs)
	require.NoError(t, err)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []State{StateLoading, StateReady, StateActionPending, StateReady}, states)
}

func TestSnapshotIsACopy(t *testing.T) {
	api := newFakeService()
	api.stats = func() (*greencoin.GlobalStats, error) {
		return &greencoin.GlobalStats{ActionBreakdown: map[string]int{"close_tabs": 1}}, nil
	}
	c := newTestController(api, identity.NewMemory("u1"))
	_, err := c.Load(context.Background())
	require.NoError(t, err)

	snap := c.Snapshot()
	snap.Balance.Username = "mallory"
	snap.Stats.ActionBreakdown["close_tabs"] = 99
	snap.Leaderboard[0].Username = "mallory"

	fresh := c.Snapshot()
	assert.Equal(t, "alice", fresh.Balance.Username)
	assert.Equal(t, 1, fresh.Stats.ActionBreakdown["close_tabs"])
	assert.Equal(t, "alice", fresh.Leaderboard[0].Username)
}

func TestParseMode(t *testing.T) {
	m, err := ParseMode("history")
	require.NoError(t, err)
	assert.Equal(t, ModeHistory, m)

	_, err = ParseMode("")
	assert.ErrorIs(t, err, ErrInvalidView)
}
