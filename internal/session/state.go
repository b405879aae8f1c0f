package session

import (
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/suspectuso/green-coin/internal/greencoin"
)

var (
	ErrBusy              = errors.New("another request is in progress")
	ErrNotRegistered     = errors.New("not registered")
	ErrAlreadyRegistered = errors.New("already registered")
	ErrInvalidUsername   = errors.New("username is required")
	ErrInvalidAction     = errors.New("invalid action")
	ErrInvalidRedemption = errors.New("invalid redemption")
	ErrInvalidView       = errors.New("unknown view")

	// ErrBalanceUnavailable is returned by Register when the user was
	// created and stored but the first balance fetch failed
	ErrBalanceUnavailable = errors.New("balance unavailable")
)

// State of the controller
type State int

const (
	StateUnregistered State = iota
	StateLoading
	StateReady
	StateActionPending
)

func (s State) String() string {
	switch s {
	case StateUnregistered:
		return "unregistered"
	case StateLoading:
		return "loading"
	case StateReady:
		return "ready"
	case StateActionPending:
		return "action_pending"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// busy reports whether a mutating round trip or refresh is in flight
func (s State) busy() bool {
	return s == StateLoading || s == StateActionPending
}

// Mode is the dashboard page selected by the user
type Mode string

const (
	ModeDashboard   Mode = "dashboard"
	ModeActions     Mode = "actions"
	ModeLeaderboard Mode = "leaderboard"
	ModeHistory     Mode = "history"
)

// Modes lists the selectable pages in display order
var Modes = []Mode{ModeDashboard, ModeActions, ModeLeaderboard, ModeHistory}

// ParseMode validates a page name
func ParseMode(s string) (Mode, error) {
	m := Mode(s)
	if slices.Contains(Modes, m) {
		return m, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidView, s)
}

// Resources refreshed after every successful mutation, in order
const (
	ResourceBalance     = "balance"
	ResourceStats       = "stats"
	ResourceLeaderboard = "leaderboard"
)

// Warning is a non-fatal refresh failure; the resource keeps its previous snapshot
type Warning struct {
	Resource string
	Err      error
}

func (w Warning) Error() string {
	return fmt.Sprintf("refresh %s: %v", w.Resource, w.Err)
}

func (w Warning) Unwrap() error {
	return w.Err
}

// JoinWarnings folds warnings into a single error, nil when there are none
func JoinWarnings(ws []Warning) error {
	if len(ws) == 0 {
		return nil
	}
	errs := make([]error, len(ws))
	for i, w := range ws {
		errs[i] = w
	}
	return errors.Join(errs...)
}

// Snapshot is an immutable copy of the controller view-state
type Snapshot struct {
	State       State
	Identity    string
	Mode        Mode
	Balance     *greencoin.Balance
	Stats       *greencoin.GlobalStats
	Leaderboard greencoin.Leaderboard
	RefreshedAt time.Time
}

// Registered reports whether an identity is known
func (s Snapshot) Registered() bool {
	return s.Identity != ""
}

// Busy reports whether a request is in flight
func (s Snapshot) Busy() bool {
	return s.State.busy()
}

// Outcome is the result of a submitted action and the refresh that followed
type Outcome struct {
	Result   *greencoin.ActionResult
	Warnings []Warning
}

// RedeemOutcome is the result of a redemption and the refresh that followed
type RedeemOutcome struct {
	Result   *greencoin.RedemptionResult
	Warnings []Warning
}
