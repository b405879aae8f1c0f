// Package view turns a session snapshot into a render model.
// It is pure: no I/O and no access to the controller.
package view

import (
	"time"

	"github.com/suspectuso/green-coin/internal/actions"
	"github.com/suspectuso/green-coin/internal/greencoin"
	"github.com/suspectuso/green-coin/internal/session"
)

// Kind names the page a Model renders
type Kind string

const (
	KindRegistration Kind = "registration"
	KindDashboard    Kind = "dashboard"
	KindActions      Kind = "actions"
	KindLeaderboard  Kind = "leaderboard"
	KindHistory      Kind = "history"
)

const podiumSize = 3

var medals = [podiumSize]string{"🥇", "🥈", "🥉"}

// Row is a leaderboard line as rendered
type Row struct {
	greencoin.LeaderboardEntry
	Podium bool
	Medal  string
	Self   bool
}

// Model is everything a front-end needs to draw one page
type Model struct {
	Kind Kind

	// Busy is set while a request is in flight; front-ends disable
	// mutating controls.
	Busy bool
	// Resumable is set on the registration page when an identity is
	// stored but its balance could not be loaded.
	Resumable bool
	UserID    string

	Username    string
	Wallets     greencoin.Wallets
	Stats       greencoin.UserStats
	Global      *greencoin.GlobalStats
	Actions     []actions.Kind
	Rows        []Row
	History     []greencoin.HistoryEntry
	RefreshedAt time.Time
}

// Select picks the model for mode. Without a balance snapshot it is always
// the registration page.
func Select(snap session.Snapshot, mode session.Mode) Model {
	if snap.Balance == nil {
		return Model{
			Kind:      KindRegistration,
			Busy:      snap.Busy(),
			Resumable: snap.Registered(),
			UserID:    snap.Identity,
		}
	}

	m := Model{
		Busy:        snap.Busy(),
		UserID:      snap.Identity,
		Username:    snap.Balance.Username,
		Wallets:     snap.Balance.Wallets,
		Stats:       snap.Balance.Stats,
		Global:      snap.Stats,
		RefreshedAt: snap.RefreshedAt,
	}

	switch mode {
	case session.ModeActions:
		m.Kind = KindActions
		m.Actions = actions.Catalog
	case session.ModeLeaderboard:
		m.Kind = KindLeaderboard
		m.Rows = rows(snap.Leaderboard, snap.Balance.Username)
	case session.ModeHistory:
		m.Kind = KindHistory
	default:
		m.Kind = KindDashboard
	}
	return m
}

// WithHistory attaches entries fetched separately to a history model
func (m Model) WithHistory(entries []greencoin.HistoryEntry) Model {
	m.History = entries
	return m
}

// rows keeps the server order; only the first three are the podium
func rows(lb greencoin.Leaderboard, self string) []Row {
	out := make([]Row, len(lb))
	for i, e := range lb {
		out[i] = Row{
			LeaderboardEntry: e,
			Self:             self != "" && e.Username == self,
		}
		if i < podiumSize {
			out[i].Podium = true
			out[i].Medal = medals[i]
		}
	}
	return out
}
