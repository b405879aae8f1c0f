package telegram

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"

	"github.com/suspectuso/green-coin/internal/identity"
	"github.com/suspectuso/green-coin/internal/session"
)

const originPrefix = "tg:"

// Origin is the identity scope of a chat
func Origin(chatID int64) string {
	return originPrefix + strconv.FormatInt(chatID, 10)
}

// ChatID parses an origin written by Origin
func ChatID(origin string) (int64, bool) {
	rest, ok := strings.CutPrefix(origin, originPrefix)
	if !ok {
		return 0, false
	}
	id, err := strconv.ParseInt(rest, 10, 64)
	if err != nil {
		return 0, false
	}
	return id, true
}

// StoreFactory returns the identity store of an origin
type StoreFactory func(origin string) identity.Store

type entry struct {
	ctrl  *session.Controller
	ready chan struct{}
	err   error
}

// Sessions keeps one controller per chat, loaded on first use
type Sessions struct {
	api     session.RewardService
	stores  StoreFactory
	log     *slog.Logger
	onCount func(int)

	mu    sync.Mutex
	items map[int64]*entry
}

// NewSessions creates an empty registry. onCount, if set, receives the
// number of controllers after every change.
func NewSessions(api session.RewardService, stores StoreFactory, log *slog.Logger, onCount func(int)) *Sessions {
	return &Sessions{
		api:     api,
		stores:  stores,
		log:     log,
		onCount: onCount,
		items:   make(map[int64]*entry),
	}
}

// Get returns the controller of chatID, creating and loading it on first
// use. Warnings are only returned by the call that performed the load.
func (s *Sessions) Get(ctx context.Context, chatID int64) (*session.Controller, []session.Warning, error) {
	s.mu.Lock()
	if e, ok := s.items[chatID]; ok {
		s.mu.Unlock()
		select {
		case <-e.ready:
		case <-ctx.Done():
			return nil, nil, ctx.Err()
		}
		if e.err != nil {
			return nil, nil, e.err
		}
		return e.ctrl, nil, nil
	}

	origin := Origin(chatID)
	e := &entry{
		ctrl: session.New(s.api, s.stores(origin),
			session.WithLogger(s.log.With("origin", origin)),
		),
		ready: make(chan struct{}),
	}
	s.items[chatID] = e
	n := len(s.items)
	s.mu.Unlock()
	s.count(n)

	warnings, err := e.ctrl.Load(ctx)
	if err != nil {
		e.err = fmt.Errorf("load session %s: %w", origin, err)
		s.mu.Lock()
		delete(s.items, chatID)
		n = len(s.items)
		s.mu.Unlock()
		s.count(n)
	}
	close(e.ready)

	if e.err != nil {
		return nil, nil, e.err
	}
	return e.ctrl, warnings, nil
}

// Resume loads the controllers of every stored chat origin so the first
// message after a restart is served from memory
func (s *Sessions) Resume(ctx context.Context, origins []string) int {
	resumed := 0
	for _, origin := range origins {
		chatID, ok := ChatID(origin)
		if !ok {
			continue
		}
		if _, _, err := s.Get(ctx, chatID); err != nil {
			s.log.Warn("resume session", "origin", origin, "error", err)
			continue
		}
		resumed++
	}
	return resumed
}

// Len returns the number of controllers held
func (s *Sessions) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}

func (s *Sessions) count(n int) {
	if s.onCount != nil {
		s.onCount(n)
	}
}
