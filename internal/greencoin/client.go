package greencoin

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/tidwall/gjson"
	"golang.org/x/time/rate"
)

// Observer receives the outcome of every round trip
type Observer interface {
	ObserveRequest(op, outcome string, elapsed time.Duration)
}

// Client is a Green Coin reward service HTTP client.
// It never retries; retry policy belongs to the caller.
type Client struct {
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
	observer   Observer
}

// Option configures a Client
type Option func(*Client)

// WithTimeout sets the transport timeout
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.httpClient.Timeout = d
	}
}

// WithRateLimit paces outbound requests
func WithRateLimit(rps float64, burst int) Option {
	return func(c *Client) {
		if rps <= 0 {
			c.limiter = rate.NewLimiter(rate.Inf, 0)
			return
		}
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

// WithHTTPClient replaces the underlying http.Client
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithObserver reports request outcomes to o
func WithObserver(o Observer) Option {
	return func(c *Client) {
		c.observer = o
	}
}

// NewClient creates a new reward service client
func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 15 * time.Second,
		},
		limiter: rate.NewLimiter(rate.Limit(4), 2),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// PlaceholderEmail is the address sent on registration
func PlaceholderEmail(username string) string {
	return username + "@demo.com"
}

func (c *Client) doRequest(ctx context.Context, op, method, path string, body interface{}) (data []byte, err error) {
	start := time.Now()
	defer func() {
		if c.observer != nil {
			c.observer.ObserveRequest(op, Outcome(err), time.Since(start))
		}
	}()

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("%s: %w: %w", op, ErrNetwork, err)
	}

	var reqBody io.Reader
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("%s: marshal body: %w", op, err)
		}
		reqBody = bytes.NewReader(jsonData)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return nil, fmt.Errorf("%s: create request: %w", op, err)
	}

	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", uuid.NewString())
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s: %w: %w", op, ErrNetwork, err)
	}
	defer resp.Body.Close()

	data, err = io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%s: read body: %w: %w", op, ErrNetwork, err)
	}

	if resp.StatusCode >= 400 {
		return nil, newAPIError(op, resp.StatusCode, data)
	}

	return data, nil
}

func decode(op string, data []byte, v interface{}) error {
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("%s: %w: %w", op, ErrProtocol, err)
	}
	return nil
}

// requireKeys fails with ErrProtocol unless data is a JSON object holding
// every non-null path
func requireKeys(op string, data []byte, paths ...string) error {
	root := gjson.ParseBytes(data)
	if !root.IsObject() {
		return fmt.Errorf("%s: %w: expected a JSON object", op, ErrProtocol)
	}
	for _, p := range paths {
		if v := root.Get(p); !v.Exists() || v.Type == gjson.Null {
			return fmt.Errorf("%s: %w: missing %s", op, ErrProtocol, p)
		}
	}
	return nil
}

// Register creates a new user and returns its identity
func (c *Client) Register(ctx context.Context, username string) (string, error) {
	body := RegisterRequest{
		Username: username,
		Email:    PlaceholderEmail(username),
	}
	data, err := c.doRequest(ctx, "register", http.MethodPost, "/register", body)
	if err != nil {
		return "", err
	}

	var resp RegisterResponse
	if err := decode("register", data, &resp); err != nil {
		return "", err
	}
	if resp.UserID == "" {
		return "", fmt.Errorf("register: %w: missing user_id", ErrProtocol)
	}

	return resp.UserID, nil
}

// FetchBalance returns wallets and stats of a user
func (c *Client) FetchBalance(ctx context.Context, userID string) (*Balance, error) {
	data, err := c.doRequest(ctx, "balance", http.MethodGet, "/balance/"+url.PathEscape(userID), nil)
	if err != nil {
		return nil, err
	}

	if err := requireKeys("balance", data, "user_id", "username", "wallets.money", "wallets.points"); err != nil {
		return nil, err
	}

	var balance Balance
	if err := decode("balance", data, &balance); err != nil {
		return nil, err
	}

	return &balance, nil
}

// FetchGlobalStats returns platform-wide statistics
func (c *Client) FetchGlobalStats(ctx context.Context) (*GlobalStats, error) {
	data, err := c.doRequest(ctx, "stats", http.MethodGet, "/stats", nil)
	if err != nil {
		return nil, err
	}

	if err := requireKeys("stats", data, "total_users", "total_co2_saved_kg", "total_coins_minted"); err != nil {
		return nil, err
	}

	var stats GlobalStats
	if err := decode("stats", data, &stats); err != nil {
		return nil, err
	}

	return &stats, nil
}

// FetchLeaderboard returns the ranking in server order
func (c *Client) FetchLeaderboard(ctx context.Context) (Leaderboard, error) {
	data, err := c.doRequest(ctx, "leaderboard", http.MethodGet, "/leaderboard", nil)
	if err != nil {
		return nil, err
	}

	if !gjson.GetBytes(data, "leaderboard").IsArray() {
		return nil, fmt.Errorf("leaderboard: %w: missing leaderboard array", ErrProtocol)
	}

	var resp LeaderboardResponse
	if err := decode("leaderboard", data, &resp); err != nil {
		return nil, err
	}
	if resp.Leaderboard == nil {
		resp.Leaderboard = Leaderboard{}
	}

	return resp.Leaderboard, nil
}

// SubmitAction logs a sustainable action and mints coins
func (c *Client) SubmitAction(ctx context.Context, userID string, sub ActionSubmission) (*ActionResult, error) {
	body := actionRequest{
		UserID:     userID,
		ActionType: sub.ActionType,
		Metadata:   sub.Metadata,
	}
	if body.Metadata == nil {
		body.Metadata = map[string]any{}
	}

	data, err := c.doRequest(ctx, "action", http.MethodPost, "/action", body)
	if err != nil {
		return nil, err
	}

	var result ActionResult
	if err := decode("action", data, &result); err != nil {
		return nil, err
	}
	if result.CoinsMinted.IsNegative() || result.StreakDays < 0 {
		return nil, fmt.Errorf("action: %w: negative coins or streak", ErrProtocol)
	}

	return &result, nil
}

// Redeem converts wallet coins into a reward
func (c *Client) Redeem(ctx context.Context, r Redemption) (*RedemptionResult, error) {
	body := redeemRequest{
		UserID:         r.UserID,
		WalletType:     r.WalletType,
		Amount:         json.Number(r.Amount.String()),
		RedemptionType: r.RedemptionType,
	}
	data, err := c.doRequest(ctx, "redeem", http.MethodPost, "/redeem", body)
	if err != nil {
		return nil, err
	}

	var result RedemptionResult
	if err := decode("redeem", data, &result); err != nil {
		return nil, err
	}

	return &result, nil
}

// FetchHistory returns the most recent actions of a user, newest first
func (c *Client) FetchHistory(ctx context.Context, userID string, limit int) ([]HistoryEntry, error) {
	path := fmt.Sprintf("/user/%s/history?limit=%d", url.PathEscape(userID), limit)
	data, err := c.doRequest(ctx, "history", http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}

	var resp HistoryResponse
	if err := decode("history", data, &resp); err != nil {
		return nil, err
	}

	return resp.Actions, nil
}

// Outcome classifies an error for metrics and logs
func Outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrRejected):
		return "rejected"
	case errors.Is(err, ErrProtocol):
		return "protocol"
	case errors.Is(err, ErrNetwork):
		return "network"
	default:
		return "error"
	}
}
