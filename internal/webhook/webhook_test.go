package webhook

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestServerRoutes(t *testing.T) {
	var got string
	updates := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		got = string(body)
		w.WriteHeader(http.StatusOK)
	})
	metrics := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("greencoin_client_requests_total 1"))
	})

	srv := httptest.NewServer(NewServer(updates, "", metrics, quietLogger()).Handler())
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/webhook", "application/json", strings.NewReader(`{"update_id":1}`))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, `{"update_id":1}`, got)

	resp, err = http.Get(srv.URL + "/webhook")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)

	resp, err = http.Get(srv.URL + "/health")
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Equal(t, "OK", string(body))

	resp, err = http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	body, _ = io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Contains(t, string(body), "greencoin_client_requests_total")
}

func TestServerPollingMode(t *testing.T) {
	srv := httptest.NewServer(NewServer(nil, "", nil, quietLogger()).Handler())
	defer srv.Close()

	// without an updates handler /webhook falls through to the health page
	resp, err := http.Post(srv.URL+"/webhook", "application/json", strings.NewReader(`{}`))
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Equal(t, "OK", string(body))
}

func TestServerWebhookSecret(t *testing.T) {
	delivered := 0
	updates := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		delivered++
		w.WriteHeader(http.StatusOK)
	})

	srv := httptest.NewServer(NewServer(updates, "s3cret", nil, quietLogger()).Handler())
	defer srv.Close()

	post := func(token string) int {
		req, err := http.NewRequest(http.MethodPost, srv.URL+"/webhook", strings.NewReader(`{"update_id":1}`))
		require.NoError(t, err)
		if token != "" {
			req.Header.Set("X-Telegram-Bot-Api-Secret-Token", token)
		}
		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		resp.Body.Close()
		return resp.StatusCode
	}

	assert.Equal(t, http.StatusUnauthorized, post(""))
	assert.Equal(t, http.StatusUnauthorized, post("wrong"))
	assert.Equal(t, 0, delivered)

	assert.Equal(t, http.StatusOK, post("s3cret"))
	assert.Equal(t, 1, delivered)
}

type fakeRegistrar struct {
	set     []*bot.SetWebhookParams
	deleted int
	info    *models.WebhookInfo
	err     error
}

func (f *fakeRegistrar) SetWebhook(ctx context.Context, params *bot.SetWebhookParams) (bool, error) {
	if f.err != nil {
		return false, f.err
	}
	f.set = append(f.set, params)
	return true, nil
}

func (f *fakeRegistrar) DeleteWebhook(ctx context.Context, params *bot.DeleteWebhookParams) (bool, error) {
	if f.err != nil {
		return false, f.err
	}
	f.deleted++
	return true, nil
}

func (f *fakeRegistrar) GetWebhookInfo(ctx context.Context) (*models.WebhookInfo, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.info, nil
}

func TestManagerInitWebhook(t *testing.T) {
	api := &fakeRegistrar{}
	m := NewManager(api, "https://example.org/webhook", "s3cret", quietLogger())

	require.NoError(t, m.Init(context.Background()))
	require.Len(t, api.set, 1)
	assert.Equal(t, "https://example.org/webhook", api.set[0].URL)
	assert.Equal(t, "s3cret", api.set[0].SecretToken)
	assert.True(t, m.Registered())
	assert.Equal(t, 0, api.deleted)
}

func TestManagerInitPolling(t *testing.T) {
	api := &fakeRegistrar{}
	m := NewManager(api, "", "", quietLogger())

	require.NoError(t, m.Init(context.Background()))
	assert.Equal(t, 1, api.deleted)
	assert.Empty(t, api.set)
	assert.False(t, m.Registered())
}

func TestManagerInitError(t *testing.T) {
	api := &fakeRegistrar{err: errors.New("unauthorized")}
	m := NewManager(api, "https://example.org/webhook", "", quietLogger())

	assert.Error(t, m.Init(context.Background()))
	assert.False(t, m.Registered())
}

func TestManagerSync(t *testing.T) {
	api := &fakeRegistrar{info: &models.WebhookInfo{URL: "https://example.org/webhook"}}
	m := NewManager(api, "https://example.org/webhook", "", quietLogger())

	require.NoError(t, m.sync(context.Background()))
	assert.Empty(t, api.set)

	api.info = &models.WebhookInfo{URL: "https://other.example.org/hook"}
	require.NoError(t, m.sync(context.Background()))
	require.Len(t, api.set, 1)
	assert.Equal(t, "https://example.org/webhook", api.set[0].URL)
}
