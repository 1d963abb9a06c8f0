package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ramonehamilton/card-catalog/internal/api/response"
	"github.com/ramonehamilton/card-catalog/internal/catalog"
	"github.com/ramonehamilton/card-catalog/internal/notify"
	"github.com/ramonehamilton/card-catalog/internal/preferences"
	"github.com/ramonehamilton/card-catalog/internal/viewer"
)

type testEnv struct {
	server   *Server
	session  *viewer.Session
	persist  *preferences.MemoryPersistence
	notifier *notify.Notifier
}

func price(f float64) *float64 { return &f }

func testCatalog() []*catalog.Card {
	return []*catalog.Card{
		{ID: "bolt", Name: "Lightning Bolt", Set: "lea", CollectorNumber: "161", Rarity: "common", Quantity: 4, MarketPrice: 450, MyPrice: price(382.5), TypeLine: "Instant"},
		{ID: "guide_foil", Name: "Goblin Guide", Set: "zen", CollectorNumber: "126", Rarity: "rare", Quantity: 1, MarketPrice: 12, IsFoil: true, TypeLine: "Creature — Goblin Scout"},
		{ID: "ring_etched", Name: "Sol Ring", Set: "cmr", CollectorNumber: "472", Rarity: "uncommon", Quantity: 2, MarketPrice: 5, IsEtched: true, TypeLine: "Artifact"},
	}
}

func newTestEnv(t *testing.T, load bool) *testEnv {
	t.Helper()

	path := filepath.Join(t.TempDir(), "cards.json")
	require.NoError(t, catalog.WriteFile(path, testCatalog()))

	env := &testEnv{
		persist:  preferences.NewMemoryPersistence(),
		notifier: notify.New(),
	}
	store := preferences.NewStore(env.persist, nil)
	env.session = viewer.NewSession(viewer.SessionOptions{CatalogPath: path, PageSize: 2}, store, env.notifier, nil)
	if load {
		require.NoError(t, env.session.Load(context.Background()))
	}
	env.server = NewServer(nil, env.session, nil)
	return env
}

func (e *testEnv) do(t *testing.T, method, target, contentType, body string) *httptest.ResponseRecorder {
	t.Helper()

	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, r)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	rec := httptest.NewRecorder()
	e.server.Handler().ServeHTTP(rec, req)
	return rec
}

// decodeData unmarshals the data field of a success envelope into v and
// returns the envelope's warning.
func decodeData(t *testing.T, rec *httptest.ResponseRecorder, v interface{}) string {
	t.Helper()

	var env struct {
		Data    json.RawMessage `json:"data"`
		Warning string          `json:"warning"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&env))
	if v != nil {
		require.NoError(t, json.Unmarshal(env.Data, v))
	}
	return env.Warning
}

func TestNewServer_NilConfig(t *testing.T) {
	env := newTestEnv(t, false)

	assert.Equal(t, DefaultConfig().Addr, env.server.Addr())
	assert.NotNil(t, env.server.Handler())
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t, true)

	rec := env.do(t, http.MethodGet, "/health", "", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var health struct {
		Status        string `json:"status"`
		CatalogLoaded bool   `json:"catalogLoaded"`
		Cards         int    `json:"cards"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&health))
	assert.Equal(t, "ok", health.Status)
	assert.True(t, health.CatalogLoaded)
	assert.Equal(t, 3, health.Cards)
}

func TestQueryAndPaging(t *testing.T) {
	env := newTestEnv(t, true)

	rec := env.do(t, http.MethodPost, "/api/v1/cards/query", "application/json", `{"sort":"name_asc"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var q struct {
		FilteredLen   int         `json:"filteredLen"`
		FilteredCount int         `json:"filteredCount"`
		Sort          string      `json:"sort"`
		Page          viewer.Page `json:"page"`
	}
	decodeData(t, rec, &q)
	assert.Equal(t, 3, q.FilteredLen)
	assert.Equal(t, 7, q.FilteredCount)
	assert.Equal(t, "name_asc", q.Sort)
	require.Len(t, q.Page.Cards, 2)
	assert.Equal(t, "guide_foil", q.Page.Cards[0].ID)
	assert.True(t, q.Page.HasMore)

	rec = env.do(t, http.MethodGet, "/api/v1/cards/next", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var page viewer.Page
	decodeData(t, rec, &page)
	require.Len(t, page.Cards, 1)
	assert.Equal(t, "ring_etched", page.Cards[0].ID)
	assert.False(t, page.HasMore)
}

func TestQueryWithCriteria(t *testing.T) {
	env := newTestEnv(t, true)

	rec := env.do(t, http.MethodPost, "/api/v1/cards/query", "application/json", `{"foilOnly":true,"etchedOnly":true}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var q struct {
		FilteredLen int `json:"filteredLen"`
	}
	decodeData(t, rec, &q)
	assert.Equal(t, 2, q.FilteredLen)

	rec = env.do(t, http.MethodGet, "/api/v1/cards/count", "", "")
	var count struct {
		FilteredLen   int `json:"filteredLen"`
		FilteredCount int `json:"filteredCount"`
	}
	decodeData(t, rec, &count)
	assert.Equal(t, 2, count.FilteredLen)
	assert.Equal(t, 3, count.FilteredCount)
}

func TestQueryRejectsBadInput(t *testing.T) {
	env := newTestEnv(t, true)

	rec := env.do(t, http.MethodPost, "/api/v1/cards/query", "application/json", `{"sort":"color_asc"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, http.MethodPost, "/api/v1/cards/query", "application/json", `{bad`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, http.MethodPost, "/api/v1/cards/query", "text/plain", `{}`)
	assert.Equal(t, http.StatusUnsupportedMediaType, rec.Code)
}

func TestQueryBeforeLoad(t *testing.T) {
	env := newTestEnv(t, false)

	rec := env.do(t, http.MethodPost, "/api/v1/cards/query", "", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	rec = env.do(t, http.MethodGet, "/api/v1/cards/next", "", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	rec = env.do(t, http.MethodGet, "/api/v1/cards/count", "", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestGetCard(t *testing.T) {
	env := newTestEnv(t, true)

	rec := env.do(t, http.MethodGet, "/api/v1/cards/bolt", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var card viewer.CardView
	decodeData(t, rec, &card)
	assert.Equal(t, "Lightning Bolt", card.Name)
	assert.Equal(t, 4, card.CurrentQuantity)

	rec = env.do(t, http.MethodGet, "/api/v1/cards/missing", "", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	var errResp response.ErrorResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&errResp))
	assert.Equal(t, http.StatusNotFound, errResp.Code)
}

func TestPreferenceRoutes(t *testing.T) {
	env := newTestEnv(t, true)

	rec := env.do(t, http.MethodPost, "/api/v1/cards/bolt/favorite", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var fav struct {
		IsFavorite bool `json:"isFavorite"`
	}
	decodeData(t, rec, &fav)
	assert.True(t, fav.IsFavorite)

	rec = env.do(t, http.MethodPut, "/api/v1/cards/bolt/ignored", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, env.session.IsIgnored("bolt"))
	assert.False(t, env.session.IsFavorite("bolt"))

	rec = env.do(t, http.MethodDelete, "/api/v1/cards/bolt/ignored", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.False(t, env.session.IsIgnored("bolt"))

	rec = env.do(t, http.MethodPut, "/api/v1/cards/bolt/quantity", "application/json", `{"quantity":2.9}`)
	require.Equal(t, http.StatusOK, rec.Code)
	var qty struct {
		Quantity int `json:"quantity"`
	}
	decodeData(t, rec, &qty)
	assert.Equal(t, 2, qty.Quantity)

	rec = env.do(t, http.MethodPut, "/api/v1/cards/bolt/quantity", "application/json", `{}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, http.MethodPost, "/api/v1/cards/missing/favorite", "", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestPersistFailureReturnsWarning(t *testing.T) {
	env := newTestEnv(t, true)
	env.persist.SetFailWrites(errors.New("database is locked"))

	rec := env.do(t, http.MethodPost, "/api/v1/cards/bolt/favorite", "", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var fav struct {
		IsFavorite bool `json:"isFavorite"`
	}
	warning := decodeData(t, rec, &fav)
	assert.True(t, fav.IsFavorite)
	assert.Contains(t, warning, "database is locked")

	rec = env.do(t, http.MethodGet, "/api/v1/notifications", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var n notify.Notification
	decodeData(t, rec, &n)
	assert.Equal(t, notify.SeverityWarning, n.Severity)
}

func TestFavoritesRoutes(t *testing.T) {
	env := newTestEnv(t, true)

	env.do(t, http.MethodPost, "/api/v1/cards/bolt/favorite", "", "")

	rec := env.do(t, http.MethodGet, "/api/v1/favorites", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var favs []viewer.CardView
	decodeData(t, rec, &favs)
	require.Len(t, favs, 1)
	assert.Equal(t, "bolt", favs[0].ID)

	rec = env.do(t, http.MethodGet, "/api/v1/favorites/export", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/csv")
	exported := rec.Body.String()
	assert.Contains(t, exported, "bolt,Lightning Bolt,LEA,161,common,4,false,false,382.50,450.00")

	rec = env.do(t, http.MethodDelete, "/api/v1/favorites", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var cleared struct {
		Cleared int `json:"cleared"`
	}
	decodeData(t, rec, &cleared)
	assert.Equal(t, 1, cleared.Cleared)

	rec = env.do(t, http.MethodPost, "/api/v1/favorites/import", "text/csv", exported+"nope,Unknown,X,1,common,1,false,false,,\n")
	require.Equal(t, http.StatusOK, rec.Code)
	var result viewer.ImportResult
	decodeData(t, rec, &result)
	assert.Equal(t, viewer.ImportResult{Imported: 1, Total: 2, NotFound: 1}, result)
	assert.True(t, env.session.IsFavorite("bolt"))

	rec = env.do(t, http.MethodPost, "/api/v1/favorites/import", "text/csv", "id\n")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestClearIgnoredRoute(t *testing.T) {
	env := newTestEnv(t, true)

	env.do(t, http.MethodPut, "/api/v1/cards/bolt/ignored", "", "")
	env.do(t, http.MethodPut, "/api/v1/cards/guide_foil/ignored", "", "")

	rec := env.do(t, http.MethodDelete, "/api/v1/ignored", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var cleared struct {
		Cleared int `json:"cleared"`
	}
	decodeData(t, rec, &cleared)
	assert.Equal(t, 2, cleared.Cleared)
}

func TestNotificationRoutes(t *testing.T) {
	env := newTestEnv(t, false)

	rec := env.do(t, http.MethodGet, "/api/v1/notifications", "", "")
	assert.Equal(t, http.StatusNoContent, rec.Code)

	env.notifier.Info("hello")
	rec = env.do(t, http.MethodGet, "/api/v1/notifications", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var n notify.Notification
	decodeData(t, rec, &n)
	assert.Equal(t, "hello", n.Message)
	assert.NotEmpty(t, n.ID)

	rec = env.do(t, http.MethodDelete, "/api/v1/notifications", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var dismissed map[string]bool
	decodeData(t, rec, &dismissed)
	assert.True(t, dismissed["dismissed"])

	rec = env.do(t, http.MethodGet, "/api/v1/notifications", "", "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestCORSPreflight(t *testing.T) {
	env := newTestEnv(t, false)

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/cards/next", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	req.Header.Set("Access-Control-Request-Method", http.MethodGet)
	rec := httptest.NewRecorder()
	env.server.Handler().ServeHTTP(rec, req)

	assert.Equal(t, "http://localhost:5173", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestServer_StartAndShutdown(t *testing.T) {
	env := newTestEnv(t, true)
	srv := NewServer(&Config{Addr: "127.0.0.1:0"}, env.session, nil)

	require.NoError(t, srv.Start())

	resp, err := http.Get("http://" + srv.Addr() + "/health")
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	assert.NoError(t, srv.Shutdown(ctx))
}
