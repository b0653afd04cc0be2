package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"portfolio-tracker/auth"
	"portfolio-tracker/config"
	"portfolio-tracker/market"
	"portfolio-tracker/models"
	"portfolio-tracker/pkg/logger"
	"portfolio-tracker/repository"
	"portfolio-tracker/testutil"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

type fakeQuotes map[string]float64

func (f fakeQuotes) Quote(_ context.Context, symbol string) (float64, error) {
	if symbol == "DOWN" {
		return 0, assert.AnError
	}
	p, ok := f[symbol]
	if !ok {
		return 0, market.ErrPriceUnavailable
	}
	return p, nil
}

func (f fakeQuotes) CurrentPrice(ctx context.Context, symbol string) (float64, bool) {
	p, err := f.Quote(ctx, symbol)
	return p, err == nil
}

type testServer struct {
	router *gin.Engine
	db     *gorm.DB
}

func newTestServer(t *testing.T, quotes fakeQuotes) *testServer {
	gin.SetMode(gin.TestMode)
	db := testutil.NewDB(t)
	log := logger.Nop()

	users := repository.NewUserRepository(db, log, bcrypt.MinCost)
	positions := repository.NewPositionRepository(db, log)
	symbols := repository.NewSymbolRepository(db, log)
	require.NoError(t, symbols.ReplaceAll(context.Background(), []models.Symbol{
		{Symbol: "ABC.NS", CompanyName: "ABC Industries"},
		{Symbol: "XYZ.NS", CompanyName: "XYZ Motors"},
	}))

	tokens := auth.NewTokenManager(config.Auth{
		JWTSecret:       "test-secret",
		AccessTokenTTL:  time.Hour,
		RefreshTokenTTL: time.Hour,
	}, auth.NewMemoryRefreshStore())

	router := gin.New()
	RegisterRoutes(router, Handlers{
		Auth:      NewAuthHandler(users, tokens, log),
		Portfolio: NewPortfolioHandler(positions, symbols, quotes, log),
		Market:    NewMarketHandler(quotes, symbols, 10, log),
	}, tokens)

	return &testServer{router: router, db: db}
}

func (s *testServer) do(t *testing.T, method, path, token string, body interface{}) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)

	out := map[string]interface{}{}
	if strings.HasPrefix(w.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	}
	return w, out
}

func (s *testServer) login(t *testing.T, username string) string {
	t.Helper()
	w, _ := s.do(t, http.MethodPost, "/signup", "", gin.H{"username": username, "email": username + "@example.com", "password": "pw"})
	require.Equal(t, http.StatusCreated, w.Code)

	w, body := s.do(t, http.MethodPost, "/login", "", gin.H{"username": username, "password": "pw"})
	require.Equal(t, http.StatusOK, w.Code)
	return body["access_token"].(string)
}

func TestSignupAndLogin(t *testing.T) {
	s := newTestServer(t, fakeQuotes{})

	w, _ := s.do(t, http.MethodPost, "/signup", "", gin.H{"username": "asha", "email": "asha@example.com", "password": "pw"})
	assert.Equal(t, http.StatusCreated, w.Code)

	w, body := s.do(t, http.MethodPost, "/signup", "", gin.H{"username": "asha", "email": "other@example.com", "password": "pw"})
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, repository.ErrConflict.Error(), body["error"])

	w, _ = s.do(t, http.MethodPost, "/signup", "", gin.H{"username": "ravi", "email": "not-an-email", "password": "pw"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, wrongPassword := s.do(t, http.MethodPost, "/login", "", gin.H{"username": "asha", "password": "nope"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	w, unknownUser := s.do(t, http.MethodPost, "/login", "", gin.H{"username": "ghost", "password": "pw"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, wrongPassword, unknownUser)

	w, tokens := s.do(t, http.MethodPost, "/login", "", gin.H{"username": "asha", "password": "pw"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, tokens["access_token"])
	assert.NotEmpty(t, tokens["refresh_token"])

	w, me := s.do(t, http.MethodGet, "/me", tokens["access_token"].(string), nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "asha", me["username"])
	assert.NotContains(t, me, "password_hash")
}

func TestRefreshAndLogout(t *testing.T) {
	s := newTestServer(t, fakeQuotes{})
	s.login(t, "asha")

	_, tokens := s.do(t, http.MethodPost, "/login", "", gin.H{"username": "asha", "password": "pw"})
	refresh := tokens["refresh_token"].(string)

	w, rotated := s.do(t, http.MethodPost, "/refresh", "", gin.H{"refresh_token": refresh})
	require.Equal(t, http.StatusOK, w.Code)

	w, _ = s.do(t, http.MethodPost, "/refresh", "", gin.H{"refresh_token": refresh})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w, _ = s.do(t, http.MethodPost, "/logout", "", gin.H{"refresh_token": rotated["refresh_token"]})
	assert.Equal(t, http.StatusOK, w.Code)

	w, _ = s.do(t, http.MethodPost, "/refresh", "", gin.H{"refresh_token": rotated["refresh_token"]})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	s := newTestServer(t, fakeQuotes{})

	for _, path := range []string{"/portfolio", "/sales", "/me", "/prices/ABC.NS", "/symbols?q=abc"} {
		w, _ := s.do(t, http.MethodGet, path, "", nil)
		assert.Equal(t, http.StatusUnauthorized, w.Code, path)
	}
}

func TestBuyValueAndSell(t *testing.T) {
	s := newTestServer(t, fakeQuotes{"ABC.NS": 120})
	token := s.login(t, "asha")

	w, body := s.do(t, http.MethodPost, "/stocks", token, gin.H{"symbol": "ABC.NS", "quantity": 10, "purchase_price": 100})
	require.Equal(t, http.StatusCreated, w.Code, body)
	position := body["position"].(map[string]interface{})
	assert.Equal(t, "ABC Industries", position["company_name"])

	w, body = s.do(t, http.MethodGet, "/portfolio", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	summary := body["summary"].(map[string]interface{})
	assert.Equal(t, 1000.0, summary["total_invested"])
	assert.Equal(t, 1200.0, summary["current_value"])
	assert.Equal(t, 200.0, summary["unrealized_pnl"])
	assert.Equal(t, 20.0, summary["return_pct"])

	w, body = s.do(t, http.MethodPost, "/stocks/sell", token, gin.H{"symbol": "ABC.NS", "quantity": 4, "sell_price": 150})
	require.Equal(t, http.StatusOK, w.Code, body)
	assert.Equal(t, 6.0, body["remaining_quantity"])
	assert.Equal(t, 200.0, body["sale"].(map[string]interface{})["pnl"])

	w, body = s.do(t, http.MethodPost, "/stocks/sell", token, gin.H{"symbol": "ABC.NS", "quantity": 7, "sell_price": 150})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, body["error"], "exceeds")

	// Omitted sell price uses the market price.
	w, body = s.do(t, http.MethodPost, "/stocks/sell", token, gin.H{"symbol": "ABC.NS", "quantity": 6})
	require.Equal(t, http.StatusOK, w.Code, body)
	assert.Equal(t, true, body["closed"])
	assert.Equal(t, 120.0, body["sale"].(map[string]interface{})["sell_price"])

	w, body = s.do(t, http.MethodGet, "/sales", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, body["sales"], 2)
	assert.Equal(t, 320.0, body["total_realized"])

	w, body = s.do(t, http.MethodGet, "/portfolio", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, body["positions"])
	assert.Equal(t, 0.0, body["summary"].(map[string]interface{})["return_pct"])
}

func TestPortfolioWithUnavailablePrice(t *testing.T) {
	s := newTestServer(t, fakeQuotes{"ABC.NS": 120})
	token := s.login(t, "asha")

	for _, in := range []gin.H{
		{"symbol": "ABC.NS", "quantity": 10, "purchase_price": 100},
		{"symbol": "XYZ.NS", "quantity": 5, "purchase_price": 40},
	} {
		w, _ := s.do(t, http.MethodPost, "/stocks", token, in)
		require.Equal(t, http.StatusCreated, w.Code)
	}

	w, body := s.do(t, http.MethodGet, "/portfolio", token, nil)
	require.Equal(t, http.StatusOK, w.Code)

	rows := body["positions"].([]interface{})
	require.Len(t, rows, 2)
	xyz := rows[1].(map[string]interface{})
	assert.Equal(t, false, xyz["price_available"])
	assert.Equal(t, -200.0, xyz["unrealized_pnl"])
	assert.Equal(t, 200.0, rows[0].(map[string]interface{})["unrealized_pnl"])
}

func TestAddStockValidation(t *testing.T) {
	s := newTestServer(t, fakeQuotes{})
	token := s.login(t, "asha")

	tests := []struct {
		name string
		body gin.H
	}{
		{name: "zero quantity", body: gin.H{"symbol": "ABC.NS", "quantity": 0, "purchase_price": 1}},
		{name: "negative price", body: gin.H{"symbol": "ABC.NS", "quantity": 1, "purchase_price": -1}},
		{name: "missing symbol", body: gin.H{"quantity": 1, "purchase_price": 1}},
		{name: "bad date", body: gin.H{"symbol": "ABC.NS", "quantity": 1, "purchase_price": 1, "date": "14/03/2025"}},
		{name: "no price and no quote", body: gin.H{"symbol": "ABC.NS", "quantity": 1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, _ := s.do(t, http.MethodPost, "/stocks", token, tt.body)
			assert.Equal(t, http.StatusBadRequest, w.Code)
		})
	}

	var count int64
	require.NoError(t, s.db.Model(&models.Position{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestSellUnknownLot(t *testing.T) {
	s := newTestServer(t, fakeQuotes{})
	token := s.login(t, "asha")

	w, _ := s.do(t, http.MethodPost, "/stocks/sell", token, gin.H{"symbol": "ABC.NS", "quantity": 1, "sell_price": 1})
	assert.Equal(t, http.StatusNotFound, w.Code)

	w, _ = s.do(t, http.MethodPost, "/stocks/sell", token, gin.H{"quantity": 1, "sell_price": 1})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestUsersSeeOnlyTheirLots(t *testing.T) {
	s := newTestServer(t, fakeQuotes{"ABC.NS": 1})
	asha := s.login(t, "asha")
	ravi := s.login(t, "ravi")

	w, body := s.do(t, http.MethodPost, "/stocks", asha, gin.H{"symbol": "ABC.NS", "quantity": 1, "purchase_price": 1})
	require.Equal(t, http.StatusCreated, w.Code)
	lotID := body["position"].(map[string]interface{})["id"]

	w, body = s.do(t, http.MethodGet, "/portfolio", ravi, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, body["positions"])

	w, _ = s.do(t, http.MethodPost, "/stocks/sell", ravi, gin.H{"lot_id": lotID, "quantity": 1, "sell_price": 1})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestGetPortfolioStorageFailure(t *testing.T) {
	s := newTestServer(t, fakeQuotes{})
	token := s.login(t, "asha")

	require.NoError(t, s.db.Migrator().DropTable(&models.Position{}))

	w, body := s.do(t, http.MethodGet, "/portfolio", token, nil)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "Failed to fetch portfolio", body["error"])
	assert.Empty(t, body["positions"])
	assert.NotNil(t, body["summary"])
}

func TestMarketRoutes(t *testing.T) {
	s := newTestServer(t, fakeQuotes{"ABC.NS": 42.5})
	token := s.login(t, "asha")

	w, body := s.do(t, http.MethodGet, "/prices/abc.ns", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 42.5, body["price"])

	w, _ = s.do(t, http.MethodGet, "/prices/NOPE", token, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w, _ = s.do(t, http.MethodGet, "/prices/DOWN", token, nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	w, body = s.do(t, http.MethodGet, "/symbols?q=motors", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	results := body["results"].([]interface{})
	require.Len(t, results, 1)
	assert.Equal(t, "XYZ.NS", results[0].(map[string]interface{})["symbol"])
}

func TestHealth(t *testing.T) {
	s := newTestServer(t, fakeQuotes{})
	w, body := s.do(t, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "healthy", body["status"])
}
