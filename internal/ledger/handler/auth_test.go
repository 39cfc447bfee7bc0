package handler_test

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"

	"github.com/veriledger/veriledger/internal/chain"
	"github.com/veriledger/veriledger/internal/ledger/handler"
)

var authSecret = []byte("test-secret")

func setupAuthRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	r := gin.New()
	svc := chain.NewService(chain.NewMemoryStore(), zap.NewNop())
	h := handler.NewLedgerHandler(svc, zap.NewNop())
	h.SetAuthMiddleware(handler.RequireBearer(authSecret))
	v1 := r.Group("/api/v1")
	h.Register(v1)
	return r
}

func signToken(t *testing.T, secret []byte, claims jwt.MapClaims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	s, err := token.SignedString(secret)
	if err != nil {
		t.Fatal(err)
	}
	return s
}

func postWithToken(t *testing.T, router *gin.Engine, token string) *httptest.ResponseRecorder {
	t.Helper()
	body := `{"event_type": "x", "event_data": {"a": 1}}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/ledger/t1/events", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestRequireBearer_missingToken(t *testing.T) {
	router := setupAuthRouter(t)

	if w := postWithToken(t, router, ""); w.Code != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", w.Code)
	}
}

func TestRequireBearer_validToken(t *testing.T) {
	router := setupAuthRouter(t)

	token := signToken(t, authSecret, jwt.MapClaims{
		"sub": "workflow-service",
		"exp": time.Now().Add(time.Hour).Unix(),
	})
	if w := postWithToken(t, router, token); w.Code != http.StatusCreated {
		t.Errorf("expected 201, got %d: %s", w.Code, w.Body.String())
	}
}

func TestRequireBearer_wrongSecret(t *testing.T) {
	router := setupAuthRouter(t)

	token := signToken(t, []byte("other-secret"), jwt.MapClaims{
		"exp": time.Now().Add(time.Hour).Unix(),
	})
	if w := postWithToken(t, router, token); w.Code != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", w.Code)
	}
}

func TestRequireBearer_expiredToken(t *testing.T) {
	router := setupAuthRouter(t)

	token := signToken(t, authSecret, jwt.MapClaims{
		"exp": time.Now().Add(-time.Hour).Unix(),
	})
	if w := postWithToken(t, router, token); w.Code != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", w.Code)
	}
}

func TestRequireBearer_tenantClaimMismatch(t *testing.T) {
	router := setupAuthRouter(t)

	token := signToken(t, authSecret, jwt.MapClaims{
		"tenant_id": "someone-else",
		"exp":       time.Now().Add(time.Hour).Unix(),
	})
	if w := postWithToken(t, router, token); w.Code != http.StatusForbidden {
		t.Errorf("expected 403, got %d", w.Code)
	}

	token = signToken(t, authSecret, jwt.MapClaims{
		"tenant_id": "t1",
		"exp":       time.Now().Add(time.Hour).Unix(),
	})
	if w := postWithToken(t, router, token); w.Code != http.StatusCreated {
		t.Errorf("matching tenant claim: expected 201, got %d", w.Code)
	}
}

func TestRequireBearer_readsStayOpen(t *testing.T) {
	router := setupAuthRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/ledger/t1/verify", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Errorf("verify without token: expected 200, got %d", w.Code)
	}
}
