package router

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/quickbite/internal/config"
	"github.com/quickbite/internal/service"

	"github.com/gin-gonic/gin"
)

func TestResolveAllowedOrigin(t *testing.T) {
	got := resolveAllowedOrigin("https://example.com", []string{"*"}, false)
	if got != "*" {
		t.Fatalf("wildcard without credentials should return *, got %s", got)
	}

	got = resolveAllowedOrigin("https://example.com", []string{"*"}, true)
	if got != "https://example.com" {
		t.Fatalf("wildcard with credentials should echo origin, got %s", got)
	}

	got = resolveAllowedOrigin("https://a.example.com", []string{"https://a.example.com", "https://b.example.com"}, false)
	if got != "https://a.example.com" {
		t.Fatalf("allow-list should return matched origin, got %s", got)
	}

	got = resolveAllowedOrigin("https://x.example.com", []string{"https://a.example.com"}, false)
	if got != "" {
		t.Fatalf("unmatched origin should be empty, got %s", got)
	}
}

func TestRequestIDMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)

	r := gin.New()
	r.Use(RequestIDMiddleware())
	r.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"request_id": getRequestID(c)})
	})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set(requestIDHeader, "req-123")
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status want 200 got %d", w.Code)
	}
	if w.Header().Get(requestIDHeader) != "req-123" {
		t.Fatalf("response request id want req-123 got %s", w.Header().Get(requestIDHeader))
	}
	var resp map[string]string
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal response failed: %v", err)
	}
	if resp["request_id"] != "req-123" {
		t.Fatalf("context request id want req-123 got %s", resp["request_id"])
	}

	w2 := httptest.NewRecorder()
	req2 := httptest.NewRequest(http.MethodGet, "/ping", nil)
	r.ServeHTTP(w2, req2)
	generated := w2.Header().Get(requestIDHeader)
	if generated == "" {
		t.Fatalf("generated request id should not be empty")
	}
	if resp := strings.TrimSpace(generated); resp == "" {
		t.Fatalf("generated request id should not be blank")
	}
}

func newUserAuthEngine(cfg config.JWTConfig, allowQueryToken bool) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(UserJWTAuthMiddleware(cfg, allowQueryToken))
	r.GET("/me", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"user_id": c.GetUint("user_id")})
	})
	return r
}

func decodeReason(t *testing.T, body []byte) (int, string) {
	t.Helper()
	var resp struct {
		StatusCode int    `json:"status_code"`
		Code       string `json:"code"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		t.Fatalf("unmarshal response failed: %v", err)
	}
	return resp.StatusCode, resp.Code
}

func TestUserJWTAuthMiddlewareMissingSecret(t *testing.T) {
	r := newUserAuthEngine(config.JWTConfig{}, false)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	r.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status want 401 got %d", w.Code)
	}
	statusCode, reason := decodeReason(t, w.Body.Bytes())
	if statusCode != 401 || reason != "jwt_secret_missing" {
		t.Fatalf("unexpected envelope: %d %s", statusCode, reason)
	}
}

func TestUserJWTAuthMiddlewareBearerToken(t *testing.T) {
	cfg := config.JWTConfig{SecretKey: "router-secret", Issuer: "quickbite"}
	r := newUserAuthEngine(cfg, false)
	token, _, err := service.GenerateUserJWT(cfg.SecretKey, cfg.Issuer, 42, time.Hour)
	if err != nil {
		t.Fatalf("generate token failed: %v", err)
	}

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("status want 200 got %d: %s", w.Code, w.Body.String())
	}
	var resp struct {
		UserID uint `json:"user_id"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal response failed: %v", err)
	}
	if resp.UserID != 42 {
		t.Fatalf("user id want 42 got %d", resp.UserID)
	}

	cases := map[string]string{
		"malformed header": "Token " + token,
		"bad signature":    "Bearer " + token + "x",
	}
	for name, header := range cases {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/me", nil)
		req.Header.Set("Authorization", header)
		r.ServeHTTP(w, req)
		if w.Code != http.StatusUnauthorized {
			t.Fatalf("%s: status want 401 got %d", name, w.Code)
		}
	}
}

func TestUserJWTAuthMiddlewareQueryToken(t *testing.T) {
	cfg := config.JWTConfig{SecretKey: "router-secret"}
	token, _, err := service.GenerateUserJWT(cfg.SecretKey, "", 7, time.Hour)
	if err != nil {
		t.Fatalf("generate token failed: %v", err)
	}

	denied := newUserAuthEngine(cfg, false)
	w := httptest.NewRecorder()
	denied.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/me?token="+token, nil))
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("query token should be rejected, got %d", w.Code)
	}
	if _, reason := decodeReason(t, w.Body.Bytes()); reason != "auth_header_invalid" {
		t.Fatalf("reason want auth_header_invalid got %s", reason)
	}

	allowed := newUserAuthEngine(cfg, true)
	w = httptest.NewRecorder()
	allowed.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/me?token="+token, nil))
	if w.Code != http.StatusOK {
		t.Fatalf("query token should be accepted, got %d", w.Code)
	}
}
