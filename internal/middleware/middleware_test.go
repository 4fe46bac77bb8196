package middleware

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"

	"github.com/spanexx/personal-finance-dashboard-sub009/internal/budget"
	apperrors "github.com/spanexx/personal-finance-dashboard-sub009/internal/errors"
	"github.com/spanexx/personal-finance-dashboard-sub009/internal/metrics"
	"github.com/spanexx/personal-finance-dashboard-sub009/internal/models"
)

const testSecret = "test-secret"

func init() {
	gin.SetMode(gin.TestMode)
}

func serve(r *gin.Engine, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("failed to parse response body: %v (%s)", err, rec.Body.String())
	}
	return body.Error.Code
}

func TestAuthMiddleware(t *testing.T) {
	r := gin.New()
	r.Use(AuthMiddleware(testSecret))
	r.GET("/me", func(c *gin.Context) {
		c.String(http.StatusOK, c.GetString(UserIDKey))
	})

	user := &models.User{Base: models.Base{ID: "0190a8b2-0000-7000-8000-000000000001"}, Email: "a@example.com"}
	valid, err := GenerateToken(user, testSecret, time.Hour)
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}
	expired, _ := GenerateToken(user, testSecret, -time.Minute)
	foreign, _ := GenerateToken(user, "other-secret", time.Hour)

	tests := []struct {
		name       string
		header     string
		wantStatus int
	}{
		{"valid_token", "Bearer " + valid, http.StatusOK},
		{"missing_header", "", http.StatusUnauthorized},
		{"wrong_scheme", "Token " + valid, http.StatusUnauthorized},
		{"expired_token", "Bearer " + expired, http.StatusUnauthorized},
		{"wrong_secret", "Bearer " + foreign, http.StatusUnauthorized},
		{"garbage", "Bearer abc.def.ghi", http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/me", http.NoBody)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := serve(r, req)

			if rec.Code != tt.wantStatus {
				t.Fatalf("expected %d, got %d", tt.wantStatus, rec.Code)
			}
			if tt.wantStatus == http.StatusOK {
				if rec.Body.String() != user.ID {
					t.Errorf("expected user id in context, got %q", rec.Body.String())
				}
				return
			}
			if code := errorCode(t, rec); code != "UNAUTHORIZED" {
				t.Errorf("expected UNAUTHORIZED, got %s", code)
			}
		})
	}
}

func TestErrorHandler(t *testing.T) {
	r := gin.New()
	r.Use(ErrorHandler())
	r.GET("/app", func(c *gin.Context) {
		_ = c.Error(apperrors.Wrap(apperrors.ErrBudgetNotFound, fmt.Errorf("record not found")))
	})
	r.GET("/validation", func(c *gin.Context) {
		_, err := budget.ValidateAllocations(decimal.NewFromInt(-1), nil)
		_ = c.Error(err)
	})
	r.GET("/plain", func(c *gin.Context) {
		_ = c.Error(errors.New("db exploded"))
	})

	cases := []struct {
		path       string
		wantStatus int
		wantCode   string
	}{
		{"/app", http.StatusNotFound, "BUDGET_NOT_FOUND"},
		{"/validation", http.StatusUnprocessableEntity, "BUDGET_VALIDATION"},
		{"/plain", http.StatusInternalServerError, "INTERNAL_ERROR"},
	}
	for _, tc := range cases {
		t.Run(tc.path, func(t *testing.T) {
			rec := serve(r, httptest.NewRequest(http.MethodGet, tc.path, http.NoBody))
			if rec.Code != tc.wantStatus {
				t.Errorf("expected %d, got %d", tc.wantStatus, rec.Code)
			}
			if code := errorCode(t, rec); code != tc.wantCode {
				t.Errorf("expected %s, got %s", tc.wantCode, code)
			}
		})
	}
}

func TestRecovery(t *testing.T) {
	r := gin.New()
	r.Use(Recovery())
	r.GET("/panic", func(c *gin.Context) { panic("boom") })

	rec := serve(r, httptest.NewRequest(http.MethodGet, "/panic", http.NoBody))
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
	if code := errorCode(t, rec); code != "INTERNAL_ERROR" {
		t.Errorf("expected INTERNAL_ERROR, got %s", code)
	}
}

func TestRequestLogging(t *testing.T) {
	r := gin.New()
	r.Use(RequestLogging())
	r.GET("/", func(c *gin.Context) { c.String(http.StatusOK, c.GetString(RequestIDKey)) })

	t.Run("generates an id", func(t *testing.T) {
		rec := serve(r, httptest.NewRequest(http.MethodGet, "/", http.NoBody))
		id := rec.Header().Get("X-Request-ID")
		if id == "" || id != rec.Body.String() {
			t.Errorf("expected matching request id, header %q body %q", id, rec.Body.String())
		}
	})

	t.Run("keeps a valid client id", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", http.NoBody)
		req.Header.Set("X-Request-ID", "0190a8b2-0000-7000-8000-0000000000aa")
		rec := serve(r, req)
		if got := rec.Header().Get("X-Request-ID"); got != "0190a8b2-0000-7000-8000-0000000000aa" {
			t.Errorf("expected client id to be kept, got %q", got)
		}
	})

	t.Run("replaces a malformed client id", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", http.NoBody)
		req.Header.Set("X-Request-ID", "<script>")
		rec := serve(r, req)
		if got := rec.Header().Get("X-Request-ID"); got == "<script>" {
			t.Error("expected malformed id to be replaced")
		}
	})
}

func TestRateLimiter(t *testing.T) {
	rl := NewRateLimiter(1, 2, metrics.New(prometheus.NewRegistry()))
	r := gin.New()
	r.Use(rl.Middleware())
	r.GET("/x", func(c *gin.Context) { c.Status(http.StatusOK) })

	req := func(ip string) *httptest.ResponseRecorder {
		rq := httptest.NewRequest(http.MethodGet, "/x", http.NoBody)
		rq.RemoteAddr = ip + ":1234"
		return serve(r, rq)
	}

	for i := 0; i < 2; i++ {
		if rec := req("10.0.0.1"); rec.Code != http.StatusOK {
			t.Fatalf("request %d: expected 200, got %d", i, rec.Code)
		}
	}
	rec := req("10.0.0.1")
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", rec.Code)
	}
	if code := errorCode(t, rec); code != "RATE_LIMITED" {
		t.Errorf("expected RATE_LIMITED, got %s", code)
	}
	if rec := req("10.0.0.2"); rec.Code != http.StatusOK {
		t.Errorf("other clients should not be limited, got %d", rec.Code)
	}

	t.Run("evicts idle visitors", func(t *testing.T) {
		rl.now = func() time.Time { return time.Now().Add(visitorTTL + time.Minute) }
		rl.evict()
		if n := rl.size(); n != 0 {
			t.Errorf("expected no visitors after eviction, got %d", n)
		}
	})

	t.Run("zero rate disables limiting", func(t *testing.T) {
		open := gin.New()
		open.Use(NewRateLimiter(0, 1, nil).Middleware())
		open.GET("/x", func(c *gin.Context) { c.Status(http.StatusOK) })
		for i := 0; i < 5; i++ {
			if rec := serve(open, httptest.NewRequest(http.MethodGet, "/x", http.NoBody)); rec.Code != http.StatusOK {
				t.Fatalf("expected 200, got %d", rec.Code)
			}
		}
	})
}

func TestHTTPMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	rec := metrics.New(reg)

	r := gin.New()
	r.Use(HTTPMetrics(rec))
	r.GET("/budgets/:id", func(c *gin.Context) { c.Status(http.StatusOK) })

	serve(r, httptest.NewRequest(http.MethodGet, "/budgets/1", http.NoBody))
	serve(r, httptest.NewRequest(http.MethodGet, "/budgets/2", http.NoBody))

	n, err := testutil.GatherAndCount(reg, "http_requests_total")
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	if n != 1 {
		t.Errorf("expected one series for the route template, got %d", n)
	}
}

func TestMetricsAuth(t *testing.T) {
	tests := []struct {
		name       string
		configured string
		sent       string
		wantStatus int
	}{
		{"open_when_unset", "", "", http.StatusOK},
		{"valid_key", "scrape-key", "scrape-key", http.StatusOK},
		{"wrong_key", "scrape-key", "nope", http.StatusUnauthorized},
		{"missing_key", "scrape-key", "", http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := gin.New()
			r.GET("/metrics", MetricsAuth(tt.configured), func(c *gin.Context) { c.Status(http.StatusOK) })

			req := httptest.NewRequest(http.MethodGet, "/metrics", http.NoBody)
			if tt.sent != "" {
				req.Header.Set("X-API-Key", tt.sent)
			}
			if rec := serve(r, req); rec.Code != tt.wantStatus {
				t.Errorf("expected %d, got %d", tt.wantStatus, rec.Code)
			}
		})
	}
}

func TestCORS(t *testing.T) {
	r := gin.New()
	r.Use(CORS([]string{"https://app.example"}))
	r.GET("/x", func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest(http.MethodOptions, "/x", http.NoBody)
	req.Header.Set("Origin", "https://app.example")
	rec := serve(r, req)
	if rec.Code != http.StatusNoContent {
		t.Errorf("expected 204 for preflight, got %d", rec.Code)
	}
	if rec.Header().Get("Access-Control-Allow-Origin") != "https://app.example" {
		t.Error("expected allowed origin to be echoed")
	}

	req = httptest.NewRequest(http.MethodGet, "/x", http.NoBody)
	req.Header.Set("Origin", "https://evil.example")
	rec = serve(r, req)
	if rec.Header().Get("Access-Control-Allow-Origin") != "" {
		t.Error("unexpected CORS header for unknown origin")
	}
}
