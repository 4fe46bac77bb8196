package integration

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/spanexx/personal-finance-dashboard-sub009/internal/logger"
	"github.com/spanexx/personal-finance-dashboard-sub009/internal/metrics"
	"github.com/spanexx/personal-finance-dashboard-sub009/internal/models"
	"github.com/spanexx/personal-finance-dashboard-sub009/internal/router"
	"github.com/spanexx/personal-finance-dashboard-sub009/internal/services"
	"github.com/spanexx/personal-finance-dashboard-sub009/internal/validator"
)

const testSecret = "integration-secret"

// testApp holds the full application stack for integration tests.
type testApp struct {
	DB     *gorm.DB
	Router *gin.Engine
}

// dbCounter gives each test its own in-memory database.
var dbCounter atomic.Int64

func init() {
	gin.SetMode(gin.TestMode)
	logger.Init("test", "error")
	validator.Register()
}

func setupIsolatedDB(t *testing.T) *gorm.DB {
	t.Helper()

	n := dbCounter.Add(1)
	dsn := fmt.Sprintf("file:itestdb%d?mode=memory&cache=shared", n)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	if err := db.AutoMigrate(models.All()...); err != nil {
		t.Fatalf("failed to migrate test database: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})
	return db
}

// setupApp wires the real services and routes over an isolated sqlite.
func setupApp(t *testing.T) *testApp {
	t.Helper()

	db := setupIsolatedDB(t)
	transactions := services.NewTransactionService(db)

	r := router.New(router.Deps{
		Users:        services.NewUserService(db),
		Categories:   services.NewCategoryService(db),
		Transactions: transactions,
		Budgets:      services.NewBudgetService(db, transactions, metrics.Nop{}),
		Audit:        services.NewAuditService(db),
		JWTSecret:    testSecret,
		JWTTTL:       time.Hour,
	})
	return &testApp{DB: db, Router: r}
}

// request sends an HTTP request through the router and returns the recorder.
func (app *testApp) request(method, path, body, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	app.Router.ServeHTTP(rec, req)
	return rec
}

func parseJSON(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var result map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &result); err != nil {
		t.Fatalf("failed to parse JSON: %v\nbody: %s", err, rec.Body.String())
	}
	return result
}

// mustStatus fails the test unless rec has the expected status, and returns
// the parsed body.
func mustStatus(t *testing.T, rec *httptest.ResponseRecorder, want int) map[string]any {
	t.Helper()
	if rec.Code != want {
		t.Fatalf("expected %d, got %d: %s", want, rec.Code, rec.Body.String())
	}
	return parseJSON(t, rec)
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	errObj, ok := parseJSON(t, rec)["error"].(map[string]any)
	if !ok {
		t.Fatalf("expected error body, got %s", rec.Body.String())
	}
	code, _ := errObj["code"].(string)
	return code
}

// registerUser registers a new user and returns the token and user id.
func (app *testApp) registerUser(t *testing.T, email, password string) (token, userID string) {
	t.Helper()
	body := fmt.Sprintf(`{"email":%q,"password":%q,"first_name":"Test","last_name":"User"}`, email, password)
	result := mustStatus(t, app.request(http.MethodPost, "/api/v1/auth/register", body, ""), http.StatusCreated)
	user := result["user"].(map[string]any)
	return result["token"].(string), user["id"].(string)
}

func (app *testApp) loginUser(t *testing.T, email, password string) string {
	t.Helper()
	body := fmt.Sprintf(`{"email":%q,"password":%q}`, email, password)
	result := mustStatus(t, app.request(http.MethodPost, "/api/v1/auth/login", body, ""), http.StatusOK)
	return result["token"].(string)
}

// createCategory creates a category of type kind and returns its id.
func (app *testApp) createCategory(t *testing.T, token, name, kind string) string {
	t.Helper()
	body := fmt.Sprintf(`{"name":%q,"type":%q}`, name, kind)
	result := mustStatus(t, app.request(http.MethodPost, "/api/v1/categories", body, token), http.StatusCreated)
	return result["category"].(map[string]any)["id"].(string)
}

// spend records an expense on categoryID.
func (app *testApp) spend(t *testing.T, token, categoryID, amount, date string) {
	t.Helper()
	body := fmt.Sprintf(`{"category_id":%q,"type":"expense","amount":%q,"date":%q}`, categoryID, amount, date)
	mustStatus(t, app.request(http.MethodPost, "/api/v1/transactions", body, token), http.StatusCreated)
}
