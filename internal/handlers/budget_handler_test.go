package handlers

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/spanexx/personal-finance-dashboard-sub009/internal/budget"
	apperrors "github.com/spanexx/personal-finance-dashboard-sub009/internal/errors"
	"github.com/spanexx/personal-finance-dashboard-sub009/internal/models"
	"github.com/spanexx/personal-finance-dashboard-sub009/internal/pagination"
	"github.com/spanexx/personal-finance-dashboard-sub009/internal/services"
)

const testBudgetID = "0190d4c2-8a6e-7c3b-9f1a-2b3c4d5e6f73"

// --- mock budget service ---

type mockBudgetService struct {
	createBudgetFn       func(userID string, in services.CreateBudgetInput) (*models.Budget, *budget.AllocationCheck, error)
	getUserBudgetsFn     func(userID string, page pagination.PageRequest, filter services.BudgetFilter) (*pagination.PageResponse[models.Budget], error)
	getBudgetByIDFn      func(userID, budgetID string) (*models.Budget, error)
	updateBudgetFn       func(userID, budgetID string, in services.UpdateBudgetInput) (*models.Budget, error)
	deactivateBudgetFn   func(userID, budgetID string) error
	setAllocationFn      func(userID, budgetID, categoryID string, amount decimal.Decimal) (*models.BudgetAllocation, error)
	removeAllocationFn   func(userID, budgetID, categoryID string) error
	validateBudgetFn     func(userID, budgetID string) (*budget.AllocationCheck, error)
	analyzeBudgetFn      func(userID, budgetID string, at time.Time) (*budget.Report, error)
	createFromTemplateFn func(userID, templateID, name string, start time.Time) (*models.Budget, error)
	rollForwardFn        func(userID, budgetID string) (*models.Budget, error)
}

func (m *mockBudgetService) CreateBudget(_ context.Context, userID string, in services.CreateBudgetInput) (*models.Budget, *budget.AllocationCheck, error) {
	if m.createBudgetFn != nil {
		return m.createBudgetFn(userID, in)
	}
	return &models.Budget{}, &budget.AllocationCheck{Valid: true}, nil
}

func (m *mockBudgetService) GetUserBudgets(userID string, page pagination.PageRequest, filter services.BudgetFilter) (*pagination.PageResponse[models.Budget], error) {
	if m.getUserBudgetsFn != nil {
		return m.getUserBudgetsFn(userID, page, filter)
	}
	resp := pagination.NewPageResponse([]models.Budget{}, 1, 20, 0)
	return &resp, nil
}

func (m *mockBudgetService) GetBudgetByID(userID, budgetID string) (*models.Budget, error) {
	if m.getBudgetByIDFn != nil {
		return m.getBudgetByIDFn(userID, budgetID)
	}
	return &models.Budget{}, nil
}

func (m *mockBudgetService) UpdateBudget(_ context.Context, userID, budgetID string, in services.UpdateBudgetInput) (*models.Budget, error) {
	if m.updateBudgetFn != nil {
		return m.updateBudgetFn(userID, budgetID, in)
	}
	return &models.Budget{}, nil
}

func (m *mockBudgetService) DeactivateBudget(_ context.Context, userID, budgetID string) error {
	if m.deactivateBudgetFn != nil {
		return m.deactivateBudgetFn(userID, budgetID)
	}
	return nil
}

func (m *mockBudgetService) SetAllocation(_ context.Context, userID, budgetID, categoryID string, amount decimal.Decimal) (*models.BudgetAllocation, error) {
	if m.setAllocationFn != nil {
		return m.setAllocationFn(userID, budgetID, categoryID, amount)
	}
	return &models.BudgetAllocation{}, nil
}

func (m *mockBudgetService) RemoveAllocation(_ context.Context, userID, budgetID, categoryID string) error {
	if m.removeAllocationFn != nil {
		return m.removeAllocationFn(userID, budgetID, categoryID)
	}
	return nil
}

func (m *mockBudgetService) ValidateBudget(_ context.Context, userID, budgetID string) (*budget.AllocationCheck, error) {
	if m.validateBudgetFn != nil {
		return m.validateBudgetFn(userID, budgetID)
	}
	return &budget.AllocationCheck{Valid: true}, nil
}

func (m *mockBudgetService) AnalyzeBudget(_ context.Context, userID, budgetID string, at time.Time) (*budget.Report, error) {
	if m.analyzeBudgetFn != nil {
		return m.analyzeBudgetFn(userID, budgetID, at)
	}
	return &budget.Report{}, nil
}

func (m *mockBudgetService) CreateFromTemplate(_ context.Context, userID, templateID, name string, start time.Time) (*models.Budget, error) {
	if m.createFromTemplateFn != nil {
		return m.createFromTemplateFn(userID, templateID, name, start)
	}
	return &models.Budget{}, nil
}

func (m *mockBudgetService) RollForward(_ context.Context, userID, budgetID string) (*models.Budget, error) {
	if m.rollForwardFn != nil {
		return m.rollForwardFn(userID, budgetID)
	}
	return &models.Budget{}, nil
}

var _ services.BudgetServicer = (*mockBudgetService)(nil)

func setupBudgetRouter(handler *BudgetHandler) *gin.Engine {
	r := gin.New()
	auth := r.Group("", injectUserID(testUserID))
	auth.POST("/budgets", handler.CreateBudget)
	auth.GET("/budgets", handler.GetBudgets)
	auth.POST("/budgets/from-template/:id", handler.CreateFromTemplate)
	auth.GET("/budgets/:id", handler.GetBudget)
	auth.PUT("/budgets/:id", handler.UpdateBudget)
	auth.DELETE("/budgets/:id", handler.DeactivateBudget)
	auth.POST("/budgets/:id/allocations", handler.SetAllocation)
	auth.DELETE("/budgets/:id/allocations/:categoryId", handler.RemoveAllocation)
	auth.GET("/budgets/:id/validate", handler.ValidateBudget)
	auth.GET("/budgets/:id/analysis", handler.GetAnalysis)
	auth.POST("/budgets/:id/roll-forward", handler.RollForward)
	return r
}

func TestBudgetHandler_CreateBudget(t *testing.T) {
	t.Run("returns 201 with allocation warnings", func(t *testing.T) {
		var got services.CreateBudgetInput
		svc := &mockBudgetService{
			createBudgetFn: func(_ string, in services.CreateBudgetInput) (*models.Budget, *budget.AllocationCheck, error) {
				got = in
				return &models.Budget{Base: models.Base{ID: testBudgetID}, Name: in.Name},
					&budget.AllocationCheck{Valid: false, Warnings: []string{"short"}}, nil
			},
		}
		audit := &mockAuditService{}
		r := setupBudgetRouter(NewBudgetHandler(svc, audit))

		rec := doRequest(r, "POST", "/budgets", `{
			"name":"January","total_amount":"1000","period":"monthly","start_date":"2024-01-01",
			"allocations":[{"category_id":"`+testCategoryID+`","amount":"800.50"}]
		}`)

		if rec.Code != http.StatusCreated {
			t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
		}
		if !got.TotalAmount.Equal(decimal.NewFromInt(1000)) || got.Period != budget.PeriodMonthly || got.EndDate != nil {
			t.Errorf("unexpected input %+v", got)
		}
		if len(got.Allocations) != 1 || !got.Allocations[0].Amount.Equal(decimal.RequireFromString("800.5")) {
			t.Errorf("unexpected allocations %+v", got.Allocations)
		}
		check := parseJSON(t, rec)["allocation_check"].(map[string]interface{})
		if check["valid"] != false {
			t.Errorf("expected invalid check, got %v", check)
		}
		if len(audit.entries) != 1 || audit.entries[0].action != services.AuditCreateBudget {
			t.Errorf("unexpected audit entries %+v", audit.entries)
		}
	})

	t.Run("returns 400 on unknown period", func(t *testing.T) {
		r := setupBudgetRouter(NewBudgetHandler(&mockBudgetService{}, &mockAuditService{}))

		rec := doRequest(r, "POST", "/budgets", `{"name":"B","total_amount":"1","period":"fortnightly","start_date":"2024-01-01"}`)

		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", rec.Code)
		}
	})

	t.Run("returns 400 on bad allocation category", func(t *testing.T) {
		r := setupBudgetRouter(NewBudgetHandler(&mockBudgetService{}, &mockAuditService{}))

		rec := doRequest(r, "POST", "/budgets", `{"name":"B","total_amount":"1","period":"monthly","start_date":"2024-01-01",
			"allocations":[{"category_id":"rent","amount":"1"}]}`)

		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", rec.Code)
		}
	})

	t.Run("returns 422 on huge exponent", func(t *testing.T) {
		r := setupBudgetRouter(NewBudgetHandler(&mockBudgetService{}, &mockAuditService{}))

		rec := doRequest(r, "POST", "/budgets", `{"name":"B","total_amount":"1e300000000","period":"monthly","start_date":"2024-01-01"}`)

		if rec.Code != http.StatusUnprocessableEntity {
			t.Fatalf("expected 422, got %d: %s", rec.Code, rec.Body.String())
		}
		assertErrorCode(t, parseJSON(t, rec), "BUDGET_VALIDATION")
	})

	t.Run("returns 422 on malformed amount", func(t *testing.T) {
		r := setupBudgetRouter(NewBudgetHandler(&mockBudgetService{}, &mockAuditService{}))

		rec := doRequest(r, "POST", "/budgets", `{"name":"B","total_amount":"NaN","period":"monthly","start_date":"2024-01-01"}`)

		if rec.Code != http.StatusUnprocessableEntity {
			t.Fatalf("expected 422, got %d: %s", rec.Code, rec.Body.String())
		}
		assertErrorCode(t, parseJSON(t, rec), "BUDGET_VALIDATION")
	})

	t.Run("maps core validation errors to 422", func(t *testing.T) {
		svc := &mockBudgetService{
			createBudgetFn: func(string, services.CreateBudgetInput) (*models.Budget, *budget.AllocationCheck, error) {
				return nil, nil, &budget.ValidationError{Field: "allocations[0].allocated", Reason: "must not be negative"}
			},
		}
		r := setupBudgetRouter(NewBudgetHandler(svc, &mockAuditService{}))

		rec := doRequest(r, "POST", "/budgets", `{"name":"B","total_amount":"1","period":"monthly","start_date":"2024-01-01"}`)

		if rec.Code != http.StatusUnprocessableEntity {
			t.Fatalf("expected 422, got %d", rec.Code)
		}
		errObj := parseJSON(t, rec)["error"].(map[string]interface{})
		if errObj["message"] != "invalid allocations[0].allocated: must not be negative" {
			t.Errorf("unexpected message %v", errObj["message"])
		}
	})
}

func TestBudgetHandler_GetBudgets(t *testing.T) {
	t.Run("parses filters", func(t *testing.T) {
		var got services.BudgetFilter
		svc := &mockBudgetService{
			getUserBudgetsFn: func(_ string, _ pagination.PageRequest, filter services.BudgetFilter) (*pagination.PageResponse[models.Budget], error) {
				got = filter
				resp := pagination.NewPageResponse([]models.Budget{}, 1, 20, 0)
				return &resp, nil
			},
		}
		r := setupBudgetRouter(NewBudgetHandler(svc, &mockAuditService{}))

		rec := doRequest(r, "GET", "/budgets?is_active=true&period=quarterly&template=false", "")

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		if got.IsActive == nil || !*got.IsActive || got.Period == nil || *got.Period != budget.PeriodQuarterly {
			t.Errorf("unexpected filter %+v", got)
		}
		if got.Template == nil || *got.Template {
			t.Error("expected template=false")
		}
	})

	t.Run("rejects bad filters", func(t *testing.T) {
		r := setupBudgetRouter(NewBudgetHandler(&mockBudgetService{}, &mockAuditService{}))

		for _, q := range []string{"is_active=yes", "period=hourly", "template=1"} {
			rec := doRequest(r, "GET", "/budgets?"+q, "")
			if rec.Code != http.StatusBadRequest {
				t.Errorf("%s: expected 400, got %d", q, rec.Code)
			}
		}
	})
}

func TestBudgetHandler_UpdateBudget(t *testing.T) {
	t.Run("returns 409 when inactive", func(t *testing.T) {
		svc := &mockBudgetService{
			updateBudgetFn: func(_, _ string, _ services.UpdateBudgetInput) (*models.Budget, error) {
				return nil, apperrors.ErrBudgetInactive
			},
		}
		r := setupBudgetRouter(NewBudgetHandler(svc, &mockAuditService{}))

		rec := doRequest(r, "PUT", "/budgets/"+testBudgetID, `{"total_amount":"1200"}`)

		if rec.Code != http.StatusConflict {
			t.Fatalf("expected 409, got %d", rec.Code)
		}
		assertErrorCode(t, parseJSON(t, rec), "BUDGET_INACTIVE")
	})

	t.Run("passes optional fields", func(t *testing.T) {
		var got services.UpdateBudgetInput
		svc := &mockBudgetService{
			updateBudgetFn: func(_, _ string, in services.UpdateBudgetInput) (*models.Budget, error) {
				got = in
				return &models.Budget{}, nil
			},
		}
		r := setupBudgetRouter(NewBudgetHandler(svc, &mockAuditService{}))

		rec := doRequest(r, "PUT", "/budgets/"+testBudgetID, `{"total_amount":"1200.25","rollover_enabled":true}`)

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		if got.TotalAmount == nil || got.TotalAmount.String() != "1200.25" || got.RolloverEnabled == nil || !*got.RolloverEnabled {
			t.Errorf("unexpected input %+v", got)
		}
		if got.EndDate != nil || got.Name != "" {
			t.Errorf("expected untouched fields to stay nil, got %+v", got)
		}
	})
}

func TestBudgetHandler_DeactivateBudget(t *testing.T) {
	t.Run("returns 400 on invalid id", func(t *testing.T) {
		r := setupBudgetRouter(NewBudgetHandler(&mockBudgetService{}, &mockAuditService{}))

		rec := doRequest(r, "DELETE", "/budgets/17", "")

		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", rec.Code)
		}
	})

	t.Run("returns 200 and audits", func(t *testing.T) {
		audit := &mockAuditService{}
		r := setupBudgetRouter(NewBudgetHandler(&mockBudgetService{}, audit))

		rec := doRequest(r, "DELETE", "/budgets/"+testBudgetID, "")

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		if len(audit.entries) != 1 || audit.entries[0].action != services.AuditDeactivateBudget {
			t.Errorf("unexpected audit entries %+v", audit.entries)
		}
	})
}

func TestBudgetHandler_Allocations(t *testing.T) {
	t.Run("set allocation", func(t *testing.T) {
		var gotCategory string
		var gotAmount decimal.Decimal
		svc := &mockBudgetService{
			setAllocationFn: func(_, _, categoryID string, amount decimal.Decimal) (*models.BudgetAllocation, error) {
				gotCategory, gotAmount = categoryID, amount
				return &models.BudgetAllocation{CategoryID: categoryID, Amount: amount}, nil
			},
		}
		r := setupBudgetRouter(NewBudgetHandler(svc, &mockAuditService{}))

		rec := doRequest(r, "POST", "/budgets/"+testBudgetID+"/allocations",
			`{"category_id":"`+testCategoryID+`","amount":"250"}`)

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
		}
		if gotCategory != testCategoryID || !gotAmount.Equal(decimal.NewFromInt(250)) {
			t.Errorf("unexpected call %s %s", gotCategory, gotAmount)
		}
	})

	t.Run("remove missing allocation", func(t *testing.T) {
		svc := &mockBudgetService{
			removeAllocationFn: func(_, _, _ string) error { return apperrors.ErrAllocationNotFound },
		}
		r := setupBudgetRouter(NewBudgetHandler(svc, &mockAuditService{}))

		rec := doRequest(r, "DELETE", "/budgets/"+testBudgetID+"/allocations/"+testCategoryID, "")

		if rec.Code != http.StatusNotFound {
			t.Fatalf("expected 404, got %d", rec.Code)
		}
		assertErrorCode(t, parseJSON(t, rec), "ALLOCATION_NOT_FOUND")
	})

	t.Run("validate", func(t *testing.T) {
		svc := &mockBudgetService{
			validateBudgetFn: func(_, _ string) (*budget.AllocationCheck, error) {
				return &budget.AllocationCheck{Valid: false, Difference: decimal.NewFromInt(200)}, nil
			},
		}
		r := setupBudgetRouter(NewBudgetHandler(svc, &mockAuditService{}))

		rec := doRequest(r, "GET", "/budgets/"+testBudgetID+"/validate", "")

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		check := parseJSON(t, rec)["allocation_check"].(map[string]interface{})
		if check["difference"] != "200" {
			t.Errorf("expected difference \"200\", got %v", check["difference"])
		}
	})
}

func TestBudgetHandler_GetAnalysis(t *testing.T) {
	t.Run("passes the analysis time", func(t *testing.T) {
		var gotAt time.Time
		svc := &mockBudgetService{
			analyzeBudgetFn: func(_, _ string, at time.Time) (*budget.Report, error) {
				gotAt = at
				return &budget.Report{
					AsOf: at,
					Categories: []budget.CategoryAnalysis{{
						CategoryID:  testCategoryID,
						Budgeted:    decimal.NewFromInt(200),
						Spent:       decimal.NewFromInt(250),
						Remaining:   decimal.NewFromInt(-50),
						Utilization: decimal.NewFromInt(125),
						Status:      budget.StatusOver,
					}},
					Rollup: budget.Rollup{StatusCounts: budget.StatusCounts{Over: 1}},
				}, nil
			},
		}
		r := setupBudgetRouter(NewBudgetHandler(svc, &mockAuditService{}))

		rec := doRequest(r, "GET", "/budgets/"+testBudgetID+"/analysis?at=2024-01-16T00:00:00Z", "")

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
		}
		if !gotAt.Equal(time.Date(2024, time.January, 16, 0, 0, 0, 0, time.UTC)) {
			t.Errorf("unexpected at %v", gotAt)
		}
		analysis := parseJSON(t, rec)["analysis"].(map[string]interface{})
		row := analysis["categories"].([]interface{})[0].(map[string]interface{})
		if row["status"] != "over" || row["utilization_percentage"] != "125" {
			t.Errorf("unexpected row %v", row)
		}
	})

	t.Run("defaults to now", func(t *testing.T) {
		var gotAt time.Time
		svc := &mockBudgetService{
			analyzeBudgetFn: func(_, _ string, at time.Time) (*budget.Report, error) {
				gotAt = at
				return &budget.Report{}, nil
			},
		}
		r := setupBudgetRouter(NewBudgetHandler(svc, &mockAuditService{}))

		rec := doRequest(r, "GET", "/budgets/"+testBudgetID+"/analysis", "")

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		if !gotAt.IsZero() {
			t.Errorf("expected zero time for the service to default, got %v", gotAt)
		}
	})

	t.Run("returns 400 on bad time", func(t *testing.T) {
		r := setupBudgetRouter(NewBudgetHandler(&mockBudgetService{}, &mockAuditService{}))

		rec := doRequest(r, "GET", "/budgets/"+testBudgetID+"/analysis?at=soon", "")

		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", rec.Code)
		}
	})
}

func TestBudgetHandler_Templates(t *testing.T) {
	t.Run("from template with empty body", func(t *testing.T) {
		var gotName string
		var gotStart time.Time
		svc := &mockBudgetService{
			createFromTemplateFn: func(_, _, name string, start time.Time) (*models.Budget, error) {
				gotName, gotStart = name, start
				return &models.Budget{Base: models.Base{ID: testBudgetID}}, nil
			},
		}
		r := setupBudgetRouter(NewBudgetHandler(svc, &mockAuditService{}))

		rec := doRequest(r, "POST", "/budgets/from-template/"+testBudgetID, "")

		if rec.Code != http.StatusCreated {
			t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
		}
		if gotName != "" || !gotStart.IsZero() {
			t.Errorf("expected defaults, got %q %v", gotName, gotStart)
		}
	})

	t.Run("from template with start date", func(t *testing.T) {
		var gotStart time.Time
		svc := &mockBudgetService{
			createFromTemplateFn: func(_, _, _ string, start time.Time) (*models.Budget, error) {
				gotStart = start
				return &models.Budget{}, nil
			},
		}
		r := setupBudgetRouter(NewBudgetHandler(svc, &mockAuditService{}))

		rec := doRequest(r, "POST", "/budgets/from-template/"+testBudgetID, `{"name":"Q2","start_date":"2024-04-01"}`)

		if rec.Code != http.StatusCreated {
			t.Fatalf("expected 201, got %d", rec.Code)
		}
		if gotStart.Month() != time.April {
			t.Errorf("unexpected start %v", gotStart)
		}
	})

	t.Run("missing template", func(t *testing.T) {
		svc := &mockBudgetService{
			createFromTemplateFn: func(_, _, _ string, _ time.Time) (*models.Budget, error) {
				return nil, apperrors.ErrTemplateNotFound
			},
		}
		r := setupBudgetRouter(NewBudgetHandler(svc, &mockAuditService{}))

		rec := doRequest(r, "POST", "/budgets/from-template/"+testBudgetID, "")

		if rec.Code != http.StatusNotFound {
			t.Fatalf("expected 404, got %d", rec.Code)
		}
	})
}

func TestBudgetHandler_RollForward(t *testing.T) {
	t.Run("returns 201 and audits the carry", func(t *testing.T) {
		nextID := "0190d4c2-8a6e-7c3b-9f1a-2b3c4d5e6f74"
		svc := &mockBudgetService{
			rollForwardFn: func(_, _ string) (*models.Budget, error) {
				return &models.Budget{
					Base: models.Base{ID: nextID},
					Allocations: []models.BudgetAllocation{
						{CategoryID: "a", Rollover: decimal.NewNullDecimal(decimal.NewFromInt(30))},
						{CategoryID: "b", Rollover: decimal.NewNullDecimal(decimal.NewFromInt(-90))},
					},
				}, nil
			},
		}
		audit := &mockAuditService{}
		r := setupBudgetRouter(NewBudgetHandler(svc, audit))

		rec := doRequest(r, "POST", "/budgets/"+testBudgetID+"/roll-forward", "")

		if rec.Code != http.StatusCreated {
			t.Fatalf("expected 201, got %d", rec.Code)
		}
		if len(audit.entries) != 1 || audit.entries[0].action != services.AuditRollForward {
			t.Errorf("unexpected audit entries %+v", audit.entries)
		}
	})

	t.Run("returns 409 when already rolled", func(t *testing.T) {
		svc := &mockBudgetService{
			rollForwardFn: func(_, _ string) (*models.Budget, error) { return nil, apperrors.ErrBudgetInactive },
		}
		r := setupBudgetRouter(NewBudgetHandler(svc, &mockAuditService{}))

		rec := doRequest(r, "POST", "/budgets/"+testBudgetID+"/roll-forward", "")

		if rec.Code != http.StatusConflict {
			t.Fatalf("expected 409, got %d", rec.Code)
		}
	})
}
