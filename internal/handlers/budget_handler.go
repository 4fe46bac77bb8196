package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/spanexx/personal-finance-dashboard-sub009/internal/budget"
	apperrors "github.com/spanexx/personal-finance-dashboard-sub009/internal/errors"
	"github.com/spanexx/personal-finance-dashboard-sub009/internal/models"
	"github.com/spanexx/personal-finance-dashboard-sub009/internal/pagination"
	"github.com/spanexx/personal-finance-dashboard-sub009/internal/services"
)

// BudgetHandler handles budget-related requests.
type BudgetHandler struct {
	budgetService services.BudgetServicer
	auditService  services.AuditServicer
}

// NewBudgetHandler creates a new BudgetHandler.
func NewBudgetHandler(budgetService services.BudgetServicer, auditService services.AuditServicer) *BudgetHandler {
	return &BudgetHandler{budgetService: budgetService, auditService: auditService}
}

// AllocationRequest is one category allocation. Amount is a decimal string.
type AllocationRequest struct {
	CategoryID string `json:"category_id" binding:"required,uuid"`
	Amount     string `json:"amount" binding:"required"`
}

// CreateBudgetRequest represents the request payload for creating a budget.
// Dates are RFC3339 or YYYY-MM-DD; end_date defaults to the end of the
// period starting on start_date.
type CreateBudgetRequest struct {
	Name            string              `json:"name" binding:"required,min=1,max=100"`
	TotalAmount     string              `json:"total_amount" binding:"required"`
	Period          budget.PeriodKind   `json:"period" binding:"required,budget_period"`
	StartDate       string              `json:"start_date" binding:"required"`
	EndDate         *string             `json:"end_date"`
	IsTemplate      bool                `json:"is_template"`
	RolloverEnabled bool                `json:"rollover_enabled"`
	Allocations     []AllocationRequest `json:"allocations" binding:"dive"`
}

// UpdateBudgetRequest represents the request payload for updating a budget.
type UpdateBudgetRequest struct {
	Name            string  `json:"name" binding:"omitempty,min=1,max=100"`
	TotalAmount     *string `json:"total_amount"`
	EndDate         *string `json:"end_date"`
	RolloverEnabled *bool   `json:"rollover_enabled"`
}

// FromTemplateRequest represents the request payload for starting a period
// from a template. start_date defaults to today.
type FromTemplateRequest struct {
	Name      string  `json:"name" binding:"max=100"`
	StartDate *string `json:"start_date"`
}

// CreateBudgetResponse is a stored budget with its allocation check.
type CreateBudgetResponse struct {
	Budget          *models.Budget          `json:"budget"`
	AllocationCheck *budget.AllocationCheck `json:"allocation_check"`
}

// CreateBudget handles the creation of a new budget.
// @Summary     Create a budget
// @Description Create a budget period with its category allocations. Allocations that do not add up to the total are stored and reported as warnings.
// @Tags        budgets
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       request body CreateBudgetRequest true "Budget details"
// @Success     201 {object} CreateBudgetResponse "Budget created"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     404 {object} ErrorResponse "Category not found"
// @Failure     409 {object} ErrorResponse "Category allocated twice"
// @Failure     422 {object} ErrorResponse "Invalid budget data"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /budgets [post]
func (h *BudgetHandler) CreateBudget(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	var req CreateBudgetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	in, err := req.toInput()
	if err != nil {
		respondWithError(c, err)
		return
	}

	b, check, err := h.budgetService.CreateBudget(c.Request.Context(), userID, in)
	if err != nil {
		respondWithError(c, err)
		return
	}

	h.auditService.Log(userID, services.AuditCreateBudget, "budget", b.ID, c.ClientIP(),
		map[string]any{"name": b.Name, "total_amount": b.TotalAmount.String(), "period": b.Period})

	c.JSON(http.StatusCreated, CreateBudgetResponse{Budget: b, AllocationCheck: check})
}

func (r CreateBudgetRequest) toInput() (services.CreateBudgetInput, error) {
	in := services.CreateBudgetInput{
		Name:            r.Name,
		Period:          r.Period,
		IsTemplate:      r.IsTemplate,
		RolloverEnabled: r.RolloverEnabled,
	}

	var err error
	if in.TotalAmount, err = budget.ParseAmount("total_amount", r.TotalAmount); err != nil {
		return in, err
	}
	if in.StartDate, err = parseDateField("start_date", r.StartDate); err != nil {
		return in, err
	}
	if r.EndDate != nil && *r.EndDate != "" {
		end, err := parseDateField("end_date", *r.EndDate)
		if err != nil {
			return in, err
		}
		in.EndDate = &end
	}

	for _, a := range r.Allocations {
		amount, err := budget.ParseAmount("allocations.amount", a.Amount)
		if err != nil {
			return in, err
		}
		in.Allocations = append(in.Allocations, services.AllocationInput{CategoryID: a.CategoryID, Amount: amount})
	}
	return in, nil
}

func parseDateField(field, s string) (time.Time, error) {
	t, err := parseFlexibleTime(s)
	if err != nil {
		return time.Time{}, apperrors.WithMessage(apperrors.ErrInvalidInput, field+": "+err.Error())
	}
	return t, nil
}

// GetBudgets handles listing budgets for the authenticated user.
// @Summary     Get budgets
// @Description Get a paginated list of budgets for the authenticated user. Templates are only listed with template=true.
// @Tags        budgets
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       is_active query bool   false "Filter by active status"
// @Param       period    query string false "Filter by period (daily/weekly/monthly/quarterly/yearly)"
// @Param       template  query bool   false "List templates instead of budgets"
// @Param       page      query int    false "Page number (default 1)"
// @Param       page_size query int    false "Items per page (default 20, max 100)"
// @Success     200 {object} pagination.PageResponse[models.Budget] "Paginated budgets"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /budgets [get]
func (h *BudgetHandler) GetBudgets(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	var page pagination.PageRequest
	if err := c.ShouldBindQuery(&page); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	var filter services.BudgetFilter
	if filter.IsActive, err = parseBoolQuery(c, "is_active"); err != nil {
		respondWithError(c, err)
		return
	}
	if filter.Template, err = parseBoolQuery(c, "template"); err != nil {
		respondWithError(c, err)
		return
	}
	if v := c.Query("period"); v != "" {
		p := budget.PeriodKind(v)
		if !p.Valid() {
			respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, "period must be one of daily, weekly, monthly, quarterly, yearly"))
			return
		}
		filter.Period = &p
	}

	result, err := h.budgetService.GetUserBudgets(userID, page, filter)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// GetBudget handles retrieving a specific budget.
// @Summary     Get budget by ID
// @Description Get a specific budget with its allocations
// @Tags        budgets
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       id path string true "Budget ID"
// @Success     200 {object} models.Budget "Budget details"
// @Failure     400 {object} ErrorResponse "Invalid budget ID"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     404 {object} ErrorResponse "Budget not found"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /budgets/{id} [get]
func (h *BudgetHandler) GetBudget(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	budgetID, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	b, err := h.budgetService.GetBudgetByID(userID, budgetID)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"budget": b})
}

// UpdateBudget handles updating an existing budget.
// @Summary     Update budget
// @Description Update the name, total, end date or rollover flag of an active budget
// @Tags        budgets
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       id      path string              true "Budget ID"
// @Param       request body UpdateBudgetRequest true "Updated budget details"
// @Success     200 {object} models.Budget "Updated budget"
// @Failure     400 {object} ErrorResponse "Invalid input or budget ID"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     404 {object} ErrorResponse "Budget not found"
// @Failure     409 {object} ErrorResponse "Budget inactive"
// @Failure     422 {object} ErrorResponse "Invalid budget data"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /budgets/{id} [put]
func (h *BudgetHandler) UpdateBudget(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	budgetID, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	var req UpdateBudgetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	in := services.UpdateBudgetInput{Name: req.Name, RolloverEnabled: req.RolloverEnabled}
	if req.TotalAmount != nil {
		total, err := budget.ParseAmount("total_amount", *req.TotalAmount)
		if err != nil {
			respondWithError(c, err)
			return
		}
		in.TotalAmount = &total
	}
	if req.EndDate != nil {
		end, err := parseDateField("end_date", *req.EndDate)
		if err != nil {
			respondWithError(c, err)
			return
		}
		in.EndDate = &end
	}

	b, err := h.budgetService.UpdateBudget(c.Request.Context(), userID, budgetID, in)
	if err != nil {
		respondWithError(c, err)
		return
	}

	h.auditService.Log(userID, services.AuditUpdateBudget, "budget", budgetID, c.ClientIP(),
		map[string]any{"name": req.Name, "total_amount": req.TotalAmount})

	c.JSON(http.StatusOK, gin.H{"budget": b})
}

// DeactivateBudget handles ending a budget's lifecycle.
// @Summary     Deactivate budget
// @Description Deactivate a budget. Budgets are kept for history and never removed.
// @Tags        budgets
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       id path string true "Budget ID"
// @Success     200 {object} MessageResponse "Budget deactivated"
// @Failure     400 {object} ErrorResponse "Invalid budget ID"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     404 {object} ErrorResponse "Budget not found"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /budgets/{id} [delete]
func (h *BudgetHandler) DeactivateBudget(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	budgetID, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	if err := h.budgetService.DeactivateBudget(c.Request.Context(), userID, budgetID); err != nil {
		respondWithError(c, err)
		return
	}

	h.auditService.Log(userID, services.AuditDeactivateBudget, "budget", budgetID, c.ClientIP(), nil)

	c.JSON(http.StatusOK, MessageResponse{Message: "Budget deactivated successfully"})
}

// SetAllocation handles creating or replacing one category allocation.
// @Summary     Set allocation
// @Description Allocate an amount of an active budget to an expense category, replacing any previous allocation of that category
// @Tags        budgets
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       id      path string            true "Budget ID"
// @Param       request body AllocationRequest true "Allocation"
// @Success     200 {object} models.BudgetAllocation "Allocation stored"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     404 {object} ErrorResponse "Budget or category not found"
// @Failure     409 {object} ErrorResponse "Budget inactive"
// @Failure     422 {object} ErrorResponse "Invalid amount"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /budgets/{id}/allocations [post]
func (h *BudgetHandler) SetAllocation(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	budgetID, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	var req AllocationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	amount, err := budget.ParseAmount("amount", req.Amount)
	if err != nil {
		respondWithError(c, err)
		return
	}

	alloc, err := h.budgetService.SetAllocation(c.Request.Context(), userID, budgetID, req.CategoryID, amount)
	if err != nil {
		respondWithError(c, err)
		return
	}

	h.auditService.Log(userID, services.AuditSetAllocation, "budget", budgetID, c.ClientIP(),
		map[string]any{"category_id": req.CategoryID, "amount": amount.String()})

	c.JSON(http.StatusOK, gin.H{"allocation": alloc})
}

// RemoveAllocation handles removing one category allocation.
// @Summary     Remove allocation
// @Description Remove a category's allocation from an active budget
// @Tags        budgets
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       id         path string true "Budget ID"
// @Param       categoryId path string true "Category ID"
// @Success     200 {object} MessageResponse "Allocation removed"
// @Failure     400 {object} ErrorResponse "Invalid ID"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     404 {object} ErrorResponse "Budget or allocation not found"
// @Failure     409 {object} ErrorResponse "Budget inactive"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /budgets/{id}/allocations/{categoryId} [delete]
func (h *BudgetHandler) RemoveAllocation(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	budgetID, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}
	categoryID, err := parsePathID(c, "categoryId")
	if err != nil {
		respondWithError(c, err)
		return
	}

	if err := h.budgetService.RemoveAllocation(c.Request.Context(), userID, budgetID, categoryID); err != nil {
		respondWithError(c, err)
		return
	}

	h.auditService.Log(userID, services.AuditRemoveAllocation, "budget", budgetID, c.ClientIP(),
		map[string]any{"category_id": categoryID})

	c.JSON(http.StatusOK, MessageResponse{Message: "Allocation removed successfully"})
}

// ValidateBudget handles checking allocations against the budget total.
// @Summary     Validate allocations
// @Description Report whether the allocations add up to the budget total
// @Tags        budgets
// @Produce     json
// @Security    BearerAuth
// @Param       id path string true "Budget ID"
// @Success     200 {object} budget.AllocationCheck "Allocation check"
// @Failure     400 {object} ErrorResponse "Invalid budget ID"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     404 {object} ErrorResponse "Budget not found"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /budgets/{id}/validate [get]
func (h *BudgetHandler) ValidateBudget(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	budgetID, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	check, err := h.budgetService.ValidateBudget(c.Request.Context(), userID, budgetID)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"allocation_check": check})
}

// GetAnalysis handles the per-category analysis and rollup of a budget.
// @Summary     Analyze budget
// @Description Classify every category as good, warning or over and compute totals, pace and projection as of a point in time
// @Tags        budgets
// @Produce     json
// @Security    BearerAuth
// @Param       id path  string true  "Budget ID"
// @Param       at query string false "Analysis time (RFC3339 or YYYY-MM-DD, default now)"
// @Success     200 {object} budget.Report "Budget analysis"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     404 {object} ErrorResponse "Budget not found"
// @Failure     422 {object} ErrorResponse "Invalid budget data"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /budgets/{id}/analysis [get]
func (h *BudgetHandler) GetAnalysis(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	budgetID, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	var at time.Time
	if v := c.Query("at"); v != "" {
		if at, err = parseDateField("at", v); err != nil {
			respondWithError(c, err)
			return
		}
	}

	report, err := h.budgetService.AnalyzeBudget(c.Request.Context(), userID, budgetID, at)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"analysis": report})
}

// CreateFromTemplate handles starting a new period from a template.
// @Summary     Create budget from template
// @Description Start a new budget period with the total, kind and allocations of a template
// @Tags        budgets
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       id      path string              true "Template budget ID"
// @Param       request body FromTemplateRequest false "Name and start date"
// @Success     201 {object} models.Budget "Budget created"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     404 {object} ErrorResponse "Template not found"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /budgets/from-template/{id} [post]
func (h *BudgetHandler) CreateFromTemplate(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	templateID, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	var req FromTemplateRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
			return
		}
	}

	var start time.Time
	if req.StartDate != nil && *req.StartDate != "" {
		if start, err = parseDateField("start_date", *req.StartDate); err != nil {
			respondWithError(c, err)
			return
		}
	}

	b, err := h.budgetService.CreateFromTemplate(c.Request.Context(), userID, templateID, req.Name, start)
	if err != nil {
		respondWithError(c, err)
		return
	}

	h.auditService.Log(userID, services.AuditFromTemplate, "budget", b.ID, c.ClientIP(),
		map[string]any{"template_id": templateID})

	c.JSON(http.StatusCreated, gin.H{"budget": b})
}

// RollForward handles closing a period and opening the next one.
// @Summary     Roll budget forward
// @Description Deactivate the budget and create the next period of the same kind, carrying each category's remaining balance as rollover
// @Tags        budgets
// @Produce     json
// @Security    BearerAuth
// @Param       id path string true "Budget ID"
// @Success     201 {object} models.Budget "Next period"
// @Failure     400 {object} ErrorResponse "Invalid budget ID or template"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     404 {object} ErrorResponse "Budget not found"
// @Failure     409 {object} ErrorResponse "Budget inactive"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /budgets/{id}/roll-forward [post]
func (h *BudgetHandler) RollForward(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	budgetID, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	next, err := h.budgetService.RollForward(c.Request.Context(), userID, budgetID)
	if err != nil {
		respondWithError(c, err)
		return
	}

	rolled := decimal.Zero
	for _, a := range next.Allocations {
		rolled = rolled.Add(a.Rollover.Decimal)
	}
	h.auditService.Log(userID, services.AuditRollForward, "budget", budgetID, c.ClientIP(),
		map[string]any{"next_budget_id": next.ID, "rollover_total": rolled.String()})

	c.JSON(http.StatusCreated, gin.H{"budget": next})
}
