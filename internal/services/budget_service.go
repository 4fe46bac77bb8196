package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/spanexx/personal-finance-dashboard-sub009/internal/budget"
	apperrors "github.com/spanexx/personal-finance-dashboard-sub009/internal/errors"
	"github.com/spanexx/personal-finance-dashboard-sub009/internal/logger"
	"github.com/spanexx/personal-finance-dashboard-sub009/internal/metrics"
	"github.com/spanexx/personal-finance-dashboard-sub009/internal/models"
	"github.com/spanexx/personal-finance-dashboard-sub009/internal/pagination"
)

type budgetService struct {
	db      *gorm.DB
	txs     TransactionServicer
	metrics metrics.Recorder
	now     func() time.Time
}

// NewBudgetService creates a new BudgetServicer. Spend figures come from
// txs; rec may be nil.
func NewBudgetService(db *gorm.DB, txs TransactionServicer, rec metrics.Recorder) BudgetServicer {
	if rec == nil {
		rec = metrics.Nop{}
	}
	return &budgetService{db: db, txs: txs, metrics: rec, now: time.Now}
}

// CreateBudget validates and stores a new budget with its allocations.
// Allocations that do not add up to the total are accepted; the returned
// check carries the warning.
func (s *budgetService) CreateBudget(ctx context.Context, userID string, in CreateBudgetInput) (*models.Budget, *budget.AllocationCheck, error) {
	b, check, err := s.createBudget(s.db.WithContext(ctx), userID, in)
	if err != nil {
		return nil, nil, err
	}
	created, err := s.GetBudgetByID(userID, b.ID)
	if err != nil {
		return nil, nil, err
	}
	return created, check, nil
}

// createBudget stores the budget inside a transaction on db, which may
// itself be a transaction.
func (s *budgetService) createBudget(db *gorm.DB, userID string, in CreateBudgetInput) (*models.Budget, *budget.AllocationCheck, error) {
	if in.Name == "" {
		return nil, nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "budget name is required")
	}

	start := in.StartDate.UTC()
	var end time.Time
	if in.EndDate != nil {
		end = in.EndDate.UTC()
	} else {
		var err error
		if end, err = budget.PeriodEnd(in.Period, start); err != nil {
			return nil, nil, apperrors.FromValidation(err)
		}
	}

	total, err := budget.RoundAmount("total_amount", in.TotalAmount)
	if err != nil {
		return nil, nil, apperrors.FromValidation(err)
	}
	b := &models.Budget{
		UserID:          userID,
		Name:            in.Name,
		TotalAmount:     total,
		Period:          in.Period,
		StartDate:       start,
		EndDate:         end,
		IsActive:        true,
		IsTemplate:      in.IsTemplate,
		RolloverEnabled: in.RolloverEnabled,
	}
	if err := b.ToPeriod().Validate(); err != nil {
		return nil, nil, apperrors.FromValidation(err)
	}

	rows := make([]*models.BudgetAllocation, 0, len(in.Allocations))
	allocs := make([]budget.CategoryAllocation, 0, len(in.Allocations))
	ids := make([]string, 0, len(in.Allocations))
	seen := make(map[string]bool, len(in.Allocations))
	for i, a := range in.Allocations {
		if seen[a.CategoryID] {
			return nil, nil, apperrors.WithMessage(apperrors.ErrDuplicateAllocation,
				fmt.Sprintf("category %s is allocated more than once", a.CategoryID))
		}
		seen[a.CategoryID] = true
		ids = append(ids, a.CategoryID)

		amount, err := budget.RoundAmount(fmt.Sprintf("allocations[%d].allocated", i), a.Amount)
		if err != nil {
			return nil, nil, apperrors.FromValidation(err)
		}
		allocs = append(allocs, budget.CategoryAllocation{CategoryID: a.CategoryID, Allocated: amount, Spent: decimal.Zero})
		rows = append(rows, &models.BudgetAllocation{CategoryID: a.CategoryID, Amount: amount, Rollover: a.Rollover})
	}
	check, err := budget.ValidateAllocations(b.TotalAmount, allocs)
	if err != nil {
		return nil, nil, apperrors.FromValidation(err)
	}

	err = db.Transaction(func(tx *gorm.DB) error {
		if err := checkAllocable(tx, userID, ids); err != nil {
			return err
		}
		if err := tx.Create(b).Error; err != nil {
			return apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
		for _, row := range rows {
			row.BudgetID = b.ID
			if err := tx.Create(row).Error; err != nil {
				return apperrors.Wrap(apperrors.ErrInternalServer, err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}

	s.reportCheck(b.ID, check)
	return b, &check, nil
}

// checkAllocable verifies every id is an expense category owned by userID.
func checkAllocable(db *gorm.DB, userID string, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	var categories []models.Category
	if err := db.Where("id IN ? AND user_id = ?", ids, userID).Find(&categories).Error; err != nil {
		return apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	found := make(map[string]models.CategoryType, len(categories))
	for _, c := range categories {
		found[c.ID] = c.Type
	}
	for _, id := range ids {
		typ, ok := found[id]
		if !ok {
			return apperrors.WithMessage(apperrors.ErrCategoryNotFound, fmt.Sprintf("category %s not found", id))
		}
		if typ != models.CategoryTypeExpense {
			return apperrors.ErrCategoryNotAllocable
		}
	}
	return nil
}

func (s *budgetService) reportCheck(budgetID string, check budget.AllocationCheck) {
	if check.Valid {
		return
	}
	s.metrics.AllocationMismatch()
	logger.Get().Warnw("budget allocations do not match total",
		"budget_id", budgetID,
		"total", check.Total.String(),
		"allocated", check.AllocatedTotal.String(),
		"difference", check.Difference.String(),
	)
}

// GetUserBudgets returns a paginated list of the user's budgets, newest
// period first.
func (s *budgetService) GetUserBudgets(userID string, page pagination.PageRequest, filter BudgetFilter) (*pagination.PageResponse[models.Budget], error) {
	page.Defaults()

	base := s.db.Model(&models.Budget{}).Where("user_id = ?", userID)
	if filter.IsActive != nil {
		base = base.Where("is_active = ?", *filter.IsActive)
	}
	if filter.Period != nil {
		base = base.Where("period = ?", *filter.Period)
	}
	template := false
	if filter.Template != nil {
		template = *filter.Template
	}
	base = base.Where("is_template = ?", template)

	var totalItems int64
	if err := base.Count(&totalItems).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	var budgets []models.Budget
	if err := base.Preload("Allocations", orderAllocations).
		Scopes(pagination.Paginate(page)).
		Order("start_date DESC").
		Find(&budgets).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	result := pagination.NewPageResponse(budgets, page.Page, page.PageSize, totalItems)
	return &result, nil
}

func orderAllocations(db *gorm.DB) *gorm.DB {
	return db.Order("created_at ASC, id ASC")
}

// GetBudgetByID returns a budget with its allocations if it belongs to the
// user.
func (s *budgetService) GetBudgetByID(userID, budgetID string) (*models.Budget, error) {
	return s.loadBudget(s.db, userID, budgetID)
}

func (s *budgetService) loadBudget(db *gorm.DB, userID, budgetID string) (*models.Budget, error) {
	var b models.Budget
	err := db.Preload("Allocations", orderAllocations).
		Preload("Allocations.Category").
		Where("id = ? AND user_id = ?", budgetID, userID).
		First(&b).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrBudgetNotFound
		}
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return &b, nil
}

func (s *budgetService) activeBudget(db *gorm.DB, userID, budgetID string) (*models.Budget, error) {
	b, err := s.loadBudget(db, userID, budgetID)
	if err != nil {
		return nil, err
	}
	if !b.IsActive {
		return nil, apperrors.ErrBudgetInactive
	}
	return b, nil
}

// UpdateBudget changes the name, total, end date or rollover flag of an
// active budget.
func (s *budgetService) UpdateBudget(ctx context.Context, userID, budgetID string, in UpdateBudgetInput) (*models.Budget, error) {
	db := s.db.WithContext(ctx)
	b, err := s.activeBudget(db, userID, budgetID)
	if err != nil {
		return nil, err
	}

	updates := make(map[string]interface{})
	if in.Name != "" {
		b.Name = in.Name
		updates["name"] = in.Name
	}
	if in.TotalAmount != nil {
		total, err := budget.RoundAmount("total_amount", *in.TotalAmount)
		if err != nil {
			return nil, apperrors.FromValidation(err)
		}
		b.TotalAmount = total
		updates["total_amount"] = total
	}
	if in.EndDate != nil {
		b.EndDate = in.EndDate.UTC()
		updates["end_date"] = b.EndDate
	}
	if in.RolloverEnabled != nil {
		b.RolloverEnabled = *in.RolloverEnabled
		updates["rollover_enabled"] = *in.RolloverEnabled
	}
	if len(updates) == 0 {
		return b, nil
	}

	if err := b.ToPeriod().Validate(); err != nil {
		return nil, apperrors.FromValidation(err)
	}
	if err := db.Model(&models.Budget{}).Where("id = ?", b.ID).Updates(updates).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	if in.TotalAmount != nil {
		if check, err := budget.ValidateAllocations(b.TotalAmount, b.ToAllocations(nil)); err == nil {
			s.reportCheck(b.ID, check)
		}
	}
	return b, nil
}

// DeactivateBudget ends a budget's lifecycle. Budgets are never deleted;
// deactivating twice is a no-op.
func (s *budgetService) DeactivateBudget(ctx context.Context, userID, budgetID string) error {
	db := s.db.WithContext(ctx)
	b, err := s.loadBudget(db, userID, budgetID)
	if err != nil {
		return err
	}
	if !b.IsActive {
		return nil
	}
	if err := db.Model(&models.Budget{}).Where("id = ?", b.ID).Update("is_active", false).Error; err != nil {
		return apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return nil
}

// SetAllocation creates or replaces the allocation of one category.
func (s *budgetService) SetAllocation(ctx context.Context, userID, budgetID, categoryID string, amount decimal.Decimal) (*models.BudgetAllocation, error) {
	amount, err := budget.RoundAmount("amount", amount)
	if err != nil {
		return nil, apperrors.FromValidation(err)
	}

	var result *models.BudgetAllocation
	var check budget.AllocationCheck

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		b, err := s.activeBudget(tx, userID, budgetID)
		if err != nil {
			return err
		}

		// Validate the allocation set as it will be after the change.
		next := make([]budget.CategoryAllocation, 0, len(b.Allocations)+1)
		var existing *models.BudgetAllocation
		for i := range b.Allocations {
			a := b.Allocations[i]
			if a.CategoryID == categoryID {
				existing = &b.Allocations[i]
				continue
			}
			next = append(next, budget.CategoryAllocation{CategoryID: a.CategoryID, Allocated: a.Amount, Spent: decimal.Zero})
		}
		next = append(next, budget.CategoryAllocation{CategoryID: categoryID, Allocated: amount, Spent: decimal.Zero})
		if check, err = budget.ValidateAllocations(b.TotalAmount, next); err != nil {
			return apperrors.FromValidation(err)
		}

		if existing != nil {
			if err := tx.Model(&models.BudgetAllocation{}).Where("id = ?", existing.ID).Update("amount", amount).Error; err != nil {
				return apperrors.Wrap(apperrors.ErrInternalServer, err)
			}
			existing.Amount = amount
			result = existing
			return nil
		}

		if err := checkAllocable(tx, userID, []string{categoryID}); err != nil {
			return err
		}
		row := &models.BudgetAllocation{BudgetID: b.ID, CategoryID: categoryID, Amount: amount}
		if err := tx.Create(row).Error; err != nil {
			return apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
		result = row
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.reportCheck(budgetID, check)
	return result, nil
}

// RemoveAllocation deletes the allocation of one category.
func (s *budgetService) RemoveAllocation(ctx context.Context, userID, budgetID, categoryID string) error {
	db := s.db.WithContext(ctx)
	b, err := s.activeBudget(db, userID, budgetID)
	if err != nil {
		return err
	}

	// Hard delete keeps the (budget, category) unique index reusable.
	res := db.Unscoped().
		Where("budget_id = ? AND category_id = ?", b.ID, categoryID).
		Delete(&models.BudgetAllocation{})
	if res.Error != nil {
		return apperrors.Wrap(apperrors.ErrInternalServer, res.Error)
	}
	if res.RowsAffected == 0 {
		return apperrors.ErrAllocationNotFound
	}
	return nil
}

// ValidateBudget checks the stored allocations against the total.
func (s *budgetService) ValidateBudget(ctx context.Context, userID, budgetID string) (*budget.AllocationCheck, error) {
	b, err := s.loadBudget(s.db.WithContext(ctx), userID, budgetID)
	if err != nil {
		return nil, err
	}
	check, err := budget.ValidateAllocations(b.TotalAmount, b.ToAllocations(nil))
	if err != nil {
		return nil, apperrors.FromValidation(err)
	}
	return &check, nil
}

// AnalyzeBudget computes the full report of a budget as of at, or now when
// at is zero. Only expenses dated up to at are counted.
func (s *budgetService) AnalyzeBudget(ctx context.Context, userID, budgetID string, at time.Time) (*budget.Report, error) {
	started := time.Now()
	if at.IsZero() {
		at = s.now()
	}
	at = at.UTC()

	b, err := s.loadBudget(s.db.WithContext(ctx), userID, budgetID)
	if err != nil {
		return nil, err
	}

	report, err := s.analyze(ctx, b, at)
	if err != nil {
		return nil, err
	}

	s.metrics.BudgetAnalyzed(time.Since(started), report.Rollup.StatusCounts)
	if !report.Check.Valid {
		s.metrics.AllocationMismatch()
	}
	logger.Get().Debugw("budget analyzed",
		"budget_id", b.ID,
		"as_of", at,
		"utilization", report.Rollup.BudgetUtilization.StringFixed(2),
		"over", report.Rollup.StatusCounts.Over,
	)
	return report, nil
}

func (s *budgetService) analyze(ctx context.Context, b *models.Budget, at time.Time) (*budget.Report, error) {
	to := b.EndDate
	if at.Before(to) {
		to = at
	}
	spent, err := s.txs.SpentByCategory(ctx, b.UserID, b.CategoryIDs(), b.StartDate, to)
	if err != nil {
		s.metrics.AnalysisFailed("spend_lookup")
		return nil, err
	}

	report, err := budget.Analyze(b.ToPeriod(), b.ToAllocations(spent), at)
	if err != nil {
		s.metrics.AnalysisFailed("validation")
		return nil, apperrors.FromValidation(err)
	}
	return report, nil
}

// CreateFromTemplate starts a new period from a template, copying its
// total, kind, rollover flag and allocations.
func (s *budgetService) CreateFromTemplate(ctx context.Context, userID, templateID, name string, start time.Time) (*models.Budget, error) {
	tpl, err := s.loadBudget(s.db.WithContext(ctx), userID, templateID)
	if err != nil {
		if errors.Is(err, apperrors.ErrBudgetNotFound) {
			return nil, apperrors.ErrTemplateNotFound
		}
		return nil, err
	}
	if !tpl.IsTemplate {
		return nil, apperrors.ErrTemplateNotFound
	}

	if start.IsZero() {
		start = budget.StartOfDay(s.now().UTC())
	}
	if name == "" {
		name = fmt.Sprintf("%s %s", tpl.Name, start.Format("2006-01-02"))
	}

	in := CreateBudgetInput{
		Name:            name,
		TotalAmount:     tpl.TotalAmount,
		Period:          tpl.Period,
		StartDate:       start,
		RolloverEnabled: tpl.RolloverEnabled,
	}
	for _, a := range tpl.Allocations {
		in.Allocations = append(in.Allocations, AllocationInput{CategoryID: a.CategoryID, Amount: a.Amount})
	}

	b, _, err := s.createBudget(s.db.WithContext(ctx), userID, in)
	if err != nil {
		return nil, err
	}
	return s.GetBudgetByID(userID, b.ID)
}

// RollForward closes an active period and opens the next one of the same
// kind. Each category carries its remaining balance, negative when
// overspent, as rollover into the new period, and the old period is
// deactivated. Deactivation and creation commit together, and only one
// caller can deactivate a given period.
func (s *budgetService) RollForward(ctx context.Context, userID, budgetID string) (*models.Budget, error) {
	db := s.db.WithContext(ctx)
	prev, err := s.activeBudget(db, userID, budgetID)
	if err != nil {
		return nil, err
	}
	if prev.IsTemplate {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "templates cannot be rolled forward")
	}

	report, err := s.analyze(ctx, prev, prev.EndDate)
	if err != nil {
		return nil, err
	}
	carry := budget.CarryForward(report.Categories)

	var next *models.Budget
	err = db.Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.Budget{}).
			Where("id = ? AND user_id = ? AND is_active = ?", prev.ID, userID, true).
			Update("is_active", false)
		if res.Error != nil {
			return apperrors.Wrap(apperrors.ErrInternalServer, res.Error)
		}
		if res.RowsAffected == 0 {
			return apperrors.ErrBudgetInactive
		}

		// Allocations are re-read under the transaction; a category added
		// after the analysis carries nothing.
		current, err := s.loadBudget(tx, userID, prev.ID)
		if err != nil {
			return err
		}
		in := CreateBudgetInput{
			Name:            current.Name,
			TotalAmount:     current.TotalAmount,
			Period:          current.Period,
			StartDate:       current.ToPeriod().NextStart(),
			RolloverEnabled: true,
		}
		for _, a := range current.Allocations {
			rollover, ok := carry[a.CategoryID]
			if !ok {
				rollover = decimal.Zero
			}
			in.Allocations = append(in.Allocations, AllocationInput{
				CategoryID: a.CategoryID,
				Amount:     a.Amount,
				Rollover:   decimal.NewNullDecimal(rollover),
			})
		}

		next, _, err = s.createBudget(tx, userID, in)
		return err
	})
	if err != nil {
		return nil, err
	}

	logger.Get().Infow("budget rolled forward",
		"from_budget_id", prev.ID,
		"to_budget_id", next.ID,
		"start_date", next.StartDate,
	)
	return s.GetBudgetByID(userID, next.ID)
}
