package services

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/spanexx/personal-finance-dashboard-sub009/internal/budget"
	"github.com/spanexx/personal-finance-dashboard-sub009/internal/models"
	"github.com/spanexx/personal-finance-dashboard-sub009/internal/pagination"
)

// UserServicer defines the contract for user-related business logic.
type UserServicer interface {
	CreateUser(email, password, firstName, lastName string) (*models.User, error)
	GetUserByEmail(email string) (*models.User, error)
	GetUserByID(id string) (*models.User, error)
	VerifyPassword(user *models.User, password string) bool
	RecordLogin(user *models.User) error
}

// CategoryServicer defines the contract for category-related business logic.
type CategoryServicer interface {
	CreateCategory(userID, name string, categoryType models.CategoryType, description, icon, color string, parentID *string) (*models.Category, error)
	GetUserCategories(userID string, page pagination.PageRequest) (*pagination.PageResponse[models.Category], error)
	GetUserCategoriesByType(userID string, categoryType models.CategoryType, page pagination.PageRequest) (*pagination.PageResponse[models.Category], error)
	GetCategoryByID(userID, categoryID string) (*models.Category, error)
	UpdateCategory(userID, categoryID, name, description, icon, color string, parentID *string) (*models.Category, error)
	DeleteCategory(userID, categoryID string) error
}

// TransactionFilter holds optional filter parameters for listing transactions.
type TransactionFilter struct {
	FromDate   *time.Time
	ToDate     *time.Time
	Type       *models.TransactionType
	CategoryID *string
	MinAmount  *decimal.Decimal
	MaxAmount  *decimal.Decimal
}

// TransactionServicer defines the contract for transaction-related business logic.
type TransactionServicer interface {
	CreateTransaction(userID string, categoryID *string, transactionType models.TransactionType, amount decimal.Decimal, description string, date time.Time) (*models.Transaction, error)
	GetUserTransactions(userID string, page pagination.PageRequest, filter TransactionFilter) (*pagination.PageResponse[models.Transaction], error)
	GetTransactionByID(userID, transactionID string) (*models.Transaction, error)
	DeleteTransaction(userID, transactionID string) error
	// SpentByCategory sums expense amounts per category for transactions
	// dated within [from, to]. Categories without expenses are absent.
	SpentByCategory(ctx context.Context, userID string, categoryIDs []string, from, to time.Time) (map[string]decimal.Decimal, error)
}

// AllocationInput is one requested category allocation. Rollover is only
// set when a period is rolled forward.
type AllocationInput struct {
	CategoryID string
	Amount     decimal.Decimal
	Rollover   decimal.NullDecimal
}

// CreateBudgetInput holds the fields of a new budget. EndDate defaults to
// the end of the period starting on StartDate.
type CreateBudgetInput struct {
	Name            string
	TotalAmount     decimal.Decimal
	Period          budget.PeriodKind
	StartDate       time.Time
	EndDate         *time.Time
	IsTemplate      bool
	RolloverEnabled bool
	Allocations     []AllocationInput
}

// UpdateBudgetInput holds the optional fields of a budget update.
type UpdateBudgetInput struct {
	Name            string
	TotalAmount     *decimal.Decimal
	EndDate         *time.Time
	RolloverEnabled *bool
}

// BudgetFilter narrows budget listings. Templates are excluded unless
// Template is set.
type BudgetFilter struct {
	IsActive *bool
	Period   *budget.PeriodKind
	Template *bool
}

// BudgetServicer defines the contract for budget-related business logic.
type BudgetServicer interface {
	CreateBudget(ctx context.Context, userID string, in CreateBudgetInput) (*models.Budget, *budget.AllocationCheck, error)
	GetUserBudgets(userID string, page pagination.PageRequest, filter BudgetFilter) (*pagination.PageResponse[models.Budget], error)
	GetBudgetByID(userID, budgetID string) (*models.Budget, error)
	UpdateBudget(ctx context.Context, userID, budgetID string, in UpdateBudgetInput) (*models.Budget, error)
	DeactivateBudget(ctx context.Context, userID, budgetID string) error
	SetAllocation(ctx context.Context, userID, budgetID, categoryID string, amount decimal.Decimal) (*models.BudgetAllocation, error)
	RemoveAllocation(ctx context.Context, userID, budgetID, categoryID string) error
	ValidateBudget(ctx context.Context, userID, budgetID string) (*budget.AllocationCheck, error)
	AnalyzeBudget(ctx context.Context, userID, budgetID string, at time.Time) (*budget.Report, error)
	CreateFromTemplate(ctx context.Context, userID, templateID, name string, start time.Time) (*models.Budget, error)
	RollForward(ctx context.Context, userID, budgetID string) (*models.Budget, error)
}

// AuditServicer defines the contract for audit logging.
type AuditServicer interface {
	Log(userID, action, resourceType, resourceID, ipAddress string, changes map[string]any)
}
