package testutil

import (
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/spanexx/personal-finance-dashboard-sub009/internal/budget"
	"github.com/spanexx/personal-finance-dashboard-sub009/internal/models"
)

// TestPassword is the plain password of every fixture user.
const TestPassword = "password123"

var counter atomic.Int64

func nextID() int64 {
	return counter.Add(1)
}

// CreateTestUser creates a user with a hashed password and unique email.
func CreateTestUser(t *testing.T, db *gorm.DB) *models.User {
	t.Helper()
	return CreateTestUserWithEmail(t, db, fmt.Sprintf("user%d@test.com", nextID()))
}

// CreateTestUserWithEmail creates a user with the given email.
func CreateTestUserWithEmail(t *testing.T, db *gorm.DB, email string) *models.User {
	t.Helper()

	hash, err := bcrypt.GenerateFromPassword([]byte(TestPassword), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("failed to hash password: %v", err)
	}

	user := &models.User{
		Email:    email,
		Password: string(hash),
		IsActive: true,
	}
	if err := db.Create(user).Error; err != nil {
		t.Fatalf("failed to create test user: %v", err)
	}
	return user
}

// CreateTestCategory creates a category of the given type.
func CreateTestCategory(t *testing.T, db *gorm.DB, userID string, categoryType models.CategoryType) *models.Category {
	t.Helper()

	category := &models.Category{
		UserID: userID,
		Name:   fmt.Sprintf("Test Category %d", nextID()),
		Type:   categoryType,
	}
	if err := db.Create(category).Error; err != nil {
		t.Fatalf("failed to create test category: %v", err)
	}
	return category
}

// CreateTestTransaction creates a transaction dated now.
func CreateTestTransaction(t *testing.T, db *gorm.DB, userID string, categoryID *string, txType models.TransactionType, amount decimal.Decimal) *models.Transaction {
	t.Helper()
	return CreateTestTransactionAt(t, db, userID, categoryID, txType, amount, time.Now().UTC())
}

// CreateTestTransactionAt creates a transaction on the given date.
func CreateTestTransactionAt(t *testing.T, db *gorm.DB, userID string, categoryID *string, txType models.TransactionType, amount decimal.Decimal, date time.Time) *models.Transaction {
	t.Helper()

	tx := &models.Transaction{
		UserID:     userID,
		CategoryID: categoryID,
		Type:       txType,
		Amount:     amount,
		Date:       date.UTC(),
	}
	if err := db.Create(tx).Error; err != nil {
		t.Fatalf("failed to create test transaction: %v", err)
	}
	return tx
}

// CreateTestBudget creates an active January 2024 monthly budget of 1000.
func CreateTestBudget(t *testing.T, db *gorm.DB, userID string) *models.Budget {
	t.Helper()

	start := time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC)
	end, err := budget.PeriodEnd(budget.PeriodMonthly, start)
	if err != nil {
		t.Fatalf("failed to compute period end: %v", err)
	}

	b := &models.Budget{
		UserID:      userID,
		Name:        fmt.Sprintf("Test Budget %d", nextID()),
		TotalAmount: decimal.NewFromInt(1000),
		Period:      budget.PeriodMonthly,
		StartDate:   start,
		EndDate:     end,
		IsActive:    true,
	}
	if err := db.Create(b).Error; err != nil {
		t.Fatalf("failed to create test budget: %v", err)
	}
	return b
}

// CreateTestAllocation allocates amount of budgetID to categoryID.
func CreateTestAllocation(t *testing.T, db *gorm.DB, budgetID, categoryID string, amount decimal.Decimal) *models.BudgetAllocation {
	t.Helper()

	a := &models.BudgetAllocation{
		BudgetID:   budgetID,
		CategoryID: categoryID,
		Amount:     amount,
	}
	if err := db.Create(a).Error; err != nil {
		t.Fatalf("failed to create test allocation: %v", err)
	}
	return a
}
