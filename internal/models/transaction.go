package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// TransactionType represents the type of transaction
type TransactionType string

const (
	TransactionTypeIncome  TransactionType = "income"
	TransactionTypeExpense TransactionType = "expense"
)

// Transaction is a single income or expense. Expenses are the spend source
// for budget analysis. Amount is always positive; Type carries the sign.
type Transaction struct {
	Base
	UserID      string          `gorm:"type:uuid;not null;index:idx_tx_user_date" json:"user_id"`
	CategoryID  *string         `gorm:"type:uuid;index" json:"category_id,omitempty"`
	Type        TransactionType `gorm:"not null" json:"type"`
	Amount      decimal.Decimal `gorm:"type:numeric(20,2);not null" json:"amount" swaggertype:"string" example:"42.50"`
	Description string          `json:"description"`
	Date        time.Time       `gorm:"not null;index:idx_tx_user_date" json:"date"`

	Category *Category `gorm:"foreignKey:CategoryID" json:"category,omitempty"`
}
