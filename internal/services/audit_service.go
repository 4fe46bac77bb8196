package services

import (
	"encoding/json"

	"gorm.io/gorm"

	"github.com/spanexx/personal-finance-dashboard-sub009/internal/logger"
	"github.com/spanexx/personal-finance-dashboard-sub009/internal/models"
)

// Audit actions.
const (
	AuditCreateBudget     = "CREATE_BUDGET"
	AuditUpdateBudget     = "UPDATE_BUDGET"
	AuditDeactivateBudget = "DEACTIVATE_BUDGET"
	AuditSetAllocation    = "SET_ALLOCATION"
	AuditRemoveAllocation = "REMOVE_ALLOCATION"
	AuditRollForward      = "ROLL_FORWARD_BUDGET"
	AuditFromTemplate     = "CREATE_BUDGET_FROM_TEMPLATE"
	AuditDeleteCategory   = "DELETE_CATEGORY"
	AuditDeleteTx         = "DELETE_TRANSACTION"
)

type auditService struct {
	db *gorm.DB
}

// NewAuditService creates a new AuditServicer.
func NewAuditService(db *gorm.DB) AuditServicer {
	return &auditService{db: db}
}

// Log records an audit event. Failures are logged and swallowed so they
// never fail the audited operation.
func (s *auditService) Log(userID, action, resourceType, resourceID, ipAddress string, changes map[string]any) {
	var changesJSON string
	if changes != nil {
		data, err := json.Marshal(changes)
		if err != nil {
			logger.Get().Errorw("failed to marshal audit log changes", "error", err, "action", action)
			changesJSON = "{}"
		} else {
			changesJSON = string(data)
		}
	}

	entry := &models.AuditLog{
		UserID:       userID,
		Action:       action,
		ResourceType: resourceType,
		ResourceID:   resourceID,
		IPAddress:    ipAddress,
		Changes:      changesJSON,
	}

	if err := s.db.Create(entry).Error; err != nil {
		logger.Get().Errorw("failed to create audit log entry",
			"error", err,
			"user_id", userID,
			"action", action,
			"resource_type", resourceType,
			"resource_id", resourceID,
		)
	}
}
