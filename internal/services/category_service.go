package services

import (
	"errors"

	"gorm.io/gorm"

	apperrors "github.com/spanexx/personal-finance-dashboard-sub009/internal/errors"
	"github.com/spanexx/personal-finance-dashboard-sub009/internal/models"
	"github.com/spanexx/personal-finance-dashboard-sub009/internal/pagination"
)

type categoryService struct {
	db *gorm.DB
}

// NewCategoryService creates a new CategoryServicer.
func NewCategoryService(db *gorm.DB) CategoryServicer {
	return &categoryService{db: db}
}

// CreateCategory creates a category. Names are unique per user, and a child
// must have the same type as its parent.
func (s *categoryService) CreateCategory(
	userID string,
	name string,
	categoryType models.CategoryType,
	description string,
	icon string,
	color string,
	parentID *string,
) (*models.Category, error) {
	if name == "" {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "category name is required")
	}
	if err := s.checkNameFree(userID, name, ""); err != nil {
		return nil, err
	}
	if parentID != nil {
		if err := s.checkParent(userID, *parentID, categoryType); err != nil {
			return nil, err
		}
	}

	category := &models.Category{
		UserID:      userID,
		Name:        name,
		Type:        categoryType,
		Description: description,
		Icon:        icon,
		Color:       color,
		ParentID:    parentID,
	}
	if err := s.db.Create(category).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return category, nil
}

// GetUserCategories lists every category of the user.
func (s *categoryService) GetUserCategories(userID string, page pagination.PageRequest) (*pagination.PageResponse[models.Category], error) {
	return s.list(page, "user_id = ?", userID)
}

// GetUserCategoriesByType lists the user's categories of one type.
func (s *categoryService) GetUserCategoriesByType(userID string, categoryType models.CategoryType, page pagination.PageRequest) (*pagination.PageResponse[models.Category], error) {
	return s.list(page, "user_id = ? AND type = ?", userID, categoryType)
}

func (s *categoryService) list(page pagination.PageRequest, where string, args ...any) (*pagination.PageResponse[models.Category], error) {
	page.Defaults()

	base := s.db.Model(&models.Category{}).Where(where, args...)
	var total int64
	if err := base.Count(&total).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	var categories []models.Category
	if err := base.Scopes(pagination.Paginate(page)).Order("name ASC").Find(&categories).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	result := pagination.NewPageResponse(categories, page.Page, page.PageSize, total)
	return &result, nil
}

// GetCategoryByID returns one of the user's categories.
func (s *categoryService) GetCategoryByID(userID, categoryID string) (*models.Category, error) {
	var category models.Category
	if err := s.db.Where("id = ? AND user_id = ?", categoryID, userID).First(&category).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrCategoryNotFound
		}
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return &category, nil
}

// UpdateCategory applies the non-empty fields. The type cannot change, since
// allocations and transactions depend on it.
func (s *categoryService) UpdateCategory(
	userID string,
	categoryID string,
	name string,
	description string,
	icon string,
	color string,
	parentID *string,
) (*models.Category, error) {
	category, err := s.GetCategoryByID(userID, categoryID)
	if err != nil {
		return nil, err
	}

	updates := map[string]any{}
	if name != "" && name != category.Name {
		if err := s.checkNameFree(userID, name, categoryID); err != nil {
			return nil, err
		}
		updates["name"] = name
	}
	if parentID != nil && *parentID != "" {
		if *parentID == categoryID {
			return nil, apperrors.ErrSelfParentCategory
		}
		if err := s.checkParent(userID, *parentID, category.Type); err != nil {
			return nil, err
		}
		updates["parent_id"] = *parentID
	}
	for col, v := range map[string]string{"description": description, "icon": icon, "color": color} {
		if v != "" {
			updates[col] = v
		}
	}
	if len(updates) == 0 {
		return category, nil
	}

	if err := s.db.Model(&models.Category{}).Where("id = ?", category.ID).Updates(updates).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return s.GetCategoryByID(userID, categoryID)
}

// DeleteCategory soft-deletes a category without children or allocations.
func (s *categoryService) DeleteCategory(userID, categoryID string) error {
	category, err := s.GetCategoryByID(userID, categoryID)
	if err != nil {
		return err
	}

	var childCount int64
	if err := s.db.Model(&models.Category{}).Where("parent_id = ?", categoryID).Count(&childCount).Error; err != nil {
		return apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	if childCount > 0 {
		return apperrors.ErrCategoryHasChildren
	}

	// Transactions keep pointing at a soft-deleted category; allocations
	// may not, even on deactivated budgets.
	var allocCount int64
	if err := s.db.Model(&models.BudgetAllocation{}).Where("category_id = ?", categoryID).Count(&allocCount).Error; err != nil {
		return apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	if allocCount > 0 {
		return apperrors.ErrCategoryInUse
	}

	if err := s.db.Delete(category).Error; err != nil {
		return apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return nil
}

// checkNameFree fails when another category of the user, other than
// exceptID, already uses name.
func (s *categoryService) checkNameFree(userID, name, exceptID string) error {
	q := s.db.Model(&models.Category{}).Where("user_id = ? AND name = ?", userID, name)
	if exceptID != "" {
		q = q.Where("id <> ?", exceptID)
	}
	var count int64
	if err := q.Count(&count).Error; err != nil {
		return apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	if count > 0 {
		return apperrors.WithMessage(apperrors.ErrInvalidInput, "category with this name already exists")
	}
	return nil
}

func (s *categoryService) checkParent(userID, parentID string, childType models.CategoryType) error {
	parent, err := s.GetCategoryByID(userID, parentID)
	if err != nil {
		if errors.Is(err, apperrors.ErrCategoryNotFound) {
			return apperrors.WithMessage(apperrors.ErrCategoryNotFound, "parent category not found")
		}
		return err
	}
	if parent.Type != childType {
		return apperrors.WithMessage(apperrors.ErrInvalidInput, "parent category must have the same type")
	}
	return nil
}
