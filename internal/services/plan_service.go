package services

import (
	"errors"

	"gorm.io/gorm"

	apperrors "plancast/internal/errors"
	"plancast/internal/models"
)

// planService provides the read-only plan boundary the engine depends on.
type planService struct {
	db *gorm.DB
}

// NewPlanService creates a new PlanServicer.
func NewPlanService(db *gorm.DB) PlanServicer {
	return &planService{db: db}
}

// Exists verifies that a business plan exists.
func (s *planService) Exists(planID string) error {
	var count int64
	if err := s.db.Model(&models.BusinessPlan{}).Where("id = ?", planID).Count(&count).Error; err != nil {
		return apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	if count == 0 {
		return apperrors.ErrPlanNotFound
	}
	return nil
}

// GetPlan returns the plan, primarily for its reporting currency.
func (s *planService) GetPlan(planID string) (*models.BusinessPlan, error) {
	var plan models.BusinessPlan
	if err := s.db.First(&plan, "id = ?", planID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrPlanNotFound
		}
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return &plan, nil
}
