package models

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/mmdatafocus/pos_backend/config"
	"github.com/mmdatafocus/pos_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Shift is a branch-scoped cash-register session. Every order must bind to
// exactly one OPEN shift for reconciliation.
type Shift struct {
	ID          int             `gorm:"primary_key" json:"id"`
	BranchId    int             `gorm:"not null;index" json:"branch_id"`
	Status      ShiftStatus     `gorm:"size:20;not null;index" json:"status"`
	OpenedById  int             `gorm:"not null" json:"opened_by_id"`
	ClosedById  int             `json:"closed_by_id"`
	OpeningCash decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"opening_cash"`
	ClosingCash decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"closing_cash"`
	OpenedAt    time.Time       `gorm:"not null" json:"opened_at"`
	ClosedAt    *time.Time      `json:"closed_at"`
	CreatedAt   time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewShift struct {
	BranchId    int             `json:"branch_id" binding:"required"`
	OpeningCash decimal.Decimal `json:"opening_cash"`
}

func OpenShift(ctx context.Context, input *NewShift) (*Shift, error) {
	userId, _ := utils.GetUserIdFromContext(ctx)

	if err := utils.ValidateResourceId[Branch](ctx, input.BranchId); err != nil {
		return nil, errors.New("branch not found")
	}

	db := config.GetDB()

	// One open shift per branch at a time.
	var open int64
	if err := db.WithContext(ctx).Model(&Shift{}).
		Where("branch_id = ? AND status = ?", input.BranchId, ShiftStatusOpen).
		Count(&open).Error; err != nil {
		return nil, err
	}
	if open > 0 {
		return nil, utils.NewValidationError("branch already has an open shift")
	}

	shift := Shift{
		BranchId:    input.BranchId,
		Status:      ShiftStatusOpen,
		OpenedById:  userId,
		OpeningCash: input.OpeningCash,
		OpenedAt:    time.Now().UTC(),
	}
	if err := db.WithContext(ctx).Create(&shift).Error; err != nil {
		return nil, err
	}
	return &shift, nil
}

func CloseShift(ctx context.Context, id int, closingCash decimal.Decimal) (*Shift, error) {
	userId, _ := utils.GetUserIdFromContext(ctx)

	shift, err := utils.FetchSingleModel[Shift](ctx, id)
	if err != nil {
		return nil, err
	}
	if shift.Status != ShiftStatusOpen {
		return nil, utils.NewValidationError("shift is not open")
	}

	db := config.GetDB()
	now := time.Now().UTC()
	err = db.WithContext(ctx).Model(shift).Updates(map[string]interface{}{
		"Status":      ShiftStatusClosed,
		"ClosedById":  userId,
		"ClosingCash": closingCash,
		"ClosedAt":    &now,
	}).Error
	if err != nil {
		return nil, err
	}
	return shift, nil
}

// GetOpenShiftForBranch reads the branch's open shift inside the caller's
// transaction; order creation fails SHIFT_REQUIRED without one.
func GetOpenShiftForBranch(ctx context.Context, tx *gorm.DB, branchId int) (*Shift, error) {
	var shift Shift
	err := tx.WithContext(ctx).
		Where("branch_id = ? AND status = ?", branchId, ShiftStatusOpen).
		Order("opened_at DESC").
		First(&shift).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, utils.NewAppError(utils.ErrCodeShiftRequired, http.StatusUnprocessableEntity, "no open shift for branch")
		}
		return nil, err
	}
	return &shift, nil
}
