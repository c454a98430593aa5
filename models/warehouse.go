package models

import (
	"context"
	"errors"
	"time"

	"github.com/mmdatafocus/pos_backend/config"
	"github.com/mmdatafocus/pos_backend/utils"
	"gorm.io/gorm"
)

type Warehouse struct {
	ID            int           `gorm:"primary_key" json:"id"`
	BranchId      int           `gorm:"not null;index" json:"branch_id"`
	Name          string        `gorm:"size:100;not null" json:"name" binding:"required"`
	WarehouseType WarehouseType `gorm:"size:20;not null;default:STORAGE" json:"warehouse_type"`
	Address       string        `gorm:"type:text" json:"address"`
	IsActive      *bool         `gorm:"not null;default:true" json:"is_active"`
	CreatedAt     time.Time     `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time     `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewWarehouse struct {
	BranchId      int           `json:"branch_id" binding:"required"`
	Name          string        `json:"name" binding:"required"`
	WarehouseType WarehouseType `json:"warehouse_type"`
	Address       string        `json:"address"`
}

// validate input for both create & update. (id = 0 for create)

func (input *NewWarehouse) validate(ctx context.Context, id int) error {
	// name
	if err := utils.ValidateUnique[Warehouse](ctx, "name", input.Name, id); err != nil {
		return err
	}
	// branch
	if err := utils.ValidateResourceId[Branch](ctx, input.BranchId); err != nil {
		return errors.New("branch not found")
	}
	return nil
}

func CreateWarehouse(ctx context.Context, input *NewWarehouse) (*Warehouse, error) {
	if err := input.validate(ctx, 0); err != nil {
		return nil, err
	}

	warehouseType := input.WarehouseType
	if warehouseType == "" {
		warehouseType = WarehouseTypeStorage
	}

	warehouse := Warehouse{
		BranchId:      input.BranchId,
		Name:          input.Name,
		WarehouseType: warehouseType,
		Address:       input.Address,
		IsActive:      utils.NewTrue(),
	}

	db := config.GetDB()
	if err := db.WithContext(ctx).Create(&warehouse).Error; err != nil {
		return nil, err
	}
	return &warehouse, nil
}

func GetWarehouse(ctx context.Context, id int) (*Warehouse, error) {
	return utils.FetchSingleModel[Warehouse](ctx, id)
}

// GetBranchKitchenWarehouse resolves the branch's preferred deduction target
// for POS and production flows.
func GetBranchKitchenWarehouse(ctx context.Context, tx *gorm.DB, branchId int) (*Warehouse, error) {
	var warehouse Warehouse
	err := tx.WithContext(ctx).
		Where("branch_id = ? AND warehouse_type = ? AND is_active = ?", branchId, WarehouseTypeKitchen, true).
		Order("id").
		First(&warehouse).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, utils.NewValidationError("branch has no active kitchen warehouse")
		}
		return nil, err
	}
	return &warehouse, nil
}
