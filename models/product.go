package models

import (
	"context"
	"errors"
	"time"

	"github.com/mmdatafocus/pos_backend/config"
	"github.com/mmdatafocus/pos_backend/utils"
	"github.com/shopspring/decimal"
)

// Product covers both menu items sold on orders and the raw ingredients they
// consume. A product with BOM components is produced/expanded from them; a
// stock-tracked product without a BOM is deducted directly.
type Product struct {
	ID             int             `gorm:"primary_key" json:"id"`
	Name           string          `gorm:"size:100;not null;index" json:"name" binding:"required"`
	Sku            string          `gorm:"size:100;index" json:"sku"`
	Barcode        string          `gorm:"size:100" json:"barcode"`
	UnitName       string          `gorm:"size:20" json:"unit_name"`
	SalesPrice     decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"sales_price"`
	CostPrice      decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"cost_price"`
	TrackInventory *bool           `gorm:"not null;default:true" json:"track_inventory"`
	IsManufactured *bool           `gorm:"not null;default:false" json:"is_manufactured"`
	IsActive       *bool           `gorm:"not null;default:true" json:"is_active"`
	BomComponents  []BomComponent  `gorm:"foreignKey:ProductId" json:"bom_components"`
	CreatedAt      time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt      time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

// BomComponent maps one unit of the parent product to the quantity of a
// component product required to make it.
type BomComponent struct {
	ID          int             `gorm:"primary_key" json:"id"`
	ProductId   int             `gorm:"not null;index:uniq_bom,unique" json:"product_id"`
	ComponentId int             `gorm:"not null;index:uniq_bom,unique" json:"component_id"`
	Qty         decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"qty"`
}

type NewProduct struct {
	Name           string            `json:"name" binding:"required"`
	Sku            string            `json:"sku"`
	Barcode        string            `json:"barcode"`
	UnitName       string            `json:"unit_name"`
	SalesPrice     decimal.Decimal   `json:"sales_price"`
	CostPrice      decimal.Decimal   `json:"cost_price"`
	TrackInventory *bool             `json:"track_inventory"`
	IsManufactured *bool             `json:"is_manufactured"`
	BomComponents  []NewBomComponent `json:"bom_components"`
}

type NewBomComponent struct {
	ComponentId int             `json:"component_id" binding:"required"`
	Qty         decimal.Decimal `json:"qty" binding:"required"`
}

// validate input for both create & update. (id = 0 for create)

func (input *NewProduct) validate(ctx context.Context, id int) error {
	if input.Sku != "" {
		if err := utils.ValidateUnique[Product](ctx, "sku", input.Sku, id); err != nil {
			return err
		}
	}
	for _, c := range input.BomComponents {
		if err := utils.ValidateResourceId[Product](ctx, c.ComponentId); err != nil {
			return errors.New("bom component product not found")
		}
		if c.Qty.LessThanOrEqual(decimal.Zero) {
			return errors.New("bom component qty must be positive")
		}
	}
	return nil
}

func CreateProduct(ctx context.Context, input *NewProduct) (*Product, error) {
	if err := input.validate(ctx, 0); err != nil {
		return nil, err
	}

	trackInventory := input.TrackInventory
	if trackInventory == nil {
		trackInventory = utils.NewTrue()
	}
	isManufactured := input.IsManufactured
	if isManufactured == nil {
		isManufactured = utils.NewFalse()
	}

	components := make([]BomComponent, 0, len(input.BomComponents))
	for _, c := range input.BomComponents {
		components = append(components, BomComponent{
			ComponentId: c.ComponentId,
			Qty:         c.Qty,
		})
	}

	product := Product{
		Name:           input.Name,
		Sku:            input.Sku,
		Barcode:        input.Barcode,
		UnitName:       input.UnitName,
		SalesPrice:     input.SalesPrice,
		CostPrice:      input.CostPrice,
		TrackInventory: trackInventory,
		IsManufactured: isManufactured,
		IsActive:       utils.NewTrue(),
		BomComponents:  components,
	}

	db := config.GetDB()
	if err := db.WithContext(ctx).Create(&product).Error; err != nil {
		return nil, err
	}
	return &product, nil
}

func GetProduct(ctx context.Context, id int) (*Product, error) {
	return utils.FetchSingleModel[Product](ctx, id, "BomComponents")
}
