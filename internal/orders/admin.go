package orders

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

var (
	ErrInvalidProduct = errors.New("invalid product")
	ErrInvalidRep     = errors.New("invalid representative")
)

// ProductPatch carries the fields an admin edit changes; nil leaves a field
// as is. LimitPerOrder 0 clears the limit.
type ProductPatch struct {
	Name          *string          `json:"name"`
	Description   *string          `json:"description"`
	Unit          *string          `json:"unit"`
	Price         *decimal.Decimal `json:"price"`
	LimitPerOrder *int             `json:"limit_per_order"`
	IsActive      *bool            `json:"is_active"`
}

func (pp ProductPatch) Apply(p Product) Product {
	if pp.Name != nil {
		p.Name = strings.TrimSpace(*pp.Name)
	}
	if pp.Description != nil {
		p.Description = *pp.Description
	}
	if pp.Unit != nil {
		p.Unit = strings.TrimSpace(*pp.Unit)
	}
	if pp.Price != nil {
		p.Price = RoundMoney(*pp.Price)
	}
	if pp.LimitPerOrder != nil {
		p.LimitPerOrder = *pp.LimitPerOrder
	}
	if pp.IsActive != nil {
		p.IsActive = *pp.IsActive
	}
	return p
}

// Validate reports the first field that cannot be stored.
func (p Product) Validate() error {
	switch {
	case strings.TrimSpace(p.Name) == "":
		return fmt.Errorf("%w: name is required", ErrInvalidProduct)
	case strings.TrimSpace(p.Unit) == "":
		return fmt.Errorf("%w: unit is required", ErrInvalidProduct)
	case p.Stock < 0:
		return ErrNegativeStock
	case p.Price.IsNegative():
		return fmt.Errorf("%w: price cannot be negative", ErrInvalidProduct)
	case p.LimitPerOrder < 0:
		return fmt.Errorf("%w: limit_per_order cannot be negative", ErrInvalidProduct)
	}
	return nil
}

type RepPatch struct {
	Code     *string `json:"code"`
	FullName *string `json:"full_name"`
	IsActive *bool   `json:"is_active"`
}

func (rp RepPatch) Apply(r Representative) Representative {
	if rp.Code != nil {
		r.Code = strings.TrimSpace(*rp.Code)
	}
	if rp.FullName != nil {
		r.FullName = strings.TrimSpace(*rp.FullName)
	}
	if rp.IsActive != nil {
		r.IsActive = *rp.IsActive
	}
	return r
}

func (r Representative) Validate() error {
	switch {
	case strings.TrimSpace(r.Code) == "":
		return fmt.Errorf("%w: code is required", ErrInvalidRep)
	case strings.TrimSpace(r.FullName) == "":
		return fmt.Errorf("%w: full_name is required", ErrInvalidRep)
	case r.ExternalID == 0:
		return fmt.Errorf("%w: telegram_id is required", ErrInvalidRep)
	}
	return nil
}
