package models

import (
	"errors"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

const (
	DiscountPercentage  = "PERCENTAGE"
	DiscountFixedAmount = "FIXED_AMOUNT"
)

const (
	VoucherActive   = "ACTIVE"
	VoucherInactive = "INACTIVE"
	VoucherExpired  = "EXPIRED"
)

var (
	ErrPercentageOutOfRange = errors.New("percentage discount must be between 0 and 100")
	ErrVoucherDateRange     = errors.New("end date must be after start date")
)

type Voucher struct {
	ID            primitive.ObjectID `bson:"_id,omitempty" json:"_id,omitempty"`
	Code          string             `bson:"code" json:"code"`
	Description   string             `bson:"description" json:"description"`
	DiscountType  string             `bson:"discount_type" json:"discount_type"`
	DiscountValue float64            `bson:"discount_value" json:"discount_value"`
	MinPurchase   float64            `bson:"min_purchase" json:"min_purchase"`
	MaxDiscount   float64            `bson:"max_discount" json:"max_discount"`
	UsageLimit    int                `bson:"usage_limit" json:"usage_limit"`
	UsedCount     int                `bson:"used_count" json:"used_count"`
	StartDate     time.Time          `bson:"start_date" json:"start_date"`
	EndDate       time.Time          `bson:"end_date" json:"end_date"`
	Status        string             `bson:"status" json:"status"`
	CreatedAt     time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt     time.Time          `bson:"updatedAt" json:"updatedAt"`
}

// EffectiveStatus reports EXPIRED for an active voucher past its end date.
func (v Voucher) EffectiveStatus(now time.Time) string {
	if v.Status == VoucherActive && now.After(v.EndDate) {
		return VoucherExpired
	}
	return v.Status
}

type VoucherRequest struct {
	Code          string    `json:"code" validate:"required,min=3,max=50"`
	Description   string    `json:"description" validate:"max=500"`
	DiscountType  string    `json:"discount_type" validate:"required,oneof=PERCENTAGE FIXED_AMOUNT"`
	DiscountValue float64   `json:"discount_value" validate:"min=0"`
	MinPurchase   float64   `json:"min_purchase" validate:"min=0"`
	MaxDiscount   float64   `json:"max_discount" validate:"min=0"`
	UsageLimit    int       `json:"usage_limit" validate:"min=0"`
	StartDate     time.Time `json:"start_date" validate:"required"`
	EndDate       time.Time `json:"end_date" validate:"required"`
	Status        string    `json:"status" validate:"omitempty,oneof=ACTIVE INACTIVE"`
}

// CheckRules enforces the rules struct tags cannot express.
func (r VoucherRequest) CheckRules() error {
	if r.DiscountType == DiscountPercentage && (r.DiscountValue < 0 || r.DiscountValue > 100) {
		return ErrPercentageOutOfRange
	}
	if !r.EndDate.After(r.StartDate) {
		return ErrVoucherDateRange
	}
	return nil
}

// ToVoucher normalizes the request into a storable voucher.
func (r VoucherRequest) ToVoucher(now time.Time) Voucher {
	status := r.Status
	if status == "" {
		status = VoucherActive
	}
	return Voucher{
		Code:          strings.ToUpper(strings.TrimSpace(r.Code)),
		Description:   r.Description,
		DiscountType:  r.DiscountType,
		DiscountValue: r.DiscountValue,
		MinPurchase:   r.MinPurchase,
		MaxDiscount:   r.MaxDiscount,
		UsageLimit:    r.UsageLimit,
		StartDate:     r.StartDate,
		EndDate:       r.EndDate,
		Status:        status,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

type ApplyVoucherRequest struct {
	Code        string  `json:"code" validate:"required"`
	OrderAmount float64 `json:"orderAmount" validate:"gt=0"`
}
