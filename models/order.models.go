package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

const (
	PaymentMethodCOD    = "COD"
	PaymentMethodVNPay  = "VNPAY"
	PaymentMethodStripe = "STRIPE"
)

const (
	PaymentStatusPending = "PENDING"
	PaymentStatusPaid    = "PAID"
	PaymentStatusFailed  = "FAILED"
)

const (
	OrderStatusPending   = "PENDING"
	OrderStatusConfirmed = "CONFIRMED"
	OrderStatusShipping  = "SHIPPING"
	OrderStatusDelivered = "DELIVERED"
	OrderStatusCancelled = "CANCELLED"
)

// ProductDetail is the denormalized product snapshot stored on an order line.
type ProductDetail struct {
	ProductID primitive.ObjectID `bson:"productId" json:"productId"`
	Name      string             `bson:"name" json:"name"`
	Image     []string           `bson:"image" json:"image"`
	Quantity  int                `bson:"quantity" json:"quantity"`
	Price     float64            `bson:"price" json:"price"`
}

// Order represents a user's order
type Order struct {
	ID              primitive.ObjectID   `bson:"_id,omitempty" json:"_id,omitempty"`
	UserID          primitive.ObjectID   `bson:"userId" json:"userId"`
	OrderID         string               `bson:"orderId" json:"orderId"`
	ProductIDs      []primitive.ObjectID `bson:"productId" json:"productId"`
	ProductDetails  []ProductDetail      `bson:"product_details" json:"product_details"`
	DeliveryAddress primitive.ObjectID   `bson:"delivery_address" json:"delivery_address"`
	SubTotalAmount  float64              `bson:"subTotalAmt" json:"subTotalAmt"`
	DiscountAmount  float64              `bson:"discountAmt" json:"discountAmt"`
	TotalAmount     float64              `bson:"totalAmt" json:"totalAmt"`
	VoucherCode     string               `bson:"voucher_code,omitempty" json:"voucher_code,omitempty"`
	PaymentID       string               `bson:"payment_id,omitempty" json:"payment_id,omitempty"`
	PaymentMethod   string               `bson:"payment_method" json:"payment_method"`
	PaymentStatus   string               `bson:"payment_status" json:"payment_status"`
	OrderStatus     string               `bson:"order_status" json:"order_status"`
	CreatedAt       time.Time            `bson:"createdAt" json:"createdAt"`
	UpdatedAt       time.Time            `bson:"updatedAt" json:"updatedAt"`
}

type CheckoutRequest struct {
	AddressID   string `json:"addressId" validate:"required,len=24,hexadecimal"`
	VoucherCode string `json:"voucherCode" validate:"omitempty,max=50"`
	// BankCode and Locale are forwarded to VNPay when present.
	BankCode string `json:"bankCode" validate:"omitempty,alphanum,max=20"`
	Locale   string `json:"locale" validate:"omitempty,oneof=vn en"`
}

type UpdateOrderStatusRequest struct {
	OrderStatus string `json:"order_status" validate:"required,oneof=PENDING CONFIRMED SHIPPING DELIVERED CANCELLED"`
}

// OrderEvent is the broker message for order changes.
type OrderEvent struct {
	Type          string    `json:"type"`
	OrderID       string    `json:"order_id"`
	UserID        string    `json:"user_id"`
	Email         string    `json:"email"`
	Name          string    `json:"name"`
	TotalAmount   float64   `json:"total_amount"`
	PaymentMethod string    `json:"payment_method"`
	PaymentStatus string    `json:"payment_status"`
	OrderStatus   string    `json:"order_status"`
	Occurred      time.Time `json:"occurred"`
}

type UpdatePaymentStatusRequest struct {
	PaymentStatus string `json:"payment_status" validate:"required,oneof=PENDING PAID FAILED"`
}
