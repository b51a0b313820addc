package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// PendingOrderTTL is how long a staged payment may wait for its gateway.
const PendingOrderTTL = 24 * time.Hour

// PendingOrder stages a checkout while an asynchronous gateway settles it.
// Documents expire through a TTL index on createdAt.
type PendingOrder struct {
	ID              primitive.ObjectID `bson:"_id,omitempty" json:"_id,omitempty"`
	OrderID         string             `bson:"orderId" json:"orderId"`
	UserID          primitive.ObjectID `bson:"userId" json:"userId"`
	Lines           []ProductDetail    `bson:"lines" json:"lines"`
	DeliveryAddress primitive.ObjectID `bson:"delivery_address" json:"delivery_address"`
	SubTotalAmount  float64            `bson:"subTotalAmt" json:"subTotalAmt"`
	DiscountAmount  float64            `bson:"discountAmt" json:"discountAmt"`
	TotalAmount     float64            `bson:"totalAmt" json:"totalAmt"`
	VoucherCode     string             `bson:"voucher_code,omitempty" json:"voucher_code,omitempty"`
	PaymentMethod   string             `bson:"payment_method" json:"payment_method"`
	GatewayRef      string             `bson:"gateway_ref,omitempty" json:"gateway_ref,omitempty"`
	CreatedAt       time.Time          `bson:"createdAt" json:"createdAt"`
}
