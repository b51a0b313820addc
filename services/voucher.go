package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"storefront-api/models"
)

// CalculateDiscount returns the discount v grants on amount at time now.
func CalculateDiscount(v models.Voucher, amount float64, now time.Time) (float64, error) {
	if v.EffectiveStatus(now) != models.VoucherActive {
		return 0, fmt.Errorf("%w: voucher is %s", ErrVoucherNotApplicable, strings.ToLower(v.EffectiveStatus(now)))
	}
	if now.Before(v.StartDate) {
		return 0, fmt.Errorf("%w: voucher is not active yet", ErrVoucherNotApplicable)
	}
	if v.UsageLimit > 0 && v.UsedCount >= v.UsageLimit {
		return 0, ErrVoucherExhausted
	}
	if amount < v.MinPurchase {
		return 0, fmt.Errorf("%w: minimum purchase is %.0f", ErrVoucherNotApplicable, v.MinPurchase)
	}

	total := decimal.NewFromFloat(amount)
	var discount decimal.Decimal
	switch v.DiscountType {
	case models.DiscountPercentage:
		discount = total.Mul(decimal.NewFromFloat(v.DiscountValue)).Div(decimal.NewFromInt(100))
		if v.MaxDiscount > 0 {
			discount = decimal.Min(discount, decimal.NewFromFloat(v.MaxDiscount))
		}
	case models.DiscountFixedAmount:
		discount = decimal.NewFromFloat(v.DiscountValue)
	default:
		return 0, fmt.Errorf("%w: unknown discount type %q", ErrVoucherNotApplicable, v.DiscountType)
	}

	discount = decimal.Min(discount, total).Round(0)
	return discount.InexactFloat64(), nil
}

// VoucherStore loads vouchers and redeems them.
type VoucherStore interface {
	FindByCode(ctx context.Context, code string) (models.Voucher, error)
	Redeem(ctx context.Context, code string) error
	// Release gives back a use taken by Redeem when the order never got written.
	Release(ctx context.Context, code string) error
}

// MongoVoucherStore is the vouchers collection.
type MongoVoucherStore struct {
	Collection *mongo.Collection
}

func (s *MongoVoucherStore) FindByCode(ctx context.Context, code string) (models.Voucher, error) {
	var v models.Voucher
	err := s.Collection.FindOne(ctx, bson.M{"code": strings.ToUpper(strings.TrimSpace(code))}).Decode(&v)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return v, ErrVoucherNotFound
	}
	return v, err
}

// Redeem increments used_count only while the voucher still has uses left,
// so concurrent redemptions cannot push it past usage_limit.
func (s *MongoVoucherStore) Redeem(ctx context.Context, code string) error {
	filter := bson.M{
		"code":   strings.ToUpper(strings.TrimSpace(code)),
		"status": models.VoucherActive,
		"$or": bson.A{
			bson.M{"usage_limit": 0},
			bson.M{"$expr": bson.M{"$lt": bson.A{"$used_count", "$usage_limit"}}},
		},
	}
	res, err := s.Collection.UpdateOne(ctx, filter, bson.M{
		"$inc": bson.M{"used_count": 1},
		"$set": bson.M{"updatedAt": time.Now()},
	})
	if err != nil {
		return fmt.Errorf("redeem voucher: %w", err)
	}
	if res.MatchedCount == 0 {
		return ErrVoucherExhausted
	}
	return nil
}

func (s *MongoVoucherStore) Release(ctx context.Context, code string) error {
	_, err := s.Collection.UpdateOne(ctx,
		bson.M{"code": strings.ToUpper(strings.TrimSpace(code)), "used_count": bson.M{"$gt": 0}},
		bson.M{"$inc": bson.M{"used_count": -1}, "$set": bson.M{"updatedAt": time.Now()}},
	)
	if err != nil {
		return fmt.Errorf("release voucher: %w", err)
	}
	return nil
}
