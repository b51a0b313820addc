package models

import (
	"time"

	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Product is a catalog entry. Discount is a percentage off Price.
type Product struct {
	ID          primitive.ObjectID   `bson:"_id,omitempty" json:"_id,omitempty"`
	Name        string               `bson:"name" json:"name" validate:"required,max=200"`
	Image       []string             `bson:"image" json:"image"`
	Category    []primitive.ObjectID `bson:"category" json:"category" validate:"required,min=1"`
	Unit        string               `bson:"unit" json:"unit"`
	Stock       int                  `bson:"stock" json:"stock" validate:"min=0"`
	Price       float64              `bson:"price" json:"price" validate:"gt=0"`
	Discount    float64              `bson:"discount" json:"discount" validate:"min=0,max=100"`
	Description string               `bson:"description" json:"description"`
	Publish     bool                 `bson:"publish" json:"publish"`
	CreatedAt   time.Time            `bson:"createdAt" json:"createdAt"`
	UpdatedAt   time.Time            `bson:"updatedAt" json:"updatedAt"`
}

// FinalPrice applies the product discount, rounded to whole currency units.
func (p Product) FinalPrice() float64 {
	if p.Discount <= 0 {
		return p.Price
	}
	price := decimal.NewFromFloat(p.Price)
	off := price.Mul(decimal.NewFromFloat(p.Discount)).Div(decimal.NewFromInt(100))
	return price.Sub(off).Round(0).InexactFloat64()
}
