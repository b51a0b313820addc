package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type ReviewItem struct {
	ProductID primitive.ObjectID `bson:"productId" json:"productId"`
	Rating    int                `bson:"rating" json:"rating"`
	Comment   string             `bson:"comment" json:"comment"`
}

// Review holds one user's ratings for the products of one order.
// (userId, order_orderId) is unique.
type Review struct {
	ID           primitive.ObjectID `bson:"_id,omitempty" json:"_id,omitempty"`
	UserID       primitive.ObjectID `bson:"userId" json:"userId"`
	OrderOrderID string             `bson:"order_orderId" json:"order_orderId"`
	Items        []ReviewItem       `bson:"items" json:"items"`
	CreatedAt    time.Time          `bson:"createdAt" json:"createdAt"`
}

type ReviewItemRequest struct {
	ProductID string `json:"productId" validate:"required,len=24,hexadecimal"`
	Rating    int    `json:"rating" validate:"required,min=1,max=5"`
	Comment   string `json:"comment" validate:"max=1000"`
}

type CreateReviewRequest struct {
	OrderID string              `json:"orderId" validate:"required"`
	Items   []ReviewItemRequest `json:"items" validate:"required,min=1,dive"`
}
