package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Address is a delivery address; orders keep a reference to it.
type Address struct {
	ID          primitive.ObjectID `bson:"_id,omitempty" json:"_id,omitempty"`
	UserID      primitive.ObjectID `bson:"userId" json:"userId"`
	AddressLine string             `bson:"address_line" json:"address_line" validate:"required"`
	City        string             `bson:"city" json:"city" validate:"required"`
	State       string             `bson:"state" json:"state"`
	Pincode     string             `bson:"pincode" json:"pincode"`
	Country     string             `bson:"country" json:"country" validate:"required"`
	Mobile      string             `bson:"mobile" json:"mobile" validate:"required,min=8,max=15"`
	Status      bool               `bson:"status" json:"status"`
	CreatedAt   time.Time          `bson:"createdAt" json:"createdAt"`
}
