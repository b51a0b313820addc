package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

const (
	SenderUser = "user"
	SenderBot  = "bot"
)

// ChatMessage belongs to either a user or a guest token, never both.
type ChatMessage struct {
	ID         primitive.ObjectID  `bson:"_id,omitempty" json:"_id,omitempty"`
	UserID     *primitive.ObjectID `bson:"userId,omitempty" json:"userId,omitempty"`
	GuestToken string              `bson:"guest_token,omitempty" json:"-"`
	Sender     string              `bson:"sender" json:"sender"`
	Message    string              `bson:"message" json:"message"`
	CreatedAt  time.Time           `bson:"createdAt" json:"createdAt"`
}

type ChatRequest struct {
	Message string `json:"message" validate:"required,max=2000"`
}
