package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Profile is the stored record for an authenticated identity. The id is
// immutable after signup; the display name may change.
type Profile struct {
	ID          primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Email       string             `bson:"email" json:"email"`
	FullName    string             `bson:"fullName" json:"fullName"`
	Password    string             `bson:"password" json:"-"`
	ResetCode   string             `bson:"resetCode,omitempty" json:"-"`
	ResetExpiry time.Time          `bson:"resetExpiry,omitempty" json:"-"`
	CreatedAt   time.Time          `bson:"createdAt" json:"createdAt"`
}

// Principal is the request-scoped identity extracted from a validated token.
type Principal struct {
	ID       string `json:"id"`
	Email    string `json:"email"`
	FullName string `json:"fullName"`
}

// UserWithRole is the merged profile+role view returned by the admin
// list-users endpoint.
type UserWithRole struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	FullName  string    `json:"fullName"`
	Role      string    `json:"role"`
	CreatedAt time.Time `json:"createdAt"`
}
