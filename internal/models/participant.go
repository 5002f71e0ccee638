// internal/models/participant.go

package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Participant links an authenticated citizen to their verified e-ID profile.
// Exactly one participant exists per user.
type Participant struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id,omitempty"`
	UserID    primitive.ObjectID `bson:"user_id" json:"user_id"`
	ProfileID primitive.ObjectID `bson:"profile_id" json:"profile_id"`

	// AHVNumber is the Swiss social security number from the verified claims.
	// May be empty for accounts verified before the claim was requested.
	AHVNumber string `bson:"ahv_number,omitempty" json:"ahv_number,omitempty"`

	CreatedAt time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time `bson:"updated_at" json:"updated_at"`
}
