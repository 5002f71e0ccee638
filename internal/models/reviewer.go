// internal/models/reviewer.go

package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ReviewerAssignment maps a reviewer account to the municipalities whose
// signatures it may see and review. One assignment per user.
type ReviewerAssignment struct {
	ID              primitive.ObjectID   `bson:"_id,omitempty" json:"id,omitempty"`
	UserID          primitive.ObjectID   `bson:"user_id" json:"user_id"`
	MunicipalityIDs []primitive.ObjectID `bson:"municipality_ids" json:"municipality_ids"`

	CreatedAt time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time `bson:"updated_at" json:"updated_at"`
}

func (a *ReviewerAssignment) Covers(municipalityID primitive.ObjectID) bool {
	for _, id := range a.MunicipalityIDs {
		if id == municipalityID {
			return true
		}
	}
	return false
}
