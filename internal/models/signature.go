// internal/models/signature.go

package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type Signature struct {
	ID             primitive.ObjectID `bson:"_id,omitempty" json:"id,omitempty"`
	InitiativeID   primitive.ObjectID `bson:"initiative_id" json:"initiative_id"`
	ParticipantID  primitive.ObjectID `bson:"participant_id" json:"participant_id"`
	MunicipalityID primitive.ObjectID `bson:"municipality_id" json:"municipality_id"`

	// Snapshot of the signer's verified data taken at signing time. Later
	// profile changes must not alter an already submitted signature.
	GivenName  string `bson:"given_name" json:"given_name"`
	FamilyName string `bson:"family_name" json:"family_name"`
	BirthDate  string `bson:"birth_date" json:"birth_date"`

	// Address in the Swiss official format
	StreetAndNumber string `bson:"street_and_number" json:"street_and_number"`
	PostalCode      string `bson:"postal_code" json:"postal_code"`

	// Review
	Status      string              `bson:"status" json:"status"` // pending, accepted, rejected
	ReviewedBy  *primitive.ObjectID `bson:"reviewed_by,omitempty" json:"reviewed_by,omitempty"`
	ReviewedAt  *time.Time          `bson:"reviewed_at,omitempty" json:"reviewed_at,omitempty"`
	ReviewNotes string              `bson:"review_notes,omitempty" json:"review_notes,omitempty"`

	SignedAt  time.Time `bson:"signed_at" json:"signed_at"`
	UpdatedAt time.Time `bson:"updated_at" json:"updated_at"`
}

// Signature statuses
const (
	SignatureStatusPending  = "pending"
	SignatureStatusAccepted = "accepted"
	SignatureStatusRejected = "rejected"
)

func (s *Signature) IsReviewed() bool {
	return s.Status != SignatureStatusPending
}
