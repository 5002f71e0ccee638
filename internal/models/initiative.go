// internal/models/initiative.go

package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type Initiative struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id,omitempty"`
	CreatorID primitive.ObjectID `bson:"creator_id" json:"creator_id"`

	// Content
	Title       string `bson:"title" json:"title" validate:"required,min=10,max=500"`
	Description string `bson:"description" json:"description" validate:"required"`
	URL         string `bson:"url,omitempty" json:"url,omitempty" validate:"omitempty,url"`
	Committee   string `bson:"committee,omitempty" json:"committee,omitempty"`

	Status string `bson:"status" json:"status"` // draft, active, closed, archived

	// Collection window. Nil bounds are open-ended.
	CollectionStart *time.Time `bson:"collection_start,omitempty" json:"collection_start,omitempty"`
	CollectionEnd   *time.Time `bson:"collection_end,omitempty" json:"collection_end,omitempty"`

	// TargetSignatures is the number of accepted signatures required.
	TargetSignatures int `bson:"target_signatures" json:"target_signatures" validate:"min=0"`

	CreatedAt time.Time  `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time  `bson:"updated_at" json:"updated_at"`
	ClosedAt  *time.Time `bson:"closed_at,omitempty" json:"closed_at,omitempty"`
}

// Initiative statuses
const (
	InitiativeStatusDraft    = "draft"
	InitiativeStatusActive   = "active"
	InitiativeStatusClosed   = "closed"
	InitiativeStatusArchived = "archived"
)

// IsCollecting reports whether the initiative accepts signatures at the given
// time: it must be active and the time must fall within the collection window.
func (i *Initiative) IsCollecting(now time.Time) bool {
	if i.Status != InitiativeStatusActive {
		return false
	}

	if i.CollectionStart != nil && now.Before(*i.CollectionStart) {
		return false
	}

	if i.CollectionEnd != nil && now.After(*i.CollectionEnd) {
		return false
	}

	return true
}

// ProgressPercentage converts an accepted-signature count into collection
// progress. The result is clamped to [0, 100] even when the count exceeds the
// target.
func (i *Initiative) ProgressPercentage(accepted int) int {
	if i.TargetSignatures <= 0 {
		return 0
	}

	pct := accepted * 100 / i.TargetSignatures
	if pct > 100 {
		return 100
	}
	if pct < 0 {
		return 0
	}
	return pct
}

func (i *Initiative) IsGoalReached(accepted int) bool {
	return i.TargetSignatures > 0 && accepted >= i.TargetSignatures
}
