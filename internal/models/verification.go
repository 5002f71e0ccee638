// internal/models/verification.go

package models

import (
	"crypto/sha256"
	"encoding/hex"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Verification statuses. Expired and the two outcome states are terminal.
const (
	VerificationStatusPending   = "pending"
	VerificationStatusCompleted = "completed"
	VerificationStatusFailed    = "failed"
	VerificationStatusExpired   = "expired"
)

// EIDClaims is the verified claim set returned by the e-ID verifier.
type EIDClaims struct {
	GivenName                    string `bson:"given_name" json:"given_name"`
	FamilyName                   string `bson:"family_name" json:"family_name"`
	BirthDate                    string `bson:"birth_date" json:"birth_date"`
	BirthPlace                   string `bson:"birth_place,omitempty" json:"birth_place,omitempty"`
	PersonalAdministrativeNumber string `bson:"personal_administrative_number" json:"personal_administrative_number"`
}

// Hash returns the deterministic identity-matching digest over the claim
// tuple. The field order (administrative number, birth date, family name,
// given name) is part of the contract: existing profiles are keyed by it.
func (c *EIDClaims) Hash() string {
	sum := sha256.Sum256([]byte(
		c.PersonalAdministrativeNumber + c.BirthDate + c.FamilyName + c.GivenName,
	))
	return hex.EncodeToString(sum[:])
}

// EIDVerification tracks one verification session with the e-ID verifier.
type EIDVerification struct {
	ID primitive.ObjectID `bson:"_id,omitempty" json:"id,omitempty"`

	// LocalID is the identifier handed to the browser for status polling.
	// The provider-issued VerificationID never leaves the backend.
	LocalID        string `bson:"local_id" json:"local_id"`
	VerificationID string `bson:"verification_id" json:"-"`

	VerificationURL string `bson:"verification_url" json:"verification_url"`
	Status          string `bson:"status" json:"status"`

	Claims    *EIDClaims `bson:"claims,omitempty" json:"claims,omitempty"`
	ErrorCode string     `bson:"error_code,omitempty" json:"error_code,omitempty"`

	// UserID is set once a completed verification has been linked to an account.
	UserID *primitive.ObjectID `bson:"user_id,omitempty" json:"user_id,omitempty"`

	CreatedAt time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time `bson:"updated_at" json:"updated_at"`
	ExpiresAt time.Time `bson:"expires_at" json:"expires_at"`
}

func (v *EIDVerification) IsExpired(now time.Time) bool {
	return now.After(v.ExpiresAt)
}

// IsTerminal reports whether no further external polls are needed.
func (v *EIDVerification) IsTerminal() bool {
	switch v.Status {
	case VerificationStatusCompleted, VerificationStatusFailed, VerificationStatusExpired:
		return true
	}
	return false
}

// EIDProfile caches the verified claims of one identity. Keyed by the claim
// hash so a returning citizen maps onto the same account across sessions.
type EIDProfile struct {
	ID     primitive.ObjectID `bson:"_id,omitempty" json:"id,omitempty"`
	UserID primitive.ObjectID `bson:"user_id" json:"user_id"`

	GivenName  string `bson:"given_name" json:"given_name"`
	FamilyName string `bson:"family_name" json:"family_name"`
	BirthDate  string `bson:"birth_date" json:"birth_date"`
	BirthPlace string `bson:"birth_place,omitempty" json:"birth_place,omitempty"`

	EIDHash string `bson:"eid_hash" json:"-"`

	VerifiedAt   time.Time `bson:"verified_at" json:"verified_at"`
	LastVerified time.Time `bson:"last_verified" json:"last_verified"`
}
