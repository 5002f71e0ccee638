package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestEIDClaimsHash(t *testing.T) {
	claims := EIDClaims{
		GivenName:                    "Anna",
		FamilyName:                   "Muster",
		BirthDate:                    "1990-05-01",
		PersonalAdministrativeNumber: "756.1234.5678.97",
	}

	hash := claims.Hash()
	assert.Len(t, hash, 64)
	assert.Equal(t, hash, claims.Hash())

	// Birth place is informational only and must not change the identity key.
	withPlace := claims
	withPlace.BirthPlace = "Bern"
	assert.Equal(t, hash, withPlace.Hash())

	other := claims
	other.GivenName = "Anne"
	assert.NotEqual(t, hash, other.Hash())

	otherBirth := claims
	otherBirth.BirthDate = "1990-05-02"
	assert.NotEqual(t, hash, otherBirth.Hash())
}

func TestEIDVerificationIsExpired(t *testing.T) {
	now := time.Date(2026, 6, 15, 12, 0, 0, 0, time.UTC)
	verification := EIDVerification{ExpiresAt: now.Add(5 * time.Minute)}

	assert.False(t, verification.IsExpired(now))
	assert.True(t, verification.IsExpired(now.Add(6*time.Minute)))
}

func TestEIDVerificationIsTerminal(t *testing.T) {
	assert.False(t, (&EIDVerification{Status: VerificationStatusPending}).IsTerminal())
	assert.True(t, (&EIDVerification{Status: VerificationStatusCompleted}).IsTerminal())
	assert.True(t, (&EIDVerification{Status: VerificationStatusFailed}).IsTerminal())
	assert.True(t, (&EIDVerification{Status: VerificationStatusExpired}).IsTerminal())
}
