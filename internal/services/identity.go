// internal/services/identity.go

package services

import (
	"context"
	"fmt"
	"time"

	"prosignum/internal/models"

	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

// IdentityService maps verified e-ID claims onto local accounts. A returning
// identity is recognized by the claim hash; an unknown one gets a fresh
// user + profile + participant triple.
type IdentityService struct {
	userCollection        *mongo.Collection
	profileCollection     *mongo.Collection
	participantCollection *mongo.Collection
}

func NewIdentityService(userCollection, profileCollection, participantCollection *mongo.Collection) *IdentityService {
	return &IdentityService{
		userCollection:        userCollection,
		profileCollection:     profileCollection,
		participantCollection: participantCollection,
	}
}

// ResolveClaims returns the account for a verified claim set, creating it on
// first contact. Safe to call more than once for the same verification
// session and safe under concurrent polls: the unique index on the claim hash
// guarantees at most one triple per identity, and a losing insert falls back
// to the winner's documents.
func (s *IdentityService) ResolveClaims(ctx context.Context, claims *models.EIDClaims) (*models.User, error) {
	hash := claims.Hash()

	var profile models.EIDProfile
	err := s.profileCollection.FindOne(ctx, bson.M{"eid_hash": hash}).Decode(&profile)
	switch {
	case err == nil:
		return s.refreshExisting(ctx, &profile, claims)
	case err != mongo.ErrNoDocuments:
		return nil, fmt.Errorf("failed to look up e-ID profile: %w", err)
	}

	user, err := s.createIdentity(ctx, hash, claims)
	if err == nil {
		return user, nil
	}
	if !mongo.IsDuplicateKeyError(err) {
		return nil, err
	}

	// A concurrent poll for the same identity won the insert race. The
	// winner's profile may not be visible for a moment, so retry the lookup
	// briefly before giving up.
	for attempt := 0; attempt < 3; attempt++ {
		lookupErr := s.profileCollection.FindOne(ctx, bson.M{"eid_hash": hash}).Decode(&profile)
		if lookupErr == nil {
			return s.refreshExisting(ctx, &profile, claims)
		}
		if lookupErr != mongo.ErrNoDocuments {
			return nil, fmt.Errorf("failed to look up e-ID profile: %w", lookupErr)
		}
		time.Sleep(100 * time.Millisecond)
	}

	return nil, fmt.Errorf("failed to resolve identity after duplicate key: %w", err)
}

// refreshExisting reuses an already known identity: stamps last_verified,
// makes sure the participant record exists and backfills an AHV number that
// was missing on earlier verifications.
func (s *IdentityService) refreshExisting(ctx context.Context, profile *models.EIDProfile, claims *models.EIDClaims) (*models.User, error) {
	now := time.Now()

	_, err := s.profileCollection.UpdateOne(ctx, bson.M{"_id": profile.ID}, bson.M{
		"$set": bson.M{"last_verified": now},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to refresh e-ID profile: %w", err)
	}

	var user models.User
	if err := s.userCollection.FindOne(ctx, bson.M{"_id": profile.UserID}).Decode(&user); err != nil {
		return nil, fmt.Errorf("failed to load user for e-ID profile: %w", err)
	}

	var participant models.Participant
	err = s.participantCollection.FindOne(ctx, bson.M{"user_id": user.ID}).Decode(&participant)
	switch {
	case err == mongo.ErrNoDocuments:
		// Accounts verified before participants were introduced.
		participant = models.Participant{
			UserID:    user.ID,
			ProfileID: profile.ID,
			AHVNumber: claims.PersonalAdministrativeNumber,
			CreatedAt: now,
			UpdatedAt: now,
		}
		if _, err := s.participantCollection.InsertOne(ctx, participant); err != nil && !mongo.IsDuplicateKeyError(err) {
			return nil, fmt.Errorf("failed to create participant: %w", err)
		}
	case err != nil:
		return nil, fmt.Errorf("failed to look up participant: %w", err)
	default:
		if participant.AHVNumber == "" && claims.PersonalAdministrativeNumber != "" {
			_, err := s.participantCollection.UpdateOne(ctx, bson.M{"_id": participant.ID}, bson.M{
				"$set": bson.M{
					"ahv_number": claims.PersonalAdministrativeNumber,
					"updated_at": now,
				},
			})
			if err != nil {
				return nil, fmt.Errorf("failed to backfill AHV number: %w", err)
			}
		}
	}

	logrus.WithField("user_id", user.ID.Hex()).Info("Existing identity verified again")

	return &user, nil
}

// createIdentity creates the user, profile and participant for a new
// identity. A duplicate-key error from any insert is passed to the caller,
// which resolves against the winner instead.
func (s *IdentityService) createIdentity(ctx context.Context, hash string, claims *models.EIDClaims) (*models.User, error) {
	now := time.Now()

	user := models.User{
		Username:  "eid_" + hash[:12],
		FirstName: claims.GivenName,
		LastName:  claims.FamilyName,
		Role:      string(models.RoleCitizen),
		CreatedAt: now,
		UpdatedAt: now,
	}

	userResult, err := s.userCollection.InsertOne(ctx, user)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}
	user.ID = userResult.InsertedID.(primitive.ObjectID)

	profile := models.EIDProfile{
		UserID:       user.ID,
		GivenName:    claims.GivenName,
		FamilyName:   claims.FamilyName,
		BirthDate:    claims.BirthDate,
		BirthPlace:   claims.BirthPlace,
		EIDHash:      hash,
		VerifiedAt:   now,
		LastVerified: now,
	}

	profileResult, err := s.profileCollection.InsertOne(ctx, profile)
	if err != nil {
		// Remove the orphan user whatever the failure: the username is
		// derived from the claim hash, so a leftover user would collide with
		// every later attempt to create this identity.
		if _, delErr := s.userCollection.DeleteOne(ctx, bson.M{"_id": user.ID}); delErr != nil {
			logrus.WithError(delErr).WithField("user_id", user.ID.Hex()).
				Warn("Failed to remove orphaned user after profile insert failure")
		}
		if mongo.IsDuplicateKeyError(err) {
			// Lost the race; the caller resolves against the winner.
			return nil, err
		}
		return nil, fmt.Errorf("failed to create e-ID profile: %w", err)
	}
	profile.ID = profileResult.InsertedID.(primitive.ObjectID)

	participant := models.Participant{
		UserID:    user.ID,
		ProfileID: profile.ID,
		AHVNumber: claims.PersonalAdministrativeNumber,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if _, err := s.participantCollection.InsertOne(ctx, participant); err != nil && !mongo.IsDuplicateKeyError(err) {
		return nil, fmt.Errorf("failed to create participant: %w", err)
	}

	logrus.WithFields(logrus.Fields{
		"user_id":  user.ID.Hex(),
		"username": user.Username,
	}).Info("Created account from verified e-ID claims")

	return &user, nil
}
