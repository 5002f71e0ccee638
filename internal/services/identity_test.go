package services

import (
	"context"
	"testing"

	"prosignum/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/integration/mtest"
)

func testClaims() *models.EIDClaims {
	return &models.EIDClaims{
		GivenName:                    "Anna",
		FamilyName:                   "Muster",
		BirthDate:                    "1990-05-01",
		PersonalAdministrativeNumber: "756.1234.5678.97",
	}
}

func identityServiceFor(mt *mtest.T) *IdentityService {
	return NewIdentityService(
		mt.DB.Collection("users"),
		mt.DB.Collection("eid_profiles"),
		mt.DB.Collection("participants"),
	)
}

func TestResolveClaims(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("existing profile reuses linked user", func(mt *mtest.T) {
		claims := testClaims()
		profileID := primitive.NewObjectID()
		userID := primitive.NewObjectID()

		mt.AddMockResponses(
			// profile lookup by claim hash
			mtest.CreateCursorResponse(0, "prosignum.eid_profiles", mtest.FirstBatch, bson.D{
				{Key: "_id", Value: profileID},
				{Key: "user_id", Value: userID},
				{Key: "eid_hash", Value: claims.Hash()},
				{Key: "given_name", Value: claims.GivenName},
				{Key: "family_name", Value: claims.FamilyName},
			}),
			// last_verified refresh
			mtest.CreateSuccessResponse(),
			// user load
			mtest.CreateCursorResponse(0, "prosignum.users", mtest.FirstBatch, bson.D{
				{Key: "_id", Value: userID},
				{Key: "username", Value: "eid_abc"},
				{Key: "role", Value: "CITIZEN"},
			}),
			// participant already present with AHV number
			mtest.CreateCursorResponse(0, "prosignum.participants", mtest.FirstBatch, bson.D{
				{Key: "_id", Value: primitive.NewObjectID()},
				{Key: "user_id", Value: userID},
				{Key: "profile_id", Value: profileID},
				{Key: "ahv_number", Value: claims.PersonalAdministrativeNumber},
			}),
		)

		service := identityServiceFor(mt)
		user, err := service.ResolveClaims(context.Background(), claims)

		require.NoError(mt, err)
		assert.Equal(mt, userID, user.ID)
	})

	mt.Run("duplicate key race resolves to the winner", func(mt *mtest.T) {
		claims := testClaims()
		winnerProfileID := primitive.NewObjectID()
		winnerUserID := primitive.NewObjectID()

		mt.AddMockResponses(
			// no profile yet
			mtest.CreateCursorResponse(0, "prosignum.eid_profiles", mtest.FirstBatch),
			// user insert succeeds
			mtest.CreateSuccessResponse(),
			// profile insert loses the race on the unique eid_hash index
			mtest.CreateWriteErrorsResponse(mtest.WriteError{
				Index:   0,
				Code:    11000,
				Message: "E11000 duplicate key error collection: prosignum.eid_profiles index: eid_hash_1",
			}),
			// orphaned user removed
			mtest.CreateSuccessResponse(),
			// retry lookup finds the winner's profile
			mtest.CreateCursorResponse(0, "prosignum.eid_profiles", mtest.FirstBatch, bson.D{
				{Key: "_id", Value: winnerProfileID},
				{Key: "user_id", Value: winnerUserID},
				{Key: "eid_hash", Value: claims.Hash()},
			}),
			// last_verified refresh
			mtest.CreateSuccessResponse(),
			// winner's user
			mtest.CreateCursorResponse(0, "prosignum.users", mtest.FirstBatch, bson.D{
				{Key: "_id", Value: winnerUserID},
				{Key: "username", Value: "eid_winner"},
				{Key: "role", Value: "CITIZEN"},
			}),
			// winner's participant
			mtest.CreateCursorResponse(0, "prosignum.participants", mtest.FirstBatch, bson.D{
				{Key: "_id", Value: primitive.NewObjectID()},
				{Key: "user_id", Value: winnerUserID},
				{Key: "profile_id", Value: winnerProfileID},
				{Key: "ahv_number", Value: claims.PersonalAdministrativeNumber},
			}),
		)

		service := identityServiceFor(mt)
		user, err := service.ResolveClaims(context.Background(), claims)

		require.NoError(mt, err)
		assert.Equal(mt, winnerUserID, user.ID)
	})

	mt.Run("profile insert failure removes the orphaned user", func(mt *mtest.T) {
		mt.AddMockResponses(
			// no profile yet
			mtest.CreateCursorResponse(0, "prosignum.eid_profiles", mtest.FirstBatch),
			// user insert succeeds
			mtest.CreateSuccessResponse(),
			// profile insert fails with a transient, non-duplicate error
			mtest.CreateCommandErrorResponse(mtest.CommandError{
				Code:    8,
				Message: "connection reset by peer",
				Name:    "HostUnreachable",
			}),
			// orphan cleanup
			mtest.CreateSuccessResponse(),
		)

		service := identityServiceFor(mt)
		_, err := service.ResolveClaims(context.Background(), testClaims())

		require.Error(mt, err)
		assert.False(mt, mongo.IsDuplicateKeyError(err))

		// The deterministic username would block every later verification of
		// this identity if the partial user survived.
		deleted := false
		for _, evt := range mt.GetAllStartedEvents() {
			if evt.CommandName == "delete" {
				deleted = true
			}
		}
		assert.True(mt, deleted, "expected the orphaned user to be deleted")
	})
}
