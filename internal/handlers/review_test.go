package handlers

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestReviewScopeAdminUnrestricted(t *testing.T) {
	scope, visible := reviewScope("ADMIN", nil)

	assert.True(t, visible)
	assert.Empty(t, scope)
}

func TestReviewScopeReviewerLimitedToAssignments(t *testing.T) {
	bern := primitive.NewObjectID()
	thun := primitive.NewObjectID()

	scope, visible := reviewScope("REVIEWER", []primitive.ObjectID{bern, thun})

	require.True(t, visible)
	clause, ok := scope["municipality_id"].(bson.M)
	require.True(t, ok)
	assert.ElementsMatch(t, []primitive.ObjectID{bern, thun}, clause["$in"])
}

func TestReviewScopeUnassignedReviewerSeesNothing(t *testing.T) {
	_, visible := reviewScope("REVIEWER", []primitive.ObjectID{})
	assert.False(t, visible)

	_, visible = reviewScope("REVIEWER", nil)
	assert.False(t, visible)
}

func TestContainsID(t *testing.T) {
	bern := primitive.NewObjectID()
	basel := primitive.NewObjectID()

	assert.True(t, containsID([]primitive.ObjectID{bern, basel}, basel))
	assert.False(t, containsID([]primitive.ObjectID{bern}, basel))
	assert.False(t, containsID(nil, bern))
}
