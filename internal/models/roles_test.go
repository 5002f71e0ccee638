package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRoleHierarchy(t *testing.T) {
	assert.True(t, RoleAdmin.IsHigherOrEqual(RoleReviewer))
	assert.True(t, RoleAdmin.IsHigherOrEqual(RoleAdmin))
	assert.True(t, RoleReviewer.IsHigherOrEqual(RoleCitizen))
	assert.False(t, RoleCitizen.IsHigherOrEqual(RoleReviewer))
	assert.False(t, RoleReviewer.IsHigherOrEqual(RoleAdmin))
	assert.False(t, UserRole("UNKNOWN").IsHigherOrEqual(RoleCitizen))
}

func TestRoleFromString(t *testing.T) {
	role, ok := RoleFromString("REVIEWER")
	assert.True(t, ok)
	assert.Equal(t, RoleReviewer, role)

	_, ok = RoleFromString("reviewer")
	assert.False(t, ok)

	_, ok = RoleFromString("")
	assert.False(t, ok)
}
