// internal/models/roles.go

package models

// UserRole is the access level of an account.
type UserRole string

const (
	// RoleCitizen accounts are created through the e-ID login flow and can
	// sign initiatives.
	RoleCitizen UserRole = "CITIZEN"
	// RoleReviewer accounts review signatures for their assigned municipalities.
	RoleReviewer UserRole = "REVIEWER"
	// RoleAdmin accounts manage initiatives, staff and reviewer assignments
	// and bypass municipality scoping.
	RoleAdmin UserRole = "ADMIN"
)

func (r UserRole) IsValid() bool {
	switch r {
	case RoleCitizen, RoleReviewer, RoleAdmin:
		return true
	}
	return false
}

// IsHigherOrEqual reports whether the role ranks at least as high as target.
func (r UserRole) IsHigherOrEqual(target UserRole) bool {
	hierarchy := map[UserRole]int{
		RoleCitizen:  0,
		RoleReviewer: 1,
		RoleAdmin:    2,
	}

	current, ok1 := hierarchy[r]
	required, ok2 := hierarchy[target]
	if !ok1 || !ok2 {
		return false
	}

	return current >= required
}

func (r UserRole) String() string {
	return string(r)
}

func AllRoles() []UserRole {
	return []UserRole{RoleCitizen, RoleReviewer, RoleAdmin}
}

func RoleFromString(role string) (UserRole, bool) {
	r := UserRole(role)
	if r.IsValid() {
		return r, true
	}
	return "", false
}
