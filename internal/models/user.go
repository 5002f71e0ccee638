package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type User struct {
	ID       primitive.ObjectID `bson:"_id,omitempty" json:"id,omitempty"`
	Username string             `bson:"username" json:"username"`

	// Staff accounts (reviewers, admins) log in with email + password.
	// Citizen accounts have neither: they authenticate through the e-ID flow.
	Email        string `bson:"email,omitempty" json:"email,omitempty"`
	PasswordHash string `bson:"password_hash,omitempty" json:"-"`

	// Personal information. For citizens this mirrors the verified e-ID claims.
	FirstName string `bson:"first_name" json:"first_name"`
	LastName  string `bson:"last_name" json:"last_name"`

	Role      string `bson:"role" json:"role"`
	IsBlocked bool   `bson:"is_blocked" json:"is_blocked"`

	CreatedAt   time.Time  `bson:"created_at" json:"created_at"`
	UpdatedAt   time.Time  `bson:"updated_at" json:"updated_at"`
	LastLoginAt *time.Time `bson:"last_login_at,omitempty" json:"last_login_at,omitempty"`
}

func (u *User) FullName() string {
	return u.FirstName + " " + u.LastName
}

func (u *User) IsStaff() bool {
	return u.Role == string(RoleReviewer) || u.Role == string(RoleAdmin)
}

func (u *User) IsAdmin() bool {
	return u.Role == string(RoleAdmin)
}
