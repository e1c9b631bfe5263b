package user

import (
	"time"

	"github.com/google/uuid"
	"github.com/kandriws/authcore/pkg/utils"
)

// Role is a named grant scoped to a realm
type Role struct {
	Name  string `json:"name"`
	Realm string `json:"realm"`
}

// Permission is a named capability scoped to a realm
type Permission struct {
	Name  string `json:"name"`
	Realm string `json:"realm"`
}

// User is the identity record. It follows an immutable snapshot pattern:
// mutating operations return a new instance so concurrent requests holding
// the same in-memory value never alias each other's changes.
type User struct {
	ID           uuid.UUID
	Email        string
	PasswordHash string
	FirstName    string
	LastName     string
	Phone        string
	VerifiedAt   *time.Time
	Roles        []Role
	Permissions  []Permission
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// CreateParams carries the fields needed to create a new user
type CreateParams struct {
	Email        string
	FirstName    string
	LastName     string
	Phone        string
	PasswordHash string
}

// New creates an unverified user with a fresh id and normalized email
func New(params CreateParams, now time.Time) User {
	return User{
		ID:           uuid.New(),
		Email:        utils.NormalizeEmail(params.Email),
		PasswordHash: params.PasswordHash,
		FirstName:    params.FirstName,
		LastName:     params.LastName,
		Phone:        params.Phone,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

// Reconstitute rebuilds a user snapshot from persisted state
func Reconstitute(id uuid.UUID, email, passwordHash, firstName, lastName, phone string,
	verifiedAt *time.Time, roles []Role, permissions []Permission, createdAt, updatedAt time.Time) User {
	return User{
		ID:           id,
		Email:        utils.NormalizeEmail(email),
		PasswordHash: passwordHash,
		FirstName:    firstName,
		LastName:     lastName,
		Phone:        phone,
		VerifiedAt:   verifiedAt,
		Roles:        roles,
		Permissions:  permissions,
		CreatedAt:    createdAt,
		UpdatedAt:    updatedAt,
	}
}

// IsVerified reports whether the user completed email verification
func (u User) IsVerified() bool {
	return u.VerifiedAt != nil
}

// WithVerified returns a copy marked verified at the given time.
// Verifying an already verified user is a no-op copy.
func (u User) WithVerified(now time.Time) User {
	cp := u.clone()
	if cp.VerifiedAt == nil {
		verifiedAt := now
		cp.VerifiedAt = &verifiedAt
	}
	cp.UpdatedAt = now
	return cp
}

// WithPassword returns a copy carrying a new password hash
func (u User) WithPassword(passwordHash string, now time.Time) User {
	cp := u.clone()
	cp.PasswordHash = passwordHash
	cp.UpdatedAt = now
	return cp
}

// WithRoles returns a copy carrying the given role set
func (u User) WithRoles(roles []Role, now time.Time) User {
	cp := u.clone()
	cp.Roles = append([]Role(nil), roles...)
	cp.UpdatedAt = now
	return cp
}

// WithPermissions returns a copy carrying the given permission set
func (u User) WithPermissions(permissions []Permission, now time.Time) User {
	cp := u.clone()
	cp.Permissions = append([]Permission(nil), permissions...)
	cp.UpdatedAt = now
	return cp
}

// FullName joins the name fields for notification templates
func (u User) FullName() string {
	if u.FirstName == "" {
		return u.LastName
	}
	if u.LastName == "" {
		return u.FirstName
	}
	return u.FirstName + " " + u.LastName
}

func (u User) clone() User {
	cp := u
	if u.VerifiedAt != nil {
		verifiedAt := *u.VerifiedAt
		cp.VerifiedAt = &verifiedAt
	}
	cp.Roles = append([]Role(nil), u.Roles...)
	cp.Permissions = append([]Permission(nil), u.Permissions...)
	return cp
}
