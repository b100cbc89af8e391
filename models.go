package users

import (
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// UserRole is the account's global role
type UserRole string

const (
	// RoleUser is a regular account
	RoleUser UserRole = "user"
	// RoleAdmin can manage other accounts
	RoleAdmin UserRole = "admin"
)

// UserType is an optional categorical tag for regular accounts.
// Admin accounts never carry one.
type UserType string

const (
	UserTypeDeveloper UserType = "developer"
	UserTypeManager   UserType = "manager"
	UserTypeEmployee  UserType = "employee"
	UserTypeDesigner  UserType = "designer"
	UserTypeQA        UserType = "qa"
	UserTypeHR        UserType = "hr"
)

// UserStatus gates login: inactive accounts may not obtain new tokens
type UserStatus string

const (
	UserStatusActive   UserStatus = "active"
	UserStatusInactive UserStatus = "inactive"
)

// User is the account model
type User struct {
	bun.BaseModel    `bun:"table:users,alias:usr"`
	ID               uuid.UUID  `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	FullName         string     `bun:"full_name,notnull" json:"full_name,omitempty"`
	Email            string     `bun:"email,notnull,unique" json:"email,omitempty"`
	PasswordHash     string     `bun:"password_hash,notnull" json:"-"`
	Role             UserRole   `bun:"user_role,notnull" json:"user_role,omitempty"`
	UserType         *UserType  `bun:"user_type" json:"user_type,omitempty"`
	Status           UserStatus `bun:"status,notnull" json:"status,omitempty"`
	IsBootstrapAdmin bool       `bun:"is_bootstrap_admin" json:"-"`
	LastLoginAt      *time.Time `bun:"last_login_at,nullzero" json:"last_login_at,omitempty"`
	CreatedAt        *time.Time `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
	UpdatedAt        *time.Time `bun:"updated_at,nullzero,default:current_timestamp" json:"updated_at,omitempty"`
	DeletedAt        *time.Time `bun:"deleted_at,soft_delete,nullzero" json:"deleted_at,omitempty"`
}

// EnsureStatus defaults an empty status to active
func (u *User) EnsureStatus() {
	if u.Status == "" {
		u.Status = UserStatusActive
	}
}

// IsActive reports whether the account may obtain new tokens
func (u *User) IsActive() bool {
	u.EnsureStatus()
	return u.Status == UserStatusActive
}

// AccountSummary is the safe projection of a User returned to callers.
// It never carries the password hash.
type AccountSummary struct {
	ID          uuid.UUID  `json:"id"`
	FullName    string     `json:"full_name"`
	Email       string     `json:"email"`
	Role        UserRole   `json:"user_role"`
	UserType    *UserType  `json:"user_type,omitempty"`
	Status      UserStatus `json:"status"`
	LastLoginAt *time.Time `json:"last_login_at,omitempty"`
}

// Summary builds the response projection for the account
func (u *User) Summary() AccountSummary {
	u.EnsureStatus()
	return AccountSummary{
		ID:          u.ID,
		FullName:    u.FullName,
		Email:       u.Email,
		Role:        u.Role,
		UserType:    u.UserType,
		Status:      u.Status,
		LastLoginAt: u.LastLoginAt,
	}
}

func (u *User) identity() Identity {
	return authIdentity{
		id:    u.ID.String(),
		email: u.Email,
		role:  string(u.Role),
	}
}

type authIdentity struct {
	id    string
	email string
	role  string
}

func (a authIdentity) ID() string { return a.id }

func (a authIdentity) Email() string { return a.email }

func (a authIdentity) Role() string { return a.role }

var _ Identity = authIdentity{}
