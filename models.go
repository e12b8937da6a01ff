package identity

import (
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// Resource is a protected resource kind
type Resource string

const (
	ResourceUser    Resource = "USER"
	ResourceProfile Resource = "PROFILE"
	ResourceRole    Resource = "ROLE"
	ResourceProject Resource = "PROJECT"
	ResourceTask    Resource = "TASK"
)

// Action is something a principal may do to a resource. MANAGE means full
// control but implies nothing in data: any MANAGE-satisfies-X policy is
// expressed at the check site, never in the model.
type Action string

const (
	ActionCreate Action = "CREATE"
	ActionRead   Action = "READ"
	ActionUpdate Action = "UPDATE"
	ActionDelete Action = "DELETE"
	ActionManage Action = "MANAGE"
)

// RolePermission pairs a resource with an action
type RolePermission struct {
	Resource Resource `json:"resource"`
	Action   Action   `json:"action"`
}

// Role is a named bundle of permissions
type Role struct {
	bun.BaseModel `bun:"table:roles,alias:rol"`
	ID            uuid.UUID        `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	Name          string           `bun:"name,notnull,unique" json:"name,omitempty"`
	Description   string           `bun:"description" json:"description,omitempty"`
	Permissions   []RolePermission `bun:"permissions,type:jsonb" json:"permissions,omitempty"`
	CreatedAt     *time.Time       `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
	UpdatedAt     *time.Time       `bun:"updated_at,nullzero,default:current_timestamp" json:"updated_at,omitempty"`
	DeletedAt     *time.Time       `bun:"deleted_at,soft_delete,nullzero" json:"deleted_at,omitempty"`
}

// User is the account model. PasswordHash is never serialized.
type User struct {
	bun.BaseModel  `bun:"table:users,alias:usr"`
	ID             uuid.UUID  `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	Email          string     `bun:"email,notnull,unique" json:"email,omitempty"`
	PasswordHash   string     `bun:"password_hash,notnull" json:"-"`
	Roles          []*Role    `bun:"m2m:user_roles,join:User=Role" json:"roles,omitempty"`
	LoginAttempts  int        `bun:"login_attempts" json:"login_attempts,omitempty"`
	LoginAttemptAt *time.Time `bun:"login_attempt_at" json:"login_attempt_at,omitempty"`
	LoggedInAt     *time.Time `bun:"loggedin_at" json:"loggedin_at,omitempty"`
	CreatedAt      *time.Time `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
	UpdatedAt      *time.Time `bun:"updated_at,nullzero,default:current_timestamp" json:"updated_at,omitempty"`
	DeletedAt      *time.Time `bun:"deleted_at,soft_delete,nullzero" json:"deleted_at,omitempty"`
}

// UserRole is the users<->roles join model. Register it with bun before the
// m2m relation is queried.
type UserRole struct {
	bun.BaseModel `bun:"table:user_roles,alias:url"`
	UserID        uuid.UUID `bun:"user_id,pk,type:uuid" json:"user_id,omitempty"`
	RoleID        uuid.UUID `bun:"role_id,pk,type:uuid" json:"role_id,omitempty"`
	User          *User     `bun:"rel:belongs-to,join:user_id=id" json:"user,omitempty"`
	Role          *Role     `bun:"rel:belongs-to,join:role_id=id" json:"role,omitempty"`
}

// Gender is a profile attribute
type Gender string

const (
	GenderFemale      Gender = "FEMALE"
	GenderMale        Gender = "MALE"
	GenderUnspecified Gender = "UNSPECIFIED"
)

// Profile holds the non-credential attributes of an account
type Profile struct {
	bun.BaseModel `bun:"table:profiles,alias:prf"`
	ID            uuid.UUID  `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	UserID        uuid.UUID  `bun:"user_id,notnull,unique,type:uuid" json:"user_id,omitempty"`
	FirstName     string     `bun:"first_name" json:"first_name,omitempty"`
	LastName      string     `bun:"last_name" json:"last_name,omitempty"`
	PhotoURL      string     `bun:"photo_url" json:"photo_url,omitempty"`
	DateOfBirth   *time.Time `bun:"date_of_birth,nullzero" json:"date_of_birth,omitempty"`
	Gender        Gender     `bun:"gender" json:"gender,omitempty"`
	Bio           string     `bun:"bio" json:"bio,omitempty"`
	CreatedAt     *time.Time `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
	UpdatedAt     *time.Time `bun:"updated_at,nullzero,default:current_timestamp" json:"updated_at,omitempty"`
	DeletedAt     *time.Time `bun:"deleted_at,soft_delete,nullzero" json:"deleted_at,omitempty"`
}

// PasswordResetToken is a single-use, expiring secret enabling password
// recovery. State machine: created (unused, unexpired) -> used, or
// created -> expired. "Expired" is computed from ExpiryAt, never stored.
type PasswordResetToken struct {
	bun.BaseModel `bun:"table:password_reset_tokens,alias:prt"`
	ID            uuid.UUID  `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	UserID        uuid.UUID  `bun:"user_id,notnull,type:uuid" json:"user_id,omitempty"`
	Token         string     `bun:"token,notnull,unique" json:"-"`
	ExpiryAt      time.Time  `bun:"expiry_at,notnull" json:"expiry_at,omitempty"`
	Used          bool       `bun:"used,notnull,default:false" json:"used,omitempty"`
	CreatedAt     *time.Time `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
}

// IsExpired reports whether the token is past its expiry instant
func (t *PasswordResetToken) IsExpired(now time.Time) bool {
	return now.After(t.ExpiryAt)
}

// IsLive reports whether the token can still be redeemed
func (t *PasswordResetToken) IsLive(now time.Time) bool {
	return !t.Used && !t.IsExpired(now)
}

// DefaultRoleName is attached to accounts at registration
const DefaultRoleName = "USER"

// AdminRoleName gates the privileged user-management operations
const AdminRoleName = "ADMIN"
