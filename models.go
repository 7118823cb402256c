package auth

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// UserRole is the user's role
type UserRole = string

const (
	// RoleGuest is a guest role (ie. view)
	RoleGuest UserRole = "guest"
	// RoleMember is a member (i.e. view, edit)
	RoleMember UserRole = "member"
	// RoleAdmin is an admin role (i.e. view, edit, create)
	RoleAdmin UserRole = "admin"
	// RoleOwner is an owner role (i.e. view, edit, create, delete)
	RoleOwner UserRole = "owner"
)

// User is the account aggregate. Username and email are stored lower case so
// the storage layer's uniqueness constraint is case-insensitive.
// LastTokenIssuedAt is the token epoch: the issuance instant of the most
// recent token the engine accepted as authoritative.
type User struct {
	bun.BaseModel     `bun:"table:users,alias:usr"`
	ID                uuid.UUID  `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	Username          string     `bun:"username,notnull,unique" json:"username,omitempty"`
	Email             string     `bun:"email,notnull,unique" json:"email,omitempty"`
	PasswordHash      string     `bun:"password_hash,notnull" json:"-"`
	Roles             []string   `bun:"roles,notnull" json:"roles,omitempty"`
	IsActive          bool       `bun:"is_active" json:"is_active,omitempty"`
	IsEmailVerified   bool       `bun:"is_email_verified" json:"is_email_verified,omitempty"`
	FailedAttempts    int        `bun:"failed_attempts" json:"failed_attempts,omitempty"`
	Timezone          string     `bun:"timezone" json:"timezone,omitempty"`
	LastTokenIssuedAt time.Time  `bun:"last_token_issued_at,notnull" json:"last_token_issued_at,omitempty"`
	PasswordChangedAt *time.Time `bun:"password_changed_at,nullzero" json:"password_changed_at,omitempty"`
	LastLoginAt       *time.Time `bun:"last_login_at,nullzero" json:"last_login_at,omitempty"`
	PrevLoginAt       *time.Time `bun:"prev_login_at,nullzero" json:"prev_login_at,omitempty"`
	CreatedAt         *time.Time `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
	UpdatedAt         *time.Time `bun:"updated_at,nullzero,default:current_timestamp" json:"updated_at,omitempty"`
	DeletedAt         *time.Time `bun:"deleted_at,soft_delete,nullzero" json:"deleted_at,omitempty"`
}

// Field names a logical account mutation tracked by a Changeset.
type Field string

const (
	FieldUsername          Field = "username"
	FieldEmail             Field = "email"
	FieldPassword          Field = "password"
	FieldAttemptsReset     Field = "attempts_reset"
	FieldAttemptsIncrement Field = "attempts_increment"
	FieldLoggedTime        Field = "logged_time"
	FieldTokenIssued       Field = "token_issued"
)

// Changeset is the explicit diff produced by mutation methods on User and
// handed to the persistence call. Derived effects (history rows, counters,
// timestamps) happen exactly once per field recorded here.
type Changeset struct {
	fields map[Field]struct{}
}

// NewChangeset returns an empty changeset.
func NewChangeset() *Changeset {
	return &Changeset{fields: map[Field]struct{}{}}
}

// Mark records a logical change.
func (c *Changeset) Mark(f Field) *Changeset {
	if c.fields == nil {
		c.fields = map[Field]struct{}{}
	}
	c.fields[f] = struct{}{}
	return c
}

// Has reports whether the field was changed.
func (c *Changeset) Has(f Field) bool {
	if c == nil {
		return false
	}
	_, ok := c.fields[f]
	return ok
}

// IsEmpty reports whether no change was recorded.
func (c *Changeset) IsEmpty() bool {
	return c == nil || len(c.fields) == 0
}

// Fields returns the recorded fields in no particular order.
func (c *Changeset) Fields() []Field {
	if c == nil {
		return nil
	}
	out := make([]Field, 0, len(c.fields))
	for f := range c.fields {
		out = append(out, f)
	}
	return out
}

// NormalizeIdentifier lowers and trims a username or email so lookups and
// uniqueness behave case-insensitively.
func NormalizeIdentifier(identifier string) string {
	return strings.ToLower(strings.TrimSpace(identifier))
}

// SetUsername normalizes and applies a new username. Blank input is a no-op.
// The change is only recorded for persisted users whose value actually moved.
func (u *User) SetUsername(username string, cs *Changeset) bool {
	next := NormalizeIdentifier(username)
	if next == "" {
		return false
	}

	if u.ID != uuid.Nil && next != u.Username {
		cs.Mark(FieldUsername)
	}
	u.Username = next
	return true
}

// SetEmail normalizes and applies a new email. Blank input is a no-op.
func (u *User) SetEmail(email string, cs *Changeset) bool {
	next := NormalizeIdentifier(email)
	if next == "" {
		return false
	}

	if u.ID != uuid.Nil && next != u.Email {
		cs.Mark(FieldEmail)
	}
	u.Email = next
	return true
}

// SetPassword rehashes and applies a new password through the vault. Blank
// input is a no-op, not an error.
func (u *User) SetPassword(vault PasswordAuthenticator, raw string, cs *Changeset) (bool, error) {
	if raw == "" {
		return false, nil
	}

	if u.ID != uuid.Nil && vault.Compare(raw, u.PasswordHash) != nil {
		cs.Mark(FieldPassword)
	}

	hash, err := vault.Hash(raw)
	if err != nil {
		return false, err
	}

	u.PasswordHash = hash
	return true, nil
}

// RecordLoginFailure marks one failed login attempt.
func (u *User) RecordLoginFailure(cs *Changeset) {
	cs.Mark(FieldAttemptsIncrement)
}

// RecordLoginSuccess marks a successful login without token issuance.
func (u *User) RecordLoginSuccess(cs *Changeset) {
	cs.Mark(FieldAttemptsReset)
}

// StampTokenIssued advances the token epoch to the given issuance instant.
// Logins additionally shift the login timestamps and reset the failed
// counter when the changeset is applied.
func (u *User) StampTokenIssued(issuedAt time.Time, isLogin bool, cs *Changeset) {
	if issuedAt.After(u.LastTokenIssuedAt) {
		u.LastTokenIssuedAt = issuedAt
	}
	cs.Mark(FieldTokenIssued)
	if isLogin {
		cs.Mark(FieldLoggedTime)
	}
}

// Apply folds the changeset's derived effects into the record. The
// repository calls this once, right before persisting, so a retried call
// never double-increments counters or shifts timestamps twice.
func (u *User) Apply(cs *Changeset, now time.Time) {
	if cs.IsEmpty() {
		return
	}

	if cs.Has(FieldAttemptsIncrement) {
		u.FailedAttempts++
	} else if cs.Has(FieldAttemptsReset) || cs.Has(FieldLoggedTime) {
		if cs.Has(FieldLoggedTime) {
			u.PrevLoginAt = u.LastLoginAt
			at := now
			u.LastLoginAt = &at
		}
		u.FailedAttempts = 0
	}

	if cs.Has(FieldPassword) || cs.Has(FieldUsername) || cs.Has(FieldEmail) {
		at := now
		u.UpdatedAt = &at
		if cs.Has(FieldPassword) {
			u.PasswordChangedAt = &at
		}
	}
}

// Identity returns the read-only identity view used for token minting.
func (u *User) Identity() Identity {
	return NewIdentityFromUser(u)
}

// IdentityRef is the minimal identity view: just enough to reference the
// account from logs and cross-service calls.
type IdentityRef struct {
	ID       uuid.UUID `json:"id"`
	Username string    `json:"username"`
	Email    string    `json:"email"`
}

// Ref returns the minimal identity view.
func (u *User) Ref() IdentityRef {
	return IdentityRef{ID: u.ID, Username: u.Username, Email: u.Email}
}

// Profile is the full read-only projection handed to profile endpoints.
// Password material never leaves the aggregate.
type Profile struct {
	IdentityRef
	Roles           []string   `json:"roles"`
	IsActive        bool       `json:"is_active"`
	IsEmailVerified bool       `json:"is_email_verified"`
	Timezone        string     `json:"timezone,omitempty"`
	CreatedAt       *time.Time `json:"created_at,omitempty"`
	UpdatedAt       *time.Time `json:"updated_at,omitempty"`
	LastLoginAt     *time.Time `json:"last_login_at,omitempty"`
	PrevLoginAt     *time.Time `json:"prev_login_at,omitempty"`
}

// Profile returns the full read-only projection.
func (u *User) Profile() Profile {
	return Profile{
		IdentityRef:     u.Ref(),
		Roles:           append([]string(nil), u.Roles...),
		IsActive:        u.IsActive,
		IsEmailVerified: u.IsEmailVerified,
		Timezone:        u.Timezone,
		CreatedAt:       u.CreatedAt,
		UpdatedAt:       u.UpdatedAt,
		LastLoginAt:     u.LastLoginAt,
		PrevLoginAt:     u.PrevLoginAt,
	}
}

// UsernameHistory is one interval in the username lineage. EndAt == nil means
// the value is currently active; at most one open record exists per account.
type UsernameHistory struct {
	bun.BaseModel `bun:"table:username_history,alias:unh"`
	ID            uuid.UUID  `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	UserID        uuid.UUID  `bun:"user_id,notnull,type:uuid" json:"user_id,omitempty"`
	User          *User      `bun:"rel:belongs-to,join:user_id=id" json:"-"`
	Username      string     `bun:"username,notnull" json:"username,omitempty"`
	StartAt       time.Time  `bun:"start_at,notnull" json:"start_at,omitempty"`
	EndAt         *time.Time `bun:"end_at,nullzero" json:"end_at,omitempty"`
}

// IsOpen reports whether this interval is the active one.
func (h *UsernameHistory) IsOpen() bool {
	return h.EndAt == nil
}

// NewUsernameHistory opens a new interval for the user's current username.
func NewUsernameHistory(user *User, at time.Time) *UsernameHistory {
	return &UsernameHistory{
		ID:       uuid.New(),
		UserID:   user.ID,
		Username: user.Username,
		StartAt:  at,
	}
}

// EmailHistory is one interval in the email lineage.
type EmailHistory struct {
	bun.BaseModel `bun:"table:email_history,alias:emh"`
	ID            uuid.UUID  `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	UserID        uuid.UUID  `bun:"user_id,notnull,type:uuid" json:"user_id,omitempty"`
	User          *User      `bun:"rel:belongs-to,join:user_id=id" json:"-"`
	Email         string     `bun:"email,notnull" json:"email,omitempty"`
	StartAt       time.Time  `bun:"start_at,notnull" json:"start_at,omitempty"`
	EndAt         *time.Time `bun:"end_at,nullzero" json:"end_at,omitempty"`
}

// IsOpen reports whether this interval is the active one.
func (h *EmailHistory) IsOpen() bool {
	return h.EndAt == nil
}

// NewEmailHistory opens a new interval for the user's current email.
func NewEmailHistory(user *User, at time.Time) *EmailHistory {
	return &EmailHistory{
		ID:      uuid.New(),
		UserID:  user.ID,
		Email:   user.Email,
		StartAt: at,
	}
}
