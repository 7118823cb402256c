package auth

// UserIdentity adapts a User into the Identity interface for token generation.
type UserIdentity struct {
	user *User
}

// NewIdentityFromUser returns an Identity adapter for the provided user.
func NewIdentityFromUser(user *User) Identity {
	if user == nil {
		return nil
	}
	return UserIdentity{user: user}
}

// ID returns the user's ID as a string.
func (u UserIdentity) ID() string {
	if u.user == nil {
		return ""
	}
	return u.user.ID.String()
}

// Username returns the user's username.
func (u UserIdentity) Username() string {
	if u.user == nil {
		return ""
	}
	return u.user.Username
}

// Email returns the user's email address.
func (u UserIdentity) Email() string {
	if u.user == nil {
		return ""
	}
	return u.user.Email
}

// Roles returns a copy of the user's role set. An account that somehow has
// no roles is treated as a plain member rather than minting roleless tokens.
func (u UserIdentity) Roles() []string {
	if u.user == nil {
		return nil
	}
	if len(u.user.Roles) == 0 {
		return []string{string(RoleMember)}
	}
	return append([]string(nil), u.user.Roles...)
}

var _ Identity = UserIdentity{}
