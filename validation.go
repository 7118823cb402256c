package auth

import (
	"regexp"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	goerrors "github.com/goliatone/go-errors"
)

// usernameRegex accepts lower case alphanumerics with inner separators.
// Input is normalized to lower case before validation ever sees it.
var usernameRegex = regexp.MustCompile(`^[a-z0-9][a-z0-9._-]{1,28}[a-z0-9]$`)

// ValidateUsername enforces the username shape.
func ValidateUsername(username string) error {
	return wrapValidation(validation.Validate(username,
		validation.Required,
		validation.Match(usernameRegex),
	), "invalid username")
}

// ValidateEmail enforces a syntactically valid email address.
func ValidateEmail(email string) error {
	return wrapValidation(validation.Validate(email,
		validation.Required,
		is.Email,
	), "invalid email")
}

// ValidateTimezone requires an IANA zone name resolvable on this host.
func ValidateTimezone(timezone string) error {
	return wrapValidation(validation.Validate(timezone,
		validation.Required,
		validation.By(func(value interface{}) error {
			name, _ := value.(string)
			_, err := time.LoadLocation(name)
			return err
		}),
	), "invalid timezone")
}

// ValidateRoles requires a non-empty set of known roles.
func ValidateRoles(roles []string) error {
	if !ValidRoleSet(roles) {
		return goerrors.New("role set must be non-empty and contain known roles", goerrors.CategoryValidation).
			WithMetadata(map[string]any{"roles": roles})
	}
	return nil
}

// ValidateRegistration checks every field of a registration request. The
// password only needs to be non-blank here; strength policy belongs to hosts.
func ValidateRegistration(username, email, password, timezone string, roles []string) error {
	if password == "" {
		return ErrNoEmptyString
	}
	if err := ValidateUsername(username); err != nil {
		return err
	}
	if err := ValidateEmail(email); err != nil {
		return err
	}
	// An absent role set is fine, the store defaults it to member.
	if len(roles) > 0 {
		if err := ValidateRoles(roles); err != nil {
			return err
		}
	}
	if timezone != "" {
		return ValidateTimezone(timezone)
	}
	return nil
}

// ValidateUpdate checks only the fields present in a partial update.
func ValidateUpdate(patch UpdatePayload) error {
	if patch.Username != "" {
		if err := ValidateUsername(NormalizeIdentifier(patch.Username)); err != nil {
			return err
		}
	}
	if patch.Email != "" {
		if err := ValidateEmail(NormalizeIdentifier(patch.Email)); err != nil {
			return err
		}
	}
	return nil
}

func wrapValidation(err error, msg string) error {
	if err == nil {
		return nil
	}
	return goerrors.Wrap(err, goerrors.CategoryValidation, msg)
}
