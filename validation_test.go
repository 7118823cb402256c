package auth_test

import (
	"testing"

	auth "github.com/goliatone/go-identity"
	"github.com/stretchr/testify/assert"
)

func TestValidateUsername(t *testing.T) {
	tests := []struct {
		username string
		wantErr  bool
	}{
		{"tester", false},
		{"a1b", false},
		{"user.name-01_x", false},
		{"", true},
		{"ab", true},
		{"Tester", true},
		{".leading", true},
		{"trailing.", true},
		{"way-too-long-username-over-thirty-characters", true},
	}

	for _, tc := range tests {
		t.Run(tc.username, func(t *testing.T) {
			err := auth.ValidateUsername(tc.username)
			if tc.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidateEmail(t *testing.T) {
	assert.NoError(t, auth.ValidateEmail("tester@example.com"))
	assert.Error(t, auth.ValidateEmail(""))
	assert.Error(t, auth.ValidateEmail("not-an-email"))
}

func TestValidateTimezone(t *testing.T) {
	assert.NoError(t, auth.ValidateTimezone("UTC"))
	assert.NoError(t, auth.ValidateTimezone("America/New_York"))
	assert.Error(t, auth.ValidateTimezone(""))
	assert.Error(t, auth.ValidateTimezone("Mars/Olympus_Mons"))
}

func TestValidateRoles(t *testing.T) {
	assert.NoError(t, auth.ValidateRoles([]string{auth.RoleMember}))
	assert.NoError(t, auth.ValidateRoles([]string{auth.RoleAdmin, auth.RoleOwner}))
	assert.Error(t, auth.ValidateRoles(nil))
	assert.Error(t, auth.ValidateRoles([]string{"superuser"}))
}

func TestValidateRegistration(t *testing.T) {
	tests := []struct {
		name     string
		username string
		email    string
		password string
		timezone string
		roles    []string
		wantErr  bool
	}{
		{"complete", "tester", "tester@example.com", "secret", "UTC", []string{auth.RoleMember}, false},
		{"roles omitted defaults later", "tester", "tester@example.com", "secret", "", nil, false},
		{"timezone optional", "tester", "tester@example.com", "secret", "", []string{auth.RoleMember}, false},
		{"blank password", "tester", "tester@example.com", "", "", nil, true},
		{"bad username", "x", "tester@example.com", "secret", "", nil, true},
		{"bad email", "tester", "nope", "secret", "", nil, true},
		{"bad timezone", "tester", "tester@example.com", "secret", "Nowhere/Town", nil, true},
		{"unknown role", "tester", "tester@example.com", "secret", "", []string{"superuser"}, true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := auth.ValidateRegistration(tc.username, tc.email, tc.password, tc.timezone, tc.roles)
			if tc.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidateUpdate(t *testing.T) {
	assert.NoError(t, auth.ValidateUpdate(auth.UpdatePayload{}))
	assert.NoError(t, auth.ValidateUpdate(auth.UpdatePayload{Username: "Renamed"}))
	assert.NoError(t, auth.ValidateUpdate(auth.UpdatePayload{Email: "New@Example.com"}))
	assert.Error(t, auth.ValidateUpdate(auth.UpdatePayload{Username: "x"}))
	assert.Error(t, auth.ValidateUpdate(auth.UpdatePayload{Email: "broken"}))
}
