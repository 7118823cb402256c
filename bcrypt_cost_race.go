//go:build race

package auth

import "golang.org/x/crypto/bcrypt"

// Race-enabled builds run hashing much slower; drop to the library default
// so test suites stay inside strict timeouts.
func passwordHashCost() int {
	return bcrypt.DefaultCost
}
