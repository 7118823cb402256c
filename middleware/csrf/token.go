package csrf

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/goliatone/go-router"
)

// signer issues and verifies stateless tokens. The wire form is the
// base64url encoding of "timestamp:nonce:scope:signature", where the
// signature is an HMAC-SHA256 over the first three segments.
type signer struct {
	key      []byte
	nonceLen int
	maxAge   time.Duration
}

func newSigner(cfg Config) signer {
	return signer{key: cfg.SecureKey, nonceLen: cfg.TokenLength, maxAge: cfg.Expiration}
}

func (s signer) issue(scope string) (string, error) {
	if len(s.key) == 0 {
		return "", ErrSecureKeyMissing
	}

	nonce := make([]byte, s.nonceLen)
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", err
	}

	payload := fmt.Sprintf("%d:%s:%s", time.Now().UTC().Unix(), hex.EncodeToString(nonce), scope)
	token := payload + ":" + hex.EncodeToString(s.sign(payload))
	return base64.RawURLEncoding.EncodeToString([]byte(token)), nil
}

func (s signer) verify(scope, token string) error {
	if len(s.key) == 0 {
		return ErrSecureKeyMissing
	}

	decoded, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return ErrTokenMismatch
	}

	parts := strings.Split(string(decoded), ":")
	if len(parts) != 4 {
		return ErrTokenMismatch
	}

	issuedAt, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		return ErrTokenMismatch
	}

	if _, err := hex.DecodeString(parts[1]); err != nil {
		return ErrTokenMismatch
	}

	signature, err := hex.DecodeString(parts[3])
	if err != nil {
		return ErrTokenMismatch
	}

	payload := strings.Join(parts[:3], ":")
	if !hmac.Equal(signature, s.sign(payload)) {
		return ErrTokenMismatch
	}

	if !constantTimeEqual(parts[2], scope) {
		return ErrTokenMismatch
	}

	if s.maxAge > 0 {
		expiresAt := time.Unix(issuedAt, 0).Add(s.maxAge)
		if time.Now().UTC().After(expiresAt) {
			return ErrTokenExpired
		}
	}

	return nil
}

func (s signer) sign(payload string) []byte {
	mac := hmac.New(sha256.New, s.key)
	mac.Write([]byte(payload))
	return mac.Sum(nil)
}

// randomToken returns a hex-encoded random token for storage-backed mode.
func randomToken(length int) (string, error) {
	bytes := make([]byte, length)
	if _, err := io.ReadFull(rand.Reader, bytes); err != nil {
		return "", err
	}
	return hex.EncodeToString(bytes), nil
}

func constantTimeEqual(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

// requestScope binds a token to a session, user, or client address so a
// token issued to one caller is useless to another.
func requestScope(ctx router.Context) string {
	if sessionID, ok := ctx.Locals("session_id").(string); ok && sessionID != "" {
		return "csrf_" + sessionID
	}

	if userID, ok := ctx.Locals("user_id").(string); ok && userID != "" {
		return "csrf_user_" + userID
	}

	return "csrf_ip_" + ctx.IP()
}

// ensureSecureKey generates a process-local key for stateless mode when the
// host does not supply one. Short keys are a configuration error.
func ensureSecureKey(current []byte, storage Storage) []byte {
	if storage != nil {
		return current
	}
	if len(current) > 0 {
		if len(current) < 32 {
			panic(fmt.Errorf("csrf: secure key must be at least 32 bytes, got %d", len(current)))
		}
		return current
	}
	key := make([]byte, 32)
	if _, err := io.ReadFull(rand.Reader, key); err != nil {
		panic(fmt.Errorf("csrf: unable to initialize secure key: %w", err))
	}
	return key
}
