package auth

import (
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"fmt"

	"github.com/MicahParks/keyfunc/v2"
	"github.com/golang-jwt/jwt/v5"
	goerrors "github.com/goliatone/go-errors"
)

// SigningMethod selects the signature scheme. The claim shape and validation
// rules are identical either way; this is a deployment concern.
type SigningMethod string

const (
	MethodHS256 SigningMethod = "HS256"
	MethodRS256 SigningMethod = "RS256"
)

// KeyMaterial holds the signing key material for one deployment. Symmetric
// deployments share a secret; asymmetric deployments sign with the private
// key and hand the public half to services that only verify.
type KeyMaterial struct {
	method     SigningMethod
	secret     []byte
	privateKey *rsa.PrivateKey
	publicKey  *rsa.PublicKey
	jwks       *keyfunc.JWKS
}

// NewSymmetricKeyMaterial builds HS256 key material from a shared secret.
func NewSymmetricKeyMaterial(secret []byte) (*KeyMaterial, error) {
	if len(secret) == 0 {
		return nil, goerrors.New("signing secret must not be empty", goerrors.CategoryBadInput).
			WithTextCode(TextCodeKeyMaterial)
	}
	return &KeyMaterial{method: MethodHS256, secret: secret}, nil
}

// NewKeyPairMaterial builds RS256 key material from PEM encoded PKCS8 private
// and PKIX public keys.
func NewKeyPairMaterial(privatePEM, publicPEM []byte) (*KeyMaterial, error) {
	private, err := parsePrivateKey(privatePEM)
	if err != nil {
		return nil, err
	}

	public, err := parsePublicKey(publicPEM)
	if err != nil {
		return nil, err
	}

	return &KeyMaterial{method: MethodRS256, privateKey: private, publicKey: public}, nil
}

// NewVerifyOnlyKeyMaterial builds RS256 material that can verify but never
// mint tokens, for services that consume tokens issued elsewhere.
func NewVerifyOnlyKeyMaterial(publicPEM []byte) (*KeyMaterial, error) {
	public, err := parsePublicKey(publicPEM)
	if err != nil {
		return nil, err
	}
	return &KeyMaterial{method: MethodRS256, publicKey: public}, nil
}

// NewRemoteKeyMaterial builds verify-only material backed by a remote JWKS
// endpoint, refreshed by the keyfunc library.
func NewRemoteKeyMaterial(jwksURL string, opts keyfunc.Options) (*KeyMaterial, error) {
	jwks, err := keyfunc.Get(jwksURL, opts)
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryOperation, "failed to fetch JWKS").
			WithTextCode(TextCodeKeyMaterial).
			WithMetadata(map[string]any{"url": jwksURL})
	}
	return &KeyMaterial{method: MethodRS256, jwks: jwks}, nil
}

// Method returns the configured signing method.
func (k *KeyMaterial) Method() SigningMethod {
	return k.method
}

// CanSign reports whether this material can mint tokens, not only verify them.
func (k *KeyMaterial) CanSign() bool {
	switch k.method {
	case MethodHS256:
		return len(k.secret) > 0
	case MethodRS256:
		return k.privateKey != nil
	default:
		return false
	}
}

// JWTMethod returns the jwt-go signing method implementation.
func (k *KeyMaterial) JWTMethod() jwt.SigningMethod {
	if k.method == MethodRS256 {
		return jwt.SigningMethodRS256
	}
	return jwt.SigningMethodHS256
}

// SigningKey returns the key used to sign, failing for verify-only material.
func (k *KeyMaterial) SigningKey() (any, error) {
	switch k.method {
	case MethodHS256:
		return k.secret, nil
	case MethodRS256:
		if k.privateKey == nil {
			return nil, goerrors.New("key material is verify-only", goerrors.CategoryOperation).
				WithTextCode(TextCodeKeyMaterial)
		}
		return k.privateKey, nil
	default:
		return nil, goerrors.New("unsupported signing method", goerrors.CategoryBadInput).
			WithTextCode(TextCodeKeyMaterial)
	}
}

// Keyfunc returns the verification callback handed to the JWT parser. It
// rejects tokens whose algorithm family does not match the configured method,
// regardless of what the token header advertises.
func (k *KeyMaterial) Keyfunc() jwt.Keyfunc {
	if k.jwks != nil {
		return k.jwks.Keyfunc
	}

	return func(t *jwt.Token) (any, error) {
		switch k.method {
		case MethodHS256:
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
			}
			return k.secret, nil
		case MethodRS256:
			if _, ok := t.Method.(*jwt.SigningMethodRSA); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
			}
			return k.publicKey, nil
		default:
			return nil, fmt.Errorf("unsupported signing method: %v", k.method)
		}
	}
}

// PublicKeyPEM returns the PEM encoded public key for distribution to
// verify-only services. Symmetric material has nothing distributable.
func (k *KeyMaterial) PublicKeyPEM() (string, error) {
	if k.method != MethodRS256 || k.publicKey == nil {
		return "", goerrors.New("no distributable public key", goerrors.CategoryOperation).
			WithTextCode(TextCodeKeyMaterial)
	}

	der, err := x509.MarshalPKIXPublicKey(k.publicKey)
	if err != nil {
		return "", goerrors.Wrap(err, goerrors.CategoryInternal, "failed to marshal public key")
	}

	block := &pem.Block{Type: "PUBLIC KEY", Bytes: der}
	return string(pem.EncodeToMemory(block)), nil
}

func parsePrivateKey(privatePEM []byte) (*rsa.PrivateKey, error) {
	block, _ := pem.Decode(privatePEM)
	if block == nil {
		return nil, goerrors.New("private key PEM is missing or empty", goerrors.CategoryBadInput).
			WithTextCode(TextCodeKeyMaterial)
	}

	parsed, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		// PKCS1 fallback for keys generated with older tooling.
		if rsaKey, err1 := x509.ParsePKCS1PrivateKey(block.Bytes); err1 == nil {
			return rsaKey, nil
		}
		return nil, goerrors.Wrap(err, goerrors.CategoryBadInput, "unable to parse RSA private key").
			WithTextCode(TextCodeKeyMaterial)
	}

	rsaKey, ok := parsed.(*rsa.PrivateKey)
	if !ok {
		return nil, goerrors.New("private key is not RSA", goerrors.CategoryBadInput).
			WithTextCode(TextCodeKeyMaterial)
	}

	return rsaKey, nil
}

func parsePublicKey(publicPEM []byte) (*rsa.PublicKey, error) {
	block, _ := pem.Decode(publicPEM)
	if block == nil {
		return nil, goerrors.New("public key PEM is missing or empty", goerrors.CategoryBadInput).
			WithTextCode(TextCodeKeyMaterial)
	}

	parsed, err := x509.ParsePKIXPublicKey(block.Bytes)
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryBadInput, "unable to parse RSA public key").
			WithTextCode(TextCodeKeyMaterial)
	}

	rsaKey, ok := parsed.(*rsa.PublicKey)
	if !ok {
		return nil, goerrors.New("public key is not RSA", goerrors.CategoryBadInput).
			WithTextCode(TextCodeKeyMaterial)
	}

	return rsaKey, nil
}
