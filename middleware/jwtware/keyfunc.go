package jwtware

import (
	"fmt"
	"log"
	"time"

	"github.com/MicahParks/keyfunc/v2"
	"github.com/golang-jwt/jwt/v5"
)

// SigningKey pairs key material with the algorithm it is valid for. An empty
// JWTAlg skips the algorithm check.
type SigningKey struct {
	JWTAlg string
	Key    any
}

// resolveKeyFunc builds a jwt.Keyfunc from whichever key source the config
// provides: static keys by kid, remote JWK sets, or a single signing key.
func resolveKeyFunc(cfg Config) jwt.Keyfunc {
	if len(cfg.SigningKeys) == 0 && len(cfg.JWKSetURLs) == 0 {
		return signingKeyFunc(cfg.SigningKey)
	}

	var givenKeys map[string]keyfunc.GivenKey
	if cfg.SigningKeys != nil {
		givenKeys = make(map[string]keyfunc.GivenKey, len(cfg.SigningKeys))
		for kid, key := range cfg.SigningKeys {
			givenKeys[kid] = keyfunc.NewGivenCustom(key.Key, keyfunc.GivenKeyOptions{
				Algorithm: key.JWTAlg,
			})
		}
	}

	if len(cfg.JWKSetURLs) == 0 {
		return keyfunc.NewGiven(givenKeys).Keyfunc
	}

	kf, err := multiKeyfunc(givenKeys, cfg.JWKSetURLs)
	if err != nil {
		panic("Failed to create keyfunc from JWK Set URL: " + err.Error())
	}
	return kf
}

func multiKeyfunc(givenKeys map[string]keyfunc.GivenKey, jwtSetUrls []string) (jwt.Keyfunc, error) {
	opts := keyfuncOptions(givenKeys)
	m := make(map[string]keyfunc.Options, len(jwtSetUrls))
	for _, url := range jwtSetUrls {
		m[url] = opts
	}
	mopts := keyfunc.MultipleOptions{
		KeySelector: keyfunc.KeySelectorFirst,
	}
	multi, err := keyfunc.GetMultiple(m, mopts)
	if err != nil {
		return nil, fmt.Errorf("failed to get JWT URLs: %w", err)
	}
	return multi.Keyfunc, nil
}

func keyfuncOptions(givenKeys map[string]keyfunc.GivenKey) keyfunc.Options {
	return keyfunc.Options{
		GivenKeys: givenKeys,
		RefreshErrorHandler: func(err error) {
			log.Printf("failed to do a background refresh of JWT set: %s", err)
		},
		RefreshInterval:   time.Hour,
		RefreshRateLimit:  time.Minute * 5,
		RefreshTimeout:    time.Second * 10,
		RefreshUnknownKID: true,
	}
}

func signingKeyFunc(key SigningKey) jwt.Keyfunc {
	return func(token *jwt.Token) (any, error) {
		if key.JWTAlg != "" {
			alg, ok := token.Header["alg"].(string)
			if !ok {
				return nil, fmt.Errorf("unexpected JWT signing method: expected %q got: missing json type", key.JWTAlg)
			}
			if alg != key.JWTAlg {
				return nil, fmt.Errorf("unexpected jwt signing method: expected: %q: got: %q", key.JWTAlg, alg)
			}
		}
		return key.Key, nil
	}
}
