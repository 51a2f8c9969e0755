// Package launch mints and resolves signed launch tokens. A hosted
// deployment hands out consent links as a single opaque token instead of a
// raw query string, so the launch context cannot be tampered with between
// link creation and form load.
package launch

import (
	"errors"
	"net/url"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var ErrInvalidToken = errors.New("invalid launch token")

type Claims struct {
	Params map[string]string `json:"params"`
	jwt.RegisteredClaims
}

// Mint signs the launch parameters into a token. Multi-valued params keep
// their first value only, matching how the form reads its query string.
func Mint(secret []byte, params url.Values, ttl time.Duration, now time.Time) (string, error) {
	flattened := make(map[string]string, len(params))
	for key := range params {
		flattened[key] = params.Get(key)
	}
	claims := Claims{
		Params: flattened,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(secret)
}

// Resolve validates a token and returns the launch parameters it carries.
func Resolve(secret []byte, tokenStr string) (url.Values, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return secret, nil
	})
	if err != nil {
		return nil, errors.Join(ErrInvalidToken, err)
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}
	params := url.Values{}
	for key, value := range claims.Params {
		params.Set(key, value)
	}
	return params, nil
}
