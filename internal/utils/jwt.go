package utils

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrNoExpiry is returned by [TokenExpiry] when the token carries no exp claim.
var ErrNoExpiry = errors.New("token has no expiry")

// TokenExpiry returns the exp claim of a JWT without verifying its
// signature. The daemon only holds the remote service's token, never its
// signing key, so the claim is read for scheduling purposes only.
func TokenExpiry(tokenString string) (time.Time, error) {
	token, _, err := jwt.NewParser().ParseUnverified(tokenString, jwt.MapClaims{})
	if err != nil {
		return time.Time{}, fmt.Errorf("error occurred parsing token: %w", err)
	}

	exp, err := token.Claims.GetExpirationTime()
	if err != nil {
		return time.Time{}, fmt.Errorf("error occurred reading exp claim: %w", err)
	}
	if exp == nil {
		return time.Time{}, ErrNoExpiry
	}

	return exp.Time, nil
}

// IsTokenExpired reports whether the JWT expired at or before now. Tokens
// that are not JWTs, or carry no exp claim, are treated as not expired and
// left for the remote service to judge.
func IsTokenExpired(tokenString string, now time.Time) bool {
	if tokenString == "" {
		return false
	}
	exp, err := TokenExpiry(tokenString)
	if err != nil {
		return false
	}
	return !now.Before(exp)
}
