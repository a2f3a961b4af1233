// Package testhelpers provides utilities for testing medialert-engine components.
package testhelpers

import (
	"strconv"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TestJWTSecret is the HS256 secret used by tests that exercise the full auth chain.
const TestJWTSecret = "medialert-test-secret"

// GenerateTestJWT signs an HS256 token for the given user id and role, valid for one hour.
func GenerateTestJWT(t *testing.T, userID int64, role string) string {
	t.Helper()

	claims := jwt.MapClaims{
		"sub":  strconv.FormatInt(userID, 10),
		"role": role,
		"iat":  time.Now().Unix(),
		"exp":  time.Now().Add(time.Hour).Unix(),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(TestJWTSecret))
	if err != nil {
		t.Fatalf("Failed to sign test JWT: %v", err)
	}
	return token
}

// GenerateTestJWTWithBearer returns token with "Bearer " prefix for Authorization header.
func GenerateTestJWTWithBearer(t *testing.T, userID int64, role string) string {
	return "Bearer " + GenerateTestJWT(t, userID, role)
}
