package testutil

import (
	"strings"

	"github.com/auth0/go-jwt-middleware/v2/validator"
	"github.com/campusfind/campusfind-api/middleware"
	"github.com/gin-gonic/gin"
)

// MockValidatedClaims creates a mock ValidatedClaims for testing. The role is
// placed in the custom claim the real middleware extracts it from.
func MockValidatedClaims(subject, role string, scopes []string) *validator.ValidatedClaims {
	return &validator.ValidatedClaims{
		RegisteredClaims: validator.RegisteredClaims{
			Issuer:  "https://campusfind-test.us.auth0.com/",
			Subject: subject,
		},
		CustomClaims: &middleware.CustomClaims{
			Scope: strings.Join(scopes, " "),
			Role:  role,
		},
	}
}

// SetMockAuthContext sets up a mock authenticated context the way the real
// EnsureValidToken middleware does
func SetMockAuthContext(c *gin.Context, auth0ID, role string, scopes []string) {
	c.Set("user_id", auth0ID)
	c.Set("access_token", "mock-token")
	c.Set("validated_claims", MockValidatedClaims(auth0ID, role, scopes))
}
