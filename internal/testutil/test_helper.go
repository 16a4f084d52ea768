package testutil

import (
	"testing"
	"time"

	"github.com/Success-Framework/SFManagers-sub001/internal/models"
	"github.com/golang-jwt/jwt/v5"
)

const TestJWTSecret = "test-secret-key-for-testing-only"

// TestHelper provides utility functions for tests
type TestHelper struct {
	t *testing.T
}

func NewTestHelper(t *testing.T) *TestHelper {
	return &TestHelper{t: t}
}

// CreateTestUser creates a test user with default values
func (h *TestHelper) CreateTestUser(id uint, username string) *models.User {
	if id == 0 {
		id = 1
	}
	if username == "" {
		username = "testuser"
	}
	return &models.User{
		ID:        id,
		Username:  username,
		FullName:  "Test " + username,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
}

// SignToken issues an HS256 access token the way the account service does.
func (h *TestHelper) SignToken(userID uint, ttl time.Duration) string {
	h.t.Helper()
	return SignToken(h.t, TestJWTSecret, userID, ttl)
}

func SignToken(t testing.TB, secret string, userID uint, ttl time.Duration) string {
	t.Helper()
	claims := jwt.MapClaims{
		"user_id": userID,
		"exp":     time.Now().Add(ttl).Unix(),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return token
}

// SetupTestEnv sets up required environment variables for testing
func (h *TestHelper) SetupTestEnv() {
	h.t.Setenv("JWT_SECRET", TestJWTSecret)
	h.t.Setenv("CONFIG_PATH", "")
}
