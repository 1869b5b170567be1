package testutil

import (
	"testing"
	"time"

	"bookstore/internal/config"
	"bookstore/internal/utils"

	"github.com/stretchr/testify/require"
)

// TestSecret signs every token issued in tests
const TestSecret = "test-secret-key"

// JWTConfig is the token configuration used in tests
func JWTConfig() config.JWTConfig {
	return config.JWTConfig{SecretKey: TestSecret, Algorithm: "HS256", AccessTokenTTL: 30 * time.Minute}
}

// NewJWTUtil returns a JWTUtil signing with TestSecret
func NewJWTUtil(t *testing.T) *utils.JWTUtil {
	t.Helper()
	ju, err := utils.NewJWTUtil(JWTConfig())
	require.NoError(t, err)
	return ju
}
