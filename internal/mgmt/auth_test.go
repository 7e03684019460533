package mgmt

import (
	"net/http"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAuth_NoneModeAllowsEverything(t *testing.T) {
	app, _ := testApp(t, AuthConfig{Mode: "none"})

	req, _ := http.NewRequest("GET", "/api/v1/suggestions", nil)
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestAuth_APIKey(t *testing.T) {
	app, _ := testApp(t, AuthConfig{Mode: "api-key", APIKey: "secret-key"})

	// No header rejected.
	req, _ := http.NewRequest("GET", "/api/v1/suggestions", nil)
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	// Wrong scheme rejected.
	req, _ = http.NewRequest("GET", "/api/v1/suggestions", nil)
	req.Header.Set("Authorization", "Basic secret-key")
	resp, err = app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	// Wrong key rejected.
	req, _ = http.NewRequest("GET", "/api/v1/suggestions", nil)
	req.Header.Set("Authorization", "Bearer wrong-key")
	resp, err = app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	// Correct key accepted.
	req, _ = http.NewRequest("GET", "/api/v1/suggestions", nil)
	req.Header.Set("Authorization", "Bearer secret-key")
	resp, err = app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestAuth_ProbesStayOpen(t *testing.T) {
	app, _ := testApp(t, AuthConfig{Mode: "api-key", APIKey: "secret-key"})

	for _, path := range []string{"/healthz", "/readyz"} {
		req, _ := http.NewRequest("GET", path, nil)
		resp, err := app.Test(req, -1)
		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, resp.StatusCode, path)
	}
}

func TestAuth_JWT(t *testing.T) {
	secret := "jwt-test-secret"
	app, _ := testApp(t, AuthConfig{Mode: "jwt", JWTSecret: secret})

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "collaborator",
		"exp": time.Now().Add(time.Hour).Unix(),
	})
	signed, err := token.SignedString([]byte(secret))
	require.NoError(t, err)

	req, _ := http.NewRequest("GET", "/api/v1/suggestions", nil)
	req.Header.Set("Authorization", "Bearer "+signed)
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestAuth_JWT_WrongSecret(t *testing.T) {
	app, _ := testApp(t, AuthConfig{Mode: "jwt", JWTSecret: "right-secret"})

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "collaborator",
		"exp": time.Now().Add(time.Hour).Unix(),
	})
	signed, err := token.SignedString([]byte("wrong-secret"))
	require.NoError(t, err)

	req, _ := http.NewRequest("GET", "/api/v1/suggestions", nil)
	req.Header.Set("Authorization", "Bearer "+signed)
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestAuth_JWT_Expired(t *testing.T) {
	secret := "jwt-test-secret"
	app, _ := testApp(t, AuthConfig{Mode: "jwt", JWTSecret: secret})

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "collaborator",
		"exp": time.Now().Add(-time.Hour).Unix(),
	})
	signed, err := token.SignedString([]byte(secret))
	require.NoError(t, err)

	req, _ := http.NewRequest("GET", "/api/v1/suggestions", nil)
	req.Header.Set("Authorization", "Bearer "+signed)
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}
