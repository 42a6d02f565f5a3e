package httpapi

import (
	"net/http"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-signing-secret"

func signToken(t *testing.T, secret string, claims jwt.MapClaims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	require.NoError(t, err)
	return signed
}

func validClaims() jwt.MapClaims {
	return jwt.MapClaims{
		"org": "org-1",
		"sub": "u1",
		"exp": time.Now().Add(time.Hour).Unix(),
	}
}

func TestAuthRejectsMissingHeader(t *testing.T) {
	app := newTestApp(t, AuthConfig{Mode: "jwt", JWTSecret: testSecret})

	resp, body := doJSON(t, app, http.MethodGet, "/api/v1/health", "", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, "missing_auth", body["code"])
}

func TestAuthRejectsNonBearerScheme(t *testing.T) {
	app := newTestApp(t, AuthConfig{Mode: "jwt", JWTSecret: testSecret})

	headers := map[string]string{"Authorization": "Basic dXNlcjpwYXNz"}
	resp, body := doJSON(t, app, http.MethodGet, "/api/v1/health", "", headers)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, "invalid_auth_scheme", body["code"])
}

func TestAuthRejectsWrongSecret(t *testing.T) {
	app := newTestApp(t, AuthConfig{Mode: "jwt", JWTSecret: testSecret})

	headers := map[string]string{
		"Authorization": "Bearer " + signToken(t, "some-other-secret", validClaims()),
	}
	resp, body := doJSON(t, app, http.MethodGet, "/api/v1/health", "", headers)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, "invalid_token", body["code"])
}

func TestAuthRejectsExpiredToken(t *testing.T) {
	app := newTestApp(t, AuthConfig{Mode: "jwt", JWTSecret: testSecret})

	claims := validClaims()
	claims["exp"] = time.Now().Add(-time.Hour).Unix()
	headers := map[string]string{"Authorization": "Bearer " + signToken(t, testSecret, claims)}

	resp, body := doJSON(t, app, http.MethodGet, "/api/v1/health", "", headers)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, "invalid_token", body["code"])
}

func TestAuthRejectsMissingTenantClaims(t *testing.T) {
	app := newTestApp(t, AuthConfig{Mode: "jwt", JWTSecret: testSecret})

	claims := jwt.MapClaims{"sub": "u1", "exp": time.Now().Add(time.Hour).Unix()}
	headers := map[string]string{"Authorization": "Bearer " + signToken(t, testSecret, claims)}

	resp, body := doJSON(t, app, http.MethodGet, "/api/v1/health", "", headers)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, "missing_tenant_claims", body["code"])
}

func TestAuthAcceptsValidToken(t *testing.T) {
	app := newTestApp(t, AuthConfig{Mode: "jwt", JWTSecret: testSecret})

	headers := map[string]string{"Authorization": "Bearer " + signToken(t, testSecret, validClaims())}
	resp, body := doJSON(t, app, http.MethodPost, "/api/v1/workspaces/ws-1/prompt",
		`{"message":"hi"}`, headers)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	prompt, _ := body["prompt"].(string)
	assert.Contains(t, prompt, "Engineering", "tenant resolved from token claims")
}

func TestAuthNoneModeReadsHeaders(t *testing.T) {
	app := newTestApp(t, AuthConfig{Mode: "none"})

	resp, _ := doJSON(t, app, http.MethodPost, "/api/v1/workspaces/ws-1/prompt",
		`{"message":"hi"}`, tenantHeaders())
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
