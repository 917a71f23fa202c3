package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
)

var testConfig = Config{Secret: "test-secret", Issuer: "mapty.identity"}

func signToken(t *testing.T, claims jwt.MapClaims, secret string) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return token
}

func validClaims() jwt.MapClaims {
	return jwt.MapClaims{
		"sub":    "owner",
		"iss":    testConfig.Issuer,
		"exp":    time.Now().Add(time.Hour).Unix(),
		"scopes": []string{ScopeWorkoutsRead},
	}
}

func TestParseValidToken(t *testing.T) {
	claims, err := Parse(signToken(t, validClaims(), testConfig.Secret), testConfig)
	require.NoError(t, err)

	require.Equal(t, "owner", claims.Subject)
	require.True(t, claims.HasScope(ScopeWorkoutsRead))
	require.False(t, claims.HasScope(ScopeWorkoutsWrite))
	require.True(t, claims.CanRead())
}

func TestParseSpaceSeparatedScopes(t *testing.T) {
	mc := validClaims()
	mc["scopes"] = "workouts:write  other"

	claims, err := Parse(signToken(t, mc, testConfig.Secret), testConfig)
	require.NoError(t, err)
	require.True(t, claims.HasScope(ScopeWorkoutsWrite))
	require.True(t, claims.CanRead())
}

func TestParseRejectsBadTokens(t *testing.T) {
	_, err := Parse("  ", testConfig)
	require.ErrorIs(t, err, ErrMissingToken)

	_, err = Parse(signToken(t, validClaims(), "other-secret"), testConfig)
	require.ErrorIs(t, err, ErrInvalidToken)

	expired := validClaims()
	expired["exp"] = time.Now().Add(-time.Minute).Unix()
	_, err = Parse(signToken(t, expired, testConfig.Secret), testConfig)
	require.ErrorIs(t, err, ErrInvalidToken)

	wrongIssuer := validClaims()
	wrongIssuer["iss"] = "someone-else"
	_, err = Parse(signToken(t, wrongIssuer, testConfig.Secret), testConfig)
	require.ErrorIs(t, err, ErrInvalidToken)

	noSubject := validClaims()
	delete(noSubject, "sub")
	_, err = Parse(signToken(t, noSubject, testConfig.Secret), testConfig)
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestMiddleware(t *testing.T) {
	var seen *Claims
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = FromContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	})
	handler := NewMiddleware(testConfig).Wrap(next)

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/v1/workouts", nil))
	require.Equal(t, http.StatusUnauthorized, rr.Code)

	rr = httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.Equal(t, http.StatusNoContent, rr.Code)
	require.Nil(t, seen)

	req := httptest.NewRequest(http.MethodGet, "/v1/workouts", nil)
	req.Header.Set("Authorization", "Bearer "+signToken(t, validClaims(), testConfig.Secret))
	rr = httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	require.Equal(t, http.StatusNoContent, rr.Code)
	require.NotNil(t, seen)
	require.Equal(t, "owner", seen.Subject)

	req = httptest.NewRequest(http.MethodGet, "/v1/workouts", nil)
	req.Header.Set("Authorization", "Basic abc")
	rr = httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	require.Equal(t, http.StatusUnauthorized, rr.Code)
}
