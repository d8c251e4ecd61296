package api

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"

	"studybuddy/internal/util"
)

const testSecret = "test-secret"

func signToken(t *testing.T, secret, sub string) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": sub,
		"exp": time.Now().Add(time.Hour).Unix(),
	})
	signed, err := token.SignedString([]byte(secret))
	require.NoError(t, err)
	return signed
}

func TestAuthPassesValidToken(t *testing.T) {
	var gotUser string
	h := withAuth(testSecret, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUser = userID(r)
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/materials", nil)
	req.Header.Set("Authorization", "Bearer "+signToken(t, testSecret, "user-42"))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "user-42", gotUser)
}

func TestAuthRejectsMissingToken(t *testing.T) {
	h := withAuth(testSecret, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/materials", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAuthRejectsWrongSecret(t *testing.T) {
	h := withAuth(testSecret, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/materials", nil)
	req.Header.Set("Authorization", "Bearer "+signToken(t, "other-secret", "user-42"))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAuthRejectsTokenWithoutSubject(t *testing.T) {
	h := withAuth(testSecret, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"exp": time.Now().Add(time.Hour).Unix(),
	})
	signed, err := token.SignedString([]byte(testSecret))
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/materials", nil)
	req.Header.Set("Authorization", "Bearer "+signed)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAuthSkipsHealthz(t *testing.T) {
	h := withAuth(testSecret, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
}

func TestStatusForDomainErrors(t *testing.T) {
	require.Equal(t, http.StatusNotFound, statusFor(util.ErrMaterialNotFound))
	require.Equal(t, http.StatusNotFound, statusFor(fmt.Errorf("wrapped: %w", util.ErrTestNotFound)))
	require.Equal(t, http.StatusConflict, statusFor(util.ErrNotIndexed))
	require.Equal(t, http.StatusServiceUnavailable, statusFor(util.ErrBackendUnavailable))
	require.Equal(t, http.StatusBadRequest, statusFor(util.ErrUnsupportedFormat))
	require.Equal(t, http.StatusBadGateway, statusFor(util.ErrGenerationFailed))
	require.Equal(t, http.StatusInternalServerError, statusFor(errors.New("boom")))
}
