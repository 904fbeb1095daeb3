package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/Dosada05/rps-arena/models"
	"github.com/golang-jwt/jwt/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func signToken(t *testing.T, secret []byte, claims jwt.MapClaims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
	require.NoError(t, err)
	return token
}

func TestAuthenticate(t *testing.T) {
	secret := []byte("test-secret")
	var gotUserID int
	handler := Authenticate(secret)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, err := GetUserIDFromContext(r.Context())
		require.NoError(t, err)
		gotUserID = id
		w.WriteHeader(http.StatusOK)
	}))

	do := func(authorization string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		if authorization != "" {
			req.Header.Set("Authorization", authorization)
		}
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		return rec
	}

	assert.Equal(t, http.StatusUnauthorized, do("").Code)
	assert.Equal(t, http.StatusUnauthorized, do("Bearer not-a-token").Code)

	claims := jwt.MapClaims{
		"user_id": 42,
		"role":    "player",
		"exp":     time.Now().Add(time.Hour).Unix(),
	}
	// Токен, подписанный чужим секретом, не проходит.
	assert.Equal(t, http.StatusUnauthorized, do("Bearer "+signToken(t, []byte("other"), claims)).Code)

	rec := do("Bearer " + signToken(t, secret, claims))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 42, gotUserID)
}

func TestAuthorize(t *testing.T) {
	handler := Authorize(models.RoleOrganizer, models.RoleAdmin)(
		http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusNoContent)
		}))

	do := func(claims jwt.MapClaims) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/", nil)
		if claims != nil {
			req = req.WithContext(context.WithValue(req.Context(), userContextKey, claims))
		}
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		return rec
	}

	assert.Equal(t, http.StatusUnauthorized, do(nil).Code)
	assert.Equal(t, http.StatusForbidden, do(jwt.MapClaims{jwtClaimRole: "player"}).Code)
	assert.Equal(t, http.StatusNoContent, do(jwt.MapClaims{jwtClaimRole: "organizer"}).Code)
	assert.Equal(t, http.StatusNoContent, do(jwt.MapClaims{jwtClaimRole: "admin"}).Code)
}
