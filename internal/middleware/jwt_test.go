package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/uniport/uap-leave-api/internal/models"
	"github.com/uniport/uap-leave-api/internal/service"
)

const testSecret = "unit-test-secret"

func signToken(t *testing.T, secret string, claims *models.JWTClaims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	require.NoError(t, err)
	return signed
}

func jwtRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	auth := service.NewAuthService(testSecret, nil)
	router := gin.New()
	router.GET("/leaves/my", JWT(auth), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})
	return router
}

func TestJWTAcceptsValidToken(t *testing.T) {
	gin.SetMode(gin.TestMode)
	auth := service.NewAuthService(testSecret, nil)
	router := gin.New()
	var captured *models.JWTClaims
	router.GET("/leaves/my", JWT(auth), func(c *gin.Context) {
		captured, _ = CurrentUser(c)
		c.Status(http.StatusOK)
	})

	token := signToken(t, testSecret, &models.JWTClaims{
		UserID:     "teacher-1",
		Role:       models.RoleTeacher,
		Department: "Physics",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	})

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/leaves/my", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, captured)
	assert.Equal(t, "teacher-1", captured.UserID)
	assert.Equal(t, models.RoleTeacher, captured.Role)
}

func TestJWTRejectsMissingHeader(t *testing.T) {
	router := jwtRouter()

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/leaves/my", nil))

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestJWTRejectsMalformedHeader(t *testing.T) {
	router := jwtRouter()

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/leaves/my", nil)
	req.Header.Set("Authorization", "Token abc")
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestJWTRejectsWrongSecret(t *testing.T) {
	router := jwtRouter()

	token := signToken(t, "some-other-secret", &models.JWTClaims{
		UserID: "teacher-1",
		Role:   models.RoleTeacher,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	})

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/leaves/my", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestJWTRejectsExpiredToken(t *testing.T) {
	router := jwtRouter()

	token := signToken(t, testSecret, &models.JWTClaims{
		UserID: "teacher-1",
		Role:   models.RoleTeacher,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Hour)),
		},
	})

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/leaves/my", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
