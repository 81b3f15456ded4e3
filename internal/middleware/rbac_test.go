package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"github.com/uniport/uap-leave-api/internal/models"
)

func rbacRouter(handlerPath string, claims *models.JWTClaims, allowed ...string) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.GET(handlerPath, func(c *gin.Context) {
		if claims != nil {
			c.Set(ContextUserKey, claims)
		}
		c.Next()
	}, RBAC(allowed...), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})
	return router
}

func TestRBACAllowsListedRole(t *testing.T) {
	claims := &models.JWTClaims{UserID: "hod-1", Role: models.RoleHOD}
	router := rbacRouter("/leaves/pending", claims, "HOD", "SUPERADMIN")

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/leaves/pending", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRBACRejectsUnlistedRole(t *testing.T) {
	claims := &models.JWTClaims{UserID: "teacher-1", Role: models.RoleTeacher}
	router := rbacRouter("/leaves/pending", claims, "HOD", "SUPERADMIN")

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/leaves/pending", nil))

	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestRBACSelfMatchesRouteParam(t *testing.T) {
	claims := &models.JWTClaims{UserID: "teacher-1", Role: models.RoleTeacher}
	router := rbacRouter("/balances/:id", claims, "SUPERADMIN", "SELF")

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/balances/teacher-1", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/balances/teacher-2", nil))
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestRBACRequiresAuthentication(t *testing.T) {
	router := rbacRouter("/leaves/pending", nil, "HOD")

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/leaves/pending", nil))

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
