package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"github.com/accademia-musici/academy-api/internal/models"
)

func rbacRouter(user *models.User, allowed ...string) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/users/:id", func(c *gin.Context) {
		if user != nil {
			c.Set(ContextUserKey, user)
		}
		c.Next()
	}, RBAC(allowed...), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})
	return r
}

func doGet(r *gin.Engine, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	r.ServeHTTP(w, req)
	return w
}

func TestRBACAllowsRole(t *testing.T) {
	admin := &models.User{ID: "a1", Role: models.RoleAdmin}
	r := rbacRouter(admin, "ADMIN", "SECRETARY")
	assert.Equal(t, http.StatusOK, doGet(r, "/users/u1").Code)
}

func TestRBACForbidsRole(t *testing.T) {
	student := &models.User{ID: "s1", Role: models.RoleStudent}
	r := rbacRouter(student, "ADMIN", "SECRETARY")
	assert.Equal(t, http.StatusForbidden, doGet(r, "/users/u1").Code)
}

func TestRBACSelfMatchesPathParam(t *testing.T) {
	student := &models.User{ID: "s1", Role: models.RoleStudent}
	r := rbacRouter(student, "ADMIN", "SELF")
	assert.Equal(t, http.StatusOK, doGet(r, "/users/s1").Code)
	assert.Equal(t, http.StatusForbidden, doGet(r, "/users/s2").Code)
}

func TestRBACMissingUser(t *testing.T) {
	r := rbacRouter(nil, "ADMIN")
	assert.Equal(t, http.StatusUnauthorized, doGet(r, "/users/u1").Code)
}

func TestRequireRoles(t *testing.T) {
	teacher := &models.User{ID: "t1", Role: models.RoleTeacher}
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.POST("/slots", func(c *gin.Context) {
		c.Set(ContextUserKey, teacher)
		c.Next()
	}, RequireRoles(models.RoleTeacher, models.RoleAdmin), func(c *gin.Context) {
		c.Status(http.StatusCreated)
	})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/slots", nil)
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusCreated, w.Code)
}

func TestRequireRolesAdmitsAdminAlongsideTeacher(t *testing.T) {
	gin.SetMode(gin.TestMode)
	for _, user := range []*models.User{
		{ID: "t1", Role: models.RoleTeacher},
		{ID: "a1", Role: models.RoleAdmin},
	} {
		r := gin.New()
		r.POST("/assignments", func(c *gin.Context) {
			c.Set(ContextUserKey, user)
			c.Next()
		}, RequireRoles(models.RoleTeacher, models.RoleAdmin), func(c *gin.Context) {
			c.Status(http.StatusCreated)
		})

		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/assignments", nil)
		r.ServeHTTP(w, req)
		assert.Equal(t, http.StatusCreated, w.Code)
	}

	r := gin.New()
	student := &models.User{ID: "s1", Role: models.RoleStudent}
	r.POST("/assignments", func(c *gin.Context) {
		c.Set(ContextUserKey, student)
		c.Next()
	}, RequireRoles(models.RoleTeacher, models.RoleAdmin), func(c *gin.Context) {
		c.Status(http.StatusCreated)
	})
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/assignments", nil)
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusForbidden, w.Code)
}
