package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"testbank_backend/internal/config"
	"testbank_backend/internal/model"
	"testbank_backend/internal/util"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func signToken(t *testing.T, secret string, claims util.Claims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return token
}

func newRouter(roles ...model.UserRole) *gin.Engine {
	gin.SetMode(gin.TestMode)
	cfg := &config.Config{JWT: config.JWTConfig{Secret: testSecret}}

	r := gin.New()
	r.GET("/exams", AuthMiddleware(cfg), RoleMiddleware(roles...), func(c *gin.Context) {
		user := util.GetUserFromContext(c)
		c.String(http.StatusOK, "%d", user.UserID)
	})
	return r
}

func TestAuthMiddleware(t *testing.T) {
	valid := util.Claims{
		UserID: 7,
		Role:   model.Student,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	expired := valid
	expired.ExpiresAt = jwt.NewNumericDate(time.Now().Add(-time.Hour))
	anonymous := valid
	anonymous.UserID = 0

	cases := []struct {
		name   string
		header string
		want   int
	}{
		{"missing header", "", http.StatusUnauthorized},
		{"garbage token", "Bearer not-a-jwt", http.StatusUnauthorized},
		{"wrong secret", "Bearer " + signToken(t, "another-secret-another-secret-00", valid), http.StatusUnauthorized},
		{"expired", "Bearer " + signToken(t, testSecret, expired), http.StatusUnauthorized},
		{"no user id", "Bearer " + signToken(t, testSecret, anonymous), http.StatusUnauthorized},
		{"valid", "Bearer " + signToken(t, testSecret, valid), http.StatusOK},
	}

	r := newRouter(model.Student)
	for _, tc := range cases {
		req := httptest.NewRequest(http.MethodGet, "/exams", nil)
		if tc.header != "" {
			req.Header.Set("Authorization", tc.header)
		}
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		if w.Code != tc.want {
			t.Fatalf("%s: expected %d, got %d", tc.name, tc.want, w.Code)
		}
		if tc.want == http.StatusOK && w.Body.String() != "7" {
			t.Fatalf("%s: claims not in context, body %q", tc.name, w.Body.String())
		}
	}
}

func TestRoleMiddleware(t *testing.T) {
	r := newRouter(model.Teacher)

	for role, want := range map[model.UserRole]int{
		model.Student: http.StatusForbidden,
		model.Teacher: http.StatusOK,
		model.Admin:   http.StatusOK,
	} {
		req := httptest.NewRequest(http.MethodGet, "/exams", nil)
		req.Header.Set("Authorization", "Bearer "+signToken(t, testSecret, util.Claims{UserID: 1, Role: role}))
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		if w.Code != want {
			t.Fatalf("role %s: expected %d, got %d", role, want, w.Code)
		}
	}
}
