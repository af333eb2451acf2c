package routes

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus"

	"domiflash/internal/cache"
	"domiflash/internal/handlers"
	"domiflash/internal/models"
	"domiflash/internal/session"
	"domiflash/internal/utils"
	"domiflash/internal/validation"
	"domiflash/internal/websocket"
)

const testSecret = "routes-secret"

func TestMain(m *testing.M) {
	if err := validation.RegisterGinValidators(); err != nil {
		panic(err)
	}
	os.Exit(m.Run())
}

func newRouter(t *testing.T) (*gin.Engine, *handlers.Deps) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	log := logrus.New()
	log.SetOutput(io.Discard)

	d := &handlers.Deps{
		Sessions:  session.NewManager(client, 30*time.Minute, 5*time.Minute, 30*24*time.Hour),
		Cache:     cache.Disabled(),
		Log:       log,
		JWTSecret: testSecret,
		TokenTTL:  time.Hour,
	}
	r := gin.New()
	SetupRoutes(r.Group("/api"), d, websocket.NewManager(log))
	return r, d
}

func tokenFor(t *testing.T, d *handlers.Deps, userID uint, role models.Role) string {
	t.Helper()
	sess, err := d.Sessions.Start(context.Background(), userID, role, false)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	token, err := utils.GenerateJWT(testSecret, userID, string(role), sess.ID, time.Hour)
	if err != nil {
		t.Fatalf("GenerateJWT: %v", err)
	}
	return token
}

func request(r *gin.Engine, method, path, token string) int {
	req := httptest.NewRequest(method, path, strings.NewReader("{}"))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w.Code
}

func TestRoleGroups(t *testing.T) {
	r, d := newRouter(t)
	customer := tokenFor(t, d, 1, models.RoleCustomer)
	restaurant := tokenFor(t, d, 2, models.RoleRestaurant)
	courier := tokenFor(t, d, 3, models.RoleCourier)

	tests := []struct {
		method string
		path   string
		token  string
		want   int
	}{
		{http.MethodGet, "/api/cart", "", http.StatusUnauthorized},
		{http.MethodGet, "/api/cart", restaurant, http.StatusForbidden},
		{http.MethodPost, "/api/orders/checkout", courier, http.StatusForbidden},
		{http.MethodGet, "/api/restaurant/orders", customer, http.StatusForbidden},
		{http.MethodPut, "/api/courier/orders/1/claim", restaurant, http.StatusForbidden},
		{http.MethodGet, "/api/admin/users", courier, http.StatusForbidden},
		{http.MethodGet, "/api/profile", "", http.StatusUnauthorized},
		{http.MethodGet, "/api/session/status", "", http.StatusUnauthorized},
	}
	for _, tt := range tests {
		if got := request(r, tt.method, tt.path, tt.token); got != tt.want {
			t.Errorf("%s %s: status = %d, want %d", tt.method, tt.path, got, tt.want)
		}
	}
}

func TestAllowedRoleReachesHandler(t *testing.T) {
	r, d := newRouter(t)
	customer := tokenFor(t, d, 1, models.RoleCustomer)

	// The checkout handler rejects the empty body before touching the database.
	if got := request(r, http.MethodPost, "/api/orders/checkout", customer); got != http.StatusBadRequest {
		t.Fatalf("checkout with empty body: status = %d, want 400", got)
	}
	if got := request(r, http.MethodGet, "/api/session/status", customer); got != http.StatusOK {
		t.Fatalf("session status: status = %d, want 200", got)
	}
}
