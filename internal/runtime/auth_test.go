package runtime

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
)

func protectedEcho(secret []byte) *echo.Echo {
	e := echo.New()
	g := e.Group("/api")
	g.Use(EchoAuthMiddleware(secret))
	g.GET("/me", func(c echo.Context) error {
		return c.String(http.StatusOK, c.Get("user_id").(string))
	})
	return e
}

func TestAuthMiddlewareBearer(t *testing.T) {
	secret := []byte("test-secret")
	tok, err := SignJWT("user-1", secret, time.Hour)
	if err != nil {
		t.Fatalf("SignJWT: %v", err)
	}
	e := protectedEcho(secret)

	req := httptest.NewRequest(http.MethodGet, "/api/me", nil)
	req.Header.Set("Authorization", "Bearer "+tok)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK || rec.Body.String() != "user-1" {
		t.Fatalf("code=%d body=%q", rec.Code, rec.Body.String())
	}
}

func TestAuthMiddlewareCookie(t *testing.T) {
	secret := []byte("test-secret")
	tok, _ := SignJWT("user-2", secret, time.Hour)
	e := protectedEcho(secret)

	req := httptest.NewRequest(http.MethodGet, "/api/me", nil)
	req.AddCookie(&http.Cookie{Name: "auth", Value: tok})
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK || rec.Body.String() != "user-2" {
		t.Fatalf("code=%d body=%q", rec.Code, rec.Body.String())
	}
}

func TestAuthMiddlewareMissingToken(t *testing.T) {
	e := protectedEcho([]byte("test-secret"))
	req := httptest.NewRequest(http.MethodGet, "/api/me", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("code = %d", rec.Code)
	}
}

func TestAuthMiddlewareWrongSecret(t *testing.T) {
	tok, _ := SignJWT("user-1", []byte("other-secret"), time.Hour)
	e := protectedEcho([]byte("test-secret"))
	req := httptest.NewRequest(http.MethodGet, "/api/me", nil)
	req.Header.Set("Authorization", "Bearer "+tok)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("code = %d", rec.Code)
	}
}

func TestAuthMiddlewareExpiredToken(t *testing.T) {
	secret := []byte("test-secret")
	tok, _ := SignJWT("user-1", secret, -time.Minute)
	e := protectedEcho(secret)
	req := httptest.NewRequest(http.MethodGet, "/api/me", nil)
	req.Header.Set("Authorization", "Bearer "+tok)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("code = %d", rec.Code)
	}
}

func TestSubjectFromContext(t *testing.T) {
	ctx := ContextWithSubject(context.Background(), "user-9")
	sub, ok := SubjectFromContext(ctx)
	if !ok || sub != "user-9" {
		t.Fatalf("sub=%q ok=%v", sub, ok)
	}
	if _, ok := SubjectFromContext(nil); ok {
		t.Fatal("nil context should carry no subject")
	}
}
