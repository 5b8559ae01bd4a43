package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
)

var secret = []byte("test-secret")

func signToken(t *testing.T, sub, name, role string) string {
	t.Helper()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   sub,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
		Name: name,
		Role: role,
	}
	raw, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
	if err != nil {
		t.Fatal(err)
	}
	return raw
}

func doRequest(handler echo.HandlerFunc, mw echo.MiddlewareFunc, header string) *httptest.ResponseRecorder {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if header != "" {
		req.Header.Set("Authorization", header)
	}
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	if err := mw(handler)(c); err != nil {
		e.HTTPErrorHandler(err, c)
	}
	return rec
}

func TestMiddleware(t *testing.T) {
	var got Actor
	handler := func(c echo.Context) error {
		got = ActorFromContext(c.Request().Context())
		return c.NoContent(http.StatusOK)
	}

	token := signToken(t, "staff-42", "A. Kumar", RoleAccountant)
	rec := doRequest(handler, Middleware(secret), "Bearer "+token)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if got.ID != "staff-42" || got.Role != RoleAccountant {
		t.Errorf("actor = %+v", got)
	}

	if rec := doRequest(handler, Middleware(secret), ""); rec.Code != http.StatusUnauthorized {
		t.Errorf("missing header: status = %d, want 401", rec.Code)
	}
	if rec := doRequest(handler, Middleware(secret), "Bearer garbage"); rec.Code != http.StatusUnauthorized {
		t.Errorf("bad token: status = %d, want 401", rec.Code)
	}
	if rec := doRequest(handler, Middleware([]byte("other-secret")), "Bearer "+token); rec.Code != http.StatusUnauthorized {
		t.Errorf("wrong secret: status = %d, want 401", rec.Code)
	}
}

func TestRequireRole(t *testing.T) {
	handler := func(c echo.Context) error { return c.NoContent(http.StatusOK) }

	run := func(role string, mw echo.MiddlewareFunc) int {
		e := echo.New()
		req := httptest.NewRequest(http.MethodPost, "/", nil)
		req = req.WithContext(WithActor(req.Context(), Actor{ID: "s1", Role: role}))
		rec := httptest.NewRecorder()
		c := e.NewContext(req, rec)
		if err := mw(handler)(c); err != nil {
			e.HTTPErrorHandler(err, c)
		}
		return rec.Code
	}

	mw := RequireRole(RoleAccountant)
	if code := run(RoleAccountant, mw); code != http.StatusOK {
		t.Errorf("accountant: status = %d, want 200", code)
	}
	if code := run(RoleAdmin, mw); code != http.StatusOK {
		t.Errorf("admin bypass: status = %d, want 200", code)
	}
	if code := run(RoleNurse, mw); code != http.StatusForbidden {
		t.Errorf("nurse: status = %d, want 403", code)
	}
	if code := run("", mw); code != http.StatusForbidden {
		t.Errorf("anonymous: status = %d, want 403", code)
	}
}
