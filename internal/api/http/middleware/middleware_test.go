package middleware

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v3"
	"github.com/google/uuid"

	"github.com/Alijeyrad/franchise_backend/pkg/authorize"
	pasetotoken "github.com/Alijeyrad/franchise_backend/pkg/paseto"
	"github.com/Alijeyrad/franchise_backend/pkg/reqctx"
)

type tokenTable map[string]pasetotoken.Identity

func (t tokenTable) Verify(token string) (*pasetotoken.Claims, error) {
	id, ok := t[token]
	if !ok {
		return nil, errors.New("bad token")
	}
	return &pasetotoken.Claims{Identity: id}, nil
}

func newApp(tokens tokenTable, gates ...fiber.Handler) *fiber.App {
	app := fiber.New()
	app.Use(RequestID())
	app.Use(AuthRequired(tokens, nil))
	for _, g := range gates {
		app.Use(g)
	}
	app.Get("/", func(c fiber.Ctx) error {
		caller, err := authorize.CallerFromContext(c.Context())
		if err != nil {
			return err
		}
		return c.SendString(string(caller.Role) + " " + reqctx.RequestIDFromContext(c.Context()))
	})
	return app
}

func TestAuthRequired(t *testing.T) {
	tokens := tokenTable{"dealer": {UserID: uuid.New(), Role: authorize.RoleDealer}}
	app := newApp(tokens)

	tests := []struct {
		name   string
		header string
		want   int
	}{
		{"missing header", "", http.StatusUnauthorized},
		{"wrong scheme", "Basic dealer", http.StatusUnauthorized},
		{"unknown token", "Bearer nope", http.StatusUnauthorized},
		{"valid", "Bearer dealer", http.StatusOK},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			req.Header.Set(HeaderRequestID, "rid-1")
			resp, err := app.Test(req)
			if err != nil {
				t.Fatal(err)
			}
			if resp.StatusCode != tc.want {
				t.Errorf("status = %d, want %d", resp.StatusCode, tc.want)
			}
			if got := resp.Header.Get(HeaderRequestID); got != "rid-1" {
				t.Errorf("request id header = %q", got)
			}
		})
	}
}

func TestRequirePermission(t *testing.T) {
	perms, err := authorize.NewMemoryEnforcer()
	if err != nil {
		t.Fatalf("NewMemoryEnforcer: %v", err)
	}
	tokens := tokenTable{
		"dealer": {UserID: uuid.New(), Role: authorize.RoleDealer},
		"hq":     {UserID: uuid.New(), Role: authorize.RoleHQ},
		"admin":  {UserID: uuid.New(), Role: authorize.RoleAdmin},
	}
	app := newApp(tokens, RequirePermission(perms, authorize.ResourceSettlement, authorize.ActionPay))

	for token, want := range map[string]int{"dealer": 403, "hq": 200, "admin": 200} {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		resp, err := app.Test(req)
		if err != nil {
			t.Fatal(err)
		}
		if resp.StatusCode != want {
			t.Errorf("%s: status = %d, want %d", token, resp.StatusCode, want)
		}
	}
}

type brokenPermissions struct{}

func (brokenPermissions) Allow(authorize.Role, authorize.Resource, authorize.Action) (bool, error) {
	return false, errors.New("policy unavailable")
}

func TestRequirePermissionError(t *testing.T) {
	tokens := tokenTable{"hq": {UserID: uuid.New(), Role: authorize.RoleHQ}}
	app := newApp(tokens, RequirePermission(brokenPermissions{}, authorize.ResourceSchedule, authorize.ActionRun))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer hq")
	resp, err := app.Test(req)
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", resp.StatusCode)
	}
}
