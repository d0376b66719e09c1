package rest_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/frahmantamala/menu-authz/api"
	"github.com/frahmantamala/menu-authz/internal"
	"github.com/frahmantamala/menu-authz/internal/access"
	"github.com/frahmantamala/menu-authz/internal/auth"
	grantDatamodel "github.com/frahmantamala/menu-authz/internal/core/datamodel/grant"
	menuDatamodel "github.com/frahmantamala/menu-authz/internal/core/datamodel/menu"
	"github.com/frahmantamala/menu-authz/internal/core/permission"
	"github.com/frahmantamala/menu-authz/internal/grant"
	grantPostgres "github.com/frahmantamala/menu-authz/internal/grant/postgres"
	"github.com/frahmantamala/menu-authz/internal/menu"
	menuPostgres "github.com/frahmantamala/menu-authz/internal/menu/postgres"
	"github.com/frahmantamala/menu-authz/internal/transport"
	"github.com/frahmantamala/menu-authz/internal/transport/middleware"
	"github.com/frahmantamala/menu-authz/internal/transport/rest"
	"github.com/frahmantamala/menu-authz/pkg/logger"
)

func TestRest(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "REST Router Suite")
}

type errorBody struct {
	Error struct {
		Type    string `json:"type"`
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

var _ = Describe("Router", func() {
	var (
		router     *chi.Mux
		tokens     *auth.TokenManager
		adminToken string
		staffToken string
	)

	BeforeEach(func() {
		db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
			Logger:         gormlogger.Default.LogMode(gormlogger.Silent),
			TranslateError: true,
		})
		Expect(err).NotTo(HaveOccurred())
		sqlDB, err := db.DB()
		Expect(err).NotTo(HaveOccurred())
		sqlDB.SetMaxOpenConns(1)
		Expect(db.AutoMigrate(&menuDatamodel.MenuNode{}, &grantDatamodel.RoleGrant{}, &grantDatamodel.UserOverride{})).To(Succeed())

		slogger := logger.Discard()
		accessCfg := internal.AccessConfig{
			ReplaceTimeout:      time.Second,
			ReplaceRetryBackoff: time.Millisecond,
			MenuAdminKey:        "admin.menus",
			GrantAdminKey:       "admin.permissions",
		}
		menus := menu.NewService(menuPostgres.NewMenuRepository(db), nil, slogger)
		grants := grant.NewService(grantPostgres.NewGrantRepository(db), nil, accessCfg, slogger)
		resolver := access.NewResolver(menus, grants, slogger)
		tokens = auth.NewTokenManager(internal.SecurityConfig{
			JWTSecret:           "0123456789abcdef0123456789abcdef",
			Issuer:              "menu-authz",
			AccessTokenDuration: time.Minute,
		})

		ctx := context.Background()
		admin, err := menus.Create(ctx, menu.CreateMenuDTO{Key: "admin", Label: "Admin"})
		Expect(err).NotTo(HaveOccurred())
		for i, key := range []string{"admin.menus", "admin.permissions"} {
			_, err := menus.Create(ctx, menu.CreateMenuDTO{Key: key, Label: key, ParentID: &admin.ID, DisplayOrder: i})
			Expect(err).NotTo(HaveOccurred())
		}
		full := permission.Set{Create: true, Read: true, Update: true, Delete: true}
		Expect(grants.Roles().ReplaceAll(ctx, "admin", []grant.Assignment{
			{MenuKey: "admin", Permissions: permission.Set{Read: true}},
			{MenuKey: "admin.menus", Permissions: full},
			{MenuKey: "admin.permissions", Permissions: full},
		})).To(Succeed())
		Expect(grants.Roles().ReplaceAll(ctx, "staff", []grant.Assignment{
			{MenuKey: "admin.menus", Permissions: permission.Set{Read: true}},
		})).To(Succeed())

		doc, err := middleware.LoadOpenAPI(ctx, api.Spec)
		Expect(err).NotTo(HaveOccurred())

		base := transport.NewBaseHandler(slogger)
		router = chi.NewRouter()
		Expect(rest.RegisterAllRoutes(router, rest.RouterConfig{
			Server:  internal.ServerConfig{ValidateRequests: true},
			Access:  accessCfg,
			Logger:  slogger,
			OpenAPI: doc,
			Spec:    api.Spec,
			Auth:    auth.NewMiddleware(base, tokens),
			Checker: resolver,
			Health:  rest.NewHealthHandler(sqlDB, "sqlite"),
			Menu:    menu.NewHandler(base, menus),
			Grant:   grant.NewHandler(base, grants),
			Me:      access.NewHandler(base, resolver),
		})).To(Succeed())

		adminToken, _, err = tokens.GenerateAccessToken(1, "admin")
		Expect(err).NotTo(HaveOccurred())
		staffToken, _, err = tokens.GenerateAccessToken(2, "staff")
		Expect(err).NotTo(HaveOccurred())
	})

	do := func(method, path, token, body string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(method, path, strings.NewReader(body))
		if body != "" {
			req.Header.Set("Content-Type", "application/json")
		}
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		return w
	}

	decodeError := func(w *httptest.ResponseRecorder) errorBody {
		var body errorBody
		Expect(json.NewDecoder(w.Body).Decode(&body)).To(Succeed())
		return body
	}

	It("serves health and ping without a token", func() {
		Expect(do(http.MethodGet, "/api/v1/ping", "", "").Code).To(Equal(http.StatusOK))

		w := do(http.MethodGet, "/api/v1/health", "", "")
		Expect(w.Code).To(Equal(http.StatusOK))
		var resp rest.HealthResponse
		Expect(json.NewDecoder(w.Body).Decode(&resp)).To(Succeed())
		Expect(resp.Status).To(Equal(rest.HealthHealthy))
		Expect(resp.Components).To(HaveKey("sqlite"))
	})

	It("serves the OpenAPI document", func() {
		w := do(http.MethodGet, "/openapi.yml", "", "")
		Expect(w.Code).To(Equal(http.StatusOK))
		Expect(w.Body.String()).To(ContainSubstring("openapi: 3.0.3"))
	})

	It("sets the request id and security headers", func() {
		w := do(http.MethodGet, "/api/v1/ping", "", "")
		Expect(w.Header().Get(middleware.RequestIDHeader)).NotTo(BeEmpty())
		Expect(w.Header().Get("X-Frame-Options")).To(Equal("DENY"))
		Expect(w.Header().Get("X-Content-Type-Options")).To(Equal("nosniff"))
	})

	It("requires a token for the effective menus", func() {
		w := do(http.MethodGet, "/api/v1/me/menus", "", "")
		Expect(w.Code).To(Equal(http.StatusUnauthorized))
		Expect(decodeError(w).Error.Code).To(Equal("INVALID_TOKEN"))
	})

	It("returns the caller's effective menus", func() {
		w := do(http.MethodGet, "/api/v1/me/menus", staffToken, "")
		Expect(w.Code).To(Equal(http.StatusOK))

		var resp access.MenusResponse
		Expect(json.NewDecoder(w.Body).Decode(&resp)).To(Succeed())
		Expect(resp.UserID).To(Equal(int64(2)))
		Expect(resp.Role).To(Equal("staff"))
		Expect(resp.Menus).To(HaveLen(1))
		Expect(resp.Menus[0].Key).To(Equal("admin.menus"))
	})

	It("nests the caller's menu tree", func() {
		w := do(http.MethodGet, "/api/v1/me/menus/tree", adminToken, "")
		Expect(w.Code).To(Equal(http.StatusOK))

		var resp access.MenusResponse
		Expect(json.NewDecoder(w.Body).Decode(&resp)).To(Succeed())
		Expect(resp.Menus).To(HaveLen(1))
		Expect(resp.Menus[0].Key).To(Equal("admin"))
		Expect(resp.Menus[0].Children).To(HaveLen(2))
	})

	It("lets an admin create a menu", func() {
		w := do(http.MethodPost, "/api/v1/menus", adminToken, `{"key":"tickets","label":"Tickets"}`)
		Expect(w.Code).To(Equal(http.StatusCreated))
	})

	It("forbids a read-only role from creating menus", func() {
		Expect(do(http.MethodGet, "/api/v1/menus", staffToken, "").Code).To(Equal(http.StatusOK))

		w := do(http.MethodPost, "/api/v1/menus", staffToken, `{"key":"tickets","label":"Tickets"}`)
		Expect(w.Code).To(Equal(http.StatusForbidden))
		Expect(decodeError(w).Error.Code).To(Equal("INSUFFICIENT_ACCESS"))
	})

	It("forbids grant administration without the grant admin menu", func() {
		w := do(http.MethodGet, "/api/v1/roles/admin/grants", staffToken, "")
		Expect(w.Code).To(Equal(http.StatusForbidden))
	})

	It("replaces role grants through the admin route", func() {
		w := do(http.MethodPut, "/api/v1/roles/staff/grants", adminToken,
			`{"assignments":[{"menu_key":"admin.menus","permissions":{"read":true,"create":true}}]}`)
		Expect(w.Code).To(Equal(http.StatusOK))

		w = do(http.MethodPost, "/api/v1/menus", staffToken, `{"key":"tickets","label":"Tickets"}`)
		Expect(w.Code).To(Equal(http.StatusCreated))
	})

	It("rejects bodies that do not match the document", func() {
		w := do(http.MethodPut, "/api/v1/roles/staff/grants", adminToken,
			`{"assignments":[{"menu_key":"admin.menus","permissions":{"read":"yes"}}]}`)
		Expect(w.Code).To(Equal(http.StatusBadRequest))
		Expect(decodeError(w).Error.Type).To(Equal("VALIDATION_ERROR"))
	})

	It("rejects a non-numeric user id", func() {
		w := do(http.MethodGet, "/api/v1/users/abc/overrides", adminToken, "")
		Expect(w.Code).To(Equal(http.StatusBadRequest))
	})
})
