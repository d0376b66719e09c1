package grant_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"time"

	"github.com/frahmantamala/menu-authz/internal"
	grantDatamodel "github.com/frahmantamala/menu-authz/internal/core/datamodel/grant"
	"github.com/frahmantamala/menu-authz/internal/grant"
	grantPostgres "github.com/frahmantamala/menu-authz/internal/grant/postgres"
	"github.com/frahmantamala/menu-authz/internal/transport"
	"github.com/frahmantamala/menu-authz/pkg/logger"
	"github.com/go-chi/chi"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

var _ = Describe("Grant Handler Integration", func() {
	var router *chi.Mux

	BeforeEach(func() {
		db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
			Logger:         gormlogger.Default.LogMode(gormlogger.Silent),
			TranslateError: true,
		})
		Expect(err).NotTo(HaveOccurred())
		sqlDB, err := db.DB()
		Expect(err).NotTo(HaveOccurred())
		sqlDB.SetMaxOpenConns(1)
		Expect(db.AutoMigrate(&grantDatamodel.RoleGrant{}, &grantDatamodel.UserOverride{})).To(Succeed())

		slogger := logger.Discard()
		service := grant.NewService(grantPostgres.NewGrantRepository(db), nil, internal.AccessConfig{
			ReplaceTimeout:      time.Second,
			ReplaceRetryBackoff: time.Millisecond,
		}, slogger)
		handler := grant.NewHandler(transport.NewBaseHandler(slogger), service)

		router = chi.NewRouter()
		router.Get("/roles/{role}/grants", handler.GetRoleGrants)
		router.Put("/roles/{role}/grants", handler.ReplaceRoleGrants)
		router.Get("/roles/{role}/grants/history", handler.GetRoleGrantHistory)
		router.Get("/users/{userID}/overrides", handler.GetUserOverrides)
		router.Put("/users/{userID}/overrides", handler.ReplaceUserOverrides)
		router.Get("/users/{userID}/overrides/history", handler.GetUserOverrideHistory)
	})

	do := func(method, path, body string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		return w
	}

	It("should replace and list role grants", func() {
		w := do(http.MethodPut, "/roles/manager/grants", `{"assignments":[
			{"menu_key":"tickets","permissions":{"read":true,"update":true}},
			{"menu_key":"dashboard","permissions":{"read":true}}
		]}`)
		Expect(w.Code).To(Equal(http.StatusOK))

		var resp grant.GrantsResponse
		Expect(json.NewDecoder(w.Body).Decode(&resp)).To(Succeed())
		Expect(resp.Scope).To(Equal("role"))
		Expect(resp.ID).To(Equal("manager"))
		Expect(resp.Grants).To(HaveLen(2))
		Expect(resp.Grants["tickets"].Update).To(BeTrue())
		Expect(resp.Grants["tickets"].Create).To(BeFalse())

		w = do(http.MethodGet, "/roles/manager/grants", "")
		Expect(w.Code).To(Equal(http.StatusOK))
	})

	It("should keep history after a narrowing replace", func() {
		Expect(do(http.MethodPut, "/roles/manager/grants", `{"assignments":[{"menu_key":"tickets","permissions":{"read":true}},{"menu_key":"dashboard","permissions":{"read":true}}]}`).Code).To(Equal(http.StatusOK))
		Expect(do(http.MethodPut, "/roles/manager/grants", `{"assignments":[{"menu_key":"dashboard","permissions":{"read":true}}]}`).Code).To(Equal(http.StatusOK))

		w := do(http.MethodGet, "/roles/manager/grants/history", "")
		Expect(w.Code).To(Equal(http.StatusOK))

		var resp grant.HistoryResponse
		Expect(json.NewDecoder(w.Body).Decode(&resp)).To(Succeed())
		Expect(resp.Records).To(HaveLen(2))
	})

	It("should reject a non-boolean permission value", func() {
		w := do(http.MethodPut, "/roles/manager/grants", `{"assignments":[{"menu_key":"tickets","permissions":{"read":"yes"}}]}`)
		Expect(w.Code).To(Equal(http.StatusBadRequest))

		w = do(http.MethodGet, "/roles/manager/grants", "")
		var resp grant.GrantsResponse
		Expect(json.NewDecoder(w.Body).Decode(&resp)).To(Succeed())
		Expect(resp.Grants).To(BeEmpty())
	})

	It("should reject a body without assignments", func() {
		w := do(http.MethodPut, "/roles/manager/grants", `{}`)
		Expect(w.Code).To(Equal(http.StatusBadRequest))
	})

	It("should replace user overrides", func() {
		w := do(http.MethodPut, "/users/42/overrides", `{"assignments":[{"menu_key":"tickets","permissions":{"read":false}}]}`)
		Expect(w.Code).To(Equal(http.StatusOK))

		var resp grant.GrantsResponse
		Expect(json.NewDecoder(w.Body).Decode(&resp)).To(Succeed())
		Expect(resp.Scope).To(Equal("user"))
		Expect(resp.ID).To(Equal("42"))
		Expect(resp.Grants).To(HaveKey("tickets"))
		Expect(resp.Grants["tickets"].Read).To(BeFalse())

		w = do(http.MethodGet, "/users/42/overrides/history", "")
		Expect(w.Code).To(Equal(http.StatusOK))
	})

	It("should reject a non-numeric user id", func() {
		w := do(http.MethodGet, "/users/abc/overrides", "")
		Expect(w.Code).To(Equal(http.StatusBadRequest))
	})
})
