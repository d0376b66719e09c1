package menu_test

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"

	menuDatamodel "github.com/frahmantamala/menu-authz/internal/core/datamodel/menu"
	"github.com/frahmantamala/menu-authz/internal/menu"
	menuPostgres "github.com/frahmantamala/menu-authz/internal/menu/postgres"
	"github.com/frahmantamala/menu-authz/internal/transport"
	"github.com/frahmantamala/menu-authz/pkg/logger"
	"github.com/go-chi/chi"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

type errorBody struct {
	Error struct {
		Type    string `json:"type"`
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

var _ = Describe("Menu Handler Integration", func() {
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
		Expect(db.AutoMigrate(&menuDatamodel.MenuNode{})).To(Succeed())

		slogger := logger.Discard()
		service := menu.NewService(menuPostgres.NewMenuRepository(db), nil, slogger)
		handler := menu.NewHandler(transport.NewBaseHandler(slogger), service)

		router = chi.NewRouter()
		router.Get("/menus/tree", handler.GetTree)
		router.Get("/menus", handler.ListMenus)
		router.Post("/menus", handler.CreateMenu)
		router.Get("/menus/{id}", handler.GetMenu)
		router.Patch("/menus/{id}", handler.UpdateMenu)
		router.Delete("/menus/{id}", handler.DeleteMenu)
		router.Post("/menus/{id}/deactivate", handler.DeactivateMenu)
		router.Post("/menus/{id}/activate", handler.ActivateMenu)
	})

	do := func(method, path, body string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		return w
	}

	create := func(body string) *menu.Node {
		w := do(http.MethodPost, "/menus", body)
		Expect(w.Code).To(Equal(http.StatusCreated))
		var resp menu.MenuResponse
		Expect(json.NewDecoder(w.Body).Decode(&resp)).To(Succeed())
		return resp.Menu
	}

	It("should create menus and return the active tree", func() {
		parent := create(`{"key":"tickets","label":"Tickets","display_order":1}`)
		create(fmt.Sprintf(`{"key":"tickets.open","label":"Open","parent_id":%d}`, parent.ID))
		create(`{"key":"dashboard","label":"Dashboard"}`)

		w := do(http.MethodGet, "/menus/tree", "")
		Expect(w.Code).To(Equal(http.StatusOK))
		Expect(w.Header().Get("Content-Type")).To(ContainSubstring("application/json"))

		var resp menu.MenusResponse
		Expect(json.NewDecoder(w.Body).Decode(&resp)).To(Succeed())
		Expect(resp.Menus).To(HaveLen(2))
		Expect(resp.Menus[0].Key).To(Equal("dashboard"))
		Expect(resp.Menus[1].Children[0].Key).To(Equal("tickets.open"))
	})

	It("should return an empty list rather than null for an empty catalog", func() {
		w := do(http.MethodGet, "/menus/tree", "")
		Expect(w.Code).To(Equal(http.StatusOK))
		Expect(w.Body.String()).To(ContainSubstring(`"menus":[]`))
	})

	It("should answer 400 for a duplicate key", func() {
		create(`{"key":"dashboard","label":"Dashboard"}`)

		w := do(http.MethodPost, "/menus", `{"key":"dashboard","label":"Again"}`)
		Expect(w.Code).To(Equal(http.StatusBadRequest))

		var body errorBody
		Expect(json.NewDecoder(w.Body).Decode(&body)).To(Succeed())
		Expect(body.Error.Type).To(Equal("VALIDATION_ERROR"))
		Expect(body.Error.Code).To(Equal("DUPLICATE_MENU_KEY"))
	})

	It("should answer 422 for a cycle", func() {
		a := create(`{"key":"a","label":"A"}`)
		b := create(fmt.Sprintf(`{"key":"b","label":"B","parent_id":%d}`, a.ID))

		w := do(http.MethodPatch, fmt.Sprintf("/menus/%d", a.ID), fmt.Sprintf(`{"parent_id":%d}`, b.ID))
		Expect(w.Code).To(Equal(http.StatusUnprocessableEntity))

		var body errorBody
		Expect(json.NewDecoder(w.Body).Decode(&body)).To(Succeed())
		Expect(body.Error.Type).To(Equal("CYCLE_ERROR"))
	})

	It("should answer 404 for an unknown id", func() {
		w := do(http.MethodGet, "/menus/77", "")
		Expect(w.Code).To(Equal(http.StatusNotFound))
	})

	It("should answer 400 for a non-numeric id", func() {
		w := do(http.MethodGet, "/menus/abc", "")
		Expect(w.Code).To(Equal(http.StatusBadRequest))
	})

	It("should deactivate and activate a menu", func() {
		node := create(`{"key":"legacy","label":"Legacy"}`)

		w := do(http.MethodPost, fmt.Sprintf("/menus/%d/deactivate", node.ID), "")
		Expect(w.Code).To(Equal(http.StatusOK))

		w = do(http.MethodGet, "/menus/tree", "")
		Expect(w.Body.String()).To(ContainSubstring(`"menus":[]`))

		w = do(http.MethodGet, "/menus", "")
		var all menu.MenusResponse
		Expect(json.NewDecoder(w.Body).Decode(&all)).To(Succeed())
		Expect(all.Menus).To(HaveLen(1))
		Expect(all.Menus[0].IsActive).To(BeFalse())

		w = do(http.MethodPost, fmt.Sprintf("/menus/%d/activate", node.ID), "")
		Expect(w.Code).To(Equal(http.StatusOK))
	})

	It("should delete a leaf menu", func() {
		node := create(`{"key":"leaf","label":"Leaf"}`)

		w := do(http.MethodDelete, fmt.Sprintf("/menus/%d", node.ID), "")
		Expect(w.Code).To(Equal(http.StatusNoContent))

		w = do(http.MethodGet, fmt.Sprintf("/menus/%d", node.ID), "")
		Expect(w.Code).To(Equal(http.StatusNotFound))
	})

	It("should reject a body with the wrong types", func() {
		w := do(http.MethodPost, "/menus", `{"key":"x","label":5}`)
		Expect(w.Code).To(Equal(http.StatusBadRequest))
	})
})
