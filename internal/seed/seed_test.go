package seed_test

import (
	"context"
	"testing"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/frahmantamala/menu-authz/internal"
	"github.com/frahmantamala/menu-authz/internal/access"
	grantDatamodel "github.com/frahmantamala/menu-authz/internal/core/datamodel/grant"
	menuDatamodel "github.com/frahmantamala/menu-authz/internal/core/datamodel/menu"
	"github.com/frahmantamala/menu-authz/internal/core/permission"
	"github.com/frahmantamala/menu-authz/internal/grant"
	grantPostgres "github.com/frahmantamala/menu-authz/internal/grant/postgres"
	"github.com/frahmantamala/menu-authz/internal/menu"
	menuPostgres "github.com/frahmantamala/menu-authz/internal/menu/postgres"
	"github.com/frahmantamala/menu-authz/internal/seed"
	"github.com/frahmantamala/menu-authz/pkg/logger"
)

func TestSeed(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Seed Suite")
}

var _ = Describe("Parse", func() {
	It("decodes the embedded default document", func() {
		doc, err := seed.Parse(seed.Default)
		Expect(err).NotTo(HaveOccurred())
		Expect(doc.Menus).NotTo(BeEmpty())
		Expect(doc.Roles).To(HaveKey("admin"))
		Expect(permission.Set(doc.Roles["admin"]["admin.menus"])).To(Equal(permission.Set{Create: true, Read: true, Update: true, Delete: true}))
	})

	It("accepts both permission forms", func() {
		doc, err := seed.Parse([]byte(`
roles:
  staff:
    tickets: ru
    reports: none
    assets: {read: true, scopes: [own]}
`))
		Expect(err).NotTo(HaveOccurred())
		Expect(permission.Set(doc.Roles["staff"]["tickets"])).To(Equal(permission.Set{Read: true, Update: true}))
		Expect(permission.Set(doc.Roles["staff"]["reports"])).To(Equal(permission.Set{}))
		Expect(permission.Set(doc.Roles["staff"]["assets"])).To(Equal(permission.Set{Read: true, Scopes: []string{"own"}}))
	})

	It("rejects unknown permission letters", func() {
		_, err := seed.Parse([]byte("roles:\n  staff:\n    tickets: rx\n"))
		Expect(err).To(HaveOccurred())
	})

	It("rejects duplicate menu keys across levels", func() {
		_, err := seed.Parse([]byte(`
menus:
  - key: tickets
    label: Tickets
    children:
      - key: tickets
        label: Again
`))
		Expect(err).To(MatchError(ContainSubstring("more than once")))
	})

	It("orders assignments by menu key", func() {
		assignments := seed.Assignments(map[string]seed.Permissions{"b": {Read: true}, "a": {}})
		Expect(assignments).To(HaveLen(2))
		Expect(assignments[0].MenuKey).To(Equal("a"))
		Expect(assignments[1].MenuKey).To(Equal("b"))
	})
})

var _ = Describe("Seeder", func() {
	var (
		menus    *menu.Service
		grants   *grant.Service
		seeder   *seed.Seeder
		resolver *access.Resolver
		ctx      context.Context
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
		menus = menu.NewService(menuPostgres.NewMenuRepository(db), nil, slogger)
		grants = grant.NewService(grantPostgres.NewGrantRepository(db), nil, internal.AccessConfig{
			ReplaceTimeout:      time.Second,
			ReplaceRetryBackoff: time.Millisecond,
		}, slogger)
		seeder = seed.NewSeeder(menus, grants.Roles(), slogger)
		resolver = access.NewResolver(menus, grants, slogger)
		ctx = context.Background()
	})

	It("creates the nested catalog and role grants", func() {
		doc, err := seed.Parse(seed.Default)
		Expect(err).NotTo(HaveOccurred())

		result, err := seeder.Run(ctx, doc)
		Expect(err).NotTo(HaveOccurred())
		Expect(result.MenusCreated).To(Equal(8))
		Expect(result.MenusExisting).To(Equal(0))
		Expect(result.RolesReplaced).To(Equal([]string{"admin", "manager", "staff"}))

		tree, err := menus.ListActiveTree(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(tree).To(HaveLen(4))
		Expect(tree[1].Key).To(Equal("tickets"))
		Expect(tree[1].Children).To(HaveLen(2))

		entries, err := resolver.Resolve(ctx, 5, "staff")
		Expect(err).NotTo(HaveOccurred())
		keys := make([]string, len(entries))
		for i, e := range entries {
			keys[i] = e.Key
		}
		Expect(keys).To(Equal([]string{"dashboard", "tickets", "tickets.open"}))
	})

	It("is safe to run twice", func() {
		doc, err := seed.Parse(seed.Default)
		Expect(err).NotTo(HaveOccurred())
		_, err = seeder.Run(ctx, doc)
		Expect(err).NotTo(HaveOccurred())

		result, err := seeder.Run(ctx, doc)
		Expect(err).NotTo(HaveOccurred())
		Expect(result.MenusCreated).To(Equal(0))
		Expect(result.MenusExisting).To(Equal(8))

		all, err := menus.ListAll(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(all).To(HaveLen(8))

		active, err := grants.Roles().ListActiveFor(ctx, "admin")
		Expect(err).NotTo(HaveOccurred())
		Expect(active).To(HaveLen(8))
	})

	It("attaches new children under an existing parent", func() {
		_, err := menus.Create(ctx, menu.CreateMenuDTO{Key: "tickets", Label: "Tickets"})
		Expect(err).NotTo(HaveOccurred())

		doc, err := seed.Parse([]byte(`
menus:
  - key: tickets
    label: Tickets
    children:
      - key: tickets.open
        label: Open
`))
		Expect(err).NotTo(HaveOccurred())

		result, err := seeder.Run(ctx, doc)
		Expect(err).NotTo(HaveOccurred())
		Expect(result.MenusCreated).To(Equal(1))
		Expect(result.MenusExisting).To(Equal(1))

		tree, err := menus.ListActiveTree(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(tree).To(HaveLen(1))
		Expect(tree[0].Children).To(HaveLen(1))
	})

	It("stops on an invalid menu key", func() {
		doc, err := seed.Parse([]byte(`
menus:
  - key: "Not A Slug"
    label: Bad
`))
		Expect(err).NotTo(HaveOccurred())

		_, err = seeder.Run(ctx, doc)
		Expect(err).To(HaveOccurred())
	})
})
