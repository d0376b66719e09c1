package access_test

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/frahmantamala/menu-authz/internal"
	"github.com/frahmantamala/menu-authz/internal/access"
	grantDatamodel "github.com/frahmantamala/menu-authz/internal/core/datamodel/grant"
	menuDatamodel "github.com/frahmantamala/menu-authz/internal/core/datamodel/menu"
	"github.com/frahmantamala/menu-authz/internal/core/permission"
	"github.com/frahmantamala/menu-authz/internal/grant"
	grantPostgres "github.com/frahmantamala/menu-authz/internal/grant/postgres"
	"github.com/frahmantamala/menu-authz/internal/menu"
	menuPostgres "github.com/frahmantamala/menu-authz/internal/menu/postgres"
	"github.com/frahmantamala/menu-authz/pkg/logger"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

var _ = Describe("Resolver against the stores", func() {
	var (
		menus    *menu.Service
		grants   *grant.Service
		resolver *access.Resolver
		ctx      context.Context
		readOnly permission.Set
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
			ReplaceTimeout:      5 * time.Second,
			ReplaceRetryBackoff: time.Millisecond,
		}, slogger)
		resolver = access.NewResolver(menus, grants, slogger)
		ctx = context.Background()
		readOnly = permission.Set{Read: true}

		for i, key := range []string{"dashboard", "tickets", "legacy"} {
			_, err := menus.Create(ctx, menu.CreateMenuDTO{Key: key, Label: strings.ToUpper(key), DisplayOrder: i})
			Expect(err).NotTo(HaveOccurred())
		}
	})

	It("resolves a role grant for a user without overrides", func() {
		Expect(grants.Roles().ReplaceAll(ctx, "manager", []grant.Assignment{
			{MenuKey: "tickets", Permissions: permission.Set{Read: true, Update: true}},
		})).To(Succeed())

		entries, err := resolver.Resolve(ctx, 42, "manager")
		Expect(err).NotTo(HaveOccurred())
		Expect(entries).To(HaveLen(1))
		Expect(entries[0].Key).To(Equal("tickets"))
		Expect(entries[0].Permissions.Read).To(BeTrue())
		Expect(entries[0].Permissions.Update).To(BeTrue())
		Expect(entries[0].Permissions.Create).To(BeFalse())
		Expect(entries[0].Permissions.Delete).To(BeFalse())
	})

	It("suppresses a menu through a read=false override", func() {
		Expect(grants.Roles().ReplaceAll(ctx, "manager", []grant.Assignment{
			{MenuKey: "tickets", Permissions: permission.Set{Read: true, Update: true}},
		})).To(Succeed())
		Expect(grants.Users().ReplaceAll(ctx, 42, []grant.Assignment{
			{MenuKey: "tickets", Permissions: permission.Set{Read: false}},
		})).To(Succeed())

		entries, err := resolver.Resolve(ctx, 42, "manager")
		Expect(err).NotTo(HaveOccurred())
		Expect(entries).To(BeEmpty())

		others, err := resolver.Resolve(ctx, 7, "manager")
		Expect(err).NotTo(HaveOccurred())
		Expect(entryKeys(others)).To(Equal([]string{"tickets"}))
	})

	It("stops resolving keys dropped by a later replace", func() {
		Expect(grants.Roles().ReplaceAll(ctx, "manager", []grant.Assignment{
			{MenuKey: "dashboard", Permissions: readOnly},
			{MenuKey: "tickets", Permissions: readOnly},
		})).To(Succeed())
		Expect(grants.Roles().ReplaceAll(ctx, "manager", []grant.Assignment{
			{MenuKey: "dashboard", Permissions: readOnly},
		})).To(Succeed())

		entries, err := resolver.Resolve(ctx, 42, "manager")
		Expect(err).NotTo(HaveOccurred())
		Expect(entryKeys(entries)).To(Equal([]string{"dashboard"}))
	})

	It("gates on the catalog before looking at grants", func() {
		Expect(grants.Roles().ReplaceAll(ctx, "manager", []grant.Assignment{
			{MenuKey: "legacy", Permissions: readOnly},
		})).To(Succeed())

		all, err := menus.ListAll(ctx)
		Expect(err).NotTo(HaveOccurred())
		for _, n := range all {
			if n.Key == "legacy" {
				_, err := menus.Deactivate(ctx, n.ID)
				Expect(err).NotTo(HaveOccurred())
			}
		}

		entries, err := resolver.Resolve(ctx, 42, "manager")
		Expect(err).NotTo(HaveOccurred())
		Expect(entries).To(BeEmpty())
	})

	It("resolves a grant authored before its menu is published", func() {
		Expect(grants.Roles().ReplaceAll(ctx, "manager", []grant.Assignment{
			{MenuKey: "reports", Permissions: readOnly},
		})).To(Succeed())

		entries, err := resolver.Resolve(ctx, 42, "manager")
		Expect(err).NotTo(HaveOccurred())
		Expect(entries).To(BeEmpty())

		_, err = menus.Create(ctx, menu.CreateMenuDTO{Key: "reports", Label: "Reports", DisplayOrder: 9})
		Expect(err).NotTo(HaveOccurred())

		entries, err = resolver.Resolve(ctx, 42, "manager")
		Expect(err).NotTo(HaveOccurred())
		Expect(entryKeys(entries)).To(Equal([]string{"reports"}))
	})

	It("never shows a mix of two assignment lists to a concurrent reader", func() {
		setA := []grant.Assignment{{MenuKey: "dashboard", Permissions: readOnly}, {MenuKey: "tickets", Permissions: readOnly}}
		setB := []grant.Assignment{{MenuKey: "legacy", Permissions: readOnly}}
		Expect(grants.Roles().ReplaceAll(ctx, "manager", setA)).To(Succeed())

		var (
			wg       sync.WaitGroup
			mu       sync.Mutex
			observed []string
		)
		stop := make(chan struct{})

		wg.Add(1)
		go func() {
			defer GinkgoRecover()
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
				}
				entries, err := resolver.Resolve(ctx, 42, "manager")
				Expect(err).NotTo(HaveOccurred())
				keys := entryKeys(entries)
				sort.Strings(keys)
				mu.Lock()
				observed = append(observed, strings.Join(keys, ","))
				mu.Unlock()
			}
		}()

		for i := 0; i < 10; i++ {
			next := setB
			if i%2 == 1 {
				next = setA
			}
			Expect(grants.Roles().ReplaceAll(ctx, "manager", next)).To(Succeed())
		}
		close(stop)
		wg.Wait()

		mu.Lock()
		defer mu.Unlock()
		for _, seen := range observed {
			Expect(seen).To(BeElementOf("dashboard,tickets", "legacy"))
		}
	})
})
