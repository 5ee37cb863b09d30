// A runnable wiring of the token engine and the widget composer: sqlite
// in-memory storage, one seeded admin user, and a handful of admin routes
// guarded by the bearer middleware.
//
//	go run ./example
//	curl -X POST localhost:3000/login -H 'content-type: application/json' \
//	  -d '{"username":"admin","password":"admin123"}'
package main

import (
	"context"
	"database/sql"
	"embed"
	"io/fs"
	"log"
	"os"

	"github.com/gofiber/fiber/v2"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"

	"github.com/fanray/fanray"
	"github.com/fanray/fanray/auth"
	"github.com/fanray/fanray/cache"
	"github.com/fanray/fanray/meta"
	"github.com/fanray/fanray/widget"
)

//go:embed widgets
var widgetsDir embed.FS

var schema = []string{
	`CREATE TABLE users (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		username TEXT NOT NULL UNIQUE,
		display_name TEXT NOT NULL DEFAULT '',
		password_hash TEXT,
		serial_number TEXT,
		roles TEXT,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);`,
	`CREATE TABLE user_tokens (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		user_id INTEGER NOT NULL,
		name TEXT NOT NULL,
		value TEXT NOT NULL,
		login_provider TEXT NOT NULL,
		expires_on TIMESTAMP NOT NULL
	);`,
	`CREATE TABLE metas (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		key TEXT NOT NULL UNIQUE,
		value TEXT NOT NULL,
		type INTEGER NOT NULL,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMP
	);`,
}

type clockWidget struct {
	widget.BaseWidget
	TimeZone string `json:"timezone"`
}

type tagsWidget struct {
	widget.BaseWidget
	MaxTags int `json:"maxTags"`
}

func main() {
	ctx := context.Background()
	logger := fanray.DefaultLogger()

	sqldb, err := sql.Open(sqliteshim.ShimName, ":memory:")
	if err != nil {
		log.Fatal(err)
	}
	sqldb.SetMaxOpenConns(1)

	db := bun.NewDB(sqldb, sqlitedialect.New())
	defer db.Close()

	for _, ddl := range schema {
		if _, err := db.Exec(ddl); err != nil {
			log.Fatal(err)
		}
	}

	users := auth.NewUserStore(db)
	seedAdmin(ctx, users)

	signingKey := os.Getenv("SIGNING_KEY")
	if signingKey == "" {
		signingKey = "dev-only-signing-key"
		logger.Warn("SIGNING_KEY not set, using the dev default")
	}

	cfg := &auth.TokenConfig{
		SigningKey: signingKey,
		Issuer:     "http://localhost:3000",
		Audience:   []string{"http://localhost:3000"},
	}

	tokens := auth.NewTokenStore(db)
	service := auth.NewTokenService(tokens, cfg, logger)
	validator := auth.NewContextValidator(users, tokens, logger)
	controller := auth.NewTokenController(service, users, validator, cfg, logger)

	widgets := buildWidgetService(db, logger)

	app := fiber.New()
	auth.RegisterTokenRoutes(app, controller)

	admin := app.Group("/admin", controller.RequireAuth())

	admin.Get("/widget-areas", func(c *fiber.Ctx) error {
		areas, err := widgets.GetCurrentThemeAreas(c.Context())
		if err != nil {
			return err
		}
		return c.JSON(areas)
	})

	admin.Post("/widgets", func(c *fiber.Ctx) error {
		folder := c.Query("folder")
		areaID := c.Query("area", "blog-sidebar1")

		w, err := widgets.CreateWidget(c.Context(), folder)
		if err != nil {
			if widget.IsUnknownFolder(err) {
				return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
			}
			return err
		}

		if _, err := widgets.AddWidgetToArea(c.Context(), w.Base().ID, areaID, c.QueryInt("index")); err != nil {
			return err
		}

		return c.JSON(w)
	})

	admin.Delete("/widgets/:id", func(c *fiber.Ctx) error {
		id, err := c.ParamsInt("id")
		if err != nil {
			return c.SendStatus(fiber.StatusBadRequest)
		}
		if err := widgets.DeleteWidget(c.Context(), int64(id)); err != nil {
			return err
		}
		return c.JSON(true)
	})

	log.Fatal(app.Listen(":3000"))
}

func seedAdmin(ctx context.Context, users auth.Users) {
	hash, err := auth.HashPassword("admin123")
	if err != nil {
		log.Fatal(err)
	}

	if _, err := users.Create(ctx, &auth.User{
		Username:     "admin",
		DisplayName:  "Admin",
		PasswordHash: hash,
		Roles:        []string{"Administrator"},
	}); err != nil {
		log.Fatal(err)
	}
}

func buildWidgetService(db *bun.DB, logger fanray.Logger) *widget.Service {
	registry := widget.NewRegistry()
	registry.Register("clock", func() widget.Widget {
		return &clockWidget{BaseWidget: widget.BaseWidget{Title: "Clock"}, TimeZone: "UTC"}
	})
	registry.Register("tags", func() widget.Widget {
		return &tagsWidget{BaseWidget: widget.BaseWidget{Title: "Tags"}, MaxTags: 20}
	})

	fsys, err := fs.Sub(widgetsDir, "widgets")
	if err != nil {
		log.Fatal(err)
	}

	mem := cache.NewMemory()
	catalog := widget.NewCatalog(fsys, mem, logger)
	theme := &widget.StaticTheme{
		Name:  "Clarity",
		Areas: []string{"blog-sidebar1", "footer1", "footer2"},
	}

	return widget.NewService(meta.NewRepository(db), registry, catalog, mem, theme, widget.SystemAreas(), logger)
}
