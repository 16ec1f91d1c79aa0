package internal

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/karloscodes/cartridge"
	cartridgemiddleware "github.com/karloscodes/cartridge/middleware"

	v1 "linblog/api/v1"
	"linblog/internal/config"
	"linblog/internal/http"
)

// publicCORSConfig is shared by every endpoint the blog frontend calls cross-origin.
func publicCORSConfig(cfg *config.Config) *cors.Config {
	origins := cfg.CORSAllowOrigins
	if origins == "" {
		origins = "*"
	}
	return &cors.Config{
		AllowOrigins: origins,
		AllowMethods: "POST,OPTIONS",
		AllowHeaders: "Origin, Content-Type, Accept, Referer, User-Agent, X-Forwarded-User-Agent",
	}
}

// beaconSecFetchSiteValues are the browser contexts allowed to send view beacons.
var beaconSecFetchSiteValues = []string{"cross-site", "same-site", "same-origin"}

// NewServerConfig returns the server settings shared by the binary and the
// test app. The global Sec-Fetch-Site check is off; the beacon route runs its
// own so that server-side relays without fetch metadata still get through.
func NewServerConfig() *cartridge.ServerConfig {
	cfg := cartridge.DefaultServerConfig()
	cfg.EnableSecFetchSite = false
	cfg.SecFetchSiteAllowedValues = beaconSecFetchSiteValues
	return cfg
}

// beaconSecFetchSite rejects browser requests from unexpected contexts.
// Requests without the header come from server relays and pass.
func beaconSecFetchSite() fiber.Handler {
	return cartridgemiddleware.SecFetchSiteMiddleware(cartridgemiddleware.SecFetchSiteConfig{
		AllowedValues: beaconSecFetchSiteValues,
		Next: func(c *fiber.Ctx) bool {
			return c.Get("Sec-Fetch-Site") == ""
		},
	})
}

// MountAppRoutes mounts all application routes using cartridge's route API.
// The admin API carries no authentication of its own and is expected to sit
// behind the blog's admin gate.
func MountAppRoutes(srv *cartridge.Server) {
	cfg := config.GetConfig()

	// Rate limiting would interfere with tests and local development
	conditionalRateLimiter := func(limiter fiber.Handler) fiber.Handler {
		return func(c *fiber.Ctx) error {
			if cfg.IsProduction() {
				return limiter(c)
			}
			return c.Next()
		}
	}

	// 70/min per IP comfortably covers a reader clicking through posts
	publicRateLimiter := conditionalRateLimiter(cartridgemiddleware.RateLimiter(
		cartridgemiddleware.WithMax(70),
		cartridgemiddleware.WithDuration(time.Minute),
	))

	// CORS runs first so 403 responses still carry CORS headers
	publicAPIConfig := &cartridge.RouteConfig{
		EnableCORS:       true,
		CustomMiddleware: []fiber.Handler{publicRateLimiter, beaconSecFetchSite()},
		CORSConfig:       publicCORSConfig(cfg),
	}

	http.SetupDashboardCache(
		srv.GetDBManager().GetConnection(),
		srv.GetLogger(),
		time.Duration(cfg.DashboardCacheSeconds)*time.Second,
	)

	// Health check endpoint
	srv.Get("/_health", http.HealthIndexAction)
	srv.Head("/_health", http.HealthIndexAction)

	// === PUBLIC API ROUTES ===
	srv.Post("/x/api/v1/posts/:id/views", v1.RecordPostViewHandler, publicAPIConfig)
	srv.Options("/x/api/v1/posts/:id/views", func(ctx *cartridge.Context) error {
		return ctx.SendStatus(fiber.StatusNoContent)
	}, publicAPIConfig)

	// === ADMIN API ROUTES ===
	srv.Get("/admin/api/analytics/dashboard", http.DashboardAction)
	srv.Get("/admin/api/analytics/posts", http.PostsSummaryAction)
	srv.Get("/admin/api/analytics/count", http.ViewCountAction)
	srv.Get("/admin/api/posts/:id", http.PostShowAction)
	srv.Get("/admin/api/posts/:id/views", http.PostViewEventsAction)
}
