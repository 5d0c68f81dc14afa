package router // package router defines how HTTP routes are registered for the API

import (
	"github.com/labstack/echo/v4"                              // import the Echo web framework to handle routing
	echomw "github.com/labstack/echo/v4/middleware"            // Echo's bundled recover middleware
	"github.com/prometheus/client_golang/prometheus/promhttp" // exposition handler for /metrics
	"github.com/redis/go-redis/v9"                             // shared client for cache and rate limiter

	"github.com/iliyamo/movie-catalog/internal/config"     // cache and rate limit settings
	"github.com/iliyamo/movie-catalog/internal/handler"    // import the handlers that implement business logic
	"github.com/iliyamo/movie-catalog/internal/middleware" // request id, logging, metrics, JWT, cache, rate limiting
)

// Use installs the middleware every request goes through.  The request id
// comes first so that the logger and any handler can read it; Recover sits
// innermost so a panic still produces a logged 500.
func Use(e *echo.Echo) {
	e.Use(middleware.RequestID())
	e.Use(middleware.RequestLogger())
	e.Use(middleware.Metrics())
	e.Use(echomw.Recover())
}

// RegisterRoutes registers routes that do not require authentication: the
// health check and the Prometheus scrape endpoint.
func RegisterRoutes(e *echo.Echo, db handler.Pinger) {
	// Map the GET request at path "/healthz" to the Health handler.  This
	// endpoint can be used by load balancers or monitoring systems to verify
	// that the service and its database are reachable.
	e.GET("/healthz", handler.Health(db))
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))
}

// RegisterAuth registers all authentication-related routes.  Registration,
// login, refresh and logout are public; /api/v1/me requires a valid access
// token.
func RegisterAuth(e *echo.Echo, a *handler.AuthHandler, jwtSecret string, users middleware.UserLookup, rl echo.MiddlewareFunc) {
	g := e.Group("/api/v1")
	if rl != nil {
		g.Use(rl)
	}
	// POST /api/v1/users creates an account and returns a token pair.
	g.POST("/users", a.Register)
	// POST /api/v1/sessions logs in with email and password.
	g.POST("/sessions", a.Login)
	// POST /api/v1/sessions/refresh rotates a refresh token.
	g.POST("/sessions/refresh", a.Refresh)
	// DELETE /api/v1/sessions revokes one refresh token (body) or every
	// session of the bearer.  It stays public so an expired access token
	// does not block logout.
	g.DELETE("/sessions", a.Logout)

	g.GET("/me", a.Me, middleware.JWTAuth(jwtSecret, users))
}

// RegisterMovies registers the movie catalog under /api/v1/movies.  Every
// route requires a valid access token.  The response cache runs after
// authentication so cache keys include the user, and behind the rate limiter
// so cached reads still count against the bucket.  Nil cache or rl skips it.
func RegisterMovies(e *echo.Echo, m *handler.MovieHandler, jwtSecret string, users middleware.UserLookup, cache, rl echo.MiddlewareFunc) {
	mws := []echo.MiddlewareFunc{middleware.JWTAuth(jwtSecret, users)}
	if rl != nil {
		mws = append(mws, rl)
	}
	if cache != nil {
		mws = append(mws, cache)
	}
	g := e.Group("/api/v1/movies", mws...)

	g.POST("", m.AddMovie)
	g.GET("", m.ListMovies)
	// registered before /:id so the static segment wins
	g.POST("/import", m.ImportMovies)
	g.GET("/:id", m.GetMovie)
	g.PATCH("/:id", m.UpdateMovie)
	g.DELETE("/:id", m.DeleteMovie)
}

// Middlewares builds the Redis-backed cache and rate limiter.  Both return
// pass-through middleware when rdb is nil or the feature is disabled.
func Middlewares(cacheCfg config.CacheConfig, rlCfg config.RateLimitConfig, rdb *redis.Client) (cache, rl echo.MiddlewareFunc) {
	return middleware.NewRedisCache(cacheCfg, rdb), middleware.NewTokenBucket(rlCfg, rdb)
}
