package router

import (
	"crypto/subtle"
	"net/http"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	echojwt "github.com/labstack/echo-jwt/v4"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	echoSwagger "github.com/swaggo/echo-swagger"

	"irisapi/internal/access"
	"irisapi/internal/auth"
	"irisapi/internal/config"
	"irisapi/internal/errors"
	"irisapi/internal/handler"
	"irisapi/internal/logging"
	"irisapi/internal/metrics"
	"irisapi/internal/ratelimit"
)

// APIKeyHeader carries the shared key when require_api_key is set.
const APIKeyHeader = "X-API-Key"

// Register wires routes and middleware.
func Register(
	e *echo.Echo,
	cfg *config.Config,
	jwtService *auth.JWTService,
	limiter ratelimit.Limiter,
	authHandler *handler.AuthHandler,
	dataHandler *handler.DataHandler,
	adminHandler *handler.AdminHandler,
	healthHandler *handler.HealthHandler,
) {
	e.Use(middleware.RequestID())
	e.Use(middleware.Recover())
	e.Use(requestLogger())
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins:     cfg.CORSOrigins,
		AllowHeaders:     []string{echo.HeaderAuthorization, echo.HeaderContentType, APIKeyHeader},
		AllowCredentials: true,
	}))

	e.Validator = &CustomValidator{validator: validator.New()}

	e.GET("/health", healthHandler.Health)
	e.GET("/health/detailed", healthHandler.Detailed)
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))
	e.GET("/swagger/*", echoSwagger.WrapHandler)

	api := e.Group("/api")
	if cfg.RequireAPIKey {
		api.Use(apiKeyAuth(cfg.APIKey))
	}

	// Public routes
	public := api.Group("/auth", rateLimit(limiter))
	public.POST("/register", authHandler.Register)
	public.POST("/login", authHandler.Login)
	public.POST("/refresh", authHandler.Refresh)

	// Secured routes (require a valid access token)
	secured := api.Group("", bearerAuth(jwtService), rateLimit(limiter))
	secured.GET("/auth/me", authHandler.Me)
	secured.POST("/auth/logout", authHandler.Logout)

	secured.GET("/data", dataHandler.Summary)
	secured.GET("/data/species/list", dataHandler.ListSpecies)
	secured.GET("/data/aggregated/:species", dataHandler.Aggregated)
	secured.GET("/data/:species", dataHandler.GetSpecies)

	admin := secured.Group("/admin", requireAdmin)
	admin.POST("/reload-data", adminHandler.ReloadData)
	admin.DELETE("/clear-cache", adminHandler.ClearCache)
	admin.GET("/config", adminHandler.Config)
}

// bearerAuth verifies access tokens and stores the *auth.Identity under
// handler.IdentityContextKey.
func bearerAuth(jwtService *auth.JWTService) echo.MiddlewareFunc {
	return echojwt.WithConfig(echojwt.Config{
		ContextKey:  handler.IdentityContextKey,
		TokenLookup: "header:" + echo.HeaderAuthorization + ":Bearer ",
		ParseTokenFunc: func(_ echo.Context, token string) (interface{}, error) {
			return jwtService.VerifyAccessToken(token)
		},
		ErrorHandler: func(c echo.Context, _ error) error {
			c.Response().Header().Set(echo.HeaderWWWAuthenticate, "Bearer")
			return echo.NewHTTPError(http.StatusUnauthorized, errors.ErrorResponse{
				Error: errors.ErrInvalidToken.Error(),
				Code:  string(errors.KindInvalidToken),
			})
		},
	})
}

func requireAdmin(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		identity, ok := c.Get(handler.IdentityContextKey).(*auth.Identity)
		if !ok || !access.IsAdmin(identity.AccessLevel) {
			return echo.NewHTTPError(http.StatusForbidden, errors.ErrorResponse{
				Error: "admin access required",
				Code:  string(errors.KindAuthorization),
			})
		}
		return next(c)
	}
}

// rateLimit keys authenticated requests by user and the rest by client IP.
// Backend failures are logged and the request is let through.
func rateLimit(limiter ratelimit.Limiter) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			key := "anon:" + c.RealIP()
			if identity, ok := c.Get(handler.IdentityContextKey).(*auth.Identity); ok {
				key = "user:" + strconv.FormatUint(uint64(identity.UserID), 10)
			}

			allowed, err := limiter.Allow(c.Request().Context(), key)
			if err != nil {
				logging.Warn().Err(err).Str("key", key).Msg("rate limiter unavailable")
			}
			if !allowed {
				metrics.RateLimited.Inc()
				return echo.NewHTTPError(http.StatusTooManyRequests, errors.ErrorResponse{
					Error: "rate limit exceeded",
					Code:  string(errors.KindRateLimited),
				})
			}
			return next(c)
		}
	}
}

func apiKeyAuth(expected string) echo.MiddlewareFunc {
	return middleware.KeyAuthWithConfig(middleware.KeyAuthConfig{
		KeyLookup: "header:" + APIKeyHeader,
		Validator: func(key string, _ echo.Context) (bool, error) {
			return subtle.ConstantTimeCompare([]byte(key), []byte(expected)) == 1, nil
		},
		ErrorHandler: func(error, echo.Context) error {
			return echo.NewHTTPError(http.StatusUnauthorized, errors.ErrorResponse{
				Error: "invalid or missing API key",
				Code:  string(errors.KindAuthentication),
			})
		},
	})
}

func requestLogger() echo.MiddlewareFunc {
	return middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod:    true,
		LogURI:       true,
		LogStatus:    true,
		LogLatency:   true,
		LogRequestID: true,
		LogRemoteIP:  true,
		LogError:     true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			route := c.Path()
			if route == "" {
				route = "unmatched"
			}
			metrics.HTTPRequestDuration.
				WithLabelValues(v.Method, route, strconv.Itoa(v.Status)).
				Observe(v.Latency.Seconds())

			event := logging.Info()
			if v.Status >= http.StatusInternalServerError {
				event = logging.Error()
			}
			event.
				Str("request_id", v.RequestID).
				Str("method", v.Method).
				Str("uri", v.URI).
				Int("status", v.Status).
				Dur("latency", v.Latency.Round(time.Microsecond)).
				Str("remote_ip", v.RemoteIP).
				Msg("request")
			return nil
		},
	})
}

// CustomValidator wraps validator for Echo.
type CustomValidator struct {
	validator *validator.Validate
}

// Validate implements echo.Validator interface.
func (cv *CustomValidator) Validate(i interface{}) error {
	return cv.validator.Struct(i)
}
