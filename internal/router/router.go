package router

import (
	"net/http"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	echoSwagger "github.com/swaggo/echo-swagger"
	"go.opentelemetry.io/contrib/instrumentation/github.com/labstack/echo/otelecho"
	"go.uber.org/zap"

	"authapi/internal/config"
	apperrors "authapi/internal/errors"
	"authapi/internal/handler"
	"authapi/internal/metrics"
	"authapi/internal/middleware"
	"authapi/internal/model"
	"authapi/internal/ratelimit"
)

const requestTimeout = 30 * time.Second

// Handlers groups the HTTP handlers mounted by Register.
type Handlers struct {
	Auth   *handler.AuthHandler
	User   *handler.UserHandler
	Health *handler.HealthHandler
}

// Deps are the shared collaborators the middleware chain needs.
type Deps struct {
	Log      *zap.Logger
	Verifier middleware.AccessVerifier
	Counter  ratelimit.Counter
	Recorder *metrics.Recorder
	Tracing  bool
}

// Register wires routes and middleware.
func Register(e *echo.Echo, cfg *config.Config, deps Deps, h Handlers) {
	e.HideBanner = true
	e.Validator = NewValidator()
	e.HTTPErrorHandler = middleware.ErrorHandler(deps.Log, cfg.IsProduction())

	e.Use(echomw.Recover())
	e.Use(echomw.RequestID())
	if deps.Tracing {
		e.Use(otelecho.Middleware(cfg.AppName))
	}
	e.Use(metrics.Middleware())
	e.Use(middleware.RequestLogger(deps.Log))
	e.Use(echomw.Secure())
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins:  []string{"*"},
		AllowMethods:  []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodOptions},
		AllowHeaders:  []string{echo.HeaderAuthorization, echo.HeaderContentType, echo.HeaderXRequestID},
		ExposeHeaders: []string{echo.HeaderXRequestID, echo.HeaderRetryAfter, "RateLimit-Limit", "RateLimit-Remaining", "RateLimit-Reset"},
	}))
	e.Use(echomw.BodyLimit("1M"))
	e.Use(echomw.Gzip())
	e.Use(echomw.ContextTimeoutWithConfig(echomw.ContextTimeoutConfig{Timeout: requestTimeout}))

	e.GET("/healthz", h.Health.Healthz)
	e.GET("/metrics", metrics.Handler())
	if cfg.SwaggerEnabled {
		e.GET("/swagger/*", echoSwagger.WrapHandler)
	}
	e.RouteNotFound("/*", handler.NotFound)

	rec := deps.Recorder
	if rec == nil {
		rec = metrics.NewRecorder()
	}
	limiter := ratelimit.New(deps.Counter, deps.Log, ratelimit.OnExceeded(rec.RateLimited))
	tiers := newTiers(cfg.Rate)

	api := e.Group("/api", limiter.Middleware(tiers.api, ratelimit.ByIP))
	v1 := api.Group("/v1")

	v1.GET("", h.Health.Root)
	v1.GET("/", h.Health.Root)
	v1.GET("/health", h.Health.Health)

	authLimit := limiter.Middleware(tiers.auth, ratelimit.ByIP)
	sensitive := limiter.Middleware(tiers.sensitive, ratelimit.ByIP)

	authGroup := v1.Group("/auth")
	authGroup.POST("/register", h.Auth.Register, authLimit)
	authGroup.POST("/login", h.Auth.Login, authLimit)
	authGroup.POST("/forgot-password", h.Auth.ForgotPassword, authLimit)
	authGroup.POST("/verify-email", h.Auth.VerifyEmail, sensitive)
	authGroup.POST("/resend-otp", h.Auth.ResendOTP, sensitive)
	authGroup.POST("/verify-otp", h.Auth.VerifyOTP, sensitive)
	authGroup.POST("/reset-password", h.Auth.ResetPassword, sensitive)

	// Secured routes (require a valid access token)
	userGroup := v1.Group("/user",
		middleware.Authenticate(deps.Verifier),
		limiter.Middleware(tiers.user, middleware.RateLimitKey),
	)
	userGroup.GET("/me", h.User.GetMe, middleware.RequireRoles(model.RoleUser, model.RoleAdmin))
	userGroup.PATCH("/me", h.User.UpdateMe, middleware.RequireRoles(model.RoleUser, model.RoleAdmin))
	userGroup.GET("/get-all-users", h.User.GetAllUsers, middleware.RequireRoles(model.RoleAdmin))
}

type tierSet struct {
	api, auth, sensitive, user ratelimit.Tier
}

func newTiers(rc config.RateLimitConfig) tierSet {
	return tierSet{
		api: ratelimit.Tier{
			Name: "api", Limit: rc.APILimit, Window: rc.APIWindow,
			Message: "Too many requests, please try again later.",
			Source:  apperrors.FieldError{Path: "rateLimit", Message: "API rate limit exceeded"},
		},
		auth: ratelimit.Tier{
			Name: "auth", Limit: rc.AuthLimit, Window: rc.AuthWindow,
			Message: "Too many authentication attempts, please try again later.",
			Source:  apperrors.FieldError{Path: "auth", Message: "Authentication rate limit exceeded"},
		},
		sensitive: ratelimit.Tier{
			Name: "sensitive", Limit: rc.SensitiveLimit, Window: rc.SensitiveWindow,
			Message: "Too many attempts for this operation, please try again later.",
			Source:  apperrors.FieldError{Path: "sensitive", Message: "Sensitive operation rate limit exceeded"},
		},
		user: ratelimit.Tier{
			Name: "user", Limit: rc.UserLimit, Window: rc.UserWindow,
			Message: "Too many requests from this account, please try again later.",
			Source:  apperrors.FieldError{Path: "user", Message: "User rate limit exceeded"},
		},
	}
}

// CustomValidator wraps validator for Echo.
type CustomValidator struct {
	validator *validator.Validate
}

// NewValidator reports field errors by their json names.
func NewValidator() *CustomValidator {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return &CustomValidator{validator: v}
}

// Validate implements echo.Validator interface.
func (cv *CustomValidator) Validate(i interface{}) error {
	return cv.validator.Struct(i)
}
