package handler

import (
	"clinic-auth/config"
	"clinic-auth/controller"
	_ "clinic-auth/docs" // Import for swagger docs
	"clinic-auth/pkg/logger"
	"clinic-auth/service"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	echoSwagger "github.com/swaggo/echo-swagger"
)

// Controllers groups the HTTP controllers served by the router
type Controllers struct {
	Auth   *controller.AuthController
	OTP    *controller.OTPController
	User   *controller.UserController
	Health *controller.HealthController
}

// RegisterRoutes registers all HTTP routes and middleware
func RegisterRoutes(
	e *echo.Echo,
	controllers Controllers,
	jwtService service.JWTService,
	cfg *config.Config,
	logger *logger.Logger,
) {
	// Add common middleware
	e.Use(middleware.Recover())
	e.Use(CORSMiddleware())
	e.Use(RequestIDMiddleware())
	e.Use(RequestLoggerMiddleware(logger))

	// System endpoints
	e.GET("/health", controllers.Health.HealthCheck)
	e.GET("/", controllers.Health.ServiceInfo)

	// Swagger documentation
	if cfg.Swagger.Enabled {
		e.GET("/swagger/*", echoSwagger.WrapHandler)
	}

	// API v1 group
	v1 := e.Group("/api/v1")
	requireAuth := JWTMiddleware(jwtService, logger)

	// Auth routes (public)
	authGroup := v1.Group("/auth")
	authGroup.POST("/login", controllers.Auth.Login)
	authGroup.POST("/verify-phone", controllers.OTP.VerifyPhone)
	authGroup.POST("/verify-otp", controllers.OTP.VerifyOTP)

	// Auth routes (protected)
	authGroup.POST("/logout", controllers.Auth.Logout, requireAuth)

	// User routes (protected)
	userGroup := v1.Group("/users", requireAuth)
	userGroup.GET("/me", controllers.User.Me)
	userGroup.GET("/:id", controllers.User.GetUser)
}
