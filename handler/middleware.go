package handler

import (
	"net/http"
	"strings"
	"time"

	"clinic-auth/controller"
	"clinic-auth/entity"
	"clinic-auth/pkg/logger"
	"clinic-auth/service"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

const requestIDKey = "request_id"

// JWTMiddleware requires a valid bearer token and stores its claims and raw value
// in the echo context
func JWTMiddleware(jwtService service.JWTService, logger *logger.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			path := c.Request().URL.Path

			// Get Authorization header
			authHeader := c.Request().Header.Get(echo.HeaderAuthorization)
			if authHeader == "" {
				logger.Warnw("Missing Authorization header", "path", path)
				return c.JSON(http.StatusUnauthorized, entity.Failure("Missing Authorization header", nil))
			}

			// Check Bearer token format
			tokenString, found := strings.CutPrefix(authHeader, "Bearer ")
			if !found || tokenString == "" {
				logger.Warnw("Invalid Authorization header format", "path", path)
				return c.JSON(http.StatusUnauthorized, entity.Failure("Invalid Authorization header format", nil))
			}

			claims, err := jwtService.ValidateToken(c.Request().Context(), tokenString)
			if err != nil {
				logger.Warnw("Invalid JWT token", "path", path, "error", err)
				return c.JSON(http.StatusUnauthorized, entity.Failure("Invalid or expired token", nil))
			}

			c.Set(controller.ContextClaims, claims)
			c.Set(controller.ContextToken, tokenString)

			logger.Debugw("JWT authentication successful", "account_id", claims.AccountID, "path", path)
			return next(c)
		}
	}
}

// CORSMiddleware creates a CORS middleware
func CORSMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			c.Response().Header().Set("Access-Control-Allow-Origin", "*")
			c.Response().Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			c.Response().Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Requested-With, X-Request-ID")

			if c.Request().Method == http.MethodOptions {
				return c.NoContent(http.StatusNoContent)
			}

			return next(c)
		}
	}
}

// RequestIDMiddleware propagates X-Request-ID, generating a uuid when absent, and
// keeps the ID on the context for the request logger
func RequestIDMiddleware() echo.MiddlewareFunc {
	return middleware.RequestIDWithConfig(middleware.RequestIDConfig{
		Generator: uuid.NewString,
		RequestIDHandler: func(c echo.Context, id string) {
			c.Set(requestIDKey, id)
		},
	})
}

// RequestLoggerMiddleware creates a request logging middleware
func RequestLoggerMiddleware(logger *logger.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			requestID, _ := c.Get(requestIDKey).(string)

			err := next(c)
			if err != nil {
				// Let echo's error handler set the final status before it is logged
				c.Error(err)
			}

			logger.Infow("HTTP Request",
				"request_id", requestID,
				"method", c.Request().Method,
				"path", c.Request().URL.Path,
				"status", c.Response().Status,
				"remote_addr", c.RealIP(),
				"user_agent", c.Request().UserAgent(),
				"latency", time.Since(start),
			)

			return nil
		}
	}
}
