package router

import (
	"strconv"
	"strings"
	"time"

	"github.com/pawpledge/internal/authz"
	"github.com/pawpledge/internal/config"
	"github.com/pawpledge/internal/constants"
	handlershared "github.com/pawpledge/internal/http/handlers/shared"
	"github.com/pawpledge/internal/http/response"
	"github.com/pawpledge/internal/logger"
	"github.com/pawpledge/internal/repository"
	"github.com/pawpledge/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const requestIDKey = "request_id"
const requestIDHeader = "X-Request-ID"

// CORSMiddleware 跨域中间件
func CORSMiddleware(cfg config.CORSConfig) gin.HandlerFunc {
	allowedOrigins := cfg.AllowedOrigins
	if len(allowedOrigins) == 0 {
		allowedOrigins = []string{"*"}
	}
	allowedMethods := cfg.AllowedMethods
	if len(allowedMethods) == 0 {
		allowedMethods = []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}
	}
	allowedHeaders := cfg.AllowedHeaders
	if len(allowedHeaders) == 0 {
		allowedHeaders = []string{
			"Content-Type",
			"Content-Length",
			"Accept-Encoding",
			"Authorization",
			"Cache-Control",
			"X-Requested-With",
			"X-Request-ID",
		}
	}
	methodsHeader := strings.Join(allowedMethods, ", ")
	headersHeader := strings.Join(allowedHeaders, ", ")

	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")
		allowedOrigin := resolveAllowedOrigin(origin, allowedOrigins, cfg.AllowCredentials)
		if allowedOrigin != "" {
			c.Writer.Header().Set("Access-Control-Allow-Origin", allowedOrigin)
			if allowedOrigin != "*" {
				c.Writer.Header().Add("Vary", "Origin")
			}
		}
		if cfg.AllowCredentials {
			c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		}
		c.Writer.Header().Set("Access-Control-Allow-Headers", headersHeader)
		c.Writer.Header().Set("Access-Control-Allow-Methods", methodsHeader)
		if cfg.MaxAge > 0 {
			c.Writer.Header().Set("Access-Control-Max-Age", strconv.Itoa(cfg.MaxAge))
		}

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	}
}

func resolveAllowedOrigin(origin string, allowedOrigins []string, allowCredentials bool) string {
	if len(allowedOrigins) == 0 {
		return ""
	}
	for _, allowed := range allowedOrigins {
		if allowed == "*" {
			if allowCredentials && origin != "" {
				return origin
			}
			return "*"
		}
	}
	if origin == "" {
		return ""
	}
	for _, allowed := range allowedOrigins {
		if strings.EqualFold(allowed, origin) {
			return origin
		}
	}
	return ""
}

// RequestIDMiddleware 请求 ID 中间件
func RequestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := strings.TrimSpace(c.GetHeader(requestIDHeader))
		if requestID == "" {
			requestID = uuid.NewString()
		}
		c.Set(requestIDKey, requestID)
		c.Writer.Header().Set(requestIDHeader, requestID)
		c.Next()
	}
}

// LoggerMiddleware 结构化请求日志中间件
func LoggerMiddleware(logger *zap.Logger) gin.HandlerFunc {
	if logger == nil {
		logger = zap.L()
	}
	sugar := logger.Sugar()
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		log := sugar.With(
			"request_id", getRequestID(c),
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"latency_ms", time.Since(start).Milliseconds(),
			"client_ip", c.ClientIP(),
		)
		if len(c.Errors) > 0 {
			log.Errorw("request", "errors", c.Errors.String())
			return
		}
		log.Infow("request")
	}
}

func getRequestID(c *gin.Context) string {
	value, ok := c.Get(requestIDKey)
	if !ok {
		return ""
	}
	if requestID, ok := value.(string); ok {
		return requestID
	}
	return ""
}

// TokenParser 将 bearer 凭证解析为调用方身份
type TokenParser interface {
	ParseToken(tokenString string) (*service.Identity, error)
}

// JWTAuthMiddleware JWT 鉴权中间件，写入 user_id 与 user_role
func JWTAuthMiddleware(parser TokenParser, userRepo repository.UserRepository) gin.HandlerFunc {
	return func(c *gin.Context) {
		if parser == nil {
			response.Unauthorized(c, "authentication is not configured")
			c.Abort()
			return
		}
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			response.Unauthorized(c, "authorization header is missing")
			c.Abort()
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if !(len(parts) == 2 && parts[0] == "Bearer") {
			response.Unauthorized(c, "authorization header must be a bearer token")
			c.Abort()
			return
		}

		identity, err := parser.ParseToken(strings.TrimSpace(parts[1]))
		if err != nil || identity == nil || identity.UserID == 0 {
			response.Unauthorized(c, "token is invalid or expired")
			c.Abort()
			return
		}

		if userRepo != nil {
			user, err := userRepo.GetByID(identity.UserID)
			if err != nil {
				logger.Errorw("jwt_auth_user_lookup_failed", "user_id", identity.UserID, "error", err)
				response.Error(c, response.CodeInternal, "internal server error")
				c.Abort()
				return
			}
			if user == nil {
				response.Unauthorized(c, "token is invalid or expired")
				c.Abort()
				return
			}
			if !isActiveUserStatus(user.Status) {
				response.Unauthorized(c, "account is disabled")
				c.Abort()
				return
			}
			identity.Role = user.Role
		}

		c.Set(handlershared.ContextKeyUserID, identity.UserID)
		c.Set(handlershared.ContextKeyRole, identity.Role)
		c.Next()
	}
}

// PermissionEnforcer 角色授权判定
type PermissionEnforcer interface {
	Enforce(role, obj, act string) (bool, error)
}

// RequirePermission casbin 授权中间件，需在 JWTAuthMiddleware 之后使用
func RequirePermission(enforcer PermissionEnforcer, object, action string) gin.HandlerFunc {
	object = authz.NormalizeObject(object)
	action = authz.NormalizeAction(action)
	return func(c *gin.Context) {
		if enforcer == nil {
			logger.Errorw("rbac_service_unavailable")
			response.Forbidden(c, "forbidden")
			c.Abort()
			return
		}
		role := handlershared.GetRole(c)
		if role == "" {
			response.Unauthorized(c, "unauthorized")
			c.Abort()
			return
		}

		allowed, err := enforcer.Enforce(role, object, action)
		if err != nil {
			logger.Errorw("rbac_enforce_failed",
				"role", role,
				"object", object,
				"action", action,
				"path", c.Request.URL.Path,
				"error", err,
			)
			response.Forbidden(c, "forbidden")
			c.Abort()
			return
		}
		if !allowed {
			logger.Warnw("rbac_permission_denied",
				"role", role,
				"object", object,
				"action", action,
				"method", c.Request.Method,
				"path", c.Request.URL.Path,
			)
			response.Forbidden(c, "forbidden")
			c.Abort()
			return
		}

		c.Next()
	}
}

func isActiveUserStatus(status string) bool {
	return strings.ToLower(strings.TrimSpace(status)) == constants.UserStatusActive
}
