package router

import (
	"fmt"
	"strings"

	"github.com/pawpledge/internal/cache"
	"github.com/pawpledge/internal/config"
	"github.com/pawpledge/internal/constants"
	adminhandlers "github.com/pawpledge/internal/http/handlers/admin"
	publichandlers "github.com/pawpledge/internal/http/handlers/public"
	"github.com/pawpledge/internal/logger"
	"github.com/pawpledge/internal/provider"

	"github.com/gin-gonic/gin"
)

// SetupRouter 初始化路由
func SetupRouter(cfg *config.Config, c *provider.Container) *gin.Engine {
	log := logger.L
	if log == nil {
		log = logger.Init(cfg.Server.Mode, cfg.Log.ToLoggerOptions())
	}
	r := gin.New()

	// 初始化 Handler（按前台/后台分组）
	publicHandler := publichandlers.New(c)
	adminHandler := adminhandlers.New(c)
	redisPrefix := strings.TrimSpace(cfg.Redis.Prefix)
	if redisPrefix == "" {
		redisPrefix = "pp"
	}
	redisClient := cache.Client()
	checkoutRule := RateLimitRule{
		Prefix:        fmt.Sprintf("%s:rate:checkout", redisPrefix),
		WindowSeconds: cfg.Security.RateLimit.Checkout.WindowSeconds,
		MaxRequests:   cfg.Security.RateLimit.Checkout.MaxRequests,
		BlockSeconds:  cfg.Security.RateLimit.Checkout.BlockSeconds,
		Message:       "too many checkout attempts",
	}
	loginRule := RateLimitRule{
		Prefix:        fmt.Sprintf("%s:rate:login", redisPrefix),
		WindowSeconds: cfg.Security.RateLimit.Login.WindowSeconds,
		MaxRequests:   cfg.Security.RateLimit.Login.MaxRequests,
		BlockSeconds:  cfg.Security.RateLimit.Login.BlockSeconds,
		Message:       "too many login attempts",
	}
	authMiddleware := JWTAuthMiddleware(c.AuthService, c.UserRepo)

	// 中间件
	r.Use(gin.Recovery())
	r.Use(RequestIDMiddleware())
	r.Use(LoggerMiddleware(log))
	r.Use(CORSMiddleware(cfg.CORS))

	apiV1 := r.Group("/api/v1")
	{
		// 公开接口
		apiV1.GET("/animals", publicHandler.ListAnimals)
		apiV1.GET("/animals/:id", publicHandler.GetAnimal)
		apiV1.POST("/auth/login", RateLimitMiddleware(redisClient, loginRule, KeyByIPAndJSONField("email")), publicHandler.Login)

		checkout := apiV1.Group("/checkout")
		checkout.Use(RateLimitMiddleware(redisClient, checkoutRule, KeyByIP))
		{
			checkout.POST("/stripe", publicHandler.CreateStripeCheckout)
			checkout.POST("/gateway", publicHandler.CreateGatewayCheckout)
		}

		// 支付回调与浏览器回跳
		payments := apiV1.Group("/payments")
		{
			payments.POST("/webhook/stripe", publicHandler.StripeWebhook)
			payments.POST("/webhook/gateway", publicHandler.GatewayWebhook)
			payments.GET("/webhook/gateway", publicHandler.GatewayWebhook)
			payments.GET("/return/gateway", publicHandler.GatewayReturn)
			payments.POST("/return/gateway", publicHandler.GatewayReturn)
			payments.GET("/return/stripe", publicHandler.StripeReturn)
		}

		// 用户接口（需鉴权）
		subscriptions := apiV1.Group("/subscriptions")
		subscriptions.Use(authMiddleware)
		{
			subscriptions.POST("", publicHandler.CreateSubscription)
			subscriptions.GET("", publicHandler.ListSubscriptions)
			subscriptions.GET("/active", publicHandler.ListActiveSponsorships)
			subscriptions.GET("/:id", publicHandler.GetSubscription)
			subscriptions.PATCH("/:id/cancel", publicHandler.CancelSubscription)
		}

		// 管理员与版主接口
		admin := apiV1.Group("/admin")
		admin.Use(authMiddleware)
		{
			admin.GET("/subscriptions",
				RequirePermission(c.AuthzService, constants.AuthzObjectSubscriptions, constants.AuthzActionReadAny),
				adminHandler.ListSubscriptions)
			admin.GET("/payments",
				RequirePermission(c.AuthzService, constants.AuthzObjectPayments, constants.AuthzActionRead),
				adminHandler.ListPayments)
			admin.GET("/payments/:id/ledger",
				RequirePermission(c.AuthzService, constants.AuthzObjectPayments, constants.AuthzActionRead),
				adminHandler.GetPaymentLedger)
			admin.POST("/animals",
				RequirePermission(c.AuthzService, constants.AuthzObjectAnimals, constants.AuthzActionWrite),
				adminHandler.UpsertAnimal)
			admin.PATCH("/animals/:id/status",
				RequirePermission(c.AuthzService, constants.AuthzObjectAnimals, constants.AuthzActionWrite),
				adminHandler.UpdateAnimalStatus)

			// 权限管理
			admin.GET("/authz/roles",
				RequirePermission(c.AuthzService, constants.AuthzObjectAuthz, constants.AuthzActionRead),
				adminHandler.ListRoles)
			admin.GET("/authz/audit-logs",
				RequirePermission(c.AuthzService, constants.AuthzObjectAuthz, constants.AuthzActionRead),
				adminHandler.ListAuthzAuditLogs)
			admin.POST("/authz/roles/:role/policies",
				RequirePermission(c.AuthzService, constants.AuthzObjectAuthz, constants.AuthzActionWrite),
				adminHandler.GrantRolePolicy)
			admin.DELETE("/authz/roles/:role/policies",
				RequirePermission(c.AuthzService, constants.AuthzObjectAuthz, constants.AuthzActionWrite),
				adminHandler.RevokeRolePolicy)
		}
	}

	// 健康检查
	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	return r
}
