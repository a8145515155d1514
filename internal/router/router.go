package router

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/quickbite/internal/cache"
	"github.com/quickbite/internal/config"
	merchanthandlers "github.com/quickbite/internal/http/handlers/merchant"
	publichandlers "github.com/quickbite/internal/http/handlers/public"
	"github.com/quickbite/internal/logger"
	"github.com/quickbite/internal/models"
	"github.com/quickbite/internal/provider"

	"github.com/gin-gonic/gin"
)

// SetupRouter 初始化路由
func SetupRouter(cfg *config.Config, c *provider.Container) *gin.Engine {
	log := logger.L
	if log == nil {
		log = logger.Init(cfg.Server.Mode, cfg.Log.ToLoggerOptions())
	}
	if strings.EqualFold(cfg.Server.Mode, gin.ReleaseMode) {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()

	// 初始化 Handler（按用户/店主分组）
	publicHandler := publichandlers.New(c)
	merchantHandler := merchanthandlers.New(c)
	redisPrefix := strings.TrimSpace(cfg.Redis.Prefix)
	if redisPrefix == "" {
		redisPrefix = "qb"
	}
	redisClient := cache.Client()
	checkoutRule := RateLimitRule{
		Prefix:        fmt.Sprintf("%s:rate:checkout", redisPrefix),
		WindowSeconds: cfg.Security.CheckoutRateLimit.WindowSeconds,
		MaxRequests:   cfg.Security.CheckoutRateLimit.MaxRequests,
	}
	returnRule := RateLimitRule{
		Prefix:        fmt.Sprintf("%s:rate:vnpay_return", redisPrefix),
		WindowSeconds: cfg.Security.CheckoutRateLimit.WindowSeconds,
		MaxRequests:   cfg.Security.CheckoutRateLimit.MaxRequests * 3,
	}
	checkoutLimit := RateLimitMiddleware(redisClient, checkoutRule, KeyByUserID)

	// 中间件
	r.Use(gin.Recovery())
	r.Use(RequestIDMiddleware())
	r.Use(LoggerMiddleware(log))
	r.Use(CORSMiddleware(cfg.CORS))

	apiV1 := r.Group("/api/v1")
	{
		// 支付网关回跳（无登录态）
		apiV1.GET("/payments/vnpay/return", RateLimitMiddleware(redisClient, returnRule, KeyByIP), publicHandler.VNPayReturn)

		user := apiV1.Group("")
		user.Use(UserJWTAuthMiddleware(cfg.UserJWT, false))
		{
			carts := user.Group("/carts")
			{
				carts.GET("", publicHandler.ListCarts)
				carts.DELETE("", publicHandler.ClearCarts)
				carts.GET("/store/:store_id", publicHandler.GetStoreCart)
				carts.DELETE("/store/:store_id", publicHandler.ClearStoreCart)
				carts.POST("/items", publicHandler.UpsertCartItem)
				carts.GET("/:id/quote", publicHandler.QuoteCart)
				carts.POST("/:id/vouchers", publicHandler.ApplyVoucher)
				carts.DELETE("/:id/vouchers/:voucher_id", publicHandler.RemoveVoucher)
				carts.POST("/:id/checkout", checkoutLimit, publicHandler.CheckoutCash)
				carts.POST("/:id/checkout/vnpay", checkoutLimit, publicHandler.CheckoutVNPay)

				carts.POST("/group/join", publicHandler.JoinGroupCart)
				carts.POST("/:id/group", publicHandler.EnableGroupCart)
				carts.POST("/:id/group/lock", publicHandler.LockGroupCart)
				carts.POST("/:id/group/unlock", publicHandler.UnlockGroupCart)
				carts.POST("/:id/group/leave", publicHandler.LeaveGroupCart)
				carts.POST("/:id/group/items", publicHandler.UpsertGroupItem)
				carts.DELETE("/:id/group/participants/:user_id", publicHandler.RemoveGroupParticipant)
				carts.POST("/:id/group/complete", checkoutLimit, publicHandler.CompleteGroupCart)
			}

			user.GET("/orders", publicHandler.ListOrders)
			user.GET("/orders/:id", publicHandler.GetOrder)
			user.POST("/orders/:id/reorder", publicHandler.ReorderOrder)
			user.GET("/stores/:store_id/vouchers", publicHandler.ListStoreVouchers)
			user.GET("/notifications", publicHandler.ListNotifications)

			merchant := user.Group("/merchant")
			{
				merchant.GET("/stores/:store_id/orders", merchantHandler.ListStoreOrders)
				merchant.PUT("/orders/:id/status", merchantHandler.UpdateOrderStatus)
				merchant.POST("/payments/refund", merchantHandler.RefundPayment)
			}
		}
	}

	// WebSocket 事件流
	r.GET("/ws", UserJWTAuthMiddleware(cfg.UserJWT, true), publicHandler.ServeWS)

	// 健康检查
	r.GET("/healthz", healthz)

	return r
}

func healthz(c *gin.Context) {
	status := gin.H{"status": "ok", "redis": cache.Enabled()}
	if models.DB != nil {
		if sqlDB, err := models.DB.DB(); err != nil || sqlDB.PingContext(c.Request.Context()) != nil {
			status["status"] = "degraded"
			c.JSON(http.StatusServiceUnavailable, status)
			return
		}
	}
	c.JSON(http.StatusOK, status)
}
