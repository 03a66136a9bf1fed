package httptransport

import (
	"net/http"
	"time"

	gincors "github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	jwtpkg "mailpool/backend/internal/auth/jwt"
	"mailpool/backend/internal/config"
	"mailpool/backend/internal/middleware"
	"mailpool/backend/internal/monitoring"
	"mailpool/backend/internal/service"
	"mailpool/backend/internal/storage"
)

// RouterDependencies 路由器依赖项
type RouterDependencies struct {
	Config              *config.Config
	VerificationService *service.VerificationService
	PoolService         *service.PoolService
	TokenService        *service.TokenService
	JWTManager          *jwtpkg.Manager // 为 nil 时管理路由关闭
	Metrics             *monitoring.Metrics
	Store               storage.Store
	Logger              *zap.Logger
}

// NewRouter 创建并返回 Gin 路由实例。
func NewRouter(deps RouterDependencies) *gin.Engine {
	router := gin.New()

	router.Use(middleware.RecoveryHandler(deps.Logger, deps.Metrics))
	router.Use(middleware.RequestLogger(deps.Logger, deps.Metrics))
	router.Use(middleware.SecurityHeaders())
	router.Use(middleware.RequestSizeLimit(1 * 1024 * 1024))

	// CORS 配置：验证接口面向浏览器端调用
	corsConfig := gincors.Config{
		AllowOrigins:  []string{"*"},
		AllowMethods:  []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Accept", "Authorization", "X-API-Token", "X-Scheduler-Key"},
		ExposeHeaders: []string{"Content-Length"},
		MaxAge:        12 * time.Hour,
	}
	router.Use(gincors.New(corsConfig))

	verifyHandler := NewVerifyHandler(deps.VerificationService, deps.Metrics, deps.Logger)
	automationHandler := NewAutomationHandler(deps.PoolService, deps.TokenService, deps.Metrics, deps.Logger)
	tokenAdminHandler := NewTokenAdminHandler(deps.TokenService, deps.Logger)

	tokenAuth := middleware.NewTokenAuth(deps.TokenService, deps.Config.Automation.SchedulerKey, deps.Metrics, deps.Logger)
	verifyRateLimit := middleware.NewRateLimiter(5, 10)

	// 健康检查
	router.GET("/health", func(c *gin.Context) {
		if err := deps.Store.Health(); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// Prometheus 抓取端点
	router.GET("/metrics", gin.WrapH(monitoring.HTTPHandler()))

	v1 := router.Group("/v1")
	{
		// ========== 公开验证路由（限流保护） ==========
		v1.GET("/verify", verifyRateLimit.Limit(), verifyHandler.Verify)
		v1.POST("/verify", verifyRateLimit.Limit(), verifyHandler.Verify)

		// ========== 自动化网关（令牌认证） ==========
		v1.POST("/automation", tokenAuth.RequireToken(), automationHandler.Handle)

		// ========== 令牌管理路由（JWT 认证） ==========
		if deps.JWTManager != nil {
			jwtAuth := middleware.NewJWTAuth(deps.JWTManager, deps.Logger)
			adminRoutes := v1.Group("/admin")
			adminRoutes.Use(jwtAuth.RequireAdmin())
			{
				adminRoutes.POST("/tokens", tokenAdminHandler.CreateToken)
				adminRoutes.GET("/tokens", tokenAdminHandler.ListTokens)
				adminRoutes.PATCH("/tokens/:id", tokenAdminHandler.ToggleToken)
				adminRoutes.POST("/tokens/:id/reset", tokenAdminHandler.ResetTokenUsage)
				adminRoutes.DELETE("/tokens/:id", tokenAdminHandler.DeleteToken)
				adminRoutes.GET("/tokens/:id/usages", tokenAdminHandler.ListTokenUsages)
			}
		}
	}

	return router
}
