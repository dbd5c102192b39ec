package router

import (
	"net/http"
	"time"

	"spendlens/api"
	"spendlens/config"
	_ "spendlens/docs"
	"spendlens/events"
	"spendlens/extraction"
	"spendlens/logger"
	"spendlens/middleware"
	"spendlens/service"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

// 登录、注册、找回密码共用的限流参数（按客户端 IP）
const (
	authAttempts = 10
	authWindow   = time.Minute
)

// Deps 路由依赖的协作者
type Deps struct {
	Log       *logger.Logger
	Hub       *events.Hub
	Extractor api.Extractor
	History   extraction.ChatHistory
	Objects   service.ObjectStore
}

// SetupRouter 设置路由
func SetupRouter(cfg *config.Config, deps Deps) *gin.Engine {
	// 设置运行模式
	gin.SetMode(cfg.Server.Mode)

	if deps.Log == nil {
		deps.Log = logger.Default()
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestLogger(deps.Log))
	r.Use(middleware.Metrics())

	// CORS 中间件
	r.Use(CORSMiddleware())

	authLimit := middleware.LoginRateLimit(authAttempts, authWindow)

	authHandler := api.NewAuthHandler(cfg, deps.Hub)
	passwordResetHandler := api.NewPasswordResetHandler(cfg, deps.Hub)
	chatHandler := api.NewChatHandler(deps.Extractor)

	// 前端直接调用的三个接口，保持各自的响应格式
	legacy := r.Group("/api")
	{
		legacy.POST("/chat", chatHandler.Extract)
		legacy.POST("/auth/reset-password", authLimit, passwordResetHandler.ResetPassword)
		legacy.POST("/auth/update-password", passwordResetHandler.UpdatePassword)
	}

	// Swagger 文档
	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	// Prometheus 指标
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := r.Group("/api/v1")
	{
		// 认证相关路由（无需登录）
		auth := v1.Group("/auth")
		{
			auth.POST("/signup", authLimit, authHandler.Signup)
			auth.POST("/verify", authLimit, authHandler.Verify)
			auth.POST("/login", authLimit, authHandler.Login)
		}

		// 需要 JWT 认证的路由
		authorized := v1.Group("")
		authorized.Use(middleware.JWTAuth())
		{
			authorized.POST("/auth/logout", authHandler.Logout)
			authorized.GET("/auth/session", authHandler.Session)

			// 消费记录相关
			expenseHandler := api.NewExpenseHandler()
			expenses := authorized.Group("/expenses")
			{
				expenses.POST("", expenseHandler.Create)
				expenses.GET("", expenseHandler.List)
				expenses.GET("/:id", expenseHandler.Get)
			}
			authorized.GET("/categories", api.ListCategories)
			authorized.GET("/payment-methods", api.ListPaymentMethods)

			// 小票
			receiptHandler := api.NewReceiptHandler(&cfg.Storage, deps.Objects)
			receipts := authorized.Group("/receipts")
			{
				receipts.POST("", receiptHandler.Upload)
				receipts.GET("", receiptHandler.List)
				receipts.GET("/:id/file", receiptHandler.File)
				receipts.DELETE("/:id", receiptHandler.Delete)
			}

			// 预算与汇总
			budgetHandler := api.NewBudgetHandler()
			authorized.GET("/budgets", budgetHandler.List)
			authorized.PUT("/budgets/:id", budgetHandler.Update)
			authorized.GET("/summary", api.NewSummaryHandler().Summary)

			// 导出相关
			exportHandler := api.NewExportHandler()
			export := authorized.Group("/export")
			{
				export.GET("/csv", exportHandler.ExportCSV)
				export.GET("/xlsx", exportHandler.ExportXLSX)
			}

			// 聊天记录
			historyHandler := api.NewChatHistoryHandler(deps.History)
			history := authorized.Group("/chat/history")
			{
				history.GET("", historyHandler.List)
				history.POST("", historyHandler.Append)
				history.DELETE("", historyHandler.Clear)
			}

			// 变更推送
			authorized.GET("/events", api.NewEventsHandler(deps.Hub).Stream)
		}
	}

	// 健康检查
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status": "ok",
		})
	})

	return r
}

// CORSMiddleware CORS 跨域中间件，前端用 Bearer token，不需要携带 cookie
func CORSMiddleware() gin.HandlerFunc {
	return cors.New(cors.Config{
		AllowAllOrigins: true,
		AllowMethods:    []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:    []string{"Origin", "Content-Type", "Authorization", "Cache-Control", "X-Requested-With", middleware.HeaderRequestID},
		ExposeHeaders:   []string{"Content-Length", "Content-Disposition", middleware.HeaderRequestID},
		MaxAge:          12 * time.Hour,
	})
}
