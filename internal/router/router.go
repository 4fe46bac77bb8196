// Package router mounts the HTTP routes on a gin engine.
package router

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"github.com/spanexx/personal-finance-dashboard-sub009/internal/handlers"
	"github.com/spanexx/personal-finance-dashboard-sub009/internal/metrics"
	"github.com/spanexx/personal-finance-dashboard-sub009/internal/middleware"
	"github.com/spanexx/personal-finance-dashboard-sub009/internal/services"
)

// Deps are the collaborators the routes need.
type Deps struct {
	Users        services.UserServicer
	Categories   services.CategoryServicer
	Transactions services.TransactionServicer
	Budgets      services.BudgetServicer
	Audit        services.AuditServicer
	Metrics      metrics.Recorder

	JWTSecret   string
	JWTTTL      time.Duration
	CORSOrigins []string

	// Limiter is optional; nil disables rate limiting.
	Limiter *middleware.RateLimiter

	ExposeMetrics bool
	// MetricsAPIKey guards /metrics when non-empty.
	MetricsAPIKey string
	ExposeSwagger bool
}

// New builds the engine with the middleware chain and every API route.
func New(d Deps) *gin.Engine {
	if d.Metrics == nil {
		d.Metrics = metrics.Nop{}
	}

	r := gin.New()
	r.Use(middleware.Recovery())
	r.Use(middleware.RequestLogging())
	r.Use(middleware.HTTPMetrics(d.Metrics))
	r.Use(middleware.ErrorHandler())
	r.Use(middleware.CORS(d.CORSOrigins))

	r.GET("/api/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	if d.ExposeMetrics {
		r.GET("/metrics", middleware.MetricsAuth(d.MetricsAPIKey), gin.WrapH(promhttp.Handler()))
	}
	if d.ExposeSwagger {
		r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	authHandler := handlers.NewAuthHandler(d.Users, d.JWTSecret, d.JWTTTL)
	categoryHandler := handlers.NewCategoryHandler(d.Categories, d.Audit)
	transactionHandler := handlers.NewTransactionHandler(d.Transactions, d.Audit)
	budgetHandler := handlers.NewBudgetHandler(d.Budgets, d.Audit)

	v1 := r.Group("/api/v1")
	if d.Limiter != nil {
		v1.Use(d.Limiter.Middleware())
	}

	auth := v1.Group("/auth")
	auth.POST("/register", authHandler.Register)
	auth.POST("/login", authHandler.Login)

	protected := v1.Group("")
	protected.Use(middleware.AuthMiddleware(d.JWTSecret))

	protected.GET("/profile", authHandler.GetProfile)

	categories := protected.Group("/categories")
	categories.POST("", categoryHandler.CreateCategory)
	categories.GET("", categoryHandler.GetUserCategories)
	categories.GET("/:id", categoryHandler.GetCategoryByID)
	categories.PUT("/:id", categoryHandler.UpdateCategory)
	categories.DELETE("/:id", categoryHandler.DeleteCategory)

	transactions := protected.Group("/transactions")
	transactions.POST("", transactionHandler.CreateTransaction)
	transactions.GET("", transactionHandler.GetUserTransactions)
	transactions.GET("/:id", transactionHandler.GetTransactionByID)
	transactions.DELETE("/:id", transactionHandler.DeleteTransaction)

	budgets := protected.Group("/budgets")
	budgets.POST("", budgetHandler.CreateBudget)
	budgets.GET("", budgetHandler.GetBudgets)
	budgets.POST("/from-template/:id", budgetHandler.CreateFromTemplate)
	budgets.GET("/:id", budgetHandler.GetBudget)
	budgets.PUT("/:id", budgetHandler.UpdateBudget)
	budgets.DELETE("/:id", budgetHandler.DeactivateBudget)
	budgets.POST("/:id/allocations", budgetHandler.SetAllocation)
	budgets.DELETE("/:id/allocations/:categoryId", budgetHandler.RemoveAllocation)
	budgets.GET("/:id/validate", budgetHandler.ValidateBudget)
	budgets.GET("/:id/analysis", budgetHandler.GetAnalysis)
	budgets.POST("/:id/roll-forward", budgetHandler.RollForward)

	return r
}
