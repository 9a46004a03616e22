package app

import (
	"staff_training_backend/docs"
	"staff_training_backend/internal/config"
	"staff_training_backend/internal/middleware"
	"staff_training_backend/internal/model"
	"staff_training_backend/pkg/monitoring"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

func (a *App) registerRoutes(router *gin.Engine, c *controllers, cfg *config.Config) {
	docs.SwaggerInfo.BasePath = "/api"
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler, ginSwagger.URL("/swagger/doc.json")))

	router.GET("/metrics", monitoring.PrometheusHandler())

	// 1. 公共路由(无需登录)
	router.GET("/api/health", c.health.HealthCheck)

	// 2. 员工答题
	authGroup := router.Group("/api")
	authGroup.Use(middleware.AuthMiddleware(cfg.JWT.Secret))
	{
		registerStaffRoutes(authGroup, c)
	}

	// 3. 管理端（店长/管理员）
	admin := router.Group("/api/admin")
	admin.Use(middleware.AuthMiddleware(cfg.JWT.Secret), middleware.RoleMiddleware(model.RoleManager))
	{
		registerAdminRoutes(admin, c)
	}
}

func registerStaffRoutes(group *gin.RouterGroup, c *controllers) {
	group.GET("/quizzes", c.quizAttempt.ListQuizzes)
	group.POST("/quizzes/:id/attempts/start", c.quizAttempt.StartAttempt)
	group.POST("/quizzes/:id/attempts/submit", c.quizAttempt.SubmitAttempt)
	group.GET("/quizzes/:id/attempts", c.quizAttempt.ListAttempts)
	group.GET("/quizzes/:id/progress", c.quizAttempt.GetProgress)
}

func registerAdminRoutes(group *gin.RouterGroup, c *controllers) {
	group.GET("/quizzes", c.quizAdmin.ListQuizzes)
	group.POST("/quizzes", c.quizAdmin.CreateQuiz)
	group.GET("/quizzes/:id", c.quizAdmin.GetQuiz)
	group.PUT("/quizzes/:id", c.quizAdmin.UpdateQuiz)
	group.DELETE("/quizzes/:id", c.quizAdmin.DeleteQuiz)
	group.POST("/quizzes/:id/snapshot", c.quizAdmin.RecomputeSnapshot)
	group.GET("/quizzes/:id/progress", c.quizAdmin.ListProgress)
	group.POST("/quizzes/:id/reset", c.quizAdmin.ResetProgress)
}
