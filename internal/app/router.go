package app

import (
	"testbank_backend/docs"
	"testbank_backend/internal/config"
	"testbank_backend/internal/middleware"
	"testbank_backend/internal/model"
	"testbank_backend/pkg/monitoring"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

func (a *App) registerRoutes(router *gin.Engine, c *controllers, cfg *config.Config) {
	docs.SwaggerInfo.BasePath = "/api"
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler, ginSwagger.URL("/swagger/doc.json")))

	router.GET("/metrics", monitoring.PrometheusHandler())

	// 1. 公共路由(无需登录)
	public := router.Group("/api")
	{
		public.GET("/health", c.health.HealthCheck)
	}

	// 2. 需要授权的路由
	authGroup := router.Group("/api")
	authGroup.Use(middleware.AuthMiddleware(cfg))
	{
		registerExamRoutes(authGroup, c)
	}
}

func registerExamRoutes(group *gin.RouterGroup, c *controllers) {
	exams := group.Group("/exams")
	{
		// 目录查询对所有登录用户开放
		exams.GET("/lessons", c.catalog.ListLessons)
		exams.GET("/lessons/:lessonId/topics", c.catalog.ListTopics)
		exams.GET("/difficulties", c.catalog.ListDifficulties)

		student := exams.Group("")
		student.Use(middleware.RoleMiddleware(model.Student, model.Teacher))
		{
			student.POST("/start", c.exam.StartExam)
			student.GET("/history", c.exam.GetHistory)
			student.PUT("/:id/answers", c.exam.SaveAnswers)
			student.POST("/:id/submit", c.exam.SubmitExam)
			student.GET("/:id/summary", c.exam.GetSummary)
			student.GET("/:id/review", c.exam.GetReview)
		}
	}
}
