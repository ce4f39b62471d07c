package enrollment

import (
	"course_market/internal/domain/course"
	"course_market/internal/domain/enrollment/handler"
	"course_market/internal/domain/enrollment/repository"
	"course_market/internal/domain/enrollment/service"
	"course_market/internal/pkg/middleware"
	"course_market/internal/pkg/registry"
	"course_market/pkg/database"

	"github.com/gin-gonic/gin"
)

// EnrollmentModule 选课与学习进度模块
type EnrollmentModule struct{}

func init() {
	registry.Register(&EnrollmentModule{})
}

func (m *EnrollmentModule) Name() string {
	return "enrollment"
}

func (m *EnrollmentModule) Priority() int {
	// 依赖课程模块
	return 10
}

func (m *EnrollmentModule) Init(ctx *registry.ModuleContext) error {
	svc, tracker := NewServices(ctx)
	setupRoutes(ctx.Router, handler.NewEnrollmentHandler(svc, tracker))
	return nil
}

// NewServices 供订单、支付模块复用
func NewServices(ctx *registry.ModuleContext) (service.EnrollmentService, service.ProgressTracker) {
	courses := course.NewService(ctx)
	tx := database.NewTxManager(ctx.DB)
	enrollRepo := repository.NewEnrollmentRepository(ctx.DB)
	progressRepo := repository.NewProgressRepository(ctx.DB)

	tracker := service.NewProgressTracker(enrollRepo, progressRepo, courses, tx, ctx.Logger)
	svc := service.NewEnrollmentService(enrollRepo, courses, tracker, tx, ctx.Logger)
	return svc, tracker
}

func setupRoutes(r gin.IRouter, h *handler.EnrollmentHandler) {
	g := r.Group("/enrollments")
	g.Use(middleware.AuthMiddleware())
	{
		g.GET("", h.List)
		g.POST("/free/:courseId", h.EnrollFree)
		g.GET("/:courseId", h.Get)
		g.POST("/:courseId/lessons/:lessonId/complete", h.CompleteLesson)
	}
}
