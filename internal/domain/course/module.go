package course

import (
	"course_market/internal/domain/course/handler"
	"course_market/internal/domain/course/repository"
	"course_market/internal/domain/course/service"
	"course_market/internal/pkg/registry"

	"github.com/gin-gonic/gin"
)

// CourseModule 课程查询模块
type CourseModule struct{}

func init() {
	registry.Register(&CourseModule{})
}

func (m *CourseModule) Name() string {
	return "course"
}

func (m *CourseModule) Priority() int {
	return 1
}

func (m *CourseModule) Init(ctx *registry.ModuleContext) error {
	svc := NewService(ctx)
	setupRoutes(ctx.Router, handler.NewCourseHandler(svc))
	return nil
}

// NewService 供其他模块构造课程查询服务
func NewService(ctx *registry.ModuleContext) service.CourseService {
	return service.NewCourseService(repository.NewCourseRepository(ctx.DB), ctx.Cache, ctx.Metrics, ctx.Logger)
}

func setupRoutes(r gin.IRouter, h *handler.CourseHandler) {
	r.GET("/courses/:id/quote", h.GetQuote)
}
