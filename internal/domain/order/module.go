package order

import (
	"course_market/internal/domain/course"
	"course_market/internal/domain/enrollment"
	"course_market/internal/domain/order/handler"
	"course_market/internal/domain/order/repository"
	"course_market/internal/domain/order/service"
	"course_market/internal/pkg/middleware"
	"course_market/internal/pkg/registry"
	"course_market/pkg/database"

	"github.com/gin-gonic/gin"
)

// OrderModule 订单模块
type OrderModule struct{}

func init() {
	registry.Register(&OrderModule{})
}

func (m *OrderModule) Name() string {
	return "order"
}

func (m *OrderModule) Priority() int {
	// 依赖课程与选课模块
	return 20
}

func (m *OrderModule) Init(ctx *registry.ModuleContext) error {
	enrollments, _ := enrollment.NewServices(ctx)

	svc := service.NewOrderService(
		repository.NewOrderRepository(ctx.DB),
		repository.NewStatsRepository(ctx.Sqlx),
		course.NewService(ctx),
		enrollments,
		database.NewTxManager(ctx.DB),
		ctx.Metrics,
		ctx.Logger,
		ctx.Config.Payment.Currency,
	)

	setupRoutes(ctx.Router, handler.NewOrderHandler(svc))
	return nil
}

func setupRoutes(r gin.IRouter, h *handler.OrderHandler) {
	// 下单接口单独限流：每个 IP 每秒 5 次，突发 10 次
	checkoutLimiter := middleware.NewIPRateLimiter(5, 10)

	g := r.Group("/orders")
	g.Use(middleware.AuthMiddleware())
	{
		g.POST("", middleware.RateLimitMiddleware(checkoutLimiter), h.CreateOrder)
		g.GET("", h.ListOrders)
		g.GET("/stats", h.GetOrderStats)
		g.GET("/code/:orderCode", h.GetOrderByCode)
		g.GET("/:id", h.GetOrder)
		g.PATCH("/:id/cancel", h.CancelOrder)
	}
}
