package payment

import (
	"context"
	"course_market/internal/domain/enrollment"
	"course_market/internal/domain/notification"
	"course_market/internal/domain/order/model"
	"course_market/internal/domain/order/repository"
	"course_market/internal/domain/payment/gateway"
	"course_market/internal/domain/payment/handler"
	"course_market/internal/domain/payment/service"
	"course_market/internal/pkg/config"
	"course_market/internal/pkg/middleware"
	"course_market/internal/pkg/registry"
	"course_market/pkg/database"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// PaymentModule 支付模块
type PaymentModule struct{}

func init() {
	registry.Register(&PaymentModule{})
}

func (m *PaymentModule) Name() string {
	return "payment"
}

func (m *PaymentModule) Priority() int {
	// 依赖订单、选课与通知模块
	return 30
}

func (m *PaymentModule) Init(ctx *registry.ModuleContext) error {
	enrollments, tracker := enrollment.NewServices(ctx)

	svc := service.NewPaymentService(
		repository.NewOrderRepository(ctx.DB),
		newGateways(ctx.Config, ctx.Logger),
		enrollments,
		tracker,
		notification.NewOutbox(ctx),
		database.NewTxManager(ctx.DB),
		ctx.Metrics,
		ctx.Logger,
	)

	setupRoutes(ctx.Router, handler.NewPaymentHandler(svc))
	return nil
}

// newGateways 初始化失败的渠道以占位实现注册，请求时返回配置错误
func newGateways(cfg *config.Config, logger *zap.Logger) *gateway.Registry {
	timeout := cfg.Payment.GatewayTimeout

	var alipay gateway.Gateway
	if cfg.Alipay.AppID == "" {
		alipay = gateway.NewUnconfigured(model.GatewayAlipay, nil)
	} else if g, err := gateway.NewAlipayGateway(cfg.Alipay, timeout); err != nil {
		logger.Error("Failed to init Alipay gateway", zap.Error(err))
		alipay = gateway.NewUnconfigured(model.GatewayAlipay, err)
	} else {
		alipay = g
	}

	var wechat gateway.Gateway
	if cfg.Wechat.MchID == "" {
		wechat = gateway.NewUnconfigured(model.GatewayWechat, nil)
	} else if g, err := gateway.NewWechatGateway(context.Background(), cfg.Wechat, timeout); err != nil {
		logger.Error("Failed to init Wechat gateway", zap.Error(err))
		wechat = gateway.NewUnconfigured(model.GatewayWechat, err)
	} else {
		wechat = g
	}

	return gateway.NewRegistry(alipay, wechat)
}

func setupRoutes(r gin.IRouter, h *handler.PaymentHandler) {
	g := r.Group("/payments")

	// 浏览器跳转会回查网关订单，按 IP 限流：每秒 2 次，突发 5 次
	callbackLimiter := middleware.NewIPRateLimiter(2, 5)

	// 渠道回调 (无需鉴权，但需验签)
	g.GET("/:gateway/callback", middleware.RateLimitMiddleware(callbackLimiter), h.Callback)
	g.POST("/:gateway/callback", middleware.RateLimitMiddleware(callbackLimiter), h.Callback)
	g.POST("/:gateway/webhook", h.Webhook)

	auth := g.Group("")
	auth.Use(middleware.AuthMiddleware())
	{
		auth.POST("/:gateway/create", h.CreatePayment)
	}

	admin := g.Group("")
	admin.Use(middleware.AuthMiddleware(), middleware.AdminMiddleware())
	{
		admin.POST("/refund/:orderId", h.Refund)
		admin.GET("/orders/:orderId/transactions", h.ListTransactions)
	}
}
