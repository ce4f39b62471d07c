package handler

import (
	"net/http"
	"course_market/internal/domain/payment/service"
	"course_market/internal/pkg/common"
	"course_market/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

type PaymentHandler struct {
	service service.PaymentService
}

func NewPaymentHandler(s service.PaymentService) *PaymentHandler {
	return &PaymentHandler{service: s}
}

// CreatePaymentInput 发起支付请求
type CreatePaymentInput struct {
	OrderID string `json:"orderId" binding:"required"`
}

// RefundInput 退款请求，amount 为空时退还剩余金额
type RefundInput struct {
	Amount *decimal.Decimal `json:"amount" swaggertype:"string"`
	Reason string           `json:"reason" binding:"max=255"`
}

// CallbackResult 同步跳转结果，前端据此展示或继续轮询订单
type CallbackResult struct {
	OrderCode     string `json:"orderCode,omitempty"`
	Outcome       string `json:"outcome"`
	PaymentStatus string `json:"paymentStatus,omitempty"`
}

// outcomeUnconfirmed 同步跳转未能确认结果，不暴露具体原因
const outcomeUnconfirmed = "UNCONFIRMED"

// CreatePayment 获取支付链接
// @Summary 获取支付链接
// @Tags Payment
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param gateway path string true "alipay | wechat"
// @Param input body CreatePaymentInput true "Order"
// @Success 200 {object} response.Response{data=gateway.PaymentURL}
// @Router /payments/{gateway}/create [post]
func (h *PaymentHandler) CreatePayment(c *gin.Context) {
	var input CreatePaymentInput
	if err := c.ShouldBindJSON(&input); err != nil {
		response.Error(c, http.StatusBadRequest, response.ErrInvalidParam, err.Error())
		return
	}

	pay, err := h.service.CreatePaymentURL(c.Request.Context(), input.OrderID, common.CurrentUserID(c), c.Param("gateway"))
	if err != nil {
		common.RespondError(c, err)
		return
	}
	response.Success(c, pay)
}

// Callback 浏览器同步跳转
// @Summary 支付同步跳转
// @Tags Payment
// @Produce json
// @Param gateway path string true "alipay | wechat"
// @Success 200 {object} response.Response{data=CallbackResult}
// @Router /payments/{gateway}/callback [get]
func (h *PaymentHandler) Callback(c *gin.Context) {
	in, err := h.service.HandleCallback(c.Request.Context(), c.Param("gateway"), c.Request)
	if err != nil {
		common.RespondError(c, err)
		return
	}

	if !in.Ack || in.Result == nil {
		response.Success(c, CallbackResult{Outcome: outcomeUnconfirmed})
		return
	}

	result := CallbackResult{Outcome: string(in.Result.Outcome)}
	if in.Result.Order != nil {
		result.OrderCode = in.Result.Order.OrderCode
		result.PaymentStatus = string(in.Result.Order.PaymentStatus)
	}
	response.Success(c, result)
}

// Webhook 网关异步通知 (无需鉴权，但需验签)
// @Summary 支付异步通知
// @Tags Payment
// @Param gateway path string true "alipay | wechat"
// @Router /payments/{gateway}/webhook [post]
func (h *PaymentHandler) Webhook(c *gin.Context) {
	in, err := h.service.HandleWebhook(c.Request.Context(), c.Param("gateway"), c.Request)
	if err != nil {
		common.RespondError(c, err)
		return
	}
	// 应答格式由渠道决定
	in.Gateway.Acknowledge(c.Writer, in.Ack)
}

// Refund 管理员退款
// @Summary 退款
// @Tags Payment
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param orderId path string true "Order ID"
// @Param input body RefundInput false "Refund"
// @Success 201 {object} response.Response{data=model.PaymentTransaction}
// @Router /payments/refund/{orderId} [post]
func (h *PaymentHandler) Refund(c *gin.Context) {
	var input RefundInput
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&input); err != nil {
			response.Error(c, http.StatusBadRequest, response.ErrInvalidParam, err.Error())
			return
		}
	}

	refund, err := h.service.Refund(c.Request.Context(), service.RefundInput{
		OrderID: c.Param("orderId"),
		Amount:  input.Amount,
		Reason:  input.Reason,
		AdminID: common.CurrentUserID(c),
	})
	if err != nil {
		common.RespondError(c, err)
		return
	}
	response.Created(c, refund)
}

// ListTransactions 订单支付流水
// @Summary 支付流水
// @Tags Payment
// @Produce json
// @Security BearerAuth
// @Param orderId path string true "Order ID"
// @Success 200 {object} response.Response{data=[]model.PaymentTransaction}
// @Router /payments/orders/{orderId}/transactions [get]
func (h *PaymentHandler) ListTransactions(c *gin.Context) {
	list, err := h.service.ListTransactions(c.Request.Context(), c.Param("orderId"))
	if err != nil {
		common.RespondError(c, err)
		return
	}
	response.Success(c, list)
}
