package handler

import (
	"net/http"
	"course_market/internal/domain/order/model"
	"course_market/internal/domain/order/service"
	"course_market/internal/pkg/common"
	"course_market/pkg/response"
	"course_market/pkg/utils"

	"github.com/gin-gonic/gin"
)

type OrderHandler struct {
	service service.OrderService
}

func NewOrderHandler(s service.OrderService) *OrderHandler {
	return &OrderHandler{service: s}
}

// CreateOrderInput 下单请求
type CreateOrderInput struct {
	CourseID       string                `json:"courseId" binding:"required"`
	PaymentGateway string                `json:"paymentGateway" binding:"required"`
	BillingAddress *model.BillingAddress `json:"billingAddress"`
}

// ListOrdersQuery 订单列表查询
type ListOrdersQuery struct {
	utils.Pagination
	Status string `form:"status"`
}

// CreateOrder 创建订单
// @Summary 创建订单
// @Tags Order
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param input body CreateOrderInput true "Order Info"
// @Success 201 {object} response.Response{data=model.Order}
// @Router /orders [post]
func (h *OrderHandler) CreateOrder(c *gin.Context) {
	var input CreateOrderInput
	if err := c.ShouldBindJSON(&input); err != nil {
		response.Error(c, http.StatusBadRequest, response.ErrInvalidParam, err.Error())
		return
	}

	order, err := h.service.CreateOrder(c.Request.Context(), service.CreateOrderInput{
		UserID:         common.CurrentUserID(c),
		CourseID:       input.CourseID,
		Gateway:        input.PaymentGateway,
		BillingAddress: input.BillingAddress,
	})
	if err != nil {
		common.RespondError(c, err)
		return
	}
	response.Created(c, order)
}

// CancelOrder 取消订单
// @Summary 取消待支付订单
// @Tags Order
// @Produce json
// @Security BearerAuth
// @Param id path string true "Order ID"
// @Success 200 {object} response.Response{data=model.Order}
// @Router /orders/{id}/cancel [patch]
func (h *OrderHandler) CancelOrder(c *gin.Context) {
	order, err := h.service.CancelOrder(c.Request.Context(), c.Param("id"), common.CurrentUserID(c))
	if err != nil {
		common.RespondError(c, err)
		return
	}
	response.Success(c, order)
}

// ListOrders 我的订单
// @Summary 订单列表
// @Tags Order
// @Produce json
// @Security BearerAuth
// @Param page query int false "页码"
// @Param limit query int false "每页数量"
// @Param status query string false "PENDING | PAID | FAILED"
// @Success 200 {object} response.Response{data=utils.PageResult}
// @Router /orders [get]
func (h *OrderHandler) ListOrders(c *gin.Context) {
	var q ListOrdersQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		response.Error(c, http.StatusBadRequest, response.ErrInvalidParam, err.Error())
		return
	}

	result, err := h.service.ListOrders(c.Request.Context(), common.CurrentUserID(c), q.Status, q.Pagination)
	if err != nil {
		common.RespondError(c, err)
		return
	}
	response.Success(c, result)
}

// GetOrder 订单详情
// @Summary 订单详情
// @Tags Order
// @Produce json
// @Security BearerAuth
// @Param id path string true "Order ID"
// @Success 200 {object} response.Response{data=model.Order}
// @Router /orders/{id} [get]
func (h *OrderHandler) GetOrder(c *gin.Context) {
	order, err := h.service.GetOrder(c.Request.Context(), c.Param("id"), common.CurrentUserID(c), isAdmin(c))
	if err != nil {
		common.RespondError(c, err)
		return
	}
	response.Success(c, order)
}

// GetOrderByCode 按订单号查询
// @Summary 按订单号查询
// @Tags Order
// @Produce json
// @Security BearerAuth
// @Param orderCode path string true "Order Code"
// @Success 200 {object} response.Response{data=model.Order}
// @Router /orders/code/{orderCode} [get]
func (h *OrderHandler) GetOrderByCode(c *gin.Context) {
	order, err := h.service.GetOrderByCode(c.Request.Context(), c.Param("orderCode"), common.CurrentUserID(c), isAdmin(c))
	if err != nil {
		common.RespondError(c, err)
		return
	}
	response.Success(c, order)
}

// GetOrderStats 订单统计
// @Summary 订单统计
// @Tags Order
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Response{data=model.OrderStats}
// @Router /orders/stats [get]
func (h *OrderHandler) GetOrderStats(c *gin.Context) {
	stats, err := h.service.GetOrderStats(c.Request.Context(), common.CurrentUserID(c))
	if err != nil {
		common.RespondError(c, err)
		return
	}
	response.Success(c, stats)
}

func isAdmin(c *gin.Context) bool {
	return common.CurrentRole(c) == utils.RoleAdmin
}
