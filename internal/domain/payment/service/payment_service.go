package service

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"
	enrollModel "course_market/internal/domain/enrollment/model"
	notifyModel "course_market/internal/domain/notification/model"
	orderModel "course_market/internal/domain/order/model"
	"course_market/internal/domain/order/repository"
	"course_market/internal/domain/payment/gateway"
	"course_market/internal/pkg/errs"
	"course_market/pkg/database"
	"course_market/pkg/metrics"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/datatypes"
)

// Outcome 支付确认结果
type Outcome string

const (
	OutcomeConfirmed      Outcome = "CONFIRMED"
	OutcomeAlreadyPaid    Outcome = "ALREADY_PAID"
	OutcomeIgnored        Outcome = "IGNORED"
	OutcomeRejectedLate   Outcome = "REJECTED_LATE"
	OutcomeAmountMismatch Outcome = "AMOUNT_MISMATCH"
	OutcomePending        Outcome = "PENDING"
	OutcomeFailed         Outcome = "FAILED"
)

// ConfirmResult 确认结果，订单不存在时 Order 为空
type ConfirmResult struct {
	Outcome    Outcome                 `json:"outcome"`
	Order      *orderModel.Order       `json:"order,omitempty"`
	Enrollment *enrollModel.Enrollment `json:"enrollment,omitempty"`
}

// InboundResult 回调处理结果，Ack 决定给网关的应答
type InboundResult struct {
	Gateway gateway.Gateway
	Result  *ConfirmResult
	Ack     bool
}

// RefundInput 管理员退款参数，Amount 为空时退还剩余可退金额
type RefundInput struct {
	OrderID string
	Amount  *decimal.Decimal
	Reason  string
	AdminID string
}

// EnrollmentActivator 幂等开通课程，EnsureEnrolled 不会恢复已退出的选课
type EnrollmentActivator interface {
	Activate(ctx context.Context, userID, courseID string, source enrollModel.EnrollmentSource, orderID *string) (*enrollModel.Enrollment, bool, error)
	EnsureEnrolled(ctx context.Context, userID, courseID string, source enrollModel.EnrollmentSource, orderID *string) (*enrollModel.Enrollment, bool, error)
}

// ProgressInitializer 开通后初始化学习进度
type ProgressInitializer interface {
	InitProgress(ctx context.Context, e *enrollModel.Enrollment) error
}

// OutboxWriter 在当前事务中写入通知事件
type OutboxWriter interface {
	Enqueue(ctx context.Context, e *notifyModel.OutboxEvent) error
}

// PaymentService 支付编排
type PaymentService interface {
	CreatePaymentURL(ctx context.Context, orderID, userID, gatewayName string) (*gateway.PaymentURL, error)
	ConfirmPayment(ctx context.Context, n *gateway.Notification) (*ConfirmResult, error)
	HandleCallback(ctx context.Context, gatewayName string, r *http.Request) (*InboundResult, error)
	HandleWebhook(ctx context.Context, gatewayName string, r *http.Request) (*InboundResult, error)
	Refund(ctx context.Context, in RefundInput) (*orderModel.PaymentTransaction, error)
	ListTransactions(ctx context.Context, orderID string) ([]orderModel.PaymentTransaction, error)
}

type paymentService struct {
	orders      repository.OrderRepository
	gateways    *gateway.Registry
	enrollments EnrollmentActivator
	progress    ProgressInitializer
	outbox      OutboxWriter
	tx          database.TxManager
	metrics     *metrics.Collector
	logger      *zap.Logger
	now         func() time.Time
}

func NewPaymentService(
	orders repository.OrderRepository,
	gateways *gateway.Registry,
	enrollments EnrollmentActivator,
	progress ProgressInitializer,
	outbox OutboxWriter,
	tx database.TxManager,
	m *metrics.Collector,
	logger *zap.Logger,
) PaymentService {
	return &paymentService{
		orders:      orders,
		gateways:    gateways,
		enrollments: enrollments,
		progress:    progress,
		outbox:      outbox,
		tx:          tx,
		metrics:     m,
		logger:      logger,
		now:         time.Now,
	}
}

// CreatePaymentURL 渠道由订单保存的值决定，路径中的渠道必须与之一致
func (s *paymentService) CreatePaymentURL(ctx context.Context, orderID, userID, gatewayName string) (*gateway.PaymentURL, error) {
	order, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if !order.IsOwnedBy(userID) {
		return nil, errs.ErrNotOrderOwner
	}

	requested, ok := orderModel.ParseGateway(gatewayName)
	if !ok {
		return nil, errs.ErrUnsupportedGateway
	}
	if requested != order.PaymentGateway {
		return nil, errs.ErrGatewayMismatch
	}

	switch order.PaymentStatus {
	case orderModel.StatusPaid:
		return nil, errs.ErrAlreadyPaid
	case orderModel.StatusFailed:
		return nil, errs.ErrInvalidOrderState.WithMessage("order is closed, please create a new order")
	}

	g, err := s.gateways.Get(order.PaymentGateway)
	if err != nil {
		return nil, err
	}

	start := s.now()
	pay, err := g.BuildPaymentURL(ctx, order)
	s.metrics.ObserveGatewayCall(string(g.Name()), "create", start, err)
	if err != nil {
		s.logger.Warn("build payment url failed",
			zap.String("order_code", order.OrderCode),
			zap.String("gateway", string(g.Name())),
			zap.Error(err))
		return nil, err
	}
	return pay, nil
}

// ConfirmPayment 以订单状态作为幂等依据，所有副作用在同一事务内提交
func (s *paymentService) ConfirmPayment(ctx context.Context, n *gateway.Notification) (*ConfirmResult, error) {
	var result *ConfirmResult
	err := s.tx.Transaction(ctx, func(ctx context.Context) error {
		var err error
		result, err = s.confirm(ctx, n)
		return err
	})
	if err != nil {
		s.metrics.PaymentConfirmed(string(n.Gateway), string(n.Source), "error")
		return nil, err
	}
	s.metrics.PaymentConfirmed(string(n.Gateway), string(n.Source), strings.ToLower(string(result.Outcome)))
	return result, nil
}

func (s *paymentService) confirm(ctx context.Context, n *gateway.Notification) (*ConfirmResult, error) {
	log := s.logger.With(
		zap.String("order_code", n.OrderCode),
		zap.String("gateway", string(n.Gateway)),
		zap.String("source", string(n.Source)),
		zap.String("transaction_id", n.TransactionID),
	)

	// 1. 锁定订单行，同一订单的确认与取消串行执行
	order, err := s.orders.GetByCodeForUpdate(ctx, n.OrderCode)
	if errors.Is(err, errs.ErrOrderNotFound) {
		log.Warn("payment notification for unknown order ignored")
		return &ConfirmResult{Outcome: OutcomeIgnored}, nil
	}
	if err != nil {
		return nil, err
	}
	if order.PaymentGateway != n.Gateway {
		log.Warn("payment notification from another gateway ignored", zap.String("order_gateway", string(order.PaymentGateway)))
		return &ConfirmResult{Outcome: OutcomeIgnored, Order: order}, nil
	}

	switch order.PaymentStatus {
	case orderModel.StatusPaid:
		// 2. 已支付：仅成功通知补齐缺失的选课与通知，退款或关闭通知不产生任何变更
		if n.Status != gateway.StatusSuccess {
			log.Info("notification for paid order ignored", zap.String("result_code", n.ResultCode))
			return &ConfirmResult{Outcome: OutcomeAlreadyPaid, Order: order}, nil
		}
		enrollment, err := s.fulfil(ctx, order, order.PaymentGateway, n.TransactionID, true)
		if err != nil {
			return nil, err
		}
		return &ConfirmResult{Outcome: OutcomeAlreadyPaid, Order: order, Enrollment: enrollment}, nil

	case orderModel.StatusFailed:
		// 3. 已关闭的订单收到通知，只记审计流水
		if n.Status != gateway.StatusPending {
			log.Warn("late payment notification for failed order", zap.String("result_code", n.ResultCode))
			if err := s.recordTransaction(ctx, order, n, orderModel.TransactionFailed, "late confirmation for failed order"); err != nil {
				return nil, err
			}
		}
		return &ConfirmResult{Outcome: OutcomeRejectedLate, Order: order}, nil
	}

	switch n.Status {
	case gateway.StatusPending:
		return &ConfirmResult{Outcome: OutcomePending, Order: order}, nil

	case gateway.StatusFailed:
		// 网关明确支付失败
		if _, err := s.orders.UpdateStatus(ctx, order.ID, orderModel.StatusFailed, nil); err != nil {
			return nil, err
		}
		order.PaymentStatus = orderModel.StatusFailed
		if err := s.recordTransaction(ctx, order, n, orderModel.TransactionFailed, "gateway reported "+n.ResultCode); err != nil {
			return nil, err
		}
		log.Info("order failed by gateway", zap.String("result_code", n.ResultCode))
		return &ConfirmResult{Outcome: OutcomeFailed, Order: order}, nil
	}

	// 4. 金额校验
	g, err := s.gateways.Get(order.PaymentGateway)
	if err != nil {
		return nil, err
	}
	if n.Amount.Sub(order.FinalPrice).Abs().GreaterThan(g.AmountTolerance()) {
		log.Error("payment amount mismatch",
			zap.String("expected", order.FinalPrice.StringFixed(2)),
			zap.String("reported", n.Amount.StringFixed(2)),
			zap.Error(errs.ErrAmountMismatch))
		return &ConfirmResult{Outcome: OutcomeAmountMismatch, Order: order}, nil
	}

	// 5. 订单置为已支付 + 成功流水 + 开通课程 + 通知事件
	now := s.now()
	updated, err := s.orders.UpdateStatus(ctx, order.ID, orderModel.StatusPaid, &now)
	if err != nil {
		return nil, err
	}
	if !updated {
		return nil, errs.ErrInvalidOrderState.WithMessage("order is no longer pending")
	}
	order.PaymentStatus = orderModel.StatusPaid
	order.PaidAt = &now

	if err := s.recordTransaction(ctx, order, n, orderModel.TransactionSuccess, ""); err != nil {
		return nil, err
	}

	enrollment, err := s.fulfil(ctx, order, n.Gateway, n.TransactionID, false)
	if err != nil {
		return nil, err
	}

	log.Info("payment confirmed", zap.String("order_id", order.ID), zap.String("user_id", order.UserID))
	return &ConfirmResult{Outcome: OutcomeConfirmed, Order: order, Enrollment: enrollment}, nil
}

// fulfil 开通课程、初始化进度、写入通知事件，重复执行无副作用。
// resume 为 true 时只补建缺失的选课，已退出的选课保持原状
func (s *paymentService) fulfil(ctx context.Context, order *orderModel.Order, gw orderModel.PaymentGateway, transactionID string, resume bool) (*enrollModel.Enrollment, error) {
	orderID := order.ID
	activate := s.enrollments.Activate
	if resume {
		activate = s.enrollments.EnsureEnrolled
	}
	enrollment, _, err := activate(ctx, order.UserID, order.CourseID, enrollModel.SourceOrder, &orderID)
	if err != nil {
		return nil, err
	}
	if enrollment.Entitled() {
		if err := s.progress.InitProgress(ctx, enrollment); err != nil {
			return nil, err
		}
	}

	paidAt := s.now()
	if order.PaidAt != nil {
		paidAt = *order.PaidAt
	}
	payload := notifyModel.PaymentPayload{
		OrderID:       order.ID,
		OrderCode:     order.OrderCode,
		UserID:        order.UserID,
		CourseID:      order.CourseID,
		CourseTitle:   order.CourseTitle,
		Gateway:       string(gw),
		TransactionID: transactionID,
		Amount:        order.FinalPrice,
		Currency:      order.Currency,
		PaidAt:        paidAt,
	}
	for _, eventType := range []string{notifyModel.EventPaymentSucceeded, notifyModel.EventPaymentReceipt} {
		event, err := notifyModel.NewEvent(order.ID, eventType, payload, s.now())
		if err != nil {
			return nil, err
		}
		if err := s.outbox.Enqueue(ctx, event); err != nil {
			return nil, err
		}
	}
	return enrollment, nil
}

func (s *paymentService) recordTransaction(ctx context.Context, order *orderModel.Order, n *gateway.Notification, status orderModel.TransactionStatus, reason string) error {
	t := &orderModel.PaymentTransaction{
		OrderID:        order.ID,
		TransactionID:  n.TransactionID,
		PaymentGateway: n.Gateway,
		Amount:         n.Amount,
		Currency:       order.Currency,
		Status:         status,
		Reason:         reason,
	}
	if len(n.Raw) > 0 {
		t.RawPayload = datatypes.JSON(n.Raw)
	}
	return s.orders.CreateTransaction(ctx, t)
}

// HandleCallback 浏览器同步跳转
func (s *paymentService) HandleCallback(ctx context.Context, gatewayName string, r *http.Request) (*InboundResult, error) {
	return s.handleInbound(ctx, gatewayName, r, gateway.SourceCallback)
}

// HandleWebhook 网关异步通知，以此为准
func (s *paymentService) HandleWebhook(ctx context.Context, gatewayName string, r *http.Request) (*InboundResult, error) {
	return s.handleInbound(ctx, gatewayName, r, gateway.SourceWebhook)
}

// handleInbound 验签失败与内部错误只记录日志，应答交给渠道协议
func (s *paymentService) handleInbound(ctx context.Context, gatewayName string, r *http.Request, source gateway.Source) (*InboundResult, error) {
	g, err := s.gateways.Lookup(gatewayName)
	if err != nil {
		return nil, err
	}
	in := &InboundResult{Gateway: g}

	var n *gateway.Notification
	if source == gateway.SourceCallback {
		n, err = g.VerifyCallback(ctx, r)
	} else {
		n, err = g.VerifyWebhook(ctx, r)
	}
	if err != nil {
		if errs.KindOf(err) == errs.KindVerification {
			s.metrics.VerificationFailed(string(g.Name()), string(source))
			s.logger.Warn("payment notification rejected",
				zap.String("gateway", string(g.Name())),
				zap.String("source", string(source)),
				zap.String("remote_addr", r.RemoteAddr),
				zap.Error(err))
		} else {
			s.logger.Error("payment notification verify error",
				zap.String("gateway", string(g.Name())),
				zap.String("source", string(source)),
				zap.Error(err))
		}
		return in, nil
	}

	result, err := s.ConfirmPayment(ctx, n)
	if err != nil {
		// 未提交任何变更，网关重投后会再次处理
		s.logger.Error("confirm payment failed",
			zap.String("order_code", n.OrderCode),
			zap.String("gateway", string(g.Name())),
			zap.Error(err))
		return in, nil
	}

	in.Result = result
	in.Ack = true
	return in, nil
}

// Refund 只改变资金流水，不影响订单状态与选课
func (s *paymentService) Refund(ctx context.Context, in RefundInput) (*orderModel.PaymentTransaction, error) {
	var refund *orderModel.PaymentTransaction
	err := s.tx.Transaction(ctx, func(ctx context.Context) error {
		order, err := s.orders.GetByIDForUpdate(ctx, in.OrderID)
		if err != nil {
			return err
		}
		if order.PaymentStatus != orderModel.StatusPaid {
			return errs.ErrInvalidOrderState.WithMessage("only paid orders can be refunded")
		}

		refunded, err := s.orders.SumByStatus(ctx, order.ID, orderModel.TransactionRefunded)
		if err != nil {
			return err
		}
		remaining := order.FinalPrice.Sub(refunded)

		amount := remaining
		if in.Amount != nil {
			amount = *in.Amount
		}
		if !amount.IsPositive() || amount.GreaterThan(remaining) {
			return errs.ErrInvalidRefundAmount
		}

		g, err := s.gateways.Get(order.PaymentGateway)
		if err != nil {
			return err
		}

		// 持有订单行锁调用网关，同一订单的退款串行执行
		start := s.now()
		res, err := g.Refund(ctx, gateway.RefundRequest{
			Order:    order,
			RefundNo: strings.ReplaceAll(uuid.NewString(), "-", ""),
			Amount:   amount,
			Reason:   in.Reason,
		})
		s.metrics.ObserveGatewayCall(string(g.Name()), "refund", start, err)
		s.metrics.Refunded(string(g.Name()), err)
		if err != nil {
			return err
		}

		refund = &orderModel.PaymentTransaction{
			OrderID:        order.ID,
			TransactionID:  res.RefundID,
			PaymentGateway: order.PaymentGateway,
			Amount:         amount,
			Currency:       order.Currency,
			Status:         orderModel.TransactionRefunded,
			Reason:         in.Reason,
		}
		if len(res.Raw) > 0 {
			refund.RawPayload = datatypes.JSON(res.Raw)
		}
		if err := s.orders.CreateTransaction(ctx, refund); err != nil {
			s.logger.Error("refund accepted by gateway but not recorded",
				zap.String("order_id", order.ID),
				zap.String("refund_id", res.RefundID),
				zap.Error(err))
			return err
		}

		s.logger.Info("order refunded",
			zap.String("order_id", order.ID),
			zap.String("admin_id", in.AdminID),
			zap.String("amount", amount.StringFixed(2)))
		return nil
	})
	if err != nil {
		return nil, err
	}
	return refund, nil
}

func (s *paymentService) ListTransactions(ctx context.Context, orderID string) ([]orderModel.PaymentTransaction, error) {
	if _, err := s.orders.GetByID(ctx, orderID); err != nil {
		return nil, err
	}
	return s.orders.ListTransactions(ctx, orderID)
}
