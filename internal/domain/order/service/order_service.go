package service

import (
	"context"
	"errors"
	"fmt"
	"time"
	courseService "course_market/internal/domain/course/service"
	"course_market/internal/domain/order/model"
	"course_market/internal/domain/order/repository"
	"course_market/internal/pkg/errs"
	"course_market/pkg/database"
	"course_market/pkg/metrics"
	"course_market/pkg/utils"

	"go.uber.org/zap"
)

const maxOrderCodeAttempts = 5

// EnrollmentChecker 判断用户是否已拥有课程
type EnrollmentChecker interface {
	IsEnrolled(ctx context.Context, userID, courseID string) (bool, error)
}

// CreateOrderInput 下单参数
type CreateOrderInput struct {
	UserID         string
	CourseID       string
	Gateway        string
	BillingAddress *model.BillingAddress
}

// OrderService 订单服务
type OrderService interface {
	CreateOrder(ctx context.Context, in CreateOrderInput) (*model.Order, error)
	CancelOrder(ctx context.Context, orderID, userID string) (*model.Order, error)
	GetOrder(ctx context.Context, orderID, userID string, isAdmin bool) (*model.Order, error)
	GetOrderByCode(ctx context.Context, code, userID string, isAdmin bool) (*model.Order, error)
	ListOrders(ctx context.Context, userID string, status string, p utils.Pagination) (*utils.PageResult, error)
	GetOrderStats(ctx context.Context, userID string) (*model.OrderStats, error)
}

type orderService struct {
	repo        repository.OrderRepository
	stats       repository.StatsRepository
	courses     courseService.CourseService
	enrollments EnrollmentChecker
	tx          database.TxManager
	metrics     *metrics.Collector
	logger      *zap.Logger
	currency    string

	now     func() time.Time
	newCode func(time.Time) (string, error)
}

func NewOrderService(
	repo repository.OrderRepository,
	stats repository.StatsRepository,
	courses courseService.CourseService,
	enrollments EnrollmentChecker,
	tx database.TxManager,
	m *metrics.Collector,
	logger *zap.Logger,
	currency string,
) OrderService {
	return &orderService{
		repo:        repo,
		stats:       stats,
		courses:     courses,
		enrollments: enrollments,
		tx:          tx,
		metrics:     m,
		logger:      logger,
		currency:    currency,
		now:         time.Now,
		newCode:     NewOrderCode,
	}
}

// CreateOrder 创建待支付订单，不调用网关
func (s *orderService) CreateOrder(ctx context.Context, in CreateOrderInput) (*model.Order, error) {
	course, err := s.courses.GetCourseForCheckout(ctx, in.CourseID)
	if err != nil {
		return nil, err
	}
	if !course.IsPublished() {
		return nil, errs.ErrCourseNotPublished
	}
	if course.IsFree() {
		return nil, errs.ErrFreeCourse
	}

	enrolled, err := s.enrollments.IsEnrolled(ctx, in.UserID, in.CourseID)
	if err != nil {
		return nil, err
	}
	if enrolled {
		return nil, errs.ErrAlreadyEnrolled
	}

	gateway, ok := model.ParseGateway(in.Gateway)
	if !ok {
		return nil, errs.ErrUnsupportedGateway
	}

	order := &model.Order{
		UserID:         in.UserID,
		CourseID:       course.ID,
		CourseTitle:    course.Title,
		OriginalPrice:  course.Price,
		DiscountAmount: course.Discount(),
		Currency:       s.currency,
		PaymentGateway: gateway,
		PaymentStatus:  model.StatusPending,
	}
	order.FinalPrice = order.OriginalPrice.Sub(order.DiscountAmount)
	if err := order.SetBillingAddress(in.BillingAddress); err != nil {
		return nil, errs.ErrInvalidParam.Wrap(err)
	}

	// 订单号冲突时重新生成
	for attempt := 1; ; attempt++ {
		code, err := s.newCode(s.now())
		if err != nil {
			return nil, fmt.Errorf("generate order code: %w", err)
		}
		order.ID = ""
		order.OrderCode = code

		err = s.repo.Create(ctx, order)
		if err == nil {
			break
		}
		if !errors.Is(err, database.ErrDuplicate) {
			return nil, err
		}
		s.logger.Warn("order code collision", zap.String("order_code", code), zap.Int("attempt", attempt))
		if attempt >= maxOrderCodeAttempts {
			return nil, errs.ErrOrderCodeConflict
		}
	}

	s.metrics.OrderCreated(string(gateway))
	s.logger.Info("order created",
		zap.String("order_id", order.ID),
		zap.String("order_code", order.OrderCode),
		zap.String("user_id", order.UserID),
		zap.String("course_id", order.CourseID),
		zap.String("final_price", order.FinalPrice.StringFixed(2)),
		zap.String("gateway", string(gateway)),
	)
	return order, nil
}

// CancelOrder 只有订单所有者可以取消 PENDING 订单，与支付确认在订单行锁上串行
func (s *orderService) CancelOrder(ctx context.Context, orderID, userID string) (*model.Order, error) {
	var order *model.Order
	err := s.tx.Transaction(ctx, func(ctx context.Context) error {
		o, err := s.repo.GetByIDForUpdate(ctx, orderID)
		if err != nil {
			return err
		}
		if !o.IsOwnedBy(userID) {
			return errs.ErrNotOrderOwner
		}
		if o.PaymentStatus != model.StatusPending {
			return errs.ErrInvalidOrderState.WithMessage(fmt.Sprintf("order is %s", o.PaymentStatus))
		}
		if _, err := s.repo.UpdateStatus(ctx, o.ID, model.StatusFailed, nil); err != nil {
			return err
		}
		o.PaymentStatus = model.StatusFailed
		order = o
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.metrics.OrderCancelled()
	s.logger.Info("order cancelled", zap.String("order_id", orderID), zap.String("user_id", userID))
	return order, nil
}

func (s *orderService) GetOrder(ctx context.Context, orderID, userID string, isAdmin bool) (*model.Order, error) {
	o, err := s.repo.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	return authorize(o, userID, isAdmin)
}

func (s *orderService) GetOrderByCode(ctx context.Context, code, userID string, isAdmin bool) (*model.Order, error) {
	o, err := s.repo.GetByCode(ctx, code)
	if err != nil {
		return nil, err
	}
	return authorize(o, userID, isAdmin)
}

func authorize(o *model.Order, userID string, isAdmin bool) (*model.Order, error) {
	if !isAdmin && !o.IsOwnedBy(userID) {
		return nil, errs.ErrNotOrderOwner
	}
	return o, nil
}

func (s *orderService) ListOrders(ctx context.Context, userID string, status string, p utils.Pagination) (*utils.PageResult, error) {
	var st model.PaymentStatus
	switch model.PaymentStatus(status) {
	case "":
	case model.StatusPending, model.StatusPaid, model.StatusFailed:
		st = model.PaymentStatus(status)
	default:
		return nil, errs.ErrInvalidParam.WithMessage("unknown payment status " + status)
	}

	offset, limit := p.GetPageOffset()
	orders, total, err := s.repo.List(ctx, userID, st, offset, limit)
	if err != nil {
		return nil, err
	}
	return &utils.PageResult{List: orders, Total: total, Page: p.Page, Limit: p.Limit}, nil
}

func (s *orderService) GetOrderStats(ctx context.Context, userID string) (*model.OrderStats, error) {
	return s.stats.GetStats(ctx, userID)
}
